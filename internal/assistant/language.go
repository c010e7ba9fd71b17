package assistant

import "strings"

// Language is an ISO 639-1 code for one of the supported Indian languages.
type Language string

const (
	English  Language = "en"
	Hindi    Language = "hi"
	Marathi  Language = "mr"
	Gujarati Language = "gu"
	Tamil    Language = "ta"
	Telugu   Language = "te"
	Kannada  Language = "kn"
)

var languageNames = map[Language]string{
	English:  "English",
	Hindi:    "Hindi",
	Marathi:  "Marathi",
	Gujarati: "Gujarati",
	Tamil:    "Tamil",
	Telugu:   "Telugu",
	Kannada:  "Kannada",
}

// Languages lists the supported languages in display order.
var Languages = []Language{Marathi, Hindi, English, Gujarati, Tamil, Telugu, Kannada}

// Supported reports whether l is one of Languages.
func (l Language) Supported() bool {
	_, ok := languageNames[l]
	return ok
}

// Name returns the English name used in prompts. Unknown codes read as English.
func (l Language) Name() string {
	if n, ok := languageNames[l]; ok {
		return n
	}
	return languageNames[English]
}

// ParseLanguage normalizes s and reports whether it names a supported language.
func ParseLanguage(s string) (Language, bool) {
	l := Language(strings.ToLower(strings.TrimSpace(s)))
	return l, l.Supported()
}

// orEnglish maps unsupported codes to English.
func (l Language) orEnglish() Language {
	if l.Supported() {
		return l
	}
	return English
}
