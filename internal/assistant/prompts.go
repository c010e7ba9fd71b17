package assistant

import "fmt"

const systemInstruction = "You are Krishi Mitra, an expert agricultural advisor for Indian farmers. " +
	"Give practical, locally relevant advice in simple words."

func detectPrompt(text string) string {
	return fmt.Sprintf(`Detect the language of the following text and respond with ONLY the ISO 639-1 language code.
Supported codes: mr (Marathi), hi (Hindi), en (English), gu (Gujarati), ta (Tamil), te (Telugu), kn (Kannada).
If uncertain, default to 'en'.

Text: %q

Respond with only the 2-letter code.`, text)
}

func farmingPrompt(query string, lang Language) string {
	return fmt.Sprintf(`Respond ONLY in %s language.

Farmer's Question: %s`, lang.Name(), query)
}

func diagnosisPrompt(contextText string, lang Language) string {
	if contextText == "" {
		contextText = "None"
	}
	return fmt.Sprintf(`You are an agricultural expert. Analyze this crop image.
Respond in %s language.

Farmer's context: %s

Provide:
1. Crop identification
2. Health assessment
3. Disease/Pest detection with treatment recommendations
4. Soil, water and climate needs
5. Current growth stage
6. Nutrient plan
7. Prevention measures
8. Best practices
9. Common mistakes to avoid`, lang.Name(), contextText)
}

func cropKnowledgePrompt(crop string, lang Language) string {
	return fmt.Sprintf(`You are an agricultural expert. Provide complete information about %s.
Respond entirely in %s language.

Include:
- Crop overview
- Complete lifecycle
- Seasonal calendar
- Input requirements
- Economics
- Best practices`, crop, lang.Name())
}

func schemePrompt(query string, lang Language) string {
	return fmt.Sprintf(`You are a government scheme expert for Indian agriculture.
Respond in %s language.

Query: %s

Provide:
- Scheme overview
- Eligibility criteria
- Benefits
- Application process
- Contact information`, lang.Name(), query)
}

// Scheme is a short entry in the popular schemes list.
type Scheme struct {
	ShortName string `json:"short_name"`
	FullName  string `json:"full_name"`
}

// PopularSchemes are offered as quick lookups for GetSchemeInfo.
var PopularSchemes = []Scheme{
	{"PM-KISAN", "Pradhan Mantri Kisan Samman Nidhi"},
	{"Soil Health Card", "Free soil testing"},
	{"KCC", "Kisan Credit Card"},
	{"PMFBY", "Crop Insurance"},
	{"MIDH", "Horticulture Mission"},
	{"NMOOP", "Oilseeds Mission"},
}
