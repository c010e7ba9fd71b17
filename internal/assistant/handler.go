package assistant

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"
)

const maxDiagnoseImageBytes = 10 << 20

// Handler exposes the gateway over HTTP.
type Handler struct {
	gw     *Gateway
	logger *zap.SugaredLogger
}

func NewHandler(gw *Gateway, logger *zap.SugaredLogger) *Handler {
	return &Handler{gw: gw, logger: logger}
}

type detectRequest struct {
	Text string `json:"text"`
}

type askRequest struct {
	Query    string `json:"query"`
	Language string `json:"language"`
}

type cropRequest struct {
	Crop     string `json:"crop"`
	Language string `json:"language"`
}

// AnswerResponse carries generated text and the language it was requested in.
type AnswerResponse struct {
	Answer   string   `json:"answer"`
	Language Language `json:"language"`
}

func (h *Handler) Detect(w http.ResponseWriter, r *http.Request) {
	var req detectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]Language{"language": h.gw.DetectLanguage(r.Context(), req.Text)})
}

// Ask answers a farming question. An empty language is detected from the query.
func (h *Handler) Ask(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	var lang Language
	if req.Language == "" {
		lang = h.gw.DetectLanguage(r.Context(), req.Query)
	} else if l, ok := h.language(w, req.Language); ok {
		lang = l
	} else {
		return
	}
	answer, err := h.gw.AnswerFarmingQuestion(r.Context(), req.Query, lang)
	h.respond(w, "ask", answer, lang, err)
}

// Diagnose accepts multipart form data with an "image" file plus optional
// "context" and "language" fields.
func (h *Handler) Diagnose(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxDiagnoseImageBytes+1<<20)
	if err := r.ParseMultipartForm(maxDiagnoseImageBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid form or image too large"})
		return
	}
	defer r.MultipartForm.RemoveAll()

	lang, ok := h.language(w, r.FormValue("language"))
	if !ok {
		return
	}
	f, fh, err := r.FormFile("image")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "image is required"})
		return
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxDiagnoseImageBytes+1))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "could not read image"})
		return
	}
	if len(data) > maxDiagnoseImageBytes {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "image exceeds 10 MB"})
		return
	}
	mimeType := fh.Header.Get("Content-Type")
	if mimeType == "application/octet-stream" {
		mimeType = ""
	}
	answer, err := h.gw.AnalyzeCropImage(r.Context(), data, mimeType, r.FormValue("context"), lang)
	h.respond(w, "diagnose", answer, lang, err)
}

func (h *Handler) CropKnowledge(w http.ResponseWriter, r *http.Request) {
	var req cropRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	lang, ok := h.language(w, req.Language)
	if !ok {
		return
	}
	answer, err := h.gw.GenerateCropKnowledge(r.Context(), req.Crop, lang)
	h.respond(w, "crop knowledge", answer, lang, err)
}

func (h *Handler) Schemes(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	lang, ok := h.language(w, req.Language)
	if !ok {
		return
	}
	answer, err := h.gw.GetSchemeInfo(r.Context(), req.Query, lang)
	h.respond(w, "scheme info", answer, lang, err)
}

func (h *Handler) PopularSchemes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, PopularSchemes)
}

// language parses s, treating blank as English. It writes a 400 for unknown codes.
func (h *Handler) language(w http.ResponseWriter, s string) (Language, bool) {
	if s == "" {
		return English, true
	}
	l, ok := ParseLanguage(s)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unsupported language " + s})
		return "", false
	}
	return l, true
}

func (h *Handler) respond(w http.ResponseWriter, op, answer string, lang Language, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, AnswerResponse{Answer: answer, Language: lang})
	case errors.Is(err, ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, ErrGateway):
		h.logger.Warnw(op+" failed", "err", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "assistant unavailable, please try again"})
	default:
		h.logger.Errorw(op+" failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": op + " failed"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
