package media

import (
	"errors"
	"net/http"
	"path"

	"go.uber.org/zap"
)

// Handler serves stored media back by reference.
type Handler struct {
	intake *Intake
	logger *zap.SugaredLogger
}

func NewHandler(intake *Intake, logger *zap.SugaredLogger) *Handler {
	return &Handler{intake: intake, logger: logger}
}

// Serve handles GET /api/media/{bucket}/{name}.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	ref := Reference(path.Join(r.PathValue("bucket"), r.PathValue("name")))
	f, err := h.intake.Open(ref)
	if err != nil {
		if errors.Is(err, ErrBadRef) {
			http.NotFound(w, r)
			return
		}
		h.logger.Errorw("open media", "ref", ref, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	http.ServeContent(w, r, st.Name(), st.ModTime(), f)
}
