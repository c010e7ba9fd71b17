package content

import (
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/PrathmeshKudale/krishi-mitra/internal/media"
	"github.com/PrathmeshKudale/krishi-mitra/internal/session"
)

// maxMultipartMemory is the in-memory part of a multipart upload; the rest spills to temp files.
const maxMultipartMemory = 32 << 20

// Handler exposes posts and products over HTTP. Every route expects a session.
type Handler struct {
	svc    *Service
	media  *media.Intake
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, intake *media.Intake, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, media: intake, logger: logger}
}

// CreatePostResponse carries the new post id and any stored media references.
type CreatePostResponse struct {
	ID       string  `json:"id"`
	ImageRef *string `json:"image_ref,omitempty"`
	VideoRef *string `json:"video_ref,omitempty"`
}

// CreatePost accepts multipart/form-data with a "content" field and optional
// "image" and "video" files. The author is the session's display name.
// Nothing is written unless the content and every attachment validate, and
// stored attachments are removed again if the post itself cannot be saved.
func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request) {
	who, ok := session.FromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not logged in"})
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.media.MaxUploadBytes()+1<<20)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "upload too large"})
			return
		}
		h.logger.Debugw("invalid post form", "err", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid form"})
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	content := r.FormValue("content")
	if err := ValidatePost(who.DisplayName, content); err != nil {
		h.writeServiceError(w, "create post", err)
		return
	}

	var uploads []*pendingUpload
	defer func() {
		for _, u := range uploads {
			u.close()
		}
	}()
	for _, field := range []struct {
		name   string
		bucket media.Bucket
	}{{"image", media.BucketImages}, {"video", media.BucketVideos}} {
		u, err := h.openUpload(r, field.name, field.bucket)
		if err != nil {
			h.writeMediaError(w, err)
			return
		}
		if u != nil {
			uploads = append(uploads, u)
		}
	}

	var stored []media.Reference
	var imageRef, videoRef *string
	for _, u := range uploads {
		ref, err := h.media.Store(u.file, u.bucket)
		if err != nil {
			h.discard(stored)
			h.writeMediaError(w, err)
			return
		}
		stored = append(stored, ref)
		s := string(ref)
		if u.bucket == media.BucketImages {
			imageRef = &s
		} else {
			videoRef = &s
		}
	}

	id, err := h.svc.CreatePost(r.Context(), who.DisplayName, content, imageRef, videoRef)
	if err != nil {
		h.discard(stored)
		h.writeServiceError(w, "create post", err)
		return
	}
	h.logger.Infow("post created", "id", id, "author", who.UserID)
	writeJSON(w, http.StatusCreated, CreatePostResponse{ID: id, ImageRef: imageRef, VideoRef: videoRef})
}

type pendingUpload struct {
	file   media.File
	bucket media.Bucket
	close  func()
}

// openUpload opens and validates the named form file. A missing file yields (nil, nil).
func (h *Handler) openUpload(r *http.Request, field string, bucket media.Bucket) (*pendingUpload, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	fh := firstFile(r.MultipartForm, field)
	if fh == nil {
		return nil, nil
	}
	f, err := fh.Open()
	if err != nil {
		return nil, errors.Join(media.ErrIO, err)
	}
	upload := media.File{Name: fh.Filename, Size: fh.Size, Content: f}
	if bucket == media.BucketImages {
		err = h.media.ValidateImage(upload)
	} else {
		err = h.media.ValidateVideo(upload)
	}
	if err != nil {
		f.Close()
		return nil, err
	}
	return &pendingUpload{file: upload, bucket: bucket, close: func() { f.Close() }}, nil
}

func (h *Handler) discard(refs []media.Reference) {
	for _, ref := range refs {
		if err := h.media.Remove(ref); err != nil {
			h.logger.Warnw("remove orphaned upload", "ref", ref, "err", err)
		}
	}
}

func firstFile(form *multipart.Form, field string) *multipart.FileHeader {
	files := form.File[field]
	if len(files) == 0 {
		return nil
	}
	return files[0]
}

// ListPosts returns the newest posts; ?limit bounds the count.
func (h *Handler) ListPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.svc.ListPosts(r.Context(), queryLimit(r))
	if err != nil {
		h.writeServiceError(w, "list posts", err)
		return
	}
	writeJSON(w, http.StatusOK, posts)
}

// CreateProductRequest is the marketplace listing form.
type CreateProductRequest struct {
	ProductName string `json:"product_name"`
	Quantity    string `json:"quantity"`
	Location    string `json:"location"`
	Phone       string `json:"phone"`
}

func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	who, ok := session.FromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not logged in"})
		return
	}
	var req CreateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	location := req.Location
	if location == "" {
		location = who.Location
	}
	id, err := h.svc.CreateProduct(r.Context(), who.DisplayName, req.ProductName, req.Quantity, location, req.Phone)
	if err != nil {
		h.writeServiceError(w, "create product", err)
		return
	}
	h.logger.Infow("product listed", "id", id, "author", who.UserID)
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// ListProducts lists the newest products, or searches them when ?q is present.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var (
		err  error
		rows any
	)
	if q.Has("q") {
		rows, err = h.svc.SearchProducts(r.Context(), q.Get("q"))
	} else {
		rows, err = h.svc.ListProducts(r.Context(), queryLimit(r))
	}
	if err != nil {
		h.writeServiceError(w, "list products", err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func queryLimit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		return 0
	}
	return n
}

func (h *Handler) writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, ErrStorageUnavailable):
		h.logger.Warnw(op+" failed", "err", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "storage unavailable, try again later"})
	default:
		h.logger.Errorw(op+" failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": op + " failed"})
	}
}

func (h *Handler) writeMediaError(w http.ResponseWriter, err error) {
	if errors.Is(err, media.ErrValidation) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	h.logger.Errorw("store media", "err", err)
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not store upload"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
