// Package media validates uploaded images and videos and stores them on disk
// under collision-resistant names.
package media

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/PrathmeshKudale/krishi-mitra/pkg/utilities"
)

// Bucket is a logical media directory.
type Bucket string

const (
	BucketImages Bucket = "images"
	BucketVideos Bucket = "videos"
)

const (
	DefaultMaxImageBytes int64 = 10 << 20
	DefaultMaxVideoBytes int64 = 200 << 20
)

var (
	ErrValidation = errors.New("media validation failed")
	ErrIO         = errors.New("media i/o failure")
	ErrBadRef     = errors.New("invalid media reference")
)

var (
	imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true}
	videoExts = map[string]bool{".mp4": true}
)

// Config locates the media buckets and bounds upload sizes.
type Config struct {
	Root          string `yaml:"root"`
	ImagesDir     string `yaml:"images_dir"`
	VideosDir     string `yaml:"videos_dir"`
	MaxImageBytes int64  `yaml:"max_image_bytes"`
	MaxVideoBytes int64  `yaml:"max_video_bytes"`
}

func DefaultConfig() Config {
	return Config{
		Root:          "uploads",
		ImagesDir:     string(BucketImages),
		VideosDir:     string(BucketVideos),
		MaxImageBytes: DefaultMaxImageBytes,
		MaxVideoBytes: DefaultMaxVideoBytes,
	}
}

// File is an upload to validate or store. Content must be positioned at the
// start; validation rewinds it after sniffing.
type File struct {
	Name    string
	Size    int64
	Content io.ReadSeeker
}

// Reference is the stable handle returned by Store, e.g. "images/2Nb...png".
type Reference string

// Intake validates and persists uploads.
type Intake struct {
	cfg Config
}

func NewIntake(cfg Config) *Intake {
	def := DefaultConfig()
	if cfg.Root == "" {
		cfg.Root = def.Root
	}
	if cfg.ImagesDir == "" {
		cfg.ImagesDir = def.ImagesDir
	}
	if cfg.VideosDir == "" {
		cfg.VideosDir = def.VideosDir
	}
	if cfg.MaxImageBytes <= 0 {
		cfg.MaxImageBytes = def.MaxImageBytes
	}
	if cfg.MaxVideoBytes <= 0 {
		cfg.MaxVideoBytes = def.MaxVideoBytes
	}
	return &Intake{cfg: cfg}
}

// ValidateImage accepts jpg/jpeg/png files whose content sniffs as an image
// and whose size is within MaxImageBytes.
func (in *Intake) ValidateImage(f File) error {
	ext := strings.ToLower(filepath.Ext(f.Name))
	if !imageExts[ext] {
		return fmt.Errorf("%w: unsupported image type %q (use jpg, jpeg or png)", ErrValidation, ext)
	}
	if err := checkSize(f.Size, in.cfg.MaxImageBytes); err != nil {
		return err
	}
	ct, err := sniff(f.Content)
	if err != nil {
		return err
	}
	if !strings.HasPrefix(ct, "image/") {
		return fmt.Errorf("%w: file content is %s, not an image", ErrValidation, ct)
	}
	return nil
}

// ValidateVideo accepts mp4 files within MaxVideoBytes.
func (in *Intake) ValidateVideo(f File) error {
	ext := strings.ToLower(filepath.Ext(f.Name))
	if !videoExts[ext] {
		return fmt.Errorf("%w: unsupported video type %q (use mp4)", ErrValidation, ext)
	}
	return checkSize(f.Size, in.cfg.MaxVideoBytes)
}

// Store writes f into bucket under a fresh KSUID name and returns its reference.
// Files are created with O_EXCL so an existing reference is never overwritten.
func (in *Intake) Store(f File, bucket Bucket) (Reference, error) {
	dir, err := in.bucketDir(bucket)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: create %s: %v", ErrIO, dir, err)
	}
	name := utilities.NewKSUID() + strings.ToLower(filepath.Ext(f.Name))
	full := filepath.Join(dir, name)

	out, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("%w: create %s: %v", ErrIO, name, err)
	}
	if _, err := io.Copy(out, f.Content); err != nil {
		out.Close()
		_ = os.Remove(full)
		return "", fmt.Errorf("%w: write %s: %v", ErrIO, name, err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(full)
		return "", fmt.Errorf("%w: close %s: %v", ErrIO, name, err)
	}
	return Reference(path.Join(string(bucket), name)), nil
}

// Remove deletes a stored reference. Removing a missing file is not an error.
func (in *Intake) Remove(ref Reference) error {
	full, err := in.resolve(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: remove %s: %v", ErrIO, ref, err)
	}
	return nil
}

// MaxUploadBytes is the largest image plus the largest video.
func (in *Intake) MaxUploadBytes() int64 {
	return in.cfg.MaxImageBytes + in.cfg.MaxVideoBytes
}

// Open re-opens a stored reference for reading.
func (in *Intake) Open(ref Reference) (*os.File, error) {
	full, err := in.resolve(ref)
	if err != nil {
		return nil, err
	}
	fh, err := os.Open(full)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s not found", ErrBadRef, ref)
		}
		return nil, fmt.Errorf("%w: open %s: %v", ErrIO, ref, err)
	}
	return fh, nil
}

func (in *Intake) resolve(ref Reference) (string, error) {
	bucket, name, ok := strings.Cut(string(ref), "/")
	if !ok || name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("%w: %q", ErrBadRef, ref)
	}
	dir, err := in.bucketDir(Bucket(bucket))
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

func (in *Intake) bucketDir(b Bucket) (string, error) {
	switch b {
	case BucketImages:
		return filepath.Join(in.cfg.Root, in.cfg.ImagesDir), nil
	case BucketVideos:
		return filepath.Join(in.cfg.Root, in.cfg.VideosDir), nil
	default:
		return "", fmt.Errorf("%w: unknown bucket %q", ErrBadRef, b)
	}
}

func checkSize(size, limit int64) error {
	if size <= 0 {
		return fmt.Errorf("%w: file is empty", ErrValidation)
	}
	if size > limit {
		return fmt.Errorf("%w: file is %d MB, limit is %d MB", ErrValidation, size>>20, limit>>20)
	}
	return nil
}

// sniff reads the first 512 bytes to detect the content type and rewinds.
func sniff(r io.ReadSeeker) (string, error) {
	if r == nil {
		return "", fmt.Errorf("%w: no content", ErrValidation)
	}
	buf := make([]byte, 512)
	n, err := io.ReadFull(r, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("%w: read: %v", ErrIO, err)
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("%w: rewind: %v", ErrIO, err)
	}
	return http.DetectContentType(buf[:n]), nil
}
