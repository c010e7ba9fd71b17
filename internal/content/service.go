package content

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/PrathmeshKudale/krishi-mitra/internal/content/entity"
)

// Repository is implemented by the sqlx and mongo adapters in the repo package.
type Repository interface {
	EnsureTable(ctx context.Context) error
	CreatePost(ctx context.Context, p *entity.Post) (string, error)
	ListPosts(ctx context.Context, limit int) ([]entity.Post, error)
	CreateProduct(ctx context.Context, p *entity.Product) (string, error)
	ListProducts(ctx context.Context, limit int) ([]entity.Product, error)
	SearchProducts(ctx context.Context, term string) ([]entity.Product, error)
}

const (
	DefaultPostLimit    = 50
	DefaultProductLimit = 100
	MaxLimit            = 500
	MaxPostRunes        = 5000
	MinPhoneDigits      = 10
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrStorageUnavailable = errors.New("content storage unavailable")
)

// Service validates and forwards content operations to a Repository.
type Service struct {
	repo    Repository
	timeout time.Duration
}

func NewService(r Repository, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Service{repo: r, timeout: timeout}
}

// ValidatePost checks the post form rules: some content, at most MaxPostRunes
// characters of it, and an author.
func ValidatePost(authorName, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return fmt.Errorf("%w: please enter some content", ErrInvalidInput)
	}
	if utf8.RuneCountInString(content) > MaxPostRunes {
		return fmt.Errorf("%w: content exceeds %d characters", ErrInvalidInput, MaxPostRunes)
	}
	if strings.TrimSpace(authorName) == "" {
		return fmt.Errorf("%w: author is required", ErrInvalidInput)
	}
	return nil
}

// CreatePost stores a community post. imageRef and videoRef may be nil.
func (s *Service) CreatePost(ctx context.Context, authorName, content string, imageRef, videoRef *string) (string, error) {
	if err := ValidatePost(authorName, content); err != nil {
		return "", err
	}
	p := &entity.Post{AuthorName: authorName, Content: strings.TrimSpace(content), ImageRef: imageRef, VideoRef: videoRef}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	id, err := s.repo.CreatePost(ctx, p)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return id, nil
}

// ListPosts returns up to limit posts, newest first.
func (s *Service) ListPosts(ctx context.Context, limit int) ([]entity.Post, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	posts, err := s.repo.ListPosts(ctx, clampLimit(limit, DefaultPostLimit))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return posts, nil
}

// ValidateProduct checks the listing form rules: every field present and a
// phone number with at least MinPhoneDigits digits.
func ValidateProduct(authorName, productName, quantity, location, phone string) error {
	for _, f := range []string{authorName, productName, quantity, location, phone} {
		if strings.TrimSpace(f) == "" {
			return fmt.Errorf("%w: please fill all fields", ErrInvalidInput)
		}
	}
	digits := 0
	for _, r := range phone {
		switch {
		case unicode.IsDigit(r):
			digits++
		case r == '+' || r == ' ' || r == '-':
		default:
			return fmt.Errorf("%w: phone number may only contain digits", ErrInvalidInput)
		}
	}
	if digits < MinPhoneDigits {
		return fmt.Errorf("%w: phone number must be at least %d digits", ErrInvalidInput, MinPhoneDigits)
	}
	return nil
}

// CreateProduct stores a marketplace listing.
func (s *Service) CreateProduct(ctx context.Context, authorName, productName, quantity, location, phone string) (string, error) {
	if err := ValidateProduct(authorName, productName, quantity, location, phone); err != nil {
		return "", err
	}
	p := &entity.Product{
		AuthorName:  strings.TrimSpace(authorName),
		ProductName: strings.TrimSpace(productName),
		Quantity:    strings.TrimSpace(quantity),
		Location:    strings.TrimSpace(location),
		Phone:       strings.TrimSpace(phone),
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	id, err := s.repo.CreateProduct(ctx, p)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return id, nil
}

// ListProducts returns up to limit products, newest first.
func (s *Service) ListProducts(ctx context.Context, limit int) ([]entity.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	products, err := s.repo.ListProducts(ctx, clampLimit(limit, DefaultProductLimit))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return products, nil
}

// SearchProducts matches term against product name, location and author name.
// A blank term yields every product.
func (s *Service) SearchProducts(ctx context.Context, term string) ([]entity.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	products, err := s.repo.SearchProducts(ctx, strings.TrimSpace(term))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return products, nil
}

func clampLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}
