package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"github.com/PrathmeshKudale/krishi-mitra/internal/user/entity"
	userrepo "github.com/PrathmeshKudale/krishi-mitra/internal/user/repo"
)

// PasswordHasher defines minimal hashing interface (abstract so we can swap to argon2 later).
type PasswordHasher interface {
	Hash(pw string) (string, error)
	Verify(hash, pw string) bool
}

// BcryptHasher implementation.
type BcryptHasher struct{ Cost int }

func (b BcryptHasher) Hash(pw string) (string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(pw), cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func (b BcryptHasher) Verify(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// Repository is implemented by the sqlx and mongo adapters in the repo package.
type Repository interface {
	EnsureTable(ctx context.Context) error
	Create(ctx context.Context, u *entity.User) (string, error)
	GetByIdentifier(ctx context.Context, identifier string) (*entity.User, error)
	CountByIdentifier(ctx context.Context, identifier string) (int, error)
}

const MinPasswordLength = 6

var (
	ErrDuplicateIdentifier = errors.New("identifier already registered")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrInvalidInput        = errors.New("invalid input")
	ErrStorageUnavailable  = errors.New("user storage unavailable")
)

// UserService orchestrates registration and password authentication.
type UserService struct {
	repo    Repository
	hasher  PasswordHasher
	timeout time.Duration

	dummyOnce sync.Once
	dummyHash string
}

// NewUserService wires a repository and hasher. A zero timeout means 5s per storage call.
func NewUserService(r Repository, hasher PasswordHasher, timeout time.Duration) *UserService {
	if hasher == nil {
		hasher = BcryptHasher{Cost: 12}
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &UserService{repo: r, hasher: hasher, timeout: timeout}
}

// ValidateRegistration checks the fields the signup form requires.
func ValidateRegistration(identifier, password, displayName string) error {
	if strings.TrimSpace(identifier) == "" {
		return fmt.Errorf("%w: mobile number or email is required", ErrInvalidInput)
	}
	if strings.TrimSpace(displayName) == "" {
		return fmt.Errorf("%w: farmer name is required", ErrInvalidInput)
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidInput, MinPasswordLength)
	}
	return nil
}

// Register creates a farmer account. The identifier is trimmed but otherwise
// stored as given.
func (s *UserService) Register(ctx context.Context, identifier, password, displayName, location string) (string, error) {
	identifier = strings.TrimSpace(identifier)
	if err := ValidateRegistration(identifier, password, displayName); err != nil {
		return "", err
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	u := &entity.User{
		Identifier:   identifier,
		PasswordHash: hash,
		DisplayName:  strings.TrimSpace(displayName),
		Location:     strings.TrimSpace(location),
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	id, err := s.repo.Create(ctx, u)
	if err != nil {
		if errors.Is(err, userrepo.ErrDuplicate) {
			return "", ErrDuplicateIdentifier
		}
		return "", fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return id, nil
}

// Authenticate verifies identifier/password and returns the profile.
// Unknown identifiers and wrong passwords both return ErrInvalidCredentials.
func (s *UserService) Authenticate(ctx context.Context, identifier, password string) (*entity.Profile, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, ErrInvalidCredentials
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	u, err := s.repo.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, userrepo.ErrNotFound) {
			// burn the same bcrypt work as a real check to avoid user enumeration
			s.hasher.Verify(s.fakeHash(), password)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	if u.PasswordHash == "" || !s.hasher.Verify(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return u.Profile(), nil
}

// IsRegistered reports whether exactly one account exists for identifier.
func (s *UserService) IsRegistered(ctx context.Context, identifier string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	n, err := s.repo.CountByIdentifier(ctx, strings.TrimSpace(identifier))
	if err != nil {
		return false, fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return n == 1, nil
}

func (s *UserService) fakeHash() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = s.hasher.Hash("krishi-mitra-placeholder")
	})
	return s.dummyHash
}
