package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/PrathmeshKudale/krishi-mitra/internal/user/entity"
	"github.com/PrathmeshKudale/krishi-mitra/pkg/database"
	"github.com/PrathmeshKudale/krishi-mitra/pkg/utilities"
)

var (
	// ErrDuplicate is returned when the identifier already exists.
	ErrDuplicate = errors.New("duplicate identifier")
	// ErrNotFound is returned when no user matches.
	ErrNotFound = errors.New("user not found")
)

// identifierKey is the only constraint whose violation means "already registered".
var identifierKey = database.UniqueKey{Constraint: "users_mobile_email_key", Column: "users.mobile_email"}

// UserRepo provides data access for the users table using sqlx.
type UserRepo struct {
	db  *sqlx.DB
	ids *utilities.IDGenerator
}

func NewUserRepo(db *sqlx.DB, ids *utilities.IDGenerator) *UserRepo {
	if ids == nil {
		ids = utilities.DefaultIDGenerator()
	}
	return &UserRepo{db: db, ids: ids}
}

// EnsureTable creates the users table if not exists (idempotent).
// The DDL is kept to types understood by both postgres and sqlite.
func (r *UserRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS users (
  id BIGINT PRIMARY KEY,
  mobile_email TEXT NOT NULL CONSTRAINT users_mobile_email_key UNIQUE,
  password_hash TEXT NOT NULL,
  farmer_name TEXT NOT NULL,
  location TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMP NOT NULL
)`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

type userRow struct {
	ID           int64     `db:"id"`
	MobileEmail  string    `db:"mobile_email"`
	PasswordHash string    `db:"password_hash"`
	FarmerName   string    `db:"farmer_name"`
	Location     string    `db:"location"`
	CreatedAt    time.Time `db:"created_at"`
}

func (row userRow) toEntity() *entity.User {
	return &entity.User{
		ID:           strconv.FormatInt(row.ID, 10),
		Identifier:   row.MobileEmail,
		PasswordHash: row.PasswordHash,
		DisplayName:  row.FarmerName,
		Location:     row.Location,
		CreatedAt:    row.CreatedAt,
	}
}

// Create inserts a new user row. The UNIQUE constraint on mobile_email makes
// the duplicate check and the insert a single atomic statement.
func (r *UserRepo) Create(ctx context.Context, u *entity.User) (string, error) {
	row := userRow{
		ID:           r.ids.Next(),
		MobileEmail:  u.Identifier,
		PasswordHash: u.PasswordHash,
		FarmerName:   u.DisplayName,
		Location:     u.Location,
		CreatedAt:    time.Now().UTC(),
	}
	const q = `INSERT INTO users (id, mobile_email, password_hash, farmer_name, location, created_at)
		VALUES (:id, :mobile_email, :password_hash, :farmer_name, :location, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, q, row); err != nil {
		if database.IsUniqueViolation(err, identifierKey) {
			return "", ErrDuplicate
		}
		return "", fmt.Errorf("insert user: %w", err)
	}
	u.ID = strconv.FormatInt(row.ID, 10)
	u.CreatedAt = row.CreatedAt
	return u.ID, nil
}

// GetByIdentifier returns the user with the exact identifier or ErrNotFound.
func (r *UserRepo) GetByIdentifier(ctx context.Context, identifier string) (*entity.User, error) {
	q := r.db.Rebind(`SELECT id, mobile_email, password_hash, farmer_name, location, created_at
		FROM users WHERE mobile_email = ?`)
	var row userRow
	if err := r.db.GetContext(ctx, &row, q, identifier); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return row.toEntity(), nil
}

// CountByIdentifier returns how many rows carry identifier (0 or 1 while the constraint holds).
func (r *UserRepo) CountByIdentifier(ctx context.Context, identifier string) (int, error) {
	q := r.db.Rebind(`SELECT COUNT(*) FROM users WHERE mobile_email = ?`)
	var n int
	if err := r.db.GetContext(ctx, &n, q, identifier); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}
