package repo

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/PrathmeshKudale/krishi-mitra/internal/content/entity"
	"github.com/PrathmeshKudale/krishi-mitra/pkg/utilities"
)

// ContentRepo stores posts and products in community_posts / organic_products.
// Ids are snowflake values from one node, so ordering by (created_at, id)
// falls back to insertion order on equal timestamps.
type ContentRepo struct {
	db  *sqlx.DB
	ids *utilities.IDGenerator
	now func() time.Time
}

func NewContentRepo(db *sqlx.DB, ids *utilities.IDGenerator) *ContentRepo {
	if ids == nil {
		ids = utilities.DefaultIDGenerator()
	}
	return &ContentRepo{db: db, ids: ids, now: time.Now}
}

// EnsureTable creates both tables and their ordering indexes.
func (r *ContentRepo) EnsureTable(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS community_posts (
  id BIGINT PRIMARY KEY,
  farmer_name TEXT NOT NULL,
  content TEXT NOT NULL,
  image_path TEXT,
  video_path TEXT,
  created_at TIMESTAMP NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_community_posts_created ON community_posts (created_at, id)`,
		`CREATE TABLE IF NOT EXISTS organic_products (
  id BIGINT PRIMARY KEY,
  farmer_name TEXT NOT NULL,
  product_name TEXT NOT NULL,
  quantity TEXT NOT NULL,
  location TEXT NOT NULL,
  phone_number TEXT NOT NULL,
  created_at TIMESTAMP NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_organic_products_created ON organic_products (created_at, id)`,
	}
	for _, s := range stmts {
		if _, err := r.db.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	return nil
}

type postRow struct {
	ID         int64     `db:"id"`
	FarmerName string    `db:"farmer_name"`
	Content    string    `db:"content"`
	ImagePath  *string   `db:"image_path"`
	VideoPath  *string   `db:"video_path"`
	CreatedAt  time.Time `db:"created_at"`
}

func (row postRow) toEntity() entity.Post {
	return entity.Post{
		ID:         strconv.FormatInt(row.ID, 10),
		AuthorName: row.FarmerName,
		Content:    row.Content,
		ImageRef:   row.ImagePath,
		VideoRef:   row.VideoPath,
		CreatedAt:  row.CreatedAt,
	}
}

type productRow struct {
	ID          int64     `db:"id"`
	FarmerName  string    `db:"farmer_name"`
	ProductName string    `db:"product_name"`
	Quantity    string    `db:"quantity"`
	Location    string    `db:"location"`
	PhoneNumber string    `db:"phone_number"`
	CreatedAt   time.Time `db:"created_at"`
}

func (row productRow) toEntity() entity.Product {
	return entity.Product{
		ID:          strconv.FormatInt(row.ID, 10),
		AuthorName:  row.FarmerName,
		ProductName: row.ProductName,
		Quantity:    row.Quantity,
		Location:    row.Location,
		Phone:       row.PhoneNumber,
		CreatedAt:   row.CreatedAt,
	}
}

// CreatePost inserts p and fills its id and timestamp.
func (r *ContentRepo) CreatePost(ctx context.Context, p *entity.Post) (string, error) {
	row := postRow{
		ID:         r.ids.Next(),
		FarmerName: p.AuthorName,
		Content:    p.Content,
		ImagePath:  p.ImageRef,
		VideoPath:  p.VideoRef,
		CreatedAt:  r.now().UTC(),
	}
	const q = `INSERT INTO community_posts (id, farmer_name, content, image_path, video_path, created_at)
		VALUES (:id, :farmer_name, :content, :image_path, :video_path, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, q, row); err != nil {
		return "", fmt.Errorf("insert post: %w", err)
	}
	p.ID = strconv.FormatInt(row.ID, 10)
	p.CreatedAt = row.CreatedAt
	return p.ID, nil
}

// ListPosts returns at most limit posts, newest first.
func (r *ContentRepo) ListPosts(ctx context.Context, limit int) ([]entity.Post, error) {
	q := r.db.Rebind(`SELECT id, farmer_name, content, image_path, video_path, created_at
		FROM community_posts ORDER BY created_at DESC, id DESC LIMIT ?`)
	var rows []postRow
	if err := r.db.SelectContext(ctx, &rows, q, limit); err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	out := make([]entity.Post, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toEntity())
	}
	return out, nil
}

// CreateProduct inserts p and fills its id and timestamp.
func (r *ContentRepo) CreateProduct(ctx context.Context, p *entity.Product) (string, error) {
	row := productRow{
		ID:          r.ids.Next(),
		FarmerName:  p.AuthorName,
		ProductName: p.ProductName,
		Quantity:    p.Quantity,
		Location:    p.Location,
		PhoneNumber: p.Phone,
		CreatedAt:   r.now().UTC(),
	}
	const q = `INSERT INTO organic_products (id, farmer_name, product_name, quantity, location, phone_number, created_at)
		VALUES (:id, :farmer_name, :product_name, :quantity, :location, :phone_number, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, q, row); err != nil {
		return "", fmt.Errorf("insert product: %w", err)
	}
	p.ID = strconv.FormatInt(row.ID, 10)
	p.CreatedAt = row.CreatedAt
	return p.ID, nil
}

const productColumns = `id, farmer_name, product_name, quantity, location, phone_number, created_at`

// ListProducts returns at most limit products, newest first.
func (r *ContentRepo) ListProducts(ctx context.Context, limit int) ([]entity.Product, error) {
	q := r.db.Rebind(`SELECT ` + productColumns + ` FROM organic_products
		ORDER BY created_at DESC, id DESC LIMIT ?`)
	return r.selectProducts(ctx, q, limit)
}

// SearchProducts matches term case-insensitively against product name,
// location and farmer name. An empty term returns every product.
// On sqlite the match folds ASCII letters only, since its LOWER() does.
func (r *ContentRepo) SearchProducts(ctx context.Context, term string) ([]entity.Product, error) {
	if term == "" {
		q := `SELECT ` + productColumns + ` FROM organic_products ORDER BY created_at DESC, id DESC`
		return r.selectProducts(ctx, q)
	}
	fold := strings.ToLower
	if r.db.DriverName() == "sqlite" {
		fold = asciiLower
	}
	pattern := "%" + escapeLike(fold(term)) + "%"
	q := r.db.Rebind(`SELECT ` + productColumns + ` FROM organic_products
		WHERE LOWER(product_name) LIKE ? ESCAPE '\'
		   OR LOWER(location) LIKE ? ESCAPE '\'
		   OR LOWER(farmer_name) LIKE ? ESCAPE '\'
		ORDER BY created_at DESC, id DESC`)
	return r.selectProducts(ctx, q, pattern, pattern, pattern)
}

func (r *ContentRepo) selectProducts(ctx context.Context, q string, args ...any) ([]entity.Product, error) {
	var rows []productRow
	if err := r.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	out := make([]entity.Product, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toEntity())
	}
	return out, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }

func asciiLower(s string) string {
	return strings.Map(func(r rune) rune {
		if 'A' <= r && r <= 'Z' {
			return r + ('a' - 'A')
		}
		return r
	}, s)
}
