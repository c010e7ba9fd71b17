// Package backend opens the configured storage engine and exposes it through
// the user and content repository interfaces.
package backend

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/PrathmeshKudale/krishi-mitra/internal/content"
	contentrepo "github.com/PrathmeshKudale/krishi-mitra/internal/content/repo"
	"github.com/PrathmeshKudale/krishi-mitra/internal/user"
	userrepo "github.com/PrathmeshKudale/krishi-mitra/internal/user/repo"
	"github.com/PrathmeshKudale/krishi-mitra/pkg/database"
	"github.com/PrathmeshKudale/krishi-mitra/pkg/utilities"
)

// Backend bundles the repositories of one storage engine.
type Backend struct {
	Kind    string
	Users   user.Repository
	Content content.Repository

	ping  func(context.Context) error
	close func(context.Context) error
}

// Open connects to cfg.Backend ("sql" or "mongo").
func Open(cfg database.Config) (*Backend, error) {
	switch cfg.Backend {
	case "", database.BackendSQL:
		db, err := database.Connect(cfg)
		if err != nil {
			return nil, err
		}
		return FromSQL(db, utilities.DefaultIDGenerator()), nil
	case database.BackendMongo:
		client, db, err := database.ConnectMongo(cfg)
		if err != nil {
			return nil, err
		}
		b := FromMongo(db)
		b.ping = func(ctx context.Context) error { return client.Ping(ctx, nil) }
		b.close = client.Disconnect
		return b, nil
	default:
		return nil, fmt.Errorf("unknown database backend %q", cfg.Backend)
	}
}

// FromSQL builds a relational backend over an open pool.
func FromSQL(db *sqlx.DB, ids *utilities.IDGenerator) *Backend {
	return &Backend{
		Kind:    database.BackendSQL,
		Users:   userrepo.NewUserRepo(db, ids),
		Content: contentrepo.NewContentRepo(db, ids),
		ping:    db.PingContext,
		close:   func(context.Context) error { return db.Close() },
	}
}

// FromMongo builds a document backend over db. The caller keeps ownership of the client.
func FromMongo(db *mongo.Database) *Backend {
	return &Backend{
		Kind:    database.BackendMongo,
		Users:   userrepo.NewMongoUserRepo(db),
		Content: contentrepo.NewMongoContentRepo(db),
		ping:    func(ctx context.Context) error { return db.Client().Ping(ctx, nil) },
		close:   func(context.Context) error { return nil },
	}
}

// EnsureSchema creates tables, collections and indexes. It is idempotent.
func (b *Backend) EnsureSchema(ctx context.Context) error {
	if err := b.Users.EnsureTable(ctx); err != nil {
		return fmt.Errorf("ensure users: %w", err)
	}
	if err := b.Content.EnsureTable(ctx); err != nil {
		return fmt.Errorf("ensure content: %w", err)
	}
	return nil
}

// Ping checks the store is reachable.
func (b *Backend) Ping(ctx context.Context) error {
	return b.ping(ctx)
}

// Close releases the pool or client.
func (b *Backend) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return b.close(ctx)
}
