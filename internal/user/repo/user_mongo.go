package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/PrathmeshKudale/krishi-mitra/internal/user/entity"
)

// UsersCollection is the collection name shared with the original deployment.
const UsersCollection = "users"

// MongoUserRepo stores users in the `users` collection.
type MongoUserRepo struct {
	coll *mongo.Collection
}

func NewMongoUserRepo(db *mongo.Database) *MongoUserRepo {
	return &MongoUserRepo{coll: db.Collection(UsersCollection)}
}

type userDoc struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	MobileEmail  string             `bson:"mobile_email"`
	PasswordHash string             `bson:"password_hash"`
	FarmerName   string             `bson:"farmer_name"`
	Location     string             `bson:"location"`
	CreatedAt    time.Time          `bson:"created_at"`
}

func (d userDoc) toEntity() *entity.User {
	return &entity.User{
		ID:           d.ID.Hex(),
		Identifier:   d.MobileEmail,
		PasswordHash: d.PasswordHash,
		DisplayName:  d.FarmerName,
		Location:     d.Location,
		CreatedAt:    d.CreatedAt,
	}
}

// EnsureTable creates the unique index on mobile_email. The name mirrors the
// relational adapter so both satisfy the same interface.
func (r *MongoUserRepo) EnsureTable(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "mobile_email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uniq_mobile_email"),
	})
	return err
}

// Create inserts a user document; the unique index rejects duplicates atomically.
func (r *MongoUserRepo) Create(ctx context.Context, u *entity.User) (string, error) {
	doc := userDoc{
		ID:           primitive.NewObjectID(),
		MobileEmail:  u.Identifier,
		PasswordHash: u.PasswordHash,
		FarmerName:   u.DisplayName,
		Location:     u.Location,
		CreatedAt:    time.Now().UTC(),
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", ErrDuplicate
		}
		return "", fmt.Errorf("insert user: %w", err)
	}
	u.ID = doc.ID.Hex()
	u.CreatedAt = doc.CreatedAt
	return u.ID, nil
}

func (r *MongoUserRepo) GetByIdentifier(ctx context.Context, identifier string) (*entity.User, error) {
	var doc userDoc
	err := r.coll.FindOne(ctx, bson.D{{Key: "mobile_email", Value: identifier}}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return doc.toEntity(), nil
}

func (r *MongoUserRepo) CountByIdentifier(ctx context.Context, identifier string) (int, error) {
	n, err := r.coll.CountDocuments(ctx, bson.D{{Key: "mobile_email", Value: identifier}})
	if err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return int(n), nil
}
