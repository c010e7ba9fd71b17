package repo

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/PrathmeshKudale/krishi-mitra/internal/content/entity"
)

const (
	PostsCollection    = "community_posts"
	ProductsCollection = "organic_products"
)

// MongoContentRepo stores posts and products as documents. ObjectIDs created
// in-process carry an increasing counter, so sorting by (created_at, _id)
// keeps insertion order for equal timestamps.
type MongoContentRepo struct {
	posts    *mongo.Collection
	products *mongo.Collection
	now      func() time.Time
}

func NewMongoContentRepo(db *mongo.Database) *MongoContentRepo {
	return &MongoContentRepo{
		posts:    db.Collection(PostsCollection),
		products: db.Collection(ProductsCollection),
		now:      time.Now,
	}
}

type postDoc struct {
	ID         primitive.ObjectID `bson:"_id,omitempty"`
	FarmerName string             `bson:"farmer_name"`
	Content    string             `bson:"content"`
	ImagePath  *string            `bson:"image_path"`
	VideoPath  *string            `bson:"video_path"`
	CreatedAt  time.Time          `bson:"created_at"`
}

type productDoc struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	FarmerName  string             `bson:"farmer_name"`
	ProductName string             `bson:"product_name"`
	Quantity    string             `bson:"quantity"`
	Location    string             `bson:"location"`
	PhoneNumber string             `bson:"phone_number"`
	CreatedAt   time.Time          `bson:"created_at"`
}

var newestFirst = bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}

// EnsureTable creates the created_at indexes used for listing.
func (r *MongoContentRepo) EnsureTable(ctx context.Context) error {
	model := mongo.IndexModel{Keys: newestFirst, Options: options.Index().SetName("created_desc")}
	if _, err := r.posts.Indexes().CreateOne(ctx, model); err != nil {
		return err
	}
	_, err := r.products.Indexes().CreateOne(ctx, model)
	return err
}

func (r *MongoContentRepo) CreatePost(ctx context.Context, p *entity.Post) (string, error) {
	doc := postDoc{
		ID:         primitive.NewObjectID(),
		FarmerName: p.AuthorName,
		Content:    p.Content,
		ImagePath:  p.ImageRef,
		VideoPath:  p.VideoRef,
		CreatedAt:  r.now().UTC(),
	}
	if _, err := r.posts.InsertOne(ctx, doc); err != nil {
		return "", fmt.Errorf("insert post: %w", err)
	}
	p.ID = doc.ID.Hex()
	p.CreatedAt = doc.CreatedAt
	return p.ID, nil
}

func (r *MongoContentRepo) ListPosts(ctx context.Context, limit int) ([]entity.Post, error) {
	opts := options.Find().SetSort(newestFirst).SetLimit(int64(limit))
	cur, err := r.posts.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	var docs []postDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode posts: %w", err)
	}
	out := make([]entity.Post, 0, len(docs))
	for _, d := range docs {
		out = append(out, entity.Post{
			ID:         d.ID.Hex(),
			AuthorName: d.FarmerName,
			Content:    d.Content,
			ImageRef:   d.ImagePath,
			VideoRef:   d.VideoPath,
			CreatedAt:  d.CreatedAt,
		})
	}
	return out, nil
}

func (r *MongoContentRepo) CreateProduct(ctx context.Context, p *entity.Product) (string, error) {
	doc := productDoc{
		ID:          primitive.NewObjectID(),
		FarmerName:  p.AuthorName,
		ProductName: p.ProductName,
		Quantity:    p.Quantity,
		Location:    p.Location,
		PhoneNumber: p.Phone,
		CreatedAt:   r.now().UTC(),
	}
	if _, err := r.products.InsertOne(ctx, doc); err != nil {
		return "", fmt.Errorf("insert product: %w", err)
	}
	p.ID = doc.ID.Hex()
	p.CreatedAt = doc.CreatedAt
	return p.ID, nil
}

func (r *MongoContentRepo) ListProducts(ctx context.Context, limit int) ([]entity.Product, error) {
	return r.findProducts(ctx, bson.D{}, options.Find().SetSort(newestFirst).SetLimit(int64(limit)))
}

// SearchProducts runs a case-insensitive regex $or over product_name,
// location and farmer_name. The term is quoted so it is matched literally.
func (r *MongoContentRepo) SearchProducts(ctx context.Context, term string) ([]entity.Product, error) {
	filter := bson.D{}
	if term != "" {
		rx := primitive.Regex{Pattern: regexp.QuoteMeta(term), Options: "i"}
		filter = bson.D{{Key: "$or", Value: bson.A{
			bson.D{{Key: "product_name", Value: rx}},
			bson.D{{Key: "location", Value: rx}},
			bson.D{{Key: "farmer_name", Value: rx}},
		}}}
	}
	return r.findProducts(ctx, filter, options.Find().SetSort(newestFirst))
}

func (r *MongoContentRepo) findProducts(ctx context.Context, filter bson.D, opts *options.FindOptions) ([]entity.Product, error) {
	cur, err := r.products.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find products: %w", err)
	}
	var docs []productDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode products: %w", err)
	}
	out := make([]entity.Product, 0, len(docs))
	for _, d := range docs {
		out = append(out, entity.Product{
			ID:          d.ID.Hex(),
			AuthorName:  d.FarmerName,
			ProductName: d.ProductName,
			Quantity:    d.Quantity,
			Location:    d.Location,
			Phone:       d.PhoneNumber,
			CreatedAt:   d.CreatedAt,
		})
	}
	return out, nil
}
