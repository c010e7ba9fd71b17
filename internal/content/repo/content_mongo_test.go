package repo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/PrathmeshKudale/krishi-mitra/internal/content/entity"
)

func productDocD(name, location, farmer string, at time.Time) bson.D {
	return bson.D{
		{Key: "_id", Value: primitive.NewObjectID()},
		{Key: "farmer_name", Value: farmer},
		{Key: "product_name", Value: name},
		{Key: "quantity", Value: "10 kg"},
		{Key: "location", Value: location},
		{Key: "phone_number", Value: "9876543210"},
		{Key: "created_at", Value: at},
	}
}

func TestMongoContentRepo(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()
	now := time.Date(2024, 7, 1, 8, 0, 0, 0, time.UTC)

	mt.Run("create post", func(mt *mtest.T) {
		r := NewMongoContentRepo(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		video := "videos/clip.mp4"
		p := &entity.Post{AuthorName: "Kiran", Content: "Harvest done", VideoRef: &video}
		id, err := r.CreatePost(ctx, p)
		require.NoError(mt, err)
		assert.Len(mt, id, 24)
		assert.False(mt, p.CreatedAt.IsZero())
	})

	mt.Run("list posts", func(mt *mtest.T) {
		r := NewMongoContentRepo(mt.DB)
		img := "images/a.jpg"
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "krishi_mitra.community_posts", mtest.FirstBatch,
			bson.D{
				{Key: "_id", Value: primitive.NewObjectID()},
				{Key: "farmer_name", Value: "Kiran"},
				{Key: "content", Value: "newer"},
				{Key: "image_path", Value: img},
				{Key: "video_path", Value: nil},
				{Key: "created_at", Value: now.Add(time.Minute)},
			},
			bson.D{
				{Key: "_id", Value: primitive.NewObjectID()},
				{Key: "farmer_name", Value: "Kiran"},
				{Key: "content", Value: "older"},
				{Key: "image_path", Value: nil},
				{Key: "video_path", Value: nil},
				{Key: "created_at", Value: now},
			},
		))

		posts, err := r.ListPosts(ctx, 50)
		require.NoError(mt, err)
		require.Len(mt, posts, 2)
		assert.Equal(mt, "newer", posts[0].Content)
		require.NotNil(mt, posts[0].ImageRef)
		assert.Equal(mt, img, *posts[0].ImageRef)
		assert.Nil(mt, posts[1].ImageRef)
	})

	mt.Run("create product", func(mt *mtest.T) {
		r := NewMongoContentRepo(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		_, err := r.CreateProduct(ctx, &entity.Product{AuthorName: "Lata", ProductName: "Jaggery", Quantity: "5 kg", Location: "Kolhapur", Phone: "9876543210"})
		assert.NoError(mt, err)
	})

	mt.Run("search products", func(mt *mtest.T) {
		r := NewMongoContentRepo(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "krishi_mitra.organic_products", mtest.FirstBatch,
			productDocD("Organic Wheat", "Pune", "Ganesh", now),
		))

		got, err := r.SearchProducts(ctx, "pune")
		require.NoError(mt, err)
		require.Len(mt, got, 1)
		assert.Equal(mt, "Organic Wheat", got[0].ProductName)
		assert.Equal(mt, "9876543210", got[0].Phone)
	})

	mt.Run("list products empty", func(mt *mtest.T) {
		r := NewMongoContentRepo(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "krishi_mitra.organic_products", mtest.FirstBatch))

		got, err := r.ListProducts(ctx, 100)
		require.NoError(mt, err)
		assert.Empty(mt, got)
	})

	mt.Run("server error", func(mt *mtest.T) {
		r := NewMongoContentRepo(mt.DB)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 2, Message: "bad query", Name: "BadValue"}))

		_, err := r.ListProducts(ctx, 100)
		assert.Error(mt, err)
	})

	mt.Run("equal timestamps keep insertion order", func(mt *mtest.T) {
		r := NewMongoContentRepo(mt.DB)
		r.now = func() time.Time { return now }
		mt.AddMockResponses(mtest.CreateSuccessResponse(), mtest.CreateSuccessResponse())

		first := &entity.Post{AuthorName: "Kiran", Content: "first"}
		second := &entity.Post{AuthorName: "Kiran", Content: "second"}
		_, err := r.CreatePost(ctx, first)
		require.NoError(mt, err)
		_, err = r.CreatePost(ctx, second)
		require.NoError(mt, err)
		assert.True(mt, first.CreatedAt.Equal(second.CreatedAt))
		// the _id tie-breaker sorts the later insert first
		assert.Less(mt, first.ID, second.ID)

		mt.AddMockResponses(mtest.CreateCursorResponse(0, "krishi_mitra.community_posts", mtest.FirstBatch))
		_, err = r.ListPosts(ctx, 10)
		require.NoError(mt, err)

		var find bson.Raw
		for evt := mt.GetStartedEvent(); evt != nil; evt = mt.GetStartedEvent() {
			if evt.CommandName == "find" {
				find = evt.Command
			}
		}
		require.NotNil(mt, find)
		var sort bson.D
		require.NoError(mt, bson.Unmarshal(find.Lookup("sort").Document(), &sort))
		require.Len(mt, sort, 2)
		assert.Equal(mt, "created_at", sort[0].Key)
		assert.EqualValues(mt, -1, sort[0].Value)
		assert.Equal(mt, "_id", sort[1].Key)
		assert.EqualValues(mt, -1, sort[1].Value)
	})

	mt.Run("ensure indexes", func(mt *mtest.T) {
		r := NewMongoContentRepo(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(), mtest.CreateSuccessResponse())
		assert.NoError(mt, r.EnsureTable(ctx))
	})
}
