package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/genai"

	"github.com/PrathmeshKudale/krishi-mitra/internal/assistant"
	"github.com/PrathmeshKudale/krishi-mitra/internal/backend"
	"github.com/PrathmeshKudale/krishi-mitra/internal/content"
	"github.com/PrathmeshKudale/krishi-mitra/internal/content/entity"
	"github.com/PrathmeshKudale/krishi-mitra/internal/media"
	"github.com/PrathmeshKudale/krishi-mitra/internal/session"
	"github.com/PrathmeshKudale/krishi-mitra/internal/user"
	"github.com/PrathmeshKudale/krishi-mitra/pkg/database"
)

type echoGenerator struct{}

func (echoGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: genai.NewContentFromText("mr", genai.RoleModel)}},
	}, nil
}

func newTestServer(t *testing.T, ping func(context.Context) error) *httptest.Server {
	t.Helper()
	return newTestServerIn(t, t.TempDir(), ping)
}

// newTestServerIn keeps the database and uploads/ under dir.
func newTestServerIn(t *testing.T, dir string, ping func(context.Context) error) *httptest.Server {
	t.Helper()
	b, err := backend.Open(database.Config{Backend: database.BackendSQL, Driver: "sqlite", DSN: filepath.Join(dir, "krishi.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	require.NoError(t, b.EnsureSchema(context.Background()))

	sessions, err := session.NewService(session.Config{Secret: "test-secret", TTL: time.Hour})
	require.NoError(t, err)
	logger := zap.NewNop().Sugar()

	if ping == nil {
		ping = b.Ping
	}
	srv := httptest.NewServer(RegisterRoutes(Deps{
		Logger:   logger,
		Users:    user.NewUserService(b.Users, user.BcryptHasher{Cost: bcrypt.MinCost}, time.Second),
		Content:  content.NewService(b.Content, time.Second),
		Media:    media.NewIntake(media.Config{Root: filepath.Join(dir, "uploads")}),
		AI:       assistant.NewGatewayWithGenerator(echoGenerator{}, assistant.Config{}, logger),
		Sessions: sessions,
		Ping:     ping,
	}))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, token, contentType string, body []byte) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func registerAndLogin(t *testing.T, base string) string {
	t.Helper()
	resp := do(t, http.MethodPost, base+"/api/auth/register", "", "application/json",
		[]byte(`{"identifier":"9876543210","password":"secret1","display_name":"Ramesh","location":"Pune"}`))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = do(t, http.MethodPost, base+"/api/auth/login", "", "application/json",
		[]byte(`{"identifier":"9876543210","password":"secret1"}`))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var login user.LoginResponse
	decode(t, resp, &login)
	require.NotEmpty(t, login.Token)
	assert.Equal(t, "Ramesh", login.User.DisplayName)
	return login.Token
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, nil)
	resp := do(t, http.MethodGet, srv.URL+"/api/health", "", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(requestIDHeader))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
}

func TestHealthReportsStorageOutage(t *testing.T) {
	srv := newTestServer(t, func(context.Context) error { return errors.New("down") })
	resp := do(t, http.MethodGet, srv.URL+"/api/health", "", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestRequestIDIsEchoed(t *testing.T) {
	srv := newTestServer(t, nil)
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/health", nil)
	require.NoError(t, err)
	req.Header.Set(requestIDHeader, "abc-123")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "abc-123", resp.Header.Get(requestIDHeader))
}

func TestAuthFlow(t *testing.T) {
	srv := newTestServer(t, nil)
	token := registerAndLogin(t, srv.URL)

	t.Run("duplicate registration conflicts", func(t *testing.T) {
		resp := do(t, http.MethodPost, srv.URL+"/api/auth/register", "", "application/json",
			[]byte(`{"identifier":"9876543210","password":"another","display_name":"Other"}`))
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("wrong password", func(t *testing.T) {
		resp := do(t, http.MethodPost, srv.URL+"/api/auth/login", "", "application/json",
			[]byte(`{"identifier":"9876543210","password":"wrong!"}`))
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("me requires token", func(t *testing.T) {
		resp := do(t, http.MethodGet, srv.URL+"/api/me", "", "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		resp = do(t, http.MethodGet, srv.URL+"/api/me", "not-a-token", "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("me returns identity", func(t *testing.T) {
		resp := do(t, http.MethodGet, srv.URL+"/api/me", token, "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var id session.Identity
		decode(t, resp, &id)
		assert.Equal(t, "9876543210", id.Identifier)
		assert.Equal(t, "Pune", id.Location)
	})
}

func TestPostWithImageRoundTrip(t *testing.T) {
	srv := newTestServer(t, nil)
	token := registerAndLogin(t, srv.URL)
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("content", "Drip irrigation saved half my water this season."))
	fw, err := mw.CreateFormFile("image", "field.png")
	require.NoError(t, err)
	_, err = fw.Write(png)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp := do(t, http.MethodPost, srv.URL+"/api/posts", token, mw.FormDataContentType(), body.Bytes())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created content.CreatePostResponse
	decode(t, resp, &created)
	require.NotNil(t, created.ImageRef)
	assert.Nil(t, created.VideoRef)

	resp = do(t, http.MethodGet, srv.URL+"/api/posts?limit=5", token, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var posts []entity.Post
	decode(t, resp, &posts)
	require.Len(t, posts, 1)
	assert.Equal(t, "Ramesh", posts[0].AuthorName)
	require.NotNil(t, posts[0].ImageRef)
	assert.Equal(t, *created.ImageRef, *posts[0].ImageRef)

	resp = do(t, http.MethodGet, srv.URL+"/api/media/"+*created.ImageRef, token, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got bytes.Buffer
	_, err = got.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, png, got.Bytes())
}

func TestPostRejectsBadImage(t *testing.T) {
	srv := newTestServer(t, nil)
	token := registerAndLogin(t, srv.URL)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("content", "see attached"))
	fw, err := mw.CreateFormFile("image", "notes.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte("plain text"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp := do(t, http.MethodPost, srv.URL+"/api/posts", token, mw.FormDataContentType(), body.Bytes())
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/api/posts", token, "", nil)
	var posts []entity.Post
	decode(t, resp, &posts)
	assert.Empty(t, posts)
}

func TestRejectedPostLeavesNoUploads(t *testing.T) {
	dir := t.TempDir()
	srv := newTestServerIn(t, dir, nil)
	token := registerAndLogin(t, srv.URL)
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

	send := func(content string, video string) int {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		require.NoError(t, mw.WriteField("content", content))
		fw, err := mw.CreateFormFile("image", "field.png")
		require.NoError(t, err)
		_, err = fw.Write(png)
		require.NoError(t, err)
		if video != "" {
			fw, err = mw.CreateFormFile("video", video)
			require.NoError(t, err)
			_, err = fw.Write([]byte("not really a video"))
			require.NoError(t, err)
		}
		require.NoError(t, mw.Close())
		return do(t, http.MethodPost, srv.URL+"/api/posts", token, mw.FormDataContentType(), body.Bytes()).StatusCode
	}

	assert.Equal(t, http.StatusBadRequest, send("   ", ""))
	assert.Equal(t, http.StatusBadRequest, send("new seeds", "clip.avi"))

	entries, err := os.ReadDir(filepath.Join(dir, "uploads", "images"))
	if !errors.Is(err, os.ErrNotExist) {
		require.NoError(t, err)
	}
	assert.Empty(t, entries)
}

func TestProductsListAndSearch(t *testing.T) {
	srv := newTestServer(t, nil)
	token := registerAndLogin(t, srv.URL)

	for _, p := range []string{
		`{"product_name":"Organic Jaggery","quantity":"20 kg","location":"Kolhapur","phone":"9876543210"}`,
		`{"product_name":"Turmeric","quantity":"5 kg","phone":"+91 98765 43210"}`,
	} {
		resp := do(t, http.MethodPost, srv.URL+"/api/products", token, "application/json", []byte(p))
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}
	resp := do(t, http.MethodPost, srv.URL+"/api/products", token, "application/json",
		[]byte(`{"product_name":"Rice","quantity":"1 q","location":"Pune","phone":"12345"}`))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, http.MethodGet, srv.URL+"/api/products", token, "", nil)
	var all []entity.Product
	decode(t, resp, &all)
	require.Len(t, all, 2)
	assert.Equal(t, "Turmeric", all[0].ProductName)
	assert.Equal(t, "Pune", all[0].Location)

	resp = do(t, http.MethodGet, srv.URL+"/api/products?q=JAGGERY", token, "", nil)
	var hits []entity.Product
	decode(t, resp, &hits)
	require.Len(t, hits, 1)
	assert.Equal(t, "Organic Jaggery", hits[0].ProductName)
}

func TestAssistantRoutes(t *testing.T) {
	srv := newTestServer(t, nil)
	token := registerAndLogin(t, srv.URL)

	resp := do(t, http.MethodPost, srv.URL+"/api/assistant/detect", token, "application/json", []byte(`{"text":"पाणी"}`))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var detected map[string]string
	decode(t, resp, &detected)
	assert.Equal(t, "mr", detected["language"])

	resp = do(t, http.MethodGet, srv.URL+"/api/assistant/schemes/popular", token, "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = do(t, http.MethodPost, srv.URL+"/api/assistant/ask", "", "application/json", []byte(`{"query":"x"}`))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
