package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/inkpad/blogapi/internal/auth"
	"github.com/inkpad/blogapi/internal/cache"
	"github.com/inkpad/blogapi/internal/domain/post"
	"github.com/inkpad/blogapi/internal/http/handlers"
	"github.com/inkpad/blogapi/internal/http/middlewares"
)

type fakePostsRepo struct {
	createFn func(ctx context.Context, authorID string, req post.CreatePostRequest) (post.Post, error)
	listFn   func(ctx context.Context) ([]post.Post, error)
	getFn    func(ctx context.Context, id string) (post.Post, error)
	updateFn func(ctx context.Context, id string, req post.UpdatePostRequest) (post.Post, error)
	deleteFn func(ctx context.Context, id string) error
}

func (f *fakePostsRepo) Create(ctx context.Context, authorID string, req post.CreatePostRequest) (post.Post, error) {
	if f.createFn != nil {
		return f.createFn(ctx, authorID, req)
	}

	return post.Post{}, nil
}

func (f *fakePostsRepo) ListWithAuthors(ctx context.Context) ([]post.Post, error) {
	if f.listFn != nil {
		return f.listFn(ctx)
	}

	return []post.Post{}, nil
}

func (f *fakePostsRepo) GetByID(ctx context.Context, id string) (post.Post, error) {
	if f.getFn != nil {
		return f.getFn(ctx, id)
	}

	return post.Post{}, nil
}

func (f *fakePostsRepo) Update(ctx context.Context, id string, req post.UpdatePostRequest) (post.Post, error) {
	if f.updateFn != nil {
		return f.updateFn(ctx, id, req)
	}

	return post.Post{}, nil
}

func (f *fakePostsRepo) Delete(ctx context.Context, id string) error {
	if f.deleteFn != nil {
		return f.deleteFn(ctx, id)
	}

	return nil
}

var postsTestJWT = auth.NewManager("test-secret-key", time.Hour)

func bearerFor(t *testing.T, userID string) string {
	t.Helper()

	token, err := postsTestJWT.GenerateToken(userID)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	return "Bearer " + token
}

// mounts a posts handler behind the real auth middleware
func protectedRouter(method, path string, h gin.HandlerFunc) *gin.Engine {
	r := gin.New()

	mw := middlewares.NewAuthMiddleware(postsTestJWT)
	r.Handle(method, path, mw.RequireAuth(), h)

	return r
}

func TestCreatePostHandler(t *testing.T) {
	now := time.Now().UTC()

	tests := []struct {
		name           string
		body           string
		authHeader     string
		repoSetUp      func(*fakePostsRepo)
		wantStatusCode int
	}{
		{
			name:       "success",
			body:       `{"title": "Hi", "content": "world"}`,
			authHeader: bearerFor(t, "user-a"),
			repoSetUp: func(f *fakePostsRepo) {
				f.createFn = func(ctx context.Context, authorID string, req post.CreatePostRequest) (post.Post, error) {
					return post.Post{
						ID:        uuid.NewString(),
						Title:     req.Title,
						Content:   req.Content,
						AuthorID:  authorID,
						CreatedAt: now,
						UpdatedAt: now,
					}, nil
				}
			},
			wantStatusCode: http.StatusCreated,
		},
		{
			name:           "no_token",
			body:           `{"title": "Hi", "content": "world"}`,
			authHeader:     "",
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "bad_token",
			body:           `{"title": "Hi", "content": "world"}`,
			authHeader:     "Bearer not-a-token",
			wantStatusCode: http.StatusForbidden,
		},
		{
			name:           "missing_title",
			body:           `{"content": "world"}`,
			authHeader:     bearerFor(t, "user-a"),
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "missing_content",
			body:           `{"title": "Hi"}`,
			authHeader:     bearerFor(t, "user-a"),
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:       "repo_error",
			body:       `{"title": "Hi", "content": "world"}`,
			authHeader: bearerFor(t, "user-a"),
			repoSetUp: func(f *fakePostsRepo) {
				f.createFn = func(ctx context.Context, authorID string, req post.CreatePostRequest) (post.Post, error) {
					return post.Post{}, errors.New("db error")
				}
			},
			wantStatusCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			fakeRepo := &fakePostsRepo{}

			if tt.repoSetUp != nil {
				tt.repoSetUp(fakeRepo)
			}

			h := handlers.NewPostsHandler(fakeRepo)
			r := protectedRouter(http.MethodPost, "/posts", h.CreatePost)

			req := httptest.NewRequest(http.MethodPost, "/posts", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")

			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}

			if tt.wantStatusCode == http.StatusCreated {
				var created post.Post

				if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
					t.Fatalf("failed to unmarshal response: %v", err)
				}

				if created.AuthorID != "user-a" {
					t.Fatalf("got authorId %q, want user-a", created.AuthorID)
				}
			}
		})
	}
}

func TestListPostsHandlerIsPublic(t *testing.T) {
	now := time.Now().UTC()

	fakeRepo := &fakePostsRepo{
		listFn: func(ctx context.Context) ([]post.Post, error) {
			return []post.Post{
				{
					ID:        "p2",
					Title:     "Second",
					Content:   "b",
					AuthorID:  "user-a",
					CreatedAt: now,
					UpdatedAt: now,
					Author:    &post.Author{Name: "Alice", Email: "a@x.com"},
				},
				{
					ID:        "p1",
					Title:     "First",
					Content:   "a",
					AuthorID:  "user-a",
					CreatedAt: now.Add(-time.Hour),
					UpdatedAt: now.Add(-time.Hour),
					Author:    &post.Author{Name: "Alice", Email: "a@x.com"},
				},
			}, nil
		},
	}

	h := handlers.NewPostsHandler(fakeRepo)
	r := setupRouter(http.MethodGet, "/posts", h.ListPosts)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/posts", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200, body=%s", w.Code, w.Body.String())
	}

	var posts []post.Post
	if err := json.Unmarshal(w.Body.Bytes(), &posts); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}

	if len(posts) != 2 || posts[0].ID != "p2" || posts[1].ID != "p1" {
		t.Fatalf("unexpected list order: %+v", posts)
	}

	if posts[0].Author == nil || posts[0].Author.Name != "Alice" {
		t.Fatalf("expected embedded author, got %+v", posts[0].Author)
	}
}

func TestListPostsHandlerRepoError(t *testing.T) {
	fakeRepo := &fakePostsRepo{
		listFn: func(ctx context.Context) ([]post.Post, error) {
			return nil, errors.New("db error")
		},
	}

	h := handlers.NewPostsHandler(fakeRepo)
	r := setupRouter(http.MethodGet, "/posts", h.ListPosts)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/posts", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("got status %d, want 500, body=%s", w.Code, w.Body.String())
	}
}

func TestUpdatePostHandler(t *testing.T) {
	now := time.Now().UTC()
	postID := uuid.NewString()

	owned := post.Post{
		ID:        postID,
		Title:     "Hi",
		Content:   "world",
		AuthorID:  "user-a",
		CreatedAt: now,
		UpdatedAt: now,
	}

	tests := []struct {
		name           string
		authHeader     string
		repoSetUp      func(*fakePostsRepo)
		wantStatusCode int
	}{
		{
			name:       "success_as_owner",
			authHeader: bearerFor(t, "user-a"),
			repoSetUp: func(f *fakePostsRepo) {
				f.getFn = func(ctx context.Context, id string) (post.Post, error) {
					return owned, nil
				}
				f.updateFn = func(ctx context.Context, id string, req post.UpdatePostRequest) (post.Post, error) {
					p := owned
					p.Title = req.Title
					p.Content = req.Content
					p.UpdatedAt = time.Now().UTC()
					return p, nil
				}
			},
			wantStatusCode: http.StatusOK,
		},
		{
			name:       "forbidden_for_other_user",
			authHeader: bearerFor(t, "user-b"),
			repoSetUp: func(f *fakePostsRepo) {
				f.getFn = func(ctx context.Context, id string) (post.Post, error) {
					return owned, nil
				}
				f.updateFn = func(ctx context.Context, id string, req post.UpdatePostRequest) (post.Post, error) {
					return post.Post{}, errors.New("update must not be reached")
				}
			},
			wantStatusCode: http.StatusForbidden,
		},
		{
			name:       "not_found",
			authHeader: bearerFor(t, "user-a"),
			repoSetUp: func(f *fakePostsRepo) {
				f.getFn = func(ctx context.Context, id string) (post.Post, error) {
					return post.Post{}, post.ErrNotFound
				}
			},
			wantStatusCode: http.StatusNotFound,
		},
		{
			name:       "repo_error",
			authHeader: bearerFor(t, "user-a"),
			repoSetUp: func(f *fakePostsRepo) {
				f.getFn = func(ctx context.Context, id string) (post.Post, error) {
					return owned, nil
				}
				f.updateFn = func(ctx context.Context, id string, req post.UpdatePostRequest) (post.Post, error) {
					return post.Post{}, errors.New("db error")
				}
			},
			wantStatusCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			fakeRepo := &fakePostsRepo{}

			if tt.repoSetUp != nil {
				tt.repoSetUp(fakeRepo)
			}

			h := handlers.NewPostsHandler(fakeRepo)
			r := protectedRouter(http.MethodPut, "/posts/:id", h.UpdatePost)

			req := httptest.NewRequest(http.MethodPut, "/posts/"+postID, bytes.NewBufferString(`{"title": "New", "content": "body"}`))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", tt.authHeader)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
		})
	}
}

func TestDeletePostHandler(t *testing.T) {
	now := time.Now().UTC()
	postID := uuid.NewString()

	owned := post.Post{
		ID:        postID,
		Title:     "Hi",
		Content:   "world",
		AuthorID:  "user-a",
		CreatedAt: now,
		UpdatedAt: now,
	}

	tests := []struct {
		name           string
		authHeader     string
		repoSetUp      func(*fakePostsRepo)
		wantStatusCode int
	}{
		{
			name:       "success_as_owner",
			authHeader: bearerFor(t, "user-a"),
			repoSetUp: func(f *fakePostsRepo) {
				f.getFn = func(ctx context.Context, id string) (post.Post, error) {
					return owned, nil
				}
			},
			wantStatusCode: http.StatusOK,
		},
		{
			name:       "forbidden_for_other_user",
			authHeader: bearerFor(t, "user-b"),
			repoSetUp: func(f *fakePostsRepo) {
				f.getFn = func(ctx context.Context, id string) (post.Post, error) {
					return owned, nil
				}
				f.deleteFn = func(ctx context.Context, id string) error {
					return errors.New("delete must not be reached")
				}
			},
			wantStatusCode: http.StatusForbidden,
		},
		{
			name:       "not_found",
			authHeader: bearerFor(t, "user-a"),
			repoSetUp: func(f *fakePostsRepo) {
				f.getFn = func(ctx context.Context, id string) (post.Post, error) {
					return post.Post{}, post.ErrNotFound
				}
			},
			wantStatusCode: http.StatusNotFound,
		},
		{
			name:       "repo_error",
			authHeader: bearerFor(t, "user-a"),
			repoSetUp: func(f *fakePostsRepo) {
				f.getFn = func(ctx context.Context, id string) (post.Post, error) {
					return owned, nil
				}
				f.deleteFn = func(ctx context.Context, id string) error {
					return errors.New("db error")
				}
			},
			wantStatusCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			fakeRepo := &fakePostsRepo{}

			if tt.repoSetUp != nil {
				tt.repoSetUp(fakeRepo)
			}

			h := handlers.NewPostsHandler(fakeRepo)
			r := protectedRouter(http.MethodDelete, "/posts/:id", h.DeletePost)

			req := httptest.NewRequest(http.MethodDelete, "/posts/"+postID, nil)
			req.Header.Set("Authorization", tt.authHeader)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}

			if tt.wantStatusCode == http.StatusOK {
				var resp struct {
					Message string `json:"message"`
				}

				if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
					t.Fatalf("failed to unmarshal response: %v", err)
				}

				if resp.Message == "" {
					t.Fatalf("expected a confirmation message, body=%s", w.Body.String())
				}
			}
		})
	}
}

func TestListPostsHandler_CacheHit(t *testing.T) {
	now := time.Now().UTC()

	fakeRepo := &fakePostsRepo{}
	c := cache.New(30 * time.Second)

	calls := 0
	fakeRepo.listFn = func(ctx context.Context) ([]post.Post, error) {
		calls++
		return []post.Post{
			{ID: "p1", Title: "Hi", Content: "world", AuthorID: "user-a", CreatedAt: now, UpdatedAt: now},
		}, nil
	}

	h := handlers.NewPostsHandlerWithCache(fakeRepo, c, nil)
	r := setupRouter(http.MethodGet, "/posts", h.ListPosts)

	// First request: cache miss -> repo called
	w1 := httptest.NewRecorder()
	r.ServeHTTP(w1, httptest.NewRequest(http.MethodGet, "/posts", nil))

	if w1.Code != http.StatusOK {
		t.Fatalf("first call got %d body=%s", w1.Code, w1.Body.String())
	}

	// Second request: cache hit -> repo should NOT be called again
	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, httptest.NewRequest(http.MethodGet, "/posts", nil))

	if w2.Code != http.StatusOK {
		t.Fatalf("second call got %d body=%s", w2.Code, w2.Body.String())
	}

	if calls != 1 {
		t.Fatalf("expected repo calls=1, got %d", calls)
	}

	if w1.Body.String() != w2.Body.String() {
		t.Fatalf("cached body differs from fresh body")
	}
}

func TestListPostsHandler_ETagNotModified(t *testing.T) {
	now := time.Now().UTC()

	fakeRepo := &fakePostsRepo{
		listFn: func(ctx context.Context) ([]post.Post, error) {
			return []post.Post{
				{ID: "p1", Title: "Hi", Content: "world", AuthorID: "user-a", CreatedAt: now, UpdatedAt: now},
			}, nil
		},
	}

	h := handlers.NewPostsHandler(fakeRepo)
	r := setupRouter(http.MethodGet, "/posts", h.ListPosts)

	w1 := httptest.NewRecorder()
	r.ServeHTTP(w1, httptest.NewRequest(http.MethodGet, "/posts", nil))

	if w1.Code != http.StatusOK {
		t.Fatalf("first call got %d body=%s", w1.Code, w1.Body.String())
	}

	etag := w1.Header().Get("ETag")
	if etag == "" {
		t.Fatalf("expected ETag header in first response")
	}

	req2 := httptest.NewRequest(http.MethodGet, "/posts", nil)
	req2.Header.Set("If-None-Match", etag)

	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, req2)

	if w2.Code != http.StatusNotModified {
		t.Fatalf("second call got %d, want %d, body=%s", w2.Code, http.StatusNotModified, w2.Body.String())
	}

	if w2.Body.Len() != 0 {
		t.Fatalf("expected empty body for 304, got %q", w2.Body.String())
	}
}

func TestMutationsInvalidateListCache(t *testing.T) {
	now := time.Now().UTC()

	c := cache.New(30 * time.Second)
	listCalls := 0

	fakeRepo := &fakePostsRepo{
		listFn: func(ctx context.Context) ([]post.Post, error) {
			listCalls++
			return []post.Post{}, nil
		},
		createFn: func(ctx context.Context, authorID string, req post.CreatePostRequest) (post.Post, error) {
			return post.Post{ID: "p1", Title: req.Title, Content: req.Content, AuthorID: authorID, CreatedAt: now, UpdatedAt: now}, nil
		},
	}

	h := handlers.NewPostsHandlerWithCache(fakeRepo, c, nil)

	r := gin.New()
	mw := middlewares.NewAuthMiddleware(postsTestJWT)
	r.GET("/posts", h.ListPosts)
	r.POST("/posts", mw.RequireAuth(), h.CreatePost)

	get := func() {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/posts", nil))

		if w.Code != http.StatusOK {
			t.Fatalf("list got %d body=%s", w.Code, w.Body.String())
		}
	}

	get()
	get() // served from cache

	if listCalls != 1 {
		t.Fatalf("expected 1 repo list call before mutation, got %d", listCalls)
	}

	req := httptest.NewRequest(http.MethodPost, "/posts", bytes.NewBufferString(`{"title": "Hi", "content": "world"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", bearerFor(t, "user-a"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("create got %d body=%s", w.Code, w.Body.String())
	}

	get() // cache was invalidated, repo hit again

	if listCalls != 2 {
		t.Fatalf("expected repo list call after mutation, got %d", listCalls)
	}
}
