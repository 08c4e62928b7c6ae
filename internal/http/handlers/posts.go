package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/inkpad/blogapi/internal/cache"
	"github.com/inkpad/blogapi/internal/config"
	"github.com/inkpad/blogapi/internal/domain/post"
	"github.com/inkpad/blogapi/internal/http/middlewares"
	"github.com/inkpad/blogapi/internal/observability"
)

type PostsStore interface {
	Create(ctx context.Context, authorID string, req post.CreatePostRequest) (post.Post, error)
	ListWithAuthors(ctx context.Context) ([]post.Post, error)
	GetByID(ctx context.Context, id string) (post.Post, error)
	Update(ctx context.Context, id string, req post.UpdatePostRequest) (post.Post, error)
	Delete(ctx context.Context, id string) error
}

const postsListCacheKey = "posts:list"

type PostsHandler struct {
	repo  PostsStore
	cache cache.Store
	prom  *observability.Prom
}

func NewPostsHandler(repo PostsStore) *PostsHandler {
	return &PostsHandler{repo: repo}
}

func NewPostsHandlerWithCache(repo PostsStore, c cache.Store, prom *observability.Prom) *PostsHandler {
	return &PostsHandler{repo: repo, cache: c, prom: prom}
}

// ListPosts is public: every post, author name/email embedded, newest first.
func (h *PostsHandler) ListPosts(ctx *gin.Context) {
	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	if h.cache != nil {
		if body, ok := h.cache.Get(cctx, postsListCacheKey); ok {
			if h.prom != nil {
				h.prom.CacheHitsTotal.WithLabelValues(postsListCacheKey).Inc()
			}

			RespondJSONBytesWithETag(ctx, http.StatusOK, body)
			return
		}

		if h.prom != nil {
			h.prom.CacheMissesTotal.WithLabelValues(postsListCacheKey).Inc()
		}
	}

	posts, err := h.repo.ListWithAuthors(cctx)

	if err != nil {
		RespondInternal(ctx, "Could not list posts")
		return
	}

	body, err := json.Marshal(posts)

	if err != nil {
		RespondInternal(ctx, "Could not list posts")
		return
	}

	if h.cache != nil {
		h.cache.Set(cctx, postsListCacheKey, body)
	}

	RespondJSONBytesWithETag(ctx, http.StatusOK, body)
}

func (h *PostsHandler) CreatePost(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok || userID == "" {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity")
		return
	}

	var req post.CreatePostRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	p, err := h.repo.Create(cctx, userID, req)

	if err != nil {
		RespondInternal(ctx, "Could not create post")
		return
	}

	h.invalidateList(cctx)

	ctx.JSON(http.StatusCreated, p)
}

func (h *PostsHandler) UpdatePost(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok || userID == "" {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity")
		return
	}

	id := ctx.Param("id")

	var req post.UpdatePostRequest

	if !BindJSON(ctx, &req) {
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	existing, err := h.repo.GetByID(cctx, id)

	if err != nil {
		if errors.Is(err, post.ErrNotFound) {
			RespondNotFound(ctx, "Post not found")
			return
		}

		RespondInternal(ctx, "Could not update post")
		return
	}

	// owner check
	if existing.AuthorID != userID {
		RespondForbidden(ctx, "forbidden", "You can only modify your own posts")
		return
	}

	updated, err := h.repo.Update(cctx, id, req)

	if err != nil {
		if errors.Is(err, post.ErrNotFound) {
			RespondNotFound(ctx, "Post not found")
			return
		}

		RespondInternal(ctx, "Could not update post")
		return
	}

	h.invalidateList(cctx)

	ctx.JSON(http.StatusOK, updated)
}

func (h *PostsHandler) DeletePost(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok || userID == "" {
		RespondUnAuthorized(ctx, "unauthorized", "Missing identity")
		return
	}

	id := ctx.Param("id")

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	existing, err := h.repo.GetByID(cctx, id)

	if err != nil {
		if errors.Is(err, post.ErrNotFound) {
			RespondNotFound(ctx, "Post not found")
			return
		}

		RespondInternal(ctx, "Could not delete post")
		return
	}

	if existing.AuthorID != userID {
		RespondForbidden(ctx, "forbidden", "You can only delete your own posts")
		return
	}

	err = h.repo.Delete(cctx, id)

	if err != nil {
		if errors.Is(err, post.ErrNotFound) {
			RespondNotFound(ctx, "Post not found")
			return
		}

		RespondInternal(ctx, "Could not delete post")
		return
	}

	h.invalidateList(cctx)

	ctx.JSON(http.StatusOK, gin.H{"message": "Post deleted"})
}

func (h *PostsHandler) invalidateList(ctx context.Context) {
	if h.cache != nil {
		h.cache.Delete(ctx, postsListCacheKey)
	}
}
