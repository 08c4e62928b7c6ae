package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/inkpad/blogapi/internal/domain/post"
)

// PostsRepo keeps posts in a map. The users repo is consulted on list so the
// author join behaves like the SQL implementation, including nil authors for
// orphaned posts.
type PostsRepo struct {
	mu    sync.RWMutex
	items map[string]post.Post
	seq   map[string]int // insertion order, tie-break for equal timestamps
	next  int
	users *UsersRepo
}

func NewPostsRepo(users *UsersRepo) *PostsRepo {
	return &PostsRepo{
		items: make(map[string]post.Post),
		seq:   make(map[string]int),
		users: users,
	}
}

func (r *PostsRepo) Create(_ context.Context, authorID string, req post.CreatePostRequest) (post.Post, error) {
	now := time.Now().UTC()

	p := post.Post{
		ID:        uuid.NewString(),
		Title:     req.Title,
		Content:   req.Content,
		AuthorID:  authorID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	r.mu.Lock()
	r.items[p.ID] = p
	r.seq[p.ID] = r.next
	r.next++
	r.mu.Unlock()

	return p, nil
}

func (r *PostsRepo) ListWithAuthors(ctx context.Context) ([]post.Post, error) {
	r.mu.RLock()

	out := make([]post.Post, 0, len(r.items))
	order := make(map[string]int, len(r.seq))

	for _, p := range r.items {
		out = append(out, p)
		order[p.ID] = r.seq[p.ID]
	}

	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}

		return order[out[i].ID] > order[out[j].ID]
	})

	for i := range out {
		u, err := r.users.GetByID(ctx, out[i].AuthorID)

		if err == nil {
			out[i].Author = &post.Author{Name: u.Name, Email: u.Email}
		}
	}

	return out, nil
}

func (r *PostsRepo) GetByID(_ context.Context, id string) (post.Post, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.items[id]

	if !ok {
		return post.Post{}, post.ErrNotFound
	}

	return p, nil
}

func (r *PostsRepo) Update(_ context.Context, id string, req post.UpdatePostRequest) (post.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.items[id]

	if !ok {
		return post.Post{}, post.ErrNotFound
	}

	p.Title = req.Title
	p.Content = req.Content
	p.UpdatedAt = time.Now().UTC()

	r.items[id] = p

	return p, nil
}

func (r *PostsRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return post.ErrNotFound
	}

	delete(r.items, id)
	delete(r.seq, id)

	return nil
}
