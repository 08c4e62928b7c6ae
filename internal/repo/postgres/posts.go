package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/inkpad/blogapi/internal/domain/post"
	"github.com/inkpad/blogapi/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostsRepo struct {
	pool *pgxpool.Pool
	prom *observability.Prom
}

func NewPostsRepo(pool *pgxpool.Pool, prom *observability.Prom) *PostsRepo {
	return &PostsRepo{pool: pool, prom: prom}
}

func (r *PostsRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}

	return fn()
}

func (r *PostsRepo) Create(ctx context.Context, authorID string, req post.CreatePostRequest) (post.Post, error) {
	now := time.Now().UTC()

	p := post.Post{
		ID:        uuid.NewString(),
		Title:     req.Title,
		Content:   req.Content,
		AuthorID:  authorID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := r.observe("posts.create", func() error {
		_, execErr := r.pool.Exec(ctx,
			`INSERT INTO posts (id, title, content, author_id, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			p.ID, p.Title, p.Content, p.AuthorID, p.CreatedAt, p.UpdatedAt,
		)

		return execErr
	})

	if err != nil {
		return post.Post{}, err
	}

	return p, nil
}

// ListWithAuthors returns every post, newest first, with the author's name
// and email joined in. A post whose author row is gone is still returned,
// with a nil author.
func (r *PostsRepo) ListWithAuthors(ctx context.Context) ([]post.Post, error) {
	var out []post.Post

	err := r.observe("posts.list_with_authors", func() error {
		rows, queryErr := r.pool.Query(ctx,
			`SELECT p.id, p.title, p.content, p.author_id, p.created_at, p.updated_at,
			        u.name, u.email
			 FROM posts p
			 LEFT JOIN users u ON u.id = p.author_id
			 ORDER BY p.created_at DESC`,
		)

		if queryErr != nil {
			return queryErr
		}

		defer rows.Close()

		out = make([]post.Post, 0)

		for rows.Next() {
			var p post.Post
			var authorName, authorEmail *string

			scanErr := rows.Scan(
				&p.ID,
				&p.Title,
				&p.Content,
				&p.AuthorID,
				&p.CreatedAt,
				&p.UpdatedAt,
				&authorName,
				&authorEmail,
			)

			if scanErr != nil {
				return scanErr
			}

			if authorName != nil && authorEmail != nil {
				p.Author = &post.Author{Name: *authorName, Email: *authorEmail}
			}

			out = append(out, p)
		}

		return rows.Err()
	})

	if err != nil {
		return nil, err
	}

	return out, nil
}

func (r *PostsRepo) GetByID(ctx context.Context, id string) (post.Post, error) {
	var p post.Post

	err := r.observe("posts.get_by_id", func() error {
		return r.pool.QueryRow(ctx,
			`SELECT id, title, content, author_id, created_at, updated_at
			 FROM posts
			 WHERE id = $1`,
			id,
		).Scan(&p.ID, &p.Title, &p.Content, &p.AuthorID, &p.CreatedAt, &p.UpdatedAt)
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return post.Post{}, post.ErrNotFound
		}

		return post.Post{}, err
	}

	return p, nil
}

func (r *PostsRepo) Update(ctx context.Context, id string, req post.UpdatePostRequest) (post.Post, error) {
	var p post.Post

	err := r.observe("posts.update", func() error {
		return r.pool.QueryRow(ctx,
			`UPDATE posts
			 SET title = $2,
			     content = $3,
			     updated_at = NOW()
			 WHERE id = $1
			 RETURNING id, title, content, author_id, created_at, updated_at`,
			id,
			req.Title,
			req.Content,
		).Scan(&p.ID, &p.Title, &p.Content, &p.AuthorID, &p.CreatedAt, &p.UpdatedAt)
	})

	if err != nil {
		// if there are no rows matching the id
		if errors.Is(err, pgx.ErrNoRows) {
			return post.Post{}, post.ErrNotFound
		}

		return post.Post{}, err
	}

	return p, nil
}

func (r *PostsRepo) Delete(ctx context.Context, id string) error {
	var affected int64

	err := r.observe("posts.delete", func() error {
		res, execErr := r.pool.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)

		if execErr != nil {
			return execErr
		}

		affected = res.RowsAffected()

		return nil
	})

	if err != nil {
		return err
	}

	// if no rows were deleted as a result return a not found error
	if affected == 0 {
		return post.ErrNotFound
	}

	return nil
}
