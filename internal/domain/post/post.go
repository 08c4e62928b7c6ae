package post

import (
	"errors"
	"time"
)

// Author is the slice of the owning user embedded in list responses.
// Nil when the author row no longer exists.
type Author struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type Post struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	AuthorID  string    `json:"authorId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Author    *Author   `json:"author,omitempty"`
}

var ErrNotFound = errors.New("post not found")

type CreatePostRequest struct {
	Title   string `json:"title" binding:"required,min=1,max=200"`
	Content string `json:"content" binding:"required"`
}

// A full replacement payload, same rules as create.
type UpdatePostRequest struct {
	Title   string `json:"title" binding:"required,min=1,max=200"`
	Content string `json:"content" binding:"required"`
}
