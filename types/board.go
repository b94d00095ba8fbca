package types

import "time"

// Category classifies a board post.
type Category string

const (
	CategoryNotice Category = "NOTICE"
	CategoryFree   Category = "FREE"
	CategoryQnA    Category = "QNA"
)

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryNotice, CategoryFree, CategoryQnA:
		return true
	}
	return false
}

// Board represents a bulletin-board post. A post is owned by its author;
// update and delete are restricted to the author.
type Board struct {
	// ID is the unique identifier of the post.
	ID int `json:"id" db:"id"`

	// Title is the post title, 1-200 characters.
	Title string `json:"title" db:"title"`

	// Content is the post body, 1-5000 characters.
	Content string `json:"content" db:"content"`

	// Category classifies the post.
	Category Category `json:"category" db:"category"`

	// ImageURL is the serving path of the optional attached image,
	// empty when the post has no image.
	ImageURL string `json:"imageUrl,omitempty" db:"image_url"`

	// AuthorID is the internal id of the post's author.
	AuthorID int `json:"authorId" db:"author_id"`

	// Author is the author's public identity, joined in on reads.
	Author PublicUser `json:"author"`

	// CreatedAt is the timestamp at which the post was created.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the post.
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}
