package entity

import "time"

// Post is a community update. AuthorName is denormalized from the farmer profile.
type Post struct {
	ID         string    `json:"id"`
	AuthorName string    `json:"author_name"`
	Content    string    `json:"content"`
	ImageRef   *string   `json:"image_ref,omitempty"`
	VideoRef   *string   `json:"video_ref,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
