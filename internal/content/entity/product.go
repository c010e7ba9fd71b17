package entity

import "time"

// Product is an organic marketplace listing.
type Product struct {
	ID          string    `json:"id"`
	AuthorName  string    `json:"author_name"`
	ProductName string    `json:"product_name"`
	Quantity    string    `json:"quantity"` // free text, e.g. "50 kg"
	Location    string    `json:"location"`
	Phone       string    `json:"phone"`
	CreatedAt   time.Time `json:"created_at"`
}
