package catalog

import "time"

// Ranked is a lookup row shown in an explicit user-defined order.
type Ranked struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	SortOrder int       `json:"sort_order"`
	CreatedAt time.Time `json:"created_at"`
}

type Category = Ranked

// Store is where purchases are made.
type Store = Ranked

type Tag struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

type Product struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	CategoryID *int64    `json:"category_id,omitempty"`
	Memo       string    `json:"memo"`
	URL        string    `json:"url"`
	Archived   bool      `json:"archived"`
	Tags       []Tag     `json:"tags,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type ProductInput struct {
	Name       string
	CategoryID *int64
	Memo       string
	URL        string
}
