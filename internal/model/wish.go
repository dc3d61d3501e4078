package model

import "time"

// Wish is a single wish-list entry owned by an account
type Wish struct {
	ID          string     `json:"id"`
	AccountID   string     `json:"accountId"`
	Title       string     `json:"title"`
	Description *string    `json:"description,omitempty"`
	URL         *string    `json:"url,omitempty"`
	PriceCents  *int64     `json:"priceCents,omitempty"`
	Fulfilled   bool       `json:"fulfilled"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	DeletedAt   *time.Time `json:"-"`
}
