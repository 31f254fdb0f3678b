// Package models defines the records moved between ingestion, storage and reporting.
package models

import "time"

// DateLayout is the storage format of review dates.
const DateLayout = "2006-01-02"

// Item represents a reviewed phone product.
type Item struct {
	ASIN         string  `db:"asin" validate:"len=10"`
	Brand        string  `db:"brand" validate:"required"`
	Title        string  `db:"title" validate:"required"`
	URL          string  `db:"url" validate:"required"`
	Image        string  `db:"image" validate:"required"`
	Rating       float64 `db:"rating" validate:"gte=0,lte=5"`
	ReviewURL    string  `db:"review_url" validate:"required"`
	TotalReviews int64   `db:"total_reviews" validate:"gte=0"`
	Price        float64 `db:"price" validate:"gte=0,lte=9999.99"`
}

// Values returns the item in items table column order.
func (i Item) Values() []any {
	return []any{i.ASIN, i.Brand, i.Title, i.URL, i.Image, i.Rating, i.ReviewURL, i.TotalReviews, i.Price}
}

// Review represents a single customer review. ID is assigned by the store.
type Review struct {
	ID          int64     `db:"review_id"`
	ASIN        string    `db:"asin" validate:"len=10"`
	Name        string    `db:"name" validate:"required"`
	Rating      int64     `db:"rating" validate:"gte=0,lte=5"`
	Date        time.Time `db:"review_date" validate:"required"`
	Verified    bool      `db:"verified"`
	Title       string    `db:"title" validate:"required"`
	Body        string    `db:"body" validate:"required"`
	HelpfulVote int64     `db:"helpful_vote" validate:"gte=0"`
}

// Values returns the review in reviews table column order. The identity
// column is always submitted as NULL.
func (r Review) Values() []any {
	return []any{nil, r.ASIN, r.Name, r.Rating, r.Date.Format(DateLayout), r.Verified, r.Title, r.Body, r.HelpfulVote}
}

// ReviewSummary is one row of the derived per-title summary.
type ReviewSummary struct {
	Title         string
	Brand         string
	AverageRating float64
	TotalReviews  int64
}

// Batch is the unit of atomic loading.
type Batch struct {
	Items   []Item
	Reviews []Review
}

// TableInfo describes a relation in the store.
type TableInfo struct {
	Name string
	Rows int64
}

// IngestResult summarises a seeding run.
type IngestResult struct {
	RunID            string
	StartTime        time.Time
	EndTime          time.Time
	ItemsAvailable   int
	ReviewsAvailable int
	ItemsLoaded      int
	ReviewsLoaded    int
}
