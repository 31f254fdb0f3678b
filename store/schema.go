package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"regexp"
)

const (
	itemsTable   = "items"
	reviewsTable = "reviews"
)

var (
	itemColumns = []string{"asin", "brand", "title", "url", "image", "rating", "review_url", "total_reviews", "price"}

	reviewColumns = []string{"review_id", "asin", "name", "rating", "review_date", "verified", "title", "body", "helpful_vote"}

	identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
)

const createItems = `
CREATE TABLE items (
	asin          TEXT    NOT NULL,
	brand         TEXT    NOT NULL,
	title         TEXT    NOT NULL,
	url           TEXT    NOT NULL,
	image         TEXT    NOT NULL,
	rating        REAL    NOT NULL,
	review_url    TEXT    NOT NULL,
	total_reviews INTEGER NOT NULL,
	price         REAL    NOT NULL,
	CONSTRAINT items_pk PRIMARY KEY (asin),
	CONSTRAINT valid_item CHECK (
		length(asin) = 10
		AND price BETWEEN 0.00 AND 9999.99
		AND rating BETWEEN 0.0 AND 5.0
		AND total_reviews >= 0
	)
)`

const createReviews = `
CREATE TABLE reviews (
	review_id    INTEGER,
	asin         TEXT    NOT NULL,
	name         TEXT    NOT NULL,
	rating       INTEGER NOT NULL,
	review_date  TEXT    NOT NULL,
	verified     INTEGER NOT NULL DEFAULT 0,
	title        TEXT    NOT NULL,
	body         TEXT    NOT NULL,
	helpful_vote INTEGER NOT NULL DEFAULT 0,
	CONSTRAINT reviews_pk PRIMARY KEY (review_id),
	CONSTRAINT reviews_fk FOREIGN KEY (asin) REFERENCES items (asin),
	CONSTRAINT valid_review CHECK (
		rating BETWEEN 0 AND 5
		AND date(review_date) IS NOT NULL
		AND verified IN (0, 1)
		AND helpful_vote >= 0
	)
)`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ResetBaseSchema drops and recreates items and reviews. Reviews are dropped
// first and created last because they reference items.
func (s *Store) ResetBaseSchema(ctx context.Context) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range []string{
			`DROP TABLE IF EXISTS reviews`,
			`DROP TABLE IF EXISTS items`,
			createItems,
			createReviews,
			`CREATE INDEX IF NOT EXISTS idx_reviews_asin ON reviews (asin)`,
			`CREATE INDEX IF NOT EXISTS idx_reviews_date ON reviews (review_date)`,
		} {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("reset base schema: %w", err)
			}
		}
		slog.Debug("base schema reset", slog.String("db", s.path))
		return nil
	})
}

// DerivedTable is a relation computed from items and reviews.
type DerivedTable struct {
	Name       string
	Definition string // column and constraint list, without the enclosing parentheses
}

// SummaryTable returns the per-title review summary definition.
func SummaryTable(name string) DerivedTable {
	return DerivedTable{
		Name: name,
		Definition: fmt.Sprintf(`
	title          TEXT    NOT NULL,
	brand          TEXT    NOT NULL,
	average_rating REAL    NOT NULL,
	total_reviews  INTEGER NOT NULL,
	CONSTRAINT %[1]s_pk PRIMARY KEY (title),
	CONSTRAINT valid_%[1]s CHECK (average_rating BETWEEN 0.0 AND 5.0 AND total_reviews >= 0)`, name),
	}
}

// ResetDerivedTable drops and recreates a derived relation.
func (s *Store) ResetDerivedTable(ctx context.Context, t DerivedTable) error {
	return resetDerived(ctx, s.db, t)
}

func resetDerived(ctx context.Context, ex execer, t DerivedTable) error {
	if !identPattern.MatchString(t.Name) {
		return fmt.Errorf("invalid table name %q", t.Name)
	}
	if t.Name == itemsTable || t.Name == reviewsTable {
		return fmt.Errorf("%s is a base table", t.Name)
	}
	if _, err := ex.ExecContext(ctx, `DROP TABLE IF EXISTS `+t.Name); err != nil {
		return fmt.Errorf("drop %s: %w", t.Name, err)
	}
	if _, err := ex.ExecContext(ctx, `CREATE TABLE `+t.Name+` (`+t.Definition+`)`); err != nil {
		return fmt.Errorf("create %s: %w", t.Name, err)
	}
	return nil
}

// RegenerateSummary recomputes the summary table for titles with at least one
// review in year. The reset and the population share one transaction, so a
// failed population leaves the previous table in place.
func (s *Store) RegenerateSummary(ctx context.Context, t DerivedTable, year int) (int64, error) {
	var inserted int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := resetDerived(ctx, tx, t); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO `+t.Name+` (title, brand, average_rating, total_reviews)
			SELECT i.title, min(i.brand), max(i.rating), max(i.total_reviews)
			FROM items i
			JOIN reviews r ON r.asin = i.asin
			WHERE CAST(strftime('%Y', r.review_date) AS INTEGER) = ?
			GROUP BY i.title`, year)
		if err != nil {
			return classify(t.Name, 0, err)
		}
		inserted, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, err
	}
	return inserted, nil
}
