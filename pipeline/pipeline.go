// Package pipeline turns spreadsheet rows into validated records and loads
// them into the store as one batch.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/aluiziolira/phone-reviews/metrics"
	"github.com/aluiziolira/phone-reviews/models"
	"github.com/aluiziolira/phone-reviews/parser"
	"github.com/aluiziolira/phone-reviews/source"
)

// Loader persists a batch atomically.
type Loader interface {
	Load(ctx context.Context, batch models.Batch) error
}

// Ingestor normalizes, coerces and validates rows.
type Ingestor struct {
	validate *validator.Validate
	metrics  *metrics.Metrics
}

// NewIngestor builds an ingestor. m may be nil.
func NewIngestor(m *metrics.Metrics) *Ingestor {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("db"); name != "" {
			return name
		}
		return f.Name
	})
	return &Ingestor{validate: v, metrics: m}
}

// Run ingests the first itemLimit and reviewLimit rows of each source and
// loads them in one batch. Nothing is loaded when any row fails.
func (in *Ingestor) Run(ctx context.Context, loader Loader, items, reviews *source.Table, itemLimit, reviewLimit int) (*models.IngestResult, error) {
	result := &models.IngestResult{
		RunID:            uuid.NewString(),
		StartTime:        time.Now(),
		ItemsAvailable:   items.Len(),
		ReviewsAvailable: reviews.Len(),
	}
	logger := slog.With(slog.String("ingest_id", result.RunID))

	itemRecs, err := in.Items(items, itemLimit)
	if err != nil {
		return nil, err
	}
	reviewRecs, err := in.Reviews(reviews, reviewLimit)
	if err != nil {
		return nil, err
	}

	logger.Info("loading batch",
		slog.Int("items", len(itemRecs)),
		slog.Int("reviews", len(reviewRecs)),
	)
	if err := loader.Load(ctx, models.Batch{Items: itemRecs, Reviews: reviewRecs}); err != nil {
		in.metrics.IncRejected("batch", "store")
		return nil, fmt.Errorf("load batch: %w", err)
	}

	result.ItemsLoaded = len(itemRecs)
	result.ReviewsLoaded = len(reviewRecs)
	result.EndTime = time.Now()
	logger.Info("batch loaded", slog.Duration("duration", result.EndTime.Sub(result.StartTime)))
	return result, nil
}

// Items converts the first limit rows of an items table.
func (in *Ingestor) Items(t *source.Table, limit int) ([]models.Item, error) {
	out := make([]models.Item, 0, max(limit, 0))
	seen := make(map[string]int)

	err := in.each(t, ItemLayout, limit, func(row int, f *fields) error {
		it := models.Item{
			ASIN:         f.text("asin"),
			Brand:        f.text("brand"),
			Title:        f.text("title"),
			URL:          f.text("url"),
			Image:        f.text("image"),
			Rating:       f.real("rating"),
			ReviewURL:    f.text("review_url"),
			TotalReviews: f.integer("total_reviews"),
			Price:        f.real("price"),
		}
		if f.err != nil {
			return f.rowError(ItemLayout.Relation, row)
		}
		if err := in.check(ItemLayout.Relation, row, it); err != nil {
			return err
		}
		if prev, ok := seen[it.ASIN]; ok {
			return &RowError{
				Relation: ItemLayout.Relation,
				Row:      row,
				Column:   "asin",
				Err:      fmt.Errorf("%w: asin %s already on row %d", ErrDuplicateKey, it.ASIN, prev),
			}
		}
		seen[it.ASIN] = row
		out = append(out, it)
		return nil
	})
	if err != nil {
		return nil, err
	}
	in.metrics.AddAccepted(ItemLayout.Relation, len(out))
	return out, nil
}

// Reviews converts the first limit rows of a reviews table.
func (in *Ingestor) Reviews(t *source.Table, limit int) ([]models.Review, error) {
	out := make([]models.Review, 0, max(limit, 0))

	err := in.each(t, ReviewLayout, limit, func(row int, f *fields) error {
		r := models.Review{
			ASIN:        f.text("asin"),
			Name:        f.text("name"),
			Rating:      f.integer("rating"),
			Date:        f.date("review_date"),
			Verified:    f.boolean("verified"),
			Title:       f.text("title"),
			Body:        f.text("body"),
			HelpfulVote: f.integer("helpful_vote"),
		}
		if f.err != nil {
			return f.rowError(ReviewLayout.Relation, row)
		}
		if err := in.check(ReviewLayout.Relation, row, r); err != nil {
			return err
		}
		out = append(out, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	in.metrics.AddAccepted(ReviewLayout.Relation, len(out))
	return out, nil
}

// each binds the layout once, then normalizes every bound cell of the first
// limit rows with the role of its header.
func (in *Ingestor) each(t *source.Table, layout Layout, limit int, fn func(row int, f *fields) error) error {
	if limit < 0 || limit > t.Len() {
		return fmt.Errorf("%s: row limit %d outside [0, %d]", layout.Relation, limit, t.Len())
	}
	binding, err := layout.Bind(t.Header)
	if err != nil {
		return err
	}

	roles := make(map[string]parser.Role, len(layout.Columns))
	for _, col := range layout.Columns {
		roles[col.Name] = parser.RoleFor(t.Header[binding.Indexes[col.Name]])
	}

	for i := 0; i < limit; i++ {
		row := i + 2
		f := &fields{values: make(map[string]any, len(layout.Columns))}
		for _, col := range layout.Columns {
			v, err := parser.Normalize(roles[col.Name], t.Rows[i][binding.Indexes[col.Name]])
			if err != nil {
				rowErr := &RowError{Relation: layout.Relation, Row: row, Column: col.Name, Err: err}
				in.metrics.IncRejected(layout.Relation, reasonLabel(err))
				return rowErr
			}
			f.values[col.Name] = v
		}
		if err := fn(row, f); err != nil {
			in.metrics.IncRejected(layout.Relation, reasonLabel(err))
			return err
		}
	}
	return nil
}

func (in *Ingestor) check(relation string, row int, v any) error {
	err := in.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return &RowError{
			Relation: relation,
			Row:      row,
			Column:   fe.Field(),
			Err:      fmt.Errorf("value %v fails %s", fe.Value(), strings.TrimSpace(fe.Tag()+" "+fe.Param())),
		}
	}
	return &RowError{Relation: relation, Row: row, Err: err}
}

// fields reads normalized values with a sticky first error.
type fields struct {
	values map[string]any
	col    string
	err    error
}

func (f *fields) fail(col string, err error) {
	if f.err == nil {
		f.col, f.err = col, err
	}
}

func (f *fields) text(col string) string {
	if f.err != nil {
		return ""
	}
	s, err := toText(f.values[col])
	if err != nil {
		f.fail(col, err)
	}
	return s
}

func (f *fields) real(col string) float64 {
	if f.err != nil {
		return 0
	}
	v, err := toFloat(f.values[col])
	if err != nil {
		f.fail(col, err)
	}
	return v
}

func (f *fields) integer(col string) int64 {
	if f.err != nil {
		return 0
	}
	v, err := toInt(f.values[col])
	if err != nil {
		f.fail(col, err)
	}
	return v
}

func (f *fields) date(col string) time.Time {
	if f.err != nil {
		return time.Time{}
	}
	v, err := toDate(f.values[col])
	if err != nil {
		f.fail(col, err)
	}
	return v
}

func (f *fields) boolean(col string) bool {
	if f.err != nil {
		return false
	}
	v, err := toBool(f.values[col])
	if err != nil {
		f.fail(col, err)
	}
	return v
}

func (f *fields) rowError(relation string, row int) error {
	return &RowError{Relation: relation, Row: row, Column: f.col, Err: f.err}
}
