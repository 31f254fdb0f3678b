// Package report runs the aggregate queries behind the product reports and
// renders their results as text, workbooks and charts.
package report

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/aluiziolira/phone-reviews/metrics"
)

// Querier is satisfied by *store.Store and *sql.DB.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Bucket granularities for KeywordMentions.
const (
	BucketMonth = "month"
	BucketYear  = "year"
)

// ErrUnknownBucket is returned for a bucket other than month or year.
var ErrUnknownBucket = errors.New("unknown time bucket")

// YearCount is the number of reviews a title received in a year.
type YearCount struct {
	Brand   string
	Title   string
	Year    int
	Reviews int64
}

// VerifiedShare describes verified-purchase reviews of one brand. Shares are
// percentages.
type VerifiedShare struct {
	Brand           string
	Verified        int64
	Total           int64
	ShareOfVerified float64 // brand verified / all verified
	VerifiedRate    float64 // brand verified / brand total
}

// BrandCount is a brand with its review count.
type BrandCount struct {
	Brand   string
	Reviews int64
}

// BrandActivity is a brand's review count with its monthly breakdown.
type BrandActivity struct {
	Brand   string
	Reviews int64
	Monthly []PeriodCount
}

// PeriodCount is a count in a YYYY or YYYY-MM bucket.
type PeriodCount struct {
	Period string
	Count  int64
}

// PeriodAverage is an average rating in a YYYY-MM bucket.
type PeriodAverage struct {
	Period  string
	Average float64
}

// BrandRating is a brand's average rating over a year range with the
// month-by-month breakdown.
type BrandRating struct {
	Brand   string
	Average float64
	Monthly []PeriodAverage
}

// TitleRating is a product title with its item rating.
type TitleRating struct {
	Title  string
	Rating float64
}

// TitleAverage compares a title's listed review total with the average of
// the stored reviews.
type TitleAverage struct {
	Title         string
	TotalReviews  int64
	AverageRating float64
}

// Service runs report queries and caches their results until Purge.
// Cached slices are shared; callers must not modify them.
type Service struct {
	db      Querier
	cache   *lru.Cache[string, any]
	metrics *metrics.Metrics
}

// NewService builds a report service. A cacheSize of zero disables caching.
// db may be nil for a service that is only bound later through Using.
func NewService(db Querier, cacheSize int, m *metrics.Metrics) (*Service, error) {
	s := &Service{db: db, metrics: m}
	if cacheSize > 0 {
		cache, err := lru.New[string, any](cacheSize)
		if err != nil {
			return nil, fmt.Errorf("create query cache: %w", err)
		}
		s.cache = cache
	}
	return s, nil
}

// Purge drops every cached result. Call it after each mutation of the store.
func (s *Service) Purge() {
	if s.cache != nil {
		s.cache.Purge()
	}
}

// Using returns a service querying db that shares this service's cache and
// metrics. Purge on either clears the shared cache.
func (s *Service) Using(db Querier) *Service {
	return &Service{db: db, cache: s.cache, metrics: s.metrics}
}

const yearOf = `CAST(strftime('%Y', r.review_date) AS INTEGER)`

// ReviewsPerYear counts reviews per title and year.
func (s *Service) ReviewsPerYear(ctx context.Context) ([]YearCount, error) {
	return cached(s, "reviews_per_year", nil, func() ([]YearCount, error) {
		return collect(ctx, s.db, `
			SELECT min(i.brand), i.title, `+yearOf+` AS year, count(*)
			FROM reviews r
			JOIN items i ON i.asin = r.asin
			GROUP BY i.title, year
			ORDER BY min(i.brand), year, lower(i.title), i.title`, nil,
			func(rows *sql.Rows) (YearCount, error) {
				var yc YearCount
				err := rows.Scan(&yc.Brand, &yc.Title, &yc.Year, &yc.Reviews)
				return yc, err
			})
	})
}

// VerifiedShares reports verified-purchase counts and shares per brand.
func (s *Service) VerifiedShares(ctx context.Context) ([]VerifiedShare, error) {
	return cached(s, "verified_shares", nil, func() ([]VerifiedShare, error) {
		shares, err := collect(ctx, s.db, `
			SELECT i.brand, sum(r.verified), count(*)
			FROM reviews r
			JOIN items i ON i.asin = r.asin
			GROUP BY i.brand
			ORDER BY i.brand`, nil,
			func(rows *sql.Rows) (VerifiedShare, error) {
				var vs VerifiedShare
				err := rows.Scan(&vs.Brand, &vs.Verified, &vs.Total)
				return vs, err
			})
		if err != nil {
			return nil, err
		}

		var allVerified int64
		for _, vs := range shares {
			allVerified += vs.Verified
		}
		for i := range shares {
			shares[i].ShareOfVerified = percent(shares[i].Verified, allVerified)
			shares[i].VerifiedRate = percent(shares[i].Verified, shares[i].Total)
		}
		return shares, nil
	})
}

// TopBrandsByReviews returns the n brands with the most reviews.
func (s *Service) TopBrandsByReviews(ctx context.Context, n int) ([]BrandCount, error) {
	return cached(s, "top_brands_by_reviews", []any{n}, func() ([]BrandCount, error) {
		return collect(ctx, s.db, `
			SELECT i.brand, count(*) AS reviews
			FROM reviews r
			JOIN items i ON i.asin = r.asin
			GROUP BY i.brand
			ORDER BY reviews DESC, i.brand
			LIMIT ?`, []any{n},
			func(rows *sql.Rows) (BrandCount, error) {
				var bc BrandCount
				err := rows.Scan(&bc.Brand, &bc.Reviews)
				return bc, err
			})
	})
}

// MonthlyReviewCounts returns a brand's review count per month in
// chronological order.
func (s *Service) MonthlyReviewCounts(ctx context.Context, brand string) ([]PeriodCount, error) {
	return cached(s, "monthly_review_counts", []any{brand}, func() ([]PeriodCount, error) {
		return collect(ctx, s.db, `
			SELECT strftime('%Y-%m', r.review_date) AS period, count(*)
			FROM reviews r
			JOIN items i ON i.asin = r.asin
			WHERE i.brand = ?
			GROUP BY period
			ORDER BY period`, []any{brand}, scanPeriodCount)
	})
}

// TopBrandsActivity returns the n most reviewed brands with their monthly
// review counts.
func (s *Service) TopBrandsActivity(ctx context.Context, n int) ([]BrandActivity, error) {
	top, err := s.TopBrandsByReviews(ctx, n)
	if err != nil {
		return nil, err
	}
	out := make([]BrandActivity, 0, len(top))
	for _, bc := range top {
		monthly, err := s.MonthlyReviewCounts(ctx, bc.Brand)
		if err != nil {
			return nil, err
		}
		out = append(out, BrandActivity{Brand: bc.Brand, Reviews: bc.Reviews, Monthly: monthly})
	}
	return out, nil
}

// TopBrandsByRating returns the n best rated brands over the inclusive year
// range, each with its monthly average ratings over the same range.
func (s *Service) TopBrandsByRating(ctx context.Context, from, to, n int) ([]BrandRating, error) {
	return cached(s, "top_brands_by_rating", []any{from, to, n}, func() ([]BrandRating, error) {
		brands, err := collect(ctx, s.db, `
			SELECT i.brand, avg(r.rating) AS average
			FROM reviews r
			JOIN items i ON i.asin = r.asin
			WHERE `+yearOf+` BETWEEN ? AND ?
			GROUP BY i.brand
			ORDER BY average DESC, i.brand
			LIMIT ?`, []any{from, to, n},
			func(rows *sql.Rows) (BrandRating, error) {
				var br BrandRating
				err := rows.Scan(&br.Brand, &br.Average)
				return br, err
			})
		if err != nil {
			return nil, err
		}

		for i := range brands {
			brands[i].Monthly, err = collect(ctx, s.db, `
				SELECT strftime('%Y-%m', r.review_date) AS period, avg(r.rating)
				FROM reviews r
				JOIN items i ON i.asin = r.asin
				WHERE i.brand = ? AND `+yearOf+` BETWEEN ? AND ?
				GROUP BY period
				ORDER BY period`, []any{brands[i].Brand, from, to},
				func(rows *sql.Rows) (PeriodAverage, error) {
					var pa PeriodAverage
					err := rows.Scan(&pa.Period, &pa.Average)
					return pa, err
				})
			if err != nil {
				return nil, err
			}
		}
		return brands, nil
	})
}

// KeywordMentions counts, per bucket, reviews whose body mentions price, cost
// or a dollar sign. Matching is case-sensitive.
func (s *Service) KeywordMentions(ctx context.Context, bucket string) ([]PeriodCount, error) {
	var format string
	switch bucket {
	case BucketMonth:
		format = "%Y-%m"
	case BucketYear:
		format = "%Y"
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBucket, bucket)
	}

	return cached(s, "keyword_mentions", []any{bucket}, func() ([]PeriodCount, error) {
		return collect(ctx, s.db, `
			SELECT strftime(?, r.review_date) AS period, count(*)
			FROM reviews r
			WHERE instr(r.body, 'price') > 0 OR instr(r.body, 'cost') > 0 OR instr(r.body, '$') > 0
			GROUP BY period
			ORDER BY period`, []any{format}, scanPeriodCount)
	})
}

// TitlesAlphabetical lists titles with at least one review in year, ordered
// case-insensitively.
func (s *Service) TitlesAlphabetical(ctx context.Context, year int) ([]string, error) {
	return cached(s, "titles_alphabetical", []any{year}, func() ([]string, error) {
		return collect(ctx, s.db, `
			SELECT i.title
			FROM items i
			JOIN reviews r ON r.asin = i.asin
			WHERE `+yearOf+` = ?
			GROUP BY i.title
			ORDER BY lower(i.title), i.title`, []any{year},
			func(rows *sql.Rows) (string, error) {
				var title string
				err := rows.Scan(&title)
				return title, err
			})
	})
}

// TitlesByRating lists titles with at least one review in year by item
// rating, highest first.
func (s *Service) TitlesByRating(ctx context.Context, year int) ([]TitleRating, error) {
	return cached(s, "titles_by_rating", []any{year}, func() ([]TitleRating, error) {
		return collect(ctx, s.db, `
			SELECT i.title, max(i.rating) AS rating
			FROM items i
			JOIN reviews r ON r.asin = i.asin
			WHERE `+yearOf+` = ?
			GROUP BY i.title
			ORDER BY rating DESC, lower(i.title), i.title`, []any{year},
			func(rows *sql.Rows) (TitleRating, error) {
				var tr TitleRating
				err := rows.Scan(&tr.Title, &tr.Rating)
				return tr, err
			})
	})
}

// TitleReviewAverages pairs each reviewed title's listed total with the
// average rating of its stored reviews.
func (s *Service) TitleReviewAverages(ctx context.Context) ([]TitleAverage, error) {
	return cached(s, "title_review_averages", nil, func() ([]TitleAverage, error) {
		return collect(ctx, s.db, `
			SELECT i.title, max(i.total_reviews), avg(r.rating)
			FROM items i
			JOIN reviews r ON r.asin = i.asin
			GROUP BY i.title
			ORDER BY lower(i.title), i.title`, nil,
			func(rows *sql.Rows) (TitleAverage, error) {
				var ta TitleAverage
				err := rows.Scan(&ta.Title, &ta.TotalReviews, &ta.AverageRating)
				return ta, err
			})
	})
}

func scanPeriodCount(rows *sql.Rows) (PeriodCount, error) {
	var pc PeriodCount
	err := rows.Scan(&pc.Period, &pc.Count)
	return pc, err
}

func percent(part, whole int64) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}

func cached[T any](s *Service, name string, args []any, run func() (T, error)) (T, error) {
	key := fmt.Sprintf("%s%v", name, args)
	if s.cache != nil {
		if v, ok := s.cache.Get(key); ok {
			s.metrics.IncQuery(name, true)
			return v.(T), nil
		}
	}
	s.metrics.IncQuery(name, false)

	v, err := run()
	if err != nil {
		var zero T
		return zero, fmt.Errorf("query %s: %w", name, err)
	}
	if s.cache != nil {
		s.cache.Add(key, v)
	}
	slog.Debug("report query", slog.String("query", name), slog.Any("args", args))
	return v, nil
}

func collect[T any](ctx context.Context, db Querier, query string, args []any, scan func(*sql.Rows) (T, error)) ([]T, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
