// Package controller drives the interactive session: startup detection of
// the database, seeding, summary regeneration and the report menu.
package controller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aluiziolira/phone-reviews/config"
	"github.com/aluiziolira/phone-reviews/metrics"
	"github.com/aluiziolira/phone-reviews/models"
	"github.com/aluiziolira/phone-reviews/pipeline"
	"github.com/aluiziolira/phone-reviews/prompt"
	"github.com/aluiziolira/phone-reviews/report"
	"github.com/aluiziolira/phone-reviews/source"
	"github.com/aluiziolira/phone-reviews/store"
)

// Resolver turns a source location into a readable local path.
type Resolver interface {
	Resolve(ctx context.Context, location string) (string, error)
}

var (
	errNoDatabase    = errors.New("no database found, choose option 1 to create it")
	errSourceMissing = errors.New("source not found")
)

// Menu entries, in display order.
var menu = []string{
	"Create and seed database",
	"Regenerate review summary",
	"Display product report",
	"Export comparison workbook",
	"Generate charts",
	"Exit",
}

const (
	optionSeed = iota + 1
	optionSummary
	optionDisplay
	optionWorkbook
	optionCharts
	optionExit
)

// Controller runs one interactive session. The store is opened for each step
// and closed again before the next prompt.
type Controller struct {
	cfg      *config.Config
	prompt   *prompt.Prompter
	out      io.Writer
	sources  Resolver
	metrics  *metrics.Metrics
	ingestor *pipeline.Ingestor

	// reports holds the query cache for the session; Using binds it to the
	// store of the current step.
	reports *report.Service
}

// New builds a controller reading answers from in and writing to out.
func New(cfg *config.Config, in io.Reader, out io.Writer, sources Resolver, m *metrics.Metrics) (*Controller, error) {
	reports, err := report.NewService(nil, cfg.QueryCacheSize, m)
	if err != nil {
		return nil, err
	}
	return &Controller{
		cfg:      cfg,
		prompt:   prompt.New(in, out),
		out:      out,
		sources:  sources,
		metrics:  m,
		ingestor: pipeline.NewIngestor(m),
		reports:  reports,
	}, nil
}

// Run performs startup then serves the menu until Exit or end of input.
func (c *Controller) Run(ctx context.Context) error {
	if err := c.Startup(ctx); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.fail(err)
	}
	return c.Menu(ctx)
}

// Startup creates and seeds a missing database, or reports the existing one
// and offers to rebuild it.
func (c *Controller) Startup(ctx context.Context) error {
	if !store.Exists(c.cfg.DatabasePath) {
		slog.Info("database not found", slog.String("db", c.cfg.DatabasePath))
		return c.createAndSeed(ctx)
	}

	var tables []models.TableInfo
	err := c.withStore(ctx, func(st *store.Store, _ *report.Service) error {
		var err error
		tables, err = st.Tables(ctx)
		return err
	})
	if err != nil {
		return err
	}
	c.prompt.Printf("Database with name '%s' already exists and contains the following tables:\n", c.cfg.DatabasePath)
	for _, t := range tables {
		c.prompt.Printf("\t%s - contains %d records\n", t.Name, t.Rows)
	}

	rebuild, err := c.prompt.YesNo("\nDo you want to re-create and seed")
	if err != nil {
		return err
	}
	if !rebuild {
		c.prompt.Println("Keeping the existing database.")
		return nil
	}
	return c.createAndSeed(ctx)
}
// Menu loops over the main menu. Action failures are reported and the menu
// is shown again.
func (c *Controller) Menu(ctx context.Context) error {
	for {
		choice, err := c.prompt.Choose("\nSelect an option:", menu)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if choice == optionExit {
			c.prompt.Println("Exiting...")
			return nil
		}

		if err := c.dispatch(ctx, choice); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.fail(err)
		}
	}
}

func (c *Controller) dispatch(ctx context.Context, choice int) error {
	switch choice {
	case optionSeed:
		return c.createAndSeed(ctx)
	case optionSummary:
		return c.regenerateSummary(ctx)
	case optionDisplay:
		return c.displayReport(ctx)
	case optionWorkbook:
		return c.exportWorkbook(ctx)
	case optionCharts:
		return c.generateCharts(ctx)
	default:
		return fmt.Errorf("unknown menu option %d", choice)
	}
}

// createAndSeed rebuilds the database from both sources. Both row counts are
// asked before the existing database is touched. When either source is
// missing nothing is created. A rejected batch leaves the new schema empty.
func (c *Controller) createAndSeed(ctx context.Context) error {
	items, reviews, err := c.readSources(ctx)
	if errors.Is(err, errSourceMissing) {
		c.prompt.Println("Database creation failed. Data files not found.")
		return nil
	}
	if err != nil {
		return err
	}

	c.prompt.Printf("Source '%s' contains %d rows of data\n", items.Name, items.Len())
	itemCount, err := c.prompt.RowCount(items.Len())
	if err != nil {
		return err
	}
	c.prompt.Printf("Source '%s' contains %d rows of data\n", reviews.Name, reviews.Len())
	reviewCount, err := c.prompt.RowCount(reviews.Len())
	if err != nil {
		return err
	}

	c.prompt.Println("Creating database...")
	if err := store.Remove(c.cfg.DatabasePath); err != nil {
		return err
	}
	st, err := store.Open(ctx, c.cfg.DatabasePath, c.metrics)
	if err != nil {
		return err
	}
	defer closeStore(st)
	if err := st.ResetBaseSchema(ctx); err != nil {
		return err
	}

	c.prompt.Println("\tSeeding data...")
	result, err := c.ingestor.Run(ctx, st, items, reviews, itemCount, reviewCount)
	c.reports.Purge()
	if err != nil {
		return fmt.Errorf("seeding failed, nothing was loaded: %w", err)
	}
	c.prompt.Printf("Seeded %d items and %d reviews.\n", result.ItemsLoaded, result.ReviewsLoaded)
	return nil
}

// readSources resolves and reads both sources. Both must be present before
// anything is read.
func (c *Controller) readSources(ctx context.Context) (*source.Table, *source.Table, error) {
	var paths [2]string
	for i, location := range []string{c.cfg.ItemsSource, c.cfg.ReviewsSource} {
		path, err := c.sources.Resolve(ctx, location)
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			slog.Error("resolve source", slog.String("source", location), slog.Any("error", err))
			return nil, nil, errSourceMissing
		}
		if _, err := os.Stat(path); err != nil {
			slog.Info("source not found", slog.String("source", path))
			return nil, nil, errSourceMissing
		}
		paths[i] = path
	}

	items, err := source.Read(paths[0])
	if err != nil {
		return nil, nil, err
	}
	reviews, err := source.Read(paths[1])
	if err != nil {
		return nil, nil, err
	}
	return items, reviews, nil
}

func (c *Controller) regenerateSummary(ctx context.Context) error {
	name := c.cfg.SummaryTable

	var exists bool
	err := c.withStore(ctx, func(st *store.Store, _ *report.Service) error {
		var err error
		exists, err = st.HasTable(ctx, name)
		return err
	})
	if err != nil {
		return err
	}
	if exists {
		c.prompt.Printf("The table '%s' already exists in the database '%s'\n", name, c.cfg.DatabasePath)
		remake, err := c.prompt.YesNo(fmt.Sprintf("Do you want to remake and re-seed the table %s", name))
		if err != nil {
			return err
		}
		if !remake {
			c.prompt.Println("Nothing was done")
			return nil
		}
	}

	c.prompt.Printf("Creating table '%s'...\n", name)
	var n int64
	err = c.withStore(ctx, func(st *store.Store, _ *report.Service) error {
		var err error
		n, err = st.RegenerateSummary(ctx, store.SummaryTable(name), c.cfg.SummaryYear)
		return err
	})
	c.reports.Purge()
	if err != nil {
		return err
	}
	c.prompt.Printf("Inserted '%d' records into table '%s'\n", n, name)
	return nil
}

func (c *Controller) displayReport(ctx context.Context) error {
	if !store.Exists(c.cfg.DatabasePath) {
		return errNoDatabase
	}
	choice, err := c.prompt.Choose(
		"Select how you wish to display distinctive products ordered by title and average rating in descending order.",
		[]string{"Print to the console.", "Write to a text file."},
	)
	if err != nil {
		return err
	}

	year := c.cfg.SummaryYear
	var (
		alphabetical []string
		byRating     []report.TitleRating
	)
	err = c.withStore(ctx, func(_ *store.Store, reports *report.Service) error {
		var err error
		if alphabetical, err = reports.TitlesAlphabetical(ctx, year); err != nil {
			return err
		}
		byRating, err = reports.TitlesByRating(ctx, year)
		return err
	})
	if err != nil {
		return err
	}

	if choice == 1 {
		return report.WriteTextReport(c.out, year, alphabetical, byRating)
	}
	err = report.WriteFileAtomic(c.cfg.ReportFile, func(w io.Writer) error {
		return report.WriteTextReport(w, year, alphabetical, byRating)
	})
	if err != nil {
		return err
	}
	c.metrics.IncOutput("text_report")
	c.prompt.Printf("Report written to %s\n", c.cfg.ReportFile)
	return nil
}

func (c *Controller) exportWorkbook(ctx context.Context) error {
	var (
		perYear []report.YearCount
		shares  []report.VerifiedShare
	)
	err := c.withStore(ctx, func(_ *store.Store, reports *report.Service) error {
		var err error
		if perYear, err = reports.ReviewsPerYear(ctx); err != nil {
			return err
		}
		shares, err = reports.VerifiedShares(ctx)
		return err
	})
	if err != nil {
		return err
	}
	if err := report.WriteComparisonWorkbook(c.cfg.WorkbookFile, perYear, shares); err != nil {
		return err
	}
	c.metrics.IncOutput("workbook")
	c.prompt.Printf("Workbook written to %s\n", c.cfg.WorkbookFile)
	return nil
}

func (c *Controller) generateCharts(ctx context.Context) error {
	var list []report.Chart
	err := c.withStore(ctx, func(_ *store.Store, reports *report.Service) error {
		activity, err := reports.TopBrandsActivity(ctx, c.cfg.TopByReviews)
		if err != nil {
			return err
		}
		rated, err := reports.TopBrandsByRating(ctx, c.cfg.RatingFromYear, c.cfg.RatingToYear, c.cfg.TopByRating)
		if err != nil {
			return err
		}
		mentions, err := reports.KeywordMentions(ctx, c.cfg.KeywordBucket)
		if err != nil {
			return err
		}
		averages, err := reports.TitleReviewAverages(ctx)
		if err != nil {
			return err
		}
		list = []report.Chart{
			report.MonthlyReviewsChart(activity),
			report.MonthlyRatingChart(rated, c.cfg.RatingFromYear, c.cfg.RatingToYear),
			report.KeywordChart(mentions, c.cfg.KeywordBucket),
			report.TitleAverageChart(averages),
		}
		return nil
	})
	if err != nil {
		return err
	}

	err = report.WriteFileAtomic(c.cfg.ChartsFile, func(w io.Writer) error {
		return report.RenderCharts(w, list)
	})
	if err != nil {
		return err
	}
	c.metrics.IncOutput("charts")
	c.prompt.Printf("Charts written to %s\n", c.cfg.ChartsFile)
	return nil
}

// withStore opens the existing database for one step and closes it when fn
// returns. fn must not prompt.
func (c *Controller) withStore(ctx context.Context, fn func(st *store.Store, reports *report.Service) error) error {
	if !store.Exists(c.cfg.DatabasePath) {
		return errNoDatabase
	}
	st, err := store.Open(ctx, c.cfg.DatabasePath, c.metrics)
	if err != nil {
		return err
	}
	defer closeStore(st)
	return fn(st, c.reports.Using(st))
}

func closeStore(st *store.Store) {
	if err := st.Close(); err != nil {
		slog.Warn("close database", slog.String("db", st.Path()), slog.Any("error", err))
	}
}

func (c *Controller) fail(err error) {
	slog.Error("action failed", slog.Any("error", err))
	c.prompt.Printf("Error: %v\n", err)
}
