package report

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

// ErrOutputLocked is returned when an output file cannot be replaced, usually
// because another program holds it open.
var ErrOutputLocked = errors.New("output file is locked")

// Workbook sheet names.
const (
	SheetReviewsPerYear = "Reviews Per Year"
	SheetCustomers      = "Customers"
)

var (
	reviewsPerYearHeader = []any{"Brand", "Title", "Year", "Reviews"}
	customersHeader      = []any{"Brand", "Verified Reviews", "Total Reviews", "Share of Verified (%)", "Verified Rate (%)"}
)

// WriteFileAtomic writes through a temporary file in the destination
// directory and renames it into place. The temporary file never survives a
// failure.
func WriteFileAtomic(path string, write func(w io.Writer) error) (err error) {
	if err := ensureDir(path); err != nil {
		return lockedOr(path, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return lockedOr(path, fmt.Errorf("create temp file: %w", err))
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	buf := bufio.NewWriter(tmp)
	if err := write(buf); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := buf.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return lockedOr(path, fmt.Errorf("replace file: %w", err))
	}
	return nil
}

func lockedOr(path string, err error) error {
	if isLocked(err) {
		return fmt.Errorf("%w: %s: close the file in other programs and retry: %v", ErrOutputLocked, path, err)
	}
	return err
}

// WriteTextReport writes the two numbered title listings for year.
func WriteTextReport(w io.Writer, year int, alphabetical []string, byRating []TitleRating) error {
	var b bytes.Buffer
	fmt.Fprintf(&b, "Products with at least 1 review in %d ordered by title alphabetically:\n", year)
	for i, title := range alphabetical {
		fmt.Fprintf(&b, "%d. %s\n", i+1, title)
	}
	fmt.Fprintf(&b, "\nProducts with at least 1 review in %d ordered by average rating descending:\n", year)
	for i, tr := range byRating {
		fmt.Fprintf(&b, "%d. %s, %.1f\n", i+1, tr.Title, tr.Rating)
	}
	_, err := w.Write(b.Bytes())
	return err
}

// WriteComparisonWorkbook saves the reviews-per-year and customer sheets to
// path, replacing any existing workbook.
func WriteComparisonWorkbook(path string, perYear []YearCount, shares []VerifiedShare) error {
	f := excelize.NewFile()
	defer f.Close()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	if err := f.SetSheetName(f.GetSheetName(0), SheetReviewsPerYear); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetCustomers); err != nil {
		return fmt.Errorf("add sheet: %w", err)
	}

	yearRows := make([][]any, 0, len(perYear))
	for _, yc := range perYear {
		yearRows = append(yearRows, []any{yc.Brand, yc.Title, yc.Year, yc.Reviews})
	}
	if err := writeSheet(f, SheetReviewsPerYear, bold, reviewsPerYearHeader, yearRows); err != nil {
		return err
	}

	shareRows := make([][]any, 0, len(shares))
	for _, vs := range shares {
		shareRows = append(shareRows, []any{vs.Brand, vs.Verified, vs.Total, vs.ShareOfVerified, vs.VerifiedRate})
	}
	if err := writeSheet(f, SheetCustomers, bold, customersHeader, shareRows); err != nil {
		return err
	}

	return WriteFileAtomic(path, func(w io.Writer) error {
		_, err := f.WriteTo(w)
		return err
	})
}

func writeSheet(f *excelize.File, sheet string, headerStyle int, header []any, rows [][]any) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("%s header: %w", sheet, err)
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("%s header style: %w", sheet, err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("%s row %d: %w", sheet, i+2, err)
		}
	}
	return nil
}

func ensureDir(filename string) error {
	dir := filepath.Dir(filename)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", dir, err)
	}
	return nil
}
