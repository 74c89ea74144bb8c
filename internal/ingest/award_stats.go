// Package ingest loads historical award-statistics files into the store.
// The aggregate is maintained by an external analytics job; this package
// only parses, validates, and upserts its exports.
package ingest

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/incentedge/match-engine/internal/model"
	"github.com/incentedge/match-engine/internal/store"
)

// Required columns in an award-stats export. Header matching is
// case-insensitive and order-independent. The amount and timing columns
// (approval_rate_pct, avg_award_amount, median_award_amount,
// avg_processing_days) are optional and default to zero; approval rate is
// derived from the counts when absent.
var requiredColumns = []string{
	"program_id", "project_type", "jurisdiction_state", "applicant_type",
	"total_applications", "total_funded",
}

// mapColumns builds a name-to-index map from a header row.
func mapColumns(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return idx
}

func checkHeader(colIdx map[string]int) error {
	for _, name := range requiredColumns {
		if _, ok := colIdx[name]; !ok {
			return eris.Errorf("ingest: missing required column %q", name)
		}
	}
	return nil
}

// parseRow converts one record into an AwardStatRow, enforcing the
// aggregate invariants. rowNum is 1-based and includes the header, so
// error messages match what the user sees in a spreadsheet.
func parseRow(colIdx map[string]int, record []string, rowNum int) (model.AwardStatRow, error) {
	get := func(name string) string {
		i, ok := colIdx[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}
	getInt := func(name string) (int, error) {
		s := get(name)
		if s == "" {
			return 0, nil
		}
		return strconv.Atoi(s)
	}
	getFloat := func(name string) (float64, error) {
		s := get(name)
		if s == "" {
			return 0, nil
		}
		return strconv.ParseFloat(s, 64)
	}

	var row model.AwardStatRow
	row.ProgramID = get("program_id")
	row.ProjectType = get("project_type")
	row.JurisdictionState = strings.ToUpper(get("jurisdiction_state"))
	row.ApplicantType = model.ApplicantType(strings.ToLower(get("applicant_type")))

	if row.ProgramID == "" {
		return row, eris.Errorf("ingest: row %d: empty program_id", rowNum)
	}
	if len(row.JurisdictionState) != 2 {
		return row, eris.Errorf("ingest: row %d: jurisdiction_state %q is not a 2-letter code", rowNum, row.JurisdictionState)
	}

	var err error
	if row.TotalApplications, err = getInt("total_applications"); err != nil {
		return row, eris.Wrapf(err, "ingest: row %d: total_applications", rowNum)
	}
	if row.TotalFunded, err = getInt("total_funded"); err != nil {
		return row, eris.Wrapf(err, "ingest: row %d: total_funded", rowNum)
	}
	if row.TotalApplications < 0 || row.TotalFunded < 0 {
		return row, eris.Errorf("ingest: row %d: negative application counts", rowNum)
	}
	if row.TotalFunded > row.TotalApplications {
		return row, eris.Errorf("ingest: row %d: total_funded %d exceeds total_applications %d",
			rowNum, row.TotalFunded, row.TotalApplications)
	}

	if row.ApprovalRatePct, err = getFloat("approval_rate_pct"); err != nil {
		return row, eris.Wrapf(err, "ingest: row %d: approval_rate_pct", rowNum)
	}
	if row.ApprovalRatePct == 0 && row.TotalApplications > 0 {
		row.ApprovalRatePct = float64(row.TotalFunded) / float64(row.TotalApplications) * 100
	}
	if row.AvgAwardAmount, err = getFloat("avg_award_amount"); err != nil {
		return row, eris.Wrapf(err, "ingest: row %d: avg_award_amount", rowNum)
	}
	if row.MedianAwardAmount, err = getFloat("median_award_amount"); err != nil {
		return row, eris.Wrapf(err, "ingest: row %d: median_award_amount", rowNum)
	}
	if row.AvgProcessingDays, err = getFloat("avg_processing_days"); err != nil {
		return row, eris.Wrapf(err, "ingest: row %d: avg_processing_days", rowNum)
	}

	return row, nil
}

// ParseCSV reads an award-stats CSV export. The first row must be a
// header carrying at least the required columns.
func ParseCSV(r io.Reader) ([]model.AwardStatRow, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, eris.Wrap(err, "ingest: read CSV header")
	}
	colIdx := mapColumns(header)
	if err := checkHeader(colIdx); err != nil {
		return nil, err
	}

	var rows []model.AwardStatRow
	rowNum := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: read CSV row %d", rowNum+1)
		}
		rowNum++

		row, err := parseRow(colIdx, record, rowNum)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// ParseXLSX reads an award-stats XLSX export. sheetName selects the
// worksheet; empty means the first sheet.
func ParseXLSX(path, sheetName string) ([]model.AwardStatRow, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: open xlsx")
	}

	var sheet *xlsx.Sheet
	if sheetName != "" {
		s, ok := f.Sheet[sheetName]
		if !ok {
			return nil, eris.Errorf("ingest: sheet %q not found", sheetName)
		}
		sheet = s
	} else {
		if len(f.Sheets) == 0 {
			return nil, eris.New("ingest: xlsx has no sheets")
		}
		sheet = f.Sheets[0]
	}

	if len(sheet.Rows) == 0 {
		return nil, eris.New("ingest: xlsx sheet is empty")
	}

	toStrings := func(row *xlsx.Row) []string {
		cells := make([]string, len(row.Cells))
		for i, cell := range row.Cells {
			cells[i] = cell.String()
		}
		return cells
	}

	colIdx := mapColumns(toStrings(sheet.Rows[0]))
	if err := checkHeader(colIdx); err != nil {
		return nil, err
	}

	var rows []model.AwardStatRow
	for i, sheetRow := range sheet.Rows[1:] {
		record := toStrings(sheetRow)
		if len(record) == 0 {
			continue
		}
		row, err := parseRow(colIdx, record, i+2)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Loader parses award-stats files and upserts them into the store.
type Loader struct {
	store store.Store
}

// NewLoader creates a Loader backed by the given store.
func NewLoader(st store.Store) *Loader {
	return &Loader{store: st}
}

// LoadFile parses the file by extension (.csv or .xlsx) and upserts every
// row. Returns the number of rows written.
func (l *Loader) LoadFile(ctx context.Context, path string) (int64, error) {
	var rows []model.AwardStatRow
	var err error

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		f, openErr := os.Open(path)
		if openErr != nil {
			return 0, eris.Wrap(openErr, "ingest: open csv")
		}
		defer f.Close()
		rows, err = ParseCSV(f)
	case ".xlsx":
		rows, err = ParseXLSX(path, "")
	default:
		return 0, eris.Errorf("ingest: unsupported file extension %q", ext)
	}
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		zap.L().Warn("award stats file contained no data rows", zap.String("path", path))
		return 0, nil
	}

	n, err := l.store.UpsertAwardStats(ctx, rows)
	if err != nil {
		return 0, eris.Wrapf(err, "ingest: upsert %s", filepath.Base(path))
	}
	zap.L().Info("loaded award stats",
		zap.String("path", path),
		zap.Int("parsed", len(rows)),
		zap.Int64("upserted", n))
	return n, nil
}
