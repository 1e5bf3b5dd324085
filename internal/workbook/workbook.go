// Package workbook reads and writes the daily attendance spreadsheet.
//
// Layout: row 1 is a merged title, row 2 holds the column headers and data
// rows start at row 3 with the fixed columns (#, id, name, group, time).
package workbook

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/xuri/excelize/v2"
)

// HeaderRows is the number of non-data rows preceding the records.
const HeaderRows = 2

// ColumnCount is the fixed number of ledger columns.
const ColumnCount = 5

// Workbook wraps an attendance spreadsheet.
type Workbook struct {
	file   *excelize.File
	layout config.LayoutConfig
	sheet  string
}

// New creates an empty ledger workbook with the title and header rows.
func New(layout config.LayoutConfig, group string, day time.Time) (*Workbook, error) {
	f := excelize.NewFile()
	sheet := layout.Sheet
	if sheet == "" {
		sheet = "Sheet1"
	}
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("renaming sheet: %w", err)
	}

	wb := &Workbook{file: f, layout: layout, sheet: sheet}
	if err := wb.writeHeader(group, day); err != nil {
		f.Close()
		return nil, err
	}
	return wb, nil
}

// Open reads an existing workbook from disk.
func Open(path string, layout config.LayoutConfig) (*Workbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening workbook %s: %w", path, err)
	}
	return wrap(f, layout), nil
}

// Read parses a workbook from r.
func Read(r io.Reader, layout config.LayoutConfig) (*Workbook, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("reading workbook: %w", err)
	}
	return wrap(f, layout), nil
}

func wrap(f *excelize.File, layout config.LayoutConfig) *Workbook {
	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	return &Workbook{file: f, layout: layout, sheet: sheet}
}

// Close releases the workbook.
func (w *Workbook) Close() error {
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("closing workbook: %w", err)
	}
	return nil
}

func (w *Workbook) writeHeader(group string, day time.Time) error {
	dateFormat := w.layout.TitleDateFormat
	if dateFormat == "" {
		dateFormat = "2006-01-02"
	}
	title := strings.NewReplacer("{group}", group, "{date}", day.Format(dateFormat)).Replace(w.layout.Title)

	lastCol, err := excelize.ColumnNumberToName(ColumnCount)
	if err != nil {
		return fmt.Errorf("resolving last column: %w", err)
	}
	if err := w.file.MergeCell(w.sheet, "A1", lastCol+"1"); err != nil {
		return fmt.Errorf("merging title: %w", err)
	}
	if err := w.file.SetCellValue(w.sheet, "A1", title); err != nil {
		return fmt.Errorf("writing title: %w", err)
	}

	labels := w.layout.Headers()
	headers := make([]any, ColumnCount)
	for i := range headers {
		if i < len(labels) {
			headers[i] = labels[i]
		}
	}
	if err := w.file.SetSheetRow(w.sheet, "A2", &headers); err != nil {
		return fmt.Errorf("writing headers: %w", err)
	}

	bold, err := w.file.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}
	if err := w.file.SetCellStyle(w.sheet, "A1", lastCol+"2", bold); err != nil {
		return fmt.Errorf("styling header: %w", err)
	}

	for i, c := range w.layout.Columns {
		if i >= ColumnCount || c.Width <= 0 {
			continue
		}
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return fmt.Errorf("resolving column %d: %w", i+1, err)
		}
		if err := w.file.SetColWidth(w.sheet, col, col, c.Width); err != nil {
			return fmt.Errorf("setting width of column %s: %w", col, err)
		}
	}
	return nil
}

// Records returns the data rows in order. Reading stops at the first row
// without an identity id.
func (w *Workbook) Records() ([]database.AttendanceRecord, error) {
	rows, err := w.file.GetRows(w.sheet)
	if err != nil {
		return nil, fmt.Errorf("reading rows: %w", err)
	}

	var records []database.AttendanceRecord
	for i := HeaderRows; i < len(rows); i++ {
		row := rows[i]
		id := cell(row, 1)
		if id == "" {
			break
		}
		seq, err := strconv.Atoi(cell(row, 0))
		if err != nil {
			seq = len(records) + 1
		}
		records = append(records, database.AttendanceRecord{
			Seq:        seq,
			IdentityID: id,
			Name:       cell(row, 2),
			Group:      cell(row, 3),
			Time:       cell(row, 4),
		})
	}
	return records, nil
}

func cell(row []string, i int) string {
	if i < len(row) {
		return strings.TrimSpace(row[i])
	}
	return ""
}

// Append writes rec as the next data row. The caller assigns Seq.
func (w *Workbook) Append(rec database.AttendanceRecord) error {
	records, err := w.Records()
	if err != nil {
		return err
	}
	axis, err := excelize.CoordinatesToCellName(1, HeaderRows+len(records)+1)
	if err != nil {
		return fmt.Errorf("resolving row: %w", err)
	}
	row := []any{rec.Seq, rec.IdentityID, rec.Name, rec.Group, rec.Time}
	if err := w.file.SetSheetRow(w.sheet, axis, &row); err != nil {
		return fmt.Errorf("writing row %s: %w", axis, err)
	}
	return nil
}

// SaveAs writes the workbook to path.
func (w *Workbook) SaveAs(path string) error {
	if err := w.file.SaveAs(path); err != nil {
		return fmt.Errorf("saving workbook %s: %w", path, err)
	}
	return nil
}

// WriteTo writes the workbook to out.
func (w *Workbook) WriteTo(out io.Writer) (int64, error) {
	n, err := w.file.WriteTo(out)
	if err != nil {
		return n, fmt.Errorf("writing workbook: %w", err)
	}
	return n, nil
}

// Render builds a complete workbook for the given records and returns its bytes.
func Render(layout config.LayoutConfig, group string, day time.Time, records []database.AttendanceRecord) ([]byte, error) {
	wb, err := New(layout, group, day)
	if err != nil {
		return nil, err
	}
	defer wb.Close()

	for _, rec := range records {
		if err := wb.Append(rec); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if _, err := wb.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
