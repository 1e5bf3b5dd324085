package workbook

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
)

var testDay = time.Date(2026, 10, 19, 8, 30, 0, 0, time.UTC)

func TestNew_EmptyLedger(t *testing.T) {
	wb, err := New(config.DefaultLayout(), "1A", testDay)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer wb.Close()

	records, err := wb.Records()
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected no records, got %d", len(records))
	}

	rows, err := wb.file.GetRows(wb.sheet)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != HeaderRows {
		t.Fatalf("expected %d header rows, got %d", HeaderRows, len(rows))
	}
	if rows[0][0] != "Lista de Asistencia - 1A - 19/10/2026" {
		t.Errorf("unexpected title %q", rows[0][0])
	}
	if len(rows[1]) != ColumnCount || rows[1][4] != "Hora de Registro" {
		t.Errorf("unexpected header row %v", rows[1])
	}
}

func TestAppendAndSaveRoundTrip(t *testing.T) {
	layout := config.DefaultLayout()
	wb, err := New(layout, "1A", testDay)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	in := []database.AttendanceRecord{
		{Seq: 1, IdentityID: "S1", Name: "Ana", Group: "1A", Time: "08:30:00"},
		{Seq: 2, IdentityID: "S2", Name: "Luis Pérez", Group: "1A", Time: "08:30:00"},
	}
	for _, rec := range in {
		if err := wb.Append(rec); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	path := filepath.Join(t.TempDir(), "ledger.xlsx")
	if err := wb.SaveAs(path); err != nil {
		t.Fatalf("SaveAs: %v", err)
	}
	wb.Close()

	reopened, err := Open(path, layout)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer reopened.Close()

	out, err := reopened.Records()
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if len(out) != len(in) {
		t.Fatalf("expected %d records, got %d", len(in), len(out))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("record %d = %+v, want %+v", i, out[i], in[i])
		}
	}
}

func TestRecords_StopsAtFirstRowWithoutID(t *testing.T) {
	wb, err := New(config.DefaultLayout(), "1A", testDay)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer wb.Close()

	if err := wb.Append(database.AttendanceRecord{Seq: 1, IdentityID: "S1", Name: "Ana", Group: "1A", Time: "08:00:00"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	// Row 4 has no id, row 5 does; row 5 must not be read.
	if err := wb.file.SetCellValue(wb.sheet, "C4", "note"); err != nil {
		t.Fatalf("SetCellValue: %v", err)
	}
	row := []any{3, "S3", "Eva", "1A", "09:00:00"}
	if err := wb.file.SetSheetRow(wb.sheet, "A5", &row); err != nil {
		t.Fatalf("SetSheetRow: %v", err)
	}

	records, err := wb.Records()
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if len(records) != 1 || records[0].IdentityID != "S1" {
		t.Errorf("expected only S1, got %+v", records)
	}
}

func TestRender(t *testing.T) {
	layout := config.DefaultLayout()
	data, err := Render(layout, "2B", testDay, []database.AttendanceRecord{
		{Seq: 1, IdentityID: "S9", Name: "Eva", Group: "2B", Time: "10:00:00"},
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	wb, err := Read(bytes.NewReader(data), layout)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	defer wb.Close()

	records, err := wb.Records()
	if err != nil {
		t.Fatalf("Records: %v", err)
	}
	if len(records) != 1 || records[0].IdentityID != "S9" || records[0].Seq != 1 {
		t.Errorf("unexpected records %+v", records)
	}
}
