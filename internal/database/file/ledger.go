package file

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/workbook"
)

// Ledger stores one workbook per (group, date) in dir.
type Ledger struct {
	dir    string
	layout config.LayoutConfig
	locks  *database.KeyedMutex
}

// NewLedger creates a ledger rooted at dir.
func NewLedger(dir string, layout config.LayoutConfig) *Ledger {
	return &Ledger{
		dir:    dir,
		layout: layout,
		locks:  database.NewKeyedMutex(),
	}
}

// Path returns the workbook path of the (group, date) ledger.
func (l *Ledger) Path(group string, day time.Time) string {
	return filepath.Join(l.dir, database.LedgerFileName(group, day))
}

// lock acquires the exclusive scope of one ledger key.
func (l *Ledger) lock(path string) (func(), error) {
	unlock := l.locks.Lock(path)
	release, err := lockFile(path)
	if err != nil {
		unlock()
		return nil, err
	}
	return func() {
		release()
		unlock()
	}, nil
}

func (l *Ledger) info(group string, day time.Time, count int) database.LedgerInfo {
	key, date := database.LedgerKey(group, day)
	return database.LedgerInfo{
		Group:    group,
		Key:      key,
		Date:     date,
		FileName: database.LedgerFileName(group, day),
		Count:    count,
	}
}

// openOrCreate loads the workbook at path or creates an empty one.
// created reports whether the workbook still has to be persisted.
func (l *Ledger) openOrCreate(path, group string, day time.Time) (wb *workbook.Workbook, created bool, err error) {
	ok, err := exists(path)
	if err != nil {
		return nil, false, err
	}
	if ok {
		wb, err = workbook.Open(path, l.layout)
		return wb, false, err
	}
	wb, err = workbook.New(l.layout, group, day)
	return wb, true, err
}

func (l *Ledger) save(wb *workbook.Workbook, path string) error {
	return writeAtomic(path, func(w io.Writer) error {
		_, err := wb.WriteTo(w)
		return err
	})
}

// GetOrCreate returns the ledger, persisting an empty workbook if it is new.
func (l *Ledger) GetOrCreate(ctx context.Context, group string, day time.Time) (database.LedgerInfo, error) {
	if err := ctx.Err(); err != nil {
		return database.LedgerInfo{}, err
	}
	path := l.Path(group, day)
	unlock, err := l.lock(path)
	if err != nil {
		return database.LedgerInfo{}, database.WrapStorage("create ledger", err)
	}
	defer unlock()

	wb, created, err := l.openOrCreate(path, group, day)
	if err != nil {
		return database.LedgerInfo{}, database.WrapStorage("create ledger", err)
	}
	defer wb.Close()

	if created {
		if err := l.save(wb, path); err != nil {
			return database.LedgerInfo{}, database.WrapStorage("create ledger", err)
		}
		return l.info(group, day, 0), nil
	}

	records, err := wb.Records()
	if err != nil {
		return database.LedgerInfo{}, database.WrapStorage("read ledger", err)
	}
	return l.info(group, day, len(records)), nil
}

// InsertIfAbsent appends rec unless its identity already attended.
func (l *Ledger) InsertIfAbsent(ctx context.Context, group string, day time.Time, rec database.AttendanceRecord) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	path := l.Path(group, day)
	unlock, err := l.lock(path)
	if err != nil {
		return false, database.WrapStorage("insert attendance", err)
	}
	defer unlock()

	wb, _, err := l.openOrCreate(path, group, day)
	if err != nil {
		return false, database.WrapStorage("insert attendance", err)
	}
	defer wb.Close()

	records, err := wb.Records()
	if err != nil {
		return false, database.WrapStorage("insert attendance", err)
	}
	for _, existing := range records {
		if existing.IdentityID == rec.IdentityID {
			return false, nil
		}
	}

	rec.Seq = len(records) + 1
	if err := wb.Append(rec); err != nil {
		return false, database.WrapStorage("insert attendance", err)
	}
	if err := l.save(wb, path); err != nil {
		return false, database.WrapStorage("insert attendance", err)
	}
	return true, nil
}

// ReadAll returns the ledger records, empty if the ledger was never created.
func (l *Ledger) ReadAll(ctx context.Context, group string, day time.Time) ([]database.AttendanceRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := l.Path(group, day)
	ok, err := exists(path)
	if err != nil {
		return nil, database.WrapStorage("read ledger", err)
	}
	if !ok {
		return []database.AttendanceRecord{}, nil
	}

	wb, err := workbook.Open(path, l.layout)
	if err != nil {
		return nil, database.WrapStorage("read ledger", err)
	}
	defer wb.Close()

	records, err := wb.Records()
	if err != nil {
		return nil, database.WrapStorage("read ledger", err)
	}
	if records == nil {
		records = []database.AttendanceRecord{}
	}
	return records, nil
}

// Exists reports whether the workbook for the key is on disk.
func (l *Ledger) Exists(ctx context.Context, group string, day time.Time) (bool, error) {
	ok, err := exists(l.Path(group, day))
	if err != nil {
		return false, database.WrapStorage("stat ledger", fmt.Errorf("ledger %s: %w", database.LedgerFileName(group, day), err))
	}
	return ok, nil
}
