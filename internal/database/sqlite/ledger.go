package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// LedgerRepository stores attendance ledgers in SQLite.
type LedgerRepository struct {
	store *Store
}

// NewLedgerRepository creates a new SQLite ledger repository.
func NewLedgerRepository(store *Store) *LedgerRepository {
	return &LedgerRepository{store: store}
}

func ledgerInfo(group string, day time.Time) database.LedgerInfo {
	key, date := database.LedgerKey(group, day)
	return database.LedgerInfo{
		Group:    group,
		Key:      key,
		Date:     date,
		FileName: database.LedgerFileName(group, day),
	}
}

func ensureLedger(ctx context.Context, tx *sql.Tx, info database.LedgerInfo) (int64, error) {
	if _, err := tx.ExecContext(ctx,
		"INSERT OR IGNORE INTO ledgers (group_key, day, group_name) VALUES (?, ?, ?)",
		info.Key, info.Date, info.Group,
	); err != nil {
		return 0, fmt.Errorf("create ledger: %w", err)
	}
	var id int64
	if err := tx.QueryRowContext(ctx,
		"SELECT id FROM ledgers WHERE group_key = ? AND day = ?", info.Key, info.Date,
	).Scan(&id); err != nil {
		return 0, fmt.Errorf("get ledger id: %w", err)
	}
	return id, nil
}

// GetOrCreate returns the ledger for (group, day), creating it if needed.
func (r *LedgerRepository) GetOrCreate(ctx context.Context, group string, day time.Time) (database.LedgerInfo, error) {
	info := ledgerInfo(group, day)

	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return info, database.WrapStorage("get ledger", err)
	}
	defer tx.Rollback()

	id, err := ensureLedger(ctx, tx, info)
	if err != nil {
		return info, database.WrapStorage("get ledger", err)
	}
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM attendance_records WHERE ledger_id = ?", id,
	).Scan(&info.Count); err != nil {
		return info, database.WrapStorage("get ledger", fmt.Errorf("count records: %w", err))
	}
	if err := tx.Commit(); err != nil {
		return info, database.WrapStorage("get ledger", fmt.Errorf("commit: %w", err))
	}
	return info, nil
}

// InsertIfAbsent appends rec unless the identity is already in the ledger.
func (r *LedgerRepository) InsertIfAbsent(ctx context.Context, group string, day time.Time, rec database.AttendanceRecord) (bool, error) {
	info := ledgerInfo(group, day)

	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return false, database.WrapStorage("insert attendance", err)
	}
	defer tx.Rollback()

	id, err := ensureLedger(ctx, tx, info)
	if err != nil {
		return false, database.WrapStorage("insert attendance", err)
	}

	var seq int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) + 1 FROM attendance_records WHERE ledger_id = ?", id,
	).Scan(&seq); err != nil {
		return false, database.WrapStorage("insert attendance", fmt.Errorf("next seq: %w", err))
	}

	res, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO attendance_records (ledger_id, seq, identity_id, name, group_name, registered)
		VALUES (?, ?, ?, ?, ?, ?)
	`, id, seq, rec.IdentityID, rec.Name, rec.Group, rec.Time)
	if err != nil {
		return false, database.WrapStorage("insert attendance", fmt.Errorf("insert record: %w", err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, database.WrapStorage("insert attendance", fmt.Errorf("rows affected: %w", err))
	}
	if err := tx.Commit(); err != nil {
		return false, database.WrapStorage("insert attendance", fmt.Errorf("commit: %w", err))
	}
	return n == 1, nil
}

// ReadAll returns the ledger's records ordered by sequence number.
func (r *LedgerRepository) ReadAll(ctx context.Context, group string, day time.Time) ([]database.AttendanceRecord, error) {
	info := ledgerInfo(group, day)

	rows, err := r.store.db.QueryContext(ctx, `
		SELECT a.seq, a.identity_id, a.name, a.group_name, a.registered
		FROM attendance_records a
		JOIN ledgers l ON l.id = a.ledger_id
		WHERE l.group_key = ? AND l.day = ?
		ORDER BY a.seq
	`, info.Key, info.Date)
	if err != nil {
		return nil, database.WrapStorage("read attendance", err)
	}
	defer rows.Close()

	records := []database.AttendanceRecord{}
	for rows.Next() {
		var rec database.AttendanceRecord
		if err := rows.Scan(&rec.Seq, &rec.IdentityID, &rec.Name, &rec.Group, &rec.Time); err != nil {
			return nil, database.WrapStorage("read attendance", fmt.Errorf("scan record: %w", err))
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, database.WrapStorage("read attendance", err)
	}
	return records, nil
}

// Exists reports whether the ledger has been created.
func (r *LedgerRepository) Exists(ctx context.Context, group string, day time.Time) (bool, error) {
	info := ledgerInfo(group, day)

	var id int64
	err := r.store.db.QueryRowContext(ctx,
		"SELECT id FROM ledgers WHERE group_key = ? AND day = ?", info.Key, info.Date,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, database.WrapStorage("ledger exists", err)
	}
	return true, nil
}
