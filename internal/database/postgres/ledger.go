package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// LedgerRepository stores attendance ledgers in PostgreSQL.
// A ledger row per (group key, day) holds the numbered attendance records.
type LedgerRepository struct {
	pool *Pool
}

// NewLedgerRepository creates a new PostgreSQL ledger repository.
func NewLedgerRepository(pool *Pool) *LedgerRepository {
	return &LedgerRepository{pool: pool}
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

// GetOrCreate returns the ledger for (group, day), creating it if needed.
func (r *LedgerRepository) GetOrCreate(ctx context.Context, group string, day time.Time) (database.LedgerInfo, error) {
	info := ledgerInfo(group, day)

	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return info, database.WrapStorage("get ledger", err)
	}
	defer tx.Rollback()

	ledgerID, err := ensureLedger(ctx, tx, info)
	if err != nil {
		return info, database.WrapStorage("get ledger", err)
	}
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM attendance_records WHERE ledger_id = $1", ledgerID,
	).Scan(&info.Count); err != nil {
		return info, database.WrapStorage("get ledger", fmt.Errorf("count records: %w", err))
	}
	if err := tx.Commit(); err != nil {
		return info, database.WrapStorage("get ledger", fmt.Errorf("commit: %w", err))
	}
	return info, nil
}

// ensureLedger creates the ledger row if missing and locks it for the rest of tx.
func ensureLedger(ctx context.Context, tx *sql.Tx, info database.LedgerInfo) (int64, error) {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO ledgers (group_key, day, group_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (group_key, day) DO NOTHING
	`, info.Key, info.Date, info.Group); err != nil {
		return 0, fmt.Errorf("create ledger: %w", err)
	}

	var id int64
	if err := tx.QueryRowContext(ctx,
		"SELECT id FROM ledgers WHERE group_key = $1 AND day = $2 FOR UPDATE", info.Key, info.Date,
	).Scan(&id); err != nil {
		return 0, fmt.Errorf("lock ledger: %w", err)
	}
	return id, nil
}

// InsertIfAbsent appends rec unless the identity is already in the ledger.
// The ledger row lock makes the existence check and the sequence number
// atomic with the insert.
func (r *LedgerRepository) InsertIfAbsent(ctx context.Context, group string, day time.Time, rec database.AttendanceRecord) (bool, error) {
	info := ledgerInfo(group, day)

	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return false, database.WrapStorage("insert attendance", err)
	}
	defer tx.Rollback()

	ledgerID, err := ensureLedger(ctx, tx, info)
	if err != nil {
		return false, database.WrapStorage("insert attendance", err)
	}

	var present bool
	if err := tx.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM attendance_records WHERE ledger_id = $1 AND identity_id = $2)",
		ledgerID, rec.IdentityID,
	).Scan(&present); err != nil {
		return false, database.WrapStorage("insert attendance", fmt.Errorf("check record: %w", err))
	}
	if present {
		return false, nil
	}

	var seq int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) + 1 FROM attendance_records WHERE ledger_id = $1", ledgerID,
	).Scan(&seq); err != nil {
		return false, database.WrapStorage("insert attendance", fmt.Errorf("next seq: %w", err))
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO attendance_records (ledger_id, seq, identity_id, name, group_name, registered)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, ledgerID, seq, rec.IdentityID, rec.Name, rec.Group, rec.Time); err != nil {
		return false, database.WrapStorage("insert attendance", fmt.Errorf("insert record: %w", err))
	}
	if err := tx.Commit(); err != nil {
		return false, database.WrapStorage("insert attendance", fmt.Errorf("commit: %w", err))
	}
	return true, nil
}

// ReadAll returns the ledger's records ordered by sequence number.
func (r *LedgerRepository) ReadAll(ctx context.Context, group string, day time.Time) ([]database.AttendanceRecord, error) {
	info := ledgerInfo(group, day)

	rows, err := r.pool.Query(ctx, `
		SELECT a.seq, a.identity_id, a.name, a.group_name, a.registered
		FROM attendance_records a
		JOIN ledgers l ON l.id = a.ledger_id
		WHERE l.group_key = $1 AND l.day = $2
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
	err := r.pool.QueryRow(ctx,
		"SELECT id FROM ledgers WHERE group_key = $1 AND day = $2", info.Key, info.Date,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, database.WrapStorage("ledger exists", err)
	}
	return true, nil
}
