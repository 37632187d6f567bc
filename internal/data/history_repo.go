package data

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/qlora-pipeline/controlplane/internal/core"
	"github.com/qlora-pipeline/controlplane/internal/data/pgxutil"
	"github.com/qlora-pipeline/controlplane/internal/domain/model"
	apperrors "github.com/qlora-pipeline/controlplane/internal/errors"
)

const (
	// advisoryLockHistoryMajor namespaces pg_try_advisory_xact_lock(major, minor) for history maintenance.
	advisoryLockHistoryMajor = 2000
	advisoryLockHistoryPrune = 1

	historyColumns = `job_id, kind, summary, status, metadata, result, error, log_tail, log_total,
		created_at, started_at, finished_at`
)

// HistoryRepo archives terminal jobs in Postgres.
type HistoryRepo struct {
	DB *sql.DB
}

var _ core.JobHistoryRepository = (*HistoryRepo)(nil)

// NewHistoryRepo creates a Postgres history repository.
func NewHistoryRepo(db *sql.DB) *HistoryRepo {
	return &HistoryRepo{DB: db}
}

// Record inserts entry, replacing any earlier archive of the same job.
func (r *HistoryRepo) Record(ctx context.Context, entry *model.HistoryEntry) error {
	if entry == nil || entry.JobID == "" {
		return ErrJobIDRequired
	}

	const q = `
		INSERT INTO job_history (` + historyColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (job_id) DO UPDATE SET
			status = EXCLUDED.status,
			summary = EXCLUDED.summary,
			metadata = EXCLUDED.metadata,
			result = EXCLUDED.result,
			error = EXCLUDED.error,
			log_tail = EXCLUDED.log_tail,
			log_total = EXCLUDED.log_total,
			started_at = EXCLUDED.started_at,
			finished_at = EXCLUDED.finished_at,
			archived_at = now()`

	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, q,
			entry.JobID,
			string(entry.Kind),
			entry.Summary,
			string(entry.Status),
			jsonOrEmptyObject(entry.Metadata),
			nullableJSON(entry.Result),
			entry.Error,
			entry.LogTail,
			entry.LogTotal,
			entry.CreatedAt.UTC(),
			utcPtr(entry.StartedAt),
			entry.FinishedAt.UTC(),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("record job history %s: %w", entry.JobID, apperrors.MapDBError(err))
	}
	return nil
}

// List returns archived jobs, most recently finished first.
func (r *HistoryRepo) List(ctx context.Context, opts model.HistoryListOptions) ([]*model.HistoryEntry, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	query, args := buildHistoryListQuery(opts)

	var out []*model.HistoryEntry
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		out, err = pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[model.HistoryEntry])
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list job history: %w", apperrors.MapDBError(err))
	}
	return out, nil
}

// DeleteBefore removes entries that finished before cutoff. Concurrent callers on
// other instances skip the prune instead of blocking.
func (r *HistoryRepo) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	err := pgxutil.WithPgxTx(ctx, r.DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var locked bool
		if err := tx.QueryRow(ctx, "SELECT pg_try_advisory_xact_lock($1, $2)",
			advisoryLockHistoryMajor, advisoryLockHistoryPrune).Scan(&locked); err != nil {
			return fmt.Errorf("acquire advisory lock: %w", err)
		}
		if !locked {
			return nil
		}

		tag, err := tx.Exec(ctx, `DELETE FROM job_history WHERE finished_at < $1`, cutoff.UTC())
		if err != nil {
			return err
		}
		deleted = tag.RowsAffected()
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("prune job history: %w", apperrors.MapDBError(err))
	}
	return deleted, nil
}

func buildHistoryListQuery(opts model.HistoryListOptions) (string, []any) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if opts.Kind != "" {
		where = append(where, "kind = "+arg(string(opts.Kind)))
	}
	if opts.Status != "" {
		where = append(where, "status = "+arg(string(opts.Status)))
	}

	var b strings.Builder
	b.WriteString("SELECT " + historyColumns + " FROM job_history")
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY finished_at DESC, job_id")
	if opts.Limit > 0 {
		b.WriteString(" LIMIT " + arg(opts.Limit))
	}
	if opts.Offset > 0 {
		b.WriteString(" OFFSET " + arg(opts.Offset))
	}
	return b.String(), args
}

func jsonOrEmptyObject(raw []byte) []byte {
	if len(raw) == 0 || string(raw) == "null" {
		return []byte("{}")
	}
	return raw
}

func nullableJSON(raw []byte) any {
	if len(raw) == 0 {
		return nil
	}
	return raw
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
