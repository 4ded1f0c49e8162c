package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/picdock/engine/internal/model"
)

// Insert writes record, idempotent on id (INSERT OR REPLACE), and publishes
// an EventUpdated notification.
func (s *Store) Insert(ctx context.Context, record model.HistoryRecord) error {
	resultsJSON, err := json.Marshal(record.Results)
	if err != nil {
		return fmt.Errorf("history: encoding results: %w", err)
	}

	var linkCheckJSON sql.NullString
	if record.LinkCheckStatus != nil {
		b, err := json.Marshal(record.LinkCheckStatus)
		if err != nil {
			return fmt.Errorf("history: encoding link_check_status: %w", err)
		}

		linkCheckJSON = sql.NullString{String: string(b), Valid: true}
	}

	err = s.serializedWrite(ctx, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO history
				(id, timestamp, local_file_name, file_path, primary_backend, results,
				 generated_link, width, height, aspect_ratio, file_size, format,
				 link_check_status, normalized_name, normalized_link)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			record.ID, record.TimestampMs, record.LocalFileName, record.FilePath,
			record.PrimaryBackend, string(resultsJSON), record.GeneratedLink,
			record.ImageMeta.Width, record.ImageMeta.Height, record.ImageMeta.AspectRatio,
			record.ImageMeta.FileSize, record.ImageMeta.Format, linkCheckJSON,
			normalize(record.LocalFileName), normalize(record.GeneratedLink),
		)

		return err
	})
	if err != nil {
		return fmt.Errorf("history: insert: %w", err)
	}

	s.publish(Event{Kind: EventUpdated, ID: record.ID})

	return nil
}

// normalize applies NFC Unicode normalization so search comparisons are
// stable across visually-identical but differently-composed file names.
func normalize(s string) string {
	return strings.ToLower(norm.NFC.String(s))
}

// GetByID returns the record with id, or sql.ErrNoRows if absent.
func (s *Store) GetByID(ctx context.Context, id string) (*model.HistoryRecord, error) {
	row := s.readDB.QueryRowContext(ctx, baseSelect+" WHERE id = ?", id)
	return scanRecord(row)
}

// GetByFilePath returns the most recent record for path, or sql.ErrNoRows.
func (s *Store) GetByFilePath(ctx context.Context, path string) (*model.HistoryRecord, error) {
	row := s.readDB.QueryRowContext(ctx, baseSelect+" WHERE file_path = ? ORDER BY timestamp DESC LIMIT 1", path)
	return scanRecord(row)
}

// Page is one paginated slice of history, newest first.
type Page struct {
	Records []model.HistoryRecord
	Total   int
	HasMore bool
}

// GetPage returns page (1-indexed) of pageSize records, optionally filtered
// to a single backend ("all" for every backend).
func (s *Store) GetPage(ctx context.Context, page, pageSize int, filter string) (*Page, error) {
	if page < 1 {
		page = 1
	}

	where, args := filterClause(filter)

	total, err := s.count(ctx, where, args)
	if err != nil {
		return nil, err
	}

	offset := (page - 1) * pageSize

	query := baseSelect + where + " ORDER BY timestamp DESC LIMIT ? OFFSET ?"
	rows, err := s.readDB.QueryContext(ctx, query, append(args, pageSize, offset)...)
	if err != nil {
		return nil, fmt.Errorf("history: get_page: %w", err)
	}
	defer rows.Close()

	records, err := scanAll(rows)
	if err != nil {
		return nil, err
	}

	return &Page{
		Records: records,
		Total:   total,
		HasMore: total > page*pageSize,
	}, nil
}

func filterClause(filter string) (string, []any) {
	if filter == "" || filter == "all" {
		return "", nil
	}

	return " WHERE primary_backend = ?", []any{filter}
}

func (s *Store) count(ctx context.Context, where string, args []any) (int, error) {
	var total int

	err := s.readDB.QueryRowContext(ctx, "SELECT COUNT(*) FROM history"+where, args...).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("history: counting records: %w", err)
	}

	return total, nil
}

// Search performs a case-insensitive substring match over local_file_name
// and generated_link, optionally filtered by backend, paginated by
// limit/offset.
func (s *Store) Search(ctx context.Context, query, filter string, limit, offset int) ([]model.HistoryRecord, error) {
	needle := "%" + normalize(query) + "%"

	where := "WHERE (normalized_name LIKE ? OR normalized_link LIKE ?)"
	args := []any{needle, needle}

	if filter != "" && filter != "all" {
		where += " AND primary_backend = ?"
		args = append(args, filter)
	}

	sqlQuery := baseSelect + " " + where + " ORDER BY timestamp DESC LIMIT ? OFFSET ?"
	args = append(args, limit, offset)

	rows, err := s.readDB.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("history: search: %w", err)
	}
	defer rows.Close()

	return scanAll(rows)
}

// Patch is a partial update to an existing record. Nil fields are left
// unchanged; Results, when non-nil, replaces the whole results column and
// MUST go through the serialised write path (Update always does).
type Patch struct {
	PrimaryBackend *model.BackendID
	Results        []model.BackendAttempt
	GeneratedLink  *string
}

// Update applies patch to id through the store's serialised write path —
// required because single-backend and full-record retries can race on the
// same record.
func (s *Store) Update(ctx context.Context, id string, patch Patch) error {
	err := s.serializedWrite(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var sets []string
		var args []any

		if patch.PrimaryBackend != nil {
			sets = append(sets, "primary_backend = ?")
			args = append(args, string(*patch.PrimaryBackend))
		}

		if patch.Results != nil {
			resultsJSON, err := json.Marshal(patch.Results)
			if err != nil {
				return fmt.Errorf("encoding results: %w", err)
			}

			sets = append(sets, "results = ?")
			args = append(args, string(resultsJSON))
		}

		if patch.GeneratedLink != nil {
			sets = append(sets, "generated_link = ?", "normalized_link = ?")
			args = append(args, *patch.GeneratedLink, normalize(*patch.GeneratedLink))
		}

		if len(sets) == 0 {
			return nil
		}

		args = append(args, id)

		_, err := tx.ExecContext(ctx, "UPDATE history SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)

		return err
	})
	if err != nil {
		return fmt.Errorf("history: update %s: %w", id, err)
	}

	s.publish(Event{Kind: EventUpdated, ID: id})

	return nil
}

// UpdateBackendResult patches a single backend's attempt within an existing
// record's results column, through the serialised write path: load the
// current row, apply the patch, store the result. Used for single-backend
// retries.
func (s *Store) UpdateBackendResult(ctx context.Context, id string, attempt model.BackendAttempt) error {
	return s.serializedWrite(ctx, func(ctx context.Context, tx *sql.Tx) error {
		var rawResults string

		err := tx.QueryRowContext(ctx, "SELECT results FROM history WHERE id = ?", id).Scan(&rawResults)
		if err != nil {
			return fmt.Errorf("loading current results: %w", err)
		}

		var results []model.BackendAttempt
		if err := json.Unmarshal([]byte(rawResults), &results); err != nil {
			return fmt.Errorf("decoding current results: %w", err)
		}

		replaced := false

		for i := range results {
			if results[i].BackendID == attempt.BackendID {
				results[i] = attempt
				replaced = true

				break
			}
		}

		if !replaced {
			results = append(results, attempt)
		}

		encoded, err := json.Marshal(results)
		if err != nil {
			return fmt.Errorf("encoding patched results: %w", err)
		}

		_, err = tx.ExecContext(ctx, "UPDATE history SET results = ? WHERE id = ?", string(encoded), id)

		return err
	})
}

// Delete removes one record.
func (s *Store) Delete(ctx context.Context, id string) error {
	err := s.serializedWrite(ctx, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "DELETE FROM history WHERE id = ?", id)
		return err
	})
	if err != nil {
		return fmt.Errorf("history: delete %s: %w", id, err)
	}

	s.publish(Event{Kind: EventDeleted, ID: id})

	return nil
}

// DeleteMany removes several records in one transaction.
func (s *Store) DeleteMany(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))

	for i, id := range ids {
		args[i] = id
	}

	err := s.serializedWrite(ctx, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "DELETE FROM history WHERE id IN ("+placeholders+")", args...)
		return err
	})
	if err != nil {
		return fmt.Errorf("history: delete_many: %w", err)
	}

	for _, id := range ids {
		s.publish(Event{Kind: EventDeleted, ID: id})
	}

	return nil
}

// Clear removes every record.
func (s *Store) Clear(ctx context.Context) error {
	return s.serializedWrite(ctx, func(ctx context.Context, tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "DELETE FROM history")
		return err
	})
}

// PeriodStats is one (year, month) bucket's record count.
type PeriodStats struct {
	Year  int
	Month int
	Count int
}

// GetTimePeriodStats returns per (year, month) counts for the timeline
// sidebar, derived from the unix-millisecond timestamp column.
func (s *Store) GetTimePeriodStats(ctx context.Context) ([]PeriodStats, error) {
	rows, err := s.readDB.QueryContext(ctx, `
		SELECT CAST(strftime('%Y', timestamp / 1000, 'unixepoch') AS INTEGER) AS yr,
		       CAST(strftime('%m', timestamp / 1000, 'unixepoch') AS INTEGER) AS mo,
		       COUNT(*)
		FROM history
		GROUP BY yr, mo
		ORDER BY yr DESC, mo DESC`)
	if err != nil {
		return nil, fmt.Errorf("history: time period stats: %w", err)
	}
	defer rows.Close()

	var stats []PeriodStats

	for rows.Next() {
		var p PeriodStats
		if err := rows.Scan(&p.Year, &p.Month, &p.Count); err != nil {
			return nil, fmt.Errorf("history: scanning time period stats: %w", err)
		}

		stats = append(stats, p)
	}

	return stats, rows.Err()
}
