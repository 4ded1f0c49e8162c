package history

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/picdock/engine/internal/model"
)

const baseSelect = `
	SELECT id, timestamp, local_file_name, file_path, primary_backend, results,
	       generated_link, width, height, aspect_ratio, file_size, format, link_check_status
	FROM history`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*model.HistoryRecord, error) {
	var (
		r             model.HistoryRecord
		resultsJSON   string
		linkCheckJSON sql.NullString
		width, height sql.NullInt64
		aspectRatio   sql.NullFloat64
		fileSize      sql.NullInt64
		format        sql.NullString
		localName     sql.NullString
		filePath      sql.NullString
		primary       sql.NullString
		link          sql.NullString
	)

	err := row.Scan(
		&r.ID, &r.TimestampMs, &localName, &filePath, &primary, &resultsJSON,
		&link, &width, &height, &aspectRatio, &fileSize, &format, &linkCheckJSON,
	)
	if err != nil {
		return nil, err
	}

	r.LocalFileName = localName.String
	r.FilePath = filePath.String
	r.PrimaryBackend = model.BackendID(primary.String)
	r.GeneratedLink = link.String

	if err := json.Unmarshal([]byte(resultsJSON), &r.Results); err != nil {
		return nil, fmt.Errorf("history: decoding results for %s: %w", r.ID, err)
	}

	if width.Valid {
		w := int(width.Int64)
		r.ImageMeta.Width = &w
	}

	if height.Valid {
		h := int(height.Int64)
		r.ImageMeta.Height = &h
	}

	if aspectRatio.Valid {
		r.ImageMeta.AspectRatio = &aspectRatio.Float64
	}

	if fileSize.Valid {
		r.ImageMeta.FileSize = &fileSize.Int64
	}

	r.ImageMeta.Format = format.String

	if linkCheckJSON.Valid {
		if err := json.Unmarshal([]byte(linkCheckJSON.String), &r.LinkCheckStatus); err != nil {
			return nil, fmt.Errorf("history: decoding link_check_status for %s: %w", r.ID, err)
		}
	}

	return &r, nil
}

func scanAll(rows *sql.Rows) ([]model.HistoryRecord, error) {
	var records []model.HistoryRecord

	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}

		records = append(records, *r)
	}

	return records, rows.Err()
}
