package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/arbdesk/cedearmon/internal/domain"
)

// Uploader is the slice of Writer the archiver needs.
type Uploader interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// drainBatch bounds how many rows one database read pulls.
const drainBatch = 5000

// Archiver moves aged evaluation rows out of the primary store into
// month-partitioned JSONL objects. Rows are deleted only after every upload
// for the run has succeeded, so a failed run leaves the database intact and
// the next run re-archives the same window.
type Archiver struct {
	writer Uploader
	audit  domain.AuditStore
	logger *slog.Logger
	now    func() time.Time
	batch  int
}

// NewArchiver creates an Archiver writing through writer and draining audit.
func NewArchiver(writer Uploader, audit domain.AuditStore, logger *slog.Logger) *Archiver {
	return &Archiver{
		writer: writer,
		audit:  audit,
		logger: logger.With(slog.String("component", "archiver")),
		now:    time.Now,
		batch:  drainBatch,
	}
}

// Run archives every evaluation created before cutoff and returns the number
// of rows moved.
func (a *Archiver) Run(ctx context.Context, cutoff time.Time) (int64, error) {
	byMonth := make(map[string][]domain.Evaluation)
	var total int64

	// Keyset pagination on (created_at, id): rows from one tick share a
	// created_at, and a timestamp-only cursor would skip the tail of a tick
	// split across batches. Those rows would then be deleted unarchived.
	var afterTime time.Time
	var afterID string
	for {
		rows, err := a.audit.ListRange(ctx, afterTime, afterID, cutoff, a.batch)
		if err != nil {
			return 0, fmt.Errorf("s3blob: archive query: %w", err)
		}
		if len(rows) == 0 {
			break
		}
		for _, ev := range rows {
			m := ev.CreatedAt.UTC().Format("2006-01")
			byMonth[m] = append(byMonth[m], ev)
		}
		total += int64(len(rows))
		if len(rows) < a.batch {
			break
		}
		last := rows[len(rows)-1]
		afterTime, afterID = last.CreatedAt, last.ID
	}
	if total == 0 {
		return 0, nil
	}

	// One object per calendar month, suffixed with the run time so repeated
	// runs never clobber an earlier archive.
	runStamp := a.now().UTC().Format("20060102T150405Z")
	for month, rows := range byMonth {
		buf, err := marshalJSONL(rows)
		if err != nil {
			return 0, fmt.Errorf("s3blob: archive marshal %s: %w", month, err)
		}
		path := fmt.Sprintf("archive/evaluations/%s/%s.jsonl", month, runStamp)
		if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
			return 0, fmt.Errorf("s3blob: archive upload %s: %w", path, err)
		}
		a.logger.InfoContext(ctx, "archive object written",
			slog.String("path", path),
			slog.Int("rows", len(rows)),
		)
	}

	deleted, err := a.audit.DeleteBefore(ctx, cutoff)
	if err != nil {
		return total, fmt.Errorf("s3blob: archive delete: %w", err)
	}
	a.logger.InfoContext(ctx, "archive run complete",
		slog.Int64("archived", total),
		slog.Int64("deleted", deleted),
		slog.Time("cutoff", cutoff),
	)
	return total, nil
}

// marshalJSONL serialises records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
