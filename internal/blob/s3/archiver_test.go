package s3blob

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arbdesk/cedearmon/internal/domain"
)

type fakeUploader struct {
	objects map[string]string
	err     error
}

func (f *fakeUploader) Put(ctx context.Context, path string, data io.Reader, contentType string) error {
	if f.err != nil {
		return f.err
	}
	body, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	if f.objects == nil {
		f.objects = map[string]string{}
	}
	f.objects[path] = string(body)
	return nil
}

type fakeAudit struct {
	rows    []domain.Evaluation
	deleted int64
}

func (f *fakeAudit) Append(ctx context.Context, ev domain.Evaluation) error { return nil }

func (f *fakeAudit) ListRecent(ctx context.Context, limit int) ([]domain.Evaluation, error) {
	return nil, nil
}

func (f *fakeAudit) ListRange(ctx context.Context, afterTime time.Time, afterID string, before time.Time, limit int) ([]domain.Evaluation, error) {
	sorted := make([]domain.Evaluation, len(f.rows))
	copy(sorted, f.rows)
	sort.Slice(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
		}
		return sorted[i].ID < sorted[j].ID
	})

	var out []domain.Evaluation
	for _, ev := range sorted {
		pastCursor := ev.CreatedAt.After(afterTime) ||
			(ev.CreatedAt.Equal(afterTime) && ev.ID > afterID)
		if pastCursor && ev.CreatedAt.Before(before) {
			out = append(out, ev)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeAudit) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	var kept []domain.Evaluation
	for _, ev := range f.rows {
		if ev.CreatedAt.Before(before) {
			f.deleted++
			continue
		}
		kept = append(kept, ev)
	}
	f.rows = kept
	return f.deleted, nil
}

func evalAt(id string, at time.Time) domain.Evaluation {
	return domain.Evaluation{ID: id, Ticker: "VIST", CreatedAt: at}
}

func testArchiver(uploader Uploader, audit domain.AuditStore) *Archiver {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a := NewArchiver(uploader, audit, logger)
	a.now = func() time.Time {
		return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	}
	return a
}

func TestArchiverRun(t *testing.T) {
	cutoff := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	audit := &fakeAudit{rows: []domain.Evaluation{
		evalAt("a", time.Date(2026, 2, 10, 15, 0, 0, 0, time.UTC)),
		evalAt("b", time.Date(2026, 3, 5, 15, 0, 0, 0, time.UTC)),
		evalAt("c", time.Date(2026, 3, 20, 15, 0, 0, 0, time.UTC)),
		// Newer than the cutoff: stays behind.
		evalAt("d", time.Date(2026, 4, 20, 15, 0, 0, 0, time.UTC)),
	}}
	uploader := &fakeUploader{}

	archived, err := testArchiver(uploader, audit).Run(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(3), archived)

	// One object per calendar month touched.
	require.Len(t, uploader.objects, 2)
	feb := uploader.objects["archive/evaluations/2026-02/20260501T120000Z.jsonl"]
	mar := uploader.objects["archive/evaluations/2026-03/20260501T120000Z.jsonl"]
	assert.Contains(t, feb, `"a"`)
	assert.Contains(t, mar, `"b"`)
	assert.Contains(t, mar, `"c"`)
	assert.Equal(t, 2, strings.Count(mar, "\n"))

	// Aged rows are gone, the recent one survives.
	assert.Equal(t, int64(3), audit.deleted)
	require.Len(t, audit.rows, 1)
	assert.Equal(t, "d", audit.rows[0].ID)
}

func TestArchiverRunBatchBoundaryInsideTick(t *testing.T) {
	// All rows of one tick carry the same created_at, so only the id
	// tie-break lets pagination resume inside the tick. A batch of 3 over
	// these 6 rows cuts the shared-timestamp tick in half.
	cutoff := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	tickAt := time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)
	audit := &fakeAudit{rows: []domain.Evaluation{
		evalAt("a", time.Date(2026, 3, 9, 15, 0, 0, 0, time.UTC)),
		evalAt("b", time.Date(2026, 3, 9, 15, 5, 0, 0, time.UTC)),
		evalAt("c", tickAt),
		evalAt("d", tickAt),
		evalAt("e", tickAt),
		evalAt("f", tickAt),
	}}
	uploader := &fakeUploader{}

	a := testArchiver(uploader, audit)
	a.batch = 3
	archived, err := a.Run(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(6), archived)

	mar := uploader.objects["archive/evaluations/2026-03/20260501T120000Z.jsonl"]
	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		assert.Contains(t, mar, `"`+id+`"`)
	}
	assert.Equal(t, int64(6), audit.deleted)
	assert.Empty(t, audit.rows)
}

func TestArchiverRunEmpty(t *testing.T) {
	uploader := &fakeUploader{}
	audit := &fakeAudit{}

	archived, err := testArchiver(uploader, audit).Run(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, archived)
	assert.Empty(t, uploader.objects)
}

func TestArchiverUploadFailureKeepsRows(t *testing.T) {
	cutoff := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	audit := &fakeAudit{rows: []domain.Evaluation{
		evalAt("a", time.Date(2026, 3, 5, 15, 0, 0, 0, time.UTC)),
	}}
	uploader := &fakeUploader{err: io.ErrClosedPipe}

	_, err := testArchiver(uploader, audit).Run(context.Background(), cutoff)
	require.Error(t, err)
	// Nothing was deleted; the next run retries the same window.
	assert.Len(t, audit.rows, 1)
	assert.Zero(t, audit.deleted)
}
