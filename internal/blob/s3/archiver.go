package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/breakpt/riftbet/internal/domain"
)

// Narrow store interfaces: the archiver only needs the time-ranged queries it
// actually calls, not the full domain stores.

// MatchArchiveStore provides read access to finished matches for archival.
type MatchArchiveStore interface {
	ListFinishedBefore(ctx context.Context, before time.Time) ([]domain.Match, error)
}

// WagerArchiveStore provides read access to settled wagers for archival.
type WagerArchiveStore interface {
	ListSettledBefore(ctx context.Context, before time.Time) ([]domain.Wager, error)
}

// blobPutter is the writer surface the archiver uses. *Writer satisfies it.
type blobPutter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

// ArchiveImpl implements domain.Archiver by exporting settled history as
// JSONL objects, partitioned by the year-month of the cutoff.
//
// Deletion of archived rows from the primary store is intentionally NOT done
// here; that is a separate, explicit step once the archive is verified.
type ArchiveImpl struct {
	writer  blobPutter
	matches MatchArchiveStore
	wagers  WagerArchiveStore
}

var _ domain.Archiver = (*ArchiveImpl)(nil)

// NewArchiver creates a new ArchiveImpl.
func NewArchiver(writer blobPutter, matches MatchArchiveStore, wagers WagerArchiveStore) *ArchiveImpl {
	return &ArchiveImpl{
		writer:  writer,
		matches: matches,
		wagers:  wagers,
	}
}

// matchRecord is the JSONL shape of an archived match.
type matchRecord struct {
	ExternalID string    `json:"external_id"`
	State      string    `json:"state"`
	Result     *string   `json:"result,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	SettledAt  time.Time `json:"settled_at"`
}

// wagerRecord is the JSONL shape of an archived wager.
type wagerRecord struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	MarketID  string     `json:"market_id"`
	Side      string     `json:"side"`
	Amount    float64    `json:"amount"`
	LockedOdd float64    `json:"locked_odd"`
	State     string     `json:"state"`
	CreatedAt time.Time  `json:"created_at"`
	SettledAt *time.Time `json:"settled_at,omitempty"`
}

// ArchiveSettled exports finished matches and their settled wagers older than
// the cutoff to archive/matches/YYYY-MM.jsonl and archive/wagers/YYYY-MM.jsonl,
// returning the total number of exported records.
func (a *ArchiveImpl) ArchiveSettled(ctx context.Context, before time.Time) (int64, error) {
	matches, err := a.matches.ListFinishedBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive matches query: %w", err)
	}
	wagers, err := a.wagers.ListSettledBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive wagers query: %w", err)
	}
	if len(matches) == 0 && len(wagers) == 0 {
		return 0, nil
	}

	var total int64

	if len(matches) > 0 {
		records := make([]matchRecord, 0, len(matches))
		for _, m := range matches {
			rec := matchRecord{
				ExternalID: m.ExternalID,
				State:      string(m.State),
				StartedAt:  m.StartedAt,
				SettledAt:  m.UpdatedAt,
			}
			if m.Result != nil {
				s := string(*m.Result)
				rec.Result = &s
			}
			records = append(records, rec)
		}

		buf, err := marshalJSONL(records)
		if err != nil {
			return 0, fmt.Errorf("s3blob: archive matches marshal: %w", err)
		}
		path := archivePath("matches", before)
		if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
			return 0, fmt.Errorf("s3blob: archive matches upload: %w", err)
		}
		total += int64(len(records))
	}

	if len(wagers) > 0 {
		records := make([]wagerRecord, 0, len(wagers))
		for _, w := range wagers {
			records = append(records, wagerRecord{
				ID:        w.ID,
				UserID:    w.UserID,
				MarketID:  w.MarketID,
				Side:      string(w.Side),
				Amount:    w.Amount,
				LockedOdd: w.LockedOdd,
				State:     string(w.State),
				CreatedAt: w.CreatedAt,
				SettledAt: w.SettledAt,
			})
		}

		buf, err := marshalJSONL(records)
		if err != nil {
			return 0, fmt.Errorf("s3blob: archive wagers marshal: %w", err)
		}
		// Wager exports dominate the volume; the multipart path keeps memory
		// per request bounded on large months.
		path := archivePath("wagers", before)
		if err := a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), 0); err != nil {
			return 0, fmt.Errorf("s3blob: archive wagers upload: %w", err)
		}
		total += int64(len(records))
	}

	return total, nil
}

// archivePath builds the object key for an archive file, partitioned by the
// year-month of the cutoff time, e.g. archive/wagers/2026-08.jsonl.
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
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
