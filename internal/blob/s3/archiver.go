package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alanyoungcy/resolvd/internal/domain"
)

// archivePageSize is how many rows each store query fetches at a time.
const archivePageSize = 1000

// MarketArchiveStore is the narrow read surface the archiver needs from the
// market store. The Postgres MarketStore satisfies it implicitly.
type MarketArchiveStore interface {
	ListFinalizedBefore(ctx context.Context, cutoff time.Time, opts domain.ListOpts) ([]domain.Market, error)
}

// StakeEventArchiveStore is the narrow surface the archiver needs from the
// stake-event store: paged reads of cold rows plus the trailing delete.
type StakeEventArchiveStore interface {
	ListBefore(ctx context.Context, cutoff time.Time, opts domain.ListOpts) ([]domain.StakeEvent, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Archiver implements domain.Archiver by paging cold records out of the
// primary store, serializing them to JSONL, and uploading the result to the
// archive bucket.
//
// Finalized-market snapshots stay in Postgres after archival; only stake
// events are deleted, and only after their archive page has been written.
type Archiver struct {
	writer  domain.BlobWriter
	markets MarketArchiveStore
	stakes  StakeEventArchiveStore
	audit   domain.AuditStore
}

// NewArchiver creates a new Archiver.
func NewArchiver(writer domain.BlobWriter, markets MarketArchiveStore, stakes StakeEventArchiveStore, audit domain.AuditStore) *Archiver {
	return &Archiver{
		writer:  writer,
		markets: markets,
		stakes:  stakes,
		audit:   audit,
	}
}

// ArchiveFinalizedMarkets uploads all markets finalized strictly before the
// cutoff to archive/markets/YYYY-MM.jsonl and records the run in the audit
// log. It returns the number of snapshots archived.
func (a *Archiver) ArchiveFinalizedMarkets(ctx context.Context, cutoff time.Time) (int64, error) {
	var all []domain.Market
	for offset := 0; ; offset += archivePageSize {
		page, err := a.markets.ListFinalizedBefore(ctx, cutoff, domain.ListOpts{
			Limit:  archivePageSize,
			Offset: offset,
		})
		if err != nil {
			return 0, fmt.Errorf("s3blob: archive markets query: %w", err)
		}
		all = append(all, page...)
		if len(page) < archivePageSize {
			break
		}
	}
	if len(all) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(all)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive markets marshal: %w", err)
	}

	path := archivePath("markets", cutoff)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive markets upload: %w", err)
	}

	count := int64(len(all))

	if err := a.audit.Log(ctx, "archive.markets", map[string]any{
		"path":   path,
		"count":  count,
		"cutoff": cutoff.Format(time.RFC3339),
	}); err != nil {
		return count, fmt.Errorf("s3blob: archive markets audit log: %w", err)
	}

	return count, nil
}

// ArchiveStakeEvents uploads all stake events created strictly before the
// cutoff to archive/stake_events/YYYY-MM.jsonl, then deletes the archived
// rows from the primary store. Deletion happens only after the upload has
// succeeded, so a failed run leaves the rows in place for the next sweep.
func (a *Archiver) ArchiveStakeEvents(ctx context.Context, cutoff time.Time) (int64, error) {
	var all []domain.StakeEvent
	for offset := 0; ; offset += archivePageSize {
		page, err := a.stakes.ListBefore(ctx, cutoff, domain.ListOpts{
			Limit:  archivePageSize,
			Offset: offset,
		})
		if err != nil {
			return 0, fmt.Errorf("s3blob: archive stake events query: %w", err)
		}
		all = append(all, page...)
		if len(page) < archivePageSize {
			break
		}
	}
	if len(all) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(all)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive stake events marshal: %w", err)
	}

	path := archivePath("stake_events", cutoff)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive stake events upload: %w", err)
	}

	deleted, err := a.stakes.DeleteBefore(ctx, cutoff)
	if err != nil {
		return int64(len(all)), fmt.Errorf("s3blob: archive stake events delete: %w", err)
	}

	if err := a.audit.Log(ctx, "archive.stake_events", map[string]any{
		"path":    path,
		"count":   int64(len(all)),
		"deleted": deleted,
		"cutoff":  cutoff.Format(time.RFC3339),
	}); err != nil {
		return int64(len(all)), fmt.Errorf("s3blob: archive stake events audit log: %w", err)
	}

	return int64(len(all)), nil
}

// archivePath builds the object key for an archive file, partitioned by the
// year-month of the cutoff time.
//
//	archive/markets/2026-08.jsonl
//	archive/stake_events/2026-08.jsonl
func archivePath(kind string, cutoff time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, cutoff.Format("2006-01"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON.
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

// Compile-time interface check.
var _ domain.Archiver = (*Archiver)(nil)
