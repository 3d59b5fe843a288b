package s3blob

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/tokenmarket/internal/domain"
)

// ListingArchiveStore provides read access to terminal listings for archival
// purposes. The archiver only needs this one query, not the full listing
// store interface.
type ListingArchiveStore interface {
	// ListTerminalBefore returns listings in COMPLETED, CANCELLED, or
	// EXPIRED status last updated strictly before the given cutoff time.
	ListTerminalBefore(ctx context.Context, before time.Time) ([]domain.Listing, error)
}

// ArchiveImpl implements domain.Archiver by querying the listing store for
// terminal records, serializing them to JSONL, and uploading the result to
// S3. Every upload is read back and its record count checked before the run
// is reported as successful.
//
// Deletion of the archived records from the primary store is intentionally
// NOT performed here -- that is a separate, explicit step to be executed
// after the archive has been verified.
type ArchiveImpl struct {
	writer   domain.BlobWriter
	reader   domain.BlobReader
	listings ListingArchiveStore
	logger   *slog.Logger
}

// NewArchiver creates a new ArchiveImpl.
func NewArchiver(writer domain.BlobWriter, reader domain.BlobReader, listings ListingArchiveStore, logger *slog.Logger) *ArchiveImpl {
	return &ArchiveImpl{
		writer:   writer,
		reader:   reader,
		listings: listings,
		logger:   logger,
	}
}

var _ domain.Archiver = (*ArchiveImpl)(nil)

// ArchiveListings queries all terminal listings before the cutoff,
// serializes them to JSONL, and uploads the file to S3 at
// archive/listings/YYYY-MM.jsonl. The count of archived records is returned.
func (a *ArchiveImpl) ArchiveListings(ctx context.Context, before time.Time) (int64, error) {
	listings, err := a.listings.ListTerminalBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive listings query: %w", err)
	}
	if len(listings) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(listings)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive listings marshal: %w", err)
	}

	path := archivePath("listings", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive listings upload: %w", err)
	}

	count := int64(len(listings))
	if err := a.verifyArchive(ctx, path, count); err != nil {
		return 0, fmt.Errorf("s3blob: archive listings verify: %w", err)
	}

	a.logger.InfoContext(ctx, "s3blob: listings archived",
		slog.String("path", path),
		slog.Int64("count", count),
		slog.Time("before", before),
	)
	a.logFootprint(ctx)
	return count, nil
}

// verifyArchive reads the uploaded object back and counts its JSONL records.
// A mismatch means the upload was truncated or concurrently overwritten; the
// run fails so the records are retried next cycle instead of being deleted
// later against a bad archive.
func (a *ArchiveImpl) verifyArchive(ctx context.Context, path string, want int64) error {
	body, err := a.reader.Get(ctx, path)
	if err != nil {
		return err
	}
	defer func() { _ = body.Close() }()

	var got int64
	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		if len(bytes.TrimSpace(sc.Bytes())) > 0 {
			got++
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if got != want {
		return fmt.Errorf("%s holds %d records, want %d", path, got, want)
	}
	return nil
}

// logFootprint reports the cumulative size of the listings archive after a
// successful run. Failures only warn since the archive itself succeeded.
func (a *ArchiveImpl) logFootprint(ctx context.Context) {
	infos, err := a.reader.List(ctx, "archive/listings/")
	if err != nil {
		a.logger.WarnContext(ctx, "s3blob: archive footprint list failed",
			slog.String("error", err.Error()),
		)
		return
	}

	var total int64
	for _, info := range infos {
		total += info.Size
	}
	a.logger.InfoContext(ctx, "s3blob: archive footprint",
		slog.Int("objects", len(infos)),
		slog.Int64("bytes", total),
	)
}

// archivePath builds the S3 key for an archive file, partitioned by the
// year-month of the cutoff time.
//
//	archive/listings/2025-01.jsonl
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON.
// Each element is marshalled as a single compact JSON line followed by '\n'.
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
