package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
	"gorm.io/gorm"
)

type ledgerParquetRow struct {
	EntryID   string `parquet:"name=entry_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Sequence  int64  `parquet:"name=sequence, type=INT64"`
	BookingID int64  `parquet:"name=booking_id, type=INT64"`
	Kind      string `parquet:"name=kind, type=BYTE_ARRAY, convertedtype=UTF8"`
	Recipient string `parquet:"name=recipient, type=BYTE_ARRAY, convertedtype=UTF8"`
	Amount    string `parquet:"name=amount, type=BYTE_ARRAY, convertedtype=UTF8"`
	Timestamp int64  `parquet:"name=timestamp, type=INT64"`
}

// ExportResult describes a written ledger export.
type ExportResult struct {
	Path string `json:"path"`
	Rows int    `json:"rows"`
}

// ExportLedger writes every ledger entry with a timestamp in [from, to) to a
// new parquet file under dir. A zero to means no upper bound. Existing exports
// are never overwritten.
func ExportLedger(ctx context.Context, db *gorm.DB, dir string, from, to int64, now time.Time) (ExportResult, error) {
	query := db.WithContext(ctx).Model(&LedgerEntry{}).Where("occurred_at >= ?", from)
	if to > 0 {
		query = query.Where("occurred_at < ?", to)
	}
	var entries []LedgerEntry
	if err := query.Order("sequence asc, kind asc").Find(&entries).Error; err != nil {
		indexMetrics().exports.WithLabelValues("error").Inc()
		return ExportResult{}, fmt.Errorf("export: load ledger: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		indexMetrics().exports.WithLabelValues("error").Inc()
		return ExportResult{}, fmt.Errorf("export: prepare dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("ledger_%s_%s.parquet", now.UTC().Format("20060102T150405Z"), uuid.NewString()[:8]))
	if err := writeLedgerParquet(path, entries); err != nil {
		indexMetrics().exports.WithLabelValues("error").Inc()
		return ExportResult{}, err
	}
	indexMetrics().exports.WithLabelValues("ok").Inc()
	return ExportResult{Path: path, Rows: len(entries)}, nil
}

func writeLedgerParquet(path string, entries []LedgerEntry) error {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("export: create parquet: %w", err)
	}
	fw := writerfile.NewWriterFile(file)
	pw, err := writer.NewParquetWriter(fw, new(ledgerParquetRow), 1)
	if err != nil {
		file.Close()
		return fmt.Errorf("export: parquet schema: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, entry := range entries {
		row := &ledgerParquetRow{
			EntryID:   entry.ID.String(),
			Sequence:  int64(entry.Sequence),
			BookingID: int64(entry.BookingID),
			Kind:      entry.Kind,
			Recipient: entry.Recipient,
			Amount:    entry.Amount,
			Timestamp: entry.Timestamp,
		}
		if err := pw.Write(row); err != nil {
			pw.WriteStop()
			file.Close()
			return fmt.Errorf("export: parquet write: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		file.Close()
		return fmt.Errorf("export: parquet flush: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("export: close parquet file: %w", err)
	}
	return nil
}
