package salesindex

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
	"lukechampine.com/blake3"
)

// ExportResult describes a written export file.
type ExportResult struct {
	Path   string
	Rows   int
	Digest string
}

type parquetSale struct {
	SettlementID     string `parquet:"name=settlement_id, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Collection       string `parquet:"name=collection, type=UTF8, encoding=PLAIN_DICTIONARY"`
	TokenID          int64  `parquet:"name=token_id, type=INT64"`
	Seller           string `parquet:"name=seller, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Buyer            string `parquet:"name=buyer, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Denom            string `parquet:"name=denom, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Price            string `parquet:"name=price, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Fee              string `parquet:"name=fee, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Royalty          string `parquet:"name=royalty, type=UTF8, encoding=PLAIN_DICTIONARY"`
	Remainder        string `parquet:"name=remainder, type=UTF8, encoding=PLAIN_DICTIONARY"`
	FeeRecipient     string `parquet:"name=fee_recipient, type=UTF8, encoding=PLAIN_DICTIONARY"`
	RoyaltyRecipient string `parquet:"name=royalty_recipient, type=UTF8, encoding=PLAIN_DICTIONARY"`
	FundsRecipient   string `parquet:"name=funds_recipient, type=UTF8, encoding=PLAIN_DICTIONARY"`
	SettledAt        string `parquet:"name=settled_at, type=UTF8, encoding=PLAIN_DICTIONARY"`
}

// ExportParquet writes every sale settled in [since, until) to a parquet
// file under dir, oldest first, and writes a BLAKE3 digest next to it.
func (i *Indexer) ExportParquet(ctx context.Context, dir string, since, until time.Time) (*ExportResult, error) {
	var rows []Sale
	err := i.filtered(ctx, Filter{Since: since, Until: until}).
		Order("settled_at ASC").Order("tag ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("salesindex: load sales: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	name := fmt.Sprintf("sales-%s-%s.parquet", since.UTC().Format("20060102T150405"), until.UTC().Format("20060102T150405"))
	path := filepath.Join(dir, name)
	if err := writeParquet(path, rows); err != nil {
		return nil, err
	}
	digest, err := fileDigest(path)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path+".blake3", []byte(digest+"  "+name+"\n"), 0o644); err != nil {
		return nil, err
	}
	i.logger.Info("sales export written", "path", path, "rows", len(rows))
	return &ExportResult{Path: path, Rows: len(rows), Digest: digest}, nil
}

func writeParquet(path string, rows []Sale) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("salesindex: create parquet: %w", err)
	}
	pw, err := writer.NewParquetWriter(writerfile.NewWriterFile(file), new(parquetSale), 1)
	if err != nil {
		file.Close()
		return fmt.Errorf("salesindex: parquet schema: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, row := range rows {
		if err := pw.Write(&parquetSale{
			SettlementID:     row.SettlementID,
			Collection:       row.Collection,
			TokenID:          int64(row.TokenID),
			Seller:           row.Seller,
			Buyer:            row.Buyer,
			Denom:            row.Denom,
			Price:            row.Price,
			Fee:              row.Fee,
			Royalty:          row.Royalty,
			Remainder:        row.Remainder,
			FeeRecipient:     row.FeeRecipient,
			RoyaltyRecipient: row.RoyaltyRecipient,
			FundsRecipient:   row.FundsRecipient,
			SettledAt:        row.SettledAt.UTC().Format(time.RFC3339),
		}); err != nil {
			pw.WriteStop()
			file.Close()
			return fmt.Errorf("salesindex: parquet write: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		file.Close()
		return fmt.Errorf("salesindex: parquet flush: %w", err)
	}
	return file.Close()
}

func fileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := blake3.New(32, nil)
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
