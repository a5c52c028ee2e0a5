package salesindex

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"
	"gorm.io/gorm"
	"lukechampine.com/blake3"

	"nftmarket/core/events"
	"nftmarket/core/types"
)

func setupIndexer(t *testing.T) *Indexer {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(db))
	return NewIndexer(db)
}

func sale(tag uint64, collection string, tokenID uint32, buyer string, price int64) events.MarketSaleFinalized {
	fee := price * 2 / 100
	royalty := price * 5 / 100
	return events.MarketSaleFinalized{
		Tag:              tag,
		Collection:       collection,
		TokenID:          tokenID,
		Seller:           "seller",
		Buyer:            buyer,
		Price:            types.NewCoin("ustars", price),
		Fee:              types.NewCoin("ustars", fee),
		Royalty:          types.NewCoin("ustars", royalty),
		Remainder:        types.NewCoin("ustars", price-fee-royalty),
		FeeRecipient:     "fees",
		RoyaltyRecipient: "creator",
		FundsRecipient:   "seller",
	}
}

func TestIndexerRecordsSalesOnly(t *testing.T) {
	idx := setupIndexer(t)
	clock := time.Unix(1_700_000_000, 0)
	idx.SetNowFunc(func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	})

	idx.Emit(events.MarketAskSet{Collection: "c1", TokenID: 1})
	idx.Emit(sale(1, "c1", 1, "b1", 100))
	idx.Emit(sale(2, "c1", 2, "b2", 300))
	idx.Emit(sale(3, "c2", 1, "b1", 50))
	// Re-emitting a settlement is ignored.
	idx.Emit(sale(1, "c1", 1, "b1", 100))

	ctx := context.Background()
	all, err := idx.Sales(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, uint64(3), all[0].Tag)
	require.NotEqual(t, uuid.Nil, all[0].ID)

	byBuyer, err := idx.Sales(ctx, Filter{Buyer: "b1"})
	require.NoError(t, err)
	require.Len(t, byBuyer, 2)

	c1, err := idx.Sales(ctx, Filter{Collection: "c1", Limit: 1})
	require.NoError(t, err)
	require.Len(t, c1, 1)
	require.Equal(t, "300", c1[0].Price)
	require.Equal(t, "6", c1[0].Fee)
	require.Equal(t, "15", c1[0].Royalty)
	require.Equal(t, "279", c1[0].Remainder)

	total, count, err := idx.Volume(ctx, "c1", "ustars")
	require.NoError(t, err)
	require.Equal(t, 2, count)
	require.Equal(t, "400", total.String())
}

func TestExportParquet(t *testing.T) {
	idx := setupIndexer(t)
	base := time.Unix(1_700_000_000, 0).UTC()
	next := base
	idx.SetNowFunc(func() time.Time {
		next = next.Add(time.Hour)
		return next
	})
	for tag := uint64(1); tag <= 3; tag++ {
		require.NoError(t, idx.Record(context.Background(), sale(tag, "c1", uint32(tag), "b1", int64(tag)*100)))
	}

	dir := t.TempDir()
	res, err := idx.ExportParquet(context.Background(), dir, base, base.Add(150*time.Minute))
	require.NoError(t, err)
	require.Equal(t, 2, res.Rows)

	raw, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	sum := blake3.Sum256(raw)
	require.Equal(t, hex.EncodeToString(sum[:]), res.Digest)

	sidecar, err := os.ReadFile(res.Path + ".blake3")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(sidecar), res.Digest))

	fr, err := local.NewLocalFileReader(res.Path)
	require.NoError(t, err)
	defer fr.Close()
	pr, err := reader.NewParquetReader(fr, new(parquetSale), 1)
	require.NoError(t, err)
	defer pr.ReadStop()
	require.Equal(t, int64(2), pr.GetNumRows())
	rows := make([]parquetSale, 2)
	require.NoError(t, pr.Read(&rows))
	require.Equal(t, "c1", rows[0].Collection)
	require.Equal(t, int64(1), rows[0].TokenID)
	require.Equal(t, "200", rows[1].Price)
}
