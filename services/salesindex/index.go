package salesindex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strconv"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"nftmarket/core/events"
	"nftmarket/observability/metrics"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Open connects to the sales database and migrates the schema. Driver is
// "sqlite" or "postgres".
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("salesindex: unsupported driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("salesindex: open %s: %w", driver, err)
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("salesindex: migrate: %w", err)
	}
	return db, nil
}

// Indexer records finalized sales. It implements events.Emitter and ignores
// every other event type.
type Indexer struct {
	db      *gorm.DB
	logger  *slog.Logger
	metrics *metrics.RPCMetrics
	nowFn   func() time.Time
}

// NewIndexer wraps an open database.
func NewIndexer(db *gorm.DB) *Indexer {
	return &Indexer{
		db:      db,
		logger:  slog.Default(),
		metrics: metrics.RPC(),
		nowFn:   time.Now,
	}
}

// SetLogger overrides the logger.
func (i *Indexer) SetLogger(logger *slog.Logger) {
	if logger != nil {
		i.logger = logger
	}
}

// SetNowFunc overrides the clock stamped on recorded sales.
func (i *Indexer) SetNowFunc(now func() time.Time) {
	if now != nil {
		i.nowFn = now
	}
}

var _ events.Emitter = (*Indexer)(nil)

// Emit implements events.Emitter.
func (i *Indexer) Emit(evt events.Event) {
	sale, ok := evt.(events.MarketSaleFinalized)
	if !ok {
		return
	}
	err := i.Record(context.Background(), sale)
	i.metrics.ObserveSalesIndex(err)
	if err != nil {
		i.logger.Warn("sales index write failed",
			"collection", sale.Collection,
			"token_id", sale.TokenID,
			"error", err)
	}
}

// Record stores a sale. Recording the same settlement twice is a no-op.
func (i *Indexer) Record(ctx context.Context, evt events.MarketSaleFinalized) error {
	row := &Sale{
		SettlementID:     evt.SettlementID(),
		Tag:              evt.Tag,
		Collection:       evt.Collection,
		TokenID:          evt.TokenID,
		Seller:           evt.Seller,
		Buyer:            evt.Buyer,
		Denom:            evt.Price.Denom,
		Price:            amountString(evt.Price.Amount),
		Fee:              amountString(evt.Fee.Amount),
		Royalty:          amountString(evt.Royalty.Amount),
		Remainder:        amountString(evt.Remainder.Amount),
		FeeRecipient:     evt.FeeRecipient,
		RoyaltyRecipient: evt.RoyaltyRecipient,
		FundsRecipient:   evt.FundsRecipient,
		SettledAt:        i.nowFn().UTC(),
	}
	return i.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "settlement_id"}}, DoNothing: true}).
		Create(row).Error
}

// Filter narrows Sales. Zero fields match everything.
type Filter struct {
	Collection string
	Seller     string
	Buyer      string
	Since      time.Time
	Until      time.Time
	Limit      int
}

// Sales lists recorded sales, newest first.
func (i *Indexer) Sales(ctx context.Context, f Filter) ([]Sale, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	var rows []Sale
	err := i.filtered(ctx, f).Order("settled_at DESC").Order("tag DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

// Volume sums sale prices for a collection in one denomination.
func (i *Indexer) Volume(ctx context.Context, collection, denom string) (*big.Int, int, error) {
	var prices []string
	err := i.filtered(ctx, Filter{Collection: collection}).
		Model(&Sale{}).
		Where("denom = ?", denom).
		Pluck("price", &prices).Error
	if err != nil {
		return nil, 0, err
	}
	total := new(big.Int)
	for _, raw := range prices {
		amount, ok := new(big.Int).SetString(raw, 10)
		if !ok {
			return nil, 0, errors.New("salesindex: corrupt price " + strconv.Quote(raw))
		}
		total.Add(total, amount)
	}
	return total, len(prices), nil
}

func (i *Indexer) filtered(ctx context.Context, f Filter) *gorm.DB {
	q := i.db.WithContext(ctx)
	if f.Collection != "" {
		q = q.Where("collection = ?", f.Collection)
	}
	if f.Seller != "" {
		q = q.Where("seller = ?", f.Seller)
	}
	if f.Buyer != "" {
		q = q.Where("buyer = ?", f.Buyer)
	}
	if !f.Since.IsZero() {
		q = q.Where("settled_at >= ?", f.Since.UTC())
	}
	if !f.Until.IsZero() {
		q = q.Where("settled_at < ?", f.Until.UTC())
	}
	return q
}

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
