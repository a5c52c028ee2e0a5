package marketplace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"nftmarket/core/events"
	"nftmarket/core/types"
	"nftmarket/crypto"
	"nftmarket/native/bank"
	"nftmarket/native/nft"
	"nftmarket/observability/metrics"
)

const tracerName = "nftmarket/native/marketplace"

// Info describes the caller of an operation and the funds attached to it.
// Attached funds move into the marketplace account before the operation runs
// and move back if it fails.
type Info struct {
	Sender string       `json:"sender"`
	Funds  []types.Coin `json:"funds,omitempty"`
}

// Receipt summarises a committed operation.
type Receipt struct {
	Operation string         `json:"operation"`
	Events    []*types.Event `json:"events"`
}

// Config carries the fixed identities the engine works with.
type Config struct {
	// Address is the marketplace account. It holds bid escrow and must be
	// approved to move listed tokens.
	Address string
	// Governance is the only caller allowed to change params and hooks.
	Governance string
	// Prefix is the bech32 prefix every address must carry. Empty disables
	// bech32 checks.
	Prefix crypto.AddressPrefix
}

// Engine executes marketplace operations. Each operation runs inside one
// backend transaction that spans both settlement phases; any error discards
// the transaction so no partial write survives.
type Engine struct {
	mu sync.Mutex

	backend    Backend
	tokens     TokenRegistry
	royalties  RoyaltyRegistry
	notifier   Notifier
	emitter    events.Emitter
	address    string
	governance string
	prefix     crypto.AddressPrefix
	nowFn      func() int64
	logger     *slog.Logger
	metrics    *metrics.MarketplaceMetrics
	tracer     trace.Tracer
}

// NewEngine constructs an engine with no-op notification and event sinks.
func NewEngine(cfg Config, backend Backend, tokens TokenRegistry, royalties RoyaltyRegistry) *Engine {
	return &Engine{
		backend:    backend,
		tokens:     tokens,
		royalties:  royalties,
		notifier:   noopNotifier{},
		emitter:    events.NoopEmitter{},
		address:    cfg.Address,
		governance: cfg.Governance,
		prefix:     cfg.Prefix,
		nowFn:      func() int64 { return time.Now().Unix() },
		logger:     slog.Default(),
		metrics:    metrics.Marketplace(),
		tracer:     otel.Tracer(tracerName),
	}
}

// SetNowFunc overrides the time source. Primarily intended for tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetEmitter configures the event sink. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNotifier configures hook delivery. Passing nil disables delivery.
func (e *Engine) SetNotifier(notifier Notifier) {
	if notifier == nil {
		e.notifier = noopNotifier{}
		return
	}
	e.notifier = notifier
}

// SetLogger overrides the logger.
func (e *Engine) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	e.logger = logger
}

// Address returns the marketplace account address.
func (e *Engine) Address() string { return e.address }

func (e *Engine) now() uint64 {
	ts := e.nowFn()
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

// execution is the per-operation context. Everything it collects besides
// store writes is only acted upon after commit.
type execution struct {
	engine     *Engine
	st         Store
	info       Info
	now        uint64
	params     *Params
	transfers  []TransferRequest
	deliveries []delivery
	events     []events.Event
	settled    []*PendingSettlement
}

func (x *execution) emit(evt events.Event) {
	x.events = append(x.events, evt)
}

func (x *execution) requireGovernance() error {
	if x.info.Sender != x.engine.governance {
		return fmt.Errorf("%w: governance only", ErrUnauthorized)
	}
	return nil
}

func (x *execution) requireOperator() error {
	if x.params.IsOperator(x.info.Sender) {
		return nil
	}
	return fmt.Errorf("%w: operator or admin only", ErrUnauthorized)
}

// execute runs fn against the current params.
func (e *Engine) execute(ctx context.Context, op string, info Info, payable bool, fn func(*execution) error) (*Receipt, error) {
	return e.run(ctx, op, info, payable, func(x *execution) error {
		params, ok, err := x.st.MarketParamsGet()
		if err != nil {
			return err
		}
		if !ok {
			return errParamsMissing
		}
		x.params = params
		return fn(x)
	})
}

func (e *Engine) run(ctx context.Context, op string, info Info, payable bool, fn func(*execution) error) (receipt *Receipt, err error) {
	ctx, span := e.tracer.Start(ctx, "marketplace."+op, trace.WithAttributes(
		attribute.String("marketplace.sender", info.Sender),
		attribute.Int("marketplace.funds", len(info.Funds)),
	))
	start := time.Now()
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = string(ErrorCategory(err))
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
			e.logger.Warn("marketplace operation failed",
				slog.String("operation", op),
				slog.String("sender", info.Sender),
				slog.String("category", outcome),
				slog.Any("error", err))
		}
		e.metrics.ObserveOperation(op, outcome, time.Since(start))
		span.End()
	}()

	if e.backend == nil {
		return nil, errNilBackend
	}
	if e.tokens == nil || e.royalties == nil {
		return nil, errNilRegistry
	}
	if err := crypto.ValidateAddress(e.prefix, info.Sender); err != nil {
		return nil, fmt.Errorf("%w: sender: %v", ErrInvalidAddress, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	txn, err := e.backend.Begin()
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			txn.Discard()
		}
	}()

	x := &execution{engine: e, st: txn, info: info, now: e.now()}
	if len(info.Funds) > 0 {
		if !payable {
			return nil, fmt.Errorf("%w: %s does not accept funds", ErrBidPayment, op)
		}
		if err := bank.TransferAll(txn, info.Sender, e.address, info.Funds); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrBidPayment, err)
		}
	}
	if err := fn(x); err != nil {
		return nil, err
	}
	if err := e.drainTransfers(ctx, x); err != nil {
		return nil, err
	}
	if err := txn.Commit(); err != nil {
		return nil, err
	}
	committed = true

	return e.publish(ctx, op, x), nil
}

// drainTransfers performs each scheduled token transfer and feeds its outcome
// back as a tagged reply. Transfers scheduled by a reply handler are drained
// in the same pass.
func (e *Engine) drainTransfers(ctx context.Context, x *execution) error {
	for len(x.transfers) > 0 {
		req := x.transfers[0]
		x.transfers = x.transfers[1:]
		_, span := e.tracer.Start(ctx, "marketplace.transfer", trace.WithAttributes(
			attribute.Int64("marketplace.reply_tag", int64(req.Tag)),
			attribute.String("marketplace.collection", req.Collection),
			attribute.Int64("marketplace.token_id", int64(req.TokenID)),
		))
		transferErr := e.transfer(x, req)
		if transferErr != nil {
			span.RecordError(transferErr)
		}
		span.End()
		if err := x.handleReply(Reply{Tag: req.Tag, Err: transferErr}); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) transfer(x *execution, req TransferRequest) error {
	owner, err := e.tokens.OwnerOf(x.st, req.Collection, uint32(req.TokenID))
	if err != nil {
		return err
	}
	if req.Owner != "" && owner != req.Owner {
		return fmt.Errorf("%w: %s/%d held by %s, expected %s", nft.ErrNotOwner, req.Collection, req.TokenID, owner, req.Owner)
	}
	return e.tokens.Transfer(x.st, req.Collection, uint32(req.TokenID), e.address, req.Recipient)
}

// publish hands events and hook notifications to their sinks. Sink failures
// are logged and never surface to the caller.
func (e *Engine) publish(ctx context.Context, op string, x *execution) *Receipt {
	receipt := &Receipt{Operation: op, Events: make([]*types.Event, 0, len(x.events))}
	for _, evt := range x.events {
		e.emitter.Emit(evt)
		if typed, ok := evt.(interface{ Event() *types.Event }); ok {
			receipt.Events = append(receipt.Events, typed.Event())
		}
	}
	for _, pending := range x.settled {
		e.metrics.ObserveSettlement(pending.Price.Denom, pending.Price.Amount)
	}
	for _, d := range x.deliveries {
		e.deliver(ctx, d)
	}
	return receipt
}

func (e *Engine) deliver(ctx context.Context, d delivery) {
	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("hook panicked: %v", r)
		}
		e.metrics.ObserveHookDelivery(d.notification.Kind.String(), err)
		if err != nil {
			e.logger.Warn("hook delivery failed",
				slog.String("hook", d.hook),
				slog.String("kind", d.notification.Kind.String()),
				slog.Any("error", err))
		}
	}()
	err = e.notifier.Notify(ctx, d.hook, d.notification)
}

// Reply accepts an externally delivered transfer confirmation. Settlements
// are confirmed inside the transaction that scheduled them, so no pending
// record outlives it and a stray confirmation is rejected without mutating
// state.
func (e *Engine) Reply(ctx context.Context, sender string, reply Reply) (*Receipt, error) {
	return e.execute(ctx, "reply", Info{Sender: sender}, false, func(x *execution) error {
		return x.handleReply(reply)
	})
}

// IsUnrecognisedReply reports whether err carries an unknown reply tag.
func IsUnrecognisedReply(err error) bool {
	var target *UnrecognisedReplyError
	return errors.As(err, &target)
}
