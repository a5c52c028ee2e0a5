package marketplace

import (
	"context"
	"fmt"

	"nftmarket/core/events"
	"nftmarket/core/types"
	"nftmarket/crypto"
)

// Notification is the payload delivered to hook subscribers. Buyer is empty
// for listed notifications.
type Notification struct {
	Kind       HookKind   `json:"kind"`
	Collection string     `json:"collection"`
	TokenID    TokenID    `json:"token_id"`
	Price      types.Coin `json:"price"`
	Seller     string     `json:"seller"`
	Buyer      string     `json:"buyer,omitempty"`
}

// Notifier delivers a notification to one subscriber. Implementations must
// not block on the subscriber; the engine calls Notify after the triggering
// operation has committed and ignores the result beyond logging it.
type Notifier interface {
	Notify(ctx context.Context, hook string, n Notification) error
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, string, Notification) error { return nil }

type delivery struct {
	hook         string
	notification Notification
}

// AddHook registers a subscriber. Governance only.
func (e *Engine) AddHook(ctx context.Context, sender string, kind HookKind, hook string) (*Receipt, error) {
	return e.execute(ctx, "add_"+kind.String()+"_hook", Info{Sender: sender}, false, func(x *execution) error {
		if err := x.requireGovernance(); err != nil {
			return err
		}
		if err := x.addHook(kind, hook); err != nil {
			return err
		}
		x.emit(events.MarketHookAdded{Kind: kind.String(), Hook: hook})
		return nil
	})
}

// RemoveHook unregisters a subscriber. Governance only.
func (e *Engine) RemoveHook(ctx context.Context, sender string, kind HookKind, hook string) (*Receipt, error) {
	return e.execute(ctx, "remove_"+kind.String()+"_hook", Info{Sender: sender}, false, func(x *execution) error {
		if err := x.requireGovernance(); err != nil {
			return err
		}
		if err := validKind(kind); err != nil {
			return err
		}
		removed, err := x.st.HookRemove(kind, hook)
		if err != nil {
			return err
		}
		if !removed {
			return fmt.Errorf("%w: %s %s", ErrHookNotRegistered, kind, hook)
		}
		x.emit(events.MarketHookRemoved{Kind: kind.String(), Hook: hook})
		return nil
	})
}

func validKind(kind HookKind) error {
	if kind != HookListed && kind != HookSaleFinalized {
		return fmt.Errorf("%w: unknown hook kind %d", ErrInvalidParams, kind)
	}
	return nil
}

func (x *execution) addHook(kind HookKind, hook string) error {
	if err := validKind(kind); err != nil {
		return err
	}
	if err := crypto.ValidateAddress(x.engine.prefix, hook); err != nil {
		return fmt.Errorf("%w: hook: %v", ErrInvalidAddress, err)
	}
	added, err := x.st.HookAdd(kind, hook)
	if err != nil {
		return err
	}
	if !added {
		return fmt.Errorf("%w: %s %s", ErrHookAlreadyRegistered, kind, hook)
	}
	return nil
}

// notify queues n for every current member of the kind's hook set. Delivery
// happens after commit.
func (x *execution) notify(kind HookKind, n Notification) error {
	hooks, err := x.st.Hooks(kind)
	if err != nil {
		return err
	}
	n.Kind = kind
	n.Price = n.Price.Clone()
	for _, hook := range hooks {
		x.deliveries = append(x.deliveries, delivery{hook: hook, notification: n})
	}
	return nil
}
