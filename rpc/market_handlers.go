package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"nftmarket/core/types"
	"nftmarket/native/marketplace"
	"nftmarket/services/salesindex"
)

type callerParams struct {
	Sender string   `json:"sender"`
	Funds  []string `json:"funds,omitempty"`
}

type tokenParams struct {
	Collection string `json:"collection"`
	TokenID    uint32 `json:"tokenId"`
}

type setAskParams struct {
	callerParams
	tokenParams
	Price          string `json:"price"`
	FundsRecipient string `json:"fundsRecipient,omitempty"`
	Expires        uint64 `json:"expires"`
}

type askStateParams struct {
	callerParams
	tokenParams
	Active bool `json:"active"`
}

type updateAskParams struct {
	callerParams
	tokenParams
	Price string `json:"price"`
}

type setBidParams struct {
	callerParams
	tokenParams
	Expires uint64 `json:"expires"`
}

type bidderParams struct {
	callerParams
	tokenParams
	Bidder string `json:"bidder"`
}

type replyParams struct {
	callerParams
	Tag   uint64 `json:"tag"`
	Error string `json:"error,omitempty"`
}

type updateParamsParams struct {
	callerParams
	marketplace.ParamsUpdate
}

type hookParams struct {
	callerParams
	Kind string `json:"kind"`
	Hook string `json:"hook"`
}

type asksQuery struct {
	Collection string  `json:"collection"`
	StartAfter *uint32 `json:"startAfter,omitempty"`
	Limit      uint32  `json:"limit,omitempty"`
}

type refCursor struct {
	Collection string `json:"collection"`
	TokenID    uint32 `json:"tokenId"`
}

type byOwnerQuery struct {
	Address    string     `json:"address"`
	StartAfter *refCursor `json:"startAfter,omitempty"`
	Limit      uint32     `json:"limit,omitempty"`
}

type collectionsQuery struct {
	StartAfter string `json:"startAfter,omitempty"`
	Limit      uint32 `json:"limit,omitempty"`
}

type bidQuery struct {
	tokenParams
	Bidder string `json:"bidder"`
}

type bidsQuery struct {
	tokenParams
	StartAfter string `json:"startAfter,omitempty"`
	Limit      uint32 `json:"limit,omitempty"`
}

type hooksQuery struct {
	Kind string `json:"kind"`
}

type balanceQuery struct {
	Address string `json:"address"`
	Denom   string `json:"denom"`
}

type salesQuery struct {
	Collection string `json:"collection,omitempty"`
	Seller     string `json:"seller,omitempty"`
	Buyer      string `json:"buyer,omitempty"`
	Since      int64  `json:"since,omitempty"`
	Until      int64  `json:"until,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

type volumeQuery struct {
	Collection string `json:"collection"`
	Denom      string `json:"denom"`
}

type countResult struct {
	Count uint64 `json:"count"`
}

type balanceResult struct {
	Address string `json:"address"`
	Denom   string `json:"denom"`
	Amount  string `json:"amount"`
}

type volumeResult struct {
	Collection string `json:"collection"`
	Denom      string `json:"denom"`
	Sales      int    `json:"sales"`
	Volume     string `json:"volume"`
}

func (s *Server) marketMethods() map[string]handlerFunc {
	return map[string]handlerFunc{
		"market_setAsk":         s.setAsk,
		"market_removeAsk":      s.removeAsk,
		"market_updateAskState": s.updateAskState,
		"market_updateAsk":      s.updateAsk,
		"market_setBid":         s.setBid,
		"market_removeBid":      s.removeBid,
		"market_acceptBid":      s.acceptBid,
		"market_reply":          s.reply,
		"market_updateParams":   s.updateParams,
		"market_addHook":        s.addHook,
		"market_removeHook":     s.removeHook,

		"market_currentAsk":        s.currentAsk,
		"market_asks":              s.asks,
		"market_askCount":          s.askCount,
		"market_asksBySeller":      s.asksBySeller,
		"market_listedCollections": s.listedCollections,
		"market_bid":               s.bid,
		"market_bids":              s.bids,
		"market_bidsByBidder":      s.bidsByBidder,
		"market_params":            s.params,
		"market_hooks":             s.hooks,
		"bank_balance":             s.balance,
	}
}

func (s *Server) info(ctx context.Context, p callerParams) (marketplace.Info, error) {
	sender, err := s.caller(ctx, p.Sender)
	if err != nil {
		return marketplace.Info{}, err
	}
	funds := make([]types.Coin, 0, len(p.Funds))
	for _, raw := range p.Funds {
		coin, err := types.ParseCoin(raw)
		if err != nil {
			return marketplace.Info{}, invalidParams("funds: %v", err)
		}
		funds = append(funds, coin)
	}
	return marketplace.Info{Sender: sender, Funds: funds}, nil
}

func parsePrice(raw string) (types.Coin, error) {
	coin, err := types.ParseCoin(strings.TrimSpace(raw))
	if err != nil {
		return types.Coin{}, invalidParams("price: %v", err)
	}
	return coin, nil
}

func parseHookKind(raw string) (marketplace.HookKind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case marketplace.HookListed.String():
		return marketplace.HookListed, nil
	case marketplace.HookSaleFinalized.String():
		return marketplace.HookSaleFinalized, nil
	default:
		return 0, invalidParams("unknown hook kind %q", raw)
	}
}

func (s *Server) setAsk(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p setAskParams
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	info, err := s.info(ctx, p.callerParams)
	if err != nil {
		return nil, err
	}
	price, err := parsePrice(p.Price)
	if err != nil {
		return nil, err
	}
	return s.engine.SetAsk(ctx, info, marketplace.SetAskRequest{
		Collection:     p.Collection,
		TokenID:        marketplace.TokenID(p.TokenID),
		Price:          price,
		FundsRecipient: p.FundsRecipient,
		Expires:        p.Expires,
	})
}

func (s *Server) removeAsk(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p struct {
		callerParams
		tokenParams
	}
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	info, err := s.info(ctx, p.callerParams)
	if err != nil {
		return nil, err
	}
	return s.engine.RemoveAsk(ctx, info, p.Collection, marketplace.TokenID(p.TokenID))
}

func (s *Server) updateAskState(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p askStateParams
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	info, err := s.info(ctx, p.callerParams)
	if err != nil {
		return nil, err
	}
	return s.engine.UpdateAskState(ctx, info, p.Collection, marketplace.TokenID(p.TokenID), p.Active)
}

func (s *Server) updateAsk(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p updateAskParams
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	info, err := s.info(ctx, p.callerParams)
	if err != nil {
		return nil, err
	}
	price, err := parsePrice(p.Price)
	if err != nil {
		return nil, err
	}
	return s.engine.UpdateAsk(ctx, info, p.Collection, marketplace.TokenID(p.TokenID), price)
}

func (s *Server) setBid(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p setBidParams
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	info, err := s.info(ctx, p.callerParams)
	if err != nil {
		return nil, err
	}
	return s.engine.SetBid(ctx, info, p.Collection, marketplace.TokenID(p.TokenID), p.Expires)
}

func (s *Server) removeBid(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p bidderParams
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	info, err := s.info(ctx, p.callerParams)
	if err != nil {
		return nil, err
	}
	bidder := p.Bidder
	if bidder == "" {
		bidder = info.Sender
	}
	return s.engine.RemoveBid(ctx, info, p.Collection, marketplace.TokenID(p.TokenID), bidder)
}

func (s *Server) acceptBid(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p bidderParams
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	info, err := s.info(ctx, p.callerParams)
	if err != nil {
		return nil, err
	}
	return s.engine.AcceptBid(ctx, info, p.Collection, marketplace.TokenID(p.TokenID), p.Bidder)
}

func (s *Server) reply(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p replyParams
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	sender, err := s.caller(ctx, p.Sender)
	if err != nil {
		return nil, err
	}
	reply := marketplace.Reply{Tag: p.Tag}
	if p.Error != "" {
		reply.Err = errors.New(p.Error)
	}
	return s.engine.Reply(ctx, sender, reply)
}

func (s *Server) updateParams(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p updateParamsParams
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	sender, err := s.caller(ctx, p.Sender)
	if err != nil {
		return nil, err
	}
	return s.engine.UpdateParams(ctx, sender, p.ParamsUpdate)
}

func (s *Server) addHook(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	sender, kind, hook, err := s.hookArgs(ctx, raw)
	if err != nil {
		return nil, err
	}
	return s.engine.AddHook(ctx, sender, kind, hook)
}

func (s *Server) removeHook(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	sender, kind, hook, err := s.hookArgs(ctx, raw)
	if err != nil {
		return nil, err
	}
	return s.engine.RemoveHook(ctx, sender, kind, hook)
}

func (s *Server) hookArgs(ctx context.Context, raw json.RawMessage) (string, marketplace.HookKind, string, error) {
	var p hookParams
	if err := decode(raw, &p); err != nil {
		return "", 0, "", err
	}
	sender, err := s.caller(ctx, p.Sender)
	if err != nil {
		return "", 0, "", err
	}
	kind, err := parseHookKind(p.Kind)
	if err != nil {
		return "", 0, "", err
	}
	return sender, kind, p.Hook, nil
}

func (s *Server) currentAsk(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var p tokenParams
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	return s.engine.CurrentAsk(p.Collection, marketplace.TokenID(p.TokenID))
}

func (s *Server) asks(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var p asksQuery
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	var start *marketplace.TokenID
	if p.StartAfter != nil {
		id := marketplace.TokenID(*p.StartAfter)
		start = &id
	}
	return s.engine.Asks(p.Collection, start, p.Limit)
}

func (s *Server) askCount(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var p struct {
		Collection string `json:"collection"`
	}
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	count, err := s.engine.AskCount(p.Collection)
	if err != nil {
		return nil, err
	}
	return countResult{Count: count}, nil
}

func (c *refCursor) ref() *marketplace.TokenRef {
	if c == nil {
		return nil
	}
	return &marketplace.TokenRef{Collection: c.Collection, TokenID: marketplace.TokenID(c.TokenID)}
}

func (s *Server) asksBySeller(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var p byOwnerQuery
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	return s.engine.AsksBySeller(p.Address, p.StartAfter.ref(), p.Limit)
}

func (s *Server) listedCollections(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var p collectionsQuery
	if len(raw) > 0 {
		if err := decode(raw, &p); err != nil {
			return nil, err
		}
	}
	return s.engine.ListedCollections(p.StartAfter, p.Limit)
}

func (s *Server) bid(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var p bidQuery
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	return s.engine.Bid(p.Collection, marketplace.TokenID(p.TokenID), p.Bidder)
}

func (s *Server) bids(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var p bidsQuery
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	return s.engine.Bids(p.Collection, marketplace.TokenID(p.TokenID), p.StartAfter, p.Limit)
}

func (s *Server) bidsByBidder(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var p byOwnerQuery
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	return s.engine.BidsByBidder(p.Address, p.StartAfter.ref(), p.Limit)
}

func (s *Server) params(context.Context, json.RawMessage) (interface{}, error) {
	return s.engine.Params()
}

func (s *Server) hooks(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var p hooksQuery
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	kind, err := parseHookKind(p.Kind)
	if err != nil {
		return nil, err
	}
	return s.engine.Hooks(kind)
}

func (s *Server) balance(_ context.Context, raw json.RawMessage) (interface{}, error) {
	var p balanceQuery
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	amount, err := s.engine.Balance(p.Address, p.Denom)
	if err != nil {
		return nil, err
	}
	return balanceResult{Address: p.Address, Denom: p.Denom, Amount: amount.String()}, nil
}

func (s *Server) salesList(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p salesQuery
	if len(raw) > 0 {
		if err := decode(raw, &p); err != nil {
			return nil, err
		}
	}
	filter := salesindex.Filter{Collection: p.Collection, Seller: p.Seller, Buyer: p.Buyer, Limit: p.Limit}
	if p.Since > 0 {
		filter.Since = time.Unix(p.Since, 0)
	}
	if p.Until > 0 {
		filter.Until = time.Unix(p.Until, 0)
	}
	return s.sales.Sales(ctx, filter)
}

func (s *Server) salesVolume(ctx context.Context, raw json.RawMessage) (interface{}, error) {
	var p volumeQuery
	if err := decode(raw, &p); err != nil {
		return nil, err
	}
	total, count, err := s.sales.Volume(ctx, p.Collection, p.Denom)
	if err != nil {
		return nil, err
	}
	return volumeResult{Collection: p.Collection, Denom: p.Denom, Sales: count, Volume: total.String()}, nil
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeHTTPError(w http.ResponseWriter, err error) {
	ce := marketError(err)
	writeJSON(w, ce.status, map[string]interface{}{"error": ce.message, "code": ce.code})
}

func urlTokenID(r *http.Request) (marketplace.TokenID, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, "tokenID"), 10, 32)
	if err != nil {
		return 0, invalidParams("invalid token id")
	}
	return marketplace.TokenID(id), nil
}

func urlLimit(r *http.Request) uint32 {
	limit, err := strconv.ParseUint(r.URL.Query().Get("limit"), 10, 32)
	if err != nil {
		return 0
	}
	return uint32(limit)
}

func (s *Server) handleListAsks(w http.ResponseWriter, r *http.Request) {
	var start *marketplace.TokenID
	if raw := r.URL.Query().Get("start_after"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			writeHTTPError(w, invalidParams("invalid start_after"))
			return
		}
		tid := marketplace.TokenID(id)
		start = &tid
	}
	asks, err := s.engine.Asks(chi.URLParam(r, "collection"), start, urlLimit(r))
	if err != nil {
		writeHTTPError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, asks)
}

func (s *Server) handleGetAsk(w http.ResponseWriter, r *http.Request) {
	id, err := urlTokenID(r)
	if err != nil {
		writeHTTPError(w, err)
		return
	}
	ask, err := s.engine.CurrentAsk(chi.URLParam(r, "collection"), id)
	if err != nil {
		writeHTTPError(w, err)
		return
	}
	if ask == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": marketplace.ErrAskNotFound.Error()})
		return
	}
	writeJSON(w, http.StatusOK, ask)
}

func (s *Server) handleListBids(w http.ResponseWriter, r *http.Request) {
	id, err := urlTokenID(r)
	if err != nil {
		writeHTTPError(w, err)
		return
	}
	bids, err := s.engine.Bids(chi.URLParam(r, "collection"), id, r.URL.Query().Get("start_after"), urlLimit(r))
	if err != nil {
		writeHTTPError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bids)
}
