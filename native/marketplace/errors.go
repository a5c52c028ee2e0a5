package marketplace

import (
	"errors"
	"fmt"
)

// Validation errors: the caller supplied malformed input.
var (
	ErrInvalidPrice      = errors.New("marketplace: invalid price")
	ErrInvalidExpiration = errors.New("marketplace: invalid expiration")
	ErrInvalidRoyalties  = errors.New("marketplace: invalid royalties")
	ErrIncorrectBidFunds = errors.New("marketplace: funds sent don't match bid amount")
	ErrBidPayment        = errors.New("marketplace: bid payment error")
	ErrInvalidParams     = errors.New("marketplace: invalid params")
	ErrInvalidAddress    = errors.New("marketplace: invalid address")
)

// Authorization errors.
var (
	ErrUnauthorized  = errors.New("marketplace: unauthorized")
	ErrNeedsApproval = errors.New("marketplace: contract needs approval")
)

// Lifecycle state errors: the request is well formed but the referenced record
// does not permit it.
var (
	ErrAskNotFound           = errors.New("marketplace: ask not found")
	ErrAskNotActive          = errors.New("marketplace: ask not active")
	ErrAskExpired            = errors.New("marketplace: ask expired")
	ErrBidNotFound           = errors.New("marketplace: bid not found")
	ErrBidExpired            = errors.New("marketplace: bid expired")
	ErrNoRoyaltiesForTokenID = errors.New("marketplace: no royalties exist for token id")
	ErrHookAlreadyRegistered = errors.New("marketplace: hook already registered")
	ErrHookNotRegistered     = errors.New("marketplace: hook not registered")
)

// Protocol and infrastructure errors.
var (
	ErrTransferFailed = errors.New("marketplace: token transfer failed")
	errNilBackend     = errors.New("marketplace: backend not configured")
	errNilRegistry    = errors.New("marketplace: token registry not configured")
	errParamsMissing  = errors.New("marketplace: params not initialised")
)

// UnrecognisedReplyError reports a transfer confirmation whose tag matches no
// pending settlement.
type UnrecognisedReplyError struct {
	Tag uint64
}

func (e *UnrecognisedReplyError) Error() string {
	return fmt.Sprintf("marketplace: unrecognised reply id: %d", e.Tag)
}

// Category groups marketplace errors for callers that map them onto their own
// error codes.
type Category string

const (
	CategoryNone           Category = ""
	CategoryValidation     Category = "validation"
	CategoryAuthorization  Category = "authorization"
	CategoryLifecycle      Category = "lifecycle"
	CategoryProtocol       Category = "protocol"
	CategoryInfrastructure Category = "infrastructure"
)

var categories = []struct {
	category Category
	errs     []error
}{
	{CategoryValidation, []error{ErrInvalidPrice, ErrInvalidExpiration, ErrInvalidRoyalties, ErrIncorrectBidFunds, ErrBidPayment, ErrInvalidParams, ErrInvalidAddress}},
	{CategoryAuthorization, []error{ErrUnauthorized, ErrNeedsApproval}},
	{CategoryLifecycle, []error{ErrAskNotFound, ErrAskNotActive, ErrAskExpired, ErrBidNotFound, ErrBidExpired, ErrNoRoyaltiesForTokenID, ErrHookAlreadyRegistered, ErrHookNotRegistered}},
	{CategoryProtocol, []error{ErrTransferFailed}},
}

// ErrorCategory classifies err. Unknown non-nil errors, including storage
// failures, are infrastructure errors.
func ErrorCategory(err error) Category {
	if err == nil {
		return CategoryNone
	}
	var unrecognised *UnrecognisedReplyError
	if errors.As(err, &unrecognised) {
		return CategoryProtocol
	}
	for _, group := range categories {
		for _, target := range group.errs {
			if errors.Is(err, target) {
				return group.category
			}
		}
	}
	return CategoryInfrastructure
}
