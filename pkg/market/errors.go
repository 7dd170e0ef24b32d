package market

import "errors"

// Named settlement failures. Every failed settlement surfaces exactly
// one of these; none is retried and none is swallowed.
var (
	// ErrFirstOrderAuthorization means the asset-side order was neither
	// signed by its maker, submitted by its maker, nor pre-approved.
	ErrFirstOrderAuthorization = errors.New("first order failed authorization")

	// ErrSecondOrderAuthorization is the payment-side equivalent.
	ErrSecondOrderAuthorization = errors.New("second order failed authorization")

	// ErrOrderExpired means now is outside an order's listing window.
	ErrOrderExpired = errors.New("order expired or not yet listed")

	// ErrCapacityExceeded means an order's fill counter cannot absorb
	// the requested amount. Also the replay failure: an exhausted order
	// can never settle again.
	ErrCapacityExceeded = errors.New("order capacity exceeded")

	// ErrStaticCheckFailed means a proposed call does not implement the
	// trade its order declared.
	ErrStaticCheckFailed = errors.New("static call failed")

	// ErrPriceMismatch means the two orders declare unequal prices.
	ErrPriceMismatch = errors.New("selling and buying price mismatch")

	// ErrIncorrectPaymentAmount means the native currency attached to
	// the settlement does not equal the declared price exactly.
	ErrIncorrectPaymentAmount = errors.New("invalid amount of native currency for the purchase")

	// ErrFirstCallFailed / ErrSecondCallFailed mean a transfer leg was
	// rejected by its ledger; the whole settlement rolls back.
	ErrFirstCallFailed  = errors.New("first call failed")
	ErrSecondCallFailed = errors.New("second call failed")

	// ErrPaymentTokenNotWhitelisted means the fungible payment token is
	// not approved for use on this marketplace.
	ErrPaymentTokenNotWhitelisted = errors.New("payment token not whitelisted")

	// ErrUnknownRegistry means an order names an act-on-behalf-of
	// capability the engine does not know.
	ErrUnknownRegistry = errors.New("unknown registry")
)
