package shared

import "context"

// TxRunner executes fn atomically against the relationship store. All
// repository calls made with the context passed to fn share one
// transaction; fn returning an error rolls everything back.
//
// Operations that read-then-write a per-owner invariant (slot assignment,
// conflict eviction, accept-request-creates-edge) must run inside a
// TxRunner so concurrent mutation of the same owner serializes.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// NopTxRunner runs fn directly with no transaction; used by in-memory
// test fixtures where atomicity is trivial.
type NopTxRunner struct{}

// WithinTx implements TxRunner.
func (NopTxRunner) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
