package ports

import "context"

// Tx is an opaque transaction handle for repositories/adapters.
// Infrastructure controls the concrete type (for example, *gorm.DB).
type Tx interface{}

// UnitOfWork defines a transaction boundary.
//
// Returning an error from fn rolls back, returning nil commits. Backends without
// transactions run fn directly.
type UnitOfWork interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type txKey struct{}

// WithTxContext stores a transaction handle in context.
func WithTxContext(ctx context.Context, tx Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// TxFromContext reads a transaction handle from context.
func TxFromContext(ctx context.Context) Tx {
	return ctx.Value(txKey{})
}

// DirectUnitOfWork runs fn without a transaction.
type DirectUnitOfWork struct{}

func (DirectUnitOfWork) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
