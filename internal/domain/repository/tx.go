package repository

import "context"

// TxManager runs fn atomically: either every store mutation made through the
// derived context commits, or none do. Nested calls join the enclosing
// transaction.
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
