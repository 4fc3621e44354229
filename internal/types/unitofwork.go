package types

import "context"

// UnitOfWork serializes read-then-act command sequences on shared rows. fn
// runs inside a single transaction boundary; any error returned from fn
// rolls back every repository mutation made within it. Commands that call
// the external billing provider hold the unit of work open until the
// provider call's outcome is known, so local and external state never
// diverge into a billed-but-unrecorded subscription.
type UnitOfWork interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}
