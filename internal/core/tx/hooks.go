package tx

import (
	"context"
)

// CommitHooks collects callbacks to run once the outermost transaction has
// committed. Cache invalidation registers here: firing it mid-transaction
// would let a concurrent reader re-cache the pre-commit view.
type CommitHooks struct {
	fns []func(ctx context.Context)
}

type commitHooksKey struct{}

// WithCommitHooks attaches a hook list to the context. Transaction managers
// call this when the outermost transaction begins; nested transactions reuse
// the list already present.
func WithCommitHooks(ctx context.Context) (context.Context, *CommitHooks) {
	if h, ok := ctx.Value(commitHooksKey{}).(*CommitHooks); ok {
		return ctx, h
	}
	h := &CommitHooks{}
	return context.WithValue(ctx, commitHooksKey{}, h), h
}

// AfterCommit defers fn until the surrounding transaction commits. Outside
// a transaction it runs fn immediately.
func AfterCommit(ctx context.Context, fn func(ctx context.Context)) {
	if h, ok := ctx.Value(commitHooksKey{}).(*CommitHooks); ok {
		h.fns = append(h.fns, fn)
		return
	}
	fn(ctx)
}

// Run executes the registered hooks in registration order and clears the
// list. Hooks never run on rollback.
func (h *CommitHooks) Run(ctx context.Context) {
	fns := h.fns
	h.fns = nil
	for _, fn := range fns {
		fn(ctx)
	}
}
