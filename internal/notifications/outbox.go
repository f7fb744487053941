package notifications

import (
	"context"
	"sync"

	"hostly/internal/shared/database"
)

type outboxKey struct{}

// Outbox collects messages produced inside a unit of work so they are only
// handed to the Notifier once that unit has committed.
type Outbox struct {
	mu       sync.Mutex
	messages []Message
	owner    bool
	shared   *Outbox
}

// WithOutbox attaches an outbox to ctx. When ctx already carries one the
// returned handle is a non owning view: Enqueue still lands in the outer
// outbox and Flush or Discard are left to whoever opened it.
func WithOutbox(ctx context.Context) (context.Context, *Outbox) {
	if existing, ok := ctx.Value(outboxKey{}).(*Outbox); ok {
		return ctx, &Outbox{shared: existing}
	}
	ob := &Outbox{owner: true}
	return context.WithValue(ctx, outboxKey{}, ob), ob
}

// Enqueue records messages on the outbox carried by ctx. It reports false
// when ctx has no outbox, in which case the messages are dropped.
func Enqueue(ctx context.Context, msgs ...Message) bool {
	ob, ok := ctx.Value(outboxKey{}).(*Outbox)
	if !ok {
		return false
	}
	ob.add(msgs...)
	return true
}

func (o *Outbox) add(msgs ...Message) {
	if o.shared != nil {
		o.shared.add(msgs...)
		return
	}
	o.mu.Lock()
	o.messages = append(o.messages, msgs...)
	o.mu.Unlock()
}

// Pending returns a copy of the queued messages
func (o *Outbox) Pending() []Message {
	if o.shared != nil {
		return o.shared.Pending()
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Message, len(o.messages))
	copy(out, o.messages)
	return out
}

// Flush hands every queued message to n and empties the outbox
func (o *Outbox) Flush(ctx context.Context, n Notifier) {
	if !o.owner {
		return
	}
	o.mu.Lock()
	msgs := o.messages
	o.messages = nil
	o.mu.Unlock()

	if len(msgs) > 0 && n != nil {
		n.Dispatch(ctx, msgs...)
	}
}

// Discard drops the queued messages after a rolled back unit of work
func (o *Outbox) Discard() {
	if !o.owner {
		return
	}
	o.mu.Lock()
	o.messages = nil
	o.mu.Unlock()
}

// Transactional runs fn as one unit of work on tx and hands the messages fn
// enqueued to n after commit. On error they are dropped with the rollback.
func Transactional(ctx context.Context, tx database.Transactor, n Notifier, fn func(ctx context.Context) error) error {
	ctx, ob := WithOutbox(ctx)
	if err := tx.WithinTx(ctx, fn); err != nil {
		ob.Discard()
		return err
	}
	ob.Flush(ctx, n)
	return nil
}
