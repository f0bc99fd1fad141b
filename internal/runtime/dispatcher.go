package runtime

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/liftlog-ai/liftlog/internal/logging"
)

const userVisibleHandlerError = "There was an error with your request. Check server logs for details"

// Dispatcher executes queued messages against a Handler with per-user
// FIFO serialization: one in-flight command per user, so a user's store
// effects are fully committed before their next command runs. Commands
// from different users proceed concurrently.
type Dispatcher struct {
	handler   Handler
	queueSize int

	stateMu sync.Mutex
	started bool
	rootCtx context.Context
	queues  map[string]chan dispatchItem

	pending atomic.Int64
	wg      sync.WaitGroup
}

type dispatchItem struct {
	msg    *Message
	writer ResponseWriter
}

// NewDispatcher creates a dispatcher with a fixed per-user queue size.
func NewDispatcher(handler Handler, queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Dispatcher{
		handler:   handler,
		queueSize: queueSize,
		queues:    make(map[string]chan dispatchItem),
	}
}

// Start binds the dispatcher to its root context. Per-user loops are
// spawned lazily on first enqueue.
func (d *Dispatcher) Start(ctx context.Context) error {
	if d == nil {
		return errors.New("dispatcher is required")
	}
	if d.handler == nil {
		return errors.New("handler is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	d.stateMu.Lock()
	defer d.stateMu.Unlock()
	if d.started {
		return errors.New("dispatcher already started")
	}
	d.started = true
	d.rootCtx = ctx
	return nil
}

// Enqueue submits one message for FIFO processing within its user's
// queue. A second command from the same user arriving mid-flight is
// queued, not interleaved.
func (d *Dispatcher) Enqueue(ctx context.Context, msg *Message, writer ResponseWriter) error {
	if msg == nil {
		return errors.New("message is required")
	}
	if msg.UserID == "" {
		return errors.New("message user id is required")
	}
	if writer == nil {
		return errors.New("response writer is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	queue, rootCtx, err := d.userQueue(msg.UserID)
	if err != nil {
		return err
	}

	d.pending.Add(1)
	select {
	case <-rootCtx.Done():
		d.pending.Add(-1)
		return rootCtx.Err()
	case <-ctx.Done():
		d.pending.Add(-1)
		return ctx.Err()
	case queue <- dispatchItem{msg: msg, writer: writer}:
		return nil
	}
}

// WaitUntilIdle blocks until no message is running or queued.
func (d *Dispatcher) WaitUntilIdle(ctx context.Context) error {
	if d == nil {
		return errors.New("dispatcher is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	for {
		if d.pending.Load() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Wait blocks until every user loop has exited after the root context
// is canceled.
func (d *Dispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}

func (d *Dispatcher) userQueue(userID string) (chan dispatchItem, context.Context, error) {
	d.stateMu.Lock()
	defer d.stateMu.Unlock()
	if !d.started {
		return nil, nil, errors.New("dispatcher is not started")
	}
	if err := d.rootCtx.Err(); err != nil {
		return nil, nil, err
	}

	queue, ok := d.queues[userID]
	if !ok {
		// One loop per user for the lifetime of the dispatcher. Idle
		// loops park on their channel and are only reclaimed at
		// shutdown, which is fine for a chat bot's user population; an
		// idle reap would be needed before serving an unbounded one.
		queue = make(chan dispatchItem, d.queueSize)
		d.queues[userID] = queue
		d.wg.Add(1)
		go d.run(d.rootCtx, userID, queue)
	}
	return queue, d.rootCtx, nil
}

func (d *Dispatcher) run(ctx context.Context, userID string, queue chan dispatchItem) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case item := <-queue:
			d.handle(ctx, userID, item)
		}
	}
}

func (d *Dispatcher) handle(ctx context.Context, userID string, item dispatchItem) {
	defer d.pending.Add(-1)
	if item.msg == nil || item.writer == nil {
		return
	}

	err := d.handler.HandleMessage(ctx, item.writer, item.msg)
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	// A failed command never takes the process down or blocks the queue.
	logging.Logger().Error("message handling failed", "user_id", userID, "err", err)
	if writeErr := item.writer.WriteMessage(ctx, userVisibleHandlerError); writeErr != nil {
		logging.Logger().Warn("failed to write handler error message", "user_id", userID, "err", writeErr)
	}
}
