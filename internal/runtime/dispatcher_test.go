package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

type recordingWriter struct {
	mu       sync.Mutex
	messages []string
}

func (w *recordingWriter) WriteMessage(_ context.Context, text string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.messages = append(w.messages, text)
	return nil
}

func (w *recordingWriter) all() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.messages...)
}

// handlerFunc adapts a function to the Handler interface.
type handlerFunc func(ctx context.Context, w ResponseWriter, msg *Message) error

func (f handlerFunc) HandleMessage(ctx context.Context, w ResponseWriter, msg *Message) error {
	return f(ctx, w, msg)
}

func startedDispatcher(t *testing.T, h Handler, queueSize int) *Dispatcher {
	t.Helper()
	d := NewDispatcher(h, queueSize)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		d.Wait()
	})
	if err := d.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	return d
}

func TestDispatcherSerializesPerUser(t *testing.T) {
	var mu sync.Mutex
	inFlight := map[string]int{}

	h := handlerFunc(func(_ context.Context, w ResponseWriter, msg *Message) error {
		mu.Lock()
		inFlight[msg.UserID]++
		if inFlight[msg.UserID] > 1 {
			mu.Unlock()
			return fmt.Errorf("user %s has concurrent commands", msg.UserID)
		}
		mu.Unlock()

		time.Sleep(2 * time.Millisecond)

		mu.Lock()
		inFlight[msg.UserID]--
		mu.Unlock()
		return w.WriteMessage(context.Background(), msg.Text)
	})

	d := startedDispatcher(t, h, 16)
	writer := &recordingWriter{}

	for i := 0; i < 10; i++ {
		msg := &Message{UserID: "42", Text: fmt.Sprintf("m%d", i)}
		if err := d.Enqueue(context.Background(), msg, writer); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}
	if err := d.WaitUntilIdle(context.Background()); err != nil {
		t.Fatalf("wait: %v", err)
	}

	got := writer.all()
	if len(got) != 10 {
		t.Fatalf("expected 10 replies, got %d: %v", len(got), got)
	}
	for i, text := range got {
		if want := fmt.Sprintf("m%d", i); text != want {
			t.Fatalf("reply %d out of order: got %q, want %q", i, text, want)
		}
	}
}

func TestDispatcherRunsUsersConcurrently(t *testing.T) {
	release := make(chan struct{})
	reached := make(chan string, 2)

	h := handlerFunc(func(ctx context.Context, _ ResponseWriter, msg *Message) error {
		reached <- msg.UserID
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	d := startedDispatcher(t, h, 4)
	writer := &recordingWriter{}

	if err := d.Enqueue(context.Background(), &Message{UserID: "a", Text: "x"}, writer); err != nil {
		t.Fatalf("enqueue a: %v", err)
	}
	if err := d.Enqueue(context.Background(), &Message{UserID: "b", Text: "y"}, writer); err != nil {
		t.Fatalf("enqueue b: %v", err)
	}

	// Both users must be in flight at once; a blocked user a must not
	// stall user b.
	seen := map[string]bool{}
	timeout := time.After(2 * time.Second)
	for len(seen) < 2 {
		select {
		case id := <-reached:
			seen[id] = true
		case <-timeout:
			t.Fatalf("users did not run concurrently, saw %v", seen)
		}
	}
	close(release)

	if err := d.WaitUntilIdle(context.Background()); err != nil {
		t.Fatalf("wait: %v", err)
	}
}

func TestDispatcherReportsHandlerFailure(t *testing.T) {
	h := handlerFunc(func(context.Context, ResponseWriter, *Message) error {
		return errors.New("pipeline exploded")
	})

	d := startedDispatcher(t, h, 4)
	writer := &recordingWriter{}

	if err := d.Enqueue(context.Background(), &Message{UserID: "42", Text: "/note x"}, writer); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := d.WaitUntilIdle(context.Background()); err != nil {
		t.Fatalf("wait: %v", err)
	}

	got := writer.all()
	if len(got) != 1 || got[0] != userVisibleHandlerError {
		t.Fatalf("expected the fixed error reply, got %v", got)
	}
}

func TestDispatcherFailureDoesNotBlockQueue(t *testing.T) {
	h := handlerFunc(func(ctx context.Context, w ResponseWriter, msg *Message) error {
		if msg.Text == "boom" {
			return errors.New("boom")
		}
		return w.WriteMessage(ctx, msg.Text)
	})

	d := startedDispatcher(t, h, 4)
	writer := &recordingWriter{}

	for _, text := range []string{"boom", "after"} {
		if err := d.Enqueue(context.Background(), &Message{UserID: "42", Text: text}, writer); err != nil {
			t.Fatalf("enqueue %q: %v", text, err)
		}
	}
	if err := d.WaitUntilIdle(context.Background()); err != nil {
		t.Fatalf("wait: %v", err)
	}

	got := writer.all()
	if len(got) != 2 || got[0] != userVisibleHandlerError || got[1] != "after" {
		t.Fatalf("unexpected replies %v", got)
	}
}

func TestDispatcherEnqueueValidation(t *testing.T) {
	d := NewDispatcher(handlerFunc(func(context.Context, ResponseWriter, *Message) error { return nil }), 4)
	writer := &recordingWriter{}

	if err := d.Enqueue(context.Background(), &Message{UserID: "42", Text: "x"}, writer); err == nil {
		t.Fatalf("expected error before Start")
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer func() {
		cancel()
		d.Wait()
	}()

	if err := d.Enqueue(context.Background(), nil, writer); err == nil {
		t.Fatalf("expected error for nil message")
	}
	if err := d.Enqueue(context.Background(), &Message{Text: "x"}, writer); err == nil {
		t.Fatalf("expected error for missing user id")
	}
	if err := d.Enqueue(context.Background(), &Message{UserID: "42", Text: "x"}, nil); err == nil {
		t.Fatalf("expected error for nil writer")
	}
	if err := d.Start(ctx); err == nil {
		t.Fatalf("expected error for double start")
	}
}

func TestDispatcherRejectsEnqueueAfterCancel(t *testing.T) {
	d := NewDispatcher(handlerFunc(func(context.Context, ResponseWriter, *Message) error { return nil }), 4)
	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	cancel()
	d.Wait()

	err := d.Enqueue(context.Background(), &Message{UserID: "42", Text: "x"}, &recordingWriter{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
