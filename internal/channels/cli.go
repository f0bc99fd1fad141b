// Package channels provides runtime.Listener implementations for each
// supported input channel (Telegram and an interactive local CLI).
package channels

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"golang.org/x/term"

	"github.com/liftlog-ai/liftlog/internal/runtime"
)

const (
	defaultReplPrompt    = "you> "
	defaultDispatchQueue = 20
	// Allow queued input to finish when stdin closes before shutting down
	// the dispatcher.
	dispatchDrainTimeout = 5 * time.Second

	// The CLI channel serves exactly one local user.
	cliUserID = "local"
)

var _ runtime.Listener = (*CLIListener)(nil)

// CLIWriter writes assistant responses to terminal output.
type CLIWriter struct {
	out io.Writer
}

// WriteMessage writes one assistant message line.
func (w *CLIWriter) WriteMessage(_ context.Context, text string) error {
	_, err := fmt.Fprintf(w.out, "assistant> %s\n\n", text)
	return err
}

// CLIListener listens for interactive terminal input and dispatches
// messages as the fixed local user.
type CLIListener struct {
	in  io.Reader
	out io.Writer

	rl       *readline.Instance
	fallback *bufio.Reader
}

// NewCLI creates a new CLI listener over stdin/stdout style streams.
func NewCLI(in io.Reader, out io.Writer) *CLIListener {
	return &CLIListener{in: in, out: out}
}

// Listen runs the interactive loop until EOF or /quit.
func (c *CLIListener) Listen(ctx context.Context, handler runtime.Handler) error {
	if handler == nil {
		return errors.New("handler is required")
	}
	c.ensureInputReady()
	if c.rl != nil {
		defer c.rl.Close()
	}

	if _, err := fmt.Fprintln(c.out, "Interactive mode. Type /quit or /exit to stop."); err != nil {
		return err
	}

	writer := &CLIWriter{out: c.out}
	dispatchCtx, cancelDispatch := context.WithCancel(ctx)

	dispatcher := runtime.NewDispatcher(handler, defaultDispatchQueue)
	if err := dispatcher.Start(dispatchCtx); err != nil {
		cancelDispatch()
		return err
	}
	defer func() {
		cancelDispatch()
		dispatcher.Wait()
	}()

	for {
		line, err := c.readLine()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, readline.ErrInterrupt) {
				c.drainDispatcher(dispatcher)
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return nil
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		switch strings.ToLower(line) {
		case "/quit", "quit", "/exit", "exit":
			c.drainDispatcher(dispatcher)
			writer.WriteMessage(ctx, "Stopped.")
			return nil
		}

		if err := dispatcher.Enqueue(ctx, &runtime.Message{UserID: cliUserID, Text: line}, writer); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		// Keep the REPL readable: wait for the reply before prompting again.
		if err := dispatcher.WaitUntilIdle(ctx); err != nil {
			return nil
		}
	}
}

func (c *CLIListener) readLine() (string, error) {
	if c.rl != nil {
		return c.rl.Readline()
	}
	if _, err := fmt.Fprint(c.out, defaultReplPrompt); err != nil {
		return "", err
	}
	line, err := c.fallback.ReadString('\n')
	if err != nil {
		// A final line without a trailing newline arrives together with
		// EOF; deliver it and report EOF on the next read.
		if errors.Is(err, io.EOF) && line != "" {
			return line, nil
		}
		return "", err
	}
	return line, nil
}

func (c *CLIListener) drainDispatcher(dispatcher *runtime.Dispatcher) {
	drainCtx, cancel := context.WithTimeout(context.Background(), dispatchDrainTimeout)
	defer cancel()
	dispatcher.WaitUntilIdle(drainCtx)
}

func (c *CLIListener) ensureInputReady() {
	if c.rl != nil || c.fallback != nil {
		return
	}

	// Readline needs a real terminal; batch input falls back to bufio.
	if f, ok := c.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		rl, err := readline.NewEx(&readline.Config{
			Prompt: defaultReplPrompt,
			Stdin:  io.NopCloser(c.in),
			Stdout: asWriter(c.out),
		})
		if err == nil {
			c.rl = rl
			return
		}
	}
	c.fallback = bufio.NewReader(c.in)
}

func asWriter(w io.Writer) io.Writer {
	if w == nil {
		return os.Stdout
	}
	return w
}
