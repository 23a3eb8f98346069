package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// TerminalChannel prints alerts to a terminal. It is the default channel
// when nothing else is configured, and doubles as a visible trace during
// development.
type TerminalChannel struct {
	out     io.Writer
	enabled bool
	bell    bool
	mu      sync.Mutex
}

// NewTerminalChannel creates a terminal channel writing to stdout.
func NewTerminalChannel() *TerminalChannel {
	return &TerminalChannel{
		out:     os.Stdout,
		enabled: true,
		bell:    true,
	}
}

// NewTerminalChannelWriter creates a terminal channel with a custom writer.
func NewTerminalChannelWriter(w io.Writer) *TerminalChannel {
	return &TerminalChannel{out: w, enabled: true}
}

// Name returns the name of the channel.
func (t *TerminalChannel) Name() string {
	return "terminal"
}

// IsEnabled returns whether the channel is enabled.
func (t *TerminalChannel) IsEnabled() bool {
	return t.enabled
}

// SetBellEnabled enables or disables the terminal bell.
func (t *TerminalChannel) SetBellEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.bell = enabled
}

// Deliver prints the rendered message.
func (t *TerminalChannel) Deliver(ctx context.Context, userRef, text string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.bell {
		fmt.Fprint(t.out, "\a")
	}
	_, err := fmt.Fprintf(t.out, "[%s] %s → %s\n",
		time.Now().Format("15:04:05"), userRef, text)
	return err
}
