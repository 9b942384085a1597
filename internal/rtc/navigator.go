package rtc

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// WriterNavigator hands a room over to the user by printing its URL.
type WriterNavigator struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterNavigator returns a navigator that writes to w.
func NewWriterNavigator(w io.Writer) *WriterNavigator {
	return &WriterNavigator{w: w}
}

func (n *WriterNavigator) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, err := fmt.Fprintf(n.w, "Open %s to talk to your agent\n", url); err != nil {
		return fmt.Errorf("write room url: %w", err)
	}
	return nil
}
