// Package notify delivers user-facing notifications to local sinks.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"Sahayak/internal/domain"
	"Sahayak/internal/ports"
)

// Console prints one line per notification.
type Console struct {
	mu  sync.Mutex
	out io.Writer
}

var _ ports.Notifier = (*Console)(nil)

// NewConsole writes to out.
func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

// Notify writes "[level] title: detail (job id)".
func (c *Console) Notify(_ context.Context, n domain.Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintln(c.out, Format(n))
	return err
}

// Format renders a notification as a single line.
func Format(n domain.Notification) string {
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(string(n.Level))
	b.WriteString("] ")
	b.WriteString(n.Title)
	if n.Detail != "" {
		b.WriteString(": ")
		b.WriteString(n.Detail)
	}
	if n.JobID != "" {
		b.WriteString(" (")
		b.WriteString(n.JobID)
		b.WriteString(")")
	}
	return b.String()
}

// Multi fans a notification out to every sink. All sinks are tried.
type Multi []ports.Notifier

var _ ports.Notifier = Multi(nil)

// Notify delivers to each sink and joins the errors.
func (m Multi) Notify(ctx context.Context, n domain.Notification) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
