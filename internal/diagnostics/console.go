// Package diagnostics aggregates console errors from the browser contexts
// under test and persists failure reports for the runner.
package diagnostics

import (
	"context"
	"strings"
	"sync"
	"time"

	cdplog "github.com/chromedp/cdproto/log"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/lockbridge/walletrun/internal/harness"
)

const maxConsoleTextLen = 500

// ConsoleCollector listens to CDP console events across attached contexts
// and accumulates error-level entries until drained. The listener goroutines
// are chromedp's; the collector only appends under its own lock.
type ConsoleCollector struct {
	logger *zap.Logger
	// limiter throttles per-message debug logging; a looping extension
	// script can emit thousands of identical errors per second.
	limiter *rate.Limiter

	mu     sync.Mutex
	errors []harness.ConsoleMessage
}

// NewConsoleCollector creates an empty collector.
func NewConsoleCollector(logger *zap.Logger) *ConsoleCollector {
	return &ConsoleCollector{
		logger:  logger.Named("console"),
		limiter: rate.NewLimiter(rate.Every(time.Second), 10),
	}
}

// Attach subscribes to console events on a chromedp target context. Call once
// per context of interest; subscriptions end when the target context does.
func (c *ConsoleCollector) Attach(targetCtx context.Context, source string) {
	chromedp.ListenTarget(targetCtx, func(ev interface{}) {
		switch ev := ev.(type) {
		case *runtime.EventConsoleAPICalled:
			if ev.Type != runtime.APITypeError {
				return
			}
			c.record(source, "error", consoleArgsText(ev.Args), "")
		case *runtime.EventExceptionThrown:
			if ev.ExceptionDetails == nil {
				return
			}
			c.record(source, "error", ev.ExceptionDetails.Error(), ev.ExceptionDetails.URL)
		case *cdplog.EventEntryAdded:
			if ev.Entry == nil || ev.Entry.Level != cdplog.LevelError {
				return
			}
			c.record(source, string(ev.Entry.Level), ev.Entry.Text, ev.Entry.URL)
		}
	})
}

func (c *ConsoleCollector) record(source, level, text, url string) {
	msg := harness.ConsoleMessage{
		Source:    source,
		Level:     level,
		Text:      truncate(text, maxConsoleTextLen),
		URL:       url,
		Timestamp: time.Now().UTC(),
	}

	c.mu.Lock()
	c.errors = append(c.errors, msg)
	c.mu.Unlock()

	if c.limiter.Allow() {
		c.logger.Debug("Console error captured.",
			zap.String("source", source), zap.String("text", msg.Text))
	}
}

// Drain returns the errors accumulated since the previous drain.
func (c *ConsoleCollector) Drain() []harness.ConsoleMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.errors
	c.errors = nil
	return out
}

func consoleArgsText(args []*runtime.RemoteObject) string {
	parts := make([]string, 0, len(args))
	for _, arg := range args {
		if arg == nil {
			continue
		}
		if len(arg.Value) > 0 {
			parts = append(parts, strings.Trim(string(arg.Value), `"`))
		} else if arg.Description != "" {
			parts = append(parts, arg.Description)
		}
	}
	return strings.Join(parts, " ")
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
