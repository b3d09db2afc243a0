package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"sync"
)

const (
	ansiReset     = "\033[0m"
	ansiRed       = "\033[31m"
	ansiGreen     = "\033[32m"
	ansiYellow    = "\033[33m"
	ansiBlue      = "\033[34m"
	ansiCyan      = "\033[36m"
	ansiGray      = "\033[90m"
	ansiUnderline = "\033[4m"
)

//nolint:gochecknoglobals
var levelColor = map[slog.Level]string{
	LevelDebug: ansiCyan,
	LevelInfo:  ansiGreen,
	LevelWarn:  ansiYellow,
	LevelError: ansiRed,
}

// ConsoleHandler writes one coloured line per record plus the caller, for reading logs in a terminal.
type ConsoleHandler struct {
	// Output receives the formatted records.
	Output io.Writer
	// Level is the minimum level written.
	Level slog.Leveler

	mu     *sync.Mutex
	name   string
	attrs  []slog.Attr
	groups []string
}

var _ slog.Handler = (*ConsoleHandler)(nil)

// NewConsoleHandler returns a handler writing to out at level and above.
func NewConsoleHandler(out io.Writer, level slog.Leveler) *ConsoleHandler {
	return &ConsoleHandler{
		Output: out,
		Level:  level,
		mu:     new(sync.Mutex),
		name:   "",
		attrs:  nil,
		groups: nil,
	}
}

// Handle implements slog.Handler.
func (h *ConsoleHandler) Handle(_ context.Context, r slog.Record) error {
	var sb strings.Builder

	sb.WriteString(ansiGray + r.Time.Format("15:04:05.000") + ansiReset)
	sb.WriteString(" " + levelColor[r.Level] + fmt.Sprintf("%-5s", r.Level.String()) + ansiReset)

	if h.name != "" {
		sb.WriteString(" " + ansiBlue + "[" + h.name + "]" + ansiReset)
	}

	sb.WriteString(" " + r.Message)

	prefix := ""
	if len(h.groups) > 0 {
		prefix = strings.Join(h.groups, ".") + "."
	}

	writeAttrs(&sb, "", h.attrs)
	r.Attrs(func(a slog.Attr) bool {
		writeAttrs(&sb, prefix, []slog.Attr{a})

		return true
	})

	if r.PC != 0 {
		frame, _ := runtime.CallersFrames([]uintptr{r.PC}).Next()
		sb.WriteString("\n  " + ansiGray + "at " + filepath.Base(frame.Function) + "()")
		sb.WriteString(" " + ansiUnderline + frame.File + ":" + strconv.Itoa(frame.Line) + ansiReset)
	}

	sb.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, err := io.WriteString(h.Output, sb.String()); err != nil {
		return fmt.Errorf("write log record: %w", err)
	}

	return nil
}

func writeAttrs(sb *strings.Builder, prefix string, attrs []slog.Attr) {
	for _, attr := range attrs {
		if attr.Equal(slog.Attr{}) {
			continue
		}

		value := attr.Value.Resolve()
		if value.Kind() == slog.KindGroup {
			writeAttrs(sb, prefix+attr.Key+".", value.Group())

			continue
		}

		sb.WriteString(" " + prefix + attr.Key + "=" + ansiGray + value.String() + ansiReset)
	}
}

// WithAttrs implements slog.Handler. The logger name attribute becomes the bracketed line prefix.
func (h *ConsoleHandler) WithAttrs(attrs []slog.Attr) Handler {
	clone := *h
	clone.attrs = slices.Clone(h.attrs)

	for _, attr := range attrs {
		if attr.Key == loggerNameKey && len(h.groups) == 0 {
			clone.name = attr.Value.String()

			continue
		}

		if len(h.groups) > 0 {
			attr.Key = strings.Join(h.groups, ".") + "." + attr.Key
		}

		clone.attrs = append(clone.attrs, attr)
	}

	return &clone
}

// WithGroup implements slog.Handler.
func (h *ConsoleHandler) WithGroup(name string) Handler {
	if name == "" {
		return h
	}

	clone := *h
	clone.groups = slices.Concat(h.groups, []string{name})

	return &clone
}

// Enabled implements slog.Handler.
func (h *ConsoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return h.Level.Level() <= level
}
