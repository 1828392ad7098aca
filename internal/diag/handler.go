// Package diag provides the bootloader's optional diagnostic logging
// output: a compact slog.Handler writing one line per record to
// whatever io.Writer the platform supplies (a spare UART, USB-CDC, or
// just stdout on the host). It carries no state beyond formatting and
// adds no network-facing telemetry beyond this optional byte output.
package diag

import (
	"context"
	"io"
	"log/slog"
	"strconv"
)

// Handler formats slog.Record values as "level msg key=val key=val" and
// writes them to W. Unlike slog.TextHandler it never allocates a map;
// every value is appended directly into one small per-record buffer,
// matching the zero-heap formatting style of the reference logging
// handler this is adapted from.
type Handler struct {
	w     io.Writer
	level slog.Leveler
	attrs []slog.Attr
	group string
}

// NewHandler creates a Handler writing to w, gated at the given level
// (nil means slog.LevelInfo, matching slog's own default).
func NewHandler(w io.Writer, level slog.Leveler) *Handler {
	return &Handler{w: w, level: level}
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	min := slog.LevelInfo
	if h.level != nil {
		min = h.level.Level()
	}
	return level >= min
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	buf := make([]byte, 0, 128)
	buf = append(buf, r.Level.String()...)
	buf = append(buf, ' ')
	if h.group != "" {
		buf = append(buf, h.group...)
		buf = append(buf, ':')
	}
	buf = append(buf, r.Message...)
	for _, a := range h.attrs {
		buf = appendAttr(buf, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		buf = appendAttr(buf, a)
		return true
	})
	buf = append(buf, '\n')
	_, err := h.w.Write(buf)
	return err
}

func appendAttr(buf []byte, a slog.Attr) []byte {
	buf = append(buf, ' ')
	buf = append(buf, a.Key...)
	buf = append(buf, '=')
	switch a.Value.Kind() {
	case slog.KindString:
		buf = append(buf, a.Value.String()...)
	case slog.KindInt64:
		buf = strconv.AppendInt(buf, a.Value.Int64(), 10)
	case slog.KindUint64:
		buf = strconv.AppendUint(buf, a.Value.Uint64(), 10)
	case slog.KindBool:
		buf = strconv.AppendBool(buf, a.Value.Bool())
	case slog.KindDuration:
		buf = append(buf, a.Value.Duration().String()...)
	default:
		buf = append(buf, a.Value.String()...)
	}
	return buf
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, len(h.attrs)+len(attrs))
	copy(merged, h.attrs)
	copy(merged[len(h.attrs):], attrs)
	return &Handler{w: h.w, level: h.level, attrs: merged, group: h.group}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	group := name
	if h.group != "" {
		group = h.group + "." + name
	}
	return &Handler{w: h.w, level: h.level, attrs: h.attrs, group: group}
}
