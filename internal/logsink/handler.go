package logsink

import (
	"context"
	"log/slog"
	"slices"
)

// Handler is the slog.Handler side of a Sink. Attributes keyed worker and
// logger become the record's columns; everything else is kept in order.
type Handler struct {
	sink   *Sink
	worker string
	logger string
	attrs  []slog.Attr
	group  string
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.sink.level
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	rec := Record{
		Time:    r.Time,
		Worker:  h.worker,
		Logger:  h.logger,
		Level:   r.Level,
		Message: r.Message,
		Attrs:   slices.Clone(h.attrs),
	}
	r.Attrs(func(a slog.Attr) bool {
		rec.Attrs = appendAttr(rec.Attrs, h.group, a)
		return true
	})
	if rec.Logger == "" {
		rec.Logger = "root"
	}
	h.sink.Send(rec)
	return nil
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = slices.Clone(h.attrs)
	for _, a := range attrs {
		switch {
		case h.group == "" && a.Key == WorkerKey:
			next.worker = a.Value.String()
		case h.group == "" && a.Key == LoggerKey:
			next.logger = a.Value.String()
		default:
			next.attrs = appendAttr(next.attrs, h.group, a)
		}
	}
	return &next
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.group = qualify(h.group, name)
	return &next
}

func appendAttr(attrs []slog.Attr, group string, a slog.Attr) []slog.Attr {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return attrs
	}
	if a.Value.Kind() == slog.KindGroup {
		prefix := qualify(group, a.Key)
		for _, ga := range a.Value.Group() {
			attrs = appendAttr(attrs, prefix, ga)
		}
		return attrs
	}
	a.Key = qualify(group, a.Key)
	return append(attrs, a)
}

func qualify(group, key string) string {
	switch {
	case group == "":
		return key
	case key == "":
		return group
	}
	return group + "." + key
}

type loggerKey struct{}

// NewContext returns a copy of ctx carrying l.
func NewContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// FromContext returns the logger stored in ctx, or slog.Default().
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return slog.Default()
}
