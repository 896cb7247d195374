package logging

import (
	"context"
	"errors"
	"log/slog"
	"strings"
)

// RedactedValue replaces customer contact data in remote log records.
const RedactedValue = "[redacted]"

// CustomerKeys are the attribute keys that carry customer contact data.
var CustomerKeys = []string{
	"customer_name",
	"customer_phone",
	"customer_email",
	"email",
	"phone",
	"address",
	"to",
}

// Tee sends every record to local and a copy with CustomerKeys redacted to
// remote. A nil remote returns local unchanged.
func Tee(local, remote slog.Handler) slog.Handler {
	if remote == nil {
		return local
	}
	remote = Redact(remote, CustomerKeys...)
	if local == nil {
		return remote
	}
	return teeHandler{local: local, remote: remote}
}

type teeHandler struct {
	local  slog.Handler
	remote slog.Handler
}

func (h teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.local.Enabled(ctx, level) || h.remote.Enabled(ctx, level)
}

func (h teeHandler) Handle(ctx context.Context, record slog.Record) error {
	var err error
	if h.local.Enabled(ctx, record.Level) {
		err = h.local.Handle(ctx, record.Clone())
	}
	if h.remote.Enabled(ctx, record.Level) {
		err = errors.Join(err, h.remote.Handle(ctx, record.Clone()))
	}
	return err
}

func (h teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return teeHandler{local: h.local.WithAttrs(attrs), remote: h.remote.WithAttrs(attrs)}
}

func (h teeHandler) WithGroup(name string) slog.Handler {
	return teeHandler{local: h.local.WithGroup(name), remote: h.remote.WithGroup(name)}
}

// Redact wraps next so the values of keys, matched case-insensitively at any
// group depth, are replaced with RedactedValue.
func Redact(next slog.Handler, keys ...string) slog.Handler {
	set := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		set[strings.ToLower(key)] = struct{}{}
	}
	return redactHandler{next: next, keys: set}
}

type redactHandler struct {
	next slog.Handler
	keys map[string]struct{}
}

func (h redactHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h redactHandler) Handle(ctx context.Context, record slog.Record) error {
	out := slog.NewRecord(record.Time, record.Level, record.Message, record.PC)
	record.Attrs(func(attr slog.Attr) bool {
		out.AddAttrs(h.redact(attr))
		return true
	})
	return h.next.Handle(ctx, out)
}

func (h redactHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, 0, len(attrs))
	for _, attr := range attrs {
		redacted = append(redacted, h.redact(attr))
	}
	return redactHandler{next: h.next.WithAttrs(redacted), keys: h.keys}
}

func (h redactHandler) WithGroup(name string) slog.Handler {
	return redactHandler{next: h.next.WithGroup(name), keys: h.keys}
}

func (h redactHandler) redact(attr slog.Attr) slog.Attr {
	if _, ok := h.keys[strings.ToLower(attr.Key)]; ok {
		return slog.String(attr.Key, RedactedValue)
	}
	value := attr.Value.Resolve()
	if value.Kind() != slog.KindGroup {
		return attr
	}
	group := value.Group()
	redacted := make([]any, 0, len(group))
	for _, member := range group {
		redacted = append(redacted, h.redact(member))
	}
	return slog.Group(attr.Key, redacted...)
}
