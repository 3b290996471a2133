package metrics

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

type JSONLObserver struct {
	logger *slog.Logger
	closer io.Closer
}

func NewJSONLObserver(w io.Writer) *JSONLObserver {
	if w == nil {
		return &JSONLObserver{logger: slog.New(slog.NewJSONHandler(io.Discard, nil))}
	}
	return &JSONLObserver{logger: slog.New(slog.NewJSONHandler(w, nil))}
}

// NewJSONLFileObserver appends events to metrics-<sessionID>.jsonl under dir.
func NewJSONLFileObserver(dir, sessionID string) (*JSONLObserver, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	path := filepath.Join(dir, "metrics-"+sessionID+".jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	obs := NewJSONLObserver(f)
	obs.closer = f
	return obs, nil
}

func (o *JSONLObserver) RecordEvent(ev Event) {
	attrs := []slog.Attr{
		slog.String("name", ev.Name),
		slog.Time("time", ev.Time),
		slog.Float64("value", ev.Value),
	}
	for k, v := range ev.Tags {
		attrs = append(attrs, slog.String(k, v))
	}
	for k, v := range ev.Fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	o.logger.LogAttrs(context.TODO(), slog.LevelInfo, "metrics", attrs...)
}

func (o *JSONLObserver) Close() error {
	if o.closer != nil {
		return o.closer.Close()
	}
	return nil
}
