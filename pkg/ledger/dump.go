package ledger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// FileDumper rewrites the full ledger as a JSON document after every append.
// Raw image bytes are elided; only their sizes are recorded.
type FileDumper struct {
	path string
}

// NewFileDumper creates the artifacts directory and returns a dumper writing
// to session-<id>.json inside it.
func NewFileDumper(dir, sessionID string) (*FileDumper, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileDumper{path: filepath.Join(dir, "session-"+sessionID+".json")}, nil
}

type dumpEntry struct {
	Role         string    `json:"role"`
	Text         string    `json:"text,omitempty"`
	ImageBytes   int       `json:"image_bytes,omitempty"`
	ImageEvicted bool      `json:"image_evicted,omitempty"`
	Monitoring   bool      `json:"monitoring,omitempty"`
	Decision     string    `json:"decision,omitempty"`
	MonitorCount int       `json:"monitor_count,omitempty"`
	Tag          string    `json:"tag,omitempty"`
	At           time.Time `json:"at"`
}

func (d *FileDumper) Dump(entries []Entry) error {
	out := make([]dumpEntry, 0, len(entries))
	for _, e := range entries {
		de := dumpEntry{
			Role:         string(e.Role),
			Text:         e.Text,
			ImageBytes:   len(e.Image),
			ImageEvicted: e.ImageEvicted,
			Monitoring:   e.Monitoring,
			MonitorCount: e.MonitorCount,
			Tag:          e.Tag,
			At:           e.At,
		}
		if e.Decision != nil {
			de.Decision = e.Decision.EncodeJSON()
		}
		out = append(out, de)
	}
	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}
	tmp := d.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, d.path)
}
