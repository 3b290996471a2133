// Package ledger maintains the bounded conversation history sent to the
// decision oracle. Two maintenance passes keep it small over long sessions:
// adjacent no-change turns are merged into a single counted entry, and image
// attachments from old monitoring captures are evicted down to a recency
// window. Both passes run synchronously on the orchestration goroutine; the
// ledger needs no locking.
package ledger

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/harunnryd/remy/pkg/logging"
	"github.com/harunnryd/remy/pkg/oracle"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// EvictedPlaceholder replaces a stripped image attachment in oracle context.
const EvictedPlaceholder = "[image attachment evicted]"

const defaultKeepImages = 3

// Entry is one item in the ledger. User entries carry either a plain
// notification string or a structured turn payload with an optional image.
// Assistant entries carry the decoded decision snapshot.
type Entry struct {
	Role         Role
	Text         string
	Image        []byte
	ImageMime    string
	ImageEvicted bool
	Monitoring   bool
	Decision     *oracle.Decision
	MonitorCount int
	Tag          string
	At           time.Time
}

// UserPayload is the input for a structured user append.
type UserPayload struct {
	Text       string
	Image      []byte
	ImageMime  string
	Monitoring bool
}

// Dumper persists a ledger snapshot for offline inspection. Best effort:
// errors are logged and never abort the orchestration loop.
type Dumper interface {
	Dump(entries []Entry) error
}

type Options struct {
	KeepImages int
	Dumper     Dumper
	Logger     *slog.Logger
}

type Ledger struct {
	entries    []Entry
	keepImages int
	dumper     Dumper
	logger     *slog.Logger
	now        func() time.Time
}

func New(opts Options) *Ledger {
	keep := opts.KeepImages
	if keep <= 0 {
		keep = defaultKeepImages
	}
	return &Ledger{
		keepImages: keep,
		dumper:     opts.Dumper,
		logger:     logging.NewComponentLogger(opts.Logger, "ledger"),
		now:        time.Now,
	}
}

func (l *Ledger) Len() int { return len(l.entries) }

// Entries returns a copy of the entry slice. Payload bytes are shared.
func (l *Ledger) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// AppendUser adds a structured user turn.
func (l *Ledger) AppendUser(p UserPayload) {
	l.entries = append(l.entries, Entry{
		Role:       RoleUser,
		Text:       p.Text,
		Image:      p.Image,
		ImageMime:  p.ImageMime,
		Monitoring: p.Monitoring,
		At:         l.now(),
	})
	l.dump()
}

// AppendNotice adds a plain user-role notification string, e.g. a timer-armed
// system note.
func (l *Ledger) AppendNotice(text string) {
	l.entries = append(l.entries, Entry{Role: RoleUser, Text: text, At: l.now()})
	l.dump()
}

// AppendAssistant adds a decision snapshot and runs the merge pass. When the
// decision is a silent no-change and the assistant entry preceding the most
// recent user entry is a bare-or-counted no-change, the older user+assistant
// pair is compacted away and the new entry carries the summed count. A
// no-change decision with non-empty speech is never merged; it is a real
// utterance that must stay addressable in context. Returns true when a merge
// happened.
func (l *Ledger) AppendAssistant(dec oracle.Decision) bool {
	entry := Entry{Role: RoleAssistant, Decision: &dec, At: l.now()}

	merged := false
	if dec.Status == oracle.StatusNoChange && strings.TrimSpace(dec.Speech) == "" {
		entry.MonitorCount = 1
		// Tail shape before this append: [..., prevUser, prevAssistant, curUser].
		if n := len(l.entries); n >= 3 {
			prev := l.entries[n-2]
			prevUser := l.entries[n-3]
			if prev.Role == RoleAssistant && prevUser.Role == RoleUser &&
				prev.Decision != nil && prev.Decision.Status == oracle.StatusNoChange &&
				prev.MonitorCount >= 1 {
				entry.MonitorCount = prev.MonitorCount + 1
				entry.Tag = fmt.Sprintf("<NO_CHANGE> * %d", entry.MonitorCount)
				// Compact the tail: drop the old pair, keep the current user entry.
				cur := l.entries[n-1]
				l.entries = append(l.entries[:n-3], cur)
				merged = true
				l.logger.Debug("merged no-change turn",
					slog.Int("count", entry.MonitorCount),
					slog.Int("ledger_len", len(l.entries)+1))
			}
		}
	}

	l.entries = append(l.entries, entry)
	l.dump()
	return merged
}

// DropLast removes the most recent entry. The coordinator uses it to abandon
// a cycle whose oracle call failed after the user turn was appended.
func (l *Ledger) DropLast() {
	if n := len(l.entries); n > 0 {
		l.entries = l.entries[:n-1]
	}
}

// PruneStaleAttachments strips images from all but the most recent
// monitoring-state captures, oldest first, replacing each with a placeholder.
// Non-image and non-monitoring entries are never touched. Idempotent.
// Returns the number of images stripped by this pass.
func (l *Ledger) PruneStaleAttachments() int {
	var withImage []int
	for i := range l.entries {
		e := &l.entries[i]
		if e.Role == RoleUser && e.Monitoring && len(e.Image) > 0 {
			withImage = append(withImage, i)
		}
	}
	if len(withImage) <= l.keepImages {
		return 0
	}
	stripped := 0
	for _, i := range withImage[:len(withImage)-l.keepImages] {
		l.entries[i].Image = nil
		l.entries[i].ImageEvicted = true
		stripped++
	}
	if stripped > 0 {
		l.logger.Debug("evicted stale attachments", slog.Int("stripped", stripped))
		l.dump()
	}
	return stripped
}

// Messages renders the ledger as provider-neutral chat messages.
func (l *Ledger) Messages() []map[string]any {
	out := make([]map[string]any, 0, len(l.entries))
	for i := range l.entries {
		out = append(out, renderEntry(&l.entries[i]))
	}
	return out
}

func renderEntry(e *Entry) map[string]any {
	if e.Role == RoleAssistant {
		content := e.Text
		if e.Decision != nil {
			dec := *e.Decision
			if e.Tag != "" {
				dec.Speech = e.Tag
			}
			content = dec.EncodeJSON()
		}
		return map[string]any{"role": "assistant", "content": content}
	}

	if len(e.Image) == 0 && !e.ImageEvicted {
		return map[string]any{"role": "user", "content": e.Text}
	}

	blocks := []map[string]any{
		{"type": "text", "text": e.Text},
	}
	if e.ImageEvicted {
		blocks = append(blocks, map[string]any{"type": "text", "text": EvictedPlaceholder})
	} else {
		mime := e.ImageMime
		if mime == "" {
			mime = "image/jpeg"
		}
		uri := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(e.Image)
		blocks = append(blocks, map[string]any{
			"type":      "image_url",
			"image_url": map[string]any{"url": uri},
		})
	}
	return map[string]any{"role": "user", "content": blocks}
}

func (l *Ledger) dump() {
	if l.dumper == nil {
		return
	}
	if err := l.dumper.Dump(l.Entries()); err != nil {
		l.logger.Warn("session dump failed", slog.String("error", err.Error()))
	}
}
