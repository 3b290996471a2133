// Package deepgram implements the microphone source on Deepgram's live
// transcription websocket. Raw PCM read from an input stream is piped to the
// SDK; final transcripts accumulate in a buffer until the coordinator drains
// them with ReadInput.
package deepgram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/harunnryd/remy/pkg/logging"
	"github.com/harunnryd/remy/pkg/ports"

	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
)

type Config struct {
	APIKey     string
	Model      string
	Language   string
	SampleRate int
	Encoding   string

	// AudioPath names the PCM stream to transcribe. Empty means stdin.
	AudioPath string
}

type Mic struct {
	cfg      Config
	dgClient *client.WSCallback
	ctx      context.Context
	cancel   context.CancelFunc
	audio    io.ReadCloser

	mu      sync.Mutex
	pending []string
	paused  atomic.Bool

	metaLogged bool
	logger     *slog.Logger
}

func NewMic(cfg Config) *Mic {
	if cfg.Model == "" {
		cfg.Model = "nova-2"
	}
	if cfg.Language == "" {
		cfg.Language = "en-US"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Encoding == "" {
		cfg.Encoding = "linear16"
	}
	return &Mic{
		cfg:    cfg,
		logger: logging.NewComponentLogger(slog.Default(), "deepgram_mic"),
	}
}

func (m *Mic) Name() string { return "deepgram" }

func (m *Mic) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	m.ctx, m.cancel = context.WithCancel(ctx)

	if m.cfg.AudioPath == "" {
		m.audio = os.Stdin
	} else {
		f, err := os.Open(m.cfg.AudioPath)
		if err != nil {
			return fmt.Errorf("open audio stream: %w", err)
		}
		m.audio = f
	}

	clientOptions := &interfaces.ClientOptions{
		EnableKeepAlive: true,
	}
	transcriptOptions := &interfaces.LiveTranscriptionOptions{
		Model:          m.cfg.Model,
		Language:       m.cfg.Language,
		Encoding:       m.cfg.Encoding,
		SampleRate:     m.cfg.SampleRate,
		InterimResults: false,
		SmartFormat:    true,
	}

	m.logger.Info("initializing deepgram connection",
		slog.String("model", m.cfg.Model),
		slog.Int("sample_rate", m.cfg.SampleRate))

	cb := &callback{parent: m}
	dgClient, err := client.NewWSUsingCallback(m.ctx, m.cfg.APIKey, clientOptions, transcriptOptions, cb)
	if err != nil {
		m.logger.Error("deepgram_client_create_error", slog.String("error", err.Error()))
		return err
	}
	m.dgClient = dgClient

	if connected := m.dgClient.Connect(); !connected {
		return fmt.Errorf("deepgram connection failed")
	}
	m.logger.Info("deepgram_connected", slog.String("model", m.cfg.Model))

	go func() {
		if err := m.dgClient.Stream(m.audio); err != nil && m.ctx.Err() == nil {
			m.logger.Error("deepgram_stream_error", slog.String("error", err.Error()))
		}
	}()
	return nil
}

// HasInput reports whether a final transcript is waiting. Always false while
// paused so playback never leaks back in as input.
func (m *Mic) HasInput() bool {
	if m.paused.Load() {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending) > 0
}

// ReadInput drains buffered transcripts into a single utterance.
func (m *Mic) ReadInput() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := strings.Join(m.pending, " ")
	m.pending = m.pending[:0]
	return out
}

func (m *Mic) Pause() {
	m.paused.Store(true)
	m.logger.Debug("mic paused")
}

func (m *Mic) Resume() {
	m.paused.Store(false)
	m.logger.Debug("mic resumed")
}

func (m *Mic) Close() error {
	m.logger.Info("closing deepgram connection")
	if m.cancel != nil {
		m.cancel()
	}
	if m.dgClient != nil {
		m.dgClient.Stop()
	}
	if m.audio != nil && m.audio != os.Stdin {
		_ = m.audio.Close()
	}
	return nil
}

func (m *Mic) push(transcript string) {
	if m.paused.Load() {
		m.logger.Debug("transcript dropped while paused",
			slog.String("transcript", transcript))
		return
	}
	m.mu.Lock()
	m.pending = append(m.pending, transcript)
	m.mu.Unlock()
}

var _ ports.AudioSource = (*Mic)(nil)

// --- Callback Implementation ---

type callback struct {
	parent *Mic
}

func (c *callback) Open(or *msginterfaces.OpenResponse) error {
	c.parent.logger.Info("deepgram_connection_opened")
	return nil
}

func (c *callback) Message(mr *msginterfaces.MessageResponse) error {
	if len(mr.Channel.Alternatives) == 0 {
		return nil
	}
	transcript := mr.Channel.Alternatives[0].Transcript
	if transcript == "" {
		return nil
	}
	if !mr.IsFinal && !mr.SpeechFinal {
		return nil
	}

	c.parent.logger.Debug("transcript_received",
		slog.String("transcript", transcript))
	c.parent.push(transcript)
	return nil
}

func (c *callback) Metadata(md *msginterfaces.MetadataResponse) error {
	if !c.parent.metaLogged {
		c.parent.metaLogged = true
		c.parent.logger.Info("deepgram_metadata_received",
			slog.String("request_id", md.RequestID))
	}
	return nil
}

func (c *callback) SpeechStarted(ssr *msginterfaces.SpeechStartedResponse) error {
	c.parent.logger.Debug("speech_started_event")
	return nil
}

func (c *callback) UtteranceEnd(ur *msginterfaces.UtteranceEndResponse) error {
	c.parent.logger.Debug("utterance_end_event")
	return nil
}

func (c *callback) Close(cr *msginterfaces.CloseResponse) error {
	c.parent.logger.Info("deepgram_connection_closed")
	return nil
}

func (c *callback) Error(er *msginterfaces.ErrorResponse) error {
	c.parent.logger.Error("deepgram_error",
		slog.String("error_code", er.ErrCode),
		slog.String("error_message", er.ErrMsg))
	return nil
}

func (c *callback) UnhandledEvent(byData []byte) error {
	c.parent.logger.Debug("deepgram_unhandled_event",
		slog.String("data", string(byData)))
	return nil
}
