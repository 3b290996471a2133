// Package elevenlabs implements the speaker sink on ElevenLabs' streaming
// text-to-speech websocket. Each utterance opens its own stream-input
// connection and Play blocks until the final audio chunk has been written
// to the playback device.
package elevenlabs

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/harunnryd/remy/pkg/errorsx"
	"github.com/harunnryd/remy/pkg/logging"
	"github.com/harunnryd/remy/pkg/ports"
	"github.com/harunnryd/remy/pkg/resilience"
)

type Config struct {
	APIKey       string
	VoiceID      string
	ModelID      string
	OutputFormat string
}

type Speaker struct {
	cfg      Config
	playback io.Writer
	logger   *slog.Logger
}

// NewSpeaker returns a sink that writes decoded audio to playback. A nil
// playback writer discards the audio, which keeps the turn timing intact
// on machines without an output device.
func NewSpeaker(cfg Config, playback io.Writer) (*Speaker, error) {
	if cfg.APIKey == "" || cfg.VoiceID == "" {
		return nil, errors.New("missing elevenlabs config")
	}
	if cfg.ModelID == "" {
		cfg.ModelID = "eleven_turbo_v2"
	}
	if playback == nil {
		playback = io.Discard
	}
	return &Speaker{
		cfg:      cfg,
		playback: playback,
		logger:   logging.NewComponentLogger(slog.Default(), "elevenlabs_tts"),
	}, nil
}

func (s *Speaker) Name() string { return "elevenlabs" }

// Play synthesizes text and blocks until the last chunk is written out.
func (s *Speaker) Play(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	dialer := websocket.Dialer{Proxy: http.ProxyFromEnvironment}
	conn, resp, err := dialer.Dial(s.buildURL(), http.Header{
		"xi-api-key": []string{s.cfg.APIKey},
	})
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
			s.logger.Error("elevenlabs rate limit exceeded",
				slog.String("status", resp.Status))
			return errorsx.Wrap(
				resilience.RateLimitError{Provider: "elevenlabs", Message: resp.Status},
				errorsx.ReasonSpeakerConnect)
		}
		return errorsx.Wrap(err, errorsx.ReasonSpeakerConnect)
	}
	defer conn.Close()

	s.logger.Debug("elevenlabs stream opened",
		slog.Int("text_len", len(text)),
		slog.String("output_format", s.cfg.OutputFormat))

	if err := s.send(conn, map[string]any{
		"text": " ",
		"voice_settings": map[string]any{
			"stability":        0.5,
			"similarity_boost": 0.8,
		},
	}); err != nil {
		return errorsx.Wrap(err, errorsx.ReasonSpeakerPlay)
	}
	if !strings.HasSuffix(text, " ") {
		text += " "
	}
	if err := s.send(conn, map[string]any{"text": text, "try_trigger_generation": true}); err != nil {
		return errorsx.Wrap(err, errorsx.ReasonSpeakerPlay)
	}
	// Empty text ends the input stream; the server answers with isFinal.
	if err := s.send(conn, map[string]any{"text": ""}); err != nil {
		return errorsx.Wrap(err, errorsx.ReasonSpeakerPlay)
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return errorsx.Wrap(err, errorsx.ReasonSpeakerPlay)
		}
		final, err := s.handleMessage(data)
		if err != nil {
			return err
		}
		if final {
			return nil
		}
	}
}

func (s *Speaker) buildURL() string {
	base := "wss://api.elevenlabs.io/v1/text-to-speech/" + s.cfg.VoiceID + "/stream-input"
	q := url.Values{}
	q.Set("model_id", s.cfg.ModelID)
	if s.cfg.OutputFormat != "" {
		q.Set("output_format", s.cfg.OutputFormat)
	}
	return base + "?" + q.Encode()
}

func (s *Speaker) handleMessage(data []byte) (bool, error) {
	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil {
		s.logger.Warn("tts websocket raw data", "data", string(data))
		return false, nil
	}

	final, _ := msg["isFinal"].(bool)

	audio, ok := msg["audio"].(string)
	if !ok {
		if a, ok := msg["audio_base_64"].(string); ok {
			audio = a
		} else if a, ok := msg["audio_base64"].(string); ok {
			audio = a
		} else {
			if _, isAlign := msg["alignment"]; !isAlign && !final {
				s.logger.Debug("tts websocket message", "payload", msg)
			}
			return final, nil
		}
	}

	raw, err := base64.StdEncoding.DecodeString(audio)
	if err != nil {
		return final, errorsx.Wrap(err, errorsx.ReasonSpeakerPlay)
	}
	s.logger.Debug("tts audio chunk received", slog.Int("size_bytes", len(raw)))

	if _, err := s.playback.Write(raw); err != nil {
		return final, errorsx.Wrap(err, errorsx.ReasonSpeakerPlay)
	}
	return final, nil
}

func (s *Speaker) send(conn *websocket.Conn, payload map[string]any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, b)
}

var _ ports.AudioSink = (*Speaker)(nil)
