package remy

import (
	"fmt"
	"strings"
	"time"

	"github.com/harunnryd/remy/pkg/configutil"
	"github.com/harunnryd/remy/pkg/notify"
	"github.com/harunnryd/remy/pkg/oracle"
	"github.com/harunnryd/remy/pkg/ports"
	"github.com/harunnryd/remy/pkg/providers/deepgram"
	"github.com/harunnryd/remy/pkg/providers/elevenlabs"
	"github.com/harunnryd/remy/pkg/providers/mock"
	"github.com/harunnryd/remy/pkg/providers/openai"
	"github.com/harunnryd/remy/pkg/providers/snapshot"
)

type OracleFactory func(cfg Config) (oracle.Oracle, error)
type MicFactory func(cfg Config) (ports.AudioSource, error)
type SpeakerFactory func(cfg Config) (ports.AudioSink, error)
type CameraFactory func(cfg Config) (ports.ImageSource, error)
type NotifierFactory func(cfg Config) (notify.Notifier, error)

type ProviderRegistry struct {
	oracles  map[string]OracleFactory
	mics     map[string]MicFactory
	speakers map[string]SpeakerFactory
	cameras  map[string]CameraFactory
	notify   map[string]NotifierFactory
}

func NewProviderRegistry() *ProviderRegistry {
	r := &ProviderRegistry{
		oracles:  make(map[string]OracleFactory),
		mics:     make(map[string]MicFactory),
		speakers: make(map[string]SpeakerFactory),
		cameras:  make(map[string]CameraFactory),
		notify:   make(map[string]NotifierFactory),
	}
	r.registerDefaults()
	return r
}

func (r *ProviderRegistry) RegisterOracle(name string, f OracleFactory) {
	r.oracles[normalize(name)] = f
}

func (r *ProviderRegistry) RegisterMic(name string, f MicFactory) {
	r.mics[normalize(name)] = f
}

func (r *ProviderRegistry) RegisterSpeaker(name string, f SpeakerFactory) {
	r.speakers[normalize(name)] = f
}

func (r *ProviderRegistry) RegisterCamera(name string, f CameraFactory) {
	r.cameras[normalize(name)] = f
}

func (r *ProviderRegistry) RegisterNotifier(name string, f NotifierFactory) {
	r.notify[normalize(name)] = f
}

func (r *ProviderRegistry) BuildOracle(provider string, cfg Config) (oracle.Oracle, error) {
	fn := r.oracles[normalize(provider)]
	if fn == nil {
		return nil, fmt.Errorf("oracle provider not registered: %s", provider)
	}
	return fn(cfg)
}

func (r *ProviderRegistry) BuildMic(provider string, cfg Config) (ports.AudioSource, error) {
	fn := r.mics[normalize(provider)]
	if fn == nil {
		return nil, fmt.Errorf("mic provider not registered: %s", provider)
	}
	return fn(cfg)
}

func (r *ProviderRegistry) BuildSpeaker(provider string, cfg Config) (ports.AudioSink, error) {
	fn := r.speakers[normalize(provider)]
	if fn == nil {
		return nil, fmt.Errorf("speaker provider not registered: %s", provider)
	}
	return fn(cfg)
}

func (r *ProviderRegistry) BuildCamera(provider string, cfg Config) (ports.ImageSource, error) {
	fn := r.cameras[normalize(provider)]
	if fn == nil {
		return nil, fmt.Errorf("camera provider not registered: %s", provider)
	}
	return fn(cfg)
}

func (r *ProviderRegistry) BuildNotifier(provider string, cfg Config) (notify.Notifier, error) {
	fn := r.notify[normalize(provider)]
	if fn == nil {
		return nil, fmt.Errorf("notify provider not registered: %s", provider)
	}
	return fn(cfg)
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (r *ProviderRegistry) registerDefaults() {
	r.RegisterOracle("openai", buildOpenAIOracle)
	r.RegisterOracle("mock", func(cfg Config) (oracle.Oracle, error) {
		return mock.NewOracle(), nil
	})
	r.RegisterMic("deepgram", buildDeepgramMic)
	r.RegisterMic("mock", func(cfg Config) (ports.AudioSource, error) {
		return &mock.Source{}, nil
	})
	r.RegisterSpeaker("elevenlabs", buildElevenLabsSpeaker)
	r.RegisterSpeaker("mock", func(cfg Config) (ports.AudioSink, error) {
		return &mock.Sink{}, nil
	})
	r.RegisterCamera("snapshot", buildSnapshotCamera)
	r.RegisterCamera("mock", func(cfg Config) (ports.ImageSource, error) {
		return &mock.Camera{}, nil
	})
	r.RegisterNotifier("noop", func(cfg Config) (notify.Notifier, error) {
		return notify.Noop{}, nil
	})
	r.RegisterNotifier("twilio", buildTwilioNotifier)
}

func buildOpenAIOracle(cfg Config) (oracle.Oracle, error) {
	settings := cfg.Vendors.Oracle.Settings
	if err := configutil.ValidateSettings(settings, configutil.Schema{
		Required: []string{"api_key"},
		Optional: []string{"model", "base_url", "max_tokens", "retries", "retry_backoff_ms", "circuit_breaker", "circuit_threshold", "circuit_cooldown_ms"},
	}); err != nil {
		return nil, fmt.Errorf("vendors.oracle.settings: %w", err)
	}
	var s struct {
		APIKey            string `mapstructure:"api_key"`
		Model             string `mapstructure:"model"`
		BaseURL           string `mapstructure:"base_url"`
		MaxTokens         int    `mapstructure:"max_tokens"`
		Retries           int    `mapstructure:"retries"`
		RetryBackoffMS    int    `mapstructure:"retry_backoff_ms"`
		CircuitBreaker    bool   `mapstructure:"circuit_breaker"`
		CircuitThreshold  int    `mapstructure:"circuit_threshold"`
		CircuitCooldownMS int    `mapstructure:"circuit_cooldown_ms"`
	}
	if err := configutil.DecodeSettings(settings, &s); err != nil {
		return nil, fmt.Errorf("vendors.oracle.settings: %w", err)
	}
	return openai.NewAdapter(openai.Config{
		APIKey:            s.APIKey,
		Model:             s.Model,
		BaseURL:           s.BaseURL,
		Timeout:           time.Duration(cfg.Coordinator.OracleTimeoutMS) * time.Millisecond,
		MaxTokens:         s.MaxTokens,
		Retries:           s.Retries,
		RetryBackoff:      time.Duration(s.RetryBackoffMS) * time.Millisecond,
		UseCircuitBreaker: s.CircuitBreaker,
		CircuitThreshold:  s.CircuitThreshold,
		CircuitCooldown:   time.Duration(s.CircuitCooldownMS) * time.Millisecond,
	})
}

func buildDeepgramMic(cfg Config) (ports.AudioSource, error) {
	settings := cfg.Vendors.Mic.Settings
	if err := configutil.ValidateSettings(settings, configutil.Schema{
		Required: []string{"api_key"},
		Optional: []string{"model", "language", "sample_rate", "encoding", "audio_path"},
	}); err != nil {
		return nil, fmt.Errorf("vendors.mic.settings: %w", err)
	}
	var s struct {
		APIKey     string `mapstructure:"api_key"`
		Model      string `mapstructure:"model"`
		Language   string `mapstructure:"language"`
		SampleRate int    `mapstructure:"sample_rate"`
		Encoding   string `mapstructure:"encoding"`
		AudioPath  string `mapstructure:"audio_path"`
	}
	if err := configutil.DecodeSettings(settings, &s); err != nil {
		return nil, fmt.Errorf("vendors.mic.settings: %w", err)
	}
	return deepgram.NewMic(deepgram.Config{
		APIKey:     s.APIKey,
		Model:      s.Model,
		Language:   s.Language,
		SampleRate: s.SampleRate,
		Encoding:   s.Encoding,
		AudioPath:  s.AudioPath,
	}), nil
}

func buildElevenLabsSpeaker(cfg Config) (ports.AudioSink, error) {
	settings := cfg.Vendors.Speaker.Settings
	if err := configutil.ValidateSettings(settings, configutil.Schema{
		Required: []string{"api_key", "voice_id"},
		Optional: []string{"model_id", "output_format"},
	}); err != nil {
		return nil, fmt.Errorf("vendors.speaker.settings: %w", err)
	}
	var s struct {
		APIKey       string `mapstructure:"api_key"`
		VoiceID      string `mapstructure:"voice_id"`
		ModelID      string `mapstructure:"model_id"`
		OutputFormat string `mapstructure:"output_format"`
	}
	if err := configutil.DecodeSettings(settings, &s); err != nil {
		return nil, fmt.Errorf("vendors.speaker.settings: %w", err)
	}
	return elevenlabs.NewSpeaker(elevenlabs.Config{
		APIKey:       s.APIKey,
		VoiceID:      s.VoiceID,
		ModelID:      s.ModelID,
		OutputFormat: s.OutputFormat,
	}, nil)
}

func buildSnapshotCamera(cfg Config) (ports.ImageSource, error) {
	settings := cfg.Vendors.Camera.Settings
	if err := configutil.ValidateSettings(settings, configutil.Schema{
		Required: []string{"source"},
		Optional: []string{"timeout_ms"},
	}); err != nil {
		return nil, fmt.Errorf("vendors.camera.settings: %w", err)
	}
	var s struct {
		Source    string `mapstructure:"source"`
		TimeoutMS int    `mapstructure:"timeout_ms"`
	}
	if err := configutil.DecodeSettings(settings, &s); err != nil {
		return nil, fmt.Errorf("vendors.camera.settings: %w", err)
	}
	return snapshot.NewCamera(snapshot.Config{
		Source:  s.Source,
		Timeout: time.Duration(s.TimeoutMS) * time.Millisecond,
	})
}

func buildTwilioNotifier(cfg Config) (notify.Notifier, error) {
	settings := cfg.Notify.Settings
	if err := configutil.ValidateSettings(settings, configutil.Schema{
		Required: []string{"account_sid", "auth_token", "from", "to"},
	}); err != nil {
		return nil, fmt.Errorf("notify.settings: %w", err)
	}
	var s struct {
		AccountSID string `mapstructure:"account_sid"`
		AuthToken  string `mapstructure:"auth_token"`
		From       string `mapstructure:"from"`
		To         string `mapstructure:"to"`
	}
	if err := configutil.DecodeSettings(settings, &s); err != nil {
		return nil, fmt.Errorf("notify.settings: %w", err)
	}
	return notify.NewSMS(s.AccountSID, s.AuthToken, s.From, s.To)
}
