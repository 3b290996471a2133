// Package openai implements the decision oracle over the chat-completions
// API. The model is instructed to answer with a single JSON object carrying
// the utterance, status tag, next state, and optional timer request.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/harunnryd/remy/pkg/errorsx"
	"github.com/harunnryd/remy/pkg/logging"
	"github.com/harunnryd/remy/pkg/oracle"
	"github.com/harunnryd/remy/pkg/resilience"
)

const systemPrompt = `You are a cooking assistant robot controlled by a finite state machine.
Each user message carries the CURRENT STATE definition as JSON: the state name,
its goal, the valid next states, the user's voice input, and whether a camera
image is attached.
Your job is to:
1. Read the user input and image.
2. Generate a helpful spoken response.
3. Classify the turn status: "no_change" for passive monitoring with nothing
   to report (leave speech_output empty in that case), "update" for a progress
   update you initiated, "interaction" for a reply to the user.
4. Pick the next state strictly from the valid next states list.
5. When the current step runs for a specific duration and you can see it has
   just started, request a timer.

Answer with exactly one JSON object:
{
  "speech_output": "text to speak, empty for silent monitoring",
  "status": "no_change" | "update" | "interaction",
  "next_state": "exact name of the next state",
  "timer_name": "optional timer label",
  "timer_duration_s": optional integer seconds
}`

type Config struct {
	APIKey       string
	Model        string
	BaseURL      string
	Timeout      time.Duration
	MaxTokens    int
	Retries      int
	RetryBackoff time.Duration

	UseCircuitBreaker bool
	CircuitThreshold  int
	CircuitCooldown   time.Duration
}

type Adapter struct {
	cfg     Config
	client  *http.Client
	retry   resilience.RetryPolicy
	breaker *resilience.CircuitBreaker
	logger  *slog.Logger
}

func NewAdapter(cfg Config) (*Adapter, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("missing openai api key")
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 300
	}
	a := &Adapter{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		retry:  resilience.NewRetryPolicy(cfg.Retries, cfg.RetryBackoff),
		logger: logging.NewComponentLogger(nil, "openai_oracle"),
	}
	if cfg.UseCircuitBreaker {
		a.breaker = resilience.NewCircuitBreaker(cfg.CircuitThreshold, cfg.CircuitCooldown)
	}
	return a, nil
}

func (a *Adapter) Name() string { return "openai" }

func (a *Adapter) Decide(ctx context.Context, req oracle.Request) (oracle.Decision, error) {
	if a.breaker != nil && !a.breaker.Allow() {
		return oracle.Decision{}, errorsx.Wrap(errors.New("circuit open"), errorsx.ReasonOracleRateLimit)
	}

	var dec oracle.Decision
	err := a.retry.DoCtx(ctx, func() error {
		var callErr error
		dec, callErr = a.call(ctx, req)
		if callErr != nil && a.breaker != nil {
			a.breaker.OnError(callErr)
		}
		return callErr
	})
	if err != nil {
		return oracle.Decision{}, err
	}
	if a.breaker != nil {
		a.breaker.OnSuccess()
	}
	return dec, nil
}

func (a *Adapter) call(ctx context.Context, req oracle.Request) (oracle.Decision, error) {
	messages := make([]map[string]any, 0, len(req.Messages)+1)
	messages = append(messages, map[string]any{"role": "system", "content": systemPrompt})
	messages = append(messages, req.Messages...)

	payload := map[string]any{
		"model":           a.cfg.Model,
		"messages":        messages,
		"response_format": map[string]any{"type": "json_object"},
		"max_tokens":      a.cfg.MaxTokens,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return oracle.Decision{}, errorsx.Wrap(err, errorsx.ReasonOracleCall)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return oracle.Decision{}, errorsx.Wrap(err, errorsx.ReasonOracleCall)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+a.cfg.APIKey)

	resp, err := a.client.Do(httpReq)
	if err != nil {
		return oracle.Decision{}, errorsx.Wrap(err, errorsx.ReasonOracleCall)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		msg, _ := io.ReadAll(resp.Body)
		return oracle.Decision{}, errorsx.Wrap(
			resilience.RateLimitError{Provider: "openai", Message: string(msg)},
			errorsx.ReasonOracleRateLimit)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(resp.Body)
		return oracle.Decision{}, errorsx.Wrap(errors.New(string(msg)), errorsx.ReasonOracleCall)
	}

	var wire struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return oracle.Decision{}, errorsx.Wrap(err, errorsx.ReasonOracleDecode)
	}
	if len(wire.Choices) == 0 {
		return oracle.Decision{}, errorsx.Wrap(errors.New("no choices in response"), errorsx.ReasonOracleDecode)
	}

	dec, err := oracle.ParseDecision([]byte(wire.Choices[0].Message.Content))
	if err != nil {
		a.logger.Warn("undecodable decision",
			slog.String("reason_code", string(errorsx.ReasonOracleDecode)),
			slog.String("error", err.Error()))
		return oracle.Decision{}, errorsx.Wrap(err, errorsx.ReasonOracleDecode)
	}
	return dec, nil
}
