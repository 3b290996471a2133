package turn

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/harunnryd/remy/pkg/duplex"
	"github.com/harunnryd/remy/pkg/errorsx"
	"github.com/harunnryd/remy/pkg/ledger"
	"github.com/harunnryd/remy/pkg/logging"
	"github.com/harunnryd/remy/pkg/metrics"
	"github.com/harunnryd/remy/pkg/notify"
	"github.com/harunnryd/remy/pkg/oracle"
	"github.com/harunnryd/remy/pkg/ports"
	"github.com/harunnryd/remy/pkg/redact"
	"github.com/harunnryd/remy/pkg/timers"
)

// CoordinatorConfig tunes the scheduling policy. Zero values fall back to
// the defaults below.
type CoordinatorConfig struct {
	InitialState    string
	MonitoringState string

	// ListenTimeout bounds the single listen of a proactive (monitoring)
	// cycle; ReactivePoll bounds one reactive listen round.
	ListenTimeout time.Duration
	ReactivePoll  time.Duration

	// IdleDelay caps the oracle call rate after a silent no-change
	// monitoring cycle. No delay follows transitions or spoken responses.
	IdleDelay time.Duration

	Greeting string
}

const (
	defaultListenTimeout = 3 * time.Second
	defaultReactivePoll  = 2 * time.Second
	defaultIdleDelay     = 5 * time.Second
)

// Coordinator owns the orchestration loop: it is the only writer of the
// current-state pointer and the ledger. The duplex arbiter and timer
// registry carry their own synchronization.
type Coordinator struct {
	table    *Table
	cfg      CoordinatorConfig
	ledger   *ledger.Ledger
	timers   *timers.Registry
	audio    *duplex.Arbiter
	camera   ports.ImageSource
	oracle   oracle.Oracle
	notifier notify.Notifier
	obs      metrics.Observer
	logger   *slog.Logger

	current string
}

type CoordinatorDeps struct {
	Table    *Table
	Ledger   *ledger.Ledger
	Timers   *timers.Registry
	Audio    *duplex.Arbiter
	Camera   ports.ImageSource
	Oracle   oracle.Oracle
	Notifier notify.Notifier
	Observer metrics.Observer
	Logger   *slog.Logger
}

func NewCoordinator(cfg CoordinatorConfig, deps CoordinatorDeps) (*Coordinator, error) {
	if deps.Table == nil {
		return nil, fmt.Errorf("state table is required")
	}
	if deps.Oracle == nil {
		return nil, fmt.Errorf("oracle is required")
	}
	if _, err := deps.Table.Get(cfg.InitialState); err != nil {
		return nil, err
	}
	if cfg.MonitoringState != "" {
		if _, err := deps.Table.Get(cfg.MonitoringState); err != nil {
			return nil, err
		}
	}
	if cfg.ListenTimeout <= 0 {
		cfg.ListenTimeout = defaultListenTimeout
	}
	if cfg.ReactivePoll <= 0 {
		cfg.ReactivePoll = defaultReactivePoll
	}
	if cfg.IdleDelay <= 0 {
		cfg.IdleDelay = defaultIdleDelay
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.Noop{}
	}
	if deps.Observer == nil {
		deps.Observer = metrics.NoopObserver{}
	}
	return &Coordinator{
		table:    deps.Table,
		cfg:      cfg,
		ledger:   deps.Ledger,
		timers:   deps.Timers,
		audio:    deps.Audio,
		camera:   deps.Camera,
		oracle:   deps.Oracle,
		notifier: deps.Notifier,
		obs:      deps.Observer,
		logger:   logging.NewComponentLogger(deps.Logger, "coordinator"),
		current:  cfg.InitialState,
	}, nil
}

// State returns the current FSM state name.
func (c *Coordinator) State() string { return c.current }

// Run drives cycles until the terminal state is reached or the context is
// canceled. Per-cycle oracle failures are logged and retried on the next
// cycle; only unknown-state lookups and cancellation end the loop.
func (c *Coordinator) Run(ctx context.Context) error {
	if c.cfg.Greeting != "" {
		c.audio.Speak(c.cfg.Greeting)
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		done, err := c.Cycle(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}

// Cycle performs at most one oracle turn. It returns done=true once the FSM
// has entered the terminal state and the closing utterance has drained.
func (c *Coordinator) Cycle(ctx context.Context) (bool, error) {
	def, err := c.table.Get(c.current)
	if err != nil {
		// Unreachable with a validated table.
		return false, err
	}
	monitoring := c.cfg.MonitoringState != "" && c.current == c.cfg.MonitoringState

	expired := c.timers.PollExpired()
	var voice string
	if monitoring {
		voice = c.audio.Listen(ctx, c.cfg.ListenTimeout)
	} else {
		voice = c.audio.Listen(ctx, c.cfg.ReactivePoll)
		if voice == "" && len(expired) == 0 {
			// Re-check timers armed while we were listening.
			expired = c.timers.PollExpired()
		}
	}

	var timerNote string
	if len(expired) > 0 {
		c.obs.RecordEvent(metrics.NewEvent(metrics.EventTimerExpired, float64(len(expired)), map[string]string{"state": c.current}))
		timerNote = fmt.Sprintf("[System Notification: timer expired: %s]", strings.Join(expired, ", "))
		c.logger.Info("timer expired", slog.String("timers", strings.Join(expired, ", ")))
		if err := c.notifier.TimerExpired(expired); err != nil {
			c.logger.Warn("timer notification failed",
				slog.String("reason_code", string(errorsx.Reason(err))),
				slog.String("error", err.Error()))
		}
	}

	// Image capture: proactive cycles capture unconditionally unless a timer
	// pre-empted them; reactive cycles capture only when the state wants an
	// image and voice arrived without a timer.
	var image []byte
	wantImage := monitoring || (def.RequiresImage && voice != "")
	if wantImage && len(expired) == 0 && c.camera != nil {
		image, err = c.camera.Capture()
		if err != nil {
			err = errorsx.Wrap(err, errorsx.ReasonCameraCapture)
			c.logger.Warn("image capture failed",
				slog.String("reason_code", string(errorsx.Reason(err))),
				slog.String("error", err.Error()))
			image = nil
		}
	}

	if voice == "" && image == nil && timerNote == "" {
		// Nothing to report. At the initial state this is startup quiescence;
		// elsewhere the loop keeps waiting across cycles.
		return false, nil
	}

	userText := joinNonEmpty(timerNote, voice)
	ctxJSON, err := json.Marshal(map[string]any{
		"current_state":     def.Name,
		"state_goal":        def.Goal,
		"valid_next_states": def.AllowedNext,
		"user_voice_input":  userText,
		"image_provided":    image != nil,
	})
	if err != nil {
		return false, fmt.Errorf("encode turn context: %w", err)
	}

	if voice != "" {
		c.logger.Info("user input", slog.String("text", redact.Text(voice)), slog.String("state", c.current))
	}

	payload := ledger.UserPayload{
		Text:       string(ctxJSON),
		Image:      image,
		ImageMime:  "image/jpeg",
		Monitoring: monitoring,
	}
	c.ledger.AppendUser(payload)
	if pruned := c.ledger.PruneStaleAttachments(); pruned > 0 {
		c.obs.RecordEvent(metrics.NewEvent(metrics.EventLedgerPrune, float64(pruned), map[string]string{"state": c.current}))
	}

	started := time.Now()
	dec, err := c.oracle.Decide(ctx, oracle.Request{Messages: c.ledger.Messages()})
	c.obs.RecordEvent(metrics.NewEvent(metrics.EventOracleLatency, float64(time.Since(started).Milliseconds()), map[string]string{"state": c.current}))
	if err != nil {
		// Abandon the cycle: roll the uncommitted user turn back out and
		// retry next cycle with state untouched.
		c.ledger.DropLast()
		c.obs.RecordEvent(metrics.NewEvent(metrics.EventOracleError, 1, map[string]string{"state": c.current}))
		c.logger.Error("oracle call failed, cycle abandoned",
			slog.String("reason_code", string(errorsx.Reason(err))),
			slog.String("state", c.current),
			slog.String("error", err.Error()))
		return false, nil
	}

	merged := c.ledger.AppendAssistant(dec)
	if merged {
		c.obs.RecordEvent(metrics.NewEvent(metrics.EventLedgerMerge, 1, map[string]string{"state": c.current}))
	}

	c.applyTimerRequest(dec)

	spoke := strings.TrimSpace(dec.Speech) != ""
	if spoke {
		c.audio.Speak(dec.Speech)
	} else if dec.Status == oracle.StatusNoChange {
		c.logger.Info("monitoring heartbeat", slog.String("state", c.current))
	}

	done := c.applyTransition(def, dec)
	c.obs.RecordEvent(metrics.NewEvent(metrics.EventCycle, 1, map[string]string{"state": c.current, "status": dec.Status.String()}))
	if done {
		c.audio.WaitIdle(ctx)
		c.releaseCamera()
		c.logger.Info("session finished", slog.String("state", c.current))
		return true, nil
	}

	if monitoring && dec.Status == oracle.StatusNoChange && !spoke {
		sleepCtx(ctx, c.cfg.IdleDelay)
	}
	return false, nil
}

func (c *Coordinator) applyTimerRequest(dec oracle.Decision) {
	if dec.TimerName == "" || dec.TimerSeconds <= 0 {
		return
	}
	duration := time.Duration(dec.TimerSeconds) * time.Second
	c.timers.Arm(dec.TimerName, duration)
	now := time.Now().Format("15:04:05")
	c.ledger.AppendNotice(fmt.Sprintf("[System Notification: timer %q armed for %ds at %s]", dec.TimerName, dec.TimerSeconds, now))
	c.logger.Info("timer armed",
		slog.String("timer", dec.TimerName),
		slog.Int("seconds", dec.TimerSeconds))
}

// applyTransition moves the FSM when the decision names a member of the
// current state's successor set; anything else is a protocol violation that
// is warned about and ignored. Returns true when the new state is terminal.
func (c *Coordinator) applyTransition(def *StateDefinition, dec oracle.Decision) bool {
	next := dec.NextState
	if next == c.current && !def.Allows(next) {
		// Staying put is always legal even when the state does not list
		// itself as a successor.
		return false
	}
	if !def.Allows(next) {
		c.obs.RecordEvent(metrics.NewEvent(metrics.EventTransition, 0, map[string]string{"from": c.current, "to": next, "valid": "false"}))
		c.logger.Warn("decision names invalid transition, staying",
			slog.String("reason_code", string(errorsx.ReasonInvalidTransition)),
			slog.String("from", c.current),
			slog.String("to", next))
		return false
	}
	if next != c.current {
		c.logger.Info("state transition", slog.String("from", c.current), slog.String("to", next))
		c.obs.RecordEvent(metrics.NewEvent(metrics.EventTransition, 1, map[string]string{"from": c.current, "to": next, "valid": "true"}))
		c.current = next
	}
	return c.table.IsTerminal(c.current)
}

func (c *Coordinator) releaseCamera() {
	if c.camera == nil {
		return
	}
	if err := c.camera.Close(); err != nil {
		c.logger.Warn("image source release failed", slog.String("error", err.Error()))
	}
}

func joinNonEmpty(parts ...string) string {
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}

func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
