package resilience

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// ErrOpenCircuit is returned when the breaker refuses a partner call.
var ErrOpenCircuit = errors.New("resilience: circuit breaker open")

// State is the breaker position.
type State int

const (
	// Closed lets every call through and records outcomes.
	Closed State = iota
	// Open refuses calls until the cool-off elapses.
	Open
	// HalfOpen lets one probe through to decide between Closed and Open.
	HalfOpen
)

var stateNames = [...]string{Closed: "closed", Open: "open", HalfOpen: "half_open"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Breaker trips when the failure ratio over the most recent outcomes reaches
// the threshold. Outcomes live in a ring of 2*minRequests slots so old
// successes age out instead of masking a fresh outage.
type Breaker struct {
	mu sync.Mutex

	state    State
	window   []bool // true = failure
	next     int
	filled   int
	failures int
	probing  bool
	openedAt time.Time

	minRequests  int
	failureRatio float64
	openFor      time.Duration
	partner      string
	logger       zerolog.Logger
	now          func() time.Time
}

// NewBreaker builds a closed breaker. minRequests outcomes must be observed
// before it can open.
func NewBreaker(minRequests int, failureRatio float64, openFor time.Duration) *Breaker {
	minRequests = max(minRequests, 1)
	if failureRatio <= 0 || failureRatio > 1 {
		failureRatio = 0.5
	}
	if openFor <= 0 {
		openFor = 30 * time.Second
	}
	return &Breaker{
		window:       make([]bool, 2*minRequests),
		minRequests:  minRequests,
		failureRatio: failureRatio,
		openFor:      openFor,
		partner:      "default",
		logger:       zerolog.Nop(),
		now:          time.Now,
	}
}

// WithTarget names the partner in metrics and logs.
func (b *Breaker) WithTarget(partner string) *Breaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	if p := strings.TrimSpace(partner); p != "" {
		b.partner = p
	}
	setStateGauge(b.partner, b.state)
	return b
}

// WithLogger sets the logger for transition events when the request context
// carries none.
func (b *Breaker) WithLogger(logger zerolog.Logger) *Breaker {
	b.mu.Lock()
	b.logger = logger
	b.mu.Unlock()
	return b
}

// WithClock replaces time.Now, for tests.
func (b *Breaker) WithClock(now func() time.Time) *Breaker {
	b.mu.Lock()
	if now != nil {
		b.now = now
	}
	b.mu.Unlock()
	return b
}

// State returns the current position.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Allow reports whether a call may go out. Once the cool-off has elapsed an
// open breaker admits exactly one probe; further calls are refused until the
// probe is reported.
func (b *Breaker) Allow(ctx context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case Closed:
		return true
	case Open:
		if b.now().Sub(b.openedAt) < b.openFor {
			return false
		}
		b.moveLocked(ctx, HalfOpen)
		b.probing = true
		return true
	default:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	}
}

// Report records the outcome of an allowed call.
func (b *Breaker) Report(ctx context.Context, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case Open:
		return
	case HalfOpen:
		b.probing = false
		if success {
			b.moveLocked(ctx, Closed)
		} else {
			b.moveLocked(ctx, Open)
		}
		return
	}

	if b.filled == len(b.window) {
		if b.window[b.next] {
			b.failures--
		}
	} else {
		b.filled++
	}
	b.window[b.next] = !success
	if !success {
		b.failures++
	}
	b.next = (b.next + 1) % len(b.window)

	if b.filled >= b.minRequests && float64(b.failures)/float64(b.filled) >= b.failureRatio {
		b.moveLocked(ctx, Open)
	}
}

func (b *Breaker) moveLocked(ctx context.Context, to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	switch to {
	case Open:
		b.openedAt = b.now()
	case Closed:
		b.openedAt = time.Time{}
		clear(b.window)
		b.next, b.filled, b.failures = 0, 0, 0
	}
	setStateGauge(b.partner, to)
	countTransition(b.partner, from, to)

	log := &b.logger
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		log = l
	}
	evt := log.Info().Str("partner", b.partner).Stringer("from", from).Stringer("to", to)
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		evt = evt.Str("trace_id", sc.TraceID().String())
	}
	evt.Msg("breaker_transition")
}
