// Package liveness implements the challenge-response check that separates a
// live subject from a static photo. The heuristics work on bounding-box
// geometry only: eyelid closure perturbs the detector's box height, head
// turns shift its horizontal position. This is a deterrent, not a hard
// anti-spoofing guarantee.
package liveness

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// Challenge is the interactive prompt the subject must perform.
type Challenge string

const (
	ChallengeBlink     Challenge = "blink"
	ChallengeTurnLeft  Challenge = "turn_left"
	ChallengeTurnRight Challenge = "turn_right"
)

// Challenges returns all supported challenge types.
func Challenges() []Challenge {
	return []Challenge{ChallengeBlink, ChallengeTurnLeft, ChallengeTurnRight}
}

// PickChallenge draws one challenge uniformly at random. A non-empty exclude
// removes that challenge from the draw, so a retry never repeats the
// challenge that just failed.
func PickChallenge(exclude Challenge) Challenge {
	pool := make([]Challenge, 0, 3)
	for _, c := range Challenges() {
		if c != exclude {
			pool = append(pool, c)
		}
	}
	return pool[rand.IntN(len(pool))]
}

// State is the session's position in the challenge lifecycle.
type State string

const (
	StateAwaitingChallenge State = "awaiting_challenge"
	StateSampling          State = "sampling"
	StatePassed            State = "passed"
	StateFailed            State = "failed"
)

// Sample is one face bounding-box observation from a single detection tick.
// Samples are ephemeral; they live only in the session's ring buffer.
type Sample struct {
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Width     float64   `json:"width"`
	Height    float64   `json:"height"`
	Timestamp time.Time `json:"timestamp"`
}

// Config holds the tunable detection thresholds. Camera quality varies wildly
// by device, so none of these are hardcoded in the evaluation logic.
type Config struct {
	// BlinkVarianceThreshold scales the mean box height into the minimum
	// height variance that registers as a blink.
	BlinkVarianceThreshold float64 `yaml:"blink_variance_threshold"`
	// MovementThreshold scales the current box width into the minimum
	// horizontal deviation that registers as a head turn.
	MovementThreshold float64 `yaml:"movement_threshold"`
	// MaxTicks bounds how many detection ticks one challenge may consume.
	MaxTicks int `yaml:"max_ticks"`
	// HistorySize bounds the sample ring buffer.
	HistorySize int `yaml:"history_size"`
	// BlinkWindow is how many recent heights the blink variance uses.
	BlinkWindow int `yaml:"blink_window"`
}

// DefaultConfig returns the stock thresholds. The blink and movement values
// are empirical defaults, not calibrated constants; deployments tune them.
func DefaultConfig() Config {
	return Config{
		BlinkVarianceThreshold: 0.02,
		MovementThreshold:      0.15,
		MaxTicks:               60,
		HistorySize:            10,
		BlinkWindow:            5,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.BlinkVarianceThreshold <= 0 {
		c.BlinkVarianceThreshold = d.BlinkVarianceThreshold
	}
	if c.MovementThreshold <= 0 {
		c.MovementThreshold = d.MovementThreshold
	}
	if c.MaxTicks <= 0 {
		c.MaxTicks = d.MaxTicks
	}
	if c.HistorySize <= 0 {
		c.HistorySize = d.HistorySize
	}
	if c.BlinkWindow <= 1 {
		c.BlinkWindow = d.BlinkWindow
	}
	return c
}

// Session evaluates one liveness challenge for one verification attempt. All
// state lives on the struct: a fresh session starts with an empty history and
// nothing ever leaks between attempts. Sessions are not safe for concurrent
// use; each attempt owns exactly one.
type Session struct {
	cfg       Config
	challenge Challenge
	state     State
	history   []Sample
	ticks     int
	reason    string
}

// NewSession creates a session with a randomly chosen challenge. Pass the
// previously failed challenge as exclude to force a different one on retry;
// the zero value excludes nothing.
func NewSession(cfg Config, exclude Challenge) *Session {
	cfg = cfg.withDefaults()
	return &Session{
		cfg:       cfg,
		challenge: PickChallenge(exclude),
		state:     StateAwaitingChallenge,
		history:   make([]Sample, 0, cfg.HistorySize),
	}
}

// Challenge returns the challenge the subject must perform.
func (s *Session) Challenge() Challenge { return s.challenge }

// State returns the current lifecycle state.
func (s *Session) State() State { return s.state }

// HistoryLen returns the number of buffered samples.
func (s *Session) HistoryLen() int { return len(s.history) }

// Progress is a snapshot of the session after an observation.
type Progress struct {
	State          State     `json:"state"`
	Challenge      Challenge `json:"challenge"`
	TicksUsed      int       `json:"ticks_used"`
	TicksRemaining int       `json:"ticks_remaining"`
	Reason         string    `json:"reason,omitempty"`
}

func (s *Session) progress() Progress {
	remaining := s.cfg.MaxTicks - s.ticks
	if remaining < 0 {
		remaining = 0
	}
	return Progress{
		State:          s.state,
		Challenge:      s.challenge,
		TicksUsed:      s.ticks,
		TicksRemaining: remaining,
		Reason:         s.reason,
	}
}

// Observe consumes one detection tick. A nil sample means the detector found
// no face this tick; that does not fail the challenge, it just burns one of
// the bounded attempts. The first observation moves the session from
// AwaitingChallenge to Sampling.
func (s *Session) Observe(sample *Sample) Progress {
	if s.state == StateAwaitingChallenge {
		s.state = StateSampling
	}
	if s.state != StateSampling {
		return s.progress()
	}

	s.ticks++
	if sample != nil {
		if s.evaluate(*sample) {
			s.push(*sample)
			s.state = StatePassed
			return s.progress()
		}
		s.push(*sample)
	}

	if s.ticks >= s.cfg.MaxTicks {
		s.state = StateFailed
		s.reason = fmt.Sprintf("%s not detected within %d samples", s.challenge, s.cfg.MaxTicks)
	}
	return s.progress()
}

// evaluate decides whether the current sample completes the challenge, given
// the buffered history.
func (s *Session) evaluate(cur Sample) bool {
	switch s.challenge {
	case ChallengeBlink:
		return s.blinkDetected(cur)
	case ChallengeTurnLeft:
		return s.turnDetected(cur, -1)
	case ChallengeTurnRight:
		return s.turnDetected(cur, +1)
	}
	return false
}

// blinkDetected checks the sample variance of the last BlinkWindow box
// heights (including the current sample) against the mean height scaled by
// the blink threshold. Eyelid closure nudges the detector's box height; a
// variance spike over a stable baseline is the blink signal.
func (s *Session) blinkDetected(cur Sample) bool {
	window := s.cfg.BlinkWindow
	if len(s.history) < window-1 {
		return false
	}

	heights := make([]float64, 0, window)
	for _, prev := range s.history[len(s.history)-(window-1):] {
		heights = append(heights, prev.Height)
	}
	heights = append(heights, cur.Height)

	var sum float64
	for _, h := range heights {
		sum += h
	}
	mean := sum / float64(len(heights))

	var sq float64
	for _, h := range heights {
		d := h - mean
		sq += d * d
	}
	variance := sq / float64(len(heights)-1)

	return variance > mean*s.cfg.BlinkVarianceThreshold
}

// turnDetected checks whether the current box center has moved horizontally
// past the mean of the buffered positions, in the challenge direction, by
// more than the movement threshold scaled by the current box width.
func (s *Session) turnDetected(cur Sample, direction float64) bool {
	if len(s.history) == 0 {
		return false
	}

	var sum float64
	for _, prev := range s.history {
		sum += prev.X
	}
	mean := sum / float64(len(s.history))

	deviation := cur.X - mean
	return deviation*direction > cur.Width*s.cfg.MovementThreshold
}

// push appends a sample, discarding the oldest once the buffer is full.
func (s *Session) push(sample Sample) {
	s.history = append(s.history, sample)
	if len(s.history) > s.cfg.HistorySize {
		s.history = s.history[1:]
	}
}
