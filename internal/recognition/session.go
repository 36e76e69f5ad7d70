// Package recognition implements the access decision pipeline: per-frame
// classifications are folded into a confirmation counter until the session
// grants access, times out, or is aborted by the operator.
package recognition

import (
	"fmt"
	"time"

	"github.com/andresmejia3/gatekeeper/internal/types"
)

// State is the lifecycle state of a recognition session.
type State int

const (
	Running State = iota
	Granted
	TimedOut
	Aborted
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Granted:
		return "granted"
	case TimedOut:
		return "timed_out"
	case Aborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transitions can leave s.
func (s State) Terminal() bool {
	return s != Running
}

const (
	DefaultThreshold       = 60.0
	DefaultRequiredMatches = 5
	DefaultTimeout         = 30 * time.Second
)

// Config holds the decision policy of a session.
type Config struct {
	// Threshold is the distance a classification must stay strictly below to count.
	Threshold       float64
	RequiredMatches int
	Timeout         time.Duration
}

// DefaultConfig returns the stock policy: 5 matches under 60.0 within 30s.
func DefaultConfig() Config {
	return Config{
		Threshold:       DefaultThreshold,
		RequiredMatches: DefaultRequiredMatches,
		Timeout:         DefaultTimeout,
	}
}

// Resolver maps a predicted identity id to an enrolled identity.
type Resolver interface {
	Resolve(id int) (types.Identity, bool)
}

// Observation pairs a detected face with its classification.
type Observation struct {
	Region types.Region
	Result types.Classification
}

// Verdict is how a single observation was judged, for rendering and logs.
type Verdict struct {
	Region            types.Region
	Name              string
	Match             bool
	ConfidencePercent int
}

// Label renders the verdict the way it is drawn over the face.
func (v Verdict) Label() string {
	return fmt.Sprintf("%s (%d%%)", v.Name, v.ConfidencePercent)
}

// Decision is the terminal outcome of a session.
type Decision struct {
	State             State
	Name              string
	Confirmations     int
	ConfidencePercent int
	// HasConfidence is false when access was granted without any match (RequiredMatches == 0).
	HasConfidence bool
	Elapsed       time.Duration
}

func (d Decision) String() string {
	switch d.State {
	case Granted:
		if d.HasConfidence {
			return fmt.Sprintf("access granted to %s with %d confirmations (%d%%)", d.Name, d.Confirmations, d.ConfidencePercent)
		}
		return fmt.Sprintf("access granted to %s with %d confirmations", d.Name, d.Confirmations)
	case TimedOut:
		return fmt.Sprintf("timed out after %s with %d confirmations", d.Elapsed.Round(time.Millisecond), d.Confirmations)
	case Aborted:
		return fmt.Sprintf("aborted with %d confirmations", d.Confirmations)
	default:
		return d.State.String()
	}
}

// mark remembers the label and confidence of one matching region.
type mark struct {
	name       string
	confidence int
}

// Session is the confirmation state machine. It is owned by a single
// loop and is not safe for concurrent use.
type Session struct {
	cfg       Config
	names     Resolver
	startedAt time.Time

	state     State
	confirmed int
	last      *mark // most recent match
	crossing  *mark // match that first reached RequiredMatches
	decision  Decision
}

// NewSession starts a session in the Running state.
func NewSession(cfg Config, names Resolver, startedAt time.Time) *Session {
	return &Session{
		cfg:       cfg,
		names:     names,
		startedAt: startedAt,
		state:     Running,
	}
}

func (s *Session) State() State { return s.state }
func (s *Session) Confirmed() int { return s.confirmed }

// Last returns the label and confidence of the most recent match, if any.
func (s *Session) Last() (string, int, bool) {
	if s.last == nil {
		return "", 0, false
	}
	return s.last.name, s.last.confidence, true
}

// Decision returns the terminal decision once the session has left Running.
func (s *Session) Decision() (Decision, bool) {
	if !s.state.Terminal() {
		return Decision{}, false
	}
	return s.decision, true
}

// Fold judges every observation of one frame in order and updates the
// confirmation counter. Every matching observation counts, including
// duplicate boxes around the same face. Once terminal, Fold is a no-op.
func (s *Session) Fold(frame []Observation) []Verdict {
	if s.state.Terminal() {
		return nil
	}

	verdicts := make([]Verdict, 0, len(frame))
	for _, obs := range frame {
		v := s.judge(obs)
		if v.Match {
			s.confirmed++
			m := &mark{name: v.Name, confidence: v.ConfidencePercent}
			s.last = m
			if s.crossing == nil && s.confirmed >= s.cfg.RequiredMatches {
				s.crossing = m
			}
		}
		verdicts = append(verdicts, v)
	}
	return verdicts
}

func (s *Session) judge(obs Observation) Verdict {
	v := Verdict{
		Region:            obs.Region,
		Name:              types.UnknownName,
		ConfidencePercent: obs.Result.ConfidencePercent(),
	}
	if obs.Result.Distance >= s.cfg.Threshold {
		return v
	}
	// An id missing from the store is never a match.
	if s.names == nil {
		return v
	}
	id, ok := s.names.Resolve(obs.Result.IdentityID)
	if !ok {
		return v
	}
	v.Name = id.Name
	v.Match = true
	return v
}

// Settle checks the terminal conditions after a frame has been folded.
// Success wins over an abort, and an abort wins over the deadline.
func (s *Session) Settle(aborted bool, now time.Time) (Decision, bool) {
	if s.state.Terminal() {
		return s.decision, true
	}

	elapsed := now.Sub(s.startedAt)
	switch {
	case s.confirmed >= s.cfg.RequiredMatches:
		d := Decision{State: Granted, Name: types.UnknownName, Confirmations: s.confirmed, Elapsed: elapsed}
		if s.crossing != nil {
			d.Name = s.crossing.name
			d.ConfidencePercent = s.crossing.confidence
			d.HasConfidence = true
		}
		s.finish(d)
	case aborted:
		s.finish(Decision{State: Aborted, Confirmations: s.confirmed, Elapsed: elapsed})
	case elapsed > s.cfg.Timeout:
		s.finish(Decision{State: TimedOut, Confirmations: s.confirmed, Elapsed: elapsed})
	default:
		return Decision{}, false
	}
	return s.decision, true
}

// Observe folds one frame and settles it in a single step.
func (s *Session) Observe(frame []Observation, aborted bool, now time.Time) ([]Verdict, Decision, bool) {
	verdicts := s.Fold(frame)
	d, done := s.Settle(aborted, now)
	return verdicts, d, done
}

func (s *Session) finish(d Decision) {
	s.state = d.State
	s.decision = d
}
