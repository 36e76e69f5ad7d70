package recognition

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/andresmejia3/gatekeeper/internal/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrFrameAcquisition is returned when the frame source cannot deliver a
// frame. The session ends without a decision and is not retried.
var ErrFrameAcquisition = errors.New("frame acquisition failed")

// FrameSource produces frames on demand. Next blocks until the device
// delivers a frame or fails. Frames implementing io.Closer are closed by
// the runner once processed.
type FrameSource[F any] interface {
	Next(ctx context.Context) (F, error)
}

// Detector finds face regions in a frame. Results may overlap or repeat.
type Detector[F any] interface {
	Detect(frame F) ([]types.Region, error)
}

// Classifier predicts the identity of the face inside region.
type Classifier[F any] interface {
	Classify(frame F, region types.Region) (types.Classification, error)
}

// Overlay draws the per-face verdicts of a frame for the operator.
type Overlay[F any] interface {
	Render(frame F, verdicts []Verdict)
}

// AbortSignal is polled once per frame. It reports whether the operator
// asked to stop since the previous poll.
type AbortSignal interface {
	Aborted() bool
}

// EventLog records granted sessions.
type EventLog interface {
	Append(at time.Time, name string, confidencePercent int) error
}

// Notifier signals a terminal decision to the operator (beep, LED, ...).
type Notifier interface {
	Notify(d Decision)
}

// Runner drives one recognition session over its capabilities.
// Overlay, Abort, Events, Notifier, Logger and Now are optional.
type Runner[F any] struct {
	Config     Config
	Source     FrameSource[F]
	Detector   Detector[F]
	Classifier Classifier[F]
	Names      Resolver

	Overlay  Overlay[F]
	Abort    AbortSignal
	Events   EventLog
	Notifier Notifier
	Logger   *zap.Logger
	Now      func() time.Time
}

// Run loops over frames until the session reaches a decision. A frame
// acquisition failure or a detector/classifier fault ends the session with
// an error and no decision. Cancelling ctx is observed like an operator
// abort, at the next decision point.
func (r *Runner[F]) Run(ctx context.Context) (Decision, error) {
	if r.Source == nil || r.Detector == nil || r.Classifier == nil {
		return Decision{}, errors.New("runner requires a frame source, detector and classifier")
	}

	now := r.Now
	if now == nil {
		now = time.Now
	}
	log := r.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("session_id", uuid.NewString()))

	session := NewSession(r.Config, r.Names, now())
	log.Info("recognition session started",
		zap.Float64("threshold", r.Config.Threshold),
		zap.Int("required_matches", r.Config.RequiredMatches),
		zap.Duration("timeout", r.Config.Timeout),
	)

	frames := 0
	for {
		frame, err := r.Source.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				// The stop request interrupted the read; settle it as an abort.
				d, _ := session.Settle(true, now())
				return r.finish(log, d, frames, now())
			}
			log.Error("frame acquisition failed", zap.Int("frames", frames), zap.Error(err))
			return Decision{}, fmt.Errorf("%w: %w", ErrFrameAcquisition, err)
		}
		frames++

		verdicts, err := r.process(session, frame)
		if err != nil {
			return Decision{}, err
		}
		log.Debug("frame processed",
			zap.Int("frame", frames),
			zap.Int("faces", len(verdicts)),
			zap.Int("confirmed", session.Confirmed()),
		)

		if d, done := session.Settle(r.aborted(ctx), now()); done {
			return r.finish(log, d, frames, now())
		}
	}
}

// process detects, classifies and folds one frame, then renders it.
func (r *Runner[F]) process(session *Session, frame F) ([]Verdict, error) {
	if c, ok := any(frame).(io.Closer); ok {
		defer c.Close()
	}

	regions, err := r.Detector.Detect(frame)
	if err != nil {
		return nil, fmt.Errorf("face detection failed: %w", err)
	}

	observations := make([]Observation, 0, len(regions))
	for _, region := range regions {
		result, err := r.Classifier.Classify(frame, region)
		if err != nil {
			return nil, fmt.Errorf("classification failed for region %+v: %w", region, err)
		}
		observations = append(observations, Observation{Region: region, Result: result})
	}

	verdicts := session.Fold(observations)
	if r.Overlay != nil {
		r.Overlay.Render(frame, verdicts)
	}
	return verdicts, nil
}

func (r *Runner[F]) aborted(ctx context.Context) bool {
	if ctx.Err() != nil {
		return true
	}
	return r.Abort != nil && r.Abort.Aborted()
}

func (r *Runner[F]) finish(log *zap.Logger, d Decision, frames int, at time.Time) (Decision, error) {
	log.Info("recognition session finished",
		zap.Stringer("state", d.State),
		zap.String("name", d.Name),
		zap.Int("confirmations", d.Confirmations),
		zap.Int("confidence_percent", d.ConfidencePercent),
		zap.Duration("elapsed", d.Elapsed),
		zap.Int("frames", frames),
	)

	if r.Notifier != nil {
		r.Notifier.Notify(d)
	}

	if d.State != Granted || r.Events == nil {
		return d, nil
	}
	if err := r.Events.Append(at, d.Name, d.ConfidencePercent); err != nil {
		log.Error("failed to record recognition event", zap.Error(err))
		return d, fmt.Errorf("recording recognition event: %w", err)
	}
	return d, nil
}
