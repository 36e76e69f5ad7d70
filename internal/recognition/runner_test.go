package recognition

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/andresmejia3/gatekeeper/internal/types"
	"go.uber.org/zap"
)

// fakeFrame is a scripted frame. It records whether the runner released it.
type fakeFrame struct {
	index  int
	faces  []Observation
	closed bool
}

func (f *fakeFrame) Close() error {
	f.closed = true
	return nil
}

// fakeCamera replays scripted frames and then keeps returning empty ones.
// Every frame advances the clock by interval.
type fakeCamera struct {
	script   [][]Observation
	clock    *fakeClock
	interval time.Duration
	failAt   int // 1-based frame number that fails; 0 never fails
	served   []*fakeFrame
}

func (c *fakeCamera) Next(ctx context.Context) (*fakeFrame, error) {
	n := len(c.served) + 1
	if c.failAt == n {
		return nil, errors.New("device unplugged")
	}
	c.clock.advance(c.interval)
	f := &fakeFrame{index: n}
	if n <= len(c.script) {
		f.faces = c.script[n-1]
	}
	c.served = append(c.served, f)
	return f, nil
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }
func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

// fakeDetector returns the scripted regions of a frame.
type fakeDetector struct{ err error }

func (d fakeDetector) Detect(f *fakeFrame) ([]types.Region, error) {
	if d.err != nil {
		return nil, d.err
	}
	regions := make([]types.Region, len(f.faces))
	for i, o := range f.faces {
		regions[i] = o.Region
	}
	return regions, nil
}

// fakeClassifier looks the region up in the frame script.
type fakeClassifier struct{ err error }

func (c fakeClassifier) Classify(f *fakeFrame, r types.Region) (types.Classification, error) {
	if c.err != nil {
		return types.Classification{}, c.err
	}
	for _, o := range f.faces {
		if o.Region == r {
			return o.Result, nil
		}
	}
	return types.Classification{}, errors.New("region not in script")
}

type fakeAbort struct {
	atPoll int
	polls  int
}

func (a *fakeAbort) Aborted() bool {
	a.polls++
	return a.atPoll > 0 && a.polls >= a.atPoll
}

type event struct {
	at   time.Time
	name string
	conf int
}

type fakeEvents struct {
	events []event
	err    error
}

func (e *fakeEvents) Append(at time.Time, name string, conf int) error {
	if e.err != nil {
		return e.err
	}
	e.events = append(e.events, event{at, name, conf})
	return nil
}

type fakeOverlay struct{ frames [][]Verdict }

func (o *fakeOverlay) Render(_ *fakeFrame, v []Verdict) { o.frames = append(o.frames, v) }

type fakeNotifier struct{ got []Decision }

func (n *fakeNotifier) Notify(d Decision) { n.got = append(n.got, d) }

// face builds an observation whose region is unique per slot.
func face(slot, id int, dist float64) Observation {
	return Observation{
		Region: types.Region{X: 10 * slot, Y: 5, Width: 60, Height: 60},
		Result: types.Classification{IdentityID: id, Distance: dist},
	}
}

func newRunner(script [][]Observation) (*Runner[*fakeFrame], *fakeCamera, *fakeEvents) {
	clock := &fakeClock{now: t0}
	cam := &fakeCamera{script: script, clock: clock, interval: time.Second}
	events := &fakeEvents{}
	r := &Runner[*fakeFrame]{
		Config:     DefaultConfig(),
		Source:     cam,
		Detector:   fakeDetector{},
		Classifier: fakeClassifier{},
		Names:      people,
		Events:     events,
		Logger:     zap.NewNop(),
		Now:        clock.Now,
	}
	return r, cam, events
}

func TestRunGrantsAndLogsOnce(t *testing.T) {
	script := make([][]Observation, 5)
	for i := range script {
		script[i] = []Observation{face(1, 3, 55.0)}
	}
	r, cam, events := newRunner(script)
	overlay := &fakeOverlay{}
	notifier := &fakeNotifier{}
	r.Overlay = overlay
	r.Notifier = notifier

	d, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if d.State != Granted || d.Name != "Alice" || d.Confirmations != 5 || d.ConfidencePercent != 45 {
		t.Errorf("decision = %+v, want Granted{Alice, 5, 45}", d)
	}
	if len(cam.served) != 5 {
		t.Errorf("frames served = %d, want 5", len(cam.served))
	}
	for _, f := range cam.served {
		if !f.closed {
			t.Errorf("frame %d was not released", f.index)
		}
	}
	if len(events.events) != 1 {
		t.Fatalf("events = %d, want 1", len(events.events))
	}
	if e := events.events[0]; e.name != "Alice" || e.conf != 45 || !e.at.Equal(t0.Add(5*time.Second)) {
		t.Errorf("event = %+v", e)
	}
	if len(overlay.frames) != 5 || len(overlay.frames[0]) != 1 || !overlay.frames[0][0].Match {
		t.Errorf("overlay frames = %+v", overlay.frames)
	}
	if len(notifier.got) != 1 || notifier.got[0] != d {
		t.Errorf("notifier = %+v", notifier.got)
	}
}

func TestRunWithoutFacesTimesOut(t *testing.T) {
	r, cam, events := newRunner(nil)

	d, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if d.State != TimedOut || d.Confirmations != 0 {
		t.Errorf("decision = %+v, want timed out", d)
	}
	// One frame per second; the deadline is strictly exceeded on frame 31.
	if len(cam.served) != 31 {
		t.Errorf("frames served = %d, want 31", len(cam.served))
	}
	if len(events.events) != 0 {
		t.Errorf("timed out sessions must not be logged, got %+v", events.events)
	}
}

func TestRunAbortOnFrameK(t *testing.T) {
	script := [][]Observation{
		{face(1, 3, 40)},
		{face(1, 3, 40)},
		{face(1, 3, 40), face(2, 3, 80)},
	}
	r, cam, events := newRunner(script)
	abort := &fakeAbort{atPoll: 3}
	r.Abort = abort

	d, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if d.State != Aborted {
		t.Fatalf("decision = %+v, want aborted", d)
	}
	if d.Confirmations != 3 {
		t.Errorf("confirmations = %d, want frame 3 folded before the abort (3)", d.Confirmations)
	}
	if len(cam.served) != 3 || abort.polls != 3 {
		t.Errorf("served=%d polls=%d, want 3 and 3", len(cam.served), abort.polls)
	}
	if len(events.events) != 0 {
		t.Error("aborted sessions must not be logged")
	}
}

func TestRunCancelledContextAborts(t *testing.T) {
	r, _, _ := newRunner(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d, err := r.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if d.State != Aborted {
		t.Errorf("decision = %+v, want aborted", d)
	}
}

func TestRunAcquisitionFailureIsFatal(t *testing.T) {
	r, cam, events := newRunner([][]Observation{{face(1, 3, 10)}, {face(1, 3, 10)}})
	cam.failAt = 3

	d, err := r.Run(context.Background())
	if !errors.Is(err, ErrFrameAcquisition) {
		t.Fatalf("err = %v, want ErrFrameAcquisition", err)
	}
	if !strings.Contains(err.Error(), "device unplugged") {
		t.Errorf("error should carry the device cause: %v", err)
	}
	if d != (Decision{}) {
		t.Errorf("acquisition failure must not produce a decision, got %+v", d)
	}
	if len(events.events) != 0 {
		t.Error("no event may be logged on acquisition failure")
	}
}

func TestRunCapabilityFaultsStop(t *testing.T) {
	boom := errors.New("malformed model")

	t.Run("detector", func(t *testing.T) {
		r, _, _ := newRunner([][]Observation{{face(1, 3, 10)}})
		r.Detector = fakeDetector{err: boom}
		if _, err := r.Run(context.Background()); !errors.Is(err, boom) {
			t.Errorf("err = %v, want %v", err, boom)
		}
	})

	t.Run("classifier", func(t *testing.T) {
		r, cam, _ := newRunner([][]Observation{{face(1, 3, 10)}})
		r.Classifier = fakeClassifier{err: boom}
		if _, err := r.Run(context.Background()); !errors.Is(err, boom) {
			t.Errorf("err = %v, want %v", err, boom)
		}
		if !cam.served[0].closed {
			t.Error("frame must be released on a classifier fault")
		}
	})
}

func TestRunEventLogFailureKeepsDecision(t *testing.T) {
	r, _, events := newRunner([][]Observation{{face(1, 7, 10), face(2, 7, 10), face(3, 7, 10), face(4, 7, 10), face(5, 7, 10)}})
	events.err = errors.New("disk full")

	d, err := r.Run(context.Background())
	if err == nil {
		t.Fatal("expected the event log error to surface")
	}
	if d.State != Granted || d.Name != "Bob" {
		t.Errorf("decision = %+v, want granted to Bob", d)
	}
}

func TestRunUnknownIdentityNeverGrants(t *testing.T) {
	script := make([][]Observation, 10)
	for i := range script {
		script[i] = []Observation{face(1, 404, 5.0)}
	}
	r, _, _ := newRunner(script)

	d, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if d.State != TimedOut || d.Confirmations != 0 {
		t.Errorf("decision = %+v, want timed out with 0 confirmations", d)
	}
}

func TestRunRequiresCapabilities(t *testing.T) {
	r := &Runner[*fakeFrame]{Config: DefaultConfig()}
	if _, err := r.Run(context.Background()); err == nil {
		t.Error("expected an error for a runner without capabilities")
	}
}
