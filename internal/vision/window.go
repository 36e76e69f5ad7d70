package vision

import (
	"image"
	"image/color"
	"sync/atomic"

	"github.com/andresmejia3/gatekeeper/internal/recognition"
	"github.com/andresmejia3/gatekeeper/internal/types"
	"gocv.io/x/gocv"
)

var (
	colorMatch   = color.RGBA{G: 255, A: 255}
	colorNoMatch = color.RGBA{R: 255, A: 255}
	colorStatus  = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	colorCapture = color.RGBA{B: 255, A: 255}
)

const (
	statusRunning = "Face recognition in progress..."
	statusNoFace  = "No face detected"
)

// Window is the live preview. It doubles as the operator abort signal:
// pressing q (or Esc) while the window has focus requests an abort.
type Window struct {
	win     *gocv.Window
	aborted atomic.Bool
}

// NewWindow opens a preview window with the given title.
func NewWindow(title string) *Window {
	return &Window{win: gocv.NewWindow(title)}
}

// Render annotates the frame with one box and label per verdict and
// shows it. Matches are drawn green, everything else red.
func (w *Window) Render(f *Frame, verdicts []recognition.Verdict) {
	img := f.Color
	putStatus(&img, statusRunning, 20)
	if len(verdicts) == 0 {
		putStatus(&img, statusNoFace, 45)
	}

	for _, v := range verdicts {
		c := colorNoMatch
		if v.Match {
			c = colorMatch
		}
		rect := v.Region.Rect()
		gocv.Rectangle(&img, rect, c, 2)
		gocv.PutText(&img, v.Label(), image.Pt(rect.Min.X, rect.Min.Y-10), gocv.FontHersheySimplex, 0.6, c, 2)
	}

	w.show(img)
}

// ShowRegions draws plain capture boxes, used while enrolling.
func (w *Window) ShowRegions(f *Frame, regions []types.Region) {
	img := f.Color
	for _, r := range regions {
		gocv.Rectangle(&img, r.Rect(), colorCapture, 2)
	}
	w.show(img)
}

func (w *Window) show(img gocv.Mat) {
	w.win.IMShow(img)
	switch key := w.win.WaitKey(1); key {
	case 'q', 'Q', 27:
		w.aborted.Store(true)
	}
}

// Aborted reports whether the operator asked to stop.
func (w *Window) Aborted() bool {
	return w.aborted.Load()
}

// Close destroys the window.
func (w *Window) Close() error {
	return w.win.Close()
}

func putStatus(img *gocv.Mat, text string, y int) {
	gocv.PutText(img, text, image.Pt(10, y), gocv.FontHersheySimplex, 0.6, colorStatus, 2)
}
