package model

// Phase identifies what an item is doing when a ProgressEvent is emitted.
type Phase int

const (
	PhaseDownloading Phase = iota
	PhaseTranscoding
	PhaseRetrying
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseDownloading:
		return "downloading"
	case PhaseTranscoding:
		return "transcoding"
	case PhaseRetrying:
		return "retrying"
	case PhaseDone:
		return "done"
	default:
		return "unknown"
	}
}

// ProgressEvent is a best-effort progress update for one item.
type ProgressEvent struct {
	// ItemIndex is the item's position in the flat work list.
	ItemIndex int

	// Fraction is the overall completion in [0, 1].
	Fraction float64

	// SpeedMbps is the current transfer rate, 0 when unknown.
	SpeedMbps float64

	// DisplayTitle is "<index+1>. <title>".
	DisplayTitle string

	Phase Phase

	// Attempt is the 1-based attempt the event belongs to.
	Attempt int
}

// ProgressSink receives progress events. Implementations must be safe for
// concurrent use; events arrive from worker goroutines.
type ProgressSink interface {
	Report(ProgressEvent)
}

// ProgressFunc adapts a function to ProgressSink.
type ProgressFunc func(ProgressEvent)

// Report calls f(ev).
func (f ProgressFunc) Report(ev ProgressEvent) {
	if f != nil {
		f(ev)
	}
}

// Discard is a ProgressSink that drops every event.
var Discard ProgressSink = ProgressFunc(nil)

// Clamp01 limits v to [0, 1]. NaN maps to 0.
func Clamp01(v float64) float64 {
	if v != v || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
