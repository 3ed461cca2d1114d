package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/jedib0t/go-pretty/v6/progress"

	"github.com/handiism/audiobatch/internal/download"
	"github.com/handiism/audiobatch/internal/model"
)

// trackerScale turns a completion fraction into tracker units.
const trackerScale = 1000

// trackerListener renders one go-pretty tracker per item that has started.
type trackerListener struct {
	pw progress.Writer

	mu       sync.Mutex
	items    []model.ItemDescriptor
	trackers map[int]*progress.Tracker
}

func newTrackerListener(out io.Writer) *trackerListener {
	pw := progress.NewWriter()
	pw.SetOutputWriter(out)
	pw.SetAutoStop(false)
	pw.SetTrackerLength(25)
	pw.SetMessageLength(48)
	pw.SetSortBy(progress.SortByNone)
	pw.SetStyle(progress.StyleDefault)
	pw.SetUpdateFrequency(100 * time.Millisecond)
	pw.Style().Visibility.ETA = false
	pw.Style().Visibility.Value = false
	pw.Style().Options.PercentFormat = "%4.0f%%"

	return &trackerListener{pw: pw, trackers: make(map[int]*progress.Tracker)}
}

// Start begins rendering; Stop must follow.
func (l *trackerListener) Start() {
	go l.pw.Render()
}

// Stop waits for the final frame.
func (l *trackerListener) Stop() {
	l.pw.Stop()
	for l.pw.IsRenderInProgress() {
		time.Sleep(10 * time.Millisecond)
	}
}

func (l *trackerListener) Planned(items []model.ItemDescriptor) {
	l.mu.Lock()
	l.items = items
	l.mu.Unlock()
}

func (l *trackerListener) Report(ev model.ProgressEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()

	t := l.tracker(ev.ItemIndex, ev.DisplayTitle)
	if t.IsDone() {
		return
	}
	t.UpdateMessage(trackerMessage(ev))
	t.SetValue(int64(model.Clamp01(ev.Fraction) * trackerScale))
}

func (l *trackerListener) Finished(o model.Outcome) {
	l.mu.Lock()
	defer l.mu.Unlock()

	title := o.Item.DisplayTitle(o.Index)
	t := l.tracker(o.Index, title)
	if o.Succeeded() {
		t.UpdateMessage(truncate(title, 48))
		t.SetValue(trackerScale)
		t.MarkAsDone()
		return
	}
	t.UpdateMessage(truncate(title+": "+o.Reason, 48))
	t.MarkAsErrored()
}

// tracker returns the item's tracker, creating it on first use.
// The caller holds l.mu.
func (l *trackerListener) tracker(index int, title string) *progress.Tracker {
	if t, ok := l.trackers[index]; ok {
		return t
	}
	if title == "" && index < len(l.items) {
		title = l.items[index].DisplayTitle(index)
	}
	t := &progress.Tracker{
		Message: truncate(title, 48),
		Total:   trackerScale,
		Units:   progress.UnitsDefault,
	}
	l.trackers[index] = t
	l.pw.AppendTracker(t)
	return t
}

func trackerMessage(ev model.ProgressEvent) string {
	switch ev.Phase {
	case model.PhaseRetrying:
		return truncate(fmt.Sprintf("%s (retry %d)", ev.DisplayTitle, ev.Attempt), 48)
	case model.PhaseTranscoding:
		return truncate(ev.DisplayTitle+" (transcoding)", 48)
	}
	if ev.SpeedMbps > 0 {
		return truncate(fmt.Sprintf("%s %.1f Mbps", ev.DisplayTitle, ev.SpeedMbps), 48)
	}
	return truncate(ev.DisplayTitle, 48)
}

// lineListener prints one line per finished item, for pipes and logs.
type lineListener struct {
	download.NopListener

	mu    sync.Mutex
	out   io.Writer
	total int
	done  int
}

func newLineListener(out io.Writer) *lineListener {
	return &lineListener{out: out}
}

func (l *lineListener) Planned(items []model.ItemDescriptor) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.total = len(items)
	fmt.Fprintf(l.out, "Resolved %d items\n", len(items))
}

func (l *lineListener) Finished(o model.Outcome) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.done++
	if o.Succeeded() {
		fmt.Fprintf(l.out, "[%d/%d] ✓ %s\n", l.done, l.total, o.Item.DisplayTitle(o.Index))
		return
	}
	fmt.Fprintf(l.out, "[%d/%d] ✗ %s: %s\n", l.done, l.total, o.Item.DisplayTitle(o.Index), o.Reason)
}
