package engine

import "github.com/pursuitlab/roadchase/pkg/core"

// eventLog collects frame events between drains. Its buffer is reused.
type eventLog struct {
	buf []core.FrameEvent
}

func (l *eventLog) add(frame uint64, now float64, kind core.EventKind, slot int, value float64) {
	l.buf = append(l.buf, core.FrameEvent{Frame: frame, Time: now, Kind: kind, Slot: slot, Value: value})
}

func (l *eventLog) addDetail(frame uint64, now float64, kind core.EventKind, slot int, detail string) {
	l.buf = append(l.buf, core.FrameEvent{Frame: frame, Time: now, Kind: kind, Slot: slot, Detail: detail})
}

// drain copies the pending events into dst and clears the log.
func (l *eventLog) drain(dst []core.FrameEvent) []core.FrameEvent {
	dst = append(dst, l.buf...)
	l.buf = l.buf[:0]
	return dst
}

func (l *eventLog) len() int { return len(l.buf) }
