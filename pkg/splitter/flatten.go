package splitter

import (
	"cmp"
	"slices"

	"github.com/james-see/handsplit/pkg/performance"
)

// Kind classifies the payload of an Event
type Kind uint8

const (
	KindOther Kind = iota
	KindNoteOn
	KindNoteOff
)

// NoteKey identifies one sounding note instance
type NoteKey struct {
	Channel uint8
	Pitch   uint8
}

// Event is a message placed on the global timeline of a performance
type Event struct {
	Time     uint64 // absolute tick within its source track
	Seq      int    // global enumeration index, breaks ties on Time
	Kind     Kind
	Key      NoteKey // valid for note kinds
	Velocity uint8   // valid for note kinds
	Message  performance.Message
}

// IsOnset reports whether e starts a note (note-on with velocity > 0)
func (e Event) IsOnset() bool {
	return e.Kind == KindNoteOn && e.Velocity > 0
}

// IsRelease reports whether e ends a note (note-off, or note-on with velocity 0)
func (e Event) IsRelease() bool {
	return e.Kind == KindNoteOff || (e.Kind == KindNoteOn && e.Velocity == 0)
}

// compareEvents orders events by (Time, Seq)
func compareEvents(a, b Event) int {
	if c := cmp.Compare(a.Time, b.Time); c != 0 {
		return c
	}
	return cmp.Compare(a.Seq, b.Seq)
}

func classify(msg performance.Message) (Kind, NoteKey, uint8) {
	var ch, key, vel uint8
	switch {
	case msg.GetNoteOn(&ch, &key, &vel):
		return KindNoteOn, NoteKey{Channel: ch, Pitch: key}, vel
	case msg.GetNoteOff(&ch, &key, &vel):
		return KindNoteOff, NoteKey{Channel: ch, Pitch: key}, vel
	default:
		return KindOther, NoteKey{}, 0
	}
}

// absoluteTimes folds the delta times of one track into absolute ticks
func absoluteTimes(track performance.Track) []uint64 {
	times := make([]uint64, len(track))
	var abs uint64
	for i, ev := range track {
		abs += uint64(ev.Delta)
		times[i] = abs
	}
	return times
}

// Flatten merges every track of p into one stream ordered by (Time, Seq).
// Seq enumerates track 0 in file order, then track 1, and so on, so events
// at the same tick keep their cross-track enumeration order.
func Flatten(p *performance.Performance) []Event {
	events := make([]Event, 0, p.EventCount())
	seq := 0
	for _, track := range p.Tracks {
		times := absoluteTimes(track)
		for i, ev := range track {
			kind, key, vel := classify(ev.Message)
			events = append(events, Event{
				Time:     times[i],
				Seq:      seq,
				Kind:     kind,
				Key:      key,
				Velocity: vel,
				Message:  ev.Message,
			})
			seq++
		}
	}

	slices.SortStableFunc(events, compareEvents)
	return events
}
