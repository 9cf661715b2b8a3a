// Package performance models multi-track MIDI performances and reads/writes them as Standard MIDI Files
package performance

import "gitlab.com/gomidi/midi/v2"

// MIDI status and meta constants
const (
	StatusNoteOff       = 0x80
	StatusNoteOn        = 0x90
	StatusProgramChange = 0xC0
	MetaPrefix          = 0xFF
	MetaEndOfTrack      = 0x2F
)

// DefaultResolution is used when a performance is created without a time base
const DefaultResolution = 480

// Message is a raw MIDI or meta message, as stored in a track
type Message []byte

// EndOfTrack returns a fresh end-of-track meta message (FF 2F 00)
func EndOfTrack() Message {
	return Message{MetaPrefix, MetaEndOfTrack, 0x00}
}

// NoteOn builds a note-on channel message
func NoteOn(channel, key, velocity uint8) Message {
	return Message(midi.NoteOn(channel&0x0F, key&0x7F, velocity&0x7F))
}

// NoteOff builds a note-off channel message
func NoteOff(channel, key uint8) Message {
	return Message(midi.NoteOff(channel&0x0F, key&0x7F))
}

// ProgramChange builds a program-change channel message
func ProgramChange(channel, program uint8) Message {
	return Message(midi.ProgramChange(channel&0x0F, program&0x7F))
}

// TrackEvent is one delta-encoded message in a track
type TrackEvent struct {
	Delta   uint32
	Message Message
}

// Track is an ordered sequence of delta-encoded events
type Track []TrackEvent

// Add appends msg after delta ticks
func (t *Track) Add(delta uint32, msg Message) {
	*t = append(*t, TrackEvent{Delta: delta, Message: msg})
}

// IsClosed reports whether the track ends with an end-of-track marker
func (t Track) IsClosed() bool {
	return len(t) > 0 && t[len(t)-1].Message.IsEndOfTrack()
}

// Performance is a multi-track performance sharing one time resolution
type Performance struct {
	Resolution uint16 // ticks per quarter note
	Tracks     []Track
}

// New creates an empty performance with the given resolution
func New(resolution uint16) *Performance {
	if resolution == 0 {
		resolution = DefaultResolution
	}
	return &Performance{Resolution: resolution}
}

// EventCount returns the number of events over all tracks
func (p *Performance) EventCount() int {
	n := 0
	for _, t := range p.Tracks {
		n += len(t)
	}
	return n
}

// status returns the status byte, or 0 for an empty message
func (m Message) status() byte {
	if len(m) == 0 {
		return 0
	}
	return m[0]
}

// IsChannel reports whether m is a channel voice message (0x80-0xEF)
func (m Message) IsChannel() bool {
	s := m.status()
	return s >= 0x80 && s <= 0xEF
}

// Channel returns the channel of a channel voice message
func (m Message) Channel() uint8 {
	return m.status() & 0x0F
}

// GetNoteOn extracts a note-on message (0x9n nn vv), including velocity 0
func (m Message) GetNoteOn(channel, key, velocity *uint8) bool {
	if len(m) < 3 || m[0]&0xF0 != StatusNoteOn {
		return false
	}
	*channel, *key, *velocity = m[0]&0x0F, m[1], m[2]
	return true
}

// GetNoteOff extracts a note-off message (0x8n nn vv)
func (m Message) GetNoteOff(channel, key, velocity *uint8) bool {
	if len(m) < 3 || m[0]&0xF0 != StatusNoteOff {
		return false
	}
	*channel, *key, *velocity = m[0]&0x0F, m[1], m[2]
	return true
}

// GetProgramChange extracts a program-change message (0xCn pp)
func (m Message) GetProgramChange(channel, program *uint8) bool {
	if len(m) < 2 || m[0]&0xF0 != StatusProgramChange {
		return false
	}
	*channel, *program = m[0]&0x0F, m[1]
	return true
}

// IsNote reports whether m is a note-on or note-off message
func (m Message) IsNote() bool {
	var ch, key, vel uint8
	return m.GetNoteOn(&ch, &key, &vel) || m.GetNoteOff(&ch, &key, &vel)
}

// IsMeta reports whether m is a meta message (FF ...)
func (m Message) IsMeta() bool {
	return m.status() == MetaPrefix
}

// IsEndOfTrack reports whether m is the end-of-track meta message
func (m Message) IsEndOfTrack() bool {
	return len(m) >= 2 && m[0] == MetaPrefix && m[1] == MetaEndOfTrack
}

// Clone returns a copy of m that does not share its backing array
func (m Message) Clone() Message {
	return append(Message(nil), m...)
}
