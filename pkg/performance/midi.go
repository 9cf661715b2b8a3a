package performance

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gitlab.com/gomidi/midi/v2/smf"
)

var (
	// ErrMalformed is returned for unreadable or corrupt performance data
	ErrMalformed = errors.New("malformed performance")
	// ErrNoTimeFormat is returned for files without a metric (ticks per quarter) time base
	ErrNoTimeFormat = errors.New("unsupported time format: metric ticks required")
)

// ReadFile reads and parses a performance file
func ReadFile(filename string) (*Performance, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read MIDI file: %w", err)
	}
	return Parse(data)
}

// Parse parses Standard MIDI File data into a Performance
func Parse(data []byte) (p *Performance, err error) {
	// the smf reader can panic on truncated input
	defer func() {
		if r := recover(); r != nil {
			p, err = nil, fmt.Errorf("%w: %v", ErrMalformed, r)
		}
	}()

	s, err := smf.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse MIDI: %v", ErrMalformed, err)
	}

	mt, ok := s.TimeFormat.(smf.MetricTicks)
	if !ok {
		return nil, ErrNoTimeFormat
	}

	p = &Performance{
		Resolution: mt.Resolution(),
		Tracks:     make([]Track, 0, len(s.Tracks)),
	}
	for _, track := range s.Tracks {
		t := make(Track, 0, len(track))
		for _, ev := range track {
			t = append(t, TrackEvent{Delta: ev.Delta, Message: Message(ev.Message).Clone()})
		}
		p.Tracks = append(p.Tracks, t)
	}
	return p, nil
}

// Encode writes p as Standard MIDI File data
func Encode(p *Performance) ([]byte, error) {
	if p == nil {
		return nil, errors.New("nil performance")
	}

	resolution := p.Resolution
	if resolution == 0 {
		resolution = DefaultResolution
	}

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(resolution)

	for i, t := range p.Tracks {
		if err := s.Add(toSMFTrack(t)); err != nil {
			return nil, fmt.Errorf("failed to add track %d: %w", i, err)
		}
	}

	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write MIDI: %w", err)
	}
	return buf.Bytes(), nil
}

// toSMFTrack converts t for writing. An end-of-track marker is only valid as
// the last event, so interior markers are dropped and their delta is carried
// into the following event; a missing final marker is added.
func toSMFTrack(t Track) smf.Track {
	out := make(smf.Track, 0, len(t)+1)
	var carry uint32
	for i, ev := range t {
		if ev.Message.IsEndOfTrack() && i != len(t)-1 {
			carry += ev.Delta
			continue
		}
		out = append(out, smf.Event{Delta: ev.Delta + carry, Message: smf.Message(ev.Message)})
		carry = 0
	}
	if !t.IsClosed() {
		out = append(out, smf.Event{Delta: carry, Message: smf.Message(EndOfTrack())})
	}
	return out
}

// WriteFile encodes p and writes it to filename atomically
func WriteFile(p *Performance, filename string) error {
	data, err := Encode(p)
	if err != nil {
		return err
	}
	return WriteAtomic(filename, data)
}

// WriteAtomic writes data to a temp file next to filename and renames it into place,
// so readers never observe a partially written file
func WriteAtomic(filename string, data []byte) error {
	st, err := Stage(filename, data)
	if err != nil {
		return err
	}
	return CommitAll(st)
}

// Staged is output data written to a temp file next to its final path
type Staged struct {
	tmp string
	dst string
}

// Stage writes data to a temp file in the directory of filename. The file
// is not visible under filename until CommitAll.
func Stage(filename string, data []byte) (*Staged, error) {
	tmp, err := os.CreateTemp(filepath.Dir(filename), ".handsplit-*.tmp")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	st := &Staged{tmp: tmp.Name(), dst: filename}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		st.Discard()
		return nil, fmt.Errorf("failed to write output file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		st.Discard()
		return nil, fmt.Errorf("failed to write output file: %w", err)
	}
	if err := os.Chmod(st.tmp, 0644); err != nil {
		st.Discard()
		return nil, fmt.Errorf("failed to set output file mode: %w", err)
	}
	return st, nil
}

// Discard removes the temp file
func (s *Staged) Discard() {
	_ = os.Remove(s.tmp)
}

// CommitAll moves every staged file into place, or none of them. Existing
// regular files at the destinations are kept aside until all renames
// succeed and are restored if any rename fails.
func CommitAll(staged ...*Staged) error {
	type done struct {
		dst, backup string
	}
	var committed []done

	rollback := func(from int) {
		for i := len(committed) - 1; i >= 0; i-- {
			c := committed[i]
			_ = os.Remove(c.dst)
			if c.backup != "" {
				_ = os.Rename(c.backup, c.dst)
			}
		}
		for _, st := range staged[from:] {
			st.Discard()
		}
	}

	for i, st := range staged {
		backup := ""
		if fi, err := os.Lstat(st.dst); err == nil && fi.Mode().IsRegular() {
			backup = st.tmp + ".bak"
			if err := os.Rename(st.dst, backup); err != nil {
				rollback(i)
				return fmt.Errorf("failed to move aside %s: %w", st.dst, err)
			}
		}
		if err := os.Rename(st.tmp, st.dst); err != nil {
			if backup != "" {
				_ = os.Rename(backup, st.dst)
			}
			rollback(i)
			return fmt.Errorf("failed to move output file into place: %w", err)
		}
		committed = append(committed, done{dst: st.dst, backup: backup})
	}

	for _, c := range committed {
		if c.backup != "" {
			_ = os.Remove(c.backup)
		}
	}
	return nil
}
