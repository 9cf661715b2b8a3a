// Package instrument rewrites the instrument (program) of a performance
package instrument

import (
	"errors"
	"fmt"
	"slices"

	"github.com/james-see/handsplit/pkg/performance"
)

// DefaultProgram is General MIDI Alto Sax
const DefaultProgram = 65

// DefaultSuffix is appended to the source stem when no output path is given
const DefaultSuffix = "_sax"

// ErrInvalidProgram is returned for programs outside 0-127
var ErrInvalidProgram = errors.New("program must be between 0 and 127")

// ChangeProgram returns a copy of p in which every program change selects
// program, and every track starts with one program change per channel its
// notes use
func ChangeProgram(p *performance.Performance, program int) (*performance.Performance, error) {
	if p == nil {
		return nil, errors.New("nil performance")
	}
	if program < 0 || program > 127 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidProgram, program)
	}
	prog := uint8(program)

	out := &performance.Performance{
		Resolution: p.Resolution,
		Tracks:     make([]performance.Track, 0, len(p.Tracks)),
	}

	for _, track := range p.Tracks {
		channels := noteChannels(track)
		newTrack := make(performance.Track, 0, len(track)+len(channels))

		for _, ch := range channels {
			newTrack.Add(0, performance.ProgramChange(ch, prog))
		}

		for _, ev := range track {
			var ch, old uint8
			if ev.Message.GetProgramChange(&ch, &old) {
				newTrack.Add(ev.Delta, performance.ProgramChange(ch, prog))
				continue
			}
			newTrack.Add(ev.Delta, ev.Message)
		}

		out.Tracks = append(out.Tracks, newTrack)
	}

	return out, nil
}

// noteChannels returns the sorted set of channels used by note messages in track
func noteChannels(track performance.Track) []uint8 {
	var channels []uint8
	for _, ev := range track {
		if !ev.Message.IsNote() {
			continue
		}
		ch := ev.Message.Channel()
		if !slices.Contains(channels, ch) {
			channels = append(channels, ch)
		}
	}
	slices.Sort(channels)
	return channels
}

// ChangeFile reads src, rewrites its program and writes the result to dst.
// An empty dst means <stem>_sax.mid next to src.
func ChangeFile(src, dst string, program int) (string, error) {
	p, err := performance.ReadFile(src)
	if err != nil {
		return "", err
	}

	out, err := ChangeProgram(p, program)
	if err != nil {
		return "", err
	}

	if dst == "" {
		dst = performance.OutputPath(src, "", DefaultSuffix)
	}
	if err := performance.WriteFile(out, dst); err != nil {
		return "", err
	}
	return dst, nil
}
