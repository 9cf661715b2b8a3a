package performance

import (
	"path/filepath"
	"strings"
)

// Format represents a file format
type Format string

const (
	FormatMIDI    Format = "midi"
	FormatUnknown Format = "unknown"
)

// MIDIExtension is the extension used for every file handsplit writes
const MIDIExtension = ".mid"

// DetectFormat detects the format of a file based on extension
func DetectFormat(filename string) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".mid", ".midi", ".smf":
		return FormatMIDI
	default:
		return FormatUnknown
	}
}

// DetectFormatFromContent detects format from file content
func DetectFormatFromContent(data []byte) Format {
	if len(data) < 4 {
		return FormatUnknown
	}

	// Standard MIDI File header chunk "MThd"
	if string(data[:4]) == "MThd" {
		return FormatMIDI
	}

	return FormatUnknown
}

// Stem returns the file name of path without directory and extension
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// OutputPath derives an output path from source by appending suffix to its
// stem. The file goes into dir, or next to source when dir is empty.
func OutputPath(source, dir, suffix string) string {
	if dir == "" {
		dir = filepath.Dir(source)
	}
	return filepath.Join(dir, Stem(source)+suffix+MIDIExtension)
}
