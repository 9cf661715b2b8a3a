// Package splitter partitions a performance into right-hand and left-hand tracks
package splitter

import (
	"errors"

	"github.com/james-see/handsplit/internal/logging"
	"github.com/james-see/handsplit/pkg/performance"
)

// Variant names one output of a split
type Variant string

const (
	VariantSimple Variant = "simple" // fixed-threshold policy
	VariantSmart  Variant = "smart"  // adaptive-centroid policy
)

// Variants lists the outputs in the order they are built
func Variants() []Variant {
	return []Variant{VariantSimple, VariantSmart}
}

// Options configures a split
type Options struct {
	SplitPoint int
}

// DefaultOptions returns Options with the middle-C split point
func DefaultOptions() Options {
	return Options{SplitPoint: DefaultSplitPoint}
}

// Output is one split variant
type Output struct {
	Variant     Variant
	Policy      Policy
	Performance *performance.Performance
	Stats       Stats
}

// Result holds both variants built from one source performance
type Result struct {
	Simple    Output
	Smart     Output
	Centroids *Centroids // nil when the source has no onsets
}

// Outputs returns the variants in build order
func (r *Result) Outputs() []Output {
	return []Output{r.Simple, r.Smart}
}

// Analysis summarizes a performance without building outputs
type Analysis struct {
	Resolution uint16     `json:"resolution"`
	Tracks     int        `json:"tracks"`
	Events     int        `json:"events"`
	Onsets     int        `json:"onsets"`
	Centroids  *Centroids `json:"centroids,omitempty"`
	MinPitch   uint8      `json:"min_pitch"`
	MaxPitch   uint8      `json:"max_pitch"`
}

// Splitter runs the split pipeline
type Splitter struct {
	opts   Options
	logger *logging.Logger
}

// New creates a new Splitter. logger may be nil.
func New(opts Options, logger *logging.Logger) *Splitter {
	return &Splitter{opts: opts, logger: logger}
}

// Options returns the split options
func (s *Splitter) Options() Options {
	return s.opts
}

// Split flattens p, clusters its onset pitches once and builds the simple and
// smart variants from that shared pass
func (s *Splitter) Split(p *performance.Performance) (*Result, error) {
	if p == nil {
		return nil, errors.New("nil performance")
	}

	events := Flatten(p)
	centroids := ClusterPitches(events)

	if centroids != nil {
		s.logger.Debug("clustered onset pitches", "low", centroids.Low, "high", centroids.High)
	} else {
		s.logger.Debug("no onsets, smart split falls back to split point", "split_point", s.opts.SplitPoint)
	}

	res := &Result{
		Simple:    s.build(p.Resolution, events, VariantSimple, FixedThreshold{SplitPoint: s.opts.SplitPoint}),
		Smart:     s.build(p.Resolution, events, VariantSmart, AdaptiveCentroid{Centroids: centroids, SplitPoint: s.opts.SplitPoint}),
		Centroids: centroids,
	}
	return res, nil
}

func (s *Splitter) build(resolution uint16, events []Event, variant Variant, policy Policy) Output {
	tracks, stats := Build(events, policy)
	s.logger.Debug("built variant",
		"variant", string(variant),
		"policy", PolicyName(policy),
		"meta", stats.Meta,
		"right", stats.Right,
		"left", stats.Left,
		"unreleased", stats.Unreleased,
	)
	return Output{
		Variant:     variant,
		Policy:      policy,
		Performance: &performance.Performance{Resolution: resolution, Tracks: tracks},
		Stats:       stats,
	}
}

// Analyze reports the merged event counts and centroid pair of p
func (s *Splitter) Analyze(p *performance.Performance) (*Analysis, error) {
	if p == nil {
		return nil, errors.New("nil performance")
	}

	events := Flatten(p)
	a := &Analysis{
		Resolution: p.Resolution,
		Tracks:     len(p.Tracks),
		Events:     len(events),
		Centroids:  ClusterPitches(events),
	}
	for _, e := range events {
		if !e.IsOnset() {
			continue
		}
		if a.Onsets == 0 || e.Key.Pitch < a.MinPitch {
			a.MinPitch = e.Key.Pitch
		}
		if a.Onsets == 0 || e.Key.Pitch > a.MaxPitch {
			a.MaxPitch = e.Key.Pitch
		}
		a.Onsets++
	}
	return a, nil
}
