package splitter

import (
	"slices"

	"github.com/james-see/handsplit/pkg/performance"
)

// Buckets holds the events routed to each output role
type Buckets [numRoles][]Event

// Stats counts the events routed to each role, before termination markers
type Stats struct {
	Meta  int `json:"meta"`
	Right int `json:"right"`
	Left  int `json:"left"`
	// Unreleased counts onsets that never saw a matching release
	Unreleased int `json:"unreleased"`
}

// Partition routes merged events into buckets under policy. It owns a fresh
// active-note table, so separate calls never share note state.
func Partition(events []Event, policy Policy) Buckets {
	b, _ := partition(events, policy)
	return b
}

// partition also returns the number of onsets left without a release
func partition(events []Event, policy Policy) (Buckets, int) {
	var b Buckets
	lc := newLifecycle(policy)
	for _, e := range events {
		r := lc.route(e)
		b[r] = append(b[r], e)
	}
	return b, lc.pending()
}

// Stats returns the bucket sizes
func (b Buckets) Stats() Stats {
	return Stats{
		Meta:  len(b[RoleMeta]),
		Right: len(b[RoleRight]),
		Left:  len(b[RoleLeft]),
	}
}

// BuildTrack re-encodes one bucket as a delta-time track ending with an
// end-of-track marker
func BuildTrack(bucket []Event) performance.Track {
	sorted := slices.Clone(bucket)
	slices.SortStableFunc(sorted, compareEvents)

	track := make(performance.Track, 0, len(sorted)+1)
	var prev uint64
	for _, e := range sorted {
		track.Add(uint32(e.Time-prev), e.Message)
		prev = e.Time
	}
	if !track.IsClosed() {
		track.Add(0, performance.EndOfTrack())
	}
	return track
}

// Build partitions events under policy and returns the meta, right and left
// tracks in that order, plus the routing stats
func Build(events []Event, policy Policy) ([]performance.Track, Stats) {
	b, unreleased := partition(events, policy)

	tracks := make([]performance.Track, 0, numRoles)
	for r := RoleMeta; r < numRoles; r++ {
		tracks = append(tracks, BuildTrack(b[r]))
	}

	stats := b.Stats()
	stats.Unreleased = unreleased
	return tracks, stats
}
