package splitter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/james-see/handsplit/pkg/performance"
)

// timed is a message at an absolute tick, used to build fixture tracks
type timed struct {
	at  uint64
	msg performance.Message
}

func trackAt(events ...timed) performance.Track {
	var t performance.Track
	var prev uint64
	for _, e := range events {
		t.Add(uint32(e.at-prev), e.msg)
		prev = e.at
	}
	return t
}

func perf(resolution uint16, tracks ...performance.Track) *performance.Performance {
	return &performance.Performance{Resolution: resolution, Tracks: tracks}
}

// scenario is the two-note example: pitch 40 and 80 held for 240 ticks
func scenario() *performance.Performance {
	return perf(480, trackAt(
		timed{0, performance.NoteOn(0, 40, 80)},
		timed{0, performance.NoteOn(0, 80, 90)},
		timed{240, performance.NoteOff(0, 40)},
		timed{240, performance.NoteOff(0, 80)},
	))
}

// absolute restores absolute ticks of a track as "tick:hex" keys
func absolute(track performance.Track) []string {
	var out []string
	var abs uint64
	for _, ev := range track {
		abs += uint64(ev.Delta)
		out = append(out, fmt.Sprintf("%d:%x", abs, []byte(ev.Message)))
	}
	return out
}

func multiset(keys []string) map[string]int {
	m := map[string]int{}
	for _, k := range keys {
		m[k]++
	}
	return m
}

func TestFlattenAbsoluteTimesAndOrder(t *testing.T) {
	p := perf(96,
		trackAt(
			timed{0, performance.Message{0xFF, 0x51, 0x03, 0x07, 0xA1, 0x20}},
			timed{100, performance.NoteOn(0, 60, 100)},
			timed{200, performance.NoteOff(0, 60)},
		),
		trackAt(
			timed{50, performance.NoteOn(1, 48, 70)},
			timed{100, performance.NoteOff(1, 48)},
		),
	)

	events := Flatten(p)
	require.Len(t, events, 5)

	var times []uint64
	var seqs []int
	for _, e := range events {
		times = append(times, e.Time)
		seqs = append(seqs, e.Seq)
	}
	assert.Equal(t, []uint64{0, 50, 100, 100, 200}, times)
	// at tick 100, track 0's note-on (seq 1) precedes track 1's note-off (seq 4)
	assert.Equal(t, []int{0, 3, 1, 4, 2}, seqs)

	assert.Equal(t, KindOther, events[0].Kind)
	assert.Equal(t, KindNoteOn, events[1].Kind)
	assert.Equal(t, NoteKey{Channel: 1, Pitch: 48}, events[1].Key)
	assert.True(t, events[3].IsRelease())
}

func TestFlattenTieBreakIsEnumerationOrder(t *testing.T) {
	// three tracks all emitting at tick 10; enumeration order must win
	p := perf(480,
		trackAt(timed{10, performance.NoteOn(0, 70, 1)}),
		trackAt(timed{10, performance.NoteOn(0, 50, 1)}, timed{10, performance.NoteOn(0, 51, 1)}),
		trackAt(timed{10, performance.NoteOn(0, 30, 1)}),
	)

	events := Flatten(p)
	var pitches []uint8
	for i, e := range events {
		assert.Equal(t, i, e.Seq)
		pitches = append(pitches, e.Key.Pitch)
	}
	assert.Equal(t, []uint8{70, 50, 51, 30}, pitches)
}

func TestFlattenVelocityZeroIsRelease(t *testing.T) {
	p := perf(480, trackAt(
		timed{0, performance.NoteOn(0, 60, 64)},
		timed{10, performance.NoteOn(0, 60, 0)},
	))
	events := Flatten(p)
	require.Len(t, events, 2)
	assert.True(t, events[0].IsOnset())
	assert.False(t, events[1].IsOnset())
	assert.True(t, events[1].IsRelease())
	assert.Equal(t, []float64{60}, OnsetPitches(events))
}

func TestKMeans1DConverges(t *testing.T) {
	low, high, iterations := kmeans1D([]float64{40, 41, 42, 79, 80, 81})
	assert.InDelta(t, 41, low, 0.5)
	assert.InDelta(t, 80, high, 0.5)
	assert.LessOrEqual(t, iterations, MaxIterations)
}

func TestKMeans1DDegenerate(t *testing.T) {
	c, ok := KMeans1D([]float64{60, 60, 60})
	require.True(t, ok)
	assert.Equal(t, Centroids{Low: 60, High: 60}, c)

	_, ok = KMeans1D(nil)
	assert.False(t, ok)
}

func TestKMeans1DTieGoesLow(t *testing.T) {
	// 50 is equidistant from 40 and 60 on the first pass and joins the low cluster
	c, ok := KMeans1D([]float64{40, 50, 60})
	require.True(t, ok)
	assert.InDelta(t, 45, c.Low, 1e-9)
	assert.InDelta(t, 60, c.High, 1e-9)
}

func TestKMeans1DIgnoresInputOrder(t *testing.T) {
	a, _ := KMeans1D([]float64{81, 40, 79, 42, 80, 41})
	b, _ := KMeans1D([]float64{40, 41, 42, 79, 80, 81})
	assert.Equal(t, a, b)
	assert.LessOrEqual(t, a.Low, a.High)
}

func TestClusterPitchesNoOnsets(t *testing.T) {
	p := perf(480, trackAt(
		timed{0, performance.ProgramChange(0, 1)},
		timed{5, performance.NoteOff(0, 60)},
	))
	assert.Nil(t, ClusterPitches(Flatten(p)))
}

func TestAssign(t *testing.T) {
	c := &Centroids{Low: 40, High: 80}

	tests := []struct {
		name   string
		policy Policy
		pitch  uint8
		want   Hand
	}{
		{"fixed at split point", FixedThreshold{SplitPoint: 60}, 60, Right},
		{"fixed below split point", FixedThreshold{SplitPoint: 60}, 59, Left},
		{"fixed custom split", FixedThreshold{SplitPoint: 48}, 50, Right},
		{"adaptive near high", AdaptiveCentroid{Centroids: c, SplitPoint: 60}, 70, Right},
		{"adaptive near low", AdaptiveCentroid{Centroids: c, SplitPoint: 60}, 50, Left},
		{"adaptive tie goes left", AdaptiveCentroid{Centroids: c, SplitPoint: 60}, 60, Left},
		{"adaptive undefined falls back", AdaptiveCentroid{SplitPoint: 60}, 60, Right},
		{"adaptive undefined below", AdaptiveCentroid{SplitPoint: 60}, 59, Left},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Assign(tt.policy, tt.pitch))
		})
	}
}

func TestLifecycleReleaseFollowsOnset(t *testing.T) {
	lc := newLifecycle(FixedThreshold{SplitPoint: 60})

	on := Event{Kind: KindNoteOn, Key: NoteKey{Channel: 0, Pitch: 72}, Velocity: 90}
	off := Event{Kind: KindNoteOff, Key: NoteKey{Channel: 0, Pitch: 72}}
	assert.Equal(t, RoleRight, lc.route(on))
	assert.Equal(t, 1, lc.pending())

	// change the policy mid-note; the release still follows the onset
	lc.policy = FixedThreshold{SplitPoint: 100}
	assert.Equal(t, RoleRight, lc.route(off))
	assert.Equal(t, 0, lc.pending())

	// release with no tracked onset falls back to the policy
	assert.Equal(t, RoleLeft, lc.route(off))

	// non-note events bypass hand assignment
	assert.Equal(t, RoleMeta, lc.route(Event{Kind: KindOther}))
}

func TestLifecycleKeysIncludeChannel(t *testing.T) {
	lc := newLifecycle(FixedThreshold{SplitPoint: 60})
	lc.route(Event{Kind: KindNoteOn, Key: NoteKey{Channel: 0, Pitch: 64}, Velocity: 1})

	lc.policy = FixedThreshold{SplitPoint: 0}
	// same pitch on another channel is a different note
	release := Event{Kind: KindNoteOn, Key: NoteKey{Channel: 1, Pitch: 64}, Velocity: 0}
	assert.Equal(t, RoleRight, lc.route(release))
	assert.Equal(t, 1, lc.pending())
}

func TestLifecycleReonsetOverwrites(t *testing.T) {
	lc := newLifecycle(FixedThreshold{SplitPoint: 60})
	key := NoteKey{Channel: 0, Pitch: 62}
	lc.route(Event{Kind: KindNoteOn, Key: key, Velocity: 1})

	lc.policy = FixedThreshold{SplitPoint: 70}
	assert.Equal(t, RoleLeft, lc.route(Event{Kind: KindNoteOn, Key: key, Velocity: 1}))
	assert.Equal(t, RoleLeft, lc.route(Event{Kind: KindNoteOff, Key: key}))
}

func TestBuildTrack(t *testing.T) {
	events := []Event{
		{Time: 30, Seq: 2, Message: performance.NoteOff(0, 60)},
		{Time: 10, Seq: 0, Message: performance.NoteOn(0, 60, 1)},
		{Time: 30, Seq: 1, Message: performance.NoteOn(0, 62, 1)},
	}

	track := BuildTrack(events)
	require.Len(t, track, 4)
	assert.Equal(t, uint32(10), track[0].Delta)
	assert.Equal(t, performance.NoteOn(0, 60, 1), track[0].Message)
	assert.Equal(t, uint32(20), track[1].Delta)
	assert.Equal(t, performance.NoteOn(0, 62, 1), track[1].Message)
	assert.Equal(t, uint32(0), track[2].Delta)
	assert.True(t, track[3].Message.IsEndOfTrack())
	assert.Equal(t, uint32(0), track[3].Delta)

	// input slice is not reordered
	assert.Equal(t, uint64(30), events[0].Time)
}

func TestBuildTrackKeepsExistingMarker(t *testing.T) {
	track := BuildTrack([]Event{{Time: 99, Message: performance.EndOfTrack()}})
	require.Len(t, track, 1)
	assert.Equal(t, uint32(99), track[0].Delta)

	empty := BuildTrack(nil)
	require.Len(t, empty, 1)
	assert.True(t, empty[0].Message.IsEndOfTrack())
}

func TestSplitScenario(t *testing.T) {
	res, err := New(DefaultOptions(), nil).Split(scenario())
	require.NoError(t, err)

	for _, out := range res.Outputs() {
		t.Run(string(out.Variant), func(t *testing.T) {
			p := out.Performance
			assert.Equal(t, uint16(480), p.Resolution)
			require.Len(t, p.Tracks, 3)

			meta, right, left := p.Tracks[RoleMeta], p.Tracks[RoleRight], p.Tracks[RoleLeft]
			require.Len(t, meta, 1)
			assert.True(t, meta[0].Message.IsEndOfTrack())

			assert.Equal(t, Stats{Meta: 0, Right: 2, Left: 2}, out.Stats)
			assert.Equal(t, []string{"0:90505a", "240:805000", "240:ff2f00"}, absolute(right))
			assert.Equal(t, []string{"0:902850", "240:802800", "240:ff2f00"}, absolute(left))
		})
	}

	require.NotNil(t, res.Centroids)
	assert.Equal(t, Centroids{Low: 40, High: 80}, *res.Centroids)
	assert.Equal(t, "fixed-threshold", PolicyName(res.Simple.Policy))
	assert.Equal(t, "adaptive-centroid", PolicyName(res.Smart.Policy))
}

func TestSplitScenarioWithSourceMarker(t *testing.T) {
	p := scenario()
	p.Tracks[0].Add(0, performance.EndOfTrack())

	res, err := New(DefaultOptions(), nil).Split(p)
	require.NoError(t, err)

	meta := res.Simple.Performance.Tracks[RoleMeta]
	require.Len(t, meta, 1)
	assert.Equal(t, uint32(240), meta[0].Delta)
	assert.Equal(t, 1, res.Simple.Stats.Meta)
}

func mixedPerformance() *performance.Performance {
	return perf(960,
		trackAt(
			timed{0, performance.Message{0xFF, 0x03, 0x04, 'p', 'i', 'a', 'n'}},
			timed{0, performance.ProgramChange(0, 0)},
			timed{0, performance.NoteOn(0, 36, 70)},
			timed{0, performance.NoteOn(0, 72, 80)},
			timed{120, performance.NoteOn(0, 55, 60)},
			timed{240, performance.NoteOn(0, 36, 0)},
			timed{240, performance.NoteOff(0, 72)},
			timed{300, performance.NoteOff(0, 55)},
			timed{300, performance.NoteOff(0, 99)}, // release without onset
			timed{480, performance.EndOfTrack()},
		),
		trackAt(
			timed{0, performance.Message{0xB0, 0x40, 0x7F}},
			timed{120, performance.NoteOn(1, 64, 50)},
			timed{120, performance.NoteOn(1, 43, 50)},
			timed{360, performance.NoteOff(1, 64)},
			timed{360, performance.NoteOff(1, 43)},
			timed{400, performance.EndOfTrack()},
		),
	)
}

func TestRoundTripCompleteness(t *testing.T) {
	p := mixedPerformance()

	var input []string
	for _, e := range Flatten(p) {
		input = append(input, fmt.Sprintf("%d:%x", e.Time, []byte(e.Message)))
	}

	res, err := New(DefaultOptions(), nil).Split(p)
	require.NoError(t, err)

	for _, out := range res.Outputs() {
		t.Run(string(out.Variant), func(t *testing.T) {
			var output []string
			for _, track := range out.Performance.Tracks {
				output = append(output, absolute(track)...)
			}

			have := multiset(output)
			for k, n := range multiset(input) {
				assert.Equal(t, n, have[k], "event %s", k)
				have[k] -= n
			}
			// anything left over must be an appended end-of-track marker
			for k, n := range have {
				if n == 0 {
					continue
				}
				assert.Regexp(t, `^\d+:ff2f00$`, k)
			}

			st := out.Stats
			assert.Equal(t, len(input), st.Meta+st.Right+st.Left)
		})
	}
}

func TestLifecycleConsistencyAcrossBuild(t *testing.T) {
	events := Flatten(mixedPerformance())
	centroids := ClusterPitches(events)
	require.NotNil(t, centroids)

	policies := []Policy{
		FixedThreshold{SplitPoint: 60},
		AdaptiveCentroid{Centroids: centroids, SplitPoint: 60},
		FixedThreshold{SplitPoint: 50},
	}

	for _, policy := range policies {
		t.Run(PolicyName(policy), func(t *testing.T) {
			b := Partition(events, policy)
			onsetRole := map[NoteKey]Role{}
			for _, r := range []Role{RoleRight, RoleLeft} {
				for _, e := range b[r] {
					if e.IsOnset() {
						onsetRole[e.Key] = r
					}
				}
			}
			for _, r := range []Role{RoleRight, RoleLeft} {
				for _, e := range b[r] {
					if !e.IsRelease() {
						continue
					}
					if want, ok := onsetRole[e.Key]; ok {
						assert.Equal(t, want, r, "release of %v", e.Key)
					}
				}
			}
			for _, e := range b[RoleMeta] {
				assert.Equal(t, KindOther, e.Kind)
			}
		})
	}
}

func TestVariantsDoNotShareNoteState(t *testing.T) {
	// pitch 55 goes left under the split point but right under centroids (40, 58)
	events := Flatten(perf(480,
		trackAt(
			timed{0, performance.NoteOn(0, 40, 1)},
			timed{0, performance.NoteOn(0, 55, 1)},
			timed{0, performance.NoteOn(0, 58, 1)},
			timed{10, performance.NoteOff(0, 55)},
		),
	))
	c := &Centroids{Low: 40, High: 58}

	simple := Partition(events, FixedThreshold{SplitPoint: 60})
	smart := Partition(events, AdaptiveCentroid{Centroids: c, SplitPoint: 60})

	assert.Len(t, simple[RoleLeft], 4)
	assert.Len(t, simple[RoleRight], 0)
	assert.Len(t, smart[RoleLeft], 1)
	assert.Len(t, smart[RoleRight], 3)
}

func TestDegenerateFallbackMatchesSimple(t *testing.T) {
	p := perf(480, trackAt(
		timed{0, performance.Message{0xFF, 0x51, 0x03, 0x07, 0xA1, 0x20}},
		timed{10, performance.NoteOff(0, 72)},
		timed{20, performance.NoteOn(0, 40, 0)},
		timed{30, performance.EndOfTrack()},
	))

	res, err := New(DefaultOptions(), nil).Split(p)
	require.NoError(t, err)

	assert.Nil(t, res.Centroids)
	assert.Equal(t, res.Simple.Performance.Tracks, res.Smart.Performance.Tracks)
	assert.Equal(t, res.Simple.Stats, res.Smart.Stats)
}

func TestSplitNil(t *testing.T) {
	_, err := New(DefaultOptions(), nil).Split(nil)
	assert.Error(t, err)
	_, err = New(DefaultOptions(), nil).Analyze(nil)
	assert.Error(t, err)
}

func TestAnalyze(t *testing.T) {
	a, err := New(DefaultOptions(), nil).Analyze(mixedPerformance())
	require.NoError(t, err)

	assert.Equal(t, uint16(960), a.Resolution)
	assert.Equal(t, 2, a.Tracks)
	assert.Equal(t, 16, a.Events)
	assert.Equal(t, 5, a.Onsets)
	assert.Equal(t, uint8(36), a.MinPitch)
	assert.Equal(t, uint8(72), a.MaxPitch)
	require.NotNil(t, a.Centroids)
	assert.Less(t, a.Centroids.Low, a.Centroids.High)
}

func TestSplitFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "etude.mid")
	require.NoError(t, performance.WriteFile(scenario(), src))

	fr, err := New(DefaultOptions(), nil).SplitFile(context.Background(), src, DefaultFileOptions())
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "etude_simple.mid"), fr.SimplePath)
	assert.Equal(t, filepath.Join(dir, "etude_smart.mid"), fr.SmartPath)
	assert.Equal(t, fr.SmartPath, fr.Path(VariantSmart))

	for _, path := range []string{fr.SimplePath, fr.SmartPath} {
		p, err := performance.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, uint16(480), p.Resolution)
		assert.Len(t, p.Tracks, 3)
	}
}

func TestSplitFileOutputDir(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "etude.mid")
	require.NoError(t, performance.WriteFile(scenario(), src))

	out := filepath.Join(dir, "split")
	fopts := FileOptions{OutputDir: out, SimpleSuffix: "_a", SmartSuffix: "_b"}
	fr, err := New(DefaultOptions(), nil).SplitFile(context.Background(), src, fopts)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(out, "etude_a.mid"), fr.SimplePath)
	assert.FileExists(t, fr.SmartPath)
}

func TestSplitFileMalformedWritesNothing(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "broken.mid")
	require.NoError(t, os.WriteFile(src, []byte("MThd garbage"), 0644))

	_, err := New(DefaultOptions(), nil).SplitFile(context.Background(), src, DefaultFileOptions())
	assert.ErrorIs(t, err, performance.ErrMalformed)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSplitFileCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(DefaultOptions(), nil).SplitFile(ctx, "unused.mid", DefaultFileOptions())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSplitFileFailedWriteLeavesNoOutput(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "etude.mid")
	require.NoError(t, performance.WriteFile(scenario(), src))

	// a directory in the way of the smart output makes its rename fail
	require.NoError(t, os.Mkdir(filepath.Join(dir, "etude_smart.mid"), 0755))

	_, err := New(DefaultOptions(), nil).SplitFile(context.Background(), src, DefaultFileOptions())
	require.Error(t, err)

	assert.NoFileExists(t, filepath.Join(dir, "etude_simple.mid"))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "only the source and the blocking directory should remain")
}

func TestSplitFileFailedWriteKeepsPreviousOutput(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "etude.mid")
	require.NoError(t, performance.WriteFile(scenario(), src))

	previous := filepath.Join(dir, "etude_simple.mid")
	require.NoError(t, os.WriteFile(previous, []byte("earlier run"), 0644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "etude_smart.mid"), 0755))

	_, err := New(DefaultOptions(), nil).SplitFile(context.Background(), src, DefaultFileOptions())
	require.Error(t, err)

	data, err := os.ReadFile(previous)
	require.NoError(t, err)
	assert.Equal(t, "earlier run", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 3, "no temp or backup files should remain")
}

func TestFileOptionsOutputs(t *testing.T) {
	got := FileOptions{OutputDir: "out"}.Outputs(filepath.Join("a", "etude.mid"))
	assert.Equal(t, []string{
		filepath.Join("out", "etude_simple.mid"),
		filepath.Join("out", "etude_smart.mid"),
	}, got)
}
