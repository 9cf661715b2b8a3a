package splitter

import (
	"fmt"
	"math"
	"slices"
)

const (
	// MaxIterations bounds the k-means refinement loop
	MaxIterations = 20
	// ConvergenceTolerance is the absolute centroid movement below which
	// iteration stops. It does not scale with the pitch range.
	ConvergenceTolerance = 1e-6
)

// Centroids is the pair of cluster centres over onset pitches, Low <= High
type Centroids struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// String implements fmt.Stringer
func (c Centroids) String() string {
	return fmt.Sprintf("(%.2f, %.2f)", c.Low, c.High)
}

// Midpoint returns the pitch halfway between the centroids
func (c Centroids) Midpoint() float64 {
	return (c.Low + c.High) / 2
}

// OnsetPitches returns the pitch of every onset event, in stream order
func OnsetPitches(events []Event) []float64 {
	var pitches []float64
	for _, e := range events {
		if e.IsOnset() {
			pitches = append(pitches, float64(e.Key.Pitch))
		}
	}
	return pitches
}

// ClusterPitches runs KMeans1D over the onset pitches of events. It returns
// nil when there are no onsets, in which case no clustering is possible.
func ClusterPitches(events []Event) *Centroids {
	c, ok := KMeans1D(OnsetPitches(events))
	if !ok {
		return nil
	}
	return &c
}

// KMeans1D partitions values into two clusters and returns their centres.
// ok is false for an empty input.
func KMeans1D(values []float64) (c Centroids, ok bool) {
	if len(values) == 0 {
		return Centroids{}, false
	}
	low, high, _ := kmeans1D(values)
	return Centroids{Low: low, High: high}, true
}

// kmeans1D also reports how many refinement iterations ran
func kmeans1D(values []float64) (low, high float64, iterations int) {
	low, high = slices.Min(values), slices.Max(values)
	if low == high {
		return low, high, 0
	}

	for iterations < MaxIterations {
		iterations++

		var sumLow, sumHigh float64
		var nLow, nHigh int
		for _, v := range values {
			// ties go to the low cluster
			if math.Abs(v-low) <= math.Abs(v-high) {
				sumLow += v
				nLow++
			} else {
				sumHigh += v
				nHigh++
			}
		}

		newLow, newHigh := low, high
		if nLow > 0 {
			newLow = sumLow / float64(nLow)
		}
		if nHigh > 0 {
			newHigh = sumHigh / float64(nHigh)
		}

		converged := math.Abs(newLow-low) < ConvergenceTolerance &&
			math.Abs(newHigh-high) < ConvergenceTolerance
		low, high = newLow, newHigh
		if converged {
			break
		}
	}

	if low > high {
		low, high = high, low
	}
	return low, high, iterations
}
