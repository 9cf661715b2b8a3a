package splitter

import (
	"fmt"
	"math"
)

// DefaultSplitPoint is middle C
const DefaultSplitPoint = 60

// Hand is the hand a note is assigned to
type Hand uint8

const (
	Left Hand = iota
	Right
)

// String implements fmt.Stringer
func (h Hand) String() string {
	if h == Right {
		return "right"
	}
	return "left"
}

// Policy is a hand assignment policy. The set of policies is closed:
// FixedThreshold and AdaptiveCentroid.
type Policy interface {
	policyName() string
}

// FixedThreshold assigns pitches at or above SplitPoint to the right hand
type FixedThreshold struct {
	SplitPoint int
}

// AdaptiveCentroid assigns a pitch to the hand whose centroid is strictly
// closer; equal distances go left. With nil Centroids it behaves as
// FixedThreshold{SplitPoint}.
type AdaptiveCentroid struct {
	Centroids  *Centroids
	SplitPoint int
}

func (FixedThreshold) policyName() string   { return "fixed-threshold" }
func (AdaptiveCentroid) policyName() string { return "adaptive-centroid" }

// PolicyName returns a human-readable name for p
func PolicyName(p Policy) string {
	return p.policyName()
}

// Assign evaluates p for pitch
func Assign(p Policy, pitch uint8) Hand {
	switch p := p.(type) {
	case FixedThreshold:
		return fixedThreshold(int(pitch), p.SplitPoint)
	case AdaptiveCentroid:
		if p.Centroids == nil {
			return fixedThreshold(int(pitch), p.SplitPoint)
		}
		v := float64(pitch)
		if math.Abs(v-p.Centroids.High) < math.Abs(v-p.Centroids.Low) {
			return Right
		}
		return Left
	default:
		panic(fmt.Sprintf("splitter: unknown policy %T", p))
	}
}

func fixedThreshold(pitch, splitPoint int) Hand {
	if pitch >= splitPoint {
		return Right
	}
	return Left
}
