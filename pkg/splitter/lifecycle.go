package splitter

// Role is the role of an output track. Tracks are always emitted in Role order.
type Role int

const (
	RoleMeta Role = iota
	RoleRight
	RoleLeft
	numRoles
)

// String implements fmt.Stringer
func (r Role) String() string {
	switch r {
	case RoleMeta:
		return "meta"
	case RoleRight:
		return "right"
	case RoleLeft:
		return "left"
	default:
		return "unknown"
	}
}

func roleOf(h Hand) Role {
	if h == Right {
		return RoleRight
	}
	return RoleLeft
}

// lifecycle routes events to buckets and keeps each release in the bucket of
// its onset. One lifecycle serves exactly one output build.
type lifecycle struct {
	policy Policy
	active map[NoteKey]Hand
}

func newLifecycle(policy Policy) *lifecycle {
	return &lifecycle{
		policy: policy,
		active: make(map[NoteKey]Hand),
	}
}

// route returns the bucket for e
func (l *lifecycle) route(e Event) Role {
	switch {
	case e.IsOnset():
		// a re-onset of a still-active key overwrites its hand
		hand := Assign(l.policy, e.Key.Pitch)
		l.active[e.Key] = hand
		return roleOf(hand)
	case e.IsRelease():
		hand, ok := l.active[e.Key]
		if ok {
			delete(l.active, e.Key)
		} else {
			hand = Assign(l.policy, e.Key.Pitch)
		}
		return roleOf(hand)
	default:
		return RoleMeta
	}
}

// pending returns the number of onsets still waiting for a release
func (l *lifecycle) pending() int {
	return len(l.active)
}
