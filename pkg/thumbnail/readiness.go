package thumbnail

import "github.com/tauraamui/framegrab/pkg/videobackend"

// readiness tracks whether the underlying asset has loaded enough
// for seeks and captures to make sense. The transition from loading
// to ready happens at most once and never reverts.
type readiness struct {
	state videobackend.Status
}

// observe applies a status reported by the asset and returns true
// only on the single call which performed the loading to ready
// transition. Deciding what to do about the transition is left
// entirely to the caller.
func (r *readiness) observe(s videobackend.Status) bool {
	if r.state == videobackend.StatusReady {
		return false
	}
	if s == videobackend.StatusReady {
		r.state = videobackend.StatusReady
		return true
	}
	return false
}

func (r *readiness) isReady() bool {
	return r.state == videobackend.StatusReady
}
