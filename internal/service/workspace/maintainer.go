package workspace

// Maintainer decides when an empty workspace needs a default canvas. It fires
// at most once per empty condition: the flag is reset only when the canvas
// count becomes non-zero again (or a creation attempt fails).
//
// Not safe for concurrent use; the Workspace calls it under its lock.
type Maintainer struct {
	fired bool
}

// ShouldCreate reports whether exactly one default canvas must be created now.
// loaded distinguishes "not queried yet" from "genuinely empty".
func (m *Maintainer) ShouldCreate(count int, loaded, deletionInFlight bool) bool {
	if count > 0 {
		m.fired = false
		return false
	}
	if !loaded || deletionInFlight || m.fired {
		return false
	}
	m.fired = true
	return true
}

// Observe re-arms the maintainer once the workspace is non-empty again.
func (m *Maintainer) Observe(count int) {
	if count > 0 {
		m.fired = false
	}
}

// Reset re-arms the maintainer after a failed creation.
func (m *Maintainer) Reset() {
	m.fired = false
}
