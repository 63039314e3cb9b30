// Package advisory deduplicates upstream advisories against a monotonic
// seen-set while keeping a wholesale snapshot of whatever upstream currently
// reports active.
package advisory

import "skywatch/internal/noaa"

// Mirror tracks which advisory identifiers have already been observed. An
// identifier enters the seen-set on first observation and never leaves it:
// an advisory that disappears and later reappears under the same identifier
// is not re-broadcast. The snapshot, by contrast, is replaced on every poll.
type Mirror struct {
	seen     map[string]struct{}
	snapshot []noaa.Advisory
}

// NewMirror creates an empty mirror.
func NewMirror() *Mirror {
	return &Mirror{seen: make(map[string]struct{})}
}

// Observe records one successful upstream poll. It returns the advisories
// whose identifiers were not previously seen, marks them seen, and replaces
// the snapshot with the fetched set regardless of whether anything was new.
// Callers must not invoke Observe on a failed fetch; a failure leaves both
// the snapshot and the seen-set untouched by simply not being observed.
func (m *Mirror) Observe(fetched []noaa.Advisory) []noaa.Advisory {
	var fresh []noaa.Advisory
	for _, a := range fetched {
		if _, ok := m.seen[a.ID]; ok {
			continue
		}
		m.seen[a.ID] = struct{}{}
		fresh = append(fresh, a)
	}

	m.snapshot = make([]noaa.Advisory, len(fetched))
	copy(m.snapshot, fetched)
	return fresh
}

// Snapshot returns the advisory set from the most recent successful poll.
func (m *Mirror) Snapshot() []noaa.Advisory {
	out := make([]noaa.Advisory, len(m.snapshot))
	copy(out, m.snapshot)
	return out
}

// Seed marks advisories as seen without treating them as new, for the
// initial fetch performed before monitoring starts.
func (m *Mirror) Seed(fetched []noaa.Advisory) {
	for _, a := range fetched {
		m.seen[a.ID] = struct{}{}
	}
	m.snapshot = make([]noaa.Advisory, len(fetched))
	copy(m.snapshot, fetched)
}
