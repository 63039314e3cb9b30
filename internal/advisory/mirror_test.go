package advisory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"skywatch/internal/noaa"
)

func adv(id, event string) noaa.Advisory {
	return noaa.Advisory{ID: id, Event: event, Severity: "Moderate"}
}

func TestObserveReturnsOnlyUnseen(t *testing.T) {
	m := NewMirror()

	fresh := m.Observe([]noaa.Advisory{adv("a", "Flood Watch"), adv("b", "Wind Advisory")})
	require.Len(t, fresh, 2)

	fresh = m.Observe([]noaa.Advisory{adv("a", "Flood Watch"), adv("b", "Wind Advisory")})
	assert.Empty(t, fresh)

	fresh = m.Observe([]noaa.Advisory{adv("b", "Wind Advisory"), adv("c", "Heat Advisory")})
	require.Len(t, fresh, 1)
	assert.Equal(t, "c", fresh[0].ID)
}

func TestSeenSetIsMonotonic(t *testing.T) {
	m := NewMirror()

	m.Observe([]noaa.Advisory{adv("a", "Flood Watch")})
	m.Observe(nil) // advisory expired upstream
	assert.Empty(t, m.Snapshot())

	// Reappearance under the same identifier is not new.
	fresh := m.Observe([]noaa.Advisory{adv("a", "Flood Watch")})
	assert.Empty(t, fresh)
}

func TestSnapshotReplacedWholesale(t *testing.T) {
	m := NewMirror()

	m.Observe([]noaa.Advisory{adv("a", "Flood Watch"), adv("b", "Wind Advisory")})
	m.Observe([]noaa.Advisory{adv("c", "Heat Advisory")})

	snapshot := m.Snapshot()
	require.Len(t, snapshot, 1)
	assert.Equal(t, "c", snapshot[0].ID)
}

func TestSnapshotReturnsCopy(t *testing.T) {
	m := NewMirror()
	m.Observe([]noaa.Advisory{adv("a", "Flood Watch")})

	snapshot := m.Snapshot()
	snapshot[0].Event = "mutated"

	assert.Equal(t, "Flood Watch", m.Snapshot()[0].Event)
}

func TestSeedMarksSeenWithoutReportingNew(t *testing.T) {
	m := NewMirror()
	m.Seed([]noaa.Advisory{adv("a", "Flood Watch")})

	assert.Len(t, m.Snapshot(), 1)

	fresh := m.Observe([]noaa.Advisory{adv("a", "Flood Watch"), adv("b", "Wind Advisory")})
	require.Len(t, fresh, 1)
	assert.Equal(t, "b", fresh[0].ID)
}
