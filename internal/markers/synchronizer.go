// Package markers keeps one map marker per active game.
package markers

import (
	"math"
	"sync"

	"github.com/bananalabs-oss/powkie/internal/metrics"
	"github.com/bananalabs-oss/powkie/internal/models"
	"github.com/google/uuid"
)

type Marker struct {
	GameID       uuid.UUID
	Lng          float64
	Lat          float64
	GameType     string
	LocationName string
	Address      string
	GameDate     string
	StartTime    string
}

// Handle identifies a marker placed on a Surface.
type Handle uint64

// Surface is whatever draws the markers.
type Surface interface {
	Add(m Marker) Handle
	Remove(h Handle)
}

type placed struct {
	handle Handle
	marker Marker
	gen    uint64
}

// Synchronizer owns the id -> marker registry. Every marker it places is
// removed through it; nothing else touches the surface.
//
// Every placement and removal advances a generation counter. A caller that
// loads games outside the lock records Generation first and passes it to
// SyncSince, so changes made while the load was in flight are not undone.
type Synchronizer struct {
	mu       sync.Mutex
	surface  Surface
	placed   map[uuid.UUID]placed
	deleted  map[uuid.UUID]uint64
	gen      uint64
	synced   uint64
	onSelect func(uuid.UUID)
	metrics  *metrics.Metrics
}

func NewSynchronizer(surface Surface, m *metrics.Metrics) *Synchronizer {
	return &Synchronizer{
		surface: surface,
		placed:  make(map[uuid.UUID]placed),
		deleted: make(map[uuid.UUID]uint64),
		metrics: m,
	}
}

// Generation is the current value of the change counter.
func (s *Synchronizer) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// OnSelect registers the hook run when a marker is clicked.
func (s *Synchronizer) OnSelect(fn func(gameID uuid.UUID)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onSelect = fn
}

func validCoord(v *float64, limit float64) bool {
	return v != nil && !math.IsNaN(*v) && !math.IsInf(*v, 0) && math.Abs(*v) <= limit
}

// MarkerFor returns the marker of g, or false when g has no usable
// coordinates.
func MarkerFor(g *models.Game) (Marker, bool) {
	if !validCoord(g.Lng, 180) || !validCoord(g.Lat, 90) {
		return Marker{}, false
	}

	m := Marker{
		GameID:    g.ID,
		Lng:       *g.Lng,
		Lat:       *g.Lat,
		GameType:  g.GameType,
		Address:   g.Address,
		GameDate:  g.GameDate,
		StartTime: g.StartTime,
	}
	if g.LocationName != nil {
		m.LocationName = *g.LocationName
	}
	return m, true
}

// Sync makes the surface show exactly the games with usable coordinates.
// Unchanged markers stay where they are; a game whose marker changed (for
// example after an address edit) has its marker replaced.
func (s *Synchronizer) Sync(games []models.Game) (added, removed int) {
	return s.SyncSince(s.Generation(), games)
}

// SyncSince is Sync for a list loaded after Generation returned since.
// Markers placed or removed after since are left as they are. A list older
// than one already applied is ignored.
func (s *Synchronizer) SyncSince(since uint64, games []models.Game) (added, removed int) {
	want := make(map[uuid.UUID]Marker, len(games))
	for i := range games {
		if m, ok := MarkerFor(&games[i]); ok {
			want[m.GameID] = m
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if since < s.synced {
		return 0, 0
	}
	s.synced = since

	for id, gen := range s.deleted {
		if gen > since {
			delete(want, id)
		} else {
			delete(s.deleted, id)
		}
	}

	for id, p := range s.placed {
		if p.gen > since {
			delete(want, id)
			continue
		}
		if m, ok := want[id]; ok && m == p.marker {
			continue
		}
		s.surface.Remove(p.handle)
		delete(s.placed, id)
		removed++
	}

	for id, m := range want {
		if _, ok := s.placed[id]; ok {
			continue
		}
		s.gen++
		s.placed[id] = placed{handle: s.surface.Add(m), marker: m, gen: s.gen}
		added++
	}

	s.metrics.MapMarkers(len(s.placed))
	return added, removed
}

// Remove drops the marker of a single game, reporting whether it had one.
func (s *Synchronizer) Remove(gameID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen++
	s.deleted[gameID] = s.gen

	p, ok := s.placed[gameID]
	if !ok {
		return false
	}
	s.surface.Remove(p.handle)
	delete(s.placed, gameID)
	s.metrics.MapMarkers(len(s.placed))
	return true
}

// Select is a marker click. It works for any viewer; unknown ids report false.
func (s *Synchronizer) Select(gameID uuid.UUID) bool {
	s.mu.Lock()
	_, ok := s.placed[gameID]
	hook := s.onSelect
	s.mu.Unlock()

	if !ok {
		return false
	}
	if hook != nil {
		hook(gameID)
	}
	return true
}

func (s *Synchronizer) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.placed)
}
