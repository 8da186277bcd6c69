package markers

import (
	"sort"
	"strconv"
	"sync"
)

type Geometry struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
}

type Properties struct {
	GameID       string `json:"game_id"`
	GameType     string `json:"game_type"`
	LocationName string `json:"location_name,omitempty"`
	Address      string `json:"address"`
	GameDate     string `json:"game_date"`
	StartTime    string `json:"start_time"`
}

type Feature struct {
	Type       string     `json:"type"`
	ID         string     `json:"id"`
	Geometry   Geometry   `json:"geometry"`
	Properties Properties `json:"properties"`
}

type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// Layer is a Surface kept in memory and served to map clients as GeoJSON.
// Every change bumps the revision, which clients use as a cache validator.
type Layer struct {
	mu       sync.RWMutex
	next     Handle
	revision uint64
	features map[Handle]Marker
}

func NewLayer() *Layer {
	return &Layer{features: make(map[Handle]Marker)}
}

func (l *Layer) Add(m Marker) Handle {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.next++
	l.features[l.next] = m
	l.revision++
	return l.next
}

func (l *Layer) Remove(h Handle) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.features[h]; !ok {
		return
	}
	delete(l.features, h)
	l.revision++
}

// Snapshot returns the features in placement order with the revision they
// belong to.
func (l *Layer) Snapshot() (FeatureCollection, uint64) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	handles := make([]Handle, 0, len(l.features))
	for h := range l.features {
		handles = append(handles, h)
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })

	fc := FeatureCollection{Type: "FeatureCollection", Features: make([]Feature, 0, len(handles))}
	for _, h := range handles {
		m := l.features[h]
		fc.Features = append(fc.Features, Feature{
			Type:     "Feature",
			ID:       m.GameID.String(),
			Geometry: Geometry{Type: "Point", Coordinates: [2]float64{m.Lng, m.Lat}},
			Properties: Properties{
				GameID:       m.GameID.String(),
				GameType:     m.GameType,
				LocationName: m.LocationName,
				Address:      m.Address,
				GameDate:     m.GameDate,
				StartTime:    m.StartTime,
			},
		})
	}
	return fc, l.revision
}

// ETag is the quoted revision.
func ETag(revision uint64) string {
	return `"` + strconv.FormatUint(revision, 10) + `"`
}
