package service

import (
	"fmt"
	"sort"
	"sync"

	"github.com/facebookgo/clock"
	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-geofence/internal/geofence"
)

// ResourceGeofences is the Event resource name for geofence mutations.
const ResourceGeofences = "geofences"

// GeofenceService manages the in-memory geofence collection.
// Nothing is persisted; the collection lives as long as the service.
type GeofenceService struct {
	bus       *EventBus
	clock     clock.Clock
	geofences map[string]Geofence
	mu        sync.RWMutex
}

// NewGeofenceService creates an empty geofence service publishing to bus.
// A nil clock uses the system clock.
func NewGeofenceService(bus *EventBus, clk clock.Clock) *GeofenceService {
	if clk == nil {
		clk = clock.New()
	}
	if bus == nil {
		bus = NewEventBus()
	}
	return &GeofenceService{
		bus:       bus,
		clock:     clk,
		geofences: make(map[string]Geofence),
	}
}

// Bus returns the event bus mutations are published on.
func (s *GeofenceService) Bus() *EventBus {
	return s.bus
}

// List returns up to limit geofences sorted by ID starting at offset,
// along with the total number of geofences. A limit <= 0 returns all.
func (s *GeofenceService) List(offset, limit int) ([]Geofence, int) {
	s.mu.RLock()
	ids := make([]string, 0, len(s.geofences))
	for id := range s.geofences {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	total := len(ids)
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}

	result := make([]Geofence, 0, end-offset)
	for _, id := range ids[offset:end] {
		result = append(result, s.geofences[id])
	}
	s.mu.RUnlock()

	return result, total
}

// Get returns a geofence by ID.
func (s *GeofenceService) Get(id string) (Geofence, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.geofences[id]
	return g, ok
}

// Save creates the geofence or replaces the polygon of an existing one.
// It reports whether the geofence was newly created.
func (s *GeofenceService) Save(id string, poly orb.Polygon) (Geofence, bool, error) {
	if err := geofence.ValidateGeofenceID(id); err != nil {
		return Geofence{}, false, err
	}
	if err := geofence.ValidatePolygon(poly); err != nil {
		return Geofence{}, false, fmt.Errorf("geofence %q: %w", id, err)
	}

	now := s.clock.Now().UTC()

	s.mu.Lock()
	g, exists := s.geofences[id]
	if !exists {
		g = Geofence{ID: id, CreateTime: now}
	}
	g.Geometry = Geometry{Polygon: poly.Clone()}
	g.UpdateTime = now
	s.geofences[id] = g
	s.mu.Unlock()

	action := ActionUpdated
	if !exists {
		action = ActionCreated
	}
	s.bus.Publish(Event{Resource: ResourceGeofences, Action: action, ID: id, Time: now})

	return g, !exists, nil
}

// Delete removes the given geofences and returns the IDs it could not remove.
func (s *GeofenceService) Delete(ids ...string) []DeleteFailure {
	var failures []DeleteFailure
	var deleted []string

	s.mu.Lock()
	for _, id := range ids {
		if _, ok := s.geofences[id]; !ok {
			failures = append(failures, DeleteFailure{ID: id, Reason: "not found"})
			continue
		}
		delete(s.geofences, id)
		deleted = append(deleted, id)
	}
	s.mu.Unlock()

	now := s.clock.Now().UTC()
	for _, id := range deleted {
		s.bus.Publish(Event{Resource: ResourceGeofences, Action: ActionDeleted, ID: id, Time: now})
	}
	return failures
}
