package storage

import (
	"encoding/json"
	"sort"
	"sync"
)

// InMemoryStore is a map-backed EntityStore for tests and dry runs. Documents
// are round-tripped through JSON so that type behaviour (e.g. numbers coming
// back as float64, timestamps as strings) matches the persistent backends.
type InMemoryStore struct {
	mu         sync.RWMutex
	containers map[string]map[string]container // campaign -> kind -> container
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{containers: map[string]map[string]container{}}
}

func roundTrip(attrs Attrs) (Attrs, bool) {
	data, err := json.Marshal(attrs)
	if err != nil {
		return nil, false
	}
	var out Attrs
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, false
	}
	if out == nil {
		out = Attrs{}
	}
	return out, true
}

func (s *InMemoryStore) Save(campaignID, kind, id string, attrs Attrs) bool {
	doc, ok := roundTrip(attrs)
	if !ok {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.containers[campaignID] == nil {
		s.containers[campaignID] = map[string]container{}
	}
	if s.containers[campaignID][kind] == nil {
		s.containers[campaignID][kind] = container{}
	}
	s.containers[campaignID][kind][id] = doc
	return true
}

func (s *InMemoryStore) Load(campaignID, kind, id string) (Attrs, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	attrs, ok := s.containers[campaignID][kind][id]
	return attrs, ok
}

func (s *InMemoryStore) LoadAll(campaignID, kind string) []Attrs {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := s.containers[campaignID][kind]
	ids := make([]string, 0, len(c))
	for id := range c {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]Attrs, 0, len(c))
	for _, id := range ids {
		out = append(out, withID(id, c[id]))
	}
	return out
}

func (s *InMemoryStore) Delete(campaignID, kind, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.containers[campaignID][kind]
	if _, ok := c[id]; !ok {
		return false
	}
	delete(c, id)
	return true
}

func (s *InMemoryStore) ListCampaigns() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.containers))
	for id := range s.containers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
