package repository

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/okian/xpand/internal/domain/model"
)

type pairKey struct {
	projectID int64
	vendorID  int64
}

// MemoryStore is an in-process Store guarded by a single RWMutex.
// Reads hand out copies so callers never alias stored slices.
type MemoryStore struct {
	mu sync.RWMutex

	clients  map[int64]model.Client
	projects map[int64]model.Project
	vendors  map[int64]model.Vendor
	matches  map[int64]model.Match
	byPair   map[pairKey]int64
	health   map[int64]model.VendorHealth

	lastClientID  int64
	lastProjectID int64
	lastVendorID  int64
	lastMatchID   int64
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		clients:  make(map[int64]model.Client),
		projects: make(map[int64]model.Project),
		vendors:  make(map[int64]model.Vendor),
		matches:  make(map[int64]model.Match),
		byPair:   make(map[pairKey]int64),
		health:   make(map[int64]model.VendorHealth),
	}
}

// SaveClient implements Store.SaveClient.
func (s *MemoryStore) SaveClient(_ context.Context, c model.Client) (model.Client, error) {
	c.ContactEmail = strings.TrimSpace(c.ContactEmail)
	if err := validateClient(c); err != nil {
		return model.Client{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c.ID = assignID(c.ID, &s.lastClientID)
	s.clients[c.ID] = c
	return c, nil
}

// SaveProject implements Store.SaveProject.
func (s *MemoryStore) SaveProject(_ context.Context, p model.Project) (model.Project, error) {
	p.Country = strings.ToUpper(strings.TrimSpace(p.Country))
	p.RequiredServices = normalizeTags(p.RequiredServices)
	if err := validateProject(p); err != nil {
		return model.Project{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.clients[p.ClientID]; !ok {
		return model.Project{}, fmt.Errorf("%w: unknown client %d", ErrInvalidProject, p.ClientID)
	}
	p.ID = assignID(p.ID, &s.lastProjectID)
	p.ClientName, p.ClientEmail = "", ""
	s.projects[p.ID] = p
	return s.projectLocked(p.ID), nil
}

// SaveVendor implements Store.SaveVendor.
func (s *MemoryStore) SaveVendor(_ context.Context, v model.Vendor) (model.Vendor, error) {
	v.Services = normalizeTags(v.Services)
	v.Countries = normalizeCountries(v.Countries)
	if err := validateVendor(v); err != nil {
		return model.Vendor{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	v.ID = assignID(v.ID, &s.lastVendorID)
	s.vendors[v.ID] = v
	return cloneVendor(v), nil
}

// ActiveProjectIDs implements Store.ActiveProjectIDs.
func (s *MemoryStore) ActiveProjectIDs(_ context.Context) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]int64, 0, len(s.projects))
	for id, p := range s.projects {
		if p.Status == model.ProjectActive {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

// Project implements Store.Project.
func (s *MemoryStore) Project(_ context.Context, id int64) (model.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.projects[id]; !ok {
		return model.Project{}, ErrNotFound
	}
	return s.projectLocked(id), nil
}

func (s *MemoryStore) projectLocked(id int64) model.Project {
	p := s.projects[id]
	p.RequiredServices = slices.Clone(p.RequiredServices)
	if c, ok := s.clients[p.ClientID]; ok {
		p.ClientName = c.CompanyName
		p.ClientEmail = c.ContactEmail
	}
	return p
}

// CandidateVendors implements Store.CandidateVendors.
func (s *MemoryStore) CandidateVendors(_ context.Context, country string, services []string) ([]model.Candidate, error) {
	country = strings.ToUpper(strings.TrimSpace(country))
	wanted := normalizeTags(services)
	if len(wanted) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Candidate
	for _, v := range s.vendors {
		if !v.Active || !slices.Contains(v.Countries, country) {
			continue
		}
		overlap := 0
		for _, svc := range wanted {
			if slices.Contains(v.Services, svc) {
				overlap++
			}
		}
		if overlap == 0 {
			continue
		}
		out = append(out, model.Candidate{
			VendorID:         v.ID,
			VendorName:       v.Name,
			Rating:           v.Rating,
			ResponseSLAHours: v.ResponseSLAHours,
			ServicesOverlap:  overlap,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VendorID < out[j].VendorID })
	return out, nil
}

// Vendor implements Store.Vendor.
func (s *MemoryStore) Vendor(_ context.Context, id int64) (model.Vendor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.vendors[id]
	if !ok {
		return model.Vendor{}, ErrNotFound
	}
	return cloneVendor(v), nil
}

// FindMatch implements Store.FindMatch.
func (s *MemoryStore) FindMatch(_ context.Context, projectID, vendorID int64) (model.Match, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byPair[pairKey{projectID, vendorID}]
	if !ok {
		return model.Match{}, false, nil
	}
	return s.matches[id], true, nil
}

// CreateMatch implements Store.CreateMatch.
func (s *MemoryStore) CreateMatch(_ context.Context, m model.Match) (model.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey{m.ProjectID, m.VendorID}
	if _, ok := s.byPair[key]; ok {
		return model.Match{}, ErrDuplicateMatch
	}
	s.lastMatchID++
	m.ID = s.lastMatchID
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = m.CreatedAt
	}
	s.matches[m.ID] = m
	s.byPair[key] = m.ID
	return m, nil
}

// UpdateMatch implements Store.UpdateMatch.
func (s *MemoryStore) UpdateMatch(_ context.Context, id int64, score float64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.matches[id]
	if !ok {
		return ErrNotFound
	}
	m.Score = score
	m.UpdatedAt = at
	s.matches[id] = m
	return nil
}

// TouchMatch implements Store.TouchMatch.
func (s *MemoryStore) TouchMatch(_ context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.matches[id]
	if !ok {
		return ErrNotFound
	}
	m.UpdatedAt = at
	s.matches[id] = m
	return nil
}

// MatchesByProject implements Store.MatchesByProject.
func (s *MemoryStore) MatchesByProject(_ context.Context, projectID int64) ([]model.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Match
	for _, m := range s.matches {
		if m.ProjectID == projectID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ActiveVendorMatches implements Store.ActiveVendorMatches.
func (s *MemoryStore) ActiveVendorMatches(_ context.Context) ([]model.VendorMatch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.VendorMatch
	for _, m := range s.matches {
		v, ok := s.vendors[m.VendorID]
		if !ok || !v.Active {
			continue
		}
		out = append(out, model.VendorMatch{Match: m, ResponseSLAHours: v.ResponseSLAHours})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// VendorHealth implements Store.VendorHealth.
func (s *MemoryStore) VendorHealth(_ context.Context, vendorID int64) (model.VendorHealth, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.health[vendorID]
	return h, ok, nil
}

// SaveVendorHealth implements Store.SaveVendorHealth.
func (s *MemoryStore) SaveVendorHealth(_ context.Context, h model.VendorHealth) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.vendors[h.VendorID]; !ok {
		return ErrNotFound
	}
	s.health[h.VendorID] = h
	return nil
}

// Stats implements Store.Stats.
func (s *MemoryStore) Stats(_ context.Context) (model.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := model.Stats{
		Projects: int64(len(s.projects)),
		Vendors:  int64(len(s.vendors)),
		Matches:  int64(len(s.matches)),
	}
	for _, p := range s.projects {
		if p.Status == model.ProjectActive {
			st.ActiveProjects++
		}
	}
	for _, v := range s.vendors {
		if v.Active {
			st.ActiveVendors++
		}
	}
	for _, h := range s.health {
		if h.SLAExpired {
			st.FlaggedVendors++
		}
	}
	return st, nil
}

// Close implements Store.Close.
func (s *MemoryStore) Close() error { return nil }

// assignID returns id, or the next sequence value when id is zero.
// Explicit ids move the sequence forward so later inserts never collide.
func assignID(id int64, last *int64) int64 {
	if id == 0 {
		*last++
		return *last
	}
	if id > *last {
		*last = id
	}
	return id
}

func cloneVendor(v model.Vendor) model.Vendor {
	v.Services = slices.Clone(v.Services)
	v.Countries = slices.Clone(v.Countries)
	return v
}
