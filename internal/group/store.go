package group

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"nc-warden.io/warden/internal/controller"
	apperrors "nc-warden.io/warden/internal/pkg/errors"
	"nc-warden.io/warden/internal/storage"
)

// Blobs is the persistence surface the store needs.
type Blobs interface {
	Get(name string, v interface{}) error
	Set(name string, v interface{}) error
}

// document is the on-disk shape of the group store.
type document struct {
	Groups []Group `json:"groups" yaml:"groups"`
}

// Store owns persisted group definitions. Every mutation is a
// read-modify-write of the whole document under one lock, so a single
// file write is the atomicity boundary.
type Store struct {
	mu    sync.Mutex
	blobs Blobs
}

// NewStore creates a group store over the given blob persistence.
func NewStore(blobs Blobs) *Store {
	return &Store{blobs: blobs}
}

// Create validates and persists a new group. The identifier is the slug
// of the name; a name normalizing to an existing identifier fails with
// DuplicateGroupError.
func (s *Store) Create(name, description string, kind Kind, members []Member, rules []Rule) (*Group, error) {
	id := Slugify(name)
	if id == "" {
		return nil, apperrors.BadRequest(apperrors.CodeValidationFailed, "group name must contain letters or digits")
	}

	g := &Group{
		ID:          id,
		Name:        strings.TrimSpace(name),
		Description: description,
		Kind:        kind,
		Members:     normalizeMembers(members),
		Rules:       rules,
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	byID, err := s.load()
	if err != nil {
		return nil, err
	}
	if _, exists := byID[id]; exists {
		return nil, apperrors.ErrGroupExistsf(id)
	}
	byID[id] = g
	if err := s.save(byID); err != nil {
		return nil, err
	}
	return g.clone(), nil
}

// Get returns a group by identifier. A display name is accepted too:
// it normalizes to the same slug.
func (s *Store) Get(ref string) (*Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID, err := s.load()
	if err != nil {
		return nil, err
	}
	g, err := find(byID, ref)
	if err != nil {
		return nil, err
	}
	return g.clone(), nil
}

// List returns all groups sorted by identifier.
func (s *Store) List() ([]Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID, err := s.load()
	if err != nil {
		return nil, err
	}
	return sorted(byID), nil
}

// Update carries the optional fields of an edit; nil means unchanged.
// Rules apply to auto groups only.
type Update struct {
	Name        *string
	Description *string
	Rules       []Rule
}

// Edit renames or re-describes a group, and for auto groups replaces
// the rule set. The identifier never changes.
func (s *Store) Edit(ref string, up Update) (*Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID, err := s.load()
	if err != nil {
		return nil, err
	}
	g, err := find(byID, ref)
	if err != nil {
		return nil, err
	}

	if up.Rules != nil {
		if g.Kind != KindAuto {
			return nil, apperrors.ErrInvalidOperationf("group " + g.ID + " is static; it has members, not rules")
		}
		if err := ValidateRules(up.Rules); err != nil {
			return nil, err
		}
		g.Rules = up.Rules
	}
	if up.Name != nil {
		if strings.TrimSpace(*up.Name) == "" {
			return nil, apperrors.BadRequest(apperrors.CodeValidationFailed, "group name must not be empty")
		}
		g.Name = strings.TrimSpace(*up.Name)
	}
	if up.Description != nil {
		g.Description = *up.Description
	}

	if err := s.save(byID); err != nil {
		return nil, err
	}
	return g.clone(), nil
}

// Delete removes a group and its membership unconditionally.
func (s *Store) Delete(ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID, err := s.load()
	if err != nil {
		return err
	}
	g, err := find(byID, ref)
	if err != nil {
		return err
	}
	delete(byID, g.ID)
	return s.save(byID)
}

// AddMembers adds MACs to a static group. Adding a MAC already present
// is idempotent; a non-empty alias on a duplicate updates the alias.
// Returns the updated group and how many members are new.
func (s *Store) AddMembers(ref string, members []Member) (*Group, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID, err := s.load()
	if err != nil {
		return nil, 0, err
	}
	g, err := find(byID, ref)
	if err != nil {
		return nil, 0, err
	}
	if !g.IsStatic() {
		return nil, 0, apperrors.ErrInvalidOperationf("group " + g.ID + " is an auto group; edit its rules instead")
	}

	added := 0
	for _, m := range normalizeMembers(members) {
		if !controller.IsMAC(m.MAC) {
			return nil, 0, apperrors.BadRequest(apperrors.CodeValidationFailed, "invalid MAC address: "+m.MAC)
		}
		if i := g.memberIndex(m.MAC); i >= 0 {
			if m.Alias != "" {
				g.Members[i].Alias = m.Alias
			}
			continue
		}
		g.Members = append(g.Members, m)
		added++
	}
	if err := g.Validate(); err != nil {
		return nil, 0, err
	}

	if err := s.save(byID); err != nil {
		return nil, 0, err
	}
	return g.clone(), added, nil
}

// RemoveMembers removes members referenced by MAC or alias from a
// static group. Every reference must resolve; nothing is written
// otherwise.
func (s *Store) RemoveMembers(ref string, memberRefs []string) (*Group, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID, err := s.load()
	if err != nil {
		return nil, 0, err
	}
	g, err := find(byID, ref)
	if err != nil {
		return nil, 0, err
	}
	if !g.IsStatic() {
		return nil, 0, apperrors.ErrInvalidOperationf("group " + g.ID + " is an auto group; edit its rules instead")
	}

	drop := make(map[int]bool, len(memberRefs))
	for _, mref := range memberRefs {
		i := g.memberIndex(mref)
		if i < 0 {
			return nil, 0, apperrors.BadRequest(apperrors.CodeValidationFailed,
				fmt.Sprintf("no member %q in group %s", mref, g.ID))
		}
		drop[i] = true
	}

	kept := g.Members[:0]
	for i, m := range g.Members {
		if !drop[i] {
			kept = append(kept, m)
		}
	}
	removed := len(g.Members) - len(kept)
	g.Members = kept

	if err := s.save(byID); err != nil {
		return nil, 0, err
	}
	return g.clone(), removed, nil
}

// SetAlias sets or clears (empty alias) the alias of a static group
// member. Aliases are unique within a group.
func (s *Store) SetAlias(ref, mac, alias string) (*Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byID, err := s.load()
	if err != nil {
		return nil, err
	}
	g, err := find(byID, ref)
	if err != nil {
		return nil, err
	}
	if !g.IsStatic() {
		return nil, apperrors.ErrInvalidOperationf("group " + g.ID + " is an auto group; its members have no aliases")
	}

	i := g.memberIndex(mac)
	if i < 0 {
		return nil, apperrors.BadRequest(apperrors.CodeValidationFailed,
			fmt.Sprintf("no member %q in group %s", mac, g.ID))
	}
	for j, m := range g.Members {
		if j != i && alias != "" && strings.EqualFold(m.Alias, alias) {
			return nil, apperrors.BadRequest(apperrors.CodeValidationFailed,
				fmt.Sprintf("alias %q already used by %s", alias, m.MAC))
		}
	}
	g.Members[i].Alias = alias

	if err := s.save(byID); err != nil {
		return nil, err
	}
	return g.clone(), nil
}

// Export returns every group, sorted by identifier, for serialization.
func (s *Store) Export() ([]Group, error) {
	return s.List()
}

// ImportResult reports what an import changed.
type ImportResult struct {
	Added    int `json:"added"`
	Updated  int `json:"updated"`
	Removed  int `json:"removed"`
	Imported int `json:"imported"`
}

// Import loads groups into the store. With replace, incoming groups
// become the entire store; otherwise they merge over existing groups by
// identifier, incoming winning. Every incoming group is validated
// first; an invalid one aborts the import before anything is written.
func (s *Store) Import(groups []Group, replace bool) (ImportResult, error) {
	incoming := make(map[string]*Group, len(groups))
	order := make([]string, 0, len(groups))
	for i := range groups {
		g := groups[i].clone()
		if g.ID == "" {
			g.ID = Slugify(g.Name)
		}
		g.Members = normalizeMembers(g.Members)
		if err := g.Validate(); err != nil {
			return ImportResult{}, err
		}
		if _, dup := incoming[g.ID]; !dup {
			order = append(order, g.ID)
		}
		incoming[g.ID] = g
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	byID, err := s.load()
	if err != nil {
		return ImportResult{}, err
	}

	var res ImportResult
	res.Imported = len(incoming)
	prior := byID
	if replace {
		for id := range prior {
			if _, kept := incoming[id]; !kept {
				res.Removed++
			}
		}
		byID = make(map[string]*Group, len(incoming))
	}
	// A group that existed before a replace counts as updated, not
	// removed-and-added.
	for _, id := range order {
		if _, exists := prior[id]; exists {
			res.Updated++
		} else {
			res.Added++
		}
		byID[id] = incoming[id]
	}

	if err := s.save(byID); err != nil {
		return ImportResult{}, err
	}
	return res, nil
}

func (s *Store) load() (map[string]*Group, error) {
	var doc document
	if err := s.blobs.Get(storage.GroupsBlob, &doc); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return make(map[string]*Group), nil
		}
		return nil, fmt.Errorf("load groups: %w", err)
	}
	byID := make(map[string]*Group, len(doc.Groups))
	for i := range doc.Groups {
		g := doc.Groups[i]
		byID[g.ID] = &g
	}
	return byID, nil
}

func (s *Store) save(byID map[string]*Group) error {
	doc := document{Groups: sorted(byID)}
	if err := s.blobs.Set(storage.GroupsBlob, &doc); err != nil {
		return fmt.Errorf("save groups: %w", err)
	}
	return nil
}

func find(byID map[string]*Group, ref string) (*Group, error) {
	if g, ok := byID[ref]; ok {
		return g, nil
	}
	if g, ok := byID[Slugify(ref)]; ok {
		return g, nil
	}
	return nil, apperrors.ErrGroupNotFoundf(ref)
}

func sorted(byID map[string]*Group) []Group {
	out := make([]Group, 0, len(byID))
	for _, g := range byID {
		out = append(out, *g.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func normalizeMembers(members []Member) []Member {
	if len(members) == 0 {
		return nil
	}
	out := make([]Member, 0, len(members))
	for _, m := range members {
		m.MAC = controller.NormalizeMAC(m.MAC)
		m.Alias = strings.TrimSpace(m.Alias)
		out = append(out, m)
	}
	return out
}
