package admin

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrAlreadyRegistered = errors.New("model already registered")
	ErrNotRegistered     = errors.New("model not registered")
)

// GroupModel is the name of the built-in group-permission model.
const GroupModel = "group"

// ModelAdmin is the console configuration of one model.
type ModelAdmin interface {
	ModelName() string
	VerboseNamePlural() string
}

// ModelEntry describes a registered model on the console index.
type ModelEntry struct {
	Name        string `json:"name"`
	VerboseName string `json:"verbose_name"`
}

// Site is the console's model registry.
type Site struct {
	mu     sync.RWMutex
	models map[string]ModelAdmin
}

// NewSite returns a registry that already carries the built-in group model.
func NewSite() *Site {
	return &Site{
		models: map[string]ModelAdmin{GroupModel: groupAdmin{}},
	}
}

func (s *Site) Register(m ModelAdmin) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := m.ModelName()
	if _, ok := s.models[name]; ok {
		return fmt.Errorf("%s: %w", name, ErrAlreadyRegistered)
	}
	s.models[name] = m
	return nil
}

func (s *Site) Unregister(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.models[name]; !ok {
		return fmt.Errorf("%s: %w", name, ErrNotRegistered)
	}
	delete(s.models, name)
	return nil
}

func (s *Site) IsRegistered(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.models[name]
	return ok
}

// Models lists the registered models sorted by name.
func (s *Site) Models() []ModelEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]ModelEntry, 0, len(s.models))
	for name, m := range s.models {
		entries = append(entries, ModelEntry{Name: name, VerboseName: m.VerboseNamePlural()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries
}

// Setup registers the account admin and removes the group model, since
// permissions are never granted through groups.
func Setup(site *Site, accounts *AccountAdmin) error {
	if err := site.Register(accounts); err != nil {
		return err
	}
	if site.IsRegistered(GroupModel) {
		if err := site.Unregister(GroupModel); err != nil {
			return err
		}
	}
	return nil
}

type groupAdmin struct{}

func (groupAdmin) ModelName() string         { return GroupModel }
func (groupAdmin) VerboseNamePlural() string { return "Groups" }
