package store

import (
	"strconv"
	"strings"
	"sync"
	"unicode"

	"opiniongraph/internal/opinion"
)

// CategoryStore persists categories as a single JSON document with
// find-or-create semantics. Lookups are case-insensitive on name.
type CategoryStore struct {
	path string

	mu         sync.Mutex
	loaded     bool
	categories map[string]*opinion.Category // keyed by id
	order      []string
}

// NewCategoryStore returns a store backed by the given file.
func NewCategoryStore(path string) *CategoryStore {
	return &CategoryStore{path: path}
}

type categoryDocument struct {
	Categories []*opinion.Category `json:"categories"`
}

func (s *CategoryStore) load() error {
	if s.loaded {
		return nil
	}
	var doc categoryDocument
	if _, err := readJSON(s.path, &doc); err != nil {
		return err
	}
	s.categories = make(map[string]*opinion.Category, len(doc.Categories))
	s.order = s.order[:0]
	for _, category := range doc.Categories {
		if category == nil || category.ID == "" {
			continue
		}
		if _, exists := s.categories[category.ID]; exists {
			continue
		}
		s.categories[category.ID] = category
		s.order = append(s.order, category.ID)
	}
	s.loaded = true
	return nil
}

func (s *CategoryStore) persist() error {
	doc := categoryDocument{Categories: make([]*opinion.Category, 0, len(s.order))}
	for _, id := range s.order {
		doc.Categories = append(doc.Categories, s.categories[id])
	}
	return writeJSONAtomic(s.path, doc)
}

// All returns the stored categories in insertion order.
func (s *CategoryStore) All() ([]*opinion.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(); err != nil {
		return nil, err
	}
	out := make([]*opinion.Category, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.categories[id])
	}
	return out, nil
}

// GetByName returns the category with a matching name, ignoring case.
func (s *CategoryStore) GetByName(name string) (*opinion.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(); err != nil {
		return nil, err
	}
	return s.findByName(name), nil
}

func (s *CategoryStore) findByName(name string) *opinion.Category {
	for _, id := range s.order {
		if strings.EqualFold(s.categories[id].Name, name) {
			return s.categories[id]
		}
	}
	return nil
}

// FindOrCreate returns the category with the given name, creating and
// persisting it when absent.
func (s *CategoryStore) FindOrCreate(name string) (*opinion.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(); err != nil {
		return nil, err
	}
	if existing := s.findByName(name); existing != nil {
		return existing, nil
	}
	category := &opinion.Category{
		ID:          s.generateID(name),
		Name:        name,
		Description: "Opinions related to " + name,
	}
	s.categories[category.ID] = category
	s.order = append(s.order, category.ID)
	if err := s.persist(); err != nil {
		return nil, err
	}
	return category, nil
}

// generateID slugs the name; collisions get a numeric suffix.
func (s *CategoryStore) generateID(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
			b.WriteRune(r)
		case r == ' ' || r == '-':
			b.WriteByte('_')
		}
	}
	base := b.String()
	if base == "" {
		base = "category"
	}
	if _, exists := s.categories[base]; !exists {
		return base
	}
	for i := 1; ; i++ {
		candidate := base + "_" + strconv.Itoa(i)
		if _, exists := s.categories[candidate]; !exists {
			return candidate
		}
	}
}
