package store

import (
	"opiniongraph/internal/opinion"
)

// OpinionStore persists the final opinion set as a single JSON document.
// Reads and writes are whole-document; the pipeline is the only writer.
type OpinionStore struct {
	path string
}

// NewOpinionStore returns a store backed by the given file.
func NewOpinionStore(path string) *OpinionStore {
	return &OpinionStore{path: path}
}

// Path returns the backing file location.
func (s *OpinionStore) Path() string { return s.path }

type opinionDocument struct {
	Opinions []*opinion.Opinion `json:"opinions"`
}

// Load returns all stored opinions. A missing file yields an empty set.
func (s *OpinionStore) Load() ([]*opinion.Opinion, error) {
	var doc opinionDocument
	if _, err := readJSON(s.path, &doc); err != nil {
		return nil, err
	}
	if doc.Opinions == nil {
		doc.Opinions = []*opinion.Opinion{}
	}
	return doc.Opinions, nil
}

// SaveAll replaces the stored opinion set.
func (s *OpinionStore) SaveAll(opinions []*opinion.Opinion) error {
	if opinions == nil {
		opinions = []*opinion.Opinion{}
	}
	return writeJSONAtomic(s.path, opinionDocument{Opinions: opinions})
}
