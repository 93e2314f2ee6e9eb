package database

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// JSONStore keeps each domain in <dir>/<domain>.json as a flat object.
// A missing or empty file reads as an empty document.
type JSONStore struct {
	dir   string
	mu    sync.Mutex
	files map[Domain]*sync.Mutex
}

func NewJSONStore(dir string) (*JSONStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("error creating directory %s: %w", dir, err)
	}
	return &JSONStore{dir: dir, files: make(map[Domain]*sync.Mutex)}, nil
}

func (s *JSONStore) path(domain Domain) string {
	return filepath.Join(s.dir, string(domain)+".json")
}

func (s *JSONStore) fileLock(domain Domain) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.files[domain]
	if !ok {
		m = &sync.Mutex{}
		s.files[domain] = m
	}
	return m
}

func (s *JSONStore) read(domain Domain) (map[string]json.RawMessage, error) {
	filePath := s.path(domain)
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]json.RawMessage{}, nil
		}
		return nil, fmt.Errorf("error reading %s: %w", filePath, err)
	}
	doc := map[string]json.RawMessage{}
	if len(bytes.TrimSpace(data)) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("error unmarshalling %s: %w", filePath, err)
	}
	return doc, nil
}

func (s *JSONStore) write(domain Domain, doc map[string]json.RawMessage) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshalling %s: %w", domain, err)
	}
	tmp, err := os.CreateTemp(s.dir, string(domain)+".*.tmp")
	if err != nil {
		return fmt.Errorf("error creating temp file for %s: %w", domain, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("error writing %s: %w", domain, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("error closing %s: %w", domain, err)
	}
	return os.Rename(tmp.Name(), s.path(domain))
}

func (s *JSONStore) Load(_ context.Context, domain Domain, key string) (json.RawMessage, error) {
	m := s.fileLock(domain)
	m.Lock()
	defer m.Unlock()

	doc, err := s.read(domain)
	if err != nil {
		return nil, err
	}
	v, ok := doc[key]
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}

func (s *JSONStore) Save(_ context.Context, domain Domain, key string, value json.RawMessage) error {
	m := s.fileLock(domain)
	m.Lock()
	defer m.Unlock()

	doc, err := s.read(domain)
	if err != nil {
		return err
	}
	doc[key] = value
	return s.write(domain, doc)
}

func (s *JSONStore) Remove(_ context.Context, domain Domain, key string) error {
	m := s.fileLock(domain)
	m.Lock()
	defer m.Unlock()

	doc, err := s.read(domain)
	if err != nil {
		return err
	}
	if _, ok := doc[key]; !ok {
		return nil
	}
	delete(doc, key)
	return s.write(domain, doc)
}

func (s *JSONStore) Scan(_ context.Context, domain Domain) (map[string]json.RawMessage, error) {
	m := s.fileLock(domain)
	m.Lock()
	defer m.Unlock()
	return s.read(domain)
}

func (s *JSONStore) Close() error { return nil }
