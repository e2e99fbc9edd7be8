package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/edvin/landingzone/internal/model"
)

// FileStore keeps all bundles in a single local JSON document. It is
// the default backend for single-operator use.
type FileStore struct {
	path string
	mu   sync.Mutex
}

type fileDocument struct {
	Hubs   map[string]*model.HubOutputs   `json:"hubs"`
	Spokes map[string]*model.SpokeOutputs `json:"spokes"` // key: environment/domain
}

// NewFileStore creates a file-backed store at path. The file is
// created on first write.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func spokeKey(environment, domain string) string {
	return environment + "/" + domain
}

func (s *FileStore) load() (*fileDocument, error) {
	doc := &fileDocument{
		Hubs:   map[string]*model.HubOutputs{},
		Spokes: map[string]*model.SpokeOutputs{},
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state file: %w", err)
	}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("parse state file %s: %w", s.path, err)
	}
	return doc, nil
}

// save writes through a temp file and rename so a crash never leaves a
// truncated state document.
func (s *FileStore) save(doc *fileDocument) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".lzstate-*")
	if err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	return nil
}

func (s *FileStore) SaveHubOutputs(_ context.Context, outputs *model.HubOutputs) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load()
	if err != nil {
		return err
	}
	doc.Hubs[outputs.Environment] = outputs
	return s.save(doc)
}

func (s *FileStore) LoadHubOutputs(_ context.Context, environment string) (*model.HubOutputs, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	outputs, ok := doc.Hubs[environment]
	if !ok {
		return nil, fmt.Errorf("environment %s: %w", environment, ErrHubNotProvisioned)
	}
	return outputs, nil
}

func (s *FileStore) DeleteHubOutputs(_ context.Context, environment string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load()
	if err != nil {
		return err
	}
	delete(doc.Hubs, environment)
	return s.save(doc)
}

func (s *FileStore) SaveSpokeOutputs(_ context.Context, outputs *model.SpokeOutputs) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load()
	if err != nil {
		return err
	}
	doc.Spokes[spokeKey(outputs.Environment, outputs.Domain)] = outputs
	return s.save(doc)
}

func (s *FileStore) LoadSpokeOutputs(_ context.Context, environment, domain string) (*model.SpokeOutputs, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	outputs, ok := doc.Spokes[spokeKey(environment, domain)]
	if !ok {
		return nil, fmt.Errorf("%s spoke in %s: %w", domain, environment, ErrSpokeNotProvisioned)
	}
	return outputs, nil
}

func (s *FileStore) ListSpokeDomains(_ context.Context, environment string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	var domains []string
	for _, outputs := range doc.Spokes {
		if outputs.Environment == environment {
			domains = append(domains, outputs.Domain)
		}
	}
	sort.Strings(domains)
	return domains, nil
}

func (s *FileStore) DeleteSpokeOutputs(_ context.Context, environment, domain string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.load()
	if err != nil {
		return err
	}
	delete(doc.Spokes, spokeKey(environment, domain))
	return s.save(doc)
}

func (s *FileStore) Close() error { return nil }
