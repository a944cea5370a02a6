package tilesrv

import(
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// A Label is a user annotation in mosaic pixel coordinates, so it
// stays put under pan and zoom.
type Label struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Text string  `json:"text"`
}

// LabelStore persists labels as one JSON file, the same shape the
// viewer consumes.
type LabelStore struct {
	path string
	mu   sync.Mutex
}

func NewLabelStore(path string) *LabelStore {
	return &LabelStore{path: path}
}

func (ls *LabelStore)All() ([]Label, error) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	data, err := os.ReadFile(ls.path)
	if os.IsNotExist(err) {
		return []Label{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read labels '%s': %w", ls.path, err)
	}

	labels := []Label{}
	if err := json.Unmarshal(data, &labels); err != nil {
		return nil, fmt.Errorf("parse labels '%s': %w", ls.path, err)
	}
	return labels, nil
}

func (ls *LabelStore)Add(l Label) error {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	labels := []Label{}
	if data, err := os.ReadFile(ls.path); err == nil {
		json.Unmarshal(data, &labels) // a corrupt file just starts over
	}
	labels = append(labels, l)

	data, err := json.MarshalIndent(labels, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal labels: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(ls.path), 0755); err != nil {
		return fmt.Errorf("mkdir for labels '%s': %w", ls.path, err)
	}
	if err := os.WriteFile(ls.path, data, 0644); err != nil {
		return fmt.Errorf("write labels '%s': %w", ls.path, err)
	}
	return nil
}
