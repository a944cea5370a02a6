package archive

import(
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// A Dataset is one downloaded (or uploaded) set of raw frames,
// together with wherever its tile pyramid lives.
type Dataset struct {
	Name         string    `json:"name"`
	Dir          string    `json:"dataset_dir"`
	TilesDir     string    `json:"tiles_dir"`
	Telescope    string    `json:"telescope,omitempty"`
	FileCount    int       `json:"file_count"`
	DownloadedAt time.Time `json:"downloaded_at"`
}

// HasMosaic reports whether a tile pyramid has been published for
// this dataset.
func (d Dataset)HasMosaic() bool {
	_, err := os.Stat(filepath.Join(d.TilesDir, "metadata.json"))
	return err == nil
}

type Summary struct {
	Name      string `json:"name"`
	HasMosaic bool   `json:"has_mosaic"`
}

// Catalog is the on-disk record of downloaded datasets, one JSON file
// keyed by dataset name.
type Catalog struct {
	path string

	mu      sync.Mutex
	entries map[string]Dataset
}

func LoadCatalog(path string) (*Catalog, error) {
	c := &Catalog{path: path, entries: map[string]Dataset{}}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return c, nil // fresh install
	}
	if err != nil {
		return nil, fmt.Errorf("read catalog '%s': %w", path, err)
	}
	if err := json.Unmarshal(data, &c.entries); err != nil {
		return nil, fmt.Errorf("parse catalog '%s': %w", path, err)
	}
	return c, nil
}

func (c *Catalog)save() error {
	data, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal catalog: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return fmt.Errorf("mkdir for catalog '%s': %w", c.path, err)
	}
	if err := os.WriteFile(c.path, data, 0644); err != nil {
		return fmt.Errorf("write catalog '%s': %w", c.path, err)
	}
	return nil
}

func (c *Catalog)Add(d Dataset) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[d.Name] = d
	return c.save()
}

func (c *Catalog)Get(name string) (Dataset, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d, ok := c.entries[name]
	return d, ok
}

// Delete removes a dataset's files, tiles and catalog entry.
func (c *Catalog)Delete(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	d, ok := c.entries[name]
	if !ok {
		return fmt.Errorf("no dataset named '%s'", name)
	}
	if d.Dir != "" {
		if err := os.RemoveAll(d.Dir); err != nil {
			return fmt.Errorf("remove '%s': %w", d.Dir, err)
		}
	}
	if d.TilesDir != "" {
		if err := os.RemoveAll(d.TilesDir); err != nil {
			return fmt.Errorf("remove '%s': %w", d.TilesDir, err)
		}
	}
	delete(c.entries, name)
	return c.save()
}

func (c *Catalog)List() []Summary {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := []Summary{}
	for _, d := range c.entries {
		out = append(out, Summary{Name: d.Name, HasMosaic: d.HasMosaic()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
