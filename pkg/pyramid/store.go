package pyramid

import(
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ErrNotFound is the normal out-of-range / not-published signal, as
// distinct from a storage I/O failure.
var ErrNotFound = errors.New("not found")

// A Store persists a pyramid build. Writes accumulate in a staging
// area and only become visible after Commit; a build that dies half
// way leaves any previously published pyramid untouched.
type Store interface {
	WriteTile(zoom, col, row int, data []byte) error
	WriteMetadata(md Metadata) error
	Commit() error
	Abort()

	ReadTile(zoom, col, row int) ([]byte, error)
	ReadMetadata() (Metadata, error)
}

// DiskStore lays tiles out as <root>/<zoom>/<col>_<row>.png with a
// metadata.json beside them. Builds stage into <root>.build and are
// swapped in with a rename.
type DiskStore struct {
	root string

	mu    sync.Mutex
	began bool
}

func NewDiskStore(root string) *DiskStore {
	return &DiskStore{root: root}
}

func (ds *DiskStore)stagingDir() string { return ds.root + ".build" }

func (ds *DiskStore)begin() error {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	if ds.began {
		return nil
	}
	// A staging dir left over from a crashed build is stale
	if err := os.RemoveAll(ds.stagingDir()); err != nil {
		return fmt.Errorf("clear staging '%s': %w", ds.stagingDir(), err)
	}
	if err := os.MkdirAll(ds.stagingDir(), 0755); err != nil {
		return fmt.Errorf("mkdir staging '%s': %w", ds.stagingDir(), err)
	}
	ds.began = true
	return nil
}

func (ds *DiskStore)WriteTile(zoom, col, row int, data []byte) error {
	if err := ds.begin(); err != nil {
		return err
	}
	dir := filepath.Join(ds.stagingDir(), fmt.Sprintf("%d", zoom))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("mkdir '%s': %w", dir, err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%d_%d.png", col, row))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write tile '%s': %w", path, err)
	}
	return nil
}

func (ds *DiskStore)WriteMetadata(md Metadata) error {
	if err := ds.begin(); err != nil {
		return err
	}
	data, err := json.Marshal(md)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	path := filepath.Join(ds.stagingDir(), "metadata.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write metadata '%s': %w", path, err)
	}
	return nil
}

func (ds *DiskStore)Commit() error {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	if !ds.began {
		return fmt.Errorf("commit without any writes")
	}
	if err := os.RemoveAll(ds.root); err != nil {
		return fmt.Errorf("clear '%s': %w", ds.root, err)
	}
	if err := os.Rename(ds.stagingDir(), ds.root); err != nil {
		return fmt.Errorf("publish '%s': %w", ds.root, err)
	}
	ds.began = false
	return nil
}

func (ds *DiskStore)Abort() {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	os.RemoveAll(ds.stagingDir())
	ds.began = false
}

// ActiveStore serves whichever pyramid is currently selected, so a
// server can switch between per-dataset stores without restarting.
// Before any Select it behaves as not-published.
type ActiveStore struct {
	mu sync.Mutex
	st Store
}

func NewActiveStore(st Store) *ActiveStore {
	return &ActiveStore{st: st}
}

func (as *ActiveStore)Select(st Store) {
	as.mu.Lock()
	defer as.mu.Unlock()
	as.st = st
}

func (as *ActiveStore)current() Store {
	as.mu.Lock()
	defer as.mu.Unlock()
	return as.st
}

func (as *ActiveStore)WriteTile(zoom, col, row int, data []byte) error {
	if st := as.current(); st != nil {
		return st.WriteTile(zoom, col, row, data)
	}
	return fmt.Errorf("no store selected")
}

func (as *ActiveStore)WriteMetadata(md Metadata) error {
	if st := as.current(); st != nil {
		return st.WriteMetadata(md)
	}
	return fmt.Errorf("no store selected")
}

func (as *ActiveStore)Commit() error {
	if st := as.current(); st != nil {
		return st.Commit()
	}
	return fmt.Errorf("no store selected")
}

func (as *ActiveStore)Abort() {
	if st := as.current(); st != nil {
		st.Abort()
	}
}

func (as *ActiveStore)ReadTile(zoom, col, row int) ([]byte, error) {
	if st := as.current(); st != nil {
		return st.ReadTile(zoom, col, row)
	}
	return nil, ErrNotFound
}

func (as *ActiveStore)ReadMetadata() (Metadata, error) {
	if st := as.current(); st != nil {
		return st.ReadMetadata()
	}
	return Metadata{}, ErrNotFound
}

func (ds *DiskStore)ReadTile(zoom, col, row int) ([]byte, error) {
	path := filepath.Join(ds.root, fmt.Sprintf("%d", zoom), fmt.Sprintf("%d_%d.png", col, row))
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read tile '%s': %w", path, err)
	}
	return data, nil
}

func (ds *DiskStore)ReadMetadata() (Metadata, error) {
	path := filepath.Join(ds.root, "metadata.json")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Metadata{}, ErrNotFound
	}
	if err != nil {
		return Metadata{}, fmt.Errorf("read metadata '%s': %w", path, err)
	}
	md := Metadata{}
	if err := json.Unmarshal(data, &md); err != nil {
		return Metadata{}, fmt.Errorf("parse metadata '%s': %w", path, err)
	}
	return md, nil
}
