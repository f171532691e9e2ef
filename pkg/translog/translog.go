package translog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// FreeSpacer reports free bytes available at a directory, used to choose
// where a new translog file is created. DefaultFreeSpacer uses the
// filesystem; tests substitute a fake to make the "least free space"
// placement (spec.md §4.5, §9 open question 1) deterministic.
type FreeSpacer func(dir string) (uint64, error)

// Config configures a Translog instance.
type Config struct {
	// DataPaths lists the directories this shard may place translog files
	// in. A new file goes in whichever has the least free space, per
	// spec.md §4.5 — preserved as-is even though it looks inverted; see
	// DESIGN.md and spec.md §9 open question 1.
	DataPaths []string

	// SyncOnEachOperation, when true, makes every Add end with a Sync on
	// the current file.
	SyncOnEachOperation bool

	FreeSpace FreeSpacer
}

// DefaultFreeSpacer statfs's the directory's filesystem for available
// space. Linux-only, matching the rest of this codebase's target
// platform.
func DefaultFreeSpacer(dir string) (uint64, error) {
	return statfsFreeBytes(dir)
}

// Translog owns the current and at-most-one transient file for a single
// shard. See doc.go for the concurrency and ownership model.
type Translog struct {
	cfg Config

	mu         sync.RWMutex // structural transitions vs. data-plane ops
	current    *file
	transient  *file
	nextID     int64
}

// Open recovers (or creates, if dir is empty) a Translog from the
// configured data paths, matching spec.md §4.6's "no other files expected
// there" contract: any translog-<id> left over from a prior run is
// adopted as current if it is the highest id found, everything else is
// left for an explicit ClearUnreferenced call.
func Open(cfg Config) (*Translog, error) {
	if len(cfg.DataPaths) == 0 {
		return nil, fmt.Errorf("translog: at least one data path is required")
	}
	if cfg.FreeSpace == nil {
		cfg.FreeSpace = DefaultFreeSpacer
	}
	for _, p := range cfg.DataPaths {
		if err := os.MkdirAll(p, 0o755); err != nil {
			return nil, fmt.Errorf("translog: mkdir %s: %w", p, err)
		}
	}

	t := &Translog{cfg: cfg}

	existing, err := t.scanExistingIDs()
	if err != nil {
		return nil, err
	}
	if len(existing) == 0 {
		return t, t.NewTranslog(1)
	}

	highest := existing[len(existing)-1]
	dir, err := t.locate(highest)
	if err != nil {
		return nil, err
	}
	f, err := openFile(dir, highest)
	if err != nil {
		return nil, err
	}
	t.current = f
	t.nextID = highest + 1
	return t, nil
}

func (t *Translog) scanExistingIDs() ([]int64, error) {
	var ids []int64
	for _, dir := range t.cfg.DataPaths {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasPrefix(e.Name(), fileNamePrefix) {
				continue
			}
			id, err := strconv.ParseInt(strings.TrimPrefix(e.Name(), fileNamePrefix), 10, 64)
			if err != nil {
				continue
			}
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (t *Translog) locate(id int64) (string, error) {
	for _, dir := range t.cfg.DataPaths {
		if _, err := os.Stat(filepath.Join(dir, fileName(id))); err == nil {
			return dir, nil
		}
	}
	return "", fmt.Errorf("translog: file id %d not found in any data path", id)
}

// leastFreeDir picks the data path with the least free space, the
// deliberately-inverted placement heuristic spec.md §4.5 calls for.
func (t *Translog) leastFreeDir() (string, error) {
	best := ""
	var bestFree uint64
	for i, dir := range t.cfg.DataPaths {
		free, err := t.cfg.FreeSpace(dir)
		if err != nil {
			return "", fmt.Errorf("translog: statfs %s: %w", dir, err)
		}
		if i == 0 || free < bestFree {
			best, bestFree = dir, free
		}
	}
	return best, nil
}

// NewTranslog installs id as the new current file, closing (and, unless
// its id equals the new one, deleting) the prior current.
func (t *Translog) NewTranslog(id int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	dir, err := t.leastFreeDir()
	if err != nil {
		return err
	}
	next, err := createFile(dir, id)
	if err != nil {
		return err
	}

	prior := t.current
	t.current = next
	if id > t.nextID {
		t.nextID = id
	}
	if prior == nil {
		return nil
	}
	if prior.id != id {
		prior.markDeleteOnClose()
	}
	return prior.release()
}

// NewTransientTranslog opens a second log used during recovery.
// Precondition: no transient file is currently open.
func (t *Translog) NewTransientTranslog(id int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.transient != nil {
		return fmt.Errorf("translog: transient file already open (id %d)", t.transient.id)
	}
	if t.current != nil && t.current.id == id {
		return fmt.Errorf("translog: transient id %d must not equal current id", id)
	}
	dir, err := t.leastFreeDir()
	if err != nil {
		return err
	}
	f, err := createFile(dir, id)
	if err != nil {
		return err
	}
	t.transient = f
	return nil
}

// MakeTransientCurrent swaps the transient file into the current slot,
// closing and deleting the old current.
func (t *Translog) MakeTransientCurrent() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.transient == nil {
		return fmt.Errorf("translog: no transient file to promote")
	}
	old := t.current
	t.current = t.transient
	t.transient = nil

	if old != nil {
		old.markDeleteOnClose()
		return old.release()
	}
	return nil
}

// RevertTransient closes and deletes the transient file, keeping current
// untouched.
func (t *Translog) RevertTransient() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.transient == nil {
		return nil
	}
	t.transient.markDeleteOnClose()
	err := t.transient.release()
	t.transient = nil
	return err
}

// Add appends op to the current file (and to the transient file too, if
// one is open — spec.md §4.5: "the current is authoritative; the
// transient receives the tail of post-recovery operations"). Returns the
// Location in the current file.
func (t *Translog) Add(op Operation) (Location, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.current == nil {
		return Location{}, fmt.Errorf("translog: no current file")
	}
	loc, err := t.current.add(op)
	if err != nil {
		return Location{}, err
	}
	if t.transient != nil {
		if _, err := t.transient.add(op); err != nil {
			return Location{}, fmt.Errorf("translog: transient append failed: %w", err)
		}
	}
	if t.cfg.SyncOnEachOperation {
		if err := t.syncLocked(); err != nil {
			return Location{}, err
		}
	}
	return loc, nil
}

// Read returns the operation stored at loc. loc must refer to the current
// or transient file; a Location in a file that has been rotated out
// returns an error, even while an outstanding Snapshot still holds that
// file open.
func (t *Translog) Read(loc Location) (Operation, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.current != nil && t.current.id == loc.FileID {
		return t.current.readAt(loc)
	}
	if t.transient != nil && t.transient.id == loc.FileID {
		return t.transient.readAt(loc)
	}
	return Operation{}, fmt.Errorf("translog: file id %d is not open (rotated out and closed)", loc.FileID)
}

// Sync flushes the current file's buffered bytes to stable storage. A
// sync error is ignored if the current file has already been rotated out
// from under the caller — spec.md §4.5's durability note — because at
// that point the bytes this call cared about are already superseded.
func (t *Translog) Sync() error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.syncLocked()
}

func (t *Translog) syncLocked() error {
	if t.current == nil {
		return nil
	}
	return t.current.sync()
}

// Snapshot returns a positioned read view of the current file from its
// start to its size at call time.
func (t *Translog) Snapshot() (*Snapshot, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.current == nil {
		return nil, fmt.Errorf("translog: no current file to snapshot")
	}
	if !t.current.acquire() {
		return nil, fmt.Errorf("translog: current file closed underneath snapshot request")
	}
	return newSnapshot(t.current, 0, t.current.size), nil
}

// SnapshotFrom returns a new snapshot positioned just past existing, iff
// the current file's id still matches existing's — i.e. the translog has
// not rotated since existing was taken.
func (t *Translog) SnapshotFrom(existing *Snapshot) (*Snapshot, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.current == nil || t.current.id != existing.FileID() {
		return nil, fmt.Errorf("translog: current file has rotated past snapshot's translog id %d", existing.FileID())
	}
	if !t.current.acquire() {
		return nil, fmt.Errorf("translog: current file closed underneath snapshot request")
	}
	return newSnapshot(t.current, existing.EndOffset(), t.current.size), nil
}

// ClearUnreferenced scans every data path under the write lock and
// deletes any translog-N whose N is neither the current nor the
// transient id.
func (t *Translog) ClearUnreferenced() (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	keep := map[int64]bool{}
	if t.current != nil {
		keep[t.current.id] = true
	}
	if t.transient != nil {
		keep[t.transient.id] = true
	}

	deleted := 0
	for _, dir := range t.cfg.DataPaths {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return deleted, err
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasPrefix(e.Name(), fileNamePrefix) {
				continue
			}
			id, err := strconv.ParseInt(strings.TrimPrefix(e.Name(), fileNamePrefix), 10, 64)
			if err != nil || keep[id] {
				continue
			}
			// Orphan cleanup errors are swallowed, matching spec.md §7:
			// "the translog swallows delete errors on orphan/transient
			// cleanup" — a leftover file is retried on the next call.
			if err := os.Remove(filepath.Join(dir, e.Name())); err == nil {
				deleted++
			}
		}
	}
	return deleted, nil
}

// CurrentID and TransientID expose the file-set invariant (spec.md §8
// property 5) for tests: after any sequence of structural operations,
// the on-disk set must equal {CurrentID} ∪ {TransientID, if open}.
func (t *Translog) CurrentID() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.current == nil {
		return 0
	}
	return t.current.id
}

func (t *Translog) TransientID() (int64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.transient == nil {
		return 0, false
	}
	return t.transient.id, true
}

// Close releases the current and transient files. If delete is true both
// are removed from disk once their reference counts drop to zero.
func (t *Translog) Close(delete bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var firstErr error
	for _, f := range []*file{t.current, t.transient} {
		if f == nil {
			continue
		}
		if delete {
			f.markDeleteOnClose()
		}
		if err := f.release(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	t.current, t.transient = nil, nil
	return firstErr
}
