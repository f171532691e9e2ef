package translog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
)

const fileNamePrefix = "translog-"

func fileName(id int64) string {
	return fmt.Sprintf("%s%d", fileNamePrefix, id)
}

// file wraps one translog-<id> file on disk. It is linearly owned by the
// Translog that created it (spec.md §9: "the translog treats the file
// handle as linearly owned by itself"), with an atomic reference count so
// a Snapshot obtained before a rotation stays readable until every holder
// releases it — at which point, if the file was marked for deletion, it
// is actually closed and removed.
type file struct {
	id  int64
	dir string

	appendMu sync.Mutex // serializes Add within this file
	f        *os.File
	size     int64
	ops      int

	refs          int32
	deleteOnClose int32 // 0/1, set via atomic CAS
	closed        int32 // 0/1
}

func createFile(dir string, id int64) (*file, error) {
	path := filepath.Join(dir, fileName(id))
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("translog: create %s: %w", path, err)
	}
	return &file{id: id, dir: dir, f: f, refs: 1}, nil
}

func openFile(dir string, id int64) (*file, error) {
	path := filepath.Join(dir, fileName(id))
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("translog: open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &file{id: id, dir: dir, f: f, size: info.Size(), refs: 1}, nil
}

// acquire increments the reference count. Returns false if the file is
// already fully closed (refs reached zero and the fd was released).
func (fl *file) acquire() bool {
	for {
		cur := atomic.LoadInt32(&fl.refs)
		if cur <= 0 {
			return false
		}
		if atomic.CompareAndSwapInt32(&fl.refs, cur, cur+1) {
			return true
		}
	}
}

// release decrements the reference count, actually closing (and, if
// deleteOnClose was requested, removing) the file once it reaches zero.
func (fl *file) release() error {
	n := atomic.AddInt32(&fl.refs, -1)
	if n > 0 {
		return nil
	}
	if !atomic.CompareAndSwapInt32(&fl.closed, 0, 1) {
		return nil
	}
	err := fl.f.Close()
	if atomic.LoadInt32(&fl.deleteOnClose) == 1 {
		if rmErr := os.Remove(filepath.Join(fl.dir, fileName(fl.id))); rmErr != nil && err == nil {
			err = rmErr
		}
	}
	return err
}

// markDeleteOnClose requests deletion once the reference count drops to
// zero. Safe to call multiple times or after release has already fired a
// no-delete close — in that case the file is gone already and this is a
// no-op other than flipping the flag.
func (fl *file) markDeleteOnClose() {
	atomic.StoreInt32(&fl.deleteOnClose, 1)
}

// add appends a single length-prefixed record and returns its Location.
// Appends to one file are serialized by appendMu; this is independent of
// the Translog's structural read/write lock, which only governs which
// file is "current".
func (fl *file) add(op Operation) (Location, error) {
	payload := op.encode()
	record := make([]byte, 4+len(payload))
	putUint32(record, uint32(len(payload)))
	copy(record[4:], payload)

	fl.appendMu.Lock()
	defer fl.appendMu.Unlock()

	offset := fl.size
	n, err := fl.f.WriteAt(record, offset)
	if err != nil {
		return Location{}, fmt.Errorf("translog: write to %s: %w", fileName(fl.id), err)
	}
	fl.size += int64(n)
	fl.ops++
	return Location{FileID: fl.id, Offset: offset, Length: int32(len(payload))}, nil
}

// readAt reads back the payload written at a Location within this file.
func (fl *file) readAt(loc Location) (Operation, error) {
	if loc.FileID != fl.id {
		return Operation{}, fmt.Errorf("translog: location file id %d does not match file %d", loc.FileID, fl.id)
	}
	buf := make([]byte, loc.Length)
	if _, err := fl.f.ReadAt(buf, loc.Offset+4); err != nil {
		return Operation{}, fmt.Errorf("translog: read %v: %w", loc, err)
	}
	return decodeOperation(buf)
}

// sync flushes buffered bytes to stable storage.
func (fl *file) sync() error {
	return fl.f.Sync()
}

func putUint32(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}
