// Package diralloc implements the directory allocator from spec.md §4.2:
// it assigns dense, non-reused uint64 ids and maps each to a filesystem
// subdirectory under a fixed root, one per inverted-index directory.
//
// Follows an end-of-file, no-reuse allocation strategy: nextID is a single
// persisted counter rather than a set tracked alongside allocated ranges,
// since directory ids are never reused or overlap-checked.
package diralloc

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/pkg/errors"

	"github.com/scigolib/irwi/internal/treeerr"
)

const counterFile = ".next_id"

// Allocator assigns directory-allocator ids under a root directory.
//
// Thread safety: NOT thread-safe (spec.md §5, single-writer build).
// Crash safety: the counter file is rewritten after every Alloc, without
// fsync or an atomic rename, so a crash mid-load can leave it stale or
// torn; recovering from such a crash is unsupported.
type Allocator struct {
	root   string
	nextID uint64
}

// Open opens (creating if necessary) a directory allocator rooted at root.
func Open(root string) (*Allocator, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrap(err, "diralloc: create root")
	}

	a := &Allocator{root: root}

	data, err := os.ReadFile(filepath.Join(root, counterFile))
	switch {
	case err == nil:
		n, perr := strconv.ParseUint(string(data), 10, 64)
		if perr != nil {
			return nil, errors.Wrap(perr, "diralloc: parse counter file")
		}
		a.nextID = n
	case os.IsNotExist(err):
		a.nextID = 0
	default:
		return nil, errors.Wrap(err, "diralloc: read counter file")
	}

	return a, nil
}

// Alloc assigns a new, unique id and creates its backing subdirectory.
func (a *Allocator) Alloc() (uint64, error) {
	id := a.nextID
	dir := a.Dir(id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, treeerr.ResourceExhausted("diralloc: create directory for id %d: %v", id, err)
	}
	a.nextID++
	if err := a.persist(); err != nil {
		return 0, err
	}
	return id, nil
}

// Dir returns the filesystem path assigned to id. It does not imply the
// directory has been created.
func (a *Allocator) Dir(id uint64) string {
	return filepath.Join(a.root, strconv.FormatUint(id, 10))
}

// NextID returns the id that would be returned by the next Alloc call,
// i.e. the highest assigned id plus one.
func (a *Allocator) NextID() uint64 {
	return a.nextID
}

func (a *Allocator) persist() error {
	path := filepath.Join(a.root, counterFile)
	return os.WriteFile(path, []byte(strconv.FormatUint(a.nextID, 10)), 0o644)
}
