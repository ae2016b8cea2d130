package nodeio

import (
	"encoding/binary"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/scigolib/irwi/internal/blockio"
	"github.com/scigolib/irwi/internal/diralloc"
	"github.com/scigolib/irwi/internal/invidx"
)

const (
	blocksFileName = "tree.blocks"
	stateFileName  = "tree.state"
	indexDirName   = "inverted_index"
)

// Storage is the typed read/write layer over a block store: it knows how
// to encode/decode internal and leaf nodes, owns the directory allocator
// for per-node inverted indexes, and persists the tree's height/size/root
// triple (spec.md §3.4, §6.1).
type Storage struct {
	root string

	blocks *blockio.Store
	dirs   *diralloc.Allocator

	blockSize int
	lambda    int

	maxInternal int
	maxLeaf     int

	height uint64
	size   uint64
	root_  NodePtr

	openIndexes map[uint64]*invidx.Index
}

// Config bundles the parameters needed to open or create a tree directory.
type Config struct {
	BlockSize   int
	CacheBlocks int
	Lambda      int
}

// DefaultConfig returns the spec's default parameters (block_size=4096,
// lambda=40).
func DefaultConfig() Config {
	return Config{
		BlockSize:   blockio.DefaultBlockSize,
		CacheBlocks: blockio.DefaultCacheBlocks,
		Lambda:      40,
	}
}

// Open opens (creating if necessary) a tree directory at root.
func Open(root string, cfg Config) (*Storage, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrap(err, "nodeio: create tree directory")
	}

	blocks, err := blockio.Open(filepath.Join(root, blocksFileName), cfg.BlockSize, cfg.CacheBlocks)
	if err != nil {
		return nil, err
	}

	dirs, err := diralloc.Open(filepath.Join(root, indexDirName))
	if err != nil {
		_ = blocks.Close()
		return nil, err
	}

	s := &Storage{
		root:        root,
		blocks:      blocks,
		dirs:        dirs,
		blockSize:   cfg.BlockSize,
		lambda:      cfg.Lambda,
		maxInternal: MaxInternalEntries(cfg.BlockSize),
		maxLeaf:     MaxLeafEntries(cfg.BlockSize),
		openIndexes: make(map[uint64]*invidx.Index),
	}

	if err := s.loadState(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Storage) loadState() error {
	path := filepath.Join(s.root, stateFileName)
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if len(data) != 24 {
			return errors.Errorf("nodeio: corrupt tree.state (got %d bytes, want 24)", len(data))
		}
		s.size = binary.LittleEndian.Uint64(data[0:8])
		s.height = binary.LittleEndian.Uint64(data[8:16])
		root := binary.LittleEndian.Uint64(data[16:24])
		if s.height > 0 {
			s.root_ = NodePtr{Handle: blockio.Handle(root), Valid: true}
		}
		return nil
	case os.IsNotExist(err):
		return nil
	default:
		return errors.Wrap(err, "nodeio: read tree.state")
	}
}

// SaveState persists the height/size/root triple (spec.md §6.2).
func (s *Storage) SaveState() error {
	buf := make([]byte, 24)
	binary.LittleEndian.PutUint64(buf[0:8], s.size)
	binary.LittleEndian.PutUint64(buf[8:16], s.height)
	var root uint64
	if s.root_.Valid {
		root = uint64(s.root_.Handle)
	}
	binary.LittleEndian.PutUint64(buf[16:24], root)
	return os.WriteFile(filepath.Join(s.root, stateFileName), buf, 0o644)
}

// Height returns the tree's current height (0 = empty, 1 = root is a
// leaf).
func (s *Storage) Height() uint64 { return s.height }

// SetHeight sets the tree's height.
func (s *Storage) SetHeight(h uint64) { s.height = h }

// Size returns the tree's current entry count.
func (s *Storage) Size() uint64 { return s.size }

// SetSize sets the tree's entry count.
func (s *Storage) SetSize(n uint64) { s.size = n }

// Root returns the tree's root node pointer. Valid is false for an empty
// tree.
func (s *Storage) Root() NodePtr { return s.root_ }

// SetRoot sets the tree's root node pointer.
func (s *Storage) SetRoot(n NodePtr) { s.root_ = n }

// Empty reports whether the tree currently has no entries.
func (s *Storage) Empty() bool { return s.height == 0 }

// BlockSize returns the configured block size.
func (s *Storage) BlockSize() int { return s.blockSize }

// Lambda returns the configured posting-list trajectory-id capacity.
func (s *Storage) Lambda() int { return s.lambda }

// MaxInternalEntries returns the capacity of one internal node.
func (s *Storage) MaxInternalEntries() int { return s.maxInternal }

// MaxLeafEntries returns the capacity of one leaf node.
func (s *Storage) MaxLeafEntries() int { return s.maxLeaf }

// Close persists the height/size/root triple, then flushes and closes
// every open resource.
func (s *Storage) Close() error {
	var first error
	if err := s.SaveState(); err != nil && first == nil {
		first = err
	}
	for _, ix := range s.openIndexes {
		if err := ix.Close(); err != nil && first == nil {
			first = err
		}
	}
	if err := s.blocks.Close(); err != nil && first == nil {
		first = err
	}
	return first
}
