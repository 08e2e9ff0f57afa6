package btree

import (
	"fmt"

	"github.com/robert-malhotra/go-h5/internal/binary"
)

// ChunkEntry is one stored chunk found in a chunk index: its position,
// the on-disk (possibly filtered) size, the filter mask, and the file
// address of the raw chunk bytes.
type ChunkEntry struct {
	Offset     []uint64
	FilterMask uint32
	Size       uint32
	Address    uint64
}

// ReadChunkEntries walks a v1 B-tree chunk index (node type 1) and
// returns every allocated chunk. ndims is the dataset rank; the stored
// keys carry one extra trailing dimension for the element size, which
// is dropped from the returned offsets.
func ReadChunkEntries(r *binary.Reader, addr uint64, ndims int) ([]ChunkEntry, error) {
	return readChunkNode(r, addr, ndims)
}

func readChunkNode(r *binary.Reader, address uint64, ndims int) ([]ChunkEntry, error) {
	nr := r.At(int64(address))

	sig, err := nr.ReadBytes(4)
	if err != nil {
		return nil, fmt.Errorf("reading btree signature: %w", err)
	}
	if string(sig) != "TREE" {
		return nil, fmt.Errorf("invalid B-tree signature: got %q, expected \"TREE\"", string(sig))
	}

	// Node type (1 byte): 0 = group, 1 = chunk
	nodeType, err := nr.ReadUint8()
	if err != nil {
		return nil, err
	}
	if nodeType != 1 {
		return nil, fmt.Errorf("unexpected B-tree node type: %d (expected 1 for chunks)", nodeType)
	}

	// Node level (1 byte): 0 = leaf
	nodeLevel, err := nr.ReadUint8()
	if err != nil {
		return nil, err
	}

	// Entries used (2 bytes)
	entriesUsed, err := nr.ReadUint16()
	if err != nil {
		return nil, err
	}

	// Left sibling address
	if _, err = nr.ReadOffset(); err != nil {
		return nil, err
	}

	// Right sibling address
	if _, err = nr.ReadOffset(); err != nil {
		return nil, err
	}

	// Keys and child pointers alternate: key 0, child 0, key 1,
	// child 1, ..., key N. Each chunk key is the chunk size, the
	// filter mask and ndims+1 element offsets.
	var entries []ChunkEntry
	for i := uint16(0); i <= entriesUsed; i++ {
		chunkSize, err := nr.ReadUint32()
		if err != nil {
			return nil, fmt.Errorf("reading chunk size: %w", err)
		}
		filterMask, err := nr.ReadUint32()
		if err != nil {
			return nil, fmt.Errorf("reading filter mask: %w", err)
		}
		offsets := make([]uint64, ndims+1)
		for d := 0; d <= ndims; d++ {
			offsets[d], err = nr.ReadUint64()
			if err != nil {
				return nil, fmt.Errorf("reading chunk offset %d: %w", d, err)
			}
		}

		// The final key is only the upper bound; no child follows it.
		if i == entriesUsed {
			break
		}

		childAddr, err := nr.ReadOffset()
		if err != nil {
			return nil, fmt.Errorf("reading child address: %w", err)
		}

		if nodeLevel > 0 {
			// Internal node: child is another B-tree node.
			children, err := readChunkNode(r, childAddr, ndims)
			if err != nil {
				return nil, err
			}
			entries = append(entries, children...)
			continue
		}

		// Leaf node: child is the chunk itself.
		if childAddr != 0 && childAddr != 0xFFFFFFFFFFFFFFFF && chunkSize > 0 {
			entries = append(entries, ChunkEntry{
				Offset:     offsets[:ndims],
				FilterMask: filterMask,
				Size:       chunkSize,
				Address:    childAddr,
			})
		}
	}

	return entries, nil
}
