package btree

import (
	"fmt"

	"github.com/robert-malhotra/go-h5/internal/binary"
)

// v2 B-tree record types carrying dataset chunks.
const (
	v2TypeChunkUnfiltered uint8 = 10
	v2TypeChunkFiltered   uint8 = 11
)

type v2Header struct {
	typ            uint8
	recordSize     uint16
	depth          uint16
	rootAddr       uint64
	numRootRecords uint16
	totalRecords   uint64
}

// ReadChunkEntriesV2 walks a v2 B-tree chunk index (record types 10
// and 11) and returns every allocated chunk. The stored offsets are
// scaled chunk coordinates, not element coordinates; callers multiply
// them by the chunk dimensions. Unfiltered records carry no size, so
// Size is left zero.
func ReadChunkEntriesV2(r *binary.Reader, addr uint64, ndims int) ([]ChunkEntry, error) {
	h, err := readV2Header(r, addr)
	if err != nil {
		return nil, fmt.Errorf("reading B-tree v2 header: %w", err)
	}
	if h.typ != v2TypeChunkUnfiltered && h.typ != v2TypeChunkFiltered {
		return nil, fmt.Errorf("unexpected B-tree v2 record type: %d (expected 10 or 11 for chunks)", h.typ)
	}
	if h.totalRecords == 0 {
		return nil, nil
	}

	filtered := h.typ == v2TypeChunkFiltered
	if h.depth == 0 {
		return readV2Leaf(r, h.rootAddr, int(h.numRootRecords), ndims, filtered)
	}
	return readV2Internal(r, h, h.rootAddr, int(h.numRootRecords), int(h.depth), ndims, filtered)
}

func readV2Header(r *binary.Reader, address uint64) (*v2Header, error) {
	nr := r.At(int64(address))

	sig, err := nr.ReadBytes(4)
	if err != nil {
		return nil, err
	}
	if string(sig) != "BTHD" {
		return nil, fmt.Errorf("invalid signature: got %q, expected \"BTHD\"", string(sig))
	}

	version, err := nr.ReadUint8()
	if err != nil {
		return nil, err
	}
	if version != 0 {
		return nil, fmt.Errorf("unsupported version: %d", version)
	}

	h := &v2Header{}
	if h.typ, err = nr.ReadUint8(); err != nil {
		return nil, err
	}
	if _, err = nr.ReadUint32(); err != nil { // node size
		return nil, err
	}
	if h.recordSize, err = nr.ReadUint16(); err != nil {
		return nil, err
	}
	if h.depth, err = nr.ReadUint16(); err != nil {
		return nil, err
	}
	if _, err = nr.ReadUint8(); err != nil { // split percent
		return nil, err
	}
	if _, err = nr.ReadUint8(); err != nil { // merge percent
		return nil, err
	}
	if h.rootAddr, err = nr.ReadOffset(); err != nil {
		return nil, err
	}
	if h.numRootRecords, err = nr.ReadUint16(); err != nil {
		return nil, err
	}
	if h.totalRecords, err = nr.ReadLength(); err != nil {
		return nil, err
	}
	return h, nil
}

func readV2Leaf(r *binary.Reader, address uint64, numRecords, ndims int, filtered bool) ([]ChunkEntry, error) {
	nr := r.At(int64(address))

	sig, err := nr.ReadBytes(4)
	if err != nil {
		return nil, err
	}
	if string(sig) != "BTLF" {
		return nil, fmt.Errorf("invalid leaf signature: got %q, expected \"BTLF\"", string(sig))
	}

	version, err := nr.ReadUint8()
	if err != nil {
		return nil, err
	}
	if version != 0 {
		return nil, fmt.Errorf("unsupported leaf version: %d", version)
	}

	// Record type byte repeats the header's.
	if _, err = nr.ReadUint8(); err != nil {
		return nil, err
	}

	entries := make([]ChunkEntry, 0, numRecords)
	for i := 0; i < numRecords; i++ {
		entry, err := readV2ChunkRecord(nr, ndims, filtered)
		if err != nil {
			return nil, fmt.Errorf("reading record %d: %w", i, err)
		}
		if entry.Address != 0 && entry.Address != 0xFFFFFFFFFFFFFFFF {
			entries = append(entries, entry)
		}
	}
	return entries, nil
}

func readV2Internal(r *binary.Reader, h *v2Header, address uint64, numRecords, depth, ndims int, filtered bool) ([]ChunkEntry, error) {
	nr := r.At(int64(address))

	sig, err := nr.ReadBytes(4)
	if err != nil {
		return nil, err
	}
	if string(sig) != "BTIN" {
		return nil, fmt.Errorf("invalid internal node signature: got %q, expected \"BTIN\"", string(sig))
	}

	version, err := nr.ReadUint8()
	if err != nil {
		return nil, err
	}
	if version != 0 {
		return nil, fmt.Errorf("unsupported internal node version: %d", version)
	}

	if _, err = nr.ReadUint8(); err != nil { // record type
		return nil, err
	}

	descend := func(addr uint64, n int) ([]ChunkEntry, error) {
		if depth == 1 {
			return readV2Leaf(r, addr, n, ndims, filtered)
		}
		return readV2Internal(r, h, addr, n, depth-1, ndims, filtered)
	}

	// Records and child pointers interleave: record 0, child 0,
	// record 1, child 1, ..., record N-1, child N-1, child N. The
	// record keys are not needed to enumerate chunks.
	var entries []ChunkEntry
	for i := 0; i <= numRecords; i++ {
		if i < numRecords {
			nr.Skip(int64(h.recordSize))
		}
		childAddr, err := nr.ReadOffset()
		if err != nil {
			return nil, fmt.Errorf("reading child pointer %d: %w", i, err)
		}
		childRecords, err := nr.ReadUint16()
		if err != nil {
			return nil, fmt.Errorf("reading child record count %d: %w", i, err)
		}
		children, err := descend(childAddr, int(childRecords))
		if err != nil {
			return nil, err
		}
		entries = append(entries, children...)
	}
	return entries, nil
}

func readV2ChunkRecord(nr *binary.Reader, ndims int, filtered bool) (ChunkEntry, error) {
	var entry ChunkEntry
	var err error

	if !filtered {
		// Type 10: scaled offsets, then the chunk address.
		entry.Offset = make([]uint64, ndims)
		for d := 0; d < ndims; d++ {
			if entry.Offset[d], err = nr.ReadUint64(); err != nil {
				return entry, err
			}
		}
		entry.Address, err = nr.ReadOffset()
		return entry, err
	}

	// Type 11: address, variable-width chunk size, filter mask,
	// scaled offsets.
	if entry.Address, err = nr.ReadOffset(); err != nil {
		return entry, err
	}
	sizeLen, err := nr.ReadUint8()
	if err != nil {
		return entry, err
	}
	if sizeLen > 0 {
		sizeBytes, err := nr.ReadBytes(int(sizeLen))
		if err != nil {
			return entry, err
		}
		var size uint64
		for i, b := range sizeBytes {
			size |= uint64(b) << (8 * i)
		}
		entry.Size = uint32(size)
	}
	if entry.FilterMask, err = nr.ReadUint32(); err != nil {
		return entry, err
	}
	entry.Offset = make([]uint64, ndims)
	for d := 0; d < ndims; d++ {
		if entry.Offset[d], err = nr.ReadUint64(); err != nil {
			return entry, err
		}
	}
	return entry, nil
}
