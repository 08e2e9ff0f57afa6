package h5

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/robert-malhotra/go-h5/internal/native"
)

// SpaceClass selects the extent class of a new dataspace.
type SpaceClass int

const (
	// ScalarSpace has rank 0 and exactly one element.
	ScalarSpace SpaceClass = iota
	// SimpleSpace is a regular N-dimensional extent.
	SimpleSpace
	// NullSpace has no elements.
	NullSpace
)

// SelectOp combines a hyperslab with the current selection.
type SelectOp int

const (
	// SelectSet replaces the selection.
	SelectSet SelectOp = iota
	// SelectOr adds the hyperslab to the selection.
	SelectOr
	// SelectAnd keeps only points in both.
	SelectAnd
	// SelectXor keeps points in exactly one of the two.
	SelectXor
	// SelectNotB removes the hyperslab from the selection.
	SelectNotB
)

// Hyperslab describes a regular selection block pattern. All four
// vectors must have the dataspace's rank; nil vectors take the
// defaults (start 0, stride/count/block 1).
type Hyperslab struct {
	Start  []uint64
	Stride []uint64
	Count  []uint64
	Block  []uint64
}

// NewHyperslab returns a hyperslab of the given rank with default
// coordinates: start 0, stride 1, count 1, block 1 in every dimension.
func NewHyperslab(rank int) *Hyperslab {
	h := &Hyperslab{
		Start:  make([]uint64, rank),
		Stride: make([]uint64, rank),
		Count:  make([]uint64, rank),
		Block:  make([]uint64, rank),
	}
	for i := 0; i < rank; i++ {
		h.Stride[i] = 1
		h.Count[i] = 1
		h.Block[i] = 1
	}
	return h
}

// Dataspace describes an extent and a selection over it.
type Dataspace struct {
	*handle
	all bool
}

// spaceAll is the "use the dataset's own dataspace" sentinel.
var spaceAllOnce = sync.OnceValue(func() *Dataspace {
	return &Dataspace{handle: newPinnedHandle(native.None), all: true}
})

// SpaceAll returns the sentinel dataspace meaning "the dataset's own
// extent, fully selected". It is never a live identifier and closing
// it is a no-op.
func SpaceAll() *Dataspace {
	return spaceAllOnce()
}

func (s *Dataspace) spaceID() native.ID {
	if s == nil || s.all {
		return native.None
	}
	return s.nativeID()
}

// NewScalarSpace creates a rank-0 dataspace holding one element.
func NewScalarSpace() (*Dataspace, error) {
	return NewSpaceClass(ScalarSpace)
}

// NewSimpleSpace creates a simple dataspace with the given dimensions.
func NewSimpleSpace(dims ...uint64) (*Dataspace, error) {
	return NewSpaceFromDims(dims)
}

// NewSpaceFromDims creates a simple dataspace from a dimension slice.
func NewSpaceFromDims(dims []uint64) (*Dataspace, error) {
	if len(dims) == 0 {
		return nil, newError(InvalidArgument, "NewSimpleSpace", "at least one dimension required", nil)
	}
	id, err := native.NewSpace(native.SpaceSimple, dims, nil)
	if err != nil {
		return nil, wrapError(CreateFailed, "NewSimpleSpace", err)
	}
	return &Dataspace{handle: newHandle(id)}, nil
}

// NewSpaceClass creates a dataspace of the given class. Simple spaces
// need dimensions and must be created through NewSimpleSpace.
func NewSpaceClass(class SpaceClass) (*Dataspace, error) {
	var nc native.SpaceClass
	switch class {
	case ScalarSpace:
		nc = native.SpaceScalar
	case NullSpace:
		nc = native.SpaceNull
	case SimpleSpace:
		return nil, newError(InvalidArgument, "NewSpaceClass", "simple dataspaces require dimensions", nil)
	default:
		return nil, newError(InvalidArgument, "NewSpaceClass", fmt.Sprintf("unknown dataspace class %d", class), nil)
	}
	id, err := native.NewSpace(nc, nil, nil)
	if err != nil {
		return nil, wrapError(CreateFailed, "NewSpaceClass", err)
	}
	return &Dataspace{handle: newHandle(id)}, nil
}

// SpaceOf infers a dataspace from a Go value: scalars and strings map
// to a scalar space, slices to a rank-1 extent of their length.
func SpaceOf(value any) (*Dataspace, error) {
	v := reflect.ValueOf(value)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		return NewSimpleSpace(uint64(v.Len()))
	case reflect.String,
		reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Int,
		reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uint,
		reflect.Float32, reflect.Float64:
		return NewScalarSpace()
	default:
		return nil, newError(InvalidArgument, "SpaceOf", fmt.Sprintf("unsupported value type %T", value), nil)
	}
}

// Copy returns a new handle over a duplicate of this dataspace,
// including its selection.
func (s *Dataspace) Copy() (*Dataspace, error) {
	if s.all {
		return s, nil
	}
	id, err := native.CopySpace(s.spaceID())
	if err != nil {
		return nil, wrapError(CreateFailed, "Dataspace.Copy", err)
	}
	return &Dataspace{handle: newHandle(id)}, nil
}

// Close releases the dataspace handle.
func (s *Dataspace) Close() error {
	return s.close("Dataspace.Close")
}

// NDims returns the extent rank.
func (s *Dataspace) NDims() (int, error) {
	n, err := native.SpaceNDims(s.spaceID())
	if err != nil {
		return 0, wrapError(InspectFailed, "Dataspace.NDims", err)
	}
	return n, nil
}

// Dims returns the extent dimensions (nil for scalar and null spaces).
func (s *Dataspace) Dims() ([]uint64, error) {
	dims, err := native.SpaceDims(s.spaceID())
	if err != nil {
		return nil, wrapError(InspectFailed, "Dataspace.Dims", err)
	}
	return dims, nil
}

// Dim returns the extent of dimension i.
func (s *Dataspace) Dim(i int) (uint64, error) {
	dims, err := s.Dims()
	if err != nil {
		return 0, err
	}
	if i < 0 || i >= len(dims) {
		return 0, newError(InvalidArgument, "Dataspace.Dim",
			fmt.Sprintf("dimension %d out of range for rank %d", i, len(dims)), nil)
	}
	return dims[i], nil
}

// Len returns the total number of points in the extent.
func (s *Dataspace) Len() (uint64, error) {
	n, err := native.SpaceNPoints(s.spaceID())
	if err != nil {
		return 0, wrapError(InspectFailed, "Dataspace.Len", err)
	}
	return n, nil
}

// SelectNPoints returns the number of points in the current selection.
func (s *Dataspace) SelectNPoints() (uint64, error) {
	n, err := native.SelectedNPoints(s.spaceID())
	if err != nil {
		return 0, wrapError(InspectFailed, "Dataspace.SelectNPoints", err)
	}
	return n, nil
}

// SelectAll selects the whole extent.
func (s *Dataspace) SelectAll() error {
	return wrapError(InvalidArgument, "Dataspace.SelectAll", native.SelectAll(s.spaceID()))
}

// SelectNone empties the selection.
func (s *Dataspace) SelectNone() error {
	return wrapError(InvalidArgument, "Dataspace.SelectNone", native.SelectNone(s.spaceID()))
}

// SelectHyperslab combines h with the current selection using op.
func (s *Dataspace) SelectHyperslab(h *Hyperslab, op SelectOp) error {
	if h == nil {
		return newError(InvalidArgument, "Dataspace.SelectHyperslab", "nil hyperslab", nil)
	}
	var nop native.SelectOp
	switch op {
	case SelectSet:
		nop = native.SelectSet
	case SelectOr:
		nop = native.SelectOr
	case SelectAnd:
		nop = native.SelectAnd
	case SelectXor:
		nop = native.SelectXor
	case SelectNotB:
		nop = native.SelectNotB
	default:
		return newError(InvalidArgument, "Dataspace.SelectHyperslab",
			fmt.Sprintf("unknown selection op %d", op), nil)
	}
	err := native.SelectHyperslab(s.spaceID(), nop, h.Start, h.Stride, h.Count, h.Block)
	return wrapError(InvalidArgument, "Dataspace.SelectHyperslab", err)
}
