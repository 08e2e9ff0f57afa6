package native

import (
	"fmt"
	"sort"
	"sync"
)

// SpaceClass is the extent class of a dataspace.
type SpaceClass int

const (
	SpaceScalar SpaceClass = iota
	SpaceSimple
	SpaceNull
)

// SelectOp combines a new hyperslab with the current selection.
type SelectOp int

const (
	SelectSet SelectOp = iota
	SelectOr
	SelectAnd
	SelectXor
	SelectNotB
)

type selKind int

const (
	selAll selKind = iota
	selNone
	selSpans
)

// span is a run of consecutive elements in row-major element index
// space. Selections are kept as sorted, non-overlapping span lists so
// hyperslab set algebra and data scatter/gather stay simple.
type span struct {
	start uint64
	count uint64
}

type spaceObject struct {
	mu      sync.Mutex
	class   SpaceClass
	dims    []uint64
	maxDims []uint64
	sel     selKind
	spans   []span
}

func (s *spaceObject) destroy() error { return nil }

func (s *spaceObject) npoints() uint64 {
	switch s.class {
	case SpaceScalar:
		return 1
	case SpaceNull:
		return 0
	}
	n := uint64(1)
	for _, d := range s.dims {
		n *= d
	}
	return n
}

// selectionSpans returns the selected element runs. A full selection
// collapses to one run covering the extent.
func (s *spaceObject) selectionSpans() []span {
	switch s.sel {
	case selAll:
		n := s.npoints()
		if n == 0 {
			return nil
		}
		return []span{{start: 0, count: n}}
	case selNone:
		return nil
	default:
		return s.spans
	}
}

func (s *spaceObject) selectedPoints() uint64 {
	var n uint64
	for _, sp := range s.selectionSpans() {
		n += sp.count
	}
	return n
}

func (s *spaceObject) clone() *spaceObject {
	c := &spaceObject{
		class: s.class,
		sel:   s.sel,
	}
	c.dims = append([]uint64(nil), s.dims...)
	c.maxDims = append([]uint64(nil), s.maxDims...)
	c.spans = append([]span(nil), s.spans...)
	return c
}

// NewSpace registers a dataspace with the given class and extent.
func NewSpace(class SpaceClass, dims, maxDims []uint64) (ID, error) {
	if class == SpaceSimple {
		if len(dims) == 0 {
			return None, fmt.Errorf("simple dataspace requires at least one dimension")
		}
		if maxDims != nil && len(maxDims) != len(dims) {
			return None, fmt.Errorf("maxDims rank %d does not match dims rank %d", len(maxDims), len(dims))
		}
	} else if len(dims) > 0 {
		return None, fmt.Errorf("dimensions are only valid for simple dataspaces")
	}
	obj := &spaceObject{
		class:   class,
		dims:    append([]uint64(nil), dims...),
		maxDims: append([]uint64(nil), maxDims...),
		sel:     selAll,
	}
	return register(KindDataspace, obj, nil), nil
}

// CopySpace duplicates a dataspace including its selection.
func CopySpace(id ID) (ID, error) {
	s, err := spaceOf(id)
	if err != nil {
		return None, err
	}
	s.mu.Lock()
	c := s.clone()
	s.mu.Unlock()
	return register(KindDataspace, c, nil), nil
}

func spaceOf(id ID) (*spaceObject, error) {
	e, err := lookupKind(id, KindDataspace)
	if err != nil {
		return nil, err
	}
	return e.obj.(*spaceObject), nil
}

// SpaceClassOf returns the extent class.
func SpaceClassOf(id ID) (SpaceClass, error) {
	s, err := spaceOf(id)
	if err != nil {
		return 0, err
	}
	return s.class, nil
}

// SpaceDims returns a copy of the extent dimensions (nil for scalar and
// null spaces).
func SpaceDims(id ID) ([]uint64, error) {
	s, err := spaceOf(id)
	if err != nil {
		return nil, err
	}
	return append([]uint64(nil), s.dims...), nil
}

// SpaceMaxDims returns a copy of the maximum dimensions.
func SpaceMaxDims(id ID) ([]uint64, error) {
	s, err := spaceOf(id)
	if err != nil {
		return nil, err
	}
	return append([]uint64(nil), s.maxDims...), nil
}

// SpaceNDims returns the extent rank.
func SpaceNDims(id ID) (int, error) {
	s, err := spaceOf(id)
	if err != nil {
		return 0, err
	}
	if s.class != SpaceSimple {
		return 0, nil
	}
	return len(s.dims), nil
}

// SpaceNPoints returns the number of points in the extent.
func SpaceNPoints(id ID) (uint64, error) {
	s, err := spaceOf(id)
	if err != nil {
		return 0, err
	}
	return s.npoints(), nil
}

// SelectedNPoints returns the number of points in the current
// selection.
func SelectedNPoints(id ID) (uint64, error) {
	s, err := spaceOf(id)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedPoints(), nil
}

// SelectAll selects the whole extent.
func SelectAll(id ID) error {
	s, err := spaceOf(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.sel = selAll
	s.spans = nil
	s.mu.Unlock()
	return nil
}

// SelectNone empties the selection.
func SelectNone(id ID) error {
	s, err := spaceOf(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.sel = selNone
	s.spans = nil
	s.mu.Unlock()
	return nil
}

// SelectHyperslab combines the described hyperslab with the current
// selection using op. stride, count and block may be nil, defaulting to
// 1 per dimension.
func SelectHyperslab(id ID, op SelectOp, start, stride, count, block []uint64) error {
	s, err := spaceOf(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.class != SpaceSimple {
		return fmt.Errorf("hyperslab selections require a simple dataspace")
	}
	rank := len(s.dims)
	start, stride, count, block, err = normalizeHyperslab(rank, start, stride, count, block)
	if err != nil {
		return err
	}

	slab, err := hyperslabSpans(s.dims, start, stride, count, block)
	if err != nil {
		return err
	}

	switch op {
	case SelectSet:
		s.spans = slab
	case SelectOr:
		s.spans = unionSpans(s.selectionSpans(), slab)
	case SelectAnd:
		s.spans = intersectSpans(s.selectionSpans(), slab)
	case SelectXor:
		cur := s.selectionSpans()
		s.spans = unionSpans(subtractSpans(cur, slab), subtractSpans(slab, cur))
	case SelectNotB:
		s.spans = subtractSpans(s.selectionSpans(), slab)
	default:
		return fmt.Errorf("unknown selection operation %d", op)
	}
	s.sel = selSpans
	return nil
}

func normalizeHyperslab(rank int, start, stride, count, block []uint64) (st, sd, ct, bl []uint64, err error) {
	fill := func(v []uint64, def uint64, name string) ([]uint64, error) {
		if v == nil {
			out := make([]uint64, rank)
			for i := range out {
				out[i] = def
			}
			return out, nil
		}
		if len(v) != rank {
			return nil, fmt.Errorf("hyperslab %s rank %d does not match dataspace rank %d", name, len(v), rank)
		}
		return v, nil
	}
	if st, err = fill(start, 0, "start"); err != nil {
		return
	}
	if sd, err = fill(stride, 1, "stride"); err != nil {
		return
	}
	if ct, err = fill(count, 1, "count"); err != nil {
		return
	}
	bl, err = fill(block, 1, "block")
	return
}

// hyperslabSpans flattens a start/stride/count/block description into
// sorted element runs.
func hyperslabSpans(dims, start, stride, count, block []uint64) ([]span, error) {
	rank := len(dims)
	for i := 0; i < rank; i++ {
		if stride[i] == 0 {
			return nil, fmt.Errorf("hyperslab stride must be positive in dimension %d", i)
		}
		if block[i] > stride[i] && count[i] > 1 {
			return nil, fmt.Errorf("hyperslab blocks overlap in dimension %d", i)
		}
		extent := start[i] + (count[i]-1)*stride[i] + block[i]
		if count[i] > 0 && block[i] > 0 && extent > dims[i] {
			return nil, fmt.Errorf("hyperslab exceeds extent in dimension %d: %d > %d", i, extent, dims[i])
		}
	}

	// Row-major strides of the extent.
	rowStride := make([]uint64, rank)
	acc := uint64(1)
	for i := rank - 1; i >= 0; i-- {
		rowStride[i] = acc
		acc *= dims[i]
	}

	var spans []span
	var walk func(dim int, base uint64)
	walk = func(dim int, base uint64) {
		if dim == rank-1 {
			for c := uint64(0); c < count[dim]; c++ {
				offset := base + (start[dim]+c*stride[dim])*rowStride[dim]
				spans = append(spans, span{start: offset, count: block[dim]})
			}
			return
		}
		for c := uint64(0); c < count[dim]; c++ {
			for b := uint64(0); b < block[dim]; b++ {
				walk(dim+1, base+(start[dim]+c*stride[dim]+b)*rowStride[dim])
			}
		}
	}
	if rank > 0 {
		walk(0, 0)
	}
	return coalesceSpans(spans), nil
}

// coalesceSpans sorts and merges adjacent or overlapping runs.
func coalesceSpans(spans []span) []span {
	if len(spans) == 0 {
		return nil
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })
	out := spans[:1]
	for _, sp := range spans[1:] {
		last := &out[len(out)-1]
		if sp.start <= last.start+last.count {
			end := sp.start + sp.count
			if end > last.start+last.count {
				last.count = end - last.start
			}
			continue
		}
		out = append(out, sp)
	}
	return out
}

func unionSpans(a, b []span) []span {
	return coalesceSpans(append(append([]span(nil), a...), b...))
}

func intersectSpans(a, b []span) []span {
	var out []span
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		lo := max64(a[i].start, b[j].start)
		hi := min64(a[i].start+a[i].count, b[j].start+b[j].count)
		if lo < hi {
			out = append(out, span{start: lo, count: hi - lo})
		}
		if a[i].start+a[i].count < b[j].start+b[j].count {
			i++
		} else {
			j++
		}
	}
	return out
}

func subtractSpans(a, b []span) []span {
	var out []span
	j := 0
	for _, sp := range a {
		cur := sp
		for j < len(b) && b[j].start+b[j].count <= cur.start {
			j++
		}
		k := j
		for cur.count > 0 && k < len(b) && b[k].start < cur.start+cur.count {
			if b[k].start > cur.start {
				out = append(out, span{start: cur.start, count: b[k].start - cur.start})
			}
			cut := b[k].start + b[k].count
			if cut >= cur.start+cur.count {
				cur.count = 0
			} else {
				cur.count = cur.start + cur.count - cut
				cur.start = cut
			}
			k++
		}
		if cur.count > 0 {
			out = append(out, cur)
		}
	}
	return out
}

func max64(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

func min64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
