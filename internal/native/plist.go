package native

import (
	"fmt"
	"sync"

	"github.com/robert-malhotra/go-h5/mpi"
)

// PlistClass identifies the property list family.
type PlistClass int

const (
	PlistFileAccess PlistClass = iota
	PlistDatasetCreate
	PlistDatasetTransfer
)

// LayoutClass is the storage layout requested on a dataset-create list.
type LayoutClass int

const (
	LayoutContiguous LayoutClass = iota
	LayoutChunked
	LayoutCompact
)

// XferMode selects independent or collective parallel transfers.
type XferMode int

const (
	XferIndependent XferMode = iota
	XferCollective
)

// IOMode records the transfer mode actually executed.
type IOMode int

const (
	IONone IOMode = iota
	IOIndependent
	IOCollective
)

type plistObject struct {
	mu    sync.Mutex
	class PlistClass

	// file access
	comm mpi.Comm
	info mpi.Info

	// dataset create
	layout     LayoutClass
	chunk      []uint64
	shuffle    bool
	deflate    int // -1 when disabled
	fletcher32 bool

	// dataset transfer
	xfer     XferMode
	actualIO IOMode
}

func (p *plistObject) destroy() error { return nil }

// NewPropList registers a default-initialized property list of the
// given class.
func NewPropList(class PlistClass) ID {
	return register(KindPropList, &plistObject{class: class, deflate: -1}, nil)
}

// CopyPropList duplicates a property list, the construction path for
// every façade list so defaults stay immutable.
func CopyPropList(id ID) (ID, error) {
	p, err := plistOf(id)
	if err != nil {
		return None, err
	}
	p.mu.Lock()
	c := &plistObject{
		class:      p.class,
		comm:       p.comm,
		info:       p.info,
		layout:     p.layout,
		chunk:      append([]uint64(nil), p.chunk...),
		shuffle:    p.shuffle,
		deflate:    p.deflate,
		fletcher32: p.fletcher32,
		xfer:       p.xfer,
	}
	p.mu.Unlock()
	return register(KindPropList, c, nil), nil
}

func plistOf(id ID) (*plistObject, error) {
	e, err := lookupKind(id, KindPropList)
	if err != nil {
		return nil, err
	}
	return e.obj.(*plistObject), nil
}

func plistOfClass(id ID, class PlistClass) (*plistObject, error) {
	p, err := plistOf(id)
	if err != nil {
		return nil, err
	}
	if p.class != class {
		return nil, fmt.Errorf("property list %d has class %d, want %d", id, p.class, class)
	}
	return p, nil
}

// PlistClassOf returns the class of a property list.
func PlistClassOf(id ID) (PlistClass, error) {
	p, err := plistOf(id)
	if err != nil {
		return 0, err
	}
	return p.class, nil
}

// SetMPIO stores a communicator and info on a file-access list.
func SetMPIO(id ID, comm mpi.Comm, info mpi.Info) error {
	p, err := plistOfClass(id, PlistFileAccess)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.comm = comm
	p.info = info
	p.mu.Unlock()
	return nil
}

// faplComm extracts the communicator from an optional file-access list.
func faplComm(id ID) (mpi.Comm, mpi.Info, error) {
	if id == None {
		return nil, nil, nil
	}
	p, err := plistOfClass(id, PlistFileAccess)
	if err != nil {
		return nil, nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.comm, p.info, nil
}

// SetChunk sets chunk dimensions on a dataset-create list and switches
// its layout to chunked.
func SetChunk(id ID, dims []uint64) error {
	p, err := plistOfClass(id, PlistDatasetCreate)
	if err != nil {
		return err
	}
	if len(dims) == 0 {
		return fmt.Errorf("chunk dimensions must not be empty")
	}
	for i, d := range dims {
		if d == 0 {
			return fmt.Errorf("chunk dimension %d must be positive", i)
		}
	}
	p.mu.Lock()
	p.chunk = append([]uint64(nil), dims...)
	p.layout = LayoutChunked
	p.mu.Unlock()
	return nil
}

// ChunkDims returns the chunk dimensions set on a dataset-create list.
func ChunkDims(id ID) ([]uint64, error) {
	p, err := plistOfClass(id, PlistDatasetCreate)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]uint64(nil), p.chunk...), nil
}

// SetShuffle enables the shuffle filter.
func SetShuffle(id ID) error {
	p, err := plistOfClass(id, PlistDatasetCreate)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.shuffle = true
	p.mu.Unlock()
	return nil
}

// SetDeflate enables the deflate filter at the given level (0-9).
func SetDeflate(id ID, level int) error {
	p, err := plistOfClass(id, PlistDatasetCreate)
	if err != nil {
		return err
	}
	if level < 0 || level > 9 {
		return fmt.Errorf("deflate level %d out of range [0,9]", level)
	}
	p.mu.Lock()
	p.deflate = level
	p.mu.Unlock()
	return nil
}

// SetFletcher32 enables the Fletcher-32 checksum filter.
func SetFletcher32(id ID) error {
	p, err := plistOfClass(id, PlistDatasetCreate)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.fletcher32 = true
	p.mu.Unlock()
	return nil
}

// SetLayoutClass forces the storage layout on a dataset-create list.
func SetLayoutClass(id ID, layout LayoutClass) error {
	p, err := plistOfClass(id, PlistDatasetCreate)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.layout = layout
	p.mu.Unlock()
	return nil
}

// LayoutClassOf returns the layout selected on a dataset-create list.
func LayoutClassOf(id ID) (LayoutClass, error) {
	p, err := plistOfClass(id, PlistDatasetCreate)
	if err != nil {
		return 0, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.layout, nil
}

// SetXferMode selects independent or collective transfers.
func SetXferMode(id ID, mode XferMode) error {
	p, err := plistOfClass(id, PlistDatasetTransfer)
	if err != nil {
		return err
	}
	if mode != XferIndependent && mode != XferCollective {
		return fmt.Errorf("unknown transfer mode %d", mode)
	}
	p.mu.Lock()
	p.xfer = mode
	p.mu.Unlock()
	return nil
}

// XferModeOf returns the selected transfer mode.
func XferModeOf(id ID) (XferMode, error) {
	p, err := plistOfClass(id, PlistDatasetTransfer)
	if err != nil {
		return 0, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.xfer, nil
}

// ActualIOMode reports the mode of the last transfer executed with this
// list.
func ActualIOMode(id ID) (IOMode, error) {
	p, err := plistOfClass(id, PlistDatasetTransfer)
	if err != nil {
		return 0, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.actualIO, nil
}

func (p *plistObject) recordIO(mode IOMode) {
	p.mu.Lock()
	p.actualIO = mode
	p.mu.Unlock()
}

// creationSnapshot captures the dataset-create settings for use by the
// dataset layer.
type creationSnapshot struct {
	layout     LayoutClass
	chunk      []uint64
	shuffle    bool
	deflate    int
	fletcher32 bool
}

func snapshotDCPL(id ID) (creationSnapshot, error) {
	if id == None {
		return creationSnapshot{layout: LayoutContiguous, deflate: -1}, nil
	}
	p, err := plistOfClass(id, PlistDatasetCreate)
	if err != nil {
		return creationSnapshot{}, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return creationSnapshot{
		layout:     p.layout,
		chunk:      append([]uint64(nil), p.chunk...),
		shuffle:    p.shuffle,
		deflate:    p.deflate,
		fletcher32: p.fletcher32,
	}, nil
}

// xferSnapshot captures the transfer settings, defaulting to
// independent when no list is supplied.
func xferSnapshot(id ID) (XferMode, *plistObject, error) {
	if id == None {
		return XferIndependent, nil, nil
	}
	p, err := plistOfClass(id, PlistDatasetTransfer)
	if err != nil {
		return 0, nil, err
	}
	p.mu.Lock()
	mode := p.xfer
	p.mu.Unlock()
	return mode, p, nil
}
