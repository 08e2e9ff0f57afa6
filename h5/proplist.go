package h5

import (
	"sync"

	"github.com/robert-malhotra/go-h5/internal/native"
	"github.com/robert-malhotra/go-h5/mpi"
)

// Layout selects how dataset elements are stored.
type Layout int

const (
	// LayoutContiguous stores all elements in one block.
	LayoutContiguous Layout = iota
	// LayoutChunked stores elements in fixed-size chunks.
	LayoutChunked
	// LayoutCompact stores elements inside the object header.
	LayoutCompact
)

// XferMode selects how ranks of a parallel file perform a transfer.
type XferMode int

const (
	// XferIndependent lets each rank transfer on its own.
	XferIndependent XferMode = iota
	// XferCollective synchronizes all ranks around the transfer.
	XferCollective
)

// IOMode reports the transfer mode that actually ran.
type IOMode int

const (
	// IONone means no transfer has run with the list yet.
	IONone IOMode = iota
	// IOIndependent means the last transfer ran independently.
	IOIndependent
	// IOCollective means the last transfer ran collectively.
	IOCollective
)

// PropList is the shared core of the property list hierarchy.
type PropList struct {
	*handle
}

// Close releases the property list handle. Default lists ignore it.
func (p *PropList) Close() error {
	return p.close("PropList.Close")
}

func (p *PropList) plistID() native.ID {
	if p == nil {
		return native.None
	}
	return p.nativeID()
}

// FileAccess configures how files are opened, notably parallel access.
type FileAccess struct {
	PropList
}

// DatasetCreate configures dataset storage: layout, chunking, filters.
type DatasetCreate struct {
	PropList
}

// DatasetTransfer configures individual read and write calls.
type DatasetTransfer struct {
	PropList
}

// Pinned default lists. They are immutable: the New* constructors copy
// them, so mutating a copied list never affects the default.
var (
	defaultFileAccess = sync.OnceValue(func() *FileAccess {
		id := native.NewPropList(native.PlistFileAccess)
		native.Pin(id)
		return &FileAccess{PropList{handle: newPinnedHandle(id)}}
	})
	defaultDatasetCreate = sync.OnceValue(func() *DatasetCreate {
		id := native.NewPropList(native.PlistDatasetCreate)
		native.Pin(id)
		return &DatasetCreate{PropList{handle: newPinnedHandle(id)}}
	})
	defaultDatasetTransfer = sync.OnceValue(func() *DatasetTransfer {
		id := native.NewPropList(native.PlistDatasetTransfer)
		native.Pin(id)
		return &DatasetTransfer{PropList{handle: newPinnedHandle(id)}}
	})
)

// DefaultFileAccess returns the immutable default file-access list.
func DefaultFileAccess() *FileAccess { return defaultFileAccess() }

// DefaultDatasetCreate returns the immutable default dataset-create
// list: contiguous layout, no filters.
func DefaultDatasetCreate() *DatasetCreate { return defaultDatasetCreate() }

// DefaultDatasetTransfer returns the immutable default transfer list:
// independent mode.
func DefaultDatasetTransfer() *DatasetTransfer { return defaultDatasetTransfer() }

func copyPlist(op string, id native.ID) (native.ID, error) {
	cid, err := native.CopyPropList(id)
	if err != nil {
		return native.None, wrapError(CreateFailed, op, err)
	}
	return cid, nil
}

// NewFileAccess returns a mutable copy of the default file-access list.
func NewFileAccess() (*FileAccess, error) {
	id, err := copyPlist("NewFileAccess", defaultFileAccess().plistID())
	if err != nil {
		return nil, err
	}
	return &FileAccess{PropList{handle: newHandle(id)}}, nil
}

// NewDatasetCreate returns a mutable copy of the default dataset-create
// list.
func NewDatasetCreate() (*DatasetCreate, error) {
	id, err := copyPlist("NewDatasetCreate", defaultDatasetCreate().plistID())
	if err != nil {
		return nil, err
	}
	return &DatasetCreate{PropList{handle: newHandle(id)}}, nil
}

// NewDatasetTransfer returns a mutable copy of the default transfer
// list.
func NewDatasetTransfer() (*DatasetTransfer, error) {
	id, err := copyPlist("NewDatasetTransfer", defaultDatasetTransfer().plistID())
	if err != nil {
		return nil, err
	}
	return &DatasetTransfer{PropList{handle: newHandle(id)}}, nil
}

// Copy duplicates the list.
func (p *FileAccess) Copy() (*FileAccess, error) {
	id, err := copyPlist("FileAccess.Copy", p.plistID())
	if err != nil {
		return nil, err
	}
	return &FileAccess{PropList{handle: newHandle(id)}}, nil
}

// SetMPIO attaches a communicator (and optional info hints) so files
// opened with this list are shared across the communicator's ranks.
func (p *FileAccess) SetMPIO(comm mpi.Comm, info mpi.Info) error {
	if comm == nil {
		return newError(InvalidArgument, "FileAccess.SetMPIO", "nil communicator", nil)
	}
	return wrapError(InvalidArgument, "FileAccess.SetMPIO", native.SetMPIO(p.plistID(), comm, info))
}

// Copy duplicates the list.
func (p *DatasetCreate) Copy() (*DatasetCreate, error) {
	id, err := copyPlist("DatasetCreate.Copy", p.plistID())
	if err != nil {
		return nil, err
	}
	return &DatasetCreate{PropList{handle: newHandle(id)}}, nil
}

// SetChunk sets the chunk dimensions and switches the layout to
// chunked.
func (p *DatasetCreate) SetChunk(dims ...uint64) error {
	return wrapError(InvalidArgument, "DatasetCreate.SetChunk", native.SetChunk(p.plistID(), dims))
}

// SetChunkDims is SetChunk taking a dimension slice.
func (p *DatasetCreate) SetChunkDims(dims []uint64) error {
	return wrapError(InvalidArgument, "DatasetCreate.SetChunkDims", native.SetChunk(p.plistID(), dims))
}

// ChunkDims returns the configured chunk dimensions, nil when unset.
func (p *DatasetCreate) ChunkDims() ([]uint64, error) {
	dims, err := native.ChunkDims(p.plistID())
	if err != nil {
		return nil, wrapError(InspectFailed, "DatasetCreate.ChunkDims", err)
	}
	if len(dims) == 0 {
		return nil, nil
	}
	return dims, nil
}

// SetShuffle enables the byte-shuffle filter. It only affects chunked
// datasets.
func (p *DatasetCreate) SetShuffle() error {
	return wrapError(InvalidArgument, "DatasetCreate.SetShuffle", native.SetShuffle(p.plistID()))
}

// SetDeflate enables deflate compression at the given level (0-9).
func (p *DatasetCreate) SetDeflate(level int) error {
	return wrapError(InvalidArgument, "DatasetCreate.SetDeflate", native.SetDeflate(p.plistID(), level))
}

// SetFletcher32 enables the Fletcher-32 checksum filter.
func (p *DatasetCreate) SetFletcher32() error {
	return wrapError(InvalidArgument, "DatasetCreate.SetFletcher32", native.SetFletcher32(p.plistID()))
}

// SetLayout forces the storage layout.
func (p *DatasetCreate) SetLayout(layout Layout) error {
	var nl native.LayoutClass
	switch layout {
	case LayoutContiguous:
		nl = native.LayoutContiguous
	case LayoutChunked:
		nl = native.LayoutChunked
	case LayoutCompact:
		nl = native.LayoutCompact
	default:
		return newError(InvalidArgument, "DatasetCreate.SetLayout", "unknown layout", nil)
	}
	return wrapError(InvalidArgument, "DatasetCreate.SetLayout", native.SetLayoutClass(p.plistID(), nl))
}

// Layout returns the selected storage layout.
func (p *DatasetCreate) Layout() (Layout, error) {
	nl, err := native.LayoutClassOf(p.plistID())
	if err != nil {
		return 0, wrapError(InspectFailed, "DatasetCreate.Layout", err)
	}
	switch nl {
	case native.LayoutChunked:
		return LayoutChunked, nil
	case native.LayoutCompact:
		return LayoutCompact, nil
	default:
		return LayoutContiguous, nil
	}
}

// Copy duplicates the list.
func (p *DatasetTransfer) Copy() (*DatasetTransfer, error) {
	id, err := copyPlist("DatasetTransfer.Copy", p.plistID())
	if err != nil {
		return nil, err
	}
	return &DatasetTransfer{PropList{handle: newHandle(id)}}, nil
}

// SetMPIO selects the parallel transfer mode.
func (p *DatasetTransfer) SetMPIO(mode XferMode) error {
	var nm native.XferMode
	switch mode {
	case XferIndependent:
		nm = native.XferIndependent
	case XferCollective:
		nm = native.XferCollective
	default:
		return newError(InvalidArgument, "DatasetTransfer.SetMPIO", "unknown transfer mode", nil)
	}
	return wrapError(InvalidArgument, "DatasetTransfer.SetMPIO", native.SetXferMode(p.plistID(), nm))
}

// SetMPIOCollective selects collective transfers.
func (p *DatasetTransfer) SetMPIOCollective() error { return p.SetMPIO(XferCollective) }

// SetMPIOIndependent selects independent transfers.
func (p *DatasetTransfer) SetMPIOIndependent() error { return p.SetMPIO(XferIndependent) }

// Mode returns the selected transfer mode.
func (p *DatasetTransfer) Mode() (XferMode, error) {
	nm, err := native.XferModeOf(p.plistID())
	if err != nil {
		return 0, wrapError(InspectFailed, "DatasetTransfer.Mode", err)
	}
	if nm == native.XferCollective {
		return XferCollective, nil
	}
	return XferIndependent, nil
}

// ActualIOMode reports what the last transfer using this list actually
// did: collective transfers may degrade to independent when the file is
// not parallel.
func (p *DatasetTransfer) ActualIOMode() (IOMode, error) {
	nm, err := native.ActualIOMode(p.plistID())
	if err != nil {
		return 0, wrapError(InspectFailed, "DatasetTransfer.ActualIOMode", err)
	}
	switch nm {
	case native.IOIndependent:
		return IOIndependent, nil
	case native.IOCollective:
		return IOCollective, nil
	default:
		return IONone, nil
	}
}
