// Package native implements the identifier-based interface the public
// façade drives: an id registry with reference counts plus the file,
// group, dataset, attribute, dataspace, datatype and property-list
// operations built on the format engine.
package native

import (
	"fmt"
	"sync"
)

// ID identifies a live registry entry. The zero value None never
// identifies a live entry.
type ID int64

// None is the invalid identifier sentinel.
const None ID = 0

// Kind classifies registry entries. Kinds are bit flags so census
// queries can combine them.
type Kind uint32

const (
	KindFile Kind = 1 << iota
	KindGroup
	KindDataset
	KindAttribute
	KindDataspace
	KindDatatype
	KindPropList
)

// KindAll matches every entry kind.
const KindAll = KindFile | KindGroup | KindDataset | KindAttribute |
	KindDataspace | KindDatatype | KindPropList

// destroyer is implemented by objects that need teardown when their
// last reference is released.
type destroyer interface {
	destroy() error
}

type entry struct {
	kind   Kind
	obj    any
	refs   int
	pinned bool
	res    *fileResource // owning file, nil for file-independent ids
}

var (
	regMu  sync.Mutex
	reg    = map[ID]*entry{}
	nextID ID = 1
)

// register adds obj to the registry with a refcount of 1 and returns
// its fresh id. res, when non-nil, binds the entry's lifetime to a
// file: the engine file stays open until every bound entry is gone.
func register(kind Kind, obj any, res *fileResource) ID {
	regMu.Lock()
	defer regMu.Unlock()

	id := nextID
	nextID++
	reg[id] = &entry{kind: kind, obj: obj, refs: 1, res: res}
	if res != nil {
		res.addUser()
	}
	return id
}

func lookup(id ID) (*entry, error) {
	regMu.Lock()
	defer regMu.Unlock()
	e, ok := reg[id]
	if !ok {
		return nil, fmt.Errorf("invalid identifier %d", id)
	}
	return e, nil
}

func lookupKind(id ID, kind Kind) (*entry, error) {
	e, err := lookup(id)
	if err != nil {
		return nil, err
	}
	if e.kind&kind == 0 {
		return nil, fmt.Errorf("identifier %d has kind %v, want %v", id, e.kind, kind)
	}
	return e, nil
}

// Pin marks an entry as process-lifetime: DecRef becomes a no-op so
// predefined singletons can never be destroyed by clients.
func Pin(id ID) {
	regMu.Lock()
	defer regMu.Unlock()
	if e, ok := reg[id]; ok {
		e.pinned = true
	}
}

// IsValid reports whether id names a live registry entry.
func IsValid(id ID) bool {
	regMu.Lock()
	defer regMu.Unlock()
	_, ok := reg[id]
	return ok
}

// TypeOf returns the kind of a live entry, or 0 for a dead id.
func TypeOf(id ID) Kind {
	regMu.Lock()
	defer regMu.Unlock()
	if e, ok := reg[id]; ok {
		return e.kind
	}
	return 0
}

// RefCount returns the current reference count of id.
func RefCount(id ID) (int, error) {
	regMu.Lock()
	defer regMu.Unlock()
	e, ok := reg[id]
	if !ok {
		return 0, fmt.Errorf("invalid identifier %d", id)
	}
	return e.refs, nil
}

// IncRef adds a reference to id and returns the new count.
func IncRef(id ID) (int, error) {
	regMu.Lock()
	defer regMu.Unlock()
	e, ok := reg[id]
	if !ok {
		return 0, fmt.Errorf("invalid identifier %d", id)
	}
	e.refs++
	return e.refs, nil
}

// DecRef drops a reference. When the count reaches zero the entry is
// removed, its object destroyed, and its file binding released. Pinned
// entries ignore DecRef.
func DecRef(id ID) (int, error) {
	regMu.Lock()
	e, ok := reg[id]
	if !ok {
		regMu.Unlock()
		return 0, fmt.Errorf("invalid identifier %d", id)
	}
	if e.pinned {
		regMu.Unlock()
		return e.refs, nil
	}
	e.refs--
	if e.refs > 0 {
		refs := e.refs
		regMu.Unlock()
		return refs, nil
	}
	delete(reg, id)
	regMu.Unlock()

	var err error
	if d, ok := e.obj.(destroyer); ok {
		err = d.destroy()
	}
	if e.res != nil {
		if rerr := e.res.release(); rerr != nil && err == nil {
			err = rerr
		}
	}
	return 0, err
}

// ObjectCount counts live registry entries bound to the same file as
// fileID whose kind matches the given mask. The file handles themselves
// count under KindFile.
func ObjectCount(fileID ID, kinds Kind) (int, error) {
	regMu.Lock()
	defer regMu.Unlock()

	e, ok := reg[fileID]
	if !ok {
		return 0, fmt.Errorf("invalid identifier %d", fileID)
	}
	if e.kind != KindFile {
		return 0, fmt.Errorf("identifier %d is not a file", fileID)
	}

	n := 0
	for _, cand := range reg {
		if cand.res == e.res && cand.kind&kinds != 0 {
			n++
		}
	}
	return n, nil
}
