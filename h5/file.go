package h5

import (
	"fmt"
	"os"

	"github.com/robert-malhotra/go-h5/internal/native"
)

// Flag selects how NewFile opens or creates a file.
type Flag int

const (
	// ReadOnly opens an existing file for reading.
	ReadOnly Flag = 1 << iota
	// ReadWrite opens an existing file for reading and writing.
	ReadWrite
	// Truncate creates the file, replacing any existing one.
	Truncate
	// Exclusive creates the file and fails if it already exists.
	Exclusive
	// Create creates the file if missing, otherwise opens it
	// read-write.
	Create
)

// ObjectType selects entry kinds for File.ObjectCount. The values are
// bit flags and combine with |.
type ObjectType uint32

const (
	TypeFile      = ObjectType(native.KindFile)
	TypeGroup     = ObjectType(native.KindGroup)
	TypeDataset   = ObjectType(native.KindDataset)
	TypeAttribute = ObjectType(native.KindAttribute)
	TypeDataspace = ObjectType(native.KindDataspace)
	TypeDatatype  = ObjectType(native.KindDatatype)
	TypePropList  = ObjectType(native.KindPropList)
	TypeAll       = ObjectType(native.KindAll)
)

// FlushScope selects how far File.Flush reaches. With a single file per
// handle both scopes flush that file.
type FlushScope int

const (
	FlushLocal FlushScope = iota
	FlushGlobal
)

// File is an open HDF5 file. It is also a container: links created
// relative to a file resolve against the root group.
type File struct {
	container
}

func newFile(id native.ID) *File {
	return &File{container{object{handle: newHandle(id)}}}
}

// NewFile opens or creates a file according to flags. A nil fapl takes
// the defaults; pass a file-access list with SetMPIO for parallel
// access.
func NewFile(path string, flags Flag, fapl *FileAccess) (*File, error) {
	faplID := native.None
	if fapl != nil {
		faplID = fapl.plistID()
	}
	var (
		id  native.ID
		err error
	)
	switch {
	case flags&Exclusive != 0:
		id, err = native.CreateFileExclusive(path, faplID)
	case flags&Truncate != 0:
		id, err = native.CreateFile(path, faplID)
	case flags&Create != 0:
		if _, serr := os.Stat(path); serr == nil {
			id, err = native.OpenFile(path, true, faplID)
		} else {
			id, err = native.CreateFile(path, faplID)
		}
	case flags&ReadWrite != 0:
		id, err = native.OpenFile(path, true, faplID)
	case flags&ReadOnly != 0:
		id, err = native.OpenFile(path, false, faplID)
	default:
		return nil, newError(InvalidArgument, "NewFile",
			fmt.Sprintf("no access flag in %#x", int(flags)), nil)
	}
	if err != nil {
		kind := OpenFailed
		if flags&(Truncate|Exclusive|Create) != 0 {
			kind = CreateFailed
		}
		return nil, wrapError(kind, "NewFile", err)
	}
	return newFile(id), nil
}

// Open opens or creates a file using a string mode: "r" read-only,
// "r+" read-write, "w" create (truncating). Any other mode is an
// invalid argument.
func Open(path, mode string, fapl *FileAccess) (*File, error) {
	switch mode {
	case "r":
		return NewFile(path, ReadOnly, fapl)
	case "r+":
		return NewFile(path, ReadWrite, fapl)
	case "w":
		return NewFile(path, Truncate, fapl)
	default:
		return nil, newError(InvalidArgument, "Open",
			fmt.Sprintf("Invalid access flag: %s", mode), nil)
	}
}

// CreateFile creates path, replacing any existing file.
func CreateFile(path string, fapl *FileAccess) (*File, error) {
	return NewFile(path, Truncate, fapl)
}

// OpenFile opens an existing file read-only or read-write.
func OpenFile(path string, readWrite bool, fapl *FileAccess) (*File, error) {
	if readWrite {
		return NewFile(path, ReadWrite, fapl)
	}
	return NewFile(path, ReadOnly, fapl)
}

// IsHDF5 reports whether path starts with the HDF5 signature.
func IsHDF5(path string) bool {
	return native.IsHDF5(path)
}

// Close releases the file handle. The underlying file stays open until
// every handle bound to it (groups, datasets, attributes) is closed.
func (f *File) Close() error {
	return f.close("File.Close")
}

// Ref returns a second handle on the same identifier, incrementing its
// reference count. Both handles must be closed.
func (f *File) Ref() (*File, error) {
	id, err := f.copyRef("File.Ref")
	if err != nil {
		return nil, err
	}
	return newFile(id), nil
}

// Flush writes buffered metadata and the superblock to disk.
func (f *File) Flush(scope FlushScope) error {
	return wrapError(IOFailed, "File.Flush", native.FlushFile(f.nativeID()))
}

// Path returns the filesystem path the file was opened with.
func (f *File) Path() (string, error) {
	p, err := native.FilePath(f.nativeID())
	if err != nil {
		return "", wrapError(InspectFailed, "File.Path", err)
	}
	return p, nil
}

// ObjectCount counts the live identifiers bound to this file whose
// kind matches types.
func (f *File) ObjectCount(types ObjectType) (int, error) {
	n, err := native.ObjectCount(f.nativeID(), native.Kind(types))
	if err != nil {
		return 0, wrapError(InspectFailed, "File.ObjectCount", err)
	}
	return n, nil
}

// SetMPIAtomicity is accepted for source compatibility with parallel
// HDF5 code. In-process communicators already see writes in program
// order, so it does nothing.
func (f *File) SetMPIAtomicity(bool) error {
	return nil
}
