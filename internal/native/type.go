package native

import (
	"fmt"
	"reflect"

	"github.com/robert-malhotra/go-h5/internal/dtype"
	"github.com/robert-malhotra/go-h5/internal/message"
)

// typeObject wraps an engine datatype description.
type typeObject struct {
	dt *message.Datatype
}

func (t *typeObject) destroy() error { return nil }

func typeOf(id ID) (*message.Datatype, error) {
	e, err := lookupKind(id, KindDatatype)
	if err != nil {
		return nil, err
	}
	return e.obj.(*typeObject).dt, nil
}

func registerType(dt *message.Datatype) ID {
	return register(KindDatatype, &typeObject{dt: dt}, nil)
}

// NewFixedType registers a little-endian fixed-point type.
func NewFixedType(size uint32, signed bool) ID {
	return registerType(message.NewFixedPointDatatype(size, signed, message.OrderLE))
}

// NewFloatType registers a little-endian IEEE float type of 4 or 8
// bytes.
func NewFloatType(size uint32) (ID, error) {
	if size != 4 && size != 8 {
		return None, fmt.Errorf("float size must be 4 or 8, got %d", size)
	}
	return registerType(message.NewFloatDatatype(size, message.OrderLE)), nil
}

// NewVlenStringType registers the variable-length UTF-8 string type.
func NewVlenStringType() ID {
	return registerType(message.NewVarLenStringDatatype(message.CharsetUTF8))
}

// NewFixedStringType registers a null-terminated ASCII string type of
// the given byte size.
func NewFixedStringType(size uint32) (ID, error) {
	if size == 0 {
		return None, fmt.Errorf("string size must be positive")
	}
	return registerType(message.NewStringDatatype(size, message.PadNullTerm, message.CharsetASCII)), nil
}

// TypeForGo registers the default file type for a Go value's type,
// following the engine's Go-to-HDF5 mapping (strings become
// variable-length UTF-8).
func TypeForGo(v any) (ID, error) {
	dt, err := dtype.GoTypeToDatatype(reflect.TypeOf(v))
	if err != nil {
		return None, err
	}
	return registerType(dt), nil
}

// CopyType duplicates a datatype under a fresh id.
func CopyType(id ID) (ID, error) {
	dt, err := typeOf(id)
	if err != nil {
		return None, err
	}
	c := *dt
	return registerType(&c), nil
}

// TypeSize returns the on-disk element size in bytes.
func TypeSize(id ID) (uint64, error) {
	dt, err := typeOf(id)
	if err != nil {
		return 0, err
	}
	return uint64(dt.Size), nil
}

// TypeIsVlenString reports whether the type is a variable-length
// string.
func TypeIsVlenString(id ID) (bool, error) {
	dt, err := typeOf(id)
	if err != nil {
		return false, err
	}
	return dt.Class == message.ClassVarLen && dt.IsVarLenString, nil
}

// TypesEqual compares two datatypes structurally: class, size, sign and
// string properties, never id identity.
func TypesEqual(a, b ID) (bool, error) {
	da, err := typeOf(a)
	if err != nil {
		return false, err
	}
	db, err := typeOf(b)
	if err != nil {
		return false, err
	}
	return datatypesEqual(da, db), nil
}

func datatypesEqual(a, b *message.Datatype) bool {
	if a.Class != b.Class || a.Size != b.Size {
		return false
	}
	switch a.Class {
	case message.ClassFixedPoint:
		return a.Signed == b.Signed && a.ByteOrder == b.ByteOrder
	case message.ClassFloatPoint:
		return a.ByteOrder == b.ByteOrder
	case message.ClassString:
		return a.StringPadding == b.StringPadding && a.CharSet == b.CharSet
	case message.ClassVarLen:
		return a.IsVarLenString == b.IsVarLenString && a.CharSet == b.CharSet
	}
	return true
}
