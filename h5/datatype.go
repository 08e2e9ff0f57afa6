package h5

import (
	"reflect"
	"sync"

	"github.com/robert-malhotra/go-h5/internal/native"
)

// Datatype describes an element type, either a predefined singleton or
// a copy owned by the caller.
type Datatype struct {
	*handle
}

// Size returns the on-disk element size in bytes. Variable-length
// strings report the size of the heap reference.
func (t *Datatype) Size() (uint64, error) {
	n, err := native.TypeSize(t.nativeID())
	if err != nil {
		return 0, wrapError(InspectFailed, "Datatype.Size", err)
	}
	return n, nil
}

// Equal reports structural equality with other: class, size, sign,
// byte order and string properties. Identifier identity is irrelevant.
func (t *Datatype) Equal(other *Datatype) (bool, error) {
	if other == nil {
		return false, newError(InvalidArgument, "Datatype.Equal", "nil datatype", nil)
	}
	eq, err := native.TypesEqual(t.nativeID(), other.nativeID())
	if err != nil {
		return false, wrapError(InspectFailed, "Datatype.Equal", err)
	}
	return eq, nil
}

// Copy returns a caller-owned duplicate. Copies of predefined types are
// ordinary handles and must be closed.
func (t *Datatype) Copy() (*Datatype, error) {
	id, err := native.CopyType(t.nativeID())
	if err != nil {
		return nil, wrapError(CreateFailed, "Datatype.Copy", err)
	}
	return &Datatype{handle: newHandle(id)}, nil
}

// Close releases the handle. Predefined types ignore it.
func (t *Datatype) Close() error {
	return t.close("Datatype.Close")
}

// NewFixedStringType creates a null-terminated ASCII string type of the
// given byte size.
func NewFixedStringType(size uint32) (*Datatype, error) {
	id, err := native.NewFixedStringType(size)
	if err != nil {
		return nil, wrapError(InvalidArgument, "NewFixedStringType", err)
	}
	return &Datatype{handle: newHandle(id)}, nil
}

// TypeFrom infers the default file datatype for a Go value. Strings map
// to variable-length UTF-8.
func TypeFrom(value any) (*Datatype, error) {
	id, err := native.TypeForGo(value)
	if err != nil {
		return nil, newError(InvalidArgument, "TypeFrom", "", err)
	}
	return &Datatype{handle: newHandle(id)}, nil
}

// PredTypeFor returns the predefined datatype singleton matching T's
// element kind. Slice types map to their element's predefined type.
func PredTypeFor[T Value]() *Datatype {
	var zero T
	t := reflect.TypeOf(zero)
	if t.Kind() == reflect.Slice {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Int8:
		return NativeInt8()
	case reflect.Int16:
		return NativeInt16()
	case reflect.Int32:
		return NativeInt32()
	case reflect.Int64:
		return NativeInt64()
	case reflect.Int:
		return NativeInt()
	case reflect.Uint8:
		return NativeUint8()
	case reflect.Uint16:
		return NativeUint16()
	case reflect.Uint32:
		return NativeUint32()
	case reflect.Uint64:
		return NativeUint64()
	case reflect.Float32:
		return NativeFloat()
	case reflect.Float64:
		return NativeDouble()
	case reflect.String:
		return StringUTF8Vlen()
	default:
		// Value is a closed constraint, so no other kind can appear.
		return nil
	}
}

// pinnedType registers a predefined type once and pins it so Close is a
// no-op and the id never dies.
func pinnedType(build func() native.ID) func() *Datatype {
	return sync.OnceValue(func() *Datatype {
		id := build()
		native.Pin(id)
		return &Datatype{handle: newPinnedHandle(id)}
	})
}

// Predefined datatype singletons. They are shared, pinned and never
// closed; use Copy to obtain a mutable duplicate.
var (
	// NativeInt8 is a 1-byte signed little-endian integer.
	NativeInt8 = pinnedType(func() native.ID { return native.NewFixedType(1, true) })
	// NativeInt16 is a 2-byte signed little-endian integer.
	NativeInt16 = pinnedType(func() native.ID { return native.NewFixedType(2, true) })
	// NativeInt32 is a 4-byte signed little-endian integer.
	NativeInt32 = pinnedType(func() native.ID { return native.NewFixedType(4, true) })
	// NativeInt64 is an 8-byte signed little-endian integer.
	NativeInt64 = pinnedType(func() native.ID { return native.NewFixedType(8, true) })
	// NativeInt matches Go's int (8 bytes on supported targets).
	NativeInt = pinnedType(func() native.ID { return native.NewFixedType(8, true) })
	// NativeUint8 is a 1-byte unsigned little-endian integer.
	NativeUint8 = pinnedType(func() native.ID { return native.NewFixedType(1, false) })
	// NativeUint16 is a 2-byte unsigned little-endian integer.
	NativeUint16 = pinnedType(func() native.ID { return native.NewFixedType(2, false) })
	// NativeUint32 is a 4-byte unsigned little-endian integer.
	NativeUint32 = pinnedType(func() native.ID { return native.NewFixedType(4, false) })
	// NativeUint64 is an 8-byte unsigned little-endian integer.
	NativeUint64 = pinnedType(func() native.ID { return native.NewFixedType(8, false) })
	// NativeChar is a 1-byte signed integer, the C char convention.
	NativeChar = pinnedType(func() native.ID { return native.NewFixedType(1, true) })
	// NativeFloat is a 4-byte IEEE little-endian float.
	NativeFloat = pinnedType(func() native.ID {
		id, _ := native.NewFloatType(4)
		return id
	})
	// NativeDouble is an 8-byte IEEE little-endian float.
	NativeDouble = pinnedType(func() native.ID {
		id, _ := native.NewFloatType(8)
		return id
	})
	// StringUTF8Vlen is the variable-length UTF-8 string type.
	StringUTF8Vlen = pinnedType(native.NewVlenStringType)
)
