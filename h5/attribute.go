package h5

import (
	"github.com/robert-malhotra/go-h5/internal/native"
)

// Attribute is a small named value attached to a file, group or
// dataset. Attribute data lives in the object header and is always
// transferred whole.
type Attribute struct {
	*handle
}

// Close releases the attribute handle.
func (a *Attribute) Close() error {
	return a.close("Attribute.Close")
}

// Name returns the attribute's name.
func (a *Attribute) Name() (string, error) {
	name, err := native.AttributeName(a.nativeID())
	if err != nil {
		return "", wrapError(InspectFailed, "Attribute.Name", err)
	}
	return name, nil
}

// Space returns a fresh dataspace describing the attribute's extent.
func (a *Attribute) Space() (*Dataspace, error) {
	id, err := native.AttributeSpace(a.nativeID())
	if err != nil {
		return nil, wrapError(InspectFailed, "Attribute.Space", err)
	}
	return &Dataspace{handle: newHandle(id)}, nil
}

// Type returns a copy of the attribute's file datatype.
func (a *Attribute) Type() (*Datatype, error) {
	id, err := native.AttributeType(a.nativeID())
	if err != nil {
		return nil, wrapError(InspectFailed, "Attribute.Type", err)
	}
	return &Datatype{handle: newHandle(id)}, nil
}

// Write replaces the attribute's value. The element count must match
// the attribute's extent.
func (a *Attribute) Write(data any) error {
	if err := rejectPointers("Attribute.Write", data); err != nil {
		return err
	}
	return wrapError(IOFailed, "Attribute.Write", native.WriteAttributeValue(a.nativeID(), data))
}

// Read transfers the attribute's value into dest, a pointer to a
// slice, string or scalar.
func (a *Attribute) Read(dest any) error {
	if dest == nil {
		return newError(InvalidArgument, "Attribute.Read", "nil destination", nil)
	}
	return wrapError(IOFailed, "Attribute.Read", native.ReadAttributeValue(a.nativeID(), dest))
}
