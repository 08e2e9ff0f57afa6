package h5

import (
	"fmt"
	"reflect"

	"github.com/robert-malhotra/go-h5/internal/native"
)

// Dataset is a typed, shaped array of elements stored in a file.
type Dataset struct {
	object
}

// Close releases the dataset handle.
func (d *Dataset) Close() error {
	return d.close("Dataset.Close")
}

// Ref returns a second handle on the same identifier, incrementing its
// reference count. Both handles must be closed.
func (d *Dataset) Ref() (*Dataset, error) {
	id, err := d.copyRef("Dataset.Ref")
	if err != nil {
		return nil, err
	}
	return &Dataset{object{handle: newHandle(id)}}, nil
}

// Space returns a fresh dataspace describing the dataset's extent.
func (d *Dataset) Space() (*Dataspace, error) {
	id, err := native.DatasetSpace(d.nativeID())
	if err != nil {
		return nil, wrapError(InspectFailed, "Dataset.Space", err)
	}
	return &Dataspace{handle: newHandle(id)}, nil
}

// Type returns a copy of the dataset's file datatype.
func (d *Dataset) Type() (*Datatype, error) {
	id, err := native.DatasetType(d.nativeID())
	if err != nil {
		return nil, wrapError(InspectFailed, "Dataset.Type", err)
	}
	return &Datatype{handle: newHandle(id)}, nil
}

// CreatePlist reconstructs the dataset-create list the dataset was
// built with: layout, chunk dimensions and filters.
func (d *Dataset) CreatePlist() (*DatasetCreate, error) {
	id, err := native.DatasetCreatePlist(d.nativeID())
	if err != nil {
		return nil, wrapError(InspectFailed, "Dataset.CreatePlist", err)
	}
	return &DatasetCreate{PropList{handle: newHandle(id)}}, nil
}

func rejectPointers(op string, v any) error {
	if v == nil {
		return newError(InvalidArgument, op, "nil data", nil)
	}
	k := reflect.TypeOf(v).Kind()
	if k == reflect.Ptr || k == reflect.UnsafePointer {
		return newError(InvalidArgument, op, fmt.Sprintf("pointer values are not transferable: %T", v), nil)
	}
	return nil
}

// WriteRaw transfers data into the dataset with explicit memory type,
// memory and file dataspaces and transfer list. Nil arguments take the
// defaults: the value's inferred type, the full extent, independent
// transfer.
func (d *Dataset) WriteRaw(data any, memtype *Datatype, memspace, filespace *Dataspace, xfer *DatasetTransfer) error {
	if err := rejectPointers("Dataset.Write", data); err != nil {
		return err
	}
	var mt native.ID
	if memtype != nil {
		mt = memtype.nativeID()
	}
	xferID := native.None
	if xfer != nil {
		xferID = xfer.plistID()
	}
	err := native.WriteDataset(d.nativeID(), data, mt, memspace.spaceID(), filespace.spaceID(), xferID)
	return wrapError(IOFailed, "Dataset.Write", err)
}

// ReadRaw transfers dataset elements into dest, a pointer to a slice,
// string or scalar, with explicit spaces and transfer list.
func (d *Dataset) ReadRaw(dest any, memtype *Datatype, memspace, filespace *Dataspace, xfer *DatasetTransfer) error {
	if dest == nil {
		return newError(InvalidArgument, "Dataset.Read", "nil destination", nil)
	}
	var mt native.ID
	if memtype != nil {
		mt = memtype.nativeID()
	}
	xferID := native.None
	if xfer != nil {
		xferID = xfer.plistID()
	}
	err := native.ReadDataset(d.nativeID(), dest, mt, memspace.spaceID(), filespace.spaceID(), xferID)
	return wrapError(IOFailed, "Dataset.Read", err)
}

// Write transfers data over the full extent with default settings.
func (d *Dataset) Write(data any) error {
	return d.WriteRaw(data, nil, nil, nil, nil)
}

// Read transfers the full extent into dest with default settings.
func (d *Dataset) Read(dest any) error {
	return d.ReadRaw(dest, nil, nil, nil, nil)
}
