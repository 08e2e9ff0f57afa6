package h5

import (
	"path"
	"strings"

	"github.com/robert-malhotra/go-h5/internal/native"
)

// object is the shared core of files, groups and datasets: attribute
// access, path inspection and link probing.
type object struct {
	*handle
}

// Name returns the absolute path of the object inside its file. Files
// report "/".
func (o *object) Name() (string, error) {
	p, err := native.PathOf(o.nativeID())
	if err != nil {
		return "", wrapError(InspectFailed, "Name", err)
	}
	return p, nil
}

// Filename returns the path of the file containing the object.
func (o *object) Filename() (string, error) {
	id := o.nativeID()
	fid, err := native.FileOf(id)
	if err != nil {
		return "", wrapError(InspectFailed, "Filename", err)
	}
	defer native.DecRef(fid)
	p, err := native.FilePath(fid)
	if err != nil {
		return "", wrapError(InspectFailed, "Filename", err)
	}
	return p, nil
}

// Parent opens the group containing this object. The root group is its
// own parent.
func (o *object) Parent() (*Group, error) {
	name, err := o.Name()
	if err != nil {
		return nil, err
	}
	fid, err := native.FileOf(o.nativeID())
	if err != nil {
		return nil, wrapError(InspectFailed, "Parent", err)
	}
	gid, err := native.OpenGroup(fid, path.Dir(name))
	native.DecRef(fid)
	if err != nil {
		return nil, wrapError(OpenFailed, "Parent", err)
	}
	return &Group{container{object{handle: newHandle(gid)}}}, nil
}

// ObjectInfo is a snapshot of an object's identity: its kind, the
// native reference count and the number of attributes on its header.
type ObjectInfo struct {
	Type     ObjectType
	RefCount int
	NumAttrs int
}

// Info probes the object's header state.
func (o *object) Info() (*ObjectInfo, error) {
	id := o.nativeID()
	if id == native.None {
		return nil, newError(InspectFailed, "Info", "handle is closed", nil)
	}
	rc, err := native.RefCount(id)
	if err != nil {
		return nil, wrapError(InspectFailed, "Info", err)
	}
	names, err := native.AttributeNames(id)
	if err != nil {
		return nil, wrapError(InspectFailed, "Info", err)
	}
	return &ObjectInfo{
		Type:     ObjectType(native.TypeOf(id)),
		RefCount: rc,
		NumAttrs: len(names),
	}, nil
}

// Exists reports whether a link resolves relative to this object.
// Soft links count when their target resolves.
func (o *object) Exists(name string) (bool, error) {
	ok, err := native.Exists(o.nativeID(), name)
	if err != nil {
		return false, wrapError(InspectFailed, "Exists", err)
	}
	return ok, nil
}

// IsGroup reports whether the link at name resolves to a group. A
// missing or unresolvable path is a plain false, not an error.
func (o *object) IsGroup(name string) (bool, error) {
	exists, err := o.Exists(name)
	if err != nil || !exists {
		return false, err
	}
	id, err := native.OpenObject(o.nativeID(), name)
	if err != nil {
		return false, wrapError(InspectFailed, "IsGroup", err)
	}
	isGroup := native.TypeOf(id)&native.KindGroup != 0
	if _, err := native.DecRef(id); err != nil {
		return false, wrapError(InspectFailed, "IsGroup", err)
	}
	return isGroup, nil
}

// CreateAttribute creates a zero-filled attribute on this object.
// A nil space means scalar.
func (o *object) CreateAttribute(name string, dtype *Datatype, space *Dataspace) (*Attribute, error) {
	if dtype == nil {
		return nil, newError(InvalidArgument, "CreateAttribute", "nil datatype", nil)
	}
	var spaceID native.ID
	if space != nil {
		spaceID = space.spaceID()
	}
	id, err := native.CreateAttribute(o.nativeID(), name, dtype.nativeID(), spaceID)
	if err != nil {
		return nil, wrapError(CreateFailed, "CreateAttribute", err)
	}
	return &Attribute{handle: newHandle(id)}, nil
}

// OpenAttribute opens an existing attribute by name.
func (o *object) OpenAttribute(name string) (*Attribute, error) {
	id, err := native.OpenAttribute(o.nativeID(), name)
	if err != nil {
		return nil, wrapError(OpenFailed, "OpenAttribute", err)
	}
	return &Attribute{handle: newHandle(id)}, nil
}

// HasAttribute reports whether an attribute with the given name exists.
// A failed probe (for instance a dangling handle) is an error, not a
// negative answer.
func (o *object) HasAttribute(name string) (bool, error) {
	ok, err := native.HasAttribute(o.nativeID(), name)
	if err != nil {
		return false, wrapError(InspectFailed, "HasAttribute", err)
	}
	return ok, nil
}

// AttributeNames lists the attributes on this object in header order.
func (o *object) AttributeNames() ([]string, error) {
	names, err := native.AttributeNames(o.nativeID())
	if err != nil {
		return nil, wrapError(InspectFailed, "AttributeNames", err)
	}
	return names, nil
}

// container extends object with the link namespace: group and dataset
// creation, opening and listing.
type container struct {
	object
}

// CreateGroup creates a group linked at name relative to this
// container. The name must not already exist.
func (c *container) CreateGroup(name string) (*Group, error) {
	id, err := native.CreateGroup(c.nativeID(), name)
	if err != nil {
		return nil, wrapError(CreateFailed, "CreateGroup", err)
	}
	return &Group{container{object{handle: newHandle(id)}}}, nil
}

// OpenGroup opens an existing group.
func (c *container) OpenGroup(name string) (*Group, error) {
	id, err := native.OpenGroup(c.nativeID(), name)
	if err != nil {
		return nil, wrapError(OpenFailed, "OpenGroup", err)
	}
	return &Group{container{object{handle: newHandle(id)}}}, nil
}

// CreateGroups creates every group along a path, reusing the ones that
// already exist, and returns the deepest one.
func (c *container) CreateGroups(name string) (*Group, error) {
	parts := strings.Split(strings.Trim(path.Clean(name), "/"), "/")
	if len(parts) == 0 || parts[0] == "" || parts[0] == "." {
		return nil, newError(InvalidArgument, "CreateGroups", "empty group path", nil)
	}
	loc := c.nativeID()
	owned := native.None
	for _, part := range parts {
		var next native.ID
		exists, err := native.Exists(loc, part)
		if err == nil && exists {
			next, err = native.OpenGroup(loc, part)
		} else {
			next, err = native.CreateGroup(loc, part)
		}
		if owned != native.None {
			native.DecRef(owned)
		}
		if err != nil {
			return nil, wrapError(CreateFailed, "CreateGroups", err)
		}
		loc, owned = next, next
	}
	return &Group{container{object{handle: newHandle(owned)}}}, nil
}

// CreateDataset creates a dataset linked at name. A nil dcpl takes the
// defaults (contiguous, no filters).
func (c *container) CreateDataset(name string, dtype *Datatype, space *Dataspace, dcpl *DatasetCreate) (*Dataset, error) {
	if dtype == nil {
		return nil, newError(InvalidArgument, "CreateDataset", "nil datatype", nil)
	}
	if space == nil {
		return nil, newError(InvalidArgument, "CreateDataset", "nil dataspace", nil)
	}
	dcplID := native.None
	if dcpl != nil {
		dcplID = dcpl.plistID()
	}
	id, err := native.CreateDataset(c.nativeID(), name, dtype.nativeID(), space.spaceID(), dcplID)
	if err != nil {
		return nil, wrapError(CreateFailed, "CreateDataset", err)
	}
	return &Dataset{object{handle: newHandle(id)}}, nil
}

// OpenDataset opens an existing dataset.
func (c *container) OpenDataset(name string) (*Dataset, error) {
	id, err := native.OpenDataset(c.nativeID(), name)
	if err != nil {
		return nil, wrapError(OpenFailed, "OpenDataset", err)
	}
	return &Dataset{object{handle: newHandle(id)}}, nil
}

// CreateSoftLink creates a soft link at name pointing at target. The
// target does not need to exist yet.
func (c *container) CreateSoftLink(target, name string) error {
	return wrapError(CreateFailed, "CreateSoftLink", native.CreateSoftLink(c.nativeID(), target, name))
}

// Members lists the link names in this container in the order the
// file stores them.
func (c *container) Members() ([]string, error) {
	names, err := native.Members(c.nativeID())
	if err != nil {
		return nil, wrapError(InspectFailed, "Members", err)
	}
	return names, nil
}
