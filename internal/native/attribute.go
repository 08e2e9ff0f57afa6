package native

import (
	"fmt"

	"github.com/robert-malhotra/go-h5/internal/dtype"
	"github.com/robert-malhotra/go-h5/internal/message"
	"github.com/robert-malhotra/go-h5/internal/object"
	"github.com/robert-malhotra/go-h5/mpi"
)

// attributeObject is the registry object behind an attribute id.
// Attributes live inside their owner's object header, so the object
// only records where to find them.
type attributeObject struct {
	res       *fileResource
	comm      mpi.Comm
	ownerPath string
	name      string
}

func (a *attributeObject) destroy() error { return nil }

// attrOwner resolves an id that can carry attributes (file root, group
// or dataset) to its resource and path.
func attrOwner(id ID) (*fileResource, string, mpi.Comm, error) {
	e, err := lookupKind(id, KindFile|KindGroup|KindDataset)
	if err != nil {
		return nil, "", nil, err
	}
	switch obj := e.obj.(type) {
	case *fileObject:
		return obj.res, "/", obj.comm, nil
	case *groupObject:
		return obj.res, obj.path, obj.comm, nil
	case *datasetObject:
		if obj.pending != nil {
			return nil, "", nil, fmt.Errorf("dataset %s has not been written yet", obj.path)
		}
		return obj.res, obj.path, obj.comm, nil
	default:
		return nil, "", nil, fmt.Errorf("identifier %d cannot carry attributes", id)
	}
}

// findAttributeMessage returns the named attribute message of the
// object at path, or nil when absent.
func (r *fileResource) findAttributeMessage(path, name string) (*message.Attribute, error) {
	addr, err := r.resolveAddr(path, 0)
	if err != nil {
		return nil, err
	}
	header, err := r.readHeader(addr)
	if err != nil {
		return nil, err
	}
	for _, msg := range header.GetMessages(message.TypeAttribute) {
		if attr, ok := msg.(*message.Attribute); ok && attr.Name == name {
			return attr, nil
		}
	}
	return nil, nil
}

// rewriteOwnerHeader rebuilds the object header at path with mutate
// applied to its message list, writing it at a fresh address and
// repointing the parent chain. Headers reached through v1 symbol
// tables cannot be rewritten because the symbol table message has no
// serialized form here.
func (r *fileResource) rewriteOwnerHeader(path string, mutate func([]message.Message) []message.Message) error {
	addr, err := r.resolveAddr(path, 0)
	if err != nil {
		return err
	}
	header, err := r.readHeader(addr)
	if err != nil {
		return err
	}
	if header.GetMessage(message.TypeSymbolTable) != nil {
		return fmt.Errorf("cannot rewrite symbol-table group at %s", path)
	}

	var msgs []message.Message
	for _, msg := range header.Messages {
		if _, ok := msg.(message.Serializable); ok {
			msgs = append(msgs, msg)
		}
	}
	msgs = mutate(msgs)

	minChunk := 0
	if !isDatasetHeader(header) {
		minChunk = object.MinGroupChunkSize
	}
	size := object.HeaderSizeWithMinChunk(r.writer, msgs, minChunk)
	newAddr := r.allocate(int64(size))
	if _, err := object.WriteHeaderWithMinChunk(r.writer.At(int64(newAddr)), msgs, minChunk); err != nil {
		return fmt.Errorf("rewriting object header: %w", err)
	}
	return r.relocate(path, newAddr)
}

// upsertAttribute replaces or appends an attribute message on the
// object at path.
func (r *fileResource) upsertAttribute(path string, attr *message.Attribute) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rewriteOwnerHeader(path, func(msgs []message.Message) []message.Message {
		for i, msg := range msgs {
			if existing, ok := msg.(*message.Attribute); ok && existing.Name == attr.Name {
				msgs[i] = attr
				return msgs
			}
		}
		return append(msgs, attr)
	})
}

// CreateAttribute creates an attribute on the object behind ownerID,
// immediately recording it with zero-filled data. spaceID None means a
// scalar attribute.
func CreateAttribute(ownerID ID, name string, typeID, spaceID ID) (ID, error) {
	res, path, comm, err := attrOwner(ownerID)
	if err != nil {
		return None, err
	}
	if err := res.requireWritable(); err != nil {
		return None, err
	}
	dt, err := typeOf(typeID)
	if err != nil {
		return None, err
	}

	var dsMsg *message.Dataspace
	if spaceID == None {
		dsMsg = message.NewScalarDataspace()
	} else {
		space, err := spaceOf(spaceID)
		if err != nil {
			return None, err
		}
		dsMsg = dataspaceMessage(space)
	}

	if comm == nil || comm.Size() == 1 || comm.Rank() == 0 {
		if existing, ferr := res.findAttributeMessage(path, name); ferr != nil {
			err = ferr
		} else if existing != nil {
			err = fmt.Errorf("attribute %s already exists on %s", name, path)
		} else {
			dtCopy := *dt
			zero := make([]byte, dtype.DataSize(&dtCopy, dsMsg.NumElements()))
			err = res.upsertAttribute(path, message.NewAttribute(name, &dtCopy, dsMsg, zero))
		}
	}
	if comm != nil && comm.Size() > 1 {
		comm.Barrier()
	}
	if err != nil {
		return None, err
	}
	return register(KindAttribute, &attributeObject{res: res, comm: comm, ownerPath: path, name: name}, res), nil
}

// OpenAttribute opens an existing attribute by name.
func OpenAttribute(ownerID ID, name string) (ID, error) {
	res, path, comm, err := attrOwner(ownerID)
	if err != nil {
		return None, err
	}
	attr, err := res.findAttributeMessage(path, name)
	if err != nil {
		return None, err
	}
	if attr == nil {
		return None, fmt.Errorf("attribute %s not found on %s", name, path)
	}
	return register(KindAttribute, &attributeObject{res: res, comm: comm, ownerPath: path, name: name}, res), nil
}

// HasAttribute probes for an attribute. The error return distinguishes
// a clean negative from a failed probe.
func HasAttribute(ownerID ID, name string) (bool, error) {
	res, path, _, err := attrOwner(ownerID)
	if err != nil {
		return false, err
	}
	attr, err := res.findAttributeMessage(path, name)
	if err != nil {
		return false, err
	}
	return attr != nil, nil
}

// AttributeNames lists the attribute names of the object behind
// ownerID.
func AttributeNames(ownerID ID) ([]string, error) {
	res, path, _, err := attrOwner(ownerID)
	if err != nil {
		return nil, err
	}
	addr, err := res.resolveAddr(path, 0)
	if err != nil {
		return nil, err
	}
	header, err := res.readHeader(addr)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, msg := range header.GetMessages(message.TypeAttribute) {
		if attr, ok := msg.(*message.Attribute); ok {
			names = append(names, attr.Name)
		}
	}
	return names, nil
}

func attributeOf(id ID) (*attributeObject, error) {
	e, err := lookupKind(id, KindAttribute)
	if err != nil {
		return nil, err
	}
	return e.obj.(*attributeObject), nil
}

func (a *attributeObject) message() (*message.Attribute, error) {
	attr, err := a.res.findAttributeMessage(a.ownerPath, a.name)
	if err != nil {
		return nil, err
	}
	if attr == nil {
		return nil, fmt.Errorf("attribute %s no longer exists on %s", a.name, a.ownerPath)
	}
	return attr, nil
}

// WriteAttributeValue encodes data and rewrites the owner header with
// the updated attribute message.
func WriteAttributeValue(id ID, data any) error {
	a, err := attributeOf(id)
	if err != nil {
		return err
	}
	if err := a.res.requireWritable(); err != nil {
		return err
	}

	if a.comm == nil || a.comm.Size() == 1 || a.comm.Rank() == 0 {
		err = a.writeValue(data)
	}
	if a.comm != nil && a.comm.Size() > 1 {
		a.comm.Barrier()
	}
	return err
}

func (a *attributeObject) writeValue(data any) error {
	attr, err := a.message()
	if err != nil {
		return err
	}
	enc, n, err := encodeElements(a.res, attr.Datatype, data)
	if err != nil {
		return err
	}
	if want := attr.Dataspace.NumElements(); n != want {
		return fmt.Errorf("data has %d elements, attribute has %d", n, want)
	}
	updated := message.NewAttribute(a.name, attr.Datatype, attr.Dataspace, enc)
	return a.res.upsertAttribute(a.ownerPath, updated)
}

// ReadAttributeValue reads the attribute value into dest.
func ReadAttributeValue(id ID, dest any) error {
	a, err := attributeOf(id)
	if err != nil {
		return err
	}
	attr, err := a.message()
	if err != nil {
		return err
	}
	if attr.Datatype == nil || attr.Data == nil {
		return fmt.Errorf("attribute %s has no data", a.name)
	}
	n := uint64(1)
	if attr.Dataspace != nil {
		n = attr.Dataspace.NumElements()
	}
	return dtype.ConvertWithReader(attr.Datatype, attr.Data, n, dest, a.res.reader)
}

// AttributeSpace returns a fresh dataspace id for the attribute extent.
func AttributeSpace(id ID) (ID, error) {
	a, err := attributeOf(id)
	if err != nil {
		return None, err
	}
	attr, err := a.message()
	if err != nil {
		return None, err
	}
	if attr.Dataspace == nil || attr.Dataspace.IsScalar() {
		return NewSpace(SpaceScalar, nil, nil)
	}
	if attr.Dataspace.IsNull() {
		return NewSpace(SpaceNull, nil, nil)
	}
	return NewSpace(SpaceSimple, attr.Dataspace.Dimensions, attr.Dataspace.MaxDims)
}

// AttributeType returns a fresh datatype id for the attribute's
// element type.
func AttributeType(id ID) (ID, error) {
	a, err := attributeOf(id)
	if err != nil {
		return None, err
	}
	attr, err := a.message()
	if err != nil {
		return None, err
	}
	c := *attr.Datatype
	return registerType(&c), nil
}

// AttributeName returns the attribute's name.
func AttributeName(id ID) (string, error) {
	a, err := attributeOf(id)
	if err != nil {
		return "", err
	}
	return a.name, nil
}
