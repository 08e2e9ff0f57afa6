package h5

// Group is a named container of links inside a file.
type Group struct {
	container
}

// Close releases the group handle.
func (g *Group) Close() error {
	return g.close("Group.Close")
}

// Ref returns a second handle on the same identifier, incrementing its
// reference count. Both handles must be closed.
func (g *Group) Ref() (*Group, error) {
	id, err := g.copyRef("Group.Ref")
	if err != nil {
		return nil, err
	}
	return &Group{container{object{handle: newHandle(id)}}}, nil
}
