package h5

// Value enumerates the Go types transferable without an explicit
// datatype: fixed-width numbers, strings and slices of them. Pointers
// are deliberately absent.
type Value interface {
	~int8 | ~int16 | ~int32 | ~int64 | ~int |
		~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64 | ~string |
		~[]int8 | ~[]int16 | ~[]int32 | ~[]int64 | ~[]int |
		~[]uint8 | ~[]uint16 | ~[]uint32 | ~[]uint64 |
		~[]float32 | ~[]float64 | ~[]string
}

// Container is anything datasets can be created in: files and groups.
type Container interface {
	CreateDataset(name string, dtype *Datatype, space *Dataspace, dcpl *DatasetCreate) (*Dataset, error)
	OpenDataset(name string) (*Dataset, error)
}

// Object is anything attributes can be attached to: files, groups and
// datasets.
type Object interface {
	CreateAttribute(name string, dtype *Datatype, space *Dataspace) (*Attribute, error)
	OpenAttribute(name string) (*Attribute, error)
	HasAttribute(name string) (bool, error)
}

// WriteDataset creates a dataset named name under c, shaped and typed
// after value, writes value and returns the open dataset.
func WriteDataset[T Value](c Container, name string, value T) (*Dataset, error) {
	space, err := SpaceOf(value)
	if err != nil {
		return nil, err
	}
	defer space.Close()

	ds, err := c.CreateDataset(name, PredTypeFor[T](), space, nil)
	if err != nil {
		return nil, err
	}
	if err := ds.Write(value); err != nil {
		ds.Close()
		return nil, err
	}
	return ds, nil
}

// ReadDataset opens the dataset named name under c and reads its full
// extent into a value of type T.
func ReadDataset[T Value](c Container, name string) (T, error) {
	var out T
	ds, err := c.OpenDataset(name)
	if err != nil {
		return out, err
	}
	defer ds.Close()
	if err := ds.Read(&out); err != nil {
		return out, err
	}
	return out, nil
}

// WriteAttribute sets the attribute named name on o to value, creating
// it shaped and typed after value when it does not exist yet.
func WriteAttribute[T Value](o Object, name string, value T) error {
	exists, err := o.HasAttribute(name)
	if err != nil {
		return err
	}
	var attr *Attribute
	if exists {
		attr, err = o.OpenAttribute(name)
	} else {
		var space *Dataspace
		space, err = SpaceOf(value)
		if err != nil {
			return err
		}
		defer space.Close()
		attr, err = o.CreateAttribute(name, PredTypeFor[T](), space)
	}
	if err != nil {
		return err
	}
	defer attr.Close()
	return attr.Write(value)
}

// ReadAttribute reads the attribute named name on o into a value of
// type T.
func ReadAttribute[T Value](o Object, name string) (T, error) {
	var out T
	attr, err := o.OpenAttribute(name)
	if err != nil {
		return out, err
	}
	defer attr.Close()
	if err := attr.Read(&out); err != nil {
		return out, err
	}
	return out, nil
}
