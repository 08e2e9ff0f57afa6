package main

import (
	"fmt"
	"reflect"

	"github.com/spf13/cobra"

	"github.com/robert-malhotra/go-h5/h5"
)

func newDumpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump <file> <dataset>",
		Short: "Print a dataset's metadata and contents",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := openReadOnly(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			ds, err := f.OpenDataset(args[1])
			if err != nil {
				return err
			}
			defer ds.Close()
			return dumpDataset(cmd, ds, args[1])
		},
	}
}

func dumpDataset(cmd *cobra.Command, ds *h5.Dataset, name string) error {
	space, err := ds.Space()
	if err != nil {
		return err
	}
	defer space.Close()
	dims, err := space.Dims()
	if err != nil {
		return err
	}
	dt, err := ds.Type()
	if err != nil {
		return err
	}
	defer dt.Close()
	size, err := dt.Size()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "dataset %s\n", name)
	fmt.Fprintf(out, "  shape: %v\n", dims)
	fmt.Fprintf(out, "  element size: %d bytes\n", size)

	value, err := readValue(ds, dt)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "  data: %v\n", value)
	return nil
}

// readValue reads a dataset into the Go type matching its file
// datatype, tried against the predefined singletons.
func readValue(ds *h5.Dataset, dt *h5.Datatype) (any, error) {
	candidates := []struct {
		pred *h5.Datatype
		dest any
	}{
		{h5.NativeDouble(), new([]float64)},
		{h5.NativeFloat(), new([]float32)},
		{h5.NativeInt64(), new([]int64)},
		{h5.NativeInt32(), new([]int32)},
		{h5.NativeInt16(), new([]int16)},
		{h5.NativeInt8(), new([]int8)},
		{h5.NativeUint64(), new([]uint64)},
		{h5.NativeUint32(), new([]uint32)},
		{h5.NativeUint16(), new([]uint16)},
		{h5.NativeUint8(), new([]uint8)},
		{h5.StringUTF8Vlen(), new([]string)},
	}
	for _, c := range candidates {
		eq, err := dt.Equal(c.pred)
		if err != nil {
			return nil, err
		}
		if !eq {
			continue
		}
		if err := ds.Read(c.dest); err != nil {
			return nil, err
		}
		return reflect.ValueOf(c.dest).Elem().Interface(), nil
	}
	size, _ := dt.Size()
	return nil, fmt.Errorf("unsupported element type (size %d)", size)
}
