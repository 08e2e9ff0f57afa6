package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/robert-malhotra/go-h5/h5"
)

func newStatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stat <file> [path]",
		Short: "Print object statistics",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := openReadOnly(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			out := cmd.OutOrStdout()
			path, err := f.Path()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "file: %s\n", path)

			target := "/"
			if len(args) == 2 {
				target = args[1]
			}
			grp, err := f.OpenGroup(target)
			if err != nil {
				return statDataset(cmd, f, target)
			}
			defer grp.Close()

			members, err := grp.Members()
			if err != nil {
				return err
			}
			attrs, err := grp.AttributeNames()
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "group: %s\n", target)
			fmt.Fprintf(out, "  members: %d\n", len(members))
			fmt.Fprintf(out, "  attributes: %v\n", attrs)
			return nil
		},
	}
}

func statDataset(cmd *cobra.Command, f *h5.File, name string) error {
	ds, err := f.OpenDataset(name)
	if err != nil {
		return err
	}
	defer ds.Close()

	space, err := ds.Space()
	if err != nil {
		return err
	}
	defer space.Close()
	dims, err := space.Dims()
	if err != nil {
		return err
	}
	npoints, err := space.Len()
	if err != nil {
		return err
	}
	attrs, err := ds.AttributeNames()
	if err != nil {
		return err
	}
	dcpl, err := ds.CreatePlist()
	if err != nil {
		return err
	}
	defer dcpl.Close()
	layout, err := dcpl.Layout()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "dataset: %s\n", name)
	fmt.Fprintf(out, "  shape: %v (%d points)\n", dims, npoints)
	fmt.Fprintf(out, "  layout: %v\n", layoutName(layout))
	if layout == h5.LayoutChunked {
		chunk, err := dcpl.ChunkDims()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "  chunk: %v\n", chunk)
	}
	fmt.Fprintf(out, "  attributes: %v\n", attrs)
	return nil
}

func layoutName(l h5.Layout) string {
	switch l {
	case h5.LayoutChunked:
		return "chunked"
	case h5.LayoutCompact:
		return "compact"
	default:
		return "contiguous"
	}
}
