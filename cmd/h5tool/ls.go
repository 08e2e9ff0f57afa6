package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/robert-malhotra/go-h5/h5"
)

func newLsCmd() *cobra.Command {
	var recursive bool
	cmd := &cobra.Command{
		Use:   "ls <file> [path]",
		Short: "List the members of a group",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := openReadOnly(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			start := "/"
			if len(args) == 2 {
				start = args[1]
			}
			grp, err := f.OpenGroup(start)
			if err != nil {
				return err
			}
			defer grp.Close()
			return listGroup(cmd, grp, "", recursive)
		},
	}
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "descend into subgroups")
	return cmd
}

func listGroup(cmd *cobra.Command, grp *h5.Group, indent string, recursive bool) error {
	members, err := grp.Members()
	if err != nil {
		return err
	}
	for _, name := range members {
		isGroup, err := grp.IsGroup(name)
		if err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "%s%s\t(unresolvable: %v)\n", indent, name, err)
			continue
		}
		if !isGroup {
			if err := printDatasetLine(cmd, grp, indent, name); err != nil {
				return err
			}
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s%s/\n", indent, name)
		if !recursive {
			continue
		}
		sub, err := grp.OpenGroup(name)
		if err != nil {
			return err
		}
		err = listGroup(cmd, sub, indent+"  ", true)
		sub.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func printDatasetLine(cmd *cobra.Command, grp *h5.Group, indent, name string) error {
	ds, err := grp.OpenDataset(name)
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
	fmt.Fprintf(cmd.OutOrStdout(), "%s%s\t%v\n", indent, name, dims)
	return nil
}
