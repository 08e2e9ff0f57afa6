// Command h5tool inspects HDF5 files: listing the object tree, dumping
// dataset contents and printing file statistics.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/robert-malhotra/go-h5/h5"
)

var verbose bool

func main() {
	root := &cobra.Command{
		Use:          "h5tool",
		Short:        "Inspect HDF5 files",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if verbose {
				log, err := zap.NewDevelopment()
				if err != nil {
					return err
				}
				h5.SetLogger(log)
			}
			return nil
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable diagnostic logging")
	root.AddCommand(newLsCmd(), newDumpCmd(), newStatCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func openReadOnly(path string) (*h5.File, error) {
	if !h5.IsHDF5(path) {
		return nil, fmt.Errorf("%s is not an HDF5 file", path)
	}
	return h5.Open(path, "r", nil)
}
