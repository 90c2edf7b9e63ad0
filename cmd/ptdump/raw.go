package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/robert-malhotra/go-tables/hdf5"
)

// maxRawDepth bounds the listing of cyclic or very deep files.
const maxRawDepth = 20

func newRawCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "raw FILE",
		Short: "Dump the stored HDF5 objects of a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := hdf5.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening %s: %w", args[0], err)
			}
			defer f.Close()

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "=== %s ===\n", args[0])
			fmt.Fprintf(w, "Superblock version: %d\n", f.Version())
			fmt.Fprintf(w, "File size: %s\n\n", humanize.IBytes(f.Size()))
			return hdf5.Walk(f.Root(), func(path string, obj any, err error) error {
				depth := len(hdf5.SplitPath(path))
				indent := strings.Repeat("  ", depth)
				if depth > maxRawDepth {
					fmt.Fprintf(w, "%s[MAX DEPTH REACHED]\n", indent)
					return hdf5.ErrStopWalk
				}
				if err != nil {
					fmt.Fprintf(w, "%s%q: ERROR %v\n", indent, path, err)
					return nil
				}
				switch o := obj.(type) {
				case *hdf5.Group:
					rawGroup(w, indent, o)
				case *hdf5.Dataset:
					rawDataset(w, indent, o)
				}
				a.log.Debug("visited object", zap.String("path", path))
				return nil
			})
		},
	}
}

func rawGroup(w io.Writer, indent string, g *hdf5.Group) {
	n, err := g.NumObjects()
	if err != nil {
		fmt.Fprintf(w, "%sGroup %q: ERROR getting members: %v\n", indent, g.Path(), err)
		return
	}
	fmt.Fprintf(w, "%sGroup %q:\n", indent, g.Path())
	fmt.Fprintf(w, "%s  Members: %d\n", indent, n)
	fmt.Fprintf(w, "%s  Attrs: %v\n", indent, g.Attrs())
}

func rawDataset(w io.Writer, indent string, ds *hdf5.Dataset) {
	fmt.Fprintf(w, "%sDataset %q:\n", indent, ds.Path())
	fmt.Fprintf(w, "%s  Type: %s\n", indent, ds.Datatype())
	fmt.Fprintf(w, "%s  Shape: %v\n", indent, ds.Shape())
	if fp := ds.Filters(); fp != nil {
		ids := make([]uint16, len(fp.Filters))
		for i, fi := range fp.Filters {
			ids[i] = fi.ID
		}
		fmt.Fprintf(w, "%s  Filters: %v\n", indent, ids)
	}
	fmt.Fprintf(w, "%s  Storage: %s\n", indent, humanize.IBytes(ds.StorageSize()))
	fmt.Fprintf(w, "%s  Attrs: %v\n", indent, ds.Attrs())
}
