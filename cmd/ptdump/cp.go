package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/robert-malhotra/go-tables/tables"
)

func newCopyCommand(a *app) *cobra.Command {
	var (
		name      string
		recursive bool
		overwrite bool
		noAttrs   bool
		complevel int
		complib   string
		shuffle   bool
		title     string
	)
	cmd := &cobra.Command{
		Use:   "cp SRC SRCPATH DST DSTGROUP",
		Short: "Copy a node into a group of another file",
		Long: `Copy the node at SRCPATH of SRC into the group DSTGROUP of DST.
DST is created if it does not exist.`,
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			src, err := a.open(args[0], tables.ModeRead)
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, src.Close()) }()
			dst, err := a.open(args[2], tables.ModeAppend)
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, dst.Close()) }()

			parent, err := dst.GetGroup(args[3])
			if err != nil {
				return err
			}
			var stats tables.CopyStats
			opts := tables.DefaultCopyOptions()
			opts.NewParent = parent
			opts.NewName = name
			opts.Recursive = recursive
			opts.Overwrite = overwrite
			opts.CopyUserAttrs = !noAttrs
			opts.Stats = &stats
			if cmd.Flags().Changed("complevel") {
				opts.Filters = &tables.Filters{Complevel: complevel, Complib: complib, Shuffle: shuffle}
			}
			if cmd.Flags().Changed("title") {
				opts.Title = &title
			}

			n, err := src.CopyNode(args[1], opts)
			if err != nil {
				return err
			}
			a.log.Debug("copied node",
				zap.String("src", args[1]), zap.String("dst", n.Path()), zap.Int64("bytes", stats.Bytes))
			fmt.Fprintf(cmd.OutOrStdout(), "copied %s to %s: %d groups, %d leaves, %s\n",
				args[1], n.Path(), stats.Groups, stats.Leaves, humanize.IBytes(uint64(stats.Bytes)))
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&name, "name", "", "name of the copy (default: the source name)")
	flags.BoolVarP(&recursive, "recursive", "r", false, "copy the descendants of a group")
	flags.BoolVar(&overwrite, "overwrite", false, "replace an existing node of the same name")
	flags.BoolVar(&noAttrs, "no-attrs", false, "do not copy user attributes")
	flags.IntVar(&complevel, "complevel", 0, "compression level of copied leaves")
	flags.StringVar(&complib, "complib", tables.ComplibZlib, "compression library: zlib or lz4")
	flags.BoolVar(&shuffle, "shuffle", false, "shuffle bytes before compression")
	flags.StringVar(&title, "title", "", "title of the copy")
	return cmd
}
