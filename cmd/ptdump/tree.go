package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/robert-malhotra/go-tables/tables"
)

func newTreeCommand(a *app) *cobra.Command {
	var hidden bool
	cmd := &cobra.Command{
		Use:   "tree FILE [PATH]",
		Short: "List the nodes under PATH",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			where := "/"
			if len(args) == 2 {
				where = args[1]
			}
			f, err := a.open(args[0], tables.ModeRead)
			if err != nil {
				return err
			}
			defer f.Close()

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Path", "Class", "Shape", "Atom", "Filters", "Size", "Title"})
			err = f.WalkNodes(where, func(n tables.Node) error {
				if !hidden && !n.IsVisible() {
					return nil
				}
				t.AppendRow(nodeRow(n))
				return nil
			})
			if err != nil {
				return err
			}
			t.Render()
			return nil
		},
	}
	cmd.Flags().BoolVar(&hidden, "hidden", false, "include hidden nodes")
	return cmd
}

func nodeRow(n tables.Node) table.Row {
	class, _ := n.GetAttr("CLASS")
	l, ok := n.(tables.Leaf)
	if !ok {
		g := n.(*tables.Group)
		return table.Row{n.Path(), class, fmt.Sprintf("%d children", len(g.ChildNames())), "", "", "", n.Title()}
	}
	filters := ""
	if fs := l.Filters(); fs != (tables.Filters{}) {
		filters = describeFilters(fs)
	}
	return table.Row{
		n.Path(), class, fmt.Sprint(l.Shape()), l.Atom().String(), filters,
		humanize.IBytes(uint64(l.Size())), n.Title(),
	}
}

func describeFilters(fs tables.Filters) string {
	var parts []string
	if fs.Complevel > 0 {
		parts = append(parts, fmt.Sprintf("%s(%d)", fs.Complib, fs.Complevel))
	}
	if fs.Shuffle {
		parts = append(parts, "shuffle")
	}
	if fs.Fletcher32 {
		parts = append(parts, "fletcher32")
	}
	return strings.Join(parts, "+")
}
