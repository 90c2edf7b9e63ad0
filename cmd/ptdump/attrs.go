package main

import (
	"fmt"
	"slices"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/robert-malhotra/go-tables/tables"
)

func newAttrsCommand(a *app) *cobra.Command {
	var system bool
	cmd := &cobra.Command{
		Use:   "attrs FILE PATH",
		Short: "List the attributes of a node",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := a.open(args[0], tables.ModeRead)
			if err != nil {
				return err
			}
			defer f.Close()
			n, err := f.GetNode(args[1])
			if err != nil {
				return err
			}

			attrs := n.Attrs()
			names := attrs.Names()
			if system {
				names = slices.Concat(attrs.SystemNames(), names)
			}
			all := attrs.All()

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Name", "Type", "Value"})
			for _, name := range names {
				v := all[name]
				t.AppendRow(table.Row{name, fmt.Sprintf("%T", v), fmt.Sprint(v)})
			}
			t.Render()
			return nil
		},
	}
	cmd.Flags().BoolVar(&system, "system", false, "include system attributes")
	return cmd
}
