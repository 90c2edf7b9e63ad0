package main

import (
	"fmt"
	"math"
	"reflect"

	"github.com/spf13/cobra"

	"github.com/robert-malhotra/go-tables/tables"
)

func newShowCommand(a *app) *cobra.Command {
	var start, stop, step int
	cmd := &cobra.Command{
		Use:   "show FILE PATH",
		Short: "Print the rows of a leaf",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := a.open(args[0], tables.ModeRead)
			if err != nil {
				return err
			}
			defer f.Close()
			l, err := f.GetLeaf(args[1])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%s (%s) %v %s\n", args[1], l.Atom(), l.Shape(), l.Filters())

			switch leaf := l.(type) {
			case *tables.VLArray:
				it := leaf.Iter(start, stop, step)
				for it.Next() {
					fmt.Fprintf(w, "[%d] %v\n", it.NRow(), it.Row())
				}
				return it.Err()
			case *tables.Array:
				if len(leaf.Shape()) == 0 {
					v, err := leaf.Value()
					if err != nil {
						return err
					}
					fmt.Fprintln(w, v)
					return nil
				}
				return showArrayRows(cmd, leaf, start, stop, step)
			}
			return fmt.Errorf("%s: unsupported leaf type %T", args[1], l)
		},
	}
	flags := cmd.Flags()
	flags.IntVar(&start, "start", 0, "first row; negative counts from the end")
	flags.IntVar(&stop, "stop", math.MaxInt, "row to stop before; negative counts from the end")
	flags.IntVar(&step, "step", 1, "distance between rows")
	return cmd
}

// showArrayRows prints one line per selected row of the first dimension.
func showArrayRows(cmd *cobra.Command, a *tables.Array, start, stop, step int) error {
	v, err := a.ReadRange(start, stop, step)
	if err != nil {
		return err
	}
	shape := a.Shape()
	per := 1
	for _, d := range shape[1:] {
		per *= d
	}
	if start < 0 {
		start += shape[0]
	}
	start = max(start, 0)

	rv := reflect.ValueOf(v)
	for i := 0; i*per < rv.Len(); i++ {
		fmt.Fprintf(cmd.OutOrStdout(), "[%d] %v\n", start+i*step, rv.Slice(i*per, (i+1)*per).Interface())
	}
	return nil
}
