package main

import (
	"github.com/ZanzyTHEbar/respack/respack/header"
	"github.com/ZanzyTHEbar/respack/respack/restable"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

func newIDsCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "ids <resources.index>",
		Short: "Print the id header of a built resource index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := restable.Load(afero.NewOsFs(), args[0])
			if err != nil {
				return err
			}
			out, err := header.Render("ids."+format, tableIDs(table))
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(append(out, '\n'))
			return err
		},
	}
	cmd.Flags().StringVar(&format, "format", "txt", "Header format: txt|js|h")
	return cmd
}
