package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (a *app) configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			data, err := a.cfg.YAML()
			if err != nil {
				return fail(exitError, err)
			}
			if a.cfg.File != "" {
				fmt.Fprintf(a.stdout, "# from %s\n", a.cfg.File)
			}
			_, err = a.stdout.Write(data)
			return err
		},
	}
}
