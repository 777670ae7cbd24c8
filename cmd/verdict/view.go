package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/dkoosis/verdict/pkg/render"
	"github.com/dkoosis/verdict/pkg/report"
	"github.com/dkoosis/verdict/pkg/viewer"
)

func (a *app) viewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "view <report.json>",
		Short: "Browse a written report interactively",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fail(exitError, fmt.Errorf("reading report: %w", err))
			}
			rep, err := report.Decode(data)
			if err != nil {
				return fail(exitError, err)
			}

			// Without a terminal there is nothing to drive the viewer; print
			// the report instead.
			if !isTTY(a.stdout) {
				width, _ := termSize(a.stdout)
				fmt.Fprint(a.stdout, render.New(a.consoleFormat(), a.theme(), width).Render(rep))
				return nil
			}
			if err := viewer.Run(cmd.Context(), rep, a.theme(), tea.WithInput(a.stdin), tea.WithOutput(a.stdout)); err != nil {
				return fail(exitError, err)
			}
			return nil
		},
	}
}
