package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"stemforge/internal/api"
	"stemforge/internal/deps"
	"stemforge/internal/preflight"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deps",
		Short: "Check external tools and configured directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			printSection(out, "Preflight", colorize)
			results := preflight.RunAll(cmd.Context(), cfg)
			for _, result := range results {
				kind := statusOK
				if !result.Passed {
					kind = statusError
				}
				fmt.Fprintln(out, renderStatusLine(result.Name, kind, result.Detail, colorize))
			}
			fmt.Fprintln(out)

			printSection(out, "Dependencies", colorize)
			statuses := preflight.CheckSystemDeps(cmd.Context(), cfg)
			printDependencies(out, api.FromDependencies(statuses), colorize)

			missing := deps.Missing(statuses)
			failed := preflight.Failed(results)
			if len(missing) > 0 || len(failed) > 0 {
				return errors.New("one or more checks failed")
			}
			return nil
		},
	}
}
