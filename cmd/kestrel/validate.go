package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opensource-finance/kestrel/internal/rulepack"
)

func newValidateCmd() *cobra.Command {
	var rulepackPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Load and validate a rulepack without serving it",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := rulepack.LoadFile(rulepackPath)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "rulepack:  %s\n", snap.Source)
			fmt.Fprintf(out, "version:   %s\n", snap.Version())
			fmt.Fprintf(out, "checksum:  sha256:%s\n", snap.Checksum)
			fmt.Fprintf(out, "red flags: %d\n", len(snap.RedFlags))
			for _, f := range snap.RedFlags {
				fmt.Fprintf(out, "  - %s: %s\n", f.Def.ID, f.Def.Label)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&rulepackPath, "rulepack", "rulepack.yaml", "rulepack YAML file")
	return cmd
}
