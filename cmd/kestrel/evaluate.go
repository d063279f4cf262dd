package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/opensource-finance/kestrel/internal/decision"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/rulepack"
)

func newEvaluateCmd() *cobra.Command {
	var (
		rulepackPath string
		casePath     string
		tenantID     string
		compact      bool
		summary      bool
	)

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Assess one case and print the assessment as JSON",
		Example: `  kestrel evaluate --rulepack rulepack.yaml --case case.json
  cat case.json | kestrel evaluate --rulepack rulepack.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := rulepack.LoadFile(rulepackPath)
			if err != nil {
				return err
			}

			in, err := readCase(cmd.InOrStdin(), casePath)
			if err != nil {
				return err
			}

			processor := decision.NewProcessor(rulepack.NewStaticStore(snap), nil)
			a, err := processor.Evaluate(cmd.Context(), tenantID, in)
			if err != nil {
				return err
			}
			a.TenantID = ""

			enc := json.NewEncoder(cmd.OutOrStdout())
			if !compact {
				enc.SetIndent("", "  ")
			}
			if summary {
				return enc.Encode(a.ToResponse())
			}
			return enc.Encode(a)
		},
	}

	cmd.Flags().StringVar(&rulepackPath, "rulepack", "rulepack.yaml", "rulepack YAML file")
	cmd.Flags().StringVar(&casePath, "case", "-", "case JSON file, or - for stdin")
	cmd.Flags().StringVar(&tenantID, "tenant", "cli", "tenant recorded in logs and spans")
	cmd.Flags().BoolVar(&compact, "compact", false, "print the assessment on one line")
	cmd.Flags().BoolVar(&summary, "summary", false, "print only the routing decision")
	return cmd
}

// readCase decodes and validates a case from path, or from stdin when path
// is "-" or empty.
func readCase(stdin io.Reader, path string) (*domain.CaseInput, error) {
	r := stdin
	source := "stdin"
	if path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open case: %w", err)
		}
		defer f.Close()
		r = f
		source = path
	}

	var in domain.CaseInput
	if err := json.NewDecoder(r).Decode(&in); err != nil {
		return nil, fmt.Errorf("failed to parse case from %s: %w", source, err)
	}
	if err := domain.ValidateCase(&in); err != nil {
		return nil, fmt.Errorf("invalid case from %s: %w", source, err)
	}
	return &in, nil
}
