package rulepack

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// CompiledFlag holds a red-flag definition and its pre-compiled CEL program.
type CompiledFlag struct {
	Def     domain.RedFlagDefinition
	Program cel.Program
}

// FlagInputs are the facts a red-flag expression can reference.
type FlagInputs struct {
	SalariedHighCash     bool
	RentalMismatch       bool
	DividendMissingProof bool
	CrossBorder          bool
	OffshoreHint         bool
	SanctionsStatus      string
	PEPStatus            string
	AdverseMediaSeverity string
	PatternTag           string
	Route                string
	RiskLabel            string
	RiskScore            int
	SufficiencyAfterHITL float64
}

// Activation returns the CEL variable bindings for the inputs.
func (in FlagInputs) Activation() map[string]any {
	return map[string]any{
		"salaried_high_cash":     in.SalariedHighCash,
		"rental_mismatch":        in.RentalMismatch,
		"dividend_missing_proof": in.DividendMissingProof,
		"cross_border":           in.CrossBorder,
		"offshore_hint":          in.OffshoreHint,
		"sanctions_status":       in.SanctionsStatus,
		"pep_status":             in.PEPStatus,
		"adverse_media_severity": in.AdverseMediaSeverity,
		"pattern_tag":            in.PatternTag,
		"route":                  in.Route,
		"risk_label":             in.RiskLabel,
		"risk_score":             int64(in.RiskScore),
		"sufficiency_after_hitl": in.SufficiencyAfterHITL,
	}
}

// Eval reports whether the flag fires for the given bindings.
func (f *CompiledFlag) Eval(activation map[string]any) (bool, error) {
	out, _, err := f.Program.Eval(activation)
	if err != nil {
		return false, fmt.Errorf("red flag %s: %w", f.Def.ID, err)
	}
	b, ok := out.(types.Bool)
	if !ok {
		return false, fmt.Errorf("red flag %s: expected bool, got %s", f.Def.ID, out.Type())
	}
	return bool(b), nil
}

var flagEnv = sync.OnceValues(func() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("salaried_high_cash", cel.BoolType),
		cel.Variable("rental_mismatch", cel.BoolType),
		cel.Variable("dividend_missing_proof", cel.BoolType),
		cel.Variable("cross_border", cel.BoolType),
		cel.Variable("offshore_hint", cel.BoolType),
		cel.Variable("sanctions_status", cel.StringType),
		cel.Variable("pep_status", cel.StringType),
		cel.Variable("adverse_media_severity", cel.StringType),
		cel.Variable("pattern_tag", cel.StringType),
		cel.Variable("route", cel.StringType),
		cel.Variable("risk_label", cel.StringType),
		cel.Variable("risk_score", cel.IntType),
		cel.Variable("sufficiency_after_hitl", cel.DoubleType),
	)
})

func compileFlags(defs []domain.RedFlagDefinition) ([]*CompiledFlag, error) {
	env, err := flagEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	flags := make([]*CompiledFlag, 0, len(defs))
	for i, def := range defs {
		field := fmt.Sprintf("rulepack.red_flags[%d].when", i)

		ast, issues := env.Compile(def.When)
		if issues != nil && issues.Err() != nil {
			return nil, fieldError(field, "failed to compile red flag %s: %w", def.ID, issues.Err())
		}
		if !ast.OutputType().IsExactType(cel.BoolType) {
			return nil, fieldError(field, "red flag %s: expression must return bool, got %s", def.ID, ast.OutputType())
		}

		program, err := env.Program(ast)
		if err != nil {
			return nil, fieldError(field, "failed to create program for red flag %s: %w", def.ID, err)
		}
		flags = append(flags, &CompiledFlag{Def: def, Program: program})
	}
	return flags, nil
}
