package decision

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/rulepack"
)

const fixturePath = "../rulepack/testdata/rulepack.yaml"

func ptr[T any](v T) *T {
	return &v
}

func newTestProcessor(t *testing.T) (*Processor, *rulepack.Snapshot) {
	t.Helper()
	snap, err := rulepack.LoadFile(fixturePath)
	if err != nil {
		t.Fatalf("failed to load rulepack: %v", err)
	}
	proc := NewProcessor(rulepack.NewStaticStore(snap), nil)
	proc.Now = func() time.Time {
		return time.Date(2025, 9, 14, 10, 30, 15, 987654321, time.FixedZone("GST", 4*60*60))
	}
	return proc, snap
}

func salariedCashCase() *domain.CaseInput {
	return &domain.CaseInput{
		CaseID:               "SOW-2025-0042",
		PatternTag:           "WPS_Salary",
		SufficiencyAfterHITL: ptr(0.82),
		Screening: domain.ScreeningSummary{
			Sanctions:    &domain.StatusCheck{Status: "clear"},
			PEP:          &domain.StatusCheck{Status: "clear"},
			AdverseMedia: &domain.AdverseMedia{Severity: "none"},
		},
		RiskFeatures: domain.RiskFeatures{
			Geo:     domain.GeoFeatures{Label: "low", CustomerCountry: "UAE", PaymentCountries: []string{"UAE"}},
			Product: domain.ProductFeatures{Label: "low", Products: []string{"Current Account"}},
			Channel: domain.ChannelFeatures{OnboardingChannel: "branch", CashIntensity: "high"},
		},
		EvidenceSources: []domain.EvidenceSource{{Confidence: 0.9}, {Confidence: 0.8}},
	}
}

func TestProcessor(t *testing.T) {
	proc, snap := newTestProcessor(t)
	ctx := context.Background()

	t.Run("SalariedHighCash", func(t *testing.T) {
		a, err := proc.Evaluate(ctx, "tenant-001", salariedCashCase())
		if err != nil {
			t.Fatalf("evaluate failed: %v", err)
		}

		if a.RiskScore != 23 {
			t.Errorf("expected risk score 23, got %d", a.RiskScore)
		}
		if a.RiskLabel != domain.LabelLow {
			t.Errorf("expected low, got %s", a.RiskLabel)
		}
		if a.Route != domain.RouteBaseline {
			t.Errorf("expected Baseline, got %s", a.Route)
		}
		if a.Dimensions.PatternRisk.Score != 13 {
			t.Errorf("expected pattern score 13, got %d", a.Dimensions.PatternRisk.Score)
		}
		if len(a.RedFlags) != 1 || a.RedFlags[0] != "Cash deposits unexplained" {
			t.Errorf("unexpected red flags: %v", a.RedFlags)
		}

		want := "Overall low risk. " +
			"Large cash deposits inconsistent with declared salaried profile. Potential layering risk.; " +
			"Geo exposure aligns with declared residency and sources.; " +
			"Product/channel risk per profile. push the case to Baseline."
		if a.DecisionExplanation != want {
			t.Errorf("unexpected explanation:\n got: %s\nwant: %s", a.DecisionExplanation, want)
		}

		if a.ModelConfidence.Rounded() != 0.82 {
			t.Errorf("expected confidence 0.82, got %v", a.ModelConfidence.Rounded())
		}
		if a.Status != domain.AssessmentStatusAssessed {
			t.Errorf("expected status assessed, got %s", a.Status)
		}
		if a.TenantID != "tenant-001" || a.CaseID != "SOW-2025-0042" {
			t.Errorf("unexpected ids: tenant=%s case=%s", a.TenantID, a.CaseID)
		}
		if a.RulepackVersion != "sow-uae-2025.09" {
			t.Errorf("unexpected rulepack version %s", a.RulepackVersion)
		}
		if a.Metadata.RulepackChecksum != snap.Checksum {
			t.Errorf("expected checksum %s, got %s", snap.Checksum, a.Metadata.RulepackChecksum)
		}
		if a.Metadata.RouteReason != domain.RouteReasonBaseline {
			t.Errorf("expected route reason baseline, got %s", a.Metadata.RouteReason)
		}
		if a.Assessor.Agent != "RiskAgent-UAE-v2.1" || a.Assessor.HumanReviewer != nil {
			t.Errorf("unexpected assessor %+v", a.Assessor)
		}
		if len(a.DefaultsApplied) != 0 {
			t.Errorf("expected no defaults, got %v", a.DefaultsApplied)
		}
	})

	t.Run("SanctionsMatch", func(t *testing.T) {
		in := &domain.CaseInput{
			CaseID:               "SOW-2025-0043",
			SufficiencyAfterHITL: ptr(0.9),
			Screening:            domain.ScreeningSummary{Sanctions: &domain.StatusCheck{Status: "match"}},
		}

		a, err := proc.Evaluate(ctx, "tenant-001", in)
		if err != nil {
			t.Fatalf("evaluate failed: %v", err)
		}

		if a.Route != domain.RouteEDD {
			t.Errorf("expected EDD, got %s", a.Route)
		}
		if a.Metadata.RouteReason != domain.RouteReasonHardRoute {
			t.Errorf("expected hard_route, got %s", a.Metadata.RouteReason)
		}
		pep := a.Dimensions.PEPSanctions
		if pep.Reason != "Confirmed sanctions or PEP match; mandatory enhanced due diligence." {
			t.Errorf("unexpected reason %q", pep.Reason)
		}
		if pep.Score != 40 || pep.Label != domain.LabelHigh {
			t.Errorf("unexpected pep result %+v", pep)
		}
		// geo 5 + pep 40 + media 0 + pattern Other 10 + gaps 2 + product 3
		if a.RiskScore != 60 || a.RiskLabel != domain.LabelHigh {
			t.Errorf("expected 60/high, got %d/%s", a.RiskScore, a.RiskLabel)
		}
		if !strings.HasPrefix(a.DecisionExplanation, "Overall high risk. Confirmed sanctions or PEP match") {
			t.Errorf("unexpected explanation %q", a.DecisionExplanation)
		}
		if !ShouldEscalate(a) {
			t.Error("expected ShouldEscalate")
		}
	})

	t.Run("LowSufficiency", func(t *testing.T) {
		in := salariedCashCase()
		in.SufficiencyAfterHITL = ptr(0.5)

		a, err := proc.Evaluate(ctx, "tenant-001", in)
		if err != nil {
			t.Fatalf("evaluate failed: %v", err)
		}
		if a.Route != domain.RouteEDD {
			t.Errorf("expected EDD, got %s", a.Route)
		}
		if a.Metadata.RouteReason != domain.RouteReasonInsufficient {
			t.Errorf("expected insufficient_evidence, got %s", a.Metadata.RouteReason)
		}
	})

	t.Run("ThresholdOverride", func(t *testing.T) {
		in := salariedCashCase()
		in.SufficiencyAfterHITL = ptr(0.5)
		in.Thresholds = domain.ThresholdOverrides{SufficiencyMin: ptr(0.4), EDDCutoffScore: ptr(20.0)}

		a, err := proc.Evaluate(ctx, "tenant-001", in)
		if err != nil {
			t.Fatalf("evaluate failed: %v", err)
		}
		if a.Route != domain.RouteEDD || a.Metadata.RouteReason != domain.RouteReasonScoreCutoff {
			t.Errorf("expected EDD by score_cutoff, got %s/%s", a.Route, a.Metadata.RouteReason)
		}
		if a.Metadata.Thresholds.EDDCutoffScore != 20 || a.Metadata.Thresholds.SufficiencyMin != 0.4 {
			t.Errorf("unexpected effective thresholds %+v", a.Metadata.Thresholds)
		}
	})

	t.Run("EmptyCase", func(t *testing.T) {
		a, err := proc.Evaluate(ctx, "tenant-001", &domain.CaseInput{})
		if err != nil {
			t.Fatalf("evaluate failed: %v", err)
		}
		if a.CaseID != UnknownCaseID {
			t.Errorf("expected case id %s, got %s", UnknownCaseID, a.CaseID)
		}
		if a.ModelConfidence != 0 {
			t.Errorf("expected confidence 0, got %v", a.ModelConfidence)
		}
		// Missing sufficiency counts as zero, which is below any positive minimum.
		if a.Route != domain.RouteEDD || a.Metadata.RouteReason != domain.RouteReasonInsufficient {
			t.Errorf("expected EDD by insufficient_evidence, got %s/%s", a.Route, a.Metadata.RouteReason)
		}
		if len(a.DefaultsApplied) == 0 {
			t.Error("expected defaults to be recorded")
		}
		if a.RedFlags == nil {
			t.Error("red flags must be an empty list, not nil")
		}
	})
}

func TestProcessor_NoRulepack(t *testing.T) {
	proc := NewProcessor(rulepack.NewStore("unused.yaml"), nil)
	_, err := proc.Evaluate(context.Background(), "tenant-001", &domain.CaseInput{})
	if !errors.Is(err, domain.ErrNoRulepack) {
		t.Fatalf("expected ErrNoRulepack, got %v", err)
	}
}

func TestProcessor_TraceID(t *testing.T) {
	proc, _ := newTestProcessor(t)
	ctx := WithTraceID(context.Background(), "trace-001")

	a, err := proc.Evaluate(ctx, "tenant-001", salariedCashCase())
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}
	if a.Metadata.TraceID != "trace-001" {
		t.Errorf("expected trace id trace-001, got %s", a.Metadata.TraceID)
	}
	if a.Metadata.EngineVersion != EngineVersion {
		t.Errorf("expected engine version %s, got %s", EngineVersion, a.Metadata.EngineVersion)
	}
}

func TestAssessmentJSON(t *testing.T) {
	proc, _ := newTestProcessor(t)
	a, err := proc.Evaluate(context.Background(), "tenant-001", salariedCashCase())
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}

	data, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	body := string(data)

	for _, want := range []string{
		`"model_confidence":0.82`,
		`"timestamp":"2025-09-14T06:30:15Z"`,
		`"status":"assessed"`,
		`"human_reviewer":null`,
		`"route":"Baseline"`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %s in %s", want, body)
		}
	}

	// Dimensions serialize in canonical order.
	last := -1
	for _, name := range domain.DimensionOrder {
		idx := strings.Index(body, `"`+name+`":`)
		if idx < 0 || idx < last {
			t.Fatalf("dimension %s out of order in %s", name, body)
		}
		last = idx
	}
}

func TestBand(t *testing.T) {
	bands := domain.Bands{High: 60, Medium: 35}

	tests := []struct {
		total int
		want  domain.Label
	}{
		{0, domain.LabelLow},
		{34, domain.LabelLow},
		{35, domain.LabelMedium},
		{59, domain.LabelMedium},
		{60, domain.LabelHigh},
		{200, domain.LabelHigh},
	}
	for _, tt := range tests {
		if got := Band(tt.total, bands); got != tt.want {
			t.Errorf("Band(%d) = %s, want %s", tt.total, got, tt.want)
		}
	}

	prev := domain.LabelLow
	for total := 0; total <= 120; total++ {
		got := Band(total, bands)
		if got.Rank() < prev.Rank() {
			t.Fatalf("band decreased at total %d: %s after %s", total, got, prev)
		}
		prev = got
	}
}

func TestRoute(t *testing.T) {
	eff := domain.EffectiveThresholds{SufficiencyMin: 0.7, EDDCutoffScore: 55}
	edd := domain.RouteEDD

	tests := []struct {
		name   string
		dims   domain.Dimensions
		suff   *float64
		total  int
		route  domain.Route
		reason domain.RouteReason
	}{
		{"hard route wins", domain.Dimensions{PEPSanctions: domain.DimensionResult{HardRoute: &edd}}, ptr(0.1), 10, domain.RouteEDD, domain.RouteReasonHardRoute},
		{"insufficient", domain.Dimensions{}, ptr(0.69), 99, domain.RouteEDD, domain.RouteReasonInsufficient},
		{"cutoff inclusive", domain.Dimensions{}, ptr(0.7), 55, domain.RouteEDD, domain.RouteReasonScoreCutoff},
		{"baseline", domain.Dimensions{}, ptr(0.7), 54, domain.RouteBaseline, domain.RouteReasonBaseline},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := &domain.CaseInput{SufficiencyAfterHITL: tt.suff}
			route, reason := Route(&tt.dims, in, eff, tt.total)
			if route != tt.route || reason != tt.reason {
				t.Errorf("got %s/%s, want %s/%s", route, reason, tt.route, tt.reason)
			}
		})
	}
}

func TestTopReasons(t *testing.T) {
	dims := &domain.Dimensions{
		Geo:            domain.DimensionResult{Score: 5, Reason: "geo"},
		PEPSanctions:   domain.DimensionResult{Score: 10, Reason: "pep"},
		AdverseMedia:   domain.DimensionResult{Score: 10, Reason: "media"},
		PatternRisk:    domain.DimensionResult{Score: 10, Reason: ""},
		EvidenceGaps:   domain.DimensionResult{Score: 10, Reason: "gaps"},
		ProductChannel: domain.DimensionResult{Score: 1, Reason: "product"},
	}

	// Ties keep canonical order and empty reasons are skipped.
	if got := TopReasons(dims, 3); got != "pep; media; gaps" {
		t.Errorf("unexpected top reasons %q", got)
	}

	if got := TopReasons(&domain.Dimensions{}, 3); got != "Multiple factors" {
		t.Errorf("expected fallback, got %q", got)
	}

	explanation := Explain(&domain.Dimensions{}, domain.LabelMedium, domain.RouteEDD)
	if explanation != "Overall medium risk. Multiple factors push the case to EDD." {
		t.Errorf("unexpected explanation %q", explanation)
	}
}

func TestConfidence(t *testing.T) {
	tests := []struct {
		name    string
		sources []domain.EvidenceSource
		suff    *float64
		want    float64
	}{
		{"no sources", nil, ptr(1.0), 0},
		{"full sufficiency", []domain.EvidenceSource{{Confidence: 0.9}, {Confidence: 0.7}}, ptr(1.0), 0.8},
		{"no sufficiency", []domain.EvidenceSource{{Confidence: 1}}, nil, 0.8},
		{"clamped", []domain.EvidenceSource{{Confidence: 1}}, ptr(5.0), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Confidence(&domain.CaseInput{EvidenceSources: tt.sources, SufficiencyAfterHITL: tt.suff})
			if got.Rounded() != tt.want {
				t.Errorf("got %v, want %v", got.Rounded(), tt.want)
			}
			if got < 0 || got > 1 {
				t.Errorf("confidence %v out of range", got)
			}
		})
	}
}

func TestRedFlags_Custom(t *testing.T) {
	data := `  red_flags:
    - id: edd_high
      label: "High risk routed to EDD"
      when: 'route == "EDD" && risk_label == "high"'
    - id: sanctions
      label: "Sanctions hit"
      when: 'sanctions_status == "match"'
    - id: media
      label: "Adverse media"
      when: 'adverse_media_severity != "none"'
`
	fixture, err := os.ReadFile(fixturePath)
	if err != nil {
		t.Fatalf("failed to read rulepack: %v", err)
	}
	snap, err := rulepack.Parse(append(fixture, data...), "inline")
	if err != nil {
		t.Fatalf("failed to parse rulepack: %v", err)
	}
	if len(snap.RedFlags) != 3 {
		t.Fatalf("expected 3 red flags, got %d", len(snap.RedFlags))
	}

	proc := NewProcessor(rulepack.NewStaticStore(snap), nil)
	in := &domain.CaseInput{
		SufficiencyAfterHITL: ptr(0.9),
		Screening:            domain.ScreeningSummary{Sanctions: &domain.StatusCheck{Status: "match"}},
	}
	a, err := proc.Evaluate(context.Background(), "tenant-001", in)
	if err != nil {
		t.Fatalf("evaluate failed: %v", err)
	}

	want := []string{"High risk routed to EDD", "Sanctions hit"}
	if strings.Join(a.RedFlags, "|") != strings.Join(want, "|") {
		t.Errorf("got red flags %v, want %v", a.RedFlags, want)
	}
}
