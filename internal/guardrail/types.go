package guardrail

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Reason is the machine-readable cause of a failed check.
type Reason string

// Failure reasons, one per check.
const (
	ReasonOOSCalmarTooLow      Reason = "OOS_CALMAR_TOO_LOW"
	ReasonMaxDrawdownTooHigh   Reason = "MAX_DRAWDOWN_TOO_HIGH"
	ReasonRiskOfRuinTooHigh    Reason = "RISK_OF_RUIN_TOO_HIGH"
	ReasonOOSTooShort          Reason = "OOS_PERIOD_TOO_SHORT"
	ReasonCAGRDivergence       Reason = "CAGR_DIVERGENCE_TOO_HIGH"
	ReasonTooFewTrades         Reason = "TOO_FEW_TRADES"
	ReasonHistoryTooShort      Reason = "HISTORY_TOO_SHORT"
	ReasonCalmarCITooLow       Reason = "CALMAR_CI_TOO_LOW"
	ReasonTrackingErrorTooHigh Reason = "TRACKING_ERROR_TOO_HIGH"
	ReasonUnstable             Reason = "PARAMETER_UNSTABLE"
	ReasonInsufficientData     Reason = "INSUFFICIENT_SENSITIVITY_DATA"
)

// Result is the outcome of one check. Reason is empty when Passed.
type Result struct {
	Passed  bool
	Reason  Reason
	Details map[string]float64
}

func pass(details map[string]float64) Result {
	return Result{Passed: true, Details: details}
}

func fail(reason Reason, details map[string]float64) Result {
	return Result{Passed: false, Reason: reason, Details: details}
}

// ErrCampaignAbort is matched by every *CampaignAbort.
var ErrCampaignAbort = errors.New("campaign aborted")

// CampaignAbort wraps a failed Result into an error.
type CampaignAbort struct {
	Reason  Reason
	Details map[string]float64
}

func (e *CampaignAbort) Error() string {
	keys := make([]string, 0, len(e.Details))
	for k := range e.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%g", k, e.Details[k])
	}
	return fmt.Sprintf("campaign aborted: %s (%s)", e.Reason, strings.Join(parts, ", "))
}

// Is reports ErrCampaignAbort.
func (e *CampaignAbort) Is(target error) bool {
	return target == ErrCampaignAbort
}

// RaiseIfFailed returns a *CampaignAbort for a failed result and nil otherwise.
func (r Result) RaiseIfFailed() error {
	if r.Passed {
		return nil
	}
	return &CampaignAbort{Reason: r.Reason, Details: r.Details}
}

// CriterionResult is one row of the full checklist.
type CriterionResult struct {
	Name      string
	Threshold string
	Actual    string
	Result    Result
}

// Evaluation is the full checklist plus the CheckAll verdict.
type Evaluation struct {
	Verdict  Result // first failure in priority order, or a pass
	Criteria []CriterionResult
}
