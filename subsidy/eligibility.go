/*
eligibility.go - 3% wage-increase test for a regular-employment conversion

PURPOSE:
  Decides whether converting a worker from non-regular to regular
  employment raised eligible pay by at least 3%, comparing the six months
  before the conversion with the six months after.

ELIGIBLE SALARY:
  base salary + fixed allowances. Overtime and commuting allowances are
  excluded by regulation, whatever their size.

SHORT MONTHS:
  A month worked short of schedule (mid-month hire, leave) is scaled up
  to a full-schedule equivalent:

    eligible * scheduledWorkDays / workDays      (0 < workDays < scheduled)

  A month worked in full, or over schedule, passes through unchanged.
  scheduledWorkDays == 0 also passes through.

ARITHMETIC:
  1. Validate both periods (pre first, then post)
  2. Any error -> Success=false, zero totals, no arithmetic
  3. Sum normalized months, unrounded
  4. rate = increase / preTotal * 100, on unrounded values (0 if preTotal is 0)
  5. pass iff rate >= threshold (3.0 exactly passes)
  6. failing -> required monthly raise = ceil((preTotal*3% - increase) / 6)
  7. threshold <= rate < borderline -> advisory warning

  Totals are rounded to whole yen only in the returned result.

FAILURE SEMANTICS:
  Nothing here returns an error or panics. Problems are reported in
  EligibilityResult.Errors / Warnings and the caller decides what to block.

SEE ALSO:
  - deadline.go: the other pure derivation in this package
  - api/handlers.go: CalculateEligibility, the HTTP surface
*/
package subsidy

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/careerup/generic"
)

// =============================================================================
// POLICY - Business constants, configurable
// =============================================================================

// EligibilityPolicy holds the policy constants of the wage test.
type EligibilityPolicy struct {
	// ThresholdPercent is the minimum increase rate, in percent.
	ThresholdPercent decimal.Decimal

	// BorderlinePercent is the upper end of the "barely passing" band.
	BorderlinePercent decimal.Decimal

	// AttendanceRatio flags months with workDays below this share of schedule.
	AttendanceRatio decimal.Decimal

	// MonthsPerPeriod is the required record count on each side.
	MonthsPerPeriod int
}

// DefaultPolicy returns the current regulatory constants.
func DefaultPolicy() EligibilityPolicy {
	return EligibilityPolicy{
		ThresholdPercent:  decimal.NewFromInt(3),
		BorderlinePercent: decimal.NewFromFloat(3.5),
		AttendanceRatio:   decimal.NewFromFloat(0.8),
		MonthsPerPeriod:   6,
	}
}

// Validate rejects policies that would make the test meaningless.
func (p EligibilityPolicy) Validate() error {
	var problems []string
	if !p.ThresholdPercent.IsPositive() {
		problems = append(problems, "threshold must be positive")
	}
	if p.BorderlinePercent.LessThan(p.ThresholdPercent) {
		problems = append(problems, "borderline must not be below threshold")
	}
	if p.AttendanceRatio.IsNegative() || p.AttendanceRatio.GreaterThan(decimal.NewFromInt(1)) {
		problems = append(problems, "attendance ratio must be within [0, 1]")
	}
	if p.MonthsPerPeriod <= 0 {
		problems = append(problems, "months per period must be positive")
	}
	if len(problems) > 0 {
		return &generic.ValidationError{Field: "eligibility", Problems: problems}
	}
	return nil
}

// =============================================================================
// RESULT TYPES
// =============================================================================

// ValidationResult is the outcome of validating one period.
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// EligibilityResult is the calculator output.
type EligibilityResult struct {
	Success bool // false only when validation failed

	PreTotalSalary  generic.Amount // whole yen
	PostTotalSalary generic.Amount // whole yen
	IncreaseAmount  generic.Amount // post - pre, signed, whole yen

	// IncreaseRate is a percentage, unrounded. Use RateForDisplay for output.
	IncreaseRate decimal.Decimal

	MeetsRequirement bool

	// RequiredMonthlyIncrease is the extra monthly raise that would reach the
	// threshold. Zero when the requirement is met or validation failed.
	RequiredMonthlyIncrease generic.Amount

	Message  string
	Warnings []string
	Errors   []string
}

// RateForDisplay formats the rate with two decimals.
func (r EligibilityResult) RateForDisplay() string {
	return r.IncreaseRate.StringFixed(2)
}

// =============================================================================
// OPERATIONS
// =============================================================================

// NormalizeMonthlyEligibleSalary returns the month's eligible salary,
// prorated to a full schedule for short months.
func NormalizeMonthlyEligibleSalary(r MonthlySalaryRecord) generic.Amount {
	eligible := r.BaseSalary.Add(r.FixedAllowances)
	if eligible.Unit == "" {
		eligible.Unit = generic.UnitYen
	}

	if r.ScheduledWorkDays <= 0 || r.WorkDays <= 0 || r.WorkDays >= r.ScheduledWorkDays {
		return eligible
	}

	// Multiply before dividing to keep exact results exact (200000*20/10).
	return eligible.
		Mul(decimal.NewFromInt(int64(r.ScheduledWorkDays))).
		Div(decimal.NewFromInt(int64(r.WorkDays)))
}

// ValidateSalaryData checks one period's records. Messages are tagged with the
// period label and month so the two periods can be reported together.
func (p EligibilityPolicy) ValidateSalaryData(records []MonthlySalaryRecord, periodLabel string) ValidationResult {
	var result ValidationResult

	if len(records) != p.MonthsPerPeriod {
		result.Errors = append(result.Errors, fmt.Sprintf(
			"%s: %dヶ月分の賃金データが必要です（入力: %dヶ月）",
			periodLabel, p.MonthsPerPeriod, len(records)))
	}

	for i, r := range records {
		tag := monthTag(periodLabel, i, r)

		if !r.BaseSalary.IsPositive() {
			result.Errors = append(result.Errors, tag+": 基本給は0より大きい金額を入力してください")
		}
		if r.WorkDays <= 0 {
			result.Errors = append(result.Errors, tag+": 出勤日数は1日以上を入力してください")
		}
		if r.ScheduledWorkDays <= 0 {
			result.Errors = append(result.Errors, tag+": 所定労働日数は1日以上を入力してください")
		}

		if r.ScheduledWorkDays > 0 {
			floor := decimal.NewFromInt(int64(r.ScheduledWorkDays)).Mul(p.AttendanceRatio)
			if decimal.NewFromInt(int64(r.WorkDays)).LessThan(floor) {
				result.Warnings = append(result.Warnings, fmt.Sprintf(
					"%s: 出勤日数(%d日)が所定労働日数(%d日)の%s%%未満です。内容を確認してください",
					tag, r.WorkDays, r.ScheduledWorkDays, p.AttendanceRatio.Shift(2).String()))
			}
		}
		if r.OvertimePay.GreaterThan(r.BaseSalary) {
			result.Warnings = append(result.Warnings, tag+": 残業代が基本給を上回っています。入力内容を確認してください")
		}
	}

	result.Valid = len(result.Errors) == 0
	return result
}

// CalculateSalaryIncrease runs the wage test under this policy.
func (p EligibilityPolicy) CalculateSalaryIncrease(pre, post []MonthlySalaryRecord) EligibilityResult {
	preCheck := p.ValidateSalaryData(pre, PeriodPre)
	postCheck := p.ValidateSalaryData(post, PeriodPost)

	errs := append(append([]string{}, preCheck.Errors...), postCheck.Errors...)
	warnings := append(append([]string{}, preCheck.Warnings...), postCheck.Warnings...)

	if len(errs) > 0 {
		return EligibilityResult{
			Success:                 false,
			PreTotalSalary:          generic.ZeroYen(),
			PostTotalSalary:         generic.ZeroYen(),
			IncreaseAmount:          generic.ZeroYen(),
			IncreaseRate:            decimal.Zero,
			RequiredMonthlyIncrease: generic.ZeroYen(),
			MeetsRequirement:        false,
			Message:                 "入力内容にエラーがあります。修正してから再計算してください",
			Warnings:                warnings,
			Errors:                  errs,
		}
	}

	preTotal := sumEligible(pre)
	postTotal := sumEligible(post)
	increase := postTotal.Sub(preTotal)
	rate := IncreaseRate(preTotal.Value, increase.Value)
	meets := rate.GreaterThanOrEqual(p.ThresholdPercent)

	result := EligibilityResult{
		Success:                 true,
		PreTotalSalary:          preTotal.Round(),
		PostTotalSalary:         postTotal.Round(),
		IncreaseAmount:          postTotal.Round().Sub(preTotal.Round()),
		IncreaseRate:            rate,
		MeetsRequirement:        meets,
		RequiredMonthlyIncrease: generic.ZeroYen(),
		Warnings:                warnings,
	}

	if meets {
		result.Message = fmt.Sprintf("賃金上昇率は%s%%で、%s%%以上の要件を満たしています",
			rate.StringFixed(2), p.ThresholdPercent.String())
		if rate.LessThan(p.BorderlinePercent) {
			result.Warnings = append(result.Warnings, fmt.Sprintf(
				"賃金上昇率が%s%%〜%s%%の範囲です。基準をわずかに上回る水準のため、余裕を持った昇給を推奨します",
				p.ThresholdPercent.String(), p.BorderlinePercent.String()))
		}
		return result
	}

	result.RequiredMonthlyIncrease = p.requiredMonthlyIncrease(preTotal, increase)
	result.Message = fmt.Sprintf(
		"賃金上昇率は%s%%で、%s%%以上の要件を満たしていません。要件を満たすには月額あと%s円以上の増額が必要です",
		rate.StringFixed(2), p.ThresholdPercent.String(), result.RequiredMonthlyIncrease.String())
	return result
}

// CalculateSalaryIncrease runs the wage test under DefaultPolicy.
func CalculateSalaryIncrease(pre, post []MonthlySalaryRecord) EligibilityResult {
	return DefaultPolicy().CalculateSalaryIncrease(pre, post)
}

// IncreaseRate returns increase/preTotal*100. A non-positive preTotal yields 0
// instead of a division by zero.
func IncreaseRate(preTotal, increase decimal.Decimal) decimal.Decimal {
	if !preTotal.IsPositive() {
		return decimal.Zero
	}
	return increase.Div(preTotal).Mul(decimal.NewFromInt(100))
}

// requiredMonthlyIncrease spreads the shortfall to the threshold evenly over
// the post-conversion months, rounded up to whole yen.
func (p EligibilityPolicy) requiredMonthlyIncrease(preTotal, increase generic.Amount) generic.Amount {
	target := preTotal.Value.Mul(p.ThresholdPercent).Div(decimal.NewFromInt(100))
	shortfall := target.Sub(increase.Value)
	if !shortfall.IsPositive() {
		return generic.ZeroYen()
	}
	monthly := shortfall.Div(decimal.NewFromInt(int64(p.MonthsPerPeriod))).Ceil()
	return generic.Amount{Value: monthly, Unit: generic.UnitYen}
}

func sumEligible(records []MonthlySalaryRecord) generic.Amount {
	total := generic.ZeroYen()
	for _, r := range records {
		total = total.Add(NormalizeMonthlyEligibleSalary(r))
	}
	return total
}

func monthTag(periodLabel string, index int, r MonthlySalaryRecord) string {
	if r.YearMonth != "" {
		return fmt.Sprintf("%s %dヶ月目(%s)", periodLabel, index+1, r.YearMonth)
	}
	return fmt.Sprintf("%s %dヶ月目", periodLabel, index+1)
}
