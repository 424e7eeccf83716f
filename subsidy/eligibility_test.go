package subsidy_test

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/careerup/generic"
	"github.com/warp/careerup/subsidy"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func month(base, allowances int64, workDays, scheduled int) subsidy.MonthlySalaryRecord {
	return subsidy.MonthlySalaryRecord{
		BaseSalary:        generic.NewYen(base),
		FixedAllowances:   generic.NewYen(allowances),
		OvertimePay:       generic.ZeroYen(),
		WorkDays:          workDays,
		ScheduledWorkDays: scheduled,
	}
}

func sixMonths(r subsidy.MonthlySalaryRecord) []subsidy.MonthlySalaryRecord {
	out := make([]subsidy.MonthlySalaryRecord, 6)
	for i := range out {
		out[i] = r
	}
	return out
}

// periodTotaling returns six full-attendance months summing exactly to total.
func periodTotaling(total int64) []subsidy.MonthlySalaryRecord {
	out := sixMonths(month(total/6, 0, 20, 20))
	out[5].BaseSalary = generic.NewYen(total - 5*(total/6))
	return out
}

func containsAny(msgs []string, substr string) bool {
	for _, m := range msgs {
		if strings.Contains(m, substr) {
			return true
		}
	}
	return false
}

// =============================================================================
// NORMALIZATION TESTS
// =============================================================================

func TestNormalize_ShortMonthIsProrated(t *testing.T) {
	// GIVEN: 200,000 base, worked 10 of 20 scheduled days
	// WHEN: Normalizing
	// THEN: Scaled to a full month, 400,000
	got := subsidy.NormalizeMonthlyEligibleSalary(month(200000, 0, 10, 20))
	assert.True(t, got.Equal(generic.NewYen(400000)), "got %s", got.Value)
}

func TestNormalize_FullMonthUnchanged(t *testing.T) {
	got := subsidy.NormalizeMonthlyEligibleSalary(month(200000, 0, 20, 20))
	assert.True(t, got.Equal(generic.NewYen(200000)))
}

func TestNormalize_OverScheduleNotScaledDown(t *testing.T) {
	// GIVEN: Worked 22 days on a 20-day schedule
	// THEN: Pay is taken as-is
	got := subsidy.NormalizeMonthlyEligibleSalary(month(200000, 0, 22, 20))
	assert.True(t, got.Equal(generic.NewYen(200000)))
}

func TestNormalize_NoScheduleMeansNoProration(t *testing.T) {
	got := subsidy.NormalizeMonthlyEligibleSalary(month(180000, 5000, 12, 0))
	assert.True(t, got.Equal(generic.NewYen(185000)))
}

func TestNormalize_FixedAllowancesCounted(t *testing.T) {
	got := subsidy.NormalizeMonthlyEligibleSalary(month(200000, 10000, 20, 20))
	assert.True(t, got.Equal(generic.NewYen(210000)))
}

func TestNormalize_OvertimeAndCommutingExcluded(t *testing.T) {
	// GIVEN: Same month with and without large overtime / commuting pay
	// THEN: Eligible salary is identical
	plain := month(200000, 10000, 15, 20)
	loaded := plain
	loaded.OvertimePay = generic.NewYen(90000)
	loaded.CommutingAllowance = generic.NewYen(25000)

	a := subsidy.NormalizeMonthlyEligibleSalary(plain)
	b := subsidy.NormalizeMonthlyEligibleSalary(loaded)
	assert.True(t, a.Equal(b), "%s != %s", a.Value, b.Value)
}

// =============================================================================
// VALIDATION TESTS
// =============================================================================

func TestValidate_WrongCountMentionsPeriod(t *testing.T) {
	for _, n := range []int{0, 5, 7} {
		records := make([]subsidy.MonthlySalaryRecord, n)
		for i := range records {
			records[i] = month(200000, 0, 20, 20)
		}

		result := subsidy.CalculateSalaryIncrease(records, sixMonths(month(210000, 0, 20, 20)))
		assert.False(t, result.Success, "n=%d", n)
		assert.True(t, containsAny(result.Errors, subsidy.PeriodPre), "n=%d errors=%v", n, result.Errors)

		result = subsidy.CalculateSalaryIncrease(sixMonths(month(200000, 0, 20, 20)), records)
		assert.False(t, result.Success, "n=%d", n)
		assert.True(t, containsAny(result.Errors, subsidy.PeriodPost), "n=%d errors=%v", n, result.Errors)
	}
}

func TestValidate_NonPositiveFieldsAreErrors(t *testing.T) {
	records := sixMonths(month(200000, 0, 20, 20))
	records[2] = month(0, 0, 0, 0)

	v := subsidy.DefaultPolicy().ValidateSalaryData(records, subsidy.PeriodPre)
	assert.False(t, v.Valid)
	assert.Len(t, v.Errors, 3, "base, work days and scheduled days")
	for _, e := range v.Errors {
		assert.Contains(t, e, "転換前 3ヶ月目")
	}
}

func TestValidate_LowAttendanceWarns(t *testing.T) {
	// GIVEN: 15 of 20 days worked (75%, under the 80% floor)
	records := sixMonths(month(200000, 0, 20, 20))
	records[0] = month(200000, 0, 15, 20)

	v := subsidy.DefaultPolicy().ValidateSalaryData(records, subsidy.PeriodPost)
	assert.True(t, v.Valid)
	require.Len(t, v.Warnings, 1)
	assert.Contains(t, v.Warnings[0], "80%")
}

func TestValidate_AttendanceAtFloorDoesNotWarn(t *testing.T) {
	records := sixMonths(month(200000, 0, 16, 20))
	v := subsidy.DefaultPolicy().ValidateSalaryData(records, subsidy.PeriodPost)
	assert.Empty(t, v.Warnings)
}

func TestValidate_OvertimeAboveBaseWarns(t *testing.T) {
	records := sixMonths(month(150000, 0, 20, 20))
	records[4].OvertimePay = generic.NewYen(160000)

	v := subsidy.DefaultPolicy().ValidateSalaryData(records, subsidy.PeriodPre)
	assert.True(t, v.Valid)
	require.Len(t, v.Warnings, 1)
	assert.Contains(t, v.Warnings[0], "残業代")
}

func TestCalculate_InvalidInputZeroesTotals(t *testing.T) {
	result := subsidy.CalculateSalaryIncrease(nil, nil)

	assert.False(t, result.Success)
	assert.False(t, result.MeetsRequirement)
	assert.True(t, result.PreTotalSalary.IsZero())
	assert.True(t, result.PostTotalSalary.IsZero())
	assert.True(t, result.IncreaseRate.IsZero())
	assert.Len(t, result.Errors, 2)
}

// =============================================================================
// THRESHOLD TESTS
// =============================================================================

func TestCalculate_ExactlyThreePercentPasses(t *testing.T) {
	// GIVEN: 1,200,000 -> 1,236,000
	// THEN: Rate is exactly 3.00% and passes
	result := subsidy.CalculateSalaryIncrease(periodTotaling(1200000), periodTotaling(1236000))

	require.True(t, result.Success, "errors: %v", result.Errors)
	assert.True(t, result.IncreaseRate.Equal(decimal.NewFromInt(3)), "rate %s", result.IncreaseRate)
	assert.True(t, result.MeetsRequirement)
	assert.Equal(t, "3.00", result.RateForDisplay())
	assert.True(t, result.RequiredMonthlyIncrease.IsZero())
}

func TestCalculate_OneYenShortFails(t *testing.T) {
	// GIVEN: 1,200,000 -> 1,235,999 (2.99996%)
	// THEN: Fails, and asks for at least 1 yen more per month
	result := subsidy.CalculateSalaryIncrease(periodTotaling(1200000), periodTotaling(1235999))

	require.True(t, result.Success)
	assert.False(t, result.MeetsRequirement)
	assert.True(t, result.IncreaseRate.LessThan(decimal.NewFromInt(3)))
	assert.True(t, result.RequiredMonthlyIncrease.Equal(generic.NewYen(1)))
	assert.Contains(t, result.Message, "月額あと1円以上")
}

func TestCalculate_RequiredIncreaseRoundsUp(t *testing.T) {
	// GIVEN: 1,200,000 -> 1,200,000 (no raise)
	// THEN: Shortfall 36,000 over 6 months = 6,000/month
	result := subsidy.CalculateSalaryIncrease(periodTotaling(1200000), periodTotaling(1200000))
	assert.True(t, result.RequiredMonthlyIncrease.Equal(generic.NewYen(6000)))

	// GIVEN: 1,000,000 -> 1,000,001; shortfall 29,999 / 6 = 4,999.83
	result = subsidy.CalculateSalaryIncrease(periodTotaling(1000000), periodTotaling(1000001))
	assert.True(t, result.RequiredMonthlyIncrease.Equal(generic.NewYen(5000)))
}

func TestCalculate_DecreaseFails(t *testing.T) {
	result := subsidy.CalculateSalaryIncrease(periodTotaling(1200000), periodTotaling(1100000))

	require.True(t, result.Success)
	assert.False(t, result.MeetsRequirement)
	assert.True(t, result.IncreaseRate.IsNegative())
	assert.True(t, result.IncreaseAmount.Equal(generic.NewYen(-100000)))
	// (36,000 + 100,000) / 6 = 22,666.67 -> 22,667
	assert.True(t, result.RequiredMonthlyIncrease.Equal(generic.NewYen(22667)))
}

func TestCalculate_BorderlineWarns(t *testing.T) {
	// GIVEN: 3.2% increase
	result := subsidy.CalculateSalaryIncrease(periodTotaling(1000000), periodTotaling(1032000))

	assert.True(t, result.MeetsRequirement)
	assert.True(t, containsAny(result.Warnings, "3.5%"), "warnings: %v", result.Warnings)
}

func TestCalculate_ComfortablePassHasNoBorderlineWarning(t *testing.T) {
	result := subsidy.CalculateSalaryIncrease(periodTotaling(1000000), periodTotaling(1035000))

	assert.True(t, result.MeetsRequirement)
	assert.Empty(t, result.Warnings)
}

func TestIncreaseRate_ZeroPreTotalIsZero(t *testing.T) {
	// GIVEN: pre 0, post 500,000
	// THEN: 0%, no panic
	assert.NotPanics(t, func() {
		rate := subsidy.IncreaseRate(decimal.Zero, decimal.NewFromInt(500000))
		assert.True(t, rate.IsZero())
	})
}

func TestCalculate_ProratedMonthsDoNotCountAsRaise(t *testing.T) {
	// GIVEN: Same pay rate before and after; the first post month is half-worked
	// THEN: No raise is detected
	pre := sixMonths(month(200000, 0, 20, 20))
	post := sixMonths(month(200000, 0, 20, 20))
	post[0] = month(100000, 0, 10, 20)

	result := subsidy.CalculateSalaryIncrease(pre, post)
	require.True(t, result.Success)
	assert.True(t, result.IncreaseAmount.IsZero(), "increase %s", result.IncreaseAmount.Value)
	assert.False(t, result.MeetsRequirement)
	assert.Len(t, result.Warnings, 1, "low attendance warning only")
}

// =============================================================================
// END-TO-END
// =============================================================================

func TestCalculate_TypicalConversionPasses(t *testing.T) {
	// GIVEN: 210,000/month eligible before, 227,000/month after
	// THEN: 1,260,000 -> 1,362,000, +102,000, about 8.10%
	pre := sixMonths(month(200000, 10000, 20, 20))
	post := sixMonths(month(217000, 10000, 20, 20))

	result := subsidy.CalculateSalaryIncrease(pre, post)

	require.True(t, result.Success)
	assert.True(t, result.PreTotalSalary.Equal(generic.NewYen(1260000)))
	assert.True(t, result.PostTotalSalary.Equal(generic.NewYen(1362000)))
	assert.True(t, result.IncreaseAmount.Equal(generic.NewYen(102000)))
	assert.Equal(t, "8.10", result.RateForDisplay())
	assert.True(t, result.MeetsRequirement)
	assert.Contains(t, result.Message, "8.10%")
	assert.Empty(t, result.Errors)
}

// =============================================================================
// POLICY
// =============================================================================

func TestPolicy_CustomThreshold(t *testing.T) {
	// GIVEN: A stricter 5% policy
	p := subsidy.DefaultPolicy()
	p.ThresholdPercent = decimal.NewFromInt(5)
	p.BorderlinePercent = decimal.NewFromInt(6)
	require.NoError(t, p.Validate())

	result := p.CalculateSalaryIncrease(periodTotaling(1000000), periodTotaling(1040000))
	assert.False(t, result.MeetsRequirement)
	assert.Contains(t, result.Message, "5%")
	// (50,000 - 40,000) / 6 = 1,666.67 -> 1,667
	assert.True(t, result.RequiredMonthlyIncrease.Equal(generic.NewYen(1667)))
}

func TestPolicy_ValidateRejectsNonsense(t *testing.T) {
	p := subsidy.DefaultPolicy()
	p.ThresholdPercent = decimal.Zero
	p.MonthsPerPeriod = 0

	err := p.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, generic.ErrInvalidInput)
}

func TestComparisonMonths(t *testing.T) {
	pre, post := subsidy.ComparisonMonths(generic.NewTimePoint(2025, 4, 15))

	assert.Equal(t, []string{"2024-10", "2024-11", "2024-12", "2025-01", "2025-02", "2025-03"}, pre)
	assert.Equal(t, []string{"2025-04", "2025-05", "2025-06", "2025-07", "2025-08", "2025-09"}, post)
}
