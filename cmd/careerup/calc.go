package main

import (
	"fmt"
	"io"
	"os"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/warp/careerup/generic"
	"github.com/warp/careerup/subsidy"
)

// comparisonFile is the calc input: six months on each side of a conversion.
//
//	{"pre": [{"year_month": "2024-10", "base_salary": 200000, "work_days": 20, "scheduled_work_days": 20}, ...],
//	 "post": [...]}
type comparisonFile struct {
	Pre  []monthRow `json:"pre"`
	Post []monthRow `json:"post"`
}

type monthRow struct {
	YearMonth          string `json:"year_month"`
	BaseSalary         int64  `json:"base_salary"`
	FixedAllowances    int64  `json:"fixed_allowances"`
	OvertimePay        int64  `json:"overtime_pay"`
	CommutingAllowance int64  `json:"commuting_allowance"`
	WorkDays           int    `json:"work_days"`
	ScheduledWorkDays  int    `json:"scheduled_work_days"`
}

func (m monthRow) record() subsidy.MonthlySalaryRecord {
	return subsidy.MonthlySalaryRecord{
		YearMonth:          m.YearMonth,
		BaseSalary:         generic.NewYen(m.BaseSalary),
		FixedAllowances:    generic.NewYen(m.FixedAllowances),
		OvertimePay:        generic.NewYen(m.OvertimePay),
		CommutingAllowance: generic.NewYen(m.CommutingAllowance),
		WorkDays:           m.WorkDays,
		ScheduledWorkDays:  m.ScheduledWorkDays,
	}
}

func readComparisonSet(r io.Reader) (subsidy.SalaryComparisonSet, error) {
	var f comparisonFile
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return subsidy.SalaryComparisonSet{}, fmt.Errorf("failed to parse comparison set: %w", err)
	}
	set := subsidy.SalaryComparisonSet{
		Pre:  make([]subsidy.MonthlySalaryRecord, len(f.Pre)),
		Post: make([]subsidy.MonthlySalaryRecord, len(f.Post)),
	}
	for i, m := range f.Pre {
		set.Pre[i] = m.record()
	}
	for i, m := range f.Post {
		set.Post[i] = m.record()
	}
	return set, nil
}

func calcCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "calc <file.json>",
		Short: "Run the 3% wage-increase test on a comparison set",
		Long: `Reads six pre-conversion and six post-conversion months from a JSON file
("-" for stdin) and reports whether eligible wages rose by the threshold.
Short months are prorated to a full schedule before summing.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("failed to open %s: %w", args[0], err)
				}
				defer f.Close()
				in = f
			}

			set, err := readComparisonSet(in)
			if err != nil {
				return err
			}
			result := cfg.Eligibility.CalculateSalaryIncrease(set.Pre, set.Post)

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{
					"success":                   result.Success,
					"pre_total_salary":          result.PreTotalSalary.Int64(),
					"post_total_salary":         result.PostTotalSalary.Int64(),
					"increase_amount":           result.IncreaseAmount.Int64(),
					"increase_rate":             result.RateForDisplay(),
					"meets_requirement":         result.MeetsRequirement,
					"required_monthly_increase": result.RequiredMonthlyIncrease.Int64(),
					"message":                   result.Message,
					"warnings":                  result.Warnings,
					"errors":                    result.Errors,
				})
			}
			_, err = fmt.Fprintln(out, renderVerdict(result))
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	return cmd
}
