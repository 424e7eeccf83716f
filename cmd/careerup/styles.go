package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/warp/careerup/generic"
	"github.com/warp/careerup/subsidy"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	passStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42"))
	failStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	verdictBox   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	bucketStyles = map[subsidy.DeadlineBucket]lipgloss.Style{
		subsidy.BucketOverdue:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
		subsidy.BucketUrgent:   lipgloss.NewStyle().Foreground(lipgloss.Color("208")),
		subsidy.BucketSoon:     lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
		subsidy.BucketUpcoming: lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
	}
)

var bucketLabels = map[subsidy.DeadlineBucket]string{
	subsidy.BucketOverdue:  "期限切れ",
	subsidy.BucketUrgent:   "7日以内",
	subsidy.BucketSoon:     "14日以内",
	subsidy.BucketUpcoming: "30日以内",
	subsidy.BucketNormal:   "余裕あり",
	subsidy.BucketNone:     "期限未設定",
}

// renderVerdict formats a calculator result for the terminal.
func renderVerdict(r subsidy.EligibilityResult) string {
	var b strings.Builder

	switch {
	case !r.Success:
		b.WriteString(failStyle.Render("入力エラー"))
	case r.MeetsRequirement:
		b.WriteString(passStyle.Render("要件を満たしています"))
	default:
		b.WriteString(failStyle.Render("要件を満たしていません"))
	}
	b.WriteString("\n\n")

	if r.Success {
		fmt.Fprintf(&b, "転換前6ヶ月合計  %s円\n", generic.FormatThousands(r.PreTotalSalary.Int64()))
		fmt.Fprintf(&b, "転換後6ヶ月合計  %s円\n", generic.FormatThousands(r.PostTotalSalary.Int64()))
		fmt.Fprintf(&b, "増加額          %s円\n", generic.FormatThousands(r.IncreaseAmount.Int64()))
		fmt.Fprintf(&b, "賃金上昇率      %s%%\n", r.RateForDisplay())
		if !r.MeetsRequirement {
			fmt.Fprintf(&b, "必要な月額増額  %s円\n", generic.FormatThousands(r.RequiredMonthlyIncrease.Int64()))
		}
		b.WriteString("\n")
	}
	b.WriteString(r.Message)

	for _, e := range r.Errors {
		b.WriteString("\n" + failStyle.Render("✗ ") + e)
	}
	for _, w := range r.Warnings {
		b.WriteString("\n" + warnStyle.Render("! ") + w)
	}
	return verdictBox.Render(b.String())
}

func renderBucket(v subsidy.ApplicationView) string {
	label := bucketLabels[v.Bucket]
	if style, ok := bucketStyles[v.Bucket]; ok {
		return style.Render(label)
	}
	return mutedStyle.Render(label)
}
