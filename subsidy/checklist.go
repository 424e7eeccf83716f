package subsidy

import "sort"

// DocumentKind identifies one document of the filing bundle.
type DocumentKind string

const (
	DocCareerUpPlan     DocumentKind = "career_up_plan"
	DocWorkRulesBefore  DocumentKind = "work_rules_before"
	DocWorkRulesAfter   DocumentKind = "work_rules_after"
	DocContractBefore   DocumentKind = "employment_contract_before"
	DocContractAfter    DocumentKind = "employment_contract_after"
	DocWageLedgerBefore DocumentKind = "wage_ledger_before"
	DocWageLedgerAfter  DocumentKind = "wage_ledger_after"
	DocAttendanceBefore DocumentKind = "attendance_before"
	DocAttendanceAfter  DocumentKind = "attendance_after"
	DocApplicationForm  DocumentKind = "application_form"
	DocDispatchContract DocumentKind = "dispatch_contract"
)

var documentLabels = map[DocumentKind]string{
	DocCareerUpPlan:     "キャリアアップ計画書",
	DocWorkRulesBefore:  "転換前の就業規則",
	DocWorkRulesAfter:   "転換後の就業規則",
	DocContractBefore:   "転換前の雇用契約書",
	DocContractAfter:    "転換後の雇用契約書",
	DocWageLedgerBefore: "転換前6ヶ月分の賃金台帳",
	DocWageLedgerAfter:  "転換後6ヶ月分の賃金台帳",
	DocAttendanceBefore: "転換前6ヶ月分の出勤簿",
	DocAttendanceAfter:  "転換後6ヶ月分の出勤簿",
	DocApplicationForm:  "支給申請書",
	DocDispatchContract: "労働者派遣契約書",
}

var baseDocuments = []DocumentKind{
	DocCareerUpPlan,
	DocWorkRulesBefore,
	DocWorkRulesAfter,
	DocContractBefore,
	DocContractAfter,
	DocWageLedgerBefore,
	DocWageLedgerAfter,
	DocAttendanceBefore,
	DocAttendanceAfter,
	DocApplicationForm,
}

// KnownDocument reports whether kind is part of any bundle.
func KnownDocument(kind DocumentKind) bool {
	_, ok := documentLabels[kind]
	return ok
}

func DocumentLabel(kind DocumentKind) string {
	if label, ok := documentLabels[kind]; ok {
		return label
	}
	return string(kind)
}

// RequiredDocuments returns the bundle for a conversion type, in filing order.
func RequiredDocuments(ct ConversionType) []DocumentKind {
	docs := append([]DocumentKind{}, baseDocuments...)
	if ct == ConversionDispatchToRegular {
		docs = append(docs, DocDispatchContract)
	}
	return docs
}

// Checklist records which documents have been collected.
type Checklist map[DocumentKind]bool

// ChecklistProgress summarizes a checklist against a bundle.
type ChecklistProgress struct {
	Done     int
	Required int
	Percent  int // floor
}

func (c Checklist) Progress(ct ConversionType) ChecklistProgress {
	required := RequiredDocuments(ct)
	done := 0
	for _, d := range required {
		if c[d] {
			done++
		}
	}
	return ChecklistProgress{Done: done, Required: len(required), Percent: done * 100 / len(required)}
}

// Missing returns the uncollected documents of the bundle, in filing order.
func (c Checklist) Missing(ct ConversionType) []DocumentKind {
	var missing []DocumentKind
	for _, d := range RequiredDocuments(ct) {
		if !c[d] {
			missing = append(missing, d)
		}
	}
	return missing
}

func (c Checklist) Complete(ct ConversionType) bool {
	return len(c.Missing(ct)) == 0
}

// Checked returns the collected documents sorted by code, for stable storage.
func (c Checklist) Checked() []DocumentKind {
	var out []DocumentKind
	for k, v := range c {
		if v {
			out = append(out, k)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ChecklistOf builds a checklist with the given documents collected.
func ChecklistOf(kinds ...DocumentKind) Checklist {
	c := make(Checklist, len(kinds))
	for _, k := range kinds {
		c[k] = true
	}
	return c
}
