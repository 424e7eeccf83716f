package transfer

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"github.com/warp/careerup/generic"
	"github.com/warp/careerup/subsidy"
)

// utf8BOM lets spreadsheet software detect the encoding of Japanese text.
const utf8BOM = "\ufeff"

var csvHeader = []string{
	"申請ID", "顧客名", "対象者", "転換区分", "転換日", "申請期限",
	"残日数", "期限区分", "状態", "支給予定額", "重点支援対象", "書類進捗",
}

// WriteApplicationsCSV writes one row per application with its derived
// fields as of now. Applications are written in the given order.
func WriteApplicationsCSV(w io.Writer, clients []subsidy.Client, apps []subsidy.Application, now time.Time) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return err
	}

	names := make(map[generic.ClientID]string, len(clients))
	for _, c := range clients {
		names[c.ID] = c.Name
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, a := range apps {
		v := subsidy.DeriveApplicationView(a, now)
		days, deadline := "", ""
		if v.HasDeadline {
			days = strconv.Itoa(v.DaysRemaining)
			deadline = a.ApplicationDeadline.String()
		}
		priority := ""
		if a.PriorityTarget {
			priority = "○"
		}
		progress := a.Checklist.Progress(a.ConversionType)

		row := []string{
			string(a.ID),
			names[a.ClientID],
			a.WorkerName,
			subsidy.ConversionLabel(a.ConversionType),
			dateString(a.ConversionDate),
			deadline,
			days,
			string(v.Bucket),
			v.StatusLabel,
			strconv.FormatInt(a.SubsidyAmount.Int64(), 10),
			priority,
			strconv.Itoa(progress.Done) + "/" + strconv.Itoa(progress.Required),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
