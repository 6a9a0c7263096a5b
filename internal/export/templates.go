package export

import (
	"bytes"
	"html/template"
	"strconv"
	"strings"
	"time"

	"github.com/SabarathinamR/FinalJob/internal/store"
)

type sheetTable struct {
	Title   string
	Headers []string
	Rows    [][]string
}

type sheetData struct {
	Heading string
	Intro   string

	JobSheetNo   string
	Date         string
	Day          string
	ContractNo   string
	TeamNo       string
	WorkingShift string
	SiteForeman  string
	WorkingTime  string
	TmwpLcVehNo  string
	LorryVehNo   string
	NoOfTma      string

	ManpowerOnSite   sheetTable
	ManpowerTransfer sheetTable

	IncludeDiary                bool
	WorkDiaryDescription        string
	WeatherConditionDescription string
	WorkDiary                   sheetTable
	WeatherConditions           sheetTable

	RecordedBy  string
	OMSignature string
	QCSignature string
	PMSignature string
	FinalStatus string

	ApprovalLink string
}

// FormatTime renders a 24h "HH:MM" value as "hh:MM AM/PM". Anything it
// cannot parse renders as "--:--", matching the form's placeholder.
func FormatTime(value string) string {
	parts := strings.Split(value, ":")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "--:--"
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return "--:--"
	}
	meridiem := "AM"
	if hour >= 12 {
		meridiem = "PM"
	}
	hour = hour % 12
	if hour == 0 {
		hour = 12
	}
	return strings.Join([]string{padTwo(hour), parts[1]}, ":") + " " + meridiem
}

// FormatDate renders an ISO "YYYY-MM-DD" value as "DD/MM/YYYY".
func FormatDate(value string) string {
	if value == "" {
		return ""
	}
	parsed, err := time.Parse("2006-01-02", value)
	if err != nil {
		return ""
	}
	return parsed.Format("02/01/2006")
}

func padTwo(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}

// recordValue finds a record field by table header, matching the header
// with punctuation and case stripped (so "EMP No" finds "empNo").
func recordValue(record store.Record, header string) string {
	normalized := normalizeKey(header)
	for key, value := range record {
		if strings.ToLower(key) == normalized {
			if strings.Contains(strings.ToLower(header), "time") && strings.Contains(value, ":") {
				return FormatTime(value)
			}
			return value
		}
	}
	return ""
}

func normalizeKey(header string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(header) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func buildTable(title string, headers []string, records []store.Record) sheetTable {
	table := sheetTable{Title: title, Headers: headers}
	for i, record := range records {
		row := make([]string, len(headers))
		for j, header := range headers {
			value := recordValue(record, header)
			if value == "" && normalizeKey(header) == "sno" {
				value = strconv.Itoa(i + 1)
			}
			row[j] = value
		}
		table.Rows = append(table.Rows, row)
	}
	return table
}

var (
	manpowerHeaders  = []string{"EMP No", "Name", "Time From", "Time To", "Signature", "Remarks"}
	transferHeaders  = []string{"EMP No", "Worker Name", "From Team", "To Team", "Signature", "Reason"}
	workDiaryHeaders = []string{"S/No", "Location", "Type of Work", "Time Start", "Time End", "Pq No", "Qty", "Unit"}
	weatherHeaders   = []string{"S/No", "Location", "Affected Work", "Time Start", "Time End", "Condition", "Remarks"}
)

func buildSheetData(sheet store.JobSheet, heading, intro, approvalLink string, includeDiary bool) sheetData {
	status := sheet.FinalStatus
	if status == "" {
		status = sheet.Status
	}
	if status == "" {
		status = store.StatusInProgress
	}
	return sheetData{
		Heading:          heading,
		Intro:            intro,
		JobSheetNo:       sheet.JobSheetNo,
		Date:             FormatDate(sheet.Date),
		Day:              sheet.Day,
		ContractNo:       sheet.ContractNo,
		TeamNo:           sheet.TeamNo,
		WorkingShift:     sheet.WorkingShift,
		SiteForeman:      sheet.SiteForeman,
		WorkingTime:      FormatTime(sheet.WorkingTimeFrom) + " to " + FormatTime(sheet.WorkingTimeTo),
		TmwpLcVehNo:      sheet.TmwpLcVehNo,
		LorryVehNo:       sheet.LorryVehNo,
		NoOfTma:          sheet.NoOfTma,
		ManpowerOnSite:   buildTable("Manpower On Site", manpowerHeaders, sheet.ManpowerOnSite),
		ManpowerTransfer: buildTable("Manpower Transfer", transferHeaders, sheet.ManpowerTransfer),

		IncludeDiary:                includeDiary,
		WorkDiaryDescription:        orNA(sheet.WorkDiaryDescription),
		WeatherConditionDescription: orNA(sheet.WeatherConditionDescription),
		WorkDiary:                   buildTable("", workDiaryHeaders, sheet.WorkDiaryEntries),
		WeatherConditions:           buildTable("", weatherHeaders, sheet.WeatherConditionEntries),

		RecordedBy:  orPending(sheet.RecordedBy),
		OMSignature: orPending(sheet.OMSignature),
		QCSignature: orPending(sheet.QCSignature),
		PMSignature: orPending(sheet.PMSignature),
		FinalStatus: status,

		ApprovalLink: approvalLink,
	}
}

func orNA(value string) string {
	if value == "" {
		return "N/A"
	}
	return value
}

func orPending(value string) string {
	if value == "" {
		return "Pending"
	}
	return value
}

func renderSheetTemplate(data sheetData) (string, error) {
	var buf bytes.Buffer
	if err := sheetTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

var sheetTemplate = template.Must(template.New("sheet").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<style>
    body { font-family: Arial, sans-serif; margin: 0; padding: 0; background-color: #f4f4f9; color: #333; }
    .wrapper { width: 100%; background-color: #f4f4f9; padding: 20px 0; }
    .main { background-color: #ffffff; margin: 0 auto; width: 100%; max-width: 800px; border-radius: 8px; border: 1px solid #ddd; border-spacing: 0; }
    .header { background-color: #34495e; padding: 20px; text-align: center; border-radius: 8px 8px 0 0; }
    .header h1 { font-size: 24px; color: #ffffff; margin: 0; }
    .content { padding: 20px; }
    .section-title { font-size: 18px; color: #34495e; border-bottom: 2px solid #eee; padding-bottom: 5px; margin: 20px 0; }
    .info-table, .data-table { width: 100%; border-collapse: collapse; margin-bottom: 20px; }
    .info-table td { padding: 10px; border: 1px solid #eee; }
    .info-table td.label { font-weight: bold; width: 35%; color: #555; background-color: #f9f9f9; }
    .data-table th, .data-table td { padding: 10px; border: 1px solid #ddd; text-align: left; font-size: 14px; }
    .data-table th { background-color: #f2f2f2; font-weight: bold; }
    .description { padding: 10px; background-color: #fdfdfd; border-left: 4px solid #eee; margin-bottom: 20px; white-space: pre-wrap; }
    .button-container { text-align: center; padding: 20px 0; }
    .button { display: inline-block; background-color: #27ae60; color: #ffffff !important; padding: 12px 25px; text-decoration: none; border-radius: 5px; font-weight: bold; }
</style>
</head>
<body><center class="wrapper">
<table class="main" width="100%">
<tr><td class="header"><h1>{{.Heading}}</h1></td></tr>
<tr><td class="content">
<p>{{.Intro}}</p>
<h3 class="section-title">Job Details</h3>
<table class="info-table">
    <tr><td class="label">Job Sheet No:</td><td>{{.JobSheetNo}}</td></tr>
    <tr><td class="label">Date:</td><td>{{.Date}}</td></tr>
    <tr><td class="label">Day:</td><td>{{.Day}}</td></tr>
    <tr><td class="label">Contract No:</td><td>{{.ContractNo}}</td></tr>
    <tr><td class="label">Team No:</td><td>{{.TeamNo}}</td></tr>
    <tr><td class="label">Working Shift:</td><td>{{.WorkingShift}}</td></tr>
    <tr><td class="label">Site Foreman:</td><td>{{.SiteForeman}}</td></tr>
    <tr><td class="label">Working Time:</td><td>{{.WorkingTime}}</td></tr>
    <tr><td class="label">TMWP/LC VEH NO:</td><td>{{.TmwpLcVehNo}}</td></tr>
    <tr><td class="label">Lorry VEH NO:</td><td>{{.LorryVehNo}}</td></tr>
    <tr><td class="label">NO. OF TMA:</td><td>{{.NoOfTma}}</td></tr>
</table>
{{template "datatable" .ManpowerOnSite}}
{{template "datatable" .ManpowerTransfer}}
{{if .IncludeDiary}}
<h3 class="section-title">Work Diary</h3>
<p class="description">{{.WorkDiaryDescription}}</p>
{{template "datatable" .WorkDiary}}
<h3 class="section-title">Weather Condition</h3>
<p class="description">{{.WeatherConditionDescription}}</p>
{{template "datatable" .WeatherConditions}}
<h3 class="section-title">Approval Status</h3>
<table class="info-table">
    <tr><td class="label">Recorded By (Foreman):</td><td>{{.RecordedBy}}</td></tr>
    <tr><td class="label">Verified By (OM):</td><td>{{.OMSignature}}</td></tr>
    <tr><td class="label">Checked By (QC):</td><td>{{.QCSignature}}</td></tr>
    <tr><td class="label">Approved By (PM):</td><td>{{.PMSignature}}</td></tr>
    <tr><td class="label">Final Status:</td><td><strong>{{.FinalStatus}}</strong></td></tr>
</table>
{{end}}
{{if .ApprovalLink}}<div class="button-container"><a href="{{.ApprovalLink}}" class="button">Click to Review / Approve</a></div>{{end}}
</td></tr>
</table>
</center></body>
</html>
{{define "datatable"}}{{if .Rows}}{{if .Title}}<h3 class="section-title">{{.Title}}</h3>{{end}}<table class="data-table" cellpadding="0" cellspacing="0"><thead><tr>{{range .Headers}}<th>{{.}}</th>{{end}}</tr></thead><tbody>{{range .Rows}}<tr>{{range .}}<td>{{.}}</td>{{end}}</tr>{{end}}</tbody></table>{{end}}{{end}}`))
