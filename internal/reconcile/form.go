// Package reconcile keeps an open editable job sheet view synchronized
// with server state on a fixed interval without destroying in-progress
// user input. The editing surface is modeled as first-class state: the
// reconciler merges fetched snapshots around an explicit focus owner
// instead of inspecting a rendered page.
package reconcile

import (
	"strings"

	"github.com/SabarathinamR/FinalJob/internal/store"
)

// Scalar field and table names of the editing surface. They match the
// JSON keys of the snapshot the form is built from.
const (
	FieldDate            = "date"
	FieldDay             = "day"
	FieldJobSheetNo      = "jobSheetNo"
	FieldContractNo      = "contractNo"
	FieldTeamNo          = "teamNo"
	FieldWorkingShift    = "workingShift"
	FieldSiteForeman     = "siteForeman"
	FieldWorkingTimeFrom = "workingTimeFrom"
	FieldWorkingTimeTo   = "workingTimeTo"
	FieldTmwpLcVehNo     = "tmwpLcVehNo"
	FieldLorryVehNo      = "lorryVehNo"
	FieldNoOfTma         = "noOfTma"
	FieldWorkDiaryDesc   = "workDiaryDescription"
	FieldWeatherDesc     = "weatherConditionDescription"

	TableManpowerOnSite    = "manpowerOnSite"
	TableManpowerTransfer  = "manpowerTransfer"
	TableWorkDiary         = "workDiaryEntries"
	TableWeatherConditions = "weatherConditionEntries"
)

// Focus records which single input currently owns the keyboard. At most
// one of Field and Table is set: Field for a scalar input, Table when
// any row input inside that table is focused.
type Focus struct {
	Field string
	Table string
	Caret int
}

// Form is the editable surface: scalar display values, record-list
// tables, the focus owner, and scroll position.
type Form struct {
	fields   map[string]string
	tables   map[string][]store.Record
	focus    Focus
	scroll   int
	disabled bool
	notice   string
}

// NewForm builds the editing surface from a snapshot.
func NewForm(sheet store.JobSheet) *Form {
	form := &Form{
		fields: map[string]string{},
		tables: map[string][]store.Record{},
	}
	form.applyScalars(sheet, nil)
	form.tables[TableManpowerOnSite] = cloneRecords(sheet.ManpowerOnSite)
	form.tables[TableManpowerTransfer] = cloneRecords(sheet.ManpowerTransfer)
	form.tables[TableWorkDiary] = cloneRecords(sheet.WorkDiaryEntries)
	form.tables[TableWeatherConditions] = cloneRecords(sheet.WeatherConditionEntries)
	return form
}

// Field returns the displayed value of a scalar input.
func (f *Form) Field(name string) string {
	return f.fields[name]
}

// SetField records a user keystroke into a scalar input.
func (f *Form) SetField(name, value string) {
	f.fields[name] = value
}

// Table returns the rows of a record-list table.
func (f *Form) Table(name string) []store.Record {
	return f.tables[name]
}

// SetTable replaces a table's rows, as a user row edit does.
func (f *Form) SetTable(name string, rows []store.Record) {
	f.tables[name] = rows
}

// FocusField makes a scalar input the focus owner.
func (f *Form) FocusField(name string, caret int) {
	f.focus = Focus{Field: name, Caret: caret}
}

// FocusTable marks a row input inside the named table as focused.
func (f *Form) FocusTable(name string) {
	f.focus = Focus{Table: name}
}

// Blur releases the focus owner.
func (f *Form) Blur() {
	f.focus = Focus{}
}

func (f *Form) FocusState() Focus { return f.focus }

func (f *Form) SetScroll(offset int) { f.scroll = offset }
func (f *Form) Scroll() int          { return f.scroll }

// Disabled reports whether the surface has been terminally disabled.
func (f *Form) Disabled() bool { return f.disabled }

// Notice is the terminal message shown when the form is disabled or
// the session has failed.
func (f *Form) Notice() string { return f.notice }

func (f *Form) disable(notice string) {
	f.disabled = true
	f.notice = notice
	f.focus = Focus{}
}

func (f *Form) enable() {
	f.disabled = false
	f.notice = ""
}

// applyScalars overwrites every scalar field from the snapshot except
// those named in skip. Date values are normalized to the calendar-date
// form the date input expects.
func (f *Form) applyScalars(sheet store.JobSheet, skip map[string]bool) {
	set := func(name, value string) {
		if skip[name] {
			return
		}
		f.fields[name] = value
	}
	set(FieldDate, normalizeDate(sheet.Date))
	set(FieldDay, sheet.Day)
	set(FieldJobSheetNo, sheet.JobSheetNo)
	set(FieldContractNo, sheet.ContractNo)
	set(FieldTeamNo, sheet.TeamNo)
	set(FieldWorkingShift, sheet.WorkingShift)
	set(FieldSiteForeman, sheet.SiteForeman)
	set(FieldWorkingTimeFrom, sheet.WorkingTimeFrom)
	set(FieldWorkingTimeTo, sheet.WorkingTimeTo)
	set(FieldTmwpLcVehNo, sheet.TmwpLcVehNo)
	set(FieldLorryVehNo, sheet.LorryVehNo)
	set(FieldNoOfTma, sheet.NoOfTma)
	set(FieldWorkDiaryDesc, sheet.WorkDiaryDescription)
	set(FieldWeatherDesc, sheet.WeatherConditionDescription)
}

// FinalizePayload assembles the PM submission from the current surface
// state. Signature fields are deliberately not part of the payload.
func (f *Form) FinalizePayload() store.FinalizeFields {
	return store.FinalizeFields{
		Date:                        f.fields[FieldDate],
		Day:                         f.fields[FieldDay],
		JobSheetNo:                  f.fields[FieldJobSheetNo],
		ContractNo:                  f.fields[FieldContractNo],
		TeamNo:                      f.fields[FieldTeamNo],
		WorkingShift:                f.fields[FieldWorkingShift],
		SiteForeman:                 f.fields[FieldSiteForeman],
		WorkingTimeFrom:             f.fields[FieldWorkingTimeFrom],
		WorkingTimeTo:               f.fields[FieldWorkingTimeTo],
		TmwpLcVehNo:                 f.fields[FieldTmwpLcVehNo],
		LorryVehNo:                  f.fields[FieldLorryVehNo],
		NoOfTma:                     f.fields[FieldNoOfTma],
		WorkDiaryDescription:        f.fields[FieldWorkDiaryDesc],
		WeatherConditionDescription: f.fields[FieldWeatherDesc],
		ManpowerOnSite:              cloneRecords(f.tables[TableManpowerOnSite]),
		ManpowerTransfer:            cloneRecords(f.tables[TableManpowerTransfer]),
		WorkDiaryEntries:            cloneRecords(f.tables[TableWorkDiary]),
		WeatherConditionEntries:     cloneRecords(f.tables[TableWeatherConditions]),
	}
}

// normalizeDate reduces timestamp-shaped values to their calendar date.
func normalizeDate(value string) string {
	if idx := strings.IndexByte(value, 'T'); idx > 0 {
		return value[:idx]
	}
	return value
}

func cloneRecords(records []store.Record) []store.Record {
	cloned := make([]store.Record, 0, len(records))
	for _, record := range records {
		row := make(store.Record, len(record))
		for key, value := range record {
			row[key] = value
		}
		cloned = append(cloned, row)
	}
	return cloned
}
