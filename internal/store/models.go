package store

import (
	"errors"
	"time"
)

// Job sheet workflow statuses, in the only order they may advance.
const (
	StatusInProgress        = "In Progress"
	StatusPendingOMApproval = "Pending OM Approval"
	StatusPendingQCApproval = "Pending QC Approval"
	StatusPendingPMApproval = "Pending PM Approval"
	StatusCompleted         = "Completed"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrDuplicateKey = errors.New("duplicate key")
)

// Record is one flat row of a job sheet record list (manpower, work
// diary, weather). Lists of these are persisted as JSON text.
type Record map[string]string

// JobSheet is the full persisted snapshot for one job sheet.
type JobSheet struct {
	ID                          int64     `json:"id"`
	JobSheetNo                  string    `json:"jobSheetNo"`
	Date                        string    `json:"date"`
	Day                         string    `json:"day"`
	ContractNo                  string    `json:"contractNo"`
	TeamNo                      string    `json:"teamNo"`
	WorkingShift                string    `json:"workingShift"`
	SiteForeman                 string    `json:"siteForeman"`
	WorkingTimeFrom             string    `json:"workingTimeFrom"`
	WorkingTimeTo               string    `json:"workingTimeTo"`
	TmwpLcVehNo                 string    `json:"tmwpLcVehNo"`
	LorryVehNo                  string    `json:"lorryVehNo"`
	NoOfTma                     string    `json:"noOfTma"`
	ManpowerOnSite              []Record  `json:"manpowerOnSite"`
	ManpowerTransfer            []Record  `json:"manpowerTransfer"`
	WorkDiaryEntries            []Record  `json:"workDiaryEntries"`
	WeatherConditionEntries     []Record  `json:"weatherConditionEntries"`
	WorkDiaryDescription        string    `json:"workDiaryDescription"`
	WeatherConditionDescription string    `json:"weatherConditionDescription"`
	RecordedBy                  string    `json:"recordedBy"`
	OMSignature                 string    `json:"omSignature"`
	QCSignature                 string    `json:"qcSignature"`
	PMSignature                 string    `json:"pmSignature"`
	Status                      string    `json:"status"`
	// FinalStatus mirrors Status once the sheet completes. It exists
	// for reporting and is always written together with Status.
	FinalStatus string    `json:"finalStatus"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// CompletionFields are the columns the foreman's final submission owns.
type CompletionFields struct {
	WorkDiaryDescription        string   `json:"workDiaryDescription"`
	WeatherConditionDescription string   `json:"weatherConditionDescription"`
	RecordedBy                  string   `json:"recordedBy"`
	WorkDiaryEntries            []Record `json:"workDiaryEntries"`
	WeatherConditionEntries     []Record `json:"weatherConditionEntries"`
}

// FinalizeFields are the columns the PM edit view may rewrite. The
// three signature columns and recordedBy are deliberately absent:
// they are never sourced from the finalize payload.
type FinalizeFields struct {
	Date                        string   `json:"date"`
	Day                         string   `json:"day"`
	JobSheetNo                  string   `json:"jobSheetNo"`
	ContractNo                  string   `json:"contractNo"`
	TeamNo                      string   `json:"teamNo"`
	WorkingShift                string   `json:"workingShift"`
	SiteForeman                 string   `json:"siteForeman"`
	WorkingTimeFrom             string   `json:"workingTimeFrom"`
	WorkingTimeTo               string   `json:"workingTimeTo"`
	TmwpLcVehNo                 string   `json:"tmwpLcVehNo"`
	LorryVehNo                  string   `json:"lorryVehNo"`
	NoOfTma                     string   `json:"noOfTma"`
	ManpowerOnSite              []Record `json:"manpowerOnSite"`
	ManpowerTransfer            []Record `json:"manpowerTransfer"`
	WorkDiaryEntries            []Record `json:"workDiaryEntries"`
	WeatherConditionEntries     []Record `json:"weatherConditionEntries"`
	WorkDiaryDescription        string   `json:"workDiaryDescription"`
	WeatherConditionDescription string   `json:"weatherConditionDescription"`
}

// TeamAssignment routes a team's sheets to its approver mailboxes.
type TeamAssignment struct {
	TeamNo  string `json:"teamNo"`
	OMEmail string `json:"omEmail"`
	QCEmail string `json:"qcEmail"`
	PMEmail string `json:"pmEmail"`
	HREmail string `json:"hrEmail"`
}

// Employee is one row of a team roster, used to fill the foreman form.
type Employee struct {
	EmpNo  string `json:"empNo"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	TeamNo string `json:"teamNo"`
}
