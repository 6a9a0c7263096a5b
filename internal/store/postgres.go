package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const jobSheetColumns = `
	id, jobsheetno, date, day, contractno, teamno, workingshift,
	siteforeman, workingtimefrom, workingtimeto, tmwplcvehno, lorryvehno,
	nooftma, manpoweronsite, manpowertransfer, workdiaryentries,
	weatherconditionentries, COALESCE(workdiarydescription, ''),
	COALESCE(weatherconditiondescription, ''), COALESCE(recordedby, ''),
	COALESCE(omsignature, ''), COALESCE(qcsignature, ''),
	COALESCE(pmsignature, ''), status, COALESCE(finalstatus, ''),
	created_at, updated_at`

// CreateJobSheet inserts a new snapshot in its initial state and
// returns the assigned identity. A jobSheetNo collision fails with
// ErrDuplicateKey and inserts nothing.
func (s *PostgresStore) CreateJobSheet(ctx context.Context, sheet JobSheet) (int64, error) {
	const insert = `
		INSERT INTO jobsheets (
			jobsheetno, date, day, contractno, teamno, workingshift,
			siteforeman, workingtimefrom, workingtimeto, tmwplcvehno,
			lorryvehno, nooftma, manpoweronsite, manpowertransfer,
			workdiaryentries, weatherconditionentries, status
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
		RETURNING id`

	var id int64
	err := s.db.QueryRowContext(ctx, insert,
		sheet.JobSheetNo, sheet.Date, sheet.Day, sheet.ContractNo,
		sheet.TeamNo, sheet.WorkingShift, sheet.SiteForeman,
		sheet.WorkingTimeFrom, sheet.WorkingTimeTo, sheet.TmwpLcVehNo,
		sheet.LorryVehNo, sheet.NoOfTma,
		encodeRecordList(sheet.ManpowerOnSite),
		encodeRecordList(sheet.ManpowerTransfer),
		encodeRecordList(sheet.WorkDiaryEntries),
		encodeRecordList(sheet.WeatherConditionEntries),
		StatusInProgress,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, ErrDuplicateKey
		}
		return 0, fmt.Errorf("insert job sheet: %w", err)
	}
	return id, nil
}

// GetJobSheet reads one snapshot with its record lists decoded.
func (s *PostgresStore) GetJobSheet(ctx context.Context, id int64) (JobSheet, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobSheetColumns+` FROM jobsheets WHERE id=$1`, id)
	return scanJobSheet(row)
}

// CompleteJobSheet merges the foreman's diary fields and advances the
// status to Pending OM Approval. The write is conditional on the sheet
// still being In Progress; a stale call applies nothing and returns
// false.
func (s *PostgresStore) CompleteJobSheet(ctx context.Context, id int64, fields CompletionFields) (bool, error) {
	const update = `
		UPDATE jobsheets SET
			workdiarydescription=$1, weatherconditiondescription=$2,
			recordedby=$3, workdiaryentries=$4, weatherconditionentries=$5,
			status=$6, updated_at=NOW()
		WHERE id=$7 AND status=$8`

	result, err := s.db.ExecContext(ctx, update,
		fields.WorkDiaryDescription, fields.WeatherConditionDescription,
		fields.RecordedBy,
		encodeRecordList(fields.WorkDiaryEntries),
		encodeRecordList(fields.WeatherConditionEntries),
		StatusPendingOMApproval, id, StatusInProgress,
	)
	if err != nil {
		return false, fmt.Errorf("complete job sheet: %w", err)
	}
	return affected(result)
}

// AdvanceApproval writes one approval signature and moves the status
// forward, conditional on the sheet still sitting at fromStatus. The
// single conditional UPDATE makes racing or repeated clicks lose
// cleanly: they match zero rows.
func (s *PostgresStore) AdvanceApproval(ctx context.Context, id int64, signatureColumn, signature, fromStatus, toStatus string) (bool, error) {
	var update string
	switch signatureColumn {
	case "omsignature":
		update = `UPDATE jobsheets SET status=$1, omsignature=$2, updated_at=NOW() WHERE id=$3 AND status=$4`
	case "qcsignature":
		update = `UPDATE jobsheets SET status=$1, qcsignature=$2, updated_at=NOW() WHERE id=$3 AND status=$4`
	default:
		return false, fmt.Errorf("unknown signature column %q", signatureColumn)
	}

	result, err := s.db.ExecContext(ctx, update, toStatus, signature, id, fromStatus)
	if err != nil {
		return false, fmt.Errorf("advance approval: %w", err)
	}
	return affected(result)
}

// FinalizeJobSheet merges the PM's edits, writes the PM signature and
// marks the sheet Completed (status and its finalstatus mirror
// together). The signature and recordedby columns from earlier stages
// are not part of the statement, so a stale client payload can never
// erase them. Conditional on Pending PM Approval.
func (s *PostgresStore) FinalizeJobSheet(ctx context.Context, id int64, fields FinalizeFields, pmSignature string) (bool, error) {
	const update = `
		UPDATE jobsheets SET
			date=$1, day=$2, jobsheetno=$3, contractno=$4, teamno=$5,
			workingshift=$6, siteforeman=$7, workingtimefrom=$8,
			workingtimeto=$9, tmwplcvehno=$10, lorryvehno=$11, nooftma=$12,
			manpoweronsite=$13, manpowertransfer=$14, workdiaryentries=$15,
			weatherconditionentries=$16, workdiarydescription=$17,
			weatherconditiondescription=$18, pmsignature=$19,
			status=$20, finalstatus=$21, updated_at=NOW()
		WHERE id=$22 AND status=$23`

	result, err := s.db.ExecContext(ctx, update,
		fields.Date, fields.Day, fields.JobSheetNo, fields.ContractNo,
		fields.TeamNo, fields.WorkingShift, fields.SiteForeman,
		fields.WorkingTimeFrom, fields.WorkingTimeTo, fields.TmwpLcVehNo,
		fields.LorryVehNo, fields.NoOfTma,
		encodeRecordList(fields.ManpowerOnSite),
		encodeRecordList(fields.ManpowerTransfer),
		encodeRecordList(fields.WorkDiaryEntries),
		encodeRecordList(fields.WeatherConditionEntries),
		fields.WorkDiaryDescription, fields.WeatherConditionDescription,
		pmSignature, StatusCompleted, StatusCompleted,
		id, StatusPendingPMApproval,
	)
	if err != nil {
		return false, fmt.Errorf("finalize job sheet: %w", err)
	}
	return affected(result)
}

// GetTeamAssignment looks up the approver mailboxes for a team.
func (s *PostgresStore) GetTeamAssignment(ctx context.Context, teamNo string) (TeamAssignment, error) {
	const query = `
		SELECT teamno, COALESCE(om_email, ''), COALESCE(qc_email, ''),
			COALESCE(pm_email, ''), COALESCE(hr_email, '')
		FROM team_assignments WHERE teamno=$1`

	var ta TeamAssignment
	err := s.db.QueryRowContext(ctx, query, teamNo).Scan(
		&ta.TeamNo, &ta.OMEmail, &ta.QCEmail, &ta.PMEmail, &ta.HREmail)
	if errors.Is(err, sql.ErrNoRows) {
		return TeamAssignment{}, ErrNotFound
	}
	if err != nil {
		return TeamAssignment{}, fmt.Errorf("lookup team assignment: %w", err)
	}
	return ta, nil
}

// ListEmployeesByTeam returns the roster used to fill the foreman form.
func (s *PostgresStore) ListEmployeesByTeam(ctx context.Context, teamNo string) ([]Employee, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT empno, name, COALESCE(role, ''), teamno FROM employees WHERE teamno=$1 ORDER BY empno`, teamNo)
	if err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}
	defer rows.Close()

	employees := []Employee{}
	for rows.Next() {
		var e Employee
		if err := rows.Scan(&e.EmpNo, &e.Name, &e.Role, &e.TeamNo); err != nil {
			return nil, fmt.Errorf("scan employee: %w", err)
		}
		employees = append(employees, e)
	}
	return employees, rows.Err()
}

func affected(result sql.Result) (bool, error) {
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJobSheet(row rowScanner) (JobSheet, error) {
	var (
		sheet                              JobSheet
		manpower, transfer, diary, weather string
	)
	err := row.Scan(
		&sheet.ID, &sheet.JobSheetNo, &sheet.Date, &sheet.Day,
		&sheet.ContractNo, &sheet.TeamNo, &sheet.WorkingShift,
		&sheet.SiteForeman, &sheet.WorkingTimeFrom, &sheet.WorkingTimeTo,
		&sheet.TmwpLcVehNo, &sheet.LorryVehNo, &sheet.NoOfTma,
		&manpower, &transfer, &diary, &weather,
		&sheet.WorkDiaryDescription, &sheet.WeatherConditionDescription,
		&sheet.RecordedBy, &sheet.OMSignature, &sheet.QCSignature,
		&sheet.PMSignature, &sheet.Status, &sheet.FinalStatus,
		&sheet.CreatedAt, &sheet.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return JobSheet{}, ErrNotFound
	}
	if err != nil {
		return JobSheet{}, fmt.Errorf("scan job sheet: %w", err)
	}
	sheet.ManpowerOnSite = decodeRecordList(manpower)
	sheet.ManpowerTransfer = decodeRecordList(transfer)
	sheet.WorkDiaryEntries = decodeRecordList(diary)
	sheet.WeatherConditionEntries = decodeRecordList(weather)
	return sheet, nil
}
