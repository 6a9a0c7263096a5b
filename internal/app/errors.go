package app

import "fmt"

type DomainError struct {
	Status  int
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
	}
}

func errDuplicateKey(jobSheetNo string) *DomainError {
	return domainError(409, "DUPLICATE_KEY", fmt.Sprintf("Job Sheet No %s already exists.", jobSheetNo))
}

func errNotFound() *DomainError {
	return domainError(404, "NOT_FOUND", "Job sheet not found.")
}

func errAlreadyProcessed(currentStatus string) *DomainError {
	return domainError(409, "ALREADY_PROCESSED", fmt.Sprintf("This job sheet has already been handled; its current status is '%s'.", currentStatus))
}

func errMissingRouting(teamNo, role string) *DomainError {
	return domainError(422, "MISSING_ROUTING", fmt.Sprintf("No %s email configured for team %s.", role, teamNo))
}
