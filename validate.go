package biblioteca

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	borrowerNameMinLength = 3
	borrowerNameMaxLength = 100
)

// validateCreateLoan checks the command purely, before any storage access.
// The returned error is always a *ValidationError naming the offending field.
func validateCreateLoan(cmd CreateLoan, now time.Time, horizon time.Duration) error {
	if strings.TrimSpace(cmd.Admin.ID) == "" {
		return NewValidationError("admin.id", "issuing admin identity is required")
	}

	name := strings.TrimSpace(cmd.Borrower.Name)
	nameLength := utf8.RuneCountInString(name)

	if nameLength < borrowerNameMinLength || nameLength > borrowerNameMaxLength {
		return NewValidationError("borrower.name", fmt.Sprintf(
			"must be between %d and %d characters", borrowerNameMinLength, borrowerNameMaxLength))
	}

	if !cmd.Borrower.NationalID.Valid() {
		return NewValidationError("borrower.nationalId", "not a valid national id number")
	}

	if strings.TrimSpace(cmd.BookID.String()) == "" {
		return NewValidationError("bookId", "a book must be selected")
	}

	if cmd.DueAt.IsZero() {
		return NewValidationError("dueAt", "a due date is required")
	}

	if !cmd.DueAt.After(now) {
		return NewValidationError("dueAt", "due date must be in the future")
	}

	if cmd.DueAt.After(now.Add(horizon)) {
		return NewValidationError("dueAt", fmt.Sprintf(
			"due date must not be more than %d days ahead", int(horizon.Hours()/24)))
	}

	return nil
}
