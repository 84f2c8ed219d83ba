package biblioteca

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_ValidateCreateLoan(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	horizon := 60 * 24 * time.Hour

	valid := CreateLoan{
		Admin:    Identity{ID: "admin-1", Name: "Ana Souza", Email: "ana.souza@example.org"},
		Borrower: Borrower{Name: "Maria da Silva", NationalID: "529.982.247-25"},
		BookID:   "OL45883M",
		DueAt:    now.AddDate(0, 0, 14),
	}

	t.Run("valid command passes", func(t *testing.T) {
		assert.NoError(t, validateCreateLoan(valid, now, horizon))
	})

	testCases := []struct {
		name      string
		mutate    func(cmd *CreateLoan)
		wantField string
	}{
		{
			name:      "blank admin id",
			mutate:    func(cmd *CreateLoan) { cmd.Admin.ID = "   " },
			wantField: "admin.id",
		},
		{
			name:      "borrower name below minimum",
			mutate:    func(cmd *CreateLoan) { cmd.Borrower.Name = "Jo" },
			wantField: "borrower.name",
		},
		{
			name:      "borrower name above maximum",
			mutate:    func(cmd *CreateLoan) { cmd.Borrower.Name = strings.Repeat("a", 101) },
			wantField: "borrower.name",
		},
		{
			name:      "borrower name only whitespace",
			mutate:    func(cmd *CreateLoan) { cmd.Borrower.Name = "     " },
			wantField: "borrower.name",
		},
		{
			name:      "invalid national id",
			mutate:    func(cmd *CreateLoan) { cmd.Borrower.NationalID = "529.982.247-24" },
			wantField: "borrower.nationalId",
		},
		{
			name:      "missing book",
			mutate:    func(cmd *CreateLoan) { cmd.BookID = "" },
			wantField: "bookId",
		},
		{
			name:      "zero due date",
			mutate:    func(cmd *CreateLoan) { cmd.DueAt = time.Time{} },
			wantField: "dueAt",
		},
		{
			name:      "due date equal to now",
			mutate:    func(cmd *CreateLoan) { cmd.DueAt = now },
			wantField: "dueAt",
		},
		{
			name:      "due date in the past",
			mutate:    func(cmd *CreateLoan) { cmd.DueAt = now.AddDate(0, 0, -1) },
			wantField: "dueAt",
		},
		{
			name:      "due date beyond the horizon",
			mutate:    func(cmd *CreateLoan) { cmd.DueAt = now.AddDate(0, 0, 61) },
			wantField: "dueAt",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// arrange
			cmd := valid
			tc.mutate(&cmd)

			// act
			err := validateCreateLoan(cmd, now, horizon)

			// assert
			require.Error(t, err)

			var validationErr *ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, tc.wantField, validationErr.Field)
		})
	}
}

func Test_ValidateCreateLoan_CountsRunesNotBytes(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	horizon := 60 * 24 * time.Hour

	cmd := CreateLoan{
		Admin:    Identity{ID: "admin-1"},
		Borrower: Borrower{Name: "Zoé", NationalID: "529.982.247-25"},
		BookID:   "OL45883M",
		DueAt:    now.AddDate(0, 0, 14),
	}

	// three runes but four bytes; must pass the minimum-length check
	assert.NoError(t, validateCreateLoan(cmd, now, horizon))
}

func Test_ValidateCreateLoan_ExactBoundaryAtHorizon(t *testing.T) {
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	horizon := 60 * 24 * time.Hour

	cmd := CreateLoan{
		Admin:    Identity{ID: "admin-1"},
		Borrower: Borrower{Name: "Maria da Silva", NationalID: "529.982.247-25"},
		BookID:   "OL45883M",
		DueAt:    now.Add(horizon),
	}

	// exactly at the horizon is still allowed
	assert.NoError(t, validateCreateLoan(cmd, now, horizon))
}
