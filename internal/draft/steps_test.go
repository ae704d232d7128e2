package draft

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGuard(t *testing.T) {
	full := Draft{ServiceID: "svc", DentistID: "den", Date: "2026-11-02", SlotIDs: []string{"s1"}}

	tests := []struct {
		name   string
		draft  Draft
		step   Step
		want   Step
		wantOK bool
	}{
		{"service step has no prerequisites", Draft{}, StepService, StepService, true},
		{"addon needs a service", Draft{}, StepAddon, StepService, false},
		{"dentist reachable without addon", Draft{ServiceID: "svc"}, StepDentist, StepDentist, true},
		{"date without dentist goes to dentist", Draft{ServiceID: "svc"}, StepDate, StepDentist, false},
		{"time without date goes to date", Draft{ServiceID: "svc", DentistID: "den"}, StepTime, StepDate, false},
		{"confirm with service and dentist only goes to date", Draft{ServiceID: "svc", DentistID: "den"}, StepConfirm, StepDate, false},
		{"confirm without slots goes to time", Draft{ServiceID: "svc", DentistID: "den", Date: "2026-11-02"}, StepConfirm, StepTime, false},
		{"confirm on empty draft goes to service", Draft{}, StepConfirm, StepService, false},
		{"earliest gap wins", Draft{DentistID: "den", Date: "2026-11-02", SlotIDs: []string{"s1"}}, StepConfirm, StepService, false},
		{"complete draft confirms", full, StepConfirm, StepConfirm, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Guard(tt.draft, tt.step)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
}

// Every subset of the required fields either confirms (all present) or is
// sent back to a step that is itself reachable from the current draft.
func TestGuard_NeverConfirmsIncompleteDraft(t *testing.T) {
	for mask := 0; mask < 16; mask++ {
		var d Draft
		if mask&1 != 0 {
			d.ServiceID = "svc"
		}
		if mask&2 != 0 {
			d.DentistID = "den"
		}
		if mask&4 != 0 {
			d.Date = "2026-11-02"
		}
		if mask&8 != 0 {
			d.SlotIDs = []string{"s1"}
		}

		step, ok := Guard(d, StepConfirm)
		if mask == 15 {
			assert.True(t, ok)
			continue
		}
		assert.False(t, ok, "mask %b", mask)
		_, reachable := Guard(d, step)
		assert.True(t, reachable, "redirect target %s must itself be enterable (mask %b)", step, mask)
	}
}

func TestParseStep(t *testing.T) {
	step, err := ParseStep(" Confirm ")
	assert.NoError(t, err)
	assert.Equal(t, StepConfirm, step)

	_, err = ParseStep("checkout")
	assert.Error(t, err)
}
