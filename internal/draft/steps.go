package draft

import (
	"fmt"
	"strings"
)

// Step is one screen of the booking sequence.
type Step string

const (
	StepService Step = "service"
	StepAddon   Step = "addon"
	StepDentist Step = "dentist"
	StepDate    Step = "date"
	StepTime    Step = "time"
	StepConfirm Step = "confirm"
)

// Steps lists the only valid forward order.
var Steps = []Step{StepService, StepAddon, StepDentist, StepDate, StepTime, StepConfirm}

// writer maps each required field to the step that fills it, in chain order.
var writer = []struct {
	field Field
	step  Step
}{
	{FieldService, StepService},
	{FieldDentist, StepDentist},
	{FieldDate, StepDate},
	{FieldSlots, StepTime},
}

var prerequisites = map[Step][]Field{
	StepService: nil,
	StepAddon:   {FieldService},
	StepDentist: {FieldService},
	StepDate:    {FieldService, FieldDentist},
	StepTime:    {FieldService, FieldDentist, FieldDate},
	StepConfirm: {FieldService, FieldDentist, FieldDate, FieldSlots},
}

func ParseStep(s string) (Step, error) {
	step := Step(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := prerequisites[step]; !ok {
		return "", fmt.Errorf("unknown booking step %q", s)
	}
	return step, nil
}

// Guard checks that every prerequisite of step is present in d. When one is
// missing it returns the step that writes the earliest missing field.
func Guard(d Draft, step Step) (Step, bool) {
	needs := prerequisites[step]
	for _, w := range writer {
		if !contains(needs, w.field) {
			continue
		}
		if !d.Has(w.field) {
			return w.step, false
		}
	}
	return step, true
}

func contains(fields []Field, f Field) bool {
	for _, x := range fields {
		if x == f {
			return true
		}
	}
	return false
}
