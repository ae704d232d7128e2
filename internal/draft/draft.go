package draft

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar date format the booking screens exchange.
const DateLayout = "2006-01-02"

var (
	ErrUnknownField = errors.New("unknown draft field")
	ErrInvalidValue = errors.New("invalid draft value")
)

// Field names one independently written part of a booking draft.
type Field string

const (
	FieldService Field = "service"
	FieldAddon   Field = "addon"
	FieldDentist Field = "dentist"
	FieldDate    Field = "date"
	FieldSlots   Field = "slots"
)

func ParseField(s string) (Field, error) {
	switch f := Field(strings.ToLower(strings.TrimSpace(s))); f {
	case FieldService, FieldAddon, FieldDentist, FieldDate, FieldSlots:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownField, s)
}

// Draft is the accumulating set of booking selections. Nothing forces the
// fields to be present together; Guard decides what a step may rely on.
type Draft struct {
	ServiceID string    `json:"service_id,omitempty"`
	AddonID   string    `json:"addon_id,omitempty"`
	DentistID string    `json:"dentist_id,omitempty"`
	Date      string    `json:"date,omitempty"`
	SlotIDs   []string  `json:"slot_ids,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Has reports whether a field holds a value.
func (d Draft) Has(f Field) bool {
	switch f {
	case FieldService:
		return d.ServiceID != ""
	case FieldAddon:
		return d.AddonID != ""
	case FieldDentist:
		return d.DentistID != ""
	case FieldDate:
		return d.Date != ""
	case FieldSlots:
		return len(d.SlotIDs) > 0
	}
	return false
}

// IsComplete is true when the draft can be submitted for a reservation.
// The add-on is optional.
func (d Draft) IsComplete() bool {
	_, ok := Guard(d, StepConfirm)
	return ok
}

func (d Draft) IsEmpty() bool {
	return !d.Has(FieldService) && !d.Has(FieldAddon) && !d.Has(FieldDentist) &&
		!d.Has(FieldDate) && !d.Has(FieldSlots)
}

// Apply decodes raw into the field and returns the updated draft. A null or
// empty add-on clears it; every other field must carry a value.
func (d Draft) Apply(f Field, raw json.RawMessage) (Draft, error) {
	switch f {
	case FieldService, FieldDentist, FieldAddon:
		id, err := decodeID(raw)
		if err != nil {
			return d, fmt.Errorf("%w: %s: %v", ErrInvalidValue, f, err)
		}
		if id == "" && f != FieldAddon {
			return d, fmt.Errorf("%w: %s must not be empty", ErrInvalidValue, f)
		}
		switch f {
		case FieldService:
			d.ServiceID = id
		case FieldDentist:
			d.DentistID = id
		case FieldAddon:
			d.AddonID = id
		}
	case FieldDate:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return d, fmt.Errorf("%w: date must be a string", ErrInvalidValue)
		}
		s = strings.TrimSpace(s)
		if _, err := time.Parse(DateLayout, s); err != nil {
			return d, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidValue)
		}
		d.Date = s
	case FieldSlots:
		slots, err := decodeSlots(raw)
		if err != nil {
			return d, fmt.Errorf("%w: slots: %v", ErrInvalidValue, err)
		}
		d.SlotIDs = slots
	default:
		return d, fmt.Errorf("%w: %q", ErrUnknownField, f)
	}
	return d, nil
}

// decodeID accepts a JSON string or number; null decodes to "".
func decodeID(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s), nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), nil
	}
	return "", errors.New("expected a string or number id")
}

func decodeSlots(raw json.RawMessage) ([]string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, err
		}
		out := make([]string, 0, len(items))
		for _, item := range items {
			id, err := decodeID(item)
			if err != nil {
				return nil, err
			}
			if id == "" {
				return nil, errors.New("slot id must not be empty")
			}
			out = append(out, id)
		}
		if len(out) == 0 {
			return nil, errors.New("at least one slot is required")
		}
		return out, nil
	}

	id, err := decodeID(raw)
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, errors.New("at least one slot is required")
	}
	return []string{id}, nil
}
