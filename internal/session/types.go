// Package session holds per-user conversation state: the current flow and
// step, the appointment draft under construction, and the candidate list most
// recently presented to the user.
package session

import (
	"github.com/andreysiniy/tg-med-bot/internal/backend"
	"github.com/andreysiniy/tg-med-bot/internal/intent"
)

// Flow identifies which conversation a user is in.
type Flow string

const (
	FlowNone    Flow = ""
	FlowBooking Flow = "booking"
	FlowEdit    Flow = "edit"
	FlowDelete  Flow = "delete"
)

// Step is one state of a flow's state machine.
type Step int

const (
	StepNone Step = iota

	// Booking flow.
	StepChooseClinic
	StepChooseSpecialization
	StepChooseDoctor
	StepChooseDate
	StepChooseTime
	StepConfirm

	// Manage flows (edit and delete share the pick step).
	StepPickAppointment
	StepEditDate
	StepEditTime
	StepEditConfirm
	StepDeleteConfirm
)

var stepNames = map[Step]string{
	StepNone:                 "none",
	StepChooseClinic:         "choose_clinic",
	StepChooseSpecialization: "choose_specialization",
	StepChooseDoctor:         "choose_doctor",
	StepChooseDate:           "choose_date",
	StepChooseTime:           "choose_time",
	StepConfirm:              "confirm",
	StepPickAppointment:      "pick_appointment",
	StepEditDate:             "edit_date",
	StepEditTime:             "edit_time",
	StepEditConfirm:          "edit_confirm",
	StepDeleteConfirm:        "delete_confirm",
}

func (s Step) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return "unknown"
}

// Slot names one piece of appointment data in the booking draft. Slots form a
// dependency chain: each one is only meaningful while every earlier slot is
// still set.
type Slot int

const (
	SlotClinic Slot = iota
	SlotSpecialization
	SlotDoctor
	SlotDate
	SlotTime
)

// Candidate is one selectable option presented to the user. The label is what
// the user sees and replies with; the ID is what the choice resolves to.
type Candidate struct {
	ID    string
	Label string
}

// Draft is the appointment under construction.
type Draft struct {
	ClinicID           int
	ClinicName         string
	SpecializationID   int
	SpecializationName string
	DoctorID           int
	DoctorName         string
	Date               string // YYYY-MM-DD
	Time               string // HH:MM
	DatetimeISO        string // combined, 2006-01-02T15:04:05
}

// Clear removes the given slot and, cascading down the dependency chain,
// every slot that depends on it.
func (d *Draft) Clear(from Slot) {
	switch from {
	case SlotClinic:
		d.ClinicID = 0
		d.ClinicName = ""
		fallthrough
	case SlotSpecialization:
		d.SpecializationID = 0
		d.SpecializationName = ""
		fallthrough
	case SlotDoctor:
		d.DoctorID = 0
		d.DoctorName = ""
		fallthrough
	case SlotDate:
		d.Date = ""
		fallthrough
	case SlotTime:
		d.Time = ""
		d.DatetimeISO = ""
	}
}

// AppointmentItem is one existing appointment enriched with the doctor and
// clinic details used for display in the manage flows.
type AppointmentItem struct {
	Appointment backend.Appointment
	Doctor      backend.DoctorCard
	Clinic      backend.ClinicCard
}

// Session is the complete conversation state of one user. It lives only in
// memory and is removed outright on cancellation, completion or restart.
type Session struct {
	UserID string
	ChatID string
	Flow   Flow
	Step   Step

	// Booking flow.
	Draft   Draft
	Prefill intent.Prefill

	// Candidates is valid only for resolving the immediately next reply; it
	// is replaced on every prompt and cleared when a choice is accepted.
	Candidates []Candidate

	// Manage flows: the appointment list captured when it was presented.
	// Selection resolves by index into this list, never by re-fetching.
	Items         []AppointmentItem
	SelectedIndex int
	NewDate       string
	NewTime       string
}

// FindCandidate resolves a reply against the pending candidate list by exact
// label match.
func (s *Session) FindCandidate(label string) (Candidate, bool) {
	for _, c := range s.Candidates {
		if c.Label == label {
			return c, true
		}
	}
	return Candidate{}, false
}

// CandidateLabels returns the pending option labels in presentation order.
func (s *Session) CandidateLabels() []string {
	labels := make([]string, len(s.Candidates))
	for i, c := range s.Candidates {
		labels[i] = c.Label
	}
	return labels
}

// Selected returns the appointment picked in a manage flow.
func (s *Session) Selected() (AppointmentItem, bool) {
	if s.SelectedIndex < 0 || s.SelectedIndex >= len(s.Items) {
		return AppointmentItem{}, false
	}
	return s.Items[s.SelectedIndex], true
}
