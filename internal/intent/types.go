// Package intent classifies free-text user messages into structured booking
// intents using an LLM, and extracts any slot values mentioned in the text.
package intent

import "context"

// Intent is the recognized purpose of a free-text message.
type Intent string

const (
	IntentBookAppointment       Intent = "book_appointment"
	IntentRescheduleAppointment Intent = "reschedule_appointment"
	IntentCancelAppointment     Intent = "cancel_appointment"
	IntentViewAppointments      Intent = "view_appointments"
	IntentOtherQuestion         Intent = "other_question"
	IntentUnknown               Intent = "unknown"
)

// Prefill holds slot values the classifier extracted from free text. Values
// seed the matching dialog step only and never bypass live validation.
type Prefill struct {
	Doctor         string `json:"doctor,omitempty"`
	Specialization string `json:"specialization,omitempty"`
	Clinic         string `json:"clinic,omitempty"`
	Date           string `json:"date,omitempty"` // YYYY-MM-DD
	Time           string `json:"time,omitempty"` // HH:MM
	Question       string `json:"question,omitempty"`
}

// Empty reports whether no slot value was extracted.
func (p Prefill) Empty() bool {
	return p == Prefill{}
}

// Result is the classifier's verdict for one message.
type Result struct {
	Intent    Intent  `json:"intent"`
	Data      Prefill `json:"data"`
	Reason    string  `json:"reason,omitempty"`
	RawOutput string  `json:"raw_output,omitempty"`
}

// LLMClient abstracts the language model completion call.
type LLMClient interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// Request is a single-turn completion request.
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int32
	Temperature float32
}

// Response carries the raw model output.
type Response struct {
	Text string
}
