package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/andreysiniy/tg-med-bot/pkg/logging"
)

const classifierSystemPrompt = `You are the assistant of a clinic reception desk.
Given a user's message, determine their intent: booking a doctor's appointment,
rescheduling an existing appointment, cancelling an existing appointment,
viewing their appointments, or asking some other question.

Respond with JSON only, in this exact shape:
{
  "intent": "<intent>",
  "data": {
    "doctor": "doctor name",            // only if present in the message
    "specialization": "speciality",     // only if present
    "clinic": "clinic name",            // only if present
    "date": "YYYY-MM-DD",               // only if present, exactly this format
    "time": "HH:MM",                    // only if present, exactly this format
    "question": "the user's question"   // only if present
  }
}
<intent> must be one of: "book_appointment", "reschedule_appointment",
"cancel_appointment", "view_appointments", "other_question".

Catch obvious mistakes: the current date and time are sent along with the
message, and a request for a date that has already passed is invalid.
If you cannot determine the intent, respond with:
{"intent": "unknown", "reason": "why the request was not understood"}`

const classifierMaxTokens = 500

// Classifier turns free text into a structured intent via an LLM. Any model
// failure or malformed output is downgraded to IntentUnknown, never an error.
type Classifier struct {
	client  LLMClient
	logger  *logging.Logger
	now     func() time.Time
	timeout time.Duration
}

// ClassifierOption configures a Classifier.
type ClassifierOption func(*Classifier)

// WithClock overrides the time source. Mainly for tests.
func WithClock(now func() time.Time) ClassifierOption {
	return func(c *Classifier) {
		if now != nil {
			c.now = now
		}
	}
}

// WithTimeout bounds each model call. Zero means the caller's context rules.
func WithTimeout(d time.Duration) ClassifierOption {
	return func(c *Classifier) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewClassifier wires a classifier around the supplied LLM client.
func NewClassifier(client LLMClient, logger *logging.Logger, opts ...ClassifierOption) *Classifier {
	if client == nil {
		panic("intent: llm client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	c := &Classifier{
		client: client,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify determines the intent of one user message. The current date and
// time are passed to the model so elapsed dates can be caught.
func (c *Classifier) Classify(ctx context.Context, text string) Result {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	now := c.now()
	prompt := fmt.Sprintf("User message: (%s), today is %s, the time is %s",
		text, now.Format("2006-01-02"), now.Format("15:04"))

	resp, err := c.client.Complete(ctx, Request{
		System:    classifierSystemPrompt,
		Prompt:    prompt,
		MaxTokens: classifierMaxTokens,
	})
	if err != nil {
		c.logger.Error("intent classification failed", "error", err)
		return Result{Intent: IntentUnknown, Reason: "classifier unavailable"}
	}

	result, err := parseResult(resp.Text)
	if err != nil {
		c.logger.Warn("intent classifier returned malformed output",
			"error", err,
			"output_length", len(resp.Text),
		)
		return Result{Intent: IntentUnknown, Reason: "malformed classifier output", RawOutput: resp.Text}
	}
	return result
}

// parseResult extracts the JSON object from model output that may be wrapped
// in code fences or commentary.
func parseResult(output string) (Result, error) {
	content := strings.TrimSpace(output)
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return Result{}, fmt.Errorf("intent: no JSON object in output")
	}

	var result Result
	if err := json.Unmarshal([]byte(content[start:end+1]), &result); err != nil {
		return Result{}, fmt.Errorf("intent: failed to decode output: %w", err)
	}

	switch result.Intent {
	case IntentBookAppointment, IntentRescheduleAppointment, IntentCancelAppointment,
		IntentViewAppointments, IntentOtherQuestion, IntentUnknown:
	default:
		return Result{}, fmt.Errorf("intent: unrecognized intent %q", result.Intent)
	}
	return result, nil
}
