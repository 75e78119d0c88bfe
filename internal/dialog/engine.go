package dialog

import (
	"context"
	"strings"
	"time"

	"github.com/andreysiniy/tg-med-bot/internal/backend"
	"github.com/andreysiniy/tg-med-bot/internal/intent"
	"github.com/andreysiniy/tg-med-bot/internal/observability/metrics"
	"github.com/andreysiniy/tg-med-bot/internal/session"
	"github.com/andreysiniy/tg-med-bot/internal/users"
	"github.com/andreysiniy/tg-med-bot/pkg/logging"
)

const defaultDateWindowDays = 14

// Gateway is the slice of the clinic backend the dialog engine calls.
type Gateway interface {
	ClinicCards(ctx context.Context) ([]backend.ClinicCard, error)
	ClinicCardsByName(ctx context.Context, name string) ([]backend.ClinicCard, error)
	Specializations(ctx context.Context, filter backend.DoctorFilter) ([]backend.Specialization, error)
	Doctors(ctx context.Context, filter backend.DoctorFilter) ([]backend.DoctorCard, error)
	DoctorCard(ctx context.Context, doctorID int) (*backend.DoctorCard, error)
	ClinicCard(ctx context.Context, clinicID int) (*backend.ClinicCard, error)
	DoctorTimeslots(ctx context.Context, doctorID int, date string) ([]string, error)
	AppointmentsByUser(ctx context.Context, patientUUID string) ([]backend.Appointment, error)
	CreateAppointment(ctx context.Context, req backend.AppointmentRequest) (*backend.Appointment, error)
	UpdateAppointment(ctx context.Context, appointmentID int, req backend.AppointmentRequest) error
	DeleteAppointment(ctx context.Context, appointmentID int) error
}

// UserDirectory resolves chat users to durable patient records.
type UserDirectory interface {
	RegisterIfAbsent(ctx context.Context, u users.User) (users.User, bool, error)
	Get(ctx context.Context, userID string) (*users.User, error)
}

// Classifier turns free text into an intent. May be absent; the engine then
// answers free text with a rephrase prompt.
type Classifier interface {
	Classify(ctx context.Context, text string) intent.Result
}

// Inbound is one user message as delivered by a chat transport.
type Inbound struct {
	UserID    string `json:"user_id"`
	ChatID    string `json:"chat_id"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Text      string `json:"text"`
}

// Engine owns the conversation state machines. All collaborators are supplied
// at construction.
type Engine struct {
	gateway        Gateway
	sessions       *session.Store
	users          UserDirectory
	classifier     Classifier
	metrics        *metrics.DialogMetrics
	logger         *logging.Logger
	now            func() time.Time
	dateWindowDays int
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithClassifier attaches an intent classifier for free-text messages.
func WithClassifier(c Classifier) EngineOption {
	return func(e *Engine) { e.classifier = c }
}

// WithMetrics attaches dialog metrics.
func WithMetrics(m *metrics.DialogMetrics) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// WithClock overrides the time source. Mainly for tests.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithDateWindow sets how many calendar days, starting today, are offered at
// the date step.
func WithDateWindow(days int) EngineOption {
	return func(e *Engine) {
		if days > 0 {
			e.dateWindowDays = days
		}
	}
}

// NewEngine wires a dialog engine around its collaborators.
func NewEngine(gateway Gateway, sessions *session.Store, directory UserDirectory, logger *logging.Logger, opts ...EngineOption) *Engine {
	if gateway == nil {
		panic("dialog: gateway cannot be nil")
	}
	if sessions == nil {
		panic("dialog: session store cannot be nil")
	}
	if directory == nil {
		panic("dialog: user directory cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	e := &Engine{
		gateway:        gateway,
		sessions:       sessions,
		users:          directory,
		logger:         logger,
		now:            time.Now,
		dateWindowDays: defaultDateWindowDays,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// HandleMessage processes one inbound message and returns what to send back.
// Messages from the same user are handled strictly one at a time; failures
// never escape as errors, they become a retry-later reply with the session
// cleared.
func (e *Engine) HandleMessage(ctx context.Context, in Inbound) Reply {
	unlock := e.sessions.Lock(in.UserID)
	defer unlock()

	reply, err := e.handle(ctx, in)
	if err != nil {
		sess, _ := e.sessions.Get(in.UserID)
		e.logger.Error("dialog turn failed",
			"user_id", in.UserID,
			"flow", string(sess.Flow),
			"step", sess.Step.String(),
			"error", err,
		)
		e.metrics.ObserveOutcome(string(sess.Flow), "error")
		e.sessions.Clear(in.UserID)
		return Reply{Messages: []Message{textMessage(textBackendDown)}}
	}
	return reply
}

func (e *Engine) handle(ctx context.Context, in Inbound) (Reply, error) {
	text := strings.TrimSpace(in.Text)

	if strings.HasPrefix(text, "/") {
		return e.handleCommand(ctx, in, text)
	}

	if sess, ok := e.sessions.Get(in.UserID); ok {
		return e.dispatchStep(ctx, &sess, text)
	}

	return e.handleFreeText(ctx, in, text)
}

func (e *Engine) handleCommand(ctx context.Context, in Inbound, command string) (Reply, error) {
	// A command always abandons whatever conversation was in progress.
	e.sessions.Clear(in.UserID)

	switch command {
	case "/start":
		if _, _, err := e.users.RegisterIfAbsent(ctx, userFromInbound(in)); err != nil {
			return Reply{}, err
		}
		return Reply{Messages: []Message{textMessage(textGreeting)}}, nil
	case "/help":
		return Reply{Messages: []Message{textMessage(textHelp)}}, nil
	case "/cancel":
		e.metrics.ObserveOutcome("", "cancelled")
		return Reply{Messages: []Message{textMessage(textCancelled)}}, nil
	case "/new_appointment":
		return e.startBooking(ctx, in, intent.Prefill{})
	case "/my_appointments":
		return e.startView(ctx, in)
	case "/edit_appointment":
		return e.startManage(ctx, in, session.FlowEdit)
	case "/delete_appointment":
		return e.startManage(ctx, in, session.FlowDelete)
	default:
		return Reply{Messages: []Message{textMessage(textUnknownCommand)}}, nil
	}
}

func (e *Engine) handleFreeText(ctx context.Context, in Inbound, text string) (Reply, error) {
	if e.classifier == nil {
		return Reply{Messages: []Message{textMessage(textRephrase)}}, nil
	}

	result := e.classifier.Classify(ctx, text)
	e.metrics.ObserveIntent(string(result.Intent))
	e.logger.Info("intent classified",
		"user_id", in.UserID,
		"intent", string(result.Intent),
	)

	switch result.Intent {
	case intent.IntentBookAppointment:
		return e.startBooking(ctx, in, result.Data)
	case intent.IntentRescheduleAppointment:
		return e.startManage(ctx, in, session.FlowEdit)
	case intent.IntentCancelAppointment:
		return e.startManage(ctx, in, session.FlowDelete)
	case intent.IntentViewAppointments:
		return e.startView(ctx, in)
	case intent.IntentOtherQuestion:
		return Reply{Messages: []Message{textMessage(textOtherQuestion)}}, nil
	default:
		return Reply{Messages: []Message{textMessage(textRephrase)}}, nil
	}
}

func (e *Engine) dispatchStep(ctx context.Context, sess *session.Session, text string) (Reply, error) {
	switch sess.Step {
	case session.StepChooseClinic:
		return e.processClinic(ctx, sess, text)
	case session.StepChooseSpecialization:
		return e.processSpecialization(ctx, sess, text)
	case session.StepChooseDoctor:
		return e.processDoctor(ctx, sess, text)
	case session.StepChooseDate:
		return e.processDate(ctx, sess, text)
	case session.StepChooseTime:
		return e.processTime(ctx, sess, text)
	case session.StepConfirm:
		return e.processConfirm(ctx, sess, text)
	case session.StepPickAppointment:
		return e.processPickAppointment(ctx, sess, text)
	case session.StepEditDate:
		return e.processEditDate(ctx, sess, text)
	case session.StepEditTime:
		return e.processEditTime(ctx, sess, text)
	case session.StepEditConfirm:
		return e.processEditConfirm(ctx, sess, text)
	case session.StepDeleteConfirm:
		return e.processDeleteConfirm(ctx, sess, text)
	default:
		// A session without a runnable step is stale; drop it.
		e.sessions.Clear(sess.UserID)
		return Reply{Messages: []Message{textMessage(textRephrase)}}, nil
	}
}

// cancel ends the session with a cancellation notice.
func (e *Engine) cancel(sess *session.Session) Reply {
	e.metrics.ObserveOutcome(string(sess.Flow), "cancelled")
	e.sessions.Clear(sess.UserID)
	return Reply{Messages: []Message{textMessage(textCancelled)}}
}

// save persists the session and records the step it is now waiting on.
func (e *Engine) save(sess *session.Session) {
	e.metrics.ObserveStep(string(sess.Flow), sess.Step.String())
	e.sessions.Put(*sess)
}

// finish ends the session with the given outcome and messages.
func (e *Engine) finish(sess *session.Session, outcome string, msgs ...Message) Reply {
	e.metrics.ObserveOutcome(string(sess.Flow), outcome)
	e.sessions.Clear(sess.UserID)
	return Reply{Messages: msgs}
}

func userFromInbound(in Inbound) users.User {
	return users.User{
		UserID:    in.UserID,
		ChatID:    in.ChatID,
		Username:  in.Username,
		FirstName: in.FirstName,
		LastName:  in.LastName,
	}
}
