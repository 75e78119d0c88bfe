package dialog

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreysiniy/tg-med-bot/internal/backend"
	"github.com/andreysiniy/tg-med-bot/internal/intent"
	"github.com/andreysiniy/tg-med-bot/internal/session"
	"github.com/andreysiniy/tg-med-bot/internal/users"
	"github.com/andreysiniy/tg-med-bot/pkg/logging"
)

// fakeGateway serves canned clinic data and records mutations. Setting errOn
// to a method name makes that method fail.
type fakeGateway struct {
	clinics       []backend.ClinicCard
	clinicsByName map[string][]backend.ClinicCard
	specs         map[int][]backend.Specialization
	doctors       []backend.DoctorCard
	slots         map[string][]string
	appointments  map[string][]backend.Appointment
	createResp    *backend.Appointment

	errOn string

	clinicListCalls int
	apptListCalls   int
	created         []backend.AppointmentRequest
	updated         map[int]backend.AppointmentRequest
	deleted         []int
}

func (g *fakeGateway) fail(method string) error {
	if g.errOn == method {
		return assert.AnError
	}
	return nil
}

func (g *fakeGateway) ClinicCards(context.Context) ([]backend.ClinicCard, error) {
	if err := g.fail("ClinicCards"); err != nil {
		return nil, err
	}
	g.clinicListCalls++
	return g.clinics, nil
}

func (g *fakeGateway) ClinicCardsByName(_ context.Context, name string) ([]backend.ClinicCard, error) {
	if err := g.fail("ClinicCardsByName"); err != nil {
		return nil, err
	}
	return g.clinicsByName[strings.ToLower(name)], nil
}

func (g *fakeGateway) Specializations(_ context.Context, filter backend.DoctorFilter) ([]backend.Specialization, error) {
	if err := g.fail("Specializations"); err != nil {
		return nil, err
	}
	return g.specs[filter.ClinicID], nil
}

func (g *fakeGateway) Doctors(_ context.Context, filter backend.DoctorFilter) ([]backend.DoctorCard, error) {
	if err := g.fail("Doctors"); err != nil {
		return nil, err
	}
	var out []backend.DoctorCard
	for _, d := range g.doctors {
		if filter.ClinicID != 0 && d.ClinicID != filter.ClinicID {
			continue
		}
		if filter.Speciality != "" && !strings.EqualFold(d.Speciality, filter.Speciality) {
			continue
		}
		if filter.Name != "" && !strings.Contains(strings.ToLower(d.Name), strings.ToLower(filter.Name)) {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func (g *fakeGateway) DoctorCard(_ context.Context, doctorID int) (*backend.DoctorCard, error) {
	if err := g.fail("DoctorCard"); err != nil {
		return nil, err
	}
	for _, d := range g.doctors {
		if d.DoctorID == doctorID {
			d := d
			return &d, nil
		}
	}
	return nil, fmt.Errorf("fake: no doctor %d", doctorID)
}

func (g *fakeGateway) ClinicCard(_ context.Context, clinicID int) (*backend.ClinicCard, error) {
	if err := g.fail("ClinicCard"); err != nil {
		return nil, err
	}
	for _, c := range g.clinics {
		if c.ClinicID == clinicID {
			c := c
			return &c, nil
		}
	}
	return nil, fmt.Errorf("fake: no clinic %d", clinicID)
}

func (g *fakeGateway) DoctorTimeslots(_ context.Context, doctorID int, date string) ([]string, error) {
	if err := g.fail("DoctorTimeslots"); err != nil {
		return nil, err
	}
	return g.slots[fmt.Sprintf("%d|%s", doctorID, date)], nil
}

func (g *fakeGateway) AppointmentsByUser(_ context.Context, patientUUID string) ([]backend.Appointment, error) {
	if err := g.fail("AppointmentsByUser"); err != nil {
		return nil, err
	}
	g.apptListCalls++
	return g.appointments[patientUUID], nil
}

func (g *fakeGateway) CreateAppointment(_ context.Context, req backend.AppointmentRequest) (*backend.Appointment, error) {
	if err := g.fail("CreateAppointment"); err != nil {
		return nil, err
	}
	g.created = append(g.created, req)
	return g.createResp, nil
}

func (g *fakeGateway) UpdateAppointment(_ context.Context, appointmentID int, req backend.AppointmentRequest) error {
	if err := g.fail("UpdateAppointment"); err != nil {
		return err
	}
	if g.updated == nil {
		g.updated = make(map[int]backend.AppointmentRequest)
	}
	g.updated[appointmentID] = req
	return nil
}

func (g *fakeGateway) DeleteAppointment(_ context.Context, appointmentID int) error {
	if err := g.fail("DeleteAppointment"); err != nil {
		return err
	}
	g.deleted = append(g.deleted, appointmentID)
	return nil
}

type fakeDirectory struct {
	users map[string]users.User
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{users: make(map[string]users.User)}
}

func (d *fakeDirectory) RegisterIfAbsent(_ context.Context, u users.User) (users.User, bool, error) {
	if existing, ok := d.users[u.UserID]; ok {
		return existing, false, nil
	}
	u.UUID = "uuid-" + u.UserID
	d.users[u.UserID] = u
	return u, true, nil
}

func (d *fakeDirectory) Get(_ context.Context, userID string) (*users.User, error) {
	u, ok := d.users[userID]
	if !ok {
		return nil, users.ErrNotFound
	}
	return &u, nil
}

type fakeClassifier struct {
	result   Result
	lastText string
}

// Result aliases intent.Result for brevity in test setup.
type Result = intent.Result

func (c *fakeClassifier) Classify(_ context.Context, text string) intent.Result {
	c.lastText = text
	return c.result
}

// newTestGateway returns a gateway with two clinics, two specialities, two
// doctors and a couple of time slots around the fixed test clock.
func newTestGateway() *fakeGateway {
	return &fakeGateway{
		clinics: []backend.ClinicCard{
			{ClinicID: 10, Name: "City Clinic", Location: "Main Street 1", Phone: "+1-555-0199"},
			{ClinicID: 11, Name: "North Clinic", Location: "North Road 5"},
		},
		clinicsByName: map[string][]backend.ClinicCard{
			"city clinic": {{ClinicID: 10, Name: "City Clinic", Location: "Main Street 1", Phone: "+1-555-0199"}},
		},
		specs: map[int][]backend.Specialization{
			10: {{ID: 0, Name: "Cardiology"}, {ID: 1, Name: "Dermatology"}},
			11: {{ID: 0, Name: "Cardiology"}},
		},
		doctors: []backend.DoctorCard{
			{DoctorID: 7, ClinicID: 10, Name: "Gregory House", Speciality: "Cardiology", PhoneNumber: "+1-555-0142"},
			{DoctorID: 8, ClinicID: 10, Name: "Lisa Cuddy", Speciality: "Dermatology"},
			{DoctorID: 9, ClinicID: 11, Name: "James Wilson", Speciality: "Cardiology"},
		},
		slots: map[string][]string{
			"7|2025-01-06": {"09:30", "10:00"},
			"7|2025-01-10": {"09:30", "10:00"},
			"7|2025-01-05": {"09:30", "14:00"},
		},
		appointments: make(map[string][]backend.Appointment),
	}
}

var testNow = time.Date(2025, 1, 5, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T, gw *fakeGateway, opts ...EngineOption) (*Engine, *fakeDirectory) {
	t.Helper()
	dir := newFakeDirectory()
	base := []EngineOption{WithClock(func() time.Time { return testNow })}
	e := NewEngine(gw, session.NewStore(), dir, logging.New("error"), append(base, opts...)...)
	return e, dir
}

func inbound(text string) Inbound {
	return Inbound{UserID: "42", ChatID: "42", Username: "pat", FirstName: "Pat", LastName: "Doe", Text: text}
}

func send(t *testing.T, e *Engine, text string) Reply {
	t.Helper()
	return e.HandleMessage(context.Background(), inbound(text))
}

func lastMessage(t *testing.T, r Reply) Message {
	t.Helper()
	require.NotEmpty(t, r.Messages)
	return r.Messages[len(r.Messages)-1]
}

func TestNewEnginePanicsOnNilDeps(t *testing.T) {
	store := session.NewStore()
	dir := newFakeDirectory()
	gw := newTestGateway()

	assert.Panics(t, func() { NewEngine(nil, store, dir, nil) })
	assert.Panics(t, func() { NewEngine(gw, nil, dir, nil) })
	assert.Panics(t, func() { NewEngine(gw, store, nil, nil) })
	assert.NotPanics(t, func() { NewEngine(gw, store, dir, nil) })
}

func TestStartRegistersUser(t *testing.T) {
	e, dir := newTestEngine(t, newTestGateway())

	reply := send(t, e, "/start")
	msg := lastMessage(t, reply)
	assert.Contains(t, msg.Text, "book")

	u, err := dir.Get(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, "uuid-42", u.UUID)
	assert.Equal(t, "Pat Doe", u.FullName())
}

func TestHelpListsCommands(t *testing.T) {
	e, _ := newTestEngine(t, newTestGateway())

	msg := lastMessage(t, send(t, e, "/help"))
	for _, cmd := range []string{"/new_appointment", "/my_appointments", "/edit_appointment", "/delete_appointment", "/cancel"} {
		assert.Contains(t, msg.Text, cmd)
	}
}

func TestUnknownCommand(t *testing.T) {
	e, _ := newTestEngine(t, newTestGateway())

	msg := lastMessage(t, send(t, e, "/frobnicate"))
	assert.Equal(t, textUnknownCommand, msg.Text)
}

func TestCancelCommandAbandonsConversation(t *testing.T) {
	e, _ := newTestEngine(t, newTestGateway())

	send(t, e, "/new_appointment")
	msg := lastMessage(t, send(t, e, "/cancel"))
	assert.Equal(t, textCancelled, msg.Text)
	assert.True(t, msg.RemoveKeyboard)

	// The booking session is gone; a candidate label no longer means anything.
	msg = lastMessage(t, send(t, e, "City Clinic"))
	assert.Equal(t, textRephrase, msg.Text)
}

func TestFreeTextWithoutClassifier(t *testing.T) {
	e, _ := newTestEngine(t, newTestGateway())

	msg := lastMessage(t, send(t, e, "hello there"))
	assert.Equal(t, textRephrase, msg.Text)
}

func TestFreeTextIntentRouting(t *testing.T) {
	tests := []struct {
		name   string
		result Result
		want   string
	}{
		{
			name:   "booking intent starts the clinic prompt",
			result: Result{Intent: intent.IntentBookAppointment},
			want:   textChooseClinic,
		},
		{
			name:   "view intent needs registration first",
			result: Result{Intent: intent.IntentViewAppointments},
			want:   textNotRegistered,
		},
		{
			name:   "reschedule intent needs registration first",
			result: Result{Intent: intent.IntentRescheduleAppointment},
			want:   textNotRegistered,
		},
		{
			name:   "cancel intent needs registration first",
			result: Result{Intent: intent.IntentCancelAppointment},
			want:   textNotRegistered,
		},
		{
			name:   "other question gets the capability reply",
			result: Result{Intent: intent.IntentOtherQuestion, Data: intent.Prefill{Question: "parking?"}},
			want:   textOtherQuestion,
		},
		{
			name:   "unknown intent asks to rephrase",
			result: Result{Intent: intent.IntentUnknown, Reason: "gibberish"},
			want:   textRephrase,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cls := &fakeClassifier{result: tc.result}
			e, _ := newTestEngine(t, newTestGateway(), WithClassifier(cls))

			msg := lastMessage(t, send(t, e, "free text"))
			assert.Contains(t, msg.Text, tc.want)
			assert.Equal(t, "free text", cls.lastText)
		})
	}
}

func TestActiveSessionBypassesClassifier(t *testing.T) {
	cls := &fakeClassifier{result: Result{Intent: intent.IntentViewAppointments}}
	e, _ := newTestEngine(t, newTestGateway(), WithClassifier(cls))

	send(t, e, "/new_appointment")
	cls.lastText = ""

	msg := lastMessage(t, send(t, e, "North Clinic"))
	assert.Equal(t, textChooseSpecialization, msg.Text)
	assert.Empty(t, cls.lastText)
}
