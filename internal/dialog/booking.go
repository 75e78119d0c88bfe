package dialog

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/andreysiniy/tg-med-bot/internal/backend"
	"github.com/andreysiniy/tg-med-bot/internal/intent"
	"github.com/andreysiniy/tg-med-bot/internal/session"
)

// Placeholder used when the registered user never shared a phone number.
const defaultPatientPhone = "+7(999)999-99-99"

const datetimeLayout = "2006-01-02T15:04:05"

// startBooking begins a fresh booking conversation, discarding any session in
// progress. Prefill values seed the matching steps but every choice is still
// validated against live data.
func (e *Engine) startBooking(ctx context.Context, in Inbound, prefill intent.Prefill) (Reply, error) {
	e.sessions.Clear(in.UserID)
	if _, _, err := e.users.RegisterIfAbsent(ctx, userFromInbound(in)); err != nil {
		return Reply{}, err
	}

	sess := &session.Session{
		UserID:  in.UserID,
		ChatID:  in.ChatID,
		Flow:    session.FlowBooking,
		Prefill: prefill,
	}
	msgs, end, err := e.promptClinic(ctx, sess)
	if err != nil {
		return Reply{}, err
	}
	return e.respond(sess, msgs, end), nil
}

// respond either persists the session and waits for the next reply, or ends
// the conversation when a prompt ran out of options.
func (e *Engine) respond(sess *session.Session, msgs []Message, end bool) Reply {
	if end {
		return e.finish(sess, "no_data", msgs...)
	}
	e.save(sess)
	return Reply{Messages: msgs}
}

// repeatPrompt re-renders the current step from the cached candidate list with
// a corrective note. No backend query happens here.
func (e *Engine) repeatPrompt(sess *session.Session, prompt, backLabel string) Reply {
	kb := BuildKeyboard(sess.CandidateLabels(), 1, backLabel)
	e.save(sess)
	return Reply{Messages: []Message{keyboardMessage(textInvalidChoice + "\n" + prompt, kb)}}
}

func (e *Engine) promptClinic(ctx context.Context, sess *session.Session) ([]Message, bool, error) {
	var (
		clinics []backend.ClinicCard
		err     error
	)
	if name := sess.Prefill.Clinic; name != "" {
		clinics, err = e.gateway.ClinicCardsByName(ctx, name)
		if err != nil {
			return nil, false, err
		}
		if len(clinics) == 0 {
			sess.Prefill.Clinic = ""
		}
	}
	if len(clinics) == 0 {
		clinics, err = e.gateway.ClinicCards(ctx)
		if err != nil {
			return nil, false, err
		}
	}
	if len(clinics) == 0 {
		return []Message{textMessage(textNoClinics)}, true, nil
	}

	cands := make([]session.Candidate, len(clinics))
	for i, c := range clinics {
		cands[i] = session.Candidate{ID: strconv.Itoa(c.ClinicID), Label: c.Name}
	}
	sess.Step = session.StepChooseClinic
	sess.Candidates = cands
	kb := BuildKeyboard(sess.CandidateLabels(), 1, labelCancel)
	return []Message{keyboardMessage(textChooseClinic, kb)}, false, nil
}

func (e *Engine) processClinic(ctx context.Context, sess *session.Session, text string) (Reply, error) {
	if text == labelCancel {
		return e.cancel(sess), nil
	}
	cand, ok := sess.FindCandidate(text)
	if !ok {
		return e.repeatPrompt(sess, textChooseClinic, labelCancel), nil
	}

	clinicID, err := strconv.Atoi(cand.ID)
	if err != nil {
		return Reply{}, fmt.Errorf("dialog: bad clinic candidate id %q: %w", cand.ID, err)
	}
	sess.Draft.Clear(session.SlotClinic)
	sess.Draft.ClinicID = clinicID
	sess.Draft.ClinicName = cand.Label
	sess.Candidates = nil

	msgs, end, err := e.promptSpecialization(ctx, sess)
	if err != nil {
		return Reply{}, err
	}
	return e.respond(sess, msgs, end), nil
}

func (e *Engine) promptSpecialization(ctx context.Context, sess *session.Session) ([]Message, bool, error) {
	specs, err := e.gateway.Specializations(ctx, backend.DoctorFilter{ClinicID: sess.Draft.ClinicID})
	if err != nil {
		return nil, false, err
	}
	if len(specs) == 0 {
		sess.Prefill.Clinic = ""
		msgs, end, err := e.promptClinic(ctx, sess)
		if err != nil {
			return nil, false, err
		}
		return append([]Message{textMessage(textNoSpecializations)}, msgs...), end, nil
	}

	if want := sess.Prefill.Specialization; want != "" {
		found := false
		for _, s := range specs {
			if strings.EqualFold(s.Name, want) {
				specs = []backend.Specialization{s}
				found = true
				break
			}
		}
		if !found {
			sess.Prefill.Specialization = ""
		}
	}

	cands := make([]session.Candidate, len(specs))
	for i, s := range specs {
		cands[i] = session.Candidate{ID: strconv.Itoa(s.ID), Label: s.Name}
	}
	sess.Step = session.StepChooseSpecialization
	sess.Candidates = cands
	kb := BuildKeyboard(sess.CandidateLabels(), 1, labelBackToClinic)
	return []Message{keyboardMessage(textChooseSpecialization, kb)}, false, nil
}

func (e *Engine) processSpecialization(ctx context.Context, sess *session.Session, text string) (Reply, error) {
	if text == labelBackToClinic {
		sess.Draft.Clear(session.SlotSpecialization)
		sess.Prefill.Clinic = ""
		sess.Candidates = nil
		msgs, end, err := e.promptClinic(ctx, sess)
		if err != nil {
			return Reply{}, err
		}
		return e.respond(sess, msgs, end), nil
	}
	cand, ok := sess.FindCandidate(text)
	if !ok {
		return e.repeatPrompt(sess, textChooseSpecialization, labelBackToClinic), nil
	}

	specID, err := strconv.Atoi(cand.ID)
	if err != nil {
		return Reply{}, fmt.Errorf("dialog: bad specialization candidate id %q: %w", cand.ID, err)
	}
	sess.Draft.Clear(session.SlotSpecialization)
	sess.Draft.SpecializationID = specID
	sess.Draft.SpecializationName = cand.Label
	sess.Candidates = nil

	msgs, end, err := e.promptDoctor(ctx, sess)
	if err != nil {
		return Reply{}, err
	}
	return e.respond(sess, msgs, end), nil
}

func (e *Engine) promptDoctor(ctx context.Context, sess *session.Session) ([]Message, bool, error) {
	filter := backend.DoctorFilter{
		ClinicID:   sess.Draft.ClinicID,
		Speciality: sess.Draft.SpecializationName,
	}

	var (
		doctors []backend.DoctorCard
		err     error
	)
	if name := sess.Prefill.Doctor; name != "" {
		filter.Name = name
		doctors, err = e.gateway.Doctors(ctx, filter)
		if err != nil {
			return nil, false, err
		}
		if len(doctors) == 0 {
			sess.Prefill.Doctor = ""
			filter.Name = ""
		}
	}
	if len(doctors) == 0 {
		doctors, err = e.gateway.Doctors(ctx, filter)
		if err != nil {
			return nil, false, err
		}
	}
	if len(doctors) == 0 {
		sess.Prefill.Specialization = ""
		msgs, end, err := e.promptSpecialization(ctx, sess)
		if err != nil {
			return nil, false, err
		}
		return append([]Message{textMessage(textNoDoctors)}, msgs...), end, nil
	}

	cands := make([]session.Candidate, len(doctors))
	for i, d := range doctors {
		cands[i] = session.Candidate{ID: strconv.Itoa(d.DoctorID), Label: d.Name}
	}
	sess.Step = session.StepChooseDoctor
	sess.Candidates = cands
	kb := BuildKeyboard(sess.CandidateLabels(), 1, labelBackToSpecialization)
	return []Message{keyboardMessage(textChooseDoctor, kb)}, false, nil
}

func (e *Engine) processDoctor(ctx context.Context, sess *session.Session, text string) (Reply, error) {
	if text == labelBackToSpecialization {
		sess.Draft.Clear(session.SlotDoctor)
		sess.Prefill.Specialization = ""
		sess.Candidates = nil
		msgs, end, err := e.promptSpecialization(ctx, sess)
		if err != nil {
			return Reply{}, err
		}
		return e.respond(sess, msgs, end), nil
	}
	cand, ok := sess.FindCandidate(text)
	if !ok {
		return e.repeatPrompt(sess, textChooseDoctor, labelBackToSpecialization), nil
	}

	doctorID, err := strconv.Atoi(cand.ID)
	if err != nil {
		return Reply{}, fmt.Errorf("dialog: bad doctor candidate id %q: %w", cand.ID, err)
	}
	sess.Draft.Clear(session.SlotDoctor)
	sess.Draft.DoctorID = doctorID
	sess.Draft.DoctorName = cand.Label
	sess.Candidates = nil

	msgs, end, err := e.promptDate(ctx, sess)
	if err != nil {
		return Reply{}, err
	}
	return e.respond(sess, msgs, end), nil
}

// dateWindow returns the selectable dates: today plus the following days, as
// YYYY-MM-DD strings.
func (e *Engine) dateWindow() []string {
	today := e.now()
	dates := make([]string, e.dateWindowDays)
	for i := range dates {
		dates[i] = today.AddDate(0, 0, i).Format("2006-01-02")
	}
	return dates
}

func (e *Engine) promptDate(_ context.Context, sess *session.Session) ([]Message, bool, error) {
	dates := e.dateWindow()

	if want := sess.Prefill.Date; want != "" {
		found := false
		for _, d := range dates {
			if d == want {
				dates = []string{d}
				found = true
				break
			}
		}
		if !found {
			sess.Prefill.Date = ""
		}
	}

	cands := make([]session.Candidate, len(dates))
	for i, d := range dates {
		cands[i] = session.Candidate{ID: d, Label: d}
	}
	sess.Step = session.StepChooseDate
	sess.Candidates = cands
	kb := BuildKeyboard(sess.CandidateLabels(), 1, labelBackToDoctor)
	return []Message{keyboardMessage(textChooseDate, kb)}, false, nil
}

func (e *Engine) processDate(ctx context.Context, sess *session.Session, text string) (Reply, error) {
	if text == labelBackToDoctor {
		sess.Draft.Clear(session.SlotDate)
		sess.Prefill.Doctor = ""
		sess.Candidates = nil
		msgs, end, err := e.promptDoctor(ctx, sess)
		if err != nil {
			return Reply{}, err
		}
		return e.respond(sess, msgs, end), nil
	}
	cand, ok := sess.FindCandidate(text)
	if !ok {
		return e.repeatPrompt(sess, textChooseDate, labelBackToDoctor), nil
	}

	sess.Draft.Clear(session.SlotDate)
	sess.Draft.Date = cand.ID
	sess.Candidates = nil

	msgs, end, err := e.promptTime(ctx, sess)
	if err != nil {
		return Reply{}, err
	}
	return e.respond(sess, msgs, end), nil
}

func (e *Engine) promptTime(ctx context.Context, sess *session.Session) ([]Message, bool, error) {
	slots, err := e.gateway.DoctorTimeslots(ctx, sess.Draft.DoctorID, sess.Draft.Date)
	if err != nil {
		return nil, false, err
	}
	if len(slots) == 0 {
		sess.Draft.Clear(session.SlotDate)
		sess.Prefill.Date = ""
		msgs, end, err := e.promptDate(ctx, sess)
		if err != nil {
			return nil, false, err
		}
		return append([]Message{textMessage(textNoTimeslots)}, msgs...), end, nil
	}

	if want := sess.Prefill.Time; want != "" {
		found := false
		for _, s := range slots {
			if s == want {
				slots = []string{s}
				found = true
				break
			}
		}
		if !found {
			sess.Prefill.Time = ""
		}
	}

	cands := make([]session.Candidate, len(slots))
	for i, s := range slots {
		cands[i] = session.Candidate{ID: s, Label: s}
	}
	sess.Step = session.StepChooseTime
	sess.Candidates = cands
	kb := BuildKeyboard(sess.CandidateLabels(), 1, labelBackToDate)
	return []Message{keyboardMessage(textChooseTime, kb)}, false, nil
}

func (e *Engine) processTime(ctx context.Context, sess *session.Session, text string) (Reply, error) {
	if text == labelBackToDate {
		sess.Draft.Clear(session.SlotTime)
		sess.Prefill.Date = ""
		sess.Prefill.Time = ""
		sess.Candidates = nil
		msgs, end, err := e.promptDate(ctx, sess)
		if err != nil {
			return Reply{}, err
		}
		return e.respond(sess, msgs, end), nil
	}
	cand, ok := sess.FindCandidate(text)
	if !ok {
		return e.repeatPrompt(sess, textChooseTime, labelBackToDate), nil
	}

	if e.isPast(sess.Draft.Date, cand.ID) {
		return e.backToDates(ctx, sess)
	}

	sess.Draft.Time = cand.ID
	sess.Draft.DatetimeISO = sess.Draft.Date + "T" + cand.ID + ":00"
	sess.Candidates = nil

	msgs := e.promptConfirm(sess)
	e.save(sess)
	return Reply{Messages: msgs}, nil
}

// isPast reports whether the YYYY-MM-DD date plus HH:MM time is strictly
// before the current moment.
func (e *Engine) isPast(date, clock string) bool {
	dt, err := time.ParseInLocation(datetimeLayout, date+"T"+clock+":00", e.now().Location())
	if err != nil {
		return true
	}
	return dt.Before(e.now())
}

// backToDates handles an elapsed date+time: the date slot is dropped and the
// user picks a date again.
func (e *Engine) backToDates(ctx context.Context, sess *session.Session) (Reply, error) {
	sess.Draft.Clear(session.SlotDate)
	sess.Prefill.Date = ""
	sess.Prefill.Time = ""
	sess.Candidates = nil
	msgs, end, err := e.promptDate(ctx, sess)
	if err != nil {
		return Reply{}, err
	}
	return e.respond(sess, append([]Message{textMessage(textPastDatetime)}, msgs...), end), nil
}

func (e *Engine) promptConfirm(sess *session.Session) []Message {
	sess.Step = session.StepConfirm
	sess.Candidates = nil
	summary := fmt.Sprintf(
		"Please confirm the appointment:\nClinic: %s\nSpecialization: %s\nDoctor: %s\nDate: %s\nTime: %s",
		sess.Draft.ClinicName,
		sess.Draft.SpecializationName,
		sess.Draft.DoctorName,
		sess.Draft.Date,
		sess.Draft.Time,
	)
	kb := BuildKeyboard([]string{labelConfirm, labelChange, labelCancel}, 1, "")
	return []Message{keyboardMessage(summary, kb)}
}

func (e *Engine) processConfirm(ctx context.Context, sess *session.Session, text string) (Reply, error) {
	switch text {
	case labelConfirm:
		if e.isPast(sess.Draft.Date, sess.Draft.Time) {
			return e.backToDates(ctx, sess)
		}
		return e.submitBooking(ctx, sess)
	case labelChange:
		sess.Draft.Clear(session.SlotDate)
		sess.Prefill.Date = ""
		sess.Prefill.Time = ""
		msgs, end, err := e.promptDate(ctx, sess)
		if err != nil {
			return Reply{}, err
		}
		return e.respond(sess, msgs, end), nil
	case labelCancel:
		return e.cancel(sess), nil
	default:
		msgs := e.promptConfirm(sess)
		e.save(sess)
		return Reply{Messages: msgs}, nil
	}
}

func (e *Engine) submitBooking(ctx context.Context, sess *session.Session) (Reply, error) {
	user, err := e.users.Get(ctx, sess.UserID)
	if err != nil {
		return Reply{}, fmt.Errorf("dialog: resolve patient for booking: %w", err)
	}
	phone := user.Phone
	if phone == "" {
		phone = defaultPatientPhone
	}

	appt, err := e.gateway.CreateAppointment(ctx, backend.AppointmentRequest{
		PatientName:     user.FullName(),
		PatientUUID:     user.UUID,
		Phone:           phone,
		AppointmentTime: sess.Draft.DatetimeISO,
		DoctorID:        sess.Draft.DoctorID,
	})
	if err != nil {
		return Reply{}, err
	}

	clinicName := sess.Draft.ClinicName
	doctorName := sess.Draft.DoctorName
	speciality := sess.Draft.SpecializationName
	if appt != nil {
		if appt.ClinicName != "" {
			clinicName = backend.TitleCase(appt.ClinicName)
		}
		if appt.DoctorName != "" {
			doctorName = backend.TitleCase(appt.DoctorName)
		}
		if appt.DoctorSpeciality != "" {
			speciality = backend.TitleCase(appt.DoctorSpeciality)
		}
	}
	e.logger.Info("appointment booked",
		"user_id", sess.UserID,
		"doctor_id", sess.Draft.DoctorID,
		"time", sess.Draft.DatetimeISO,
	)

	msg := fmt.Sprintf(
		"Your appointment is booked!\nClinic: %s\nDoctor: %s (%s)\nWhen: %s at %s",
		clinicName, doctorName, speciality, sess.Draft.Date, sess.Draft.Time,
	)
	return e.finish(sess, "completed", textMessage(msg)), nil
}
