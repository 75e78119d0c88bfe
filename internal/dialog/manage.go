package dialog

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/andreysiniy/tg-med-bot/internal/backend"
	"github.com/andreysiniy/tg-med-bot/internal/session"
	"github.com/andreysiniy/tg-med-bot/internal/users"
)

// startView lists the user's appointments. No session is created; viewing has
// no follow-up step.
func (e *Engine) startView(ctx context.Context, in Inbound) (Reply, error) {
	items, reply, err := e.loadAppointments(ctx, in.UserID)
	if err != nil || reply != nil {
		return derefReply(reply), err
	}
	e.metrics.ObserveOutcome(string(session.FlowNone), "viewed")
	return Reply{Messages: []Message{textMessage(renderAppointments(items))}}, nil
}

// startManage begins the edit or delete flow: list the user's appointments and
// ask which one to act on.
func (e *Engine) startManage(ctx context.Context, in Inbound, flow session.Flow) (Reply, error) {
	e.sessions.Clear(in.UserID)

	items, reply, err := e.loadAppointments(ctx, in.UserID)
	if err != nil || reply != nil {
		return derefReply(reply), err
	}

	sess := &session.Session{
		UserID:        in.UserID,
		ChatID:        in.ChatID,
		Flow:          flow,
		Step:          session.StepPickAppointment,
		Items:         items,
		SelectedIndex: -1,
	}
	sess.Candidates = make([]session.Candidate, len(items))
	for i := range items {
		sess.Candidates[i] = session.Candidate{
			ID:    strconv.Itoa(i),
			Label: fmt.Sprintf("Appointment #%d", i+1),
		}
	}

	prompt := renderAppointments(items) + "\n\n" + pickPromptText(flow)
	kb := BuildKeyboard(sess.CandidateLabels(), 1, labelCancel)
	e.save(sess)
	return Reply{Messages: []Message{keyboardMessage(prompt, kb)}}, nil
}

// loadAppointments resolves the user, fetches their appointments and enriches
// each with doctor and clinic details. A non-nil reply means the flow cannot
// continue (unregistered user or nothing booked) and carries the explanation.
func (e *Engine) loadAppointments(ctx context.Context, userID string) ([]session.AppointmentItem, *Reply, error) {
	user, err := e.users.Get(ctx, userID)
	if errors.Is(err, users.ErrNotFound) {
		e.sessions.Clear(userID)
		return nil, &Reply{Messages: []Message{textMessage(textNotRegistered)}}, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("dialog: resolve user: %w", err)
	}

	appts, err := e.gateway.AppointmentsByUser(ctx, user.UUID)
	if err != nil {
		return nil, nil, err
	}
	if len(appts) == 0 {
		return nil, &Reply{Messages: []Message{textMessage(textNoAppointments)}}, nil
	}

	items, err := e.enrichAppointments(ctx, appts)
	if err != nil {
		return nil, nil, err
	}
	return items, nil, nil
}

// enrichAppointments looks up the doctor and then the doctor's clinic for each
// appointment. Items are fetched concurrently; within one item the doctor
// lookup always precedes the clinic lookup.
func (e *Engine) enrichAppointments(ctx context.Context, appts []backend.Appointment) ([]session.AppointmentItem, error) {
	items := make([]session.AppointmentItem, len(appts))
	errs := make([]error, len(appts))

	var wg sync.WaitGroup
	for i, appt := range appts {
		wg.Add(1)
		go func(i int, appt backend.Appointment) {
			defer wg.Done()
			doctor, err := e.gateway.DoctorCard(ctx, appt.DoctorID)
			if err != nil {
				errs[i] = err
				return
			}
			clinic, err := e.gateway.ClinicCard(ctx, doctor.ClinicID)
			if err != nil {
				errs[i] = err
				return
			}
			items[i] = session.AppointmentItem{Appointment: appt, Doctor: *doctor, Clinic: *clinic}
		}(i, appt)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return items, nil
}

func renderAppointments(items []session.AppointmentItem) string {
	var b strings.Builder
	b.WriteString("Your appointments:\n")
	for i, it := range items {
		date, clock := splitDatetime(it.Appointment.AppointmentTime)
		fmt.Fprintf(&b, "\n#%d: %s (%s) at %s\nWhen: %s at %s\n",
			i+1, it.Doctor.Name, it.Doctor.Speciality, it.Clinic.Name, date, clock)
		if it.Doctor.PhoneNumber != "" {
			fmt.Fprintf(&b, "Doctor's phone: %s\n", it.Doctor.PhoneNumber)
		}
		if it.Clinic.Location != "" {
			fmt.Fprintf(&b, "Address: %s\n", it.Clinic.Location)
		}
		if it.Clinic.Phone != "" {
			fmt.Fprintf(&b, "Clinic's phone: %s\n", it.Clinic.Phone)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// splitDatetime splits an ISO-8601 datetime into its date and HH:MM parts.
func splitDatetime(iso string) (date, clock string) {
	if len(iso) >= 16 {
		return iso[:10], iso[11:16]
	}
	return iso, ""
}

func pickPromptText(flow session.Flow) string {
	if flow == session.FlowDelete {
		return textDeletePickAppointment
	}
	return textEditPickAppointment
}

func derefReply(r *Reply) Reply {
	if r == nil {
		return Reply{}
	}
	return *r
}

func (e *Engine) processPickAppointment(ctx context.Context, sess *session.Session, text string) (Reply, error) {
	if text == labelCancel {
		return e.cancel(sess), nil
	}
	cand, ok := sess.FindCandidate(text)
	if !ok {
		return e.repeatPrompt(sess, pickPromptText(sess.Flow), labelCancel), nil
	}

	idx, err := strconv.Atoi(cand.ID)
	if err != nil {
		return Reply{}, fmt.Errorf("dialog: bad appointment candidate id %q: %w", cand.ID, err)
	}
	sess.SelectedIndex = idx
	sess.Candidates = nil

	if sess.Flow == session.FlowDelete {
		msgs := e.promptDeleteConfirm(sess)
		e.save(sess)
		return Reply{Messages: msgs}, nil
	}
	msgs := e.promptEditDate(sess)
	e.save(sess)
	return Reply{Messages: msgs}, nil
}

func (e *Engine) promptEditDate(sess *session.Session) []Message {
	dates := e.dateWindow()
	sess.Step = session.StepEditDate
	sess.NewDate = ""
	sess.NewTime = ""
	sess.Candidates = make([]session.Candidate, len(dates))
	for i, d := range dates {
		sess.Candidates[i] = session.Candidate{ID: d, Label: d}
	}
	kb := BuildKeyboard(sess.CandidateLabels(), 1, labelCancel)
	return []Message{keyboardMessage(textChooseDate, kb)}
}

func (e *Engine) processEditDate(ctx context.Context, sess *session.Session, text string) (Reply, error) {
	if text == labelCancel {
		return e.cancel(sess), nil
	}
	cand, ok := sess.FindCandidate(text)
	if !ok {
		return e.repeatPrompt(sess, textChooseDate, labelCancel), nil
	}

	item, ok := sess.Selected()
	if !ok {
		e.sessions.Clear(sess.UserID)
		return Reply{Messages: []Message{textMessage(textRephrase)}}, nil
	}
	sess.NewDate = cand.ID
	sess.Candidates = nil

	slots, err := e.gateway.DoctorTimeslots(ctx, item.Doctor.DoctorID, sess.NewDate)
	if err != nil {
		return Reply{}, err
	}
	if len(slots) == 0 {
		msgs := append([]Message{textMessage(textNoTimeslots)}, e.promptEditDate(sess)...)
		e.save(sess)
		return Reply{Messages: msgs}, nil
	}

	sess.Step = session.StepEditTime
	sess.Candidates = make([]session.Candidate, len(slots))
	for i, s := range slots {
		sess.Candidates[i] = session.Candidate{ID: s, Label: s}
	}
	kb := BuildKeyboard(sess.CandidateLabels(), 1, labelCancel)
	e.save(sess)
	return Reply{Messages: []Message{keyboardMessage(textChooseTime, kb)}}, nil
}

func (e *Engine) processEditTime(ctx context.Context, sess *session.Session, text string) (Reply, error) {
	if text == labelCancel {
		return e.cancel(sess), nil
	}
	cand, ok := sess.FindCandidate(text)
	if !ok {
		return e.repeatPrompt(sess, textChooseTime, labelCancel), nil
	}

	if e.isPast(sess.NewDate, cand.ID) {
		msgs := append([]Message{textMessage(textPastDatetime)}, e.promptEditDate(sess)...)
		e.save(sess)
		return Reply{Messages: msgs}, nil
	}

	sess.NewTime = cand.ID
	sess.Candidates = nil
	msgs := e.promptEditConfirm(sess)
	e.save(sess)
	return Reply{Messages: msgs}, nil
}

func (e *Engine) promptEditConfirm(sess *session.Session) []Message {
	sess.Step = session.StepEditConfirm
	item, _ := sess.Selected()
	prompt := fmt.Sprintf(
		"Reschedule the appointment with %s (%s) at %s to %s at %s?",
		item.Doctor.Name, item.Doctor.Speciality, item.Clinic.Name, sess.NewDate, sess.NewTime,
	)
	kb := BuildKeyboard([]string{labelYes, labelNo}, 2, "")
	return []Message{keyboardMessage(prompt, kb)}
}

func (e *Engine) processEditConfirm(ctx context.Context, sess *session.Session, text string) (Reply, error) {
	switch text {
	case labelYes:
		item, ok := sess.Selected()
		if !ok {
			e.sessions.Clear(sess.UserID)
			return Reply{Messages: []Message{textMessage(textRephrase)}}, nil
		}
		if e.isPast(sess.NewDate, sess.NewTime) {
			msgs := append([]Message{textMessage(textPastDatetime)}, e.promptEditDate(sess)...)
			e.save(sess)
			return Reply{Messages: msgs}, nil
		}
		appt := item.Appointment
		err := e.gateway.UpdateAppointment(ctx, appt.AppointmentID, backend.AppointmentRequest{
			AppointmentID:   appt.AppointmentID,
			PatientName:     appt.PatientName,
			PatientUUID:     appt.PatientUUID,
			Phone:           appt.Phone,
			AppointmentTime: sess.NewDate + "T" + sess.NewTime + ":00",
			DoctorID:        appt.DoctorID,
		})
		if err != nil {
			return Reply{}, err
		}
		e.logger.Info("appointment rescheduled",
			"user_id", sess.UserID,
			"appointment_id", appt.AppointmentID,
			"time", sess.NewDate+"T"+sess.NewTime+":00",
		)
		return e.finish(sess, "completed", textMessage(textUpdated)), nil
	case labelNo:
		return e.finish(sess, "declined", textMessage(textKeptAsIs)), nil
	default:
		msgs := append([]Message{textMessage(textRepeatChoice)}, e.promptEditConfirm(sess)...)
		e.save(sess)
		return Reply{Messages: msgs}, nil
	}
}

func (e *Engine) promptDeleteConfirm(sess *session.Session) []Message {
	sess.Step = session.StepDeleteConfirm
	item, _ := sess.Selected()
	date, clock := splitDatetime(item.Appointment.AppointmentTime)
	prompt := fmt.Sprintf(
		"Cancel the appointment with %s (%s) at %s on %s at %s?",
		item.Doctor.Name, item.Doctor.Speciality, item.Clinic.Name, date, clock,
	)
	kb := BuildKeyboard([]string{labelYes, labelNo}, 2, "")
	return []Message{keyboardMessage(prompt, kb)}
}

func (e *Engine) processDeleteConfirm(ctx context.Context, sess *session.Session, text string) (Reply, error) {
	switch text {
	case labelYes:
		item, ok := sess.Selected()
		if !ok {
			e.sessions.Clear(sess.UserID)
			return Reply{Messages: []Message{textMessage(textRephrase)}}, nil
		}
		if err := e.gateway.DeleteAppointment(ctx, item.Appointment.AppointmentID); err != nil {
			return Reply{}, err
		}
		e.logger.Info("appointment cancelled",
			"user_id", sess.UserID,
			"appointment_id", item.Appointment.AppointmentID,
		)
		return e.finish(sess, "completed", textMessage(textDeleted)), nil
	case labelNo:
		return e.finish(sess, "declined", textMessage(textKeptAsIs)), nil
	default:
		msgs := append([]Message{textMessage(textRepeatChoice)}, e.promptDeleteConfirm(sess)...)
		e.save(sess)
		return Reply{Messages: msgs}, nil
	}
}
