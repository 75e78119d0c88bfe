package dialog

// Control labels. These double as the exact strings replies are matched
// against, so they live in one place.
const (
	labelCancel = "Cancel"

	labelBackToClinic         = "Back (choose another clinic)"
	labelBackToSpecialization = "Back (choose another specialization)"
	labelBackToDoctor         = "Back (choose another doctor)"
	labelBackToDate           = "Back (choose another date)"

	labelConfirm = "Confirm"
	labelChange  = "Change date and time"

	labelYes = "Yes"
	labelNo  = "No"
)

const (
	textGreeting = "Hello! I can help you book, view, reschedule or cancel clinic appointments. " +
		"Send /new_appointment to get started, or just tell me what you need."
	textHelp = "Commands:\n" +
		"/new_appointment - book an appointment\n" +
		"/my_appointments - show your appointments\n" +
		"/edit_appointment - reschedule an appointment\n" +
		"/delete_appointment - cancel an appointment\n" +
		"/cancel - abandon the current conversation\n" +
		"/help - this message"
	textUnknownCommand = "I don't know that command. Send /help to see what I can do."

	textChooseClinic         = "Choose a clinic:"
	textChooseSpecialization = "Choose a specialization:"
	textChooseDoctor         = "Choose a doctor:"
	textChooseDate           = "Choose a date:"
	textChooseTime           = "Choose a time:"

	textNoClinics         = "Sorry, no clinics are available right now. Please try again later."
	textNoSpecializations = "No specializations are available at that clinic."
	textNoDoctors         = "No doctors match that specialization at the moment."
	textNoTimeslots       = "The doctor has no free slots on that date."

	textInvalidChoice = "Please pick one of the offered options."
	textPastDatetime  = "That date and time has already passed. Please pick a date again."

	textCancelled   = "Okay, cancelled. Nothing was changed."
	textBackendDown = "Something went wrong talking to the clinic. Please try again a bit later."

	textNotRegistered  = "I don't know you yet. Send /start so I can register you first."
	textNoAppointments = "You have no appointments."

	textEditPickAppointment   = "Which appointment would you like to reschedule?"
	textDeletePickAppointment = "Which appointment would you like to cancel?"

	textDeleted      = "The appointment has been cancelled."
	textUpdated      = "The appointment has been rescheduled."
	textKeptAsIs     = "Okay, the appointment stays as it is."
	textRepeatChoice = "Please answer with one of the buttons."

	textOtherQuestion = "I can only help with clinic appointments: booking, viewing, rescheduling " +
		"and cancelling them. Send /help to see the commands."
	textRephrase = "Sorry, I didn't get that. Could you rephrase? Or send /help for the command list."
)
