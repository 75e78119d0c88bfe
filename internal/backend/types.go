package backend

// ClinicCard describes a clinic as served by the clinic-management backend.
type ClinicCard struct {
	ClinicID int    `json:"clinicId"`
	Name     string `json:"name"`
	Location string `json:"location"`
	Phone    string `json:"phone"`
}

// DoctorCard describes a doctor as served by the clinic-management backend.
type DoctorCard struct {
	DoctorID    int    `json:"doctorId"`
	ClinicID    int    `json:"clinicId"`
	Name        string `json:"name"`
	Speciality  string `json:"speciality"`
	PhoneNumber string `json:"phoneNumber"`
}

// Specialization is a selectable doctor speciality. The backend returns plain
// strings; the gateway assigns positional IDs so callers can resolve choices
// without string comparison.
type Specialization struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Appointment is the backend-owned appointment entity. The create response
// additionally carries denormalized display fields (clinic, doctor, speciality).
type Appointment struct {
	AppointmentID   int    `json:"appointmentId"`
	PatientUUID     string `json:"patientUuid"`
	PatientName     string `json:"patientName"`
	Phone           string `json:"phone"`
	DoctorID        int    `json:"doctorId"`
	AppointmentTime string `json:"appointmentTime"` // ISO-8601, e.g. 2025-01-10T09:30:00

	ClinicName       string `json:"clinicName,omitempty"`
	DoctorName       string `json:"doctorName,omitempty"`
	DoctorSpeciality string `json:"doctorSpeciality,omitempty"`
}

// AppointmentRequest is the mutation body for create and update calls.
type AppointmentRequest struct {
	AppointmentID   int    `json:"appointmentId,omitempty"`
	PatientName     string `json:"patientName"`
	PatientUUID     string `json:"patientUuid"`
	Phone           string `json:"phone"`
	AppointmentTime string `json:"appointmentTime"`
	DoctorID        int    `json:"doctorId"`
}

// DoctorFilter narrows DoctorCards queries. Zero values are omitted.
type DoctorFilter struct {
	ClinicID        int
	Speciality      string
	Name            string
	AppointmentDate string // combined ISO date-time, e.g. 2025-01-10T09:30
}
