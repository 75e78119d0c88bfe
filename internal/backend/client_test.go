package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/andreysiniy/tg-med-bot/pkg/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/api", logging.Default())
}

func TestClinicCardsNormalizesCasing(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/ClinicCards", r.URL.Path)
		_ = json.NewEncoder(w).Encode([]ClinicCard{
			{ClinicID: 1, Name: "city medical center", Location: "main street 5"},
		})
	})

	clinics, err := client.ClinicCards(context.Background())
	require.NoError(t, err)
	require.Len(t, clinics, 1)
	assert.Equal(t, "City Medical Center", clinics[0].Name)
	assert.Equal(t, "Main Street 5", clinics[0].Location)
}

func TestClinicCardsByNameLowercasesPath(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/ClinicCards/name/northside", r.URL.Path)
		_ = json.NewEncoder(w).Encode([]ClinicCard{{ClinicID: 2, Name: "northside"}})
	})

	clinics, err := client.ClinicCardsByName(context.Background(), "NorthSide")
	require.NoError(t, err)
	require.Len(t, clinics, 1)
	assert.Equal(t, "Northside", clinics[0].Name)
}

func TestDoctorsFilterQuery(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "3", q.Get("clinicId"))
		assert.Equal(t, "cardiology", q.Get("speciality"))
		assert.Equal(t, "smith", q.Get("name"))
		assert.Equal(t, "2025-01-10T09:30", q.Get("appointmentDate"))
		_ = json.NewEncoder(w).Encode([]DoctorCard{
			{DoctorID: 7, ClinicID: 3, Name: "john smith", Speciality: "cardiology"},
		})
	})

	doctors, err := client.Doctors(context.Background(), DoctorFilter{
		ClinicID:        3,
		Speciality:      "Cardiology",
		Name:            "Smith",
		AppointmentDate: "2025-01-10T09:30",
	})
	require.NoError(t, err)
	require.Len(t, doctors, 1)
	assert.Equal(t, "John Smith", doctors[0].Name)
	assert.Equal(t, "Cardiology", doctors[0].Speciality)
}

func TestSpecializationsAssignPositionalIDs(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/DoctorCards/speciality", r.URL.Path)
		_ = json.NewEncoder(w).Encode([]string{"cardiology", "dermatology"})
	})

	specs, err := client.Specializations(context.Background(), DoctorFilter{})
	require.NoError(t, err)
	require.Len(t, specs, 2)
	assert.Equal(t, Specialization{ID: 0, Name: "Cardiology"}, specs[0])
	assert.Equal(t, Specialization{ID: 1, Name: "Dermatology"}, specs[1])
}

func TestDoctorTimeslotsTruncateSeconds(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/DoctorCards/7/timeslots/2025-01-10", r.URL.Path)
		_ = json.NewEncoder(w).Encode([]string{"09:30:00", "10:00", "bad"})
	})

	slots, err := client.DoctorTimeslots(context.Background(), 7, "2025-01-10")
	require.NoError(t, err)
	assert.Equal(t, []string{"09:30", "10:00"}, slots)
}

func TestCreateAppointment(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/Appointment", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req AppointmentRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "Ivan Petrov", req.PatientName)
		assert.Equal(t, 7, req.DoctorID)

		_ = json.NewEncoder(w).Encode(Appointment{
			AppointmentID:   42,
			PatientName:     req.PatientName,
			DoctorID:        req.DoctorID,
			AppointmentTime: req.AppointmentTime,
			ClinicName:      "city medical center",
			DoctorName:      "john smith",
		})
	})

	created, err := client.CreateAppointment(context.Background(), AppointmentRequest{
		PatientName:     "Ivan Petrov",
		PatientUUID:     "uuid-1",
		Phone:           "+7(999)999-99-99",
		AppointmentTime: "2025-01-10T09:30:00",
		DoctorID:        7,
	})
	require.NoError(t, err)
	assert.Equal(t, 42, created.AppointmentID)
}

func TestUpdateAppointmentAccepts204(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/api/Appointment/42", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})

	err := client.UpdateAppointment(context.Background(), 42, AppointmentRequest{AppointmentID: 42})
	assert.NoError(t, err)
}

func TestDeleteAppointment(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		require.Equal(t, "/api/Appointment/42", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})

	assert.NoError(t, client.DeleteAppointment(context.Background(), 42))
}

func TestNon2xxReturnsStatusError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})

	_, err := client.ClinicCards(context.Background())
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadGateway, statusErr.Code)
}

func TestTitleCase(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"cardiology", "Cardiology"},
		{"city medical center", "City Medical Center"},
		{"ALREADY UPPER", "Already Upper"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TitleCase(tt.in))
	}
}

func TestDoctorsBySpecialityLowercasesPath(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/DoctorCards/speciality/cardiology", r.URL.Path)
		_ = json.NewEncoder(w).Encode([]DoctorCard{
			{DoctorID: 7, Name: "john smith", Speciality: "cardiology"},
		})
	})

	doctors, err := client.DoctorsBySpeciality(context.Background(), "Cardiology")
	require.NoError(t, err)
	require.Len(t, doctors, 1)
	assert.Equal(t, "John Smith", doctors[0].Name)
	assert.Equal(t, "Cardiology", doctors[0].Speciality)
}

func TestAppointmentsListsAll(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/Appointment", r.URL.Path)
		_ = json.NewEncoder(w).Encode([]Appointment{
			{AppointmentID: 1, PatientUUID: "u-1"},
			{AppointmentID: 2, PatientUUID: "u-2"},
		})
	})

	appts, err := client.Appointments(context.Background())
	require.NoError(t, err)
	require.Len(t, appts, 2)
	assert.Equal(t, 2, appts[1].AppointmentID)
}
