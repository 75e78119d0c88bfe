// Package backend provides a typed HTTP client for the remote clinic-management
// API: clinic and doctor cards, specializations, timeslot availability and
// appointment mutations.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/andreysiniy/tg-med-bot/internal/observability/metrics"
	"github.com/andreysiniy/tg-med-bot/pkg/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const defaultTimeout = 15 * time.Second

// Client is a clinic-management backend API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
	tracer     trace.Tracer
	metrics    *metrics.BackendMetrics
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithMetrics attaches request metrics to the client.
func WithMetrics(m *metrics.BackendMetrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithHTTPClient swaps the underlying HTTP client. Mainly for tests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient creates a backend API client rooted at baseURL.
func NewClient(baseURL string, logger *logging.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logger,
		tracer:     otel.Tracer("tgmedbot.internal.backend"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StatusError is returned for non-2xx backend responses.
type StatusError struct {
	Method string
	Path   string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend: %s %s returned status %d", e.Method, e.Path, e.Code)
}

// ClinicCards returns every clinic known to the backend.
func (c *Client) ClinicCards(ctx context.Context) ([]ClinicCard, error) {
	var clinics []ClinicCard
	if err := c.getJSON(ctx, "ClinicCards", nil, &clinics); err != nil {
		return nil, err
	}
	for i := range clinics {
		normalizeClinic(&clinics[i])
	}
	return clinics, nil
}

// ClinicCard returns a single clinic by ID.
func (c *Client) ClinicCard(ctx context.Context, clinicID int) (*ClinicCard, error) {
	var clinic ClinicCard
	if err := c.getJSON(ctx, "ClinicCards/"+strconv.Itoa(clinicID), nil, &clinic); err != nil {
		return nil, err
	}
	normalizeClinic(&clinic)
	return &clinic, nil
}

// ClinicCardsByName looks clinics up by name. The backend matches
// case-insensitively on the lowercased name segment.
func (c *Client) ClinicCardsByName(ctx context.Context, name string) ([]ClinicCard, error) {
	var clinics []ClinicCard
	path := "ClinicCards/name/" + url.PathEscape(strings.ToLower(name))
	if err := c.getJSON(ctx, path, nil, &clinics); err != nil {
		return nil, err
	}
	for i := range clinics {
		normalizeClinic(&clinics[i])
	}
	return clinics, nil
}

// DoctorCard returns a single doctor by ID.
func (c *Client) DoctorCard(ctx context.Context, doctorID int) (*DoctorCard, error) {
	var doctor DoctorCard
	if err := c.getJSON(ctx, "DoctorCards/"+strconv.Itoa(doctorID), nil, &doctor); err != nil {
		return nil, err
	}
	normalizeDoctor(&doctor)
	return &doctor, nil
}

// Doctors returns doctors matching the filter. An empty filter returns all.
func (c *Client) Doctors(ctx context.Context, filter DoctorFilter) ([]DoctorCard, error) {
	var doctors []DoctorCard
	if err := c.getJSON(ctx, "DoctorCards", filter.query(), &doctors); err != nil {
		return nil, err
	}
	for i := range doctors {
		normalizeDoctor(&doctors[i])
	}
	return doctors, nil
}

// DoctorsBySpeciality returns every doctor practicing the given speciality.
func (c *Client) DoctorsBySpeciality(ctx context.Context, speciality string) ([]DoctorCard, error) {
	var doctors []DoctorCard
	path := "DoctorCards/speciality/" + url.PathEscape(strings.ToLower(speciality))
	if err := c.getJSON(ctx, path, nil, &doctors); err != nil {
		return nil, err
	}
	for i := range doctors {
		normalizeDoctor(&doctors[i])
	}
	return doctors, nil
}

// Specializations returns the specialities available under the filter. The
// backend serves a list of lowercase strings; they come back title-cased with
// positional IDs.
func (c *Client) Specializations(ctx context.Context, filter DoctorFilter) ([]Specialization, error) {
	var names []string
	if err := c.getJSON(ctx, "DoctorCards/speciality", filter.query(), &names); err != nil {
		return nil, err
	}
	specs := make([]Specialization, 0, len(names))
	for i, name := range names {
		specs = append(specs, Specialization{ID: i, Name: TitleCase(name)})
	}
	return specs, nil
}

// DoctorTimeslots returns the doctor's free slots for a date as HH:MM strings.
// The backend serves HH:MM[:SS]; seconds are dropped.
func (c *Client) DoctorTimeslots(ctx context.Context, doctorID int, date string) ([]string, error) {
	var raw []string
	path := fmt.Sprintf("DoctorCards/%d/timeslots/%s", doctorID, url.PathEscape(date))
	if err := c.getJSON(ctx, path, nil, &raw); err != nil {
		return nil, err
	}
	slots := make([]string, 0, len(raw))
	for _, s := range raw {
		if len(s) >= 5 {
			slots = append(slots, s[:5])
		}
	}
	return slots, nil
}

// Appointments returns every appointment known to the backend.
func (c *Client) Appointments(ctx context.Context) ([]Appointment, error) {
	var appointments []Appointment
	if err := c.getJSON(ctx, "Appointment", nil, &appointments); err != nil {
		return nil, err
	}
	return appointments, nil
}

// AppointmentsByUser returns the appointments booked for a patient UUID.
func (c *Client) AppointmentsByUser(ctx context.Context, patientUUID string) ([]Appointment, error) {
	var appointments []Appointment
	path := "Appointment/user/" + url.PathEscape(patientUUID)
	if err := c.getJSON(ctx, path, nil, &appointments); err != nil {
		return nil, err
	}
	return appointments, nil
}

// Appointment returns a single appointment by ID.
func (c *Client) Appointment(ctx context.Context, appointmentID int) (*Appointment, error) {
	var appointment Appointment
	if err := c.getJSON(ctx, "Appointment/"+strconv.Itoa(appointmentID), nil, &appointment); err != nil {
		return nil, err
	}
	return &appointment, nil
}

// CreateAppointment submits a new appointment and returns the created entity.
func (c *Client) CreateAppointment(ctx context.Context, req AppointmentRequest) (*Appointment, error) {
	var created Appointment
	if err := c.sendJSON(ctx, http.MethodPost, "Appointment", req, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateAppointment replaces an existing appointment. A 204 response is a
// bodyless success.
func (c *Client) UpdateAppointment(ctx context.Context, appointmentID int, req AppointmentRequest) error {
	path := "Appointment/" + strconv.Itoa(appointmentID)
	return c.sendJSON(ctx, http.MethodPut, path, req, nil)
}

// DeleteAppointment removes an appointment.
func (c *Client) DeleteAppointment(ctx context.Context, appointmentID int) error {
	path := "Appointment/" + strconv.Itoa(appointmentID)
	return c.sendJSON(ctx, http.MethodDelete, path, nil, nil)
}

func (f DoctorFilter) query() url.Values {
	q := url.Values{}
	if f.ClinicID > 0 {
		q.Set("clinicId", strconv.Itoa(f.ClinicID))
	}
	if f.Speciality != "" {
		q.Set("speciality", strings.ToLower(f.Speciality))
	}
	if f.Name != "" {
		q.Set("name", strings.ToLower(f.Name))
	}
	if f.AppointmentDate != "" {
		q.Set("appointmentDate", f.AppointmentDate)
	}
	if len(q) == 0 {
		return nil
	}
	return q
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

func (c *Client) sendJSON(ctx context.Context, method, path string, body, out any) error {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("backend: failed to encode %s %s body: %w", method, path, err)
		}
		payload = bytes.NewReader(data)
	}
	return c.do(ctx, method, path, nil, payload, out)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body io.Reader, out any) error {
	ctx, span := c.tracer.Start(ctx, "backend."+method+" "+path)
	defer span.End()

	reqURL := c.baseURL + "/" + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("backend: failed to build %s %s request: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		c.metrics.ObserveRequest(method, path, "error", time.Since(start).Seconds())
		return fmt.Errorf("backend: %s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.metrics.ObserveRequest(method, path, strconv.Itoa(resp.StatusCode), time.Since(start).Seconds())
	c.logger.Debug("backend request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		err := &StatusError{Method: method, Path: path, Code: resp.StatusCode}
		span.RecordError(err)
		return err
	}
	if resp.StatusCode == http.StatusNoContent || out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		span.RecordError(err)
		return fmt.Errorf("backend: failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}

func normalizeClinic(c *ClinicCard) {
	c.Name = TitleCase(c.Name)
	c.Location = TitleCase(c.Location)
}

func normalizeDoctor(d *DoctorCard) {
	d.Name = TitleCase(d.Name)
	d.Speciality = TitleCase(d.Speciality)
}

// TitleCase upper-cases the first letter of every space-separated word and
// lower-cases the rest, matching how the bot displays backend text.
func TitleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}
