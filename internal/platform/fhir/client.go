package fhir

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/fhirportal/fhirportal/pkg/fhirmodels"
)

// ErrUnauthorized is returned on an upstream 401 or 403: the bearer token
// was rejected, so the session that holds it is no longer usable.
var ErrUnauthorized = errors.New("upstream rejected access token")

// StatusError reports any other non-2xx upstream response.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream returned status %d: %s", e.Status, e.Body)
}

// Client issues authenticated reads against a FHIR R4 server. It is safe
// for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the given FHIR base URL. The timeout
// bounds every upstream call; it is never left to the transport default.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// ReadPatient fetches the demographics resource for a patient.
func (c *Client) ReadPatient(ctx context.Context, token, patientID string) (*Patient, error) {
	var p Patient
	if err := c.get(ctx, token, fhirmodels.ResourcePatient+"/"+url.PathEscape(patientID), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// SearchMedicationRequests searches the patient's prescriptions.
func (c *Client) SearchMedicationRequests(ctx context.Context, token, patientID string, count, offset int) (*Bundle[MedicationRequest], error) {
	q := url.Values{}
	q.Set("patient", patientID)
	setPaging(q, count, offset)
	return search[MedicationRequest](ctx, c, token, fhirmodels.ResourceMedicationRequest, q)
}

// SearchObservations searches the patient's observations in one category
// (laboratory or vital-signs), newest first.
func (c *Client) SearchObservations(ctx context.Context, token, patientID, category string, count, offset int) (*Bundle[Observation], error) {
	q := url.Values{}
	q.Set("patient", patientID)
	q.Set("category", category)
	q.Set("_sort", "-date")
	setPaging(q, count, offset)
	return search[Observation](ctx, c, token, fhirmodels.ResourceObservation, q)
}

func setPaging(q url.Values, count, offset int) {
	if count > 0 {
		q.Set("_count", strconv.Itoa(count))
	}
	if offset > 0 {
		q.Set("_offset", strconv.Itoa(offset))
	}
}

// search runs a bundle query. Methods cannot carry type parameters, so this
// lives as a package-level function.
func search[T any](ctx context.Context, c *Client, token, resource string, q url.Values) (*Bundle[T], error) {
	var b Bundle[T]
	if err := c.get(ctx, token, resource, q, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (c *Client) get(ctx context.Context, token, path string, q url.Values, out interface{}) error {
	u := c.baseURL + "/" + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("building upstream request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/fhir+json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("upstream request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		io.Copy(io.Discard, resp.Body)
		return ErrUnauthorized
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Status: resp.StatusCode, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding upstream response: %w", err)
	}
	return nil
}
