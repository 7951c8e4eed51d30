package records

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/fhirportal/fhirportal/internal/platform/fhir"
	"github.com/fhirportal/fhirportal/internal/platform/session"
	"github.com/fhirportal/fhirportal/pkg/pagination"
)

// ---------------------------------------------------------------------------
// Test helpers
// ---------------------------------------------------------------------------

const medicationsBundle = `{
	"resourceType": "Bundle",
	"type": "searchset",
	"total": 3,
	"entry": [
		{"resource": {"id": "m1", "status": "active",
			"medicationCodeableConcept": {"text": "Lisinopril 10 MG"}}},
		{"resource": {"id": "m2", "status": "active",
			"medicationCodeableConcept": {"text": "Metformin 500 MG"}}},
		{"resource": {"id": "m3", "status": "stopped",
			"medicationCodeableConcept": {"text": "Atorvastatin 20 MG"}}}
	]
}`

// newTestService seeds one valid session against a fake upstream and
// returns the service, the store, and the session id.
func newTestService(t *testing.T, upstream http.HandlerFunc) (*Service, *session.MemoryStore, string) {
	t.Helper()
	ts := httptest.NewServer(upstream)
	t.Cleanup(ts.Close)

	store := session.NewMemoryStore()
	id, err := store.Create(context.Background(), session.Session{
		AccessToken: "tok-1",
		PatientID:   "p1",
		TokenExpiry: time.Now().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("seeding session failed: %v", err)
	}

	svc := NewService(store, fhir.NewClient(ts.URL, 5*time.Second), zerolog.Nop())
	return svc, store, id
}

func jsonHandler(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/fhir+json")
		w.Write([]byte(body))
	}
}

// ---------------------------------------------------------------------------
// Session resolution
// ---------------------------------------------------------------------------

func TestService_Fetch_InvalidSession(t *testing.T) {
	svc, _, _ := newTestService(t, jsonHandler(medicationsBundle))

	for _, kind := range []Kind{KindDemographics, KindMedications, KindLabs, KindVitals} {
		_, err := svc.Fetch(context.Background(), "no-such-session", kind, pagination.Params{Page: 1, PageSize: 10})
		if !errors.Is(err, ErrSessionInvalid) {
			t.Errorf("%s: expected ErrSessionInvalid, got %v", kind, err)
		}
	}
}

func TestService_Fetch_UnknownKind(t *testing.T) {
	svc, _, id := newTestService(t, jsonHandler(medicationsBundle))

	_, err := svc.Fetch(context.Background(), id, Kind("allergies"), pagination.Params{Page: 1, PageSize: 10})
	if !errors.Is(err, ErrUnknownKind) {
		t.Errorf("expected ErrUnknownKind, got %v", err)
	}
}

func TestService_Unauthorized_DeletesSession(t *testing.T) {
	svc, store, id := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := svc.Medications(context.Background(), id, pagination.Params{Page: 1, PageSize: 10})
	if !errors.Is(err, ErrSessionInvalid) {
		t.Fatalf("expected ErrSessionInvalid on upstream 401, got %v", err)
	}

	// The stale session must be gone so the browser is forced to re-login.
	if _, err := store.Get(context.Background(), id); !errors.Is(err, session.ErrNotFound) {
		t.Errorf("expected session to be deleted after 401, got %v", err)
	}
}

func TestService_UpstreamError_KeepsSession(t *testing.T) {
	svc, store, id := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := svc.Labs(context.Background(), id, pagination.Params{Page: 1, PageSize: 10})
	var upstreamErr *UpstreamError
	if !errors.As(err, &upstreamErr) {
		t.Fatalf("expected *UpstreamError, got %v", err)
	}
	if upstreamErr.Status != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", upstreamErr.Status)
	}

	if _, err := store.Get(context.Background(), id); err != nil {
		t.Errorf("session must survive a non-auth upstream failure: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Pagination
// ---------------------------------------------------------------------------

func TestService_Medications_ReportedTotal(t *testing.T) {
	svc, _, id := newTestService(t, jsonHandler(medicationsBundle))

	page, err := svc.Medications(context.Background(), id, pagination.Params{Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("Medications failed: %v", err)
	}
	if len(page.Items) != 3 {
		t.Errorf("expected 3 items, got %d", len(page.Items))
	}
	if page.Total != 3 {
		t.Errorf("expected total 3, got %d", page.Total)
	}
	if page.Items[0].Name != "Lisinopril 10 MG" {
		t.Errorf("unexpected first item %+v", page.Items[0])
	}
}

func TestService_PageSizeClamping(t *testing.T) {
	var gotCount string
	svc, _, id := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		gotCount = r.URL.Query().Get("_count")
		jsonHandler(`{"resourceType": "Bundle", "type": "searchset", "total": 0}`)(w, r)
	})

	page, err := svc.Medications(context.Background(), id, pagination.Params{Page: 1, PageSize: 1000})
	if err != nil {
		t.Fatalf("Medications failed: %v", err)
	}
	if page.PageSize != 50 {
		t.Errorf("expected page_size clamped to 50, got %d", page.PageSize)
	}
	if gotCount != "50" {
		t.Errorf("expected upstream _count=50, got %q", gotCount)
	}

	page, err = svc.Medications(context.Background(), id, pagination.Params{Page: 1, PageSize: -5})
	if err != nil {
		t.Fatalf("Medications failed: %v", err)
	}
	if page.PageSize != 1 {
		t.Errorf("expected page_size clamped to 1, got %d", page.PageSize)
	}
}

func TestService_Labs_ShortPageEndsCount(t *testing.T) {
	// Bundle.total is absent but the requested page came back short, which
	// already proves the collection ends here. No extra upstream calls.
	var calls int
	svc, _, id := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		jsonHandler(`{
			"resourceType": "Bundle",
			"type": "searchset",
			"entry": [
				{"resource": {"id": "o1", "status": "final", "code": {"text": "Hemoglobin"},
					"valueQuantity": {"value": 13.2, "unit": "g/dL"}}}
			]
		}`)(w, r)
	})

	page, err := svc.Labs(context.Background(), id, pagination.Params{Page: 2, PageSize: 5})
	if err != nil {
		t.Fatalf("Labs failed: %v", err)
	}
	if page.Total != 6 {
		t.Errorf("expected total 6 (offset 5 + 1 item, collection exhausted), got %d", page.Total)
	}
	if calls != 1 {
		t.Errorf("a short page needs no counting calls, got %d upstream calls", calls)
	}
}

func TestService_Medications_CountsWhenTotalAbsent(t *testing.T) {
	// Bundle.total is absent and the requested page is full, so the service
	// must walk the rest of the collection; reporting only what it has seen
	// would end paging one page early.
	const collectionSize = 25
	var calls []string
	svc, _, id := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		count, _ := strconv.Atoi(r.URL.Query().Get("_count"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("_offset"))
		calls = append(calls, fmt.Sprintf("%d@%d", count, offset))

		var sb strings.Builder
		sb.WriteString(`{"resourceType": "Bundle", "type": "searchset", "entry": [`)
		for i := offset; i < collectionSize && i < offset+count; i++ {
			if i > offset {
				sb.WriteString(",")
			}
			fmt.Fprintf(&sb, `{"resource": {"id": "m%d", "status": "active",
				"medicationCodeableConcept": {"text": "Med %d"}}}`, i, i)
		}
		sb.WriteString(`]}`)
		jsonHandler(sb.String())(w, r)
	})

	params := pagination.Params{Page: 1, PageSize: 10}
	page, err := svc.Medications(context.Background(), id, params)
	if err != nil {
		t.Fatalf("Medications failed: %v", err)
	}
	if len(page.Items) != 10 {
		t.Fatalf("expected a full page of 10, got %d", len(page.Items))
	}
	if page.Total != collectionSize {
		t.Errorf("expected total %d covering the whole collection, got %d", collectionSize, page.Total)
	}
	if !params.HasNext(page.Total) {
		t.Error("expected HasNext to be true after a full first page of 25")
	}
	if len(calls) != 2 || calls[0] != "10@0" {
		t.Errorf("expected the page fetch plus one counting call, got %v", calls)
	}
}

func TestService_Demographics_SingleRecord(t *testing.T) {
	svc, _, id := newTestService(t, jsonHandler(`{
		"resourceType": "Patient", "id": "p1", "gender": "female"
	}`))

	page, err := svc.Demographics(context.Background(), id, pagination.Params{Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("Demographics failed: %v", err)
	}
	if len(page.Items) != 1 || page.Total != 1 {
		t.Fatalf("expected one record with total 1, got %d/%d", len(page.Items), page.Total)
	}
	if page.Items[0].Gender != "Female" {
		t.Errorf("unexpected record %+v", page.Items[0])
	}

	// Pages past the first are empty but still report total 1.
	page, err = svc.Demographics(context.Background(), id, pagination.Params{Page: 2, PageSize: 10})
	if err != nil {
		t.Fatalf("Demographics page 2 failed: %v", err)
	}
	if len(page.Items) != 0 || page.Total != 1 {
		t.Errorf("expected empty page 2 with total 1, got %d/%d", len(page.Items), page.Total)
	}
}

func TestService_Vitals_CategoryQuery(t *testing.T) {
	var gotCategory string
	svc, _, id := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		gotCategory = r.URL.Query().Get("category")
		jsonHandler(`{"resourceType": "Bundle", "type": "searchset", "total": 0}`)(w, r)
	})

	if _, err := svc.Vitals(context.Background(), id, pagination.Params{Page: 1, PageSize: 10}); err != nil {
		t.Fatalf("Vitals failed: %v", err)
	}
	if gotCategory != "vital-signs" {
		t.Errorf("expected category vital-signs, got %q", gotCategory)
	}
}

func TestService_Logout_Idempotent(t *testing.T) {
	svc, store, id := newTestService(t, jsonHandler(medicationsBundle))

	if err := svc.Logout(context.Background(), id); err != nil {
		t.Fatalf("first logout failed: %v", err)
	}
	if err := svc.Logout(context.Background(), id); err != nil {
		t.Fatalf("second logout failed: %v", err)
	}
	if store.Len() != 0 {
		t.Error("expected session to be removed")
	}
}
