package records

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/fhirportal/fhirportal/internal/platform/fhir"
	"github.com/fhirportal/fhirportal/internal/platform/session"
	"github.com/fhirportal/fhirportal/pkg/fhirmodels"
	"github.com/fhirportal/fhirportal/pkg/pagination"
)

// ErrSessionInvalid is returned when the session id is unknown, deleted, or
// its token has expired or been rejected upstream. The caller should
// restart the login flow.
var ErrSessionInvalid = errors.New("session invalid or expired")

// ErrUnknownKind is returned for a resource kind outside the supported set.
var ErrUnknownKind = errors.New("unknown resource kind")

// UpstreamError reports a non-auth upstream failure: a 5xx, an unexpected
// status, or an undecodable payload. The session stays valid.
type UpstreamError struct {
	Status int
	Err    error
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("upstream error (status %d): %v", e.Status, e.Err)
	}
	return fmt.Sprintf("upstream error: %v", e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Service proxies paginated reads of a patient's clinical collections.
// It holds no per-request state and performs no writes to the session store
// other than deleting sessions whose tokens the upstream has rejected.
type Service struct {
	sessions session.Store
	client   *fhir.Client
	logger   zerolog.Logger
}

func NewService(sessions session.Store, client *fhir.Client, logger zerolog.Logger) *Service {
	return &Service{sessions: sessions, client: client, logger: logger}
}

// Fetch returns one page of the requested collection. Page parameters are
// clamped before any upstream call.
func (s *Service) Fetch(ctx context.Context, sessionID string, kind Kind, params pagination.Params) (interface{}, error) {
	switch kind {
	case KindDemographics:
		return s.Demographics(ctx, sessionID, params)
	case KindMedications:
		return s.Medications(ctx, sessionID, params)
	case KindLabs:
		return s.Labs(ctx, sessionID, params)
	case KindVitals:
		return s.Vitals(ctx, sessionID, params)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
}

// Demographics reads the Patient resource. It is a single-resource
// collection: page 1 holds the one record, later pages are empty, total is
// always 1.
func (s *Service) Demographics(ctx context.Context, sessionID string, params pagination.Params) (*pagination.PageResult[Demographics], error) {
	params = pagination.Clamp(params.Page, params.PageSize)
	sess, err := s.resolveSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	p, err := s.client.ReadPatient(ctx, sess.AccessToken, sess.PatientID)
	if err != nil {
		return nil, s.mapUpstreamError(ctx, sessionID, err)
	}

	items := []Demographics{}
	if params.Page == 1 {
		items = append(items, normalizeDemographics(p))
	}
	return pagination.NewPage(items, params, 1), nil
}

// Medications returns one page of the patient's prescriptions.
func (s *Service) Medications(ctx context.Context, sessionID string, params pagination.Params) (*pagination.PageResult[Medication], error) {
	params = pagination.Clamp(params.Page, params.PageSize)
	sess, err := s.resolveSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	bundle, err := s.client.SearchMedicationRequests(ctx, sess.AccessToken, sess.PatientID, params.PageSize, params.Offset())
	if err != nil {
		return nil, s.mapUpstreamError(ctx, sessionID, err)
	}

	items := make([]Medication, 0, len(bundle.Entry))
	for _, m := range bundle.Resources() {
		items = append(items, normalizeMedication(m))
	}

	total, err := s.resolveTotal(ctx, bundle.Total, params, len(items), func(ctx context.Context, count, offset int) (int, *int, error) {
		b, err := s.client.SearchMedicationRequests(ctx, sess.AccessToken, sess.PatientID, count, offset)
		if err != nil {
			return 0, nil, err
		}
		return len(b.Entry), b.Total, nil
	})
	if err != nil {
		return nil, s.mapUpstreamError(ctx, sessionID, err)
	}
	return pagination.NewPage(items, params, total), nil
}

// Labs returns one page of laboratory results, newest first.
func (s *Service) Labs(ctx context.Context, sessionID string, params pagination.Params) (*pagination.PageResult[LabResult], error) {
	bundle, params, sess, err := s.searchObservations(ctx, sessionID, fhirmodels.ObsCategoryLaboratory, params)
	if err != nil {
		return nil, err
	}

	items := make([]LabResult, 0, len(bundle.Entry))
	for _, o := range bundle.Resources() {
		items = append(items, normalizeLab(o))
	}

	total, err := s.resolveTotal(ctx, bundle.Total, params, len(items), s.observationCounter(sess, fhirmodels.ObsCategoryLaboratory))
	if err != nil {
		return nil, s.mapUpstreamError(ctx, sessionID, err)
	}
	return pagination.NewPage(items, params, total), nil
}

// Vitals returns one page of vital signs, newest first.
func (s *Service) Vitals(ctx context.Context, sessionID string, params pagination.Params) (*pagination.PageResult[VitalSign], error) {
	bundle, params, sess, err := s.searchObservations(ctx, sessionID, fhirmodels.ObsCategoryVitalSigns, params)
	if err != nil {
		return nil, err
	}

	items := make([]VitalSign, 0, len(bundle.Entry))
	for _, o := range bundle.Resources() {
		items = append(items, normalizeVital(o))
	}

	total, err := s.resolveTotal(ctx, bundle.Total, params, len(items), s.observationCounter(sess, fhirmodels.ObsCategoryVitalSigns))
	if err != nil {
		return nil, s.mapUpstreamError(ctx, sessionID, err)
	}
	return pagination.NewPage(items, params, total), nil
}

// Logout destroys the session. Absent ids are a no-op.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	return s.sessions.Delete(ctx, sessionID)
}

func (s *Service) searchObservations(ctx context.Context, sessionID, category string, params pagination.Params) (*fhir.Bundle[fhir.Observation], pagination.Params, session.Session, error) {
	params = pagination.Clamp(params.Page, params.PageSize)
	sess, err := s.resolveSession(ctx, sessionID)
	if err != nil {
		return nil, params, sess, err
	}

	bundle, err := s.client.SearchObservations(ctx, sess.AccessToken, sess.PatientID, category, params.PageSize, params.Offset())
	if err != nil {
		return nil, params, sess, s.mapUpstreamError(ctx, sessionID, err)
	}
	return bundle, params, sess, nil
}

// observationCounter adapts SearchObservations to the counting walk.
func (s *Service) observationCounter(sess session.Session, category string) pageFetch {
	return func(ctx context.Context, count, offset int) (int, *int, error) {
		b, err := s.client.SearchObservations(ctx, sess.AccessToken, sess.PatientID, category, count, offset)
		if err != nil {
			return 0, nil, err
		}
		return len(b.Entry), b.Total, nil
	}
}

func (s *Service) resolveSession(ctx context.Context, sessionID string) (session.Session, error) {
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return session.Session{}, ErrSessionInvalid
	}
	return sess, nil
}

// mapUpstreamError translates client errors into the service taxonomy. A
// 401/403 means the token is stale: the session is proactively deleted so
// the browser re-authenticates instead of failing repeatedly.
func (s *Service) mapUpstreamError(ctx context.Context, sessionID string, err error) error {
	if errors.Is(err, fhir.ErrUnauthorized) {
		s.logger.Info().Msg("upstream rejected token, invalidating session")
		_ = s.sessions.Delete(ctx, sessionID)
		return ErrSessionInvalid
	}

	var statusErr *fhir.StatusError
	if errors.As(err, &statusErr) {
		return &UpstreamError{Status: statusErr.Status, Err: err}
	}
	return &UpstreamError{Err: err}
}

// countPageSize bounds each request made while walking the remainder of a
// collection whose bundle omits total.
const countPageSize = 100

// pageFetch retrieves one counting page: how many entries it held and the
// bundle-reported total, if any.
type pageFetch func(ctx context.Context, count, offset int) (int, *int, error)

// resolveTotal returns the exact size of the collection. A bundle-reported
// total is authoritative. Otherwise the collection is counted exhaustively:
// a short requested page already proves exhaustion, a full one means the
// pages past it are walked until a short page ends the collection. Slower
// than an estimate, but the total must cover all matching resources, not
// just the pages seen so far.
func (s *Service) resolveTotal(ctx context.Context, reported *int, params pagination.Params, pageLen int, fetch pageFetch) (int, error) {
	if reported != nil {
		return *reported, nil
	}
	total := params.Offset() + pageLen
	if pageLen < params.PageSize {
		return total, nil
	}
	for {
		n, rep, err := fetch(ctx, countPageSize, total)
		if err != nil {
			return 0, err
		}
		if rep != nil {
			return *rep, nil
		}
		total += n
		if n < countPageSize {
			return total, nil
		}
	}
}
