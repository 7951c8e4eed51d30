// Package records fetches a patient's clinical collections from the
// upstream FHIR server on behalf of an authenticated session and reshapes
// them into flat, stable-schema records for the presentation layer.
package records

import (
	"fmt"
	"strings"

	"github.com/fhirportal/fhirportal/internal/platform/fhir"
	"github.com/fhirportal/fhirportal/pkg/fhirmodels"
)

// Kind names one of the clinical collections this service exposes.
type Kind string

const (
	KindDemographics Kind = "demographics"
	KindMedications  Kind = "medications"
	KindLabs         Kind = "labs"
	KindVitals       Kind = "vitals"
)

// Fallback markers for absent upstream fields. Keys are always present in
// the JSON output; consumers never need to probe for missing fields.
const (
	unknownValue      = "Unknown"
	notAvailable      = "N/A"
	noAddress         = "No address on file"
	unknownMedication = "Unknown Medication"
	noDosage          = "No dosage information"
	unknownTest       = "Unknown Test"
	unknownVital      = "Unknown Vital"
	unknownDate       = "Unknown date"
	defaultLanguage   = "English"
	normalFlag        = "Normal"
)

// Demographics is the flattened Patient resource.
type Demographics struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Gender        string `json:"gender"`
	BirthDate     string `json:"birthDate"`
	Identifier    string `json:"identifier"`
	Address       string `json:"address"`
	Phone         string `json:"phone"`
	Email         string `json:"email"`
	MaritalStatus string `json:"maritalStatus"`
	Language      string `json:"language"`
}

// Medication is the flattened MedicationRequest resource.
type Medication struct {
	Name       string `json:"name"`
	Dosage     string `json:"dosage"`
	Status     string `json:"status"`
	AuthoredOn string `json:"authoredOn"`
}

// LabResult is the flattened laboratory Observation.
type LabResult struct {
	Name           string `json:"name"`
	Value          string `json:"value"`
	ReferenceRange string `json:"referenceRange"`
	Status         string `json:"status"`
	Date           string `json:"date"`
	Interpretation string `json:"interpretation"`
}

// VitalComponent is one part of a composite vital such as blood pressure.
type VitalComponent struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Unit  string `json:"unit"`
}

// VitalSign is the flattened vital-signs Observation.
type VitalSign struct {
	Name       string           `json:"name"`
	Value      string           `json:"value"`
	Date       string           `json:"date"`
	Status     string           `json:"status"`
	Components []VitalComponent `json:"components"`
}

// ---------------------------------------------------------------------------
// Normalization
// ---------------------------------------------------------------------------

func normalizeDemographics(p *fhir.Patient) Demographics {
	d := Demographics{
		ID:            p.ID,
		Name:          unknownValue,
		Gender:        unknownValue,
		BirthDate:     unknownValue,
		Identifier:    notAvailable,
		Address:       formatAddress(p.Address),
		Phone:         telecomValue(p.Telecom, fhirmodels.TelecomPhone),
		Email:         telecomValue(p.Telecom, fhirmodels.TelecomEmail),
		MaritalStatus: unknownValue,
		Language:      preferredLanguage(p.Communication),
	}

	if len(p.Name) > 0 {
		n := p.Name[0]
		full := strings.TrimSpace(strings.Join(n.Given, " ") + " " + n.Family)
		if full == "" {
			full = n.Text
		}
		if full != "" {
			d.Name = full
		}
	}
	if p.Gender != "" {
		d.Gender = titleFirst(p.Gender)
	}
	if p.BirthDate != "" {
		d.BirthDate = p.BirthDate
	}
	if len(p.Identifier) > 0 && p.Identifier[0].Value != "" {
		d.Identifier = p.Identifier[0].Value
	}
	if p.MaritalStatus != nil && p.MaritalStatus.Text != "" {
		d.MaritalStatus = p.MaritalStatus.Text
	}
	return d
}

func normalizeMedication(m fhir.MedicationRequest) Medication {
	med := Medication{
		Name:       unknownMedication,
		Dosage:     noDosage,
		Status:     titleFirst(orDefault(m.Status, "unknown")),
		AuthoredOn: orDefault(m.AuthoredOn, unknownDate),
	}

	if m.MedicationCodeableConcept != nil && m.MedicationCodeableConcept.Text != "" {
		med.Name = m.MedicationCodeableConcept.Text
	} else if m.MedicationReference != nil && m.MedicationReference.Display != "" {
		med.Name = m.MedicationReference.Display
	}
	if len(m.DosageInstruction) > 0 && m.DosageInstruction[0].Text != "" {
		med.Dosage = m.DosageInstruction[0].Text
	}
	return med
}

func normalizeLab(o fhir.Observation) LabResult {
	lab := LabResult{
		Name:           orDefault(o.Code.Text, unknownTest),
		Value:          observationValue(o),
		ReferenceRange: notAvailable,
		Status:         titleFirst(orDefault(o.Status, "unknown")),
		Date:           orDefault(o.EffectiveDateTime, unknownDate),
		Interpretation: normalFlag,
	}

	if len(o.ReferenceRange) > 0 {
		rr := o.ReferenceRange[0]
		switch {
		case rr.Low != nil && rr.Low.Value != nil && rr.High != nil && rr.High.Value != nil:
			lab.ReferenceRange = fmt.Sprintf("%v - %v", *rr.Low.Value, *rr.High.Value)
		case rr.Text != "":
			lab.ReferenceRange = rr.Text
		}
	}

	if len(o.Interpretation) > 0 {
		in := o.Interpretation[0]
		if in.Text != "" {
			lab.Interpretation = in.Text
		} else if len(in.Coding) > 0 && in.Coding[0].Display != "" {
			lab.Interpretation = in.Coding[0].Display
		}
	}
	return lab
}

func normalizeVital(o fhir.Observation) VitalSign {
	v := VitalSign{
		Name:       orDefault(o.Code.Text, unknownVital),
		Value:      notAvailable,
		Date:       orDefault(o.EffectiveDateTime, unknownDate),
		Status:     titleFirst(orDefault(o.Status, "unknown")),
		Components: []VitalComponent{},
	}

	switch {
	case o.ValueQuantity != nil && o.ValueQuantity.Value != nil:
		v.Value = strings.TrimSpace(fmt.Sprintf("%v %s", *o.ValueQuantity.Value, o.ValueQuantity.Unit))
	case len(o.Component) > 0:
		// Composite vitals like blood pressure: join component values and
		// expose the per-component breakdown.
		parts := make([]string, 0, len(o.Component))
		unit := ""
		for _, comp := range o.Component {
			vc := VitalComponent{Name: comp.Code.Text}
			if comp.ValueQuantity != nil && comp.ValueQuantity.Value != nil {
				vc.Value = fmt.Sprintf("%v", *comp.ValueQuantity.Value)
				vc.Unit = comp.ValueQuantity.Unit
				parts = append(parts, vc.Value)
				if unit == "" {
					unit = comp.ValueQuantity.Unit
				}
			}
			v.Components = append(v.Components, vc)
		}
		if len(parts) > 0 {
			v.Value = strings.TrimSpace(strings.Join(parts, "/") + " " + unit)
		}
	}
	return v
}

// observationValue renders an Observation's polymorphic value[x] as text.
func observationValue(o fhir.Observation) string {
	switch {
	case o.ValueQuantity != nil && o.ValueQuantity.Value != nil:
		return strings.TrimSpace(fmt.Sprintf("%v %s", *o.ValueQuantity.Value, o.ValueQuantity.Unit))
	case o.ValueString != "":
		return o.ValueString
	case o.ValueCodeableConcept != nil && o.ValueCodeableConcept.Text != "":
		return o.ValueCodeableConcept.Text
	}
	return notAvailable
}

func formatAddress(addrs []fhir.Address) string {
	if len(addrs) == 0 {
		return noAddress
	}
	a := addrs[0]
	parts := append([]string{}, a.Line...)
	locality := strings.TrimSpace(fmt.Sprintf("%s, %s %s", a.City, a.State, a.PostalCode))
	locality = strings.Trim(locality, ", ")
	if locality != "" {
		parts = append(parts, locality)
	}
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return noAddress
	}
	return strings.Join(out, ", ")
}

func telecomValue(telecoms []fhir.ContactPoint, system string) string {
	for _, tc := range telecoms {
		if tc.System == system && tc.Value != "" {
			return tc.Value
		}
	}
	return notAvailable
}

func preferredLanguage(comms []fhir.Communication) string {
	for _, c := range comms {
		if c.Preferred && c.Language.Text != "" {
			return c.Language.Text
		}
	}
	return defaultLanguage
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func titleFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
