// Package fhir is a read-only client for the upstream FHIR R4 API. It models
// only the resource shapes this portal consumes, as closed structs, so the
// rest of the codebase never touches raw JSON payloads.
package fhir

// Coding is one code from a terminology system.
type Coding struct {
	System  string `json:"system,omitempty"`
	Code    string `json:"code,omitempty"`
	Display string `json:"display,omitempty"`
}

// CodeableConcept carries a human-readable text plus zero or more codings.
type CodeableConcept struct {
	Text   string   `json:"text,omitempty"`
	Coding []Coding `json:"coding,omitempty"`
}

// Quantity is a measured amount. Value is a pointer because upstream
// observations may omit it entirely.
type Quantity struct {
	Value *float64 `json:"value,omitempty"`
	Unit  string   `json:"unit,omitempty"`
}

// Reference points at another resource.
type Reference struct {
	Reference string `json:"reference,omitempty"`
	Display   string `json:"display,omitempty"`
}

// HumanName per FHIR R4.
type HumanName struct {
	Text   string   `json:"text,omitempty"`
	Family string   `json:"family,omitempty"`
	Given  []string `json:"given,omitempty"`
}

// Address per FHIR R4.
type Address struct {
	Line       []string `json:"line,omitempty"`
	City       string   `json:"city,omitempty"`
	State      string   `json:"state,omitempty"`
	PostalCode string   `json:"postalCode,omitempty"`
}

// ContactPoint is a phone/email/etc entry.
type ContactPoint struct {
	System string `json:"system,omitempty"`
	Value  string `json:"value,omitempty"`
}

// Identifier is an external id such as an MRN.
type Identifier struct {
	System string `json:"system,omitempty"`
	Value  string `json:"value,omitempty"`
}

// Communication holds a patient's language preferences.
type Communication struct {
	Language  CodeableConcept `json:"language"`
	Preferred bool            `json:"preferred,omitempty"`
}

// Patient is the demographics resource.
type Patient struct {
	ID            string           `json:"id"`
	Name          []HumanName      `json:"name,omitempty"`
	Gender        string           `json:"gender,omitempty"`
	BirthDate     string           `json:"birthDate,omitempty"`
	Identifier    []Identifier     `json:"identifier,omitempty"`
	Address       []Address        `json:"address,omitempty"`
	Telecom       []ContactPoint   `json:"telecom,omitempty"`
	MaritalStatus *CodeableConcept `json:"maritalStatus,omitempty"`
	Communication []Communication  `json:"communication,omitempty"`
}

// Dosage carries prescriber instructions.
type Dosage struct {
	Text string `json:"text,omitempty"`
}

// MedicationRequest is a prescription.
type MedicationRequest struct {
	ID                        string           `json:"id"`
	Status                    string           `json:"status,omitempty"`
	MedicationCodeableConcept *CodeableConcept `json:"medicationCodeableConcept,omitempty"`
	MedicationReference       *Reference       `json:"medicationReference,omitempty"`
	DosageInstruction         []Dosage         `json:"dosageInstruction,omitempty"`
	AuthoredOn                string           `json:"authoredOn,omitempty"`
}

// ReferenceRange bounds a lab result.
type ReferenceRange struct {
	Low  *Quantity `json:"low,omitempty"`
	High *Quantity `json:"high,omitempty"`
	Text string    `json:"text,omitempty"`
}

// ObservationComponent is one component of a composite observation, e.g.
// the systolic part of a blood pressure reading.
type ObservationComponent struct {
	Code          CodeableConcept `json:"code"`
	ValueQuantity *Quantity       `json:"valueQuantity,omitempty"`
}

// Observation covers both lab results and vital signs.
type Observation struct {
	ID                   string                 `json:"id"`
	Status               string                 `json:"status,omitempty"`
	Code                 CodeableConcept        `json:"code"`
	ValueQuantity        *Quantity              `json:"valueQuantity,omitempty"`
	ValueString          string                 `json:"valueString,omitempty"`
	ValueCodeableConcept *CodeableConcept       `json:"valueCodeableConcept,omitempty"`
	ReferenceRange       []ReferenceRange       `json:"referenceRange,omitempty"`
	Interpretation       []CodeableConcept      `json:"interpretation,omitempty"`
	EffectiveDateTime    string                 `json:"effectiveDateTime,omitempty"`
	Component            []ObservationComponent `json:"component,omitempty"`
}

// Bundle is a FHIR searchset for one resource type. Total is a pointer so
// callers can distinguish "zero matches" from "server did not report it".
type Bundle[T any] struct {
	ResourceType string     `json:"resourceType"`
	Type         string     `json:"type,omitempty"`
	Total        *int       `json:"total,omitempty"`
	Entry        []Entry[T] `json:"entry,omitempty"`
}

// Entry wraps one resource in a bundle.
type Entry[T any] struct {
	Resource T `json:"resource"`
}

// Resources unwraps the bundle entries.
func (b *Bundle[T]) Resources() []T {
	out := make([]T, 0, len(b.Entry))
	for _, e := range b.Entry {
		out = append(out, e.Resource)
	}
	return out
}
