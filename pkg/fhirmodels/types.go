package fhirmodels

// Common FHIR R4 value set constants used across the application.

// ObservationCategory codes.
const (
	ObsCategoryVitalSigns    = "vital-signs"
	ObsCategoryLaboratory    = "laboratory"
	ObsCategoryImaging       = "imaging"
	ObsCategorySocialHistory = "social-history"
	ObsCategorySurvey        = "survey"
	ObsCategoryExam          = "exam"
)

// ObservationStatus values per FHIR R4.
const (
	ObsStatusRegistered  = "registered"
	ObsStatusPreliminary = "preliminary"
	ObsStatusFinal       = "final"
	ObsStatusAmended     = "amended"
	ObsStatusCorrected   = "corrected"
	ObsStatusCancelled   = "cancelled"
)

// MedicationRequestStatus values per FHIR R4.
const (
	MedStatusActive    = "active"
	MedStatusOnHold    = "on-hold"
	MedStatusCancelled = "cancelled"
	MedStatusCompleted = "completed"
	MedStatusStopped   = "stopped"
	MedStatusDraft     = "draft"
)

// ResourceType names for the resources this service reads.
const (
	ResourcePatient           = "Patient"
	ResourceMedicationRequest = "MedicationRequest"
	ResourceObservation       = "Observation"
	ResourceBundle            = "Bundle"
)

// TelecomSystem codes from the ContactPoint value set.
const (
	TelecomPhone = "phone"
	TelecomEmail = "email"
	TelecomFax   = "fax"
	TelecomSMS   = "sms"
)
