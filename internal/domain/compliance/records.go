package compliance

import "time"

// Status is the three-way verdict shown to the user.
type Status string

const (
	StatusCompliant          Status = "Compliant"
	StatusNonCompliant       Status = "NonCompliant"
	StatusPendingOrCompliant Status = "PendingOrCompliant"
)

// Phase is the correlator state. Polling is the only transient phase.
type Phase string

const (
	PhasePolling  Phase = "polling"
	PhaseMatched  Phase = "matched"
	PhaseTimedOut Phase = "timed_out"
	PhaseFailed   Phase = "failed"
)

// Placeholder fills display fields when no profile exists for a matched employee.
const Placeholder = "unknown"

// UploadRecord is one stored image.
type UploadRecord struct {
	ImageKey    string    `json:"image_key"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// OutcomeRecord is the pipeline's latest finding for one employee. It is keyed by
// EmployeeID, so LastImageKey only tells which upload produced the current values.
type OutcomeRecord struct {
	EmployeeID               string
	CumulativeViolationCount int
	LastMissingItems         string
	// MissingItemsMalformed is set by adapters when the stored attribute had a
	// shape that cannot be read as text.
	MissingItemsMalformed bool
	LastImageKey          string
	LastUpdatedAt         string
}

// ProfileRecord is an employee directory entry.
type ProfileRecord struct {
	EmployeeID  string `json:"employee_id" yaml:"employee_id" toml:"employee_id"`
	DisplayName string `json:"name" yaml:"name" toml:"name"`
	Department  string `json:"department" yaml:"department" toml:"department"`
	Site        string `json:"site" yaml:"site" toml:"site"`
	Line        string `json:"line,omitempty" yaml:"line" toml:"line"`
	JobTitle    string `json:"job_title,omitempty" yaml:"job_title" toml:"job_title"`
	Email       string `json:"email,omitempty" yaml:"email" toml:"email"`
	PhotoKey    string `json:"photo_key,omitempty" yaml:"photo_key" toml:"photo_key"`
	Status      string `json:"status,omitempty" yaml:"status" toml:"status"`
	CreatedAt   string `json:"created_at,omitempty" yaml:"created_at" toml:"created_at"`
}

// DetectionDetails is optional data the pipeline may leave next to the image.
type DetectionDetails struct {
	PPEDetected     []string `json:"ppe_detected"`
	ModelConfidence *float64 `json:"model_confidence"`
}

// DisplayResult is what the UI renders for one upload. A nil EmployeeID means
// nothing matched within the budget.
type DisplayResult struct {
	EmployeeID               *string  `json:"employee_id"`
	DisplayName              string   `json:"display_name"`
	Department               string   `json:"department"`
	Site                     string   `json:"site"`
	ViolationsThisImage      int      `json:"violations_this_image"`
	CumulativeViolationCount *int     `json:"cumulative_violation_count"`
	MissingItems             []string `json:"missing_items"`
	Status                   Status   `json:"status"`
	SourceImageKey           string   `json:"source_image_key"`
	Phase                    Phase    `json:"phase"`
	LastUpdatedAt            string   `json:"last_updated_at,omitempty"`
	PPEDetected              []string `json:"ppe_detected,omitempty"`
	ModelConfidence          *float64 `json:"model_confidence,omitempty"`
}

// PendingResult is the timed-out terminal value. It cannot tell a compliant worker
// from a pipeline that has not finished, because the pipeline writes nothing for
// compliant detections.
func PendingResult(imageKey string) DisplayResult {
	return DisplayResult{
		EmployeeID:     nil,
		MissingItems:   []string{},
		Status:         StatusPendingOrCompliant,
		SourceImageKey: imageKey,
		Phase:          PhaseTimedOut,
	}
}

// ResolveResult joins a matched outcome with its profile. profileFound=false
// yields placeholder display fields.
func ResolveResult(imageKey string, outcome OutcomeRecord, profile ProfileRecord, profileFound bool, items []string) DisplayResult {
	if items == nil {
		items = []string{}
	}

	employeeID := outcome.EmployeeID
	cumulative := outcome.CumulativeViolationCount

	result := DisplayResult{
		EmployeeID:               &employeeID,
		DisplayName:              employeeID,
		Department:               Placeholder,
		Site:                     Placeholder,
		ViolationsThisImage:      len(items),
		CumulativeViolationCount: &cumulative,
		MissingItems:             items,
		Status:                   StatusCompliant,
		SourceImageKey:           imageKey,
		Phase:                    PhaseMatched,
		LastUpdatedAt:            outcome.LastUpdatedAt,
	}
	if len(items) > 0 {
		result.Status = StatusNonCompliant
	}

	if profileFound {
		result.DisplayName = firstNonBlank(profile.DisplayName, employeeID)
		result.Department = firstNonBlank(profile.Department, Placeholder)
		result.Site = firstNonBlank(profile.Site, Placeholder)
	}
	return result
}

// WithDetection copies sidecar data onto the result.
func (r DisplayResult) WithDetection(details DetectionDetails) DisplayResult {
	if len(details.PPEDetected) > 0 {
		r.PPEDetected = append([]string(nil), details.PPEDetected...)
	}
	if details.ModelConfidence != nil {
		confidence := *details.ModelConfidence
		r.ModelConfidence = &confidence
	}
	return r
}

// Headline is the user-facing sentence for each terminal outcome.
func (r DisplayResult) Headline() string {
	switch r.Status {
	case StatusNonCompliant:
		return "Violation found"
	case StatusCompliant:
		return "No violations detected"
	default:
		return "No violation found yet; the worker may be compliant or the analysis is still running. Check back later."
	}
}
