package model

import "time"

// FailureKind is the typed reason a render failed.
type FailureKind string

const (
	FailureTimeout    FailureKind = "timeout"
	FailureDNS        FailureKind = "dns_error"
	FailureConnection FailureKind = "connection_error"
	FailureHTTP       FailureKind = "http_error"
)

// SignalBundle is the structured input to the pain scoring engine. A nil field
// means the signal is unknown and scores at the neutral midpoint.
type SignalBundle struct {
	MobileScore      *int     `json:"mobile_score,omitempty"`
	SSL              *bool    `json:"ssl,omitempty"`
	ModernTech       *bool    `json:"modern_tech,omitempty"`
	LocalSEOComplete *bool    `json:"local_seo_complete,omitempty"`
	OutdatedTech     []string `json:"outdated_tech,omitempty"`
	DetectedSoftware []string `json:"detected_software,omitempty"`
}

// Page is the transient result of rendering one website. It is owned by the
// render stage until signals are extracted and is never persisted.
type Page struct {
	URL        string        `json:"url"`
	FinalURL   string        `json:"final_url"`
	StatusCode int           `json:"status_code"`
	HTML       string        `json:"-"`
	Bytes      int           `json:"bytes"`
	Elapsed    time.Duration `json:"elapsed"`
	// DocumentReady is the time until the main document's response arrived.
	// Subresources, blocked or not, do not count toward it.
	DocumentReady time.Duration `json:"document_ready"`
	MobileScore   *int          `json:"mobile_score,omitempty"` // set when the renderer measured it
	Renderer      string        `json:"renderer"`
}

// RenderOutcome is the terminal result of the render stage for one record.
// It is exactly one of Rendered, Failed or Skipped.
type RenderOutcome interface {
	Status() RenderStatus
	outcome()
}

// Rendered carries the page content for signal extraction.
type Rendered struct {
	Page     *Page
	Attempts int
}

// Failed carries the typed failure after retries were exhausted.
type Failed struct {
	Kind     FailureKind
	Err      string
	Attempts int
}

// Skipped means the record had no website to render.
type Skipped struct{}

func (Rendered) Status() RenderStatus { return RenderRendered }
func (Failed) Status() RenderStatus   { return RenderFailed }
func (Skipped) Status() RenderStatus  { return RenderSkippedNoWebsite }

func (Rendered) outcome() {}
func (Failed) outcome()   {}
func (Skipped) outcome()  {}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }

// BoolPtr returns a pointer to v.
func BoolPtr(v bool) *bool { return &v }
