package model

// RenderStatus tracks a record through the render stage.
type RenderStatus string

const (
	RenderPending          RenderStatus = "pending"
	RenderQueued           RenderStatus = "queued"
	RenderRendering        RenderStatus = "rendering"
	RenderRendered         RenderStatus = "rendered"
	RenderFailed           RenderStatus = "failed"
	RenderSkippedNoWebsite RenderStatus = "skipped_no_website"
)

// IsTerminal reports whether the status ends the render state machine.
func (s RenderStatus) IsTerminal() bool {
	switch s {
	case RenderRendered, RenderFailed, RenderSkippedNoWebsite:
		return true
	}
	return false
}

// Qualification is the tri-state outreach verdict.
type Qualification string

const (
	QualificationRed    Qualification = "RED"
	QualificationYellow Qualification = "YELLOW"
	QualificationGreen  Qualification = "GREEN"
)

// SizeTier is the inferred business size.
type SizeTier string

const (
	SizeBoutique         SizeTier = "boutique"
	SizeMidSize          SizeTier = "mid_size"
	SizeLargeIndependent SizeTier = "large_independent"
)

// BudgetRange is a monthly software budget estimate in whole dollars.
type BudgetRange struct {
	Low  int `json:"low"`
	High int `json:"high"`
}

// Classification is the chain/independence verdict for a business name.
type Classification struct {
	IsChain    bool   `json:"is_chain"`
	Confidence int    `json:"independence_confidence"`
	MatchedOn  string `json:"matched_on,omitempty"` // chain fragment that matched
}

// LeadRecord is one business under evaluation. Static attributes come from the
// input row; derived attributes are filled in stage order by the orchestrator.
type LeadRecord struct {
	Index       int      `json:"index"`
	IdentityKey string   `json:"identity_key"`
	RowHash     string   `json:"row_hash"`
	Raw         []string `json:"-"` // original cell values in input header order

	BusinessName string   `json:"business_name"`
	Address      string   `json:"address,omitempty"`
	Phone        string   `json:"phone,omitempty"`
	Website      string   `json:"website_url,omitempty"` // cleaned; empty means no usable website
	Categories   []string `json:"category,omitempty"`
	Rating       float64  `json:"rating,omitempty"`
	ReviewCount  int      `json:"review_count"`

	IsChain                bool          `json:"is_chain"`
	IndependenceConfidence int           `json:"independence_confidence"`
	RenderStatus           RenderStatus  `json:"render_status"`
	FailureKind            FailureKind   `json:"failure_kind,omitempty"`
	ContentRef             string        `json:"rendered_content_ref,omitempty"`
	Signals                SignalBundle  `json:"signals"`
	PainScore              int           `json:"pain_score"`
	Qualification          Qualification `json:"qualification"`
	PainFactors            []string      `json:"pain_factors,omitempty"`
	SizeTier               SizeTier      `json:"size_tier"`
	Budget                 BudgetRange   `json:"budget"`
	Urgency                float64       `json:"urgency"`
	PriorityScore          int           `json:"priority_score"`
	Resumed                bool          `json:"resumed"`
	Error                  string        `json:"error,omitempty"`
}

// PrimaryCategory returns the first category tag, or "".
func (r *LeadRecord) PrimaryCategory() string {
	if len(r.Categories) == 0 {
		return ""
	}
	return r.Categories[0]
}

// HasWebsite reports whether the record carries a usable website URL.
func (r *LeadRecord) HasWebsite() bool {
	return r.Website != ""
}
