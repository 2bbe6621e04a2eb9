package api

type (
	// ItemStatus represents the lifecycle state of an item's workflow run
	ItemStatus string

	// Step identifies the next unit of work in a run
	Step string

	// Gate is a named durable suspension point requiring a human decision
	Gate string

	// Condition grades the physical state of an item
	Condition string

	// ItemProfile is the structured appraisal produced by the intake step
	ItemProfile struct {
		Title          string    `json:"title"`
		Category       string    `json:"category"`
		Brand          string    `json:"brand,omitempty"`
		Model          string    `json:"model,omitempty"`
		Condition      Condition `json:"condition"`
		ConditionNotes string    `json:"condition_notes,omitempty"`
		Color          string    `json:"color,omitempty"`
		Size           string    `json:"size,omitempty"`
		KeyFeatures    []string  `json:"key_features,omitempty"`
		Confidence     float64   `json:"confidence"`
	}

	// ListingCopy is the platform-targeted marketing copy produced by the
	// listing step
	ListingCopy struct {
		Titles         map[Platform]string `json:"titles"`
		Descriptions   map[Platform]string `json:"descriptions"`
		SuggestedPrice float64             `json:"suggested_price"`
		PriceRationale string              `json:"price_rationale,omitempty"`
	}

	// Comparable is a sold listing used to anchor the price suggestion
	Comparable struct {
		Platform  Platform `json:"platform"`
		Title     string   `json:"title"`
		SoldPrice float64  `json:"sold_price"`
		URL       string   `json:"url,omitempty"`
		Condition string   `json:"condition,omitempty"`
	}
)

const (
	ItemDraft      ItemStatus = "draft"
	ItemAnalyzing  ItemStatus = "analyzing"
	ItemReady      ItemStatus = "ready"
	ItemPublishing ItemStatus = "publishing"
	ItemListed     ItemStatus = "listed"
	ItemSold       ItemStatus = "sold"
	ItemArchived   ItemStatus = "archived"
)

const (
	StepIntake      Step = "intake"
	StepListing     Step = "listing"
	StepPublisher   Step = "publisher"
	StepDealManager Step = "deal_manager"
	StepNone        Step = ""
)

const (
	GateNone     Gate = ""
	GateApproval Gate = "approval"
)

const (
	ConditionNew       Condition = "new"
	ConditionLikeNew   Condition = "like new"
	ConditionExcellent Condition = "excellent"
	ConditionGood      Condition = "good"
	ConditionFair      Condition = "fair"
	ConditionPoor      Condition = "poor"
)

// Terminal reports whether the status ends a run. Archived runs are
// soft-terminal; sold runs are terminal
func (s ItemStatus) Terminal() bool {
	return s == ItemSold || s == ItemArchived
}

// Title returns the copy title for a platform, falling back to the first
// available title
func (c *ListingCopy) Title(p Platform) string {
	if c == nil {
		return ""
	}
	if t, ok := c.Titles[p]; ok {
		return t
	}
	for _, t := range c.Titles {
		return t
	}
	return ""
}

// Description returns the copy description for a platform
func (c *ListingCopy) Description(p Platform) string {
	if c == nil {
		return ""
	}
	return c.Descriptions[p]
}
