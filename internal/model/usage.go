package model

// DateLayout is the calendar-day format used for usage records.
const DateLayout = "2006-01-02"

// Usage holds the token counts reported for one completion call.
type Usage struct {
	InputTokens  int `json:"prompt_tokens"`
	OutputTokens int `json:"completion_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// UsageRecord is one row of the usage ledger: a single completed chat call.
type UsageRecord struct {
	ID           int64
	UserID       string
	Date         string
	InputTokens  int
	OutputTokens int
	TotalTokens  int
	CostUSD      float64
}

// UsageDay is the per-day aggregate returned by the usage summary.
type UsageDay struct {
	Date         string  `json:"date"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	TotalTokens  int     `json:"total_tokens"`
	CostUSD      float64 `json:"cost_usd"`
}
