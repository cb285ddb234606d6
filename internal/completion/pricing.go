package completion

// Rates are USD prices per one million tokens.
type Rates struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

// DefaultModel is the model whose rates apply to unknown identifiers.
const DefaultModel = "gpt-4o-mini"

var pricing = map[string]Rates{
	"gpt-4o-mini":  {InputPerMillion: 0.15, OutputPerMillion: 0.60},
	"gpt-4o":       {InputPerMillion: 2.50, OutputPerMillion: 10.00},
	"gpt-4.1":      {InputPerMillion: 2.00, OutputPerMillion: 8.00},
	"gpt-4.1-mini": {InputPerMillion: 0.40, OutputPerMillion: 1.60},
	"gpt-4.1-nano": {InputPerMillion: 0.10, OutputPerMillion: 0.40},
}

// RatesFor returns the price table entry for a model. Unknown models get
// the DefaultModel rates and known=false.
func RatesFor(model string) (r Rates, known bool) {
	r, known = pricing[model]
	if !known {
		r = pricing[DefaultModel]
	}
	return r, known
}

// Cost prices a call with the given token counts.
func (r Rates) Cost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)*r.InputPerMillion/1e6 +
		float64(outputTokens)*r.OutputPerMillion/1e6
}
