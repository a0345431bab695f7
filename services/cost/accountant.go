package cost

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// defaultRequestCost is charged for unknown models so their usage still
	// shows up in reports. Never zero.
	defaultRequestCost = 0.001

	// retention bounds the usage ledger
	retention = 24 * time.Hour

	// recommendation heuristics
	minRecordsForCachingHint = 100
	duplicateRateThreshold   = 0.1
	duplicateGap             = 60 * time.Second
)

// RateCard holds the pricing for one provider/model combination. Rates are
// USD per 1000 tokens.
type RateCard struct {
	Provider    string
	Model       string
	InputPer1K  float64
	OutputPer1K float64
	PerRequest  float64
}

// UsageRecord is one ledger entry
type UsageRecord struct {
	Timestamp time.Time
	Provider  string
	Model     string
	Cost      float64
}

// Accountant calculates per-request cost from a static rate table and keeps
// an append-only usage ledger pruned to the retention horizon.
type Accountant struct {
	order  []string
	rates  map[string]RateCard
	logger *zap.Logger

	mu         sync.Mutex
	ledger     []UsageRecord
	byProvider map[string]float64
}

// NewAccountant creates an accountant. An empty card list selects the
// built-in rate table.
func NewAccountant(cards []RateCard, logger *zap.Logger) *Accountant {
	if len(cards) == 0 {
		cards = DefaultRateTable()
	}
	a := &Accountant{
		rates:      make(map[string]RateCard, len(cards)),
		logger:     logger,
		byProvider: make(map[string]float64),
	}
	for _, c := range cards {
		if _, exists := a.rates[c.Model]; exists {
			continue
		}
		a.order = append(a.order, c.Model)
		a.rates[c.Model] = c
	}
	return a
}

// Calculate computes the cost of a completed request and appends it to the
// usage ledger. Unknown models degrade to a small default cost so their
// usage remains visible.
func (a *Accountant) Calculate(provider, model string, inputTokens, outputTokens int) float64 {
	rc, ok := a.rates[model]
	var total float64
	if !ok {
		a.logger.Warn("unknown model, using default cost", zap.String("model", model))
		total = defaultRequestCost
	} else {
		total = float64(inputTokens)/1000*rc.InputPer1K +
			float64(outputTokens)/1000*rc.OutputPer1K +
			rc.PerRequest
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.ledger = append(a.ledger, UsageRecord{
		Timestamp: time.Now(),
		Provider:  provider,
		Model:     model,
		Cost:      total,
	})
	a.byProvider[provider] += total
	a.pruneLocked()

	return total
}

func (a *Accountant) pruneLocked() {
	cutoff := time.Now().Add(-retention)
	i := 0
	for i < len(a.ledger) && a.ledger[i].Timestamp.Before(cutoff) {
		i++
	}
	a.ledger = a.ledger[i:]
}

// Bucket aggregates cost and request count for one provider or model
type Bucket struct {
	Cost     float64 `json:"cost"`
	Requests int     `json:"requests"`
}

// Report is the cost breakdown for a time range
type Report struct {
	TimeRange         string            `json:"time_range"`
	TotalCost         float64           `json:"total_cost"`
	TotalRequests     int               `json:"total_requests"`
	AvgCostPerRequest float64           `json:"avg_cost_per_request"`
	ByProvider        map[string]Bucket `json:"by_provider"`
	ByModel           map[string]Bucket `json:"by_model"`
	HourlyRate        float64           `json:"hourly_rate"`
	ProjectedMonthly  float64           `json:"projected_monthly"`
}

// rangeHours maps the supported time ranges to hours, defaulting to 24
func rangeHours(timeRange string) float64 {
	switch timeRange {
	case "1h":
		return 1
	case "24h":
		return 24
	case "7d":
		return 168
	case "30d":
		return 720
	default:
		return 24
	}
}

// GenerateReport aggregates ledger entries within the time range. An empty
// ledger yields a zeroed report.
func (a *Accountant) GenerateReport(timeRange string) Report {
	hours := rangeHours(timeRange)
	cutoff := time.Now().Add(-time.Duration(hours * float64(time.Hour)))

	a.mu.Lock()
	defer a.mu.Unlock()

	report := Report{
		TimeRange:  timeRange,
		ByProvider: make(map[string]Bucket),
		ByModel:    make(map[string]Bucket),
	}

	for _, u := range a.ledger {
		if u.Timestamp.Before(cutoff) {
			continue
		}
		report.TotalCost += u.Cost
		report.TotalRequests++

		pb := report.ByProvider[u.Provider]
		pb.Cost += u.Cost
		pb.Requests++
		report.ByProvider[u.Provider] = pb

		mb := report.ByModel[u.Model]
		mb.Cost += u.Cost
		mb.Requests++
		report.ByModel[u.Model] = mb
	}

	if report.TotalRequests > 0 {
		report.AvgCostPerRequest = report.TotalCost / float64(report.TotalRequests)
	}
	report.HourlyRate = report.TotalCost / hours
	report.ProjectedMonthly = report.HourlyRate * 720

	return report
}

// Prediction is a pre-request cost estimate for one model
type Prediction struct {
	Model      string  `json:"model"`
	Provider   string  `json:"provider"`
	InputCost  float64 `json:"input_cost"`
	OutputCost float64 `json:"output_cost"`
	TotalCost  float64 `json:"total_cost"`
}

// Predict estimates cost before a request is made. Model "auto" (or empty)
// returns estimates for the whole rate table in its fixed order.
func (a *Accountant) Predict(promptTokens, expectedOutputTokens int, model string) []Prediction {
	var out []Prediction
	for _, name := range a.order {
		if model != "" && model != "auto" && model != name {
			continue
		}
		rc := a.rates[name]
		p := Prediction{
			Model:      name,
			Provider:   rc.Provider,
			InputCost:  float64(promptTokens) / 1000 * rc.InputPer1K,
			OutputCost: float64(expectedOutputTokens) / 1000 * rc.OutputPer1K,
		}
		p.TotalCost = p.InputCost + p.OutputCost + rc.PerRequest
		out = append(out, p)
	}
	return out
}

// Recommendation is one cost optimization suggestion
type Recommendation struct {
	Type             string  `json:"type"`
	CurrentModel     string  `json:"current_model,omitempty"`
	RecommendedModel string  `json:"recommended_model,omitempty"`
	Reason           string  `json:"reason"`
	SavingsPct       float64 `json:"potential_savings_pct"`
	DuplicateRate    float64 `json:"duplicate_rate,omitempty"`
}

// Recommend scans current usage for cheaper alternatives. A model is flagged
// when another model's output rate is less than half of its own. When the
// ledger shows a high rate of closely spaced requests it additionally
// recommends enabling caching.
func (a *Accountant) Recommend(currentUsage map[string]int) []Recommendation {
	var recs []Recommendation

	models := make([]string, 0, len(currentUsage))
	for m := range currentUsage {
		models = append(models, m)
	}
	sort.Strings(models)

	for _, model := range models {
		current, ok := a.rates[model]
		if !ok {
			continue
		}
		for _, altName := range a.order {
			if altName == model {
				continue
			}
			alt := a.rates[altName]
			if alt.OutputPer1K < current.OutputPer1K*0.5 {
				recs = append(recs, Recommendation{
					Type:             "switch_model",
					CurrentModel:     model,
					RecommendedModel: altName,
					Reason:           "significant_cost_reduction",
					SavingsPct:       (1 - alt.OutputPer1K/current.OutputPer1K) * 100,
				})
			}
		}
	}

	a.mu.Lock()
	ledgerLen := len(a.ledger)
	dupRate := a.duplicateRateLocked()
	a.mu.Unlock()

	if ledgerLen > minRecordsForCachingHint && dupRate > duplicateRateThreshold {
		recs = append(recs, Recommendation{
			Type:          "enable_caching",
			Reason:        "high_duplicate_rate",
			DuplicateRate: dupRate,
			SavingsPct:    dupRate * 100,
		})
	}

	return recs
}

// duplicateRateLocked estimates how often requests arrive in close
// succession, over the most recent 100 ledger entries. Consecutive entries
// less than a minute apart count as likely duplicates.
func (a *Accountant) duplicateRateLocked() float64 {
	if len(a.ledger) < 10 {
		return 0
	}
	recent := a.ledger
	if len(recent) > 100 {
		recent = recent[len(recent)-100:]
	}

	clusters := 0
	for i := 1; i < len(recent); i++ {
		if recent[i].Timestamp.Sub(recent[i-1].Timestamp) < duplicateGap {
			clusters++
		}
	}
	return float64(clusters) / float64(len(recent))
}

// Rates exposes the rate card for a model
func (a *Accountant) Rates(model string) (RateCard, bool) {
	rc, ok := a.rates[model]
	return rc, ok
}

// DefaultRateTable returns the built-in 2025 pricing table. Rates are USD
// per 1000 tokens.
func DefaultRateTable() []RateCard {
	return []RateCard{
		{Provider: "openai", Model: "gpt-5", InputPer1K: 3.0, OutputPer1K: 15.0},
		{Provider: "openai", Model: "o3", InputPer1K: 15.0, OutputPer1K: 60.0},
		{Provider: "openai", Model: "o4-mini", InputPer1K: 0.15, OutputPer1K: 0.60},
		{Provider: "anthropic", Model: "claude-opus-4.1", InputPer1K: 15.0, OutputPer1K: 75.0},
		{Provider: "anthropic", Model: "claude-sonnet-4", InputPer1K: 3.0, OutputPer1K: 15.0},
		{Provider: "google", Model: "gemini-2.5-pro", InputPer1K: 1.25, OutputPer1K: 5.0},
		{Provider: "google", Model: "gemini-2.5-flash", InputPer1K: 0.075, OutputPer1K: 0.30},
		{Provider: "xai", Model: "grok-4", InputPer1K: 5.0, OutputPer1K: 15.0},
		{Provider: "xai", Model: "grok-4-heavy", InputPer1K: 10.0, OutputPer1K: 30.0},
	}
}
