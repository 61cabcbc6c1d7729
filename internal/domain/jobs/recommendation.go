package jobs

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Recommendation is the binding decision label.
type Recommendation string

const (
	RecommendBind           Recommendation = "BIND"
	RecommendBindConditions Recommendation = "BIND WITH CONDITIONS"
	RecommendNegotiate      Recommendation = "NEGOTIATE"
	RecommendDecline        Recommendation = "DECLINE"
)

// ParseRecommendation normalises a model-provided label. Unknown labels yield nil.
func ParseRecommendation(v any) *Recommendation {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	s = strings.ToUpper(strings.Join(strings.Fields(strings.ReplaceAll(s, "_", " ")), " "))
	var r Recommendation
	switch Recommendation(s) {
	case RecommendBind:
		r = RecommendBind
	case RecommendBindConditions, "BIND W/ CONDITIONS", "CONDITIONAL BIND":
		r = RecommendBindConditions
	case RecommendNegotiate:
		r = RecommendNegotiate
	case RecommendDecline:
		r = RecommendDecline
	default:
		return nil
	}
	return &r
}

// Summary reads the headline score and recommendation from an analysis payload.
func Summary(data map[string]any) (*float64, *Recommendation) {
	exec, _ := data["executive_summary"].(map[string]any)
	if exec == nil {
		return nil, nil
	}
	metrics, _ := exec["key_metrics"].(map[string]any)
	return toFloat(metrics["overall_maturity_score"]), ParseRecommendation(exec["recommendation"])
}

// toFloat returns nil for anything JSON cannot carry, including NaN and ±Inf.
func toFloat(v any) *float64 {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case int:
		f = float64(t)
	case int64:
		f = float64(t)
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return nil
		}
		f = n
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return nil
		}
		f = n
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}
