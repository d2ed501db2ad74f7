package routing

import (
	"context"
	"fmt"
	"math"

	"github.com/chitalishte-ai/query-engine/internal/observability"
)

// HybridRouter fuses the rule-based classifier with the model-backed one
// into a single routing decision. Fusion is pure and deterministic given
// fixed classifier outputs; no state is shared between calls.
type HybridRouter struct {
	logger *observability.Logger
	rules  Classifier
	model  Classifier
}

// NewHybridRouter creates a router over the two classifiers. Both are
// injected explicitly; the caller decides what stands in for the model
// when the real one is unavailable.
func NewHybridRouter(logger *observability.Logger, rules, model Classifier) *HybridRouter {
	return &HybridRouter{
		logger: logger,
		rules:  rules,
		model:  model,
	}
}

// Route classifies the query with both classifiers and fuses the results.
// A model classifier failure is returned to the caller unchanged; the
// router never substitutes a default intent on its own.
func (r *HybridRouter) Route(ctx context.Context, query string) (RoutingDecision, error) {
	rule, err := r.rules.Classify(ctx, query)
	if err != nil {
		return RoutingDecision{}, fmt.Errorf("rule classification: %w", err)
	}

	model, err := r.model.Classify(ctx, query)
	if err != nil {
		return RoutingDecision{}, fmt.Errorf("model classification: %w", err)
	}

	decision := fuse(rule, model)

	r.logger.Debug().
		Str("query", query).
		Str("rule_intent", string(rule.Intent)).
		Float64("rule_confidence", rule.Confidence).
		Str("model_intent", string(model.Intent)).
		Float64("model_confidence", model.Confidence).
		Str("intent", string(decision.Intent)).
		Float64("confidence", decision.Confidence).
		Msg("Routing decision")

	return decision, nil
}

// fuse applies the ordered fusion rules; the first matching rule wins.
func fuse(rule, model ClassificationResult) RoutingDecision {
	signals := make([]string, 0, len(rule.MatchedSignals)+len(model.MatchedSignals))
	signals = append(signals, rule.MatchedSignals...)
	signals = append(signals, model.MatchedSignals...)

	rc, mc := rule.Confidence, model.Confidence

	// Rule 1: agreement. The model carries slightly more weight.
	if rule.Intent == model.Intent {
		return RoutingDecision{
			Intent:         rule.Intent,
			Confidence:     math.Min(maxRuleConfidence, rc*0.4+mc*0.6),
			MatchedSignals: signals,
			Explanation: fmt.Sprintf("съгласие: двата класификатора избраха %s (правила %.2f, модел %.2f)",
				rule.Intent, rc, mc),
		}
	}

	// Rule 2: a hybrid opinion on either side forces a hybrid decision.
	if rule.Intent == IntentHybrid || model.Intent == IntentHybrid {
		var conf float64
		switch {
		case rule.Intent == IntentHybrid && model.Intent == IntentHybrid:
			conf = (rc + mc) / 2
		case rule.Intent == IntentHybrid:
			conf = rc*0.6 + mc*0.4
		default:
			conf = rc*0.4 + mc*0.6
		}
		return RoutingDecision{
			Intent:         IntentHybrid,
			Confidence:     math.Min(0.9, conf),
			MatchedSignals: signals,
			Explanation: fmt.Sprintf("хибриден приоритет: несъгласие %s/%s (правила %.2f, модел %.2f)",
				rule.Intent, model.Intent, rc, mc),
		}
	}

	// Rule 3: one classifier is confident and the other is not.
	if rc > 0.8 && mc < 0.5 {
		return RoutingDecision{
			Intent:         rule.Intent,
			Confidence:     rc * 0.9,
			MatchedSignals: signals,
			Explanation: fmt.Sprintf("висока увереност: правилата избраха %s (правила %.2f, модел %.2f)",
				rule.Intent, rc, mc),
		}
	}
	if mc > 0.8 && rc < 0.5 {
		return RoutingDecision{
			Intent:         model.Intent,
			Confidence:     mc * 0.9,
			MatchedSignals: signals,
			Explanation: fmt.Sprintf("висока увереност: моделът избра %s (правила %.2f, модел %.2f)",
				model.Intent, rc, mc),
		}
	}

	// Rule 4: both moderate. Run both paths rather than guess.
	if rc < 0.7 && mc < 0.7 {
		return RoutingDecision{
			Intent:         IntentHybrid,
			Confidence:     math.Min(0.75, (rc+mc)/2),
			MatchedSignals: signals,
			Explanation: fmt.Sprintf("умерена увереност: несъгласие %s/%s (правила %.2f, модел %.2f)",
				rule.Intent, model.Intent, rc, mc),
		}
	}

	// Rule 5: weighted pick of the more confident classifier.
	winner, loser := rule, model
	winnerName := "правилата"
	if mc > rc {
		winner, loser = model, rule
		winnerName = "моделът"
	}
	conf := (winner.Confidence*0.7 + loser.Confidence*0.3) * 0.85
	return RoutingDecision{
		Intent:         winner.Intent,
		Confidence:     math.Min(0.85, conf),
		MatchedSignals: signals,
		Explanation: fmt.Sprintf("претеглен избор: %s избра %s (правила %.2f, модел %.2f)",
			winnerName, winner.Intent, rc, mc),
	}
}
