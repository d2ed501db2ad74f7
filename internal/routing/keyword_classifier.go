package routing

import (
	"context"
	"fmt"
	"math"
	"strings"
)

// KeywordIntentClassifier is a deterministic rule-based classifier over
// Bulgarian query text. It has no external dependencies: identical input
// always yields an identical result.
type KeywordIntentClassifier struct {
	sqlKeywords    []string
	ragKeywords    []string
	hybridKeywords []string
}

// maxRuleConfidence reserves headroom so the model-backed classifier can
// win disagreements during fusion.
const maxRuleConfidence = 0.95

// NewKeywordIntentClassifier creates a classifier with the built-in
// Bulgarian keyword lists.
func NewKeywordIntentClassifier() *KeywordIntentClassifier {
	return &KeywordIntentClassifier{
		sqlKeywords: []string{
			"колко",
			"брой",
			"броя",
			"средно",
			"средна",
			"общо",
			"сума",
			"сумата",
			"най-много",
			"най-малко",
			"най-голям",
			"най-малък",
			"топ",
			"класация",
			"подреди",
			"сортирай",
			"статистика",
			"процент",
			"разпределение",
			"списък",
			"изброй",
			"таблица",
			"покажи всички",
		},
		ragKeywords: []string{
			"какво",
			"каква",
			"какви",
			"защо",
			"как да",
			"разкажи",
			"опиши",
			"обясни",
			"информация",
			"история",
			"представлява",
			"значение",
			"мисия",
			"с какво се занимава",
		},
		hybridKeywords: []string{
			" и също",
			"както и",
			"освен това",
			"в допълнение",
			"заедно с",
			"също",
			" и ",
		},
	}
}

// Classify determines the intent for a Bulgarian query.
func (c *KeywordIntentClassifier) Classify(_ context.Context, query string) (ClassificationResult, error) {
	q := strings.ToLower(strings.TrimSpace(query))

	if q == "" {
		return ClassificationResult{
			Intent:      IntentRAG,
			Confidence:  0.0,
			Explanation: "празна заявка – подразбиране към RAG",
		}, nil
	}

	signals := make([]string, 0, 4)

	sqlMatches := 0
	for _, kw := range c.sqlKeywords {
		if strings.Contains(q, kw) {
			sqlMatches++
			signals = append(signals, kw)
		}
	}

	ragMatches := 0
	for _, kw := range c.ragKeywords {
		if strings.Contains(q, kw) {
			ragMatches++
			signals = append(signals, kw)
		}
	}

	hybridConnective := ""
	for _, kw := range c.hybridKeywords {
		if strings.Contains(q, kw) {
			hybridConnective = kw
			signals = append(signals, kw)
			break
		}
	}

	lengthFactor := lengthFactorFor(len(strings.Fields(q)))
	sqlScore := familyScore(sqlMatches, lengthFactor)
	ragScore := familyScore(ragMatches, lengthFactor)

	var result ClassificationResult
	switch {
	case hybridConnective != "" && sqlMatches > 0 && ragMatches > 0:
		result = ClassificationResult{
			Intent:     IntentHybrid,
			Confidence: math.Min(0.9, (sqlScore+ragScore)/2),
			Explanation: fmt.Sprintf(
				"открити са SQL (%d) и RAG (%d) сигнали със свързваща дума %q – хибриден отговор",
				sqlMatches, ragMatches, strings.TrimSpace(hybridConnective)),
		}

	case sqlMatches > 0 && ragMatches == 0:
		result = ClassificationResult{
			Intent:     IntentSQL,
			Confidence: sqlScore,
			Explanation: fmt.Sprintf("открити са само SQL сигнали (%d съвпадения, резултат %.2f)",
				sqlMatches, sqlScore),
		}

	case ragMatches > 0 && sqlMatches == 0:
		result = ClassificationResult{
			Intent:     IntentRAG,
			Confidence: ragScore,
			Explanation: fmt.Sprintf("открити са само RAG сигнали (%d съвпадения, резултат %.2f)",
				ragMatches, ragScore),
		}

	case sqlMatches > 0 && ragMatches > 0:
		if math.Abs(sqlScore-ragScore) < 0.2 {
			result = ClassificationResult{
				Intent:     IntentHybrid,
				Confidence: (sqlScore + ragScore) / 2,
				Explanation: fmt.Sprintf("SQL и RAG резултатите са близки (%.2f срещу %.2f) – хибриден отговор",
					sqlScore, ragScore),
			}
		} else if sqlScore > ragScore {
			result = ClassificationResult{
				Intent:     IntentSQL,
				Confidence: sqlScore,
				Explanation: fmt.Sprintf("SQL сигналите преобладават (%.2f срещу %.2f)",
					sqlScore, ragScore),
			}
		} else {
			result = ClassificationResult{
				Intent:     IntentRAG,
				Confidence: ragScore,
				Explanation: fmt.Sprintf("RAG сигналите преобладават (%.2f срещу %.2f)",
					ragScore, sqlScore),
			}
		}

	default:
		result = ClassificationResult{
			Intent:      IntentRAG,
			Confidence:  0.3,
			Explanation: "няма открити ключови думи – подразбиране към RAG",
		}
	}

	result.MatchedSignals = signals
	result.Confidence = math.Min(result.Confidence, maxRuleConfidence)
	return result, nil
}

// familyScore combines the unique-match count with the length factor.
// Three unique keyword matches saturate the match score.
func familyScore(matches int, lengthFactor float64) float64 {
	if matches == 0 {
		return 0.0
	}
	matchScore := math.Min(1.0, float64(matches)/3.0)
	return matchScore * lengthFactor
}

// lengthFactorFor discounts long queries: keyword evidence is weaker when
// it covers a smaller share of the text.
func lengthFactorFor(wordCount int) float64 {
	switch {
	case wordCount <= 3:
		return 1.0
	case wordCount <= 6:
		return 0.9
	case wordCount <= 10:
		return 0.8
	default:
		return 0.7
	}
}
