package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/chitalishte-ai/query-engine/internal/routing"
)

// classifierSystemPrompt asks for a strict JSON classification of a
// Bulgarian user question about the chitalishte dataset.
const classifierSystemPrompt = `Ти си класификатор на въпроси за читалища в България.
Определи как трябва да се отговори на въпроса:
- "sql": въпросът иска бройки, агрегации, класации или таблични справки
- "rag": въпросът иска описателна информация, история или обяснение
- "hybrid": въпросът съчетава и двете

Отговори САМО с JSON в този вид, без друг текст:
{"intent": "sql|rag|hybrid", "confidence": 0.0-1.0, "explanation": "кратко обяснение на български"}`

// IntentClassifier satisfies the routing classifier contract with a
// model-backed second opinion.
type IntentClassifier struct {
	client *Client
}

// NewIntentClassifier creates the model-backed classifier over a client.
func NewIntentClassifier(client *Client) *IntentClassifier {
	return &IntentClassifier{client: client}
}

// classifierReply is the JSON the model is instructed to produce.
type classifierReply struct {
	Intent      string  `json:"intent"`
	Confidence  float64 `json:"confidence"`
	Explanation string  `json:"explanation"`
}

// Classify asks the model to classify the query. Transport failures are
// returned to the caller; a malformed reply degrades to the low-confidence
// RAG default instead, because routing must always produce a decision.
func (c *IntentClassifier) Classify(ctx context.Context, query string) (routing.ClassificationResult, error) {
	if strings.TrimSpace(query) == "" {
		return routing.ClassificationResult{
			Intent:      routing.IntentRAG,
			Confidence:  0.0,
			Explanation: "празна заявка – подразбиране към RAG",
		}, nil
	}

	content, err := c.client.complete(ctx, c.client.cfg.ClassifierModel, classifierSystemPrompt, query)
	if err != nil {
		return routing.ClassificationResult{}, fmt.Errorf("classify query: %w", err)
	}

	var reply classifierReply
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &reply); err != nil {
		c.client.logger.Warn().Err(err).Str("content", content).Msg("Unparseable classifier reply")
		return routing.ClassificationResult{
			Intent:      routing.IntentRAG,
			Confidence:  0.3,
			Explanation: "неразбираем отговор от модела – подразбиране към RAG",
		}, nil
	}

	intent := routing.QueryIntent(strings.ToLower(strings.TrimSpace(reply.Intent)))
	switch intent {
	case routing.IntentSQL, routing.IntentRAG, routing.IntentHybrid:
	default:
		intent = routing.IntentRAG
		reply.Confidence = 0.3
		reply.Explanation = "непознат интент от модела – подразбиране към RAG"
	}

	explanation := strings.TrimSpace(reply.Explanation)
	if explanation == "" {
		explanation = fmt.Sprintf("моделът класифицира заявката като %s", intent)
	}

	return routing.ClassificationResult{
		Intent:      intent,
		Confidence:  math.Max(0.0, math.Min(1.0, reply.Confidence)),
		Explanation: explanation,
	}, nil
}
