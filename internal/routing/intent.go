// Package routing provides hybrid query routing combining a rule-based
// keyword classifier with an external model-backed classifier.
package routing

import "context"

// QueryIntent represents the execution path a query should take.
type QueryIntent string

const (
	IntentSQL    QueryIntent = "sql"
	IntentRAG    QueryIntent = "rag"
	IntentHybrid QueryIntent = "hybrid"
)

// ClassificationResult is the output contract shared by every classifier.
type ClassificationResult struct {
	Intent         QueryIntent
	Confidence     float64
	MatchedSignals []string
	Explanation    string
}

// RoutingDecision is the fused result handed to the orchestration layer.
// It is the same value shape as a single classification, so downstream
// code has one contract regardless of whether fusion happened.
type RoutingDecision = ClassificationResult

// Classifier classifies a natural-language query into an intent.
// Implementations must return a confidence in [0.0, 1.0] and a non-empty
// explanation, and must map an empty query to (IntentRAG, 0.0).
type Classifier interface {
	Classify(ctx context.Context, query string) (ClassificationResult, error)
}
