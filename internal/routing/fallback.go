package routing

import "context"

// DegradedClassifier stands in for the model-backed classifier when it
// cannot be constructed (missing API key, unreachable service). It reuses
// the keyword rules so the router still receives two well-formed opinions,
// and marks its explanations so the degradation is visible in audit logs.
type DegradedClassifier struct {
	inner *KeywordIntentClassifier
}

// NewDegradedClassifier creates the rule-only stand-in.
func NewDegradedClassifier() *DegradedClassifier {
	return &DegradedClassifier{inner: NewKeywordIntentClassifier()}
}

// Classify delegates to the keyword rules.
func (c *DegradedClassifier) Classify(ctx context.Context, query string) (ClassificationResult, error) {
	result, err := c.inner.Classify(ctx, query)
	if err != nil {
		return ClassificationResult{}, err
	}
	result.Explanation = "резервен класификатор (без модел): " + result.Explanation
	return result, nil
}
