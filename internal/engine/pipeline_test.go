package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chitalishte-ai/query-engine/internal/cache"
	"github.com/chitalishte-ai/query-engine/internal/observability"
	"github.com/chitalishte-ai/query-engine/internal/routing"
	"github.com/chitalishte-ai/query-engine/internal/sqlguard"
	"github.com/chitalishte-ai/query-engine/internal/storage"
)

// fixedClassifier always returns the same result.
type fixedClassifier struct {
	result routing.ClassificationResult
}

func (f *fixedClassifier) Classify(_ context.Context, _ string) (routing.ClassificationResult, error) {
	return f.result, nil
}

// fakeGenerator returns canned SQL.
type fakeGenerator struct {
	sql   string
	err   error
	calls int
}

func (g *fakeGenerator) GenerateSQL(_ context.Context, _ string) (string, error) {
	g.calls++
	return g.sql, g.err
}

// fakeExecutor records the SQL it was asked to run.
type fakeExecutor struct {
	lastSQL string
	result  *storage.ResultSet
	err     error
}

func (e *fakeExecutor) Query(_ context.Context, sqlText string) (*storage.ResultSet, error) {
	e.lastSQL = sqlText
	if e.err != nil {
		return nil, e.err
	}
	return e.result, nil
}

// fakeRetriever returns canned passages.
type fakeRetriever struct {
	passages []Passage
	err      error
	calls    int
}

func (r *fakeRetriever) Retrieve(_ context.Context, _ string, _ int) ([]Passage, error) {
	r.calls++
	return r.passages, r.err
}

func sqlRouter(confidence float64) *routing.HybridRouter {
	c := &fixedClassifier{result: routing.ClassificationResult{
		Intent:     routing.IntentSQL,
		Confidence: confidence,
	}}
	return routing.NewHybridRouter(observability.Nop(), c, c)
}

func ragRouter() *routing.HybridRouter {
	c := &fixedClassifier{result: routing.ClassificationResult{
		Intent:     routing.IntentRAG,
		Confidence: 0.8,
	}}
	return routing.NewHybridRouter(observability.Nop(), c, c)
}

func hybridRouter() *routing.HybridRouter {
	c := &fixedClassifier{result: routing.ClassificationResult{
		Intent:     routing.IntentHybrid,
		Confidence: 0.8,
	}}
	return routing.NewHybridRouter(observability.Nop(), c, c)
}

func TestPipeline_SQLPath(t *testing.T) {
	generator := &fakeGenerator{sql: "SELECT name FROM chitalishte WHERE region = 'Враца'"}
	executor := &fakeExecutor{result: &storage.ResultSet{
		Columns: []string{"name"},
		Rows:    []map[string]interface{}{{"name": "НЧ Развитие"}},
	}}
	retriever := &fakeRetriever{}

	p := NewPipeline(observability.Nop(), sqlRouter(0.9), generator, executor,
		retriever, sqlguard.DefaultCatalog(), nil, Config{})

	answer, err := p.Answer(context.Background(), "читалища във Враца")
	require.NoError(t, err)

	require.NotNil(t, answer.SQL)
	assert.True(t, answer.SQL.Validation.IsValid)
	// The executor must see the rewritten text, not the raw generation.
	assert.Equal(t,
		"SELECT name FROM chitalishte WHERE LOWER(region) = LOWER('Враца')",
		executor.lastSQL)
	assert.Contains(t, answer.SQL.AppliedPasses, "case_insensitive_text")
	assert.Len(t, answer.SQL.Rows, 1)

	// Pure SQL intent skips retrieval.
	assert.Equal(t, 0, retriever.calls)
	assert.Empty(t, answer.Passages)
	assert.NotEmpty(t, answer.RequestID)
}

func TestPipeline_RejectedSQLNotExecuted(t *testing.T) {
	generator := &fakeGenerator{sql: "DROP TABLE chitalishte"}
	executor := &fakeExecutor{}

	p := NewPipeline(observability.Nop(), sqlRouter(0.9), generator, executor,
		nil, sqlguard.DefaultCatalog(), nil, Config{})

	answer, err := p.Answer(context.Background(), "въпрос")
	require.NoError(t, err)

	require.NotNil(t, answer.SQL)
	assert.False(t, answer.SQL.Validation.IsValid)
	assert.Equal(t, sqlguard.ErrorDangerousKeyword, answer.SQL.Validation.Category)
	assert.Empty(t, executor.lastSQL)
}

func TestPipeline_RAGPath(t *testing.T) {
	generator := &fakeGenerator{}
	retriever := &fakeRetriever{passages: []Passage{{Text: "НЧ Развитие, гр. Враца", Source: "chitalishte:1"}}}

	p := NewPipeline(observability.Nop(), ragRouter(), generator, nil,
		retriever, sqlguard.DefaultCatalog(), nil, Config{})

	answer, err := p.Answer(context.Background(), "разкажи за читалището")
	require.NoError(t, err)

	assert.Nil(t, answer.SQL)
	assert.Equal(t, 0, generator.calls)
	require.Len(t, answer.Passages, 1)
}

func TestPipeline_HybridRunsBothPaths(t *testing.T) {
	generator := &fakeGenerator{sql: "SELECT count(*) FROM chitalishte"}
	executor := &fakeExecutor{result: &storage.ResultSet{Columns: []string{"count"}}}
	retriever := &fakeRetriever{passages: []Passage{{Text: "x"}}}

	p := NewPipeline(observability.Nop(), hybridRouter(), generator, executor,
		retriever, sqlguard.DefaultCatalog(), nil, Config{})

	answer, err := p.Answer(context.Background(), "колко и какво")
	require.NoError(t, err)

	assert.NotNil(t, answer.SQL)
	assert.Equal(t, 1, retriever.calls)
	assert.Len(t, answer.Passages, 1)
}

func TestPipeline_GeneratorFailureRecordedNotFatal(t *testing.T) {
	generator := &fakeGenerator{err: errors.New("model unavailable")}
	retriever := &fakeRetriever{passages: []Passage{{Text: "x"}}}

	p := NewPipeline(observability.Nop(), hybridRouter(), generator, nil,
		retriever, sqlguard.DefaultCatalog(), nil, Config{})

	answer, err := p.Answer(context.Background(), "въпрос")
	require.NoError(t, err)

	require.NotNil(t, answer.SQL)
	assert.Contains(t, answer.SQL.Error, "model unavailable")
	// The retrieval half still answers.
	assert.Len(t, answer.Passages, 1)
}

func TestPipeline_ExecutorFailureRecorded(t *testing.T) {
	generator := &fakeGenerator{sql: "SELECT name FROM chitalishte"}
	executor := &fakeExecutor{err: errors.New("connection refused")}

	p := NewPipeline(observability.Nop(), sqlRouter(0.9), generator, executor,
		nil, sqlguard.DefaultCatalog(), nil, Config{})

	answer, err := p.Answer(context.Background(), "въпрос")
	require.NoError(t, err)

	require.NotNil(t, answer.SQL)
	assert.True(t, answer.SQL.Validation.IsValid)
	assert.Contains(t, answer.SQL.Error, "connection refused")
	assert.Empty(t, answer.SQL.Rows)
}

func TestPipeline_CacheHit(t *testing.T) {
	generator := &fakeGenerator{sql: "SELECT count(*) FROM chitalishte"}
	executor := &fakeExecutor{result: &storage.ResultSet{Columns: []string{"count"}}}

	p := NewPipeline(observability.Nop(), sqlRouter(0.9), generator, executor,
		nil, sqlguard.DefaultCatalog(), cache.NewMemoryClient(10), Config{
			CacheResults: true,
			CacheTTL:     time.Minute,
		})

	ctx := context.Background()

	first, err := p.Answer(ctx, "Колко читалища има?")
	require.NoError(t, err)
	assert.False(t, first.Cached)
	assert.Equal(t, 1, generator.calls)

	// Spacing and casing differences hit the same entry.
	second, err := p.Answer(ctx, "  колко читалища ИМА?")
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, 1, generator.calls)
	assert.Equal(t, first.RequestID, second.RequestID)
}

func TestPipeline_NoGeneratorConfigured(t *testing.T) {
	p := NewPipeline(observability.Nop(), sqlRouter(0.9), nil, nil,
		nil, sqlguard.DefaultCatalog(), nil, Config{})

	answer, err := p.Answer(context.Background(), "въпрос")
	require.NoError(t, err)

	require.NotNil(t, answer.SQL)
	assert.Contains(t, answer.SQL.Error, "not configured")
}

func TestExtractKeywords(t *testing.T) {
	keywords := extractKeywords("Разкажи ми за читалище «Пробуда» във Враца!")

	// Stopwords and short words are dropped; «Пробуда» loses its quotes.
	assert.Equal(t, []string{"пробуда", "враца"}, keywords)
}

func TestExtractKeywords_SkipsOrganizationWordForms(t *testing.T) {
	for _, form := range []string{"читалище", "читалището", "читалища", "читалищата"} {
		keywords := extractKeywords("Разкажи за " + form + " Светлина")
		assert.Equal(t, []string{"светлина"}, keywords, form)
	}
}
