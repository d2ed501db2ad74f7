// Package engine orchestrates the answer pipeline: route the question,
// then run the SQL guard path, the retrieval path, or both.
package engine

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/chitalishte-ai/query-engine/internal/cache"
	"github.com/chitalishte-ai/query-engine/internal/observability"
	"github.com/chitalishte-ai/query-engine/internal/routing"
	"github.com/chitalishte-ai/query-engine/internal/sqlguard"
	"github.com/chitalishte-ai/query-engine/internal/storage"
)

// SQLGenerator produces raw SQL text for a question. The pipeline treats
// the output as untrusted.
type SQLGenerator interface {
	GenerateSQL(ctx context.Context, question string) (string, error)
}

// Executor runs vetted SQL.
type Executor interface {
	Query(ctx context.Context, sqlText string) (*storage.ResultSet, error)
}

// Retriever returns descriptive passages for the RAG path.
type Retriever interface {
	Retrieve(ctx context.Context, question string, limit int) ([]Passage, error)
}

// Passage is one retrieved piece of context.
type Passage struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

// SQLOutcome records what happened on the SQL path.
type SQLOutcome struct {
	Generated     string                   `json:"generated"`
	Validation    sqlguard.ValidationResult `json:"validation"`
	Rewritten     string                   `json:"rewritten,omitempty"`
	AppliedPasses []string                 `json:"appliedPasses,omitempty"`
	Columns       []string                 `json:"columns,omitempty"`
	Rows          []map[string]interface{} `json:"rows,omitempty"`
	Truncated     bool                     `json:"truncated,omitempty"`
	Error         string                   `json:"error,omitempty"`
}

// Answer is the full pipeline result for one question.
type Answer struct {
	RequestID string                  `json:"requestId"`
	Question  string                  `json:"question"`
	Decision  routing.RoutingDecision `json:"decision"`
	SQL       *SQLOutcome             `json:"sql,omitempty"`
	Passages  []Passage               `json:"passages,omitempty"`
	LatencyMs int64                   `json:"latencyMs"`
	Cached    bool                    `json:"cached"`
}

// Config holds pipeline settings.
type Config struct {
	CacheResults bool
	CacheTTL     time.Duration
	MaxPassages  int
}

// Pipeline wires the router, the SQL guard path, and the retriever. All
// collaborators are injected; the pipeline holds no per-call state.
type Pipeline struct {
	logger    *observability.Logger
	router    *routing.HybridRouter
	generator SQLGenerator
	executor  Executor
	retriever Retriever
	catalog   *sqlguard.SchemaCatalog
	cache     cache.Client
	cfg       Config
}

// NewPipeline creates the pipeline. Generator, executor, retriever, and
// cache may be nil; the corresponding steps are skipped.
func NewPipeline(
	logger *observability.Logger,
	router *routing.HybridRouter,
	generator SQLGenerator,
	executor Executor,
	retriever Retriever,
	catalog *sqlguard.SchemaCatalog,
	cacheClient cache.Client,
	cfg Config,
) *Pipeline {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.MaxPassages <= 0 {
		cfg.MaxPassages = 5
	}

	return &Pipeline{
		logger:    logger.WithComponent("pipeline"),
		router:    router,
		generator: generator,
		executor:  executor,
		retriever: retriever,
		catalog:   catalog,
		cache:     cacheClient,
		cfg:       cfg,
	}
}

// Answer routes the question and runs the decided path(s). A routing
// failure is returned to the caller; path-level failures are recorded on
// the answer so a partial result still reaches the user.
func (p *Pipeline) Answer(ctx context.Context, question string) (*Answer, error) {
	start := time.Now()

	cacheKey := cache.QuestionKey(question)
	if cached := p.checkCache(ctx, cacheKey); cached != nil {
		cached.Cached = true
		cached.LatencyMs = time.Since(start).Milliseconds()
		return cached, nil
	}

	decision, err := p.router.Route(ctx, question)
	if err != nil {
		return nil, err
	}

	answer := &Answer{
		RequestID: uuid.NewString(),
		Question:  question,
		Decision:  decision,
	}

	if decision.Intent == routing.IntentSQL || decision.Intent == routing.IntentHybrid {
		answer.SQL = p.runSQLPath(ctx, question)
	}

	if decision.Intent == routing.IntentRAG || decision.Intent == routing.IntentHybrid {
		answer.Passages = p.runRetrievalPath(ctx, question)
	}

	answer.LatencyMs = time.Since(start).Milliseconds()

	p.storeCache(ctx, cacheKey, answer)

	p.logger.Info().
		Str("request_id", answer.RequestID).
		Str("intent", string(decision.Intent)).
		Float64("confidence", decision.Confidence).
		Int64("latency_ms", answer.LatencyMs).
		Msg("Answer complete")

	return answer, nil
}

// runSQLPath generates, validates, rewrites, and executes SQL for the
// question. Every stage outcome is recorded for audit.
func (p *Pipeline) runSQLPath(ctx context.Context, question string) *SQLOutcome {
	outcome := &SQLOutcome{}

	if p.generator == nil {
		outcome.Error = "sql generation is not configured"
		return outcome
	}

	generated, err := p.generator.GenerateSQL(ctx, question)
	if err != nil {
		p.logger.Warn().Err(err).Msg("SQL generation failed")
		outcome.Error = err.Error()
		return outcome
	}
	outcome.Generated = generated

	outcome.Validation = sqlguard.Validate(generated, p.catalog)
	if !outcome.Validation.IsValid {
		p.logger.Warn().
			Str("category", string(outcome.Validation.Category)).
			Str("sql", generated).
			Msg("Generated SQL rejected")
		return outcome
	}

	rewritten := sqlguard.Rewrite(generated, p.catalog)
	outcome.Rewritten = rewritten.SQL
	outcome.AppliedPasses = rewritten.AppliedPasses

	if p.executor == nil {
		return outcome
	}

	result, err := p.executor.Query(ctx, rewritten.SQL)
	if err != nil {
		p.logger.Warn().Err(err).Str("sql", rewritten.SQL).Msg("Query execution failed")
		outcome.Error = err.Error()
		return outcome
	}

	outcome.Columns = result.Columns
	outcome.Rows = result.Rows
	outcome.Truncated = result.Truncated
	return outcome
}

// runRetrievalPath fetches descriptive passages. Retrieval failures only
// log; the answer still carries the other path's result.
func (p *Pipeline) runRetrievalPath(ctx context.Context, question string) []Passage {
	if p.retriever == nil {
		return nil
	}

	passages, err := p.retriever.Retrieve(ctx, question, p.cfg.MaxPassages)
	if err != nil {
		p.logger.Warn().Err(err).Msg("Retrieval failed")
		return nil
	}
	return passages
}

func (p *Pipeline) checkCache(ctx context.Context, key string) *Answer {
	if !p.cfg.CacheResults || p.cache == nil {
		return nil
	}

	data, err := p.cache.Get(ctx, key)
	if err != nil {
		return nil
	}

	var answer Answer
	if err := json.Unmarshal(data, &answer); err != nil {
		return nil
	}
	return &answer
}

func (p *Pipeline) storeCache(ctx context.Context, key string, answer *Answer) {
	if !p.cfg.CacheResults || p.cache == nil {
		return
	}

	data, err := json.Marshal(answer)
	if err != nil {
		return
	}
	if err := p.cache.Set(ctx, key, data, p.cfg.CacheTTL); err != nil {
		p.logger.Warn().Err(err).Msg("Cache store failed")
	}
}
