package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/chitalishte-ai/query-engine/internal/sqlguard"
)

// SQLGenerator produces raw SQL text for a Bulgarian question. Its output
// is untrusted and must go through the sqlguard pipeline before execution.
type SQLGenerator struct {
	client *Client
	schema string
}

// NewSQLGenerator creates the generator with a schema description built
// from the catalog, so the model sees the real tables and columns.
func NewSQLGenerator(client *Client, catalog *sqlguard.SchemaCatalog) *SQLGenerator {
	var b strings.Builder
	for _, table := range catalog.Tables() {
		b.WriteString(table)
		b.WriteString("(")
		b.WriteString(strings.Join(catalog.Columns(table), ", "))
		b.WriteString(")\n")
	}

	return &SQLGenerator{
		client: client,
		schema: b.String(),
	}
}

// GenerateSQL asks the model for a single SELECT answering the question.
func (g *SQLGenerator) GenerateSQL(ctx context.Context, question string) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", errors.New("question is empty")
	}

	system := fmt.Sprintf(`Ти генерираш PostgreSQL заявки за база данни с читалища.
Схема:
%s
Правила:
- Само SELECT заявки, една заявка, без коментари.
- Колоната town съдържа стойности като 'гр. София' или 'с. Бяла'.
Върни само SQL текста, без обяснения.`, g.schema)

	content, err := g.client.complete(ctx, g.client.cfg.SQLModel, system, question)
	if err != nil {
		return "", fmt.Errorf("generate sql: %w", err)
	}

	return stripCodeFence(content), nil
}
