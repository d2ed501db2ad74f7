package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/chitalishte-ai/query-engine/internal/storage"
)

// bulgarianStopwords are question words the keyword retriever skips.
var bulgarianStopwords = map[string]struct{}{
	"какво": {}, "каква": {}, "какви": {}, "който": {}, "която": {},
	"което": {}, "разкажи": {}, "опиши": {}, "обясни": {}, "колко": {},
	"има": {}, "това": {}, "тези": {}, "една": {}, "един": {},
	"към": {}, "със": {}, "при": {}, "читалище": {},
	"читалището": {}, "читалища": {}, "читалищата": {},
}

// KeywordRetriever answers the retrieval path from the relational store.
// It extracts candidate keywords from the question and searches by name,
// town, and region.
type KeywordRetriever struct {
	repo *storage.ChitalishteRepository
}

// NewKeywordRetriever creates a retriever over the repository.
func NewKeywordRetriever(repo *storage.ChitalishteRepository) *KeywordRetriever {
	return &KeywordRetriever{repo: repo}
}

// Retrieve searches the store for each extracted keyword and formats the
// matches as passages, deduplicated by record ID.
func (r *KeywordRetriever) Retrieve(ctx context.Context, question string, limit int) ([]Passage, error) {
	keywords := extractKeywords(question)
	if len(keywords) == 0 {
		return nil, nil
	}

	seen := make(map[int64]struct{})
	var passages []Passage

	for _, kw := range keywords {
		records, err := r.repo.SearchByKeyword(ctx, kw, limit)
		if err != nil {
			return nil, err
		}
		for _, rec := range records {
			if _, ok := seen[rec.ID]; ok {
				continue
			}
			seen[rec.ID] = struct{}{}
			passages = append(passages, Passage{
				Text:   formatRecord(rec),
				Source: fmt.Sprintf("chitalishte:%d", rec.ID),
			})
			if len(passages) >= limit {
				return passages, nil
			}
		}
	}
	return passages, nil
}

// extractKeywords keeps words of four or more runes that are not question
// stopwords, capped at three to bound query count.
func extractKeywords(question string) []string {
	var keywords []string
	for _, word := range strings.Fields(strings.ToLower(question)) {
		word = strings.Trim(word, `.,!?"'()«»“”`)
		if len([]rune(word)) < 4 {
			continue
		}
		if _, stop := bulgarianStopwords[word]; stop {
			continue
		}
		keywords = append(keywords, word)
		if len(keywords) == 3 {
			break
		}
	}
	return keywords
}

// formatRecord renders one record as a short descriptive passage.
func formatRecord(c storage.Chitalishte) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "НЧ „%s“, %s, обл. %s", c.Name, c.Town, c.Region)
	if c.FoundedYear.Valid {
		fmt.Fprintf(&sb, ", основано %d г.", c.FoundedYear.Int64)
	}
	if c.MembersCount.Valid {
		fmt.Fprintf(&sb, ", %d членове", c.MembersCount.Int64)
	}
	if c.Chairman.Valid {
		fmt.Fprintf(&sb, ", председател %s", c.Chairman.String)
	}
	return sb.String()
}
