package dispatcher

import (
	"sort"
	"strings"
	"unicode"

	"restaurant-assistant/internal/config"
)

// KnowledgeBase answers free-text questions about the restaurant.
type KnowledgeBase interface {
	Search(tenantID, query string, max int) []config.KnowledgeEntry
}

// StaticKnowledge ranks configured entries by how many query words they
// share. Entries without a tenant apply to every tenant.
type StaticKnowledge struct {
	entries []config.KnowledgeEntry
}

func NewStaticKnowledge(entries []config.KnowledgeEntry) *StaticKnowledge {
	return &StaticKnowledge{entries: append([]config.KnowledgeEntry(nil), entries...)}
}

func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

var stopWords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true, "do": true, "does": true,
	"you": true, "we": true, "what": true, "of": true, "to": true, "for": true, "in": true,
}

func (k *StaticKnowledge) Search(tenantID, query string, max int) []config.KnowledgeEntry {
	var terms []string
	for _, w := range words(query) {
		if !stopWords[w] {
			terms = append(terms, w)
		}
	}
	if len(terms) == 0 || max <= 0 {
		return nil
	}

	type hit struct {
		entry config.KnowledgeEntry
		score int
		pos   int
	}
	var hits []hit
	for i, e := range k.entries {
		if e.Tenant != "" && e.Tenant != tenantID {
			continue
		}
		vocab := map[string]bool{}
		for _, w := range words(e.Question + " " + e.Answer) {
			vocab[w] = true
		}
		score := 0
		for _, t := range terms {
			if vocab[t] {
				score++
			}
			for _, tag := range e.Tags {
				if strings.EqualFold(tag, t) {
					score += 2
				}
			}
		}
		if score > 0 {
			hits = append(hits, hit{entry: e, score: score, pos: i})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].pos < hits[j].pos
	})
	if len(hits) > max {
		hits = hits[:max]
	}
	out := make([]config.KnowledgeEntry, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.entry)
	}
	return out
}
