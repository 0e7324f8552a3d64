// Package linking implements the semantic linker stage (spec §4.6):
// paragraph/window chunking into a vector store, similarity-threshold
// document linking, rule-based contradiction detection, and narrative
// thread clustering via union-find.
//
// Grounded on original_source/agents/semantic_linker.py for the linking
// algorithm and structurally on the teacher's internal/linking/
// orchestrator.go phase-staged shape (kept as internal/pipeline's
// orchestration style for this stage).
package linking

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/sherlock-intel/engine/internal/logging"
	"github.com/sherlock-intel/engine/internal/state"
	"github.com/sherlock-intel/engine/internal/vectorstore"
)

var stopwords = map[string]struct{}{
	"this": {}, "that": {}, "with": {}, "from": {}, "have": {}, "were": {},
	"been": {}, "their": {}, "about": {}, "which": {}, "would": {}, "there": {},
	"para": {}, "como": {}, "esta": {}, "este": {}, "foram": {}, "sobre": {},
}

var (
	numericToken = regexp.MustCompile(`\b\d[\d.,]*\b`)
	dateToken    = regexp.MustCompile(`\b\d{1,4}[-/]\d{1,2}[-/]\d{1,4}\b`)
)

// Stage runs the semantic linker over every document with extracted
// text (spec §4.6).
func Stage(ctx context.Context, s *state.InvestigationState, store vectorstore.Store) error {
	cfg := s.Config
	docIDs := sortedDocIDs(s.ExtractedText)

	chunksByDoc := map[string][]vectorstore.Chunk{}
	var allChunks []vectorstore.Chunk
	for _, docID := range docIDs {
		text := s.ExtractedText[docID]
		for i, c := range chunkText(text) {
			chunk := vectorstore.Chunk{
				ID:       fmt.Sprintf("%s-chunk-%d", docID, i),
				DocID:    docID,
				Text:     c,
				Vector:   localEmbed(c),
				Position: i,
			}
			chunksByDoc[docID] = append(chunksByDoc[docID], chunk)
			allChunks = append(allChunks, chunk)
		}
	}
	if err := store.Upsert(ctx, allChunks); err != nil {
		logging.Warn("vector store upsert failed", "error", err)
	}

	linkCount := map[string]int{}
	seenPairs := map[string]*state.SemanticLink{}

	topN := 10
	threshold := cfg.SimilarityThreshold
	maxPerDoc := cfg.MaxLinksPerDocument
	minShared := cfg.MinSharedEntities

	for _, docID := range docIDs {
		chunks := chunksByDoc[docID]
		if maxPerDoc > 0 && linkCount[docID] >= maxPerDoc {
			continue
		}
		bestByDoc := map[string]float64{} // other doc id -> best similarity
		for _, chunk := range chunks {
			matches, err := store.Query(ctx, docID, chunk.Vector, topN)
			if err != nil {
				continue
			}
			for _, m := range matches {
				otherDoc := otherDocID(m.Chunk, chunksByDoc)
				if otherDoc == "" || otherDoc == docID {
					continue
				}
				similarity := max0(1 - m.Distance)
				if similarity > bestByDoc[otherDoc] {
					bestByDoc[otherDoc] = similarity
				}
			}
		}

		for otherDoc, similarity := range bestByDoc {
			if similarity < threshold {
				continue
			}
			a, b := docID, otherDoc
			if a > b {
				a, b = b, a
			}
			pairKey := a + "\x00" + b
			if _, exists := seenPairs[pairKey]; exists {
				continue
			}
			if maxPerDoc > 0 && (linkCount[a] >= maxPerDoc || linkCount[b] >= maxPerDoc) {
				continue
			}

			sharedEntities := sharedEntityTexts(s, a, b)
			if minShared > 0 && len(sharedEntities) < minShared {
				continue
			}
			sharedConcepts := sharedConceptWords(s.ExtractedText[a], s.ExtractedText[b])

			link := &state.SemanticLink{
				DocIDA:          a,
				DocIDB:          b,
				SimilarityScore: similarity,
				LinkType:        "semantic",
				Rationale:       fmt.Sprintf("top chunk similarity %.2f above threshold %.2f", similarity, threshold),
				SharedEntities:  sharedEntities,
				SharedConcepts:  sharedConcepts,
			}
			s.SemanticLinks = append(s.SemanticLinks, link)
			seenPairs[pairKey] = link
			linkCount[a]++
			linkCount[b]++
		}
	}

	detectContradictions(s, seenPairs)
	buildNarrativeThreads(s, seenPairs)

	s.CurrentStep = "semantic_linking_complete"
	logging.Info("semantic linking stage complete", "investigation_id", s.InvestigationID,
		"links", len(s.SemanticLinks), "contradictions", len(s.Contradictions), "threads", len(s.NarrativeThreads))
	return nil
}

func otherDocID(c vectorstore.Chunk, byDoc map[string][]vectorstore.Chunk) string {
	if c.DocID != "" {
		return c.DocID
	}
	for docID, chunks := range byDoc {
		for _, ch := range chunks {
			if ch.ID == c.ID {
				return docID
			}
		}
	}
	return ""
}

func max0(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

func sharedEntityTexts(s *state.InvestigationState, a, b string) []string {
	var shared []string
	for _, e := range s.Entities {
		_, inA := e.Documents[a]
		_, inB := e.Documents[b]
		if inA && inB {
			shared = append(shared, e.Text)
		}
	}
	sort.Strings(shared)
	return shared
}

func sharedConceptWords(textA, textB string) []string {
	wordsA := significantWords(textA)
	wordsB := significantWords(textB)
	var shared []string
	for w := range wordsA {
		if _, ok := wordsB[w]; ok {
			shared = append(shared, w)
		}
	}
	sort.Strings(shared)
	return shared
}

func significantWords(text string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,;:!?\"'()[]{}")
		if len(w) < 4 {
			continue
		}
		if _, stop := stopwords[w]; stop {
			continue
		}
		out[w] = struct{}{}
	}
	return out
}

// detectContradictions implements spec §4.6's rule-based pass: for each
// linked pair, compare numeric and date token sets; a nonempty disjoint
// pair on either axis emits a contradiction.
func detectContradictions(s *state.InvestigationState, links map[string]*state.SemanticLink) {
	for pairKey := range links {
		parts := strings.SplitN(pairKey, "\x00", 2)
		if len(parts) != 2 {
			continue
		}
		a, b := parts[0], parts[1]
		textA, textB := s.ExtractedText[a], s.ExtractedText[b]

		numA := tokenSet(numericToken, textA)
		numB := tokenSet(numericToken, textB)
		if disjointNonempty(numA, numB) {
			s.Contradictions = append(s.Contradictions, &state.Contradiction{
				DocIDA: a, DocIDB: b, Type: "numeric_mismatch",
				Detail: "documents report disjoint numeric figures",
			})
		}

		dateA := tokenSet(dateToken, textA)
		dateB := tokenSet(dateToken, textB)
		if disjointNonempty(dateA, dateB) {
			s.Contradictions = append(s.Contradictions, &state.Contradiction{
				DocIDA: a, DocIDB: b, Type: "date_mismatch",
				Detail: "documents report disjoint dates",
			})
		}
	}
}

func tokenSet(re *regexp.Regexp, text string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, m := range re.FindAllString(text, -1) {
		out[m] = struct{}{}
	}
	return out
}

func disjointNonempty(a, b map[string]struct{}) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	for k := range a {
		if _, ok := b[k]; ok {
			return false
		}
	}
	return true
}

// buildNarrativeThreads implements spec §4.6's connected-component pass
// via union-find over the link graph.
func buildNarrativeThreads(s *state.InvestigationState, links map[string]*state.SemanticLink) {
	parent := map[string]string{}
	var find func(string) string
	find = func(x string) string {
		if _, ok := parent[x]; !ok {
			parent[x] = x
		}
		if parent[x] != x {
			parent[x] = find(parent[x])
		}
		return parent[x]
	}
	union := func(a, b string) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}

	incidentWeight := map[string]float64{}
	for _, link := range links {
		union(link.DocIDA, link.DocIDB)
		incidentWeight[link.DocIDA] += link.SimilarityScore
		incidentWeight[link.DocIDB] += link.SimilarityScore
	}

	components := map[string][]string{}
	for doc := range parent {
		root := find(doc)
		components[root] = append(components[root], doc)
	}

	var roots []string
	for root := range components {
		roots = append(roots, root)
	}
	sort.Strings(roots)

	for _, root := range roots {
		members := components[root]
		if len(members) < 2 {
			continue
		}
		sort.Strings(members)

		central := members[0]
		for _, m := range members {
			if incidentWeight[m] > incidentWeight[central] {
				central = m
			}
		}

		title := threadTitle(s.ExtractedText[central])
		s.NarrativeThreads = append(s.NarrativeThreads, &state.NarrativeThread{
			DocIDs:       members,
			CentralDocID: central,
			Title:        title,
		})
	}
}

// threadTitle picks the first informative sentence (>15 chars) from
// text, falling back to a truncated prefix.
func threadTitle(text string) string {
	sentences := strings.FieldsFunc(text, func(r rune) bool { return r == '.' || r == '\n' })
	for _, s := range sentences {
		s = strings.TrimSpace(s)
		if len(s) > 15 {
			if len(s) > 120 {
				s = s[:120]
			}
			return s
		}
	}
	if len(text) > 60 {
		return text[:60]
	}
	return text
}

func sortedDocIDs(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
