// Package entities implements the entity extraction stage (spec §4.4):
// NER-or-regex mention extraction, bucket merge by (normalized_text,
// type), and co-occurrence relationship construction.
//
// Grounded on original_source/agents/entity_extractor.py (regex fallback
// extractors, the _normalize title-case rule, bucket merge, sorted-pair
// relationship canonicalization, and the confidence formula already
// implemented as state.RelationshipConfidence).
package entities

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"regexp"
	"sort"
	"strings"

	"github.com/sherlock-intel/engine/internal/logging"
	"github.com/sherlock-intel/engine/internal/state"
)

// maxTextLength is the per-document cap on text scanned for entities
// (spec §4.4: "Text length cap per document: one million characters").
const maxTextLength = 1_000_000

// NERModel is the capability interface for a named-entity recognizer.
// The pack ships no Go NLP library, so RegexNER below is the only
// implementation, but stages are written against this interface per
// spec §9's capability-probing guidance.
type NERModel interface {
	Extract(text string, allowed map[state.EntityType]struct{}) []Mention
}

// Mention is one raw entity occurrence found in a document's text.
type Mention struct {
	Text           string
	NormalizedText string
	Type           state.EntityType
	Start          int
	End            int
}

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`(\+?\d{1,3}[\s.\-]?)?\(?\d{2,3}\)?[\s.\-]?\d{3,5}[\s.\-]?\d{3,4}`)
	cpfPattern   = regexp.MustCompile(`\b\d{3}\.\d{3}\.\d{3}-\d{2}\b|\b\d{11}\b`)
	cnpjPattern  = regexp.MustCompile(`\b\d{2}\.\d{3}\.\d{3}/\d{4}-\d{2}\b|\b\d{14}\b`)
)

// RegexNER is the always-available fallback extractor: the EMAIL,
// PHONE, CPF, and CNPJ regexes of spec §4.4, plus a minimal
// capitalized-phrase heuristic standing in for PERSON/ORG/GPE NER when
// no model is configured.
type RegexNER struct{}

// Extract implements NERModel.
func (RegexNER) Extract(text string, allowed map[state.EntityType]struct{}) []Mention {
	var out []Mention
	out = append(out, matchAll(text, emailPattern, state.EntityEmail, allowed)...)
	out = append(out, matchAll(text, phonePattern, state.EntityPhone, allowed)...)
	out = append(out, matchAll(text, cnpjPattern, state.EntityCNPJ, allowed)...)
	out = append(out, filterOverlapping(matchAll(text, cpfPattern, state.EntityCPF, allowed), out)...)
	out = append(out, capitalizedPhrases(text, allowed)...)
	return out
}

func matchAll(text string, re *regexp.Regexp, t state.EntityType, allowed map[state.EntityType]struct{}) []Mention {
	if _, ok := allowed[t]; !ok {
		return nil
	}
	var out []Mention
	for _, loc := range re.FindAllStringIndex(text, -1) {
		raw := text[loc[0]:loc[1]]
		out = append(out, Mention{
			Text:           raw,
			NormalizedText: normalizeMention(raw, t),
			Type:           t,
			Start:          loc[0],
			End:            loc[1],
		})
	}
	return out
}

// filterOverlapping drops CPF matches (11 bare digits) that fall inside
// a span already claimed by a CNPJ match (14 digits), since a bare-digit
// CPF regex can otherwise match a substring of a CNPJ.
func filterOverlapping(candidates, existing []Mention) []Mention {
	var out []Mention
	for _, c := range candidates {
		overlap := false
		for _, e := range existing {
			if e.Type == state.EntityCNPJ && c.Start >= e.Start && c.End <= e.End {
				overlap = true
				break
			}
		}
		if !overlap {
			out = append(out, c)
		}
	}
	return out
}

// capitalizedPhraseRun matches runs of 1-4 capitalized words, the
// regex-only stand-in for PERSON/ORG/GPE recognition.
var capitalizedPhraseRun = regexp.MustCompile(`\b([A-ZÀ-Ý][a-zà-ÿ]+(?:\s+[A-ZÀ-Ý][a-zà-ÿ]+){0,3})\b`)

var commonLeadingWords = map[string]struct{}{
	"The": {}, "This": {}, "That": {}, "These": {}, "Those": {}, "A": {}, "An": {},
	"O": {}, "Este": {}, "Esta": {},
}

func capitalizedPhrases(text string, allowed map[state.EntityType]struct{}) []Mention {
	if _, ok := allowed[state.EntityOrg]; !ok {
		if _, ok := allowed[state.EntityPerson]; !ok {
			return nil
		}
	}
	var out []Mention
	for _, loc := range capitalizedPhraseRun.FindAllStringIndex(text, -1) {
		raw := text[loc[0]:loc[1]]
		words := strings.Fields(raw)
		if len(words) == 0 {
			continue
		}
		if _, skip := commonLeadingWords[words[0]]; skip && len(words) == 1 {
			continue
		}
		t := state.EntityOrg
		if len(words) <= 2 {
			t = state.EntityPerson
		}
		if _, ok := allowed[t]; !ok {
			continue
		}
		out = append(out, Mention{
			Text:           raw,
			NormalizedText: normalizeMention(raw, t),
			Type:           t,
			Start:          loc[0],
			End:            loc[1],
		})
	}
	return out
}

// normalizeMention applies the _normalize title-case rule: trim, collapse
// internal whitespace, and title-case words for name-like types;
// lower-case emails; leave other structured identifiers (phone/CPF/CNPJ)
// untouched apart from trimming.
func normalizeMention(raw string, t state.EntityType) string {
	trimmed := strings.TrimSpace(strings.Join(strings.Fields(raw), " "))
	switch t {
	case state.EntityPerson, state.EntityOrg, state.EntityGPE, state.EntityLoc:
		return titleCase(trimmed)
	case state.EntityEmail:
		return strings.ToLower(trimmed)
	default:
		return trimmed
	}
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		if len(w) == 0 {
			continue
		}
		r := []rune(w)
		r[0] = []rune(strings.ToUpper(string(r[0])))[0]
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

// Stage runs entity extraction and co-occurrence relationship building
// over every document with at least 10 characters of text (spec §4.4).
func Stage(ctx context.Context, s *state.InvestigationState, ner NERModel) error {
	if ner == nil {
		ner = RegexNER{}
	}
	allowed := s.Config.EntityTypeWhitelist

	buckets := map[string]*state.Entity{}
	docOrder := sortedDocIDs(s.Documents)

	for _, docID := range docOrder {
		text, ok := s.ExtractedText[docID]
		if !ok || len(text) < 10 {
			continue
		}
		if len(text) > maxTextLength {
			text = text[:maxTextLength]
		}

		mentions := ner.Extract(text, allowed)
		seenInDoc := map[string]struct{}{}
		for _, m := range mentions {
			if m.NormalizedText == "" {
				continue
			}
			key := m.NormalizedText + "\x00" + string(m.Type)
			ent, exists := buckets[key]
			if !exists {
				ent = &state.Entity{
					EntityID:       entityID(key),
					Text:           m.Text,
					NormalizedText: m.NormalizedText,
					Type:           m.Type,
					Documents:      map[string]struct{}{},
					Variations:     map[string]struct{}{},
				}
				buckets[key] = ent
				s.Entities[ent.EntityID] = ent
			}
			ent.Documents[docID] = struct{}{}
			ent.Variations[m.Text] = struct{}{}
			if len(ent.Contexts) < 10 {
				ent.Contexts = append(ent.Contexts, contextWindow(text, m.Start, m.End))
			}
			seenInDoc[ent.EntityID] = struct{}{}
		}

		buildCoOccurrence(s, seenInDoc, docID)
	}

	for _, ent := range buckets {
		ent.Frequency = len(ent.Documents)
		ent.Confidence = entityConfidence(ent.Frequency)
		s.Entities[ent.EntityID] = ent
	}

	s.CurrentStep = "entity_extraction_complete"
	logging.Info("entity extraction stage complete", "investigation_id", s.InvestigationID, "entities", len(s.Entities), "relationships", len(s.Relationships))
	return nil
}

func entityConfidence(frequency int) float64 {
	c := 0.5 + 0.1*float64(frequency)
	if c > 0.95 {
		c = 0.95
	}
	return c
}

// relIndexKey is the lookup key for a sorted entity-id pair, used to
// accumulate evidence onto an existing relationship in O(1).
func relIndexKey(a, b string) string { return a + "\x00" + b }

func buildCoOccurrence(s *state.InvestigationState, entityIDsInDoc map[string]struct{}, docID string) {
	ids := make([]string, 0, len(entityIDsInDoc))
	for id := range entityIDsInDoc {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	index := map[string]*state.Relationship{}
	for _, r := range s.Relationships {
		index[relIndexKey(r.SourceEntityID, r.TargetEntityID)] = r
	}

	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			a, b := ids[i], ids[j]
			if a > b {
				a, b = b, a
			}
			key := relIndexKey(a, b)
			rel, ok := index[key]
			if !ok {
				relType := state.RelCoOccurrence
				if ea, eb := s.Entities[a], s.Entities[b]; ea != nil && eb != nil && ea.Type != eb.Type {
					relType = state.RelAssociatedWith
				}
				rel = &state.Relationship{
					SourceEntityID:   a,
					TargetEntityID:   b,
					RelationshipType: relType,
					Evidence:         map[string]struct{}{},
				}
				s.Relationships = append(s.Relationships, rel)
				index[key] = rel
			}
			rel.Evidence[docID] = struct{}{}
			rel.EvidenceCount = len(rel.Evidence)
			rel.Weight = float64(rel.EvidenceCount)
			rel.Confidence = state.RelationshipConfidence(rel.EvidenceCount)
		}
	}
}

func contextWindow(text string, start, end int) string {
	from := start - 50
	if from < 0 {
		from = 0
	}
	to := end + 50
	if to > len(text) {
		to = len(text)
	}
	return text[from:to]
}

func entityID(key string) string {
	h := sha1.Sum([]byte(key))
	return hex.EncodeToString(h[:])[:16]
}

func sortedDocIDs(docs map[string]*state.Document) []string {
	out := make([]string, 0, len(docs))
	for id := range docs {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
