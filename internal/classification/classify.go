// Package classification implements the classification stage (spec
// §4.3): domain/document-type keyword scoring, language propagation, and
// the priority-score formula, ported byte-for-byte from
// original_source/agents/classifier.py's keyword maps and thresholds.
package classification

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/sherlock-intel/engine/internal/logging"
	"github.com/sherlock-intel/engine/internal/state"
)

// domainKeywords mirrors original_source/agents/classifier.py's
// DOMAIN_KEYWORDS table.
var domainKeywords = map[string][]string{
	"finance":        {"offshore", "transação", "valor", "pagamento", "orçamento", "cnpj", "cpf", "payment", "budget", "invoice", "transaction"},
	"legal":          {"contrato", "cláusula", "juiz", "tribunal", "lei", "contract", "clause", "court", "law"},
	"technical":      {"api", "software", "sistema", "desenvolvimento", "code", "implementation"},
	"corporate":      {"reunião", "diretor", "empresa", "meeting", "ceo", "board"},
	"administrative": {"nota fiscal", "memorando", "memo", "relatório interno"},
}

// docTypeKeywords mirrors DOC_TYPE_KEYWORDS.
var docTypeKeywords = map[string][]string{
	"contract":  {"contrato", "contract", "termo", "agreement", "cláusula", "parte"},
	"invoice":   {"nota fiscal", "invoice", "nf-", "valor total", "valor r$"},
	"report":    {"relatório", "report", "análise", "analysis", "conclusão"},
	"email":     {"from:", "to:", "subject:", "re:", "assunto", "enviado por"},
	"technical": {"especificação", "spec", "requisito", "requirement"},
	"legal":     {"petição", "sentença", "autos"},
}

// priorityBoostKeywords are the "confidential"/"urgent"-class boosts
// (+0.3, applied at most once).
var priorityBoostKeywords = []string{"confidential", "urgent", "privileged", "confidencial", "urgente", "sigiloso"}

// offshoreKeywords trigger the +0.15 boost.
var offshoreKeywords = []string{"offshore", "transação"}

// referencePrefixes phrases trigger the +0.15 boost ("conforme anexo X").
var referencePrefixes = []string{"conforme anexo", "see attachment", "vide anexo", "per attachment"}

const (
	domainScanChars   = 5000
	docTypeScanChars  = 3000
	fragmentWordCount = 50
)

// Stage runs the classification stage over every document with
// extracted text (spec §4.3).
func Stage(ctx context.Context, s *state.InvestigationState) error {
	order := 0
	for docID, doc := range s.Documents {
		text, ok := s.ExtractedText[docID]
		if !ok || doc == nil {
			continue
		}
		c := classifyOne(docID, text, doc.Language)
		order++
		c.ProcessingOrder = order
		s.Classifications[docID] = c
	}
	s.CurrentStep = "classification_complete"
	logging.Info("classification stage complete", "investigation_id", s.InvestigationID, "classified", len(s.Classifications))
	return nil
}

func wordCount(text string) int {
	return len(strings.Fields(text))
}

func classifyOne(docID, text, language string) *state.Classification {
	c := &state.Classification{DocID: docID, Language: language}

	if wordCount(text) < fragmentWordCount {
		c.DocumentType = "fragment"
		c.Domain = "other"
		if language == "" {
			c.Language = "unknown"
		}
		c.PriorityScore = 0.3
		return c
	}

	lower := strings.ToLower(text)
	domainWindow := firstNChars(lower, domainScanChars)
	docTypeWindow := firstNChars(lower, docTypeScanChars)

	domain, domainHits, domainConf := bestKeywordMatch(domainWindow, domainKeywords)
	docType, docTypeHits, docTypeConf := bestKeywordMatch(docTypeWindow, docTypeKeywords)

	c.Domain = domain
	c.DocumentType = docType
	c.DomainConfidence = domainConf
	c.DocTypeConfidence = docTypeConf
	c.KeywordsDetected = append(append([]string{}, domainHits...), docTypeHits...)
	c.LanguageConfidence = 0.7
	if language == "unknown" || language == "" {
		c.Language = "unknown"
		c.LanguageConfidence = 0.0
	}

	priority := 0.5
	var reasons []string

	if docType == "contract" || docType == "invoice" || docType == "report" {
		priority += 0.2
		reasons = append(reasons, "doc_type_boost:"+docType)
	}
	if domain == "finance" || domain == "legal" {
		priority += 0.2
		reasons = append(reasons, "domain_boost:"+domain)
	}
	if containsAny(lower, priorityBoostKeywords) {
		priority += 0.3
		reasons = append(reasons, "contains_keyword_confidencial")
	}
	if containsAny(lower, offshoreKeywords) {
		priority += 0.15
		reasons = append(reasons, "offshore_keyword")
	}

	suspicious := detectSuspiciousPatterns(text)
	if n := len(suspicious); n > 0 {
		boostCount := n
		if boostCount > 3 {
			boostCount = 3
		}
		priority += 0.1 * float64(boostCount)
		reasons = append(reasons, "suspicious_pattern")
	}
	c.SuspiciousPatterns = suspicious

	if hasReferencePattern(lower) {
		priority += 0.15
		reasons = append(reasons, "references_other_docs")
	}

	if c.Language == "unknown" {
		priority -= 0.2
		reasons = append(reasons, "unknown_language_penalty")
	}

	if priority < 0 {
		priority = 0
	}
	if priority > 1 {
		priority = 1
	}
	c.PriorityScore = roundTo2(priority)
	c.PriorityReasons = reasons
	c.EstimatedRelevance = state.RelevanceForPriority(c.PriorityScore)
	return c
}

func firstNChars(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

func bestKeywordMatch(text string, table map[string][]string) (label string, hits []string, confidence float64) {
	bestCount := -1
	for key, keywords := range table {
		count := 0
		var matched []string
		for _, kw := range keywords {
			if strings.Contains(text, kw) {
				count++
				matched = append(matched, kw)
			}
		}
		if count > bestCount {
			bestCount = count
			label = key
			hits = matched
		}
	}
	if bestCount <= 0 {
		return "other", nil, 0
	}
	confidence = 0.5 + 0.1*float64(bestCount)
	if confidence > 0.95 {
		confidence = 0.95
	}
	return label, hits, confidence
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func hasReferencePattern(lowerText string) bool {
	for _, p := range referencePrefixes {
		if strings.Contains(lowerText, p) {
			return true
		}
	}
	return false
}

// detectSuspiciousPatterns flags redaction blocks ("[REDACTED]"/"XXXXX")
// and runs of repeated ellipses, returning one entry per match kind found.
func detectSuspiciousPatterns(text string) []string {
	var found []string
	lower := strings.ToLower(text)
	if strings.Contains(lower, "[redacted]") || strings.Contains(text, "XXXXX") || strings.Contains(text, "█████") {
		found = append(found, "redaction_block")
	}
	if strings.Contains(text, "......") || strings.Contains(text, "[...]") {
		found = append(found, "repeated_ellipses")
	}
	return found
}

func roundTo2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
