package ingestion

import "strings"

// ptStopwords and enStopwords are the closed-class word sets the
// stop-word ratio heuristic counts against (original_source/agents/
// ingestion.py's fallback detect_language, used whenever no language
// library is available).
var ptStopwords = map[string]struct{}{
	"o": {}, "a": {}, "os": {}, "as": {}, "de": {}, "do": {}, "da": {},
	"dos": {}, "das": {}, "em": {}, "no": {}, "na": {}, "nos": {}, "nas": {},
	"um": {}, "uma": {}, "que": {}, "para": {}, "com": {}, "por": {},
	"não": {}, "é": {}, "foi": {}, "ser": {}, "está": {}, "são": {},
	"conforme": {}, "anexo": {}, "transação": {}, "empresa": {}, "este": {},
}

var enStopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "of": {}, "to": {}, "in": {}, "on": {},
	"for": {}, "with": {}, "by": {}, "is": {}, "are": {}, "was": {},
	"were": {}, "be": {}, "been": {}, "this": {}, "that": {}, "and": {},
	"or": {}, "not": {}, "it": {}, "as": {}, "at": {}, "from": {},
}

// detectLanguage implements spec §4.2 step 4's fallback heuristic: count
// stop-word hits per language over the lowercased word stream and return
// whichever language has a higher hit ratio, or "unknown" when neither
// language clears a minimal ratio.
func detectLanguage(text string) string {
	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		return "unknown"
	}

	ptHits, enHits := 0, 0
	for _, w := range words {
		w = strings.Trim(w, ".,;:!?\"'()[]{}")
		if _, ok := ptStopwords[w]; ok {
			ptHits++
		}
		if _, ok := enStopwords[w]; ok {
			enHits++
		}
	}

	total := float64(len(words))
	ptRatio := float64(ptHits) / total
	enRatio := float64(enHits) / total

	const minRatio = 0.02
	switch {
	case ptRatio < minRatio && enRatio < minRatio:
		return "unknown"
	case ptRatio >= enRatio:
		return "pt"
	default:
		return "en"
	}
}
