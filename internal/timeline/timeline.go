// Package timeline implements the timeline stage (spec §4.7): date
// extraction via a fixed pattern set, event typing by keyword, and
// duplicate-date anomaly detection.
//
// Grounded on original_source/agents/timeline.py's date patterns and
// event-type keyword table.
package timeline

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sherlock-intel/engine/internal/logging"
	"github.com/sherlock-intel/engine/internal/state"
)

const windowRadius = 80

var monthsPT = map[string]int{
	"janeiro": 1, "fevereiro": 2, "março": 3, "abril": 4, "maio": 5, "junho": 6,
	"julho": 7, "agosto": 8, "setembro": 9, "outubro": 10, "novembro": 11, "dezembro": 12,
}

var monthsEN = map[string]int{
	"january": 1, "february": 2, "march": 3, "april": 4, "may": 5, "june": 6,
	"july": 7, "august": 8, "september": 9, "october": 10, "november": 11, "december": 12,
}

var (
	isoDate    = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	slashDate  = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`)
	dashDate   = regexp.MustCompile(`\b(\d{1,2})-(\d{1,2})-(\d{4})\b`)
	longDatePT = regexp.MustCompile(`(?i)\b(\d{1,2})\s+de\s+(janeiro|fevereiro|março|abril|maio|junho|julho|agosto|setembro|outubro|novembro|dezembro)\s+de\s+(\d{4})\b`)
	longDateEN = regexp.MustCompile(`(?i)\b(january|february|march|april|may|june|july|august|september|october|november|december)\s+(\d{1,2}),?\s+(\d{4})\b`)
)

var eventKeywords = map[state.EventType][]string{
	state.EventMeeting:     {"meeting", "reunião", "encontro", "conference call"},
	state.EventContract:    {"contract", "agreement", "contrato", "acordo", "signed the"},
	state.EventTransaction: {"payment", "transfer", "transaction", "pagamento", "transferência", "wire"},
	state.EventTravel:      {"flight", "travel", "viagem", "voo", "trip to"},
	state.EventSignature:   {"signature", "signed", "assinatura", "assinado"},
	state.EventDelivery:    {"delivery", "shipment", "entrega", "envio"},
}

// Stage runs date extraction and event typing over every document with
// extracted text, then sorts the timeline and flags duplicate-date
// anomalies (spec §4.7).
func Stage(ctx context.Context, s *state.InvestigationState) error {
	seq := 0
	for _, docID := range sortedDocIDs(s.ExtractedText) {
		text := s.ExtractedText[docID]
		for _, match := range findDateMatches(text) {
			seq++
			ev := buildEvent(s, docID, text, match, seq)
			s.Timeline = append(s.Timeline, ev)
		}
	}

	sort.SliceStable(s.Timeline, func(i, j int) bool {
		a, b := s.Timeline[i].Timestamp, s.Timeline[j].Timestamp
		if a == nil && b == nil {
			return false
		}
		if a == nil {
			return false
		}
		if b == nil {
			return true
		}
		return a.Before(*b)
	})

	detectDuplicateDates(s)

	s.CurrentStep = "timeline_complete"
	logging.Info("timeline stage complete", "investigation_id", s.InvestigationID,
		"events", len(s.Timeline), "anomalies", len(s.TemporalAnomalies))
	return nil
}

// dateMatch is one raw date pattern hit.
type dateMatch struct {
	Start, End int
	Time       *time.Time
	DateStr    string
}

func findDateMatches(text string) []dateMatch {
	var out []dateMatch

	for _, loc := range isoDate.FindAllStringSubmatchIndex(text, -1) {
		y, _ := strconv.Atoi(text[loc[2]:loc[3]])
		m, _ := strconv.Atoi(text[loc[4]:loc[5]])
		d, _ := strconv.Atoi(text[loc[6]:loc[7]])
		out = append(out, makeMatch(loc[0], loc[1], y, m, d))
	}
	for _, loc := range slashDate.FindAllStringSubmatchIndex(text, -1) {
		d, _ := strconv.Atoi(text[loc[2]:loc[3]])
		m, _ := strconv.Atoi(text[loc[4]:loc[5]])
		y, _ := strconv.Atoi(text[loc[6]:loc[7]])
		out = append(out, makeMatch(loc[0], loc[1], y, m, d))
	}
	for _, loc := range dashDate.FindAllStringSubmatchIndex(text, -1) {
		d, _ := strconv.Atoi(text[loc[2]:loc[3]])
		m, _ := strconv.Atoi(text[loc[4]:loc[5]])
		y, _ := strconv.Atoi(text[loc[6]:loc[7]])
		out = append(out, makeMatch(loc[0], loc[1], y, m, d))
	}
	for _, loc := range longDatePT.FindAllStringSubmatchIndex(text, -1) {
		d, _ := strconv.Atoi(text[loc[2]:loc[3]])
		monthName := strings.ToLower(text[loc[4]:loc[5]])
		y, _ := strconv.Atoi(text[loc[6]:loc[7]])
		out = append(out, makeMatch(loc[0], loc[1], y, monthsPT[monthName], d))
	}
	for _, loc := range longDateEN.FindAllStringSubmatchIndex(text, -1) {
		monthName := strings.ToLower(text[loc[2]:loc[3]])
		d, _ := strconv.Atoi(text[loc[4]:loc[5]])
		y, _ := strconv.Atoi(text[loc[6]:loc[7]])
		out = append(out, makeMatch(loc[0], loc[1], y, monthsEN[monthName], d))
	}

	return out
}

func makeMatch(start, end, year, month, day int) dateMatch {
	m := dateMatch{Start: start, End: end}
	if month < 1 || month > 12 || day < 1 || day > 31 || year < 1900 || year > 2100 {
		return m
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	m.Time = &t
	m.DateStr = t.Format("2006-01-02")
	return m
}

func buildEvent(s *state.InvestigationState, docID, text string, match dateMatch, seq int) *state.TimelineEvent {
	from := match.Start - windowRadius
	if from < 0 {
		from = 0
	}
	to := match.End + windowRadius
	if to > len(text) {
		to = len(text)
	}
	description := text[from:to]
	if len(description) > 200 {
		description = description[:200]
	}

	evType := classifyEventType(description)
	entities := entitiesInDescription(s, docID, description)

	confidence := 0.5
	if match.Time != nil {
		confidence = 0.9
	}

	return &state.TimelineEvent{
		EventID:             fmt.Sprintf("%s-evt-%d", docID, seq),
		Timestamp:           match.Time,
		TimestampConfidence: confidence,
		Description:         description,
		EntitiesInvolved:    entities,
		SourceDocIDs:        []string{docID},
		Date:                match.DateStr,
		Type:                evType,
	}
}

func classifyEventType(description string) state.EventType {
	lower := strings.ToLower(description)
	for t, keywords := range eventKeywords {
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				return t
			}
		}
	}
	return state.EventGeneric
}

func entitiesInDescription(s *state.InvestigationState, docID, description string) []string {
	var out []string
	for _, e := range s.Entities {
		if _, ok := e.Documents[docID]; !ok {
			continue
		}
		if strings.Contains(description, e.Text) {
			out = append(out, e.Text)
			if len(out) >= 10 {
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

// detectDuplicateDates flags day-resolution dates shared by 2+ events
// (spec §4.7).
func detectDuplicateDates(s *state.InvestigationState) {
	byDate := map[string][]string{}
	for _, ev := range s.Timeline {
		if ev.Date == "" {
			continue
		}
		byDate[ev.Date] = append(byDate[ev.Date], ev.EventID)
	}
	var dates []string
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	for _, d := range dates {
		ids := byDate[d]
		if len(ids) < 2 {
			continue
		}
		s.TemporalAnomalies = append(s.TemporalAnomalies, &state.TemporalAnomaly{
			Category:    "possible_duplicate_date",
			Description: fmt.Sprintf("%d events share date %s", len(ids), d),
			EventIDs:    ids,
		})
	}
}

func sortedDocIDs(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
