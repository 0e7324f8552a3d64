// Package patterns implements the pattern recognition stage (spec
// §4.8): degree analysis, Louvain-style community detection, temporal
// sequence summarization, and term-frequency outlier flagging over the
// in-memory entity/relationship graph.
//
// Grounded on original_source/agents/pattern_recognition.py (degree
// z-score, Louvain-style community pass, term frequency). No
// third-party graph analytics library ships in the pack, so degree,
// connected components, and a single Louvain pass are hand-rolled (see
// DESIGN.md).
package patterns

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/sherlock-intel/engine/internal/logging"
	"github.com/sherlock-intel/engine/internal/state"
)

const (
	topDegreeCount    = 10
	topTermCount      = 15
	minTermLength     = 4
	maxTemporalEvents = 5
)

var genericStopwords = map[string]struct{}{
	"that": {}, "this": {}, "with": {}, "from": {}, "have": {}, "were": {},
	"been": {}, "their": {}, "about": {}, "which": {}, "would": {}, "there": {},
	"will": {}, "into": {}, "such": {}, "also": {}, "para": {}, "como": {},
}

// Stage runs pattern recognition over the state's entity/relationship
// graph, timeline, and extracted text (spec §4.8).
func Stage(ctx context.Context, s *state.InvestigationState) error {
	degree := computeDegree(s)
	emitDegreePatterns(s, degree)
	emitCommunityPatterns(s, degree)
	emitTemporalSequencePattern(s)
	emitTermFrequencyPatterns(s)

	s.CurrentStep = "pattern_recognition_complete"
	logging.Info("pattern recognition stage complete", "investigation_id", s.InvestigationID,
		"patterns", len(s.Patterns), "anomalies", len(s.Anomalies))
	return nil
}

func computeDegree(s *state.InvestigationState) map[string]int {
	degree := map[string]int{}
	for id := range s.Entities {
		degree[id] = 0
	}
	for _, r := range s.Relationships {
		degree[r.SourceEntityID]++
		degree[r.TargetEntityID]++
	}
	return degree
}

func meanStdDev(values []int) (mean, stddev float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range values {
		sum += float64(v)
	}
	mean = sum / float64(len(values))
	var variance float64
	for _, v := range values {
		d := float64(v) - mean
		variance += d * d
	}
	variance /= float64(len(values))
	return mean, math.Sqrt(variance)
}

func emitDegreePatterns(s *state.InvestigationState, degree map[string]int) {
	if len(degree) == 0 {
		return
	}
	ids := make([]string, 0, len(degree))
	values := make([]int, 0, len(degree))
	for id, d := range degree {
		ids = append(ids, id)
		values = append(values, d)
	}
	mean, stddev := meanStdDev(values)

	sort.Slice(ids, func(i, j int) bool {
		if degree[ids[i]] != degree[ids[j]] {
			return degree[ids[i]] > degree[ids[j]]
		}
		return ids[i] < ids[j]
	})
	if len(ids) > topDegreeCount {
		ids = ids[:topDegreeCount]
	}

	threshold := s.Config.OutlierZThreshold

	for _, id := range ids {
		ent := s.Entities[id]
		if ent == nil {
			continue
		}
		z := 0.0
		if stddev > 0 {
			z = (float64(degree[id]) - mean) / stddev
		}
		s.Patterns = append(s.Patterns, &state.Pattern{
			PatternID:        fmt.Sprintf("pattern-degree-%s", id),
			PatternType:      state.PatternHighDegree,
			Description:      fmt.Sprintf("%s has high connectivity (%d relationships)", ent.Text, degree[id]),
			EntitiesInvolved: []string{ent.Text},
			Severity:         "medium",
			Occurrences:      degree[id],
			Confidence:       0.7,
		})
		if threshold > 0 && z >= threshold {
			s.Anomalies = append(s.Anomalies, &state.Anomaly{
				Category:    "degree_outlier",
				Description: fmt.Sprintf("%s's connectivity is a statistical outlier (z=%.2f)", ent.Text, z),
				Severity:    "high",
				EntityRef:   ent.EntityID,
				ZScore:      z,
			})
		}
	}
}

// ComputeCommunities runs a single greedy Louvain-style pass: start
// with every entity in its own community, then repeatedly move each
// entity to the neighboring community that yields the largest
// modularity gain, until no positive-gain move remains. Exported so
// the graph construction stage (spec §4.9) can reuse the same
// community assignment for its community-tagged top-entities output.
func ComputeCommunities(entities map[string]*state.Entity, relationships []*state.Relationship, degree map[string]int) map[string]int {
	community := map[string]int{}
	if len(entities) == 0 {
		return community
	}
	ids := make([]string, 0, len(entities))
	for id := range entities {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for i, id := range ids {
		community[id] = i
	}

	totalWeight := 0.0
	adj := map[string]map[string]float64{}
	for _, r := range relationships {
		totalWeight += r.Weight
		if adj[r.SourceEntityID] == nil {
			adj[r.SourceEntityID] = map[string]float64{}
		}
		if adj[r.TargetEntityID] == nil {
			adj[r.TargetEntityID] = map[string]float64{}
		}
		adj[r.SourceEntityID][r.TargetEntityID] += r.Weight
		adj[r.TargetEntityID][r.SourceEntityID] += r.Weight
	}
	if totalWeight == 0 {
		return community
	}
	m2 := 2 * totalWeight

	improved := true
	for pass := 0; improved && pass < 20; pass++ {
		improved = false
		for _, id := range ids {
			bestGain := 0.0
			bestCommunity := community[id]
			neighborsSeen := map[int]struct{}{}
			for other, w := range adj[id] {
				c := community[other]
				if _, seen := neighborsSeen[c]; seen {
					continue
				}
				neighborsSeen[c] = struct{}{}
				if c == community[id] {
					continue
				}
				gain := w/totalWeight - float64(degree[id])*communityDegree(community, degree, c)/m2
				if gain > bestGain {
					bestGain = gain
					bestCommunity = c
				}
			}
			if bestCommunity != community[id] {
				community[id] = bestCommunity
				improved = true
			}
		}
	}
	return community
}

func communityDegree(community map[string]int, degree map[string]int, c int) float64 {
	sum := 0.0
	for id, comm := range community {
		if comm == c {
			sum += float64(degree[id])
		}
	}
	return sum
}

// emitCommunityPatterns groups entities by ComputeCommunities and emits
// a pattern for every community at or above the configured minimum size.
func emitCommunityPatterns(s *state.InvestigationState, degree map[string]int) {
	if len(s.Entities) == 0 {
		return
	}
	community := ComputeCommunities(s.Entities, s.Relationships, degree)

	groups := map[int][]string{}
	for id, c := range community {
		groups[c] = append(groups[c], id)
	}

	minSize := s.Config.MinClusterSize
	var communityIDs []int
	for c := range groups {
		communityIDs = append(communityIDs, c)
	}
	sort.Ints(communityIDs)

	for _, c := range communityIDs {
		members := groups[c]
		if len(members) < minSize {
			continue
		}
		sort.Strings(members)
		var texts []string
		for _, id := range members {
			if ent := s.Entities[id]; ent != nil {
				texts = append(texts, ent.Text)
			}
		}
		s.Patterns = append(s.Patterns, &state.Pattern{
			PatternID:        fmt.Sprintf("pattern-community-%d", c),
			PatternType:      state.PatternCommunity,
			Description:      fmt.Sprintf("community of %d densely co-occurring entities", len(members)),
			EntitiesInvolved: texts,
			Severity:         "low",
			Occurrences:      len(members),
			Confidence:       0.6,
		})
	}
}

func emitTemporalSequencePattern(s *state.InvestigationState) {
	if len(s.Timeline) < 2 {
		return
	}
	n := len(s.Timeline)
	if n > maxTemporalEvents {
		n = maxTemporalEvents
	}
	var types []string
	for _, ev := range s.Timeline[:n] {
		types = append(types, string(ev.Type))
	}
	s.Patterns = append(s.Patterns, &state.Pattern{
		PatternID:   "pattern-temporal-sequence",
		PatternType: state.PatternTemporalSequence,
		Description: fmt.Sprintf("event sequence: %s", strings.Join(types, " -> ")),
		Severity:    "low",
		Occurrences: len(s.Timeline),
		Confidence:  0.55,
	})
}

func emitTermFrequencyPatterns(s *state.InvestigationState) {
	counts := map[string]int{}
	for _, text := range s.ExtractedText {
		for _, w := range strings.Fields(strings.ToLower(text)) {
			w = strings.Trim(w, ".,;:!?\"'()[]{}")
			if len(w) < minTermLength {
				continue
			}
			if _, stop := genericStopwords[w]; stop {
				continue
			}
			counts[w]++
		}
	}
	if len(counts) == 0 {
		return
	}

	terms := make([]string, 0, len(counts))
	values := make([]int, 0, len(counts))
	for t, c := range counts {
		terms = append(terms, t)
		values = append(values, c)
	}
	mean, stddev := meanStdDev(values)

	sort.Slice(terms, func(i, j int) bool {
		if counts[terms[i]] != counts[terms[j]] {
			return counts[terms[i]] > counts[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if len(terms) > topTermCount {
		terms = terms[:topTermCount]
	}

	threshold := s.Config.OutlierZThreshold
	for rank, term := range terms {
		z := 0.0
		if stddev > 0 {
			z = (float64(counts[term]) - mean) / stddev
		}
		severity := "low"
		if threshold > 0 && z >= threshold {
			severity = "high"
		}
		s.Patterns = append(s.Patterns, &state.Pattern{
			PatternID:   "pattern-term-" + strconv.Itoa(rank) + "-" + term,
			PatternType: state.PatternFrequency,
			Description: fmt.Sprintf("term %q occurs %d times across the corpus", term, counts[term]),
			Severity:    severity,
			Occurrences: counts[term],
			Confidence:  0.5,
		})
		if severity == "high" {
			s.Anomalies = append(s.Anomalies, &state.Anomaly{
				Category:    "term_frequency_outlier",
				Description: fmt.Sprintf("term %q appears disproportionately often (z=%.2f)", term, z),
				Severity:    "medium",
				ZScore:      z,
			})
		}
	}
}
