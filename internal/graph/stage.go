// Package graph implements the graph construction stage (spec §4.9):
// an upsert adapter over a graph store (MERGE semantics on entity
// identifier and typed edges), statistics readback, and derived
// centrality / community / betweenness summaries.
//
// Grounded on internal/graph/neo4j_backend.go (teacher's Neo4j MERGE
// adapter, rewritten for the Entity/RELATED_TO domain) and
// internal/graph/cypher_builder.go (teacher's parameterized query
// builder, kept unmodified). No graph-analytics library ships in the
// pack, so PageRank-equivalent centrality and betweenness are
// hand-rolled (see DESIGN.md); community assignment reuses
// internal/patterns.ComputeCommunities so both stages agree on
// cluster membership.
package graph

import (
	"context"
	"sort"

	"github.com/sherlock-intel/engine/internal/logging"
	"github.com/sherlock-intel/engine/internal/patterns"
	"github.com/sherlock-intel/engine/internal/state"
)

const (
	topCentralityCount  = 20
	topBetweennessCount = 15
	pageRankDamping     = 0.85
	pageRankIterations  = 40
)

// Stage upserts the investigation's entities and relationships into
// backend, reads back statistics, and computes centrality, community,
// and betweenness summaries (spec §4.9). Any failure in a derived
// computation falls back to an empty map and a logged warning rather
// than failing the stage.
func Stage(ctx context.Context, s *state.InvestigationState, backend Backend) error {
	defer func() {
		if err := backend.Close(ctx); err != nil {
			logging.Warn("graph backend close failed", "error", err)
		}
	}()

	upsertErr := upsertGraph(ctx, s, backend)
	if upsertErr != nil {
		logging.Warn("graph upsert failed, metadata will reflect in-memory state only", "error", upsertErr)
	}

	nodeCount, edgeCount, histogram, err := backend.Stats(ctx)
	if err != nil {
		logging.Warn("graph stats readback failed, falling back to in-memory counts", "error", err)
	}
	if _, isNull := backend.(NullBackend); err != nil || upsertErr != nil || isNull {
		nodeCount, edgeCount, histogram = len(s.Entities), len(s.Relationships), localHistogram(s)
	}

	centrality := computeCentrality(s)
	s.CentralityScores = centrality

	degree := map[string]int{}
	for id := range s.Entities {
		degree[id] = 0
	}
	for _, r := range s.Relationships {
		degree[r.SourceEntityID]++
		degree[r.TargetEntityID]++
	}
	communityOf := patterns.ComputeCommunities(s.Entities, s.Relationships, degree)
	communities := map[int][]string{}
	for id, c := range communityOf {
		communities[c] = append(communities[c], id)
	}
	s.Communities = communities

	betweenness := computeBetweenness(s)

	s.GraphMetadata = state.GraphMetadata{
		NodeCount:      nodeCount,
		EdgeCount:      edgeCount,
		EntityTypes:    histogram,
		TopEntities:    topEntities(s, centrality, communityOf),
		Bridges:        topBridges(s, betweenness),
		CommunityCount: len(communities),
	}

	s.CurrentStep = "graph_construction_complete"
	logging.Info("graph construction stage complete", "investigation_id", s.InvestigationID,
		"nodes", nodeCount, "edges", edgeCount, "communities", len(communities))
	return nil
}

func upsertGraph(ctx context.Context, s *state.InvestigationState, backend Backend) error {
	nodes := make([]GraphNode, 0, len(s.Entities))
	for _, id := range sortedEntityIDs(s.Entities) {
		e := s.Entities[id]
		nodes = append(nodes, GraphNode{
			Label: "Entity",
			Properties: map[string]any{
				entityUniqueKey: e.EntityID,
				"text":          e.Text,
				"normalized":    e.NormalizedText,
				"type":          string(e.Type),
				"confidence":    e.Confidence,
				"frequency":     e.Frequency,
			},
		})
	}
	if err := backend.CreateNodes(ctx, nodes); err != nil {
		return err
	}

	edges := make([]GraphEdge, 0, len(s.Relationships))
	for _, r := range s.Relationships {
		edges = append(edges, GraphEdge{
			Label:  string(r.RelationshipType),
			FromID: r.SourceEntityID,
			ToID:   r.TargetEntityID,
			Properties: map[string]any{
				"weight":         r.Weight,
				"evidence_count": r.EvidenceCount,
				"confidence":     r.Confidence,
			},
		})
	}
	return backend.CreateEdges(ctx, edges)
}

func localHistogram(s *state.InvestigationState) map[string]int {
	hist := map[string]int{}
	for _, e := range s.Entities {
		hist[string(e.Type)]++
	}
	return hist
}

// computeCentrality runs a PageRank-equivalent power iteration over the
// entity co-occurrence graph: no graph-analytics library ships in the
// pack, so this stands in for Neo4j GDS's pagerank procedure. It runs
// in-process whichever backend is configured.
func computeCentrality(s *state.InvestigationState) map[string]float64 {
	ids := sortedEntityIDs(s.Entities)
	n := len(ids)
	scores := map[string]float64{}
	if n == 0 {
		return scores
	}

	adj := map[string][]string{}
	outDegree := map[string]int{}
	for _, r := range s.Relationships {
		adj[r.SourceEntityID] = append(adj[r.SourceEntityID], r.TargetEntityID)
		adj[r.TargetEntityID] = append(adj[r.TargetEntityID], r.SourceEntityID)
		outDegree[r.SourceEntityID]++
		outDegree[r.TargetEntityID]++
	}

	for _, id := range ids {
		scores[id] = 1.0 / float64(n)
	}

	for iter := 0; iter < pageRankIterations; iter++ {
		next := map[string]float64{}
		base := (1 - pageRankDamping) / float64(n)
		for _, id := range ids {
			next[id] = base
		}
		for _, id := range ids {
			d := outDegree[id]
			if d == 0 {
				continue
			}
			share := pageRankDamping * scores[id] / float64(d)
			for _, neighbor := range adj[id] {
				next[neighbor] += share
			}
		}
		scores = next
	}

	return scores
}

// computeBetweenness runs unweighted Brandes' algorithm over the entity
// co-occurrence graph to find bridging entities.
func computeBetweenness(s *state.InvestigationState) map[string]float64 {
	ids := sortedEntityIDs(s.Entities)
	betweenness := map[string]float64{}
	for _, id := range ids {
		betweenness[id] = 0
	}
	if len(ids) == 0 {
		return betweenness
	}

	adj := map[string][]string{}
	for _, r := range s.Relationships {
		adj[r.SourceEntityID] = append(adj[r.SourceEntityID], r.TargetEntityID)
		adj[r.TargetEntityID] = append(adj[r.TargetEntityID], r.SourceEntityID)
	}

	for _, source := range ids {
		stack := []string{}
		predecessors := map[string][]string{}
		sigma := map[string]float64{source: 1}
		dist := map[string]int{source: 0}
		queue := []string{source}

		for len(queue) > 0 {
			v := queue[0]
			queue = queue[1:]
			stack = append(stack, v)
			for _, w := range adj[v] {
				if _, seen := dist[w]; !seen {
					dist[w] = dist[v] + 1
					queue = append(queue, w)
				}
				if dist[w] == dist[v]+1 {
					sigma[w] += sigma[v]
					predecessors[w] = append(predecessors[w], v)
				}
			}
		}

		delta := map[string]float64{}
		for i := len(stack) - 1; i >= 0; i-- {
			w := stack[i]
			for _, v := range predecessors[w] {
				delta[v] += (sigma[v] / sigma[w]) * (1 + delta[w])
			}
			if w != source {
				betweenness[w] += delta[w]
			}
		}
	}

	for id := range betweenness {
		betweenness[id] /= 2 // undirected graph, each shortest path counted from both ends
	}
	return betweenness
}

func topEntities(s *state.InvestigationState, centrality map[string]float64, community map[string]int) []state.TopEntity {
	ids := sortedEntityIDs(s.Entities)
	sort.Slice(ids, func(i, j int) bool {
		if centrality[ids[i]] != centrality[ids[j]] {
			return centrality[ids[i]] > centrality[ids[j]]
		}
		return ids[i] < ids[j]
	})
	if len(ids) > topCentralityCount {
		ids = ids[:topCentralityCount]
	}

	out := make([]state.TopEntity, 0, len(ids))
	for _, id := range ids {
		e := s.Entities[id]
		if e == nil {
			continue
		}
		c, hasCommunity := community[id]
		out = append(out, state.TopEntity{
			EntityID:     id,
			Text:         e.Text,
			Centrality:   centrality[id],
			Community:    c,
			HasCommunity: hasCommunity,
		})
	}
	return out
}

func topBridges(s *state.InvestigationState, betweenness map[string]float64) []state.Bridge {
	ids := sortedEntityIDs(s.Entities)
	sort.Slice(ids, func(i, j int) bool {
		if betweenness[ids[i]] != betweenness[ids[j]] {
			return betweenness[ids[i]] > betweenness[ids[j]]
		}
		return ids[i] < ids[j]
	})
	if len(ids) > topBetweennessCount {
		ids = ids[:topBetweennessCount]
	}

	out := make([]state.Bridge, 0, len(ids))
	for _, id := range ids {
		if betweenness[id] <= 0 {
			continue
		}
		e := s.Entities[id]
		if e == nil {
			continue
		}
		out = append(out, state.Bridge{
			EntityID:    id,
			Text:        e.Text,
			Betweenness: betweenness[id],
		})
	}
	return out
}

func sortedEntityIDs(entities map[string]*state.Entity) []string {
	out := make([]string, 0, len(entities))
	for id := range entities {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
