package state

import "time"

// InvestigationState is the single mutable record passed between stages.
// Each stage is the sole writer of its output fields and may read any
// prior field (spec §3 Lifecycle). No field is deleted once written
// within a run.
type InvestigationState struct {
	InvestigationID string
	UploadsPath     string

	// Ingestion stage output
	Documents       map[string]*Document // keyed by DocID
	ExtractedText   map[string]string    // keyed by DocID

	// Classification stage output
	Classifications map[string]*Classification // keyed by DocID

	// Entity extraction stage output
	Entities        map[string]*Entity       // keyed by EntityID
	Relationships   []*Relationship
	EntityRegistry  map[string][]string       // merge key -> entity ids sharing it (diagnostics)

	// Cryptanalysis stage output
	CryptoSegments        []*CryptoSegment
	CryptographyFindings  []*CryptographyFinding
	DecryptedContent      map[string]string // doc id -> decoded text, where applicable

	// Semantic linker stage output
	SemanticLinks    []*SemanticLink
	Contradictions   []*Contradiction
	NarrativeThreads []*NarrativeThread

	// Timeline stage output
	Timeline          []*TimelineEvent
	TemporalAnomalies []*TemporalAnomaly
	CausalChains      []string

	// Pattern recognition stage output
	Patterns  []*Pattern
	Outliers  []string
	Anomalies []*Anomaly

	// Graph construction stage output
	GraphMetadata     GraphMetadata
	CentralityScores  map[string]float64
	Communities       map[int][]string

	// Synthesis stage output
	Hypotheses    []*Hypothesis
	Leads         []*Lead
	ReportSummary string

	// Compliance gate output
	ComplianceReport *ComplianceReport

	// Orchestration bookkeeping
	CurrentStep    string
	IterationCount int
	HumanFeedback  string
	ErrorLog       []string

	Config *Config

	// Incremental / evolutionary state (spec §3 Lifecycle)
	Version        int
	LastUpdated    *time.Time
	ProcessingQueue []string
	DeltaLog        []string
	Conflicts       []*Conflict
}

// GraphMetadata mirrors the structure written by the graph construction
// stage (spec §4.9): counts, a type histogram, and derived summaries.
type GraphMetadata struct {
	NodeCount      int
	EdgeCount      int
	EntityTypes    map[string]int
	TopEntities    []TopEntity
	Bridges        []Bridge
	CommunityCount int
}

// TopEntity is an entry in GraphMetadata.TopEntities.
type TopEntity struct {
	EntityID    string
	Text        string
	Centrality  float64
	Community   int
	HasCommunity bool
}

// Bridge is an entry in GraphMetadata.Bridges (high-betweenness entities).
type Bridge struct {
	EntityID    string
	Text        string
	Betweenness float64
}

// NewInvestigationState creates a fresh investigation state with default
// zero values, mirroring original_source/core/state.py's
// create_initial_state.
func NewInvestigationState(investigationID, uploadsPath string, cfg *Config) *InvestigationState {
	return &InvestigationState{
		InvestigationID: investigationID,
		UploadsPath:     uploadsPath,
		Documents:       map[string]*Document{},
		ExtractedText:   map[string]string{},
		Classifications: map[string]*Classification{},
		Entities:        map[string]*Entity{},
		Relationships:   nil,
		EntityRegistry:  map[string][]string{},
		DecryptedContent: map[string]string{},
		CentralityScores: map[string]float64{},
		Communities:      map[int][]string{},
		CurrentStep:      "initialization",
		ErrorLog:         nil,
		Config:           cfg,
		Version:          1,
		ProcessingQueue:  nil,
		DeltaLog:         nil,
		Conflicts:        nil,
	}
}

// AppendError records a stage error as data (spec §7: errors are data,
// not control flow, above the per-document level).
func (s *InvestigationState) AppendError(msg string) {
	s.ErrorLog = append(s.ErrorLog, msg)
}

// Touch bumps Version and LastUpdated; called by external save points
// (investigation store, checkpoint backend) per spec §3 Lifecycle.
func (s *InvestigationState) Touch(now time.Time) {
	s.Version++
	s.LastUpdated = &now
}
