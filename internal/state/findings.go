package state

import "time"

// CryptoType enumerates the schemes the cryptanalysis stage can detect.
type CryptoType string

const (
	CryptoBase64 CryptoType = "base64"
	CryptoHex    CryptoType = "hex"
	CryptoRot13  CryptoType = "rot13"
	CryptoCaesar CryptoType = "caesar"
	CryptoStego  CryptoType = "stego"
)

// CryptoSegment is a contiguous span in a document identified as encoded
// (spec §3).
type CryptoSegment struct {
	SegmentID        string
	DocID            string
	Content          string // raw content, truncated for storage
	StartPos         int
	EndPos           int
	CryptoType       CryptoType
	Confidence       float64
	DecodedContent   string
	CaesarShift      *int // set only when CryptoType == CryptoCaesar
}

// CryptographyFinding is the document-level finding record emitted
// alongside a CryptoSegment (spec §4.5 / original_source
// agents/cryptanalysis_agent.py finding schema).
type CryptographyFinding struct {
	DocumentID       string
	FindingType      string // e.g. "encoded_content", "pdf_encrypted"
	Location         string
	EncodedText      string // ≤200 char excerpt
	DecodedPreview   string // ≤150 char preview
	Confidence       float64
	Algorithm        string
	RequiresPassword bool
}

// SemanticLink is an ordered pair of documents linked by embedding
// similarity (spec §3). Uniqueness: at most one link per unordered pair.
type SemanticLink struct {
	DocIDA          string // lexicographically smaller
	DocIDB          string
	SimilarityScore float64
	LinkType        string
	Rationale       string
	SharedEntities  []string
	SharedConcepts  []string
}

// Contradiction is a rule-based disagreement detected between two linked
// documents (spec §4.6).
type Contradiction struct {
	DocIDA string
	DocIDB string
	Type   string // numeric_mismatch | date_mismatch
	Detail string
}

// NarrativeThread is a connected component of the document-link graph.
type NarrativeThread struct {
	DocIDs       []string
	CentralDocID string
	Title        string
}

// EventType enumerates the event categories the timeline stage infers.
type EventType string

const (
	EventMeeting     EventType = "MEETING"
	EventContract    EventType = "CONTRACT"
	EventTransaction EventType = "TRANSACTION"
	EventTravel      EventType = "TRAVEL"
	EventSignature   EventType = "SIGNATURE"
	EventDelivery    EventType = "DELIVERY"
	EventGeneric     EventType = "EVENT"
)

// TimelineEvent is a date-anchored event extracted from a document (spec
// §3).
type TimelineEvent struct {
	EventID            string
	Timestamp          *time.Time
	TimestampConfidence float64
	Description        string // ≤200 chars
	EntitiesInvolved   []string
	SourceDocIDs       []string
	Date               string
	Type               EventType
}

// TemporalAnomaly flags suspicious timeline structure (spec §4.7).
type TemporalAnomaly struct {
	Category     string // e.g. possible_duplicate_date
	Description  string
	EventIDs     []string
}

// PatternCategory enumerates the kinds of structural pattern the pattern
// recognition stage emits.
type PatternCategory string

const (
	PatternHighDegree      PatternCategory = "high_degree"
	PatternCommunity       PatternCategory = "community"
	PatternTemporalSequence PatternCategory = "temporal_sequence"
	PatternFrequency       PatternCategory = "frequency"
)

// Pattern is a detected structural or statistical regularity (spec §3).
type Pattern struct {
	PatternID        string
	PatternType      PatternCategory
	Description      string
	EntitiesInvolved []string
	DocIDsInvolved   []string
	Severity         string // low | medium | high
	Occurrences      int
	Confidence       float64
	Evidence         []string
}

// Anomaly is a statistical outlier flagged alongside a Pattern.
type Anomaly struct {
	Category    string
	Description string
	Severity    string
	EntityRef   string
	ZScore      float64
}

// HypothesisStatus enumerates the review lifecycle of a Hypothesis.
type HypothesisStatus string

const (
	HypothesisUnderReview HypothesisStatus = "under_review"
	HypothesisAccepted    HypothesisStatus = "accepted"
	HypothesisRejected    HypothesisStatus = "rejected"
)

// Hypothesis is a ranked investigative claim derived by the synthesis
// stage (spec §3).
type Hypothesis struct {
	HypothesisID        string
	Title               string
	Description         string
	Confidence          float64
	SupportingEvidence  []string
	EntitiesInvolved    []string
	DocIDsSupporting    []string
	NextSteps           []string
	Status              HypothesisStatus
}

// LeadPriority enumerates Lead urgency bands.
type LeadPriority string

const (
	LeadLow    LeadPriority = "low"
	LeadMedium LeadPriority = "medium"
	LeadHigh   LeadPriority = "high"
)

// Lead is a recommended next action (spec §3).
type Lead struct {
	LeadID        string
	Action        string
	Priority      LeadPriority
	Justification string
}

// ComplianceStatus is the overall verdict of the compliance gate.
type ComplianceStatus string

const (
	ComplianceValid        ComplianceStatus = "VALID"
	ComplianceNeedsReview  ComplianceStatus = "NEEDS_REVIEW"
	ComplianceBlocked      ComplianceStatus = "BLOCKED"
)

// ComplianceViolation is an ODOS rule violation attached to the report.
type ComplianceViolation struct {
	Type        string
	Severity    string
	Description string
	EntityRef   string
}

// ComplianceReport is the output of the compliance gate (spec §3/§4.11).
type ComplianceReport struct {
	OverallStatus   ComplianceStatus
	Fidelity        float64
	RCF             float64
	DeltaE          float64
	Violations      []ComplianceViolation
	BiasAlerts      []string
	Recommendations []string
	Narrative       string
}

// Conflict records an ingestion-time collision between a new document and
// existing investigation state, surfaced during incremental re-ingestion
// (original_source/core/state.py's Conflict TypedDict).
type Conflict struct {
	ConflictID string
	Type       string // DUPLICATES | CONTRADICTIONS | AMBIGUITY
	Existing   map[string]any
	New        map[string]any
	Confidence float64
	Resolution string // pending | MERGE | KEEP_BOTH | IGNORE
}
