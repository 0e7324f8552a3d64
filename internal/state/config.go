package state

import "time"

// Config is the single configuration record recognized by the engine
// (spec §6). It is duplicated here (rather than imported from
// internal/config) so that internal/state has no dependency on the
// config-loading machinery; internal/config.Config is converted to this
// shape once at investigation-start time.
type Config struct {
	UploadsPath        string
	SupportedExtensions map[string]struct{}
	MaxFileSizeBytes   int64

	OCRLanguages  []string
	TesseractPath string
	NERModelNames []string

	EmbeddingProvider string // local | openai
	EmbeddingModel    string

	GraphURI      string
	GraphUser     string
	GraphPassword string
	GraphDatabase string

	VectorHost       string
	VectorPort       int
	VectorCollection string

	EntityTypeWhitelist  map[EntityType]struct{}
	MinEntityConfidence  float64

	SimilarityThreshold float64 // default 0.75
	MinSharedEntities   int     // default 2
	MaxLinksPerDocument int     // default 50

	OutlierZThreshold float64 // default 3.0
	MinClusterSize    int     // default 3

	ComplianceMaxDeltaEValid   float64 // 0.05
	ComplianceMinFidelityValid float64 // 0.99
	ComplianceMaxDeltaEReview  float64 // 0.10
	ComplianceMinFidelityReview float64 // 0.95
	ComplianceMinRCF           float64 // 0.95

	LogLevel          string
	CheckpointDir     string // non-empty enables checkpoint backend
	InterruptBeforeGate bool   // default true

	LLMAPIKey string
	LLMModel  string

	IngestionTimeout time.Duration
}

// DefaultConfig returns the recognized-option defaults from spec §6.
func DefaultConfig() *Config {
	return &Config{
		SupportedExtensions: extSet(
			"pdf", "docx", "doc", "txt", "xlsx", "xls", "csv", "json",
			"xml", "html", "eml", "msg", "png", "jpg", "jpeg", "mp3", "wav",
		),
		MaxFileSizeBytes:  100 * 1024 * 1024,
		EmbeddingProvider: "local",
		EmbeddingModel:    "all-MiniLM-L6-v2",
		EntityTypeWhitelist: map[EntityType]struct{}{
			EntityPerson: {}, EntityOrg: {}, EntityGPE: {}, EntityLoc: {},
			EntityDate: {}, EntityMoney: {}, EntityPercent: {}, EntityEmail: {},
			EntityPhone: {}, EntityCPF: {}, EntityCNPJ: {},
		},
		MinEntityConfidence:         0.5,
		SimilarityThreshold:         0.75,
		MinSharedEntities:           2,
		MaxLinksPerDocument:         50,
		OutlierZThreshold:           3.0,
		MinClusterSize:              3,
		ComplianceMaxDeltaEValid:    0.05,
		ComplianceMinFidelityValid:  0.99,
		ComplianceMaxDeltaEReview:   0.10,
		ComplianceMinFidelityReview: 0.95,
		ComplianceMinRCF:            0.95,
		LogLevel:                    "info",
		InterruptBeforeGate:         true,
		IngestionTimeout:            5 * time.Minute,
	}
}

func extSet(exts ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		m[e] = struct{}{}
	}
	return m
}
