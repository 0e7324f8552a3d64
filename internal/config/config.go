// Package config loads the engine's configuration record, following the
// teacher's layered approach: sane Go-literal defaults, optional YAML
// file via viper, .env files via godotenv, environment variable
// overrides, and keyring-backed secret lookup for the LLM API key.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/zalando/go-keyring"

	internalerrors "github.com/sherlock-intel/engine/internal/errors"
	"github.com/sherlock-intel/engine/internal/state"
)

const keyringService = "sherlock-engine"

// Config is the on-disk/env-loadable configuration. It mirrors
// state.Config field-for-field and is converted via ToState at
// investigation-start time (internal/state intentionally has no
// dependency on viper/godotenv).
type Config struct {
	Uploads   UploadsConfig   `mapstructure:"uploads"`
	Graph     GraphConfig     `mapstructure:"graph"`
	Vector    VectorConfig    `mapstructure:"vector"`
	Entities  EntitiesConfig  `mapstructure:"entities"`
	Linking   LinkingConfig   `mapstructure:"linking"`
	Patterns  PatternsConfig  `mapstructure:"patterns"`
	Compliance ComplianceConfig `mapstructure:"compliance"`
	Checkpoint CheckpointConfig `mapstructure:"checkpoint"`
	LLM       LLMConfig       `mapstructure:"llm"`
	LogLevel  string          `mapstructure:"log_level"`
}

type UploadsConfig struct {
	Path                string   `mapstructure:"path"`
	SupportedExtensions []string `mapstructure:"supported_extensions"`
	MaxFileSizeMB       int64    `mapstructure:"max_file_size_mb"`
	OCRLanguages        []string `mapstructure:"ocr_languages"`
	TesseractPath       string   `mapstructure:"tesseract_path"`
	NERModels           []string `mapstructure:"ner_models"`
}

type GraphConfig struct {
	URI      string `mapstructure:"uri"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

type VectorConfig struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Collection string `mapstructure:"collection"`
	Provider   string `mapstructure:"embedding_provider"` // local | openai
	Model      string `mapstructure:"embedding_model"`
}

type EntitiesConfig struct {
	TypeWhitelist []string `mapstructure:"type_whitelist"`
	MinConfidence float64  `mapstructure:"min_confidence"`
}

type LinkingConfig struct {
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
	MinSharedEntities   int     `mapstructure:"min_shared_entities"`
	MaxLinksPerDocument int     `mapstructure:"max_links_per_document"`
}

type PatternsConfig struct {
	OutlierZThreshold float64 `mapstructure:"outlier_z_threshold"`
	MinClusterSize    int     `mapstructure:"min_cluster_size"`
}

type ComplianceConfig struct {
	MaxDeltaEValid    float64 `mapstructure:"max_delta_e_valid"`
	MinFidelityValid  float64 `mapstructure:"min_fidelity_valid"`
	MaxDeltaEReview   float64 `mapstructure:"max_delta_e_review"`
	MinFidelityReview float64 `mapstructure:"min_fidelity_review"`
	MinRCF            float64 `mapstructure:"min_rcf"`
}

type CheckpointConfig struct {
	Directory           string `mapstructure:"directory"`
	InterruptBeforeGate bool   `mapstructure:"interrupt_before_gate"`
}

type LLMConfig struct {
	APIKey string `mapstructure:"-"` // never serialized; loaded from env/keyring only
	Model  string `mapstructure:"model"`
}

// Default returns the spec §6 recognized-option defaults.
func Default() *Config {
	return &Config{
		Uploads: UploadsConfig{
			SupportedExtensions: []string{
				"pdf", "docx", "doc", "txt", "xlsx", "xls", "csv", "json",
				"xml", "html", "eml", "msg", "png", "jpg", "jpeg", "mp3", "wav",
			},
			MaxFileSizeMB: 100,
		},
		Graph: GraphConfig{
			URI:      "bolt://localhost:7687",
			User:     "neo4j",
			Database: "neo4j",
		},
		Vector: VectorConfig{
			Host:       "localhost",
			Port:       8000,
			Collection: "sherlock_documents",
			Provider:   "local",
			Model:      "all-MiniLM-L6-v2",
		},
		Entities: EntitiesConfig{
			TypeWhitelist: []string{
				"PERSON", "ORG", "GPE", "LOC", "DATE", "MONEY", "PERCENT",
				"EMAIL", "PHONE", "CPF", "CNPJ",
			},
			MinConfidence: 0.5,
		},
		Linking: LinkingConfig{
			SimilarityThreshold: 0.75,
			MinSharedEntities:   2,
			MaxLinksPerDocument: 50,
		},
		Patterns: PatternsConfig{
			OutlierZThreshold: 3.0,
			MinClusterSize:    3,
		},
		Compliance: ComplianceConfig{
			MaxDeltaEValid:    0.05,
			MinFidelityValid:  0.99,
			MaxDeltaEReview:   0.10,
			MinFidelityReview: 0.95,
			MinRCF:            0.95,
		},
		Checkpoint: CheckpointConfig{
			InterruptBeforeGate: true,
		},
		LLM:      LLMConfig{Model: "gpt-4o-mini"},
		LogLevel: "info",
	}
}

// Load reads config.yaml (if present) via viper, applies .env files via
// godotenv, then environment overrides and keyring secret lookup.
// Mirrors the teacher's internal/config.Load layering.
func Load(path string) (*Config, error) {
	cfg := Default()

	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("SHERLOCK")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".sherlock")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".sherlock"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound && path != "" {
			return nil, internalerrors.ConfigErrorf("failed to read config file %s: %v", path, err)
		}
		// absent config file is fine; defaults + env stand
	} else if err := v.Unmarshal(cfg); err != nil {
		return nil, internalerrors.Wrap(err, internalerrors.ErrorTypeConfig, internalerrors.SeverityHigh, "failed to parse config")
	}

	applyEnvOverrides(cfg)
	cfg.Uploads.Path = expandPath(cfg.Uploads.Path)
	cfg.Checkpoint.Directory = expandPath(cfg.Checkpoint.Directory)

	if cfg.Uploads.Path == "" {
		return nil, internalerrors.ConfigError("uploads path is required")
	}

	return cfg, nil
}

func loadEnvFiles() {
	candidates := []string{".env.local", ".env"}
	for _, c := range candidates {
		_ = godotenv.Load(c) // missing files are not errors
	}
	if home, err := os.UserHomeDir(); err == nil {
		_ = godotenv.Load(filepath.Join(home, ".sherlock", ".env"))
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SHERLOCK_UPLOADS_PATH"); v != "" {
		cfg.Uploads.Path = v
	}
	if v := os.Getenv("SHERLOCK_GRAPH_URI"); v != "" {
		cfg.Graph.URI = v
	}
	if v := os.Getenv("SHERLOCK_GRAPH_PASSWORD"); v != "" {
		cfg.Graph.Password = v
	}
	if v := os.Getenv("SHERLOCK_CHECKPOINT_DIR"); v != "" {
		cfg.Checkpoint.Directory = v
	}
	if v := os.Getenv("SHERLOCK_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	// LLM API key: env first, then OS keyring (matching the teacher's
	// go-keyring fallback in internal/config.applyEnvOverrides).
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.LLM.APIKey = v
		return
	}
	if secret, err := keyring.Get(keyringService, "openai_api_key"); err == nil {
		cfg.LLM.APIKey = secret
	}
	// absence of the key is not an error: narrative generation degrades
	// to a no-op per spec §9.
}

func expandPath(p string) string {
	if p == "" || p[0] != '~' {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}

// Save writes the config back to a YAML file via viper, matching the
// teacher's internal/config.Save.
func Save(cfg *Config, path string) error {
	v := viper.New()
	v.SetConfigType("yaml")
	m := map[string]any{
		"uploads":    cfg.Uploads,
		"graph":      cfg.Graph,
		"vector":     cfg.Vector,
		"entities":   cfg.Entities,
		"linking":    cfg.Linking,
		"patterns":   cfg.Patterns,
		"compliance": cfg.Compliance,
		"checkpoint": cfg.Checkpoint,
		"llm":        map[string]any{"model": cfg.LLM.Model},
		"log_level":  cfg.LogLevel,
	}
	for k, val := range m {
		v.Set(k, val)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return v.WriteConfigAs(path)
}

// ToState converts the loaded Config into the stage-facing state.Config
// shape.
func (c *Config) ToState() *state.Config {
	sc := state.DefaultConfig()
	sc.UploadsPath = c.Uploads.Path
	if len(c.Uploads.SupportedExtensions) > 0 {
		set := make(map[string]struct{}, len(c.Uploads.SupportedExtensions))
		for _, e := range c.Uploads.SupportedExtensions {
			set[e] = struct{}{}
		}
		sc.SupportedExtensions = set
	}
	sc.MaxFileSizeBytes = c.Uploads.MaxFileSizeMB * 1024 * 1024
	sc.OCRLanguages = c.Uploads.OCRLanguages
	sc.TesseractPath = c.Uploads.TesseractPath
	sc.NERModelNames = c.Uploads.NERModels

	sc.EmbeddingProvider = c.Vector.Provider
	sc.EmbeddingModel = c.Vector.Model
	sc.GraphURI = c.Graph.URI
	sc.GraphUser = c.Graph.User
	sc.GraphPassword = c.Graph.Password
	sc.GraphDatabase = c.Graph.Database
	sc.VectorHost = c.Vector.Host
	sc.VectorPort = c.Vector.Port
	sc.VectorCollection = c.Vector.Collection

	if len(c.Entities.TypeWhitelist) > 0 {
		wl := make(map[state.EntityType]struct{}, len(c.Entities.TypeWhitelist))
		for _, t := range c.Entities.TypeWhitelist {
			wl[state.EntityType(t)] = struct{}{}
		}
		sc.EntityTypeWhitelist = wl
	}
	sc.MinEntityConfidence = c.Entities.MinConfidence

	sc.SimilarityThreshold = c.Linking.SimilarityThreshold
	sc.MinSharedEntities = c.Linking.MinSharedEntities
	sc.MaxLinksPerDocument = c.Linking.MaxLinksPerDocument

	sc.OutlierZThreshold = c.Patterns.OutlierZThreshold
	sc.MinClusterSize = c.Patterns.MinClusterSize

	sc.ComplianceMaxDeltaEValid = c.Compliance.MaxDeltaEValid
	sc.ComplianceMinFidelityValid = c.Compliance.MinFidelityValid
	sc.ComplianceMaxDeltaEReview = c.Compliance.MaxDeltaEReview
	sc.ComplianceMinFidelityReview = c.Compliance.MinFidelityReview
	sc.ComplianceMinRCF = c.Compliance.MinRCF

	sc.LogLevel = c.LogLevel
	sc.CheckpointDir = c.Checkpoint.Directory
	sc.InterruptBeforeGate = c.Checkpoint.InterruptBeforeGate
	sc.LLMAPIKey = c.LLM.APIKey
	sc.LLMModel = c.LLM.Model
	sc.IngestionTimeout = 5 * time.Minute

	return sc
}
