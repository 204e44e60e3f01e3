package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kalambet/preceptor/internal/classify"
	"github.com/kalambet/preceptor/internal/scoring"
)

type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Catalog   CatalogConfig
	Grounding GroundingConfig
	Log       LogConfig

	// ScoringPath optionally points at a JSON file overriding the shipped
	// probability tables and threshold matrix.
	ScoringPath string

	// Scoring and Thresholds are resolved (defaults or file override) and
	// validated during Load. Invalid tables abort startup.
	Scoring    scoring.Tables
	Thresholds classify.Matrix
}

type ServerConfig struct {
	Port    int
	MCPPort int
}

type StorageConfig struct {
	DataDir string
}

type CatalogConfig struct {
	CasesPath    string
	PatientsPath string
	StudentsPath string
}

type GroundingConfig struct {
	SemanticBaseURL  string
	TopK             int
	AttemptTimeoutMS int
	CorpusDir        string
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	dataDir := defaultDataDir()
	return Config{
		Server: ServerConfig{
			Port:    4600,
			MCPPort: 4601,
		},
		Storage: StorageConfig{
			DataDir: dataDir,
		},
		Catalog: CatalogConfig{
			CasesPath:    filepath.Join(dataDir, "catalog", "cases.json"),
			PatientsPath: filepath.Join(dataDir, "catalog", "patients.json"),
			StudentsPath: filepath.Join(dataDir, "catalog", "students.json"),
		},
		Grounding: GroundingConfig{
			SemanticBaseURL:  "http://localhost:8900",
			TopK:             5,
			AttemptTimeoutMS: 5000,
			CorpusDir:        filepath.Join(dataDir, "corpus"),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the JSON config file at
// $XDG_CONFIG_HOME/preceptor/config.json, applies PRECEPTOR_* environment
// overrides, then resolves and validates the scoring tables and threshold
// matrix. Invalid probability or threshold configuration fails here, at
// startup, never at first draw.
func Load() (Config, error) {
	return loadWith(newFileBackend())
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	cfg.Scoring = scoring.DefaultTables()
	cfg.Thresholds = classify.DefaultMatrix()
	if cfg.ScoringPath != "" {
		if err := loadScoringFile(&cfg); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.Scoring.Validate(); err != nil {
		return Config{}, err
	}
	if err := cfg.Thresholds.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// scoringFile is the override file layout. Either section may be omitted to
// keep its default.
type scoringFile struct {
	Tables     *scoring.Tables  `json:"tables"`
	Thresholds *classify.Matrix `json:"thresholds"`
}

func loadScoringFile(cfg *Config) error {
	data, err := os.ReadFile(cfg.ScoringPath)
	if err != nil {
		return fmt.Errorf("reading scoring config %s: %w", cfg.ScoringPath, err)
	}
	var f scoringFile
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parsing scoring config %s: %w", cfg.ScoringPath, err)
	}
	if f.Tables != nil {
		cfg.Scoring = *f.Tables
	}
	if f.Thresholds != nil {
		cfg.Thresholds = *f.Thresholds
	}
	return nil
}
