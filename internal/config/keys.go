package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "PRECEPTOR_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.mcp_port", typ: kInt, env: "PRECEPTOR_SERVER_MCP_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.MCPPort = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.MCPPort },
	},
	{
		key: "storage.data_dir", typ: kString, env: "PRECEPTOR_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "catalog.cases_path", typ: kString, env: "PRECEPTOR_CATALOG_CASES_PATH",
		apply:   func(cfg *Config, v any) { cfg.Catalog.CasesPath = v.(string) },
		extract: func(cfg Config) any { return cfg.Catalog.CasesPath },
	},
	{
		key: "catalog.patients_path", typ: kString, env: "PRECEPTOR_CATALOG_PATIENTS_PATH",
		apply:   func(cfg *Config, v any) { cfg.Catalog.PatientsPath = v.(string) },
		extract: func(cfg Config) any { return cfg.Catalog.PatientsPath },
	},
	{
		key: "catalog.students_path", typ: kString, env: "PRECEPTOR_CATALOG_STUDENTS_PATH",
		apply:   func(cfg *Config, v any) { cfg.Catalog.StudentsPath = v.(string) },
		extract: func(cfg Config) any { return cfg.Catalog.StudentsPath },
	},
	{
		key: "grounding.semantic_base_url", typ: kString, env: "PRECEPTOR_GROUNDING_SEMANTIC_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Grounding.SemanticBaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Grounding.SemanticBaseURL },
	},
	{
		key: "grounding.top_k", typ: kInt, env: "PRECEPTOR_GROUNDING_TOP_K",
		apply:   func(cfg *Config, v any) { cfg.Grounding.TopK = v.(int) },
		extract: func(cfg Config) any { return cfg.Grounding.TopK },
	},
	{
		key: "grounding.attempt_timeout_ms", typ: kInt, env: "PRECEPTOR_GROUNDING_ATTEMPT_TIMEOUT_MS",
		apply:   func(cfg *Config, v any) { cfg.Grounding.AttemptTimeoutMS = v.(int) },
		extract: func(cfg Config) any { return cfg.Grounding.AttemptTimeoutMS },
	},
	{
		key: "grounding.corpus_dir", typ: kString, env: "PRECEPTOR_GROUNDING_CORPUS_DIR",
		apply:   func(cfg *Config, v any) { cfg.Grounding.CorpusDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Grounding.CorpusDir },
	},
	{
		key: "log.level", typ: kString, env: "PRECEPTOR_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "scoring.config_path", typ: kString, env: "PRECEPTOR_SCORING_CONFIG_PATH",
		apply:   func(cfg *Config, v any) { cfg.ScoringPath = v.(string) },
		extract: func(cfg Config) any { return cfg.ScoringPath },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
