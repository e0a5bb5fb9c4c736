package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port          int              `json:"port"`
	JWTSecret     string           `json:"jwt_secret"`
	JWTTTLHours   int              `json:"jwt_ttl_hours"`
	CORSAllowlist []string         `json:"cors_allowlist"`
	LogConfig     logger.LogConfig `json:"log_config"`
	Database      DatabaseConfig   `json:"database"`
	BlobStore     BlobStoreConfig  `json:"blob_store"`
	AI            AIConfig         `json:"ai"`
	Rerank        RerankConfig     `json:"rerank"`
	RAG           RAGConfig        `json:"rag"`
	ReindexCron   string           `json:"reindex_cron"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
}

type BlobStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type AIConfig struct {
	Provider string      `json:"provider"`
	Data     interface{} `json:"data"`
	// ChatModel answers user queries, SideModel runs internal tasks
	// such as query expansion, EmbedModel produces chunk vectors.
	ChatModel   string  `json:"chat_model"`
	SideModel   string  `json:"side_model"`
	EmbedModel  string  `json:"embed_model"`
	Temperature float32 `json:"temperature"`
	Timeout     int     `json:"timeout"`
}

type RerankConfig struct {
	Endpoint  string  `json:"endpoint"`
	Model     string  `json:"model"`
	Threshold float64 `json:"threshold"`
	Timeout   int     `json:"timeout"`
}

type RAGConfig struct {
	// StrictRAG defaults to true; clients may relax it per request.
	StrictRAG          *bool `json:"strict_rag"`
	ParentChunkSize    int   `json:"parent_chunk_size"`
	ParentChunkOverlap int   `json:"parent_chunk_overlap"`
	ChildChunkSize     int   `json:"child_chunk_size"`
	ChildChunkOverlap  int   `json:"child_chunk_overlap"`
	TopK               int   `json:"top_k"`
	ContextWindow      int   `json:"context_window"`
	SubQueryTimeout    int   `json:"sub_query_timeout"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt_secret is required")
	}
	if cfg.JWTTTLHours == 0 {
		cfg.JWTTTLHours = 72
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.Database.DSN == "" && (cfg.Database.Host == "" || cfg.Database.DBName == "") {
		return nil, fmt.Errorf("database.dsn or database.host/db_name are required")
	}
	if cfg.BlobStore.Type == "" {
		return nil, fmt.Errorf("blob_store.type is required")
	}
	if cfg.AI.Provider == "" {
		return nil, fmt.Errorf("ai.provider is required")
	}
	if cfg.AI.ChatModel == "" || cfg.AI.EmbedModel == "" {
		return nil, fmt.Errorf("ai.chat_model and ai.embed_model are required")
	}
	if cfg.AI.SideModel == "" {
		cfg.AI.SideModel = cfg.AI.ChatModel
	}
	if cfg.AI.Temperature == 0 {
		cfg.AI.Temperature = 0.7
	}
	if cfg.AI.Timeout == 0 {
		cfg.AI.Timeout = 120
	}
	if cfg.Rerank.Timeout == 0 {
		cfg.Rerank.Timeout = 30
	}
	applyRAGDefaults(&cfg.RAG)
	if cfg.ReindexCron == "" {
		cfg.ReindexCron = "*/10 * * * *"
	}
	return &cfg, nil
}

func applyRAGDefaults(rag *RAGConfig) {
	if rag.StrictRAG == nil {
		strict := true
		rag.StrictRAG = &strict
	}
	if rag.ParentChunkSize == 0 {
		rag.ParentChunkSize = 1500
	}
	if rag.ParentChunkOverlap == 0 {
		rag.ParentChunkOverlap = 200
	}
	if rag.ChildChunkSize == 0 {
		rag.ChildChunkSize = 300
	}
	if rag.ChildChunkOverlap == 0 {
		rag.ChildChunkOverlap = 50
	}
	if rag.TopK == 0 {
		rag.TopK = 5
	}
	if rag.ContextWindow == 0 {
		rag.ContextWindow = 30000
	}
	if rag.SubQueryTimeout == 0 {
		rag.SubQueryTimeout = 20
	}
}
