package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持します
type Config struct {
	// Database設定
	Database DatabaseConfig

	// OpenAI設定（Embeddings + LLM）
	OpenAI OpenAIConfig

	// 各コンポーネントの実装選択
	Providers ProvidersConfig

	// ジョブパイプライン設定
	Pipeline PipelineConfig

	// Webスクレイパー設定
	Scraper ScraperConfig

	// Git教材リポジトリ設定
	Git GitConfig

	// HTTPサーバー設定
	Server ServerConfig

	// ログ設定
	Log LogConfig

	// 成果物（PDF）の出力先
	OutputDir string
}

// DatabaseConfig はデータベース接続設定
type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN はpgx用の接続文字列を返します
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

// OpenAIConfig はOpenAI API設定
type OpenAIConfig struct {
	APIKey             string
	EmbeddingModel     string
	EmbeddingDimension int
	LLMModel           string
	Temperature        float64
	MaxTokens          int
	RequestsPerMinute  int
}

// ProvidersConfig は各コンポーネントの実装を切り替える
type ProvidersConfig struct {
	LLM            string   // "mock" or "openai"
	Embedder       string   // "mock" or "openai"
	VectorStore    string   // "memory" or "postgres"
	JobStore       string   // "memory" or "postgres"
	ScraperSources []string // "mock", "web", "git"
}

// PipelineConfig はノート生成パイプラインの設定
type PipelineConfig struct {
	StepDelay          time.Duration
	JobTimeout         time.Duration
	JobRetention       time.Duration
	MaxConcurrentJobs  int
	MaxTopics          int
	ResourcesPerTopic  int
	RetrievalTopK      int
	RetrievalMinScore  float64
	GenerationWorkers  int
	QualityMinScore    float64
	KeepIndex          bool
	HashEmbedDimension int
}

// ScraperConfig はWebスクレイパー設定
type ScraperConfig struct {
	URLTemplates      []string
	UserAgent         string
	Timeout           time.Duration
	RequestsPerSecond float64
}

// GitConfig はGit操作設定
type GitConfig struct {
	RepositoryURL string
	CloneDir      string
	Ref           string
	SSHKeyPath    string
	SSHPassword   string // SSH秘密鍵のパスワード（パスフレーズ）
}

// ServerConfig はHTTPサーバー設定
type ServerConfig struct {
	Port     int
	APIToken string
}

// LogConfig はロガー設定
type LogConfig struct {
	Level  string
	Format string
}

// Load は環境変数または.envファイルから設定を読み込みます
func Load(envFilePath string) (*Config, error) {
	// .envファイルが存在する場合は読み込む
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			// ファイルが存在しない場合はエラーとしない（環境変数のみで動作可能）
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to load .env file: %w", err)
			}
		}
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Enabled:  getEnvAsBool("DB_ENABLED", false),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "studynotes"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "studynotes"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		OpenAI: OpenAIConfig{
			APIKey:             getEnv("OPENAI_API_KEY", ""),
			EmbeddingModel:     getEnv("OPENAI_EMBEDDING_MODEL", "text-embedding-3-small"),
			EmbeddingDimension: getEnvAsInt("OPENAI_EMBEDDING_DIMENSION", 1536),
			LLMModel:           getEnv("OPENAI_LLM_MODEL", "gpt-4o-mini"),
			Temperature:        getEnvAsFloat("OPENAI_LLM_TEMPERATURE", 0.3),
			MaxTokens:          getEnvAsInt("OPENAI_LLM_MAX_TOKENS", 2048),
			RequestsPerMinute:  getEnvAsInt("OPENAI_REQUESTS_PER_MINUTE", 60),
		},
		Providers: ProvidersConfig{
			LLM:            getEnv("LLM_PROVIDER", "mock"),
			Embedder:       getEnv("EMBEDDER_PROVIDER", "mock"),
			VectorStore:    getEnv("VECTOR_STORE", "memory"),
			JobStore:       getEnv("JOB_STORE", "memory"),
			ScraperSources: getEnvAsList("SCRAPER_SOURCES", []string{"mock"}),
		},
		Pipeline: PipelineConfig{
			StepDelay:          getEnvAsDuration("PIPELINE_STEP_DELAY", 0),
			JobTimeout:         getEnvAsDuration("PIPELINE_JOB_TIMEOUT", 10*time.Minute),
			JobRetention:       getEnvAsDuration("PIPELINE_JOB_RETENTION", time.Hour),
			MaxConcurrentJobs:  getEnvAsInt("PIPELINE_MAX_CONCURRENT_JOBS", 4),
			MaxTopics:          getEnvAsInt("PIPELINE_MAX_TOPICS", 8),
			ResourcesPerTopic:  getEnvAsInt("PIPELINE_RESOURCES_PER_TOPIC", 3),
			RetrievalTopK:      getEnvAsInt("PIPELINE_RETRIEVAL_TOP_K", 5),
			RetrievalMinScore:  getEnvAsFloat("PIPELINE_RETRIEVAL_MIN_SCORE", 0.05),
			GenerationWorkers:  getEnvAsInt("PIPELINE_GENERATION_WORKERS", 4),
			QualityMinScore:    getEnvAsFloat("PIPELINE_QUALITY_MIN_SCORE", 0.5),
			KeepIndex:          getEnvAsBool("PIPELINE_KEEP_INDEX", false),
			HashEmbedDimension: getEnvAsInt("HASH_EMBED_DIMENSION", 256),
		},
		Scraper: ScraperConfig{
			URLTemplates:      getEnvAsList("SCRAPER_URL_TEMPLATES", nil),
			UserAgent:         getEnv("SCRAPER_USER_AGENT", "study-notes-bot/1.0"),
			Timeout:           getEnvAsDuration("SCRAPER_TIMEOUT", 15*time.Second),
			RequestsPerSecond: getEnvAsFloat("SCRAPER_REQUESTS_PER_SECOND", 2),
		},
		Git: GitConfig{
			RepositoryURL: getEnv("GIT_RESOURCE_REPO_URL", ""),
			CloneDir:      getEnv("GIT_CLONE_DIR", "/var/lib/study-notes/repos"),
			Ref:           getEnv("GIT_RESOURCE_REF", "main"),
			SSHKeyPath:    getEnv("GIT_SSH_KEY_PATH", ""),
			SSHPassword:   getEnv("GIT_SSH_PASSWORD", ""),
		},
		Server: ServerConfig{
			Port:     getEnvAsInt("SERVER_PORT", 8080),
			APIToken: getEnv("API_TOKEN", ""),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		OutputDir: getEnv("OUTPUT_DIR", "/var/lib/study-notes/output"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validate は相互に依存する設定値を検証します
func (c *Config) validate() error {
	if c.Providers.VectorStore == "postgres" || c.Providers.JobStore == "postgres" {
		if !c.Database.Enabled {
			return fmt.Errorf("postgres store requires DB_ENABLED=true")
		}
	}
	if (c.Providers.LLM == "openai" || c.Providers.Embedder == "openai") && c.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required when an openai provider is selected")
	}
	if c.Pipeline.MaxConcurrentJobs <= 0 {
		return fmt.Errorf("PIPELINE_MAX_CONCURRENT_JOBS must be positive: %d", c.Pipeline.MaxConcurrentJobs)
	}
	return nil
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt は環境変数を整数として取得します
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat は環境変数を浮動小数点数として取得します
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool は環境変数を真偽値として取得します
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration は環境変数を time.Duration として取得します（例: "500ms", "2m"）
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList はカンマ区切りの環境変数をスライスとして取得します
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var values []string
	for _, v := range strings.Split(valueStr, ",") {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return defaultValue
	}
	return values
}
