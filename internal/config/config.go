package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App   AppConfig
	Bus   BusConfig
	Ai    AIConfig
	Call  CallConfig
	Trace TraceConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	StreamLogFilePath  string
	CorsAllowedOrigins string
	MetricsNamespace   string
}

type BusConfig struct {
	NatsURL       string // empty disables the bus mirror
	StreamName    string
	SubjectPrefix string
	RelayTopic    string
}

type AIConfig struct {
	Classifier       string // "llm" or "rules"
	LLMProvider      string // "openai", "ollama", "huggingface"
	LLMModel         string
	LLMBaseURL       string
	OpenAIKey        string
	HuggingFaceToken string
	Timeout          time.Duration
}

type CallConfig struct {
	ReaperInterval time.Duration
	ReaperSilence  time.Duration
	FarewellGrace  time.Duration
	PendingTTL     time.Duration
}

type TraceConfig struct {
	Enabled      bool
	OTLPEndpoint string
	SampleRatio  float64
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("PORT", "3001"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			StreamLogFilePath:  getEnv("STREAM_LOG_FILE_PATH", "logs/stream.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			MetricsNamespace:   getEnv("METRICS_NAMESPACE", "callrelay"),
		},
		Bus: BusConfig{
			NatsURL:       getEnv("NATS_URL", ""),
			StreamName:    getEnv("NATS_STREAM", "CALLRELAY"),
			SubjectPrefix: getEnv("NATS_SUBJECT_PREFIX", "callrelay"),
			RelayTopic:    getEnv("RELAY_TOPIC_NAME", "dashboard_events"),
		},
		Ai: AIConfig{
			Classifier:       getEnv("CLASSIFIER", "llm"),
			LLMProvider:      getEnv("LLM_PROVIDER", "openai"),
			LLMModel:         getEnv("LLM_MODEL", "gpt-4o-mini"),
			LLMBaseURL:       getEnv("LLM_BASE_URL", ""),
			OpenAIKey:        getEnv("OPENAI_API_KEY", ""),
			HuggingFaceToken: getEnv("HF_TOKEN", ""),
			Timeout:          getEnvAsSeconds("LLM_TIMEOUT_SECONDS", 30),
		},
		Call: CallConfig{
			ReaperInterval: getEnvAsSeconds("REAPER_INTERVAL_SECONDS", 2),
			ReaperSilence:  getEnvAsSeconds("REAPER_SILENCE_SECONDS", 300),
			FarewellGrace:  getEnvAsSeconds("FAREWELL_GRACE_SECONDS", 5),
			PendingTTL:     getEnvAsSeconds("PENDING_CALLER_TTL_SECONDS", 600),
		},
		Trace: TraceConfig{
			Enabled:      getEnv("OTEL_ENABLED", "false") == "true",
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
			SampleRatio:  getEnvAsFloat("OTEL_SAMPLE_RATIO", 1.0),
		},
	}
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	if value, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsSeconds(key string, fallback int) time.Duration {
	return time.Duration(getEnvAsInt(key, fallback)) * time.Second
}
