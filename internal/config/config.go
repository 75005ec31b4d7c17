package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	SMTP      SMTPConfig
	Auth      AuthConfig
	Assistant AssistantConfig
	Ai        AIConfig
	Storage   StorageConfig
	Telemetry TelemetryConfig
}

type AppConfig struct {
	Port               string
	BaseURL            string
	ClientURL          string
	Environment        string
	LogFilePath        string
	SocketLogFilePath  string
	CorsAllowedOrigins string
	NatsURL            string // empty disables event forwarding
	RedisURL           string // empty keeps the hub single-instance
	ThreadEventsTopic  string
}

type DatabaseConfig struct {
	Connection string
}

type SMTPConfig struct {
	Host       string
	Port       int
	Email      string
	Password   string
	SenderName string
}

type AuthConfig struct {
	JWTSecret string
	JWTTTL    time.Duration
}

type AssistantConfig struct {
	APIKey       string
	BaseURL      string
	AssistantID  string
	PollInterval time.Duration
	// RunTimeout bounds a single run. Zero means wait as long as the provider keeps it alive.
	RunTimeout        time.Duration
	RunLockTTL        time.Duration
	DeleteThreadOnEnd bool
}

type AIConfig struct {
	LLMProvider   string // "openai" or "ollama"
	VisionModel   string
	VisionPrompt  string
	OllamaBaseURL string
	OllamaModel   string
}

type StorageConfig struct {
	UploadDir      string
	PublicPath     string
	MaxUploadBytes int64
}

type TelemetryConfig struct {
	OtelEnabled  bool
	OtelEndpoint string
	ServiceName  string
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			BaseURL:            getEnv("APP_BASE_URL", "http://localhost:3000"),
			ClientURL:          getEnv("CLIENT_URL", "http://localhost:5173"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			SocketLogFilePath:  getEnv("SOCKET_LOG_FILE_PATH", "logs/socket.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", ""),
			RedisURL:           getEnv("REDIS_URL", ""),
			ThreadEventsTopic:  getEnv("THREAD_EVENTS_TOPIC", "thread-events"),
		},
		Database: DatabaseConfig{
			Connection: getEnv("DB_CONNECTION_STRING", ""),
		},
		SMTP: SMTPConfig{
			Host:       getEnv("SMTP_HOST", ""),
			Port:       getEnvAsInt("SMTP_PORT", 587),
			Email:      getEnv("SMTP_EMAIL", ""),
			Password:   getEnv("SMTP_PASSWORD", ""),
			SenderName: getEnv("SMTP_SENDER_NAME", "Vision Assistant"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			JWTTTL:    getEnvAsDuration("JWT_TTL", 10*time.Hour),
		},
		Assistant: AssistantConfig{
			APIKey:            getEnv("OPENAI_API_KEY", ""),
			BaseURL:           getEnv("OPENAI_BASE_URL", ""),
			AssistantID:       getEnv("ASSISTANT_ID", ""),
			PollInterval:      getEnvAsDuration("ASSISTANT_POLL_INTERVAL", time.Second),
			RunTimeout:        getEnvAsDuration("ASSISTANT_RUN_TIMEOUT", 0),
			RunLockTTL:        getEnvAsDuration("RUN_LOCK_TTL", 15*time.Minute),
			DeleteThreadOnEnd: getEnvAsBool("ASSISTANT_DELETE_THREAD_ON_END", true),
		},
		Ai: AIConfig{
			LLMProvider:   getEnv("LLM_PROVIDER", "openai"),
			VisionModel:   getEnv("VISION_MODEL", "gpt-4o-mini"),
			VisionPrompt:  getEnv("VISION_PROMPT", "What's in this image? and  Make this readable"),
			OllamaBaseURL: getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			OllamaModel:   getEnv("OLLAMA_VISION_MODEL", "llava"),
		},
		Storage: StorageConfig{
			UploadDir:      getEnv("UPLOAD_DIR", "uploads"),
			PublicPath:     getEnv("UPLOAD_PUBLIC_PATH", "/uploads"),
			MaxUploadBytes: int64(getEnvAsInt("MAX_UPLOAD_BYTES", 5*1024*1024)),
		},
		Telemetry: TelemetryConfig{
			OtelEnabled:  getEnvAsBool("OTEL_ENABLED", false),
			OtelEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
			ServiceName:  getEnv("OTEL_SERVICE_NAME", "vision-assistant-be"),
		},
	}
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

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go duration strings ("1s", "10h") or plain seconds.
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if strValue == "" {
		return fallback
	}
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	if seconds, err := strconv.Atoi(strValue); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return fallback
}
