package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for our application
type Config struct {
	Port                    string
	Origin                  string
	Environment             string
	LogLevel                string
	JWTSecret               string
	TokenTTLHours           int
	AdminRegistrationSecret string
	UploadMaxBytes          int64
	PoolStatsSchedule       string
	ReminderSchedule        string
	Database                DatabaseConfig
	Redis                   RedisConfig
	Mailer                  MailerConfig
	Slots                   SlotTemplateConfig
	External                ExternalConfig
}

// DatabaseConfig holds database connection details
type DatabaseConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Name     string
	DSN      string
}

// RedisConfig holds the optional Redis connection used for slot locks.
// An empty Addr disables Redis and slot locks stay in-process.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// MailerConfig holds email service configuration
type MailerConfig struct {
	Host        string
	Port        int
	Username    string
	Password    string
	DefaultFrom string
}

// SlotTemplateConfig is the default business-hours template used when a doctor
// has no schedule for the requested weekday.
type SlotTemplateConfig struct {
	DayStart    string
	DayEnd      string
	SlotMinutes int
}

// ExternalConfig holds credentials for the third-party services the API calls out to.
type ExternalConfig struct {
	Timeout          time.Duration
	GeminiAPIKey     string
	GeminiModel      string
	SerpAPIKey       string
	Neo4jURL         string
	Neo4jUsername    string
	Neo4jPassword    string
	SupabaseURL      string
	SupabaseKey      string
	SupabaseBucket   string
	ElevenLabsAPIKey string
	ElevenLabsVoice  string
}

// TokenTTL returns the access token lifetime.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLHours) * time.Hour
}

// IsDevelopment reports whether the server runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	dbConfig := DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     getEnv("DB_PORT", "3306"),
		Username: getEnv("DB_USERNAME", "root"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "medibook"),
	}

	// Build DSN (Data Source Name) for MySQL connection
	dbConfig.DSN = fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		dbConfig.Username, dbConfig.Password, dbConfig.Host, dbConfig.Port, dbConfig.Name)

	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}

	smtpPort, err := getEnvInt("SMTP_PORT", 587)
	if err != nil {
		return nil, err
	}

	tokenTTL, err := getEnvInt("JWT_EXPIRATION_HOURS", 24)
	if err != nil {
		return nil, err
	}
	if tokenTTL <= 0 {
		return nil, fmt.Errorf("invalid JWT_EXPIRATION_HOURS: must be positive")
	}

	slotMinutes, err := getEnvInt("SLOT_MINUTES", 30)
	if err != nil {
		return nil, err
	}
	if slotMinutes <= 0 {
		return nil, fmt.Errorf("invalid SLOT_MINUTES: must be positive")
	}

	uploadMax, err := getEnvInt("UPLOAD_MAX_BYTES", 10<<20)
	if err != nil {
		return nil, err
	}

	timeoutSeconds, err := getEnvInt("EXTERNAL_TIMEOUT_SECONDS", 30)
	if err != nil {
		return nil, err
	}

	slots := SlotTemplateConfig{
		DayStart:    getEnv("SLOT_DAY_START", "09:00"),
		DayEnd:      getEnv("SLOT_DAY_END", "17:00"),
		SlotMinutes: slotMinutes,
	}
	if err := slots.validate(); err != nil {
		return nil, err
	}

	return &Config{
		Port:                    getEnv("PORT", "8080"),
		Origin:                  getEnv("ORIGIN", "http://localhost:3000"),
		Environment:             getEnv("APP_ENV", "development"),
		LogLevel:                getEnv("LOG_LEVEL", "info"),
		JWTSecret:               getEnv("JWT_SECRET", ""),
		TokenTTLHours:           tokenTTL,
		AdminRegistrationSecret: getEnv("ADMIN_REGISTRATION_SECRET", ""),
		UploadMaxBytes:          int64(uploadMax),
		PoolStatsSchedule:       getEnv("POOL_STATS_SCHEDULE", "@every 5m"),
		ReminderSchedule:        getEnv("REMINDER_SCHEDULE", "0 8 * * *"),
		Database:                dbConfig,
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Mailer: MailerConfig{
			Host:        getEnv("SMTP_HOST", ""),
			Port:        smtpPort,
			Username:    getEnv("SMTP_USERNAME", ""),
			Password:    getEnv("SMTP_PASSWORD", ""),
			DefaultFrom: getEnv("MAILER_DEFAULT_FROM", "no-reply@medibook.local"),
		},
		Slots: slots,
		External: ExternalConfig{
			Timeout:          time.Duration(timeoutSeconds) * time.Second,
			GeminiAPIKey:     getEnv("GEMINI_API_KEY", ""),
			GeminiModel:      getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
			SerpAPIKey:       getEnv("SERPAPI_KEY", ""),
			Neo4jURL:         getEnv("NEO4J_URL", ""),
			Neo4jUsername:    getEnv("NEO4J_USERNAME", "neo4j"),
			Neo4jPassword:    getEnv("NEO4J_PASSWORD", ""),
			SupabaseURL:      getEnv("SUPABASE_URL", ""),
			SupabaseKey:      getEnv("SUPABASE_KEY", ""),
			SupabaseBucket:   getEnv("SUPABASE_BUCKET", "uploads"),
			ElevenLabsAPIKey: getEnv("ELEVENLABS_API_KEY", ""),
			ElevenLabsVoice:  getEnv("ELEVENLABS_VOICE_ID", "21m00Tcm4TlvDq8ikWAM"),
		},
	}, nil
}

func (s SlotTemplateConfig) validate() error {
	start, err := time.Parse("15:04", s.DayStart)
	if err != nil {
		return fmt.Errorf("invalid SLOT_DAY_START: %w", err)
	}
	end, err := time.Parse("15:04", s.DayEnd)
	if err != nil {
		return fmt.Errorf("invalid SLOT_DAY_END: %w", err)
	}
	if !start.Before(end) {
		return fmt.Errorf("invalid slot template: SLOT_DAY_START must be before SLOT_DAY_END")
	}
	return nil
}

// Helper function to get environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	raw, exists := os.LookupEnv(key)
	if !exists || raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}
