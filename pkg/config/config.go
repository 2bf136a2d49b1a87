package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Dashboard DashboardConfig
	Admin     AdminSeedConfig
	Fees      FeesConfig
	Uploads   UploadConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// DashboardConfig governs dashboard cache tuning.
type DashboardConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
}

// AdminSeedConfig holds the bootstrap admin account. It is only used to create the
// admin user when none exists; the users table owns the credentials afterwards.
type AdminSeedConfig struct {
	Email    string
	Password string
	FullName string
}

// FeesConfig describes the fee schedule and installment defaults.
type FeesConfig struct {
	// Schedule maps class -> stream -> total yearly fees.
	Schedule               map[string]map[string]float64
	DefaultInstallments    int
	AcademicYearStartMonth time.Month
}

// UploadConfig configures the S3 compatible image store. When Bucket is empty
// images are written to LocalDir and served by the API itself.
type UploadConfig struct {
	Endpoint      string
	Region        string
	Bucket        string
	AccessKey     string
	SecretKey     string
	PublicBaseURL string
	KeyPrefix     string
	LocalDir      string
	MaxFileBytes  int64
	MaxDimension  int
	MaxPixels     int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Dashboard = DashboardConfig{
		CacheEnabled: v.GetBool("ENABLE_DASHBOARD_CACHE"),
		CacheTTL:     parseDuration(v.GetString("DASHBOARD_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Admin = AdminSeedConfig{
		Email:    strings.TrimSpace(v.GetString("ADMIN_EMAIL")),
		Password: v.GetString("ADMIN_PASSWORD"),
		FullName: v.GetString("ADMIN_NAME"),
	}

	schedule, err := parseFeeSchedule(v.GetString("FEE_SCHEDULE"))
	if err != nil {
		return nil, err
	}
	startMonth := v.GetInt("ACADEMIC_YEAR_START_MONTH")
	if startMonth < 1 || startMonth > 12 {
		startMonth = int(time.April)
	}
	cfg.Fees = FeesConfig{
		Schedule:               schedule,
		DefaultInstallments:    v.GetInt("DEFAULT_INSTALLMENTS"),
		AcademicYearStartMonth: time.Month(startMonth),
	}

	maxUpload := v.GetInt64("UPLOAD_MAX_FILE_SIZE")
	if maxUpload <= 0 {
		maxUpload = 5 * 1024 * 1024
	}
	cfg.Uploads = UploadConfig{
		Endpoint:      v.GetString("UPLOAD_S3_ENDPOINT"),
		Region:        v.GetString("UPLOAD_S3_REGION"),
		Bucket:        v.GetString("UPLOAD_S3_BUCKET"),
		AccessKey:     v.GetString("UPLOAD_S3_ACCESS_KEY"),
		SecretKey:     v.GetString("UPLOAD_S3_SECRET_KEY"),
		PublicBaseURL: strings.TrimRight(v.GetString("UPLOAD_PUBLIC_BASE_URL"), "/"),
		KeyPrefix:     strings.Trim(v.GetString("UPLOAD_KEY_PREFIX"), "/"),
		LocalDir:      v.GetString("UPLOAD_LOCAL_DIR"),
		MaxFileBytes:  maxUpload,
		MaxDimension:  v.GetInt("UPLOAD_MAX_DIMENSION"),
		MaxPixels:     v.GetInt("UPLOAD_MAX_PIXELS"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "coaching_center")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ISSUER", "coaching-center-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_DASHBOARD_CACHE", false)
	v.SetDefault("DASHBOARD_CACHE_TTL", "5m")

	v.SetDefault("ADMIN_EMAIL", "")
	v.SetDefault("ADMIN_PASSWORD", "")
	v.SetDefault("ADMIN_NAME", "Administrator")

	v.SetDefault("FEE_SCHEDULE", "")
	v.SetDefault("DEFAULT_INSTALLMENTS", 3)
	v.SetDefault("ACADEMIC_YEAR_START_MONTH", 4)

	v.SetDefault("UPLOAD_S3_ENDPOINT", "")
	v.SetDefault("UPLOAD_S3_REGION", "auto")
	v.SetDefault("UPLOAD_S3_BUCKET", "")
	v.SetDefault("UPLOAD_S3_ACCESS_KEY", "")
	v.SetDefault("UPLOAD_S3_SECRET_KEY", "")
	v.SetDefault("UPLOAD_PUBLIC_BASE_URL", "")
	v.SetDefault("UPLOAD_KEY_PREFIX", "images")
	v.SetDefault("UPLOAD_LOCAL_DIR", "./uploads")
	v.SetDefault("UPLOAD_MAX_FILE_SIZE", 5*1024*1024)
	v.SetDefault("UPLOAD_MAX_DIMENSION", 1024)
	v.SetDefault("UPLOAD_MAX_PIXELS", 25_000_000)
}

// parseFeeSchedule decodes a JSON document such as {"12":{"commerce":40000}}.
// An empty value yields a nil schedule so callers fall back to the built-in table.
func parseFeeSchedule(raw string) (map[string]map[string]float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var schedule map[string]map[string]float64
	if err := json.Unmarshal([]byte(raw), &schedule); err != nil {
		return nil, fmt.Errorf("parse FEE_SCHEDULE: %w", err)
	}
	return schedule, nil
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
