package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"medinearby/internal/catalog"
	"medinearby/internal/models"
)

type Config struct {
	Port        string
	Environment string
	LogLevel    string

	RadiusKm      float64
	Fallback      models.Coordinate
	LocateTimeout time.Duration
	Sources       []catalog.SourceSpec

	Redis       RedisConfig
	GeoIPPath   string
	CatalogFile string

	SessionSecret string
	LoginUser     string
	LoginPass     string

	UploadDir string
}

type RedisConfig struct {
	Addr          string
	Password      string
	DB            int
	ChannelPrefix string
}

// Enabled reports whether a Redis address was configured.
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

// Load reads an optional .env file and then the environment.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:        getEnv("PORT", "9595"),
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		RadiusKm: getEnvAsFloat("RADIUS_KM", 20),
		Fallback: models.Coordinate{
			Lat: getEnvAsFloat("FALLBACK_LAT", 27.1767),
			Lng: getEnvAsFloat("FALLBACK_LNG", 78.0081),
		},
		LocateTimeout: getEnvAsDuration("LOCATE_TIMEOUT", 10*time.Second),
		Sources:       catalog.ParseSourceSpecs(getEnv("SOURCES", "doctors,medical-stores:"+models.CategoryMedicalStores+",import")),

		Redis: RedisConfig{
			Addr:          getEnv("REDIS_ADDR", ""),
			Password:      getEnv("REDIS_PASSWORD", ""),
			DB:            getEnvAsInt("REDIS_DB", 0),
			ChannelPrefix: getEnv("REDIS_CHANNEL_PREFIX", "catalog:"),
		},
		GeoIPPath:   getEnv("GEOIP_DB", ""),
		CatalogFile: getEnv("CATALOG_FILE", ""),

		SessionSecret: getEnv("SESSION_SECRET", "change-me-medinearby-session-secret"),
		LoginUser:     getEnv("LOGIN_USER", "user"),
		LoginPass:     getEnv("LOGIN_PASS", ""),

		UploadDir: getEnv("UPLOAD_DIR", "uploads"),
	}
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valStr := os.Getenv(key)
	if valStr == "" {
		return fallback
	}
	val, err := strconv.Atoi(valStr)
	if err != nil {
		log.Warn().Str("key", key).Int("default", fallback).Msg("invalid int, using default")
		return fallback
	}
	return val
}

func getEnvAsFloat(key string, fallback float64) float64 {
	valStr := os.Getenv(key)
	if valStr == "" {
		return fallback
	}
	val, err := strconv.ParseFloat(valStr, 64)
	if err != nil {
		log.Warn().Str("key", key).Float64("default", fallback).Msg("invalid float, using default")
		return fallback
	}
	return val
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valStr := os.Getenv(key)
	if valStr == "" {
		return fallback
	}
	val, err := time.ParseDuration(valStr)
	if err != nil {
		log.Warn().Str("key", key).Dur("default", fallback).Msg("invalid duration, using default")
		return fallback
	}
	return val
}
