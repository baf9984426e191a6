package app

import (
	"strings"

	"github.com/gamescout/gamescout-backend/internal/pkg/logger"
	"github.com/gamescout/gamescout-backend/internal/utils"
)

type Config struct {
	HTTPAddr       string
	AllowedOrigins []string
	Environment    string
	Version        string
}

func LoadConfig(log *logger.Logger) Config {
	origins := strings.Split(utils.GetEnv("CORS_ALLOWED_ORIGINS", "", log), ",")
	cleaned := origins[:0]
	for _, o := range origins {
		if o = strings.TrimSpace(o); o != "" {
			cleaned = append(cleaned, o)
		}
	}
	return Config{
		HTTPAddr:       utils.GetEnv("HTTP_ADDR", ":8080", log),
		AllowedOrigins: cleaned,
		Environment:    utils.GetEnv("APP_ENV", "development", log),
		Version:        utils.GetEnv("APP_VERSION", "dev", log),
	}
}
