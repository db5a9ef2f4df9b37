package config

import (
	"flag"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port          string
	Env           string
	Model         string
	HistoryDSN    string
	RelayUpstream string
	Images        ImagesConfig
}

type ImagesConfig struct {
	Enabled   bool
	Dir       string
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	port := flag.String("port", ":8080", "server port")
	flag.Parse()

	if envPort := os.Getenv("PORT"); envPort != "" {
		if strings.HasPrefix(envPort, ":") {
			*port = envPort
		} else {
			*port = ":" + envPort
		}
	}

	env := strings.TrimSpace(os.Getenv("APP_ENV"))
	if env == "" {
		env = "local"
	}

	return &Config{
		Port:          *port,
		Env:           env,
		Model:         firstNonEmpty(strings.TrimSpace(os.Getenv("SPOOLSCAN_MODEL")), "gemini-2.5-flash"),
		HistoryDSN:    strings.TrimSpace(os.Getenv("HISTORY_PG_DSN")),
		RelayUpstream: firstNonEmpty(strings.TrimSpace(os.Getenv("RELAY_UPSTREAM")), "https://generativelanguage.googleapis.com"),
		Images:        loadImagesConfig(),
	}, nil
}

func loadImagesConfig() ImagesConfig {
	endpoint := strings.TrimSpace(os.Getenv("IMAGES_S3_ENDPOINT"))
	dir := strings.TrimSpace(os.Getenv("IMAGES_DIR"))
	return ImagesConfig{
		Enabled:   endpoint != "" || dir != "",
		Dir:       dir,
		Endpoint:  endpoint,
		Region:    firstNonEmpty(strings.TrimSpace(os.Getenv("IMAGES_S3_REGION")), "us-east-1"),
		AccessKey: firstNonEmpty(strings.TrimSpace(os.Getenv("IMAGES_S3_ACCESS_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_USER"))),
		SecretKey: firstNonEmpty(strings.TrimSpace(os.Getenv("IMAGES_S3_SECRET_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_PASSWORD"))),
		Bucket:    firstNonEmpty(strings.TrimSpace(os.Getenv("IMAGES_S3_BUCKET")), "spoolscan-images"),
		UseSSL:    resolveUseSSL(),
	}
}

func resolveUseSSL() bool {
	raw := strings.TrimSpace(os.Getenv("IMAGES_S3_USE_SSL"))
	if raw == "" {
		return true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return true
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
