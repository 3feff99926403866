package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env         string        `yaml:"env" env:"ENV" env-default:"local"`
	DatabaseDSN string        `yaml:"database_dsn" env:"DATABASE_URL" env-required:"true"`
	HTTPServer  HTTPServer    `yaml:"http_server"`
	CORS        CORSConfig    `yaml:"cors"`
	Uploads     UploadsConfig `yaml:"uploads"`
	Storage     StorageConfig `yaml:"storage"`
}

type HTTPServer struct {
	Address     string        `yaml:"address" env:"ADDRESS" env-default:"localhost:4000"`
	Timeout     time.Duration `yaml:"timeout" env-default:"4s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

type CORSConfig struct {
	AllowedOrigin string `yaml:"allowed_origin" env:"CORS_ALLOWED_ORIGIN" env-default:"http://localhost:5173"`
}

type UploadsConfig struct {
	MaxFiles      int   `yaml:"max_files" env-default:"5"`
	MaxUploadSize int64 `yaml:"max_upload_size" env-default:"33554432"`
}

type StorageConfig struct {
	Backend string   `yaml:"backend" env:"STORAGE_BACKEND" env-default:"local"`
	Dir     string   `yaml:"dir" env:"UPLOADS_DIR" env-default:"uploads"`
	S3      S3Config `yaml:"s3"`
}

type S3Config struct {
	Bucket    string `yaml:"bucket" env:"S3_BUCKET"`
	Region    string `yaml:"region" env:"S3_REGION"`
	Endpoint  string `yaml:"endpoint" env:"S3_ENDPOINT"`
	AccessKey string `env:"S3_ACCESS_KEY"`
	SecretKey string `env:"S3_SECRET_KEY"`
}

func MustLoad() *Config {
	var cfg Config

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			log.Fatalf("cannot read config from env: %s", err)
		}
		return &cfg
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("config file does not exist: %s", configPath)
	}

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("cannot read config %s", err)
	}

	return &cfg
}
