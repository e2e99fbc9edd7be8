package config

import (
	"fmt"
	"os"
)

// State backends.
const (
	StateBackendFile     = "file"
	StateBackendS3       = "s3"
	StateBackendPostgres = "postgres"
)

// StateSettings selects where output bundles and spoke phases are
// persisted. Settings come from the environment so manifests stay free
// of credentials.
type StateSettings struct {
	Backend string

	// file backend
	FilePath string

	// s3 backend
	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string

	// postgres backend
	PostgresURL string
}

// StateFromEnv loads state-backend settings with file-backend
// defaults.
func StateFromEnv() *StateSettings {
	return &StateSettings{
		Backend:     getEnv("LZ_STATE_BACKEND", StateBackendFile),
		FilePath:    getEnv("LZ_STATE_PATH", "lzstate.json"),
		S3Bucket:    getEnv("LZ_STATE_S3_BUCKET", ""),
		S3Region:    getEnv("LZ_STATE_S3_REGION", "us-east-1"),
		S3Endpoint:  getEnv("LZ_STATE_S3_ENDPOINT", ""),
		S3AccessKey: getEnv("LZ_STATE_S3_ACCESS_KEY", ""),
		S3SecretKey: getEnv("LZ_STATE_S3_SECRET_KEY", ""),
		PostgresURL: getEnv("LZ_STATE_POSTGRES_URL", ""),
	}
}

// Validate checks that the selected backend has the settings it needs.
func (s *StateSettings) Validate() error {
	switch s.Backend {
	case StateBackendFile:
		if s.FilePath == "" {
			return fmt.Errorf("LZ_STATE_PATH is required for the file state backend")
		}
	case StateBackendS3:
		if s.S3Bucket == "" {
			return fmt.Errorf("LZ_STATE_S3_BUCKET is required for the s3 state backend")
		}
		if s.S3AccessKey == "" || s.S3SecretKey == "" {
			return fmt.Errorf("LZ_STATE_S3_ACCESS_KEY and LZ_STATE_S3_SECRET_KEY are required for the s3 state backend")
		}
	case StateBackendPostgres:
		if s.PostgresURL == "" {
			return fmt.Errorf("LZ_STATE_POSTGRES_URL is required for the postgres state backend")
		}
	default:
		return fmt.Errorf("unknown state backend %q", s.Backend)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
