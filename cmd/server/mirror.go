package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"rigsim.ai/internal/persistence/mirror"
)

// buildMirror returns nil unless RS_MIRROR is true.
func buildMirror(dataDir string, logger zerolog.Logger) (*mirror.Mirror, error) {
	if !envBool("RS_MIRROR", false) {
		return nil, nil
	}
	cfg := mirror.BucketConfig{
		Endpoint:        strings.TrimSpace(os.Getenv("RS_MIRROR_ENDPOINT")),
		Bucket:          strings.TrimSpace(os.Getenv("RS_MIRROR_BUCKET")),
		Region:          strings.TrimSpace(os.Getenv("RS_MIRROR_REGION")),
		AccessKeyID:     strings.TrimSpace(os.Getenv("RS_MIRROR_ACCESS_KEY_ID")),
		SecretAccessKey: strings.TrimSpace(os.Getenv("RS_MIRROR_SECRET_ACCESS_KEY")),
	}
	bucket, err := mirror.NewBucket(cfg)
	if err != nil {
		return nil, fmt.Errorf("RS_MIRROR=true: %w", err)
	}
	logger.Info().Str("endpoint", cfg.Endpoint).Str("bucket", cfg.Bucket).Msg("mirroring snapshots and closed logs")
	return mirror.New(bucket, mirror.Config{
		DataDir: dataDir,
		Prefix:  strings.TrimSpace(os.Getenv("RS_MIRROR_PREFIX")),
		Workers: envInt("RS_MIRROR_WORKERS", 2),
		Queue:   envInt("RS_MIRROR_QUEUE", 2048),
	}, logger), nil
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}
