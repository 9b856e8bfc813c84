// Package config holds the immutable settings the state mover runs with.
//
// Two layers exist. Config is the domain configuration (bucket, job, crawler
// and the four processing-state prefixes) stored as key/value rows in a
// configuration table. Runtime describes how the process reaches its backends
// and is read from the function config, the environment and an optional YAML file.
package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Keys of the configuration table.
const (
	KeyBucket       = "BUCKET"
	KeyJob          = "JOB"
	KeyCrawler      = "CRAWLER"
	KeyReadyDir     = "READY-DIR-PATH"
	KeyInProcessDir = "IN-PROCESS-DIR-PATH"
	KeySucceededDir = "SUCCEEDED-DIR-PATH"
	KeyFailedDir    = "FAILED-DIR-PATH"
	KeyFileMarker   = "FILE-MARKER"
)

// DefaultFileMarker selects which ready files are promoted.
const DefaultFileMarker = ".csv"

var requiredKeys = []string{
	KeyBucket,
	KeyJob,
	KeyCrawler,
	KeyReadyDir,
	KeyInProcessDir,
	KeySucceededDir,
	KeyFailedDir,
}

// ErrMissingKey is returned when a required configuration key has no value.
var ErrMissingKey = errors.New("missing configuration key")

// Config is loaded once per process and passed by value.
type Config struct {
	Bucket       string
	Job          string
	Crawler      string
	ReadyDir     string
	InProcessDir string
	SucceededDir string
	FailedDir    string
	FileMarker   string
}

// Source looks up a single configuration value. found is false when the key
// does not exist.
type Source interface {
	Lookup(ctx context.Context, key string) (value string, found bool, err error)
}

// Load reads every configuration key from src.
func Load(ctx context.Context, src Source) (Config, error) {
	values := make(map[string]string, len(requiredKeys)+1)
	for _, key := range append(requiredKeys, KeyFileMarker) {
		v, found, err := src.Lookup(ctx, key)
		if err != nil {
			return Config{}, fmt.Errorf("load configuration key %s: %w", key, err)
		}
		if found {
			values[key] = v
		}
	}
	return FromMap(values)
}

// FromMap builds a Config from raw key/value pairs.
func FromMap(values map[string]string) (Config, error) {
	var missing []string
	for _, key := range requiredKeys {
		if strings.TrimSpace(values[key]) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("%w: %s", ErrMissingKey, strings.Join(missing, ", "))
	}

	marker := values[KeyFileMarker]
	if marker == "" {
		marker = DefaultFileMarker
	}

	return Config{
		Bucket:       values[KeyBucket],
		Job:          values[KeyJob],
		Crawler:      values[KeyCrawler],
		ReadyDir:     values[KeyReadyDir],
		InProcessDir: values[KeyInProcessDir],
		SucceededDir: values[KeySucceededDir],
		FailedDir:    values[KeyFailedDir],
		FileMarker:   marker,
	}, nil
}
