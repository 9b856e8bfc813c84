package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"
)

// Backend selectors.
const (
	AuthResourcePrincipal = "resource_principal"
	AuthInstancePrincipal = "instance_principal"
	AuthConfigFile        = "config_file"

	SourceNosql = "nosql"
	SourceFile  = "file"

	StorageOCI   = "oci"
	StorageMinio = "minio"

	JobsNosql    = "nosql"
	JobsPostgres = "postgres"

	LockNone  = "none"
	LockNosql = "nosql"
	LockRedis = "redis"

	NotifyFunction = "function"
	NotifyQueue    = "queue"
	NotifyRabbitMQ = "rabbitmq"
)

// Runtime describes how the function reaches its backends.
type Runtime struct {
	LogLevel      string `yaml:"log_level"`
	AuthMode      string `yaml:"auth_mode"`
	CompartmentID string `yaml:"compartment_id"`
	Namespace     string `yaml:"namespace"`

	ConfigSource     string `yaml:"config_source"`
	ConfigTable      string `yaml:"config_table"`
	ConfigValuesFile string `yaml:"config_values_file"`

	StorageBackend string `yaml:"storage_backend"`
	MinioEndpoint  string `yaml:"minio_endpoint"`
	MinioAccessKey string `yaml:"minio_access_key"`
	MinioSecretKey string `yaml:"minio_secret_key"`
	MinioUseSSL    bool   `yaml:"minio_use_ssl"`

	JobsBackend string `yaml:"jobs_backend"`
	JobsTable   string `yaml:"jobs_table"`
	DatabaseURL string `yaml:"database_url"`

	LockBackend string        `yaml:"lock_backend"`
	LockTable   string        `yaml:"lock_table"`
	LockTTL     time.Duration `yaml:"lock_ttl"`
	RedisAddr   string        `yaml:"redis_addr"`

	CatalogID string `yaml:"catalog_id"`

	NotifyBackend        string `yaml:"notify_backend"`
	DownstreamFunctionID string `yaml:"downstream_function_id"`
	FunctionsEndpoint    string `yaml:"functions_endpoint"`
	FunctionVersion      string `yaml:"function_version"`
	QueueID              string `yaml:"queue_id"`
	QueueEndpoint        string `yaml:"queue_endpoint"`
	AMQPURL              string `yaml:"amqp_url"`
	AMQPQueue            string `yaml:"amqp_queue"`
}

// DefaultRuntime returns the settings used when nothing overrides them.
func DefaultRuntime() Runtime {
	return Runtime{
		LogLevel:        "info",
		AuthMode:        AuthResourcePrincipal,
		ConfigSource:    SourceNosql,
		ConfigTable:     "configuration",
		StorageBackend:  StorageOCI,
		JobsBackend:     JobsNosql,
		JobsTable:       "jobs",
		LockBackend:     LockNone,
		LockTable:       "job_locks",
		LockTTL:         15 * time.Minute,
		NotifyBackend:   NotifyFunction,
		FunctionVersion: "latest",
		AMQPQueue:       "state_mover_events",
	}
}

// LoadRuntime resolves runtime settings. Defaults are overlaid by the YAML
// file named by CONFIG_FILE, then by the function config and finally by
// environment variables not present in the function config.
func LoadRuntime(fnConfig map[string]string) (Runtime, error) {
	lookup := func(key string) (string, bool) {
		if v, ok := fnConfig[key]; ok && v != "" {
			return v, true
		}
		v := os.Getenv(key)
		return v, v != ""
	}

	rt := DefaultRuntime()
	if path, ok := lookup("CONFIG_FILE"); ok {
		b, err := os.ReadFile(path)
		if err != nil {
			return Runtime{}, fmt.Errorf("read runtime config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &rt); err != nil {
			return Runtime{}, fmt.Errorf("parse runtime config %s: %w", path, err)
		}
	}

	strs := map[string]*string{
		"LOG_LEVEL":                 &rt.LogLevel,
		"OCI_AUTH_MODE":             &rt.AuthMode,
		"COMPARTMENT_OCID":          &rt.CompartmentID,
		"OBJECT_STORAGE_NAMESPACE":  &rt.Namespace,
		"CONFIG_SOURCE":             &rt.ConfigSource,
		"CONFIG_TABLE":              &rt.ConfigTable,
		"CONFIG_VALUES_FILE":        &rt.ConfigValuesFile,
		"STORAGE_BACKEND":           &rt.StorageBackend,
		"MINIO_ENDPOINT":            &rt.MinioEndpoint,
		"MINIO_ACCESS_KEY":          &rt.MinioAccessKey,
		"MINIO_SECRET_KEY":          &rt.MinioSecretKey,
		"JOBS_BACKEND":              &rt.JobsBackend,
		"JOBS_TABLE":                &rt.JobsTable,
		"DB_URL":                    &rt.DatabaseURL,
		"LOCK_BACKEND":              &rt.LockBackend,
		"LOCK_TABLE":                &rt.LockTable,
		"REDIS_ADDR":                &rt.RedisAddr,
		"DATA_CATALOG_OCID":         &rt.CatalogID,
		"NOTIFY_BACKEND":            &rt.NotifyBackend,
		"DOWNSTREAM_FUNCTION_OCID":  &rt.DownstreamFunctionID,
		"FUNCTIONS_INVOKE_ENDPOINT": &rt.FunctionsEndpoint,
		"FUNCTION_VERSION":          &rt.FunctionVersion,
		"QUEUE_OCID":                &rt.QueueID,
		"QUEUE_ENDPOINT":            &rt.QueueEndpoint,
		"AMQP_URL":                  &rt.AMQPURL,
		"AMQP_QUEUE":                &rt.AMQPQueue,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}

	if v, ok := lookup("MINIO_USE_SSL"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Runtime{}, fmt.Errorf("MINIO_USE_SSL: %w", err)
		}
		rt.MinioUseSSL = b
	}
	if v, ok := lookup("LOCK_TTL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Runtime{}, fmt.Errorf("LOCK_TTL: %w", err)
		}
		rt.LockTTL = d
	}

	return rt, rt.Validate()
}

// Validate checks that every selected backend has what it needs.
func (rt Runtime) Validate() error {
	switch rt.AuthMode {
	case AuthResourcePrincipal, AuthInstancePrincipal, AuthConfigFile:
	default:
		return fmt.Errorf("unknown OCI_AUTH_MODE %q", rt.AuthMode)
	}

	switch rt.ConfigSource {
	case SourceNosql:
		if rt.ConfigTable == "" {
			return fmt.Errorf("CONFIG_TABLE is required for the nosql config source")
		}
	case SourceFile:
		if rt.ConfigValuesFile == "" {
			return fmt.Errorf("CONFIG_VALUES_FILE is required for the file config source")
		}
	default:
		return fmt.Errorf("unknown CONFIG_SOURCE %q", rt.ConfigSource)
	}

	switch rt.StorageBackend {
	case StorageOCI:
	case StorageMinio:
		if rt.MinioEndpoint == "" {
			return fmt.Errorf("MINIO_ENDPOINT is required for the minio storage backend")
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", rt.StorageBackend)
	}

	switch rt.JobsBackend {
	case JobsNosql:
		if rt.JobsTable == "" {
			return fmt.Errorf("JOBS_TABLE is required for the nosql jobs backend")
		}
	case JobsPostgres:
		if rt.DatabaseURL == "" {
			return fmt.Errorf("DB_URL is required for the postgres jobs backend")
		}
	default:
		return fmt.Errorf("unknown JOBS_BACKEND %q", rt.JobsBackend)
	}

	switch rt.LockBackend {
	case LockNone, "":
	case LockNosql:
		if rt.LockTable == "" {
			return fmt.Errorf("LOCK_TABLE is required for the nosql lock backend")
		}
	case LockRedis:
		if rt.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required for the redis lock backend")
		}
	default:
		return fmt.Errorf("unknown LOCK_BACKEND %q", rt.LockBackend)
	}
	if rt.LockTTL <= 0 {
		return fmt.Errorf("LOCK_TTL must be positive")
	}

	switch rt.NotifyBackend {
	case NotifyFunction, NotifyQueue, NotifyRabbitMQ:
	default:
		return fmt.Errorf("unknown NOTIFY_BACKEND %q", rt.NotifyBackend)
	}
	return nil
}
