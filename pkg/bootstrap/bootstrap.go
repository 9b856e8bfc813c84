// Package bootstrap wires the backends selected by config.Runtime into a
// transition.Handler. Functions call Build once per container.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/oracle/oci-go-sdk/v65/common"
	"github.com/oracle/oci-go-sdk/v65/datacatalog"
	"github.com/oracle/oci-go-sdk/v65/dataflow"
	"github.com/oracle/oci-go-sdk/v65/functions"
	"github.com/oracle/oci-go-sdk/v65/nosql"
	"github.com/oracle/oci-go-sdk/v65/objectstorage"
	"go.uber.org/zap"

	"etl-state-mover-oci-serverless/pkg/batch"
	"etl-state-mover-oci-serverless/pkg/config"
	"etl-state-mover-oci-serverless/pkg/jobs"
	"etl-state-mover-oci-serverless/pkg/lock"
	"etl-state-mover-oci-serverless/pkg/notify"
	"etl-state-mover-oci-serverless/pkg/ociauth"
	"etl-state-mover-oci-serverless/pkg/queue"
	"etl-state-mover-oci-serverless/pkg/storage"
	"etl-state-mover-oci-serverless/pkg/transition"
)

// Variant selects which follow-up the function runs after reconciliation.
type Variant int

const (
	// Transition promotes ready files and submits a batch job.
	Transition Variant = iota
	// Notify invokes a downstream consumer.
	Notify
	// Status only reads job records.
	Status
)

const lockName = "promote-ready-files"

// Deps is everything one function container needs.
type Deps struct {
	Runtime  config.Runtime
	Config   config.Config
	Jobs     jobs.Store
	Handler  *transition.Handler
	Notifier notify.Notifier

	closers []func()
}

// Close releases pooled connections.
func (d *Deps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

type builder struct {
	rt       config.Runtime
	logger   *zap.Logger
	provider common.ConfigurationProvider
	nosqlc   *nosql.NosqlClient
	deps     *Deps
}

// Build loads the domain configuration and constructs the handler for variant.
// The Status variant only gets a job store.
func Build(ctx context.Context, rt config.Runtime, variant Variant, logger *zap.Logger) (*Deps, error) {
	b := &builder{rt: rt, logger: logger, deps: &Deps{Runtime: rt}}
	deps, err := b.build(ctx, variant)
	if err != nil {
		b.deps.Close()
		return nil, err
	}
	return deps, nil
}

func (b *builder) build(ctx context.Context, variant Variant) (*Deps, error) {
	// Status only reads job records.
	if variant == Status {
		store, err := b.jobStore(ctx)
		if err != nil {
			return nil, err
		}
		b.deps.Jobs = store
		return b.deps, nil
	}

	cfg, err := b.loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	b.deps.Config = cfg
	b.logger.Info("configuration loaded",
		zap.String("bucket", cfg.Bucket),
		zap.String("ready_dir", cfg.ReadyDir),
		zap.String("in_process_dir", cfg.InProcessDir),
	)

	store, err := b.jobStore(ctx)
	if err != nil {
		return nil, err
	}
	b.deps.Jobs = store

	objects, err := b.objectStore(ctx, cfg.Bucket)
	if err != nil {
		return nil, err
	}

	var opts []transition.Option
	switch variant {
	case Transition:
		launcher, err := b.launcher()
		if err != nil {
			return nil, err
		}
		opts = append(opts, transition.WithLauncher(launcher))

		locker, err := b.locker(ctx)
		if err != nil {
			return nil, err
		}
		if locker != nil {
			opts = append(opts, transition.WithLocker(locker))
		}
	case Notify:
		n, err := b.notifier()
		if err != nil {
			return nil, err
		}
		b.deps.Notifier = n
	}

	b.deps.Handler = transition.New(cfg, objects, store, b.logger, opts...)
	return b.deps, nil
}

func (b *builder) ociProvider() (common.ConfigurationProvider, error) {
	if b.provider != nil {
		return b.provider, nil
	}
	p, err := ociauth.Provider(b.rt.AuthMode)
	if err != nil {
		return nil, fmt.Errorf("oci auth: %w", err)
	}
	b.provider = p
	return p, nil
}

func (b *builder) nosqlClient() (*nosql.NosqlClient, error) {
	if b.nosqlc != nil {
		return b.nosqlc, nil
	}
	p, err := b.ociProvider()
	if err != nil {
		return nil, err
	}
	c, err := nosql.NewNosqlClientWithConfigurationProvider(p)
	if err != nil {
		return nil, fmt.Errorf("nosql client: %w", err)
	}
	b.nosqlc = &c
	return b.nosqlc, nil
}

func (b *builder) loadConfig(ctx context.Context) (config.Config, error) {
	var src config.Source
	switch b.rt.ConfigSource {
	case config.SourceFile:
		fs, err := config.NewFileSource(b.rt.ConfigValuesFile)
		if err != nil {
			return config.Config{}, err
		}
		src = fs
	default:
		c, err := b.nosqlClient()
		if err != nil {
			return config.Config{}, err
		}
		src = config.NewNosqlSource(c, b.rt.ConfigTable, b.rt.CompartmentID)
	}
	return config.Load(ctx, src)
}

func (b *builder) objectStore(ctx context.Context, bucket string) (storage.ObjectStore, error) {
	if b.rt.StorageBackend == config.StorageMinio {
		client, err := storage.NewMinioClient(b.rt.MinioEndpoint, b.rt.MinioAccessKey, b.rt.MinioSecretKey, b.rt.MinioUseSSL)
		if err != nil {
			return nil, err
		}
		return storage.NewMinioStore(ctx, client, bucket)
	}

	p, err := b.ociProvider()
	if err != nil {
		return nil, err
	}
	client, err := objectstorage.NewObjectStorageClientWithConfigurationProvider(p)
	if err != nil {
		return nil, fmt.Errorf("object storage client: %w", err)
	}
	namespace := b.rt.Namespace
	if namespace == "" {
		if namespace, err = storage.ResolveNamespace(ctx, client); err != nil {
			return nil, err
		}
	}
	return storage.NewOCIStore(client, namespace, bucket), nil
}

func (b *builder) jobStore(ctx context.Context) (jobs.Store, error) {
	if b.rt.JobsBackend == config.JobsPostgres {
		pool, err := jobs.OpenPostgres(ctx, b.rt.DatabaseURL)
		if err != nil {
			return nil, err
		}
		b.deps.closers = append(b.deps.closers, pool.Close)
		return jobs.NewPostgresStore(pool), nil
	}

	c, err := b.nosqlClient()
	if err != nil {
		return nil, err
	}
	return jobs.NewNosqlStore(c, b.rt.JobsTable, b.rt.CompartmentID), nil
}

func (b *builder) launcher() (batch.Launcher, error) {
	if b.rt.CompartmentID == "" || b.rt.CatalogID == "" {
		return nil, fmt.Errorf("COMPARTMENT_OCID and DATA_CATALOG_OCID are required to submit jobs")
	}
	p, err := b.ociProvider()
	if err != nil {
		return nil, err
	}
	flow, err := dataflow.NewDataFlowClientWithConfigurationProvider(p)
	if err != nil {
		return nil, fmt.Errorf("data flow client: %w", err)
	}
	catalog, err := datacatalog.NewDataCatalogClientWithConfigurationProvider(p)
	if err != nil {
		return nil, fmt.Errorf("data catalog client: %w", err)
	}
	return batch.NewOCILauncher(flow, catalog, b.rt.CatalogID, b.rt.CompartmentID), nil
}

func (b *builder) locker(ctx context.Context) (lock.Locker, error) {
	switch b.rt.LockBackend {
	case config.LockRedis:
		client, err := lock.NewRedisClient(ctx, b.rt.RedisAddr)
		if err != nil {
			return nil, err
		}
		b.deps.closers = append(b.deps.closers, func() { client.Close() })
		return lock.NewRedisLocker(client, lockName, b.rt.LockTTL), nil
	case config.LockNosql:
		c, err := b.nosqlClient()
		if err != nil {
			return nil, err
		}
		return lock.NewNosqlLocker(c, b.rt.LockTable, b.rt.CompartmentID, lockName, b.rt.LockTTL), nil
	default:
		return nil, nil
	}
}

func (b *builder) notifier() (notify.Notifier, error) {
	switch b.rt.NotifyBackend {
	case config.NotifyRabbitMQ:
		if b.rt.AMQPURL == "" {
			return nil, fmt.Errorf("AMQP_URL is required for the rabbitmq notify backend")
		}
		client, err := queue.NewRabbitMQClient(b.rt.AMQPURL, b.rt.AMQPQueue, b.logger)
		if err != nil {
			return nil, err
		}
		b.deps.closers = append(b.deps.closers, func() { client.Close() })
		return notify.NewQueueNotifier(client), nil
	case config.NotifyQueue:
		if b.rt.QueueID == "" {
			return nil, fmt.Errorf("QUEUE_OCID is required for the queue notify backend")
		}
		p, err := b.ociProvider()
		if err != nil {
			return nil, err
		}
		client, err := queue.NewOCIQueueClient(p, b.rt.QueueID, b.rt.QueueEndpoint)
		if err != nil {
			return nil, fmt.Errorf("queue client: %w", err)
		}
		return notify.NewQueueNotifier(client), nil
	default:
		if b.rt.DownstreamFunctionID == "" || b.rt.FunctionsEndpoint == "" {
			return nil, fmt.Errorf("DOWNSTREAM_FUNCTION_OCID and FUNCTIONS_INVOKE_ENDPOINT are required for the function notify backend")
		}
		p, err := b.ociProvider()
		if err != nil {
			return nil, err
		}
		client, err := functions.NewFunctionsInvokeClientWithConfigurationProvider(p, b.rt.FunctionsEndpoint)
		if err != nil {
			return nil, fmt.Errorf("functions invoke client: %w", err)
		}
		return notify.NewFunctionNotifier(client, b.rt.DownstreamFunctionID), nil
	}
}
