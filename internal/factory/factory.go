// Package factory is the composition root: it builds configuration,
// logging, clients, managers and services in dependency order and tears
// them down in reverse.
package factory

import (
	"context"
	"fmt"
	"sync"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"

	"github.com/jackesh4086/spr-price-check/internal/audit"
	"github.com/jackesh4086/spr-price-check/internal/bucketing"
	"github.com/jackesh4086/spr-price-check/internal/catalog"
	"github.com/jackesh4086/spr-price-check/internal/client"
	"github.com/jackesh4086/spr-price-check/internal/config"
	"github.com/jackesh4086/spr-price-check/internal/encryption"
	"github.com/jackesh4086/spr-price-check/internal/events"
	"github.com/jackesh4086/spr-price-check/internal/handler"
	"github.com/jackesh4086/spr-price-check/internal/hashing"
	"github.com/jackesh4086/spr-price-check/internal/notify"
	"github.com/jackesh4086/spr-price-check/internal/otp"
	"github.com/jackesh4086/spr-price-check/internal/ratelimit"
	"github.com/jackesh4086/spr-price-check/internal/repository/scylla"
	"github.com/jackesh4086/spr-price-check/internal/service"
	"github.com/jackesh4086/spr-price-check/internal/store"
	"github.com/jackesh4086/spr-price-check/internal/stores"
	"github.com/jackesh4086/spr-price-check/internal/token"
	"github.com/jackesh4086/spr-price-check/internal/util"
)

// Factory owns the lifecycle of every application dependency.
type Factory struct {
	config *config.Config

	// Clients
	redisClient      *client.RedisClient
	scyllaClient     *scylla.ScyllaClient
	kafkaProducer    *client.KafkaProducer
	esClient         *client.ESClient
	clickhouseClient *client.ClickHouseClient

	// Managers
	hasher            *hashing.Hasher
	encryptionManager *encryption.Manager
	bucketingManager  *bucketing.Manager
	tokenIssuer       *token.Issuer

	// Domain
	kvStore        store.Store
	memoryStore    *store.MemoryStore
	limiter        *ratelimit.Limiter
	notifier       otp.Notifier
	otpManager     *otp.Manager
	catalogCache   *catalog.Cache
	catalogService *catalog.Service
	auditSink      audit.Sink
	publisher      events.Publisher
	storesService  *stores.Service

	// Services
	verificationService *service.VerificationService
	adminService        *service.AdminService

	closeOnce sync.Once
	closed    chan struct{}
}

// NewFactory loads configuration and builds the whole dependency graph.
func NewFactory() (*Factory, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	util.Init(cfg.Environment, cfg.Logging.Level, cfg.Logging.Format)

	if cfg.UsingDevFallbackSecret() {
		util.Warn("QUOTE_TOKEN_SECRET not set, using the built-in development secret. Quote tokens are NOT secure.")
	}

	f := &Factory{
		config: cfg,
		closed: make(chan struct{}),
	}

	if err := f.initializeClients(); err != nil {
		return nil, fmt.Errorf("failed to initialize clients: %w", err)
	}
	f.initializeManagers()
	if err := f.initializeDomain(); err != nil {
		return nil, fmt.Errorf("failed to initialize domain components: %w", err)
	}

	util.Info("Factory initialized successfully",
		util.String("environment", cfg.Environment),
		util.Bool("redis", f.redisClient != nil),
		util.Bool("scylla", f.scyllaClient != nil),
		util.Bool("kafka", f.kafkaProducer != nil),
		util.Bool("clickhouse", f.clickhouseClient != nil),
		util.Bool("elasticsearch", f.esClient != nil),
		util.Bool("twilio", cfg.Twilio.Enabled))

	return f, nil
}

func (f *Factory) initializeClients() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var initErrors []error

	if f.config.Redis.URL != "" {
		if c, err := client.NewRedisClient(f.config, util.Get()); err != nil {
			initErrors = append(initErrors, fmt.Errorf("redis: %w", err))
		} else {
			f.redisClient = c
			if err := f.redisClient.HealthCheck(ctx); err != nil {
				initErrors = append(initErrors, fmt.Errorf("redis health check: %w", err))
			}
		}
	}

	if len(f.config.Scylla.Nodes) > 0 {
		if c, err := scylla.NewScyllaClient(f.config); err != nil {
			initErrors = append(initErrors, fmt.Errorf("scylla: %w", err))
		} else {
			f.scyllaClient = c
			if err := f.scyllaClient.HealthCheck(); err != nil {
				initErrors = append(initErrors, fmt.Errorf("scylla health check: %w", err))
			}
		}
	}

	if f.config.Kafka.Enabled {
		if producer, err := client.NewKafkaProducer(f.config); err != nil {
			util.Warn("Kafka producer initialization failed, proceeding without Kafka", util.ErrorField(err))
		} else {
			f.kafkaProducer = producer
		}
	}

	if f.config.Clickhouse.Enabled {
		if c, err := client.NewClickHouseClient(f.config); err != nil {
			util.Warn("ClickHouse initialization failed, proceeding without audit trail", util.ErrorField(err))
		} else {
			f.clickhouseClient = c
		}
	}

	if f.config.Elasticsearch.Enabled {
		if c, err := client.NewElasticsearchClient(f.config); err != nil {
			util.Warn("Elasticsearch initialization failed, proceeding without store search", util.ErrorField(err))
		} else {
			f.esClient = c
		}
	}

	if len(initErrors) > 0 {
		if f.config.IsProduction() {
			return fmt.Errorf("critical service initialization failed: %v", initErrors)
		}
		for _, err := range initErrors {
			util.Warn("Service initialization warning", util.ErrorField(err))
		}
	}
	return nil
}

func (f *Factory) initializeManagers() {
	f.hasher = hashing.NewHasher(f.config)

	var kmsClient *kms.Client
	if f.config.KMS.Enabled {
		awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(),
			awsconfig.WithRegion(f.config.KMS.Region))
		if err != nil {
			util.Warn("Failed to load AWS config, falling back to local encryption keys", util.ErrorField(err))
			f.config.KMS.Enabled = false
		} else {
			kmsClient = kms.NewFromConfig(awsCfg)
		}
	}

	f.encryptionManager = encryption.NewManager(f.config, kmsClient)
	f.bucketingManager = bucketing.NewManager()
	f.tokenIssuer = token.NewIssuer(
		f.config.Token.QuoteSecret,
		f.config.Token.AdminSecret,
		f.config.Token.QuoteTokenTTL,
		f.config.Token.AdminTokenTTL,
	)
}

// initializeDomain builds the store, limiter, notifier, catalog and
// services. Backend strategy is decided once here, never inline.
func (f *Factory) initializeDomain() error {
	if f.redisClient != nil {
		f.kvStore = store.NewRedisStore(f.redisClient)
		util.Info("Using Redis-backed key-value store")
	} else {
		f.memoryStore = store.NewMemoryStore()
		f.kvStore = f.memoryStore
		util.Info("Using in-memory key-value store")
	}

	f.limiter = ratelimit.NewLimiter(f.kvStore)

	if f.config.Twilio.Enabled {
		notifier, err := notify.NewTwilioNotifier(&f.config.Twilio)
		if err != nil {
			return err
		}
		f.notifier = notifier
	} else {
		if f.config.IsProduction() {
			return fmt.Errorf("Twilio credentials are required in production")
		}
		f.notifier = notify.NewLogNotifier()
		util.Warn("Twilio not configured, OTP codes will be written to the log")
	}

	f.otpManager = otp.NewManager(f.kvStore, f.notifier)

	var catalogRepo catalog.Repository
	if f.scyllaClient != nil {
		repo := scylla.NewCatalogRepository(f.scyllaClient)
		if seeded, err := repo.Seed(context.Background()); err != nil {
			util.Warn("Catalog seed check failed", util.ErrorField(err))
		} else if seeded {
			util.Info("Catalog seeded into ScyllaDB")
		}
		catalogRepo = repo
	} else {
		catalogRepo = catalog.NewStoreRepository(f.kvStore)
	}
	f.catalogCache = catalog.NewCache(catalogRepo, catalog.DefaultCacheTTL)
	f.catalogService = catalog.NewService(f.catalogCache, catalogRepo)

	if f.clickhouseClient != nil {
		f.auditSink = audit.NewClickHouseSink(f.clickhouseClient, f.encryptionManager, f.bucketingManager)
	} else {
		f.auditSink = audit.NewNoopSink()
	}

	if f.kafkaProducer != nil {
		f.publisher = events.NewKafkaPublisher(f.kafkaProducer, f.encryptionManager, f.config.Kafka.LeadTopic)
	} else {
		f.publisher = events.NewNoopPublisher()
	}

	if f.esClient != nil {
		f.storesService = stores.NewService(f.esClient, f.config.Elasticsearch.StoreIndex)
	}

	f.verificationService = service.NewVerificationService(
		f.otpManager,
		f.limiter,
		f.tokenIssuer,
		f.catalogService,
		f.auditSink,
		f.publisher,
		f.config.RateLimit.IPLimit,
		f.config.RateLimit.IPWindow,
		f.config.RateLimit.ResendCooldown,
	)
	f.adminService = service.NewAdminService(&f.config.Admin, f.hasher, f.tokenIssuer)
	return nil
}

// VerificationHandler builds the public HTTP handler.
func (f *Factory) VerificationHandler() *handler.VerificationHandler {
	return handler.NewVerificationHandler(
		f.verificationService,
		f.catalogService,
		f.storesService,
		f.config.Server.EnableTLS || f.config.IsProduction(),
	)
}

// AdminHandler builds the admin HTTP handler.
func (f *Factory) AdminHandler() *handler.AdminHandler {
	return handler.NewAdminHandler(f.adminService, f.catalogService, f.storesService)
}

// HealthCheck probes every configured backend.
func (f *Factory) HealthCheck(ctx context.Context) map[string]error {
	healthErrors := make(map[string]error)

	if f.redisClient != nil {
		if err := f.redisClient.HealthCheck(ctx); err != nil {
			healthErrors["redis"] = err
		}
	}
	if f.scyllaClient != nil {
		if err := f.scyllaClient.HealthCheck(); err != nil {
			healthErrors["scylla"] = err
		}
	}
	if f.kafkaProducer != nil {
		if err := f.kafkaProducer.HealthCheck(ctx); err != nil {
			healthErrors["kafka"] = err
		}
	}
	if f.clickhouseClient != nil {
		if err := f.clickhouseClient.HealthCheck(ctx); err != nil {
			healthErrors["clickhouse"] = err
		}
	}
	if f.esClient != nil {
		if err := f.esClient.HealthCheck(); err != nil {
			healthErrors["elasticsearch"] = err
		}
	}
	return healthErrors
}

// Close shuts everything down in reverse dependency order.
func (f *Factory) Close() error {
	f.closeOnce.Do(func() {
		close(f.closed)
		util.Info("Shutting down...")

		if f.auditSink != nil {
			if err := f.auditSink.Close(); err != nil {
				util.Error("Failed to close audit sink", util.ErrorField(err))
			}
		}
		if f.clickhouseClient != nil {
			if err := f.clickhouseClient.Close(); err != nil {
				util.Error("Failed to close ClickHouse client", util.ErrorField(err))
			}
		}
		if f.esClient != nil {
			f.esClient.Close()
		}
		if f.kafkaProducer != nil {
			if err := f.kafkaProducer.Close(); err != nil {
				util.Error("Failed to close Kafka producer", util.ErrorField(err))
			}
		}
		if f.scyllaClient != nil {
			f.scyllaClient.Close()
		}
		if f.redisClient != nil {
			if err := f.redisClient.Close(); err != nil {
				util.Error("Failed to close Redis client", util.ErrorField(err))
			}
		}
		if f.memoryStore != nil {
			f.memoryStore.Close()
		}
		if f.encryptionManager != nil {
			f.encryptionManager.ClearCache()
		}

		util.Sync()
	})
	return nil
}

func (f *Factory) WaitForClose() {
	<-f.closed
}

func (f *Factory) Config() *config.Config {
	return f.config
}
