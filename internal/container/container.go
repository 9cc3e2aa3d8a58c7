package container

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/resume-analyzer-api/config"
	"github.com/oksasatya/resume-analyzer-api/internal/application"
	repo "github.com/oksasatya/resume-analyzer-api/internal/domain/repository"
	esinfra "github.com/oksasatya/resume-analyzer-api/internal/infrastructure/elastic"
	"github.com/oksasatya/resume-analyzer-api/internal/infrastructure/memory"
	pginfra "github.com/oksasatya/resume-analyzer-api/internal/infrastructure/postgres"
	"github.com/oksasatya/resume-analyzer-api/internal/infrastructure/redisstore"
	"github.com/oksasatya/resume-analyzer-api/pkg/helpers"
	"github.com/oksasatya/resume-analyzer-api/pkg/mailer"
)

// Container holds the components built once at startup. Nothing in it is
// global; main builds it and hands it to the router.
type Container struct {
	Cfg    *config.Config
	Logger *logrus.Logger

	PGPool *pgxpool.Pool
	DB     *sql.DB
	Redis  *redis.Client
	ES     *elasticsearch.Client
	Rabbit *helpers.RabbitPublisher

	JWT      *helpers.JWTManager
	Users    repo.UserRepository
	Denylist repo.TokenDenylist
	Notifier *mailer.Notifier
	Audit    *esinfra.AuditSink
	Auth     *application.AuthService

	closers []func()
}

// New connects the configured backends and wires the auth service.
// Optional backends (Elasticsearch, RabbitMQ, Mailgun) are skipped when
// unconfigured; required ones fail startup.
func New(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*Container, error) {
	c := &Container{Cfg: cfg, Logger: logger}
	ok := false
	defer func() {
		if !ok {
			c.Close()
		}
	}()

	if err := c.initUsers(ctx); err != nil {
		return nil, err
	}
	if err := c.initRedis(ctx); err != nil {
		return nil, err
	}
	c.initAudit(ctx)
	if err := c.initNotifier(); err != nil {
		return nil, err
	}

	// One clock for token stamps and the service's lifetime arithmetic.
	clock := time.Now
	c.JWT = helpers.NewJWTManager(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.AccessTTL, cfg.RefreshTTL, cfg.JWTIssuer).
		WithClock(clock)

	deps := application.AuthDeps{
		Users:    c.Users,
		Denylist: c.Denylist,
		Notifier: c.Notifier,
		Hasher:   helpers.NewBcryptHasher(cfg.BcryptCost),
		Tokens:   c.JWT,
		Logger:   logger,
		Policy: application.Policy{
			MaxLoginAttempts: cfg.MaxLoginAttempts,
			LockDuration:     cfg.LockDuration,
			ResetTokenTTL:    cfg.ResetTokenTTL,
		},
		Now: clock,
	}
	if c.Audit != nil {
		deps.Audit = c.Audit
	}
	c.Auth = application.NewAuthService(deps)

	ok = true
	return c, nil
}

func (c *Container) initUsers(ctx context.Context) error {
	switch strings.ToLower(c.Cfg.UserStore) {
	case "memory":
		c.Logger.Warn("USER_STORE=memory: users are lost on restart")
		c.Users = memory.NewUserRepository()
	case "postgres", "":
		pool, err := pginfra.NewPool(ctx, c.Cfg.PostgresDSN(), pginfra.PoolOptions{
			MaxConns:    c.Cfg.DBMaxConns,
			MinConns:    c.Cfg.DBMinConns,
			MaxConnLife: c.Cfg.DBMaxConnLife,
			AppName:     c.Cfg.AppName,
		})
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		c.PGPool = pool
		c.DB = pginfra.OpenDB(pool)
		c.closers = append(c.closers, func() { _ = c.DB.Close() }, pool.Close)
		c.Users = pginfra.NewUserRepository(c.DB)
	default:
		return fmt.Errorf("unknown USER_STORE %q", c.Cfg.UserStore)
	}
	return nil
}

// initRedis connects Redis when the denylist needs it. The rate limiter
// reuses the client and is disabled without one.
func (c *Container) initRedis(ctx context.Context) error {
	switch strings.ToLower(c.Cfg.DenylistStore) {
	case "memory":
		c.Logger.Warn("DENYLIST_STORE=memory: revoked tokens are forgotten on restart")
		c.Denylist = memory.NewDenylist()
	case "redis", "":
		rdb, err := helpers.NewRedisClient(ctx, c.Cfg.RedisAddr, c.Cfg.RedisPassword, c.Cfg.RedisDB)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		c.Redis = rdb
		c.closers = append(c.closers, func() { _ = rdb.Close() })
		c.Denylist = redisstore.NewDenylist(rdb)
	default:
		return fmt.Errorf("unknown DENYLIST_STORE %q", c.Cfg.DenylistStore)
	}
	return nil
}

func (c *Container) initAudit(ctx context.Context) {
	addrs := c.Cfg.ESAddrs()
	if !c.Cfg.AuditEnabled || len(addrs) == 0 {
		return
	}
	es, err := helpers.NewESClient(addrs, c.Cfg.ElasticsearchUser, c.Cfg.ElasticsearchPass)
	if err != nil {
		c.Logger.WithError(err).Warn("elasticsearch unavailable; audit trail disabled")
		return
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := helpers.PingES(pingCtx, es); err != nil {
		c.Logger.WithError(err).Warn("elasticsearch not reachable at startup; audit events may be dropped")
	}
	c.ES = es
	c.Audit = esinfra.NewAuditSink(es, c.Cfg.ESAuditIndex, c.Logger)
	c.closers = append(c.closers, c.Audit.Close)
}

// initNotifier picks the delivery channel: the RabbitMQ queue when
// configured, else Mailgun directly, else log only.
func (c *Container) initNotifier() error {
	var d mailer.Dispatcher
	switch {
	case !c.Cfg.MailSendEnabled:
		d = mailer.LogDispatcher{Logger: c.Logger}
	case c.Cfg.RabbitMQURL != "":
		pub, err := helpers.NewRabbitPublisher(c.Cfg.RabbitMQURL, c.Cfg.RabbitMQEmailQueue)
		if err != nil {
			return fmt.Errorf("connect rabbitmq: %w", err)
		}
		c.Rabbit = pub
		c.closers = append(c.closers, pub.Close)
		d = mailer.QueueDispatcher{Pub: pub}
	case c.Cfg.MailgunConfigured():
		d = mailer.DirectDispatcher{Sender: mailer.NewMailgun(c.Cfg.MailgunDomain, c.Cfg.MailgunAPIKey, c.Cfg.MailgunSender)}
	default:
		c.Logger.Warn("no mail transport configured; emails are logged only")
		d = mailer.LogDispatcher{Logger: c.Logger}
	}
	c.Notifier = mailer.NewNotifier(c.Cfg, d)
	return nil
}

// Close releases connections in reverse order of creation.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}
