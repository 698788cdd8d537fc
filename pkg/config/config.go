package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App           AppConfig
	Service       ServiceConfig
	DB            DBConfig
	Redis         RedisConfig
	JWT           JWTConfig
	Admin         AdminConfig
	AuthRateLimit AuthRateLimitConfig
	Trade         TradeConfig
	FeatureFlags  FeatureFlagsConfig
	Eventing      EventingConfig
	GCP           GCPConfig
	PubSub        PubSubConfig
	Square        SquareConfig
	Outbox        OutboxConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"SAFETRADE_APP_ENV" required:"true"`
	Port         string `envconfig:"SAFETRADE_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"SAFETRADE_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"SAFETRADE_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"SAFETRADE_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"SAFETRADE_DB_DSN"`
	Driver string `envconfig:"SAFETRADE_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"SAFETRADE_DB_HOST"`
	LegacyPort     int    `envconfig:"SAFETRADE_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"SAFETRADE_DB_USER"`
	LegacyPassword string `envconfig:"SAFETRADE_DB_PASSWORD"`
	LegacyName     string `envconfig:"SAFETRADE_DB_NAME"`
	LegacySSLMode  string `envconfig:"SAFETRADE_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"SAFETRADE_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"SAFETRADE_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"SAFETRADE_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"SAFETRADE_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"SAFETRADE_REDIS_URL" required:"true"`
	Address      string        `envconfig:"SAFETRADE_REDIS_ADDR"`
	Password     string        `envconfig:"SAFETRADE_REDIS_PASSWORD"`
	DB           int           `envconfig:"SAFETRADE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SAFETRADE_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"SAFETRADE_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"SAFETRADE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SAFETRADE_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"SAFETRADE_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"SAFETRADE_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"SAFETRADE_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"SAFETRADE_JWT_EXPIRATION_MINUTES" required:"true"`
}

// AdminConfig guards the dispute-resolution and sweep endpoints. The
// capability secret is stored as an argon2id digest, never plaintext.
type AdminConfig struct {
	CapabilityHash   string `envconfig:"SAFETRADE_ADMIN_CAPABILITY_HASH"`
	ArgonMemoryKB    int    `envconfig:"SAFETRADE_ARGON_MEMORY_KB" default:"65536"`
	ArgonTime        int    `envconfig:"SAFETRADE_ARGON_TIME" default:"3"`
	ArgonParallelism int    `envconfig:"SAFETRADE_ARGON_PARALLELISM" default:"2"`
	ArgonSaltLen     int    `envconfig:"SAFETRADE_ARGON_SALT_LEN" default:"16"`
	ArgonKeyLen      int    `envconfig:"SAFETRADE_ARGON_KEY_LEN" default:"32"`
}

// AuthRateLimitConfig throttles credential-guessing traffic on the
// login and register endpoints.
type AuthRateLimitConfig struct {
	LoginWindow        time.Duration `envconfig:"SAFETRADE_AUTH_LOGIN_WINDOW" default:"1m"`
	LoginIPLimit       int           `envconfig:"SAFETRADE_AUTH_LOGIN_IP_LIMIT" default:"20"`
	LoginEmailLimit    int           `envconfig:"SAFETRADE_AUTH_LOGIN_EMAIL_LIMIT" default:"5"`
	RegisterWindow     time.Duration `envconfig:"SAFETRADE_AUTH_REGISTER_WINDOW" default:"1h"`
	RegisterIPLimit    int           `envconfig:"SAFETRADE_AUTH_REGISTER_IP_LIMIT" default:"10"`
	RegisterEmailLimit int           `envconfig:"SAFETRADE_AUTH_REGISTER_EMAIL_LIMIT" default:"3"`
}

// TradeConfig carries the lifecycle deadlines and the escrow call budget.
type TradeConfig struct {
	StaleTTL             time.Duration `envconfig:"SAFETRADE_TRADE_STALE_TTL" default:"24h"`
	DisputeWindow        time.Duration `envconfig:"SAFETRADE_TRADE_DISPUTE_WINDOW" default:"48h"`
	EscrowCallTimeout    time.Duration `envconfig:"SAFETRADE_TRADE_ESCROW_CALL_TIMEOUT" default:"10s"`
	NotificationDedupTTL time.Duration `envconfig:"SAFETRADE_NOTIFICATION_DEDUP_TTL" default:"2s"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"SAFETRADE_AUTO_MIGRATE" default:"false"`
	EscrowInMem bool `envconfig:"SAFETRADE_FEATURE_ESCROW_INMEM" default:"false"`
}

type EventingConfig struct {
	OutboxIdempotencyTTL time.Duration `envconfig:"SAFETRADE_EVENTING_IDEMPOTENCY_TTL" default:"720h"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"SAFETRADE_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"SAFETRADE_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"SAFETRADE_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	TradesTopic              string `envconfig:"SAFETRADE_PUBSUB_TRADES_TOPIC" required:"true"`
	TradesSubscription       string `envconfig:"SAFETRADE_PUBSUB_TRADES_SUBSCRIPTION" required:"true"`
	NotificationTopic        string `envconfig:"SAFETRADE_PUBSUB_NOTIFICATION_TOPIC" default:"st-notification-events"`
	NotificationSubscription string `envconfig:"SAFETRADE_PUBSUB_NOTIFICATION_SUBSCRIPTION" required:"true"`
	WalletTopic              string `envconfig:"SAFETRADE_PUBSUB_WALLET_TOPIC" required:"true"`
	WalletSubscription       string `envconfig:"SAFETRADE_PUBSUB_WALLET_SUBSCRIPTION" required:"true"`
}

type SquareConfig struct {
	AccessToken string `envconfig:"SAFETRADE_SQUARE_ACCESS_TOKEN"`
	LocationID  string `envconfig:"SAFETRADE_SQUARE_LOCATION_ID"`
	Env         string `envconfig:"SAFETRADE_SQUARE_ENV" default:"sandbox"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"SAFETRADE_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"SAFETRADE_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"SAFETRADE_OUTBOX_MAX_ATTEMPTS" default:"10"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
