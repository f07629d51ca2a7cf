package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/stroyteh/kanban-service/internal/secrets"
	"go.uber.org/zap"
)

// Config holds all application configuration
type Config struct {
	App          AppConfig
	Database     DatabaseConfig
	Kanban       KanbanConfig
	ERP          ERPConfig
	Worker       WorkerConfig
	Outbox       OutboxConfig
	Jobs         JobsConfig
	Storage      StorageConfig
	Secrets      SecretsConfig
	ERPDirectory ERPDirectoryConfig
	Logging      LoggingConfig
	Server       ServerConfig
	CORS         CORSConfig
	Security     SecurityConfig
	RateLimit    RateLimitConfig
}

type AppConfig struct {
	Name        string
	Environment string
	Port        int
	// Debug mirrors the DEBUG environment key and forces debug logging
	Debug bool
}

type DatabaseConfig struct {
	Host            string
	Port            int
	Name            string
	User            string
	Password        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int
	AutoMigrate     bool
}

// KanbanConfig holds the inbound authentication settings
type KanbanConfig struct {
	// ServiceToken is compared against X-Service-Token (KANBAN_SERVICE_TOKEN)
	ServiceToken string
	// SecretKey signs access tokens (SECRET_KEY)
	SecretKey string
	// TokenTTL is the access token lifetime in seconds
	TokenTTL int
	// AllowedHosts is the Host header allowlist (KANBAN_ALLOWED_HOSTS). Empty allows all.
	AllowedHosts []string
	// BasePath is the URL prefix every route is mounted under
	BasePath string
}

// ERPConfig holds the outbound notifier settings
type ERPConfig struct {
	// BaseURL is ERP_API_BASE_URL. Empty disables notifications.
	BaseURL string
	// ServiceToken is ERP_SERVICE_TOKEN. Empty disables notifications.
	ServiceToken string
	// Timeout is the per-request timeout in seconds
	Timeout int
	// MaxAttempts bounds delivery attempts of a single notification
	MaxAttempts int
	// RetryBaseMs is the first backoff step in milliseconds
	RetryBaseMs int
}

// WorkerConfig controls the background task queue and worker pool
type WorkerConfig struct {
	PoolSize      int
	QueueBackend  string // "memory" or "redis"
	QueueBuffer   int
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisKey      string
	TaskAttempts  int
	TaskBackoffMs int
}

// OutboxConfig controls the outbox dispatcher
type OutboxConfig struct {
	PollIntervalMs int
	BatchSize      int
	// MaxDispatchAttempts caps how many times a failing event is redelivered
	// before its outbox row is marked failed
	MaxDispatchAttempts int
}

// JobsConfig holds cron expressions for scheduled jobs (seconds field included)
type JobsConfig struct {
	Enabled         bool
	OverdueCron     string
	OutboxSweepCron string
	Timezone        string
	TimeoutSeconds  int
}

type StorageConfig struct {
	Mode                  string
	LocalBasePath         string
	CloudConnectionString string
	CloudContainer        string
	MaxUploadSizeMB       int64
}

type SecretsConfig struct {
	// Source determines where secrets are loaded from: "environment", "vault", or "auto"
	Source       string
	KeyVaultName string
	CacheEnabled bool
	CacheTTL     int // seconds
}

// ERPDirectoryConfig holds the optional read-only MSSQL connection to the ERP
// reference tables used to refresh overlay labels.
type ERPDirectoryConfig struct {
	Enabled bool
	// URL is host:port/database
	URL             string
	User            string
	Password        string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int
	QueryTimeout    int
}

type LoggingConfig struct {
	Level  string
	Format string
}

type ServerConfig struct {
	ReadTimeout    int
	WriteTimeout   int
	RequestTimeout int
	EnableSwagger  bool
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           int
}

// SecurityConfig holds security header configuration
type SecurityConfig struct {
	EnableHSTS            bool
	HSTSMaxAge            int
	HSTSIncludeSubdomains bool
	ContentSecurityPolicy string
	FrameOptions          string
	ContentTypeNosniff    bool
	ReferrerPolicy        string
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerMinute int
	// WritesPerMinute caps POST, PATCH and DELETE per caller on top of RequestsPerMinute
	WritesPerMinute int
	WhitelistIPs    []string
	// WhitelistPaths bypass rate limiting; a trailing /* matches a prefix
	WhitelistPaths []string
}

// ConnectionString builds PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

// ConnMaxLifetimeDuration returns connection max lifetime as duration
func (d *DatabaseConfig) ConnMaxLifetimeDuration() time.Duration {
	return time.Duration(d.ConnMaxLifetime) * time.Second
}

// ReadTimeoutDuration returns read timeout as duration
func (s *ServerConfig) ReadTimeoutDuration() time.Duration {
	return time.Duration(s.ReadTimeout) * time.Second
}

// WriteTimeoutDuration returns write timeout as duration
func (s *ServerConfig) WriteTimeoutDuration() time.Duration {
	return time.Duration(s.WriteTimeout) * time.Second
}

// RequestTimeoutDuration returns request timeout as duration
func (s *ServerConfig) RequestTimeoutDuration() time.Duration {
	return time.Duration(s.RequestTimeout) * time.Second
}

// TokenTTLDuration returns the access token lifetime
func (k *KanbanConfig) TokenTTLDuration() time.Duration {
	return time.Duration(k.TokenTTL) * time.Second
}

// TimeoutDuration returns the notifier request timeout
func (e *ERPConfig) TimeoutDuration() time.Duration {
	return time.Duration(e.Timeout) * time.Second
}

// RetryBaseDuration returns the first notifier backoff step
func (e *ERPConfig) RetryBaseDuration() time.Duration {
	return time.Duration(e.RetryBaseMs) * time.Millisecond
}

// Enabled reports whether outbound notifications are configured
func (e *ERPConfig) Enabled() bool {
	return e.BaseURL != "" && e.ServiceToken != ""
}

// TaskBackoffDuration returns the first task retry delay
func (w *WorkerConfig) TaskBackoffDuration() time.Duration {
	return time.Duration(w.TaskBackoffMs) * time.Millisecond
}

// PollIntervalDuration returns the outbox poll interval
func (o *OutboxConfig) PollIntervalDuration() time.Duration {
	return time.Duration(o.PollIntervalMs) * time.Millisecond
}

// TimeoutDuration returns the per-run job timeout
func (j *JobsConfig) TimeoutDuration() time.Duration {
	return time.Duration(j.TimeoutSeconds) * time.Second
}

// Location resolves the timezone used to decide what "today" is
func (j *JobsConfig) Location() *time.Location {
	if j.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(j.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ConnMaxLifetimeDuration returns connection max lifetime as duration
func (d *ERPDirectoryConfig) ConnMaxLifetimeDuration() time.Duration {
	return time.Duration(d.ConnMaxLifetime) * time.Second
}

// QueryTimeoutDuration returns query timeout as duration
func (d *ERPDirectoryConfig) QueryTimeoutDuration() time.Duration {
	return time.Duration(d.QueryTimeout) * time.Second
}

// Load loads configuration from file and environment variables.
// Use LoadWithSecrets for Key Vault resolution.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Environment variables override config file
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyServiceKeys(v, &cfg)

	return &cfg, nil
}

// applyServiceKeys reads the flat environment keys shared with the ERP deployment
func applyServiceKeys(v *viper.Viper, cfg *Config) {
	if s := v.GetString("KANBAN_SERVICE_TOKEN"); s != "" {
		cfg.Kanban.ServiceToken = s
	}
	if s := v.GetString("SECRET_KEY"); s != "" {
		cfg.Kanban.SecretKey = s
	}
	if v.IsSet("KANBAN_ALLOWED_HOSTS") {
		cfg.Kanban.AllowedHosts = SplitCSV(v.GetString("KANBAN_ALLOWED_HOSTS"))
	}
	if s := v.GetString("ERP_API_BASE_URL"); s != "" {
		cfg.ERP.BaseURL = strings.TrimRight(s, "/")
	}
	if s := v.GetString("ERP_SERVICE_TOKEN"); s != "" {
		cfg.ERP.ServiceToken = s
	}
	if v.IsSet("DEBUG") {
		cfg.App.Debug = v.GetBool("DEBUG")
	}
	if cfg.App.Debug {
		cfg.Logging.Level = "debug"
	}
	if s := v.GetString("REDIS_URL"); s != "" {
		cfg.Worker.RedisAddr = s
	}
	if cfg.Secrets.KeyVaultName == "" {
		cfg.Secrets.KeyVaultName = v.GetString("AZURE_KEY_VAULT_NAME")
	}
	if v.GetBool("ERP_DIRECTORY_ENABLED") {
		cfg.ERPDirectory.Enabled = true
	}
}

// SplitCSV splits a comma separated list, dropping blanks
func SplitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// LoadWithSecrets loads configuration and resolves secrets from Azure Key Vault
// when USE_AZURE_KEY_VAULT=true and the environment is staging or production.
// Environment variables always override vault values.
func LoadWithSecrets(ctx context.Context, logger *zap.Logger) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}

	useKeyVault := strings.ToLower(os.Getenv("USE_AZURE_KEY_VAULT")) == "true"
	isValidEnv := cfg.App.Environment == "staging" || cfg.App.Environment == "production"

	if !useKeyVault {
		logger.Info("USE_AZURE_KEY_VAULT not enabled, using environment variables for secrets",
			zap.String("environment", cfg.App.Environment),
		)
		return cfg, nil
	}

	if !isValidEnv {
		logger.Warn("USE_AZURE_KEY_VAULT is enabled but environment is not staging or production, using environment variables",
			zap.String("environment", cfg.App.Environment),
		)
		return cfg, nil
	}

	if cfg.Secrets.KeyVaultName == "" {
		return nil, fmt.Errorf("AZURE_KEY_VAULT_NAME is required when USE_AZURE_KEY_VAULT=true")
	}

	provider, err := secrets.NewProvider(&secrets.ProviderConfig{
		Source:       secrets.SourceVault,
		VaultName:    cfg.Secrets.KeyVaultName,
		Environment:  cfg.App.Environment,
		CacheEnabled: cfg.Secrets.CacheEnabled,
		CacheTTL:     time.Duration(cfg.Secrets.CacheTTL) * time.Second,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize secrets provider: %w", err)
	}

	if err := ResolveSecrets(ctx, cfg, provider); err != nil {
		return nil, err
	}

	logger.Info("Secrets loaded from vault successfully",
		zap.String("key_vault_name", cfg.Secrets.KeyVaultName),
	)
	return cfg, nil
}

// SecretSource is the subset of secrets.Provider used to resolve configuration
type SecretSource interface {
	GetSecretOrEnv(ctx context.Context, secretName, envName string) (string, error)
}

// ResolveSecrets overwrites credential fields with values from src.
// Missing optional secrets are ignored; the signing key is required.
func ResolveSecrets(ctx context.Context, cfg *Config, src SecretSource) error {
	set := func(target *string, secretName, envName string) {
		if value, err := src.GetSecretOrEnv(ctx, secretName, envName); err == nil && value != "" {
			*target = value
		}
	}

	set(&cfg.Database.Host, "POSTGRES-MAIN-HOST", "DATABASE_HOST")
	set(&cfg.Database.User, "POSTGRES-MAIN-USER", "DATABASE_USER")
	set(&cfg.Database.Password, "POSTGRES-MAIN-PASSWORD", "DATABASE_PASSWORD")
	set(&cfg.Kanban.ServiceToken, "kanban-service-token", "KANBAN_SERVICE_TOKEN")
	set(&cfg.Kanban.SecretKey, "kanban-secret-key", "SECRET_KEY")
	set(&cfg.ERP.ServiceToken, "erp-service-token", "ERP_SERVICE_TOKEN")
	set(&cfg.Storage.CloudConnectionString, "storage-connection-string", "STORAGE_CLOUDCONNECTIONSTRING")

	if cfg.ERPDirectory.Enabled {
		set(&cfg.ERPDirectory.URL, "ERP-DIRECTORY-URL", "ERPDIRECTORY_URL")
		set(&cfg.ERPDirectory.User, "ERP-DIRECTORY-USERNAME", "ERPDIRECTORY_USER")
		set(&cfg.ERPDirectory.Password, "ERP-DIRECTORY-PASSWORD", "ERPDIRECTORY_PASSWORD")
	}

	if cfg.Kanban.SecretKey == "" {
		return fmt.Errorf("SECRET_KEY could not be resolved from vault or environment")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "Kanban Service")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.debug", false)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "kanban")
	v.SetDefault("database.user", "kanban_user")
	v.SetDefault("database.password", "kanban_password")
	v.SetDefault("database.sslMode", "disable")
	v.SetDefault("database.maxOpenConns", 25)
	v.SetDefault("database.maxIdleConns", 5)
	v.SetDefault("database.connMaxLifetime", 300)
	v.SetDefault("database.autoMigrate", false)

	v.SetDefault("kanban.tokenTTL", 3600)
	v.SetDefault("kanban.basePath", "/kanban-api")
	v.SetDefault("kanban.allowedHosts", []string{})

	v.SetDefault("erp.timeout", 10)
	v.SetDefault("erp.maxAttempts", 3)
	v.SetDefault("erp.retryBaseMs", 200)

	v.SetDefault("worker.poolSize", 4)
	v.SetDefault("worker.queueBackend", "memory")
	v.SetDefault("worker.queueBuffer", 1024)
	v.SetDefault("worker.redisAddr", "localhost:6379")
	v.SetDefault("worker.redisDB", 0)
	v.SetDefault("worker.redisKey", "kanban:events")
	v.SetDefault("worker.taskAttempts", 3)
	v.SetDefault("worker.taskBackoffMs", 500)

	v.SetDefault("outbox.pollIntervalMs", 2000)
	v.SetDefault("outbox.batchSize", 100)
	v.SetDefault("outbox.maxDispatchAttempts", 5)

	v.SetDefault("jobs.enabled", true)
	v.SetDefault("jobs.overdueCron", "0 5 0 * * *")
	v.SetDefault("jobs.outboxSweepCron", "*/30 * * * * *")
	v.SetDefault("jobs.timezone", "Europe/Moscow")
	v.SetDefault("jobs.timeoutSeconds", 300)

	v.SetDefault("secrets.source", "auto")
	v.SetDefault("secrets.cacheEnabled", true)
	v.SetDefault("secrets.cacheTTL", 300)

	v.SetDefault("storage.mode", "local")
	v.SetDefault("storage.localBasePath", "./storage")
	v.SetDefault("storage.cloudContainer", "kanban-attachments")
	v.SetDefault("storage.maxUploadSizeMB", 50)

	v.SetDefault("erpDirectory.enabled", false)
	v.SetDefault("erpDirectory.maxOpenConns", 5)
	v.SetDefault("erpDirectory.maxIdleConns", 1)
	v.SetDefault("erpDirectory.connMaxLifetime", 300)
	v.SetDefault("erpDirectory.queryTimeout", 15)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 30)
	v.SetDefault("server.requestTimeout", 60)
	v.SetDefault("server.enableSwagger", true)

	v.SetDefault("cors.allowedOrigins", []string{})
	v.SetDefault("cors.allowedMethods", []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowedHeaders", []string{"Accept", "Authorization", "Content-Type", "X-Service-Token", "X-Request-ID"})
	v.SetDefault("cors.exposedHeaders", []string{"Location", "X-Request-ID"})
	v.SetDefault("cors.allowCredentials", true)
	v.SetDefault("cors.maxAge", 300)

	v.SetDefault("security.enableHSTS", false)
	v.SetDefault("security.hstsMaxAge", 31536000)
	v.SetDefault("security.hstsIncludeSubdomains", true)
	v.SetDefault("security.contentSecurityPolicy", "default-src 'self'")
	v.SetDefault("security.frameOptions", "DENY")
	v.SetDefault("security.contentTypeNosniff", true)
	v.SetDefault("security.referrerPolicy", "strict-origin-when-cross-origin")

	v.SetDefault("rateLimit.enabled", true)
	v.SetDefault("rateLimit.requestsPerMinute", 300)
	v.SetDefault("rateLimit.writesPerMinute", 120)
	v.SetDefault("rateLimit.whitelistIPs", []string{"127.0.0.1", "::1"})
	v.SetDefault("rateLimit.whitelistPaths", []string{"/kanban-api/health/", "/kanban-api/health/ready/"})
}
