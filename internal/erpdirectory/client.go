// Package erpdirectory provides read-only lookups of ERP reference names
// (objects, counterparties, contracts, products) from the ERP SQL Server
// database. Overlays cache these names as labels; the directory refreshes them.
package erpdirectory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "github.com/microsoft/go-mssqldb" // MS SQL Server driver
	"github.com/sethvargo/go-retry"
	"github.com/stroyteh/kanban-service/internal/config"
	"go.uber.org/zap"
)

const (
	defaultConnectAttempts    = 3
	defaultInitialBackoff     = 1 * time.Second
	defaultHealthCheckTimeout = 5 * time.Second
)

// Kind names an ERP reference table
type Kind string

const (
	KindObject       Kind = "object"
	KindCounterparty Kind = "counterparty"
	KindContract     Kind = "contract"
	KindProduct      Kind = "product"
)

// DefaultTables maps each kind to the ERP view holding (id, name)
var DefaultTables = map[Kind]string{
	KindObject:       "dbo.erp_objects",
	KindCounterparty: "dbo.erp_counterparties",
	KindContract:     "dbo.erp_contracts",
	KindProduct:      "dbo.erp_products",
}

// Client looks up names by id. A nil *Client is a disabled directory.
type Client struct {
	db           *sql.DB
	tables       map[Kind]string
	logger       *zap.Logger
	queryTimeout time.Duration
}

// HealthStatus represents the health check result for the directory connection
type HealthStatus struct {
	Status    string `json:"status"`
	LatencyMs int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
	Open      int    `json:"open_connections"`
	InUse     int    `json:"in_use"`
}

// NewClient connects to the ERP database. It returns nil, nil when the
// directory is disabled or has no credentials.
func NewClient(ctx context.Context, cfg *config.ERPDirectoryConfig, logger *zap.Logger) (*Client, error) {
	if cfg == nil || !cfg.Enabled {
		logger.Info("ERP directory disabled")
		return nil, nil
	}
	if cfg.URL == "" || cfg.User == "" || cfg.Password == "" {
		logger.Warn("ERP directory enabled but missing credentials, skipping connection",
			zap.Bool("url_present", cfg.URL != ""),
			zap.Bool("user_present", cfg.User != ""),
			zap.Bool("password_present", cfg.Password != ""),
		)
		return nil, nil
	}

	connStr := buildConnectionString(cfg)

	var db *sql.DB
	backoff := retry.WithMaxRetries(defaultConnectAttempts-1, retry.NewExponential(defaultInitialBackoff))
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		conn, err := sql.Open("sqlserver", connStr)
		if err != nil {
			return err
		}
		conn.SetMaxOpenConns(cfg.MaxOpenConns)
		conn.SetMaxIdleConns(cfg.MaxIdleConns)
		conn.SetConnMaxLifetime(cfg.ConnMaxLifetimeDuration())

		pingCtx, cancel := context.WithTimeout(ctx, defaultHealthCheckTimeout)
		defer cancel()
		if err := conn.PingContext(pingCtx); err != nil {
			_ = conn.Close()
			logger.Warn("ERP directory ping failed", zap.Error(err), zap.Int("attempt", attempt))
			return retry.RetryableError(err)
		}
		db = conn
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ERP directory after %d attempts: %w", attempt, err)
	}

	logger.Info("ERP directory connection established", zap.Int("attempts_taken", attempt))
	return NewClientFromDB(db, nil, cfg.QueryTimeoutDuration(), logger), nil
}

// NewClientFromDB wraps an open database. A nil tables map uses DefaultTables.
func NewClientFromDB(db *sql.DB, tables map[Kind]string, queryTimeout time.Duration, logger *zap.Logger) *Client {
	if tables == nil {
		tables = DefaultTables
	}
	if queryTimeout <= 0 {
		queryTimeout = 10 * time.Second
	}
	return &Client{db: db, tables: tables, logger: logger, queryTimeout: queryTimeout}
}

// buildConnectionString turns host:port/database into a sqlserver:// URL
func buildConnectionString(cfg *config.ERPDirectoryConfig) string {
	hostPort, database, _ := strings.Cut(cfg.URL, "/")
	host, port, ok := strings.Cut(hostPort, ":")
	if !ok {
		port = "1433"
	}

	query := url.Values{}
	query.Add("encrypt", "true")
	query.Add("TrustServerCertificate", "false")
	query.Add("connection timeout", "30")
	query.Add("app name", "kanban-service")
	if database != "" {
		query.Add("database", database)
	}

	u := &url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     fmt.Sprintf("%s:%s", host, port),
		RawQuery: query.Encode(),
	}
	return u.String()
}

// Enabled reports whether lookups can be made
func (c *Client) Enabled() bool {
	return c != nil && c.db != nil
}

// Lookup returns the name of an ERP record. found is false when the id is unknown.
func (c *Client) Lookup(ctx context.Context, kind Kind, id int64) (name string, found bool, err error) {
	if !c.Enabled() {
		return "", false, errors.New("ERP directory not configured")
	}
	table, ok := c.tables[kind]
	if !ok {
		return "", false, fmt.Errorf("unknown directory kind %q", kind)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.queryTimeout)
		defer cancel()
	}

	start := time.Now()
	query := fmt.Sprintf("SELECT name FROM %s WHERE id = @id", table)
	err = c.db.QueryRowContext(ctx, query, sql.Named("id", id)).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		c.logger.Error("ERP directory lookup failed",
			zap.String("kind", string(kind)),
			zap.Int64("id", id),
			zap.Error(err),
		)
		return "", false, fmt.Errorf("directory lookup failed: %w", err)
	}

	c.logger.Debug("ERP directory lookup",
		zap.String("kind", string(kind)),
		zap.Int64("id", id),
		zap.Duration("duration", time.Since(start)),
	)
	return strings.TrimSpace(name), true, nil
}

// HealthCheck pings the directory database
func (c *Client) HealthCheck(ctx context.Context) *HealthStatus {
	if !c.Enabled() {
		return &HealthStatus{Status: "disabled"}
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultHealthCheckTimeout)
		defer cancel()
	}

	start := time.Now()
	err := c.db.PingContext(ctx)
	stats := c.db.Stats()
	status := &HealthStatus{
		Status:    "healthy",
		LatencyMs: time.Since(start).Milliseconds(),
		Open:      stats.OpenConnections,
		InUse:     stats.InUse,
	}
	if err != nil {
		status.Status = "unhealthy"
		status.Error = err.Error()
	}
	return status
}

// Close closes the connection pool
func (c *Client) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.db.Close()
}
