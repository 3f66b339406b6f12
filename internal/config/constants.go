package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerWriteTimeout    = 60 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for health checks
const DBPingTimeout = 5 * time.Second

// Scheduler pass settings
const (
	SchedulerPassTimeout = 2 * time.Minute
	SchedulerBatchSize   = 100

	// A claim older than this is considered abandoned (worker crashed
	// mid-delivery) and the job becomes claimable again.
	SchedulerClaimLease = 5 * time.Minute
)

// Gateway call timeout per delivery attempt
const GatewaySendTimeout = 30 * time.Second
