package config

import "time"

// Default constants for application configuration
const (
	DefaultLogLevel      = "info"
	DefaultJSONLog       = false
	DefaultUserAgent     = ""
	DefaultHTTPTimeout   = 30 * time.Second
	DefaultMaxIterations = 50
	DefaultSettleDelay   = 3 * time.Second
	DefaultRateLimitRPS  = 2.0
	DefaultRateBurst     = 4
	DefaultImageWorkers  = 4
	DefaultOutputDir     = "comments"
)
