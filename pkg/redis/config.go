package redis

import "time"

// ClientOption configures Client.
type ClientOption func(*ClientConfig)

// ClientConfig holds Redis configuration.
type ClientConfig struct {
	Host         string
	Port         int
	Password     string
	DB           int
	PoolSize     int
	PoolTimeout  time.Duration
	MinIdleConns int
	Prefix       string
}

// WithHost sets the Redis host.
func WithHost(host string) ClientOption {
	return func(c *ClientConfig) {
		if host != "" {
			c.Host = host
		}
	}
}

// WithPort sets the Redis port.
func WithPort(port int) ClientOption {
	return func(c *ClientConfig) {
		if port > 0 {
			c.Port = port
		}
	}
}

// WithPassword sets the Redis password.
func WithPassword(password string) ClientOption {
	return func(c *ClientConfig) {
		c.Password = password
	}
}

// WithDB sets the Redis database number.
func WithDB(db int) ClientOption {
	return func(c *ClientConfig) {
		c.DB = db
	}
}

// WithPool sets connection pool settings.
func WithPool(poolSize, minIdleConns int, timeout time.Duration) ClientOption {
	return func(c *ClientConfig) {
		if poolSize > 0 {
			c.PoolSize = poolSize
		}
		if minIdleConns > 0 {
			c.MinIdleConns = minIdleConns
		}
		if timeout > 0 {
			c.PoolTimeout = timeout
		}
	}
}

// WithPrefix sets the key namespace prefix.
func WithPrefix(prefix string) ClientOption {
	return func(c *ClientConfig) {
		if prefix != "" {
			c.Prefix = prefix
		}
	}
}
