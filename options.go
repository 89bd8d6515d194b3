package lectern

import (
	"time"

	"go.uber.org/zap"
)

// Option configures the Client.
type Option func(*clientConfig)

type clientConfig struct {
	driver   string // "valkey" or "redis"
	addrs    []string
	password string

	userID   string
	deviceID string

	docRoomID string
	pdfPath   string

	pollInterval time.Duration
	logger       *zap.Logger
}

// WithValkey configures the client to connect to a Valkey instance.
func WithValkey(addr, password string) Option {
	return func(c *clientConfig) {
		c.driver = "valkey"
		c.addrs = []string{addr}
		c.password = password
	}
}

// WithRedis configures the client to connect to a Redis instance.
func WithRedis(addr, password string) Option {
	return func(c *clientConfig) {
		c.driver = "redis"
		c.addrs = []string{addr}
		c.password = password
	}
}

// WithUser sets the identity the engine acts as. The device ID distinguishes
// this instance in last-viewed markers; it defaults to the user ID.
func WithUser(userID, deviceID string) Option {
	return func(c *clientConfig) {
		c.userID = userID
		c.deviceID = deviceID
	}
}

// WithDocumentRoom sets the document room holding the annotation state.
func WithDocumentRoom(roomID string) Option {
	return func(c *clientConfig) {
		c.docRoomID = roomID
	}
}

// WithPDF sets the document file text is extracted from. Without it, search
// stays in the indexing state.
func WithPDF(path string) Option {
	return func(c *clientConfig) {
		c.pdfPath = path
	}
}

// WithPollInterval overrides the reconciler's polling backstop interval.
func WithPollInterval(d time.Duration) Option {
	return func(c *clientConfig) {
		c.pollInterval = d
	}
}

// WithLogger enables structured logging. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *clientConfig) {
		c.logger = l
	}
}
