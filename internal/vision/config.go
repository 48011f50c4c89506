package vision

import (
	"time"

	"go.uber.org/zap"
)

// Config holds vision client configuration.
type Config struct {
	// Connection
	BaseURL string // service base URL; requests go to BaseURL + "/detect"
	APIKey  string // sent as a bearer token when set

	// Upload
	MaxUploadSide int // longest side of the uploaded JPEG
	JPEGQuality   int

	// Timeout bounds a single request, including the upload.
	Timeout time.Duration

	Logger *zap.Logger
}

// Option is a functional option for configuring the client.
type Option func(*Config)

// WithBaseURL sets the service base URL.
func WithBaseURL(url string) Option {
	return func(c *Config) { c.BaseURL = url }
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(c *Config) { c.APIKey = key }
}

// WithMaxUploadSide limits the uploaded image's longest side.
func WithMaxUploadSide(px int) Option {
	return func(c *Config) { c.MaxUploadSide = px }
}

// WithJPEGQuality sets the upload JPEG quality (1-100).
func WithJPEGQuality(q int) Option {
	return func(c *Config) { c.JPEGQuality = q }
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// DefaultConfig returns the defaults. BaseURL has no default.
func DefaultConfig() *Config {
	return &Config{
		MaxUploadSide: 1024,
		JPEGQuality:   85,
		Timeout:       8 * time.Second,
		Logger:        zap.NewNop(),
	}
}

// Apply applies functional options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return ErrNoBaseURL
	}
	return nil
}
