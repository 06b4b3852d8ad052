package config

import "time"

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`

	// DatabasePath is the SQLite file backing rooms, memberships and messages.
	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`

	// RedisAddr enables the redis pub/sub broker for cross-instance delivery.
	// When empty, an in-process broker is used (single-node deployments).
	RedisAddr string `mapstructure:"redis_addr" yaml:"redis_addr"`

	JWTSecret   string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string `mapstructure:"jwt_audience" yaml:"jwt_audience"`

	// Media upload settings. Cloudinary is used when all three credentials are
	// set; otherwise blobs land in UploadDir and are served from UploadBaseURL.
	UploadMaxBytes      int64  `mapstructure:"upload_max_bytes" yaml:"upload_max_bytes"`
	UploadDir           string `mapstructure:"upload_dir" yaml:"upload_dir"`
	UploadBaseURL       string `mapstructure:"upload_base_url" yaml:"upload_base_url"`
	CloudinaryCloudName string `mapstructure:"cloudinary_cloud_name" yaml:"cloudinary_cloud_name"`
	CloudinaryAPIKey    string `mapstructure:"cloudinary_api_key" yaml:"cloudinary_api_key"`
	CloudinaryAPISecret string `mapstructure:"cloudinary_api_secret" yaml:"cloudinary_api_secret"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		DatabasePath:      "tripchat.db",
		JWTIssuer:         "tripline",
		JWTAudience:       "tripline-chat",
		UploadMaxBytes:    25 << 20,
		UploadDir:         "uploads",
		UploadBaseURL:     "http://localhost:8080/media",
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.DatabasePath != "" {
		c.DatabasePath = other.DatabasePath
	}
	if other.RedisAddr != "" {
		c.RedisAddr = other.RedisAddr
	}
	if other.JWTSecret != "" {
		c.JWTSecret = other.JWTSecret
	}
	if other.JWTIssuer != "" {
		c.JWTIssuer = other.JWTIssuer
	}
	if other.JWTAudience != "" {
		c.JWTAudience = other.JWTAudience
	}
	if other.UploadMaxBytes != 0 {
		c.UploadMaxBytes = other.UploadMaxBytes
	}
	if other.UploadDir != "" {
		c.UploadDir = other.UploadDir
	}
	if other.UploadBaseURL != "" {
		c.UploadBaseURL = other.UploadBaseURL
	}
	if other.CloudinaryCloudName != "" {
		c.CloudinaryCloudName = other.CloudinaryCloudName
	}
	if other.CloudinaryAPIKey != "" {
		c.CloudinaryAPIKey = other.CloudinaryAPIKey
	}
	if other.CloudinaryAPISecret != "" {
		c.CloudinaryAPISecret = other.CloudinaryAPISecret
	}
}

// UseCloudinary reports whether blob storage should go through Cloudinary.
func (c *Config) UseCloudinary() bool {
	return c.CloudinaryCloudName != "" && c.CloudinaryAPIKey != "" && c.CloudinaryAPISecret != ""
}
