package config

import (
	"testing"
	"time"
)

func TestUpdateFromOverwritesNonZeroFields(t *testing.T) {
	cfg := Default()

	cfg.UpdateFrom(Config{
		Addr:                ":9090",
		ReadHeaderTimeout:   10 * time.Second,
		ShutdownTimeout:     3 * time.Second,
		LogLevel:            "debug",
		DatabasePath:        "other.db",
		RedisAddr:           "localhost:6379",
		JWTSecret:           "s3cret",
		JWTIssuer:           "issuer",
		JWTAudience:         "audience",
		UploadMaxBytes:      1 << 20,
		UploadDir:           "blobs",
		UploadBaseURL:       "https://cdn.example/media",
		CloudinaryCloudName: "cloud",
		CloudinaryAPIKey:    "key",
		CloudinaryAPISecret: "secret",
	})

	want := Config{
		Addr:                ":9090",
		ReadHeaderTimeout:   10 * time.Second,
		ShutdownTimeout:     3 * time.Second,
		LogLevel:            "debug",
		DatabasePath:        "other.db",
		RedisAddr:           "localhost:6379",
		JWTSecret:           "s3cret",
		JWTIssuer:           "issuer",
		JWTAudience:         "audience",
		UploadMaxBytes:      1 << 20,
		UploadDir:           "blobs",
		UploadBaseURL:       "https://cdn.example/media",
		CloudinaryCloudName: "cloud",
		CloudinaryAPIKey:    "key",
		CloudinaryAPISecret: "secret",
	}
	if cfg != want {
		t.Errorf("UpdateFrom left fields behind:\n got %+v\nwant %+v", cfg, want)
	}
}

func TestUpdateFromSkipsZeroValues(t *testing.T) {
	cfg := Default()

	cfg.UpdateFrom(Config{Addr: ":9090"})

	want := Default()
	want.Addr = ":9090"
	if cfg != want {
		t.Errorf("zero-value fields must be kept:\n got %+v\nwant %+v", cfg, want)
	}
}

func TestUseCloudinary(t *testing.T) {
	cfg := Default()
	if cfg.UseCloudinary() {
		t.Error("default config must not use cloudinary")
	}

	cfg.CloudinaryCloudName = "cloud"
	cfg.CloudinaryAPIKey = "key"
	if cfg.UseCloudinary() {
		t.Error("partial credentials must not enable cloudinary")
	}

	cfg.CloudinaryAPISecret = "secret"
	if !cfg.UseCloudinary() {
		t.Error("full credentials must enable cloudinary")
	}
}
