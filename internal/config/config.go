package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/jdwit/s3-jpeg-transcoder/internal/types"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	UploadModeSingle = "single"
	// UploadModeParity streams the object and then puts it again with an
	// explicit content type, producing two writes per artifact.
	UploadModeParity = "parity"
)

const (
	keyDestBucket   = "DEST_BUCKET_NAME"
	keyJPEGQuality  = "JPEG_QUALITY"
	keyUploadMode   = "UPLOAD_MODE"
	keyAuditTargets = "AUDIT_TARGETS"
	keyLogLevel     = "LOG_LEVEL"
	keyAWSEndpoint  = "AWS_ENDPOINT"
	keyLogGroup     = "CLOUDWATCH_LOG_GROUP"
	keyLogStream    = "CLOUDWATCH_LOG_STREAM"
)

type Config struct {
	DestBucket   string
	JPEGQuality  int
	UploadMode   string
	AuditTargets string
	LogLevel     string
	AWSEndpoint  string // set when running against localstack

	// Only used by the cloudwatch audit target.
	CloudWatchLogGroup  string
	CloudWatchLogStream string
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	v := viper.New()
	v.SetDefault(keyJPEGQuality, 85)
	v.SetDefault(keyUploadMode, UploadModeSingle)
	v.SetDefault(keyLogLevel, "info")
	v.AutomaticEnv()

	cfg := Config{
		DestBucket:   v.GetString(keyDestBucket),
		JPEGQuality:  v.GetInt(keyJPEGQuality),
		UploadMode:   v.GetString(keyUploadMode),
		AuditTargets: v.GetString(keyAuditTargets),
		LogLevel:     v.GetString(keyLogLevel),
		AWSEndpoint:  v.GetString(keyAWSEndpoint),

		CloudWatchLogGroup:  v.GetString(keyLogGroup),
		CloudWatchLogStream: v.GetString(keyLogStream),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadDotEnv loads variables from a .env file in the working directory, if any.
// Variables already set in the environment take precedence.
func LoadDotEnv() error {
	err := godotenv.Load()
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (c Config) Validate() error {
	if c.DestBucket == "" {
		return types.NewError(types.KindConfig, "invalid configuration",
			fmt.Errorf("environment variable %s is required", keyDestBucket))
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return types.NewError(types.KindConfig, "invalid configuration",
			fmt.Errorf("%s must be between 1 and 100, got %d", keyJPEGQuality, c.JPEGQuality))
	}
	if c.UploadMode != UploadModeSingle && c.UploadMode != UploadModeParity {
		return types.NewError(types.KindConfig, "invalid configuration",
			fmt.Errorf("unsupported %s: %s", keyUploadMode, c.UploadMode))
	}
	return nil
}

func (c Config) Parity() bool {
	return c.UploadMode == UploadModeParity
}
