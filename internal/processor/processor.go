package processor

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/jdwit/s3-jpeg-transcoder/internal/config"
	"github.com/jdwit/s3-jpeg-transcoder/internal/storage"
	"github.com/jdwit/s3-jpeg-transcoder/internal/targets"
	"github.com/jdwit/s3-jpeg-transcoder/internal/transcoder"
	"github.com/jdwit/s3-jpeg-transcoder/internal/types"
	"github.com/rs/zerolog/log"
)

type ObjectStore interface {
	Fetch(ctx context.Context, obj types.S3ObjectInfo) ([]byte, error)
	Store(ctx context.Context, bucket string, artifact types.Artifact) error
	List(ctx context.Context, bucket, prefix string) ([]types.S3ObjectInfo, error)
}

// Transcoder turns newly created source objects into JPEGs in the destination bucket.
type Transcoder struct {
	store   ObjectStore
	config  config.Config
	targets []targets.Target
}

func NewTranscoder(sess *session.Session, cfg config.Config) *Transcoder {
	return &Transcoder{
		store:  storage.NewObjectStore(sess, cfg.Parity()),
		config: cfg,
		targets: targets.GetTargets(cfg.AuditTargets, targets.LogConfig{
			LogGroupName:  cfg.CloudWatchLogGroup,
			LogStreamName: cfg.CloudWatchLogStream,
		}, sess),
	}
}

// Process fetches obj, transcodes it and stores the result under the same
// key in the destination bucket. Failures are returned without cleanup: in
// parity mode a failed put can leave the earlier stream upload in place.
func (tc *Transcoder) Process(ctx context.Context, obj types.S3ObjectInfo) (types.Artifact, error) {
	logger := log.With().Str("bucket", obj.Bucket).Str("key", obj.Key).Logger()
	logger.Info().Msg("transcoding object")

	start := time.Now()
	artifact, err := tc.safeProcess(ctx, obj)
	if err != nil {
		logger.Error().Err(err).Stringer("kind", types.KindOf(err)).Msg("transcoding failed")
		return types.Artifact{}, fmt.Errorf("s3://%s/%s: %w", obj.Bucket, obj.Key, err)
	}

	logger.Info().
		Str("dest_bucket", tc.config.DestBucket).
		Int("width", artifact.Width).
		Int("height", artifact.Height).
		Int("bytes", len(artifact.Body)).
		Dur("elapsed", time.Since(start)).
		Msg("stored transcoded object")

	return artifact, nil
}

// safeProcess turns a panic in the codec or storage layer into an error so
// that it is logged and returned like any other failure.
func (tc *Transcoder) safeProcess(ctx context.Context, obj types.S3ObjectInfo) (artifact types.Artifact, err error) {
	defer func() {
		if r := recover(); r != nil {
			artifact = types.Artifact{}
			err = types.NewError(types.KindUnknown, "panic while transcoding", fmt.Errorf("%v", r))
		}
	}()
	return tc.process(ctx, obj)
}

func (tc *Transcoder) process(ctx context.Context, obj types.S3ObjectInfo) (types.Artifact, error) {
	if tc.config.DestBucket == "" {
		return types.Artifact{}, types.NewError(types.KindConfig, "invalid configuration",
			fmt.Errorf("destination bucket is not set"))
	}

	data, err := tc.store.Fetch(ctx, obj)
	if err != nil {
		return types.Artifact{}, err
	}

	artifact, err := transcoder.Transcode(obj.Key, data, tc.config.JPEGQuality)
	if err != nil {
		return types.Artifact{}, err
	}

	if err := tc.store.Store(ctx, tc.config.DestBucket, artifact); err != nil {
		return types.Artifact{}, err
	}

	return artifact, nil
}

func (tc *Transcoder) auditEntry(obj types.S3ObjectInfo, artifact types.Artifact) types.AuditEntry {
	return types.AuditEntry{
		Timestamp: time.Now().UTC(),
		Data: map[string]string{
			"source_bucket": obj.Bucket,
			"dest_bucket":   tc.config.DestBucket,
			"key":           artifact.Key,
			"content_type":  artifact.ContentType,
			"width":         strconv.Itoa(artifact.Width),
			"height":        strconv.Itoa(artifact.Height),
			"bytes":         strconv.Itoa(len(artifact.Body)),
		},
	}
}
