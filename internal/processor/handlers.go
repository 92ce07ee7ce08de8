package processor

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/aws/aws-lambda-go/events"
	"github.com/jdwit/s3-jpeg-transcoder/internal/types"
	"github.com/rs/zerolog/log"
)

// concurrency is the max number of objects transcoded at once in cli mode
const concurrency = 10

func (tc *Transcoder) processS3Objects(ctx context.Context, s3Objects []types.S3ObjectInfo) error {
	audit := startAuditor(tc.targets, len(s3Objects))
	defer audit.close()

	errs := make(chan error, len(s3Objects)) // buffered channel for errors
	var wg sync.WaitGroup
	concurrent := make(chan int, concurrency) // buffered channel for concurrency

	for _, s3obj := range s3Objects {
		wg.Add(1)
		concurrent <- 1
		go func(s3obj types.S3ObjectInfo) {
			defer func() {
				wg.Done()
				<-concurrent
			}()
			artifact, err := tc.Process(ctx, s3obj)
			if err != nil {
				errs <- err
				return
			}
			audit.emit(tc.auditEntry(s3obj, artifact))
		}(s3obj)
	}

	wg.Wait()
	close(errs)

	var errorList []error
	for err := range errs {
		errorList = append(errorList, err)
	}

	return errors.Join(errorList...)
}

// HandleLambdaEvent transcodes the object named by the first record of an
// S3 notification. Any further records are ignored.
func (tc *Transcoder) HandleLambdaEvent(ctx context.Context, event events.S3Event) error {
	if len(event.Records) == 0 {
		return fmt.Errorf("event contains no records")
	}
	if extra := len(event.Records) - 1; extra > 0 {
		log.Warn().Int("ignored", extra).Msg("only the first record of the event is processed")
	}

	record := event.Records[0]
	return tc.processS3Objects(ctx, []types.S3ObjectInfo{{
		Bucket: record.S3.Bucket.Name,
		Key:    decodeObjectKey(record.S3.Object.Key),
	}})
}

// HandleS3URL transcodes a single object, or every object under a prefix
// when the URL ends with a slash.
func (tc *Transcoder) HandleS3URL(ctx context.Context, s3URL string) error {
	bucket, key, err := parseS3Url(s3URL)
	if err != nil {
		return fmt.Errorf("failed to parse S3 URL: %w", err)
	}

	if key != "" && !strings.HasSuffix(key, "/") {
		return tc.processS3Objects(ctx, []types.S3ObjectInfo{{Bucket: bucket, Key: key}})
	}

	s3Objects, err := tc.store.List(ctx, bucket, key)
	if err != nil {
		return err
	}
	log.Info().Str("bucket", bucket).Str("prefix", key).Int("objects", len(s3Objects)).Msg("transcoding prefix")

	return tc.processS3Objects(ctx, s3Objects)
}

// decodeObjectKey undoes the form encoding S3 applies to keys in event
// notifications. The raw key is used when it is not valid encoding.
func decodeObjectKey(key string) string {
	decoded, err := url.QueryUnescape(key)
	if err != nil {
		return key
	}
	return decoded
}

func parseS3Url(s3URL string) (bucket string, key string, err error) {
	if !strings.HasPrefix(s3URL, "s3://") {
		return "", "", fmt.Errorf("invalid S3 URL, missing 's3://' prefix")
	}
	trimmedS3URL := strings.TrimPrefix(s3URL, "s3://")
	splitPos := strings.Index(trimmedS3URL, "/")
	if splitPos == -1 {
		return "", "", fmt.Errorf("invalid S3 URL, no '/' found after bucket name")
	}
	bucket = trimmedS3URL[:splitPos]
	key = trimmedS3URL[splitPos+1:]
	return bucket, key, nil
}
