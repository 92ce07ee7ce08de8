package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/jdwit/s3-jpeg-transcoder/internal/types"
	"github.com/rs/zerolog/log"
)

type S3Api interface {
	GetObjectWithContext(ctx aws.Context, input *s3.GetObjectInput, opts ...request.Option) (*s3.GetObjectOutput, error)
	PutObjectWithContext(ctx aws.Context, input *s3.PutObjectInput, opts ...request.Option) (*s3.PutObjectOutput, error)
	ListObjectsV2PagesWithContext(ctx aws.Context, input *s3.ListObjectsV2Input, fn func(*s3.ListObjectsV2Output, bool) bool, opts ...request.Option) error
}

type UploaderAPI interface {
	UploadWithContext(ctx aws.Context, input *s3manager.UploadInput, opts ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error)
}

type ObjectStore struct {
	s3Client S3Api
	uploader UploaderAPI
	// parity reproduces the stream upload that precedes the explicit put.
	parity bool
}

func NewObjectStore(sess *session.Session, parity bool) *ObjectStore {
	client := s3.New(sess)
	return NewObjectStoreWithClient(client, s3manager.NewUploaderWithClient(client), parity)
}

func NewObjectStoreWithClient(client S3Api, uploader UploaderAPI, parity bool) *ObjectStore {
	return &ObjectStore{
		s3Client: client,
		uploader: uploader,
		parity:   parity,
	}
}

// Fetch reads the full content of an object.
func (s *ObjectStore) Fetch(ctx context.Context, obj types.S3ObjectInfo) ([]byte, error) {
	out, err := s.s3Client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(obj.Bucket),
		Key:    aws.String(obj.Key),
	})
	if err != nil {
		return nil, types.NewError(types.KindFetch, "failed to get object", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, types.NewError(types.KindFetch, "failed to read object body", err)
	}

	return data, nil
}

// Store writes the artifact to bucket under the artifact's key.
func (s *ObjectStore) Store(ctx context.Context, bucket string, artifact types.Artifact) error {
	if s.parity {
		_, err := s.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(artifact.Key),
			Body:   bytes.NewReader(artifact.Body),
		})
		if err != nil {
			return types.NewError(types.KindUpload, "failed to upload object", err)
		}
		log.Debug().Str("bucket", bucket).Str("key", artifact.Key).Msg("stream upload done")
	}

	_, err := s.s3Client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(artifact.Key),
		Body:        bytes.NewReader(artifact.Body),
		ContentType: aws.String(artifact.ContentType),
	})
	if err != nil {
		return types.NewError(types.KindUpload, "failed to put object", err)
	}

	return nil
}

// List returns every object under prefix, following continuation tokens.
// Folder placeholder keys ending in "/" are skipped.
func (s *ObjectStore) List(ctx context.Context, bucket, prefix string) ([]types.S3ObjectInfo, error) {
	var objects []types.S3ObjectInfo
	err := s.s3Client.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	}, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, item := range page.Contents {
			if strings.HasSuffix(aws.StringValue(item.Key), "/") {
				continue
			}
			objects = append(objects, types.S3ObjectInfo{
				Bucket: bucket,
				Key:    aws.StringValue(item.Key),
			})
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list objects: %w", err)
	}

	return objects, nil
}
