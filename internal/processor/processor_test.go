package processor

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/jdwit/s3-jpeg-transcoder/internal/config"
	"github.com/jdwit/s3-jpeg-transcoder/internal/targets"
	"github.com/jdwit/s3-jpeg-transcoder/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) Fetch(ctx context.Context, obj types.S3ObjectInfo) ([]byte, error) {
	args := m.Called(ctx, obj)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

func (m *mockStore) Store(ctx context.Context, bucket string, artifact types.Artifact) error {
	return m.Called(ctx, bucket, artifact).Error(0)
}

func (m *mockStore) List(ctx context.Context, bucket, prefix string) ([]types.S3ObjectInfo, error) {
	args := m.Called(ctx, bucket, prefix)
	objects, _ := args.Get(0).([]types.S3ObjectInfo)
	return objects, args.Error(1)
}

type recordingTarget struct {
	mu      sync.Mutex
	entries []types.AuditEntry
}

func (r *recordingTarget) SendEntries(entryChan <-chan types.AuditEntry) {
	for entry := range entryChan {
		r.mu.Lock()
		r.entries = append(r.entries, entry)
		r.mu.Unlock()
	}
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 90, A: 100})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestTranscoder(store ObjectStore, ts ...targets.Target) *Transcoder {
	return &Transcoder{
		store: store,
		config: config.Config{
			DestBucket:  "dst",
			JPEGQuality: 85,
			UploadMode:  config.UploadModeSingle,
		},
		targets: ts,
	}
}

func s3Event(records ...[2]string) events.S3Event {
	var event events.S3Event
	for _, r := range records {
		var record events.S3EventRecord
		record.S3.Bucket.Name = r[0]
		record.S3.Object.Key = r[1]
		event.Records = append(event.Records, record)
	}
	return event
}

func isArtifact(key string, width, height int) interface{} {
	return mock.MatchedBy(func(a types.Artifact) bool {
		if a.Key != key || a.ContentType != "image/jpeg" {
			return false
		}
		cfg, format, err := image.DecodeConfig(bytes.NewReader(a.Body))
		return err == nil && format == "jpeg" && cfg.Width == width && cfg.Height == height
	})
}

func TestTranscoder_Process(t *testing.T) {
	ctx := context.Background()

	t.Run("Resizes from size hint", func(t *testing.T) {
		obj := types.S3ObjectInfo{Bucket: "src", Key: "photo_100x200.png"}
		store := &mockStore{}
		store.On("Fetch", ctx, obj).Return(testPNG(t, 50, 40), nil)
		store.On("Store", ctx, "dst", isArtifact("photo_100x200.png", 100, 200)).Return(nil).Once()

		artifact, err := newTestTranscoder(store).Process(ctx, obj)

		require.NoError(t, err)
		assert.Equal(t, 100, artifact.Width)
		assert.Equal(t, 200, artifact.Height)
		store.AssertExpectations(t)
	})

	t.Run("Keeps size without hint", func(t *testing.T) {
		obj := types.S3ObjectInfo{Bucket: "src", Key: "albums/photo.png"}
		store := &mockStore{}
		store.On("Fetch", ctx, obj).Return(testPNG(t, 50, 40), nil)
		store.On("Store", ctx, "dst", isArtifact("albums/photo.png", 50, 40)).Return(nil).Once()

		_, err := newTestTranscoder(store).Process(ctx, obj)

		require.NoError(t, err)
		store.AssertExpectations(t)
	})

	t.Run("Missing source is not uploaded", func(t *testing.T) {
		obj := types.S3ObjectInfo{Bucket: "src", Key: "missing.png"}
		store := &mockStore{}
		store.On("Fetch", ctx, obj).Return(nil, types.NewError(types.KindFetch, "failed to get object", errors.New("NoSuchKey")))

		_, err := newTestTranscoder(store).Process(ctx, obj)

		require.Error(t, err)
		assert.Equal(t, types.KindFetch, types.KindOf(err))
		store.AssertNotCalled(t, "Store", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Corrupt payload is not uploaded", func(t *testing.T) {
		obj := types.S3ObjectInfo{Bucket: "src", Key: "broken.png"}
		store := &mockStore{}
		store.On("Fetch", ctx, obj).Return([]byte("not an image"), nil)

		_, err := newTestTranscoder(store).Process(ctx, obj)

		require.Error(t, err)
		assert.Equal(t, types.KindDecode, types.KindOf(err))
		store.AssertNotCalled(t, "Store", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Invalid hint is a resize error", func(t *testing.T) {
		obj := types.S3ObjectInfo{Bucket: "src", Key: "photo_0x0.png"}
		store := &mockStore{}
		store.On("Fetch", ctx, obj).Return(testPNG(t, 5, 5), nil)

		_, err := newTestTranscoder(store).Process(ctx, obj)

		require.Error(t, err)
		assert.Equal(t, types.KindResize, types.KindOf(err))
		store.AssertNotCalled(t, "Store", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Upload failure propagates", func(t *testing.T) {
		obj := types.S3ObjectInfo{Bucket: "src", Key: "photo.png"}
		store := &mockStore{}
		store.On("Fetch", ctx, obj).Return(testPNG(t, 5, 5), nil)
		store.On("Store", ctx, "dst", mock.Anything).Return(types.NewError(types.KindUpload, "failed to put object", errors.New("AccessDenied")))

		_, err := newTestTranscoder(store).Process(ctx, obj)

		require.Error(t, err)
		assert.Equal(t, types.KindUpload, types.KindOf(err))
	})

	t.Run("Panic is returned as an error", func(t *testing.T) {
		obj := types.S3ObjectInfo{Bucket: "src", Key: "photo.png"}
		store := &mockStore{}
		store.On("Fetch", ctx, obj).Run(func(mock.Arguments) {
			panic("makeslice: len out of range")
		}).Return(nil, nil)

		var err error
		assert.NotPanics(t, func() {
			_, err = newTestTranscoder(store).Process(ctx, obj)
		})

		require.Error(t, err)
		assert.Equal(t, types.KindUnknown, types.KindOf(err))
		assert.EqualError(t, err, "s3://src/photo.png: panic while transcoding: makeslice: len out of range")
		store.AssertNotCalled(t, "Store", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Missing destination bucket", func(t *testing.T) {
		store := &mockStore{}
		tc := newTestTranscoder(store)
		tc.config.DestBucket = ""

		_, err := tc.Process(ctx, types.S3ObjectInfo{Bucket: "src", Key: "photo.png"})

		require.Error(t, err)
		assert.Equal(t, types.KindConfig, types.KindOf(err))
		store.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
	})
}

func TestTranscoder_HandleLambdaEvent(t *testing.T) {
	ctx := context.Background()

	t.Run("Only the first record is processed", func(t *testing.T) {
		store := &mockStore{}
		store.On("Fetch", ctx, types.S3ObjectInfo{Bucket: "src", Key: "holiday photos/beach_30x20.png"}).Return(testPNG(t, 8, 8), nil).Once()
		store.On("Store", ctx, "dst", isArtifact("holiday photos/beach_30x20.png", 30, 20)).Return(nil).Once()
		first, second := &recordingTarget{}, &recordingTarget{}

		err := newTestTranscoder(store, first, second).HandleLambdaEvent(ctx, s3Event(
			[2]string{"src", "holiday+photos/beach_30x20.png"},
			[2]string{"src", "other.png"},
		))

		require.NoError(t, err)
		store.AssertExpectations(t)
		for _, target := range []*recordingTarget{first, second} {
			require.Len(t, target.entries, 1)
			assert.Equal(t, "holiday photos/beach_30x20.png", target.entries[0].Data["key"])
			assert.Equal(t, "30", target.entries[0].Data["width"])
			assert.Equal(t, "dst", target.entries[0].Data["dest_bucket"])
		}
	})

	t.Run("Empty event", func(t *testing.T) {
		err := newTestTranscoder(&mockStore{}).HandleLambdaEvent(ctx, events.S3Event{})
		assert.EqualError(t, err, "event contains no records")
	})

	t.Run("Failure is returned and not audited", func(t *testing.T) {
		store := &mockStore{}
		store.On("Fetch", ctx, mock.Anything).Return([]byte("garbage"), nil)
		target := &recordingTarget{}

		err := newTestTranscoder(store, target).HandleLambdaEvent(ctx, s3Event([2]string{"src", "photo.png"}))

		require.Error(t, err)
		assert.Equal(t, types.KindDecode, types.KindOf(err))
		assert.Empty(t, target.entries)
	})
}

func TestTranscoder_HandleS3URL(t *testing.T) {
	ctx := context.Background()

	t.Run("Single object", func(t *testing.T) {
		store := &mockStore{}
		store.On("Fetch", ctx, types.S3ObjectInfo{Bucket: "src", Key: "a/photo.png"}).Return(testPNG(t, 4, 4), nil)
		store.On("Store", ctx, "dst", isArtifact("a/photo.png", 4, 4)).Return(nil)

		require.NoError(t, newTestTranscoder(store).HandleS3URL(ctx, "s3://src/a/photo.png"))
		store.AssertNotCalled(t, "List", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Prefix collects every error", func(t *testing.T) {
		store := &mockStore{}
		store.On("List", ctx, "src", "a/").Return([]types.S3ObjectInfo{
			{Bucket: "src", Key: "a/one.png"},
			{Bucket: "src", Key: "a/two_3x3.png"},
			{Bucket: "src", Key: "a/bad.png"},
		}, nil)
		store.On("Fetch", ctx, types.S3ObjectInfo{Bucket: "src", Key: "a/one.png"}).Return(testPNG(t, 4, 4), nil)
		store.On("Fetch", ctx, types.S3ObjectInfo{Bucket: "src", Key: "a/two_3x3.png"}).Return(testPNG(t, 4, 4), nil)
		store.On("Fetch", ctx, types.S3ObjectInfo{Bucket: "src", Key: "a/bad.png"}).Return([]byte("nope"), nil)
		store.On("Store", ctx, "dst", isArtifact("a/one.png", 4, 4)).Return(nil).Once()
		store.On("Store", ctx, "dst", isArtifact("a/two_3x3.png", 3, 3)).Return(nil).Once()
		target := &recordingTarget{}

		err := newTestTranscoder(store, target).HandleS3URL(ctx, "s3://src/a/")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "s3://src/a/bad.png")
		assert.Equal(t, types.KindDecode, types.KindOf(err))
		assert.Len(t, target.entries, 2)
		store.AssertExpectations(t)
	})

	t.Run("Oversized hint does not abort other objects", func(t *testing.T) {
		store := &mockStore{}
		store.On("List", ctx, "src", "b/").Return([]types.S3ObjectInfo{
			{Bucket: "src", Key: "b/ok.png"},
			{Bucket: "src", Key: "b/huge_140737488355328x1.png"},
		}, nil)
		store.On("Fetch", ctx, mock.Anything).Return(testPNG(t, 4, 4), nil)
		store.On("Store", ctx, "dst", isArtifact("b/ok.png", 4, 4)).Return(nil).Once()

		err := newTestTranscoder(store).HandleS3URL(ctx, "s3://src/b/")

		require.Error(t, err)
		assert.Equal(t, types.KindResize, types.KindOf(err))
		store.AssertExpectations(t)
	})

	t.Run("List failure", func(t *testing.T) {
		store := &mockStore{}
		store.On("List", ctx, "src", "").Return(nil, errors.New("AccessDenied"))

		err := newTestTranscoder(store).HandleS3URL(ctx, "s3://src/")
		assert.Error(t, err)
	})

	t.Run("Invalid URL", func(t *testing.T) {
		err := newTestTranscoder(&mockStore{}).HandleS3URL(ctx, "src/photo.png")
		assert.EqualError(t, err, "failed to parse S3 URL: invalid S3 URL, missing 's3://' prefix")
	})
}
