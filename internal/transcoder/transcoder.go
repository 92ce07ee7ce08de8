package transcoder

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/jdwit/s3-jpeg-transcoder/internal/types"
	_ "golang.org/x/image/webp"
)

// DefaultQuality is the JPEG quality used when none is configured.
const DefaultQuality = 85

// MaxPixels bounds the size of a resized image (about 1 GiB of NRGBA pixels).
const MaxPixels = 1 << 28

// Transcode decodes data, resizes it when key carries a size hint and
// re-encodes it as an opaque RGB JPEG. The returned artifact has the same
// key as the source.
func Transcode(key string, data []byte, quality int) (types.Artifact, error) {
	img, err := Decode(data)
	if err != nil {
		return types.Artifact{}, err
	}

	rgb := ToRGB(img)

	if hint, ok := ParseSizeHint(key); ok {
		rgb, err = Resize(rgb, hint)
		if err != nil {
			return types.Artifact{}, err
		}
	}

	body, err := Encode(rgb, quality)
	if err != nil {
		return types.Artifact{}, err
	}

	return types.Artifact{
		Key:         key,
		ContentType: types.ContentTypeJPEG,
		Body:        body,
		Width:       rgb.Bounds().Dx(),
		Height:      rgb.Bounds().Dy(),
	}, nil
}

func Decode(data []byte) (image.Image, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, types.NewError(types.KindDecode, "failed to decode image", err)
	}
	return img, nil
}

// ToRGB drops any alpha channel and expands palette and grayscale images,
// returning a fully opaque copy anchored at the origin. Alpha is discarded,
// not composited against a background.
func ToRGB(img image.Image) *image.NRGBA {
	dst := imaging.Clone(img)
	for i := 3; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = 0xff
	}
	return dst
}

// Resize scales img to exactly the hinted size without keeping the aspect ratio.
func Resize(img *image.NRGBA, hint types.SizeHint) (*image.NRGBA, error) {
	if hint.Width <= 0 || hint.Height <= 0 {
		return nil, types.NewError(types.KindResize, "failed to resize image",
			fmt.Errorf("invalid size %dx%d", hint.Width, hint.Height))
	}
	if hint.Width > MaxPixels/hint.Height {
		return nil, types.NewError(types.KindResize, "failed to resize image",
			fmt.Errorf("size %dx%d exceeds %d pixels", hint.Width, hint.Height, MaxPixels))
	}
	return imaging.Resize(img, hint.Width, hint.Height, imaging.CatmullRom), nil
}

func Encode(img image.Image, quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, types.NewError(types.KindEncode, "failed to encode jpeg", err)
	}
	return buf.Bytes(), nil
}
