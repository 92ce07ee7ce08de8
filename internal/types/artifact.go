package types

const ContentTypeJPEG = "image/jpeg"

// Artifact is an encoded image ready to be written to the destination bucket.
type Artifact struct {
	Key         string
	ContentType string
	Body        []byte
	Width       int
	Height      int
}
