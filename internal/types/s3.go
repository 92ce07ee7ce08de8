package types

type S3ObjectInfo struct {
	Bucket string
	Key    string
}

// SizeHint is the output size encoded in a file name such as photo_100x200.png.
type SizeHint struct {
	Width  int
	Height int
}
