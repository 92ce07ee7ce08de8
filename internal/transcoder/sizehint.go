package transcoder

import (
	"path"
	"strconv"
	"strings"

	"github.com/jdwit/s3-jpeg-transcoder/internal/types"
)

// ParseSizeHint extracts the WxH suffix from keys like "dir/photo_100x200.png".
// Anything that does not match exactly is reported as no hint. Whitespace
// around each number is ignored. Zero or negative values are returned as-is
// and rejected by Resize.
func ParseSizeHint(key string) (types.SizeHint, bool) {
	base := path.Base(key)
	name := strings.TrimSuffix(base, path.Ext(base))

	parts := strings.Split(name, "_")
	if len(parts) != 2 {
		return types.SizeHint{}, false
	}

	dims := strings.Split(parts[1], "x")
	if len(dims) != 2 {
		return types.SizeHint{}, false
	}

	width, err := strconv.Atoi(strings.TrimSpace(dims[0]))
	if err != nil {
		return types.SizeHint{}, false
	}
	height, err := strconv.Atoi(strings.TrimSpace(dims[1]))
	if err != nil {
		return types.SizeHint{}, false
	}

	return types.SizeHint{Width: width, Height: height}, true
}
