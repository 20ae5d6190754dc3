package parser

import (
	"strconv"

	perrors "github.com/mt-inside/json-get/pkg/errors"
)

// The two spellings servers actually send. Anything else isn't looked for.
var contentLengthKeys = []string{"Content-Length", "content-length"}

// ContentLength returns the declared body length of a response.
func ContentLength(head *ResponseHead) (int64, error) {
	for _, key := range contentLengthKeys {
		v, ok := head.Get(key)
		if !ok {
			continue
		}
		n, err := strconv.ParseUint(v, 10, 63)
		if err != nil {
			return 0, perrors.Errorf(perrors.KindProtocol, "extract content length", "can't parse %s %q: %w", key, v, err)
		}
		return int64(n), nil
	}

	return 0, perrors.Errorf(perrors.KindProtocol, "extract content length", "response does not contain Content-Length")
}
