package parser

import (
	"testing"

	"github.com/stretchr/testify/require"

	perrors "github.com/mt-inside/json-get/pkg/errors"
)

func headWith(hs map[string]string) *ResponseHead {
	return &ResponseHead{Version: "1.1", Status: "200", Headers: hs}
}

func TestContentLengthCasings(t *testing.T) {
	for _, key := range []string{"Content-Length", "content-length"} {
		n, err := ContentLength(headWith(map[string]string{key: "13"}))
		require.NoError(t, err, key)
		require.Equal(t, int64(13), n, key)
	}

	for _, key := range []string{"CONTENT-LENGTH", "Content-length", "content-Length", "ContentLength"} {
		_, err := ContentLength(headWith(map[string]string{key: "13"}))
		require.True(t, perrors.Is(err, perrors.KindProtocol), key)
	}
}

func TestContentLengthMissing(t *testing.T) {
	_, err := ContentLength(headWith(map[string]string{"Transfer-Encoding": "chunked"}))
	require.True(t, perrors.Is(err, perrors.KindProtocol))
}

func TestContentLengthValues(t *testing.T) {
	n, err := ContentLength(headWith(map[string]string{"Content-Length": "0"}))
	require.NoError(t, err)
	require.Zero(t, n)

	for _, v := range []string{"", "-1", "+4", "0x10", "4 4", "13, 13", "99999999999999999999"} {
		_, err := ContentLength(headWith(map[string]string{"Content-Length": v}))
		require.True(t, perrors.Is(err, perrors.KindProtocol), "value %q", v)
	}
}

func TestContentLengthPrefersCanonicalSpelling(t *testing.T) {
	n, err := ContentLength(headWith(map[string]string{"Content-Length": "5", "content-length": "nope"}))
	require.NoError(t, err)
	require.Equal(t, int64(5), n)
}
