package errors

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWrapKeepsInnerKind(t *testing.T) {
	inner := New(KindCertificate, "handshake", io.EOF)

	err := Wrap(KindHandshake, "connect", inner)

	require.Same(t, inner, err)
	require.True(t, Is(err, KindCertificate))
	require.False(t, Is(err, KindHandshake))
	require.ErrorIs(t, err, io.EOF)
}

func TestWrapClassifiesPlainErrors(t *testing.T) {
	err := Wrap(KindWrite, "flush", io.ErrClosedPipe)

	require.True(t, Is(err, KindWrite))
	require.ErrorIs(t, err, io.ErrClosedPipe)
	require.Equal(t, "flush: write error: io: read/write on closed pipe", err.Error())

	require.NoError(t, Wrap(KindWrite, "flush", nil))
}

func TestKindOfUnclassified(t *testing.T) {
	require.Equal(t, KindUnknown, KindOf(errors.New("boom")))
	require.False(t, Is(nil, KindUnknown))
}

func TestErrorfMessage(t *testing.T) {
	err := Errorf(KindProtocol, "parse head", "bad status code %q", "2x0")

	require.Equal(t, `parse head: protocol error: bad status code "2x0"`, err.Error())
	require.Equal(t, "protocol error", KindProtocol.String())
}
