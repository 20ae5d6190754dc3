package utils

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestServerNameConformant(t *testing.T) {
	for sn, want := range map[string]bool{
		"example.com":           true,
		"xn--bcher-kva.example": true,
		"localhost":             true,
		"10.0.0.1":              false,
		"::1":                   false,
		"example.com:443":       false,
		"":                      false,
	} {
		require.Equal(t, want, ServerNameConformant(sn), sn)
	}
}
