package codec

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	perrors "github.com/mt-inside/json-get/pkg/errors"
)

func TestDecodeObject(t *testing.T) {
	v, err := NewJSON().Decode([]byte("{\"ok\": true}\n"))
	require.NoError(t, err)
	require.Equal(t, map[string]interface{}{"ok": true}, v)

	out, err := NewJSON().Encode(v)
	require.NoError(t, err)
	require.Equal(t, `{"ok":true}`, string(out))
}

func TestRoundTrip(t *testing.T) {
	docs := []string{
		`{"b": [1, 2.50, -3e10, "x"], "a": {"nested": null, "t": false}}`,
		`[]`,
		`"just a string with \"quotes\" and é"`,
		`12345678901234567890123.25`,
		`{"html": "<a href=\"x\">&</a>"}`,
	}
	c := NewJSON()

	for _, doc := range docs {
		v, err := c.Decode([]byte(doc))
		require.NoError(t, err, doc)

		out, err := c.Encode(v)
		require.NoError(t, err, doc)

		again, err := c.Decode(out)
		require.NoError(t, err, doc)
		require.Equal(t, v, again, doc)

		// Canonical output is a fixed point
		out2, err := c.Encode(again)
		require.NoError(t, err, doc)
		require.Equal(t, string(out), string(out2), doc)
	}
}

func TestEncodeSortsKeysAndKeepsNumbers(t *testing.T) {
	c := NewJSON()
	v, err := c.Decode([]byte(`{"z": 1.10, "a": 12345678901234567890}`))
	require.NoError(t, err)
	require.Equal(t, json.Number("12345678901234567890"), v.(map[string]interface{})["a"])

	out, err := c.Encode(v)
	require.NoError(t, err)
	require.Equal(t, `{"a":12345678901234567890,"z":1.10}`, string(out))
}

func TestEncodeIndent(t *testing.T) {
	c := &JSON{Indent: "  "}
	out, err := c.Encode(map[string]interface{}{"ok": true})
	require.NoError(t, err)
	require.Contains(t, string(out), "\n  \"ok\"")

	v, err := c.Decode(out)
	require.NoError(t, err)
	require.Equal(t, map[string]interface{}{"ok": true}, v)
}

func TestDecodeErrors(t *testing.T) {
	cases := map[string]string{
		"empty":      "",
		"whitespace": " \r\n\t",
		"truncated":  `{"ok": tr`,
		"unclosed":   `{"ok": true`,
		"mismatched": `{"ok": true]`,
		"trailing":   `{"ok": true} {}`,
		"bare word":  `ok`,
		"leading 0":  `01`,
		"nested 0":   `[01]`,
		"bad utf-8":  "\"\xff\"",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			v, err := NewJSON().Decode([]byte(in))
			require.Nil(t, v)
			require.True(t, perrors.Is(err, perrors.KindJSONSyntax), "got %v", err)
			require.NotEmpty(t, err.Error())
		})
	}
}

func TestDecodeErrorMessages(t *testing.T) {
	for _, in := range []string{`01`, `[01]`, `{"ok": true}}`} {
		_, err := NewJSON().Decode([]byte(in))
		require.True(t, perrors.Is(err, perrors.KindJSONSyntax), "%q: %v", in, err)
		require.NotContains(t, err.Error(), "unexpected end", in)
	}

	_, err := NewJSON().Decode([]byte("{\"name\": \"caf\xe9\"}"))
	require.True(t, perrors.Is(err, perrors.KindJSONSyntax), "%v", err)
	require.Contains(t, err.Error(), "UTF-8")

	_, err = NewJSON().Decode([]byte(`{"ok": true`))
	require.True(t, perrors.Is(err, perrors.KindJSONSyntax), "%v", err)
}

func TestQuery(t *testing.T) {
	v, err := NewJSON().Decode([]byte(`{"items": [{"id": 1}, {"id": 2}], "total": 2}`))
	require.NoError(t, err)

	q, err := CompileQuery(".items[].id")
	require.NoError(t, err)
	res, err := q.Run(context.Background(), v)
	require.NoError(t, err)
	require.Equal(t, []interface{}{1, 2}, res)

	q, err = CompileQuery(".total + 0.5")
	require.NoError(t, err)
	res, err = q.Run(context.Background(), v)
	require.NoError(t, err)
	require.Equal(t, []interface{}{2.5}, res)
	require.Equal(t, ".total + 0.5", q.String())
}

func TestQueryErrors(t *testing.T) {
	_, err := CompileQuery(".items[")
	require.Error(t, err)

	q, err := CompileQuery(".total.nope")
	require.NoError(t, err)
	_, err = q.Run(context.Background(), map[string]interface{}{"total": json.Number("2")})
	require.Error(t, err)
}
