// Package codec decodes response bodies and runs jq queries over them.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"unicode/utf8"

	jsoniter "github.com/json-iterator/go"

	perrors "github.com/mt-inside/json-get/pkg/errors"
)

// Numbers are kept as their decimal text so re-encoding doesn't lose precision; object keys are sorted so output is canonical.
var jsonConfig = jsoniter.Config{
	EscapeHTML:             false,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
	UseNumber:              true,
}.Froze()

var (
	errUnexpectedEnd = errors.New("unexpected end of JSON input")
	errInvalid       = errors.New("invalid JSON")
	errInvalidUTF8   = errors.New("invalid UTF-8 in JSON text")
)

type JSON struct {
	Indent string
}

func NewJSON() *JSON {
	return &JSON{}
}

// Decode parses exactly one JSON document from bs.
func (j *JSON) Decode(bs []byte) (interface{}, error) {
	if len(bytes.TrimSpace(bs)) == 0 {
		return nil, perrors.New(perrors.KindJSONSyntax, "decode body", errUnexpectedEnd)
	}

	// jsoniter passes bad bytes inside strings straight through
	if !utf8.Valid(bs) {
		return nil, perrors.New(perrors.KindJSONSyntax, "decode body", errInvalidUTF8)
	}

	var v interface{}
	err := jsonConfig.Unmarshal(bs, &v)
	// jsoniter lets some malformed numbers through and reports a document cut short as a bare io.EOF, so the strict check is encoding/json's
	if !json.Valid(bs) {
		switch {
		case err == nil:
			err = errInvalid
		case errors.Is(err, io.EOF):
			err = errUnexpectedEnd
		}
	}
	if err != nil {
		return nil, perrors.New(perrors.KindJSONSyntax, "decode body", err)
	}
	return v, nil
}

// Encode serialises v compactly, or indented if Indent is set.
func (j *JSON) Encode(v interface{}) ([]byte, error) {
	if j.Indent != "" {
		return jsonConfig.MarshalIndent(v, "", j.Indent)
	}
	return jsonConfig.Marshal(v)
}

// normalize swaps json.Numbers for the native numeric types jq works on.
func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return int(i)
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, e := range t {
			out[k] = normalize(e)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	default:
		return v
	}
}
