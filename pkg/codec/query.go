package codec

import (
	"context"
	"fmt"

	"github.com/itchyny/gojq"
)

// Query is a compiled jq program.
type Query struct {
	src  string
	code *gojq.Code
}

func CompileQuery(src string) (*Query, error) {
	q, err := gojq.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parsing query %q: %w", src, err)
	}
	code, err := gojq.Compile(q)
	if err != nil {
		return nil, fmt.Errorf("compiling query %q: %w", src, err)
	}
	return &Query{src: src, code: code}, nil
}

// Run applies the query to a value from JSON.Decode and collects every result.
func (q *Query) Run(ctx context.Context, v interface{}) ([]interface{}, error) {
	var results []interface{}

	iter := q.code.RunWithContext(ctx, normalize(v))
	for {
		r, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := r.(error); ok {
			return results, fmt.Errorf("running query %q: %w", q.src, err)
		}
		results = append(results, r)
	}

	return results, nil
}

func (q *Query) String() string { return q.src }
