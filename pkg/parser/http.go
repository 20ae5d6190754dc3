package parser

import (
	"bytes"
	"fmt"
	"strings"

	perrors "github.com/mt-inside/json-get/pkg/errors"
)

const DefaultMaxHeadSize = 64 << 10

type State int

const (
	AwaitingStatusLine State = iota
	AwaitingHeaders
	HeadersComplete
	EndOfStream
)

func (s State) String() string {
	switch s {
	case AwaitingStatusLine:
		return "awaiting status line"
	case AwaitingHeaders:
		return "awaiting headers"
	case HeadersComplete:
		return "headers complete"
	case EndOfStream:
		return "end of stream"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ResponseHead is the status line and header block of a response.
// Header names are kept exactly as the server sent them; see Get.
type ResponseHead struct {
	Version string // eg "1.1"
	Status  string // eg "200"
	Reason  string // eg "OK", might be empty
	Headers map[string]string
}

// Get looks up a header by its exact, case-sensitive name.
func (h *ResponseHead) Get(name string) (string, bool) {
	v, ok := h.Headers[name]
	return v, ok
}

/* ResponseParser recognises a response head from a byte stream that can be split anywhere.
 * Feed it with Consume until it reports done, or call EOF if the stream ends first.
 * It never consumes past the blank line that ends the head, so the caller still has the start of the body.
 */
type ResponseParser struct {
	MaxHeadSize int

	state   State
	line    []byte
	size    int
	lastKey string
	head    *ResponseHead
}

func NewResponseParser() *ResponseParser {
	p := &ResponseParser{MaxHeadSize: DefaultMaxHeadSize}
	p.Init()
	return p
}

// Init resets the parser so it can be reused.
func (p *ResponseParser) Init() {
	p.state = AwaitingStatusLine
	p.line = p.line[:0]
	p.size = 0
	p.lastKey = ""
	p.head = &ResponseHead{Headers: map[string]string{}}
}

func (p *ResponseParser) State() State { return p.state }

// Eof reports whether the stream ended before the head was complete.
func (p *ResponseParser) Eof() bool { return p.state == EndOfStream }

// Response returns the parsed head, or nil until the head is complete.
func (p *ResponseParser) Response() *ResponseHead {
	if p.state != HeadersComplete {
		return nil
	}
	return p.head
}

// EOF tells the parser its input has ended.
func (p *ResponseParser) EOF() {
	if p.state != HeadersComplete {
		p.state = EndOfStream
	}
}

// Consume takes as much of chunk as belongs to the head.
// It returns the number of bytes used, and done once the head is complete.
func (p *ResponseParser) Consume(chunk []byte) (int, bool, error) {
	if p.state == HeadersComplete || p.state == EndOfStream {
		return 0, true, nil
	}

	consumed := 0
	for consumed < len(chunk) {
		rest := chunk[consumed:]
		i := bytes.IndexByte(rest, '\n')
		if i < 0 {
			if err := p.grow(len(rest)); err != nil {
				return consumed, false, err
			}
			p.line = append(p.line, rest...)
			return len(chunk), false, nil
		}

		if err := p.grow(i + 1); err != nil {
			return consumed, false, err
		}
		p.line = append(p.line, rest[:i]...)
		consumed += i + 1

		line := bytes.TrimSuffix(p.line, []byte{'\r'})
		err := p.processLine(line)
		p.line = p.line[:0]
		if err != nil {
			return consumed, false, err
		}
		if p.state == HeadersComplete {
			return consumed, true, nil
		}
	}

	return consumed, false, nil
}

func (p *ResponseParser) grow(n int) error {
	p.size += n
	if p.MaxHeadSize > 0 && p.size > p.MaxHeadSize {
		return perrors.Errorf(perrors.KindProtocol, "parse response head", "head exceeds %d bytes", p.MaxHeadSize)
	}
	return nil
}

func (p *ResponseParser) processLine(line []byte) error {
	switch p.state {
	case AwaitingStatusLine:
		if len(line) == 0 {
			// RFC 9112 §2.2: tolerate empty lines before the start line
			return nil
		}
		if err := p.parseStatusLine(string(line)); err != nil {
			return err
		}
		p.state = AwaitingHeaders

	case AwaitingHeaders:
		if len(line) == 0 {
			p.state = HeadersComplete
			return nil
		}
		return p.parseHeaderLine(string(line))
	}

	return nil
}

func (p *ResponseParser) parseStatusLine(line string) error {
	proto, rest, _ := strings.Cut(line, " ")
	version, ok := strings.CutPrefix(proto, "HTTP/")
	if !ok || !validVersion(version) {
		return perrors.Errorf(perrors.KindProtocol, "parse status line", "bad protocol version in %q", line)
	}

	code, reason, _ := strings.Cut(rest, " ")
	if len(code) != 3 || !allDigits(code) {
		return perrors.Errorf(perrors.KindProtocol, "parse status line", "bad status code in %q", line)
	}

	p.head.Version = version
	p.head.Status = code
	p.head.Reason = reason
	return nil
}

func (p *ResponseParser) parseHeaderLine(line string) error {
	// obs-fold: a continuation of the previous header's value
	if line[0] == ' ' || line[0] == '\t' {
		if p.lastKey == "" {
			return perrors.Errorf(perrors.KindProtocol, "parse header", "continuation line %q with no header to continue", line)
		}
		if more := strings.Trim(line, " \t"); more != "" {
			if p.head.Headers[p.lastKey] == "" {
				p.head.Headers[p.lastKey] = more
			} else {
				p.head.Headers[p.lastKey] += " " + more
			}
		}
		return nil
	}

	name, value, found := strings.Cut(line, ":")
	if !found || name == "" {
		return perrors.Errorf(perrors.KindProtocol, "parse header", "no field name in %q", line)
	}
	if strings.ContainsAny(name, " \t") {
		return perrors.Errorf(perrors.KindProtocol, "parse header", "whitespace in field name %q", name)
	}
	value = strings.Trim(value, " \t")

	if existing, ok := p.head.Headers[name]; ok {
		value = existing + ", " + value
	}
	p.head.Headers[name] = value
	p.lastKey = name

	return nil
}

func validVersion(v string) bool {
	major, minor, ok := strings.Cut(v, ".")
	return ok && len(major) == 1 && len(minor) == 1 && allDigits(major) && allDigits(minor)
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
