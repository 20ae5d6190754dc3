// Package client fetches one JSON document over HTTPS: resolve, connect, send a fixed GET, parse the head, read and decode the body.
package client

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/go-logr/logr"
	"golang.org/x/sync/errgroup"

	perrors "github.com/mt-inside/json-get/pkg/errors"
	"github.com/mt-inside/json-get/pkg/parser"
	"github.com/mt-inside/json-get/pkg/state"
	"github.com/mt-inside/json-get/pkg/stream"
)

type Resolver interface {
	Resolve(ctx context.Context, host string) ([]net.IP, error)
}

type TrustLoader interface {
	Load(ctx context.Context) (*x509.CertPool, error)
}

// Connector returns a connection that's ready for application data, ie already through any handshake.
type Connector interface {
	Connect(ctx context.Context, roots *x509.CertPool, ip net.IP, port uint16, serverName string) (net.Conn, error)
}

type Decoder interface {
	Decode(bs []byte) (interface{}, error)
}

type Client struct {
	Log         logr.Logger
	Resolver    Resolver
	Trust       TrustLoader
	Connector   Connector
	Decoder     Decoder
	MaxBodySize int64
}

func New(log logr.Logger, resolver Resolver, trust TrustLoader, connector Connector, decoder Decoder) *Client {
	return &Client{
		Log:         log,
		Resolver:    resolver,
		Trust:       trust,
		Connector:   connector,
		Decoder:     decoder,
		MaxBodySize: state.DefaultMaxBodySize,
	}
}

/* Fetch runs the whole pipeline against ep, recording what it learns in rd.
 * On success the decoded document is in rd.BodyValue.
 * A server that hangs up before sending a whole head isn't an error; rd.HttpNoResponse is set instead.
 */
func (c *Client) Fetch(ctx context.Context, ep state.Endpoint, rd *state.ResponseData) error {
	ips, roots, err := c.prepare(ctx, ep.Host)
	if err != nil {
		return err
	}
	rd.DnsSystemResolves = ips
	ip := pickAddr(ips)

	raw, err := c.Connector.Connect(ctx, roots, ip, ep.Port, ep.Host)
	if err != nil {
		return perrors.Wrap(perrors.KindConnect, "connect", err)
	}

	rd.TransportConnTime = time.Now()
	if tc, ok := raw.(interface{ ConnectionState() tls.ConnectionState }); ok {
		rd.RecordTLS(tc.ConnectionState())
	}
	c.Log.V(1).Info("Secure channel up", "addr", raw.RemoteAddr())

	return c.Exchange(ctx, raw, ep, rd)
}

// prepare resolves host and loads the trust roots concurrently; either failing fails both.
func (c *Client) prepare(ctx context.Context, host string) ([]net.IP, *x509.CertPool, error) {
	var (
		ips   []net.IP
		roots *x509.CertPool
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		ips, err = c.Resolver.Resolve(gctx, host)
		if err != nil {
			return perrors.Wrap(perrors.KindResolution, "resolve "+host, err)
		}
		if len(ips) == 0 {
			return perrors.Errorf(perrors.KindResolution, "resolve "+host, "no addresses")
		}
		c.Log.V(1).Info("Resolved", "name", host, "addrs", ips)
		return nil
	})
	g.Go(func() error {
		var err error
		roots, err = c.Trust.Load(gctx)
		if err != nil {
			return perrors.Wrap(perrors.KindTrustLoad, "load trust", err)
		}
		c.Log.V(1).Info("Trust roots loaded")
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	return ips, roots, nil
}

// pickAddr takes the first IPv4 address, else the first of any kind.
func pickAddr(ips []net.IP) net.IP {
	for _, ip := range ips {
		if ip.To4() != nil {
			return ip
		}
	}
	return ips[0]
}

// BuildRequest renders the only request this client makes.
func BuildRequest(host, path string) []byte {
	return []byte(fmt.Sprintf("GET %s HTTP/1.1\r\nHost: %s\r\nAccept: application/json\r\n\r\n", path, host))
}

/* Exchange does the HTTP part over an established connection, and closes it when done.
 * The whole request is flushed before anything is read.
 */
func (c *Client) Exchange(ctx context.Context, raw net.Conn, ep state.Endpoint, rd *state.ResponseData) error {
	conn := stream.New(raw)
	defer conn.Close()

	rd.TransportLocalAddr = conn.LocalAddr()
	rd.TransportRemoteAddr = conn.RemoteAddr()

	req := BuildRequest(ep.Host, ep.Path)
	if err := conn.Write(ctx, req); err != nil {
		return perrors.Wrap(perrors.KindWrite, "send request", err)
	}
	c.Log.V(1).Info("Request sent", "path", ep.Path, "bytes", len(req))
	c.Log.V(2).Info("Request", "raw", string(req))

	if err := conn.Flush(ctx); err != nil {
		return perrors.Wrap(perrors.KindWrite, "flush request", err)
	}
	c.Log.V(1).Info("Request flushed")

	p := parser.NewResponseParser()
	if err := conn.Consume(ctx, p); err != nil {
		return perrors.Wrap(perrors.KindRead, "receive head", err)
	}
	if p.Eof() {
		rd.HttpNoResponse = true
		c.Log.Info("Connection closed before a complete response head")
		return nil
	}

	head := p.Response()
	rd.HttpHeadersTime = time.Now()
	rd.HttpVersion = head.Version
	rd.HttpStatus = head.Status
	rd.HttpReason = head.Reason
	rd.HttpHeaders = head.Headers
	c.Log.V(1).Info("Headers received", "status", head.Status, "reason", head.Reason, "count", len(head.Headers))
	if c.Log.V(2).Enabled() {
		c.Log.V(2).Info("Response head", "dump", spew.Sdump(head))
	}

	n, err := parser.ContentLength(head)
	if err != nil {
		return err
	}
	if n > c.MaxBodySize {
		return perrors.Errorf(perrors.KindProtocol, "check content length", "%d bytes is over the %d byte limit", n, c.MaxBodySize)
	}
	rd.HttpContentLength = n

	body, err := conn.ReadExactly(ctx, n)
	rd.BodyBytes = body
	if err != nil {
		return perrors.Wrap(perrors.KindRead, "read body", err)
	}
	rd.BodyCompleteTime = time.Now()
	c.Log.V(1).Info("Body received", "bytes", len(body))

	v, err := c.Decoder.Decode(body)
	if err != nil {
		return perrors.Wrap(perrors.KindJSONSyntax, "decode body", err)
	}
	rd.BodyValue = v

	return nil
}
