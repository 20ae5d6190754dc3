package state

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/mt-inside/http-log/pkg/output"
	"github.com/spf13/viper"
	"golang.org/x/net/idna"

	"github.com/mt-inside/json-get/pkg/utils"
)

const (
	HTTPSPort uint16 = 443

	DefaultMaxBodySize int64 = 64 << 20

	ResolverSystem = "system"
	ResolverDNS    = "dns"
)

// Endpoint is what to fetch. Port is always HTTPSPort outside of tests.
type Endpoint struct {
	Host string
	Path string
	Port uint16
}

// NewEndpoint validates a server name and path, converting unicode names to their ASCII form.
func NewEndpoint(server, path string) (Endpoint, error) {
	if server == "" {
		return Endpoint{}, fmt.Errorf("server can't be empty")
	}
	if strings.ContainsAny(server, " \r\n\t") {
		return Endpoint{}, fmt.Errorf("server %q contains whitespace", server)
	}
	if path == "" || path[0] != '/' {
		return Endpoint{}, fmt.Errorf("path %q must start with /", path)
	}
	if strings.ContainsAny(path, " \r\n\t") {
		return Endpoint{}, fmt.Errorf("path %q contains whitespace; escape it", path)
	}

	host := server
	if net.ParseIP(server) == nil {
		var err error
		host, err = idna.Lookup.ToASCII(server)
		if err != nil {
			return Endpoint{}, fmt.Errorf("server %q isn't a valid hostname: %w", server, err)
		}
	}

	return Endpoint{Host: host, Path: path, Port: HTTPSPort}, nil
}

// SendsSNI is false for IP literals, which TLS doesn't allow as a ServerName.
func (e Endpoint) SendsSNI() bool {
	return utils.ServerNameConformant(e.Host)
}

func (e Endpoint) String() string {
	return fmt.Sprintf("https://%s%s", net.JoinHostPort(e.Host, fmt.Sprint(e.Port)), e.Path)
}

type RequestData struct {
	Endpoint Endpoint
	Timeout  time.Duration

	DnsResolver string
	DnsDNSSEC   bool

	TlsServingCAPaths []string

	MaxBodySize int64

	Query      string
	Pretty     bool
	PrintHead  bool
	RawOnError bool
	Timestamps output.TimestampType
}

func RequestDataFromViper() (*RequestData, error) {
	ep, err := NewEndpoint(viper.GetString("server"), viper.GetString("path"))
	if err != nil {
		return nil, err
	}

	requestData := &RequestData{
		Endpoint:          ep,
		Timeout:           viper.GetDuration("timeout"),
		DnsResolver:       viper.GetString("resolver"),
		DnsDNSSEC:         viper.GetBool("dnssec"),
		TlsServingCAPaths: viper.GetStringSlice("ca"),
		MaxBodySize:       viper.GetInt64("max-body"),
		Query:             viper.GetString("query"),
		Pretty:            viper.GetBool("pretty"),
		PrintHead:         viper.GetBool("head"),
		RawOnError:        viper.GetBool("raw-on-error"),
	}

	switch requestData.DnsResolver {
	case ResolverSystem, ResolverDNS:
	default:
		return nil, fmt.Errorf("unknown resolver %q; want %s or %s", requestData.DnsResolver, ResolverSystem, ResolverDNS)
	}
	switch viper.GetString("timestamps") {
	case "", "none":
		requestData.Timestamps = output.TimestampNone
	case "abs":
		requestData.Timestamps = output.TimestampAbsolute
	case "rel":
		requestData.Timestamps = output.TimestampRelative
	default:
		return nil, fmt.Errorf("unknown timestamp format %q; want none|abs|rel", viper.GetString("timestamps"))
	}
	if requestData.Timeout < 0 {
		return nil, fmt.Errorf("timeout can't be negative")
	}
	if requestData.MaxBodySize <= 0 {
		requestData.MaxBodySize = DefaultMaxBodySize
	}

	return requestData, nil
}
