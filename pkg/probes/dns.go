package probes

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/go-logr/logr"
	"github.com/miekg/dns"
	"github.com/peterzen/goresolver"

	perrors "github.com/mt-inside/json-get/pkg/errors"
)

const ResolvConfPath = "/etc/resolv.conf"

type Resolver interface {
	Resolve(ctx context.Context, host string) ([]net.IP, error)
}

// SystemResolver asks the platform, so /etc/hosts, nsswitch etc are honoured.
type SystemResolver struct {
	Log      logr.Logger
	Resolver *net.Resolver
}

func NewSystemResolver(log logr.Logger) *SystemResolver {
	return &SystemResolver{Log: log, Resolver: net.DefaultResolver}
}

func (r *SystemResolver) Name() string { return DnsResolverName }

func (r *SystemResolver) Resolve(ctx context.Context, host string) ([]net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		return []net.IP{ip}, nil
	}

	r.Log.V(1).Info("Resolving", "name", host, "resolver", DnsResolverName)
	addrs, err := r.Resolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, perrors.Wrap(perrors.KindResolution, "resolve "+host, err)
	}
	if len(addrs) == 0 {
		return nil, perrors.Errorf(perrors.KindResolution, "resolve "+host, "no addresses")
	}

	ips := make([]net.IP, len(addrs))
	for i, a := range addrs {
		ips[i] = a.IP
	}
	return ips, nil
}

/* DNSResolver queries the resolv.conf servers directly, like nslookup would.
 * Nothing outside of DNS is consulted, so eg names only in /etc/hosts won't resolve.
 * By default questions ask the server to recurse for us.
 */
type DNSResolver struct {
	Log    logr.Logger
	Config *dns.ClientConfig
	Client *dns.Client
}

func NewDNSResolver(log logr.Logger, resolvConf string) (*DNSResolver, error) {
	dnsConfig, err := dns.ClientConfigFromFile(resolvConf)
	if err != nil {
		return nil, perrors.Wrap(perrors.KindResolution, "read "+resolvConf, err)
	}

	return &DNSResolver{
		Log:    log,
		Config: dnsConfig,
		Client: &dns.Client{
			Dialer: &net.Dialer{Timeout: 5 * time.Second},
		},
	}, nil
}

func (r *DNSResolver) Name() string { return "DNS (direct queries to resolv.conf servers)" }

/* Testing:
* - www.wikipedia.org has CNAME
* - google.com has ipv6 & v4
 */
func (r *DNSResolver) Resolve(ctx context.Context, host string) ([]net.IP, error) {
	op := "resolve " + host
	if ip := net.ParseIP(host); ip != nil {
		return []net.IP{ip}, nil
	}

	names := r.Config.NameList(host)

	var lastErr error
serversLoop:
	for _, serverHost := range r.Config.Servers {
		server := net.JoinHostPort(serverHost, r.Config.Port)
		r.Log.V(1).Info("Trying DNS server", "addr", server)

		for _, name := range names {
			r.Log.V(1).Info("Trying search path item", "fqdn", name)

			var answers []dns.RR
			for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
				m := new(dns.Msg)
				m.SetQuestion(name, qtype)

				in, _, err := r.Client.ExchangeContext(ctx, m, server)
				if err != nil {
					if ctx.Err() != nil {
						return nil, perrors.Wrap(perrors.KindResolution, op, fmt.Errorf("%w: %w", ctx.Err(), err))
					}
					lastErr = err
					continue serversLoop
				}
				answers = append(answers, in.Answer...)
			}

			if ips := r.followCnameChain(name, answers); len(ips) > 0 {
				return ips, nil
			}
		}

		// This server answered for every name, so asking another won't help.
		return nil, perrors.Errorf(perrors.KindResolution, op, "NXDOMAIN")
	}

	if lastErr == nil {
		return nil, perrors.Errorf(perrors.KindResolution, op, "no DNS servers configured")
	}
	return nil, perrors.Wrap(perrors.KindResolution, op, fmt.Errorf("all DNS servers failed: %w", lastErr))
}

/* CNAMEs can only point to one thing, thus there's one chain with no branching,
 * ending in the address record(s).
 */
func (r *DNSResolver) followCnameChain(question string, answers []dns.RR) []net.IP {
	cnames := map[string]string{}
	var ips []net.IP
	for _, ans := range answers {
		switch t := ans.(type) {
		case *dns.CNAME:
			cnames[t.Hdr.Name] = t.Target
		case *dns.A:
			ips = append(ips, t.A)
		case *dns.AAAA:
			ips = append(ips, t.AAAA)
		}
	}

	chain := []string{question}
	for cname := question; ; {
		target, found := cnames[cname]
		if !found || len(chain) > len(cnames) {
			break
		}
		chain = append(chain, target)
		cname = target
	}
	if len(ips) > 0 {
		r.Log.V(1).Info("Resolved", "chain", chain, "addrs", ips)
	}

	return ips
}

/* DNSSECResolver refuses names that don't validate.
 * Validation is done by goresolver, which walks RRSIG/DNSKEY/DS up to the root itself.
 * Recursive resolvers are known to strip DNSSEC records, so their AD bit isn't trusted.
 */
type DNSSECResolver struct {
	Log        logr.Logger
	Inner      Resolver
	ResolvConf string

	// Validate checks that fqdn's records of type qtype validate. Nil means goresolver, configured from ResolvConf.
	Validate func(fqdn string, qtype uint16) error
}

func (r *DNSSECResolver) validator() (func(string, uint16) error, error) {
	if r.Validate != nil {
		return r.Validate, nil
	}

	resolver, err := goresolver.NewResolver(r.ResolvConf)
	if err != nil {
		return nil, err
	}
	return func(fqdn string, qtype uint16) error {
		_, err := resolver.StrictNSQuery(fqdn, qtype)
		return err
	}, nil
}

func (r *DNSSECResolver) Resolve(ctx context.Context, host string) ([]net.IP, error) {
	if net.ParseIP(host) != nil {
		return r.Inner.Resolve(ctx, host)
	}

	op := "validate " + host
	validate, err := r.validator()
	if err != nil {
		return nil, perrors.Wrap(perrors.KindResolution, op, err)
	}

	// goresolver takes no context.
	done := make(chan error, 1)
	go func() {
		fqdn := dns.Fqdn(host)
		errA := validate(fqdn, dns.TypeA)
		if errA == nil {
			done <- nil
			return
		}
		// v6-only names have no A set to validate
		r.Log.V(1).Info("A records didn't validate, trying AAAA", "name", host, "error", errA)
		if errAAAA := validate(fqdn, dns.TypeAAAA); errAAAA != nil {
			done <- fmt.Errorf("A: %v; AAAA: %w", errA, errAAAA)
			return
		}
		done <- nil
	}()
	select {
	case <-ctx.Done():
		return nil, perrors.Wrap(perrors.KindResolution, op, ctx.Err())
	case err := <-done:
		if err != nil {
			return nil, perrors.Wrap(perrors.KindResolution, op, fmt.Errorf("dnssec: %w", err))
		}
	}
	r.Log.V(1).Info("DNSSEC validated", "name", host)

	return r.Inner.Resolve(ctx, host)
}
