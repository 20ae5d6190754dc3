//go:build !cgo || netgo

package probes

const DnsResolverName = "Go (pure-Go resolver, reads /etc/hosts and resolv.conf itself)"
