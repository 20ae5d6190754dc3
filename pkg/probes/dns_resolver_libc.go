//go:build cgo && !netgo

package probes

/* There's no API to ask which resolver net will use, so mirror the linker's choice:
 * libc's getaddrinfo() only when cgo is on and netgo isn't forced. CGO_ENABLED=0 doesn't set netgo,
 * hence the pair of tags.
 */

const DnsResolverName = "CGO (libc getaddrinfo(), honours nsswitch config)"
