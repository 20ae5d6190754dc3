// Package utils holds small helpers shared across packages.
package utils

import "net"

/* ServerNameConformant says whether sn may be sent as a TLS SNI ServerName.
 * RFC 6066 §3 only allows DNS hostnames: no IP literals, no ports.
 */
func ServerNameConformant(sn string) bool {
	if ip := net.ParseIP(sn); ip != nil {
		return false
	}
	if _, _, err := net.SplitHostPort(sn); err == nil {
		return false
	}
	return sn != ""
}
