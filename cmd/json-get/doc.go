/* json-get fetches one JSON document over HTTPS and prints it canonically: compact, object keys sorted, numbers as sent.
*
* CONNECTION
* * `--server` is resolved (see DNS), and the first IPv4 address is dialled on 443, else the first address of any kind
* * TLS is verified against the system roots plus any `--ca` bundles; the certificate must match `--server`
*   * `--server` is sent as the SNI ServerName, unless it's an IP literal, which RFC 6066 doesn't allow. IP literals are checked against the cert's IP SANs
*   * Only `http/1.1` is offered in ALPN
* * Exactly one request is sent: `GET <path> HTTP/1.1` with `Host` and `Accept: application/json`
*   * Unicode server names are punycoded first, so the Host header and SNI carry the ASCII form
* * The response must carry `Content-Length` (spelled exactly that way, or all lowercase); chunked responses aren't understood
* * If the server hangs up before a whole response head arrives, that's reported but isn't an error
*
* DNS
* * `--resolver system` uses the Go standard library, which is either native Go code or libc's `getaddrinfo()` via CGO, depending on the build. `-v` says which
* * `--resolver dns` queries the resolv.conf servers directly, following CNAME chains; names only in /etc/hosts won't resolve
* * `--dnssec` additionally insists the name validates, walking the signature chain to the root rather than trusting the local resolver
*
* OUTPUT
* * stdout carries the document (or each `--query` result, one per line) and, with `--head`, a report of the exchange before it
* * `--timestamps abs|rel` stamps each step of the `--head` report with when it finished
* * Logs go to stderr; `-v` logs each step, `-vv` adds protocol detail and dumps
*
* EXIT
* * 0 on success, and when the server closed without responding
* * 1 if the fetch failed at any step, including a body that isn't valid JSON
* * 2 for bad flags
 */
package main
