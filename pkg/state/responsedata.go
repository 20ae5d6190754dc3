package state

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net"
	"sort"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/mt-inside/go-usvc"
	"github.com/mt-inside/http-log/pkg/bios"
	"github.com/mt-inside/http-log/pkg/output"
)

const bodyPreviewLen = 72

/* Everything learned during one fetch, filled in step by step.
 * Any section can be missing if the fetch failed before reaching it.
 * The *Time fields mark when each step finished, for --timestamps.
 */
type ResponseData struct {
	StartTime time.Time

	DnsResolver       string
	DnsSystemResolves []net.IP
	DnsDNSSECChecked  bool

	TransportConnTime   time.Time
	TransportRemoteAddr net.Addr
	TransportLocalAddr  net.Addr

	TlsComplete          bool
	TlsAgreedVersion     uint16
	TlsAgreedCipherSuite uint16
	TlsAgreedALPN        string
	TlsServerCerts       []*x509.Certificate

	HttpHeadersTime   time.Time
	HttpNoResponse    bool // server hung up before sending a complete head
	HttpVersion       string
	HttpStatus        string
	HttpReason        string
	HttpHeaders       map[string]string
	HttpContentLength int64

	BodyCompleteTime time.Time
	BodyBytes        []byte
	BodyValue        interface{}
}

func NewResponseData() *ResponseData {
	return &ResponseData{StartTime: time.Now(), HttpContentLength: -1}
}

func (rd *ResponseData) RecordTLS(cs tls.ConnectionState) {
	rd.TlsComplete = cs.HandshakeComplete
	rd.TlsAgreedVersion = cs.Version
	rd.TlsAgreedCipherSuite = cs.CipherSuite
	rd.TlsAgreedALPN = cs.NegotiatedProtocol
	rd.TlsServerCerts = cs.PeerCertificates
}

// Print writes a human-readable report of the exchange to w; section banners go through b.
func (rd *ResponseData) Print(w io.Writer, s output.TtyStyler, b bios.Bios, ep Endpoint, ts output.TimestampType) {
	b.Banner("DNS")
	fmt.Fprintf(w, "Resolver: %s\n", s.Noun(rd.DnsResolver))
	fmt.Fprintf(w, "%s -> %s", s.Addr(ep.Host), s.List(ipStrings(rd.DnsSystemResolves), output.AddrStyle))
	if rd.DnsDNSSECChecked {
		fmt.Fprintf(w, " (dnssec? %s)", s.YesNo(true))
	}
	fmt.Fprintln(w)

	if rd.TransportRemoteAddr != nil {
		b.Banner("TCP")
		fmt.Fprintf(w, "%sConnected %s -> %s\n",
			s.Timestamp(rd.TransportConnTime, ts, &rd.StartTime),
			s.Addr(rd.TransportLocalAddr.String()),
			s.Addr(rd.TransportRemoteAddr.String()),
		)
	}

	if rd.TlsComplete {
		b.Banner("TLS")
		if ep.SendsSNI() {
			fmt.Fprintf(w, "SNI ServerName %s\n", s.Addr(ep.Host))
		} else {
			fmt.Fprintf(w, "Not sending SNI ServerName for IP literal %s\n", s.Addr(ep.Host))
		}
		fmt.Fprintf(w, "%s handshake complete\n", s.Noun(output.TLSVersionName(rd.TlsAgreedVersion)))
		fmt.Fprintf(w, "\tSymmetric cypher suite %s\n", s.Noun(tls.CipherSuiteName(rd.TlsAgreedCipherSuite)))
		fmt.Fprintf(w, "\tALPN proto %s\n", s.OptionalString(rd.TlsAgreedALPN, output.NounStyle))
		if len(rd.TlsServerCerts) > 0 {
			leaf := rd.TlsServerCerts[0]
			fmt.Fprintf(w, "\tServing cert %s, issued by %s, expires %s\n",
				s.Addr(leaf.Subject.String()),
				s.Addr(leaf.Issuer.String()),
				s.Bright(leaf.NotAfter.Format(time.RFC3339)),
			)
		}
	}

	b.Banner("HTTP")
	if rd.HttpNoResponse {
		fmt.Fprintf(w, "%s\n", s.Warn("Server closed the connection without responding"))
		return
	}
	if rd.HttpStatus == "" {
		fmt.Fprintf(w, "%s\n", s.Info("No response head received"))
		return
	}
	code, _ := strconv.Atoi(rd.HttpStatus)
	status := rd.HttpStatus + " " + rd.HttpReason
	fmt.Fprintf(w, "%s%s", s.Timestamp(rd.HttpHeadersTime, ts, &rd.StartTime), s.Noun("HTTP/"+rd.HttpVersion))
	if code < 400 {
		fmt.Fprintf(w, " %s", s.Ok(status))
	} else if code < 500 {
		fmt.Fprintf(w, " %s", s.Warn(status))
	} else {
		fmt.Fprintf(w, " %s", s.Fail(status))
	}
	server, ok := rd.HttpHeaders["Server"]
	if !ok {
		server = rd.HttpHeaders["server"]
	}
	fmt.Fprintf(w, " from %s\n", s.OptionalString(server, output.NounStyle))

	keys := make([]string, 0, len(rd.HttpHeaders))
	for k := range rd.HttpHeaders {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "\t%s = %s\n", s.Addr(k), s.Noun(rd.HttpHeaders[k]))
	}

	if rd.HttpContentLength < 0 {
		return
	}

	b.Banner("Body")
	bodyLen := len(rd.BodyBytes)
	fmt.Fprintf(w, "%sclaimed %s bytes, %s bytes actually read\n",
		s.Timestamp(rd.BodyCompleteTime, ts, &rd.StartTime),
		s.Bright(strconv.FormatInt(rd.HttpContentLength, 10)),
		s.Bright(strconv.Itoa(bodyLen)),
	)
	fmt.Fprintf(w, "Valid utf-8? %s\n", s.YesNo(utf8.Valid(rd.BodyBytes)))

	printLen := usvc.MinInt(bodyLen, bodyPreviewLen)
	fmt.Fprintf(w, "%s", string(rd.BodyBytes[:printLen]))
	if bodyLen > printLen {
		fmt.Fprintf(w, "<%d bytes elided>", bodyLen-printLen)
	}
	if bodyLen > 0 {
		fmt.Fprintln(w)
	}
}

func ipStrings(ips []net.IP) []string {
	ss := make([]string, len(ips))
	for i, ip := range ips {
		ss[i] = ip.String()
	}
	return ss
}
