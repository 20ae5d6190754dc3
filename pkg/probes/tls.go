package probes

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"net"
	"strconv"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"github.com/mt-inside/http-log/pkg/output"

	perrors "github.com/mt-inside/json-get/pkg/errors"
	"github.com/mt-inside/json-get/pkg/utils"
)

type TLSConnector struct {
	Log    logr.Logger
	Dialer *net.Dialer
}

func NewTLSConnector(log logr.Logger) *TLSConnector {
	return &TLSConnector{
		Log: log,
		Dialer: &net.Dialer{
			KeepAlive: 60 * time.Second,
		},
	}
}

/* Connect dials ip:port and does a TLS handshake, verifying the server's chain against roots and its name against serverName.
 * The returned conn is a *tls.Conn; the caller owns it.
 */
func (c *TLSConnector) Connect(ctx context.Context, roots *x509.CertPool, ip net.IP, port uint16, serverName string) (net.Conn, error) {
	addr := net.JoinHostPort(ip.String(), strconv.FormatUint(uint64(port), 10))

	dialer := *c.Dialer
	// Note: happens "after creating the network connection but before actually dialing."
	dialer.Control = func(network, address string, rawConn syscall.RawConn) error {
		c.Log.V(1).Info("Dialing", "addr", address)
		return nil
	}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, perrors.Wrap(perrors.KindConnect, "dial "+addr, err)
	}
	c.Log.V(1).Info("Connected", "to", conn.RemoteAddr(), "from", conn.LocalAddr())

	if !utils.ServerNameConformant(serverName) {
		c.Log.V(1).Info("Not sending SNI for IP literal; verifying cert's IP SANs", "addr", serverName)
	}

	tlsConn := tls.Client(conn, &tls.Config{
		RootCAs:    roots,
		ServerName: serverName, // SNI, and the name the cert must match
		MinVersion: tls.VersionTLS12,
		NextProtos: []string{"http/1.1"},
		VerifyConnection: func(cs tls.ConnectionState) error {
			// Only reached once the built-in chain and name checks have passed.
			c.Log.V(1).Info("TLS: cert verification finished",
				"version", output.TLSVersionName(cs.Version),
				"cipher", tls.CipherSuiteName(cs.CipherSuite),
				"alpn", cs.NegotiatedProtocol,
			)
			return nil
		},
	})

	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, classifyHandshakeErr(serverName, err)
	}

	return tlsConn, nil
}

func classifyHandshakeErr(serverName string, err error) error {
	op := "handshake with " + serverName

	var (
		verifyErr   *tls.CertificateVerificationError
		unknownErr  x509.UnknownAuthorityError
		hostnameErr x509.HostnameError
		invalidErr  x509.CertificateInvalidError
	)
	switch {
	case errors.As(err, &verifyErr),
		errors.As(err, &unknownErr),
		errors.As(err, &hostnameErr),
		errors.As(err, &invalidErr):
		return perrors.Wrap(perrors.KindCertificate, op, err)
	}

	return perrors.Wrap(perrors.KindHandshake, op, err)
}
