package probes

import (
	"context"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/go-logr/logr"
	"github.com/mt-inside/http-log/pkg/codec"

	perrors "github.com/mt-inside/json-get/pkg/errors"
)

// SystemTrust is the platform's root store plus any extra PEM bundles.
type SystemTrust struct {
	Log     logr.Logger
	CAPaths []string
}

func (t *SystemTrust) Load(ctx context.Context) (*x509.CertPool, error) {
	const op = "load trust"

	pool, err := x509.SystemCertPool()
	if err != nil {
		if len(t.CAPaths) == 0 {
			return nil, perrors.Wrap(perrors.KindTrustLoad, op, err)
		}
		t.Log.Info("Can't load system roots; only using given CAs", "error", err)
		pool = x509.NewCertPool()
	}

	for _, path := range t.CAPaths {
		if err := ctx.Err(); err != nil {
			return nil, perrors.Wrap(perrors.KindTrustLoad, op, err)
		}

		bs, err := os.ReadFile(path)
		if err != nil {
			return nil, perrors.Wrap(perrors.KindTrustLoad, op, err)
		}
		certs, err := codec.ParseCertificates(bs)
		if err != nil {
			return nil, perrors.Wrap(perrors.KindTrustLoad, op, fmt.Errorf("%s: %w", path, err))
		}
		if len(certs) == 0 {
			return nil, perrors.Wrap(perrors.KindTrustLoad, op, fmt.Errorf("%s: no PEM certificates found", path))
		}
		for _, cert := range certs {
			pool.AddCert(cert)
			t.Log.V(2).Info("Trusting CA", "path", path, "subject", cert.Subject.String())
		}
		t.Log.V(1).Info("Added CA bundle", "path", path, "certs", len(certs))
	}

	return pool, nil
}
