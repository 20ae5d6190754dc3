package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/davecgh/go-spew/spew"
	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mt-inside/json-get/pkg/client"
	"github.com/mt-inside/json-get/pkg/codec"
	perrors "github.com/mt-inside/json-get/pkg/errors"
	"github.com/mt-inside/json-get/pkg/output"
	"github.com/mt-inside/json-get/pkg/probes"
	"github.com/mt-inside/json-get/pkg/state"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

// Tests point this at a local server; the real thing always talks to 443.
var portOverride uint16

func init() {
	spew.Config.DisableMethods = true
	spew.Config.DisablePointerMethods = true
}

// usageError is bad configuration, as opposed to a failed fetch.
type usageError struct{ error }

func (e usageError) Unwrap() error { return e.error }

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	viper.Reset()
	viper.SetEnvPrefix("JSON_GET")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	cmd := &cobra.Command{
		Use:   "json-get",
		Short: "Fetch one JSON document over HTTPS and print it canonically",
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.NoArgs(cmd, args); err != nil {
				return usageError{err}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return appMain(cmd.Context(), stdout, stderr)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError{err}
	})

	cmd.Flags().StringP("server", "s", "localhost", "Server to fetch from; unicode names are punycoded")
	cmd.Flags().StringP("path", "p", "/", "HTTP path to request, starting with /")
	cmd.Flags().StringSliceP("ca", "C", nil, "Extra PEM CA bundle(s) to trust, on top of the system roots")
	cmd.Flags().String("resolver", state.ResolverSystem, "Name resolution: system (Go or libc, per build) or dns (query resolv.conf servers directly)")
	cmd.Flags().Bool("dnssec", false, "Refuse names which don't validate under DNSSEC")
	cmd.Flags().DurationP("timeout", "t", 0, "Give up after this long; 0 waits forever")
	cmd.Flags().Int64("max-body", state.DefaultMaxBodySize, "Largest Content-Length that will be read")
	cmd.Flags().StringP("query", "q", "", "jq expression to run over the document; each result is printed on its own line")
	cmd.Flags().Bool("pretty", false, "Indent the output")
	cmd.Flags().Bool("head", false, "Print a report of the connection and response head")
	cmd.Flags().Bool("raw-on-error", false, "Print the raw body if it isn't valid JSON")
	cmd.Flags().String("timestamps", "none", "Timestamp each step of the --head report: none, abs, or rel")
	cmd.Flags().CountP("verbose", "v", "Log more; repeat for even more")
	for _, name := range []string{"server", "path", "ca", "resolver", "dnssec", "timeout", "max-body", "query", "pretty", "head", "raw-on-error", "timestamps", "verbose"} {
		viper.BindPFlag(name, cmd.Flags().Lookup(name))
	}

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}

	fmt.Fprintf(stderr, "%s %v\n", output.NewStyler(stderr).Fail("Error:"), err)
	var ue usageError
	if errors.As(err, &ue) {
		return exitUsage
	}
	return exitFailure
}

func appMain(ctx context.Context, stdout, stderr io.Writer) error {
	requestData, err := state.RequestDataFromViper()
	if err != nil {
		return usageError{err}
	}
	ep := requestData.Endpoint
	if portOverride != 0 {
		ep.Port = portOverride
	}

	var query *codec.Query
	if requestData.Query != "" {
		query, err = codec.CompileQuery(requestData.Query)
		if err != nil {
			return usageError{err}
		}
	}

	log, err := output.NewLogger(viper.GetInt("verbose"), output.IsTerminal(stderr))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if requestData.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, requestData.Timeout)
		defer cancel()
	}

	resolver, resolverName, err := buildResolver(log, requestData)
	if err != nil {
		return err
	}

	dec := codec.NewJSON()
	if requestData.Pretty {
		dec.Indent = "  "
	}
	c := client.New(
		log,
		resolver,
		&probes.SystemTrust{Log: log, CAPaths: requestData.TlsServingCAPaths},
		probes.NewTLSConnector(log),
		dec,
	)
	c.MaxBodySize = requestData.MaxBodySize

	responseData := state.NewResponseData()
	responseData.DnsResolver = resolverName
	responseData.DnsDNSSECChecked = requestData.DnsDNSSEC

	log.V(1).Info("Fetching", "url", ep.String())
	err = c.Fetch(ctx, ep, responseData)

	if requestData.PrintHead {
		s := output.NewStyler(stdout)
		responseData.Print(stdout, s, output.NewBios(s), ep, requestData.Timestamps)
		fmt.Fprintln(stdout)
	}

	if err != nil {
		if requestData.RawOnError && perrors.Is(err, perrors.KindJSONSyntax) {
			stdout.Write(responseData.BodyBytes)
			fmt.Fprintln(stdout)
		}
		return err
	}

	if responseData.HttpNoResponse {
		output.NewBios(output.NewStyler(stderr)).PrintWarn("server closed the connection without responding")
		return nil
	}

	return emit(ctx, stdout, dec, query, responseData.BodyValue)
}

func buildResolver(log logr.Logger, requestData *state.RequestData) (client.Resolver, string, error) {
	var (
		resolver probes.Resolver
		name     string
	)
	switch requestData.DnsResolver {
	case state.ResolverDNS:
		r, err := probes.NewDNSResolver(log, probes.ResolvConfPath)
		if err != nil {
			return nil, "", err
		}
		resolver, name = r, r.Name()
	default:
		r := probes.NewSystemResolver(log)
		resolver, name = r, r.Name()
	}

	if requestData.DnsDNSSEC {
		resolver = &probes.DNSSECResolver{Log: log, Inner: resolver, ResolvConf: probes.ResolvConfPath}
	}

	return resolver, name, nil
}

func emit(ctx context.Context, w io.Writer, enc *codec.JSON, query *codec.Query, v interface{}) error {
	vs := []interface{}{v}
	if query != nil {
		var err error
		vs, err = query.Run(ctx, v)
		if err != nil {
			return err
		}
	}

	for _, v := range vs {
		bs, err := enc.Encode(v)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(bs))
	}
	return nil
}
