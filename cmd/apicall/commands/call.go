package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ambiyansyah-risyal/apicall"
	"github.com/ambiyansyah-risyal/apicall/internal/printer"
	"github.com/ambiyansyah-risyal/apicall/migration"
)

type callOptions struct {
	method  string
	data    string
	headers []string
	retries int
	token   string
}

func newCallCmd(opts *globalOptions) *cobra.Command {
	co := &callOptions{}

	cmd := &cobra.Command{
		Use:   "call ENDPOINT",
		Short: "Issue a call through the application's client",
		Long: `Issue a call through the same client the application builds: legacy paths
are migrated when the API version flag is on, failures are retried with
exponential backoff, and the JSON response is printed.`,
		Example: `  apicall call /api/agents
  apicall call -X POST -d '{"name":"Ada"}' /api/agents/create`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(cmd, opts, co, args[0])
		},
	}

	cmd.Flags().StringVarP(&co.method, "method", "X", "", "HTTP method (default GET, or POST with --data)")
	cmd.Flags().StringVarP(&co.data, "data", "d", "", "raw JSON request body")
	cmd.Flags().StringArrayVarP(&co.headers, "header", "H", nil, `extra header as "Name: value" (repeatable)`)
	cmd.Flags().IntVar(&co.retries, "retries", -1, "retry budget for this call (default from API_MAX_RETRIES)")
	cmd.Flags().StringVar(&co.token, "token", "", "bearer token for the Authorization header")
	return cmd
}

func runCall(cmd *cobra.Command, opts *globalOptions, co *callOptions, endpoint string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()

	cfg, err := opts.loadConfig()
	if err != nil {
		return printer.ErrorTo(errOut, "Invalid configuration", err.Error(), nil)
	}

	logger, err := apicall.NewLogger(cfg.LogLevel)
	if err != nil {
		return printer.ErrorTo(errOut, "Invalid log level", err.Error(), nil)
	}
	defer func() { _ = logger.Sync() }()

	flags, store, err := cfg.FlagSource(logger)
	if err != nil {
		return printer.ErrorTo(errOut, "Cannot open override store", err.Error(), nil)
	}
	defer closeStore(store)

	migrator, err := migration.New(migration.DefaultTable(), flags, migration.WithLogger(logger))
	if err != nil {
		return printer.ErrorTo(errOut, "Invalid route table", err.Error(), nil)
	}

	clientOpts := []apicall.Option{apicall.WithLogger(logger)}
	if co.token != "" {
		token := co.token
		clientOpts = append(clientOpts, apicall.WithTokenSource(apicall.TokenSourceFunc(func(context.Context) (string, error) {
			return token, nil
		})))
	}
	client := apicall.NewDefault(cfg, migrator, clientOpts...)
	if !client.IsValid() {
		return printer.ErrorTo(errOut, "Invalid client configuration", client.ValidationError().Error(), nil)
	}

	reqOpts, err := co.requestOptions()
	if err != nil {
		return printer.ErrorTo(errOut, "Invalid request", err.Error(), nil)
	}

	resp, err := client.Call(ctx, endpoint, reqOpts)
	if err != nil {
		return reportCallError(errOut, err)
	}

	printer.Success(errOut, "%d %s %s (%d attempt(s))\n", resp.StatusCode, reqOpts.Method, resp.Endpoint, resp.Attempts)
	if resp.Data == nil {
		return nil
	}
	pretty, err := json.MarshalIndent(resp.Data, "", "  ")
	if err != nil {
		return printer.ErrorTo(errOut, "Cannot render response", err.Error(), nil)
	}
	printer.Info(out, "%s\n", pretty)
	return nil
}

func (co *callOptions) requestOptions() (apicall.RequestOptions, error) {
	reqOpts := apicall.RequestOptions{Method: strings.ToUpper(co.method)}
	if reqOpts.Method == "" {
		reqOpts.Method = http.MethodGet
		if co.data != "" {
			reqOpts.Method = http.MethodPost
		}
	}
	if co.data != "" {
		if !json.Valid([]byte(co.data)) {
			return reqOpts, errors.New("--data is not valid JSON")
		}
		reqOpts.Body = json.RawMessage(co.data)
	}
	for _, h := range co.headers {
		name, value, ok := strings.Cut(h, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return reqOpts, fmt.Errorf("header %q is not in \"Name: value\" form", h)
		}
		reqOpts.SetHeader(strings.TrimSpace(name), strings.TrimSpace(value))
	}
	if co.retries >= 0 {
		reqOpts.MaxRetries = apicall.Int(co.retries)
	}
	return reqOpts, nil
}

func reportCallError(w io.Writer, err error) error {
	var clientErr *apicall.ClientError
	if !errors.As(err, &clientErr) {
		return printer.ErrorTo(w, "Request failed", err.Error(), nil)
	}

	var suggestions []string
	switch clientErr.Type {
	case apicall.ErrorTypeNetwork:
		suggestions = []string{"Check that NEXT_PUBLIC_API_URL points at a running API."}
	case apicall.ErrorTypeHTTP:
		if clientErr.StatusCode == http.StatusNotFound {
			suggestions = []string{
				"Run `apicall migrate " + clientErr.Endpoint + "` to see the versioned path.",
				"Run `apicall flag get` to check whether the versioned API is enabled.",
			}
		}
	case apicall.ErrorTypeCircuitOpen:
		suggestions = []string{"Wait for the circuit breaker to recover and retry."}
	}
	return printer.ErrorTo(w, fmt.Sprintf("Request failed: %s error", clientErr.Type), clientErr.DebugInfo(), suggestions)
}
