package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"

	"github.com/kayushkin/instakit"
	"github.com/kayushkin/instakit/browser"
	"github.com/spf13/cobra"
)

type options struct {
	configPath string
	logLevel   string
	logFormat  string
	headless   bool
}

func main() {
	opts := &options{}
	root := &cobra.Command{
		Use:          "instakit",
		Short:        "Log in to the photo API and call its endpoints",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "instakit.json", "settings file with client_id and redirect_uri")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "debug, info, warn or error")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "text", "text or json")

	root.AddCommand(loginCmd(opts), logoutCmd(opts), statusCmd(opts), tokenCmd(opts),
		requestCmd(opts, http.MethodGet), requestCmd(opts, http.MethodPost), requestCmd(opts, http.MethodDelete))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelWarn
	}
	hopts := &slog.HandlerOptions{Level: lvl}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, hopts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, hopts))
}

// newClient loads configuration and opens the configured token store.
func newClient(cmd *cobra.Command, opts *options) (*instakit.Client, error) {
	cfg, err := instakit.LoadConfig(opts.configPath)
	if err != nil {
		return nil, err
	}
	store, err := instakit.OpenStore(cmd.Context(), cfg)
	if err != nil {
		return nil, err
	}
	var b instakit.Browser
	if opts.headless {
		b = browser.NewHTTP(nil)
	} else {
		b = browser.NewTerminal(os.Stdin, cmd.OutOrStdout())
	}
	return instakit.New(cfg, store, b, instakit.WithLogger(newLogger(opts.logLevel, opts.logFormat))), nil
}

func loginCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login [scope...]",
		Short: "Authenticate in the browser and store the access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd, opts)
			if err != nil {
				return err
			}
			scopes := instakit.ParseScopes(args)
			if len(scopes) == 0 {
				scopes = []instakit.Scope{instakit.ScopeBasic}
			}
			tok, err := client.Login(cmd.Context(), scopes...)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Logged in (token %s)\n", instakit.MaskKey(tok.AccessToken))
			return nil
		},
	}
	cmd.Flags().BoolVar(&opts.headless, "headless", false, "drive the authorize endpoint without a browser")
	return cmd
}

func logoutCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Delete the stored access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd, opts)
			if err != nil {
				return err
			}
			if err := client.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Logged out")
			return nil
		},
	}
}

func statusCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether a token is stored",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd, opts)
			if err != nil {
				return err
			}
			tok, ok := client.AccessToken(cmd.Context())
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "Not logged in.")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in  token=%s\n", instakit.MaskKey(tok))
			return nil
		},
	}
}

func tokenCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Print the stored access token to stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(cmd, opts)
			if err != nil {
				return err
			}
			tok, ok := client.AccessToken(cmd.Context())
			if !ok {
				return fmt.Errorf("not logged in")
			}
			fmt.Fprint(cmd.OutOrStdout(), tok)
			return nil
		},
	}
}

func requestCmd(opts *options, method string) *cobra.Command {
	return &cobra.Command{
		Use:   strings.ToLower(method) + " endpoint [key=value...]",
		Short: "Call an API endpoint with " + method + " and print its data",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := parseParams(args[1:])
			if err != nil {
				return err
			}
			client, err := newClient(cmd, opts)
			if err != nil {
				return err
			}
			var data json.RawMessage
			if _, err := client.Do(cmd.Context(), method, args[0], params, &data); err != nil {
				return err
			}
			if len(data) == 0 {
				return nil
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(data)
		},
	}
}

func parseParams(args []string) (url.Values, error) {
	params := url.Values{}
	for _, a := range args {
		k, v, ok := strings.Cut(a, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("parameter %q: expected key=value", a)
		}
		params.Add(k, v)
	}
	return params, nil
}
