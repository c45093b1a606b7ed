package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/do-one-thing/internal/api"
	"github.com/Veraticus/do-one-thing/internal/blocker"
	"github.com/Veraticus/do-one-thing/internal/certs"
	"github.com/Veraticus/do-one-thing/internal/config"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the local API used by the browser extension",
		Long: `Serve the decision engine over a local JSON HTTP API.

The browser extension reports navigations to this server and redirects the tab
when the response carries a redirectTo address. The API listens on loopback
only by default.`,
		RunE: runServe,
	}

	cmd.Flags().String("addr", "", "listen address (default: 127.0.0.1:7878)")
	cmd.Flags().String("blocked-page", "", "address of the page shown for blocked navigations")
	cmd.Flags().Bool("tls", false, "serve HTTPS with a self-signed loopback certificate")

	_ = viper.BindPFlag("server.addr", cmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("blocker.page", cmd.Flags().Lookup("blocked-page"))
	_ = viper.BindPFlag("server.tls", cmd.Flags().Lookup("tls"))

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	if a.aiErr != nil {
		slog.Warn("AI classification unavailable, unlisted pages will be allowed", "reason", userMessage(a.aiErr))
	}

	// Redirects are carried out by the extension from the navigate response.
	nav := blocker.New(a.engine, a.sessions, nil, viper.GetString("blocker.page"), slog.Default())

	server := api.NewServer(viper.GetString("server.addr"), version, api.Deps{
		Decider:   a.engine,
		Sessions:  a.sessions,
		Navigator: nav,
		State:     a.state,
		Cache:     a.cache,
	}, slog.Default())

	if viper.GetBool("server.tls") {
		certManager := certs.NewFileManager(config.ExpandPath(viper.GetString("server.cert_dir")))
		tlsConfig, err := certManager.TLSConfig()
		if err != nil {
			return fmt.Errorf("failed to prepare TLS certificate: %w", err)
		}
		server.SetTLSConfig(tlsConfig)
		slog.Info("Serving HTTPS; trust this certificate in the browser", "cert", certManager.CertFile())
	}

	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	slog.Info("API server stopped")
	return nil
}
