// Package main is the meshchat command: account registration and the
// interactive chat node.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opd-ai/meshchat"
	"github.com/opd-ai/meshchat/auth"
	"github.com/opd-ai/meshchat/console"
	"github.com/opd-ai/meshchat/transport"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

var (
	configFlag = &cli.StringFlag{
		Name:    "config",
		Usage:   "TOML config file",
		EnvVars: []string{"MESHCHAT_CONFIG"},
	}
	dataDirFlag = &cli.StringFlag{
		Name:  "datadir",
		Usage: "directory for credentials and saved state",
		Value: "meshchat-data",
	}
	listenFlag = &cli.StringFlag{
		Name:  "listen",
		Usage: "TCP address to accept links on (empty to only dial)",
		Value: ":7400",
	}
	peerFlag = &cli.StringSliceFlag{
		Name:  "peer",
		Usage: "address of a peer to keep a link to (repeatable)",
	}
	storeFlag = &cli.StringFlag{
		Name:  "store",
		Usage: "state backend: json or leveldb",
		Value: string(meshchat.StoreJSON),
	}
	logLevelFlag = &cli.StringFlag{
		Name:  "log-level",
		Usage: "log level (debug, info, warn, error)",
		Value: "info",
	}
	logFileFlag = &cli.StringFlag{
		Name:  "log-file",
		Usage: "write logs to this file, rotated by size",
	}
	metricsAddrFlag = &cli.StringFlag{
		Name:  "metrics-addr",
		Usage: "serve Prometheus metrics on this address",
	}
	accountFlag = &cli.StringFlag{
		Name:     "account",
		Usage:    "account id",
		Required: true,
	}
	nameFlag = &cli.StringFlag{
		Name:  "name",
		Usage: "display name (defaults to the account id)",
	}
)

func newApp() *cli.App {
	return &cli.App{
		Name:  "meshchat",
		Usage: "peer-to-peer chat over a broadcast mesh",
		Flags: []cli.Flag{
			configFlag, dataDirFlag, listenFlag, peerFlag, storeFlag,
			logLevelFlag, logFileFlag, metricsAddrFlag,
		},
		Commands: []*cli.Command{
			{
				Name:   "register",
				Usage:  "create an account",
				Flags:  []cli.Flag{accountFlag, nameFlag},
				Action: register,
			},
			{
				Name:   "run",
				Usage:  "log in and start the chat console",
				Flags:  []cli.Flag{accountFlag},
				Action: run,
			},
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func register(ctx *cli.Context) error {
	opts, err := buildOptions(ctx)
	if err != nil {
		return err
	}

	prompter := console.NewPrompter(true)
	defer prompter.Close()

	secret, err := prompter.PasswordPrompt("Password: ")
	if err != nil {
		return err
	}
	confirm, err := prompter.PasswordPrompt("Repeat password: ")
	if err != nil {
		return err
	}
	if secret != confirm {
		return errors.New("passwords do not match")
	}

	name := ctx.String(nameFlag.Name)
	if name == "" {
		name = ctx.String(accountFlag.Name)
	}
	profile, err := registerAccount(opts, ctx.String(accountFlag.Name), name, secret)
	if err != nil {
		return err
	}
	fmt.Printf("registered %s (%s)\n", profile.AccountID, profile.DisplayName)
	return nil
}

func registerAccount(opts *meshchat.Options, accountID, name, secret string) (*auth.Profile, error) {
	creds, err := auth.Open(opts.CredentialsPath())
	if err != nil {
		return nil, err
	}
	return creds.Register(accountID, name, secret)
}

func run(ctx *cli.Context) error {
	opts, err := buildOptions(ctx)
	if err != nil {
		return err
	}

	closeLog, err := setupLogging(opts.LogLevel, opts.LogFile)
	if err != nil {
		return err
	}
	defer closeLog()

	prompter := console.NewPrompter(true)
	defer prompter.Close()

	secret, err := prompter.PasswordPrompt("Password: ")
	if err != nil {
		return err
	}
	creds, err := auth.Open(opts.CredentialsPath())
	if err != nil {
		return err
	}
	profile, err := creds.Authenticate(ctx.String(accountFlag.Name), secret)
	if err != nil {
		return err
	}

	st, err := opts.OpenStore()
	if err != nil {
		return err
	}
	mesh, err := transport.NewMeshTransport(opts.ListenAddr)
	if err != nil {
		st.Close()
		return err
	}

	con := console.New(prompter, os.Stdout)
	con.SetPrompt(profile.DisplayName + "> ")
	metrics := meshchat.NewMetrics()

	node, err := meshchat.NewNode(opts, meshchat.SessionConfig{
		Profile:   *profile,
		Transport: mesh,
		Store:     st,
		Notifier:  con,
		Metrics:   metrics,
	})
	if err != nil {
		mesh.Close()
		st.Close()
		return err
	}
	node.Start()
	defer node.Stop()

	if opts.MetricsAddr != "" {
		server := serveMetrics(opts.MetricsAddr, metrics)
		defer shutdownMetrics(server)
	}

	logrus.WithFields(logrus.Fields{
		"function":   "run",
		"account_id": profile.AccountID,
		"network_id": mesh.LocalID(),
		"listen":     opts.ListenAddr,
	}).Info("Node running")

	runCtx, stop := signal.NotifyContext(ctx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("logged in as %s (%s); type help for commands\n", profile.DisplayName, profile.AccountID)
	return con.Run(runCtx, node)
}

func serveMetrics(addr string, metrics *meshchat.Metrics) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithFields(logrus.Fields{
				"function": "serveMetrics",
				"addr":     addr,
				"error":    err.Error(),
			}).Warn("Metrics server stopped")
		}
	}()
	return server
}

func shutdownMetrics(server *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(ctx)
}
