package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JaceRockman/rulette-server/internal/httpapi"
	"github.com/JaceRockman/rulette-server/internal/hub"
	"github.com/JaceRockman/rulette-server/internal/session"
	"github.com/JaceRockman/rulette-server/internal/store"
)

type config struct {
	bind        string
	port        int
	databaseURL string
	verbose     bool
}

func main() {
	_ = godotenv.Load()
	cfg := &config{}
	cobra.CheckErr(newCmd(cfg).Execute())
}

func newCmd(cfg *config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("RULETTE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "rulette-server",
		Short:         "State-sync server for the Rulette party game.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: RULETTE_BIND)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: RULETTE_PORT)")
	fs.StringVar(&cfg.databaseURL, "database-url", "", "postgres DSN for lobby snapshots; in-memory only when unset (env: RULETTE_DATABASE_URL)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "debug-level logging (env: RULETTE_VERBOSE)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	return cmd
}

func run(parent context.Context, cfg *config) error {
	logger, err := newLogger(cfg.verbose)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	var snaps store.SnapshotStore = store.Noop{}
	if cfg.databaseURL != "" {
		pg, err := store.OpenPostgres(cfg.databaseURL)
		if err != nil {
			return err
		}
		snaps = pg
		logger.Info("snapshot persistence enabled")
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	h := hub.NewHub(ctx, hub.Options{Logger: logger, Snapshots: snaps})
	sessions := session.NewRegistry()

	srv := &http.Server{
		Addr:    net.JoinHostPort(cfg.bind, strconv.Itoa(cfg.port)),
		Handler: httpapi.SetupRoutes(h, sessions, logger),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
