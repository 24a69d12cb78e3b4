package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"
	"github.com/pkg/errors"
	"github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"

	"potledger/internal/config"
	"potledger/internal/custody"
	"potledger/internal/handlers"
	"potledger/internal/logging"
	"potledger/internal/models"
	"potledger/internal/services"
	"potledger/internal/store"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the pool HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := cmd.Flags().GetString("config")
			if err != nil {
				return err
			}
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			return serve(cfg)
		},
	}
}

func serve(cfg *config.Config) error {
	// 1. Logging
	lg := logging.Init("potledger", cfg.Log)
	defer lg.Close()

	// 2. Persistent state and the custody ledger
	st, err := store.Open(cfg.Store.Driver, cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	ledger := custody.NewLedger()
	for _, g := range cfg.Genesis {
		if err := ledger.Fund(models.PrincipalID(g.Account), g.Balance); err != nil {
			return errors.Wrapf(err, "genesis %s", g.Account)
		}
	}

	// 3. The pool service
	registry := metrics.NewRegistry()
	poolMetrics := services.NewMetrics(registry)
	accounts := cfg.Pool.Accounts()
	svc, err := services.NewPoolService(st, ledger, services.Options{
		Accounts: accounts,
		Fee:      cfg.Pool.FeePolicy(),
		Asset:    cfg.Pool.Asset,
		Metrics:  poolMetrics,
	})
	if err != nil {
		return err
	}
	if svc.Initialized() {
		if err := reseedVaults(ledger, svc, accounts); err != nil {
			return err
		}
	} else {
		if cfg.Pool.Admin == "" {
			return errors.New("pool is not initialized and pool.admin is not set")
		}
		if err := svc.Initialize(models.PrincipalID(cfg.Pool.Admin)); err != nil {
			return err
		}
	}

	// 4. Router
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(gin.Recovery(), handlers.RequestID())

	h := handlers.NewHTTPHandler(svc, handlers.NewTokenAuthenticator(cfg.Principals), registry, cfg.Pool.Asset, cfg.Pool.Decimals)
	h.RegisterPublicRoutes(r)
	callerRoutes := r.Group("/")
	callerRoutes.Use(h.CallerMiddleware())
	h.RegisterCallerRoutes(callerRoutes)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 5. Periodic metrics report
	if every := cfg.Metrics.ReportInterval.Duration; every > 0 {
		go poolMetrics.Report(ctx, every)
	}

	// 6. Run the server until a signal arrives
	srv := &http.Server{Addr: cfg.Server.Listen, Handler: r}
	errc := make(chan error, 1)
	go func() {
		logger.Infof("Server starting on %s", cfg.Server.Listen)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return errors.Wrap(err, "run server")
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err = srv.Shutdown(shutdownCtx)
	for _, a := range ledger.Accounts() {
		logger.Infof("custody: %s holds %d", a.Name, a.Balance)
	}
	return err
}

// reseedVaults funds the vaults with what the persisted state says they hold
// on behalf of depositors and winners. The custody ledger lives in memory, so
// after a restart only those obligations can be restored.
func reseedVaults(ledger *custody.Ledger, svc *services.PoolService, accounts services.Accounts) error {
	state, err := svc.Snapshot()
	if err != nil {
		return err
	}
	owed, err := state.Winners.Outstanding()
	if err != nil {
		return err
	}
	if err := ledger.Fund(accounts.RoundVault, state.Round.Total); err != nil {
		return errors.Wrap(err, "reseed round vault")
	}
	if err := ledger.Fund(accounts.PrizeVault, owed); err != nil {
		return errors.Wrap(err, "reseed prize vault")
	}
	logger.Infof("Reseeded vaults: round %d, prize %d", state.Round.Total, owed)
	return nil
}
