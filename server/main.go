package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"tidewar/server/auth"
	"tidewar/server/config"
	"tidewar/server/meta"
	"tidewar/server/metrics"
	"tidewar/server/srv"
	"tidewar/shared/game/types"
	"tidewar/shared/logging"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		logging.Fatal("load config", err, nil)
	}
	if cfg.Debug {
		logging.SetDebug(true)
	}

	db, err := meta.Open(cfg.DBPath)
	if err != nil {
		logging.Fatal("open database", err, logging.Fields{"path": cfg.DBPath})
	}
	authSvc, err := auth.New(db, cfg.DataDir, cfg.SessionTTL(), cfg.MatchTokenTTL())
	if err != nil {
		logging.Fatal("init auth", err, nil)
	}

	catalog := types.DefaultCatalog()
	if cfg.CatalogPath != "" {
		if catalog, err = types.LoadCatalog(cfg.CatalogPath); err != nil {
			logging.Fatal("load catalog", err, logging.Fields{"path": cfg.CatalogPath})
		}
	}
	svc, err := meta.NewService(db, catalog, types.DefaultRules())
	if err != nil {
		logging.Fatal("init meta service", err, nil)
	}

	hub := srv.NewHub(authSvc, srv.Options{
		QueueTimeout: cfg.QueueTimeout(),
		MsgRate:      rate.Limit(cfg.MsgRate),
		MsgBurst:     cfg.MsgBurst,
	})

	r := mux.NewRouter()
	r.HandleFunc("/ws", hub.WSHandler())
	r.HandleFunc("/auth/register", authSvc.HandleRegister).Methods(http.MethodPost)
	r.HandleFunc("/auth/login", authSvc.HandleLogin).Methods(http.MethodPost)
	r.Handle("/auth/me", authSvc.RequireAuth(http.HandlerFunc(authSvc.HandleMe))).Methods(http.MethodGet)
	r.PathPrefix("/rpc/").Handler(meta.NewHandler(svc).Router(authSvc.GinRequired()))
	r.HandleFunc("/metrics", metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok")) })

	s := &http.Server{
		Addr:         cfg.Address,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return hub.Run(ctx) })
	g.Go(func() error {
		logging.Info("server listening", logging.Fields{"addr": cfg.Address})
		if err := s.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return s.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		logging.Fatal("server stopped", err, nil)
	}
	logging.Info("server stopped", nil)
}
