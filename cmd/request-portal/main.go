package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dtorres47/request-portal/internal/accounts"
	"github.com/dtorres47/request-portal/internal/artifacts"
	"github.com/dtorres47/request-portal/internal/buildinfo"
	"github.com/dtorres47/request-portal/internal/catalog"
	"github.com/dtorres47/request-portal/internal/config"
	"github.com/dtorres47/request-portal/internal/kv"
	"github.com/dtorres47/request-portal/internal/messages"
	"github.com/dtorres47/request-portal/internal/model"
	"github.com/dtorres47/request-portal/internal/poller"
	"github.com/dtorres47/request-portal/internal/requests"
	"github.com/dtorres47/request-portal/internal/session"
	"github.com/dtorres47/request-portal/internal/state"
	"github.com/dtorres47/request-portal/internal/visitors"
	"github.com/dtorres47/request-portal/internal/ws"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

var (
	showVersion = flag.Bool("version", false, "print version and exit")
	envFile     = flag.String("env", ".env", "optional .env file to load")
)

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Println(buildinfo.String())
		os.Exit(0)
	}

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatal(err)
	}
	if cfg.AdminEmail == "" && cfg.AdminCode == "" {
		log.Println("no ADMIN_EMAIL or ADMIN_CODE set; the admin dashboard is unreachable")
	}

	// Record store & the admin gate
	base, err := kv.Open(cfg.Backend, cfg.DataDir)
	if err != nil {
		log.Fatalf("open %s store: %v", cfg.Backend, err)
	}
	defer base.Close()
	store := kv.WithQuota(base, cfg.QuotaBytes)

	gate, err := session.NewGate(cfg.AdminEmail, cfg.AdminCode)
	if err != nil {
		log.Fatal(err)
	}
	sessions := session.NewManager(gate, cfg.ConfirmDuration)
	sessions.IdleTimeout = cfg.SessionIdle
	defer sessions.Shutdown()

	// Domain services
	ids := &model.IDSource{}
	blobs := artifacts.NewRegistry()
	logs := visitors.NewLog(store, ids)
	msgs := messages.NewService(store, ids)
	accts := accounts.NewService(store, logs, cfg.AdminEmail, cfg.GuestDomain)
	reqs := requests.NewService(store, msgs, logs, ids)
	views := catalog.New(store, blobs)

	// Admin live refresh
	hub := ws.NewHub()
	defer hub.Close()
	poll := poller.New(store, cfg.PollInterval, func(snap poller.Snapshot, changed []string) {
		hub.Broadcast(state.SnapshotMsg(snap, changed))
	})
	hub.OnConnect = func() (ws.Msg, bool) {
		return state.SnapshotMsg(poll.Snapshot(), poller.Keys), true
	}
	st := state.NewService(store, poll, hub)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.RedirectSlashes)
	r.Use(sessions.Middleware)

	// Home page
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<h3>Request Portal</h3>
<p>Connected admin dashboards: %d</p>
<p>Open sessions: %d</p>
<ul>
  <li><a href="/api/catalog/games" target="_blank">Available games</a></li>
  <li><a href="/api/catalog/fixes" target="_blank">Online fixes</a></li>
  <li><a href="/api/session" target="_blank">Session</a></li>
</ul>`, hub.ClientsCount(), sessions.Count())
	})

	// API routes
	sessions.RegisterRoutes(r)
	accts.RegisterRoutes(r)
	msgs.RegisterRoutes(r, accts)
	reqs.RegisterRoutes(r, accts, sessions.Confirm)
	views.RegisterRoutes(r, accts)
	blobs.RegisterRoutes(r)

	// Admin dashboard + WS
	r.Group(func(r chi.Router) {
		r.Use(sessions.RequireAdmin)
		reqs.RegisterAdminRoutes(r, blobs)
		msgs.RegisterAdminRoutes(r)
		logs.RegisterAdminRoutes(r)
		st.RegisterAdminRoutes(r)
		r.Get("/ws", hub.ServeHTTP)
	})

	r.Get("/api/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","service":"request-portal","backend":%q}`, cfg.Backend)
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go poll.Run(ctx)
	go sessions.Run(ctx, time.Minute)

	srv := &http.Server{Addr: cfg.Addr(), Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Println("shutdown:", err)
		}
	}()

	log.Printf("%s listening on http://localhost%v (%s store in %s, staleness bound %s)",
		buildinfo.String(), srv.Addr, cfg.Backend, cfg.DataDir, poll.StalenessBound())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}
