package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"agrolink.org/internal/audit"
	"agrolink.org/internal/auth"
	"agrolink.org/internal/bus"
	"agrolink.org/internal/feeds"
	"agrolink.org/internal/httpapi"
	"agrolink.org/internal/notify"
	"agrolink.org/internal/obs"
	"agrolink.org/internal/orders"
	"agrolink.org/internal/sched"
	"agrolink.org/internal/store/pg"
)

var version = "0.3.1"

func envDuration(key string, fallback time.Duration) time.Duration {
	if raw := os.Getenv(key); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil && d > 0 {
			return d
		}
		obs.Warn("ignoring invalid duration", map[string]any{"env": key, "value": raw})
	}
	return fallback
}

func envHour(key string, fallback int) int {
	if raw := os.Getenv(key); raw != "" {
		if h, err := strconv.Atoi(raw); err == nil && h >= 0 && h <= 23 {
			return h
		}
		obs.Warn("ignoring invalid hour", map[string]any{"env": key, "value": raw})
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if raw := os.Getenv(key); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			return v
		}
	}
	return fallback
}

func main() {
	obs.Init()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Order storage: Postgres when a DSN is set and reachable, otherwise
	// the in-memory fallback.
	var (
		store      orders.Store
		readyProbe httpapi.ReadyProbe
		pgStore    *pg.Store
	)
	if dsn := os.Getenv("AGROLINK_PG_DSN"); dsn != "" {
		pgStore = openPostgres(ctx, dsn)
	}
	if pgStore != nil {
		store = pgStore
		readyProbe = httpapi.ReadyProbe{Check: pgStore.Ping}
		obs.Info("using postgres order store", nil)
	} else {
		obs.Warn("using in-memory order store, data will not survive restarts", nil)
		store = orders.NewInMemoryStore()
	}

	eventBus := bus.New()

	var notifier orders.Notifier = notify.LogNotifier{}
	if url := os.Getenv("AGROLINK_NOTIFY_WEBHOOK"); url != "" {
		notifier = notify.NewWebhookNotifier(url)
	}
	orderSvc := orders.NewService(store, eventBus, orders.WithNotifier(notifier))

	// Credential directory, seeded with demo accounts so email login works
	// out of the box.
	directory := auth.NewInMemoryDirectory()
	seedDirectory(directory)

	api := httpapi.New(readyProbe, version, orderSvc, eventBus, directory)

	// External market feeds: an upstream HTTP source when configured, the
	// built-in demo generator otherwise.
	var (
		prices  feeds.PriceProvider
		news    feeds.NewsProvider
		weather feeds.WeatherProvider
	)
	if base := os.Getenv("AGROLINK_FEEDS_URL"); base != "" {
		src := feeds.NewHTTPSource(base)
		prices, news, weather = src, src, src
	} else {
		demo := feeds.NewDemo()
		prices, news, weather = demo, demo, demo
	}

	scheduler := sched.New()
	registerJobs(scheduler, eventBus, orderSvc, prices, news, weather)
	go scheduler.Run(ctx)

	srv := &http.Server{
		Addr:              addr("AGROLINK_ADDR", ":8080"),
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
		// No WriteTimeout: /v1/stream holds the response open for the
		// lifetime of the subscriber.
	}

	obs.Info("starting agrolink-api", map[string]any{
		"version": version,
		"addr":    srv.Addr,
	})

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			obs.Error("listen", map[string]any{"error": err.Error()})
			os.Exit(1)
		}
	}()

	// gRPC health endpoint for infrastructure probes.
	if grpcAddr := os.Getenv("AGROLINK_GRPC_ADDR"); grpcAddr != "" {
		lis, err := net.Listen("tcp", grpcAddr)
		if err != nil {
			obs.Error("grpc listen", map[string]any{"error": err.Error()})
			os.Exit(1)
		}
		health := httpapi.NewGRPCHealthServer(readyProbe)
		go func() {
			if err := health.Serve(ctx, lis); err != nil {
				obs.Error("grpc serve", map[string]any{"error": err.Error()})
			}
		}()
		obs.Info("grpc health listening", map[string]any{"addr": grpcAddr})
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	obs.Info("shutting down", nil)
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)
	if pgStore != nil {
		_ = pgStore.Close()
	}
	obs.Info("stopped", nil)
}

// openPostgres connects, pings and bootstraps the schema. Any failure is
// logged and nil is returned so the caller degrades to the in-memory store.
func openPostgres(ctx context.Context, dsn string) *pg.Store {
	store, err := pg.Open(dsn)
	if err != nil {
		obs.Error("open postgres, falling back to in-memory store", map[string]any{"error": err.Error()})
		return nil
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		obs.Error("postgres unreachable, falling back to in-memory store", map[string]any{"error": err.Error()})
		_ = store.Close()
		return nil
	}
	if err := store.EnsureSchema(ctx); err != nil {
		obs.Error("ensure schema, falling back to in-memory store", map[string]any{"error": err.Error()})
		_ = store.Close()
		return nil
	}
	return store
}

func addr(env, fallback string) string {
	if v := os.Getenv(env); v != "" {
		return v
	}
	return fallback
}

// registerJobs wires the recurring broadcasts: market prices, agri news,
// weather alerts, plus the daily operations report.
func registerJobs(s *sched.Scheduler, eventBus *bus.Bus, orderSvc *orders.Service,
	prices feeds.PriceProvider, news feeds.NewsProvider, weather feeds.WeatherProvider) {

	region := os.Getenv("AGROLINK_REGION")
	if region == "" {
		region = "central-valley"
	}

	jobs := []sched.Job{
		{
			Name:    "market-prices",
			Every:   envDuration("AGROLINK_JOB_PRICES_EVERY", 5*time.Minute),
			Enabled: envBool("AGROLINK_JOB_PRICES", true),
			Run: func(ctx context.Context) error {
				quotes, err := prices.Prices(ctx)
				if err != nil {
					return fmt.Errorf("fetch prices: %w", err)
				}
				eventBus.Publish("price-update", bus.Broadcast, map[string]any{
					"quotes": quotes,
				})
				return nil
			},
		},
		{
			Name:    "agri-news",
			Every:   envDuration("AGROLINK_JOB_NEWS_EVERY", 4*time.Hour),
			Enabled: envBool("AGROLINK_JOB_NEWS", true),
			Run: func(ctx context.Context) error {
				items, err := news.Headlines(ctx)
				if err != nil {
					return fmt.Errorf("fetch headlines: %w", err)
				}
				eventBus.Publish("news-update", bus.Broadcast, map[string]any{
					"items": items,
				})
				return nil
			},
		},
		{
			Name:    "weather-watch",
			Every:   envDuration("AGROLINK_JOB_WEATHER_EVERY", time.Hour),
			Enabled: envBool("AGROLINK_JOB_WEATHER", true),
			Run: func(ctx context.Context) error {
				report, err := weather.Report(ctx, region)
				if err != nil {
					return fmt.Errorf("fetch weather: %w", err)
				}
				if !report.Alert {
					return nil
				}
				eventBus.Publish("weather-alert", bus.Broadcast, report)
				return nil
			},
		},
		{
			Name:    "daily-report",
			AtHour:  envHour("AGROLINK_JOB_REPORT_HOUR", 6),
			Enabled: envBool("AGROLINK_JOB_REPORT", true),
			Run: func(ctx context.Context) error {
				total, err := orderSvc.Count(ctx)
				if err != nil {
					return fmt.Errorf("count orders: %w", err)
				}
				obs.Info("daily operations report", map[string]any{
					"orders_total":       total,
					"stream_connections": eventBus.Len(),
				})
				return audit.LogEvent(ctx, "report.daily", map[string]any{
					"orders_total": total,
				})
			},
		},
	}

	for _, job := range jobs {
		if err := s.Register(job); err != nil {
			obs.Error("register job", map[string]any{"job": job.Name, "error": err.Error()})
		}
	}
}

func seedDirectory(dir *auth.InMemoryDirectory) {
	seeds := []struct {
		name, email, password string
		role                  auth.Role
	}{
		{"Demo Customer", "customer@agrolink.test", "customer-pass", auth.RoleCustomer},
		{"Demo Farmer", "farmer@agrolink.test", "farmer-pass", auth.RoleFarmer},
		{"Demo Admin", "admin@agrolink.test", "admin-pass", auth.RoleAdmin},
		{"Demo Logistics", "logistics@agrolink.test", "logistics-pass", auth.RoleLogistics},
	}
	for _, s := range seeds {
		if _, err := dir.Seed(s.name, s.email, s.password, s.role); err != nil {
			obs.Warn("seed user", map[string]any{"email": s.email, "error": err.Error()})
		}
	}
}
