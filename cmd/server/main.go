package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"

	"github.com/technosupport/ts-snapscout/internal/acquire"
	"github.com/technosupport/ts-snapscout/internal/api"
	"github.com/technosupport/ts-snapscout/internal/capability"
	"github.com/technosupport/ts-snapscout/internal/catalog"
	"github.com/technosupport/ts-snapscout/internal/config"
	"github.com/technosupport/ts-snapscout/internal/device"
	"github.com/technosupport/ts-snapscout/internal/events"
	"github.com/technosupport/ts-snapscout/internal/media"
	"github.com/technosupport/ts-snapscout/internal/metrics"
	"github.com/technosupport/ts-snapscout/internal/middleware"
	"github.com/technosupport/ts-snapscout/internal/probe"
	"github.com/technosupport/ts-snapscout/internal/soap"
	"github.com/technosupport/ts-snapscout/internal/tokens"
	"github.com/technosupport/ts-snapscout/internal/urlcache"
)

const serviceName = "ts-snapscout"

func main() {
	cfgPath := flag.String("config", "config/default.yaml", "config file path")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Catalog, with optional operator-supplied vendor records.
	cat := catalog.Builtin()
	loadExtras := func() *catalog.Catalog {
		if cfg.CatalogExtras == "" {
			return cat
		}
		extras, err := catalog.LoadExtras(cfg.CatalogExtras)
		if err != nil {
			log.Printf("catalog extras: %v", err)
			return cat
		}
		return cat.WithExtras(extras)
	}
	activeCat := loadExtras()

	// Metrics on a private registry.
	collector := metrics.NewCollector()

	// Working-URL cache: redis-backed when configured, in-process otherwise.
	var cache urlcache.Store
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		cache = urlcache.NewRedis(rdb, cfg.CacheSize, cfg.CacheTTL())
	} else {
		cache = urlcache.NewMemory(cfg.CacheSize, cfg.CacheTTL())
	}

	// Event bus is optional.
	var publisher events.Publisher = events.Nop{}
	if cfg.NATSURL != "" {
		nc, err := nats.Connect(cfg.NATSURL, nats.Name(serviceName))
		if err != nil {
			log.Printf("nats connect: %v, events disabled", err)
		} else {
			defer nc.Close()
			publisher = events.NewNATSPublisher(nc, cfg.EventRetries)
		}
	}

	// Pipeline components.
	prober := probe.New(cfg.ProbeTimeout())
	prober.Policy.MaxAttempts = cfg.ProbeRetries
	prober.Recorder = collector

	soapClient := soap.NewClient(cfg.SOAPTimeout())
	soapClient.Recorder = collector

	resolver := media.NewResolver(soapClient)

	extractor := acquire.NewFFmpegExtractor()
	extractor.Binary = cfg.FFmpegPath
	extractor.Timeout = cfg.FFmpegTimeout()

	svc := acquire.NewService(activeCat, prober, resolver, extractor)
	svc.Cache = cache
	svc.Events = publisher
	svc.Observer = collector
	svc.SnapshotDir = cfg.SnapshotDir
	svc.Capabilities = func(ctx context.Context, dev device.Device, prof catalog.Profile, cred device.Credential) []string {
		resp := capability.Query(ctx, soapClient, dev, prof, cred)
		return capability.CandidateEndpoints(dev, resp)
	}

	if cfg.CatalogExtras != "" {
		config.Watch(ctx, cfg.CatalogExtras, func() {
			log.Printf("catalog extras changed, reloading")
			svc.SetCatalog(loadExtras())
		})
	}

	// Routing.
	tokenMgr := tokens.NewManager(cfg.AuthSecret, 15*time.Minute)
	bearer := middleware.NewBearerAuth(tokenMgr)
	handler := api.NewSnapshotHandler(svc)

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestLogger)

	r.Get("/healthz", api.Healthz)
	r.Handle("/metrics", collector.Handler())

	r.Group(func(r chi.Router) {
		r.Use(bearer.Middleware)
		handler.Register(r)
	})

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: r,
	}

	go func() {
		log.Printf("%s listening on %s", serviceName, cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
