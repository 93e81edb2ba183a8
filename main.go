package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"medinearby/internal/calculator"
	"medinearby/internal/catalog"
	"medinearby/internal/chat"
	"medinearby/internal/config"
	"medinearby/internal/geo"
	"medinearby/internal/jobs"
	"medinearby/internal/logger"
	"medinearby/internal/server"
	"medinearby/internal/stream"
	"medinearby/internal/viewmodel"
)

const importSource = "import"

func main() {
	cfg := config.Load()
	logger.Init("medinearby", cfg.Environment, cfg.LogLevel)

	if cfg.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	merger := catalog.NewMerger(cfg.Sources...)
	engine := calculator.NewEngine(cfg.RadiusKm)
	locator := geo.NewLocator(cfg.Fallback, cfg.LocateTimeout)
	vm := viewmodel.New(merger, engine, locator)

	var upstream []catalog.SourceSpec
	for _, spec := range merger.Specs() {
		if spec.ID == importSource {
			// Filled by workbook uploads; starts empty.
			if err := merger.ApplySnapshot(spec.ID, nil); err != nil {
				log.Fatal().Err(err).Msg("failed to seed import source")
			}
			continue
		}
		upstream = append(upstream, spec)
	}

	var file *stream.File
	var redisClient *redis.Client
	var redisTransport *stream.Redis
	if len(upstream) > 0 {
		var transport stream.Transport
		switch {
		case cfg.Redis.Enabled():
			redisClient = redis.NewClient(&redis.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
			err := redisClient.Ping(pingCtx).Err()
			pingCancel()
			if err != nil {
				log.Fatal().Err(err).Str("addr", cfg.Redis.Addr).Msg("failed to connect to redis")
			}
			redisTransport = stream.NewRedis(redisClient, cfg.Redis.ChannelPrefix)
			transport = redisTransport
			log.Info().Str("addr", cfg.Redis.Addr).Msg("catalog sources bound to redis")
		case cfg.CatalogFile != "":
			file = stream.NewFile(cfg.CatalogFile)
			transport = file
			log.Info().Str("path", cfg.CatalogFile).Msg("catalog sources bound to workbook")
		default:
			mem := stream.NewMemory()
			for _, spec := range upstream {
				mem.Publish(spec.ID, nil)
			}
			transport = mem
			log.Warn().Msg("no upstream catalog configured, sources start empty")
		}

		stop, err := catalog.Bind(ctx, transport, merger, upstream...)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to bind catalog sources")
		}
		defer stop()
	}

	var ipLocator server.IPLocator
	if cfg.GeoIPPath != "" {
		g, err := geo.OpenGeoIP(cfg.GeoIPPath)
		if err != nil {
			log.Error().Err(err).Msg("geoip disabled")
		} else {
			defer g.Close()
			ipLocator = g
		}
	}

	// Resolve once at startup so results are ranked before any client asks.
	go vm.Locate(ctx, nil)

	store := jobs.NewStore()
	srv := server.New(vm, merger, chat.NewResponder(engine), store, ipLocator, server.Options{
		SessionSecret: cfg.SessionSecret,
		LoginUser:     cfg.LoginUser,
		LoginPass:     cfg.LoginPass,
		UploadDir:     cfg.UploadDir,
		ImportSource:  importSource,
	})

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // streams stay open
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Float64("radius_km", cfg.RadiusKm).Msg("server starting")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	for sig := range signals {
		if sig == syscall.SIGHUP {
			if file == nil {
				continue
			}
			if err := file.Reload(); err != nil {
				log.Error().Err(err).Msg("catalog reload failed")
			} else {
				log.Info().Msg("catalog reloaded")
			}
			continue
		}
		break
	}

	log.Info().Msg("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during server shutdown")
	}
	store.Wait()
	if redisTransport != nil {
		if err := redisTransport.Close(); err != nil {
			log.Error().Err(err).Msg("error closing redis transport")
		}
		if err := redisClient.Close(); err != nil {
			log.Error().Err(err).Msg("error closing redis client")
		}
	}
	log.Info().Msg("server stopped")
}
