// Command catalog-push reads one sheet of a provider workbook and publishes it
// to Redis as the full snapshot of a catalog source.
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"medinearby/internal/config"
	"medinearby/internal/excel"
	"medinearby/internal/logger"
	"medinearby/internal/stream"
)

func main() {
	cfg := config.Load()
	logger.Init("catalog-push", cfg.Environment, cfg.LogLevel)

	path := flag.String("file", "", "xlsx workbook to read")
	source := flag.String("source", "", "catalog source id to publish")
	sheet := flag.String("sheet", "", "sheet to read (defaults to the source id)")
	flag.Parse()

	if *path == "" || *source == "" {
		flag.Usage()
		os.Exit(2)
	}
	if *sheet == "" {
		*sheet = *source
	}
	if !cfg.Redis.Enabled() {
		log.Fatal().Msg("REDIS_ADDR is not set")
	}

	f, err := excel.OpenFile(*path)
	if err != nil {
		log.Fatal().Err(err).Str("file", *path).Msg("failed to open workbook")
	}
	records, err := excel.ReadSheet(f, *sheet)
	_ = f.Close()
	if err != nil {
		log.Fatal().Err(err).Str("sheet", *sheet).Msg("failed to read sheet")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	transport := stream.NewRedis(client, cfg.Redis.ChannelPrefix)
	defer transport.Close()
	if err := transport.Publish(ctx, *source, records); err != nil {
		log.Fatal().Err(err).Msg("failed to publish snapshot")
	}

	log.Info().Str("source", *source).Str("sheet", *sheet).Int("rows", len(records)).Msg("snapshot published")
}
