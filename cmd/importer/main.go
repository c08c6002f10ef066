// Package main provides the UrbanIndex POI importer. It fetches OpenStreetMap
// points of interest for a city from the Overpass API and upserts them into
// the Postgres POI store, which the scoring engine and heatmap workers read.
package main

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/urbanindex/urbanindex/internal/category"
	"github.com/urbanindex/urbanindex/internal/city"
	"github.com/urbanindex/urbanindex/internal/database"
	"github.com/urbanindex/urbanindex/internal/poi"
	"github.com/urbanindex/urbanindex/internal/poi/overpass"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "urbanindex-importer"

	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	slug := os.Getenv("IMPORT_CITY")
	if slug == "" {
		log.Fatal().Msg("IMPORT_CITY is required (e.g. IMPORT_CITY=amsterdam)")
	}

	timeout := 30 * time.Minute
	if raw := os.Getenv("IMPORT_TIMEOUT"); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			timeout = d
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Connect to database
	dbConfig := database.ConfigFromEnv()
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	var registry city.Registry = city.NewPostgresRegistry(pool)
	target, err := registry.Get(ctx, slug)
	if err != nil {
		// Fall back to the static seed table so a fresh database can be
		// bootstrapped.
		target, err = city.NewStaticRegistry().Get(ctx, slug)
		if err != nil {
			log.Fatal().Err(err).Str("city", slug).Msg("unknown city")
		}
	}

	client := overpass.NewClient(overpass.ClientConfig{
		BaseURL: os.Getenv("OVERPASS_BASE_URL"),
	})
	store := poi.NewPostgresSource(pool)

	log.Info().
		Str("city", target.Slug).
		Str("build_time", BuildTime).
		Msg("starting POI import")

	total := 0
	// One Overpass query per category keeps individual requests small enough
	// for the public interpreter's rate limits.
	for _, def := range category.All() {
		pois, err := client.FetchRegion(ctx, target.Bounds, def.Tags)
		if err != nil {
			log.Fatal().Err(err).
				Str("category", def.ID).
				Msg("overpass fetch failed")
		}

		n, err := store.UpsertBatch(ctx, pois)
		if err != nil {
			log.Fatal().Err(err).
				Str("category", def.ID).
				Msg("poi upsert failed")
		}

		log.Info().
			Str("category", def.ID).
			Int("fetched", len(pois)).
			Int("upserted", n).
			Msg("category imported")
		total += n
	}

	log.Info().
		Str("city", target.Slug).
		Int("total", total).
		Msg("POI import complete")
}
