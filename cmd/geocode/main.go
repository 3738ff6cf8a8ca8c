// Command geocode backfills geometry for existing listings. It reads one
// record per line from stdin (or -input), geocodes each address, and writes
// enriched listing JSON to stdout, one object per line. A line may be either
// a raw listing JSON object or a bare address.
//
// Records that cannot be geocoded still come out with valid geometry: the
// configured default coordinates plus a geo_warning, the same policy the
// streaming pipeline applies.
//
// Usage:
//
//	GEOCODER_API_KEY=... go run ./cmd/geocode -input listings.jsonl -delay 500ms
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/brookmere/placepoint/internal/adapter/locationiq"
	"github.com/brookmere/placepoint/internal/config"
	"github.com/brookmere/placepoint/internal/domain"
	"github.com/brookmere/placepoint/internal/observability"
)

func main() {
	input := flag.String("input", "-", "input file, or - for stdin")
	delay := flag.Duration("delay", 500*time.Millisecond, "pause between provider calls")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if !cfg.GeocoderEnabled {
		slog.Error("GEOCODER_API_KEY is required for backfill")
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	domain.SetDefaultCoordinates(domain.Coordinates{Lon: cfg.DefaultLon, Lat: cfg.DefaultLat})

	var in io.Reader = os.Stdin
	if *input != "-" {
		f, err := os.Open(*input)
		if err != nil {
			logger.Error("open input", "error", err)
			os.Exit(1)
		}
		defer f.Close()
		in = f
	}

	metrics := observability.NewMetrics()
	client := locationiq.NewClient(cfg.GeocoderKey, cfg.GeocoderTimeout, metrics, logger).
		WithBaseURL(cfg.GeocoderBaseURL)
	geocoder := locationiq.NewCachedGeocoder(client, cfg.GeocoderCacheSize, metrics)

	if code := run(in, os.Stdout, geocoder, logger, *delay); code != 0 {
		os.Exit(code)
	}
}

func run(in io.Reader, out io.Writer, geocoder domain.Geocoder, logger *slog.Logger, delay time.Duration) int {
	ctx := context.Background()
	enc := json.NewEncoder(out)
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var total, fallbacks, skipped int
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		listing, err := parseLine(line, lineNo)
		if err != nil {
			logger.Warn("skipping line", "line", lineNo, "error", err)
			skipped++
			continue
		}

		enriched := domain.EnrichListing(ctx, listing, geocoder, logger)
		if enriched.GeoSource == domain.GeoSourceFallback {
			fallbacks++
		}
		total++

		if err := enc.Encode(enriched); err != nil {
			logger.Error("write output", "error", err)
			return 1
		}
		if delay > 0 {
			time.Sleep(delay)
		}
	}
	if err := scanner.Err(); err != nil {
		logger.Error("read input", "error", err)
		return 1
	}

	logger.Info("backfill complete", "listings", total, "fallbacks", fallbacks, "skipped", skipped)
	return 0
}

// parseLine accepts either a raw listing JSON object or a bare address. Bare
// addresses get a synthetic line-based ID.
func parseLine(line string, lineNo int) (domain.Listing, error) {
	if strings.HasPrefix(line, "{") {
		return domain.ParseRawListing(domain.RawRecord{Value: []byte(line)})
	}
	return domain.Listing{
		ID:      fmt.Sprintf("line-%d", lineNo),
		Address: line,
	}, nil
}
