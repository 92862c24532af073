package main

import (
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/decimal128"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/basekick-labs/arrowcompute/compute"
	"github.com/basekick-labs/arrowcompute/internal/config"
	"github.com/basekick-labs/arrowcompute/internal/logger"
)

// Version is set at build time
var Version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Log.Level, cfg.Log.Format)
	log.Info().Str("version", Version).Msg("Starting arrowcompute...")

	part, err := compute.ParseDatePart(cfg.Extract.Part)
	if err != nil {
		log.Fatal().Err(err).Str("part", cfg.Extract.Part).Msg("Unknown date part")
	}

	opts := compute.SafeCast
	if cfg.Cast.Policy == "strict" {
		opts = compute.StrictCast
	}

	if err := run(cfg, part, opts); err != nil {
		log.Fatal().Err(err).Msg("Run failed")
	}
}

func run(cfg *config.Config, part compute.DatePart, opts compute.CastOptions) error {
	runLog := logger.Get("run")
	mem := memory.NewGoAllocator()

	inType := &arrow.Decimal128Type{Precision: cfg.Cast.InPrecision, Scale: cfg.Cast.InScale}
	outType := &arrow.Decimal128Type{Precision: cfg.Cast.OutPrecision, Scale: cfg.Cast.OutScale}
	tsType := &arrow.TimestampType{Unit: arrow.Millisecond, TimeZone: cfg.Extract.Timezone}

	chunkRows := cfg.Run.Rows / cfg.Run.Chunks
	if chunkRows == 0 {
		chunkRows = 1
	}

	runLog.Info().
		Int("rows", cfg.Run.Rows).
		Int("chunks", cfg.Run.Chunks).
		Int("workers", cfg.Run.Workers).
		Str("cast", fmt.Sprintf("%s -> %s", inType, outType)).
		Str("part", part.String()).
		Msg("Generating sample chunks")

	decimals := make([]*array.Decimal128, cfg.Run.Chunks)
	timestamps := make([]*array.Timestamp, cfg.Run.Chunks)
	for i := range decimals {
		rng := rand.New(rand.NewSource(int64(i)))
		decimals[i] = sampleDecimals(mem, inType, chunkRows, rng)
		timestamps[i] = sampleTimestamps(mem, tsType, chunkRows, rng)
	}
	defer func() {
		for i := range decimals {
			decimals[i].Release()
			timestamps[i].Release()
		}
	}()

	start := time.Now()
	var g errgroup.Group
	g.SetLimit(cfg.Run.Workers)

	castNulls := make([]int, cfg.Run.Chunks)
	for i := range decimals {
		g.Go(func() error {
			out, err := compute.CastDecimal(mem, decimals[i], outType, opts)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", i, err)
			}
			defer out.Release()
			castNulls[i] = out.NullN()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	runLog.Info().
		Dur("elapsed", time.Since(start)).
		Int("overflow_nulls", sum(castNulls)).
		Msg("Decimal cast done")

	start = time.Now()
	partNulls := make([]int, cfg.Run.Chunks)
	for i := range timestamps {
		g.Go(func() error {
			out, err := compute.ExtractDatePart(mem, timestamps[i], part)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", i, err)
			}
			defer out.Release()
			partNulls[i] = out.NullN()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	runLog.Info().
		Dur("elapsed", time.Since(start)).
		Int("nulls", sum(partNulls)).
		Msg("Part extraction done")

	return nil
}

// sampleDecimals generates rows random values that fit the type's
// precision, with a sprinkle of nulls.
func sampleDecimals(mem memory.Allocator, dt *arrow.Decimal128Type, rows int, rng *rand.Rand) *array.Decimal128 {
	b := array.NewDecimal128Builder(mem, dt)
	defer b.Release()
	b.Reserve(rows)

	bound := int64(1)
	for i := int32(0); i < dt.Precision && i < 18; i++ {
		bound *= 10
	}
	for i := 0; i < rows; i++ {
		if rng.Intn(100) == 0 {
			b.AppendNull()
			continue
		}
		b.Append(decimal128.FromI64(rng.Int63n(bound) - bound/2))
	}
	return b.NewDecimal128Array()
}

func sampleTimestamps(mem memory.Allocator, dt *arrow.TimestampType, rows int, rng *rand.Rand) *array.Timestamp {
	b := array.NewTimestampBuilder(mem, dt)
	defer b.Release()
	b.Reserve(rows)

	// Spread over roughly the last decade.
	base := time.Date(2016, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	span := int64(10 * 365 * 24 * time.Hour / time.Millisecond)
	for i := 0; i < rows; i++ {
		if rng.Intn(100) == 0 {
			b.AppendNull()
			continue
		}
		b.Append(arrow.Timestamp(base + rng.Int63n(span)))
	}
	return b.NewTimestampArray()
}

func sum(xs []int) int {
	total := 0
	for _, x := range xs {
		total += x
	}
	return total
}
