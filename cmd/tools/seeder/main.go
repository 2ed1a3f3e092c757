// Command seeder upserts shipping profiles from a YAML catalog into the products table.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/noah-isme/shipquote/internal/catalog"
	"github.com/noah-isme/shipquote/internal/obs"
)

const upsertProductSQL = `
INSERT INTO products (id, sku, title, requires_shipping, product_type, weight_lbs,
                      length_in, width_in, height_in, box_dimensions, shipping_class, ships_alone, updated_at)
VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now())
ON CONFLICT (id) DO UPDATE SET
    sku = EXCLUDED.sku,
    title = EXCLUDED.title,
    requires_shipping = EXCLUDED.requires_shipping,
    product_type = EXCLUDED.product_type,
    weight_lbs = EXCLUDED.weight_lbs,
    length_in = EXCLUDED.length_in,
    width_in = EXCLUDED.width_in,
    height_in = EXCLUDED.height_in,
    box_dimensions = EXCLUDED.box_dimensions,
    shipping_class = EXCLUDED.shipping_class,
    ships_alone = EXCLUDED.ships_alone,
    updated_at = now()
`

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func main() {
	file := flag.String("file", "catalog.yaml", "YAML catalog to import")
	dryRun := flag.Bool("dry-run", false, "parse the file without writing")
	flag.Parse()

	logger := obs.NewLogger("console", "info")
	if err := godotenv.Load(); err != nil {
		logger.Debug().Msg("no .env file found, relying on environment variables")
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		logger.Fatal().Err(err).Str("file", *file).Msg("read catalog")
	}
	profiles, err := catalog.ParseYAML(data)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse catalog")
	}
	if *dryRun {
		logger.Info().Int("products", len(profiles)).Msg("catalog parsed")
		return
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		logger.Fatal().Msg("DATABASE_URL is not set")
	}
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("open database")
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}

	n, err := seedProducts(ctx, db, profiles)
	if err != nil {
		logger.Fatal().Err(err).Int("seeded", n).Msg("seed products")
	}
	logger.Info().Int("products", n).Msg("seeding completed")
}

func seedProducts(ctx context.Context, db execer, profiles []catalog.Profile) (int, error) {
	for i, p := range profiles {
		if _, err := db.ExecContext(ctx, upsertProductSQL, productArgs(p)...); err != nil {
			return i, fmt.Errorf("upsert product %q: %w", productID(p), err)
		}
	}
	return len(profiles), nil
}

// productID falls back to the SKU, then a stable id derived from the title.
func productID(p catalog.Profile) string {
	switch {
	case p.ID != "":
		return p.ID
	case p.SKU != "":
		return p.SKU
	default:
		return uuid.NewSHA1(uuid.NameSpaceOID, []byte(p.Title)).String()
	}
}

func productArgs(p catalog.Profile) []any {
	var length, width, height sql.NullFloat64
	if p.Dimensions != nil && p.Dimensions.Valid() {
		length = sql.NullFloat64{Float64: p.Dimensions.Length, Valid: true}
		width = sql.NullFloat64{Float64: p.Dimensions.Width, Valid: true}
		height = sql.NullFloat64{Float64: p.Dimensions.Height, Valid: true}
	}
	var requires sql.NullBool
	if p.RequiresShipping != nil {
		requires = sql.NullBool{Bool: *p.RequiresShipping, Valid: true}
	}
	return []any{
		productID(p), p.SKU, p.Title, requires, p.ProductType, p.WeightLbs,
		length, width, height, p.BoxDimensions, p.ShippingClass, p.ShipsAlone,
	}
}
