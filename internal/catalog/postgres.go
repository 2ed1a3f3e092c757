package catalog

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

type rowsQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Postgres resolves profiles from the products table.
type Postgres struct {
	db     rowsQuerier
	logger zerolog.Logger
}

// NewPostgres wraps a pgx pool (or any compatible querier).
func NewPostgres(db rowsQuerier, logger zerolog.Logger) *Postgres {
	return &Postgres{db: db, logger: logger}
}

const resolveProfilesSQL = `
SELECT id,
       COALESCE(sku, ''),
       COALESCE(title, ''),
       requires_shipping,
       COALESCE(product_type, ''),
       COALESCE(weight_lbs, 0),
       length_in,
       width_in,
       height_in,
       COALESCE(box_dimensions, ''),
       COALESCE(shipping_class, ''),
       COALESCE(ships_alone, false)
FROM products
WHERE sku = ANY($1::text[])
   OR id = ANY($2::text[])
   OR title = ANY($3::text[])
`

// Resolve fetches every product whose sku, id or title is among the supplied values.
func (p *Postgres) Resolve(ctx context.Context, skus, ids, titles []string) ([]Profile, error) {
	if len(skus)+len(ids)+len(titles) == 0 {
		return nil, nil
	}
	rows, err := p.db.Query(ctx, resolveProfilesSQL, nonNil(skus), nonNil(ids), nonNil(titles))
	if err != nil {
		p.logger.Error().Err(err).Msg("catalog_resolve_query")
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var out []Profile
	for rows.Next() {
		var r profileRow
		if err := rows.Scan(&r.ID, &r.SKU, &r.Title, &r.RequiresShipping, &r.ProductType, &r.WeightLbs,
			&r.Length, &r.Width, &r.Height, &r.BoxDimensions, &r.ShippingClass, &r.ShipsAlone); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, r.profile())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate products: %w", err)
	}
	p.logger.Debug().Int("requested", len(skus)+len(ids)+len(titles)).Int("resolved", len(out)).Msg("catalog_resolve")
	return out, nil
}

type profileRow struct {
	ID               string
	SKU              string
	Title            string
	RequiresShipping *bool
	ProductType      string
	WeightLbs        float64
	Length           *float64
	Width            *float64
	Height           *float64
	BoxDimensions    string
	ShippingClass    string
	ShipsAlone       bool
}

func (r profileRow) profile() Profile {
	p := Profile{
		ID:               r.ID,
		SKU:              r.SKU,
		Title:            r.Title,
		RequiresShipping: r.RequiresShipping,
		ProductType:      r.ProductType,
		WeightLbs:        r.WeightLbs,
		BoxDimensions:    r.BoxDimensions,
		ShippingClass:    r.ShippingClass,
		ShipsAlone:       r.ShipsAlone,
	}
	// Partially filled dimension columns are treated as absent.
	if r.Length != nil && r.Width != nil && r.Height != nil {
		p.Dimensions = &Dimensions{Length: *r.Length, Width: *r.Width, Height: *r.Height}
	}
	return p
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
