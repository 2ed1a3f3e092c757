package quote

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/shipquote/internal/catalog"
	"github.com/noah-isme/shipquote/internal/obs"
	"github.com/noah-isme/shipquote/internal/ratesource"
)

const (
	defaultCatalogTimeout = 5 * time.Second
	defaultGuardTTL       = 10 * time.Second

	installOnlyMessage = "All items in this order are install-only services; no shipment is required."
	unresolvedMessage  = "None of the items in this order matched a shippable product; no shipment was quoted."
	freightMessage     = "This order exceeds small-parcel carrier limits and must ship via freight. Our team will follow up with a freight quote."
)

// KeyGuard serializes computations that share a quote key. fn is not called
// when the guard coalesces the caller into another caller's computation.
type KeyGuard interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// ServiceConfig wires the collaborators of Service. Catalog is required;
// RateShopper and Guard are optional.
type ServiceConfig struct {
	Catalog        catalog.Catalog
	Cache          *Cache
	RateShopper    ratesource.RateShopper
	Guard          KeyGuard
	GuardTTL       time.Duration
	Defaults       Defaults
	CatalogTimeout time.Duration
	Logger         zerolog.Logger
}

// Service orchestrates normalization, classification, freight evaluation,
// consolidation and the quote cache.
type Service struct {
	catalog        catalog.Catalog
	cache          *Cache
	rates          ratesource.RateShopper
	guard          KeyGuard
	guardTTL       time.Duration
	defaults       Defaults
	catalogTimeout time.Duration
	logger         zerolog.Logger
	newID          func() string
}

// NewService validates cfg and fills defaults.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Catalog == nil {
		return nil, errors.New("quote: catalog not configured")
	}
	defaults := cfg.Defaults
	if defaults.WeightLbs <= 0 {
		defaults.WeightLbs = 1
	}
	if !defaults.Dimensions.Valid() {
		defaults.Dimensions = catalog.Dimensions{Length: 6, Width: 4, Height: 4}
	}
	cache := cfg.Cache
	if cache == nil {
		cache = NewCache(nil, 0, 0, cfg.Logger)
	}
	s := &Service{
		catalog:        cfg.Catalog,
		cache:          cache,
		rates:          cfg.RateShopper,
		guard:          cfg.Guard,
		guardTTL:       cfg.GuardTTL,
		defaults:       defaults,
		catalogTimeout: cfg.CatalogTimeout,
		logger:         cfg.Logger,
		newID:          uuid.NewString,
	}
	if s.guardTTL <= 0 {
		s.guardTTL = defaultGuardTTL
	}
	if s.catalogTimeout <= 0 {
		s.catalogTimeout = defaultCatalogTimeout
	}
	return s, nil
}

// Quote runs the pipeline for one request.
func (s *Service) Quote(ctx context.Context, req Request) (Result, error) {
	ctx, span := otel.Tracer("quote").Start(ctx, "quote.Service.Quote")
	defer span.End()

	lines, dest, err := normalizeRequest(req)
	if err != nil {
		obs.IncCounter(obs.QuoteRequestsTotal, "invalid")
		return Result{}, err
	}
	key := strings.TrimSpace(req.QuoteKey)
	if key == "" {
		key = DeriveKey(lines, dest)
	}
	span.SetAttributes(attribute.String("quote.key", key), attribute.Int("quote.lines", len(lines)))

	res, err := s.run(ctx, key, strings.TrimSpace(req.QuoteRequestID), lines, dest)
	if err != nil {
		obs.IncCounter(obs.QuoteRequestsTotal, "error")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}
	obs.IncCounter(obs.QuoteRequestsTotal, string(res.Outcome))
	span.SetAttributes(attribute.String("quote.outcome", string(res.Outcome)))
	if res.Outcome == OutcomeStandard {
		span.SetAttributes(attribute.String("quote.source", string(res.Entry.Source)))
	}
	return res, nil
}

// Lookup returns the servable cached entry for key.
func (s *Service) Lookup(ctx context.Context, key string) (Entry, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return Entry{}, ErrNotFound
	}
	entry, ok := s.cache.Lookup(ctx, key)
	if !ok {
		return Entry{}, ErrNotFound
	}
	return entry, nil
}

func normalizeRequest(req Request) ([]CartLine, Destination, error) {
	lines, cartErr := NormalizeCart(req.Cart)
	dest, destErr := NormalizeDestination(req.Destination)
	if cartErr == nil && destErr == nil {
		return lines, dest, nil
	}
	merged := &ValidationError{}
	for _, err := range []error{cartErr, destErr} {
		var verr *ValidationError
		if errors.As(err, &verr) {
			merged.Fields = append(merged.Fields, verr.Fields...)
		}
	}
	return nil, Destination{}, merged
}

func (s *Service) run(ctx context.Context, key, requestID string, lines []CartLine, dest Destination) (Result, error) {
	if entry, ok := s.cache.Lookup(ctx, key); ok {
		return standardResult(entry), nil
	}
	if s.guard == nil {
		return s.compute(ctx, key, requestID, lines, dest)
	}

	var (
		res Result
		ran bool
	)
	guardCtx, cancel := context.WithTimeout(ctx, s.guardTTL)
	defer cancel()
	guardErr := s.guard.WithLock(guardCtx, "lock:"+key, s.guardTTL, func(ctx context.Context) error {
		ran = true
		if entry, ok := s.cache.Lookup(ctx, key); ok {
			res = standardResult(entry)
			return nil
		}
		var err error
		res, err = s.compute(ctx, key, requestID, lines, dest)
		return err
	})
	if ran {
		return res, guardErr
	}
	// Coalesced into another computation, or the guard itself failed.
	if entry, ok := s.cache.Lookup(ctx, key); ok {
		return standardResult(entry), nil
	}
	if guardErr != nil {
		loggerFrom(ctx, s.logger).Warn().Err(guardErr).Str("quote_key", key).Msg("quote_guard_unavailable")
	}
	return s.compute(ctx, key, requestID, lines, dest)
}

func (s *Service) compute(ctx context.Context, key, requestID string, lines []CartLine, dest Destination) (Result, error) {
	start := time.Now()
	logger := loggerFrom(ctx, s.logger)

	profiles, err := s.resolve(ctx, lines)
	if err != nil {
		return Result{}, err
	}
	cls := Classify(lines, profiles, s.defaults)
	if len(cls.Missing) > 0 {
		logger.Info().Str("quote_key", key).Strs("missing_products", cls.Missing).Msg("quote_missing_products")
	}

	if len(cls.Shippable) == 0 {
		msg := installOnlyMessage
		if cls.Resolved == 0 {
			msg = unresolvedMessage
		}
		logger.Info().Str("quote_key", key).Strs("install_only_skus", cls.InstallOnly).Msg("quote_install_only")
		return Result{
			Outcome:         OutcomeInstallOnly,
			Message:         msg,
			MissingProducts: orEmpty(cls.Missing),
			InstallOnlySKUs: orEmpty(cls.InstallOnly),
		}, nil
	}

	decision := EvaluateFreight(cls.Shippable)
	packages := Consolidate(cls.Shippable, s.defaults)
	if decision.Required {
		logger.Info().Str("quote_key", key).Strs("triggers", decision.Triggers).Int("packages", len(packages)).Msg("quote_freight_required")
		return Result{
			Outcome:         OutcomeFreight,
			Message:         freightMessage,
			Packages:        packages,
			MissingProducts: orEmpty(cls.Missing),
			InstallOnlySKUs: orEmpty(cls.InstallOnly),
			FreightTriggers: decision.Triggers,
		}, nil
	}

	if requestID == "" {
		requestID = s.newID()
	}
	entry := Entry{
		QuoteKey:        key,
		QuoteRequestID:  requestID,
		Destination:     dest,
		Packages:        packages,
		MissingProducts: orEmpty(cls.Missing),
		InstallOnlySKUs: orEmpty(cls.InstallOnly),
		CartSummary:     CartSummary(lines),
		Source:          SourceFresh,
	}
	entry.Rates = s.shop(ctx, key, dest, packages)
	entry.RateCount = len(entry.Rates)
	s.cache.Stamp(&entry)
	s.cache.Save(ctx, entry)

	if obs.QuoteComputeDuration != nil {
		obs.QuoteComputeDuration.Observe(obs.DurationMillis(time.Since(start)))
	}
	return standardResult(entry), nil
}

// resolve performs the single batched catalog lookup for the request.
func (s *Service) resolve(ctx context.Context, lines []CartLine) ([]catalog.Profile, error) {
	skus, ids, titles := LookupKeys(lines)
	if len(skus)+len(ids)+len(titles) == 0 {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, s.catalogTimeout)
	defer cancel()

	start := time.Now()
	profiles, err := s.catalog.Resolve(ctx, skus, ids, titles)
	result := "ok"
	if err != nil {
		result = "error"
	}
	if obs.CatalogLookupDuration != nil {
		obs.CatalogLookupDuration.WithLabelValues(result).Observe(obs.DurationMillis(time.Since(start)))
	}
	if err != nil {
		loggerFrom(ctx, s.logger).Error().Err(err).Int("identifiers", len(skus)+len(ids)+len(titles)).Msg("quote_catalog_failed")
		return nil, fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
	}
	return profiles, nil
}

// shop asks the optional rate shopper for carrier rates; failures yield no rates.
func (s *Service) shop(ctx context.Context, key string, dest Destination, packages []Package) []ratesource.Rate {
	if s.rates == nil {
		return nil
	}
	parcels := make([]ratesource.Parcel, 0, len(packages))
	for _, p := range packages {
		parcels = append(parcels, ratesource.Parcel{WeightLbs: p.WeightLbs, Dimensions: p.Dimensions})
	}
	rates, err := s.rates.Rates(ctx, ratesource.RateRequest{
		Destination: ratesource.Address{City: dest.City, State: dest.State, PostalCode: dest.PostalCode, Country: dest.Country},
		Parcels:     parcels,
	})
	if err != nil {
		obs.IncCounter(obs.RateShopperTotal, "error")
		loggerFrom(ctx, s.logger).Warn().Err(err).Str("quote_key", key).Msg("quote_rate_shopper_failed")
		return nil
	}
	obs.IncCounter(obs.RateShopperTotal, "ok")
	return rates
}

func standardResult(entry Entry) Result {
	return Result{
		Outcome:         OutcomeStandard,
		Packages:        entry.Packages,
		MissingProducts: orEmpty(entry.MissingProducts),
		InstallOnlySKUs: orEmpty(entry.InstallOnlySKUs),
		Entry:           entry,
	}
}

func orEmpty(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
