// Package market answers market queries from the in-process cache, falling
// back to the remote source. Radius queries fan out over the systems in range
// and report sub-queries that failed instead of failing the whole query.
package market

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"covinance/internal/apperr"
	"covinance/internal/cache"
	"covinance/internal/galaxy"
	"covinance/internal/logger"
	"covinance/internal/remote"

	"go.uber.org/zap"
)

// Defaults applied by New when an option is unset.
const (
	DefaultMaxResults         = 1000
	DefaultMaxConcurrency     = 5
	DefaultTaskTimeout        = 25 * time.Second
	DefaultCoordinateTTL      = 30 * 24 * time.Hour
	DefaultStalenessThreshold = 30 * 24 * time.Hour
)

// SystemStore persists system coordinates across restarts. *db.DB satisfies it.
type SystemStore interface {
	GetSystem(name string) (remote.System, bool)
	SetSystem(s remote.System)
}

// Options configures a Service.
type Options struct {
	TTL                time.Duration // listings and station lookups
	CoordinateTTL      time.Duration
	Capacity           int // per cache; 0 = unbounded
	MaxConcurrency     int
	TaskTimeout        time.Duration // per fan-out sub-query
	MaxResults         int
	StalenessThreshold time.Duration
	Now                func() time.Time
}

// Result is a query answer plus where it came from. Omitted counts fan-out
// sub-queries that failed; their data is missing from Items.
type Result[T any] struct {
	Items     []T
	FromCache bool
	Age       time.Duration // age of the oldest cached part
	Attempted int
	Omitted   int
}

// Partial reports whether some sub-queries failed.
func (r Result[T]) Partial() bool { return r.Omitted > 0 }

// NearbyStation is a station with its distance from the query origin.
type NearbyStation struct {
	remote.Station
	DistanceLy float64
}

// Quote is a listing annotated for presentation and ranking.
type Quote struct {
	remote.Listing
	DistanceLy float64
	DataAge    time.Duration // since the source last saw this price; 0 if unknown
	Stale      bool
}

// Service is the market query surface. It is safe for concurrent use; the
// caches are its only mutable state.
type Service struct {
	src   remote.Source
	store SystemStore
	opts  Options

	systems  *cache.Cache[remote.System]
	listings *cache.Cache[[]remote.Listing]
	stations *cache.Cache[[]remote.Station]
}

// New creates a Service. store may be nil.
func New(src remote.Source, store SystemStore, opts Options) *Service {
	if opts.TTL <= 0 {
		opts.TTL = cache.DefaultTTL
	}
	if opts.CoordinateTTL <= 0 {
		opts.CoordinateTTL = DefaultCoordinateTTL
	}
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = DefaultMaxConcurrency
	}
	if opts.TaskTimeout <= 0 {
		opts.TaskTimeout = DefaultTaskTimeout
	}
	if opts.MaxResults <= 0 || opts.MaxResults > DefaultMaxResults {
		opts.MaxResults = DefaultMaxResults
	}
	if opts.StalenessThreshold <= 0 {
		opts.StalenessThreshold = DefaultStalenessThreshold
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	copts := cache.Options{TTL: opts.TTL, Capacity: opts.Capacity, Now: opts.Now, LoadTimeout: opts.TaskTimeout}
	sopts := copts
	sopts.TTL = opts.CoordinateTTL
	return &Service{
		src:      src,
		store:    store,
		opts:     opts,
		systems:  cache.New[remote.System]("systems", sopts),
		listings: cache.New[[]remote.Listing]("listings", copts),
		stations: cache.New[[]remote.Station]("stations", copts),
	}
}

// MaxResults is the result cap applied to radius queries.
func (s *Service) MaxResults() int { return s.opts.MaxResults }

// System resolves a system name to its coordinates and facts.
func (s *Service) System(ctx context.Context, name string) (remote.System, error) {
	key := "system:" + normalizeName(name)
	sys, _, err := s.systems.GetOrLoad(ctx, key, s.opts.CoordinateTTL, func(ctx context.Context) (remote.System, error) {
		if s.store != nil {
			if sys, ok := s.store.GetSystem(name); ok {
				return sys, nil
			}
		}
		found, err := s.src.SearchSystems(ctx, strings.TrimSpace(name))
		if err != nil {
			return remote.System{}, remoteErr(err, "system lookup")
		}
		for _, sys := range found {
			if strings.EqualFold(sys.Name, strings.TrimSpace(name)) {
				if s.store != nil {
					s.store.SetSystem(sys)
				}
				return sys, nil
			}
		}
		return remote.System{}, apperr.New(apperr.KindNotFound, "system %q not found", strings.TrimSpace(name))
	})
	return sys, err
}

// ListingsForSystem returns every listing in the named system.
func (s *Service) ListingsForSystem(ctx context.Context, name string) (Result[remote.Listing], error) {
	key := "system_listings:" + normalizeName(name)
	items, origin, err := s.listings.GetOrLoad(ctx, key, s.opts.TTL, func(ctx context.Context) ([]remote.Listing, error) {
		ls, err := s.src.SystemListings(ctx, strings.TrimSpace(name))
		if err != nil {
			return nil, remoteErr(err, "system listings")
		}
		return dedupListings(ls), nil
	})
	if err != nil {
		return Result[remote.Listing]{Attempted: 1}, err
	}
	return Result[remote.Listing]{Items: items, FromCache: origin.Cached, Age: origin.Age, Attempted: 1}, nil
}

// ListingsForStation returns the listings of a single station.
func (s *Service) ListingsForStation(ctx context.Context, stationID int64) (Result[remote.Listing], error) {
	key := "station_listings:" + strconv.FormatInt(stationID, 10)
	items, origin, err := s.listings.GetOrLoad(ctx, key, s.opts.TTL, func(ctx context.Context) ([]remote.Listing, error) {
		ls, err := s.src.StationListings(ctx, stationID)
		if err != nil {
			return nil, remoteErr(err, "station listings")
		}
		return dedupListings(ls), nil
	})
	if err != nil {
		return Result[remote.Listing]{Attempted: 1}, err
	}
	return Result[remote.Listing]{Items: items, FromCache: origin.Cached, Age: origin.Age, Attempted: 1}, nil
}

// StationsWithinRadius returns stations within radiusLy of origin, nearest
// first, ties by station id, capped at limit (or MaxResults when limit <= 0).
func (s *Service) StationsWithinRadius(ctx context.Context, origin galaxy.Coordinate, radiusLy float64, limit int) (Result[NearbyStation], error) {
	if limit <= 0 || limit > s.opts.MaxResults {
		limit = s.opts.MaxResults
	}
	key := fmt.Sprintf("stations_near:%s:%s", coordKey(origin), strconv.FormatFloat(radiusLy, 'f', -1, 64))
	raw, org, err := s.stations.GetOrLoad(ctx, key, s.opts.TTL, func(ctx context.Context) ([]remote.Station, error) {
		st, err := s.src.StationsNear(ctx, origin, radiusLy, s.opts.MaxResults)
		if err != nil {
			return nil, remoteErr(err, "stations near")
		}
		return st, nil
	})
	if err != nil {
		return Result[NearbyStation]{Attempted: 1}, err
	}

	near := make([]NearbyStation, 0, len(raw))
	for _, st := range dedupStations(raw) {
		d := origin.DistanceTo(st.Coordinate)
		if d > radiusLy {
			continue
		}
		near = append(near, NearbyStation{Station: st, DistanceLy: d})
	}
	sort.SliceStable(near, func(i, j int) bool {
		if near[i].DistanceLy != near[j].DistanceLy {
			return near[i].DistanceLy < near[j].DistanceLy
		}
		return near[i].ID < near[j].ID
	})
	if len(near) > limit {
		near = near[:limit]
	}
	return Result[NearbyStation]{Items: near, FromCache: org.Cached, Age: org.Age, Attempted: 1}, nil
}

// ListingsWithinRadius fans out over every system with a station in range and
// returns the merged listings for commodity ("" for all), nearest first.
func (s *Service) ListingsWithinRadius(ctx context.Context, origin galaxy.Coordinate, radiusLy float64, commodity string) (Result[Quote], error) {
	return s.radiusQuotes(ctx, "listings_within_radius", origin, radiusLy, func(l remote.Listing) bool {
		return commodity == "" || l.Commodity == commodity
	})
}

// RareGoodsWithinRadius is ListingsWithinRadius restricted to rare goods the
// player can buy.
func (s *Service) RareGoodsWithinRadius(ctx context.Context, origin galaxy.Coordinate, radiusLy float64) (Result[Quote], error) {
	return s.radiusQuotes(ctx, "rare_goods", origin, radiusLy, func(l remote.Listing) bool {
		return l.Rare && l.CanBuy()
	})
}

func (s *Service) radiusQuotes(ctx context.Context, query string, origin galaxy.Coordinate, radiusLy float64, keep func(remote.Listing) bool) (Result[Quote], error) {
	near, err := s.StationsWithinRadius(ctx, origin, radiusLy, 0)
	if err != nil {
		return Result[Quote]{Attempted: 1}, err
	}

	byID := make(map[int64]NearbyStation, len(near.Items))
	var systems []string
	seen := make(map[string]bool)
	for _, st := range near.Items {
		byID[st.ID] = st
		k := normalizeName(st.SystemName)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		systems = append(systems, st.SystemName)
	}
	sort.Strings(systems)

	tasks := make([]func(context.Context) (Result[remote.Listing], error), len(systems))
	for i, sys := range systems {
		sys := sys
		tasks[i] = func(ctx context.Context) (Result[remote.Listing], error) {
			return s.ListingsForSystem(ctx, sys)
		}
	}
	out, err := fanOut(ctx, query, s.opts.MaxConcurrency, s.opts.TaskTimeout, tasks)
	if err != nil {
		return Result[Quote]{Attempted: out.Attempted, Omitted: out.Omitted}, err
	}

	var merged []remote.Listing
	for _, l := range out.Items {
		if !keep(l) {
			continue
		}
		if st, ok := byID[l.StationID]; ok {
			l = fillFromStation(l, st.Station)
		}
		merged = append(merged, l)
	}
	merged = dedupListings(merged)

	quotes := make([]Quote, 0, len(merged))
	for _, l := range merged {
		q := s.quote(l, origin)
		if q.DistanceLy > radiusLy {
			continue
		}
		quotes = append(quotes, q)
	}
	SortByDistance(quotes)
	if len(quotes) > s.opts.MaxResults {
		quotes = quotes[:s.opts.MaxResults]
	}

	if near.FromCache && near.Age > out.Age {
		out.Age = near.Age
	}
	return Result[Quote]{
		Items:     quotes,
		FromCache: near.FromCache && out.FromCache,
		Age:       out.Age,
		Attempted: out.Attempted,
		Omitted:   out.Omitted,
	}, nil
}

// Quotes annotates listings with distance and staleness relative to origin.
func (s *Service) Quotes(listings []remote.Listing, origin galaxy.Coordinate) []Quote {
	out := make([]Quote, 0, len(listings))
	for _, l := range listings {
		out = append(out, s.quote(l, origin))
	}
	return out
}

func (s *Service) quote(l remote.Listing, origin galaxy.Coordinate) Quote {
	q := Quote{Listing: l, DistanceLy: origin.DistanceTo(l.Coordinate)}
	if !l.UpdatedAt.IsZero() {
		q.DataAge = s.opts.Now().Sub(l.UpdatedAt)
		if q.DataAge < 0 {
			q.DataAge = 0
		}
		q.Stale = q.DataAge > s.opts.StalenessThreshold
	}
	return q
}

// CacheStats returns per-cache counters keyed by cache name.
func (s *Service) CacheStats() map[string]cache.Stats {
	return map[string]cache.Stats{
		s.systems.Name():  s.systems.Stats(),
		s.listings.Name(): s.listings.Stats(),
		s.stations.Name(): s.stations.Stats(),
	}
}

// ClearCache drops every cached entry and returns how many were removed.
// Persisted system coordinates are left alone.
func (s *Service) ClearCache() int {
	n := s.systems.Clear() + s.listings.Clear() + s.stations.Clear()
	logger.Info("Market", "cache cleared", zap.Int("entries", n))
	return n
}

// SweepCache drops expired entries.
func (s *Service) SweepCache() int {
	return s.systems.Sweep() + s.listings.Sweep() + s.stations.Sweep()
}

// SortByDistance orders quotes nearest first, ties by station id then commodity.
func SortByDistance(qs []Quote) {
	sort.SliceStable(qs, func(i, j int) bool {
		if qs[i].DistanceLy != qs[j].DistanceLy {
			return qs[i].DistanceLy < qs[j].DistanceLy
		}
		if qs[i].StationID != qs[j].StationID {
			return qs[i].StationID < qs[j].StationID
		}
		return qs[i].Commodity < qs[j].Commodity
	})
}

func fillFromStation(l remote.Listing, st remote.Station) remote.Listing {
	if l.Coordinate == (galaxy.Coordinate{}) {
		l.Coordinate = st.Coordinate
	}
	if l.StationName == "" {
		l.StationName = st.Name
	}
	if l.SystemName == "" {
		l.SystemName = st.SystemName
	}
	if l.Pad == galaxy.PadAny {
		l.Pad = st.Pad
	}
	if l.Security == galaxy.SecurityUnknown {
		l.Security = st.Security
	}
	if l.Flags == (remote.StationFlags{}) {
		l.Flags = st.Flags
	}
	return l
}

func remoteErr(err error, what string) error {
	switch apperr.KindOf(err) {
	case apperr.KindNotFound, apperr.KindRemoteUnavailable:
		return err
	}
	return apperr.Wrap(apperr.KindRemoteUnavailable, err, "%s: market source unavailable", what)
}

func normalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

func coordKey(c galaxy.Coordinate) string {
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	return f(c.X) + "," + f(c.Y) + "," + f(c.Z)
}
