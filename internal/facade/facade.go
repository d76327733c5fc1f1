// Package facade turns high-level trading commands into market queries and
// planner calls, and shapes the answer into a structured result plus a short
// spoken summary. Errors never cross this boundary: every failure becomes a
// Response carrying a reason code.
package facade

import (
	"context"
	"errors"
	"strings"
	"time"

	"covinance/internal/alias"
	"covinance/internal/apperr"
	"covinance/internal/engine"
	"covinance/internal/galaxy"
	"covinance/internal/gamestate"
	"covinance/internal/logger"
	"covinance/internal/market"
	"covinance/internal/metrics"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Response is the structured answer to a Request.
type Response struct {
	Status     string            `json:"status"`
	Action     Action            `json:"action"`
	Reason     apperr.Kind       `json:"reason,omitempty"`
	Summary    string            `json:"summary"`
	Data       interface{}       `json:"data,omitempty"`
	Commodity  *alias.Resolution `json:"commodity,omitempty"`
	Partial    bool              `json:"partial,omitempty"`
	Omitted    int               `json:"omitted,omitempty"`
	Attempted  int               `json:"attempted,omitempty"`
	Degraded   bool              `json:"degraded,omitempty"`
	Notes      []string          `json:"notes,omitempty"`
	FromCache  bool              `json:"from_cache,omitempty"`
	DataAgeSec float64           `json:"data_age_sec,omitempty"`
}

// Options tunes a Facade.
type Options struct {
	DefaultRadius float64 // ly, used when a request names none
	Now           func() time.Time
}

// Facade wires the components together. It holds no per-request state.
type Facade struct {
	market   *market.Service
	aliases  *alias.Resolver
	game     *gamestate.Resolver
	planner  *engine.Planner
	opts     Options
	validate *validator.Validate
}

// New creates a Facade.
func New(m *market.Service, a *alias.Resolver, g *gamestate.Resolver, p *engine.Planner, opts Options) *Facade {
	if opts.DefaultRadius <= 0 {
		opts.DefaultRadius = 40
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Facade{
		market:   m,
		aliases:  a,
		game:     g,
		planner:  p,
		opts:     opts,
		validate: newValidator(),
	}
}

// State reports the player's current situation and the constraints it
// implies.
func (f *Facade) State(ctx context.Context) gamestate.State {
	return f.game.Current(ctx)
}

// place is a resolved query origin.
type place struct {
	name  string
	coord galaxy.Coordinate
}

// outcome is what an action produced before it is shaped into a Response.
type outcome struct {
	data      interface{}
	summary   string
	attempted int
	omitted   int
	stale     bool
	fromCache bool
	age       time.Duration
}

func (o *outcome) absorb(r market.Result[market.Quote]) {
	o.attempted += r.Attempted
	o.omitted += r.Omitted
	o.fromCache = r.FromCache
	if r.Age > o.age {
		o.age = r.Age
	}
}

// call is one request in flight.
type call struct {
	req       Request
	state     gamestate.State
	origin    place
	radius    float64
	commodity *alias.Resolution
	planner   *engine.Planner
}

// Handle runs one command. It never returns an error; failures are reported
// through Response.Status and Response.Reason.
func (f *Facade) Handle(ctx context.Context, req Request) Response {
	start := time.Now()
	req.Action = Action(strings.ToLower(strings.TrimSpace(string(req.Action))))
	resp := f.handle(ctx, req)
	metrics.Commands.WithLabelValues(string(req.Action), resp.Status).Inc()

	fields := []zap.Field{
		zap.String("action", string(req.Action)),
		zap.String("status", resp.Status),
		zap.Duration("took", time.Since(start)),
	}
	if resp.Status == StatusOK {
		if resp.Partial {
			fields = append(fields, zap.Int("omitted", resp.Omitted))
		}
		logger.Info("Facade", resp.Summary, fields...)
	} else {
		logger.Warn("Facade", resp.Summary, append(fields, zap.String("reason", string(resp.Reason)))...)
	}
	return resp
}

func (f *Facade) handle(ctx context.Context, req Request) Response {
	if err := f.validate.Struct(req); err != nil {
		return f.fail(req, nil, apperr.New(apperr.KindInvalidRequest, "%s", describe(err)))
	}

	c := &call{req: req, planner: f.planner.WithTopN(req.Limit)}
	if req.Commodity != "" && req.Action.needsCommodity() {
		res, err := f.aliases.Resolve(req.Commodity)
		if err != nil {
			return f.fail(req, &res, err)
		}
		c.commodity = &res
	}

	if !req.Action.usesMarket() {
		out := f.cacheAction(req.Action)
		return f.respond(c, out)
	}

	c.state = f.game.Current(ctx)
	c.radius = req.RadiusLy
	if c.radius <= 0 {
		c.radius = f.opts.DefaultRadius
	}
	origin, err := f.origin(ctx, req, c.state)
	if err != nil {
		return f.fail(req, c.commodity, err)
	}
	c.origin = origin

	out, err := f.run(ctx, c)
	if err != nil {
		return f.failCall(c, out, err)
	}
	return f.respond(c, out)
}

// origin resolves the query origin: the named system, else the player's
// current system from game state.
func (f *Facade) origin(ctx context.Context, req Request, st gamestate.State) (place, error) {
	name := strings.TrimSpace(req.System)
	if name == "" {
		if st.Snapshot.System == "" {
			return place{}, apperr.New(apperr.KindInvalidRequest, "current system is unknown; name a system")
		}
		if st.Snapshot.HasCoordinate {
			return place{name: st.Snapshot.System, coord: st.Snapshot.Coordinate}, nil
		}
		name = st.Snapshot.System
	}
	sys, err := f.market.System(ctx, name)
	if err != nil {
		return place{}, err
	}
	return place{name: sys.Name, coord: sys.Coordinate}, nil
}

func (f *Facade) run(ctx context.Context, c *call) (outcome, error) {
	switch c.req.Action {
	case ActionBestBuy, ActionBestSell:
		return f.bestPrice(ctx, c)
	case ActionBestTrade, ActionFillCargo, ActionProfitPerHour, ActionCircularRoute, ActionChainRoute:
		return f.fromOrigin(ctx, c)
	case ActionTradeRoute:
		return f.tradeRoute(ctx, c)
	case ActionRareGoods:
		return f.rareGoods(ctx, c)
	case ActionInterstellarFactors:
		return f.interstellarFactors(ctx, c)
	}
	return outcome{}, apperr.New(apperr.KindInvalidRequest, "unsupported action %q", c.req.Action)
}

func (f *Facade) bestPrice(ctx context.Context, c *call) (outcome, error) {
	var out outcome
	quotes, err := f.market.ListingsWithinRadius(ctx, c.origin.coord, c.radius, c.commodity.ID)
	out.absorb(quotes)
	if err != nil {
		return out, err
	}
	var list engine.PriceList
	if c.req.Action == ActionBestBuy {
		list, err = c.planner.BestBuy(quotes.Items, c.commodity.ID, c.radius, c.state.Constraints)
	} else {
		list, err = c.planner.BestSell(quotes.Items, c.commodity.ID, c.radius, c.state.Constraints)
	}
	if !c.req.ShowIncompatible {
		list.Incompatible = nil
	}
	if err != nil {
		return out, err
	}
	out.data = list
	out.stale = pricesStale(list.Items)
	out.summary = f.summarizePrices(c, list)
	return out, nil
}

// fromOrigin serves every action that starts at the origin system and looks
// for destinations within the radius.
func (f *Facade) fromOrigin(ctx context.Context, c *call) (outcome, error) {
	var out outcome
	home, err := f.market.ListingsForSystem(ctx, c.origin.name)
	if err != nil {
		return out, err
	}
	near, err := f.market.ListingsWithinRadius(ctx, c.origin.coord, c.radius, "")
	out.absorb(near)
	if err != nil {
		return out, err
	}
	origin := f.market.Quotes(home.Items, c.origin.coord)
	market.SortByDistance(origin)
	cons := c.state.Constraints
	hop := engine.HopOptions{RadiusLy: c.radius, ShowIncompatible: c.req.ShowIncompatible}

	switch c.req.Action {
	case ActionBestTrade, ActionFillCargo, ActionProfitPerHour:
		var res engine.HopResult
		switch c.req.Action {
		case ActionFillCargo:
			res, err = c.planner.FillCargo(origin, near.Items, cons, hop)
		case ActionProfitPerHour:
			res, err = c.planner.ProfitPerHour(origin, near.Items, cons, hop)
		default:
			res, err = c.planner.SingleHop(origin, near.Items, cons, hop)
		}
		if err != nil {
			return out, err
		}
		out.data = res
		out.stale = legsStale(res.Legs...)
		out.summary = f.summarizeHop(c, res)
	case ActionCircularRoute:
		trips, err := c.planner.Circular(origin, near.Items, cons, hop)
		if err != nil {
			return out, err
		}
		out.data = trips
		for _, t := range trips.Trips {
			if t.Out != nil && legsStale(*t.Out) || t.Back != nil && legsStale(*t.Back) {
				out.stale = true
			}
		}
		out.summary = f.summarizeCircular(c, trips)
	case ActionChainRoute:
		ch, err := c.planner.Chain(origin, near.Items, cons, engine.ChainOptions{MaxHops: c.req.MaxHops, RadiusLy: c.radius})
		if err != nil {
			return out, err
		}
		out.data = ch
		out.stale = legsStale(ch.Legs...)
		out.summary = f.summarizeChain(c, ch)
	}
	return out, nil
}

func (f *Facade) tradeRoute(ctx context.Context, c *call) (outcome, error) {
	var out outcome
	from, err := f.market.ListingsForSystem(ctx, c.origin.name)
	if err != nil {
		return out, err
	}
	to, err := f.market.ListingsForSystem(ctx, c.req.To)
	if err != nil {
		return out, err
	}
	out.attempted = from.Attempted + to.Attempted
	out.fromCache = from.FromCache && to.FromCache
	out.age = from.Age
	if to.Age > out.age {
		out.age = to.Age
	}
	leg, err := c.planner.TradeRoute(
		f.market.Quotes(from.Items, c.origin.coord),
		f.market.Quotes(to.Items, c.origin.coord),
		c.state.Constraints,
	)
	if err != nil {
		return out, err
	}
	out.data = leg
	out.stale = legsStale(leg)
	out.summary = f.summarizeTradeRoute(c, leg)
	return out, nil
}

func (f *Facade) rareGoods(ctx context.Context, c *call) (outcome, error) {
	var out outcome
	quotes, err := f.market.RareGoodsWithinRadius(ctx, c.origin.coord, c.radius)
	out.absorb(quotes)
	if err != nil {
		return out, err
	}
	groups, err := c.planner.RareGoods(quotes.Items, c.radius)
	if err != nil {
		return out, err
	}
	if n := c.req.Limit; n > 0 && len(groups) > n {
		groups = groups[:n]
	}
	out.data = groups
	for _, g := range groups {
		out.stale = out.stale || pricesStale(g.Stations)
	}
	out.summary = f.summarizeRare(c, groups)
	return out, nil
}

func (f *Facade) interstellarFactors(ctx context.Context, c *call) (outcome, error) {
	var out outcome
	near, err := f.market.StationsWithinRadius(ctx, c.origin.coord, c.radius, 0)
	out.attempted = near.Attempted
	out.fromCache = near.FromCache
	out.age = near.Age
	if err != nil {
		return out, err
	}
	stations, err := c.planner.InterstellarFactors(near.Items, c.radius)
	if err != nil {
		return out, err
	}
	if n := c.planner.TopN(); len(stations) > n {
		stations = stations[:n]
	}
	out.data = stations
	out.summary = f.summarizeFactors(c, stations)
	return out, nil
}

// CacheReport is the cache_stats payload.
type CacheReport struct {
	Caches     map[string]CacheLine `json:"caches"`
	Entries    int                  `json:"entries"`
	HitRate    float64              `json:"hit_rate"`
	CallsSaved int64                `json:"calls_saved"`
}

// CacheLine is one cache's counters.
type CacheLine struct {
	Hits         int64   `json:"hits"`
	Misses       int64   `json:"misses"`
	InflightHits int64   `json:"inflight_hits"`
	Loads        int64   `json:"loads"`
	LoadErrors   int64   `json:"load_errors"`
	Evictions    int64   `json:"evictions"`
	Size         int     `json:"size"`
	HitRate      float64 `json:"hit_rate"`
}

func (f *Facade) cacheAction(a Action) outcome {
	if a == ActionCacheClear {
		n := f.market.ClearCache()
		return outcome{data: map[string]int{"cleared": n}, summary: summarizeCleared(n)}
	}
	report := CacheReport{Caches: make(map[string]CacheLine)}
	var hits, misses int64
	for name, s := range f.market.CacheStats() {
		report.Caches[name] = CacheLine{
			Hits:         s.Hits,
			Misses:       s.Misses,
			InflightHits: s.InflightHits,
			Loads:        s.Loads,
			LoadErrors:   s.LoadErrors,
			Evictions:    s.Evictions,
			Size:         s.Size,
			HitRate:      s.HitRate(),
		}
		report.Entries += s.Size
		report.CallsSaved += s.CallsSaved()
		hits += s.Hits
		misses += s.Misses
	}
	if hits+misses > 0 {
		report.HitRate = float64(hits) / float64(hits+misses)
	}
	return outcome{data: report, summary: summarizeCache(report)}
}

func (f *Facade) respond(c *call, out outcome) Response {
	resp := Response{
		Status:    StatusOK,
		Action:    c.req.Action,
		Summary:   out.summary,
		Data:      out.data,
		Commodity: c.commodity,
		Attempted: out.attempted,
		Omitted:   out.omitted,
		Partial:   out.omitted > 0,
		FromCache: out.fromCache,
	}
	if out.fromCache {
		resp.DataAgeSec = out.age.Seconds()
	}
	if c.req.Action.usesMarket() && c.state.Reason != nil {
		resp.Degraded = true
		resp.Notes = append(resp.Notes, degradedNote(c.state.Reason))
	}
	if resp.Partial {
		resp.Notes = append(resp.Notes, partialNote(out.omitted, out.attempted))
	}
	if out.stale {
		resp.Notes = append(resp.Notes, staleNote)
	}
	if out.fromCache && out.age > 0 {
		resp.Notes = append(resp.Notes, f.ageNote(out.age))
	}
	if len(resp.Notes) > 0 {
		resp.Summary = strings.TrimSpace(resp.Summary + " " + strings.Join(resp.Notes, " "))
	}
	return resp
}

func (f *Facade) failCall(c *call, out outcome, err error) Response {
	resp := f.fail(c.req, c.commodity, f.explainable(c, err))
	resp.Attempted = out.attempted
	resp.Omitted = out.omitted
	resp.Partial = out.omitted > 0
	if c.state.Reason != nil {
		resp.Degraded = true
	}
	return resp
}

// explainable adds the radius hint to NoResults from radius-bounded actions.
func (f *Facade) explainable(c *call, err error) error {
	if !errors.Is(err, apperr.NoResults) || !c.req.Action.usesRadius() {
		return err
	}
	return &radiusHint{err: err, radius: c.radius}
}

func (f *Facade) fail(req Request, res *alias.Resolution, err error) Response {
	return Response{
		Status:    StatusError,
		Action:    req.Action,
		Reason:    apperr.KindOf(err),
		Summary:   explain(err),
		Commodity: res,
	}
}
