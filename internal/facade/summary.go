package facade

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"covinance/internal/alias"
	"covinance/internal/apperr"
	"covinance/internal/engine"
	"covinance/internal/galaxy"
	"covinance/internal/market"

	"github.com/dustin/go-humanize"
)

const staleNote = "Some of these prices are more than a month old."

// radiusHint marks a NoResults that came from a radius-bounded search.
type radiusHint struct {
	err    error
	radius float64
}

func (h *radiusHint) Error() string { return h.err.Error() }
func (h *radiusHint) Unwrap() error { return h.err }

// explain renders an error as one spoken sentence. Each kind reads differently
// so the listener knows what to do next.
func explain(err error) string {
	reason := sentence(apperr.Reason(err))
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		return "I couldn't find that: " + reason
	case apperr.KindSalvageOnly:
		return reason + " Look for it at signal sources or crash sites instead."
	case apperr.KindNoResults:
		var hint *radiusHint
		if errors.As(err, &hint) {
			return fmt.Sprintf("%s Try a radius larger than %s.", reason, ly(hint.radius))
		}
		return reason
	case apperr.KindRemoteUnavailable:
		return "The market data service isn't answering right now. Try again in a minute."
	case apperr.KindInvalidRequest:
		return "I didn't understand that request: " + strings.TrimSuffix(apperr.Reason(err), ".") + "."
	}
	return "Something went wrong: " + reason
}

func sentence(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	s = strings.ToUpper(s[:1]) + s[1:]
	if !strings.HasSuffix(s, ".") {
		s += "."
	}
	return s
}

func degradedNote(reason error) string {
	return fmt.Sprintf("Ship limits are unknown (%s), so this ignores your hold, pad size, jump range and credits.", apperr.Reason(reason))
}

func partialNote(omitted, attempted int) string {
	return fmt.Sprintf("%d of %d systems didn't answer, so some results may be missing.", omitted, attempted)
}

func (f *Facade) ageNote(age time.Duration) string {
	now := f.opts.Now()
	return "Market data fetched " + humanize.RelTime(now.Add(-age), now, "ago", "from now") + "."
}

func credits(v int64) string {
	return humanize.Comma(v) + " credits"
}

func ly(d float64) string {
	return fmt.Sprintf("%v ly", galaxy.RoundLy(d))
}

func at(s engine.StationRef) string {
	return fmt.Sprintf("%s in %s", s.Name, s.System)
}

func (f *Facade) commodityName(id string) string {
	if f.aliases != nil {
		if c, ok := f.aliases.Commodity(id); ok {
			return c.Name
		}
	}
	return id
}

func pricesStale(ps []engine.PriceResult) bool {
	for _, p := range ps {
		if p.Station.Stale {
			return true
		}
	}
	return false
}

func legsStale(ls ...engine.TradeLeg) bool {
	for _, l := range ls {
		if l.From.Stale || l.To.Stale {
			return true
		}
	}
	return false
}

func (f *Facade) summarizePrices(c *call, list engine.PriceList) string {
	best := list.Items[0]
	name := f.commodityName(list.Commodity)
	verb := "Cheapest %s within %s is at %s, %s away, for %s."
	if c.req.Action == ActionBestSell {
		verb = "Best price for %s within %s is at %s, %s away, paying %s."
	}
	s := fmt.Sprintf(verb, name, ly(c.radius), at(best.Station), ly(best.Station.DistanceLy), credits(best.Price))
	switch n := len(list.Items) - 1; {
	case n == 1:
		s += " One other station also trades it."
	case n > 1:
		s += fmt.Sprintf(" %d other stations also trade it.", n)
	}
	return s + resolvedNote(c.commodity)
}

// resolvedNote confirms what a fuzzy match was taken to mean.
func resolvedNote(r *alias.Resolution) string {
	if r == nil || r.Match != alias.MatchFuzzy {
		return ""
	}
	return fmt.Sprintf(" (I took %q to mean %s.)", r.Input, r.Name)
}

func describeLeg(f *Facade, l engine.TradeLeg) string {
	return fmt.Sprintf("buy %s %s at %s for %s each, sell at %s, %s away, for %s. Profit %s",
		humanize.Comma(l.Quantity), f.commodityName(l.Commodity), at(l.From), humanize.Comma(l.BuyPrice),
		at(l.To), ly(l.DistanceLy), humanize.Comma(l.SellPrice), credits(l.Profit))
}

func (f *Facade) summarizeHop(c *call, res engine.HopResult) string {
	best := res.Legs[0]
	switch c.req.Action {
	case ActionProfitPerHour:
		return fmt.Sprintf("Best hourly trade from %s: %s, about %s per hour.",
			c.origin.name, describeLeg(f, best), credits(int64(math.Round(best.ProfitPerHour))))
	case ActionFillCargo:
		if res.Cargo == 0 {
			break
		}
		return fmt.Sprintf("To fill your remaining %d tons from %s: %s.", res.Cargo, c.origin.name, describeLeg(f, best))
	}
	s := fmt.Sprintf("Best trade from %s: %s.", c.origin.name, describeLeg(f, best))
	if len(res.Legs) > 1 {
		s += fmt.Sprintf(" %s listed.", plural(len(res.Legs)-1, "more option"))
	}
	return s
}

func (f *Facade) summarizeTradeRoute(c *call, l engine.TradeLeg) string {
	return fmt.Sprintf("From %s to %s, carry %s: %s.", c.origin.name, l.To.System, f.commodityName(l.Commodity), describeLeg(f, l))
}

func (f *Facade) summarizeCircular(c *call, trips engine.RoundTrips) string {
	best := trips.Trips[0]
	var parts []string
	if best.Out != nil {
		parts = append(parts, "take "+f.commodityName(best.Out.Commodity)+" out")
	}
	if best.Back != nil {
		parts = append(parts, "bring "+f.commodityName(best.Back.Commodity)+" back")
	}
	return fmt.Sprintf("Best round trip from %s is via %s, %s away: %s, for %s in total.",
		c.origin.name, at(best.Via), ly(best.Via.DistanceLy), strings.Join(parts, " and "), credits(best.Profit))
}

func (f *Facade) summarizeChain(c *call, ch engine.Chain) string {
	stops := make([]string, 0, len(ch.Legs)+1)
	stops = append(stops, c.origin.name)
	for _, l := range ch.Legs {
		stops = append(stops, l.To.System)
	}
	s := fmt.Sprintf("%d-leg route worth %s over %s: %s.",
		len(ch.Legs), credits(ch.Profit), ly(ch.DistanceLy), strings.Join(stops, ", then "))
	switch ch.StopReason {
	case engine.StopMaxHops:
		s += " Stopped at the hop limit."
	case engine.StopDistanceBudget:
		s += " Stopped at the travel distance limit."
	}
	return s
}

func (f *Facade) summarizeRare(c *call, groups []engine.RareGroup) string {
	first := groups[0]
	near := first.Stations[0]
	return fmt.Sprintf("%s within %s. Nearest is %s at %s, %s away, for %s.",
		plural(len(groups), "rare good"), ly(c.radius), f.commodityName(first.Commodity),
		at(near.Station), ly(near.Station.DistanceLy), credits(near.Price))
}

func (f *Facade) summarizeFactors(c *call, stations []market.NearbyStation) string {
	s := stations[0]
	return fmt.Sprintf("Nearest Interstellar Factors is at %s in %s, %s away, in %s security space.",
		s.Name, s.SystemName, ly(s.DistanceLy), strings.ToLower(string(s.Security)))
}

func summarizeCache(r CacheReport) string {
	return fmt.Sprintf("%s cached, hit rate %.0f%%, %s saved.",
		plural(r.Entries, "entry"), r.HitRate*100, plural(int(r.CallsSaved), "remote call"))
}

func summarizeCleared(n int) string {
	return fmt.Sprintf("Cleared %s from the cache.", plural(n, "entry"))
}

func plural(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	if strings.HasSuffix(word, "y") {
		return humanize.Comma(int64(n)) + " " + strings.TrimSuffix(word, "y") + "ies"
	}
	return humanize.Comma(int64(n)) + " " + word + "s"
}
