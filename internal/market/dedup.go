package market

import "covinance/internal/remote"

type listingKey struct {
	station   int64
	commodity string
}

// dedupListings keeps one listing per (station, commodity), the most recently
// updated one. First-seen order is preserved; on equal timestamps the first
// occurrence wins.
func dedupListings(in []remote.Listing) []remote.Listing {
	idx := make(map[listingKey]int, len(in))
	out := make([]remote.Listing, 0, len(in))
	for _, l := range in {
		k := listingKey{l.StationID, l.Commodity}
		if i, ok := idx[k]; ok {
			if l.UpdatedAt.After(out[i].UpdatedAt) {
				out[i] = l
			}
			continue
		}
		idx[k] = len(out)
		out = append(out, l)
	}
	return out
}

func dedupStations(in []remote.Station) []remote.Station {
	idx := make(map[int64]int, len(in))
	out := make([]remote.Station, 0, len(in))
	for _, s := range in {
		if i, ok := idx[s.ID]; ok {
			if s.UpdatedAt.After(out[i].UpdatedAt) {
				out[i] = s
			}
			continue
		}
		idx[s.ID] = len(out)
		out = append(out, s)
	}
	return out
}
