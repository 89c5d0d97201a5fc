// Package zonecheck cross-checks the DCF77 broadcast time-zone flag
// against the real Europe/Berlin changeover rules, decoded straight from
// the system's own TZif database rather than trusted blindly from the
// transmitter. The voter's locked-mode field prediction (§4.4) consults
// it instead of guessing CET/CEST from the DCF tz bit alone.
package zonecheck

import (
	"fmt"
	"os"
	"sort"

	"github.com/ngrash/go-tz/tzif"
)

// DefaultZoneFile is the system's Europe/Berlin TZif database, the zone
// the decoder assumes per its TZ=:Europe/Berlin environment contract.
const DefaultZoneFile = "/usr/share/zoneinfo/Europe/Berlin"

// Resolver answers, for an absolute UTC second, whether Europe/Berlin
// civil time is currently in Daylight Saving Time.
type Resolver struct {
	times   []int64
	types   []uint8
	records []tzif.LocalTimeTypeRecord
}

// Load decodes the TZif file at path.
func Load(path string) (*Resolver, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("zonecheck: open %s: %w", path, err)
	}
	defer f.Close()

	file, err := tzif.DecodeFile(f)
	if err != nil {
		return nil, fmt.Errorf("zonecheck: decode %s: %w", path, err)
	}

	return &Resolver{
		times:   file.V2Data.TransitionTimes,
		types:   file.V2Data.TransitionTypes,
		records: file.V2Data.LocalTimeTypeRecord,
	}, nil
}

// recordAt returns the local time type record in effect at stamp.
func (r *Resolver) recordAt(stamp int64) tzif.LocalTimeTypeRecord {
	if len(r.times) == 0 || len(r.records) == 0 {
		return tzif.LocalTimeTypeRecord{}
	}

	i := sort.Search(len(r.times), func(i int) bool { return r.times[i] > stamp })
	if i == 0 {
		// Before the first recorded transition: fall back to the
		// first standard-time record, per RFC 8536's guidance for
		// timestamps that predate the transition table.
		for _, rec := range r.records {
			if !rec.Dst {
				return rec
			}
		}
		return r.records[0]
	}

	return r.records[r.types[i-1]]
}

// TZAt returns the DCF77 tz encoding (1 = CET, 2 = CEST) in effect for
// the real Europe/Berlin zone at the given absolute UTC second. fallback
// is unused: a loaded Resolver always has a real answer and never needs
// to echo the caller's last-known tz back.
func (r *Resolver) TZAt(stamp int64, fallback int) int {
	if r.recordAt(stamp).Dst {
		return 2
	}
	return 1
}

// IsDST reports whether Europe/Berlin civil time is in DST at stamp.
func (r *Resolver) IsDST(stamp int64) bool {
	return r.recordAt(stamp).Dst
}
