package history

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/gridcast/gridcast/internal/features"
	"github.com/gridcast/gridcast/internal/models"
)

// ErrNonMonotonic is returned when a forecast write-back violates the
// strictly-increasing timestamp order required within a region.
var ErrNonMonotonic = errors.New("forecast timestamps must be strictly increasing per region")

// DefaultTempTolerance bounds how far a historical day's temperature may
// deviate from the reference before it stops counting as similar.
const DefaultTempTolerance = 5.0

// similarDayCap is the number of distinct matching dates averaged by the
// similar-days estimate.
const similarDayCap = 7

// key is the composite lookup key for exact-match maps. Timestamps are
// stored as unix seconds so the key stays comparable and location-agnostic.
type key struct {
	region string
	unix   int64
}

// point is one entry of a region's descending-time similar-day list.
type point struct {
	unix        int64
	hour        int
	dayType     models.DayType
	demand      float64
	temperature float64
	hasTemp     bool
}

type runningMean struct {
	sum   float64
	count int
}

func (m *runningMean) add(v float64) {
	m.sum += v
	m.count++
}

func (m *runningMean) mean() (float64, bool) {
	if m.count == 0 {
		return 0, false
	}
	return m.sum / float64(m.count), true
}

type typicalKey struct {
	region  string
	hour    int
	dayType models.DayType
}

type lastValue struct {
	value float64
	unix  int64
	set   bool
}

// Index is the per-run historical lookup context: exact-match maps for
// demand and temperature, per-(region, hour, day-type) running averages,
// descending-time point lists for similar-day search, and per-region
// last-known trackers. It is built once from historical data, then grows
// only through AppendForecast as the pipeline feeds results back.
type Index struct {
	calendar *features.Calendar

	demand      map[key]float64
	temperature map[key]float64

	typicalDemand map[typicalKey]*runningMean
	typicalTemp   map[typicalKey]*runningMean

	byRegion map[string][]point

	lastDemand map[string]lastValue
	lastTemp   map[string]lastValue

	// lastForecast enforces the write-then-read contract: forecasts for a
	// region must arrive in strictly increasing timestamp order.
	lastForecast map[string]int64

	tolerance float64
}

// Builder accumulates historical observations and produces an immutable-
// shaped Index. A builder is single-use; construct a fresh one per run.
type Builder struct {
	calendar  *features.Calendar
	tolerance float64

	demand      map[key]float64
	temperature map[key]float64
}

// NewBuilder creates an index builder on the given calendar with the
// default similar-day temperature tolerance.
func NewBuilder(cal *features.Calendar) *Builder {
	return &Builder{
		calendar:    cal,
		tolerance:   DefaultTempTolerance,
		demand:      make(map[key]float64),
		temperature: make(map[key]float64),
	}
}

// WithTolerance overrides the similar-day temperature tolerance.
func (b *Builder) WithTolerance(tolerance float64) *Builder {
	if tolerance > 0 {
		b.tolerance = tolerance
	}
	return b
}

// AddRecord ingests one merged demand+weather observation.
func (b *Builder) AddRecord(rec models.HourlyRecord) {
	k := key{region: rec.Region, unix: rec.Timestamp.Unix()}
	b.demand[k] = rec.Demand
	b.temperature[k] = rec.Weather.Temperature
}

// AddDemand ingests one raw demand reading without weather alignment.
// It never overwrites a merged record's demand for the same timestep.
func (b *Builder) AddDemand(rec models.DemandRecord) {
	k := key{region: rec.Region, unix: rec.Timestamp.Unix()}
	if _, exists := b.demand[k]; !exists {
		b.demand[k] = rec.Demand
	}
}

// Build freezes the accumulated observations into an Index: sorts the
// per-region point lists newest-first and accumulates typical averages and
// last-known trackers. Observations are folded in sorted (region, time)
// order so the floating-point sums behind the typical averages come out
// identical on every build of the same data.
func (b *Builder) Build() *Index {
	idx := &Index{
		calendar:      b.calendar,
		demand:        b.demand,
		temperature:   b.temperature,
		typicalDemand: make(map[typicalKey]*runningMean),
		typicalTemp:   make(map[typicalKey]*runningMean),
		byRegion:      make(map[string][]point),
		lastDemand:    make(map[string]lastValue),
		lastTemp:      make(map[string]lastValue),
		lastForecast:  make(map[string]int64),
		tolerance:     b.tolerance,
	}

	for _, k := range sortedKeys(b.demand) {
		demand := b.demand[k]
		ts := time.Unix(k.unix, 0).UTC()
		hour := ts.Hour()
		dayType := b.calendar.DayTypeOf(ts)

		p := point{
			unix:    k.unix,
			hour:    hour,
			dayType: dayType,
			demand:  demand,
		}
		if temp, ok := b.temperature[k]; ok {
			p.temperature = temp
			p.hasTemp = true
		}
		idx.byRegion[k.region] = append(idx.byRegion[k.region], p)

		tk := typicalKey{region: k.region, hour: hour, dayType: dayType}
		if idx.typicalDemand[tk] == nil {
			idx.typicalDemand[tk] = &runningMean{}
		}
		idx.typicalDemand[tk].add(demand)

		if last := idx.lastDemand[k.region]; !last.set || k.unix > last.unix {
			idx.lastDemand[k.region] = lastValue{value: demand, unix: k.unix, set: true}
		}
	}

	for _, k := range sortedKeys(b.temperature) {
		temp := b.temperature[k]
		ts := time.Unix(k.unix, 0).UTC()
		tk := typicalKey{region: k.region, hour: ts.Hour(), dayType: b.calendar.DayTypeOf(ts)}
		if idx.typicalTemp[tk] == nil {
			idx.typicalTemp[tk] = &runningMean{}
		}
		idx.typicalTemp[tk].add(temp)

		if last := idx.lastTemp[k.region]; !last.set || k.unix > last.unix {
			idx.lastTemp[k.region] = lastValue{value: temp, unix: k.unix, set: true}
		}
	}

	for region := range idx.byRegion {
		points := idx.byRegion[region]
		sort.Slice(points, func(i, j int) bool { return points[i].unix > points[j].unix })
	}

	return idx
}

// sortedKeys returns the map's keys ordered by region, then time.
func sortedKeys(m map[key]float64) []key {
	keys := make([]key, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].region != keys[j].region {
			return keys[i].region < keys[j].region
		}
		return keys[i].unix < keys[j].unix
	})
	return keys
}

// Regions lists every region the index holds data for.
func (idx *Index) Regions() []string {
	regions := make([]string, 0, len(idx.byRegion))
	for r := range idx.byRegion {
		regions = append(regions, r)
	}
	sort.Strings(regions)
	return regions
}

// Size returns the number of demand observations held, including forecasts
// written back during the run.
func (idx *Index) Size() int {
	return len(idx.demand)
}

// AppendForecast writes a pipeline result into the exact-match demand map so
// later timesteps in the run resolve it as tier-1 lag history. Timestamps
// must be strictly increasing per region; violating that order is an error,
// never a silent overwrite. Similar-day lists, typical averages, and
// last-known trackers deliberately stay historical-only.
func (idx *Index) AppendForecast(region string, ts time.Time, demand float64) error {
	unix := ts.Unix()
	if last, ok := idx.lastForecast[region]; ok && unix <= last {
		return fmt.Errorf("%w: region %s, %s after %s", ErrNonMonotonic,
			region, ts.UTC().Format(time.RFC3339), time.Unix(last, 0).UTC().Format(time.RFC3339))
	}
	idx.demand[key{region: region, unix: unix}] = demand
	idx.lastForecast[region] = unix
	return nil
}
