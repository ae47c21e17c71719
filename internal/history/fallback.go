package history

import (
	"time"

	"github.com/gridcast/gridcast/internal/models"
)

// Lag offsets and the rolling window are fixed by the feature schema.
const (
	rollingWindowHours = 24
)

// Resolution is the outcome of one fallback-chain lookup, carrying the tier
// that produced the value. Tier "none" means nothing resolved.
type Resolution struct {
	Value float64
	Tier  models.FallbackTier
}

// Defined reports whether any tier produced a value.
func (r Resolution) Defined() bool {
	return r.Tier != models.TierNone
}

// ResolveDemand resolves demand at (region, ts) through the fallback chain:
// exact match, then similar-days estimate, then per-(region, hour, day-type)
// typical average, then last known value. refTemp anchors the similar-day
// temperature filter.
func (idx *Index) ResolveDemand(region string, ts time.Time, refTemp float64) Resolution {
	if v, ok := idx.demand[key{region: region, unix: ts.Unix()}]; ok {
		return Resolution{Value: v, Tier: models.TierExact}
	}
	if est, ok := idx.similarDays(region, ts, refTemp, false); ok {
		return Resolution{Value: est, Tier: models.TierSimilarDays}
	}
	tk := typicalKey{region: region, hour: ts.Hour(), dayType: idx.calendar.DayTypeOf(ts)}
	if m := idx.typicalDemand[tk]; m != nil {
		if avg, ok := m.mean(); ok {
			return Resolution{Value: avg, Tier: models.TierTypical}
		}
	}
	if last := idx.lastDemand[region]; last.set {
		return Resolution{Value: last.value, Tier: models.TierLastKnown}
	}
	return Resolution{Tier: models.TierNone}
}

// ResolveTemperature resolves temperature at (region, ts) through the same
// chain, with tier 2 averaging the matched days' temperatures.
func (idx *Index) ResolveTemperature(region string, ts time.Time, refTemp float64) Resolution {
	if v, ok := idx.temperature[key{region: region, unix: ts.Unix()}]; ok {
		return Resolution{Value: v, Tier: models.TierExact}
	}
	if est, ok := idx.similarDays(region, ts, refTemp, true); ok {
		return Resolution{Value: est, Tier: models.TierSimilarDays}
	}
	tk := typicalKey{region: region, hour: ts.Hour(), dayType: idx.calendar.DayTypeOf(ts)}
	if m := idx.typicalTemp[tk]; m != nil {
		if avg, ok := m.mean(); ok {
			return Resolution{Value: avg, Tier: models.TierTypical}
		}
	}
	if last := idx.lastTemp[region]; last.set {
		return Resolution{Value: last.value, Tier: models.TierLastKnown}
	}
	return Resolution{Tier: models.TierNone}
}

// SimilarDaysEstimate exposes the tier-2 demand estimate for the pipeline's
// cold-start blending.
func (idx *Index) SimilarDaysEstimate(region string, ts time.Time, refTemp float64) (float64, bool) {
	return idx.similarDays(region, ts, refTemp, false)
}

// similarDays averages demand (or temperature) across up to similarDayCap
// distinct historical dates sharing the target's hour and day-type, strictly
// before the target, within the temperature tolerance of refTemp, scanned
// newest-first and deduplicated by calendar date.
func (idx *Index) similarDays(region string, ts time.Time, refTemp float64, wantTemp bool) (float64, bool) {
	targetUnix := ts.Unix()
	targetHour := ts.Hour()
	targetDayType := idx.calendar.DayTypeOf(ts)

	var (
		sum   float64
		count int
		seen  = make(map[string]bool, similarDayCap)
	)

	for _, p := range idx.byRegion[region] {
		if p.unix >= targetUnix {
			continue
		}
		if p.hour != targetHour || p.dayType != targetDayType {
			continue
		}
		if !p.hasTemp {
			continue
		}
		if diff := p.temperature - refTemp; diff > idx.tolerance || diff < -idx.tolerance {
			continue
		}

		date := time.Unix(p.unix, 0).UTC().Format("2006-01-02")
		if seen[date] {
			continue
		}
		seen[date] = true

		if wantTemp {
			sum += p.temperature
		} else {
			sum += p.demand
		}
		count++
		if count == similarDayCap {
			break
		}
	}

	if count == 0 {
		return 0, false
	}
	return sum / float64(count), true
}

// LagContext carries resolved lag features plus the tier that satisfied each
// scalar lag. The 1-hour demand tier drives the pipeline's cold-start
// blending; the rest feed fallback observability.
type LagContext struct {
	Lags models.LagFeatures

	Demand1h   models.FallbackTier
	Demand24h  models.FallbackTier
	Demand168h models.FallbackTier
	Temp1h     models.FallbackTier
	Temp24h    models.FallbackTier
}

// ResolveLags computes every lag and rolling feature for a forecast
// timestep via the fallback chain.
func (idx *Index) ResolveLags(region string, ts time.Time, refTemp float64) LagContext {
	var ctx LagContext

	d1 := idx.ResolveDemand(region, ts.Add(-1*time.Hour), refTemp)
	d24 := idx.ResolveDemand(region, ts.Add(-24*time.Hour), refTemp)
	d168 := idx.ResolveDemand(region, ts.Add(-168*time.Hour), refTemp)
	t1 := idx.ResolveTemperature(region, ts.Add(-1*time.Hour), refTemp)
	t24 := idx.ResolveTemperature(region, ts.Add(-24*time.Hour), refTemp)

	ctx.Demand1h = d1.Tier
	ctx.Demand24h = d24.Tier
	ctx.Demand168h = d168.Tier
	ctx.Temp1h = t1.Tier
	ctx.Temp24h = t24.Tier
	ctx.Lags.Demand1h = asOptional(d1)
	ctx.Lags.Demand24h = asOptional(d24)
	ctx.Lags.Demand168h = asOptional(d168)
	ctx.Lags.Temperature1h = asOptional(t1)
	ctx.Lags.Temperature24h = asOptional(t24)

	ctx.Lags.DemandRollMean24h, ctx.Lags.TempRollMean24h, ctx.Lags.TempRollMax24h =
		idx.rollingAggregates(region, ts, refTemp, false)

	return ctx
}

// ExactLags resolves lag and rolling features at tier 1 only. Sample
// building uses it so the coverage filter keeps its meaning: with the full
// chain engaged, tier 4 would answer for every record and nothing would
// ever be filtered.
func (idx *Index) ExactLags(region string, ts time.Time) models.LagFeatures {
	var lags models.LagFeatures

	lags.Demand1h = idx.exactDemand(region, ts.Add(-1*time.Hour))
	lags.Demand24h = idx.exactDemand(region, ts.Add(-24*time.Hour))
	lags.Demand168h = idx.exactDemand(region, ts.Add(-168*time.Hour))
	lags.Temperature1h = idx.exactTemperature(region, ts.Add(-1*time.Hour))
	lags.Temperature24h = idx.exactTemperature(region, ts.Add(-24*time.Hour))

	lags.DemandRollMean24h, lags.TempRollMean24h, lags.TempRollMax24h =
		idx.rollingAggregates(region, ts, 0, true)

	return lags
}

func (idx *Index) exactDemand(region string, ts time.Time) models.OptionalValue {
	if v, ok := idx.demand[key{region: region, unix: ts.Unix()}]; ok {
		return models.Some(v)
	}
	return models.None()
}

func (idx *Index) exactTemperature(region string, ts time.Time) models.OptionalValue {
	if v, ok := idx.temperature[key{region: region, unix: ts.Unix()}]; ok {
		return models.Some(v)
	}
	return models.None()
}

// rollingAggregates computes the 24h mean demand, mean temperature, and max
// temperature by resolving each preceding hourly offset independently and
// averaging over however many resolved. Zero resolved offsets leave the
// aggregate undefined; it propagates as a missing optional feature.
func (idx *Index) rollingAggregates(region string, ts time.Time, refTemp float64, exactOnly bool) (models.OptionalValue, models.OptionalValue, models.OptionalValue) {
	var (
		demandSum   float64
		demandCount int
		tempSum     float64
		tempCount   int
		tempMax     float64
	)

	for i := 1; i <= rollingWindowHours; i++ {
		offset := ts.Add(-time.Duration(i) * time.Hour)

		var d, tv models.OptionalValue
		if exactOnly {
			d = idx.exactDemand(region, offset)
			tv = idx.exactTemperature(region, offset)
		} else {
			if res := idx.ResolveDemand(region, offset, refTemp); res.Defined() {
				d = models.Some(res.Value)
			}
			if res := idx.ResolveTemperature(region, offset, refTemp); res.Defined() {
				tv = models.Some(res.Value)
			}
		}

		if d.Valid {
			demandSum += d.Value
			demandCount++
		}
		if tv.Valid {
			tempSum += tv.Value
			tempCount++
			if tempCount == 1 || tv.Value > tempMax {
				tempMax = tv.Value
			}
		}
	}

	var rollDemand, rollTempMean, rollTempMax models.OptionalValue
	if demandCount > 0 {
		rollDemand = models.Some(demandSum / float64(demandCount))
	}
	if tempCount > 0 {
		rollTempMean = models.Some(tempSum / float64(tempCount))
		rollTempMax = models.Some(tempMax)
	}
	return rollDemand, rollTempMean, rollTempMax
}

func asOptional(r Resolution) models.OptionalValue {
	if !r.Defined() {
		return models.None()
	}
	return models.Some(r.Value)
}
