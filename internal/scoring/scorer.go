// Package scoring implements the convenience scoring engine: pure,
// deterministic functions that turn nearby POI counts and distances into
// per-category and overall 0-100 scores.
package scoring

import (
	"math"
	"time"

	"github.com/urbanindex/urbanindex/internal/category"
	"github.com/urbanindex/urbanindex/internal/poi"
)

// Score budget split per category.
const (
	maxCountPoints     = 60.0
	maxDistancePoints  = 25.0
	maxDensityPoints   = 15.0
	maxDiversityPoints = 15.0

	// minCountPenaltyFactor scales down under-served categories. Flat
	// regardless of how far below MinCount the count is; count zero is the
	// separate hard-zero case.
	minCountPenaltyFactor = 0.4

	// maxDecayDistanceMeters caps the distance-score decay range.
	maxDecayDistanceMeters = 400.0

	// MaxNearbyPOIs limits how many nearest POIs a category result carries.
	MaxNearbyPOIs = 20
)

// CategoryResult is the score for one category at one point.
type CategoryResult struct {
	CategoryID            string   `json:"category_id"`
	Score                 int      `json:"score"`
	Count                 int      `json:"count"`
	RadiusMeters          float64  `json:"radius_meters"`
	NearestDistanceMeters *float64 `json:"nearest_distance_meters,omitempty"`

	// Nearest holds up to MaxNearbyPOIs POIs sorted ascending by distance.
	Nearest []poi.POI `json:"nearest,omitempty"`
}

// Result is a full point score.
type Result struct {
	Lat        float64          `json:"lat"`
	Lng        float64          `json:"lng"`
	Overall    int              `json:"overall"`
	Categories []CategoryResult `json:"categories"`
	ComputedAt time.Time        `json:"computed_at"`
}

// ScoreCategory scores one category from the POIs found within its radius.
// The input slice must be sorted ascending by DistanceMeters. Pure: no I/O,
// never fails for valid numeric inputs.
func ScoreCategory(def category.Definition, pois []poi.POI) CategoryResult {
	result := CategoryResult{
		CategoryID:   def.ID,
		Count:        len(pois),
		RadiusMeters: def.RadiusMeters,
	}

	// No POIs is the hard-zero baseline, distinct from "present but below
	// MinCount" which yields a discounted positive score.
	if len(pois) == 0 {
		return result
	}

	nearest := pois[0].DistanceMeters
	result.NearestDistanceMeters = &nearest
	result.Nearest = pois
	if len(result.Nearest) > MaxNearbyPOIs {
		result.Nearest = result.Nearest[:MaxNearbyPOIs]
	}

	var raw float64
	if def.HasSubTypes() {
		raw = subTypeScore(def, pois, nearest)
	} else {
		raw = flatScore(def, len(pois), nearest)
	}

	result.Score = clampScore(raw)
	return result
}

// flatScore scores a category without sub-types: count score, distance
// score, and a density bonus once count exceeds MaxCount.
func flatScore(def category.Definition, count int, nearest float64) float64 {
	counts := countScore(count, def.MaxCount, saturationK(def.SaturationK))
	dist := distanceScore(nearest, def.RadiusMeters)

	if count < def.MinCount {
		return math.Round((counts + dist) * minCountPenaltyFactor)
	}

	return counts + dist + densityBonus(count, def.MaxCount)
}

// subTypeScore scores a category with sub-types. Each sub-type contributes to
// the count-score budget proportional to its share of the summed MaxCount, so
// a small facet saturates fast and cannot dominate. A diversity bonus rewards
// having more than one facet present.
func subTypeScore(def category.Definition, pois []poi.POI, nearest float64) float64 {
	var totalMax int
	for _, st := range def.SubTypes {
		totalMax += st.MaxCount
	}

	var counts float64
	present := 0
	for _, st := range def.SubTypes {
		n := countMatching(pois, st.Tags)
		if n == 0 {
			continue
		}
		present++
		share := float64(st.MaxCount) / float64(totalMax)
		counts += maxCountPoints * share * saturation(n, st.MaxCount, saturationK(st.SaturationK))
	}

	dist := distanceScore(nearest, def.RadiusMeters)

	// The minimum-count penalty applies to the total across all sub-types
	// and discards the diversity bonus.
	if len(pois) < def.MinCount {
		return math.Round((counts + dist) * minCountPenaltyFactor)
	}

	diversity := math.Min(maxDiversityPoints, float64(present-1)*5)
	return counts + dist + diversity
}

// countScore is the logarithmic saturation curve over the 0-60 budget. The
// first POI is rewarded disproportionately; returns flatten as count grows.
func countScore(count, maxCount int, k float64) float64 {
	return maxCountPoints * saturation(count, maxCount, k)
}

// saturation returns ln(1+count*k)/ln(1+maxCount*k), capped at 1.
func saturation(count, maxCount int, k float64) float64 {
	if count <= 0 || maxCount <= 0 {
		return 0
	}
	s := math.Log(1+float64(count)*k) / math.Log(1+float64(maxCount)*k)
	return math.Min(1, s)
}

// distanceScore decays linearly from full credit at 0m to zero at
// min(400, radius*0.4) meters, based on the single nearest POI.
func distanceScore(nearest, radius float64) float64 {
	decayRange := math.Min(maxDecayDistanceMeters, radius*0.4)
	if decayRange <= 0 {
		return 0
	}
	score := maxDistancePoints * (1 - nearest/decayRange)
	return math.Max(0, score)
}

// densityBonus activates only once count exceeds MaxCount: truly exceptional
// density, scaled logarithmically.
func densityBonus(count, maxCount int) float64 {
	if count <= maxCount {
		return 0
	}
	excess := float64(count - maxCount)
	scale := math.Min(1, math.Log(1+excess)/math.Log(1+float64(maxCount)*2))
	return maxDensityPoints * scale
}

// Overall aggregates per-category scores into a weighted average. Category
// weights come from the static config, which guarantees a positive total.
func Overall(results []CategoryResult) int {
	var weighted, totalWeight float64
	for _, r := range results {
		def, err := category.ByID(r.CategoryID)
		if err != nil {
			continue
		}
		weighted += float64(r.Score) * def.Weight
		totalWeight += def.Weight
	}
	if totalWeight == 0 {
		return 0
	}
	return int(math.Round(weighted / totalWeight))
}

// Compress squashes raw aggregate scores above 60 so dense urban cells do not
// bunch at the top of the scale. Identity for values at or below 60. Applied
// exactly once per final heatmap aggregate, never per category.
func Compress(raw float64) int {
	if raw <= 60 {
		return int(math.Round(raw))
	}
	compressed := 60 + 40*(1-math.Exp(-(raw-60)/50))
	return clampScore(compressed)
}

// HeatmapAggregate computes the compressed weighted aggregate used by the
// heatmap path.
func HeatmapAggregate(results []CategoryResult) int {
	var weighted, totalWeight float64
	for _, r := range results {
		def, err := category.ByID(r.CategoryID)
		if err != nil {
			continue
		}
		weighted += float64(r.Score) * def.Weight
		totalWeight += def.Weight
	}
	if totalWeight == 0 {
		return 0
	}
	return Compress(weighted / totalWeight)
}

func countMatching(pois []poi.POI, tags []string) int {
	n := 0
	for _, p := range pois {
		for _, t := range tags {
			if p.Tag == t {
				n++
				break
			}
		}
	}
	return n
}

func saturationK(k float64) float64 {
	if k <= 0 {
		return category.DefaultSaturationK
	}
	return k
}

func clampScore(score float64) int {
	rounded := int(math.Round(score))
	if rounded < 0 {
		return 0
	}
	if rounded > 100 {
		return 100
	}
	return rounded
}
