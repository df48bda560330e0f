// Package quota distributes a target invitation count across deprivation
// quintiles and area units. It performs no I/O.
package quota

import (
	"fmt"
	"math"
	"sort"

	"screening/internal/targeting"
	"screening/internal/targeting/models"
	dErrors "screening/pkg/domain-errors"
)

const weightTotal = 100

// ValidateWeights checks the quintile weights: five non-negative values
// summing to 100.
func ValidateWeights(weights [models.NumQuintiles]int) error {
	sum := 0
	for i, w := range weights {
		if w < 0 {
			return &targeting.InvalidWeightsError{Weights: weights, Reason: fmt.Sprintf("quintile %d weight is negative", i+1)}
		}
		sum += w
	}
	if sum != weightTotal {
		return &targeting.InvalidWeightsError{Weights: weights, Reason: fmt.Sprintf("weights sum to %d, want %d", sum, weightTotal)}
	}
	return nil
}

// ValidateForecastUptake checks that uptake is a percentage in (0,100].
func ValidateForecastUptake(weights [models.NumQuintiles]int, uptake float64) error {
	if math.IsNaN(uptake) || uptake <= 0 || uptake > 100 {
		return &targeting.InvalidWeightsError{Weights: weights, Reason: fmt.Sprintf("forecast uptake %v outside (0,100]", uptake)}
	}
	return nil
}

// Validate checks the full parameter set used by Allocate.
func Validate(params models.InvitationParameters) error {
	if err := ValidateWeights(params.QuintileWeights); err != nil {
		return err
	}
	return ValidateForecastUptake(params.QuintileWeights, params.ForecastUptake)
}

type unitPool struct {
	seg       models.Segment
	moderator float64
	count     int
}

func (u *unitPool) capacity() int {
	return len(u.seg.Residents) - u.count
}

// Allocate selects up to targetCount residents from segments.
//
// Each quintile's share is round(target*weight/100), reconciled by largest
// remainder so the shares sum to target. A quintile short of supply passes
// its shortfall to quintiles q+1..5 and then 1..q-1. Inside a quintile the
// count is spread over units in proportion to invitable pool size times
// moderator, so units expected to respond less receive more invitations.
// Residents are taken from the front of each unit's list.
//
// The returned warning is non-nil whenever any quintile could not fill its
// own share, including when redistribution still met the target.
func Allocate(targetCount int, segments []models.Segment, weights [models.NumQuintiles]int, forecastUptake float64) (*models.Allocation, *targeting.ShortfallWarning, error) {
	if err := ValidateWeights(weights); err != nil {
		return nil, nil, err
	}
	if err := ValidateForecastUptake(weights, forecastUptake); err != nil {
		return nil, nil, err
	}
	if targetCount < 0 || targetCount > models.MaxTargetCount {
		return nil, nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("target count %d outside [0,%d]", targetCount, models.MaxTargetCount))
	}

	pools, unranked := groupByQuintile(segments)

	var available [models.NumQuintiles]int
	for q := range pools {
		for _, u := range pools[q] {
			available[q] += len(u.seg.Residents)
		}
	}

	shares := quintileShares(targetCount, weights)
	var allocated, short [models.NumQuintiles]int
	for q := range shares {
		allocated[q] = min(shares[q], available[q])
		short[q] = shares[q] - allocated[q]
	}
	redistributed := redistribute(&allocated, short, available)

	alloc := &models.Allocation{Requested: targetCount, UnrankedUnits: unranked}
	for q := range pools {
		spread(pools[q], allocated[q])
		alloc.Quintiles = append(alloc.Quintiles, models.QuintileAllocation{
			Quintile:  models.Quintile(q + 1),
			Weight:    weights[q],
			Share:     shares[q],
			Available: available[q],
			Allocated: allocated[q],
		})
		for _, u := range pools[q] {
			alloc.Units = append(alloc.Units, models.UnitAllocation{
				AreaCode:  u.seg.Unit.Code,
				Quintile:  models.Quintile(q + 1),
				Moderator: u.moderator,
				Available: len(u.seg.Residents),
				Allocated: u.count,
			})
			alloc.Selected = append(alloc.Selected, u.seg.Residents[:u.count]...)
			alloc.ExpectedAcceptances += float64(u.count) * forecastUptake / 100 / u.moderator
		}
		alloc.Allocated += allocated[q]
	}
	alloc.Redistributed = redistributed

	var warning *targeting.ShortfallWarning
	if short != [models.NumQuintiles]int{} {
		warning = &targeting.ShortfallWarning{
			Requested:       targetCount,
			Allocated:       alloc.Allocated,
			Redistributed:   redistributed,
			ShortByQuintile: short,
		}
	}
	return alloc, warning, nil
}

// groupByQuintile buckets segments by quintile, sorted by area code within
// each bucket. Segments with an out of range decile are returned by code.
func groupByQuintile(segments []models.Segment) ([models.NumQuintiles][]*unitPool, []string) {
	var pools [models.NumQuintiles][]*unitPool
	var unranked []string
	for _, seg := range segments {
		q := seg.Unit.Quintile()
		if !q.Valid() {
			unranked = append(unranked, seg.Unit.Code)
			continue
		}
		m := seg.Unit.Moderator
		if m <= 0 || math.IsNaN(m) || math.IsInf(m, 0) {
			m = 1
		}
		pools[q.Index()] = append(pools[q.Index()], &unitPool{seg: seg, moderator: m})
	}
	for q := range pools {
		sort.SliceStable(pools[q], func(i, j int) bool {
			return pools[q][i].seg.Unit.Code < pools[q][j].seg.Unit.Code
		})
	}
	sort.Strings(unranked)
	return pools, unranked
}

// quintileShares rounds target*w/100 half up per quintile, then moves single
// units to or from quintiles by remainder until the shares sum to target.
func quintileShares(target int, weights [models.NumQuintiles]int) [models.NumQuintiles]int {
	var shares, rem [models.NumQuintiles]int
	sum := 0
	for q, w := range weights {
		shares[q] = target * w / weightTotal
		rem[q] = target * w % weightTotal
		if rem[q]*2 >= weightTotal {
			shares[q]++
		}
		sum += shares[q]
	}

	order := []int{0, 1, 2, 3, 4}
	switch drift := target - sum; {
	case drift > 0:
		// Round up the largest remainders that were rounded down.
		sort.SliceStable(order, func(i, j int) bool { return rem[order[i]] > rem[order[j]] })
		for _, q := range order {
			if drift == 0 {
				break
			}
			if rem[q]*2 < weightTotal && weights[q] > 0 {
				shares[q]++
				drift--
			}
		}
	case drift < 0:
		// Undo the round-ups with the smallest remainders.
		sort.SliceStable(order, func(i, j int) bool { return rem[order[i]] < rem[order[j]] })
		for _, q := range order {
			if drift == 0 {
				break
			}
			if rem[q]*2 >= weightTotal {
				shares[q]--
				drift++
			}
		}
	}
	return shares
}

// redistribute hands each quintile's shortfall to the next less deprived
// quintiles with spare supply, wrapping to the most deprived ones last.
func redistribute(allocated *[models.NumQuintiles]int, short, available [models.NumQuintiles]int) int {
	moved := 0
	for q := range short {
		need := short[q]
		for step := 1; step < models.NumQuintiles && need > 0; step++ {
			j := (q + step) % models.NumQuintiles
			take := min(need, available[j]-allocated[j])
			if take <= 0 {
				continue
			}
			allocated[j] += take
			need -= take
			moved += take
		}
	}
	return moved
}

// spread distributes n over units proportionally to remaining capacity times
// moderator using largest remainder. Units that hit capacity drop out and
// the excess is spread again over the rest. n must not exceed the total
// capacity.
func spread(units []*unitPool, n int) {
	remaining := n
	active := make([]*unitPool, 0, len(units))
	for _, u := range units {
		if u.capacity() > 0 {
			active = append(active, u)
		}
	}

	for remaining > 0 && len(active) > 0 {
		total := 0.0
		for _, u := range active {
			total += float64(u.capacity()) * u.moderator
		}

		type part struct {
			u    *unitPool
			want int
			frac float64
		}
		parts := make([]part, len(active))
		given := 0
		for i, u := range active {
			exact := float64(remaining) * float64(u.capacity()) * u.moderator / total
			whole := int(math.Floor(exact))
			parts[i] = part{u: u, want: whole, frac: exact - float64(whole)}
			given += whole
		}
		order := make([]int, len(parts))
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(a, b int) bool { return parts[order[a]].frac > parts[order[b]].frac })
		for k := 0; given < remaining && k < len(order); k++ {
			parts[order[k]].want++
			given++
		}

		before := remaining
		next := active[:0]
		for _, p := range parts {
			take := min(p.want, p.u.capacity(), remaining)
			p.u.count += take
			remaining -= take
			if p.u.capacity() > 0 {
				next = append(next, p.u)
			}
		}
		active = next
		if remaining == before && len(active) > 0 {
			active[0].count++
			remaining--
		}
	}
}
