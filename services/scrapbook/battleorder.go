package scrapbook

import "sort"

// planLimit bounds the greedy planner; past a few hundred targets the
// marginal yield is zero anyway.
const planLimit = 300

// PlanBattleOrder computes a greedy multi-target plan: pick the best
// candidate, pretend its items were found, discount every other
// character wearing the same items, and repeat. The result is the
// order in which fighting yields the most new items soonest.
//
// The plan is a simulation only; the ranking itself is not mutated.
func (r *Ranking) PlanBattleOrder(max int) []Candidate {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if max <= 0 || max > planLimit {
		max = planLimit
	}

	have := r.have.Clone()
	counts := make(map[int64]int, len(r.players))
	for _, snap := range r.players {
		score := Score(snap, have)
		if r.eligibleLocked(snap, score) {
			counts[snap.UID] = score
		}
	}

	var plan []Candidate
	for len(plan) < max {
		best, ok := r.bestOfLocked(counts)
		if !ok || best.Score <= 0 {
			break
		}
		plan = append(plan, best)
		delete(counts, best.UID)

		// every character wearing an item we just "found" yields one
		// item less from now on
		for _, item := range best.Equipment {
			if have.Has(item) || !countable(item) {
				continue
			}
			for uid := range r.equipment[item] {
				if n, ok := counts[uid]; ok && n > 0 {
					counts[uid] = n - 1
				}
			}
		}
		have.Add(best.Equipment...)
	}
	return plan
}

func (r *Ranking) bestOfLocked(counts map[int64]int) (Candidate, bool) {
	uids := make([]int64, 0, len(counts))
	for uid := range counts {
		uids = append(uids, uid)
	}
	sort.Slice(uids, func(i, j int) bool { return uids[i] < uids[j] })

	var best Candidate
	found := false
	for _, uid := range uids {
		snap := r.players[uid]
		cand := Candidate{Snapshot: snap, Score: counts[uid]}
		if !found || candidateLess(cand, best) {
			best = cand
			found = true
		}
	}
	return best, found
}
