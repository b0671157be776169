// Package session holds the per-round ruleset consulted by holdable items.
package session

import (
	"sync"

	"github.com/zeusync/holdable/internal/core/models"
)

// Ruleset is safe for concurrent use: the admin surface may change it while
// the simulation reads it.
type Ruleset struct {
	mu            sync.RWMutex
	allowRewiring bool
	limits        map[models.ProfileID]map[models.DefinitionID]int
}

// Limit is one saved per-profile attach limit.
type Limit struct {
	Profile    models.ProfileID
	Definition models.DefinitionID
	Max        int
}

func NewRuleset(allowRewiring bool, limits ...Limit) *Ruleset {
	r := &Ruleset{
		allowRewiring: allowRewiring,
		limits:        make(map[models.ProfileID]map[models.DefinitionID]int),
	}
	for _, l := range limits {
		r.SetMaxAttached(l.Profile, l.Definition, l.Max)
	}
	return r
}

func (r *Ruleset) AllowRewiring() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.allowRewiring
}

func (r *Ruleset) SetAllowRewiring(allow bool) {
	r.mu.Lock()
	r.allowRewiring = allow
	r.mu.Unlock()
}

// MaxAttachedCount returns zero for profiles without a saved limit.
func (r *Ruleset) MaxAttachedCount(profile models.ProfileID, def models.DefinitionID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.limits[profile][def]
}

// SetMaxAttached stores a limit; negative values clamp to zero.
func (r *Ruleset) SetMaxAttached(profile models.ProfileID, def models.DefinitionID, max int) {
	if max < 0 {
		max = 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	byDef, ok := r.limits[profile]
	if !ok {
		byDef = make(map[models.DefinitionID]int)
		r.limits[profile] = byDef
	}
	byDef[def] = max
}
