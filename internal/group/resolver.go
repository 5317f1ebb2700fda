package group

import (
	"sort"

	"go.uber.org/zap"

	"nc-warden.io/warden/internal/controller"
	"nc-warden.io/warden/internal/pkg/logger"
)

// Resolver turns a group reference plus a live client snapshot into the
// concrete member MAC set.
type Resolver struct {
	store *Store
}

// NewResolver creates a resolver over the given store.
func NewResolver(store *Store) *Resolver {
	return &Resolver{store: store}
}

// Resolve returns the member MACs of the referenced group, sorted.
//
// Static membership is authoritative: stored MACs are returned even
// when the client is offline or unknown to the snapshot, and the
// action layer reports per-member reality. Auto membership is the
// subset of the snapshot matching the group's rules. Zero members is a
// valid result, not an error.
func (r *Resolver) Resolve(ref string, snapshot []controller.Client) ([]string, error) {
	g, err := r.store.Get(ref)
	if err != nil {
		return nil, err
	}
	return r.members(g, snapshot)
}

// ResolveGroup is Resolve for an already-loaded group definition.
func (r *Resolver) ResolveGroup(g *Group, snapshot []controller.Client) ([]string, error) {
	return r.members(g, snapshot)
}

func (r *Resolver) members(g *Group, snapshot []controller.Client) ([]string, error) {
	var macs []string
	if g.IsStatic() {
		macs = g.MemberMACs()
	} else {
		// Stored rules were validated at creation; recompiling can only
		// fail after a hand-edited groups file, and surfaces the same
		// InvalidRuleError it would at creation.
		eval, err := NewEvaluator(g.Rules)
		if err != nil {
			return nil, err
		}
		for i := range snapshot {
			if eval.Matches(&snapshot[i]) {
				macs = append(macs, controller.NormalizeMAC(snapshot[i].MAC))
			}
		}
	}

	sort.Strings(macs)
	logger.Debug("Resolved group",
		zap.String("group_id", g.ID),
		zap.String("kind", string(g.Kind)),
		zap.Int("members", len(macs)),
	)
	return macs, nil
}
