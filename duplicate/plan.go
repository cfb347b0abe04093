package duplicate

import "github.com/viant/sqlite-dedup/asset"

// MergePlan is the membership update computed for one scanned asset.
type MergePlan struct {
	// TargetID is the group every listed asset ends up in.
	TargetID string
	// AssetIDs are reassigned to TargetID; the scanned asset is always last.
	AssetIDs []string
	// SourceIDs are groups absorbed into TargetID.
	SourceIDs []string
	// Created reports that TargetID was minted for this plan.
	Created bool

	scanned      string
	scannedHolds bool
}

// Noop reports whether applying the plan would change nothing: the scanned
// asset already belongs to the target and no other asset or group moves.
func (p MergePlan) Noop() bool {
	return len(p.SourceIDs) == 0 && len(p.AssetIDs) == 1 && p.AssetIDs[0] == p.scanned && p.scannedHolds
}

// Plan computes the merge for a scanned asset and its candidates.
//
// The target is the asset's own group if it has one, else the first group
// referenced by a candidate, else a new id from newID. Existing group ids are
// kept so they stay stable across rescans. Every other candidate group is
// absorbed. Candidates outside the target, and the scanned asset itself, are
// reassigned.
func Plan(a asset.Asset, matches []asset.Match, newID IDGenerator) MergePlan {
	var groups []string
	seen := map[string]bool{}
	for _, m := range matches {
		if g := m.GroupID(); g != "" && !seen[g] {
			seen[g] = true
			groups = append(groups, g)
		}
	}

	plan := MergePlan{scanned: a.ID}
	switch {
	case a.GroupID() != "":
		plan.TargetID = a.GroupID()
	case len(groups) > 0:
		plan.TargetID = groups[0]
	default:
		plan.TargetID = newID()
		plan.Created = true
	}
	plan.scannedHolds = a.GroupID() == plan.TargetID

	for _, g := range groups {
		if g != plan.TargetID {
			plan.SourceIDs = append(plan.SourceIDs, g)
		}
	}
	listed := map[string]bool{a.ID: true}
	for _, m := range matches {
		if m.GroupID() == plan.TargetID || listed[m.AssetID] {
			continue
		}
		listed[m.AssetID] = true
		plan.AssetIDs = append(plan.AssetIDs, m.AssetID)
	}
	plan.AssetIDs = append(plan.AssetIDs, a.ID)
	return plan
}
