package gate

import (
	"hash/fnv"
	"math"

	"trafficgate/saturn/pkg/rcp"
)

// previewRunID substitutes for an empty run ID so preview evaluations
// sample the same bucket every time.
const previewRunID = "preview"

// InRollout reports whether the policy is included in the rollout sample
// for the given algorithm and run.
//
// The decision hashes (policyID, algoKey, runID) with FNV-1a, normalizes
// the digest to [0,1], and includes the policy iff the normalized value is
// at or below RolloutPercent. The same triple always produces the same
// decision, independent of call order or repetition.
func InRollout(p *rcp.Policy, algoKey, runID string) bool {
	if p.RolloutPercent >= 1 {
		return true
	}
	if p.RolloutPercent <= 0 {
		return false
	}
	return rolloutFraction(p.ID, algoKey, runID) <= p.RolloutPercent
}

func rolloutFraction(policyID, algoKey, runID string) float64 {
	if runID == "" {
		runID = previewRunID
	}
	h := fnv.New64a()
	h.Write([]byte(policyID))
	h.Write([]byte{0})
	h.Write([]byte(algoKey))
	h.Write([]byte{0})
	h.Write([]byte(runID))
	return float64(h.Sum64()) / float64(math.MaxUint64)
}
