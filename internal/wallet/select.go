package wallet

import (
	"sort"
	"strings"
)

// SelectPreferred returns the wallet ranked best by the policy. Ties are
// broken by address and then chain type so the choice does not depend on
// the order the provider listed wallets in.
func SelectPreferred(descs []Descriptor, policy Policy) (Descriptor, bool) {
	if len(descs) == 0 {
		return Descriptor{}, false
	}

	candidates := make([]Descriptor, len(descs))
	copy(candidates, descs)

	sort.SliceStable(candidates, func(i, j int) bool {
		ri, rj := policy.Rank(Classify(candidates[i])), policy.Rank(Classify(candidates[j]))
		if ri != rj {
			return ri < rj
		}

		ai, aj := strings.ToLower(candidates[i].Address), strings.ToLower(candidates[j].Address)
		if ai != aj {
			return ai < aj
		}

		return candidates[i].ChainType < candidates[j].ChainType
	})

	return candidates[0], true
}
