package routing

import (
	"strconv"
	"strings"

	"github.com/BaSui01/agentroute/a2a"
)

// CapabilityScore rates how well a card satisfies the required capabilities,
// in [0, 1]. Per capability: an exact version match scores 1.0; a different
// major version scores 0; a higher minor version on the same major decays by
// 0.1 per step, floored at 0.7. The per-capability scores are averaged over
// the required set and weighted by the fraction of capabilities matched at
// all, so an agent covering half the set well still ranks below one covering
// all of it adequately.
func CapabilityScore(card *a2a.AgentCard, required []a2a.Capability) float64 {
	if len(required) == 0 {
		return 1
	}

	var sum float64
	matched := 0
	for _, req := range required {
		have, ok := card.FindCapability(req.Name)
		if !ok {
			continue
		}
		score := versionScore(have.Version, req.Version)
		if score > 0 {
			matched++
			sum += score
		}
	}
	if matched == 0 {
		return 0
	}

	n := float64(len(required))
	return (sum / n) * (float64(matched) / n)
}

// versionScore compares an offered capability version against a required one.
func versionScore(have, want string) float64 {
	if have == want {
		return 1
	}
	haveMajor, haveMinor, okHave := parseVersion(have)
	wantMajor, wantMinor, okWant := parseVersion(want)
	if !okHave || !okWant {
		return 0
	}
	if haveMajor != wantMajor || haveMinor < wantMinor {
		return 0
	}
	if haveMinor == wantMinor {
		return 1
	}
	score := 1 - 0.1*float64(haveMinor-wantMinor)
	if score < 0.7 {
		return 0.7
	}
	return score
}

// parseVersion extracts major and minor from a "major.minor[.patch]" string.
// A bare major like "2" is treated as "2.0".
func parseVersion(v string) (major, minor int, ok bool) {
	parts := strings.SplitN(strings.TrimPrefix(v, "v"), ".", 3)
	major, err := strconv.Atoi(parts[0])
	if err != nil || major < 0 {
		return 0, 0, false
	}
	if len(parts) == 1 {
		return major, 0, true
	}
	minor, err = strconv.Atoi(parts[1])
	if err != nil || minor < 0 {
		return 0, 0, false
	}
	return major, minor, true
}
