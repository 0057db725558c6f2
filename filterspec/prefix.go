package filterspec

import "net/netip"

// matchPrefix implements the inclusive prefix semantics from spec §8/§9:
// the target prefix itself always counts as matching its own super/sub
// clause (Open Question resolved inclusively, see DESIGN.md).
func matchPrefix(f *FilterSpec, candidate string) bool {
	target, err := netip.ParsePrefix(f.Prefix)
	if err != nil {
		return false
	}
	cand, err := netip.ParsePrefix(candidate)
	if err != nil {
		return false
	}
	target = target.Masked()
	cand = cand.Masked()

	switch f.PrefixMode {
	case PrefixExact:
		return cand == target
	case PrefixSuper:
		return cand == target || isSuperOf(cand, target)
	case PrefixSub:
		return cand == target || isSuperOf(target, cand)
	case PrefixSuperSub:
		return cand == target || isSuperOf(cand, target) || isSuperOf(target, cand)
	default:
		return true
	}
}

// isSuperOf reports whether a is a strict supernet (shorter mask,
// covering) of b.
func isSuperOf(a, b netip.Prefix) bool {
	if a.Addr().BitLen() != b.Addr().BitLen() {
		return false
	}
	if a.Bits() >= b.Bits() {
		return false
	}
	return a.Contains(b.Addr())
}
