// Package netplan does the address-space arithmetic behind manifest
// validation: CIDR parsing, containment and hub/spoke disjointness.
package netplan

import (
	"fmt"
	"net/netip"

	"github.com/EvilSuperstars/go-cidrman"
)

// Parse parses s as an IPv4 CIDR block. The address must be the masked
// network address, so "10.0.1.5/24" is rejected.
func Parse(s string) (netip.Prefix, error) {
	p, err := netip.ParsePrefix(s)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("invalid CIDR %q: %w", s, err)
	}
	if !p.Addr().Is4() {
		return netip.Prefix{}, fmt.Errorf("invalid CIDR %q: only IPv4 address spaces are supported", s)
	}
	if p != p.Masked() {
		return netip.Prefix{}, fmt.Errorf("invalid CIDR %q: address bits set beyond the /%d prefix", s, p.Bits())
	}
	return p, nil
}

// Valid reports whether s is an acceptable IPv4 CIDR block.
func Valid(s string) bool {
	_, err := Parse(s)
	return err == nil
}

// Contains reports whether inner is fully contained in outer.
func Contains(outer, inner string) (bool, error) {
	o, err := Parse(outer)
	if err != nil {
		return false, err
	}
	i, err := Parse(inner)
	if err != nil {
		return false, err
	}
	return o.Bits() <= i.Bits() && o.Contains(i.Addr()), nil
}

// Disjoint reports whether a and b share no addresses.
func Disjoint(a, b string) (bool, error) {
	pa, err := Parse(a)
	if err != nil {
		return false, err
	}
	pb, err := Parse(b)
	if err != nil {
		return false, err
	}
	return !pa.Overlaps(pb), nil
}

// CheckPairwiseDisjoint verifies that every named address space is
// disjoint from every other. The names key the error message so the
// caller can report the offending fields.
func CheckPairwiseDisjoint(spaces []NamedSpace) error {
	for i := 0; i < len(spaces); i++ {
		for j := i + 1; j < len(spaces); j++ {
			ok, err := Disjoint(spaces[i].CIDR, spaces[j].CIDR)
			if err != nil {
				return fmt.Errorf("%s: %w", spaces[i].Name, err)
			}
			if !ok {
				return fmt.Errorf("%s (%s) overlaps %s (%s)",
					spaces[i].Name, spaces[i].CIDR, spaces[j].Name, spaces[j].CIDR)
			}
		}
	}
	return nil
}

// NamedSpace is an address space labeled with the manifest field it
// came from.
type NamedSpace struct {
	Name string
	CIDR string
}

// Normalize merges a caller-supplied allow-list of CIDR blocks into a
// minimal covering set, collapsing overlapping and adjacent entries.
// Platform network rule sets cap the number of entries, so the merged
// form is what gets applied.
func Normalize(cidrs []string) ([]string, error) {
	for _, c := range cidrs {
		if _, err := Parse(c); err != nil {
			return nil, err
		}
	}
	merged, err := cidrman.MergeCIDRs(cidrs)
	if err != nil {
		return nil, fmt.Errorf("merge CIDRs: %w", err)
	}
	return merged, nil
}
