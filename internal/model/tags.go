package model

// TagSet is a string-to-string tag mapping applied to every resource
// in a deployment.
type TagSet map[string]string

// MergeTags combines tag sets left to right. Later sets win on key
// collision, so the expected call order is hub, spoke, user-supplied.
// The inputs are never mutated.
func MergeTags(sets ...TagSet) TagSet {
	merged := TagSet{}
	for _, set := range sets {
		for k, v := range set {
			merged[k] = v
		}
	}
	return merged
}

// Clone returns an independent copy of the tag set.
func (t TagSet) Clone() TagSet {
	c := make(TagSet, len(t))
	for k, v := range t {
		c[k] = v
	}
	return c
}
