package core

import "strings"

// LabelDelimiter separates label names in the stored representation.
const LabelDelimiter = ","

// LabelSet is an ordered, duplicate-free list of label names.
type LabelSet []string

// NewLabelSet builds a set from names, trimming them and dropping empties and
// duplicates while keeping first-seen order.
func NewLabelSet(names ...string) LabelSet {
	out := make(LabelSet, 0, len(names))
	seen := make(map[string]struct{}, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// ParseLabels decodes the stored delimited form ("A, B").
func ParseLabels(raw string) LabelSet {
	if strings.TrimSpace(raw) == "" {
		return LabelSet{}
	}
	return NewLabelSet(strings.Split(raw, LabelDelimiter)...)
}

// Format encodes the set into the stored delimited form.
func (s LabelSet) Format() string {
	return strings.Join(s, LabelDelimiter+" ")
}

func (s LabelSet) Contains(name string) bool {
	for _, n := range s {
		if n == name {
			return true
		}
	}
	return false
}

func (s LabelSet) Clone() LabelSet {
	if s == nil {
		return nil
	}
	return append(LabelSet(nil), s...)
}

// Replace swaps the element oldName for newName in place. If newName is
// already present the old element is dropped instead, so the result stays
// duplicate-free. The second return value reports whether anything changed.
func (s LabelSet) Replace(oldName, newName string) (LabelSet, bool) {
	idx := -1
	for i, n := range s {
		if n == oldName {
			idx = i
			break
		}
	}
	if idx < 0 || oldName == newName {
		return s, false
	}
	keepNew := !s.Contains(newName)
	out := make(LabelSet, 0, len(s))
	for i, n := range s {
		if i != idx {
			out = append(out, n)
		} else if keepNew {
			out = append(out, newName)
		}
	}
	return out, true
}

// Remove drops name from the set.
func (s LabelSet) Remove(name string) LabelSet {
	out := make(LabelSet, 0, len(s))
	for _, n := range s {
		if n != name {
			out = append(out, n)
		}
	}
	return out
}

// Equal reports element-wise equality including order.
func (s LabelSet) Equal(o LabelSet) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i] != o[i] {
			return false
		}
	}
	return true
}
