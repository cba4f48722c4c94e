// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dataset

import (
	"sort"
	"strconv"
)

// LabelMap resolves diagnostic category strings to class indices.
type LabelMap map[string]int

// DefaultLabels returns the two-class disease/control mapping.
func DefaultLabels() LabelMap {
	return LabelMap{"ad": 0, "cn": 1}
}

// Index returns the class index for label.
func (m LabelMap) Index(label string) (int, error) {
	idx, ok := m[label]
	if !ok {
		known := make([]string, 0, len(m))
		for k := range m {
			known = append(known, k)
		}
		return 0, &UnknownLabelError{Label: label, Known: known}
	}
	return idx, nil
}

// Names returns the category names ordered by class index. Gaps in the
// index range are filled with the decimal index.
func (m LabelMap) Names() []string {
	highest := -1
	for _, idx := range m {
		if idx > highest {
			highest = idx
		}
	}
	names := make([]string, highest+1)
	for i := range names {
		names[i] = strconv.Itoa(i)
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if idx := m[k]; idx >= 0 {
			names[idx] = k
		}
	}
	return names
}

// Classes returns the number of classes the map describes.
func (m LabelMap) Classes() int {
	return len(m.Names())
}
