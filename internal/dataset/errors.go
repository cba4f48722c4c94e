// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dataset

import (
	"fmt"
	"sort"
	"strings"
)

// UnknownLabelError reports a category string that is not in the label map.
// It aborts dataset construction.
type UnknownLabelError struct {
	Label string
	Known []string
}

func (e *UnknownLabelError) Error() string {
	known := append([]string(nil), e.Known...)
	sort.Strings(known)
	return fmt.Sprintf("unknown label %q (known: %s)", e.Label, strings.Join(known, ", "))
}

// MissingFacesError reports a mesh record without a usable faces/neighbors pair.
type MissingFacesError struct {
	Path   string
	Reason string
}

func (e *MissingFacesError) Error() string {
	return fmt.Sprintf("mesh record %s: %s", e.Path, e.Reason)
}

// EmptyMeshError reports a mesh record with zero faces, which cannot be
// resampled to a fixed size.
type EmptyMeshError struct {
	Path string
}

func (e *EmptyMeshError) Error() string {
	if e.Path == "" {
		return "mesh has no faces"
	}
	return fmt.Sprintf("mesh record %s has no faces", e.Path)
}

// IndexResolutionError reports a neighbor index that does not resolve to a
// face of the same mesh. The evaluation driver skips samples failing this
// way; everywhere else it is fatal.
type IndexResolutionError struct {
	Path     string
	Face     int
	Neighbor int64
	Faces    int
}

func (e *IndexResolutionError) Error() string {
	return fmt.Sprintf("mesh record %s: face %d references neighbor %d outside [0, %d)",
		e.Path, e.Face, e.Neighbor, e.Faces)
}
