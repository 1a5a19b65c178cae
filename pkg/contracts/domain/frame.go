package domain

import "sort"

// CoordSystem defines a right-handed orthonormal coordinate system by its
// origin and three axis direction vectors. Field names mirror the project
// configuration JSON.
type CoordSystem struct {
	Origin []float64 `json:"Orig" validate:"required,len=3"`
	XAxis  []float64 `json:"X" validate:"required,len=3"`
	YAxis  []float64 `json:"Y" validate:"required,len=3"`
	ZAxis  []float64 `json:"Z" validate:"required,len=3"`
}

// Frame is one resolved coordinate-system variant of a part, including the
// scalar reference quantities used for non-dimensionalization. Source frames
// may carry zero reference quantities; target frames always have MomentCenter,
// Q and S populated by the configuration loader.
type Frame struct {
	PartName string      `json:"part_name"`
	Name     string      `json:"name,omitempty"`
	Coord    CoordSystem `json:"coord_system"`

	// MomentCenter is the moment reference center in global coordinates.
	// Nil when the variant does not define one (allowed for sources only).
	MomentCenter []float64 `json:"moment_center,omitempty"`

	// MomentCenterInPart is the same point expressed in part coordinates,
	// kept for round-trip fidelity with the configuration file.
	MomentCenterInPart []float64 `json:"moment_center_in_part,omitempty"`

	Cref float64 `json:"cref,omitempty"`
	Bref float64 `json:"bref,omitempty"`
	Q    float64 `json:"q,omitempty"`
	S    float64 `json:"s,omitempty"`
}

// Project is the loaded frame configuration: named parts on the source and
// target sides, each with an ordered list of variants. Variant index 0 is the
// default. The maps are immutable once loaded.
type Project struct {
	SourceParts map[string][]Frame `json:"source_parts"`
	TargetParts map[string][]Frame `json:"target_parts"`
}

// SourcePart returns the requested source variant.
func (p *Project) SourcePart(name string, variant int) (Frame, bool) {
	variants, ok := p.SourceParts[name]
	if !ok || variant < 0 || variant >= len(variants) {
		return Frame{}, false
	}
	return variants[variant], true
}

// TargetPart returns the requested target variant.
func (p *Project) TargetPart(name string, variant int) (Frame, bool) {
	variants, ok := p.TargetParts[name]
	if !ok || variant < 0 || variant >= len(variants) {
		return Frame{}, false
	}
	return variants[variant], true
}

// SourcePartNames returns the source part names in stable order.
func (p *Project) SourcePartNames() []string { return sortedKeys(p.SourceParts) }

// TargetPartNames returns the target part names in stable order.
func (p *Project) TargetPartNames() []string { return sortedKeys(p.TargetParts) }

func sortedKeys(m map[string][]Frame) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
