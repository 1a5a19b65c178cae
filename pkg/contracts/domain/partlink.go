package domain

import (
	"encoding/json"
	"fmt"
)

// PartLink associates a data block with the configured parts it should be
// calculated against. Two configuration shapes exist in the wild: a bare
// string naming only the target part (legacy), and an object naming both
// sides. Both decode into the same canonical form; IsLegacy reports which
// shape was ingested.
type PartLink struct {
	Source string `json:"source,omitempty"`
	Target string `json:"target" validate:"required"`
}

// IsLegacy reports whether the link names only a target part.
func (l PartLink) IsLegacy() bool { return l.Source == "" }

// UnmarshalJSON accepts either "TargetName" or {"source": ..., "target": ...}.
func (l *PartLink) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*l = PartLink{Target: name}
		return nil
	}

	type alias PartLink
	var obj alias
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("part link must be a target name or a source/target object: %w", err)
	}
	if obj.Target == "" {
		return fmt.Errorf("part link object is missing a target")
	}
	*l = PartLink(obj)
	return nil
}
