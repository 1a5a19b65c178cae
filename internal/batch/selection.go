package batch

import (
	"github.com/least106/MomentTransfer/internal/transform"
	"github.com/least106/MomentTransfer/pkg/contracts/domain"
)

// selectionForPart resolves which configured (source, target) pair a data
// block is calculated against. Precedence: an explicit part link for the
// block, then a block name that matches a configured part, then the global
// default. A legacy link names only the target, the source side falls back
// to the default. Anything still empty is left for the calculator to infer,
// which succeeds only when one candidate part exists on that side.
func selectionForPart(project *domain.Project, links map[string]domain.PartLink, def transform.Selection, block string) transform.Selection {
	sel := def

	if link, ok := links[block]; ok {
		sel.TargetPart = link.Target
		sel.TargetVariant = 0
		if !link.IsLegacy() {
			sel.SourcePart = link.Source
			sel.SourceVariant = 0
		}
		return sel
	}

	if block == "" {
		return sel
	}

	// A block named exactly like a configured part selects that part.
	if sel.TargetPart == "" {
		if _, ok := project.TargetParts[block]; ok {
			sel.TargetPart = block
		}
	}
	if sel.SourcePart == "" {
		if _, ok := project.SourceParts[block]; ok {
			sel.SourcePart = block
		}
	}
	return sel
}
