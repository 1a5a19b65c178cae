// Package transform implements the force/moment transform kernel: rotation
// between configured frames, moment-arm correction, and non-dimensionalization
// into aerodynamic coefficients.
package transform

import (
	"fmt"
	"math"

	apperrors "github.com/least106/MomentTransfer/internal/errors"
	"github.com/least106/MomentTransfer/internal/geometry"
	"github.com/least106/MomentTransfer/pkg/contracts/domain"
)

// OrthonormalTolerance is the residual above which a basis is reported as
// non-orthonormal. The warning never aborts processing.
const OrthonormalTolerance = 1e-6

// zeroDenom is the threshold below which a coefficient denominator is treated
// as zero.
const zeroDenom = 1e-12

// Selection names the (part, variant) pair on each side of the transform.
// Empty part names request inference: allowed only when exactly one candidate
// part exists on that side.
type Selection struct {
	SourcePart    string
	SourceVariant int
	TargetPart    string
	TargetVariant int
}

// Calculator transforms force/moment rows from one configured frame to
// another. It is built once per (source, target) pair and reused across many
// rows and files; it is not safe for concurrent use, each worker owns its own.
type Calculator struct {
	source domain.Frame
	target domain.Frame

	basisSource geometry.Mat3
	basisTarget geometry.Mat3
	rotation    geometry.Mat3
	armTarget   geometry.Vec3

	q, s, cref, bref float64

	warnings []string
	qWarned  bool
}

// BatchResult holds the vectorized outputs for N rows as parallel slices.
type BatchResult struct {
	Force       [][3]float64
	Moment      [][3]float64
	CoeffForce  [][3]float64
	CoeffMoment [][3]float64
}

// New resolves the selection against the project, derives the rotation matrix
// (through the cache when one is supplied) and the target-frame moment arm.
// Resolution or geometry failures are configuration errors, fatal for this
// context.
func New(project *domain.Project, sel Selection, cache *Cache) (*Calculator, error) {
	source, target, err := resolveFrames(project, sel)
	if err != nil {
		return nil, err
	}

	if target.MomentCenter == nil {
		return nil, apperrors.New(apperrors.CodeConfiguration,
			"target part %q has no moment center", target.PartName)
	}
	if target.Q == 0 && target.S == 0 {
		// Loader guarantees Q/S are present; both zero means the frame never
		// went through it.
		return nil, apperrors.New(apperrors.CodeConfiguration,
			"target part %q is missing dynamic pressure and reference area", target.PartName)
	}

	c := &Calculator{
		source: source,
		target: target,
		q:      target.Q,
		s:      target.S,
		cref:   target.Cref,
		bref:   target.Bref,
	}

	c.basisSource, err = basisOf(source)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeConfiguration, err,
			"source part %q has an invalid basis", source.PartName)
	}
	c.basisTarget, err = basisOf(target)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeConfiguration, err,
			"target part %q has an invalid basis", target.PartName)
	}

	c.checkBasis("source", source.PartName, c.basisSource)
	c.checkBasis("target", target.PartName, c.basisTarget)

	if cache != nil {
		if r, ok := cache.Get(c.basisSource, c.basisTarget); ok {
			c.rotation = r
		} else {
			c.rotation = geometry.Rotation(c.basisSource, c.basisTarget)
			cache.Put(c.basisSource, c.basisTarget, c.rotation)
		}
	} else {
		c.rotation = geometry.Rotation(c.basisSource, c.basisTarget)
	}

	// The arm runs from the target moment center to the source reference
	// point (its moment center when defined, its origin otherwise), expressed
	// in the target frame so it can be crossed with the rotated force.
	srcRef := vec(source.Coord.Origin)
	if source.MomentCenter != nil {
		srcRef = vec(source.MomentCenter)
	}
	armGlobal := geometry.MomentArm(srcRef, vec(target.MomentCenter))
	c.armTarget = geometry.Project(c.basisTarget, armGlobal)

	return c, nil
}

// Transform converts one force/moment pair into the target frame and derives
// the coefficient vectors. The moment correction crosses the target-frame arm
// with the rotated force so all terms share the target frame.
func (c *Calculator) Transform(force, moment [3]float64) domain.PointResult {
	f := geometry.Vec3{X: force[0], Y: force[1], Z: force[2]}
	m := geometry.Vec3{X: moment[0], Y: moment[1], Z: moment[2]}

	fRot := c.rotation.MulVec(f)
	mRot := c.rotation.MulVec(m).Add(c.armTarget.Cross(fRot))

	return domain.PointResult{
		Force:       fRot.Array(),
		Moment:      mRot.Array(),
		CoeffForce:  c.forceCoefficients(fRot),
		CoeffMoment: c.momentCoefficients(mRot),
	}
}

// TransformBatch converts N rows and returns parallel result slices. The
// per-row values are identical to N sequential Transform calls.
func (c *Calculator) TransformBatch(forces, moments [][3]float64) (*BatchResult, error) {
	if len(forces) != len(moments) {
		return nil, fmt.Errorf("forces and moments differ in length: %d vs %d", len(forces), len(moments))
	}

	out := &BatchResult{
		Force:       make([][3]float64, len(forces)),
		Moment:      make([][3]float64, len(forces)),
		CoeffForce:  make([][3]float64, len(forces)),
		CoeffMoment: make([][3]float64, len(forces)),
	}
	for i := range forces {
		r := c.Transform(forces[i], moments[i])
		out.Force[i] = r.Force
		out.Moment[i] = r.Moment
		out.CoeffForce[i] = r.CoeffForce
		out.CoeffMoment[i] = r.CoeffMoment
	}
	return out, nil
}

// Warnings returns the geometry and computation warnings recorded so far.
func (c *Calculator) Warnings() []string {
	out := make([]string, len(c.warnings))
	copy(out, c.warnings)
	return out
}

// SourcePart returns the resolved source part name.
func (c *Calculator) SourcePart() string { return c.source.PartName }

// TargetPart returns the resolved target part name.
func (c *Calculator) TargetPart() string { return c.target.PartName }

// Rotation returns the derived rotation matrix.
func (c *Calculator) Rotation() geometry.Mat3 { return c.rotation }

func (c *Calculator) forceCoefficients(f geometry.Vec3) [3]float64 {
	qs := c.q * c.s
	if math.Abs(qs) < zeroDenom {
		c.warnZeroQ()
		return [3]float64{}
	}
	return [3]float64{f.X / qs, f.Y / qs, f.Z / qs}
}

func (c *Calculator) momentCoefficients(m geometry.Vec3) [3]float64 {
	qs := c.q * c.s
	if math.Abs(qs) < zeroDenom {
		c.warnZeroQ()
		return [3]float64{}
	}

	// Roll and yaw scale with the span reference, pitch with the chord.
	var out [3]float64
	comps := [3]float64{m.X, m.Y, m.Z}
	refs := [3]float64{c.bref, c.cref, c.bref}
	for i := range comps {
		denom := qs * refs[i]
		if math.Abs(denom) < zeroDenom {
			c.warnf("%s of %s: reference length is zero, moment coefficient set to 0",
				[3]string{"roll", "pitch", "yaw"}[i], c.target.PartName)
			continue
		}
		out[i] = comps[i] / denom
	}
	return out
}

func (c *Calculator) warnZeroQ() {
	if c.qWarned {
		return
	}
	c.qWarned = true
	c.warnf("dynamic pressure or reference area of %q is zero, coefficients set to 0", c.target.PartName)
}

func (c *Calculator) warnf(format string, args ...interface{}) {
	c.warnings = append(c.warnings, fmt.Sprintf(format, args...))
}

func (c *Calculator) checkBasis(side, part string, b geometry.Mat3) {
	if res := b.UnitLengthResidual(); res > OrthonormalTolerance {
		c.warnf("%s basis of %q has non-unit axes (residual %.3e)", side, part, res)
	}
	if res := b.OrthogonalityResidual(); res > OrthonormalTolerance {
		c.warnf("%s basis of %q is not orthogonal (residual %.3e)", side, part, res)
	}
}

func basisOf(f domain.Frame) (geometry.Mat3, error) {
	x, err := geometry.FromSlice(f.Coord.XAxis)
	if err != nil {
		return geometry.Mat3{}, fmt.Errorf("x axis: %w", err)
	}
	y, err := geometry.FromSlice(f.Coord.YAxis)
	if err != nil {
		return geometry.Mat3{}, fmt.Errorf("y axis: %w", err)
	}
	z, err := geometry.FromSlice(f.Coord.ZAxis)
	if err != nil {
		return geometry.Mat3{}, fmt.Errorf("z axis: %w", err)
	}
	return geometry.NewBasis(x, y, z)
}

func vec(s []float64) geometry.Vec3 {
	v, _ := geometry.FromSlice(s)
	return v
}

func resolveFrames(project *domain.Project, sel Selection) (domain.Frame, domain.Frame, error) {
	var zero domain.Frame

	targetName := sel.TargetPart
	if targetName == "" {
		names := project.TargetPartNames()
		switch len(names) {
		case 0:
			return zero, zero, apperrors.New(apperrors.CodeConfiguration,
				"configuration defines no target parts")
		case 1:
			targetName = names[0]
		default:
			return zero, zero, apperrors.New(apperrors.CodeConfiguration,
				"configuration defines %d target parts, one must be selected explicitly (available: %v)",
				len(names), names)
		}
	}
	target, ok := project.TargetPart(targetName, sel.TargetVariant)
	if !ok {
		return zero, zero, apperrors.New(apperrors.CodeConfiguration,
			"target part %q variant %d not found", targetName, sel.TargetVariant)
	}

	sourceName := sel.SourcePart
	if sourceName == "" {
		names := project.SourcePartNames()
		switch len(names) {
		case 0:
			return zero, zero, apperrors.New(apperrors.CodeConfiguration,
				"configuration defines no source parts")
		case 1:
			sourceName = names[0]
		default:
			return zero, zero, apperrors.New(apperrors.CodeConfiguration,
				"configuration defines %d source parts, one must be selected explicitly (available: %v)",
				len(names), names)
		}
	}
	source, ok := project.SourcePart(sourceName, sel.SourceVariant)
	if !ok {
		return zero, zero, apperrors.New(apperrors.CodeConfiguration,
			"source part %q variant %d not found", sourceName, sel.SourceVariant)
	}

	return source, target, nil
}
