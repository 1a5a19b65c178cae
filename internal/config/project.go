package config

import (
	"encoding/json"
	"log/slog"
	"os"

	apperrors "github.com/least106/MomentTransfer/internal/errors"
	"github.com/least106/MomentTransfer/internal/geometry"
	"github.com/least106/MomentTransfer/pkg/contracts/domain"
)

// momentCenterTolerance bounds the disagreement between the part-frame and
// global-frame moment center definitions before a warning is logged.
const momentCenterTolerance = 1e-6

type coordJSON struct {
	Orig []float64 `json:"Orig"`
	X    []float64 `json:"X"`
	Y    []float64 `json:"Y"`
	Z    []float64 `json:"Z"`
}

type variantJSON struct {
	Name     string `json:"Name"`
	PartName string `json:"PartName"`

	CoordSystemRef    string     `json:"CoordSystemRef"`
	CoordSystem       *coordJSON `json:"CoordSystem"`
	SourceCoordSystem *coordJSON `json:"SourceCoordSystem"`
	TargetCoordSystem *coordJSON `json:"TargetCoordSystem"`

	MomentCenterInPart   []float64 `json:"MomentCenterInPartCoordSystem"`
	MomentCenterInGlobal []float64 `json:"MomentCenterInGlobalCoordSystem"`
	MomentCenter         []float64 `json:"MomentCenter"`
	SourceMomentCenter   []float64 `json:"SourceMomentCenter"`
	TargetMomentCenter   []float64 `json:"TargetMomentCenter"`

	Cref *float64 `json:"Cref"`
	Bref *float64 `json:"Bref"`
	Q    *float64 `json:"Q"`
	S    *float64 `json:"S"`
	Sref *float64 `json:"Sref"`
}

type partJSON struct {
	PartName        string        `json:"PartName"`
	ReferenceSystem []variantJSON `json:"ReferenceSystem"`
	Variants        []variantJSON `json:"Variants"`
}

type sectionJSON struct {
	Parts []partJSON `json:"Parts"`
}

type projectJSON struct {
	Global *struct {
		CoordSystem *coordJSON `json:"CoordSystem"`
	} `json:"Global"`
	Source *sectionJSON `json:"Source"`
	Target *sectionJSON `json:"Target"`
}

// LoadProject reads and resolves the project frame configuration. Every
// failure here is a fatal configuration error.
func LoadProject(path string, logger *slog.Logger) (*domain.Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeConfiguration, err,
			"cannot read project configuration %s", path)
	}
	return ParseProject(data, logger)
}

// ParseProject resolves the raw JSON into frames with completed moment
// centers.
func ParseProject(data []byte, logger *slog.Logger) (*domain.Project, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var raw projectJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeConfiguration, err,
			"project configuration is not valid JSON")
	}
	if raw.Source == nil {
		return nil, apperrors.New(apperrors.CodeConfiguration, "configuration is missing the Source section")
	}
	if raw.Target == nil {
		return nil, apperrors.New(apperrors.CodeConfiguration, "configuration is missing the Target section")
	}

	globals := map[string]domain.CoordSystem{}
	if raw.Global != nil && raw.Global.CoordSystem != nil {
		cs, err := resolveCoord(raw.Global.CoordSystem)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeConfiguration, err,
				"invalid global coordinate system")
		}
		globals["Global"] = cs
	}

	source, err := parseSection(raw.Source, "Source", false, globals, logger)
	if err != nil {
		return nil, err
	}
	target, err := parseSection(raw.Target, "Target", true, globals, logger)
	if err != nil {
		return nil, err
	}

	return &domain.Project{SourceParts: source, TargetParts: target}, nil
}

func parseSection(section *sectionJSON, name string, isTarget bool, globals map[string]domain.CoordSystem, logger *slog.Logger) (map[string][]domain.Frame, error) {
	if len(section.Parts) == 0 {
		return nil, apperrors.New(apperrors.CodeConfiguration,
			"%s must contain a non-empty Parts list", name)
	}

	parts := make(map[string][]domain.Frame, len(section.Parts))
	for _, p := range section.Parts {
		partName := p.PartName
		if partName == "" {
			partName = "Unnamed"
		}

		variants := p.ReferenceSystem
		if len(variants) == 0 {
			variants = p.Variants
		}
		if len(variants) == 0 {
			return nil, apperrors.New(apperrors.CodeConfiguration,
				"%s part %q must contain a non-empty ReferenceSystem or Variants list", name, partName)
		}

		frames := make([]domain.Frame, 0, len(variants))
		for i, v := range variants {
			frame, err := resolveVariant(v, partName, isTarget, globals, logger)
			if err != nil {
				return nil, apperrors.Wrap(apperrors.CodeConfiguration, err,
					"%s part %q variant %d", name, partName, i)
			}
			frames = append(frames, frame)
		}
		parts[partName] = frames
	}
	return parts, nil
}

func resolveVariant(v variantJSON, partName string, isTarget bool, globals map[string]domain.CoordSystem, logger *slog.Logger) (domain.Frame, error) {
	var zero domain.Frame

	if v.PartName != "" {
		partName = v.PartName
	}

	var coord domain.CoordSystem
	switch {
	case v.CoordSystemRef != "":
		cs, ok := globals[v.CoordSystemRef]
		if !ok {
			return zero, apperrors.New(apperrors.CodeConfiguration,
				"coordinate system reference %q is not defined", v.CoordSystemRef)
		}
		coord = cs
	case v.CoordSystem != nil:
		var err error
		if coord, err = resolveCoord(v.CoordSystem); err != nil {
			return zero, err
		}
	case v.SourceCoordSystem != nil:
		var err error
		if coord, err = resolveCoord(v.SourceCoordSystem); err != nil {
			return zero, err
		}
	case v.TargetCoordSystem != nil:
		var err error
		if coord, err = resolveCoord(v.TargetCoordSystem); err != nil {
			return zero, err
		}
	default:
		return zero, apperrors.New(apperrors.CodeConfiguration,
			"missing coordinate system (CoordSystem or CoordSystemRef)")
	}

	// A zero-length axis at load time is unrecoverable.
	basis, err := basisFromCoord(coord)
	if err != nil {
		return zero, apperrors.Wrap(apperrors.CodeConfiguration, err, "invalid basis")
	}

	mcPart, mcGlobal, err := resolveMomentCenters(v, coord, basis, partName, logger)
	if err != nil {
		return zero, err
	}

	frame := domain.Frame{
		PartName:           partName,
		Name:               v.Name,
		Coord:              coord,
		MomentCenter:       mcGlobal,
		MomentCenterInPart: mcPart,
		Cref:               1.0,
		Bref:               1.0,
	}

	if v.Cref != nil {
		if *v.Cref <= 0 {
			return zero, apperrors.New(apperrors.CodeConfiguration, "Cref must be strictly positive, got %v", *v.Cref)
		}
		frame.Cref = *v.Cref
	}
	if v.Bref != nil {
		if *v.Bref <= 0 {
			return zero, apperrors.New(apperrors.CodeConfiguration, "Bref must be strictly positive, got %v", *v.Bref)
		}
		frame.Bref = *v.Bref
	}

	s := v.S
	if s == nil {
		s = v.Sref
	}
	if s == nil {
		return zero, apperrors.New(apperrors.CodeConfiguration, "reference area S is required")
	}
	if *s <= 0 {
		return zero, apperrors.New(apperrors.CodeConfiguration, "S must be strictly positive, got %v", *s)
	}
	frame.S = *s

	if v.Q == nil {
		return zero, apperrors.New(apperrors.CodeConfiguration, "dynamic pressure Q is required")
	}
	if *v.Q < 0 {
		return zero, apperrors.New(apperrors.CodeConfiguration, "Q must be non-negative, got %v", *v.Q)
	}
	frame.Q = *v.Q

	if isTarget && frame.MomentCenter == nil {
		return zero, apperrors.New(apperrors.CodeConfiguration,
			"target variants must define a moment center")
	}

	return frame, nil
}

// resolveMomentCenters completes the missing moment-center representation
// and, when both are supplied, checks they agree. On disagreement the
// part-frame definition wins, matching how configurations are authored.
func resolveMomentCenters(v variantJSON, coord domain.CoordSystem, basis geometry.Mat3, partName string, logger *slog.Logger) (inPart, inGlobal []float64, err error) {
	mcPart := v.MomentCenterInPart
	mcGlobal := v.MomentCenterInGlobal

	if legacy := firstDefined(v.MomentCenter, v.TargetMomentCenter, v.SourceMomentCenter); legacy != nil && mcPart == nil && mcGlobal == nil {
		// The legacy single field is global when the frame is a reference to
		// a shared system, part-local otherwise.
		if v.CoordSystemRef != "" {
			mcGlobal = legacy
		} else {
			mcPart = legacy
		}
	}

	for name, mc := range map[string][]float64{
		"MomentCenterInPartCoordSystem":   mcPart,
		"MomentCenterInGlobalCoordSystem": mcGlobal,
	} {
		if mc != nil && len(mc) != 3 {
			return nil, nil, apperrors.New(apperrors.CodeConfiguration,
				"%s must be a list of 3 numbers", name)
		}
	}

	if mcPart == nil && mcGlobal == nil {
		return nil, nil, nil
	}

	origin := vecOf(coord.Origin)
	toGlobal := func(p geometry.Vec3) geometry.Vec3 {
		// Column-basis rotation is the transpose of the row basis.
		return basis.Transpose().MulVec(p).Add(origin)
	}

	if mcPart != nil && mcGlobal != nil {
		derived := toGlobal(vecOf(mcPart))
		if delta := derived.Sub(vecOf(mcGlobal)).Norm(); delta >= momentCenterTolerance {
			logger.Warn("moment center definitions disagree, using the part-frame value",
				slog.String("part", partName),
				slog.Float64("error", delta))
			mcGlobal = derived.Slice()
		}
		return mcPart, mcGlobal, nil
	}

	if mcPart != nil {
		return mcPart, toGlobal(vecOf(mcPart)).Slice(), nil
	}
	local := geometry.Project(basis, vecOf(mcGlobal).Sub(origin))
	return local.Slice(), mcGlobal, nil
}

func resolveCoord(c *coordJSON) (domain.CoordSystem, error) {
	cs := domain.CoordSystem{
		Origin: defaultVec(c.Orig, []float64{0, 0, 0}),
		XAxis:  defaultVec(c.X, []float64{1, 0, 0}),
		YAxis:  defaultVec(c.Y, []float64{0, 1, 0}),
		ZAxis:  defaultVec(c.Z, []float64{0, 0, 1}),
	}
	for name, vec := range map[string][]float64{
		"Orig": cs.Origin, "X": cs.XAxis, "Y": cs.YAxis, "Z": cs.ZAxis,
	} {
		if len(vec) != 3 {
			return domain.CoordSystem{}, apperrors.New(apperrors.CodeConfiguration,
				"%s must have 3 components, got %d", name, len(vec))
		}
	}
	return cs, nil
}

func basisFromCoord(c domain.CoordSystem) (geometry.Mat3, error) {
	x, err := geometry.FromSlice(c.XAxis)
	if err != nil {
		return geometry.Mat3{}, err
	}
	y, err := geometry.FromSlice(c.YAxis)
	if err != nil {
		return geometry.Mat3{}, err
	}
	z, err := geometry.FromSlice(c.ZAxis)
	if err != nil {
		return geometry.Mat3{}, err
	}
	return geometry.NewBasis(x, y, z)
}

func defaultVec(v, def []float64) []float64 {
	if v == nil {
		return def
	}
	return v
}

func vecOf(s []float64) geometry.Vec3 {
	v, _ := geometry.FromSlice(s)
	return v
}

func firstDefined(vecs ...[]float64) []float64 {
	for _, v := range vecs {
		if v != nil {
			return v
		}
	}
	return nil
}
