// Command framecheck loads a project configuration, resolves one transform
// pair and prints the derived rotation so frame definitions can be reviewed
// without running a batch.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/least106/MomentTransfer/internal/config"
	"github.com/least106/MomentTransfer/internal/geometry"
	"github.com/least106/MomentTransfer/internal/infrastructure"
	"github.com/least106/MomentTransfer/internal/transform"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		projectPath   = flag.String("project", "", "project frame configuration JSON (required)")
		sourcePart    = flag.String("source", "", "source part name")
		sourceVariant = flag.Int("source-variant", 0, "source variant index")
		targetPart    = flag.String("target", "", "target part name")
		targetVariant = flag.Int("target-variant", 0, "target variant index")
		euler         = flag.String("euler", "", "print the basis for roll,pitch,yaw angles in degrees and exit")
		verbose       = flag.Bool("verbose", false, "debug logging")
	)
	flag.Parse()

	if *euler != "" {
		return printEulerBasis(*euler)
	}

	if *projectPath == "" {
		fmt.Fprintln(os.Stderr, "framecheck: -project is required")
		flag.Usage()
		return 1
	}

	level := "warn"
	if *verbose {
		level = "debug"
	}
	logger, closeLog, err := infrastructure.NewLogger(config.LoggingConfig{Level: level, Format: "text"})
	if err != nil {
		slog.Error("cannot set up logging", slog.String("error", err.Error()))
		return 1
	}
	defer closeLog()

	project, err := config.LoadProject(*projectPath, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "framecheck: %v\n", err)
		return 1
	}

	fmt.Printf("source parts: %v\n", project.SourcePartNames())
	fmt.Printf("target parts: %v\n", project.TargetPartNames())

	calc, err := transform.New(project, transform.Selection{
		SourcePart:    *sourcePart,
		SourceVariant: *sourceVariant,
		TargetPart:    *targetPart,
		TargetVariant: *targetVariant,
	}, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "framecheck: %v\n", err)
		return 1
	}

	fmt.Printf("\ntransform %s -> %s\n", calc.SourcePart(), calc.TargetPart())
	fmt.Println("rotation matrix:")
	rot := calc.Rotation()
	for i := 0; i < 3; i++ {
		row := rot.Row(i)
		fmt.Printf("  [%12.8f %12.8f %12.8f]\n", row.X, row.Y, row.Z)
	}
	fmt.Printf("determinant: %.8f\n", rot.Det())

	if warnings := calc.Warnings(); len(warnings) > 0 {
		fmt.Println("\nwarnings:")
		for _, w := range warnings {
			fmt.Printf("  - %s\n", w)
		}
		return 1
	}

	fmt.Println("\nframes check out")
	return 0
}

func printEulerBasis(arg string) int {
	parts := strings.Split(arg, ",")
	if len(parts) != 3 {
		fmt.Fprintln(os.Stderr, "framecheck: -euler expects roll,pitch,yaw in degrees")
		return 1
	}
	var angles [3]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			fmt.Fprintf(os.Stderr, "framecheck: bad angle %q: %v\n", p, err)
			return 1
		}
		angles[i] = v
	}

	basis := geometry.EulerBasis(angles[0], angles[1], angles[2])
	fmt.Printf("basis for roll=%g pitch=%g yaw=%g:\n", angles[0], angles[1], angles[2])
	for i := 0; i < 3; i++ {
		row := basis.Row(i)
		fmt.Printf("  [%12.8f %12.8f %12.8f]\n", row.X, row.Y, row.Z)
	}
	return 0
}
