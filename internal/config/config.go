// Package config collects the tunables of the leaf field: defaults, then
// environment overrides, then command-line flags, validated once before the
// window opens.
package config

import (
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/irfansharif/canopy/internal/field"
	"github.com/irfansharif/canopy/internal/mesh"
	"github.com/irfansharif/canopy/internal/palette"
)

// Config holds everything needed to build and drive a field.
type Config struct {
	Width, Height int     // initial window size in pixels
	ViewportScale float64 // world units per pixel

	MarginCells   int
	DepthZ        float64
	BaseRotationX float64
	ColumnSpacing float64
	RowSpacing    float64
	MaxInstances  int

	TimeScale    float64
	ZDampening   float64
	TimeMode     string
	ReferenceFPS float64

	Palette       string // comma separated hex colors
	PaletteJitter float64
	ColorPolicy   string
	Seed          int64

	MeshDir  string // empty means the embedded leaf
	MeshName string

	Near, Far float64
}

// Default returns the stock configuration, seeded from the current time.
func Default() Config {
	return Config{
		Width:         1280,
		Height:        960,
		ViewportScale: 0.01,

		MarginCells:   1,
		DepthZ:        -5,
		BaseRotationX: -0.3,
		ColumnSpacing: 1.0,
		RowSpacing:    0.46,
		MaxInstances:  200000,

		TimeScale:    120,
		ZDampening:   8,
		TimeMode:     string(field.TimeFrames),
		ReferenceFPS: 60,

		Palette:       strings.Join(palette.Autumn, ","),
		PaletteJitter: 0.08,
		ColorPolicy:   string(palette.PolicyRandom),
		Seed:          time.Now().Unix(),

		MeshName: mesh.DefaultName,

		Near: 1,
		Far:  10,
	}
}

// ApplyEnv overrides fields from CANOPY_* environment variables. lookup is
// usually os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	if v, ok := lookup("CANOPY_SEED"); ok && v != "" {
		seed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid CANOPY_SEED value '%s': %w", v, err))
		} else {
			c.Seed = seed
		}
	}
	if v, ok := lookup("CANOPY_MARGIN"); ok && v != "" {
		margin, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid CANOPY_MARGIN value '%s': %w", v, err))
		} else {
			c.MarginCells = margin
		}
	}
	if v, ok := lookup("CANOPY_PALETTE"); ok && v != "" {
		c.Palette = v
	}
	if v, ok := lookup("CANOPY_TIME_MODE"); ok && v != "" {
		c.TimeMode = v
	}
	if v, ok := lookup("CANOPY_COLOR_POLICY"); ok && v != "" {
		c.ColorPolicy = v
	}
	return errors.Join(errs...)
}

// RegisterFlags binds the configuration to command-line flags on fs, using the
// current values as defaults.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.Width, "width", c.Width, "initial window width in pixels")
	fs.IntVar(&c.Height, "height", c.Height, "initial window height in pixels")
	fs.Float64Var(&c.ViewportScale, "viewport-scale", c.ViewportScale, "world units per pixel")

	fs.IntVar(&c.MarginCells, "margin", c.MarginCells, "extra columns and rows beyond the viewport")
	fs.Float64Var(&c.DepthZ, "depth", c.DepthZ, "z of the leaf plane")
	fs.Float64Var(&c.BaseRotationX, "base-rotation", c.BaseRotationX, "rest pitch of every leaf, in radians")
	fs.Float64Var(&c.ColumnSpacing, "column-spacing", c.ColumnSpacing, "horizontal spacing as a fraction of leaf width")
	fs.Float64Var(&c.RowSpacing, "row-spacing", c.RowSpacing, "vertical spacing as a fraction of leaf height")
	fs.IntVar(&c.MaxInstances, "max-instances", c.MaxInstances, "largest field that will be built (0 for no limit)")

	fs.Float64Var(&c.TimeScale, "time-scale", c.TimeScale, "ticks per unit of noise time")
	fs.Float64Var(&c.ZDampening, "z-dampening", c.ZDampening, "divisor applied to the roll noise")
	fs.StringVar(&c.TimeMode, "time-mode", c.TimeMode, "noise time source: frames or seconds")
	fs.Float64Var(&c.ReferenceFPS, "reference-fps", c.ReferenceFPS, "ticks per second in seconds mode")

	fs.StringVar(&c.Palette, "palette", c.Palette, "comma separated hex colors")
	fs.Float64Var(&c.PaletteJitter, "palette-jitter", c.PaletteJitter, "HSV value jitter applied to the palette, 0 to disable")
	fs.StringVar(&c.ColorPolicy, "color-policy", c.ColorPolicy, "per-leaf color choice: random, hash or first")
	fs.Int64Var(&c.Seed, "seed", c.Seed, "noise and color seed")

	fs.StringVar(&c.MeshDir, "mesh-dir", c.MeshDir, "directory of leaf documents (embedded leaf if empty)")
	fs.StringVar(&c.MeshName, "mesh", c.MeshName, "leaf document name")

	fs.Float64Var(&c.Near, "near", c.Near, "near clip distance")
	fs.Float64Var(&c.Far, "far", c.Far, "far clip distance")
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Width <= 0 || c.Height <= 0 {
		errs = append(errs, fmt.Errorf("window size must be positive, got %dx%d", c.Width, c.Height))
	}
	if !(c.ViewportScale > 0) {
		errs = append(errs, fmt.Errorf("viewport scale must be positive, got %v", c.ViewportScale))
	}
	if c.MarginCells < 0 {
		errs = append(errs, fmt.Errorf("%w: got %d", field.ErrInvalidMargin, c.MarginCells))
	}
	if !(c.ColumnSpacing > 0) || !(c.RowSpacing > 0) {
		errs = append(errs, fmt.Errorf("%w: got %vx%v", field.ErrInvalidSpacing, c.ColumnSpacing, c.RowSpacing))
	}
	if c.MaxInstances < 0 {
		errs = append(errs, fmt.Errorf("max instances must not be negative, got %d", c.MaxInstances))
	}
	if !(c.TimeScale > 0) {
		errs = append(errs, fmt.Errorf("time scale must be positive, got %v", c.TimeScale))
	}
	if !(c.ZDampening > 0) {
		errs = append(errs, fmt.Errorf("z dampening must be positive, got %v", c.ZDampening))
	}
	mode, err := field.ParseTimeMode(c.TimeMode)
	if err != nil {
		errs = append(errs, err)
	}
	if mode == field.TimeSeconds && !(c.ReferenceFPS > 0) {
		errs = append(errs, fmt.Errorf("reference frame rate must be positive, got %v", c.ReferenceFPS))
	}
	if _, err := palette.ParseList(c.Palette); err != nil {
		errs = append(errs, err)
	}
	if c.PaletteJitter < 0 || c.PaletteJitter > 1 {
		errs = append(errs, fmt.Errorf("palette jitter must be within [0, 1], got %v", c.PaletteJitter))
	}
	if _, err := palette.ParsePolicy(c.ColorPolicy); err != nil {
		errs = append(errs, err)
	}
	if c.MeshName == "" {
		errs = append(errs, errors.New("mesh name must not be empty"))
	}
	if !(c.Near > 0) || !(c.Far > c.Near) {
		errs = append(errs, fmt.Errorf("clip range must satisfy 0 < near < far, got %v..%v", c.Near, c.Far))
	}
	if c.DepthZ > -c.Near || c.DepthZ < -c.Far {
		errs = append(errs, fmt.Errorf("leaf plane z=%v lies outside the clip range", c.DepthZ))
	}
	return errors.Join(errs...)
}

// Field converts the configuration into the field's parameters. The palette
// jitter is drawn from the seed, so the colors are reproducible.
func (c *Config) Field() (field.Config, error) {
	pal, err := palette.ParseList(c.Palette)
	if err != nil {
		return field.Config{}, err
	}
	pal = palette.Jittered(pal, c.PaletteJitter, rand.New(rand.NewSource(c.Seed)))
	policy, err := palette.ParsePolicy(c.ColorPolicy)
	if err != nil {
		return field.Config{}, err
	}
	mode, err := field.ParseTimeMode(c.TimeMode)
	if err != nil {
		return field.Config{}, err
	}
	return field.Config{
		MarginCells:   c.MarginCells,
		DepthZ:        c.DepthZ,
		BaseRotationX: c.BaseRotationX,
		ColumnSpacing: c.ColumnSpacing,
		RowSpacing:    c.RowSpacing,
		MaxInstances:  c.MaxInstances,
		Palette:       pal,
		ColorPolicy:   policy,
		Seed:          c.Seed,
		Animator: field.AnimatorConfig{
			TimeScale:    c.TimeScale,
			ZDampening:   c.ZDampening,
			Mode:         mode,
			ReferenceFPS: c.ReferenceFPS,
		},
	}, nil
}
