package field

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ojrac/opensimplex-go"
)

// Noise is a seeded coherent noise field with output in roughly [-1, 1].
type Noise interface {
	Eval2(x, y float64) float64
	Eval3(x, y, z float64) float64
}

// NewNoise returns OpenSimplex noise for seed. The same seed yields the same
// field across runs.
func NewNoise(seed int64) Noise {
	return opensimplex.New(seed)
}

// TimeMode selects how noise time advances per frame.
type TimeMode string

const (
	// TimeFrames advances one tick per rendered frame; animation speed
	// follows the frame rate.
	TimeFrames TimeMode = "frames"
	// TimeSeconds advances by the frame's wall-clock duration times the
	// reference frame rate, so speed is independent of the frame rate.
	TimeSeconds TimeMode = "seconds"
)

var ErrBadTimeMode = errors.New("unknown time mode")

// ParseTimeMode validates a time mode name.
func ParseTimeMode(s string) (TimeMode, error) {
	switch m := TimeMode(strings.ToLower(strings.TrimSpace(s))); m {
	case TimeFrames, TimeSeconds:
		return m, nil
	default:
		return "", fmt.Errorf("%w %q", ErrBadTimeMode, s)
	}
}

// AnimatorConfig holds the animation constants.
type AnimatorConfig struct {
	TimeScale    float64 // ticks per unit of noise time
	ZDampening   float64 // divides the roll noise
	Mode         TimeMode
	ReferenceFPS float64 // ticks per second in TimeSeconds mode
}

// Rotation is an instance's orientation for one frame, in radians.
type Rotation struct {
	X, Z float64
}

// Rotate computes the rotation of grid cell (x, y) at noise time t. The pitch
// may droop below base but never lift above it; the roll is unclamped.
func Rotate(n Noise, layout Layout, x, y int, t, base, zDampening float64) Rotation {
	n1 := n.Eval3(float64(x)/float64(layout.Columns), float64(y)/float64(layout.Rows), t)
	n2 := n.Eval2(float64(layout.Index(x, y)), t)
	return Rotation{
		X: min(base+n1, base),
		Z: n2 / zDampening,
	}
}

// Animator recomputes every instance's rotation once per frame. It owns the
// frame counter and the noise seed for the session.
type Animator struct {
	noise Noise
	seed  int64
	cfg   AnimatorConfig
	frame uint64
	ticks float64
}

// NewAnimator returns an animator sampling noise, which was built from seed.
func NewAnimator(seed int64, noise Noise, cfg AnimatorConfig) (*Animator, error) {
	if !(cfg.TimeScale > 0) {
		return nil, fmt.Errorf("time scale must be positive, got %v", cfg.TimeScale)
	}
	if !(cfg.ZDampening > 0) {
		return nil, fmt.Errorf("z dampening must be positive, got %v", cfg.ZDampening)
	}
	if cfg.Mode == "" {
		cfg.Mode = TimeFrames
	}
	if _, err := ParseTimeMode(string(cfg.Mode)); err != nil {
		return nil, err
	}
	if cfg.Mode == TimeSeconds && !(cfg.ReferenceFPS > 0) {
		return nil, fmt.Errorf("reference frame rate must be positive, got %v", cfg.ReferenceFPS)
	}
	if noise == nil {
		noise = NewNoise(seed)
	}
	return &Animator{noise: noise, seed: seed, cfg: cfg}, nil
}

// Frame returns the number of frames animated so far.
func (a *Animator) Frame() uint64 { return a.frame }

// Seed returns the noise seed.
func (a *Animator) Seed() int64 { return a.seed }

// Time returns the current noise time.
func (a *Animator) Time() float64 { return a.ticks / a.cfg.TimeScale }

// Update samples this frame's rotations into out and then advances the
// frame counter by one. It is Sample followed by Advance.
func (a *Animator) Update(layout Layout, base float64, dt time.Duration, out []Rotation) ([]Rotation, error) {
	out, err := a.Sample(layout, base, out)
	if err != nil {
		return out, err
	}
	a.Advance(dt)
	return out, nil
}

// Sample writes the current frame's rotation for every cell of layout into
// out, indexed like the instances, without advancing time. out is reused when
// it has enough capacity.
//
// Every instance is recomputed each frame, so the cost is O(InstanceCount).
func (a *Animator) Sample(layout Layout, base float64, out []Rotation) ([]Rotation, error) {
	if !layout.Valid() {
		return out, ErrLayoutNotReady
	}

	if cap(out) < layout.InstanceCount {
		out = make([]Rotation, layout.InstanceCount)
	}
	out = out[:layout.InstanceCount]

	t := a.Time()
	for y := 0; y < layout.Rows; y++ {
		for x := 0; x < layout.Columns; x++ {
			out[layout.Index(x, y)] = Rotate(a.noise, layout, x, y, t, base, a.cfg.ZDampening)
		}
	}
	return out, nil
}

// Advance moves to the next frame. dt is only used in TimeSeconds mode.
func (a *Animator) Advance(dt time.Duration) {
	a.frame++
	switch a.cfg.Mode {
	case TimeSeconds:
		a.ticks += dt.Seconds() * a.cfg.ReferenceFPS
	default:
		a.ticks++
	}
}
