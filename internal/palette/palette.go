// Package palette provides leaf color palettes. It parses hex palettes,
// applies HSV brightness jitter and selects a color per instance under one of
// several reproducible policies.
package palette

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/fnv"
	"image/color"
	"math/rand"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

var (
	ErrEmptyPalette = errors.New("palette has no colors")
	ErrBadColor     = errors.New("invalid palette color")
	ErrBadPolicy    = errors.New("unknown color policy")
)

// Palette is a non-empty ordered set of colors.
type Palette []color.RGBA

// Autumn is the default palette: greens drifting into ochre and rust.
var Autumn = []string{
	"#4f7942", "#6b8e23", "#8a9a5b", "#c9a227", "#d2691e", "#a0522d",
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Parse builds a palette from hex strings ("#rrggbb" or "#rgb").
func Parse(hexes []string) (Palette, error) {
	if len(hexes) == 0 {
		return nil, ErrEmptyPalette
	}
	p := make(Palette, 0, len(hexes))
	for _, h := range hexes {
		c, err := colorful.Hex(strings.TrimSpace(h))
		if err != nil {
			return nil, fmt.Errorf("%w %q: %v", ErrBadColor, h, err)
		}
		r, g, b := c.RGB255()
		p = append(p, color.RGBA{R: r, G: g, B: b, A: 255})
	}
	return p, nil
}

// ParseList parses a comma separated list of hex colors.
func ParseList(s string) (Palette, error) {
	var hexes []string
	for _, h := range strings.Split(s, ",") {
		if h = strings.TrimSpace(h); h != "" {
			hexes = append(hexes, h)
		}
	}
	return Parse(hexes)
}

// Jittered returns a copy of p with each color's HSV value perturbed by up to
// ±amount/2. amount <= 0 returns p unchanged.
func Jittered(p Palette, amount float64, r *rand.Rand) Palette {
	if amount <= 0 {
		return p
	}

	out := make(Palette, len(p))
	for i, c := range p {
		// Convert RGBA to HSV.
		cf := colorful.Color{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255}
		h, s, v := cf.Hsv()

		v = clamp(v+(r.Float64()-0.5)*amount, 0, 1)

		red, green, blue := colorful.Hsv(h, s, v).RGB255()
		out[i] = color.RGBA{R: red, G: green, B: blue, A: c.A}
	}
	return out
}

// Policy names how a color is chosen for each instance.
type Policy string

const (
	// PolicyRandom draws uniformly from the palette with a seeded generator,
	// one draw per instance in ascending index order.
	PolicyRandom Policy = "random"
	// PolicyHash picks by hashing (x, y, seed); independent of call order.
	PolicyHash Policy = "hash"
	// PolicyFirst gives every instance the first palette color.
	PolicyFirst Policy = "first"
)

// ParsePolicy validates a policy name.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyRandom, PolicyHash, PolicyFirst:
		return p, nil
	default:
		return "", fmt.Errorf("%w %q", ErrBadPolicy, s)
	}
}

// Picker selects the color of the instance in grid cell (x, y). Pick is called
// in ascending index order.
type Picker interface {
	Pick(x, y, index int) color.RGBA
}

// NewPicker returns a picker for the given policy over p.
func NewPicker(policy Policy, p Palette, seed int64) (Picker, error) {
	if len(p) == 0 {
		return nil, ErrEmptyPalette
	}
	switch policy {
	case PolicyRandom:
		return &randomPicker{p: p, rng: rand.New(rand.NewSource(seed))}, nil
	case PolicyHash:
		return hashPicker{p: p, seed: seed}, nil
	case PolicyFirst:
		return firstPicker{c: p[0]}, nil
	default:
		return nil, fmt.Errorf("%w %q", ErrBadPolicy, policy)
	}
}

type randomPicker struct {
	p   Palette
	rng *rand.Rand
}

func (rp *randomPicker) Pick(_, _, _ int) color.RGBA {
	return rp.p[rp.rng.Intn(len(rp.p))]
}

type hashPicker struct {
	p    Palette
	seed int64
}

func (hp hashPicker) Pick(x, y, _ int) color.RGBA {
	var buf [24]byte
	binary.LittleEndian.PutUint64(buf[0:], uint64(x))
	binary.LittleEndian.PutUint64(buf[8:], uint64(y))
	binary.LittleEndian.PutUint64(buf[16:], uint64(hp.seed))
	h := fnv.New64a()
	h.Write(buf[:])
	return hp.p[h.Sum64()%uint64(len(hp.p))]
}

type firstPicker struct {
	c color.RGBA
}

func (fp firstPicker) Pick(_, _, _ int) color.RGBA { return fp.c }

// Floats returns c as normalized RGBA components.
func Floats(c color.RGBA) [4]float32 {
	return [4]float32{
		float32(c.R) / 255, float32(c.G) / 255, float32(c.B) / 255, float32(c.A) / 255,
	}
}
