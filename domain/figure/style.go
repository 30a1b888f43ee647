package figure

import (
	"fmt"

	"gomediate/domain/core"
)

// LegendPosition placement values accepted by Style.
const (
	LegendRight  = "right"
	LegendLeft   = "left"
	LegendTop    = "top"
	LegendBottom = "bottom"
	LegendNone   = "none"
)

// Style bundles the cosmetic options shared by every panel of a figure.
type Style struct {
	// Palette colors discrete groups and anchors gradients. Hex strings.
	Palette []string `json:"palette"`
	// AxisColor paints axis lines and tick labels.
	AxisColor string `json:"axis_color"`
	// RibbonAlpha is the confidence-ribbon opacity in [0,1].
	RibbonAlpha float64 `json:"ribbon_alpha"`
	// LegendPosition is one of the Legend* values.
	LegendPosition string `json:"legend_position"`
	// Arrows toggles direction markers on indirect-path panels.
	Arrows bool `json:"arrows"`
}

// DefaultStyle returns the documented defaults.
func DefaultStyle() Style {
	return Style{
		Palette:        []string{"#440154", "#31688E", "#35B779", "#FDE725"},
		AxisColor:      "#1F2937",
		RibbonAlpha:    0.2,
		LegendPosition: LegendRight,
	}
}

// Validate checks the style once before a figure is built.
func (s Style) Validate() error {
	if len(s.Palette) == 0 {
		return fmt.Errorf("%w: palette must not be empty", core.ErrInvalidStyle)
	}
	if s.RibbonAlpha < 0 || s.RibbonAlpha > 1 {
		return fmt.Errorf("%w: ribbon_alpha %v outside [0,1]", core.ErrInvalidStyle, s.RibbonAlpha)
	}
	switch s.LegendPosition {
	case LegendRight, LegendLeft, LegendTop, LegendBottom, LegendNone:
	default:
		return fmt.Errorf("%w: unknown legend_position %q", core.ErrInvalidStyle, s.LegendPosition)
	}
	return nil
}
