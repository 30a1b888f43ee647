// Package figure assembles abstract, renderable figure objects from
// prediction tables: column-name mappings plus cosmetic style, never
// table data and never rendering.
package figure

// LayerKind selects the geometric mark a layer draws.
type LayerKind string

const (
	LayerLine   LayerKind = "line"
	LayerRibbon LayerKind = "ribbon"
	LayerPoints LayerKind = "points"
	// LayerArrows decorates a path with direction markers.
	LayerArrows LayerKind = "arrows"
)

// Layer binds one mark to columns of a named table.
type Layer struct {
	Kind      LayerKind `json:"kind"`
	TableName string    `json:"table"`
	X         string    `json:"x"`
	Y         string    `json:"y,omitempty"`
	YMin      string    `json:"y_min,omitempty"`
	YMax      string    `json:"y_max,omitempty"`
	// ColorBy maps a column onto the palette or gradient.
	ColorBy string `json:"color_by,omitempty"`
	// GroupBy splits the mark into one trace per distinct value.
	GroupBy string `json:"group_by,omitempty"`
}

// Panel is one plot region of a figure.
type Panel struct {
	Title   string  `json:"title"`
	XLabel  string  `json:"x_label"`
	YLabel  string  `json:"y_label"`
	FacetBy string  `json:"facet_by,omitempty"`
	Layers  []Layer `json:"layers"`
}

// Figure is the abstract renderable object handed to whatever draws it.
// Tables are referenced by name only.
type Figure struct {
	Title  string  `json:"title"`
	Style  Style   `json:"style"`
	Panels []Panel `json:"panels"`
}
