package service

// Layer describes which slice of the pipeline a component sits in, leaves
// first: aggregation primitives, then dispatch, then the thin outer
// surfaces.
type Layer string

const (
	LayerAggregation Layer = "aggregation"
	LayerDispatch    Layer = "dispatch"
	LayerParsing     Layer = "parsing"
	LayerStorage     Layer = "storage"
	LayerSurface     Layer = "surface"
)

// Descriptor advertises a component's placement and capabilities for the
// /system/descriptors inventory. Purely informational.
type Descriptor struct {
	Name         string
	Domain       string
	Layer        Layer
	Capabilities []string
}

// WithCapabilities returns a copy of d with additional capabilities appended.
func (d Descriptor) WithCapabilities(caps ...string) Descriptor {
	if len(caps) == 0 {
		return d
	}
	combined := make([]string, 0, len(d.Capabilities)+len(caps))
	combined = append(combined, d.Capabilities...)
	combined = append(combined, caps...)
	d.Capabilities = combined
	return d
}
