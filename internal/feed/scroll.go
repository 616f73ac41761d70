package feed

// DefaultScrollMargin is the remaining scroll distance, in pixels, at which
// the next page is requested.
const DefaultScrollMargin = 100

// Viewport is a scroll position report from a rendering client.
type Viewport struct {
	ScrollHeight float64 `json:"scrollHeight" validate:"gte=0"`
	InnerHeight  float64 `json:"innerHeight" validate:"gte=0"`
	ScrollY      float64 `json:"scrollY" validate:"gte=0"`
}

// Remaining is the scroll distance left below the viewport.
func (v Viewport) Remaining() float64 {
	return v.ScrollHeight - (v.InnerHeight + v.ScrollY)
}

// NearBottom reports whether the viewport is within margin pixels of the end
// of the rendered content.
func (v Viewport) NearBottom(margin float64) bool {
	return v.Remaining() <= margin
}
