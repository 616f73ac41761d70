package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestViewport_NearBottom(t *testing.T) {
	tests := []struct {
		name string
		v    Viewport
		want bool
	}{
		{name: "top of long page", v: Viewport{ScrollHeight: 5000, InnerHeight: 900, ScrollY: 0}, want: false},
		{name: "just outside margin", v: Viewport{ScrollHeight: 5000, InnerHeight: 900, ScrollY: 3999}, want: false},
		{name: "at margin", v: Viewport{ScrollHeight: 5000, InnerHeight: 900, ScrollY: 4000}, want: true},
		{name: "at bottom", v: Viewport{ScrollHeight: 5000, InnerHeight: 900, ScrollY: 4100}, want: true},
		{name: "content shorter than viewport", v: Viewport{ScrollHeight: 600, InnerHeight: 900}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.v.NearBottom(DefaultScrollMargin))
		})
	}
}

func TestViewport_Remaining(t *testing.T) {
	v := Viewport{ScrollHeight: 2000, InnerHeight: 800, ScrollY: 700}
	assert.InDelta(t, 500.0, v.Remaining(), 0.001)
}
