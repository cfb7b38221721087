package renderer

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vulkan-go/vulkan"
)

func TestAlignUp(t *testing.T) {
	cases := []struct {
		name  string
		size  vulkan.DeviceSize
		align vulkan.DeviceSize
		want  vulkan.DeviceSize
	}{
		{"zero size", 0, 256, 0},
		{"already aligned", 256, 256, 256},
		{"rounds up", 1, 256, 256},
		{"just over boundary", 257, 256, 512},
		{"just under boundary", 255, 256, 256},
		{"alignment of one", 100, 1, 100},
		{"zero alignment passes through", 100, 0, 100},
		{"scene block at 64", 80, 64, 128},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, alignUp(tc.size, tc.align))
		})
	}
}

func TestAlignUpIsIdempotent(t *testing.T) {
	for _, align := range []vulkan.DeviceSize{16, 64, 256} {
		for size := vulkan.DeviceSize(0); size < 1024; size += 37 {
			aligned := alignUp(size, align)
			require.GreaterOrEqual(t, aligned, size)
			require.Zero(t, aligned%align)
			require.Equal(t, aligned, alignUp(aligned, align))
		}
	}
}
