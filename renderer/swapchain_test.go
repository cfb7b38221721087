package renderer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vulkan-go/vulkan"
)

func TestSelectSwapSurfaceFormatPrefersSrgb(t *testing.T) {
	preferred := vulkan.SurfaceFormat{
		Format:     vulkan.FormatB8g8r8a8Srgb,
		ColorSpace: vulkan.ColorSpaceSrgbNonlinear,
	}
	other := vulkan.SurfaceFormat{
		Format:     vulkan.FormatR8g8b8a8Unorm,
		ColorSpace: vulkan.ColorSpaceSrgbNonlinear,
	}

	got := selectSwapSurfaceFormat([]vulkan.SurfaceFormat{other, preferred})
	require.Equal(t, preferred.Format, got.Format)

	got = selectSwapSurfaceFormat([]vulkan.SurfaceFormat{preferred, other})
	require.Equal(t, preferred.Format, got.Format)
}

func TestSelectSwapSurfaceFormatFallsBackToFirst(t *testing.T) {
	first := vulkan.SurfaceFormat{
		Format:     vulkan.FormatR8g8b8a8Unorm,
		ColorSpace: vulkan.ColorSpaceSrgbNonlinear,
	}
	second := vulkan.SurfaceFormat{
		Format:     vulkan.FormatR5g6b5UnormPack16,
		ColorSpace: vulkan.ColorSpaceSrgbNonlinear,
	}

	got := selectSwapSurfaceFormat([]vulkan.SurfaceFormat{first, second})
	require.Equal(t, first.Format, got.Format)
}

func TestSelectSwapPresentMode(t *testing.T) {
	got := selectSwapPresentMode([]vulkan.PresentMode{
		vulkan.PresentModeFifo, vulkan.PresentModeMailbox,
	})
	require.Equal(t, vulkan.PresentModeMailbox, got)

	got = selectSwapPresentMode([]vulkan.PresentMode{
		vulkan.PresentModeFifo, vulkan.PresentModeImmediate,
	})
	require.Equal(t, vulkan.PresentModeFifo, got)

	got = selectSwapPresentMode(nil)
	require.Equal(t, vulkan.PresentModeFifo, got)
}

func TestSelectSwapExtentUsesCurrentExtent(t *testing.T) {
	caps := vulkan.SurfaceCapabilities{
		CurrentExtent: vulkan.Extent2D{Width: 1280, Height: 720},
	}

	got := selectSwapExtent(caps, 1920, 1080)
	require.Equal(t, uint32(1280), got.Width)
	require.Equal(t, uint32(720), got.Height)
}

func TestSelectSwapExtentClampsWindowSize(t *testing.T) {
	caps := vulkan.SurfaceCapabilities{
		CurrentExtent:  vulkan.Extent2D{Width: math.MaxUint32, Height: math.MaxUint32},
		MinImageExtent: vulkan.Extent2D{Width: 320, Height: 240},
		MaxImageExtent: vulkan.Extent2D{Width: 1600, Height: 900},
	}

	got := selectSwapExtent(caps, 1920, 1080)
	require.Equal(t, uint32(1600), got.Width)
	require.Equal(t, uint32(900), got.Height)

	got = selectSwapExtent(caps, 100, 100)
	require.Equal(t, uint32(320), got.Width)
	require.Equal(t, uint32(240), got.Height)
}

func TestSelectImageCount(t *testing.T) {
	caps := vulkan.SurfaceCapabilities{MinImageCount: 2, MaxImageCount: 8}
	require.Equal(t, uint32(3), selectImageCount(caps))

	// Requesting one more than a min that equals the max clamps.
	caps = vulkan.SurfaceCapabilities{MinImageCount: 3, MaxImageCount: 3}
	require.Equal(t, uint32(3), selectImageCount(caps))

	// MaxImageCount zero means unbounded.
	caps = vulkan.SurfaceCapabilities{MinImageCount: 4, MaxImageCount: 0}
	require.Equal(t, uint32(5), selectImageCount(caps))
}
