package aggregate

// DensityTier is a rendering-performance hint derived purely from the total
// bucket count. It is deliberately kept out of TimeSeries so the numeric
// contract stays renderer-agnostic.
type DensityTier int

const (
	DensityNone DensityTier = iota // nothing to draw
	DensityLow                     // sparse; renderers may add point markers
	DensityNormal
)

// lowDensityMaxBuckets is the largest series still considered sparse enough
// for per-point markers.
const lowDensityMaxBuckets = 60

// Density classifies a series by bucket count.
func Density(bucketCount int) DensityTier {
	switch {
	case bucketCount <= 0:
		return DensityNone
	case bucketCount <= lowDensityMaxBuckets:
		return DensityLow
	}
	return DensityNormal
}

func (d DensityTier) String() string {
	switch d {
	case DensityNone:
		return "none"
	case DensityLow:
		return "low"
	}
	return "normal"
}
