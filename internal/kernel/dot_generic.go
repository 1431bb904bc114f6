//go:build !amd64 && !arm64

package kernel

// dotProduct on unrecognized architectures is the scalar fused
// multiply-add fallback; no init() overrides it since there is no
// SIMD path to detect.
func init() {
	dotVariant = "scalar"
}
