//go:build arm64

package kernel

import "golang.org/x/sys/cpu"

// lane is the width of the vector lane used by dotProduct on this
// architecture: 4 float32s, matching a 128-bit NEON register.
const lane = 4

func init() {
	if cpu.ARM64.HasASIMD {
		dotProduct = dotNEON
		dotVariant = "neon"
	}
}

// dotNEON accumulates the dot product in lane-wide chunks, the Go-level
// equivalent of a NEON 4-wide fused multiply-add.
// Tails shorter than the lane width fall back to scalar accumulation.
func dotNEON(a, b []float32) float32 {
	n := len(a)
	var acc [lane]float32
	i := 0
	for ; i+lane <= n; i += lane {
		av := a[i : i+lane : i+lane]
		bv := b[i : i+lane : i+lane]
		for k := 0; k < lane; k++ {
			acc[k] += av[k] * bv[k]
		}
	}
	var sum float32
	for _, v := range acc {
		sum += v
	}
	for ; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
