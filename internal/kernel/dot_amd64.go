//go:build amd64

package kernel

import "golang.org/x/sys/cpu"

// lane is the width of the vector lane used by dotProduct on this
// architecture: 8 float32s, matching a 256-bit AVX2 register.
const lane = 8

func init() {
	if cpu.X86.HasAVX2 {
		dotProduct = dotAVX2
		dotVariant = "avx2"
	}
}

// dotAVX2 accumulates the dot product in lane-wide chunks, with eight
// independent accumulators standing in for the lanes of an AVX2 8-wide f32
// FMA. It is plain Go code, not vector assembly. Tails
// shorter than the lane width fall back to scalar accumulation.
func dotAVX2(a, b []float32) float32 {
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
