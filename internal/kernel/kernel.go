// Package kernel implements the numeric primitives of the forward pass:
// matrix-vector multiply, RMSNorm, and softmax. The dot-product kernel at
// the heart of MatMul is chosen once per process via CPU feature detection
// (AVX2 on amd64, NEON on arm64, scalar elsewhere); MatMul itself fans rows
// out across a worker pool once the row count clears a small threshold.
package kernel

import (
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ParallelThreshold is the minimum row count at which MatMul distributes
// work across goroutines instead of running the loop inline. Below this,
// goroutine setup would cost more than the work it parallelizes.
const ParallelThreshold = 32

// rowBlock is the number of rows handed to a single worker at a time.
const rowBlock = 4

// dotProduct is the dispatched dot-product kernel, overridden by an arch
// specific init() (dot_amd64.go, dot_arm64.go) when the CPU supports a
// wider variant. The default is the scalar fused-multiply-add fallback.
var dotProduct = dotScalar

// dotVariant names the active kernel for diagnostics; set by each arch's
// init() (or left "scalar" by dot_generic.go).
var dotVariant = "scalar"

// Variant reports which dot-product kernel this process selected.
func Variant() string {
	return dotVariant
}

// Dot computes the dot product of a and b using the dispatched
// architecture-specific kernel (AVX2/NEON/scalar). Used directly by
// attention score computation, which multiplies single vector pairs
// rather than a full matrix.
func Dot(a, b []float32) float32 {
	return dotProduct(a, b)
}

// dotScalar is the portable fallback: a plain scalar accumulation loop.
func dotScalar(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// MatMul computes out[i] = dot(W[i*inDim:(i+1)*inDim], x) for every row i,
// where W is row-major with `rows` rows of `inDim` columns each. out must
// already be sized to `rows`. Rows are independent; when rows is at least
// ParallelThreshold they are distributed across a worker pool in blocks of
// rowBlock, each block computed entirely by one goroutine so the result is
// deterministic for a fixed build and thread count.
func MatMul(out []float32, x []float32, w []float32, inDim int) {
	rows := len(out)
	if rows < ParallelThreshold {
		matMulRange(out, x, w, inDim, 0, rows)
		return
	}

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for start := 0; start < rows; start += rowBlock {
		end := start + rowBlock
		if end > rows {
			end = rows
		}
		start, end := start, end
		g.Go(func() error {
			matMulRange(out, x, w, inDim, start, end)
			return nil
		})
	}
	_ = g.Wait() // workers never return an error
}

// matMulRange computes rows [start,end) of MatMul inline.
func matMulRange(out, x, w []float32, inDim, start, end int) {
	for i := start; i < end; i++ {
		row := w[i*inDim : (i+1)*inDim : (i+1)*inDim]
		out[i] = dotProduct(row, x)
	}
}

// RMSNorm writes weight[i] * x[i] / sqrt(mean(x^2) + eps) into out, which
// must be the same length as x and weight.
func RMSNorm(out, x, weight []float32) {
	ss := sumSquares(x)/float32(len(x)) + 1e-5
	inv := float32(1 / math.Sqrt(float64(ss)))
	for i, v := range x {
		out[i] = weight[i] * v * inv
	}
}

// RMSNormInPlace applies RMSNorm to x using weight, overwriting x.
func RMSNormInPlace(x, weight []float32) {
	RMSNorm(x, x, weight)
}

func sumSquares(x []float32) float32 {
	var ss float32
	for _, v := range x {
		ss += v * v
	}
	return ss
}

// Softmax normalizes v in place into a probability distribution using the
// numerically stable max-subtraction form.
func Softmax(v []float32) {
	if len(v) == 0 {
		return
	}
	max := v[0]
	for _, x := range v[1:] {
		if x > max {
			max = x
		}
	}
	var sum float32
	for i, x := range v {
		e := float32(math.Exp(float64(x - max)))
		v[i] = e
		sum += e
	}
	if sum == 0 {
		return
	}
	for i := range v {
		v[i] /= sum
	}
}
