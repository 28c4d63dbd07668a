// Package random 生成可复现的均匀/正态随机数序列。
//
// 给定相同的种子，输出与参与并行的 worker 数无关：切片数量固定，
// 每个切片的子种子在并行填充开始前由主生成器顺序派生。
package random

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/wyfcoding/quantpricing/pkg/parallel"
)

const (
	// 小于该数量时单线程生成
	parallelThreshold = 1000
	// 并行切片数，固定值保证结果与 worker 数无关
	numSlices = 15
	// 极坐标拒绝法的过采样系数（期望接受率 π/4 ≈ 78.5%）
	polarOversample = 1.25
)

var (
	// ErrInvalidQuantity 请求数量为负
	ErrInvalidQuantity = errors.New("random: quantity must be >= 0")
	// ErrUnknownMethod 未知的正态随机数方法
	ErrUnknownMethod = errors.New("random: unknown normal method")
)

// Method 正态随机数生成方法
type Method int

const (
	BoxMuller Method = iota
	PolarRejection
)

func (m Method) String() string {
	switch m {
	case BoxMuller:
		return "box_muller"
	case PolarRejection:
		return "polar"
	default:
		return fmt.Sprintf("Method(%d)", int(m))
	}
}

// ParseMethod 解析配置/请求中的方法名
func ParseMethod(s string) (Method, error) {
	switch s {
	case "", "box_muller", "boxmuller", "BoxMuller":
		return BoxMuller, nil
	case "polar", "polar_rejection", "PolarRejection":
		return PolarRejection, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownMethod, s)
	}
}

// Seed 返回指向 v 的指针，便于传入可选种子
func Seed(v int64) *int64 {
	return &v
}

// Engine 随机数引擎。无内部可变状态，可被多个 goroutine 共享。
type Engine struct {
	workers int
}

// Option 引擎选项
type Option func(*Engine)

// WithWorkers 设置并行 worker 数
func WithWorkers(n int) Option {
	return func(e *Engine) {
		e.workers = n
	}
}

// New 创建随机数引擎
func New(opts ...Option) *Engine {
	e := &Engine{}
	for _, opt := range opts {
		opt(e)
	}
	e.workers = parallel.Workers(e.workers)
	return e
}

// Workers 返回 worker 数
func (e *Engine) Workers() int {
	return e.workers
}

// Uniform 生成 n 个 [0,1) 均匀分布随机数
func (e *Engine) Uniform(n int, seed *int64) ([]float64, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidQuantity, n)
	}
	res := make([]float64, n)
	e.FillUniform(res, seed)
	return res, nil
}

// FillUniform 用均匀随机数填满 dst
func (e *Engine) FillUniform(dst []float64, seed *int64) {
	n := len(dst)
	if n == 0 {
		return
	}

	slices := 1
	if n >= parallelThreshold {
		slices = numSlices
	}

	// 子种子必须在并行填充前全部派生完成
	master := newSource(masterSeed(seed))
	seeds := make([]uint64, slices)
	for i := range seeds {
		seeds[i] = master.Uint64()
	}

	batch := n / slices
	fill := func(i int) {
		lo := i * batch
		hi := lo + batch
		if i == slices-1 {
			hi = n
		}
		gen := newSource(seeds[i])
		for j := lo; j < hi; j++ {
			dst[j] = gen.Float64()
		}
	}

	if slices == 1 {
		fill(0)
		return
	}
	_ = parallel.Tasks(slices, e.workers, func(i int) error {
		fill(i)
		return nil
	})
}

// Normal 生成 n 个标准正态随机数
func (e *Engine) Normal(n int, seed *int64, method Method) ([]float64, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidQuantity, n)
	}
	res := make([]float64, n)
	if err := e.FillNormal(res, seed, method); err != nil {
		return nil, err
	}
	return res, nil
}

// FillNormal 用标准正态随机数填满 dst
func (e *Engine) FillNormal(dst []float64, seed *int64, method Method) error {
	switch method {
	case BoxMuller:
		e.boxMuller(dst, seed)
	case PolarRejection:
		e.polarRejection(dst, seed)
	default:
		return fmt.Errorf("%w: %v", ErrUnknownMethod, method)
	}
	return nil
}

func (e *Engine) boxMuller(dst []float64, seed *int64) {
	n := len(dst)
	if n == 0 {
		return
	}
	// 均匀数个数向上取偶，奇数时丢弃最后一个值
	m := n
	if m%2 != 0 {
		m++
	}
	u := make([]float64, m)
	e.FillUniform(u, seed)

	parallel.For(m/2, e.workers, func(lo, hi int) {
		for p := lo; p < hi; p++ {
			i := 2 * p
			z0, z1 := boxMullerPair(u[i], u[i+1])
			dst[i] = z0
			if i+1 < n {
				dst[i+1] = z1
			}
		}
	})
}

func boxMullerPair(u1, u2 float64) (float64, float64) {
	if u1 == 0 {
		u1 = math.SmallestNonzeroFloat64
	}
	r := math.Sqrt(-2 * math.Log(u1))
	s, c := math.Sincos(2 * math.Pi * u2)
	return r * c, r * s
}

// polarRejection 单遍拒绝采样，不足部分用 Box-Muller 补齐，保证有界时间内完成
func (e *Engine) polarRejection(dst []float64, seed *int64) {
	n := len(dst)
	if n == 0 {
		return
	}
	m := int(math.Ceil(float64(n) * polarOversample))
	if m%2 != 0 {
		m++
	}
	u := make([]float64, m)
	e.FillUniform(u, seed)

	filled := 0
	for i := 0; i+1 < m && filled < n; i += 2 {
		x := u[i]*2 - 1
		y := u[i+1]*2 - 1
		w := x*x + y*y
		if w > 1 || w == 0 {
			continue
		}
		c := math.Sqrt(-2 * math.Log(w) / w)
		dst[filled] = c * x
		filled++
		if filled == n {
			break
		}
		dst[filled] = c * y
		filled++
	}
	if filled == n {
		return
	}

	topUp := topUpSeed(seed, filled)
	e.boxMuller(dst[filled:], &topUp)
}

// topUpSeed 由 (seed, 已满足数量) 派生补齐用的种子
func topUpSeed(seed *int64, filled int) int64 {
	if seed == nil {
		return int64(mixSeed(uint64(time.Now().UnixNano()) + uint64(filled)))
	}
	return int64(mixSeed(uint64(*seed + int64(filled))))
}

func masterSeed(seed *int64) uint64 {
	if seed == nil {
		return mixSeed(uint64(time.Now().UnixNano()))
	}
	return uint64(*seed)
}

func newSource(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, mixSeed(seed)))
}
