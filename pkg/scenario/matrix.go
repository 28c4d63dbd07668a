// Package scenario 提供场景矩阵：行为一条模拟路径，列为时间步。
// 数据按行主序存储在一段连续的 []float64 中，长度恒为 rows*cols。
//
// 所有并行操作按行划分：每个 worker 只拿到自己负责的行的子切片，
// 因此写入天然不跨行，无需加锁。
package scenario

import (
	"errors"
	"fmt"
	"math"

	"github.com/wyfcoding/quantpricing/pkg/parallel"
)

var (
	// ErrBadShape 行数或列数非正，或 rows*cols 超出 int 范围
	ErrBadShape = errors.New("scenario: bad matrix shape")
	// ErrOutOfRange 行/列索引越界
	ErrOutOfRange = errors.New("scenario: index out of range")
)

// StepFunc 递推函数。row 为当前行的视图，col 为待计算的列，flat 为该单元在整个缓冲区中的下标。
// 返回值写入 row[col]；row[col-1] 在调用时已经是更新后的值。
type StepFunc func(row []float64, col, flat int) float64

// Matrix 场景矩阵
type Matrix struct {
	rows, cols int
	workers    int
	data       []float64
}

// Option 矩阵选项
type Option func(*Matrix)

// WithWorkers 设置并行 worker 数
func WithWorkers(n int) Option {
	return func(m *Matrix) {
		m.workers = n
	}
}

// New 创建 rows×cols 的零矩阵
func New(rows, cols int, opts ...Option) (*Matrix, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrBadShape, rows, cols)
	}
	if rows > math.MaxInt/cols {
		return nil, fmt.Errorf("%w: %dx%d overflows", ErrBadShape, rows, cols)
	}
	m := &Matrix{
		rows: rows,
		cols: cols,
		data: make([]float64, rows*cols),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.workers = parallel.Workers(m.workers)
	return m, nil
}

// Workers 并行 worker 数
func (m *Matrix) Workers() int { return m.workers }

// Rows 行数（场景数）
func (m *Matrix) Rows() int { return m.rows }

// Cols 列数（时间步数+1）
func (m *Matrix) Cols() int { return m.cols }

// Data 返回底层缓冲区，调用方不得在并行操作期间修改
func (m *Matrix) Data() []float64 { return m.data }

// At 读取 (row, col)
func (m *Matrix) At(row, col int) (float64, error) {
	if row < 0 || row >= m.rows {
		return 0, fmt.Errorf("%w: row %d", ErrOutOfRange, row)
	}
	c, err := m.column(col)
	if err != nil {
		return 0, err
	}
	return m.data[row*m.cols+c], nil
}

// Row 返回第 row 行的拷贝
func (m *Matrix) Row(row int) ([]float64, error) {
	if row < 0 || row >= m.rows {
		return nil, fmt.Errorf("%w: row %d", ErrOutOfRange, row)
	}
	out := make([]float64, m.cols)
	copy(out, m.rowView(row))
	return out, nil
}

// ColumnSet 对每行调用一次 supplier 写入第 col 列，行间并行；supplier 必须可重入
func (m *Matrix) ColumnSet(col int, supplier func(row int) float64) error {
	c, err := m.column(col)
	if err != nil {
		return err
	}
	m.forRows(func(r int, row []float64) {
		row[c] = supplier(r)
	})
	return nil
}

// ColumnGet 并行收集第 col 列
func (m *Matrix) ColumnGet(col int) ([]float64, error) {
	c, err := m.column(col)
	if err != nil {
		return nil, err
	}
	out := make([]float64, m.rows)
	m.forRows(func(r int, row []float64) {
		out[r] = row[c]
	})
	return out, nil
}

// ColumnAverage 并行计算 fn(cell) 在第 col 列上的均值。fn 为 nil 时取原值。
func (m *Matrix) ColumnAverage(col int, fn func(float64) float64) (float64, error) {
	c, err := m.column(col)
	if err != nil {
		return 0, err
	}
	if fn == nil {
		fn = func(v float64) float64 { return v }
	}

	chunks := parallel.Chunks(m.rows, m.workers)
	partial := make([]float64, len(chunks))
	_ = parallel.Tasks(len(chunks), m.workers, func(i int) error {
		var sum float64
		for r := chunks[i][0]; r < chunks[i][1]; r++ {
			sum += fn(m.data[r*m.cols+c])
		}
		partial[i] = sum
		return nil
	})

	// 按分块顺序归约，结果对给定 worker 数确定
	var total float64
	for _, s := range partial {
		total += s
	}
	return total / float64(m.rows), nil
}

// CrossApply 对每一行，从 offset 列到最后一列依次执行 step。
// 行内严格从左到右，行与行之间并行。这不是可交换的并行扫描。
func (m *Matrix) CrossApply(step StepFunc, offset int) error {
	if offset < 0 || offset > m.cols {
		return fmt.Errorf("%w: offset %d", ErrOutOfRange, offset)
	}
	m.forRows(func(r int, row []float64) {
		base := r * m.cols
		for c := offset; c < m.cols; c++ {
			row[c] = step(row, c, base+c)
		}
	})
	return nil
}

// forRows 按行分块并行执行，fn 只能看到自己那一行
func (m *Matrix) forRows(fn func(r int, row []float64)) {
	parallel.For(m.rows, m.workers, func(lo, hi int) {
		for r := lo; r < hi; r++ {
			fn(r, m.rowView(r))
		}
	})
}

// rowView 返回容量受限的行切片，append 不会越界写到下一行
func (m *Matrix) rowView(r int) []float64 {
	lo := r * m.cols
	hi := lo + m.cols
	return m.data[lo:hi:hi]
}

// column 规范化列下标，支持负数（-1 为最后一列）
func (m *Matrix) column(col int) (int, error) {
	if col < 0 {
		col += m.cols
	}
	if col < 0 || col >= m.cols {
		return 0, fmt.Errorf("%w: col %d", ErrOutOfRange, col)
	}
	return col, nil
}
