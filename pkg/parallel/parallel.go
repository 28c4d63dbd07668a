// Package parallel 提供固定大小 worker 池上的数据并行循环
package parallel

import (
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Workers 规范化 worker 数，<=0 时取 GOMAXPROCS
func Workers(n int) int {
	if n <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return n
}

// Chunks 把 [0,n) 切分为最多 parts 段连续区间，最后一段吸收余数
func Chunks(n, parts int) [][2]int {
	if n <= 0 {
		return nil
	}
	if parts <= 0 {
		parts = 1
	}
	if parts > n {
		parts = n
	}
	size := n / parts
	out := make([][2]int, parts)
	for i := range parts {
		lo := i * size
		hi := lo + size
		if i == parts-1 {
			hi = n
		}
		out[i] = [2]int{lo, hi}
	}
	return out
}

// For 在 workers 个 goroutine 上并行执行 fn(lo, hi)，每个区间只被一个任务处理。
// 同步 fan-out/fan-in，不支持取消。
func For(n, workers int, fn func(lo, hi int)) {
	workers = Workers(workers)
	chunks := Chunks(n, workers)
	if len(chunks) == 1 {
		fn(chunks[0][0], chunks[0][1])
		return
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for _, c := range chunks {
		g.Go(func() error {
			fn(c[0], c[1])
			return nil
		})
	}
	_ = g.Wait()
}

// Tasks 并行执行 n 个独立任务，返回第一个错误
func Tasks(n, workers int, fn func(i int) error) error {
	var g errgroup.Group
	g.SetLimit(Workers(workers))
	for i := range n {
		g.Go(func() error {
			return fn(i)
		})
	}
	return g.Wait()
}
