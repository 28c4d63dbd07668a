package domain

import "errors"

var (
	// ErrInvalidInput 输入参数非法（T<=0、步数<=0、波动率<=0 等）
	ErrInvalidInput = errors.New("pricing: invalid input")
	// ErrUnsupportedVariant 定价方法不支持该期权类型（如闭式解定价美式期权）
	ErrUnsupportedVariant = errors.New("pricing: variant not supported by this method")
	// ErrUnsupportedMethod 未知定价方法
	ErrUnsupportedMethod = errors.New("pricing: unsupported method")
	// ErrNotConverged 牛顿迭代未在最大次数内收敛
	ErrNotConverged = errors.New("pricing: did not converge")
	// ErrArbitrageProbabilities 三叉树转移概率越界
	ErrArbitrageProbabilities = errors.New("pricing: lattice probabilities out of range")
)
