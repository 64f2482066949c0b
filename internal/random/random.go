// Package random 为会话创建随机数源
package random

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
)

// NewSeed 使用 crypto/rand 生成种子
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("生成随机种子失败: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

// New 创建随机数源；seed 为 0 时使用随机种子
func New(seed int64) (*rand.Rand, int64, error) {
	if seed == 0 {
		s, err := NewSeed()
		if err != nil {
			return nil, 0, err
		}
		seed = s
	}
	return rand.New(rand.NewSource(seed)), seed, nil
}
