package combat

import "math/rand"

// Dice 注入的随机源，决定先攻与AI决策
type Dice struct {
	rng *rand.Rand
}

func NewDice(rng *rand.Rand) *Dice {
	return &Dice{rng: rng}
}

// Roll 投任意骰子，结果为 1..sides
func (d *Dice) Roll(sides int) int {
	if sides <= 1 {
		return 1
	}
	return d.rng.Intn(sides) + 1
}

// Chance 返回 [0,1) 的随机数
func (d *Dice) Chance() float64 {
	return d.rng.Float64()
}
