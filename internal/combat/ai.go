package combat

import (
	"context"

	"github.com/aiwuxian/apocalypse/internal/tags"
)

// Battlefield AI决策时可见的战场
type Battlefield interface {
	PossibleTargets(actor *Combatant, kind ActionType) []*Combatant
}

// Strategy AI决策函数
type Strategy func(actor *Combatant, field Battlefield, dice *Dice) Action

// 支援型AI的决策比例：防御40%，治疗30%，其余攻击
const (
	supportDefendChance = 0.4
	supportHealChance   = 0.7
)

var strategies = map[AIType]Strategy{
	AIAggressive: aggressiveStrategy,
	AIDefensive:  defensiveStrategy,
	AISupport:    supportStrategy,
}

// Decide 按AI类型决策；未知类型按进攻型处理
func Decide(ctx context.Context, aiType AIType, actor *Combatant, field Battlefield, dice *Dice) (Action, error) {
	if err := ctx.Err(); err != nil {
		return Action{}, err
	}
	strategy, ok := strategies[aiType]
	if !ok {
		strategy = aggressiveStrategy
	}
	return strategy(actor, field, dice), nil
}

// ParseAIType 解析实体模板中的AI类型
func ParseAIType(s string) AIType {
	switch AIType(s) {
	case AIAggressive, AIDefensive, AISupport:
		return AIType(s)
	}
	return AIAggressive
}

// 优先攻击玩家，否则攻击第一个敌对目标；没有目标时防御
func aggressiveStrategy(actor *Combatant, field Battlefield, _ *Dice) Action {
	targets := field.PossibleTargets(actor, ActionAttack)
	if len(targets) == 0 {
		return Action{Type: ActionDefend}
	}
	for _, t := range targets {
		if t.ID == tags.PlayerID {
			return Action{Type: ActionAttack, TargetID: t.ID}
		}
	}
	return Action{Type: ActionAttack, TargetID: targets[0].ID}
}

func defensiveStrategy(_ *Combatant, _ Battlefield, _ *Dice) Action {
	return Action{Type: ActionDefend}
}

func supportStrategy(actor *Combatant, field Battlefield, dice *Dice) Action {
	roll := dice.Chance()
	switch {
	case roll < supportDefendChance:
		return Action{Type: ActionDefend}
	case roll < supportHealChance:
		if target := mostWounded(field.PossibleTargets(actor, ActionHeal)); target != nil {
			return Action{Type: ActionSkill, SkillID: SkillHeal, TargetID: target.ID}
		}
		return Action{Type: ActionDefend}
	}
	return aggressiveStrategy(actor, field, dice)
}

// 生命比例最低的单位，相同时取靠前者
func mostWounded(candidates []*Combatant) *Combatant {
	var best *Combatant
	bestRatio := 2.0
	for _, c := range candidates {
		ratio := 1.0
		if c.Stats.MaxHP > 0 {
			ratio = float64(c.Stats.HP) / float64(c.Stats.MaxHP)
		}
		if ratio < bestRatio {
			best, bestRatio = c, ratio
		}
	}
	return best
}
