package combat

import (
	"fmt"
	"strings"

	"github.com/aiwuxian/apocalypse/internal/tags"
)

var battlefieldIntros = map[string]string{
	"wasteland":    "在这片荒芜的废土上，蓝色的晶体在阳光下闪烁着诡异的光芒。空气中弥漫着金属的味道。",
	"荒原":           "在这片荒芜的废土上，蓝色的晶体在阳光下闪烁着诡异的光芒。空气中弥漫着金属的味道。",
	"ice_faction":  "冰河派据点内，蓝色的晶体从墙壁上生长出来，在微光中投下奇异的影子。",
	"冰河派据点":        "冰河派据点内，蓝色的晶体从墙壁上生长出来，在微光中投下奇异的影子。",
	"revival_base": "复苏队基地的能量护盾将熵减的影响阻挡在外，这里的空气清新而温暖。",
	"复苏队基地":        "复苏队基地的能量护盾将熵减的影响阻挡在外，这里的空气清新而温暖。",
}

const defaultBattlefieldIntro = "战斗在这片被熵减影响的土地上展开。"

// Description 战场描述：环境与各阵营单位状态
func (e *Engine) Description() string {
	var b strings.Builder
	intro, ok := battlefieldIntros[e.location]
	if !ok {
		intro = defaultBattlefieldIntro
	}
	b.WriteString(intro)
	b.WriteString("\n\n")

	for _, faction := range e.registry.factionsInOrder() {
		b.WriteString(FactionDisplayName(faction))
		b.WriteString(":\n")
		for _, c := range e.registry.ByFaction(faction) {
			b.WriteString(StatusDescription(c))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// ActorDescription 当前行动者的详细状态
func (e *Engine) ActorDescription() string {
	c := e.current
	if c == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "当前行动角色: %s\n", c.Name)
	fmt.Fprintf(&b, "生命值: %d/%d\n", c.Stats.HP, c.Stats.MaxHP)
	fmt.Fprintf(&b, "魔法值: %d/%d\n", c.Stats.MP, c.Stats.MaxMP)
	fmt.Fprintf(&b, "体力值: %d/%d\n", c.Stats.SP, c.Stats.MaxSP)
	if c.Status.IsDefending {
		b.WriteString("状态: 防御中\n")
	}
	if len(c.Status.Buffs) > 0 {
		fmt.Fprintf(&b, "增益效果: %s\n", effectNames(c.Status.Buffs, ", "))
	}
	if len(c.Status.Debuffs) > 0 {
		fmt.Fprintf(&b, "减益效果: %s\n", effectNames(c.Status.Debuffs, ", "))
	}
	return b.String()
}

// TargetListDescription 当前行动者某类行动的目标列表
func (e *Engine) TargetListDescription(kind string) string {
	targets := e.PossibleTargets(e.current, ActionType(kind))
	lines := make([]string, 0, len(targets))
	for _, t := range targets {
		lines = append(lines, StatusDescription(t))
	}
	return strings.Join(lines, "\n")
}

// ResultDescription 战斗结果
func (e *Engine) ResultDescription() string {
	player, ok := e.registry.Get(tags.PlayerID)
	if !ok || !player.Alive() {
		return "战斗失败...\n你被击败了。"
	}
	return "战斗胜利！\n敌人被击败了。"
}

// StatusDescription 单位的伤势与状态
func StatusDescription(c *Combatant) string {
	var b strings.Builder
	b.WriteString(c.Name)
	b.WriteString(" - ")
	b.WriteString(woundTier(c.Stats.HP, c.Stats.MaxHP))
	if c.Status.IsDefending {
		b.WriteString("，正在防御")
	}
	if len(c.Status.Buffs) > 0 {
		fmt.Fprintf(&b, "，获得%s增益", effectNames(c.Status.Buffs, "、"))
	}
	if len(c.Status.Debuffs) > 0 {
		fmt.Fprintf(&b, "，受到%s影响", effectNames(c.Status.Debuffs, "、"))
	}
	return b.String()
}

func woundTier(hp, maxHP int) string {
	percent := 0.0
	if maxHP > 0 {
		percent = float64(hp) / float64(maxHP) * 100
	}
	switch {
	case percent > 80:
		return "状态完好"
	case percent > 50:
		return "受了一些伤"
	case percent > 20:
		return "伤势严重"
	}
	return "命悬一线"
}

func effectNames(effects []StatusEffect, sep string) string {
	names := make([]string, len(effects))
	for i, e := range effects {
		names[i] = e.Type
	}
	return strings.Join(names, sep)
}
