package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/aiwuxian/apocalypse/internal/combat"
	"github.com/aiwuxian/apocalypse/internal/models"
	"github.com/aiwuxian/apocalypse/internal/tags"
)

// Mechanism 选项触发的特殊机制
type Mechanism string

const (
	MechStartCombat           Mechanism = "startCombat"
	MechExecuteCombatAction   Mechanism = "executeCombatAction"
	MechExecuteCombatAIAction Mechanism = "executeCombatAIAction"
	MechNextCombatTurn        Mechanism = "nextCombatTurn"
	MechEndCombat             Mechanism = "endCombat"
	MechGaokao                Mechanism = "gaokao"
	MechGameOver              Mechanism = "gameOver"
	MechMoveToLocation        Mechanism = "moveToLocation"
	MechCharacterInteraction  Mechanism = "characterInteraction"
	MechCharacterAttack       Mechanism = "characterAttack"
	MechUnlockLocationPanel   Mechanism = "unlockLocationPanel"
	MechFindCharacter         Mechanism = "findCharacter"
)

// 结局标签
const endingRoot = "结局"

type mechanismHandler func(g *Game, ctx context.Context, card *models.Card) error

var mechanismHandlers map[Mechanism]mechanismHandler

func init() {
	mechanismHandlers = map[Mechanism]mechanismHandler{
		MechStartCombat:           (*Game).startCombat,
		MechExecuteCombatAction:   (*Game).executeCombatAction,
		MechExecuteCombatAIAction: (*Game).executeCombatAIAction,
		MechNextCombatTurn:        (*Game).nextCombatTurn,
		MechEndCombat:             (*Game).endCombat,
		MechGaokao:                (*Game).gaokao,
		MechGameOver:              (*Game).gameOver,
		MechMoveToLocation:        (*Game).moveToLocation,
		MechCharacterInteraction:  (*Game).characterInteraction,
		MechCharacterAttack:       (*Game).characterAttack,
		MechUnlockLocationPanel:   (*Game).unlockLocationPanel,
		MechFindCharacter:         (*Game).findCharacter,
	}
}

// Dispatch 执行机制；未知名字忽略
func (g *Game) Dispatch(ctx context.Context, name string, card *models.Card) error {
	if name == "" {
		return nil
	}
	h, ok := mechanismHandlers[Mechanism(name)]
	if !ok {
		log.Printf("⚠️ [机制] 未知机制 %s，已忽略", name)
		return nil
	}
	log.Printf("⚙️ [机制] %s", name)
	return h(g, ctx, card)
}

// 遭遇ID取自 战斗.类型，未设置时使用卡牌ID
func (g *Game) startCombat(ctx context.Context, card *models.Card) error {
	combatID := g.Chars.PlayerTag(combat.TagType).String()
	if combatID == "" && card != nil {
		combatID = card.ID
	}
	location := g.Chars.PlayerTag(TagCurrentLocation).String()
	return g.Combat.Init(ctx, combatID, location)
}

func (g *Game) executeCombatAction(ctx context.Context, _ *models.Card) error {
	actor := g.Combat.CurrentActor()
	if !g.Combat.Active() || actor == nil || actor.ID != tags.PlayerID {
		g.combatActionFailed(combat.ErrNotPlayerTurn)
		return nil
	}

	kind := combat.ActionType(g.Chars.PlayerTag(combat.TagSelectType).String())
	switch kind {
	case combat.ActionDefend:
		g.runPlayerAction(ctx, combat.Action{Type: combat.ActionDefend, TargetID: actor.ID})
	case combat.ActionAttack:
		if _, err := g.Combat.RequestAction(kind); err != nil {
			g.combatActionFailed(err)
			return nil
		}
		g.askCombatTarget(combat.Action{Type: combat.ActionAttack})
	case combat.ActionSkill:
		g.askCombatSkill(actor)
	case combat.ActionItem:
		g.askCombatItem()
	default:
		g.combatActionFailed(fmt.Errorf("未知的行动类型: %q", kind))
	}
	return nil
}

func (g *Game) askCombatSkill(actor *combat.Combatant) {
	if len(actor.Skills) == 0 {
		g.combatActionFailed(fmt.Errorf("%s 没有可用的技能", actor.Name))
		return
	}
	options := make([]SelectionOption, len(actor.Skills))
	for i, s := range actor.Skills {
		options[i] = SelectionOption{ID: s, Label: s}
	}
	g.openSelection(newSelection(SelectCombatSkill, "选择技能", options,
		func(ctx context.Context, skill string) error {
			g.Chars.SetPlayerTag(combat.TagSelectSkill, models.String(skill))
			g.askCombatTarget(combat.Action{Type: combat.ActionSkill, SkillID: skill})
			return nil
		}, g.cancelCombatSelection))
}

func (g *Game) askCombatItem() {
	inv := g.Items.Inventory()
	names := make([]string, 0, len(inv))
	for name := range inv {
		names = append(names, name)
	}
	if len(names) == 0 {
		g.combatActionFailed(errors.New("没有可用的物品"))
		return
	}
	sort.Strings(names)
	options := make([]SelectionOption, len(names))
	for i, name := range names {
		options[i] = SelectionOption{ID: name, Label: fmt.Sprintf("%s x%d", name, inv[name])}
	}
	g.openSelection(newSelection(SelectCombatItem, "选择物品", options,
		func(ctx context.Context, item string) error {
			g.Chars.SetPlayerTag(combat.TagSelectItem, models.String(item))
			g.askCombatTarget(combat.Action{Type: combat.ActionItem, ItemID: item})
			return nil
		}, g.cancelCombatSelection))
}

func (g *Game) askCombatTarget(action combat.Action) {
	actor := g.Combat.CurrentActor()
	targets := g.Combat.PossibleTargets(actor, action.TargetKind())
	if len(targets) == 0 {
		g.combatActionFailed(errors.New("没有可选的目标"))
		return
	}
	options := make([]SelectionOption, len(targets))
	for i, t := range targets {
		options[i] = SelectionOption{ID: t.ID, Label: t.Name, Description: combat.StatusDescription(t)}
	}
	g.openSelection(newSelection(SelectCombatTarget, "选择目标", options,
		func(ctx context.Context, targetID string) error {
			g.Chars.SetPlayerTag(combat.TagSelectTarget, models.String(targetID))
			action.TargetID = targetID
			g.runPlayerAction(ctx, action)
			return nil
		}, g.cancelCombatSelection))
}

// 执行玩家行动；不推进回合
func (g *Game) runPlayerAction(ctx context.Context, action combat.Action) {
	if _, err := g.Combat.ExecuteAction(ctx, tags.PlayerID, action); err != nil {
		g.combatActionFailed(err)
		return
	}
	g.clearCombatSelection()
}

// 行动失败不中断流程：重置选择标签并记录日志
func (g *Game) combatActionFailed(err error) {
	log.Printf("❌ [战斗] 执行行动失败: %v", err)
	g.clearCombatSelection()
	g.Combat.CancelAction()
}

func (g *Game) cancelCombatSelection() {
	g.clearCombatSelection()
	g.Combat.CancelAction()
}

func (g *Game) clearCombatSelection() {
	g.Tags.Delete(tags.PlayerID, combat.TagSelectRoot)
}

func (g *Game) executeCombatAIAction(ctx context.Context, _ *models.Card) error {
	if _, err := g.Combat.ExecuteAIAction(ctx); err != nil {
		log.Printf("❌ [战斗] AI行动失败: %v", err)
		g.Chars.SetPlayerTag(combat.TagActionState, models.String(models.EmptySentinel))
		g.Chars.SetPlayerTag(combat.TagActor, models.String(models.EmptySentinel))
	}
	return nil
}

func (g *Game) nextCombatTurn(ctx context.Context, _ *models.Card) error {
	if err := g.Combat.NextTurn(ctx); err != nil {
		log.Printf("❌ [战斗] 推进回合失败: %v", err)
	}
	return nil
}

func (g *Game) endCombat(context.Context, *models.Card) error {
	g.Combat.End()
	return nil
}

func (g *Game) gaokao(ctx context.Context, _ *models.Card) error {
	res := Exam(g.Chars)
	rank := RankNotFound
	if g.rank != nil {
		r, err := g.rank.QueryRank(ctx, res.Total)
		if err != nil {
			log.Printf("⚠️ [高考] 查询排名失败: %v", err)
		} else {
			rank = r
		}
	}
	log.Printf("🎓 [高考] 总分 %d，排名 %d", res.Total, rank)
	g.endGame(EndingGaokao, GaokaoMessage(res, rank))
	return nil
}

func (g *Game) gameOver(context.Context, *models.Card) error {
	g.endGame(EndingNormal, "游戏结束")
	return nil
}

func (g *Game) moveToLocation(context.Context, *models.Card) error {
	g.World.MoveToTarget()
	return nil
}

func (g *Game) characterInteraction(context.Context, *models.Card) error {
	target := g.Chars.PlayerTag(TagInteractTarget).String()
	if target == "" {
		return nil
	}
	g.Chars.SetPlayerTag(TagTalkTarget, models.String(target))
	g.Tags.Delete(tags.PlayerID, TagInteractTarget)
	return nil
}

// 攻击角色解锁该角色配置的结局
func (g *Game) characterAttack(context.Context, *models.Card) error {
	target := g.Chars.PlayerTag(TagInteractTarget).String()
	if c, ok := g.Chars.Character(target); ok && c.AttackEnding != "" {
		g.Chars.SetPlayerTag(endingRoot+"."+c.AttackEnding, models.String("1"))
	}
	g.Tags.Delete(tags.PlayerID, TagInteractTarget)
	g.Tags.Delete(tags.PlayerID, TagTalkTarget)
	return nil
}

func (g *Game) unlockLocationPanel(context.Context, *models.Card) error {
	g.Chars.SetPlayerTag(TagLocationPanel, models.String(PanelUnlocked))
	return nil
}

// 在当前地点的角色中选择一个作为寻找目标
func (g *Game) findCharacter(context.Context, *models.Card) error {
	here := g.Chars.PlayerTag(TagCurrentLocation).String()
	var options []SelectionOption
	for _, c := range g.Chars.CharactersAt(here) {
		if c.ID == tags.PlayerID {
			continue
		}
		options = append(options, SelectionOption{ID: c.ID, Label: c.Name, Description: c.Title})
	}
	if len(options) == 0 {
		log.Printf("🔍 [寻找] %s 没有其他角色", here)
		return nil
	}
	g.openSelection(newSelection(SelectCharacter, "寻找角色", options,
		func(_ context.Context, id string) error {
			g.Chars.SetPlayerTag(TagSearchTarget, models.String(id))
			return nil
		}, nil))
	return nil
}
