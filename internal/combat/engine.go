package combat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"

	"github.com/aiwuxian/apocalypse/internal/models"
	"github.com/aiwuxian/apocalypse/internal/tags"
)

// World 战斗引擎读写的角色世界
type World interface {
	CharacterSource
	Set(characterID, path string, v models.TagValue)
	CharactersAt(location string) []*models.Character
}

// EncounterSource 遭遇配置与实体模板
type EncounterSource interface {
	Encounter(ctx context.Context, id string) (*models.CombatConfig, error)
	Entity(ctx context.Context, id string) (*models.EntityData, error)
}

// Engine 回合制战斗状态机。非并发安全，由会话串行访问。
type Engine struct {
	world      World
	encounters EncounterSource
	factions   *FactionTable
	registry   *Registry
	dice       *Dice

	combatID   string
	location   string
	phase      Phase
	turn       TurnState
	current    *Combatant
	lastResult *ActionResult
}

func NewEngine(world World, encounters EncounterSource, factions *FactionTable, dice *Dice) *Engine {
	return &Engine{
		world:      world,
		encounters: encounters,
		factions:   factions,
		registry:   NewRegistry(world, factions),
		dice:       dice,
		phase:      PhaseIdle,
	}
}

// Registry 战斗单位登记表
func (e *Engine) Registry() *Registry {
	return e.registry
}

// Factions 阵营关系表
func (e *Engine) Factions() *FactionTable {
	return e.factions
}

func (e *Engine) Active() bool {
	return e.phase != PhaseIdle
}

func (e *Engine) Phase() Phase {
	return e.phase
}

func (e *Engine) CombatID() string {
	return e.combatID
}

// TurnState 回合状态副本
func (e *Engine) TurnState() TurnState {
	ts := e.turn
	ts.TurnOrder = append([]string(nil), e.turn.TurnOrder...)
	return ts
}

func (e *Engine) CurrentActor() *Combatant {
	return e.current
}

func (e *Engine) LastResult() *ActionResult {
	return e.lastResult
}

// Init 按遭遇ID初始化战斗；失败时回滚所有战斗状态
func (e *Engine) Init(ctx context.Context, combatID, location string) error {
	if err := e.init(ctx, combatID, location); err != nil {
		e.End()
		return fmt.Errorf("初始化战斗失败: %w", err)
	}
	return nil
}

func (e *Engine) init(ctx context.Context, combatID, location string) error {
	cfg, err := e.encounters.Encounter(ctx, combatID)
	if err != nil {
		return err
	}
	if location == "" {
		location = cfg.Location
	}

	e.registry.Clear()
	e.turn = TurnState{}
	e.current = nil
	e.lastResult = nil

	if _, err := e.registry.CreateFromCharacter(tags.PlayerID); err != nil {
		return err
	}

	for _, ch := range e.world.CharactersAt(location) {
		if ch.ID == tags.PlayerID || ch.Faction == "" || ch.Faction == FactionPlayer {
			continue
		}
		if e.factions.Relation(ch.Faction, FactionPlayer) != Friendly {
			continue
		}
		if _, err := e.registry.CreateFromCharacter(ch.ID); err != nil {
			return err
		}
	}

	counters := make(map[string]int)
	for _, p := range cfg.Participants {
		data, err := e.encounters.Entity(ctx, p.EntityID)
		if err != nil {
			return err
		}
		count, level := p.Count, p.Level
		if count <= 0 {
			count = 1
		}
		if level <= 0 {
			level = 1
		}
		for i := 0; i < count; i++ {
			idx := counters[p.EntityID]
			counters[p.EntityID]++
			e.registry.CreateFromEntity(EntitySpec{
				ID:           fmt.Sprintf("%s_%d", p.EntityID, idx),
				Name:         data.Name,
				Faction:      data.Faction,
				Stats:        ScaleStats(data.BaseStats, data.LevelGrowth, level),
				Skills:       data.Skills,
				AIType:       data.AIType,
				Illustration: data.Illustration,
			})
		}
	}

	e.combatID = cfg.ID
	e.location = location
	e.world.Set(tags.PlayerID, TagID, models.String(cfg.ID))
	e.world.Set(tags.PlayerID, TagStatus, models.String(StatusActive))
	log.Printf("⚔️ [战斗] %s 开始，参战单位 %d 个", cfg.Name, e.registry.Len())

	return e.StartNewRound(ctx)
}

// StartNewRound 重新掷先攻并开始新回合
func (e *Engine) StartNewRound(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	e.phase = PhaseRoundStart
	e.determineTurnOrder()
	log.Printf("⚔️ [战斗] 第 %d 回合", e.turn.CurrentRound)
	return e.ProcessTurn(ctx)
}

// 先攻 = 基础先攻 + 1d6，降序，同值保持登记顺序
func (e *Engine) determineTurnOrder() {
	var alive []*Combatant
	for _, c := range e.registry.All() {
		if !c.Alive() {
			continue
		}
		c.Stats.Initiative = c.Stats.BaseInitiative + e.dice.Roll(6)
		alive = append(alive, c)
	}
	sort.SliceStable(alive, func(i, j int) bool {
		return alive[i].Stats.Initiative > alive[j].Stats.Initiative
	})

	order := make([]string, len(alive))
	for i, c := range alive {
		order[i] = c.ID
	}
	e.turn.TurnOrder = order
	e.turn.CurrentTurnIndex = 0
	e.turn.CurrentRound++
}

// 从当前下标开始找第一个存活的行动者，越界时回到0一次
func (e *Engine) nextActor() *Combatant {
	n := len(e.turn.TurnOrder)
	if n == 0 {
		return nil
	}
	start := e.turn.CurrentTurnIndex
	if start >= n || start < 0 {
		start = 0
	}
	for step := 0; step < n; step++ {
		i := (start + step) % n
		if c, ok := e.registry.Get(e.turn.TurnOrder[i]); ok && c.Alive() {
			e.turn.CurrentTurnIndex = i
			return c
		}
	}
	return nil
}

// ProcessTurn 检查结束条件并推进到下一个行动者
func (e *Engine) ProcessTurn(ctx context.Context) error {
	for attempt := 0; attempt < 2; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if e.CheckCombatEnd() {
			e.settle()
			return nil
		}
		actor := e.nextActor()
		if actor == nil {
			e.determineTurnOrder()
			continue
		}
		e.current = actor
		e.phase = PhaseActorTurn
		e.world.Set(tags.PlayerID, TagActor, models.String(actor.ID))
		if actor.ID != tags.PlayerID && actor.AI != AINone {
			e.world.Set(tags.PlayerID, TagActionState, models.String(ActionStateThinking))
		}
		return nil
	}
	return errors.New("没有可以行动的战斗单位")
}

func (e *Engine) settle() {
	e.phase = PhaseEnded
	e.current = nil
	e.world.Set(tags.PlayerID, TagStatus, models.String(StatusSettling))
	log.Printf("⚔️ [战斗] %s 进入结算", e.combatID)
}

// CheckCombatEnd 玩家倒下，或存活单位之间已无敌对阵营
func (e *Engine) CheckCombatEnd() bool {
	player, ok := e.registry.Get(tags.PlayerID)
	if !ok || !player.Alive() {
		return true
	}

	var live []string
	seen := make(map[string]bool)
	for _, c := range e.registry.All() {
		if c.Alive() && !seen[c.Faction] {
			seen[c.Faction] = true
			live = append(live, c.Faction)
		}
	}
	for i := range live {
		for j := i + 1; j < len(live); j++ {
			if e.factions.Relation(live[i], live[j]) == Hostile {
				return false
			}
		}
	}
	return true
}

// PossibleTargets 某行动者对某类行动的合法目标
func (e *Engine) PossibleTargets(actor *Combatant, kind ActionType) []*Combatant {
	if actor == nil {
		return nil
	}
	var out []*Combatant
	for _, c := range e.registry.All() {
		if !c.Alive() {
			continue
		}
		switch kind {
		case ActionAttack:
			if c.ID != actor.ID && e.factions.Relation(actor.Faction, c.Faction) == Hostile {
				out = append(out, c)
			}
		case ActionHeal:
			if c.ID == actor.ID || e.factions.Relation(actor.Faction, c.Faction) == Friendly {
				out = append(out, c)
			}
		case ActionSkill, ActionItem:
			out = append(out, c)
		}
	}
	return out
}

// RequestAction 玩家选择行动类型，进入等待选择目标的阶段
func (e *Engine) RequestAction(kind ActionType) ([]*Combatant, error) {
	if !e.Active() || e.phase == PhaseEnded {
		return nil, ErrNoActiveCombat
	}
	if e.current == nil || e.current.ID != tags.PlayerID {
		return nil, ErrNotPlayerTurn
	}
	e.phase = PhaseActionPending
	return e.PossibleTargets(e.current, kind), nil
}

// CancelAction 放弃正在选择的行动
func (e *Engine) CancelAction() {
	if e.phase == PhaseActionPending {
		e.phase = PhaseActorTurn
	}
}

// ExecuteAIAction 当前行动者为AI时决策并执行；不会自动推进回合
func (e *Engine) ExecuteAIAction(ctx context.Context) (*ActionResult, error) {
	if !e.Active() || e.phase == PhaseEnded {
		return nil, ErrNoActiveCombat
	}
	actorID := e.world.Tag(tags.PlayerID, TagActor).String()
	actor, ok := e.registry.Get(actorID)
	if !ok {
		return nil, fmt.Errorf("找不到当前行动者: %s", actorID)
	}
	if actor.ID == tags.PlayerID || actor.AI == AINone {
		return nil, e.NextTurn(ctx)
	}

	action, err := Decide(ctx, actor.AI, actor, e, e.dice)
	if err != nil {
		return nil, err
	}
	e.world.Set(tags.PlayerID, TagActionState, models.String(ActionStateExecuting))
	e.world.Set(tags.PlayerID, TagActionType, models.String(string(action.Type)))
	if action.TargetID != "" {
		e.world.Set(tags.PlayerID, TagActionTarget, models.String(action.TargetID))
	}
	return e.ExecuteAction(ctx, actor.ID, action)
}

// ExecuteAction 结算一次行动
func (e *Engine) ExecuteAction(ctx context.Context, actorID string, action Action) (*ActionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !e.Active() || e.phase == PhaseEnded {
		return nil, ErrNoActiveCombat
	}
	if e.current == nil || e.current.ID != actorID {
		return nil, fmt.Errorf("%w: %s", ErrNotActorTurn, actorID)
	}
	// 每个回合只结算一次行动
	if e.phase != PhaseActorTurn && e.phase != PhaseActionPending {
		return nil, ErrActionResolved
	}
	actor, ok := e.registry.Get(actorID)
	if !ok || !actor.Alive() {
		return nil, fmt.Errorf("行动者不可用: %s", actorID)
	}

	var (
		res *ActionResult
		err error
	)
	switch action.Type {
	case ActionAttack:
		res, err = e.attack(actor, action)
	case ActionDefend:
		res = e.defend(actor, action)
	case ActionSkill:
		res, err = e.useSkill(actor, action)
	case ActionItem:
		res, err = e.useItem(actor, action)
	default:
		err = fmt.Errorf("未知的行动类型: %s", action.Type)
	}
	if err != nil {
		return nil, err
	}

	e.lastResult = res
	e.phase = PhaseActionResolved
	e.world.Set(tags.PlayerID, TagActionResult, models.String(res.Description))
	log.Printf("⚔️ [战斗] %s", res.Description)
	return res, nil
}

func (e *Engine) target(actor *Combatant, action Action) (*Combatant, error) {
	for _, c := range e.PossibleTargets(actor, action.TargetKind()) {
		if c.ID == action.TargetID {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrIllegalTarget, action.TargetID)
}

// 伤害 = floor(力量*1.5)，目标防御时减半
func (e *Engine) attack(actor *Combatant, action Action) (*ActionResult, error) {
	target, err := e.target(actor, action)
	if err != nil {
		return nil, err
	}
	damage := int(math.Floor(float64(actor.Stats.Strength) * 1.5))
	defending := target.Status.IsDefending
	if defending {
		damage /= 2
	}
	hp := target.Stats.HP - damage
	if hp < 0 {
		hp = 0
	}
	e.registry.Update(target.ID, Update{Stats: map[string]int{"hp": hp}})

	res := &ActionResult{ActorID: actor.ID, Action: action, Damage: damage, TargetHP: hp}
	if hp == 0 {
		res.Killed = true
		e.removeFromTurnOrder(target.ID)
		if target.ID == tags.PlayerID {
			e.world.Set(tags.PlayerID, "状态.死亡", models.String("1"))
		}
	}

	stance := ""
	if defending {
		stance = "正在防御的"
	}
	res.Description = fmt.Sprintf("%s 攻击了%s %s，造成了 %d 点伤害！(剩余生命值: %d)",
		actor.Name, stance, target.Name, damage, hp)
	return res, nil
}

// 防御状态不会自动解除
func (e *Engine) defend(actor *Combatant, action Action) *ActionResult {
	status := actor.Status
	status.IsDefending = true
	e.registry.Update(actor.ID, Update{Status: &status})
	return &ActionResult{
		ActorID:     actor.ID,
		Action:      action,
		Description: fmt.Sprintf("%s 进入防御姿态，将减少受到的伤害！", actor.Name),
	}
}

// 治疗量 = floor(感知*1.5)，不超过生命上限；其他技能只产生描述
func (e *Engine) useSkill(actor *Combatant, action Action) (*ActionResult, error) {
	if action.SkillID == "" {
		return nil, errors.New("未指定技能")
	}
	target, err := e.target(actor, action)
	if err != nil {
		return nil, err
	}
	res := &ActionResult{ActorID: actor.ID, Action: action, TargetHP: target.Stats.HP}
	if action.SkillID != SkillHeal {
		res.Description = fmt.Sprintf("%s 对 %s 使用了 %s", actor.Name, target.Name, action.SkillID)
		return res, nil
	}

	amount := int(math.Floor(float64(actor.Stats.Wisdom) * 1.5))
	hp := target.Stats.HP + amount
	if target.Stats.MaxHP > 0 && hp > target.Stats.MaxHP {
		hp = target.Stats.MaxHP
	}
	res.Healed = hp - target.Stats.HP
	res.TargetHP = hp
	e.registry.Update(target.ID, Update{Stats: map[string]int{"hp": hp}})
	res.Description = fmt.Sprintf("%s 为 %s 治疗了 %d 点生命值！(当前生命值: %d)",
		actor.Name, target.Name, res.Healed, hp)
	return res, nil
}

// 玩家使用道具会消耗一个物品
func (e *Engine) useItem(actor *Combatant, action Action) (*ActionResult, error) {
	if action.ItemID == "" {
		return nil, errors.New("未指定道具")
	}
	target, err := e.target(actor, action)
	if err != nil {
		return nil, err
	}
	if actor.ID == tags.PlayerID {
		path := "物品." + action.ItemID
		count, _ := e.world.Tag(tags.PlayerID, path).Float()
		if count < 1 {
			return nil, fmt.Errorf("物品数量不足: %s", action.ItemID)
		}
		e.world.Set(tags.PlayerID, path, models.Number(-1))
	}
	return &ActionResult{
		ActorID:     actor.ID,
		Action:      action,
		TargetHP:    target.Stats.HP,
		Description: fmt.Sprintf("%s 对 %s 使用了 %s", actor.Name, target.Name, action.ItemID),
	}, nil
}

// 保持当前行动者的下标不变
func (e *Engine) removeFromTurnOrder(id string) {
	for i, oid := range e.turn.TurnOrder {
		if oid != id {
			continue
		}
		e.turn.TurnOrder = append(e.turn.TurnOrder[:i], e.turn.TurnOrder[i+1:]...)
		if i < e.turn.CurrentTurnIndex {
			e.turn.CurrentTurnIndex--
		}
		return
	}
}

// NextTurn 清理上一次行动的标签并推进到下一个行动者；本回合结束时开始新回合
func (e *Engine) NextTurn(ctx context.Context) error {
	if !e.Active() {
		return ErrNoActiveCombat
	}
	for _, p := range []string{TagActionState, TagActionType, TagActionTarget, TagActionResult} {
		e.world.Set(tags.PlayerID, p, models.String(models.EmptySentinel))
	}
	if e.phase == PhaseEnded {
		return nil
	}
	if e.CheckCombatEnd() {
		e.settle()
		return nil
	}

	e.turn.CurrentTurnIndex++
	if e.turn.CurrentTurnIndex >= len(e.turn.TurnOrder) {
		return e.StartNewRound(ctx)
	}
	return e.ProcessTurn(ctx)
}

// End 清除战斗标签与所有战斗状态
func (e *Engine) End() {
	e.world.Set(tags.PlayerID, TagRoot, models.String(models.EmptySentinel))
	e.registry.Clear()
	e.turn = TurnState{}
	e.current = nil
	e.lastResult = nil
	e.combatID = ""
	e.location = ""
	e.phase = PhaseIdle
}
