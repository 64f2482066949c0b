package combat

import "errors"

// 阵营
const (
	FactionPlayer  = "玩家"
	FactionRevival = "复苏队"
	FactionCrystal = "晶体生物"
	FactionGlacier = "冰河派"
	FactionNeutral = "中立"
)

// 战斗相关的玩家标签
const (
	TagRoot         = "战斗"
	TagStatus       = "战斗.状态"
	TagID           = "战斗.ID"
	TagType         = "战斗.类型"
	TagActor        = "战斗.当前行动者"
	TagActionState  = "战斗.行动状态"
	TagActionType   = "战斗.行动类型"
	TagActionTarget = "战斗.行动目标"
	TagActionResult = "战斗.行动结果"
	TagSelectRoot   = "战斗.选择"
	TagSelectType   = "战斗.选择.类型"
	TagSelectTarget = "战斗.选择.目标"
	TagSelectSkill  = "战斗.选择.技能"
	TagSelectItem   = "战斗.选择.物品"

	StatusActive   = "进行中"
	StatusSettling = "结算"

	ActionStateThinking  = "thinking"
	ActionStateExecuting = "executing"
)

var (
	ErrNoActiveCombat = errors.New("当前没有进行中的战斗")
	ErrIllegalTarget  = errors.New("目标不合法")
	ErrNotPlayerTurn  = errors.New("不是玩家的回合")
	ErrNotActorTurn   = errors.New("不是该单位的回合")
	ErrActionResolved = errors.New("本回合已经行动过")
)

// ActionType 行动类型
type ActionType string

const (
	ActionAttack ActionType = "attack"
	ActionDefend ActionType = "defend"
	ActionSkill  ActionType = "skill"
	ActionItem   ActionType = "item"
	ActionHeal   ActionType = "heal" // 仅用于目标筛选
)

// SkillHeal 治疗技能
const SkillHeal = "heal"

// Relation 阵营关系
type Relation string

const (
	Friendly Relation = "friendly"
	Hostile  Relation = "hostile"
	Neutral  Relation = "neutral"
)

// Phase 战斗阶段
type Phase string

const (
	PhaseIdle           Phase = "no_combat"
	PhaseRoundStart     Phase = "round_start"
	PhaseActorTurn      Phase = "actor_turn"
	PhaseActionPending  Phase = "action_pending"
	PhaseActionResolved Phase = "action_resolved"
	PhaseEnded          Phase = "combat_end"
)

// Stats 战斗属性
type Stats struct {
	HP             int `json:"hp"`
	MaxHP          int `json:"maxHp"`
	MP             int `json:"mp"`
	MaxMP          int `json:"maxMp"`
	SP             int `json:"sp"`
	MaxSP          int `json:"maxSp"`
	Strength       int `json:"strength"`
	Agility        int `json:"agility"`
	Intelligence   int `json:"intelligence"`
	Constitution   int `json:"constitution"`
	Wisdom         int `json:"wisdom"`
	Charisma       int `json:"charisma"`
	Initiative     int `json:"initiative"`
	BaseInitiative int `json:"baseInitiative"`
}

func (s *Stats) field(key string) *int {
	switch key {
	case "hp":
		return &s.HP
	case "maxHp":
		return &s.MaxHP
	case "mp":
		return &s.MP
	case "maxMp":
		return &s.MaxMP
	case "sp":
		return &s.SP
	case "maxSp":
		return &s.MaxSP
	case "strength":
		return &s.Strength
	case "agility":
		return &s.Agility
	case "intelligence":
		return &s.Intelligence
	case "constitution":
		return &s.Constitution
	case "wisdom":
		return &s.Wisdom
	case "charisma":
		return &s.Charisma
	case "initiative":
		return &s.Initiative
	case "baseInitiative":
		return &s.BaseInitiative
	}
	return nil
}

// Apply 按键覆盖属性，未知键忽略
func (s *Stats) Apply(values map[string]int) {
	for k, v := range values {
		if f := s.field(k); f != nil {
			*f = v
		}
	}
}

// StatusEffect 增益/减益
type StatusEffect struct {
	Type     string `json:"type"`
	Duration int    `json:"duration"`
	Value    int    `json:"value"`
}

// Status 战斗状态
type Status struct {
	IsDefending bool           `json:"isDefending"`
	Buffs       []StatusEffect `json:"buffs"`
	Debuffs     []StatusEffect `json:"debuffs"`
}

// AIType AI策略
type AIType string

const (
	AINone       AIType = ""
	AIAggressive AIType = "aggressive"
	AIDefensive  AIType = "defensive"
	AISupport    AIType = "support"
)

// Combatant 战斗单位
type Combatant struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Faction      string   `json:"faction"`
	Stats        Stats    `json:"stats"`
	Skills       []string `json:"skills"`
	Status       Status   `json:"status"`
	Illustration string   `json:"illustration,omitempty"`
	AI           AIType   `json:"ai,omitempty"`
}

// Alive 生命值大于0
func (c *Combatant) Alive() bool {
	return c.Stats.HP > 0
}

// Action 战斗行动
type Action struct {
	Type     ActionType `json:"type"`
	TargetID string     `json:"targetId,omitempty"`
	SkillID  string     `json:"skillId,omitempty"`
	ItemID   string     `json:"itemId,omitempty"`
}

// TargetKind 行动对应的目标筛选类型
func (a Action) TargetKind() ActionType {
	if a.Type == ActionSkill && a.SkillID == SkillHeal {
		return ActionHeal
	}
	return a.Type
}

// TurnState 回合状态
type TurnState struct {
	CurrentRound     int      `json:"currentRound"`
	TurnOrder        []string `json:"turnOrder"`
	CurrentTurnIndex int      `json:"currentTurnIndex"`
}

// ActionResult 行动结算
type ActionResult struct {
	ActorID     string `json:"actorId"`
	Action      Action `json:"action"`
	Damage      int    `json:"damage,omitempty"`
	Healed      int    `json:"healed,omitempty"`
	TargetHP    int    `json:"targetHp,omitempty"`
	Killed      bool   `json:"killed,omitempty"`
	Description string `json:"description"`
}
