package combat

import "github.com/aiwuxian/apocalypse/internal/models"

type factionPair struct {
	a, b string
}

func pairOf(a, b string) factionPair {
	if a > b {
		a, b = b, a
	}
	return factionPair{a: a, b: b}
}

// FactionTable 无序阵营对 -> 关系；同阵营友好，未列出的中立
type FactionTable struct {
	relations map[factionPair]Relation
}

// DefaultFactionRelations 内置阵营关系
func DefaultFactionRelations() []models.FactionRelation {
	return []models.FactionRelation{
		{Faction1: FactionPlayer, Faction2: FactionRevival, Relation: string(Friendly)},
		{Faction1: FactionPlayer, Faction2: FactionCrystal, Relation: string(Hostile)},
		{Faction1: FactionPlayer, Faction2: FactionGlacier, Relation: string(Hostile)},
		{Faction1: FactionRevival, Faction2: FactionCrystal, Relation: string(Hostile)},
		{Faction1: FactionRevival, Faction2: FactionGlacier, Relation: string(Hostile)},
		{Faction1: FactionCrystal, Faction2: FactionGlacier, Relation: string(Hostile)},
	}
}

func NewFactionTable(relations []models.FactionRelation) *FactionTable {
	t := &FactionTable{relations: make(map[factionPair]Relation, len(relations))}
	for _, r := range relations {
		t.relations[pairOf(r.Faction1, r.Faction2)] = Relation(r.Relation)
	}
	return t
}

// Relation 查询两个阵营的关系（与顺序无关）
func (t *FactionTable) Relation(a, b string) Relation {
	if a == b {
		return Friendly
	}
	if r, ok := t.relations[pairOf(a, b)]; ok {
		return r
	}
	return Neutral
}

// FactionDisplayName 阵营显示名
func FactionDisplayName(faction string) string {
	switch faction {
	case FactionPlayer:
		return "你的队伍"
	case FactionRevival:
		return "复苏队成员"
	case FactionCrystal:
		return "晶体生物群"
	case FactionGlacier:
		return "冰河派成员"
	}
	return faction
}
