package services

import (
	"testing"

	"github.com/aiwuxian/apocalypse/internal/models"
	"github.com/aiwuxian/apocalypse/internal/tags"
)

type fakeCombat struct {
	active bool
}

func (f *fakeCombat) Active() bool        { return f.active }
func (f *fakeCombat) Description() string { return "战斗描述" }
func (f *fakeCombat) ActorDescription() string {
	return "轮到你行动"
}
func (f *fakeCombat) TargetListDescription(kind string) string { return "目标:" + kind }
func (f *fakeCombat) ResultDescription() string                { return "造成10点伤害" }

func TestRender(t *testing.T) {
	store, chars := newTestChars(t)
	combat := &fakeCombat{}
	tr := NewTextRenderer(chars, combat)
	store.Set(tags.PlayerID, TagInteractTarget, models.String("suYuQing"))
	store.Set(tags.PlayerID, "技能.语文", models.Number(1200))

	tests := []struct {
		name     string
		template string
		want     string
	}{
		{"无占位符", "平静的一天", "平静的一天"},
		{"标签值", "生命值：{{tagValue:状态.生命值}}", "生命值：100"},
		{"缺失标签", "[{{tagValue:状态.不存在}}]", "[]"},
		{"角色名", "{{charName}}看着你", "苏雨晴看着你"},
		{"单科成绩", "语文{{exam150:技能.语文}}，物理{{exam100:技能.物理}}", "语文78，物理0"},
		{"总分", "总分{{examAll}}", "总分78"},
		{"未知类型", "{{unknown:x}}", "{{unknown:x}}"},
		{"战斗未开始", "[{{combatDescription}}]", "[]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tr.Render(tt.template); got != tt.want {
				t.Errorf("Render(%q) = %q, want %q", tt.template, got, tt.want)
			}
		})
	}

	combat.active = true
	got := tr.Render("{{combatDescription}}|{{combatActor}}|{{combatTargets:attack}}|{{combatResult}}")
	if want := "战斗描述|轮到你行动|目标:attack|造成10点伤害"; got != want {
		t.Errorf("combat render = %q, want %q", got, want)
	}
}

func TestRenderUnknownCharacter(t *testing.T) {
	store, chars := newTestChars(t)
	tr := NewTextRenderer(chars, nil)
	store.Set(tags.PlayerID, TagInteractTarget, models.String("nobody"))
	if got := tr.Render("[{{charName}}][{{combatResult}}]"); got != "[][]" {
		t.Errorf("Render = %q", got)
	}
}
