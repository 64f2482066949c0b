package services

import (
	"testing"

	"github.com/aiwuxian/apocalypse/internal/tags"
)

func TestParseEffect(t *testing.T) {
	tests := []struct {
		raw     string
		char    string
		path    string
		op      EffectOp
		value   string
		wantErr bool
	}{
		{raw: "状态.生命值.10", char: tags.PlayerID, path: "状态.生命值", op: EffectAdd, value: "10"},
		{raw: "状态.生命值.-5", char: tags.PlayerID, path: "状态.生命值", op: EffectAdd, value: "-5"},
		{raw: "位置.目标地点.荒原", char: tags.PlayerID, path: "位置.目标地点", op: EffectSet, value: "荒原"},
		{raw: "目标.交互角色.empty", char: tags.PlayerID, path: "目标.交互角色", op: EffectDelete},
		{raw: "NPC.suYuQing.状态.生命值.-20", char: "suYuQing", path: "状态.生命值", op: EffectAdd, value: "-20"},
		{raw: "NPC.suYuQing.目标.empty", char: "suYuQing", path: "目标", op: EffectDelete},
		{raw: "没有点", wantErr: true},
		{raw: ".10", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			e, err := ParseEffect(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseEffect(%q) expected error, got %+v", tt.raw, e)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseEffect(%q): %v", tt.raw, err)
			}
			if e.CharacterID != tt.char || e.Path.String() != tt.path || e.Op != tt.op {
				t.Errorf("ParseEffect(%q) = %s %s %s", tt.raw, e.CharacterID, e.Path, e.Op)
			}
			if tt.op != EffectDelete && e.Value.String() != tt.value {
				t.Errorf("value = %s, want %s", e.Value, tt.value)
			}
		})
	}
}

func TestApplyEffects(t *testing.T) {
	store, _ := newTestChars(t)
	es := NewEffectService(store)

	n := es.ApplyAll([]string{
		"状态.生命值.-30",
		"状态.快乐.5",
		"技能.数学.100",
		"位置.目标地点.荒原",
		"",
		"无法解析",
		"NPC.suYuQing.状态.生命值.-80",
	})
	if n != 5 {
		t.Errorf("ApplyAll applied %d, want 5", n)
	}

	checks := map[string]string{
		"状态.生命值":  "70",
		"状态.快乐":   "55",
		"技能.数学":   "100",
		"位置.目标地点": "荒原",
	}
	for path, want := range checks {
		if got := store.Get(tags.PlayerID, path).String(); got != want {
			t.Errorf("%s = %s, want %s", path, got, want)
		}
	}
	if got := store.Get("suYuQing", "状态.生命值").String(); got != "0" {
		t.Errorf("suYuQing 生命值 = %s, want 0", got)
	}

	// 字符串效果替换数字
	es.Apply("状态.快乐.低落")
	if got := store.Get(tags.PlayerID, "状态.快乐").String(); got != "低落" {
		t.Errorf("快乐 = %s, want 低落", got)
	}

	es.Apply("位置.目标地点.empty")
	if v := store.Get(tags.PlayerID, "位置.目标地点"); !v.IsEmpty() {
		t.Errorf("目标地点 should be deleted, got %v", v)
	}
}

func TestApplyDeltas(t *testing.T) {
	store, _ := newTestChars(t)
	es := NewEffectService(store)

	deltas := map[string]float64{"属性.感知": 2, "NPC.suYuQing.状态.生命值": -10}
	es.ApplyDeltas(deltas, 1)
	if got := store.Get(tags.PlayerID, "属性.感知").String(); got != "2" {
		t.Errorf("感知 = %s, want 2", got)
	}
	if got := store.Get("suYuQing", "状态.生命值").String(); got != "70" {
		t.Errorf("suYuQing 生命值 = %s, want 70", got)
	}

	es.ApplyDeltas(deltas, -1)
	if got := store.Get(tags.PlayerID, "属性.感知").String(); got != "0" {
		t.Errorf("感知 after revert = %s, want 0", got)
	}
}
