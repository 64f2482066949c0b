package tags

import (
	"reflect"
	"testing"

	"github.com/aiwuxian/apocalypse/internal/models"
)

func newPlayerStore() *Store {
	s := New()
	s.Init(PlayerID, map[string]any{
		"状态": map[string]any{"生命值": 100.0, "精力": 80.0},
		"位置": map[string]any{"当前地点": "复苏队基地"},
	})
	return s
}

func TestStoreGet(t *testing.T) {
	s := newPlayerStore()

	tests := []struct {
		name string
		path string
		want models.TagValue
	}{
		{name: "number leaf", path: "状态.生命值", want: models.Number(100)},
		{name: "string leaf", path: "位置.当前地点", want: models.String("复苏队基地")},
		{name: "missing leaf", path: "状态.快乐", want: models.Empty()},
		{name: "missing branch", path: "物品.绷带", want: models.Empty()},
		{name: "through a leaf", path: "状态.生命值.上限", want: models.Empty()},
		{name: "subtree is not a leaf", path: "状态", want: models.Empty()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.Get(PlayerID, tt.path); got != tt.want {
				t.Fatalf("Get(%q) = %#v, want %#v", tt.path, got, tt.want)
			}
		})
	}

	if got := s.Get("nobody", "状态.生命值"); !got.IsEmpty() {
		t.Fatalf("unknown character should read empty, got %#v", got)
	}
}

func TestStoreSetSemantics(t *testing.T) {
	tests := []struct {
		name  string
		path  string
		value models.TagValue
		want  models.TagValue
	}{
		{name: "numeric adds", path: "状态.生命值", value: models.Number(-30), want: models.Number(70)},
		{name: "string replaces number", path: "状态.生命值", value: models.String("垂危"), want: models.String("垂危")},
		{name: "number replaces string", path: "位置.当前地点", value: models.Number(3), want: models.Number(3)},
		{name: "creates intermediates", path: "物品.药品.绷带", value: models.Number(2), want: models.Number(2)},
		{name: "string over string", path: "位置.当前地点", value: models.String("荒原"), want: models.String("荒原")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newPlayerStore()
			s.Set(PlayerID, tt.path, tt.value)
			if got := s.Get(PlayerID, tt.path); got != tt.want {
				t.Fatalf("after Set(%q, %v) got %#v, want %#v", tt.path, tt.value, got, tt.want)
			}
		})
	}
}

func TestStoreSetEmptyDeletes(t *testing.T) {
	s := newPlayerStore()
	s.Set(PlayerID, "状态.精力", models.String(models.EmptySentinel))

	if got := s.Get(PlayerID, "状态.精力"); !got.IsEmpty() {
		t.Fatalf("expected 状态.精力 deleted, got %#v", got)
	}
	if _, ok := s.Subtree(PlayerID, "状态")["精力"]; ok {
		t.Fatalf("deleted key still present in subtree")
	}

	// 删除不存在的路径不创建中间节点
	s.Set(PlayerID, "战斗.选择.目标", models.String(models.EmptySentinel))
	if s.Subtree(PlayerID, "战斗") != nil {
		t.Fatalf("delete of missing path created a subtree")
	}
}

func TestStoreSetThroughLeafReplacesIt(t *testing.T) {
	s := newPlayerStore()
	s.Set(PlayerID, "状态.生命值.上限", models.Number(120))

	if got := s.Get(PlayerID, "状态.生命值.上限"); got != models.Number(120) {
		t.Fatalf("got %#v", got)
	}
	if got := s.Get(PlayerID, "状态.生命值"); !got.IsEmpty() {
		t.Fatalf("former leaf should now be a subtree, got %#v", got)
	}
}

func TestStoreSetUnknownCharacterCreatesTree(t *testing.T) {
	s := New()
	s.Set("suYuQing", "状态.生命值", models.Number(5))
	if !s.Has("suYuQing") {
		t.Fatalf("expected tree to be created")
	}
	if got := s.Get("suYuQing", "状态.生命值"); got != models.Number(5) {
		t.Fatalf("got %#v", got)
	}
}

func TestStoreLeavesSorted(t *testing.T) {
	s := New()
	s.Init(PlayerID, map[string]any{
		"变化": map[string]any{
			"状态": map[string]any{"精力": -2.0, "快乐": -1.0},
			"标记": "x",
		},
	})

	var got []string
	for _, leaf := range s.Leaves(PlayerID, "变化") {
		got = append(got, leaf.Path.String()+"="+leaf.Value.String())
	}
	want := []string{"标记=x", "状态.快乐=-1", "状态.精力=-2"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Leaves = %v, want %v", got, want)
	}
	if s.Leaves(PlayerID, "不存在") != nil {
		t.Fatalf("missing subtree should have no leaves")
	}
}

func TestStoreSnapshotRestore(t *testing.T) {
	s := newPlayerStore()
	s.Set("npc", "位置.当前地点", models.String("荒原"))

	snap := s.SnapshotAll()
	s.Set(PlayerID, "状态.生命值", models.Number(-100))
	s.Restore(snap)

	if got := s.Get(PlayerID, "状态.生命值"); got != models.Number(100) {
		t.Fatalf("restore did not roll back, got %#v", got)
	}
	if got := s.Get("npc", "位置.当前地点"); got != models.String("荒原") {
		t.Fatalf("npc tree lost, got %#v", got)
	}

	// 快照是副本
	snap[PlayerID]["状态"].(map[string]any)["生命值"] = 1.0
	if got := s.Get(PlayerID, "状态.生命值"); got != models.Number(100) {
		t.Fatalf("snapshot aliases store, got %#v", got)
	}
}

func TestStoreSubscribe(t *testing.T) {
	s := newPlayerStore()

	var changes []Change
	cancel := s.Subscribe(func(c Change) { changes = append(changes, c) })

	s.Set(PlayerID, "状态.精力", models.Number(-5))
	s.Delete(PlayerID, "位置.当前地点")
	s.Delete(PlayerID, "位置.不存在")

	if len(changes) != 2 {
		t.Fatalf("expected 2 changes, got %d: %#v", len(changes), changes)
	}
	if changes[0].Old != models.Number(80) || changes[0].New != models.Number(75) {
		t.Fatalf("unexpected change: %#v", changes[0])
	}
	if !changes[1].Deleted || changes[1].Path != "位置.当前地点" {
		t.Fatalf("unexpected delete change: %#v", changes[1])
	}

	cancel()
	s.Set(PlayerID, "状态.精力", models.Number(1))
	if len(changes) != 2 {
		t.Fatalf("observer still called after cancel")
	}
}

func TestParsePath(t *testing.T) {
	p := ParsePath("状态..生命值.")
	if got := p.String(); got != "状态.生命值" {
		t.Fatalf("String() = %q", got)
	}
	if p.Last() != "生命值" || p.Parent().String() != "状态" {
		t.Fatalf("unexpected Last/Parent: %q %q", p.Last(), p.Parent().String())
	}
	if !ParsePath("").IsZero() {
		t.Fatalf("empty path should be zero")
	}
}
