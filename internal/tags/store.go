package tags

import (
	"log"
	"sort"

	"github.com/aiwuxian/apocalypse/internal/models"
)

// PlayerID 玩家角色ID
const PlayerID = "player"

// Change 一次标签变更
type Change struct {
	CharacterID string          `json:"characterId"`
	Path        string          `json:"path"`
	Old         models.TagValue `json:"old"`
	New         models.TagValue `json:"new"`
	Deleted     bool            `json:"deleted,omitempty"`
}

type node struct {
	leaf     bool
	value    models.TagValue
	children map[string]*node
}

func newBranch() *node {
	return &node{children: make(map[string]*node)}
}

type observer struct {
	id int
	fn func(Change)
}

// Store 每个角色一棵标签树。非并发安全，由会话串行访问。
type Store struct {
	trees     map[string]*node
	observers []observer
	nextID    int
}

func New() *Store {
	return &Store{trees: make(map[string]*node)}
}

// Init 用给定标签整体替换角色的标签树
func (s *Store) Init(characterID string, tags map[string]any) {
	root := newBranch()
	fill(root, tags)
	s.trees[characterID] = root
}

func fill(n *node, m map[string]any) {
	for k, v := range m {
		if k == "" {
			continue
		}
		if sub, ok := v.(map[string]any); ok {
			child := newBranch()
			fill(child, sub)
			n.children[k] = child
			continue
		}
		if v == nil {
			continue
		}
		tv, ok := models.ValueOf(v)
		if !ok {
			log.Printf("⚠️ [标签] 忽略不支持的值 %s: %v", k, v)
			continue
		}
		n.children[k] = &node{leaf: true, value: tv}
	}
}

// Has 角色是否已有标签树
func (s *Store) Has(characterID string) bool {
	_, ok := s.trees[characterID]
	return ok
}

// Characters 所有拥有标签树的角色ID（排序）
func (s *Store) Characters() []string {
	ids := make([]string, 0, len(s.trees))
	for id := range s.trees {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Get 读取叶子值；路径不存在或指向子树时返回空值
func (s *Store) Get(characterID, path string) models.TagValue {
	return s.GetPath(characterID, ParsePath(path))
}

func (s *Store) GetPath(characterID string, p Path) models.TagValue {
	n := s.lookup(characterID, p)
	if n == nil || !n.leaf {
		return models.Empty()
	}
	return n.value
}

func (s *Store) lookup(characterID string, p Path) *node {
	n, ok := s.trees[characterID]
	if !ok {
		return nil
	}
	for _, seg := range p.Segments() {
		if n.leaf {
			return nil
		}
		child, ok := n.children[seg]
		if !ok {
			return nil
		}
		n = child
	}
	return n
}

// Set 写入标签：数字叠加到已有数字上，其余情况替换；
// 写入 "empty" 删除该路径；中间节点自动创建。
func (s *Store) Set(characterID, path string, v models.TagValue) {
	s.SetPath(characterID, ParsePath(path), v)
}

func (s *Store) SetPath(characterID string, p Path, v models.TagValue) {
	if p.IsZero() {
		return
	}
	if v.IsDeleteSentinel() {
		s.DeletePath(characterID, p)
		return
	}

	root, ok := s.trees[characterID]
	if !ok {
		root = newBranch()
		s.trees[characterID] = root
	}

	parent := root
	for _, seg := range p.Parent().Segments() {
		child, ok := parent.children[seg]
		if !ok || child.leaf {
			if ok {
				log.Printf("⚠️ [标签] %s 的 %s 原为叶子，替换为子树", characterID, seg)
			}
			child = newBranch()
			parent.children[seg] = child
		}
		parent = child
	}

	last := p.Last()
	old := models.Empty()
	next := v
	if existing, ok := parent.children[last]; ok && existing.leaf {
		old = existing.value
		if old.IsNum && v.IsNum {
			next = models.Number(old.Num + v.Num)
		}
	}
	parent.children[last] = &node{leaf: true, value: next}

	s.notify(Change{CharacterID: characterID, Path: p.String(), Old: old, New: next})
}

// Delete 删除路径（叶子或子树）
func (s *Store) Delete(characterID, path string) {
	s.DeletePath(characterID, ParsePath(path))
}

func (s *Store) DeletePath(characterID string, p Path) {
	if p.IsZero() {
		return
	}
	parent := s.lookup(characterID, p.Parent())
	if parent == nil || parent.leaf {
		return
	}
	existing, ok := parent.children[p.Last()]
	if !ok {
		return
	}
	delete(parent.children, p.Last())

	old := models.Empty()
	if existing.leaf {
		old = existing.value
	}
	s.notify(Change{CharacterID: characterID, Path: p.String(), Old: old, Deleted: true})
}

// Children 子树下的直接子节点名（排序）
func (s *Store) Children(characterID, path string) []string {
	n := s.lookup(characterID, ParsePath(path))
	if n == nil || n.leaf {
		return nil
	}
	keys := make([]string, 0, len(n.children))
	for k := range n.children {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Subtree 子树的副本；路径为空时返回整棵树
func (s *Store) Subtree(characterID, path string) map[string]any {
	n := s.lookup(characterID, ParsePath(path))
	if n == nil || n.leaf {
		return nil
	}
	return dump(n)
}

func dump(n *node) map[string]any {
	out := make(map[string]any, len(n.children))
	for k, child := range n.children {
		if child.leaf {
			out[k] = child.value.Any()
		} else {
			out[k] = dump(child)
		}
	}
	return out
}

// Leaf 遍历得到的叶子
type Leaf struct {
	Path  Path
	Value models.TagValue
}

// Leaves 按字典序列出子树下所有叶子，路径相对于子树根
func (s *Store) Leaves(characterID, path string) []Leaf {
	n := s.lookup(characterID, ParsePath(path))
	if n == nil || n.leaf {
		return nil
	}
	var out []Leaf
	collect(n, Path{}, &out)
	return out
}

func collect(n *node, prefix Path, out *[]Leaf) {
	keys := make([]string, 0, len(n.children))
	for k := range n.children {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		child := n.children[k]
		p := prefix.Join(Path{segs: []string{k}})
		if child.leaf {
			*out = append(*out, Leaf{Path: p, Value: child.value})
			continue
		}
		collect(child, p, out)
	}
}

// Snapshot 单个角色标签树的副本
func (s *Store) Snapshot(characterID string) map[string]any {
	return s.Subtree(characterID, "")
}

// SnapshotAll 所有角色标签树的副本
func (s *Store) SnapshotAll() map[string]map[string]any {
	out := make(map[string]map[string]any, len(s.trees))
	for id, root := range s.trees {
		out[id] = dump(root)
	}
	return out
}

// Restore 整体替换所有标签树
func (s *Store) Restore(all map[string]map[string]any) {
	s.trees = make(map[string]*node, len(all))
	for id, tree := range all {
		s.Init(id, tree)
	}
}

// Subscribe 注册变更回调，返回取消函数
func (s *Store) Subscribe(fn func(Change)) func() {
	s.nextID++
	id := s.nextID
	s.observers = append(s.observers, observer{id: id, fn: fn})
	return func() {
		for i, o := range s.observers {
			if o.id == id {
				s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
				return
			}
		}
	}
}

func (s *Store) notify(c Change) {
	for _, o := range s.observers {
		o.fn(c)
	}
}
