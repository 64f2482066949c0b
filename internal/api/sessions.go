package api

import (
	"errors"
	"log"
	"sync"

	"github.com/aiwuxian/apocalypse/internal/services"
)

var ErrSessionNotFound = errors.New("会话不存在")

// session 一局游戏；同一会话的请求串行执行
type session struct {
	mu    sync.Mutex
	owner string
	game  *services.Game
}

// Sessions 内存中的会话表
type Sessions struct {
	mu       sync.RWMutex
	sessions map[string]*session
}

func NewSessions() *Sessions {
	return &Sessions{sessions: make(map[string]*session)}
}

func (s *Sessions) Add(owner string, game *services.Game) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[game.ID] = &session{owner: owner, game: game}
	log.Printf("🎮 [会话] 创建 %s（%s）", game.ID, owner)
}

func (s *Sessions) get(id string) (*session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// With 在会话锁内执行 fn
func (s *Sessions) With(id string, fn func(owner string, g *services.Game) error) error {
	sess, err := s.get(id)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return fn(sess.owner, sess.game)
}

// Remove 删除并关闭会话
func (s *Sessions) Remove(id string) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	sess.game.Close()
	log.Printf("🎮 [会话] 关闭 %s", id)
	return nil
}

// CloseAll 关闭所有会话
func (s *Sessions) CloseAll() {
	s.mu.Lock()
	all := s.sessions
	s.sessions = make(map[string]*session)
	s.mu.Unlock()
	for _, sess := range all {
		sess.mu.Lock()
		sess.game.Close()
		sess.mu.Unlock()
	}
}

// Len 会话数量
func (s *Sessions) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
