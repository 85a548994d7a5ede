package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"github.com/jerhadf/voice-computer-use/bridge"
	"github.com/jerhadf/voice-computer-use/config"
)

const (
	activeSessionsKey = "active_sessions"
	redisTimeout      = 2 * time.Second
)

// ErrTooManySessions is returned when MaxSessions hosts are already attached.
var ErrTooManySessions = errors.New("maximum sessions reached")

// Manager manages all host sessions
type Manager struct {
	sessions map[string]*HostSession
	mu       sync.RWMutex
	redis    *redis.Client
	config   *config.Config
	newVoice VoiceFactory
}

// NewManager creates a session manager with Redis connection
func NewManager(cfg *config.Config, newVoice VoiceFactory) (*Manager, error) {
	if newVoice == nil {
		return nil, fmt.Errorf("voice factory is required")
	}

	// Try to connect to Redis, but don't fail if unavailable
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisURL,
			Password: cfg.RedisPassword,
			DB:       0,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Printf("⚠️ Redis unavailable, session metadata disabled: %v", err)
			redisClient.Close()
			redisClient = nil
		}
	}

	return newManager(cfg, newVoice, redisClient), nil
}

func newManager(cfg *config.Config, newVoice VoiceFactory, redisClient *redis.Client) *Manager {
	return &Manager{
		sessions: make(map[string]*HostSession),
		redis:    redisClient,
		config:   cfg,
		newVoice: newVoice,
	}
}

func sessionKey(id string) string { return "session:" + id }

// CreateSession creates a new host session
func (sm *Manager) CreateSession(ctx context.Context, clientConn *websocket.Conn) (*HostSession, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if len(sm.sessions) >= sm.config.MaxSessions {
		return nil, ErrTooManySessions
	}

	sessionID := uuid.New().String()
	session := NewHostSession(sessionID, clientConn, Options{
		NewVoice: sm.newVoice,
		Bridge: []bridge.Option{
			bridge.WithEchoToken(sm.config.ClearAudioEcho),
			bridge.WithMailboxSize(sm.config.MailboxSize),
		},
		KeepAlive:  sm.config.KeepAlivePeriod,
		OnSnapshot: sm.recordSnapshot,
	})

	sm.storeSession(ctx, sessionID, session)
	return session, nil
}

// storeSession saves a session to memory and Redis
func (sm *Manager) storeSession(ctx context.Context, sessionID string, session *HostSession) {
	sm.sessions[sessionID] = session

	if sm.redis != nil {
		sm.redis.HSet(ctx, sessionKey(sessionID), map[string]interface{}{
			"created_at":    session.CreatedAt.Format(time.RFC3339),
			"last_activity": session.LastActivity.Format(time.RFC3339),
			"status":        "active",
			"backend":       sm.config.VoiceBackend,
		})
		sm.redis.SAdd(ctx, activeSessionsKey, sessionID)
		sm.redis.Expire(ctx, sessionKey(sessionID), sm.config.SessionTimeout)
	}
}

// recordSnapshot mirrors the latest published state into Redis. It runs on
// the bridge goroutine, so the write happens in the background.
func (sm *Manager) recordSnapshot(id string, snap Snapshot) {
	if sm.redis == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
		defer cancel()
		key := sessionKey(id)
		pipe := sm.redis.TxPipeline()
		pipe.HSet(ctx, key, map[string]interface{}{
			"command_cursor": snap.CommandCursor,
			"event_cursor":   snap.EventCursor,
			"events":         snap.Events,
			"is_muted":       snap.IsMuted,
			"is_connected":   snap.IsConnected,
			"last_activity":  time.Now().Format(time.RFC3339),
		})
		pipe.Expire(ctx, key, sm.config.SessionTimeout)
		if _, err := pipe.Exec(ctx); err != nil {
			log.Printf("⚠️ [%s] Failed to record snapshot: %v", shortID(id), err)
		}
	}()
}

// GetSession retrieves a session by ID
func (sm *Manager) GetSession(sessionID string) (*HostSession, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	session, exists := sm.sessions[sessionID]
	return session, exists
}

// RemoveSession cleans up and removes a session
func (sm *Manager) RemoveSession(ctx context.Context, sessionID string) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	session, exists := sm.sessions[sessionID]
	if !exists {
		return nil
	}

	session.Close()
	delete(sm.sessions, sessionID)
	sm.forget(ctx, sessionID)
	return nil
}

func (sm *Manager) forget(ctx context.Context, sessionID string) {
	if sm.redis != nil {
		sm.redis.Del(ctx, sessionKey(sessionID))
		sm.redis.SRem(ctx, activeSessionsKey, sessionID)
	}
}

// GetActiveSessionCount returns current session count
func (sm *Manager) GetActiveSessionCount() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// CleanupInactiveSessions removes sessions that have been inactive
func (sm *Manager) CleanupInactiveSessions(ctx context.Context) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	now := time.Now()
	for id, session := range sm.sessions {
		session.mu.RLock()
		idle := now.Sub(session.LastActivity)
		session.mu.RUnlock()
		if idle > sm.config.SessionTimeout {
			log.Printf("🧹 [%s] Closing idle session", shortID(id))
			session.Close()
			delete(sm.sessions, id)
			sm.forget(ctx, id)
		}
	}
}

// StartCleanupRoutine starts periodic cleanup of inactive sessions
func (sm *Manager) StartCleanupRoutine(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sm.CleanupInactiveSessions(ctx)
		}
	}
}

// Shutdown closes all sessions
func (sm *Manager) Shutdown() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	for id, session := range sm.sessions {
		session.Close()
		delete(sm.sessions, id)
		sm.forget(context.Background(), id)
	}

	if sm.redis != nil {
		sm.redis.Close()
	}
}
