package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-geochat-backend/internal/auth"
	"github.com/tbourn/go-geochat-backend/internal/domain"
	"github.com/tbourn/go-geochat-backend/internal/repo"
	"github.com/tbourn/go-geochat-backend/internal/store"
)

// ---------- test helpers ----------

func newSvcDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

// capturePublisher records routing keys of published events.
type capturePublisher struct {
	mu   sync.Mutex
	keys []string
}

func (c *capturePublisher) Publish(_ context.Context, key string, _ any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys = append(c.keys, key)
	return nil
}

func (c *capturePublisher) Close() error { return nil }

func (c *capturePublisher) count(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, k := range c.keys {
		if k == key {
			n++
		}
	}
	return n
}

// testEnv bundles every service over one database and one set of stores.
type testEnv struct {
	db       *gorm.DB
	sessions *store.SessionStore
	invites  *store.InvitationStore
	pub      *capturePublisher

	auth   *AuthService
	users  *UserService
	chats  *ChatService
	invs   *InvitationService
	blocks *BlockService
	poll   *PollService
}

func newEnv(t *testing.T) *testEnv {
	return newEnvTTL(t, 24*time.Hour)
}

func newEnvTTL(t *testing.T, ttl time.Duration) *testEnv {
	t.Helper()
	db := newSvcDB(t)
	pub := &capturePublisher{}
	sessions := store.NewSessionStore(store.NewTiered("sessions", store.NewMemoryBackend()))
	invites := store.NewInvitationStore(store.NewTiered("invitations", store.NewMemoryBackend()), ttl)
	hasher := auth.BcryptHasher{Cost: bcrypt.MinCost}

	return &testEnv{
		db:       db,
		sessions: sessions,
		invites:  invites,
		pub:      pub,
		auth:     NewAuthService(db, sessions, hasher, pub),
		users:    NewUserService(db, sessions, hasher, pub),
		chats:    NewChatService(db, pub),
		invs:     NewInvitationService(db, invites, pub),
		blocks:   NewBlockService(db, pub),
		poll:     NewPollService(db),
	}
}

// register creates a user at (lat, lon) and returns it with its session token.
func (e *testEnv) register(t *testing.T, name string, lat, lon float64) (*domain.User, string) {
	t.Helper()
	u, tok, err := e.auth.Register(context.Background(), RegisterInput{
		Email:     name + "@x.com",
		Username:  name,
		Password:  "secret-" + name,
		Latitude:  lat,
		Longitude: lon,
	})
	if err != nil {
		t.Fatalf("register %s: %v", name, err)
	}
	return u, tok
}

func (e *testEnv) makeAdmin(t *testing.T, u *domain.User) {
	t.Helper()
	u.Roles = []string{domain.RoleUser, domain.RoleAdmin}
	if err := e.db.Save(u).Error; err != nil {
		t.Fatalf("make admin: %v", err)
	}
}
