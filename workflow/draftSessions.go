package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/medequip/equipment_backend/config"
	"github.com/medequip/equipment_backend/draft"
	"github.com/medequip/equipment_backend/models"
	"github.com/sirupsen/logrus"
)

var ErrSaveInProgress = errors.New("another save of this draft is in progress")

const saveLockTTL = 60 * time.Second

// DraftSessions keeps one draft engine per user and plan in a bounded LRU.
// Evicted engines lose nothing: a dirty working copy lives in the store
// and is restored by the next Fetch.
type DraftSessions struct {
	mu       sync.Mutex
	engines  *lru.Cache[string, *MaintenanceDraft]
	backend  draft.Backend[models.MaintenanceTask]
	storeFor func(username string) draft.Store
	locker   func() *redislock.Client
	logger   *logrus.Logger
}

func NewDraftSessions(size int, backend draft.Backend[models.MaintenanceTask], storeFor func(username string) draft.Store) (*DraftSessions, error) {
	if size <= 0 {
		size = 1024
	}
	engines, err := lru.New[string, *MaintenanceDraft](size)
	if err != nil {
		return nil, err
	}
	return &DraftSessions{
		engines:  engines,
		backend:  backend,
		storeFor: storeFor,
		locker:   config.GetRedisLock,
		logger:   config.GetLogger(),
	}, nil
}

// NewRedisDraftSessions stores working copies in redis per user.
func NewRedisDraftSessions(cfg config.AppConfig, backend draft.Backend[models.MaintenanceTask]) (*DraftSessions, error) {
	return NewDraftSessions(cfg.DraftSessionSize, backend, func(username string) draft.Store {
		return NewRedisStore(username, cfg.DraftCacheTTL)
	})
}

func sessionKey(username string, planId int64) string {
	return fmt.Sprintf("%s:%d", username, planId)
}

// Engine returns the user's engine for the plan, creating it when needed.
func (s *DraftSessions) Engine(username string, planId int64) *MaintenanceDraft {
	key := sessionKey(username, planId)

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.engines.Get(key); ok {
		return e
	}
	e := draft.NewEngine[models.MaintenanceTask](s.backend, s.storeFor(username), draft.Options{
		Logger:   s.logger,
		Notifier: s.notifier(username),
	})
	s.engines.Add(key, e)
	return e
}

func (s *DraftSessions) Forget(username string, planId int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engines.Remove(sessionKey(username, planId))
}

func (s *DraftSessions) Len() int {
	return s.engines.Len()
}

// Save submits the user's draft of the plan while holding a redis lock on
// it, so two instances never submit the same working copy twice.
func (s *DraftSessions) Save(ctx context.Context, username string, planId int64) (draft.SaveResult, error) {
	engine := s.Engine(username, planId)

	locker := s.locker()
	if locker == nil {
		s.logger.WithFields(logrus.Fields{
			"field":    "DraftSessions.Save",
			"username": username,
			"plan_id":  planId,
		}).Warn("redis lock not ready; saving without lock")
		return engine.Save(ctx)
	}

	lock, err := locker.Obtain(ctx, "lock:draft:"+sessionKey(username, planId), saveLockTTL, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return draft.SaveResult{}, ErrSaveInProgress
	} else if err != nil {
		config.LogError(s.logger, "workflow", "DraftSessions.Save", "Obtain lock", sessionKey(username, planId), err)
		return draft.SaveResult{}, err
	}
	defer func() {
		if releaseErr := lock.Release(ctx); releaseErr != nil {
			config.LogError(s.logger, "workflow", "DraftSessions.Save", "Release lock", sessionKey(username, planId), releaseErr)
		}
	}()

	return engine.Save(ctx)
}

func (s *DraftSessions) notifier(username string) draft.Notifier {
	return func(e draft.Event) {
		s.logger.WithFields(logrus.Fields{
			"field":    "draft",
			"event":    string(e.Kind),
			"scope":    e.Scope,
			"username": username,
		}).Info("maintenance draft event")
	}
}
