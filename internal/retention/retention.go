// Package retention trims the durable chat history so each room keeps only its
// newest messages.
package retention

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/manpreetbhatti/huddle/internal/db"
)

const pageSize = 1000

type Config struct {
	Interval time.Duration
	// Keep is the number of newest messages retained per room.
	Keep int
	// Timeout bounds one full pass over the room directory.
	Timeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Interval: 10 * time.Minute,
		Keep:     5000,
		Timeout:  time.Minute,
	}
}

type Store interface {
	ListRooms(ctx context.Context, limit, offset int) ([]db.Room, error)
	PruneMessages(ctx context.Context, room string, keep int) (int, error)
}

type Service struct {
	store  Store
	config Config
	log    *slog.Logger

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func New(store Store, log *slog.Logger, config Config) *Service {
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	return &Service{
		store:  store,
		config: config,
		log:    log,
		stop:   make(chan struct{}),
	}
}

// Start runs a pass immediately and then once per interval until Stop.
func (s *Service) Start() {
	s.wg.Add(1)
	go s.run()
	s.log.Info("Retention service started", "interval", s.config.Interval, "keep", s.config.Keep)
}

func (s *Service) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.wg.Wait()
	s.log.Info("Retention service stopped")
}

func (s *Service) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.pass()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.pass()
		}
	}
}

func (s *Service) pass() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Timeout)
	defer cancel()
	go func() {
		select {
		case <-s.stop:
			cancel()
		case <-ctx.Done():
		}
	}()
	s.PruneAll(ctx)
}

// PruneAll walks the room directory page by page and prunes every room. It
// returns the total number of deleted messages.
func (s *Service) PruneAll(ctx context.Context) int {
	deleted, pruned := 0, 0
	for offset := 0; ; offset += pageSize {
		rooms, err := s.store.ListRooms(ctx, pageSize, offset)
		if err != nil {
			s.log.Error("Retention: failed to list rooms", "error", err)
			break
		}
		for _, room := range rooms {
			n, err := s.PruneNow(ctx, room.ID)
			if err != nil {
				s.log.Error("Retention: prune failed", "room", room.ID, "error", err)
				continue
			}
			if n > 0 {
				deleted += n
				pruned++
			}
		}
		if len(rooms) < pageSize || ctx.Err() != nil {
			break
		}
	}
	if pruned > 0 {
		s.log.Info("Pruned chat history", "rooms", pruned, "messages", deleted)
	}
	return deleted
}

func (s *Service) PruneNow(ctx context.Context, roomID string) (int, error) {
	n, err := s.store.PruneMessages(ctx, roomID, s.config.Keep)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Debug("Pruned room", "room", roomID, "deleted", n, "kept", s.config.Keep)
	}
	return n, nil
}
