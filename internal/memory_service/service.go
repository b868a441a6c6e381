// Package memory_service remembers what callers tell the bot about a lead
// across sessions. Facts for one lead live in a single memory_context row.
package memory_service //nolint:revive // var-naming: using underscores for domain clarity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lewisedginton/sdr_chatbot/internal/store"
	"github.com/lewisedginton/sdr_chatbot/pkg/logger"
)

// DefaultImportance is stored with every lead row unless configured.
const DefaultImportance = 0.5

const keyPrefix = "lead:"

// Store is the part of the conversation store the service uses.
type Store interface {
	UpsertMemory(ctx context.Context, key, value string, importance float64) error
	GetMemory(ctx context.Context, key string) (store.MemoryEntry, error)
}

// LeadMemory is everything remembered about one lead.
type LeadMemory struct {
	LeadID    string            `json:"lead_id"`
	Facts     map[string]string `json:"facts"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Fact is one remembered key and value.
type Fact struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Service reads and merges lead memory.
type Service struct {
	store      Store
	importance float64
	log        logger.Logger
	now        func() time.Time

	leadLocks   map[string]*sync.Mutex
	leadLockMux sync.Mutex
}

// Config holds configuration for the memory service.
type Config struct {
	Store      Store
	Logger     logger.Logger
	Importance float64
}

// New creates a memory service with the given configuration.
func New(cfg Config) *Service {
	if cfg.Store == nil {
		panic("store cannot be nil")
	}
	if cfg.Logger == nil {
		panic("logger cannot be nil")
	}
	if cfg.Importance == 0 {
		cfg.Importance = DefaultImportance
	}
	return &Service{
		store:      cfg.Store,
		importance: cfg.Importance,
		log:        cfg.Logger,
		now:        time.Now,
		leadLocks:  make(map[string]*sync.Mutex),
	}
}

// Remember merges facts into the lead's memory. Later values win. Values
// that are not strings are stored in their fmt form.
func (s *Service) Remember(ctx context.Context, leadID string, facts map[string]any) error {
	leadID = strings.TrimSpace(leadID)
	if leadID == "" || len(facts) == 0 {
		return nil
	}

	lock := s.getLeadLock(leadID)
	lock.Lock()
	defer lock.Unlock()

	mem, err := s.load(ctx, leadID)
	if err != nil {
		return err
	}
	for k, v := range facts {
		switch val := v.(type) {
		case string:
			mem.Facts[k] = val
		case nil:
			delete(mem.Facts, k)
		default:
			mem.Facts[k] = fmt.Sprint(val)
		}
	}
	mem.UpdatedAt = s.now()

	data, err := json.Marshal(mem)
	if err != nil {
		return fmt.Errorf("failed to encode lead memory: %w", err)
	}
	if err := s.store.UpsertMemory(ctx, keyPrefix+leadID, string(data), s.importance); err != nil {
		return err
	}

	s.log.Debug("Lead memory updated",
		logger.StringField("lead_id", leadID),
		logger.IntField("facts", len(mem.Facts)))
	return nil
}

// Recall returns the lead's memory. An unknown lead has no facts.
func (s *Service) Recall(ctx context.Context, leadID string) (LeadMemory, error) {
	return s.load(ctx, strings.TrimSpace(leadID))
}

// Search returns the lead's facts whose key or value shares a word with
// query, ordered by key.
func (s *Service) Search(ctx context.Context, leadID, query string) ([]Fact, error) {
	queryWords := extractWords(query)
	if len(queryWords) == 0 {
		return nil, nil
	}
	mem, err := s.Recall(ctx, leadID)
	if err != nil {
		return nil, err
	}

	var out []Fact
	for k, v := range mem.Facts {
		if intersects(queryWords, extractWords(k+" "+v)) {
			out = append(out, Fact{Key: k, Value: v})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *Service) load(ctx context.Context, leadID string) (LeadMemory, error) {
	mem := LeadMemory{LeadID: leadID, Facts: map[string]string{}}
	if leadID == "" {
		return mem, nil
	}
	entry, err := s.store.GetMemory(ctx, keyPrefix+leadID)
	if errors.Is(err, store.ErrNotFound) {
		return mem, nil
	}
	if err != nil {
		return mem, err
	}
	if err := json.Unmarshal([]byte(entry.Value), &mem); err != nil {
		return LeadMemory{LeadID: leadID, Facts: map[string]string{}}, fmt.Errorf("failed to decode lead memory: %w", err)
	}
	if mem.Facts == nil {
		mem.Facts = map[string]string{}
	}
	return mem, nil
}

// getLeadLock returns the lock serialising read-merge-write for one lead.
func (s *Service) getLeadLock(leadID string) *sync.Mutex {
	s.leadLockMux.Lock()
	defer s.leadLockMux.Unlock()

	if lock, exists := s.leadLocks[leadID]; exists {
		return lock
	}
	lock := &sync.Mutex{}
	s.leadLocks[leadID] = lock
	return lock
}
