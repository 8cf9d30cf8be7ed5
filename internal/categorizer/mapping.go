package categorizer

import (
	"sync"

	"fjacquet/mail-ledger/internal/logging"
	"fjacquet/mail-ledger/internal/models"
	"fjacquet/mail-ledger/internal/store"
	"fjacquet/mail-ledger/internal/textutils"
)

// MappingStrategy categorizes by exact merchant match against the
// merchant-to-category registry. Keys are normalized merchant names, so
// "CoffeeCo Inc." and "coffeeco" resolve to the same entry.
type MappingStrategy struct {
	mu       sync.RWMutex
	mappings map[string]string
	dirty    bool
	registry store.Registry
	logger   logging.Logger
}

// NewMappingStrategy loads the merchant registry. A missing registry
// file yields an empty strategy, not an error.
func NewMappingStrategy(registry store.Registry, logger logging.Logger) *MappingStrategy {
	s := &MappingStrategy{
		mappings: make(map[string]string),
		registry: registry,
		logger:   logger,
	}
	loaded, err := registry.LoadMerchantMappings()
	if err != nil {
		logger.WithError(err).Warn("failed to load merchant mappings")
		return s
	}
	for merchant, category := range loaded {
		s.mappings[textutils.NormalizeMerchant(merchant)] = category
	}
	return s
}

func (s *MappingStrategy) Name() string {
	return "mapping"
}

// Categorize looks the record's merchant up in the registry.
func (s *MappingStrategy) Categorize(rec models.TransactionRecord) (string, bool) {
	key := textutils.NormalizeMerchant(rec.Merchant)
	if key == "" {
		return "", false
	}

	s.mu.RLock()
	category, found := s.mappings[key]
	s.mu.RUnlock()

	if found {
		s.logger.Debug("merchant matched registry",
			logging.Field{Key: logging.FieldMerchant, Value: key},
			logging.Field{Key: logging.FieldCategory, Value: category})
	}
	return category, found
}

// Learn records a merchant-to-category pair discovered by a later
// strategy, so the next run resolves it directly.
func (s *MappingStrategy) Learn(merchant, category string) {
	key := textutils.NormalizeMerchant(merchant)
	if key == "" || category == models.CategoryOther {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.mappings[key]; ok && existing == category {
		return
	}
	s.mappings[key] = category
	s.dirty = true
}

// Save persists learned mappings when anything changed since load.
func (s *MappingStrategy) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}

	snapshot := make(map[string]string, len(s.mappings))
	for k, v := range s.mappings {
		snapshot[k] = v
	}
	if err := s.registry.SaveMerchantMappings(snapshot); err != nil {
		return err
	}
	s.dirty = false
	s.logger.Debug("saved merchant mappings",
		logging.Field{Key: logging.FieldCount, Value: len(snapshot)})
	return nil
}
