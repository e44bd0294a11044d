package core

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MemorySubmissionStore keeps accepted submissions in process memory. It is
// the default store for embedded use and tests; production deployments wire
// the SQL store instead.
type MemorySubmissionStore struct {
	mu    sync.RWMutex
	items map[string]FormSubmission
}

func NewMemorySubmissionStore() *MemorySubmissionStore {
	return &MemorySubmissionStore{items: map[string]FormSubmission{}}
}

func (s *MemorySubmissionStore) Save(_ context.Context, submission FormSubmission) (string, error) {
	if s == nil {
		return "", fmt.Errorf("core: submission store is nil")
	}
	id := strings.TrimSpace(submission.ID)
	if id == "" {
		id = uuid.NewString()
	}
	submission.ID = id
	s.mu.Lock()
	s.items[id] = submission
	s.mu.Unlock()
	return id, nil
}

func (s *MemorySubmissionStore) Get(_ context.Context, id string) (FormSubmission, error) {
	if s == nil {
		return FormSubmission{}, fmt.Errorf("core: submission store is nil")
	}
	s.mu.RLock()
	submission, ok := s.items[strings.TrimSpace(id)]
	s.mu.RUnlock()
	if !ok {
		return FormSubmission{}, fmt.Errorf("%w: %s", ErrSubmissionNotFound, strings.TrimSpace(id))
	}
	return submission, nil
}

type MemoryDeliveryStore struct {
	mu    sync.RWMutex
	items map[string][]DeliveryRecord
}

func NewMemoryDeliveryStore() *MemoryDeliveryStore {
	return &MemoryDeliveryStore{items: map[string][]DeliveryRecord{}}
}

func (s *MemoryDeliveryStore) Record(_ context.Context, record DeliveryRecord) error {
	if s == nil {
		return fmt.Errorf("core: delivery store is nil")
	}
	key := strings.TrimSpace(record.SubmissionID)
	s.mu.Lock()
	s.items[key] = append(s.items[key], record)
	s.mu.Unlock()
	return nil
}

func (s *MemoryDeliveryStore) ListBySubmission(_ context.Context, submissionID string) ([]DeliveryRecord, error) {
	if s == nil {
		return nil, fmt.Errorf("core: delivery store is nil")
	}
	s.mu.RLock()
	records := append([]DeliveryRecord(nil), s.items[strings.TrimSpace(submissionID)]...)
	s.mu.RUnlock()
	return records, nil
}

// MemoryFormConfigStore backs the store resolver in tests and embedded
// setups.
type MemoryFormConfigStore struct {
	mu    sync.RWMutex
	items map[string]FormConfiguration
}

func NewMemoryFormConfigStore() *MemoryFormConfigStore {
	return &MemoryFormConfigStore{items: map[string]FormConfiguration{}}
}

func (s *MemoryFormConfigStore) Upsert(_ context.Context, config FormConfiguration) error {
	if s == nil {
		return fmt.Errorf("core: form config store is nil")
	}
	if err := config.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.items[normalizeFormID(config.FormID)] = config
	s.mu.Unlock()
	return nil
}

func (s *MemoryFormConfigStore) FindByFormID(_ context.Context, formID string) (FormConfiguration, error) {
	if s == nil {
		return FormConfiguration{}, fmt.Errorf("core: form config store is nil")
	}
	s.mu.RLock()
	config, ok := s.items[normalizeFormID(formID)]
	s.mu.RUnlock()
	if !ok {
		return FormConfiguration{}, fmt.Errorf("%w: %s", ErrFormNotFound, strings.TrimSpace(formID))
	}
	return config, nil
}

func (s *MemoryFormConfigStore) Delete(_ context.Context, formID string) error {
	if s == nil {
		return fmt.Errorf("core: form config store is nil")
	}
	s.mu.Lock()
	delete(s.items, normalizeFormID(formID))
	s.mu.Unlock()
	return nil
}

var (
	_ SubmissionStore = (*MemorySubmissionStore)(nil)
	_ DeliveryStore   = (*MemoryDeliveryStore)(nil)
	_ FormConfigStore = (*MemoryFormConfigStore)(nil)
)
