package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/event-registration-api/internal/models"
	"github.com/noah-isme/event-registration-api/internal/repository"
)

// memoryStore is an in-memory registration store enforcing the same unique constraints as the databases.
type memoryStore struct {
	mu      sync.Mutex
	records []*models.Registration

	existsErr    error
	createErrs   []error
	markErrs     []error
	beforeMark   func(id string)
	existsCalls  int
	createCalls  int
	markCalls    int
	forceExists  map[models.UniqueField]map[string]bool
	registeredAt time.Time
}

func newMemoryStore() *memoryStore {
	return &memoryStore{forceExists: map[models.UniqueField]map[string]bool{}}
}

func (m *memoryStore) fieldValue(reg *models.Registration, field models.UniqueField) string {
	switch field {
	case models.UniqueFieldRegistrationNumber:
		return reg.RegistrationNumber
	case models.UniqueFieldVerifiedNumber:
		if reg.VerifiedNumber == nil {
			return ""
		}
		return *reg.VerifiedNumber
	case models.UniqueFieldKen:
		return reg.Ken
	case models.UniqueFieldEmail:
		return reg.Email
	}
	return ""
}

func (m *memoryStore) taken(field models.UniqueField, value string) bool {
	if value == "" {
		return false
	}
	if m.forceExists[field][value] {
		return true
	}
	for _, r := range m.records {
		if m.fieldValue(r, field) == value {
			return true
		}
	}
	return false
}

func (m *memoryStore) Create(_ context.Context, reg *models.Registration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++
	if len(m.createErrs) > 0 {
		err := m.createErrs[0]
		m.createErrs = m.createErrs[1:]
		if err != nil {
			return err
		}
	}
	for _, field := range []models.UniqueField{models.UniqueFieldRegistrationNumber, models.UniqueFieldKen, models.UniqueFieldEmail} {
		if m.taken(field, m.fieldValue(reg, field)) {
			return &repository.UniqueViolationError{Field: field}
		}
	}
	reg.ID = uuid.NewString()
	now := m.registeredAt
	if now.IsZero() {
		now = time.Now().UTC()
	}
	reg.RegistrationDate = now
	reg.CreatedAt = now
	reg.UpdatedAt = now
	cp := *reg
	m.records = append(m.records, &cp)
	return nil
}

func (m *memoryStore) Exists(_ context.Context, field models.UniqueField, value string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.existsCalls++
	if m.existsErr != nil {
		return false, m.existsErr
	}
	return m.taken(field, value), nil
}

func (m *memoryStore) find(match func(*models.Registration) bool) (*models.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if match(r) {
			cp := *r
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memoryStore) FindByID(_ context.Context, id string) (*models.Registration, error) {
	return m.find(func(r *models.Registration) bool { return r.ID == id })
}

func (m *memoryStore) FindByKen(_ context.Context, ken string) (*models.Registration, error) {
	return m.find(func(r *models.Registration) bool { return r.Ken == ken })
}

func (m *memoryStore) FindByNumberAndContact(_ context.Context, number, contact string) (*models.Registration, error) {
	return m.find(func(r *models.Registration) bool {
		return r.RegistrationNumber == number && r.ContactNumber == contact
	})
}

func (m *memoryStore) MarkVerified(_ context.Context, id, verifiedNumber string, at time.Time) (bool, error) {
	if m.beforeMark != nil {
		m.beforeMark(id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markCalls++
	if len(m.markErrs) > 0 {
		err := m.markErrs[0]
		m.markErrs = m.markErrs[1:]
		if err != nil {
			return false, err
		}
	}
	if m.taken(models.UniqueFieldVerifiedNumber, verifiedNumber) {
		return false, &repository.UniqueViolationError{Field: models.UniqueFieldVerifiedNumber}
	}
	for _, r := range m.records {
		if r.ID != id {
			continue
		}
		if r.IsVerified {
			return false, nil
		}
		code := verifiedNumber
		ts := at
		r.IsVerified = true
		r.VerifiedNumber = &code
		r.VerificationDate = &ts
		return true, nil
	}
	return false, nil
}

func (m *memoryStore) matches(r *models.Registration, filter models.RegistrationFilter) bool {
	if filter.Department != "" && r.Department != filter.Department {
		return false
	}
	if filter.Verified != nil && r.IsVerified != *filter.Verified {
		return false
	}
	if s := strings.ToLower(filter.Search); s != "" {
		hay := strings.ToLower(r.FullName + " " + r.Email + " " + r.Ken + " " + r.RegistrationNumber)
		if !strings.Contains(hay, s) {
			return false
		}
	}
	return true
}

func (m *memoryStore) List(_ context.Context, filter models.RegistrationFilter) ([]models.Registration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Registration
	for _, r := range m.records {
		if m.matches(r, filter) {
			out = append(out, *r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RegistrationDate.After(out[j].RegistrationDate) })
	if filter.PageSize > 0 {
		start := (filter.Page - 1) * filter.PageSize
		if start >= len(out) {
			return []models.Registration{}, nil
		}
		end := start + filter.PageSize
		if end > len(out) {
			end = len(out)
		}
		out = out[start:end]
	}
	return out, nil
}

func (m *memoryStore) Counts(_ context.Context, filter models.RegistrationFilter) (models.RegistrationCounts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var c models.RegistrationCounts
	for _, r := range m.records {
		if !m.matches(r, filter) {
			continue
		}
		c.Total++
		if r.IsVerified {
			c.Verified++
		} else {
			c.Unverified++
		}
	}
	return c, nil
}

func (m *memoryStore) GroupCount(_ context.Context, field models.GroupField) ([]models.GroupCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := map[string]int{}
	for _, r := range m.records {
		switch field {
		case models.GroupFieldDepartment:
			counts[r.Department]++
		case models.GroupFieldRegistrationType:
			counts[r.RegistrationType]++
		case models.GroupFieldAccommodation:
			counts[r.Accommodation]++
		}
	}
	out := make([]models.GroupCount, 0, len(counts))
	for k, v := range counts {
		out = append(out, models.GroupCount{Key: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	return out, nil
}

// recordingNotifier captures notifier calls.
type recordingNotifier struct {
	mu         sync.Mutex
	registered []string
	verified   []string
}

func (n *recordingNotifier) NotifyRegistered(_ context.Context, reg models.Registration, action string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.registered = append(n.registered, action+":"+reg.RegistrationNumber)
}

func (n *recordingNotifier) NotifyVerified(_ context.Context, reg models.Registration) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.verified = append(n.verified, reg.RegistrationNumber)
}
