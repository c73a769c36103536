package repositories

import (
	"context"
	"sync"
	"time"

	"khayalcare/internal/models"
)

// In-memory реализации хранилищ. Используются в тестах и как референс
// контракта атомарности: всё, что Postgres делает условными UPDATE'ами,
// здесь сериализуется мьютексом.

type MemoryVerificationRepository struct {
	mu      sync.Mutex
	seq     int64
	records map[int64]*models.VerificationCode
}

func NewMemoryVerificationRepository() *MemoryVerificationRepository {
	return &MemoryVerificationRepository{records: make(map[int64]*models.VerificationCode)}
}

func copyRecord(v *models.VerificationCode) *models.VerificationCode {
	c := *v
	if v.VerifiedAt != nil {
		t := *v.VerifiedAt
		c.VerifiedAt = &t
	}
	if v.RegistrationData != nil {
		c.RegistrationData = append([]byte(nil), v.RegistrationData...)
	}
	return &c
}

func (r *MemoryVerificationRepository) findPending(email, phone string, purpose models.VerificationPurpose) *models.VerificationCode {
	for _, rec := range r.records {
		if rec.Status == models.StatusPending && rec.Email == email && rec.Phone == phone && rec.Purpose == purpose {
			return rec
		}
	}
	return nil
}

func (r *MemoryVerificationRepository) GetPending(_ context.Context, email, phone string, purpose models.VerificationPurpose) (*models.VerificationCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec := r.findPending(email, phone, purpose); rec != nil {
		return copyRecord(rec), nil
	}
	return nil, nil
}

func (r *MemoryVerificationRepository) CreateOrRefresh(_ context.Context, v *models.VerificationCode, cooldown time.Duration) (*models.VerificationCode, time.Duration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := v.LastSentAt
	existing := r.findPending(v.Email, v.Phone, v.Purpose)
	if existing == nil {
		r.seq++
		rec := copyRecord(v)
		rec.ID = r.seq
		rec.Status = models.StatusPending
		rec.Attempts = 0
		rec.ResendCount = 0
		rec.CreatedAt = now
		r.records[rec.ID] = rec
		return copyRecord(rec), 0, nil
	}

	if now.Before(existing.ExpiresAt) {
		if elapsed := now.Sub(existing.LastSentAt); elapsed < cooldown {
			return copyRecord(existing), cooldown - elapsed, ErrResendCooldown
		}
		existing.ResendCount++
	} else {
		existing.ResendCount = 0
	}

	existing.Code = v.Code
	existing.Method = v.Method
	if v.Username != "" {
		existing.Username = v.Username
	}
	existing.Attempts = 0
	existing.LastSentAt = now
	existing.ExpiresAt = v.ExpiresAt
	if len(v.RegistrationData) > 0 {
		existing.RegistrationData = append([]byte(nil), v.RegistrationData...)
	}
	return copyRecord(existing), 0, nil
}

func (r *MemoryVerificationRepository) IncrementAttempts(_ context.Context, id int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok || rec.Status != models.StatusPending {
		return 0, ErrNoPendingRecord
	}
	rec.Attempts++
	return rec.Attempts, nil
}

func (r *MemoryVerificationRepository) MarkVerified(_ context.Context, id int64, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok || rec.Status != models.StatusPending {
		return false, nil
	}
	rec.Status = models.StatusVerified
	rec.VerifiedAt = &at
	return true, nil
}

func (r *MemoryVerificationRepository) MarkExpired(_ context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok || rec.Status != models.StatusPending {
		return false, nil
	}
	rec.Status = models.StatusExpired
	return true, nil
}

func (r *MemoryVerificationRepository) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, rec := range r.records {
		if rec.Status == models.StatusPending && rec.ExpiresAt.Before(before) {
			delete(r.records, id)
			n++
		}
	}
	return n, nil
}

type MemoryDailyAttemptRepository struct {
	mu       sync.Mutex
	counters map[string]*models.DailyVerificationAttempt
}

func NewMemoryDailyAttemptRepository() *MemoryDailyAttemptRepository {
	return &MemoryDailyAttemptRepository{counters: make(map[string]*models.DailyVerificationAttempt)}
}

func dailyKey(email, phone string, purpose models.VerificationPurpose, date string) string {
	return email + "|" + phone + "|" + string(purpose) + "|" + date
}

func (r *MemoryDailyAttemptRepository) TryIncrement(_ context.Context, email, phone string, purpose models.VerificationPurpose, date string, max int, at time.Time) (int, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := dailyKey(email, phone, purpose, date)
	c, ok := r.counters[key]
	if !ok {
		c = &models.DailyVerificationAttempt{
			Email: email, Phone: phone, Purpose: purpose, AttemptDate: date,
		}
		r.counters[key] = c
	}
	if c.AttemptCount >= max {
		return max, false, nil
	}
	c.AttemptCount++
	c.LastAttemptAt = at
	return c.AttemptCount, true, nil
}

func (r *MemoryDailyAttemptRepository) DeleteBefore(_ context.Context, date string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for key, c := range r.counters {
		if c.AttemptDate < date {
			delete(r.counters, key)
			n++
		}
	}
	return n, nil
}

type MemoryRestrictionRepository struct {
	mu           sync.Mutex
	restrictions map[string]*models.AccountRestriction
}

func NewMemoryRestrictionRepository() *MemoryRestrictionRepository {
	return &MemoryRestrictionRepository{restrictions: make(map[string]*models.AccountRestriction)}
}

func (r *MemoryRestrictionRepository) GetActive(_ context.Context, email, phone string, now time.Time) (*models.AccountRestriction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, res := range r.restrictions {
		if (res.Email == email || res.Phone == phone) && res.RestrictedUntil.After(now) {
			c := *res
			return &c, nil
		}
	}
	return nil, nil
}

func (r *MemoryRestrictionRepository) Upsert(_ context.Context, restriction *models.AccountRestriction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *restriction
	r.restrictions[restriction.Email+"|"+restriction.Phone] = &c
	return nil
}

type MemoryUserRepository struct {
	mu    sync.Mutex
	seq   int64
	users map[int64]*models.User
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{users: make(map[int64]*models.User)}
}

func (r *MemoryUserRepository) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	user.ID = r.seq
	c := *user
	r.users[user.ID] = &c
	return nil
}

func (r *MemoryUserRepository) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, nil
}

func (r *MemoryUserRepository) GetByUsername(_ context.Context, username string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Username == username {
			c := *u
			return &c, nil
		}
	}
	return nil, nil
}

func (r *MemoryUserRepository) Exists(_ context.Context, email, phone, username string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email || u.Phone == phone || u.Username == username {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryUserRepository) UpdatePasswordByEmail(_ context.Context, email, passwordHash string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			u.PasswordHash = passwordHash
			return true, nil
		}
	}
	return false, nil
}
