package memory

import (
	"context"
	"sync"
	"time"

	"github.com/eventra/eventra/internal/domain/otp"
)

// OTPStore mirrors the redis store for tests. Expiry is enforced on read,
// matching the 5-minute absolute lifetime.
type OTPStore struct {
	mu    sync.Mutex
	codes map[string]otp.Code
}

func NewOTPStore() *OTPStore {
	return &OTPStore{codes: make(map[string]otp.Code)}
}

func (s *OTPStore) Upsert(ctx context.Context, code otp.Code) error {
	s.mu.Lock()
	s.codes[code.Email] = code
	s.mu.Unlock()
	return nil
}

func (s *OTPStore) Get(ctx context.Context, email string) (otp.Code, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	code, ok := s.codes[email]

	if !ok {
		return otp.Code{}, otp.ErrNotFound
	}

	if code.Expired(time.Now()) {
		delete(s.codes, email)
		return otp.Code{}, otp.ErrNotFound
	}

	return code, nil
}

func (s *OTPStore) Delete(ctx context.Context, email string) error {
	s.mu.Lock()
	delete(s.codes, email)
	s.mu.Unlock()
	return nil
}
