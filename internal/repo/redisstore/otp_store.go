package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/eventra/eventra/internal/domain/otp"
	"github.com/redis/go-redis/v9"
)

// OTPStore keeps at most one live code per email. SET with EX gives both the
// upsert (replace-if-exists) semantics and the store-enforced absolute
// expiry; DEL after a successful verification makes codes single-use.
type OTPStore struct {
	rdb *redis.Client
	ttl time.Duration
}

type Config struct {
	Addr     string
	Password string
	DB       int
}

func NewClient(cfg Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

func NewOTPStore(rdb *redis.Client, ttl time.Duration) *OTPStore {
	if ttl <= 0 {
		ttl = otp.TTL
	}

	return &OTPStore{rdb: rdb, ttl: ttl}
}

func key(email string) string {
	return "otp:" + email
}

// Upsert replaces any existing code for the email and resets the expiry.
func (s *OTPStore) Upsert(ctx context.Context, code otp.Code) error {
	raw, err := json.Marshal(code)

	if err != nil {
		return err
	}

	return s.rdb.Set(ctx, key(code.Email), raw, s.ttl).Err()
}

func (s *OTPStore) Get(ctx context.Context, email string) (otp.Code, error) {
	raw, err := s.rdb.Get(ctx, key(email)).Bytes()

	if err != nil {
		if errors.Is(err, redis.Nil) {
			return otp.Code{}, otp.ErrNotFound
		}
		return otp.Code{}, err
	}

	var code otp.Code

	if err := json.Unmarshal(raw, &code); err != nil {
		return otp.Code{}, err
	}

	return code, nil
}

// Delete consumes the code. Deleting an absent key is not an error.
func (s *OTPStore) Delete(ctx context.Context, email string) error {
	return s.rdb.Del(ctx, key(email)).Err()
}

func (s *OTPStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}
