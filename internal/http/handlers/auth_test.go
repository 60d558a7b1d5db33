package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/eventra/eventra/internal/config"
	"github.com/eventra/eventra/internal/domain/otp"
	"github.com/eventra/eventra/internal/domain/user"
	"github.com/eventra/eventra/internal/mail"
	"github.com/eventra/eventra/internal/repo/postgres"
	"github.com/eventra/eventra/internal/security"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeUserStore struct {
	byEmail map[string]user.User
	byID    map[string]user.User

	createErr    error
	lastLoginSet map[string]time.Time
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{
		byEmail:      map[string]user.User{},
		byID:         map[string]user.User{},
		lastLoginSet: map[string]time.Time{},
	}
}

func (s *fakeUserStore) add(u user.User) {
	s.byEmail[u.Email] = u
	s.byID[u.ID] = u
}

func (s *fakeUserStore) GetByEmail(_ context.Context, email string) (user.User, error) {
	u, ok := s.byEmail[email]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return u, nil
}

func (s *fakeUserStore) GetByID(_ context.Context, id string) (user.User, error) {
	u, ok := s.byID[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return u, nil
}

func (s *fakeUserStore) Create(_ context.Context, u user.User) (user.User, error) {
	if s.createErr != nil {
		return user.User{}, s.createErr
	}
	if _, exists := s.byEmail[u.Email]; exists {
		return user.User{}, postgres.ErrEmailAlreadyUsed
	}
	s.add(u)
	return u, nil
}

func (s *fakeUserStore) UpdateLastLogin(_ context.Context, id string, at time.Time) error {
	s.lastLoginSet[id] = at
	return nil
}

type fakeCodeStore struct {
	codes   map[string]otp.Code
	deleted []string
}

func newFakeCodeStore() *fakeCodeStore {
	return &fakeCodeStore{codes: map[string]otp.Code{}}
}

func (s *fakeCodeStore) Upsert(_ context.Context, code otp.Code) error {
	s.codes[code.Email] = code
	return nil
}

func (s *fakeCodeStore) Get(_ context.Context, email string) (otp.Code, error) {
	c, ok := s.codes[email]
	if !ok {
		return otp.Code{}, otp.ErrNotFound
	}
	return c, nil
}

func (s *fakeCodeStore) Delete(_ context.Context, email string) error {
	delete(s.codes, email)
	s.deleted = append(s.deleted, email)
	return nil
}

type fakeMailer struct {
	fail bool
	sent []mail.Message
}

func (m *fakeMailer) Send(_ context.Context, msg mail.Message) error {
	if m.fail {
		return errors.New("smtp unreachable")
	}
	m.sent = append(m.sent, msg)
	return nil
}

type fakeIssuer struct {
	token string
	err   error
}

func (f *fakeIssuer) Issue(user.User) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.token, nil
}

type authFixture struct {
	handler *AuthHandler
	users   *fakeUserStore
	codes   *fakeCodeStore
	mailer  *fakeMailer
}

func newAuthFixture() *authFixture {
	users := newFakeUserStore()
	codes := newFakeCodeStore()
	mailer := &fakeMailer{}

	cfg := config.Config{MailTimeout: 5 * time.Second}

	return &authFixture{
		handler: NewAuthHandler(users, codes, mailer, &fakeIssuer{token: "token-abc"}, nil, cfg),
		users:   users,
		codes:   codes,
		mailer:  mailer,
	}
}

func performJSON(handler gin.HandlerFunc, body string, identity func(*gin.Context)) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(rec)

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	ctx.Request = req

	if identity != nil {
		identity(ctx)
	}

	handler(ctx)

	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var body map[string]interface{}

	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v (%s)", err, rec.Body.String())
	}

	return body
}

func TestSendOTP(t *testing.T) {
	t.Run("issues and mails a code", func(t *testing.T) {
		f := newAuthFixture()

		rec := performJSON(f.handler.SendOTP, `{"email":"New@Campus.edu"}`, nil)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}

		// email is normalized before it touches the store
		code, ok := f.codes.codes["new@campus.edu"]

		if !ok {
			t.Fatal("no code stored for normalized email")
		}

		if len(f.mailer.sent) != 1 {
			t.Fatalf("sent %d mails, want 1", len(f.mailer.sent))
		}

		if !strings.Contains(f.mailer.sent[0].Body, code.Code) {
			t.Error("mail body does not carry the code")
		}
	})

	t.Run("rejects an already registered email", func(t *testing.T) {
		f := newAuthFixture()
		f.users.add(user.User{ID: "u1", Email: "taken@campus.edu", Role: user.RoleStudent})

		rec := performJSON(f.handler.SendOTP, `{"email":"taken@campus.edu"}`, nil)

		if rec.Code != http.StatusConflict {
			t.Fatalf("status = %d, want 409", rec.Code)
		}

		if len(f.mailer.sent) != 0 {
			t.Error("mail sent despite conflict")
		}
	})

	t.Run("surfaces mail outage as 503", func(t *testing.T) {
		f := newAuthFixture()
		f.mailer.fail = true

		rec := performJSON(f.handler.SendOTP, `{"email":"new@campus.edu"}`, nil)

		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("status = %d, want 503", rec.Code)
		}
	})

	t.Run("rejects a malformed email", func(t *testing.T) {
		f := newAuthFixture()

		rec := performJSON(f.handler.SendOTP, `{"email":"not-an-email"}`, nil)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("resend replaces the previous code", func(t *testing.T) {
		f := newAuthFixture()

		f.codes.codes["new@campus.edu"] = otp.New("new@campus.edu", "111111", time.Now().UTC().Add(-time.Minute))

		rec := performJSON(f.handler.SendOTP, `{"email":"new@campus.edu"}`, nil)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}

		if f.codes.codes["new@campus.edu"].Code == "111111" {
			t.Error("old code survived a resend")
		}
	})
}

func TestVerifyOTPRegister(t *testing.T) {
	const registerBody = `{"email":"new@campus.edu","otp":"123456","name":"New Student","password":"hunter22","role":"student"}`

	t.Run("creates the account and returns a session", func(t *testing.T) {
		f := newAuthFixture()
		f.codes.codes["new@campus.edu"] = otp.New("new@campus.edu", "123456", time.Now().UTC())

		rec := performJSON(f.handler.VerifyOTPRegister, registerBody, nil)

		if rec.Code != http.StatusCreated {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}

		body := decodeBody(t, rec)
		data := body["data"].(map[string]interface{})

		if data["token"] != "token-abc" {
			t.Errorf("token = %v", data["token"])
		}

		created := data["user"].(map[string]interface{})

		if created["isVerified"] != true {
			t.Error("account not marked verified")
		}

		if _, hasHash := created["PasswordHash"]; hasHash {
			t.Error("password hash leaked into the response")
		}

		// code is single-use
		if len(f.codes.deleted) != 1 || f.codes.deleted[0] != "new@campus.edu" {
			t.Errorf("code not consumed: %v", f.codes.deleted)
		}
	})

	t.Run("wrong code", func(t *testing.T) {
		f := newAuthFixture()
		f.codes.codes["new@campus.edu"] = otp.New("new@campus.edu", "999999", time.Now().UTC())

		rec := performJSON(f.handler.VerifyOTPRegister, registerBody, nil)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}

		if len(f.codes.deleted) != 0 {
			t.Error("code consumed on failed verification")
		}
	})

	t.Run("expired code", func(t *testing.T) {
		f := newAuthFixture()
		f.codes.codes["new@campus.edu"] = otp.New("new@campus.edu", "123456", time.Now().UTC().Add(-6*time.Minute))

		rec := performJSON(f.handler.VerifyOTPRegister, registerBody, nil)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("no code at all", func(t *testing.T) {
		f := newAuthFixture()

		rec := performJSON(f.handler.VerifyOTPRegister, registerBody, nil)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("duplicate email", func(t *testing.T) {
		f := newAuthFixture()
		f.users.add(user.User{ID: "u1", Email: "new@campus.edu", Role: user.RoleStudent})
		f.codes.codes["new@campus.edu"] = otp.New("new@campus.edu", "123456", time.Now().UTC())

		rec := performJSON(f.handler.VerifyOTPRegister, registerBody, nil)

		if rec.Code != http.StatusConflict {
			t.Fatalf("status = %d, want 409", rec.Code)
		}
	})

	t.Run("short password fails validation", func(t *testing.T) {
		f := newAuthFixture()

		rec := performJSON(f.handler.VerifyOTPRegister,
			`{"email":"new@campus.edu","otp":"123456","name":"New Student","password":"abc","role":"student"}`, nil)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("unknown role fails validation", func(t *testing.T) {
		f := newAuthFixture()

		rec := performJSON(f.handler.VerifyOTPRegister,
			`{"email":"new@campus.edu","otp":"123456","name":"New Student","password":"hunter22","role":"dean"}`, nil)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}
	})
}

func TestLogin(t *testing.T) {
	hash, err := security.HashPassword("hunter22")

	if err != nil {
		t.Fatal(err)
	}

	seed := func(f *authFixture) {
		f.users.add(user.User{
			ID:           "u1",
			Email:        "student@campus.edu",
			PasswordHash: hash,
			Role:         user.RoleStudent,
		})
	}

	t.Run("valid credentials trigger a login code", func(t *testing.T) {
		f := newAuthFixture()
		seed(f)

		rec := performJSON(f.handler.Login, `{"email":"student@campus.edu","password":"hunter22"}`, nil)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}

		if _, ok := f.codes.codes["student@campus.edu"]; !ok {
			t.Error("no login code stored")
		}

		if len(f.mailer.sent) != 1 {
			t.Errorf("sent %d mails, want 1", len(f.mailer.sent))
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		f := newAuthFixture()
		seed(f)

		rec := performJSON(f.handler.Login, `{"email":"student@campus.edu","password":"wrong"}`, nil)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}

		if len(f.mailer.sent) != 0 {
			t.Error("mail sent despite bad credentials")
		}
	})

	t.Run("unknown email", func(t *testing.T) {
		f := newAuthFixture()

		rec := performJSON(f.handler.Login, `{"email":"ghost@campus.edu","password":"hunter22"}`, nil)

		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", rec.Code)
		}
	})

	t.Run("mail outage", func(t *testing.T) {
		f := newAuthFixture()
		seed(f)
		f.mailer.fail = true

		rec := performJSON(f.handler.Login, `{"email":"student@campus.edu","password":"hunter22"}`, nil)

		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("status = %d, want 503", rec.Code)
		}
	})
}

func TestVerifyLoginOTP(t *testing.T) {
	seed := func(f *authFixture) {
		f.users.add(user.User{ID: "u1", Email: "student@campus.edu", Role: user.RoleStudent})
		f.codes.codes["student@campus.edu"] = otp.New("student@campus.edu", "123456", time.Now().UTC())
	}

	t.Run("completes login", func(t *testing.T) {
		f := newAuthFixture()
		seed(f)

		rec := performJSON(f.handler.VerifyLoginOTP, `{"email":"student@campus.edu","otp":"123456"}`, nil)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
		}

		body := decodeBody(t, rec)
		data := body["data"].(map[string]interface{})

		if data["token"] != "token-abc" {
			t.Errorf("token = %v", data["token"])
		}

		if _, ok := f.users.lastLoginSet["u1"]; !ok {
			t.Error("lastLogin not updated")
		}

		if len(f.codes.deleted) != 1 {
			t.Error("code not consumed")
		}
	})

	t.Run("wrong code", func(t *testing.T) {
		f := newAuthFixture()
		seed(f)

		rec := performJSON(f.handler.VerifyLoginOTP, `{"email":"student@campus.edu","otp":"000000"}`, nil)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("status = %d, want 400", rec.Code)
		}

		if len(f.codes.deleted) != 0 {
			t.Error("code consumed on failed verification")
		}
	})
}

func TestProfile(t *testing.T) {
	f := newAuthFixture()
	f.users.add(user.User{ID: "u1", Email: "student@campus.edu", Name: "Student", Role: user.RoleStudent})

	rec := performJSON(f.handler.Profile, "", func(c *gin.Context) {
		setTestIdentity(c, "u1", "student@campus.edu", "student")
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	u := body["data"].(map[string]interface{})["user"].(map[string]interface{})

	if u["email"] != "student@campus.edu" {
		t.Errorf("email = %v", u["email"])
	}
}
