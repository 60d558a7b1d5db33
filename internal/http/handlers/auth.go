package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/eventra/eventra/internal/config"
	"github.com/eventra/eventra/internal/domain/otp"
	"github.com/eventra/eventra/internal/domain/user"
	"github.com/eventra/eventra/internal/http/middlewares"
	"github.com/eventra/eventra/internal/mail"
	"github.com/eventra/eventra/internal/observability"
	"github.com/eventra/eventra/internal/repo/postgres"
	"github.com/eventra/eventra/internal/security"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type UserStore interface {
	GetByEmail(ctx context.Context, email string) (user.User, error)
	GetByID(ctx context.Context, id string) (user.User, error)
	Create(ctx context.Context, u user.User) (user.User, error)
	UpdateLastLogin(ctx context.Context, id string, at time.Time) error
}

// CodeStore holds at most one live code per email; Upsert replaces, Delete
// consumes. Implementations enforce the 5-minute absolute expiry.
type CodeStore interface {
	Upsert(ctx context.Context, code otp.Code) error
	Get(ctx context.Context, email string) (otp.Code, error)
	Delete(ctx context.Context, email string) error
}

type SessionIssuer interface {
	Issue(u user.User) (string, error)
}

type AuthHandler struct {
	users  UserStore
	codes  CodeStore
	mailer mail.Mailer
	jwt    SessionIssuer
	prom   *observability.Prom
	cfg    config.Config
}

func NewAuthHandler(users UserStore, codes CodeStore, mailer mail.Mailer, jwt SessionIssuer, prom *observability.Prom, cfg config.Config) *AuthHandler {
	return &AuthHandler{
		users:  users,
		codes:  codes,
		mailer: mailer,
		jwt:    jwt,
		prom:   prom,
		cfg:    cfg,
	}
}

type SendOTPRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type VerifyRegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	OTP      string `json:"otp" binding:"required,len=6,numeric"`
	Name     string `json:"name" binding:"required,min=2,max=120"`
	Password string `json:"password" binding:"required,min=6"`
	Role     string `json:"role" binding:"required,oneof=student president management finance"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type VerifyLoginRequest struct {
	Email string `json:"email" binding:"required,email"`
	OTP   string `json:"otp" binding:"required,len=6,numeric"`
}

// issueAndSendCode persists a fresh code (replacing any live one) and
// dispatches it synchronously. A failed send is surfaced, never swallowed.
func (h *AuthHandler) issueAndSendCode(ctx context.Context, email, purpose string) error {
	code, err := otp.Generate()

	if err != nil {
		return err
	}

	record := otp.New(email, code, time.Now().UTC())

	if err := h.codes.Upsert(ctx, record); err != nil {
		return err
	}

	mailCtx, cancel := context.WithTimeout(ctx, h.cfg.MailTimeout)
	defer cancel()

	if err := h.mailer.Send(mailCtx, mail.OTPMessage(email, code, purpose)); err != nil {
		if h.prom != nil {
			h.prom.MailDispatchErrors.Inc()
		}
		return errMailDispatch
	}

	if h.prom != nil {
		h.prom.OTPIssuedTotal.WithLabelValues(purpose).Inc()
	}

	return nil
}

var errMailDispatch = errors.New("otp mail dispatch failed")

// SendOTP starts registration: refuses emails that already have an account,
// otherwise issues and mails a code.
func (h *AuthHandler) SendOTP(ctx *gin.Context) {
	var req SendOTPRequest

	if !BindJSON(ctx, &req) {
		return
	}

	email := user.NormalizeEmail(req.Email)

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	_, err := h.users.GetByEmail(cctx, email)

	if err == nil {
		RespondConflict(ctx, "email_taken", "Email already registered")
		return
	}

	if !errors.Is(err, user.ErrNotFound) {
		RespondInternal(ctx, "Could not send OTP")
		return
	}

	if err := h.issueAndSendCode(cctx, email, "register"); err != nil {
		if errors.Is(err, errMailDispatch) {
			RespondServiceUnavailable(ctx, "Could not deliver OTP email. Please try again later.")
			return
		}
		RespondInternal(ctx, "Could not send OTP")
		return
	}

	RespondData(ctx, http.StatusOK, "OTP sent successfully to your email", nil)
}

// VerifyOTPRegister checks the code, creates the verified account and
// returns a session. Deleting the code is the last persisted effect so a
// crash mid-way leaves it usable for a retry.
func (h *AuthHandler) VerifyOTPRegister(ctx *gin.Context) {
	var req VerifyRegisterRequest

	if !BindJSON(ctx, &req) {
		return
	}

	email := user.NormalizeEmail(req.Email)

	role, err := user.ParseRole(req.Role)

	if err != nil {
		RespondBadRequest(ctx, "validation_error", "Invalid role selected", nil)
		return
	}

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	code, err := h.codes.Get(cctx, email)

	if err != nil {
		if errors.Is(err, otp.ErrNotFound) {
			RespondBadRequest(ctx, "invalid_credential", "Invalid or expired OTP", nil)
			return
		}
		RespondInternal(ctx, "Could not verify OTP")
		return
	}

	if err := code.Verify(req.OTP, time.Now().UTC()); err != nil {
		RespondBadRequest(ctx, "invalid_credential", "Invalid or expired OTP", nil)
		return
	}

	hash, err := security.HashPassword(req.Password)

	if err != nil {
		RespondInternal(ctx, "Could not create account")
		return
	}

	now := time.Now().UTC()

	u, err := h.users.Create(cctx, user.User{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		IsVerified:   true,
		CreatedAt:    now,
		UpdatedAt:    now,
	})

	if err != nil {
		if errors.Is(err, postgres.ErrEmailAlreadyUsed) {
			RespondConflict(ctx, "email_taken", "User already exists")
			return
		}
		RespondInternal(ctx, "Could not create account")
		return
	}

	token, err := h.jwt.Issue(u)

	if err != nil {
		RespondInternal(ctx, "Could not create session")
		return
	}

	// best effort; an undeleted code dies with its TTL
	_ = h.codes.Delete(cctx, email)

	RespondData(ctx, http.StatusCreated, "Registration successful", gin.H{
		"user":  u,
		"token": token,
	})
}

// Login checks credentials and answers with a login OTP, not a session.
func (h *AuthHandler) Login(ctx *gin.Context) {
	var req LoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	email := user.NormalizeEmail(req.Email)

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	foundUser, err := h.users.GetByEmail(cctx, email)

	if err != nil {
		RespondUnauthenticated(ctx, "Email or password is incorrect")
		return
	}

	if err := security.CheckPassword(foundUser.PasswordHash, req.Password); err != nil {
		RespondUnauthenticated(ctx, "Email or password is incorrect")
		return
	}

	if err := h.issueAndSendCode(cctx, email, "login"); err != nil {
		if errors.Is(err, errMailDispatch) {
			RespondServiceUnavailable(ctx, "Could not deliver OTP email. Please try again later.")
			return
		}
		RespondInternal(ctx, "Could not send OTP")
		return
	}

	RespondData(ctx, http.StatusOK, "OTP sent to your email for verification", gin.H{
		"email":       foundUser.Email,
		"requiresOTP": true,
	})
}

// VerifyLoginOTP completes login: code check, lastLogin update, session.
func (h *AuthHandler) VerifyLoginOTP(ctx *gin.Context) {
	var req VerifyLoginRequest

	if !BindJSON(ctx, &req) {
		return
	}

	email := user.NormalizeEmail(req.Email)

	cctx, cancel := config.WithTimeout(3 * time.Second)
	defer cancel()

	code, err := h.codes.Get(cctx, email)

	if err != nil {
		if errors.Is(err, otp.ErrNotFound) {
			RespondBadRequest(ctx, "invalid_credential", "Invalid or expired OTP", nil)
			return
		}
		RespondInternal(ctx, "Could not verify OTP")
		return
	}

	if err := code.Verify(req.OTP, time.Now().UTC()); err != nil {
		RespondBadRequest(ctx, "invalid_credential", "Invalid or expired OTP", nil)
		return
	}

	foundUser, err := h.users.GetByEmail(cctx, email)

	if err != nil {
		RespondUnauthenticated(ctx, "User not found")
		return
	}

	now := time.Now().UTC()

	if err := h.users.UpdateLastLogin(cctx, foundUser.ID, now); err != nil {
		RespondInternal(ctx, "Could not complete login")
		return
	}

	foundUser.LastLogin = &now

	token, err := h.jwt.Issue(foundUser)

	if err != nil {
		RespondInternal(ctx, "Could not create session")
		return
	}

	// last persisted effect: consume the code
	_ = h.codes.Delete(cctx, email)

	RespondData(ctx, http.StatusOK, "Login successful", gin.H{
		"user":  foundUser,
		"token": token,
	})
}

// Logout is client-side token deletion; there is no revocation list.
func (h *AuthHandler) Logout(ctx *gin.Context) {
	RespondData(ctx, http.StatusOK, "Logout successful", nil)
}

// Profile returns the caller's account minus secret fields.
func (h *AuthHandler) Profile(ctx *gin.Context) {
	userID, ok := middlewares.UserIDFromContext(ctx)

	if !ok || userID == "" {
		RespondUnauthenticated(ctx, "Missing identity")
		return
	}

	cctx, cancel := config.WithTimeout(2 * time.Second)
	defer cancel()

	u, err := h.users.GetByID(cctx, userID)

	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			RespondNotFound(ctx, "User not found")
			return
		}
		RespondInternal(ctx, "Could not fetch profile")
		return
	}

	RespondData(ctx, http.StatusOK, "", gin.H{"user": u})
}
