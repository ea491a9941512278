package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/marriage-hall-ledger/internal/config"
	"github.com/iliyamo/marriage-hall-ledger/internal/logging"
	"github.com/iliyamo/marriage-hall-ledger/internal/middleware"
	"github.com/iliyamo/marriage-hall-ledger/internal/model"
	"github.com/iliyamo/marriage-hall-ledger/internal/otp"
	"github.com/iliyamo/marriage-hall-ledger/internal/queue"
	"github.com/iliyamo/marriage-hall-ledger/internal/repository"
	"github.com/iliyamo/marriage-hall-ledger/internal/service"
	"github.com/iliyamo/marriage-hall-ledger/internal/utils"
	"github.com/iliyamo/marriage-hall-ledger/internal/validation"
)

// OTPPublisher hands a one-time password to the mailer.
type OTPPublisher interface {
	PublishOTP(ctx context.Context, m queue.OTPMessage) error
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg     config.Config
	Users   *repository.UserRepo
	Tokens  *repository.TokenRepo
	Halls   *repository.HallRepo
	HallSvc *service.HallService
	OTP     *otp.Store
	Notify  OTPPublisher
	Log     logging.Logger
}

// ----- DTOs -----

type loginReq struct {
	HallID   int64  `json:"hall_id" validate:"gt=0"`
	UserID   string `json:"user_id" validate:"required"`
	Password string `json:"password" validate:"required"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}
type changePasswordReq struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72"`
}
type otpReq struct {
	HallID int64  `json:"hall_id" validate:"gt=0"`
	UserID string `json:"user_id" validate:"required"`
}
type otpVerifyReq struct {
	HallID      int64  `json:"hall_id" validate:"gt=0"`
	UserID      string `json:"user_id" validate:"required"`
	Code        string `json:"code" validate:"required,len=6,numeric"`
	NewPassword string `json:"new_password" validate:"required,min=8,max=72"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type userPart struct {
	HallID int64  `json:"hall_id"`
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}
type authResp struct {
	User    userPart    `json:"user"`
	Hall    *model.Hall `json:"hall,omitempty"`
	Access  tokenPart   `json:"access"`
	Refresh tokenPart   `json:"refresh"`
}

// issue signs an access token, stores a fresh refresh token and returns the
// pair.
func (h *AuthHandler) issue(ctx context.Context, u model.User) (authResp, error) {
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.HallID, u.UserID, u.Role, h.Cfg.AccessTTLMin)
	if err != nil {
		return authResp{}, err
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return authResp{}, err
	}
	if err := h.Tokens.StoreRefresh(ctx, u.HallID, u.UserID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp); err != nil {
		return authResp{}, err
	}
	return authResp{
		User:    userPart{HallID: u.HallID, UserID: u.UserID, Role: u.Role},
		Access:  tokenPart{Token: access.Token, Expires: access.Exp},
		Refresh: tokenPart{Token: refresh.Raw, Expires: refresh.Exp}, // raw back to client
	}, nil
}

// admit applies the checks every token issue goes through: the hall must
// not be blocked and the account must be active.  A non-nil denial is the
// 403 body to send.
func (h *AuthHandler) admit(ctx context.Context, u model.User) (*model.Hall, echo.Map, error) {
	hall, err := h.Halls.GetByID(ctx, u.HallID)
	if err != nil {
		return nil, nil, err
	}
	if !hall.IsActive {
		reason, err := h.Halls.BlockReason(ctx, u.HallID)
		if err != nil {
			return nil, nil, err
		}
		return nil, echo.Map{"error": "hall is blocked", "reason": reason}, nil
	}
	if !u.IsActive {
		return nil, echo.Map{"error": "account disabled"}, nil
	}
	return hall, nil, nil
}

// Register creates a hall with its owner account and logs the owner in.
func (h *AuthHandler) Register(c echo.Context) error {
	var in service.RegisterInput
	if err := c.Bind(&in); err != nil {
		return invalidBody(c)
	}
	ctx, cancel := dbCtx(c)
	defer cancel()

	hall, err := h.HallSvc.Register(ctx, in)
	if err != nil {
		return respond(c, h.Log, err)
	}
	resp, err := h.issue(ctx, model.User{HallID: hall.HallID, UserID: strings.ToLower(strings.TrimSpace(in.UserID)), Role: model.RoleOwner})
	if err != nil {
		return respond(c, h.Log, err)
	}
	resp.Hall = hall
	return c.JSON(http.StatusCreated, resp)
}

// Login verifies (hall_id, user_id, password).  Blocked halls and disabled
// accounts are refused even with the right password.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return invalidBody(c)
	}
	if err := validation.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	u, err := h.Users.Get(ctx, req.HallID, req.UserID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	if err != nil {
		return respond(c, h.Log, err)
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	hall, denied, err := h.admit(ctx, u)
	if err != nil {
		return respond(c, h.Log, err)
	}
	if denied != nil {
		return c.JSON(http.StatusForbidden, denied)
	}

	resp, err := h.issue(ctx, u)
	if err != nil {
		return respond(c, h.Log, err)
	}
	resp.Hall = hall
	return c.JSON(http.StatusOK, resp)
}

// Refresh: validate by hash, revoke old, issue new.  A blocked hall or a
// disabled account gets no new pair; the presented token is still revoked.
func (h *AuthHandler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.RefreshToken) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "refresh_token required"})
	}
	hash := utils.HashRefreshRaw(strings.TrimSpace(req.RefreshToken))

	ctx, cancel := dbCtx(c)
	defer cancel()

	hallID, userID, err := h.Tokens.ValidateRefresh(ctx, hash, time.Now().UTC())
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
	}
	if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
		return respond(c, h.Log, err)
	}
	u, err := h.Users.Get(ctx, hallID, userID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
	}
	if err != nil {
		return respond(c, h.Log, err)
	}
	_, denied, err := h.admit(ctx, u)
	if err != nil {
		return respond(c, h.Log, err)
	}
	if denied != nil {
		return c.JSON(http.StatusForbidden, denied)
	}
	resp, err := h.issue(ctx, u)
	if err != nil {
		return respond(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, resp)
}

// Logout revokes the refresh token in the body, or every refresh token of
// the bearer's account when the body carries none.
func (h *AuthHandler) Logout(c echo.Context) error {
	var req refreshReq
	_ = c.Bind(&req)
	raw := strings.TrimSpace(req.RefreshToken)

	ctx, cancel := dbCtx(c)
	defer cancel()

	if raw != "" {
		hash := utils.HashRefreshRaw(raw)
		if _, _, err := h.Tokens.ValidateRefresh(ctx, hash, time.Now().UTC()); err != nil {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token"})
		}
		if err := h.Tokens.RevokeByHash(ctx, hash); err != nil {
			return respond(c, h.Log, err)
		}
		return c.NoContent(http.StatusNoContent)
	}

	auth := c.Request().Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "provide Authorization header or refresh_token"})
	}
	claims, err := utils.ParseAccessToken(h.Cfg.JWTSecret, strings.TrimPrefix(auth, "Bearer "))
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	if err := h.Tokens.RevokeAllForUser(ctx, claims.HallID, claims.Subject); err != nil {
		return respond(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the caller's identity and contact profile.
func (h *AuthHandler) Me(c echo.Context) error {
	hallID, _ := middleware.HallID(c)
	out := echo.Map{
		"user_id": middleware.UserID(c),
		"hall_id": hallID,
		"role":    middleware.Role(c),
	}
	ctx, cancel := dbCtx(c)
	defer cancel()
	profile, err := h.Users.GetAdmin(ctx, hallID, middleware.UserID(c))
	switch {
	case err == nil:
		out["profile"] = profile
	case !errors.Is(err, repository.ErrUserNotFound):
		return respond(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, out)
}

// ChangePassword replaces the caller's password and signs out every other
// session.
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	var req changePasswordReq
	if err := c.Bind(&req); err != nil {
		return invalidBody(c)
	}
	if err := validation.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	hallID, _ := middleware.HallID(c)
	userID := middleware.UserID(c)

	ctx, cancel := dbCtx(c)
	defer cancel()

	u, err := h.Users.Get(ctx, hallID, userID)
	if err != nil {
		return respond(c, h.Log, err)
	}
	if !utils.VerifyPassword(u.PasswordHash, req.CurrentPassword) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	if err := h.setPassword(ctx, hallID, userID, req.NewPassword); err != nil {
		return respond(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *AuthHandler) setPassword(ctx context.Context, hallID int64, userID, plain string) error {
	hash, err := utils.HashPassword(plain, h.Cfg.BcryptCost)
	if err != nil {
		return err
	}
	if err := h.Users.UpdatePassword(ctx, hallID, userID, hash); err != nil {
		return err
	}
	return h.Tokens.RevokeAllForUser(ctx, hallID, userID)
}

// RequestOTP issues a password reset code and queues it for delivery.  The
// response is the same whether or not the account exists.
func (h *AuthHandler) RequestOTP(c echo.Context) error {
	var req otpReq
	if err := c.Bind(&req); err != nil {
		return invalidBody(c)
	}
	if err := validation.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}

	ctx, cancel := dbCtx(c)
	defer cancel()

	accepted := echo.Map{"status": "if the account exists, a code has been sent"}
	profile, err := h.Users.GetAdmin(ctx, req.HallID, req.UserID)
	if errors.Is(err, repository.ErrUserNotFound) {
		return c.JSON(http.StatusAccepted, accepted)
	}
	if err != nil {
		return respond(c, h.Log, err)
	}

	code, exp, err := h.OTP.Issue(ctx, req.HallID, profile.UserID)
	if errors.Is(err, otp.ErrUnavailable) {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "password reset is unavailable"})
	}
	if err != nil {
		return respond(c, h.Log, err)
	}
	if err := h.Notify.PublishOTP(ctx, queue.OTPMessage{
		HallID: req.HallID, UserID: profile.UserID, Email: profile.Email, Code: code, ExpiresAt: exp,
	}); err != nil {
		h.Log.WithError(err).WithField("hall_id", req.HallID).Warn("otp not queued")
	}
	return c.JSON(http.StatusAccepted, accepted)
}

// VerifyOTP redeems a reset code and sets the new password.
func (h *AuthHandler) VerifyOTP(c echo.Context) error {
	var req otpVerifyReq
	if err := c.Bind(&req); err != nil {
		return invalidBody(c)
	}
	if err := validation.Struct(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	}
	userID := strings.ToLower(strings.TrimSpace(req.UserID))

	ctx, cancel := dbCtx(c)
	defer cancel()

	switch err := h.OTP.Redeem(ctx, req.HallID, userID, req.Code); {
	case errors.Is(err, otp.ErrInvalidCode):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, otp.ErrUnavailable):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "password reset is unavailable"})
	case err != nil:
		return respond(c, h.Log, err)
	}
	if err := h.setPassword(ctx, req.HallID, userID, req.NewPassword); err != nil {
		return respond(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}
