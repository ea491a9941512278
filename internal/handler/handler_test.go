package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/marriage-hall-ledger/internal/clock"
	"github.com/iliyamo/marriage-hall-ledger/internal/config"
	"github.com/iliyamo/marriage-hall-ledger/internal/database"
	"github.com/iliyamo/marriage-hall-ledger/internal/logging"
	"github.com/iliyamo/marriage-hall-ledger/internal/middleware"
	"github.com/iliyamo/marriage-hall-ledger/internal/otp"
	"github.com/iliyamo/marriage-hall-ledger/internal/queue"
	"github.com/iliyamo/marriage-hall-ledger/internal/repository"
	"github.com/iliyamo/marriage-hall-ledger/internal/service"
	"github.com/iliyamo/marriage-hall-ledger/internal/utils"
)

const secret = "handler-secret"

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func testConfig() config.Config {
	return config.Config{JWTSecret: secret, AccessTTLMin: 15, RefreshTTLDays: 7, BcryptCost: 4}
}

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func bearer(t *testing.T, hallID int64) string {
	t.Helper()
	at, err := utils.NewAccessToken(secret, hallID, "owner1", "owner", 5)
	require.NoError(t, err)
	return "Bearer " + at.Token
}

func do(e *echo.Echo, method, path, auth, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

var hallCols = []string{"hall_id", "name", "phone", "email", "address", "logo", "is_active", "due_date", "created_at", "updated_at"}

func hallRow(active bool) *sqlmock.Rows {
	return sqlmock.NewRows(hallCols).AddRow(int64(7), "Sri Mahal", "9000000000", "desk@mahal.in", "Madurai",
		nil, active, t0.AddDate(0, 3, 0), t0, t0)
}

var userCols = []string{"hall_id", "user_id", "password_hash", "role", "is_active", "created_at", "updated_at"}

func TestLogin(t *testing.T) {
	hash, err := utils.HashPassword("correct-horse", 4)
	require.NoError(t, err)

	cases := []struct {
		name     string
		password string
		hall     *sqlmock.Rows
		reason   string
		want     int
	}{
		{name: "ok", password: "correct-horse", hall: hallRow(true), want: http.StatusOK},
		{name: "wrong password", password: "nope-nope", want: http.StatusUnauthorized},
		{name: "blocked hall", password: "correct-horse", hall: hallRow(false), reason: "unpaid dues", want: http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db, mock := newMock(t)
			h := &AuthHandler{
				Cfg:    testConfig(),
				Users:  repository.NewUserRepo(db),
				Tokens: repository.NewTokenRepo(db),
				Halls:  repository.NewHallRepo(db),
				Log:    logging.Discard(),
			}
			e := echo.New()
			e.POST("/v1/auth/login", h.Login)

			mock.ExpectQuery("FROM users WHERE hall_id=\\? AND user_id=\\?").WithArgs(int64(7), "owner1").
				WillReturnRows(sqlmock.NewRows(userCols).AddRow(int64(7), "owner1", hash, "owner", true, t0, t0))
			if tc.hall != nil {
				mock.ExpectQuery("FROM halls WHERE hall_id = \\?").WithArgs(int64(7)).WillReturnRows(tc.hall)
			}
			if tc.reason != "" {
				mock.ExpectQuery("SELECT reason FROM hall_blocks").WithArgs(int64(7)).
					WillReturnRows(sqlmock.NewRows([]string{"reason"}).AddRow(tc.reason))
			}
			if tc.want == http.StatusOK {
				mock.ExpectExec("INSERT INTO refresh_tokens").WillReturnResult(sqlmock.NewResult(1, 1))
			}

			rec := do(e, http.MethodPost, "/v1/auth/login", "",
				`{"hall_id":7,"user_id":"Owner1","password":"`+tc.password+`"}`)
			assert.Equal(t, tc.want, rec.Code, rec.Body.String())
			body := decode(t, rec)
			switch tc.want {
			case http.StatusOK:
				access := body["access"].(map[string]any)
				claims, err := utils.ParseAccessToken(secret, access["token"].(string))
				require.NoError(t, err)
				assert.Equal(t, int64(7), claims.HallID)
				assert.Equal(t, "owner1", claims.Subject)
			case http.StatusForbidden:
				assert.Equal(t, tc.reason, body["reason"])
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestLoginUnknownUser(t *testing.T) {
	db, mock := newMock(t)
	h := &AuthHandler{Cfg: testConfig(), Users: repository.NewUserRepo(db), Log: logging.Discard()}
	e := echo.New()
	e.POST("/v1/auth/login", h.Login)

	mock.ExpectQuery("FROM users").WillReturnRows(sqlmock.NewRows(userCols))
	rec := do(e, http.MethodPost, "/v1/auth/login", "", `{"hall_id":7,"user_id":"ghost","password":"whatever1"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(e, http.MethodPost, "/v1/auth/login", "", `{"hall_id":0,"user_id":"ghost","password":"whatever1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRefreshRechecksHallAndAccount(t *testing.T) {
	const raw = "refresh-raw-token"
	hash := utils.HashRefreshRaw(raw)

	cases := []struct {
		name       string
		hall       *sqlmock.Rows
		userActive bool
		reason     string
		want       int
	}{
		{name: "ok", hall: hallRow(true), userActive: true, want: http.StatusOK},
		{name: "hall blocked after login", hall: hallRow(false), userActive: true, reason: "unpaid dues", want: http.StatusForbidden},
		{name: "account disabled after login", hall: hallRow(true), userActive: false, want: http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db, mock := newMock(t)
			h := &AuthHandler{
				Cfg:    testConfig(),
				Users:  repository.NewUserRepo(db),
				Tokens: repository.NewTokenRepo(db),
				Halls:  repository.NewHallRepo(db),
				Log:    logging.Discard(),
			}
			e := echo.New()
			e.POST("/v1/auth/refresh", h.Refresh)

			mock.ExpectQuery("FROM refresh_tokens WHERE token_hash=\\?").WithArgs(hash).
				WillReturnRows(sqlmock.NewRows([]string{"hall_id", "user_id", "expires_at", "revoked_at"}).
					AddRow(int64(7), "owner1", time.Now().Add(time.Hour), nil))
			mock.ExpectExec("UPDATE refresh_tokens SET revoked_at=NOW\\(\\) WHERE token_hash=\\?").WithArgs(hash).
				WillReturnResult(sqlmock.NewResult(0, 1))
			mock.ExpectQuery("FROM users WHERE hall_id=\\? AND user_id=\\?").WithArgs(int64(7), "owner1").
				WillReturnRows(sqlmock.NewRows(userCols).AddRow(int64(7), "owner1", "x", "owner", tc.userActive, t0, t0))
			mock.ExpectQuery("FROM halls WHERE hall_id = \\?").WithArgs(int64(7)).WillReturnRows(tc.hall)
			if tc.reason != "" {
				mock.ExpectQuery("SELECT reason FROM hall_blocks").WithArgs(int64(7)).
					WillReturnRows(sqlmock.NewRows([]string{"reason"}).AddRow(tc.reason))
			}
			if tc.want == http.StatusOK {
				mock.ExpectExec("INSERT INTO refresh_tokens").WillReturnResult(sqlmock.NewResult(1, 1))
			}

			rec := do(e, http.MethodPost, "/v1/auth/refresh", "", `{"refresh_token":"`+raw+`"}`)
			assert.Equal(t, tc.want, rec.Code, rec.Body.String())
			body := decode(t, rec)
			switch {
			case tc.want == http.StatusOK:
				assert.Contains(t, body, "access")
			case tc.reason != "":
				assert.Equal(t, "hall is blocked", body["error"])
				assert.Equal(t, tc.reason, body["reason"])
			default:
				assert.Equal(t, "account disabled", body["error"])
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

type fakeNotify struct{ got []queue.OTPMessage }

func (f *fakeNotify) PublishOTP(_ context.Context, m queue.OTPMessage) error {
	f.got = append(f.got, m)
	return nil
}

func TestPasswordResetByOTP(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	db, mock := newMock(t)
	notify := &fakeNotify{}
	h := &AuthHandler{
		Cfg:    testConfig(),
		Users:  repository.NewUserRepo(db),
		Tokens: repository.NewTokenRepo(db),
		OTP:    otp.NewStore(rdb, time.Minute),
		Notify: notify,
		Log:    logging.Discard(),
	}
	e := echo.New()
	e.POST("/v1/auth/otp", h.RequestOTP)
	e.POST("/v1/auth/otp/verify", h.VerifyOTP)

	adminCols := []string{"hall_id", "user_id", "name", "designation", "phone", "email"}
	mock.ExpectQuery("FROM admins").WithArgs(int64(7), "owner1").
		WillReturnRows(sqlmock.NewRows(adminCols).AddRow(int64(7), "owner1", "Meena", "Manager", "9000000000", "meena@mahal.in"))

	rec := do(e, http.MethodPost, "/v1/auth/otp", "", `{"hall_id":7,"user_id":"owner1"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, notify.got, 1)
	assert.Equal(t, "meena@mahal.in", notify.got[0].Email)
	code := notify.got[0].Code

	rec = do(e, http.MethodPost, "/v1/auth/otp/verify", "", `{"hall_id":7,"user_id":"owner1","code":"000000x","new_password":"brand-new-pass"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	mock.ExpectExec("UPDATE users SET password_hash").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE refresh_tokens SET revoked_at").WithArgs(int64(7), "owner1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	rec = do(e, http.MethodPost, "/v1/auth/otp/verify", "",
		`{"hall_id":7,"user_id":"owner1","code":"`+code+`","new_password":"brand-new-pass"}`)
	assert.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	// the code is single use
	rec = do(e, http.MethodPost, "/v1/auth/otp/verify", "",
		`{"hall_id":7,"user_id":"owner1","code":"`+code+`","new_password":"brand-new-pass"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRequestOTPUnknownAccount(t *testing.T) {
	db, mock := newMock(t)
	notify := &fakeNotify{}
	h := &AuthHandler{Users: repository.NewUserRepo(db), OTP: otp.NewStore(nil, 0), Notify: notify, Log: logging.Discard()}
	e := echo.New()
	e.POST("/v1/auth/otp", h.RequestOTP)

	mock.ExpectQuery("FROM admins").WillReturnRows(sqlmock.NewRows([]string{"hall_id"}))
	rec := do(e, http.MethodPost, "/v1/auth/otp", "", `{"hall_id":7,"user_id":"ghost"}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Empty(t, notify.got)
}

func bookingRoutes(t *testing.T) (*echo.Echo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock := newMock(t)
	repos := service.NewRepos(db)
	h := &BookingHandler{
		Bookings: repos.Bookings,
		Svc: service.NewBookingService(database.NewTxRunner(db, logging.Discard(), 0), repos, nil,
			clock.NewFakeClock(t0), logging.Discard()),
		Log: logging.Discard(),
	}
	e := echo.New()
	g := e.Group("/v1/bookings/:hallId", middleware.JWTAuth(secret), middleware.RequireHallAccess())
	g.GET("", h.List)
	g.GET("/:bookingId", h.Get)
	g.GET("/month/:year/:month", h.ByMonth)
	g.POST("", h.Create)
	return e, mock
}

func TestBookingReads(t *testing.T) {
	e, mock := bookingRoutes(t)
	auth := bearer(t, 7)

	rec := do(e, http.MethodGet, "/v1/bookings/7/month/2026/13", auth, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(e, http.MethodGet, "/v1/bookings/8", auth, "")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	mock.ExpectQuery("FROM bookings WHERE hall_id = \\? AND booking_id = \\?").WithArgs(int64(7), int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"hall_id"}))
	rec = do(e, http.MethodGet, "/v1/bookings/7/42", auth, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "booking not found", decode(t, rec)["error"])

	mock.ExpectQuery("FROM bookings WHERE hall_id = \\?").WithArgs(int64(7)).
		WillReturnRows(sqlmock.NewRows([]string{"hall_id"}))
	rec = do(e, http.MethodGet, "/v1/bookings/7", auth, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{}, decode(t, rec)["items"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateBookingRejectsBadInput(t *testing.T) {
	e, mock := bookingRoutes(t)
	auth := bearer(t, 7)

	rec := do(e, http.MethodPost, "/v1/bookings/7", auth, `{"function_date":"10-05-2026"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// advance above rent fails validation before any query runs
	rec = do(e, http.MethodPost, "/v1/bookings/7", auth, `{
		"function_date":"2026-05-10",
		"alloted_datetime_from":"2026-05-10T10:00:00Z",
		"alloted_datetime_to":"2026-05-10T14:00:00Z",
		"name":"Ravi","phone":"9000000000","event_type":"wedding",
		"rent":10000,"advance":20000}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec)["error"], "rent")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentStatusForeignHall(t *testing.T) {
	db, mock := newMock(t)
	repos := service.NewRepos(db)
	h := &AppPaymentHandler{Payments: repos.Payments, Log: logging.Discard()}
	e := echo.New()
	e.POST("/v1/app-payment/status/:paymentId", h.UpdateStatus, middleware.JWTAuth(secret))

	cols := []string{"id", "hall_id", "base_amount", "amount", "transaction_id", "period_start", "period_end", "status", "created_at", "paid_at"}
	mock.ExpectQuery("FROM app_payments WHERE id = \\?").WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows(cols).AddRow(int64(3), int64(9), int64(1000000), int64(1180000), nil,
			t0, t0.AddDate(1, 0, 0), "PENDING", t0, nil))

	rec := do(e, http.MethodPost, "/v1/app-payment/status/3", bearer(t, 7), `{"status":"COMPLETED"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCalendarRangeValidation(t *testing.T) {
	h := &CalendarHandler{
		Svc:   service.NewCalendarService(service.Repos{}, logging.Discard()),
		Clock: clock.NewFakeClock(t0),
		Log:   logging.Discard(),
	}
	e := echo.New()
	e.GET("/v1/calendar/:hallId", h.Calendar)

	rec := do(e, http.MethodGet, "/v1/calendar/7?from=2026-05-10&to=2026-05-01", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(e, http.MethodGet, "/v1/calendar/7?from=2026-01-01&to=2026-12-31", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(e, http.MethodGet, "/v1/calendar/7?from=yesterday", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid from", decode(t, rec)["error"])
}

func TestRespondMapsErrors(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{&service.Error{Kind: service.ErrConflict, Message: "slot taken"}, http.StatusConflict},
		{&service.Error{Kind: service.ErrInvalidInput, Message: "bad"}, http.StatusBadRequest},
		{&service.Error{Kind: service.ErrNotFound, Message: "gone"}, http.StatusNotFound},
		{repository.ErrHallNotFound, http.StatusNotFound},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		e := echo.New()
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
		require.NoError(t, respond(c, logging.Discard(), tc.err))
		assert.Equal(t, tc.want, rec.Code, tc.err.Error())
	}
}

type pinger struct{ err error }

func (p pinger) PingContext(context.Context) error { return p.err }

func TestHealth(t *testing.T) {
	e := echo.New()
	e.GET("/ok", Health(pinger{}))
	e.GET("/down", Health(pinger{err: errors.New("refused")}))

	assert.Equal(t, http.StatusOK, do(e, http.MethodGet, "/ok", "", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(e, http.MethodGet, "/down", "", "").Code)
}
