package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sehatbridge/sehatauth"
	"github.com/sehatbridge/sehatauth/intake"
	"github.com/sehatbridge/sehatauth/middleware"
	"github.com/sehatbridge/sehatauth/notify"
	"github.com/sehatbridge/sehatauth/password"
)

const testSecret = "httpapi-test-secret-0123456789abcdef"

type outbox struct {
	mu   sync.Mutex
	msgs []notify.OTPMessage
	fail error
}

func (o *outbox) SendOTP(_ context.Context, msg notify.OTPMessage) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.fail != nil {
		return o.fail
	}
	o.msgs = append(o.msgs, msg)
	return nil
}

func (o *outbox) lastCode(t *testing.T) string {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	require.NotEmpty(t, o.msgs, "no reset code delivered")
	return o.msgs[len(o.msgs)-1].Code
}

type recordingReporter struct {
	mu  sync.Mutex
	ops []string
}

func (r *recordingReporter) Report(op string, _ error, _ map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, op)
}

func (r *recordingReporter) Flush(time.Duration) bool { return true }

func (r *recordingReporter) reported() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ops...)
}

type testServer struct {
	app      *fiber.App
	engine   *sehatauth.Engine
	mr       *miniredis.Miniredis
	outbox   *outbox
	reporter *recordingReporter
}

type serverOption func(*Options)

func newTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := sehatauth.DefaultConfig()
	cfg.JWT.PrivateKey = []byte(testSecret)
	cfg.Password.Argon2 = password.Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

	box := &outbox{}
	engine, err := sehatauth.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithIntakeRepository(intake.NewMemoryRepository()).
		WithNotifier(box).
		Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	reporter := &recordingReporter{}
	o := Options{
		Engine:   engine,
		Logger:   zerolog.Nop(),
		Reporter: reporter,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &testServer{
		app:      New(o),
		engine:   engine,
		mr:       mr,
		outbox:   box,
		reporter: reporter,
	}
}

type response struct {
	status int
	body   map[string]any
	raw    string
}

func (s *testServer) do(t *testing.T, method, path string, body any, headers map[string]string) response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	out := response{status: resp.StatusCode, raw: string(raw)}
	if strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(raw, &out.body))
	}
	return out
}

func hospitalBody(email, pw string) sehatauth.RegisterRequest {
	return sehatauth.RegisterRequest{
		Kind:     sehatauth.KindHospital,
		Email:    email,
		Password: pw,
		Hospital: &sehatauth.HospitalProfile{
			Name:              "City Care",
			Phone:             "9876543210",
			Departments:       []string{"OPD"},
			AvailableServices: []string{"Emergency"},
			Address: sehatauth.Address{
				Street:     "12 MG Road",
				City:       "Pune",
				State:      "MH",
				PostalCode: "411001",
			},
		},
	}
}

func loginBody(kind sehatauth.AccountKind, email, pw string) map[string]string {
	return map[string]string{"type": string(kind), "email": email, "password": pw}
}

func TestHospitalPasswordRecoveryOverHTTP(t *testing.T) {
	s := newTestServer(t)
	const email = "admin@citycare.example.in"

	res := s.do(t, http.MethodPost, "/auth/register", hospitalBody(email, "Str0ng!pw"), nil)
	require.Equal(t, fiber.StatusCreated, res.status, res.raw)
	assert.Equal(t, "Hospital registered successfully", res.body["message"])
	assert.NotContains(t, res.raw, "Str0ng!pw")

	res = s.do(t, http.MethodPost, "/auth/login", loginBody(sehatauth.KindHospital, email, "Str0ng!pw"), nil)
	require.Equal(t, fiber.StatusOK, res.status, res.raw)
	assert.Equal(t, "Hospital logged in successfully", res.body["message"])
	token, _ := res.body["token"].(string)
	require.NotEmpty(t, token)

	res = s.do(t, http.MethodGet, "/auth/profile", nil, map[string]string{middleware.HeaderAuthToken: token})
	require.Equal(t, fiber.StatusOK, res.status, res.raw)
	assert.Equal(t, email, res.body["email"])

	res = s.do(t, http.MethodPost, "/auth/forgot-password", map[string]string{"type": "hospital", "email": email}, nil)
	require.Equal(t, fiber.StatusOK, res.status, res.raw)
	assert.Equal(t, "OTP sent to email successfully", res.body["message"])
	code := s.outbox.lastCode(t)

	res = s.do(t, http.MethodPost, "/auth/verify-otp", map[string]string{"email": email, "otp": "000000x"}, nil)
	assert.Equal(t, fiber.StatusBadRequest, res.status)

	res = s.do(t, http.MethodPost, "/auth/verify-otp", map[string]string{"email": email, "otp": code}, nil)
	require.Equal(t, fiber.StatusOK, res.status, res.raw)
	assert.Equal(t, "OTP verified successfully", res.body["message"])

	res = s.do(t, http.MethodPost, "/auth/reset-password", map[string]string{
		"type": "hospital", "email": email, "newPassword": "N3w!secret", "otp": code,
	}, nil)
	require.Equal(t, fiber.StatusOK, res.status, res.raw)
	assert.Equal(t, "Password updated successfully", res.body["message"])

	res = s.do(t, http.MethodPost, "/auth/login", loginBody(sehatauth.KindHospital, email, "Str0ng!pw"), nil)
	assert.Equal(t, fiber.StatusBadRequest, res.status)
	assert.Equal(t, "Invalid email or password", res.body["message"])

	res = s.do(t, http.MethodPost, "/auth/login", loginBody(sehatauth.KindHospital, email, "N3w!secret"), nil)
	assert.Equal(t, fiber.StatusOK, res.status)
}

func TestRegisterFailures(t *testing.T) {
	s := newTestServer(t)

	res := s.do(t, http.MethodPost, "/auth/register", hospitalBody("dup@example.org", "Passw0rd-one"), nil)
	require.Equal(t, fiber.StatusCreated, res.status, res.raw)

	res = s.do(t, http.MethodPost, "/auth/register", hospitalBody("DUP@example.org", "Passw0rd-two"), nil)
	assert.Equal(t, fiber.StatusBadRequest, res.status)
	assert.Equal(t, "Email already registered", res.body["message"])

	noPin := hospitalBody("nopin@example.org", "Passw0rd!")
	noPin.Hospital.Address.PostalCode = ""
	res = s.do(t, http.MethodPost, "/auth/register", noPin, nil)
	assert.Equal(t, fiber.StatusBadRequest, res.status)
	assert.Equal(t, "Validation error", res.body["message"])
	assert.NotEmpty(t, res.body["errors"])

	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader("{not json"))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestLoginRejectsUnknownKind(t *testing.T) {
	s := newTestServer(t)

	res := s.do(t, http.MethodPost, "/auth/login", loginBody("admin", "a@example.org", "pw"), nil)
	assert.Equal(t, fiber.StatusBadRequest, res.status)
	assert.Equal(t, "Invalid type", res.body["message"])
}

func TestForgotPasswordFailures(t *testing.T) {
	s := newTestServer(t)

	res := s.do(t, http.MethodPost, "/auth/forgot-password", map[string]string{"type": "user", "email": "ghost@example.org"}, nil)
	assert.Equal(t, fiber.StatusNotFound, res.status)
	assert.Equal(t, "Email not found", res.body["message"])

	res = s.do(t, http.MethodPost, "/auth/register", hospitalBody("mailfail@example.org", "Passw0rd!"), nil)
	require.Equal(t, fiber.StatusCreated, res.status, res.raw)

	s.outbox.fail = errors.New("smtp down")
	res = s.do(t, http.MethodPost, "/auth/forgot-password", map[string]string{"type": "hospital", "email": "mailfail@example.org"}, nil)
	assert.Equal(t, fiber.StatusInternalServerError, res.status)
	assert.Equal(t, "Error sending OTP email", res.body["message"])
	assert.Contains(t, s.reporter.reported(), "forgot_password")
}

func TestStoreUnavailableIsReported(t *testing.T) {
	s := newTestServer(t)
	s.mr.SetError("ERR backend offline")

	res := s.do(t, http.MethodPost, "/auth/register", hospitalBody("down@example.org", "Passw0rd!"), nil)
	assert.Equal(t, fiber.StatusServiceUnavailable, res.status)
	assert.Equal(t, "Service temporarily unavailable", res.body["message"])
	assert.Contains(t, s.reporter.reported(), "register")
}

func TestExternalSignInRoute(t *testing.T) {
	profile := sehatauth.ProviderProfile{
		Provider:    "google",
		Subject:     "1098765",
		DisplayName: "Ravi Kumar",
		Emails:      []string{"ravi@example.org"},
	}

	t.Run("absent without gateway secret", func(t *testing.T) {
		s := newTestServer(t)
		res := s.do(t, http.MethodPost, "/auth/external/signin", profile, nil)
		assert.Equal(t, fiber.StatusNotFound, res.status)
	})

	t.Run("guarded by gateway secret", func(t *testing.T) {
		s := newTestServer(t, func(o *Options) { o.GatewaySecret = "gw-secret" })

		res := s.do(t, http.MethodPost, "/auth/external/signin", profile, nil)
		assert.Equal(t, fiber.StatusUnauthorized, res.status)

		headers := map[string]string{middleware.HeaderGatewaySecret: "gw-secret"}
		res = s.do(t, http.MethodPost, "/auth/external/signin", profile, headers)
		require.Equal(t, fiber.StatusOK, res.status, res.raw)
		assert.NotEmpty(t, res.body["token"])
		assert.Equal(t, true, res.body["created"])

		res = s.do(t, http.MethodPost, "/auth/external/signin", sehatauth.ProviderProfile{Provider: "google", Subject: "1"}, headers)
		assert.Equal(t, fiber.StatusBadRequest, res.status)
		assert.Equal(t, "No email found in provider profile.", res.body["message"])
	})
}

func TestOPDRegistration(t *testing.T) {
	s := newTestServer(t)

	intakeReq := map[string]any{
		"name":       "Meera Shah",
		"email":      "Meera@Example.org",
		"age":        34,
		"gender":     "Female",
		"department": "Cardiology",
		"report":     []string{"ecg.pdf"},
	}
	res := s.do(t, http.MethodPost, "/opd/register", intakeReq, nil)
	require.Equal(t, fiber.StatusCreated, res.status, res.raw)
	assert.Equal(t, true, res.body["success"])
	assert.Equal(t, "REG-1", res.body["registrationId"])

	res = s.do(t, http.MethodPost, "/opd/register", map[string]any{"name": "No Age", "email": "x@example.org"}, nil)
	assert.Equal(t, fiber.StatusBadRequest, res.status)

	res = s.do(t, http.MethodPost, "/opd/register", intakeReq, nil)
	require.Equal(t, fiber.StatusCreated, res.status, res.raw)
	assert.Equal(t, "REG-2", res.body["registrationId"])

	res = s.do(t, http.MethodGet, "/opd/profile/meera@example.org", nil, nil)
	assert.Equal(t, fiber.StatusUnauthorized, res.status)

	reg := s.do(t, http.MethodPost, "/auth/register", hospitalBody("desk@citycare.example.in", "Passw0rd!"), nil)
	require.Equal(t, fiber.StatusCreated, reg.status, reg.raw)
	login := s.do(t, http.MethodPost, "/auth/login", loginBody(sehatauth.KindHospital, "desk@citycare.example.in", "Passw0rd!"), nil)
	require.Equal(t, fiber.StatusOK, login.status, login.raw)
	bearer := map[string]string{"Authorization": "Bearer " + login.body["token"].(string)}

	res = s.do(t, http.MethodGet, "/opd/profile/meera@example.org", nil, bearer)
	require.Equal(t, fiber.StatusOK, res.status, res.raw)
	data, _ := res.body["data"].(map[string]any)
	assert.Equal(t, "REG-2", data["registrationId"])

	res = s.do(t, http.MethodGet, "/opd/profile/nobody@example.org", nil, bearer)
	assert.Equal(t, fiber.StatusNotFound, res.status)
	assert.Equal(t, "No registration found for this user.", res.body["message"])
}

func TestOperationalRoutes(t *testing.T) {
	healthy := true
	s := newTestServer(t, func(o *Options) {
		o.Ready = func(context.Context) error {
			if healthy {
				return nil
			}
			return errors.New("redis unreachable")
		}
	})

	res := s.do(t, http.MethodGet, "/ping", nil, nil)
	assert.Equal(t, fiber.StatusOK, res.status)
	assert.Equal(t, "pong", res.body["message"])

	res = s.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, fiber.StatusOK, res.status)

	healthy = false
	res = s.do(t, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, fiber.StatusServiceUnavailable, res.status)

	s.do(t, http.MethodPost, "/auth/login", loginBody(sehatauth.KindUser, "nobody@example.org", "pw"), nil)
	res = s.do(t, http.MethodGet, "/metrics", nil, nil)
	assert.Equal(t, fiber.StatusOK, res.status)
	assert.Contains(t, res.raw, "sehatauth_login_failure_total 1")
}
