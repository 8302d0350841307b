package app

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/iliyamo/studio-booking/internal/config"
	"github.com/iliyamo/studio-booking/internal/database"
	"github.com/iliyamo/studio-booking/internal/logging"
	"github.com/iliyamo/studio-booking/internal/payment"
	"github.com/iliyamo/studio-booking/internal/testfixtures"
)

const webhookSecret = "whsec_app"

type client struct {
	t   *testing.T
	db  *sql.DB
	srv *Server
}

func newClient(t *testing.T) (*client, *Server) {
	t.Helper()
	return newClientWithProvider(t, nil)
}

// newClientWithProvider is newClient with an explicit checkout provider;
// nil keeps the offline one.
func newClientWithProvider(t *testing.T, provider payment.Provider) (*client, *Server) {
	t.Helper()
	db := testfixtures.DB(t)
	srv, err := New(Options{
		Config: config.Config{
			JWTSecret:            "app-secret",
			AccessTTLMin:         15,
			RefreshTTLDays:       1,
			BcryptCost:           4,
			FrontendURL:          "http://front.example",
			PaymentCurrency:      "eur",
			PaymentWebhookSecret: webhookSecret,
			TokenPrice:           "1.00",
			MaxTokensPerPurchase: 100,
			WebhookToleranceSec:  300,
		},
		DB:       db,
		Dialect:  database.SQLite,
		Provider: provider,
		Log:      logging.Discard(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &client{t: t, db: db, srv: srv}, srv
}

func (c *client) do(method, path, token string, body any, header map[string]string) (int, map[string]any) {
	c.t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case []byte:
		buf.Write(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			c.t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	c.srv.Echo.ServeHTTP(rec, req)

	out := map[string]any{}
	if rec.Body.Len() > 0 && rec.Header().Get("Content-Type") != "text/plain; charset=UTF-8" {
		_ = json.Unmarshal(rec.Body.Bytes(), &out)
	}
	return rec.Code, out
}

func (c *client) login(email, password string) string {
	c.t.Helper()
	code, body := c.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": email, "password": password}, nil)
	if code != http.StatusOK {
		c.t.Fatalf("login %s: status %d body %v", email, code, body)
	}
	return body["access"].(map[string]any)["token"].(string)
}

func TestHealth(t *testing.T) {
	c, _ := newClient(t)
	if code, _ := c.do(http.MethodGet, "/healthz", "", nil, nil); code != http.StatusOK {
		t.Fatalf("/healthz: %d", code)
	}
	code, body := c.do(http.MethodGet, "/api/health", "", nil, nil)
	if code != http.StatusOK || body["database"] != "up" {
		t.Fatalf("/api/health: %d %v", code, body)
	}
}

func TestRegisterAndMe(t *testing.T) {
	c, _ := newClient(t)
	code, body := c.do(http.MethodPost, "/api/auth/register", "", map[string]any{
		"name": "Ana", "email": "ana@example.com", "password": "secret1",
	}, nil)
	if code != http.StatusCreated {
		t.Fatalf("register: %d %v", code, body)
	}
	if body["role"] != "USER" {
		t.Fatalf("expected USER role, got %v", body["role"])
	}
	token := body["access"].(map[string]any)["token"].(string)

	code, body = c.do(http.MethodGet, "/api/auth/me", token, nil, nil)
	if code != http.StatusOK || body["user"].(map[string]any)["email"] != "ana@example.com" {
		t.Fatalf("me: %d %v", code, body)
	}
	if code, _ := c.do(http.MethodGet, "/api/auth/me", "", nil, nil); code != http.StatusUnauthorized {
		t.Fatalf("me without token: %d", code)
	}

	code, body = c.do(http.MethodPost, "/api/auth/register", "", map[string]any{
		"name": "Ana", "email": "ana@example.com", "password": "secret1",
	}, nil)
	if code != http.StatusConflict || body["error"] != "conflict" {
		t.Fatalf("duplicate register: %d %v", code, body)
	}
	code, body = c.do(http.MethodPost, "/api/auth/register", "", map[string]any{"email": "x@example.com"}, nil)
	if code != http.StatusBadRequest || body["error"] != "invalid_input" {
		t.Fatalf("invalid register: %d %v", code, body)
	}
	code, body = c.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "ana@example.com", "password": "nope"}, nil)
	if code != http.StatusUnauthorized || body["error"] != "invalid_credentials" {
		t.Fatalf("bad login: %d %v", code, body)
	}
}

func TestProviderOutageHidesTransportDetail(t *testing.T) {
	down := httptest.NewServer(http.NotFoundHandler())
	providerURL := down.URL
	down.Close()

	provider := payment.NewClient(providerURL, "sk_test", time.Second, logging.Discard())
	c, _ := newClientWithProvider(t, provider)
	member := testfixtures.User(t, c.db, "member", false)
	token := c.login(member.Email, testfixtures.Password)

	code, body := c.do(http.MethodPost, "/api/payment/create-session", token, map[string]int{"tokens": 2}, nil)
	if code != http.StatusServiceUnavailable || body["error"] != "provider_unavailable" {
		t.Fatalf("create-session with provider down: %d %v", code, body)
	}
	msg, _ := body["message"].(string)
	if msg != "payment provider unavailable, retry later" {
		t.Fatalf("unexpected message %q", msg)
	}
	if strings.Contains(msg, providerURL) || strings.Contains(msg, "dial") {
		t.Fatalf("message leaks transport detail: %q", msg)
	}
	var n int
	if err := c.db.QueryRow("SELECT COUNT(*) FROM payment_sessions").Scan(&n); err != nil || n != 0 {
		t.Fatalf("sessions after outage: %d, %v", n, err)
	}
}

func TestAdminRoutesCheckStoredFlag(t *testing.T) {
	c, _ := newClient(t)
	u := testfixtures.User(t, c.db, "promoted", false)
	token := c.login(u.Email, testfixtures.Password)

	if code, _ := c.do(http.MethodGet, "/api/auth", token, nil, nil); code != http.StatusForbidden {
		t.Fatalf("before promotion: %d", code)
	}
	if _, err := c.db.Exec("UPDATE users SET is_admin = 1 WHERE id = ?", u.ID); err != nil {
		t.Fatalf("promote: %v", err)
	}
	// The token was issued before the promotion; the stored flag decides.
	if code, body := c.do(http.MethodGet, "/api/auth", token, nil, nil); code != http.StatusOK {
		t.Fatalf("after promotion: %d %v", code, body)
	}
}

func TestBookingFlowOverHTTP(t *testing.T) {
	c, _ := newClient(t)
	admin := testfixtures.User(t, c.db, "admin", true)
	member := testfixtures.User(t, c.db, "member", false)
	adminToken := c.login(admin.Email, testfixtures.Password)
	memberToken := c.login(member.Email, testfixtures.Password)

	// Members cannot manage the catalog.
	classBody := map[string]any{
		"title": "Yoga", "description": "Flow", "date": "2030-01-10", "time": "18:00",
		"duration_min": 60, "location": "Room 1", "capacity": 1,
	}
	if code, body := c.do(http.MethodPost, "/api/classes", memberToken, classBody, nil); code != http.StatusForbidden {
		t.Fatalf("member create class: %d %v", code, body)
	}
	code, body := c.do(http.MethodPost, "/api/classes", adminToken, classBody, nil)
	if code != http.StatusCreated {
		t.Fatalf("admin create class: %d %v", code, body)
	}
	classID := uint64(body["id"].(float64))

	code, body = c.do(http.MethodGet, "/api/classes", "", nil, nil)
	if code != http.StatusOK || len(body["items"].([]any)) != 1 {
		t.Fatalf("list classes: %d %v", code, body)
	}

	// No tokens yet.
	code, body = c.do(http.MethodPost, "/api/bookings", memberToken, map[string]any{"classId": classID}, nil)
	if code != http.StatusBadRequest || body["error"] != "insufficient_funds" {
		t.Fatalf("booking without tokens: %d %v", code, body)
	}

	// Buy two tokens through the offline provider and a signed webhook.
	code, body = c.do(http.MethodPost, "/api/payment/create-session", memberToken, map[string]any{"tokens": 2}, nil)
	if code != http.StatusOK {
		t.Fatalf("create session: %d %v", code, body)
	}
	sessionID := body["session_id"].(string)
	event := []byte(fmt.Sprintf(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"id":%q,"payment_status":"paid"}}}`, sessionID))
	sig := map[string]string{payment.SignatureHeader: payment.Sign(event, webhookSecret, time.Now())}
	if code, body := c.do(http.MethodPost, "/api/payment/webhook", "", event, sig); code != http.StatusOK {
		t.Fatalf("webhook: %d %v", code, body)
	}
	if code, body := c.do(http.MethodPost, "/api/payment/webhook", "", event, map[string]string{payment.SignatureHeader: "t=1,v1=00"}); code != http.StatusBadRequest || body["error"] != "invalid_signature" {
		t.Fatalf("forged webhook: %d %v", code, body)
	}
	code, body = c.do(http.MethodGet, "/api/tokens/me", memberToken, nil, nil)
	if code != http.StatusOK || body["balance"].(float64) != 2 {
		t.Fatalf("tokens/me: %d %v", code, body)
	}
	code, body = c.do(http.MethodGet, "/api/payment/sessions/"+sessionID, memberToken, nil, nil)
	if code != http.StatusOK || body["status"] != "completed" {
		t.Fatalf("session status: %d %v", code, body)
	}

	code, body = c.do(http.MethodPost, "/api/bookings", memberToken, map[string]any{"classId": classID}, nil)
	if code != http.StatusCreated {
		t.Fatalf("booking: %d %v", code, body)
	}
	bookingID := uint64(body["id"].(float64))
	if code, body := c.do(http.MethodPost, "/api/bookings", memberToken, map[string]any{"classId": classID}, nil); code != http.StatusConflict || body["error"] != "already_booked" {
		t.Fatalf("second booking: %d %v", code, body)
	}
	if code, body := c.do(http.MethodPost, "/api/bookings", adminToken, map[string]any{"classId": classID}, nil); code != http.StatusConflict || body["error"] != "class_full" {
		t.Fatalf("full class: %d %v", code, body)
	}
	if code, body := c.do(http.MethodPost, "/api/bookings", memberToken, map[string]any{"classId": 9999}, nil); code != http.StatusNotFound {
		t.Fatalf("unknown class: %d %v", code, body)
	}
	if code, body := c.do(http.MethodPost, "/api/bookings", memberToken, map[string]any{}, nil); code != http.StatusBadRequest {
		t.Fatalf("missing classId: %d %v", code, body)
	}

	code, body = c.do(http.MethodGet, "/api/bookings/me", memberToken, nil, nil)
	if code != http.StatusOK || len(body["items"].([]any)) != 1 {
		t.Fatalf("bookings/me: %d %v", code, body)
	}
	if code, _ := c.do(http.MethodGet, "/api/bookings", memberToken, nil, nil); code != http.StatusForbidden {
		t.Fatalf("member list all bookings: %d", code)
	}
	if code, _ := c.do(http.MethodGet, "/api/bookings/all", adminToken, nil, nil); code != http.StatusOK {
		t.Fatalf("admin list all bookings: %d", code)
	}

	path := fmt.Sprintf("/api/bookings/%d", bookingID)
	if code, body := c.do(http.MethodDelete, path, memberToken, nil, nil); code != http.StatusOK {
		t.Fatalf("cancel: %d %v", code, body)
	}
	code, body = c.do(http.MethodGet, "/api/tokens/me", memberToken, nil, nil)
	if code != http.StatusOK || body["balance"].(float64) != 2 {
		t.Fatalf("balance after refund: %d %v", code, body)
	}

	code, body = c.do(http.MethodPost, "/api/tokens/use", memberToken, map[string]any{"amount": 5}, nil)
	if code != http.StatusBadRequest || body["error"] != "insufficient_funds" {
		t.Fatalf("overdraw: %d %v", code, body)
	}
	code, body = c.do(http.MethodPost, "/api/tokens/use", memberToken, map[string]any{"amount": 2}, nil)
	if code != http.StatusOK || body["balance"].(float64) != 0 {
		t.Fatalf("use: %d %v", code, body)
	}
	if code, _ := c.do(http.MethodGet, "/api/tokens/all", adminToken, nil, nil); code != http.StatusOK {
		t.Fatalf("tokens/all: %d", code)
	}
	if code, _ := c.do(http.MethodGet, "/api/auth/users", adminToken, nil, nil); code != http.StatusOK {
		t.Fatalf("auth/users: %d", code)
	}
	if code, body := c.do(http.MethodDelete, fmt.Sprintf("/api/classes/%d", classID), adminToken, nil, nil); code != http.StatusOK {
		t.Fatalf("delete class: %d %v", code, body)
	}
}
