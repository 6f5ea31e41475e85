package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testClient struct {
	t   *testing.T
	app *App
}

func newTestClient(t *testing.T) *testClient {
	t.Helper()
	cfg := DefaultConfig()
	cfg.DatabaseDriver = DriverMemory
	cfg.JWTSecretKey = "test-secret"
	require.NoError(t, cfg.Validate())

	app, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { app.Close() })
	return &testClient{t: t, app: app}
}

func (c *testClient) do(method, path, token, body string) *httptest.ResponseRecorder {
	c.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	c.app.Router.ServeHTTP(rec, req)
	return rec
}

// signUp registers a user and returns a session token.
func (c *testClient) signUp(name, email string) string {
	c.t.Helper()
	rec := c.do(http.MethodPost, "/api/v1/users", "", `{"name":"`+name+`","email":"`+email+`","password":"123456"}`)
	require.Equal(c.t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = c.do(http.MethodPost, "/api/v1/sessions", "", `{"email":"`+email+`","password":"123456"}`)
	require.Equal(c.t, http.StatusOK, rec.Code, rec.Body.String())

	var session struct {
		Token string `json:"token"`
	}
	require.NoError(c.t, json.Unmarshal(rec.Body.Bytes(), &session))
	return session.Token
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) any {
	t.Helper()
	var body any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return scrub(body)
}

// scrub replaces values that change between runs.
func scrub(v any) any {
	switch v := v.(type) {
	case map[string]any:
		for key, value := range v {
			switch s, isString := value.(string); {
			case key == "created_at":
				v[key] = "CREATED_AT"
			case key == "token":
				v[key] = "TOKEN"
			case key == "id" && isString && s != "":
				v[key] = "MOVEMENT_ID"
			default:
				v[key] = scrub(value)
			}
		}
	case []any:
		for i := range v {
			v[i] = scrub(v[i])
		}
	}
	return v
}

func TestAPI_Golden(t *testing.T) {
	c := newTestClient(t)
	g := goldie.New(t)

	rec := c.do(http.MethodPost, "/api/v1/users", "", `{"name":"Alice","email":" Alice@Email.com","password":"123456"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.NotEmpty(t, rec.Result().Cookies())
	g.AssertJson(t, "register", decodeBody(t, rec))

	rec = c.do(http.MethodPost, "/api/v1/sessions", "", `{"email":"alice@email.com","password":"123456"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	alice := strings.Trim(mustField(t, rec, "token"), `"`)
	g.AssertJson(t, "session", decodeBody(t, rec))

	c.signUp("Bob", "bob@email.com")

	rec = c.do(http.MethodPost, "/api/v1/statements/deposit", alice, `{"amount":2000,"description":"salary"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = c.do(http.MethodPost, "/api/v1/statements/withdraw", alice, `{"amount":"1000","description":"groceries"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = c.do(http.MethodPost, "/api/v1/statements/transfers/2", alice, `{"amount":120.50,"description":"rent share"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	g.AssertJson(t, "transfer", decodeBody(t, rec))

	rec = c.do(http.MethodGet, "/api/v1/statements/balance", alice, "")
	require.Equal(t, http.StatusOK, rec.Code)
	g.AssertJson(t, "statement", decodeBody(t, rec))
}

func TestAPI_Errors(t *testing.T) {
	c := newTestClient(t)
	alice := c.signUp("Alice", "alice@email.com")
	bob := c.signUp("Bob", "bob@email.com")

	rec := c.do(http.MethodPost, "/api/v1/statements/deposit", alice, `{"amount":100}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var deposit struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &deposit))

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		body   string
		status int
		error  string
	}{
		{"no token", http.MethodGet, "/api/v1/profile", "", "", http.StatusUnauthorized, "unauthorized"},
		{"bad token", http.MethodGet, "/api/v1/profile", "garbage", "", http.StatusUnauthorized, "unauthorized"},
		{"duplicate email", http.MethodPost, "/api/v1/users", "", `{"name":"A","email":"ALICE@email.com","password":"x"}`, http.StatusConflict, "user already exists"},
		{"missing name", http.MethodPost, "/api/v1/users", "", `{"email":"c@email.com","password":"x"}`, http.StatusBadRequest, "invalid input"},
		{"malformed json", http.MethodPost, "/api/v1/users", "", `{"name":`, http.StatusBadRequest, "invalid input"},
		{"wrong password", http.MethodPost, "/api/v1/sessions", "", `{"email":"alice@email.com","password":"nope"}`, http.StatusUnauthorized, "incorrect email or password"},
		{"unknown email", http.MethodPost, "/api/v1/sessions", "", `{"email":"zed@email.com","password":"123456"}`, http.StatusUnauthorized, "incorrect email or password"},
		{"zero amount", http.MethodPost, "/api/v1/statements/deposit", alice, `{"amount":0}`, http.StatusBadRequest, "invalid amount"},
		{"negative amount", http.MethodPost, "/api/v1/statements/withdraw", alice, `{"amount":-5}`, http.StatusBadRequest, "invalid amount"},
		{"sub-cent amount", http.MethodPost, "/api/v1/statements/deposit", alice, `{"amount":"0.001"}`, http.StatusBadRequest, "invalid amount"},
		{"amount over limit", http.MethodPost, "/api/v1/statements/deposit", alice, `{"amount":"1000000000000000000"}`, http.StatusBadRequest, "invalid amount"},
		{"text amount", http.MethodPost, "/api/v1/statements/deposit", alice, `{"amount":"ten"}`, http.StatusBadRequest, "invalid amount"},
		{"missing amount", http.MethodPost, "/api/v1/statements/deposit", alice, `{"description":"x"}`, http.StatusBadRequest, "invalid amount"},
		{"overdraw", http.MethodPost, "/api/v1/statements/withdraw", alice, `{"amount":100.01}`, http.StatusUnprocessableEntity, "insufficient funds"},
		{"transfer to unknown user", http.MethodPost, "/api/v1/statements/transfers/999", alice, `{"amount":1}`, http.StatusNotFound, "user not found"},
		{"transfer to self", http.MethodPost, "/api/v1/statements/transfers/1", alice, `{"amount":1}`, http.StatusBadRequest, "invalid movement"},
		{"transfer to bad id", http.MethodPost, "/api/v1/statements/transfers/bob", alice, `{"amount":1}`, http.StatusBadRequest, "invalid input"},
		{"statement bad id", http.MethodGet, "/api/v1/statements/not-a-uuid", alice, "", http.StatusBadRequest, "invalid input"},
		{"statement of another user", http.MethodGet, "/api/v1/statements/" + deposit.ID, bob, "", http.StatusNotFound, "statement not found"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := c.do(tc.method, tc.path, tc.token, tc.body)
			assert.Equal(t, tc.status, rec.Code)
			assert.JSONEq(t, `{"error":"`+tc.error+`"}`, rec.Body.String())
		})
	}

	rec = c.do(http.MethodGet, "/api/v1/statements/balance", alice, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `"100"`, mustField(t, rec, "balance"))
}

func TestAPI_ProfileAndMovement(t *testing.T) {
	c := newTestClient(t)
	alice := c.signUp("Alice", "alice@email.com")

	rec := c.do(http.MethodGet, "/api/v1/profile", alice, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `"alice@email.com"`, mustField(t, rec, "email"))
	assert.NotContains(t, rec.Body.String(), "password")

	rec = c.do(http.MethodPost, "/api/v1/statements/deposit", alice, `{"amount":"15.75","description":"refund"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = c.do(http.MethodGet, "/api/v1/statements/"+created.ID, alice, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `"deposit"`, mustField(t, rec, "type"))
	assert.JSONEq(t, `"15.75"`, mustField(t, rec, "amount"))
}

func TestAPI_FreshStatement(t *testing.T) {
	c := newTestClient(t)
	alice := c.signUp("Alice", "alice@email.com")

	rec := c.do(http.MethodGet, "/api/v1/statements/balance", alice, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"balance":"0","statement":[]}`, rec.Body.String())
}

func TestHealth(t *testing.T) {
	c := newTestClient(t)

	rec := c.do(http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func mustField(t *testing.T, rec *httptest.ResponseRecorder, field string) string {
	t.Helper()
	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	raw, ok := body[field]
	require.True(t, ok, "field %q missing from %s", field, rec.Body.String())
	return string(raw)
}
