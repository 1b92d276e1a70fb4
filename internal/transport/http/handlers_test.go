package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/opentrusty/orgkeeper/internal/apperr"
	"github.com/opentrusty/orgkeeper/internal/audit"
	"github.com/opentrusty/orgkeeper/internal/identity"
	"github.com/opentrusty/orgkeeper/internal/store/memory"
	"github.com/opentrusty/orgkeeper/internal/tenant"
	"github.com/opentrusty/orgkeeper/internal/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	router http.Handler
	store  *memory.Store
	tokens *token.Service
}

func newTestServer(t *testing.T, health HealthFunc) *testServer {
	t.Helper()
	store, err := memory.New()
	require.NoError(t, err)

	auditLogger := audit.NewSlogLoggerWith(slog.New(slog.NewTextHandler(io.Discard, nil)))
	hasher := identity.NewPasswordHasher(1024, 1, 1, 16, 32)
	tokens, err := token.NewService(token.Config{Secret: "test-secret"})
	require.NoError(t, err)

	tenants := tenant.NewService(store.Organizations(), store.Admins(), store.Namespaces(), hasher, auditLogger)
	auth := identity.NewService(store.Admins(), tenants, hasher, tokens, token.DefaultTTL, auditLogger)

	rl := NewRateLimiter(1000, 1000)
	t.Cleanup(rl.Stop)

	h := NewHandler(auth, tenants, tokens, nil, health)
	return &testServer{router: NewRouter(h, rl, 5*time.Second), store: store, tokens: tokens}
}

func (s *testServer) do(t *testing.T, method, target string, body any, bearer string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) login(t *testing.T, email, password string) string {
	t.Helper()
	w := s.do(t, http.MethodPost, "/admin/login", LoginRequest{Email: email, Password: password}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res identity.LoginResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	return res.AccessToken
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

// TestPurpose: Validates liveness and store health endpoints.
// Scope: Unit Test
// Security: Availability signalling
// Expected: / and /health answer 200; /health answers 503 when the store is unreachable.
// Test Case ID: HTTP-01
func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t, nil)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/", nil, "").Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/health", nil, "").Code)

	down := newTestServer(t, func(ctx context.Context) error {
		return apperr.Wrap(apperr.KindStoreUnavailable, "", errors.New("connection refused"))
	})
	w := down.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.NotContains(t, w.Body.String(), "connection refused")
}

// TestPurpose: Validates organization creation over HTTP including uniqueness and input validation.
// Scope: Unit Test
// Security: Input validation, organization name uniqueness
// Expected: 201 with the namespace, 409 for a duplicate name, 400 for an invalid name or body.
// Test Case ID: HTTP-02
func TestCreateOrganization(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodPost, "/org/create", CreateOrganizationRequest{
		OrganizationName: "acme", Email: "admin@acme.io", Password: "pw123",
	}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := decodeBody(t, w)
	assert.Equal(t, "acme", body["organization_name"])
	assert.Equal(t, "org_acme", body["collection_name"])
	assert.Equal(t, "admin@acme.io", body["admin_email"])
	assert.NotContains(t, w.Body.String(), "pw123")

	w = s.do(t, http.MethodPost, "/org/create", CreateOrganizationRequest{
		OrganizationName: "acme", Email: "other@acme.io", Password: "pw"}, "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPost, "/org/create", CreateOrganizationRequest{
		OrganizationName: "bad name!", Email: "a@b.io", Password: "pw"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeBody(t, w)["error"], "organization name")

	req := httptest.NewRequest(http.MethodPost, "/org/create", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// TestPurpose: Validates reading an organization by name.
// Scope: Unit Test
// Security: No credential material in responses
// Expected: 200 with admin email, 404 for unknown names, 400 without the query parameter.
// Test Case ID: HTTP-03
func TestGetOrganization(t *testing.T) {
	s := newTestServer(t, nil)
	s.do(t, http.MethodPost, "/org/create", CreateOrganizationRequest{
		OrganizationName: "acme", Email: "admin@acme.io", Password: "pw123"}, "")

	w := s.do(t, http.MethodGet, "/org/get?organization_name=acme", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "admin@acme.io", body["admin_email"])
	assert.NotContains(t, w.Body.String(), "argon2")

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/org/get?organization_name=nope", nil, "").Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/org/get", nil, "").Code)
}

// TestPurpose: Validates admin login and the uniform failure response.
// Scope: Unit Test
// Security: Credential verification, no user enumeration (CWE-204)
// Expected: A valid login returns a bearer token bound to the organization; wrong password and unknown email give the same 401.
// Test Case ID: HTTP-04
func TestLogin(t *testing.T) {
	s := newTestServer(t, nil)
	s.do(t, http.MethodPost, "/org/create", CreateOrganizationRequest{
		OrganizationName: "acme", Email: "admin@acme.io", Password: "pw123"}, "")

	tok := s.login(t, "admin@acme.io", "pw123")
	claims, err := s.tokens.Validate(tok)
	require.NoError(t, err)
	assert.Equal(t, "acme", claims.Organization)
	assert.Equal(t, "admin@acme.io", claims.Subject)

	wrong := s.do(t, http.MethodPost, "/admin/login", LoginRequest{Email: "admin@acme.io", Password: "nope"}, "")
	unknown := s.do(t, http.MethodPost, "/admin/login", LoginRequest{Email: "ghost@acme.io", Password: "pw123"}, "")
	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.Equal(t, wrong.Body.String(), unknown.Body.String())
}

// TestPurpose: Validates that update requires a bearer token and acts on the token's organization.
// Scope: Unit Test
// Security: Authentication, tenant binding from token only
// Expected: 401 without or with a bad token; with a valid token the organization is renamed and its namespace follows.
// Test Case ID: HTTP-05
func TestUpdateOrganization(t *testing.T) {
	s := newTestServer(t, nil)
	s.do(t, http.MethodPost, "/org/create", CreateOrganizationRequest{
		OrganizationName: "acme", Email: "admin@acme.io", Password: "pw123"}, "")

	update := UpdateOrganizationRequest{OrganizationName: "acme2"}
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodPut, "/org/update", update, "").Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodPut, "/org/update", update, "garbage").Code)

	tok := s.login(t, "admin@acme.io", "pw123")
	newPassword := "pw456"
	update.Password = &newPassword
	w := s.do(t, http.MethodPut, "/org/update", update, tok)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeBody(t, w)
	assert.Equal(t, "updated", body["status"])
	assert.Equal(t, "acme2", body["new_name"])
	assert.Equal(t, "org_acme2", body["collection_name"])
	assert.Equal(t, true, body["namespace_renamed"])

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/org/get?organization_name=acme", nil, "").Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/org/get?organization_name=acme2", nil, "").Code)

	tok = s.login(t, "admin@acme.io", newPassword)
	claims, err := s.tokens.Validate(tok)
	require.NoError(t, err)
	assert.Equal(t, "acme2", claims.Organization)

	assert.Equal(t, http.StatusBadRequest,
		s.do(t, http.MethodPut, "/org/update", UpdateOrganizationRequest{}, tok).Code)
}

// TestPurpose: Validates that an admin may delete only their own organization.
// Scope: Unit Test
// Security: Cross-tenant deletion prevention (CWE-639)
// Expected: 403 for another organization, 200 with a status message for the own organization, after which it is gone.
// Test Case ID: HTTP-06
func TestDeleteOrganization(t *testing.T) {
	s := newTestServer(t, nil)
	s.do(t, http.MethodPost, "/org/create", CreateOrganizationRequest{
		OrganizationName: "acme", Email: "admin@acme.io", Password: "pw123"}, "")
	s.do(t, http.MethodPost, "/org/create", CreateOrganizationRequest{
		OrganizationName: "globex", Email: "admin@globex.io", Password: "pw123"}, "")

	tok := s.login(t, "admin@acme.io", "pw123")

	w := s.do(t, http.MethodDelete, "/org/delete?organization_name=globex", nil, tok)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/org/get?organization_name=globex", nil, "").Code)

	w = s.do(t, http.MethodDelete, "/org/delete?organization_name=acme", nil, tok)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Organization and data deleted", decodeBody(t, w)["status"])
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/org/get?organization_name=acme", nil, "").Code)

	exists, err := s.store.Namespaces().Exists(context.Background(), "org_acme")
	require.NoError(t, err)
	assert.False(t, exists)
}

// TestPurpose: Validates that expired tokens are rejected with a distinct message.
// Scope: Unit Test
// Security: Token expiry enforcement
// Expected: 401 with "token expired".
// Test Case ID: HTTP-07
func TestBearerAuth_ExpiredToken(t *testing.T) {
	s := newTestServer(t, nil)
	tok, err := s.tokens.Issue("admin@acme.io", "org-1", "acme", -time.Minute)
	require.NoError(t, err)

	w := s.do(t, http.MethodDelete, "/org/delete?organization_name=acme", nil, tok)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "token expired", decodeBody(t, w)["error"])
}

// TestPurpose: Validates that a token issued before its organization was renamed cannot reach a new organization registered under the old name.
// Scope: Unit Test
// Security: Cross-tenant access via name reuse (CWE-639)
// Expected: 403 for update and delete of the newcomer, which stays intact; the holder can still delete its own organization under the new name.
// Test Case ID: HTTP-08
func TestStaleTokenAfterRenameAndRecreate(t *testing.T) {
	s := newTestServer(t, nil)
	s.do(t, http.MethodPost, "/org/create", CreateOrganizationRequest{
		OrganizationName: "acme", Email: "admin@acme.io", Password: "pw123"}, "")
	tok := s.login(t, "admin@acme.io", "pw123")

	w := s.do(t, http.MethodPut, "/org/update", UpdateOrganizationRequest{OrganizationName: "acme-old"}, tok)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = s.do(t, http.MethodPost, "/org/create", CreateOrganizationRequest{
		OrganizationName: "acme", Email: "someone@else.io", Password: "pw456"}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	hijack := "hijacked"
	w = s.do(t, http.MethodPut, "/org/update", UpdateOrganizationRequest{OrganizationName: "acme", Password: &hijack}, tok)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = s.do(t, http.MethodDelete, "/org/delete?organization_name=acme", nil, tok)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(t, http.MethodGet, "/org/get?organization_name=acme", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "someone@else.io", decodeBody(t, w)["admin_email"])
	s.login(t, "someone@else.io", "pw456")

	w = s.do(t, http.MethodDelete, "/org/delete?organization_name=acme-old", nil, tok)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

// TestPurpose: Validates that BearerAuth exposes every token claim the handlers act on.
// Scope: Unit Test
// Security: Caller identity comes from the token only
// Expected: organization name, organization ID and subject are available from the request context.
// Test Case ID: HTTP-09
func TestBearerAuth_StoresCaller(t *testing.T) {
	s := newTestServer(t, nil)
	tok, err := s.tokens.Issue("admin@acme.io", "org-1", "acme", time.Minute)
	require.NoError(t, err)

	var caller tenant.Caller
	h := BearerAuth(s.tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller = callerFrom(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	h.ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, tenant.Caller{OrgID: "org-1", OrgName: "acme", Subject: "admin@acme.io"}, caller)
	assert.Empty(t, GetSubject(context.Background()))
}

func TestStatusFor(t *testing.T) {
	cases := map[apperr.Kind]int{
		apperr.KindNotFound:           http.StatusNotFound,
		apperr.KindConflict:           http.StatusConflict,
		apperr.KindInvalid:            http.StatusBadRequest,
		apperr.KindInvalidCredentials: http.StatusUnauthorized,
		apperr.KindInvalidToken:       http.StatusUnauthorized,
		apperr.KindExpiredToken:       http.StatusUnauthorized,
		apperr.KindForbidden:          http.StatusForbidden,
		apperr.KindStoreUnavailable:   http.StatusServiceUnavailable,
		apperr.KindCorruptCredential:  http.StatusInternalServerError,
		apperr.KindInternal:           http.StatusInternalServerError,
	}
	for kind, want := range cases {
		assert.Equal(t, want, statusFor(kind), kind)
	}
}

func TestPublicMessage(t *testing.T) {
	assert.Equal(t, tenant.ErrInvalidName.Msg, publicMessage(apperr.E("tenant.create.validate", tenant.ErrInvalidName)))
	assert.Equal(t, "internal server error", publicMessage(errors.New("dial tcp 10.0.0.1: secret detail")))
	assert.Equal(t, "organization not found", publicMessage(apperr.E("tenant.get.lookup", tenant.ErrOrganizationNotFound)))
}
