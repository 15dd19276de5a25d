package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/echofyteam/echofy-auth/internal/common"
	"github.com/echofyteam/echofy-auth/internal/logging"
	"github.com/echofyteam/echofy-auth/internal/server/auth"
	"github.com/echofyteam/echofy-auth/internal/server/models"
	"github.com/echofyteam/echofy-auth/internal/server/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newIssuer(t *testing.T) *auth.TokenIssuer {
	t.Helper()
	i, err := auth.NewTokenIssuer(auth.Config{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
	})
	require.NoError(t, err)
	return i
}

func accessTokenFor(t *testing.T, i *auth.TokenIssuer, p *models.Principal) string {
	t.Helper()
	tok, err := i.GenerateToken(p.Email, models.Claims{UserID: p.ID, Roles: p.Roles}, models.Access)
	require.NoError(t, err)
	return tok
}

type fakeSessions struct {
	mu sync.Mutex

	pair     *models.TokenPair
	signUp   *services.SignUpResult
	err      error
	calls    []string
	lastArgs []string
}

func (f *fakeSessions) record(op string, args ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, op)
	f.lastArgs = args
}

func (f *fakeSessions) SignIn(_ context.Context, identifier, password string) (*models.TokenPair, error) {
	f.record("SignIn", identifier, password)
	return f.pair, f.err
}

func (f *fakeSessions) SignUp(_ context.Context, email, password, confirm string) (*services.SignUpResult, error) {
	f.record("SignUp", email, password, confirm)
	return f.signUp, f.err
}

func (f *fakeSessions) SignOut(_ context.Context, token string) error {
	f.record("SignOut", token)
	return f.err
}

func (f *fakeSessions) Refresh(_ context.Context, token string) (*models.TokenPair, error) {
	f.record("Refresh", token)
	return f.pair, f.err
}

func (f *fakeSessions) ForgetPrincipal(_ context.Context, principalID string) (int64, error) {
	f.record("ForgetPrincipal", principalID)
	return 0, f.err
}

type fakeFinder struct {
	byIdentifier map[string]*models.Principal
	err          error
	calls        int
}

func (f *fakeFinder) FindPrincipalByIdentifier(_ context.Context, identifier string) (*models.Principal, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	p, ok := f.byIdentifier[identifier]
	if !ok {
		return nil, common.ErrPrincipalNotFound
	}
	return p, nil
}

func newRouter(t *testing.T, sessions *fakeSessions, finder *fakeFinder) (*gin.Engine, *auth.TokenIssuer) {
	t.Helper()
	issuer := newIssuer(t)
	authn := NewAuthenticator(issuer, finder, logging.Nop{})
	return NewRouter(NewHandler(sessions), authn, nil, logging.Nop{}), issuer
}

func do(r http.Handler, method, target, body string, header http.Header) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}
