package tests

import (
	"context"
	"net/http"
	"syscall"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/shala/apps/api/echo"
	"github.com/trezcool/shala/core"
	"github.com/trezcool/shala/core/attendance"
	"github.com/trezcool/shala/core/identity"
	"github.com/trezcool/shala/tests"
)

func TestServer_home(t *testing.T) {
	f := setup(t)

	req, rec := newRequest(http.MethodGet, "/")
	f.do(req, rec)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to Shala API!", rec.Body.String())
}

func TestServer_authentication(t *testing.T) {
	f := setup(t)

	otherConf := core.NewTestConfig()
	otherConf.SecretKey = "another-secret"

	expired := NewClaims(testutil.Principal("p1"), f.conf)
	expired.ExpiresAt = time.Now().Add(-time.Minute).Unix()
	expiredToken, err := GenerateToken(expired, f.conf)
	require.NoError(t, err)

	parent := testutil.Principal("u1")
	parent.Role = identity.Role("parent")
	noSchool := testutil.Principal("p2")
	noSchool.SchoolID = ""

	tests := []httpTest{
		{
			name:     "no token",
			method:   http.MethodGet,
			path:     "/v1/attendance/today",
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "token signed with another key",
			method:   http.MethodGet,
			path:     "/v1/attendance/today",
			token:    getToken(t, otherConf, testutil.Principal("p1")),
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, httpErr{Error: "invalid or expired jwt"}),
		},
		{
			name:     "expired token",
			method:   http.MethodGet,
			path:     "/v1/attendance/today",
			token:    expiredToken,
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, httpErr{Error: "invalid or expired jwt"}),
		},
		{
			name:     "unknown role",
			method:   http.MethodGet,
			path:     "/v1/attendance/today",
			token:    getToken(t, f.conf, parent),
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, httpErr{Error: "invalid token claims"}),
		},
		{
			name:     "no school",
			method:   http.MethodGet,
			path:     "/v1/attendance/today",
			token:    getToken(t, f.conf, noSchool),
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, httpErr{Error: "invalid token claims"}),
		},
		{
			name:     "valid token",
			method:   http.MethodGet,
			path:     "/v1/attendance/today",
			token:    getToken(t, f.conf, testutil.Principal("p1")),
			wantCode: http.StatusOK,
		},
	}
	runHTTPTests(t, f, tests)
}

func TestClaims_Principal(t *testing.T) {
	conf := core.NewTestConfig()
	p := testutil.Teacher("t1", "5", "A")

	token, err := GenerateToken(NewClaims(p, conf), conf)
	require.NoError(t, err)

	claims := new(Claims)
	_, err = jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(conf.SecretKey), nil
	})
	require.NoError(t, err)
	assert.Equal(t, p, claims.Principal())
	assert.Equal(t, conf.AppName, claims.Issuer)
}

type shutdownAttendanceSvc struct {
	attendance.Service
}

func (shutdownAttendanceSvc) DailySummary(context.Context, identity.Principal, core.Date) (attendance.Summary, error) {
	return attendance.Summary{}, core.NewShutdownError("integrity issue")
}

func TestServer_serverErrors(t *testing.T) {
	f := setup(t)
	f.svcs.Attendance = shutdownAttendanceSvc{}
	app := NewServer(f.conf, f.logger, f.translator, f.svcs)

	req, rec := newAuthRequest(http.MethodGet, "/v1/attendance/today", getToken(t, f.conf, testutil.Principal("p1")))
	app.ServeHTTP(rec, req)

	checkCodeAndData(t, httpTest{
		wantCode: http.StatusInternalServerError,
		wantData: marchallObj(t, httpErr{Error: http.StatusText(http.StatusInternalServerError)}),
	}, rec)
	assert.Equal(t, 1, f.logger.ErrorCount())

	select {
	case sig := <-app.ShutdownSignal():
		assert.Equal(t, syscall.SIGTERM, sig)
	case <-time.After(time.Second):
		t.Fatal("shutdown was not signaled")
	}
}
