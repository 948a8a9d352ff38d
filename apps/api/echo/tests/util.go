package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/shala/apps/api/echo"
	"github.com/trezcool/shala/core"
	"github.com/trezcool/shala/core/attendance"
	"github.com/trezcool/shala/core/identity"
	"github.com/trezcool/shala/core/notice"
	"github.com/trezcool/shala/core/notify"
	"github.com/trezcool/shala/core/report"
	"github.com/trezcool/shala/storage/database/dummy"
	"github.com/trezcool/shala/tests"
)

var (
	errMissingToken = httpErr{Error: "missing or malformed jwt"}

	today = time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)
)

type fixture struct {
	app        *Server
	db         *dummydb.DB
	sink       *testutil.Sink
	logger     *testutil.Logger
	conf       *core.Config
	translator ut.Translator
	svcs       Services
}

func setup(t *testing.T) *fixture {
	testutil.FreezeTime(t, today)

	f := &fixture{
		db:         testutil.PrepareDB(t),
		sink:       new(testutil.Sink),
		logger:     testutil.NewLogger(t),
		conf:       core.NewTestConfig(),
		translator: core.NewTranslator(),
	}

	composer, err := notify.NewComposer(f.conf)
	require.NoError(t, err)
	bus := notify.NewSyncEventBus(f.logger, notify.SinkHandler(composer, f.sink))
	validate := validator.New()
	core.InitValidators(validate, f.translator)

	attendanceRepo := dummydb.NewAttendanceRepository(f.db)
	studentRepo := dummydb.NewStudentRepository(f.db)
	f.svcs = Services{
		Attendance: attendance.NewService(attendanceRepo, studentRepo, bus, validate, f.logger, f.conf),
		Report:     report.NewService(attendanceRepo, f.conf),
		Notice:     notice.NewService(dummydb.NewNoticeRepository(f.db), studentRepo, bus, validate, f.conf),
	}
	f.app = NewServer(f.conf, f.logger, f.translator, f.svcs)

	testutil.CreateStudent(t, f.db, "s1", "Amani", "5", "A", 1, "+254700000001")
	testutil.CreateStudent(t, f.db, "s2", "Baraka", "5", "A", 2, "+254700000002")
	testutil.CreateStudent(t, f.db, "s3", "Chausiku", "5", "B", 1, "")
	testutil.CreateStudent(t, f.db, "s4", "Dalila", "6", "A", 1, "+254700000004")
	return f
}

func (f *fixture) do(req *http.Request, rec *httptest.ResponseRecorder) {
	f.app.ServeHTTP(rec, req)
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func getToken(t *testing.T, conf *core.Config, p identity.Principal) string {
	token, err := GenerateToken(NewClaims(p, conf), conf)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if j1 == nil || j2 == nil {
		return false, nil
	}
	if _, ok := j1.([]interface{}); !ok {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, f *fixture, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			f.do(req, rec)
			checkCodeAndData(t, tt, rec)
		})
	}
}
