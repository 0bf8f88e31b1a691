package echoapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"

	. "github.com/trezcool/elimu/apps/api/echo"
	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/catalog"
	"github.com/trezcool/elimu/core/grading"
	"github.com/trezcool/elimu/core/ledger"
	"github.com/trezcool/elimu/core/user"
	"github.com/trezcool/elimu/services/email"
	"github.com/trezcool/elimu/storage/database/sqlxrepo"
	"github.com/trezcool/elimu/testutil"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type env struct {
	app     Server
	conf    *core.Config
	usrRepo user.Repository
	catRepo catalog.Repository
	ledger  ledger.Service
	mail    *emailsvc.ConsoleServiceMock
}

func setup(t *testing.T) *env {
	conf := testutil.NewConfig()
	conf.Server.UploadDir = t.TempDir()
	logger := testutil.NewLogger()
	core.ParseEmailTemplates(conf, logger)

	// set up DB & repos
	db := testutil.PrepareDB(t)
	e := &env{
		conf:    conf,
		usrRepo: sqlxrepo.NewUserRepository(db),
		catRepo: sqlxrepo.NewCatalogRepository(db),
		ledger:  ledger.NewService(sqlxrepo.NewLedgerRepository(db)),
		mail:    emailsvc.NewConsoleServiceMock(conf, logger),
	}

	// set up services
	usrSvc := user.NewService(e.usrRepo)
	catalogSvc := catalog.NewService(e.catRepo, logger)
	gradingSvc := grading.NewService(catalogSvc, e.ledger, usrSvc, e.mail, logger)

	// set up server
	e.app = NewServer(
		&Options{
			Conf:       conf,
			Logger:     logger,
			Validate:   testutil.NewValidate(),
			Translator: core.NewTranslator(),
			UserSvc:    usrSvc,
			CatalogSvc: catalogSvc,
			GradingSvc: gradingSvc,
		},
	)
	return e
}

func (e *env) do(req *http.Request, rec *httptest.ResponseRecorder) {
	e.app.ServeHTTP(rec, req)
}

func (e *env) token(t *testing.T, usr user.User) string {
	return getToken(t, e.conf, usr)
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

func getToken(t *testing.T, conf *core.Config, usr user.User) string {
	token, err := GenerateToken(conf, GetUserClaims(conf, usr))
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

func unmarshallObj(t *testing.T, data []byte, obj interface{}) {
	if err := json.Unmarshal(data, obj); err != nil {
		t.Fatalf("unmarshallObj() failed: %v; data %s", err, data)
	}
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
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCode(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
	}
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	checkCode(t, tt, rec)
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

func runHTTPTests(t *testing.T, e *env, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			e.do(req, rec)
			checkCodeAndData(t, tt, rec)
		})
	}
}
