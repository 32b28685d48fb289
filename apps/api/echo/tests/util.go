package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	echoapi "github.com/trezcool/edumart/apps/api/echo"
	testutil "github.com/trezcool/edumart/tests"
)

type env struct {
	app *testutil.App
	srv *echoapi.Server
}

// setup serves a fresh in-memory app. The admin identity is registered up front.
func setup(t *testing.T) *env {
	t.Helper()
	app := testutil.NewApp(t)
	app.CreateAdmin(t)

	srv := echoapi.NewServer(echoapi.ServerDeps{
		Conf:       app.Conf,
		Logger:     app.Logger,
		Identities: app.Identities,
		Accounts:   app.Accounts,
		Catalog:    app.Catalog,
		Checkout:   app.Checkout,
		Sessions:   app.Sessions,
		Validate:   app.Validate,
		Translator: app.Translator,
		Metrics:    app.Metrics,
		Gatherer:   app.Registry,
	})

	events, unsubscribe := app.Identities.Subscribe()
	ctx, cancel := context.WithCancel(context.Background())
	go app.Sessions.Watch(ctx, events)

	t.Cleanup(func() {
		cancel()
		unsubscribe()
		_ = srv.Close()
	})
	return &env{app: app, srv: srv}
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

func (e *env) do(method, path, token string, data ...[]byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, data...)
	e.srv.ServeHTTP(rec, req)
	return rec
}

func (e *env) login(t *testing.T, email, password string) echoapi.LoginResponse {
	t.Helper()
	rec := e.do(http.MethodPost, "/v1/accounts/login", "",
		marchallObj(t, echoapi.LoginRequest{Email: email, Password: password}))
	if rec.Code != http.StatusOK {
		t.Fatalf("login(%s) failed: %d %s", email, rec.Code, rec.Body.String())
	}
	var res echoapi.LoginResponse
	unmarchall(t, rec, &res)
	return res
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

func unmarchall(t *testing.T, rec *httptest.ResponseRecorder, obj interface{}) {
	if err := json.Unmarshal(rec.Body.Bytes(), obj); err != nil {
		t.Fatalf("unmarchall(%s): %v", rec.Body.String(), err)
	}
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
