package testutil

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestTestSessionIsLive(t *testing.T) {
	session := TestSession()
	if session.AccessToken == "" || session.User.ID == "" {
		t.Errorf("incomplete session: %+v", session)
	}
	if session.Expired(time.Now()) {
		t.Error("test session must not be expired")
	}
}

func TestMakeJSONRequest(t *testing.T) {
	req := MakeJSONRequest(t, http.MethodPost, "/deeplink", map[string]string{"url": "kodiq://feed"})
	if req.Header.Get("Content-Type") != "application/json" {
		t.Error("missing content type header")
	}
	if req.Body == nil {
		t.Error("missing request body")
	}
}

func TestAssertJSONResponse(t *testing.T) {
	rr := httptest.NewRecorder()
	rr.Body.WriteString(`{"status":"ok","result":{"phase":"splash"}}`)

	response := AssertJSONResponse(t, rr, "ok")
	if response["result"] == nil {
		t.Error("result not decoded")
	}
}

func TestWaitUntil(t *testing.T) {
	fired := false
	timer := time.AfterFunc(10*time.Millisecond, func() { fired = true })
	defer timer.Stop()

	WaitUntil(t, time.Second, func() bool { return fired }, "timer never fired")
}
