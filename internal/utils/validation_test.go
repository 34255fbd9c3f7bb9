package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

type signupRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

func bind(t *testing.T, body string) (*httptest.ResponseRecorder, bool, signupRequest) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/signup", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	var req signupRequest
	ok := BindAndValidate(c, &req)
	return w, ok, req
}

func TestBindAndValidate(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		w, ok, req := bind(t, `{"email":"a@example.com","password":"long-enough"}`)
		if !ok || req.Email != "a@example.com" {
			t.Fatalf("expected bind to succeed, got ok=%v body=%s", ok, w.Body.String())
		}
	})

	t.Run("binding rules", func(t *testing.T) {
		w, ok, _ := bind(t, `{"email":"not-an-email","password":"hunter2"}`)
		if ok {
			t.Fatal("expected bind to fail")
		}
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", w.Code)
		}
		var resp ResponseData
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		for _, want := range []string{"Email failed on email", "Password failed on min=8"} {
			if !strings.Contains(resp.Error, want) {
				t.Errorf("error %q does not mention %q", resp.Error, want)
			}
		}
		if strings.Contains(resp.Error, "hunter2") || strings.Contains(resp.Error, "not-an-email") {
			t.Errorf("error echoes submitted values: %q", resp.Error)
		}
	})

	t.Run("malformed", func(t *testing.T) {
		w, ok, _ := bind(t, `{"email":`)
		if ok || !strings.Contains(w.Body.String(), "malformed request body") {
			t.Fatalf("expected malformed body error, got ok=%v body=%s", ok, w.Body.String())
		}
	})
}
