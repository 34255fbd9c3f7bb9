package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"medibook-server/internal/config"
	"medibook-server/internal/directory"
	"medibook-server/internal/notify"
	"medibook-server/internal/scheduling"
	"medibook-server/internal/testutil"
	"medibook-server/internal/utils"
)

const adminSecret = "let-me-in"

type fakeStorage struct {
	names []string
}

func (f *fakeStorage) Upload(_ context.Context, name, _ string, _ []byte) (string, error) {
	f.names = append(f.names, name)
	return "https://cdn.test/" + name, nil
}

type testServer struct {
	router  http.Handler
	storage *fakeStorage
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.OpenDB(t)
	logger := zerolog.Nop()
	dir := directory.New(db)
	now := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	engine := scheduling.NewEngine(db, dir,
		scheduling.WithClock(func() time.Time { return now }),
		scheduling.WithLocation(time.UTC),
	)
	storage := &fakeStorage{}

	router := NewRouter(&Services{
		Config: &config.Config{
			Origin:                  "http://localhost:3000",
			AdminRegistrationSecret: adminSecret,
			UploadMaxBytes:          1 << 20,
		},
		Logger:    logger,
		DB:        db,
		Directory: dir,
		Engine:    engine,
		Tokens:    utils.NewTokenService([]byte("0123456789abcdef0123456789abcdef"), time.Hour),
		Notifier:  notify.NewLogNotifier(logger),
		Storage:   storage,
	})
	return &testServer{router: router, storage: storage}
}

type envelope struct {
	Success bool            `json:"success"`
	Status  int             `json:"status"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}, headers ...string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

type session struct {
	Token string `json:"token"`
	User  struct {
		ID string `json:"id"`
	} `json:"user"`
}

func (s *testServer) register(t *testing.T, path, username string, extra map[string]interface{}, headers ...string) session {
	t.Helper()
	body := map[string]interface{}{
		"username":  username,
		"email":     username + "@example.com",
		"password":  "correct-horse",
		"firstName": strings.ToUpper(username[:1]) + username[1:],
		"lastName":  "Test",
	}
	for k, v := range extra {
		body[k] = v
	}
	w, env := s.do(t, http.MethodPost, APIBase+path, "", body, headers...)
	if w.Code != http.StatusCreated {
		t.Fatalf("register %s: status %d body %s", username, w.Code, w.Body.String())
	}
	var sess session
	if err := json.Unmarshal(env.Data, &sess); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	return sess
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	w, _ := s.do(t, http.MethodGet, "/health", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("health: %d %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"database":"UP"`) {
		t.Errorf("health body = %s", w.Body.String())
	}
}

func TestRegisterLoginAndProfile(t *testing.T) {
	s := newTestServer(t)
	sess := s.register(t, "/auth/register", "alice", nil)
	if sess.Token == "" || sess.User.ID == "" {
		t.Fatalf("empty session %+v", sess)
	}

	w, _ := s.do(t, http.MethodPost, APIBase+"/auth/register", "", map[string]string{
		"username": "alice", "email": "other@example.com", "password": "correct-horse",
	})
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate username: status %d", w.Code)
	}

	w, _ = s.do(t, http.MethodPost, APIBase+"/auth/login", "", map[string]string{"login": "alice", "password": "wrong-password"})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("bad password: status %d", w.Code)
	}

	w, env := s.do(t, http.MethodPost, APIBase+"/auth/login", "", map[string]string{"email": "alice@example.com", "password": "correct-horse"})
	if w.Code != http.StatusOK {
		t.Fatalf("login: status %d %s", w.Code, w.Body.String())
	}
	var login session
	if err := json.Unmarshal(env.Data, &login); err != nil || login.Token == "" {
		t.Fatalf("login session: %v %+v", err, login)
	}

	w, _ = s.do(t, http.MethodGet, APIBase+"/profile", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("profile without token: status %d", w.Code)
	}
	w, _ = s.do(t, http.MethodGet, APIBase+"/profile", login.Token, nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"username":"alice"`) {
		t.Errorf("profile: status %d %s", w.Code, w.Body.String())
	}
	if strings.Contains(w.Body.String(), "password") {
		t.Errorf("profile leaks password: %s", w.Body.String())
	}
}

func TestAdminRoutesAreGated(t *testing.T) {
	s := newTestServer(t)
	user := s.register(t, "/auth/register", "bob", nil)

	w, _ := s.do(t, http.MethodGet, APIBase+"/admin/users", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("anonymous admin call: status %d", w.Code)
	}
	w, _ = s.do(t, http.MethodGet, APIBase+"/admin/users", user.Token, nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("user admin call: status %d", w.Code)
	}

	w, _ = s.do(t, http.MethodPost, APIBase+"/auth/admin/register", "", map[string]string{
		"username": "root", "email": "root@example.com", "password": "correct-horse",
	}, "X-Admin-Secret", "guess")
	if w.Code != http.StatusForbidden {
		t.Errorf("admin register with wrong secret: status %d", w.Code)
	}

	admin := s.register(t, "/auth/admin/register", "root", nil, "X-Admin-Secret", adminSecret)
	w, env := s.do(t, http.MethodGet, APIBase+"/admin/users", admin.Token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("admin list users: status %d %s", w.Code, w.Body.String())
	}
	var users []map[string]interface{}
	if err := json.Unmarshal(env.Data, &users); err != nil {
		t.Fatalf("decode users: %v", err)
	}
	if len(users) != 2 {
		t.Errorf("got %d users, want 2", len(users))
	}

	w, _ = s.do(t, http.MethodPut, APIBase+"/admin/users/"+admin.User.ID+"/status", admin.Token, map[string]string{"status": "SUSPENDED"})
	if w.Code == http.StatusOK {
		t.Errorf("admin suspended themselves")
	}
}

func TestDoctorDiscoveryIsPublic(t *testing.T) {
	s := newTestServer(t)
	doc := s.register(t, "/auth/doctor/register", "house", map[string]interface{}{
		"specialization": "Cardiology", "consultationFee": 150,
	})

	w, _ := s.do(t, http.MethodGet, APIBase+"/public/doctors/specializations", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Cardiology") {
		t.Errorf("specializations: status %d %s", w.Code, w.Body.String())
	}

	w, env := s.do(t, http.MethodGet, APIBase+"/public/doctors/"+doc.User.ID+"/slots?date=2025-05-02", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("public slots: status %d %s", w.Code, w.Body.String())
	}
	var slots struct {
		Slots []string `json:"slots"`
	}
	if err := json.Unmarshal(env.Data, &slots); err != nil {
		t.Fatalf("decode slots: %v", err)
	}
	if len(slots.Slots) != 16 || slots.Slots[0] != "09:00" {
		t.Errorf("slots = %v", slots.Slots)
	}

	w, _ = s.do(t, http.MethodGet, APIBase+"/doctors/search?specialization=cardio", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("authenticated discovery without token: status %d", w.Code)
	}
}

func TestBookingFlow(t *testing.T) {
	s := newTestServer(t)
	doc := s.register(t, "/auth/doctor/register", "house", map[string]interface{}{"specialization": "Diagnostics"})
	pat := s.register(t, "/auth/register", "pat", nil)
	other := s.register(t, "/auth/register", "mallory", nil)

	booking := map[string]string{"doctorId": doc.User.ID, "date": "2025-05-02", "time": "10:00", "symptoms": "cough"}
	w, env := s.do(t, http.MethodPost, APIBase+"/appointments", pat.Token, booking)
	if w.Code != http.StatusCreated {
		t.Fatalf("book: status %d %s", w.Code, w.Body.String())
	}
	var appt struct {
		ID         string `json:"id"`
		Status     string `json:"status"`
		DoctorName string `json:"doctorName"`
	}
	if err := json.Unmarshal(env.Data, &appt); err != nil {
		t.Fatalf("decode appointment: %v", err)
	}
	if appt.Status != "SCHEDULED" || appt.DoctorName != "House Test" {
		t.Errorf("appointment = %+v", appt)
	}

	w, _ = s.do(t, http.MethodPost, APIBase+"/appointments", other.Token, booking)
	if w.Code != http.StatusConflict {
		t.Errorf("double booking: status %d", w.Code)
	}

	w, _ = s.do(t, http.MethodPost, APIBase+"/appointments", other.Token, map[string]string{
		"doctorId": doc.User.ID, "patientId": pat.User.ID, "date": "2025-05-02", "time": "11:00",
	})
	if w.Code != http.StatusForbidden {
		t.Errorf("booking for someone else: status %d", w.Code)
	}

	w, _ = s.do(t, http.MethodGet, APIBase+"/appointments/"+appt.ID, other.Token, nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("stranger reads appointment: status %d", w.Code)
	}

	w, _ = s.do(t, http.MethodGet, APIBase+"/appointments/doctor", pat.Token, nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("patient lists doctor appointments: status %d", w.Code)
	}
	w, env = s.do(t, http.MethodGet, APIBase+"/appointments/doctor", doc.Token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("doctor appointments: status %d", w.Code)
	}
	var list []map[string]interface{}
	if err := json.Unmarshal(env.Data, &list); err != nil || len(list) != 1 {
		t.Errorf("doctor appointments = %s (%v)", env.Data, err)
	}

	w, _ = s.do(t, http.MethodPut, APIBase+"/appointments/"+appt.ID+"/status", pat.Token, map[string]string{"status": "COMPLETED"})
	if w.Code != http.StatusForbidden {
		t.Errorf("patient completes appointment: status %d", w.Code)
	}

	w, _ = s.do(t, http.MethodPut, APIBase+"/appointments/"+appt.ID+"/cancel", pat.Token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("cancel: status %d %s", w.Code, w.Body.String())
	}
	w, _ = s.do(t, http.MethodPut, APIBase+"/appointments/"+appt.ID+"/status", doc.Token, map[string]string{"status": "COMPLETED"})
	if w.Code != http.StatusConflict {
		t.Errorf("complete cancelled appointment: status %d", w.Code)
	}

	w, env = s.do(t, http.MethodPost, APIBase+"/appointments", other.Token, booking)
	if w.Code != http.StatusCreated {
		t.Fatalf("rebook cancelled slot: status %d %s", w.Code, w.Body.String())
	}
	var rebooked struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(env.Data, &rebooked); err != nil {
		t.Fatalf("decode appointment: %v", err)
	}

	rate := APIBase + "/doctors/" + doc.User.ID + "/rating"
	w, _ = s.do(t, http.MethodPost, rate, other.Token, map[string]int{"rating": 5})
	if w.Code != http.StatusForbidden {
		t.Errorf("rating before a completed visit: status %d", w.Code)
	}
	w, _ = s.do(t, http.MethodPut, APIBase+"/appointments/"+rebooked.ID+"/status", doc.Token, map[string]string{"status": "COMPLETED"})
	if w.Code != http.StatusOK {
		t.Fatalf("complete: status %d %s", w.Code, w.Body.String())
	}
	w, _ = s.do(t, http.MethodPost, rate, other.Token, map[string]int{"rating": 5})
	if w.Code != http.StatusOK {
		t.Fatalf("rate: status %d %s", w.Code, w.Body.String())
	}
	w, _ = s.do(t, http.MethodPost, rate, other.Token, map[string]int{"rating": 1})
	if w.Code != http.StatusConflict {
		t.Errorf("second rating: status %d", w.Code)
	}
}

func multipartBody(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func TestUploadImage(t *testing.T) {
	s := newTestServer(t)
	png := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 32)...)

	body, contentType := multipartBody(t, "scan.png", png)
	req := httptest.NewRequest(http.MethodPost, APIBase+"/upload/image", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("upload: status %d %s", w.Code, w.Body.String())
	}
	if len(s.storage.names) != 1 || !strings.HasPrefix(s.storage.names[0], "images/") || !strings.HasSuffix(s.storage.names[0], ".png") {
		t.Errorf("stored names = %v", s.storage.names)
	}
	if !strings.Contains(w.Body.String(), "https://cdn.test/images/") {
		t.Errorf("response = %s", w.Body.String())
	}

	body, contentType = multipartBody(t, "notes.txt", []byte("plain text is not an image"))
	req = httptest.NewRequest(http.MethodPost, APIBase+"/upload/image", body)
	req.Header.Set("Content-Type", contentType)
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	if w.Code != http.StatusUnsupportedMediaType {
		t.Errorf("text upload: status %d", w.Code)
	}
}
