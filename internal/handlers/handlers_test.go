// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.
package handlers_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"familybudget/internal/ai"
	"familybudget/internal/auth"
	"familybudget/internal/budget"
	"familybudget/internal/config"
	"familybudget/internal/db"
	"familybudget/internal/handlers"
	"familybudget/internal/ledger"
	"familybudget/internal/middleware"
	"familybudget/internal/models"
	"familybudget/internal/telemetry"

	"github.com/gin-gonic/gin"
)

const (
	testHealthEndpoint = "/api/health"
	headerContentType  = "Content-Type"
	testPassword       = "matkhau123"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubGenerator struct {
	response string
}

func (g *stubGenerator) Generate(context.Context, ai.Request) (string, error) {
	return g.response, nil
}

// testApp drives the full middleware chain with a small cookie jar.
type testApp struct {
	t       *testing.T
	router  *gin.Engine
	db      *db.Database
	cookies map[string]*http.Cookie
}

func newTestApp(t *testing.T, gen ai.Generator) *testApp {
	t.Helper()
	return newTestAppWithConfig(t, gen, nil)
}

func newTestAppWithConfig(t *testing.T, gen ai.Generator, configure func(*config.Config)) *testApp {
	t.Helper()
	database, err := db.OpenSQLite(filepath.Join(t.TempDir(), "app.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(database.Close)
	if err := database.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	cfg := &config.Config{
		Backend:       config.BackendSQLite,
		SessionSecret: "test-secret",
		AppVersion:    "test",
	}
	if configure != nil {
		configure(cfg)
	}
	cats := models.MustLoadCategories()
	flows := ai.NewFlows(gen, telemetry.NewRegistry(), cats)

	router := gin.New()
	router.Use(
		middleware.Recovery(cfg.AppVersion),
		middleware.RequestContext(),
		middleware.SecurityHeaders(),
		middleware.NewCSRFMiddleware(cfg.SessionSecret, false).Handler(),
		middleware.SessionLoader(database.Queries),
	)
	err = handlers.Register(router, handlers.Services{
		Config: cfg,
		DB:     database,
		Budget: budget.NewService(database, cats),
		Ledger: ledger.NewService(database),
		Flows:  flows,
	})
	if err != nil {
		t.Fatalf("register routes: %v", err)
	}
	return &testApp{t: t, router: router, db: database, cookies: map[string]*http.Cookie{}}
}

func (a *testApp) createUser(username, role string) models.User {
	a.t.Helper()
	u, err := auth.CreateAccount(context.Background(), a.db.Queries, auth.AccountInput{
		Username:    username,
		DisplayName: strings.ToUpper(username[:1]) + username[1:],
		Password:    testPassword,
		Confirm:     testPassword,
		Role:        role,
	})
	if err != nil {
		a.t.Fatalf("create user: %v", err)
	}
	return u
}

func (a *testApp) do(req *http.Request) *httptest.ResponseRecorder {
	a.t.Helper()
	for _, ck := range a.cookies {
		req.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	for _, ck := range w.Result().Cookies() {
		if ck.MaxAge < 0 || ck.Value == "" {
			delete(a.cookies, ck.Name)
			continue
		}
		a.cookies[ck.Name] = ck
	}
	return w
}

func (a *testApp) get(path string) *httptest.ResponseRecorder {
	return a.do(httptest.NewRequest(http.MethodGet, path, nil))
}

// csrfToken returns the unsigned token from the _csrf cookie, fetching a
// page first if the jar has none yet.
func (a *testApp) csrfToken() string {
	a.t.Helper()
	ck, ok := a.cookies["_csrf"]
	if !ok {
		a.get("/robots.txt")
		ck, ok = a.cookies["_csrf"]
		if !ok {
			a.t.Fatal("no CSRF cookie issued")
		}
	}
	i := strings.LastIndexByte(ck.Value, '.')
	if i <= 0 {
		a.t.Fatalf("malformed CSRF cookie %q", ck.Value)
	}
	return ck.Value[:i]
}

func (a *testApp) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	a.t.Helper()
	if form == nil {
		form = url.Values{}
	}
	form.Set("csrf_token", a.csrfToken())
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set(headerContentType, "application/x-www-form-urlencoded")
	return a.do(req)
}

func (a *testApp) sendJSON(method, path string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			a.t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set(headerContentType, "application/json")
	req.Header.Set(middleware.CSRFHeaderName, a.csrfToken())
	return a.do(req)
}

// postMultipart uploads image as the "image" file field; a nil image sends
// the form without a file.
func (a *testApp) postMultipart(path string, fields map[string]string, image []byte) *httptest.ResponseRecorder {
	a.t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			a.t.Fatalf("write field: %v", err)
		}
	}
	if image != nil {
		fw, err := mw.CreateFormFile("image", "anh.png")
		if err != nil {
			a.t.Fatalf("create form file: %v", err)
		}
		if _, err := fw.Write(image); err != nil {
			a.t.Fatalf("write image: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		a.t.Fatalf("close multipart: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set(headerContentType, mw.FormDataContentType())
	req.Header.Set(middleware.CSRFHeaderName, a.csrfToken())
	return a.do(req)
}

func (a *testApp) login(username string) {
	a.t.Helper()
	w := a.postForm("/login", url.Values{"username": {username}, "password": {testPassword}})
	if w.Code != http.StatusSeeOther {
		a.t.Fatalf("login: expected 303, got %d", w.Code)
	}
	if _, ok := a.cookies[middleware.SessionCookieName]; !ok {
		a.t.Fatal("login did not set a session cookie")
	}
}

func assertStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, w.Code, w.Body.String())
	}
}

func parseJSONResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse JSON response: %v", err)
	}
	return response
}

func today() string {
	return models.Today(time.Now())
}

func TestHealthCheck(t *testing.T) {
	app := newTestApp(t, nil)
	w := app.get(testHealthEndpoint)
	assertStatus(t, w, http.StatusOK)

	response := parseJSONResponse(t, w)
	if response["status"] != "ok" {
		t.Errorf("expected status 'ok', got %v", response["status"])
	}
	dbInfo, ok := response["database"].(map[string]interface{})
	if !ok {
		t.Fatal("missing database section")
	}
	if dbInfo["status"] != "healthy" {
		t.Errorf("database status = %v", dbInfo["status"])
	}
	if dbInfo["backend"] != "sqlite" {
		t.Errorf("database backend = %v", dbInfo["backend"])
	}
	if _, ok := dbInfo["counts"].(map[string]interface{}); !ok {
		t.Error("missing database counts")
	}
	if response["ai_enabled"] != false {
		t.Errorf("ai_enabled = %v, want false without a generator", response["ai_enabled"])
	}
}

func TestStaticFiles(t *testing.T) {
	app := newTestApp(t, nil)

	w := app.get("/robots.txt")
	assertStatus(t, w, http.StatusOK)
	if !strings.Contains(w.Body.String(), "Disallow: /") {
		t.Errorf("robots.txt = %q", w.Body.String())
	}

	w = app.get("/manifest.json")
	assertStatus(t, w, http.StatusOK)
	if parseJSONResponse(t, w)["lang"] != "vi" {
		t.Error("manifest should declare Vietnamese")
	}

	w = app.get("/static/app.js")
	assertStatus(t, w, http.StatusOK)
}

func TestSecurityHeaders(t *testing.T) {
	app := newTestApp(t, nil)
	app.createUser("me", models.RoleAdmin)
	w := app.get("/login")
	assertStatus(t, w, http.StatusOK)

	csp := w.Header().Get("Content-Security-Policy")
	if !strings.Contains(csp, "nonce-") {
		t.Errorf("CSP without nonce: %q", csp)
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing X-Content-Type-Options")
	}
}

func TestFirstRunRedirectsToSetup(t *testing.T) {
	app := newTestApp(t, nil)

	w := app.get("/login")
	assertStatus(t, w, http.StatusFound)
	if loc := w.Header().Get("Location"); loc != "/setup" {
		t.Fatalf("expected redirect to /setup, got %q", loc)
	}

	w = app.get("/setup")
	assertStatus(t, w, http.StatusOK)

	w = app.postForm("/setup", url.Values{
		"username":     {"me"},
		"display_name": {"Mẹ"},
		"password":     {testPassword},
		"confirm":      {testPassword},
	})
	assertStatus(t, w, http.StatusSeeOther)
	if _, ok := app.cookies[middleware.SessionCookieName]; !ok {
		t.Fatal("setup should sign the administrator in")
	}

	u, err := app.db.Queries.GetUserByUsername(context.Background(), "me")
	if err != nil {
		t.Fatalf("user not created: %v", err)
	}
	if u.Role != models.RoleAdmin {
		t.Errorf("role = %q, want admin", u.Role)
	}

	w = app.get("/setup")
	assertStatus(t, w, http.StatusFound)
	if loc := w.Header().Get("Location"); loc != "/login" {
		t.Errorf("setup after first user should redirect to /login, got %q", loc)
	}
}

func TestLoginFlow(t *testing.T) {
	app := newTestApp(t, nil)
	app.createUser("me", models.RoleAdmin)

	w := app.get("/transactions")
	assertStatus(t, w, http.StatusFound)
	if loc := w.Header().Get("Location"); !strings.HasPrefix(loc, "/login?next=") {
		t.Fatalf("unauthenticated page should redirect to login, got %q", loc)
	}

	w = app.postForm("/login", url.Values{"username": {"me"}, "password": {"sai-mat-khau"}})
	assertStatus(t, w, http.StatusUnauthorized)
	if _, ok := app.cookies[middleware.SessionCookieName]; ok {
		t.Fatal("failed login must not set a session")
	}

	w = app.postForm("/login", url.Values{"username": {" ME "}, "password": {testPassword}, "next": {"/loans"}})
	assertStatus(t, w, http.StatusSeeOther)
	if loc := w.Header().Get("Location"); loc != "/loans" {
		t.Errorf("expected redirect to next, got %q", loc)
	}

	w = app.get("/")
	assertStatus(t, w, http.StatusOK)
	if !strings.Contains(w.Body.String(), "Đăng xuất") {
		t.Error("dashboard should show the logout button")
	}

	w = app.postForm("/logout", nil)
	assertStatus(t, w, http.StatusSeeOther)
	w = app.get("/")
	assertStatus(t, w, http.StatusFound)
}

func TestLoginRejectsOpenRedirect(t *testing.T) {
	app := newTestApp(t, nil)
	app.createUser("me", models.RoleMember)
	w := app.postForm("/login", url.Values{"username": {"me"}, "password": {testPassword}, "next": {"//evil.example"}})
	assertStatus(t, w, http.StatusSeeOther)
	if loc := w.Header().Get("Location"); loc != "/" {
		t.Errorf("Location = %q, want /", loc)
	}
}

func TestCSRFRequired(t *testing.T) {
	app := newTestApp(t, nil)
	app.createUser("me", models.RoleAdmin)
	app.login("me")

	req := httptest.NewRequest(http.MethodPost, "/api/transactions", strings.NewReader(`{"type":"expense","amount":1000}`))
	req.Header.Set(headerContentType, "application/json")
	w := app.do(req)
	assertStatus(t, w, http.StatusForbidden)

	req = httptest.NewRequest(http.MethodPost, "/api/transactions", strings.NewReader(`{"type":"expense","amount":1000}`))
	req.Header.Set(headerContentType, "application/json")
	req.Header.Set(middleware.CSRFHeaderName, "forged")
	w = app.do(req)
	assertStatus(t, w, http.StatusForbidden)
}

func TestErrorPagesUseTheirOwnRouterConfig(t *testing.T) {
	notes := []string{"Bảo trì lúc 22:00", "Sao lưu dữ liệu tối nay"}
	apps := make([]*testApp, len(notes))
	for i, note := range notes {
		note := note
		apps[i] = newTestAppWithConfig(t, nil, func(cfg *config.Config) { cfg.MaintenanceNote = note })
	}

	for i, app := range apps {
		w := app.get("/khong-ton-tai")
		assertStatus(t, w, http.StatusNotFound)
		body := w.Body.String()
		if !strings.Contains(body, notes[i]) {
			t.Errorf("router %d: 404 page lacks its own banner %q", i, notes[i])
		}
		if strings.Contains(body, notes[1-i]) {
			t.Errorf("router %d: 404 page shows the other router's banner", i)
		}
	}
}

func TestUnauthenticatedAPI(t *testing.T) {
	app := newTestApp(t, nil)
	for _, path := range []string{"/api/transactions", "/api/loans", "/api/summary", "/api/calendar"} {
		w := app.get(path)
		if w.Code != http.StatusUnauthorized {
			t.Errorf("GET %s: expected 401, got %d", path, w.Code)
		}
	}
}

func TestNotFound(t *testing.T) {
	app := newTestApp(t, nil)
	app.createUser("me", models.RoleAdmin)
	app.login("me")

	w := app.get("/khong-ton-tai")
	assertStatus(t, w, http.StatusNotFound)
	if !strings.Contains(w.Header().Get(headerContentType), "text/html") {
		t.Error("page 404 should be HTML")
	}

	w = app.get("/api/khong-ton-tai")
	assertStatus(t, w, http.StatusNotFound)
	if _, ok := parseJSONResponse(t, w)["error"]; !ok {
		t.Error("API 404 should carry an error field")
	}

	w = app.get("/api/transactions/999")
	assertStatus(t, w, http.StatusNotFound)
	w = app.get("/api/transactions/abc")
	assertStatus(t, w, http.StatusNotFound)
}

func TestTransactionAPI(t *testing.T) {
	app := newTestApp(t, nil)
	app.createUser("me", models.RoleAdmin)
	app.login("me")
	date := today()

	w := app.sendJSON(http.MethodPost, "/api/transactions", map[string]any{
		"type":        "expense",
		"amount":      "150.000đ",
		"category":    "Ăn uống",
		"description": "Phở sáng",
		"date":        date,
	})
	assertStatus(t, w, http.StatusCreated)
	created := parseJSONResponse(t, w)
	id := int64(created["id"].(float64))
	if created["source"] != "manual" {
		t.Errorf("source = %v", created["source"])
	}
	if created["created_by_name"] != "Me" {
		t.Errorf("created_by_name = %v", created["created_by_name"])
	}

	w = app.sendJSON(http.MethodPost, "/api/transactions", map[string]any{
		"type": "income", "amount": 2000000, "category": "Danh mục lạ", "date": date,
	})
	assertStatus(t, w, http.StatusCreated)
	if cat := parseJSONResponse(t, w)["category"]; cat != models.OtherCategory {
		t.Errorf("unknown category should fall back to %q, got %v", models.OtherCategory, cat)
	}

	w = app.sendJSON(http.MethodPost, "/api/transactions", map[string]any{"type": "gift", "amount": 1000})
	assertStatus(t, w, http.StatusBadRequest)
	w = app.sendJSON(http.MethodPost, "/api/transactions", map[string]any{"type": "expense", "amount": 0, "date": date})
	assertStatus(t, w, http.StatusBadRequest)

	w = app.get("/api/transactions?type=expense")
	assertStatus(t, w, http.StatusOK)
	page := parseJSONResponse(t, w)
	if page["total"].(float64) != 1 {
		t.Errorf("expense total = %v, want 1", page["total"])
	}

	w = app.sendJSON(http.MethodPut, "/api/transactions/"+itoa(id), map[string]any{
		"type": "expense", "amount": 120000, "category": "Ăn uống", "description": "Bún", "date": date,
	})
	assertStatus(t, w, http.StatusOK)
	if parseJSONResponse(t, w)["description"] != "Bún" {
		t.Error("update not applied")
	}

	w = app.get("/api/summary?month=" + date[:7])
	assertStatus(t, w, http.StatusOK)
	sum := parseJSONResponse(t, w)
	if sum["expense"] != "120000" || sum["income"] != "2000000" {
		t.Errorf("summary income=%v expense=%v", sum["income"], sum["expense"])
	}

	w = app.get("/api/trend?months=3")
	assertStatus(t, w, http.StatusOK)
	if months, _ := parseJSONResponse(t, w)["months"].([]interface{}); len(months) != 3 {
		t.Errorf("trend months = %d, want 3", len(months))
	}

	w = app.sendJSON(http.MethodDelete, "/api/transactions/"+itoa(id), nil)
	assertStatus(t, w, http.StatusOK)
	w = app.get("/api/transactions/" + itoa(id))
	assertStatus(t, w, http.StatusNotFound)
}

func TestTransactionForms(t *testing.T) {
	app := newTestApp(t, nil)
	app.createUser("me", models.RoleAdmin)
	app.login("me")
	date := today()

	w := app.postForm("/transactions", url.Values{
		"type": {"expense"}, "amount": {"45k"}, "category": {"Ăn uống"}, "description": {"Cà phê"}, "date": {date},
	})
	assertStatus(t, w, http.StatusSeeOther)
	if loc := w.Header().Get("Location"); loc != "/transactions?month="+date[:7] {
		t.Errorf("Location = %q", loc)
	}

	w = app.get("/transactions")
	assertStatus(t, w, http.StatusOK)
	body := w.Body.String()
	if !strings.Contains(body, "Cà phê") || !strings.Contains(body, "-45.000đ") {
		t.Error("list page does not show the new transaction")
	}
	if !strings.Contains(body, "Đã lưu giao dịch 45.000đ") {
		t.Error("flash message not rendered after redirect")
	}

	w = app.postForm("/transactions", url.Values{"type": {"expense"}, "amount": {"abc"}, "date": {date}})
	assertStatus(t, w, http.StatusSeeOther)
	w = app.get("/transactions")
	if !strings.Contains(w.Body.String(), "alert-danger") {
		t.Error("invalid amount should flash an error")
	}
}

func TestLoanPaymentAPI(t *testing.T) {
	app := newTestApp(t, nil)
	app.createUser("me", models.RoleAdmin)
	app.login("me")
	date := today()

	w := app.sendJSON(http.MethodPost, "/api/loans", map[string]any{
		"direction": "lend", "counterparty": "Chú Ba", "principal": "2 triệu", "start_date": date,
	})
	assertStatus(t, w, http.StatusCreated)
	loan := parseJSONResponse(t, w)
	loanID := itoa(int64(loan["id"].(float64)))
	if loan["status"] != "active" {
		t.Errorf("new loan status = %v", loan["status"])
	}

	w = app.sendJSON(http.MethodPost, "/api/loans/"+loanID+"/payments", map[string]any{"amount": 500000, "date": date})
	assertStatus(t, w, http.StatusCreated)
	res := parseJSONResponse(t, w)
	after := res["loan"].(map[string]interface{})
	if after["status"] != "partial" || after["remaining_amount"] != "1500000" {
		t.Errorf("after payment: status=%v remaining=%v", after["status"], after["remaining_amount"])
	}
	payment := res["payment"].(map[string]interface{})
	txID, ok := payment["transaction_id"].(float64)
	if !ok {
		t.Fatal("payment should record a transaction by default")
	}

	// A lend repayment is income in the family budget and cannot be edited directly.
	w = app.get("/api/transactions/" + itoa(int64(txID)))
	assertStatus(t, w, http.StatusOK)
	tx := parseJSONResponse(t, w)
	if tx["type"] != "income" || tx["source"] != "loan" {
		t.Errorf("loan transaction type=%v source=%v", tx["type"], tx["source"])
	}
	w = app.sendJSON(http.MethodDelete, "/api/transactions/"+itoa(int64(txID)), nil)
	assertStatus(t, w, http.StatusConflict)

	w = app.sendJSON(http.MethodPost, "/api/loans/"+loanID+"/payments", map[string]any{"amount": 1600000, "date": date})
	assertStatus(t, w, http.StatusBadRequest)

	w = app.sendJSON(http.MethodPost, "/api/loans/"+loanID+"/payments", map[string]any{
		"amount": 1500000, "date": date, "record_transaction": false,
	})
	assertStatus(t, w, http.StatusCreated)
	res = parseJSONResponse(t, w)
	if res["loan"].(map[string]interface{})["status"] != "paid" {
		t.Error("loan should be paid off")
	}
	if _, ok := res["payment"].(map[string]interface{})["transaction_id"]; ok {
		t.Error("opted-out payment should not record a transaction")
	}

	w = app.sendJSON(http.MethodPost, "/api/loans/"+loanID+"/payments", map[string]any{"amount": 1000, "date": date})
	assertStatus(t, w, http.StatusConflict)

	w = app.get("/api/loans/" + loanID + "/payments")
	assertStatus(t, w, http.StatusOK)

	pid := itoa(int64(payment["id"].(float64)))
	w = app.sendJSON(http.MethodDelete, "/api/loans/"+loanID+"/payments/"+pid, nil)
	assertStatus(t, w, http.StatusOK)
	reopened := parseJSONResponse(t, w)["loan"].(map[string]interface{})
	if reopened["status"] != "partial" || reopened["remaining_amount"] != "500000" {
		t.Errorf("after undo: status=%v remaining=%v", reopened["status"], reopened["remaining_amount"])
	}
	w = app.get("/api/transactions/" + itoa(int64(txID)))
	assertStatus(t, w, http.StatusNotFound)

	w = app.get("/api/loans?open=1")
	assertStatus(t, w, http.StatusOK)
	totals := parseJSONResponse(t, w)["totals"].(map[string]interface{})
	if totals["lent_outstanding"] != "500000" {
		t.Errorf("lent_outstanding = %v", totals["lent_outstanding"])
	}

	w = app.get("/loans/" + loanID)
	assertStatus(t, w, http.StatusOK)
	if !strings.Contains(w.Body.String(), "Chú Ba") {
		t.Error("loan detail page missing counterparty")
	}
}

func TestCalendarAPI(t *testing.T) {
	app := newTestApp(t, nil)
	app.createUser("me", models.RoleAdmin)
	app.login("me")
	date := today()
	month := date[:7]

	w := app.sendJSON(http.MethodPost, "/api/events", map[string]any{"title": "Họp phụ huynh", "date": date, "kind": "event"})
	assertStatus(t, w, http.StatusCreated)

	w = app.sendJSON(http.MethodPost, "/api/shifts/bulk", map[string]any{"entries": []map[string]any{
		{"person": "Mẹ", "date": date, "shift": "morning"},
		{"person": "Bố", "date": date, "shift": "night"},
	}})
	assertStatus(t, w, http.StatusCreated)
	if saved := parseJSONResponse(t, w)["saved"]; saved != float64(2) {
		t.Errorf("saved = %v, want 2", saved)
	}

	w = app.sendJSON(http.MethodPost, "/api/shifts/bulk", map[string]any{"entries": []map[string]any{
		{"person": "Mẹ", "date": date, "shift": "morning"},
		{"person": "", "date": date, "shift": "night"},
	}})
	assertStatus(t, w, http.StatusBadRequest)
	if msg, _ := parseJSONResponse(t, w)["error"].(string); !strings.HasPrefix(msg, "Dòng 2") {
		t.Errorf("bulk error should name the row, got %q", msg)
	}

	w = app.get("/api/shifts?month=" + month + "&person=Mẹ")
	assertStatus(t, w, http.StatusOK)

	w = app.get("/calendar?month=" + month)
	assertStatus(t, w, http.StatusOK)
	if !strings.Contains(w.Body.String(), "Họp phụ huynh") {
		t.Error("calendar page missing event")
	}
}

func TestNotesAPI(t *testing.T) {
	app := newTestApp(t, nil)
	app.createUser("me", models.RoleAdmin)
	app.login("me")

	w := app.sendJSON(http.MethodPost, "/api/notes", map[string]any{"title": "Đi chợ", "content": "Rau, thịt", "color": "green"})
	assertStatus(t, w, http.StatusCreated)
	id := itoa(int64(parseJSONResponse(t, w)["id"].(float64)))

	w = app.sendJSON(http.MethodPost, "/api/notes/"+id+"/pin", nil)
	assertStatus(t, w, http.StatusOK)
	if parseJSONResponse(t, w)["pinned"] != true {
		t.Error("note should be pinned")
	}

	w = app.sendJSON(http.MethodPost, "/api/notes", map[string]any{"title": "Màu lạ", "color": "purple"})
	assertStatus(t, w, http.StatusBadRequest)

	w = app.get("/notes")
	assertStatus(t, w, http.StatusOK)
	if !strings.Contains(w.Body.String(), "Đi chợ") {
		t.Error("notes page missing note")
	}
}

func TestAICategoryFallsBackWithoutKey(t *testing.T) {
	app := newTestApp(t, nil)
	app.createUser("me", models.RoleAdmin)
	app.login("me")

	w := app.sendJSON(http.MethodPost, "/api/ai/category", map[string]any{"description": "đổ xăng xe máy", "type": "expense"})
	assertStatus(t, w, http.StatusOK)
	res := parseJSONResponse(t, w)
	if res["source"] != ai.SourceKeywords {
		t.Errorf("source = %v, want keywords", res["source"])
	}

	w = app.sendJSON(http.MethodPost, "/api/ai/category", map[string]any{"type": "expense"})
	assertStatus(t, w, http.StatusBadRequest)
}

func TestAICategoryUsesModel(t *testing.T) {
	app := newTestApp(t, &stubGenerator{response: `{"category": "Đi lại", "confidence": 0.9}`})
	app.createUser("me", models.RoleAdmin)
	app.login("me")

	w := app.sendJSON(http.MethodPost, "/api/ai/category", map[string]any{"description": "grab về nhà", "type": "expense"})
	assertStatus(t, w, http.StatusOK)
	res := parseJSONResponse(t, w)
	if res["category"] != "Đi lại" || res["fallback"] != false {
		t.Errorf("category=%v fallback=%v", res["category"], res["fallback"])
	}

	// Identical body within the anti-repeat span is refused.
	w = app.sendJSON(http.MethodPost, "/api/ai/category", map[string]any{"description": "grab về nhà", "type": "expense"})
	assertStatus(t, w, http.StatusTooManyRequests)
}

var testPNG = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01")

func oversizedImage(n int) []byte {
	img := make([]byte, n)
	copy(img, testPNG)
	return img
}

func TestAIBillUpload(t *testing.T) {
	app := newTestApp(t, &stubGenerator{response: `{"amount": "235.000đ", "description": "Ăn trưa", "category": "Ăn uống", "date": "2026-10-18"}`})
	app.createUser("me", models.RoleAdmin)
	app.login("me")

	w := app.postMultipart("/api/ai/bill", nil, testPNG)
	assertStatus(t, w, http.StatusOK)
	res := parseJSONResponse(t, w)
	if res["amount"] != "235000" || res["fallback"] != false {
		t.Errorf("amount=%v fallback=%v", res["amount"], res["fallback"])
	}

	w = app.postMultipart("/api/ai/bill", map[string]string{"note": "không có ảnh"}, nil)
	assertStatus(t, w, http.StatusBadRequest)
	if msg, _ := parseJSONResponse(t, w)["error"].(string); msg == "" {
		t.Error("missing image should explain the error")
	}

	w = app.postMultipart("/api/ai/bill", nil, oversizedImage(ai.MaxImageBytes+1))
	assertStatus(t, w, http.StatusBadRequest)
	if msg, _ := parseJSONResponse(t, w)["error"].(string); !strings.Contains(msg, "8MB") {
		t.Errorf("error = %q, want the size limit", msg)
	}

	w = app.postMultipart("/api/ai/bill", nil, oversizedImage(ai.MaxImageBytes+2<<20))
	assertStatus(t, w, http.StatusBadRequest)
	if _, ok := parseJSONResponse(t, w)["error"]; !ok {
		t.Error("body over the reader limit should answer JSON")
	}

	w = app.postMultipart("/api/ai/bill", nil, []byte("%PDF-1.4 not an image at all"))
	assertStatus(t, w, http.StatusBadRequest)
}

func TestAIBillSeparatorOnlyAmountFallsBack(t *testing.T) {
	app := newTestApp(t, &stubGenerator{response: `{"amount": ".", "description": "x"}`})
	app.createUser("me", models.RoleAdmin)
	app.login("me")

	w := app.postMultipart("/api/ai/bill", nil, testPNG)
	assertStatus(t, w, http.StatusOK)
	if res := parseJSONResponse(t, w); res["fallback"] != true {
		t.Errorf("fallback = %v, want true", res["fallback"])
	}
}

func TestAIScheduleUpload(t *testing.T) {
	app := newTestApp(t, &stubGenerator{response: `{"entries": [
		{"date": "2026-08-05", "shift": "ca sáng", "start_time": "06:00", "end_time": "14:00"},
		{"person": "Bố", "date": "2026-09-06", "shift": "nghỉ"}
	]}`})
	app.createUser("me", models.RoleAdmin)
	app.login("me")

	w := app.postMultipart("/api/ai/schedule", map[string]string{"month": "2026-09", "person": "Mẹ"}, testPNG)
	assertStatus(t, w, http.StatusOK)
	var res ai.ScheduleResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Month != "2026-09" || res.Fallback {
		t.Fatalf("month=%q fallback=%v", res.Month, res.Fallback)
	}
	if len(res.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(res.Entries))
	}
	first := res.Entries[0]
	if first.Person != "Mẹ" || first.Date != "2026-09-05" || first.Shift != models.ShiftMorning {
		t.Errorf("first entry = %+v, want the person hint and the requested month", first)
	}
	if res.Entries[1].Person != "Bố" || res.Entries[1].Shift != models.ShiftOff {
		t.Errorf("second entry = %+v", res.Entries[1])
	}

	w = app.postMultipart("/api/ai/schedule", map[string]string{"month": "09-2026"}, testPNG)
	assertStatus(t, w, http.StatusBadRequest)

	w = app.postMultipart("/api/ai/schedule", map[string]string{"month": "2026-09"}, nil)
	assertStatus(t, w, http.StatusBadRequest)
}

func TestAIChatFallsBackWithoutKey(t *testing.T) {
	app := newTestApp(t, nil)
	app.createUser("me", models.RoleAdmin)
	app.login("me")

	w := app.sendJSON(http.MethodPost, "/api/transactions", map[string]any{
		"type": "expense", "amount": 150000, "category": "Ăn uống", "date": today(),
	})
	assertStatus(t, w, http.StatusCreated)

	w = app.sendJSON(http.MethodPost, "/api/ai/chat", map[string]any{
		"question": "Tháng này chi nhiều nhất cho gì?",
		"history":  []map[string]string{{"role": "user", "text": "Chào"}},
	})
	assertStatus(t, w, http.StatusOK)
	res := parseJSONResponse(t, w)
	if res["fallback"] != true {
		t.Errorf("fallback = %v, want true without a key", res["fallback"])
	}
	answer, _ := res["answer"].(string)
	if !strings.HasPrefix(answer, "Xin lỗi") || !strings.Contains(answer, "Ăn uống") {
		t.Errorf("answer = %q, want the apology and the top category", answer)
	}

	w = app.sendJSON(http.MethodPost, "/api/ai/chat", map[string]any{"question": "  "})
	assertStatus(t, w, http.StatusBadRequest)
}

func TestTransactionAPIRejectsSeparatorOnlyAmount(t *testing.T) {
	app := newTestApp(t, nil)
	app.createUser("me", models.RoleAdmin)
	app.login("me")

	for _, amount := range []string{".", ",", ".."} {
		w := app.sendJSON(http.MethodPost, "/api/transactions", map[string]any{
			"type": "expense", "amount": amount, "category": "Ăn uống", "date": today(),
		})
		assertStatus(t, w, http.StatusBadRequest)
	}
}

func TestAdminOnlyUsersPage(t *testing.T) {
	app := newTestApp(t, nil)
	app.createUser("me", models.RoleAdmin)
	member := app.createUser("bo", models.RoleMember)

	app.login("bo")
	w := app.get("/users")
	assertStatus(t, w, http.StatusFound)
	app.postForm("/logout", nil)

	app.login("me")
	w = app.get("/users")
	assertStatus(t, w, http.StatusOK)

	w = app.postForm("/users/"+itoa(member.ID)+"/role", url.Values{"role": {"admin"}})
	assertStatus(t, w, http.StatusSeeOther)
	u, err := app.db.Queries.GetUser(context.Background(), member.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if u.Role != models.RoleAdmin {
		t.Errorf("role = %q, want admin", u.Role)
	}

	w = app.postForm("/users", url.Values{
		"username": {"con"}, "display_name": {"Con"}, "password": {testPassword}, "confirm": {testPassword},
	})
	assertStatus(t, w, http.StatusSeeOther)
	if _, err := app.db.Queries.GetUserByUsername(context.Background(), "con"); err != nil {
		t.Errorf("new member not created: %v", err)
	}
}

func TestExportTransactions(t *testing.T) {
	app := newTestApp(t, nil)
	app.createUser("me", models.RoleAdmin)
	app.login("me")
	date := today()

	for _, amount := range []int{10000, 20000, 30000} {
		w := app.sendJSON(http.MethodPost, "/api/transactions", map[string]any{
			"type": "expense", "amount": amount, "category": "Ăn uống", "date": date,
		})
		assertStatus(t, w, http.StatusCreated)
	}

	w := app.get("/export/transactions.ndjson?month=" + date[:7])
	assertStatus(t, w, http.StatusOK)
	if ct := w.Header().Get(headerContentType); ct != "application/x-ndjson" {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "thu_chi_"+date[:7]) {
		t.Errorf("Content-Disposition = %q", cd)
	}

	lines := 0
	sc := bufio.NewScanner(w.Body)
	for sc.Scan() {
		var tx models.Transaction
		if err := json.Unmarshal(sc.Bytes(), &tx); err != nil {
			t.Fatalf("line %d is not a transaction: %v", lines+1, err)
		}
		lines++
	}
	if lines != 3 {
		t.Errorf("exported %d lines, want 3", lines)
	}

	w = app.get("/export/transactions.ndjson?month=2026-13")
	assertStatus(t, w, http.StatusBadRequest)
}

func itoa(n int64) string {
	return strconv.FormatInt(n, 10)
}

func TestChangelog(t *testing.T) {
	entries := handlers.GetChangelog()
	if len(entries) == 0 {
		t.Fatal("empty changelog")
	}
	if entries[0].Version != config.Version {
		t.Errorf("latest changelog entry %s does not match version %s", entries[0].Version, config.Version)
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].Date > entries[i-1].Date {
			t.Errorf("entry %s is newer than the one above it", entries[i].Version)
		}
	}

	app := newTestApp(t, nil)
	app.createUser("me", models.RoleMember)
	app.login("me")
	w := app.get("/changelog")
	assertStatus(t, w, http.StatusOK)
	if !strings.Contains(w.Body.String(), entries[0].Title) {
		t.Error("changelog page missing latest entry")
	}
}
