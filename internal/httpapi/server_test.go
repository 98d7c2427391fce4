package httpapi_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mzDeaThly/data-spf/internal/db"
	"github.com/mzDeaThly/data-spf/internal/httpapi"
	"github.com/mzDeaThly/data-spf/internal/line"
	"github.com/mzDeaThly/data-spf/internal/registry/service"
	"github.com/mzDeaThly/data-spf/internal/registry/store/memory"
	"github.com/mzDeaThly/data-spf/internal/registry/store/sqlite"
	"github.com/mzDeaThly/data-spf/internal/registry/types"
)

const (
	testSecret = "channel-secret"
	testToken  = "channel-token"
	adminUser  = "admin"
	adminPass  = "admin123"
)

// fakeLine records reply calls and serves profiles.
type fakeLine struct {
	mu       sync.Mutex
	replies  []capturedReply
	profiles int
}

type capturedReply struct {
	Token    string            `json:"replyToken"`
	Messages []json.RawMessage `json:"messages"`
}

func (f *fakeLine) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v2/bot/message/reply", func(w http.ResponseWriter, r *http.Request) {
		var req capturedReply
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		f.mu.Lock()
		f.replies = append(f.replies, req)
		f.mu.Unlock()
		w.Write([]byte("{}"))
	})
	mux.HandleFunc("GET /v2/bot/profile/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.profiles++
		f.mu.Unlock()
		json.NewEncoder(w).Encode(line.Profile{UserID: r.PathValue("id"), DisplayName: "Somchai"})
	})
	return mux
}

func (f *fakeLine) Replies() []capturedReply {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]capturedReply, len(f.replies))
	copy(out, f.replies)
	return out
}

func (f *fakeLine) ProfileCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.profiles
}

type testEnv struct {
	ts       *httptest.Server
	conn     *sql.DB
	line     *fakeLine
	vehicles *sqlite.VehicleStore
	perms    *sqlite.PermissionStore
	today    types.Date
}

type envOptions struct {
	creds     httpapi.LineCredentials
	rateLimit int
}

// newTestServer wires up the full dependency graph on an in-memory SQLite
// database and a fake LINE platform, and returns an httptest.Server whose URL
// can be hit with a plain http.Client.
func newTestServer(t *testing.T, opts envOptions) *testEnv {
	t.Helper()

	name := "httpapi_" + strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	conn, err := db.OpenDSN(context.Background(), db.MemoryDSN(name), true)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	writer := db.NewWorker(conn)
	t.Cleanup(writer.Close)

	fl := &fakeLine{}
	lineSrv := httptest.NewServer(fl.handler())
	t.Cleanup(lineSrv.Close)

	client := line.NewClient(line.Config{BaseURL: lineSrv.URL, AccessToken: testToken})

	vehicles := sqlite.NewVehicleStore(conn, writer)
	perms := sqlite.NewPermissionStore(conn, writer)
	logs := sqlite.NewQueryLogStore(conn, writer)
	admins := sqlite.NewAdminStore(conn, writer)

	search := service.NewRegistrySearch(vehicles, time.UTC, nil)
	dispatcher := service.NewDispatcher(service.DispatcherDeps{
		Gate:       service.NewPermissionGate(perms),
		Profiles:   service.NewProfileResolver(client, memory.NewProfileCache(), time.Hour, nil),
		Search:     search,
		Audit:      service.NewAuditRecorder(logs, nil),
		Replier:    client,
		MaxAgeDays: func() int { return 35 },
	})
	admin := service.NewAdminService(service.AdminDeps{
		Vehicles:    vehicles,
		Permissions: perms,
		QueryLogs:   logs,
		Admins:      admins,
		Today:       search.Today,
	})
	if _, err := admin.EnsureInitialAdmin(context.Background(), adminUser, adminPass); err != nil {
		t.Fatalf("seed admin: %v", err)
	}

	srv := httpapi.NewServer(httpapi.Dependencies{
		Addr:                    ":0",
		Line:                    opts.creds,
		Dispatcher:              dispatcher,
		Admin:                   admin,
		AdminRateLimitPerMinute: opts.rateLimit,
	})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &testEnv{
		ts:       ts,
		conn:     conn,
		line:     fl,
		vehicles: vehicles,
		perms:    perms,
		today:    search.Today(),
	}
}

func configured() envOptions {
	return envOptions{creds: httpapi.LineCredentials{ChannelSecret: testSecret, ChannelAccessToken: testToken}}
}

func webhookBody(t *testing.T, src line.Source, text string) []byte {
	t.Helper()
	body, err := json.Marshal(line.WebhookPayload{Events: []line.Event{{
		Type:       line.EventTypeMessage,
		ReplyToken: "rt-1",
		Source:     src,
		Message:    &line.Message{Type: line.MessageTypeText, Text: text},
	}}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return body
}

func (e *testEnv) postWebhook(t *testing.T, body []byte, signature string) (int, string) {
	t.Helper()
	req, _ := http.NewRequest(http.MethodPost, e.ts.URL+"/line/webhook", bytes.NewReader(body))
	req.Header.Set(line.SignatureHeader, signature)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(b)
}

func (e *testEnv) countRows(t *testing.T, table string) int {
	t.Helper()
	var n int
	if err := e.conn.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

type auditRow struct {
	Allowed bool
	Matched sql.NullInt64
}

func (e *testEnv) auditRows(t *testing.T) []auditRow {
	t.Helper()
	rows, err := e.conn.Query("SELECT allowed, matched_count FROM query_logs ORDER BY id")
	if err != nil {
		t.Fatalf("query audit: %v", err)
	}
	defer rows.Close()
	var out []auditRow
	for rows.Next() {
		var r auditRow
		if err := rows.Scan(&r.Allowed, &r.Matched); err != nil {
			t.Fatalf("scan: %v", err)
		}
		out = append(out, r)
	}
	return out
}

func onlyMessage(t *testing.T, fl *fakeLine) map[string]any {
	t.Helper()
	replies := fl.Replies()
	if len(replies) != 1 {
		t.Fatalf("expected 1 reply, got %d", len(replies))
	}
	if len(replies[0].Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(replies[0].Messages))
	}
	var m map[string]any
	if err := json.Unmarshal(replies[0].Messages[0], &m); err != nil {
		t.Fatalf("decode message: %v", err)
	}
	return m
}

// ── Webhook ──────────────────────────────────────────────────────────────────

func TestWebhook_Misconfigured_500(t *testing.T) {
	env := newTestServer(t, envOptions{creds: httpapi.LineCredentials{ChannelSecret: testSecret}})

	body := webhookBody(t, line.Source{Type: line.SourceTypeUser, UserID: "U1"}, "ABC")
	status, text := env.postWebhook(t, body, line.Sign(body, testSecret))

	if status != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", status)
	}
	if text != "LINE config missing" {
		t.Errorf("unexpected body %q", text)
	}
}

func TestWebhook_BadSignature_400_NoWrites(t *testing.T) {
	env := newTestServer(t, configured())

	body := webhookBody(t, line.Source{Type: line.SourceTypeUser, UserID: "U1"}, "ABC")
	status, text := env.postWebhook(t, body, line.Sign(body, "wrong-secret"))

	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
	if text != "Bad signature" {
		t.Errorf("unexpected body %q", text)
	}
	if n := env.countRows(t, "query_logs"); n != 0 {
		t.Errorf("expected zero audit writes, got %d", n)
	}
	if n := len(env.line.Replies()); n != 0 {
		t.Errorf("expected no replies, got %d", n)
	}
}

func TestWebhook_MalformedJSON_Acknowledged(t *testing.T) {
	env := newTestServer(t, configured())

	body := []byte(`{"events": [`)
	status, text := env.postWebhook(t, body, line.Sign(body, testSecret))

	if status != http.StatusOK || text != "ok" {
		t.Fatalf("expected 200 ok, got %d %q", status, text)
	}
}

func TestWebhook_UserIDCommand_NoAudit(t *testing.T) {
	env := newTestServer(t, configured())

	body := webhookBody(t, line.Source{Type: line.SourceTypeUser, UserID: "U4af4980629"}, "/userid")
	status, _ := env.postWebhook(t, body, line.Sign(body, testSecret))
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}

	m := onlyMessage(t, env.line)
	if text, _ := m["text"].(string); !strings.Contains(text, "U4af4980629") {
		t.Errorf("expected user id in reply, got %q", text)
	}
	if n := env.countRows(t, "query_logs"); n != 0 {
		t.Errorf("expected no audit entry, got %d", n)
	}
	if n := env.line.ProfileCalls(); n != 0 {
		t.Errorf("expected no profile lookups, got %d", n)
	}
}

func TestWebhook_FreshMatch_FlexReply(t *testing.T) {
	env := newTestServer(t, configured())
	ctx := context.Background()

	recorded := env.today.AddDays(-10)
	if _, err := env.vehicles.Create(ctx, types.Vehicle{LicensePlate: "ABC-123", RecordedDate: &recorded}); err != nil {
		t.Fatalf("seed vehicle: %v", err)
	}
	if _, err := env.perms.Create(ctx, types.Permission{Kind: types.PermissionUser, ExternalID: "U1", IsActive: true}); err != nil {
		t.Fatalf("seed permission: %v", err)
	}

	body := webhookBody(t, line.Source{Type: line.SourceTypeUser, UserID: "U1"}, "ABC123")
	status, text := env.postWebhook(t, body, line.Sign(body, testSecret))
	if status != http.StatusOK || text != "ok" {
		t.Fatalf("expected 200 ok, got %d %q", status, text)
	}

	m := onlyMessage(t, env.line)
	if m["type"] != "flex" {
		t.Fatalf("expected flex message, got %v", m["type"])
	}
	contents, _ := m["contents"].(map[string]any)
	if contents["type"] != "bubble" {
		t.Errorf("expected a single bubble, got %v", contents["type"])
	}
	raw := string(env.line.Replies()[0].Messages[0])
	if !strings.Contains(raw, "10 วัน") {
		t.Errorf("expected elapsed days in card, got %s", raw)
	}

	audit := env.auditRows(t)
	if len(audit) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(audit))
	}
	if !audit[0].Allowed || !audit[0].Matched.Valid || audit[0].Matched.Int64 != 1 {
		t.Errorf("expected allowed matched=1, got %+v", audit[0])
	}
}

func TestWebhook_StaleMatch_NoMatchText(t *testing.T) {
	env := newTestServer(t, configured())
	ctx := context.Background()

	recorded := env.today.AddDays(-40)
	env.vehicles.Create(ctx, types.Vehicle{LicensePlate: "ABC-123", RecordedDate: &recorded})
	env.perms.Create(ctx, types.Permission{Kind: types.PermissionUser, ExternalID: "U1", IsActive: true})

	body := webhookBody(t, line.Source{Type: line.SourceTypeUser, UserID: "U1"}, "ABC123")
	env.postWebhook(t, body, line.Sign(body, testSecret))

	m := onlyMessage(t, env.line)
	if m["text"] != service.NoFreshMatchText(35) {
		t.Errorf("expected no-match text, got %v", m)
	}
	audit := env.auditRows(t)
	if len(audit) != 1 || !audit[0].Matched.Valid || audit[0].Matched.Int64 != 0 {
		t.Errorf("expected one entry with matched=0, got %+v", audit)
	}
}

func TestWebhook_Unauthorized_Denied(t *testing.T) {
	env := newTestServer(t, configured())
	ctx := context.Background()

	recorded := env.today
	env.vehicles.Create(ctx, types.Vehicle{LicensePlate: "XYZ-1", RecordedDate: &recorded})

	body := webhookBody(t, line.Source{Type: line.SourceTypeUser, UserID: "U9"}, "XYZ")
	env.postWebhook(t, body, line.Sign(body, testSecret))

	m := onlyMessage(t, env.line)
	if m["text"] != service.MsgDenied {
		t.Errorf("expected denial, got %v", m)
	}
	audit := env.auditRows(t)
	if len(audit) != 1 {
		t.Fatalf("expected 1 audit entry, got %d", len(audit))
	}
	if audit[0].Allowed || audit[0].Matched.Valid {
		t.Errorf("expected allowed=false matched=null, got %+v", audit[0])
	}
}

// ── Health ───────────────────────────────────────────────────────────────────

func TestHealthz(t *testing.T) {
	env := newTestServer(t, envOptions{})

	resp, err := http.Get(env.ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Error("expected a request id header")
	}
}

// ── Admin ────────────────────────────────────────────────────────────────────

func (e *testEnv) admin(t *testing.T, method, path, user, pass string, body any) *http.Response {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rdr = bytes.NewReader(b)
	}
	req, _ := http.NewRequest(method, e.ts.URL+path, rdr)
	if user != "" {
		req.SetBasicAuth(user, pass)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func errorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body.Error.Code
}

func TestAdmin_RequiresBasicAuth(t *testing.T) {
	env := newTestServer(t, configured())

	resp := env.admin(t, http.MethodGet, "/admin/stats", "", "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without credentials, got %d", resp.StatusCode)
	}
	if resp.Header.Get("WWW-Authenticate") == "" {
		t.Error("expected a Basic challenge")
	}

	resp = env.admin(t, http.MethodGet, "/admin/stats", adminUser, "nope", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong password, got %d", resp.StatusCode)
	}

	resp = env.admin(t, http.MethodGet, "/admin/stats", adminUser, adminPass, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var st types.Stats
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.Admins != 1 {
		t.Errorf("expected the seeded admin counted, got %+v", st)
	}
}

func TestAdmin_VehicleCRUD(t *testing.T) {
	env := newTestServer(t, configured())

	resp := env.admin(t, http.MethodPost, "/admin/vehicles", adminUser, adminPass,
		types.VehicleInput{LicensePlate: "กข-1234", Brand: "Toyota"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var v types.Vehicle
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if v.RecordedDate == nil || *v.RecordedDate != env.today {
		t.Errorf("expected recorded date defaulted to today, got %v", v.RecordedDate)
	}

	resp = env.admin(t, http.MethodPost, "/admin/vehicles", adminUser, adminPass, types.VehicleInput{})
	if resp.StatusCode != http.StatusBadRequest || errorCode(t, resp) != "invalid_input" {
		t.Errorf("expected 400 invalid_input for missing plate, got %d", resp.StatusCode)
	}

	resp = env.admin(t, http.MethodGet, "/admin/vehicles/999", adminUser, adminPass, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}

	resp = env.admin(t, http.MethodGet, "/admin/vehicles/abc", adminUser, adminPass, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for a non-numeric id, got %d", resp.StatusCode)
	}

	resp = env.admin(t, http.MethodDelete, "/admin/vehicles/"+strconv.FormatInt(v.ID, 10), adminUser, adminPass, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("expected 204, got %d", resp.StatusCode)
	}
}

func TestAdmin_ImportCSV(t *testing.T) {
	env := newTestServer(t, configured())

	csv := "\xEF\xBB\xBFlicense_plate,brand,model,owner_name,contact_info\nAB-1,Toyota,Vios,A,1\n"
	req, _ := http.NewRequest(http.MethodPost, env.ts.URL+"/admin/vehicles/import", strings.NewReader(csv))
	req.Header.Set("Content-Type", "text/csv")
	req.SetBasicAuth(adminUser, adminPass)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var res service.ImportResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Imported != 1 {
		t.Errorf("expected 1 imported, got %+v", res)
	}
}

func TestAdmin_DuplicatePermission_409(t *testing.T) {
	env := newTestServer(t, configured())

	in := types.PermissionInput{ExternalID: "C123"}
	if resp := env.admin(t, http.MethodPost, "/admin/line/groups", adminUser, adminPass, in); resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	resp := env.admin(t, http.MethodPost, "/admin/line/groups", adminUser, adminPass, in)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
	if code := errorCode(t, resp); code != "already_exists" {
		t.Errorf("expected already_exists, got %q", code)
	}
}

func TestAdmin_RateLimited_429(t *testing.T) {
	opts := configured()
	opts.rateLimit = 2
	env := newTestServer(t, opts)

	for i := 0; i < 2; i++ {
		if resp := env.admin(t, http.MethodGet, "/admin/stats", "", "", nil); resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("request %d: expected 401, got %d", i, resp.StatusCode)
		}
	}
	resp := env.admin(t, http.MethodGet, "/admin/stats", adminUser, adminPass, nil)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429 once the budget is spent, got %d", resp.StatusCode)
	}
}
