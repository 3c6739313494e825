package api

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"icescan/internal/service/scan"
	"icescan/internal/testutil"
)

const table = "s3://warehouse/db/events"

func setupTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	return setupTestServerWith(t, nil)
}

// setupTestServerWith serves the fixture tables under s3://warehouse/db,
// letting mutate adjust the handler config first.
func setupTestServerWith(t *testing.T, mutate func(*HandlerConfig)) *httptest.Server {
	t.Helper()

	fio := testutil.NewMemFileIO()
	testutil.TableFixture{
		Root: table,
		Snapshots: []testutil.SnapshotFixture{
			{ID: 1, Seq: 1, TimestampMS: 1000, Operation: "append", Manifests: []testutil.ManifestFixture{
				{Entries: []testutil.EntryFixture{
					{Status: testutil.StatusAdded, Path: "data/a.parquet", Records: 3, Size: 30},
				}},
			}},
			{ID: 2, Seq: 2, TimestampMS: 2000, Operation: "append", Manifests: []testutil.ManifestFixture{
				{Entries: []testutil.EntryFixture{
					{Status: testutil.StatusExisting, Path: "data/a.parquet", Records: 3, Size: 30},
					{Status: testutil.StatusAdded, Path: "data/b.parquet", Records: 4, Size: 40},
				}},
				{Content: testutil.ContentDeletes, Entries: []testutil.EntryFixture{
					{Status: testutil.StatusAdded, Content: 2, Path: "data/eq-del.parquet", Records: 1, Size: 5},
				}},
			}},
		},
	}.Write(t, fio)
	fio.Put("s3://warehouse/db/broken/metadata/v1.metadata.json", []byte(`{"format-version": "two"}`))
	fio.Put("s3://warehouse/db/leaky/metadata/v1.metadata.json", []byte("DB_PASSWORD=hunter2 not json"))
	fio.Put("s3://warehouse/private/metadata/v1.metadata.json", []byte(`{}`))

	cfg := HandlerConfig{
		Scan:         scan.NewService(fio, scan.Options{}),
		StartTime:    time.Now(),
		AllowedRoots: []string{"s3://warehouse/db/"},
	}
	if mutate != nil {
		mutate(&cfg)
	}
	srv := httptest.NewServer(NewHandler(cfg))
	t.Cleanup(srv.Close)
	return srv
}

func doGet(t *testing.T, srv *httptest.Server, path string, params url.Values) (int, map[string]interface{}) {
	t.Helper()
	return doGetWithHeaders(t, srv, path, params, nil)
}

func doGetWithHeaders(t *testing.T, srv *httptest.Server, path string, params url.Values, headers map[string]string) (int, map[string]interface{}) {
	t.Helper()
	u := srv.URL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequest(http.MethodGet, u, nil) //nolint:noctx
	require.NoError(t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck

	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	var body map[string]interface{}
	require.NoError(t, jsoniter.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestHealth(t *testing.T) {
	t.Parallel()
	srv := setupTestServer(t)
	status, body := doGet(t, srv, "/health", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
}

func TestGetSnapshot(t *testing.T) {
	t.Parallel()
	srv := setupTestServer(t)

	tests := []struct {
		name   string
		params url.Values
		wantID float64
	}{
		{name: "latest", params: url.Values{"table": {table}}, wantID: 2},
		{name: "by id", params: url.Values{"table": {table}, "snapshot_id": {"1"}}, wantID: 1},
		{name: "as of epoch ms", params: url.Values{"table": {table}, "as_of": {"1999"}}, wantID: 1},
		{name: "as of rfc3339", params: url.Values{"table": {table}, "as_of": {"2030-01-01T00:00:00Z"}}, wantID: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			status, body := doGet(t, srv, "/v1/snapshot", tt.params)
			require.Equal(t, http.StatusOK, status, body)
			assert.Equal(t, tt.wantID, body["snapshot_id"])
		})
	}
}

func TestListSnapshots(t *testing.T) {
	t.Parallel()
	srv := setupTestServer(t)
	status, body := doGet(t, srv, "/v1/snapshots", url.Values{"table": {table}})
	require.Equal(t, http.StatusOK, status)
	snaps, ok := body["snapshots"].([]interface{})
	require.True(t, ok)
	assert.Len(t, snaps, 2)
}

func TestListFiles(t *testing.T) {
	t.Parallel()
	srv := setupTestServer(t)

	status, body := doGet(t, srv, "/v1/files", url.Values{"table": {table}})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "data", body["content"])
	assert.Equal(t, []interface{}{table + "/data/a.parquet", table + "/data/b.parquet"}, body["files"])

	status, body = doGet(t, srv, "/v1/files", url.Values{"table": {table}, "content": {"deletes"}})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []interface{}{table + "/data/eq-del.parquet"}, body["files"])

	status, body = doGet(t, srv, "/v1/files", url.Values{"table": {table}, "content": {"deletes"}, "snapshot_id": {"1"}})
	require.Equal(t, http.StatusOK, status)
	require.NotNil(t, body["files"], "empty file lists render as []")
	assert.Empty(t, body["files"])
}

func TestListManifests(t *testing.T) {
	t.Parallel()
	srv := setupTestServer(t)
	status, body := doGet(t, srv, "/v1/manifests", url.Values{"table": {table}})
	require.Equal(t, http.StatusOK, status)
	manifests, ok := body["manifests"].([]interface{})
	require.True(t, ok)
	require.Len(t, manifests, 2)
	second := manifests[1].(map[string]interface{})
	assert.Equal(t, "deletes", second["content"])
}

func TestErrors(t *testing.T) {
	t.Parallel()
	srv := setupTestServer(t)

	tests := []struct {
		name       string
		path       string
		params     url.Values
		wantStatus int
		wantCode   string
	}{
		{name: "missing table", path: "/v1/files", params: nil, wantStatus: http.StatusBadRequest, wantCode: "INVALID_REQUEST"},
		{name: "bad snapshot id", path: "/v1/snapshot", params: url.Values{"table": {table}, "snapshot_id": {"-1"}}, wantStatus: http.StatusBadRequest, wantCode: "INVALID_REQUEST"},
		{name: "bad as_of", path: "/v1/snapshot", params: url.Values{"table": {table}, "as_of": {"soon"}}, wantStatus: http.StatusBadRequest, wantCode: "INVALID_REQUEST"},
		{name: "both selectors", path: "/v1/files", params: url.Values{"table": {table}, "as_of": {"1"}, "snapshot_id": {"1"}}, wantStatus: http.StatusBadRequest, wantCode: "INVALID_REQUEST"},
		{name: "bad content", path: "/v1/files", params: url.Values{"table": {table}, "content": {"all"}}, wantStatus: http.StatusBadRequest, wantCode: "INVALID_REQUEST"},
		{name: "unknown table", path: "/v1/snapshot", params: url.Values{"table": {"s3://warehouse/db/none"}}, wantStatus: http.StatusNotFound, wantCode: "TABLE_NOT_FOUND"},
		{name: "table outside roots", path: "/v1/snapshot", params: url.Values{"table": {"s3://warehouse/private"}}, wantStatus: http.StatusForbidden, wantCode: "TABLE_NOT_ALLOWED"},
		{name: "root prefix is not a directory", path: "/v1/snapshots", params: url.Values{"table": {"s3://warehouse/dbx/t"}}, wantStatus: http.StatusForbidden, wantCode: "TABLE_NOT_ALLOWED"},
		{name: "dot-dot escape", path: "/v1/files", params: url.Values{"table": {"s3://warehouse/db/../private"}}, wantStatus: http.StatusForbidden, wantCode: "TABLE_NOT_ALLOWED"},
		{name: "local path", path: "/v1/snapshot", params: url.Values{"table": {"/etc/creds.metadata.json"}}, wantStatus: http.StatusForbidden, wantCode: "TABLE_NOT_ALLOWED"},
		{name: "unknown snapshot", path: "/v1/snapshot", params: url.Values{"table": {table}, "snapshot_id": {"99"}}, wantStatus: http.StatusNotFound, wantCode: "SNAPSHOT_NOT_FOUND"},
		{name: "before first snapshot", path: "/v1/files", params: url.Values{"table": {table}, "as_of": {"10"}}, wantStatus: http.StatusNotFound, wantCode: "SNAPSHOT_NOT_FOUND"},
		{name: "malformed metadata", path: "/v1/snapshot", params: url.Values{"table": {"s3://warehouse/db/broken"}}, wantStatus: http.StatusUnprocessableEntity, wantCode: "SCHEMA_ERROR"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			status, body := doGet(t, srv, tt.path, tt.params)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantCode, body["code"])
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestErrors_DoNotEchoDocumentBytes(t *testing.T) {
	t.Parallel()
	srv := setupTestServer(t)

	status, body := doGet(t, srv, "/v1/snapshot", url.Values{"table": {"s3://warehouse/db/leaky"}})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "SCHEMA_ERROR", body["code"])
	assert.Equal(t, "table metadata is malformed", body["error"])
	assert.NotContains(t, body["error"], "hunter2")
	assert.NotContains(t, body["error"], "DB_PASSWORD")
}

func TestNoAllowedRootsServesNothing(t *testing.T) {
	t.Parallel()
	srv := setupTestServerWith(t, func(cfg *HandlerConfig) { cfg.AllowedRoots = nil })

	status, body := doGet(t, srv, "/v1/snapshot", url.Values{"table": {table}})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "TABLE_NOT_ALLOWED", body["code"])
}

func TestAuthentication(t *testing.T) {
	t.Parallel()
	secret := []byte("test-secret")
	srv := setupTestServerWith(t, func(cfg *HandlerConfig) {
		cfg.Auth = &AuthConfig{JWTSecret: secret, APIKeys: []string{"key-one"}}
	})

	sign := func(claims jwt.MapClaims, key []byte) string {
		tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
		require.NoError(t, err)
		return "Bearer " + tok
	}
	valid := jwt.MapClaims{"sub": "alice", "exp": time.Now().Add(time.Hour).Unix()}

	tests := []struct {
		name       string
		headers    map[string]string
		wantStatus int
	}{
		{name: "no credentials", headers: nil, wantStatus: http.StatusUnauthorized},
		{name: "api key", headers: map[string]string{"X-API-Key": "key-one"}, wantStatus: http.StatusOK},
		{name: "wrong api key", headers: map[string]string{"X-API-Key": "key-two"}, wantStatus: http.StatusUnauthorized},
		{name: "bearer token", headers: map[string]string{"Authorization": sign(valid, secret)}, wantStatus: http.StatusOK},
		{name: "token signed with other secret", headers: map[string]string{"Authorization": sign(valid, []byte("other"))}, wantStatus: http.StatusUnauthorized},
		{name: "expired token", headers: map[string]string{"Authorization": sign(jwt.MapClaims{"sub": "alice", "exp": time.Now().Add(-time.Hour).Unix()}, secret)}, wantStatus: http.StatusUnauthorized},
		{name: "token without subject", headers: map[string]string{"Authorization": sign(jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()}, secret)}, wantStatus: http.StatusUnauthorized},
		{name: "bad token falls back to api key", headers: map[string]string{"Authorization": "Bearer junk", "X-API-Key": "key-one"}, wantStatus: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			status, body := doGetWithHeaders(t, srv, "/v1/snapshot", url.Values{"table": {table}}, tt.headers)
			require.Equal(t, tt.wantStatus, status, body)
			if tt.wantStatus == http.StatusUnauthorized {
				assert.Equal(t, "UNAUTHORIZED", body["code"])
			}
		})
	}

	status, _ := doGet(t, srv, "/health", nil)
	assert.Equal(t, http.StatusOK, status, "health stays open")
}

func TestAuthenticator_SetsPrincipal(t *testing.T) {
	t.Parallel()
	var got string
	h := Authenticator(AuthConfig{APIKeys: []string{"", "k"}})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/files", nil)
	req.Header.Set("X-API-Key", "k")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "api-key-0", got)

	assert.True(t, AuthConfig{APIKeys: []string{"k"}}.Enabled())
	assert.False(t, AuthConfig{}.Enabled())
}
