package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/medequip/equipment_backend/config"
	"github.com/medequip/equipment_backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-with-enough-length"

func sessionContext() context.Context {
	ctx := context.Background()
	ctx = utils.SetUserIdInContext(ctx, 12)
	ctx = utils.SetUsernameInContext(ctx, "ktv.hoa")
	ctx = utils.SetRoleInContext(ctx, "technician")
	ctx = utils.SetTenantIdInContext(ctx, 3)
	return ctx
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(config.AppConfig{
		RpcBaseURL:   srv.URL + "/",
		RpcAPIKey:    "anon-key",
		RpcJwtSecret: testSecret,
		RpcTimeout:   2 * time.Second,
	}, NewAllowList("custom_fn"))
	require.NoError(t, err)
	return c
}

func TestCallSendsSignedRequest(t *testing.T) {
	var gotPath, gotKey string
	var gotClaims *utils.BackendClaims
	var gotArgs map[string]any

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("apikey")
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		claims, err := utils.NewJwtSigner(testSecret, time.Minute).Validate(token)
		if err == nil {
			gotClaims = claims
		}
		_ = json.NewDecoder(r.Body).Decode(&gotArgs)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":1,"name":"Khoa Nội"}]`))
	})

	type department struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}
	got, err := CallInto[[]department](sessionContext(), c, "departments_list", map[string]any{"p_don_vi": 3})
	require.NoError(t, err)
	assert.Equal(t, []department{{ID: 1, Name: "Khoa Nội"}}, got)

	assert.Equal(t, "/rpc/departments_list", gotPath)
	assert.Equal(t, "anon-key", gotKey)
	require.NotNil(t, gotClaims)
	assert.Equal(t, utils.BackendRole, gotClaims.Role)
	assert.Equal(t, "technician", gotClaims.AppRole)
	assert.Equal(t, 3, gotClaims.TenantId)
	assert.Equal(t, 12, gotClaims.UserId)
	assert.Equal(t, "12", gotClaims.Subject)
	assert.EqualValues(t, 3, gotArgs["p_don_vi"])
}

func TestCallRejectsUnlistedFunction(t *testing.T) {
	called := false
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	_, err := c.Call(sessionContext(), "drop_everything", nil)
	assert.ErrorIs(t, err, ErrFunctionNotAllowed)
	assert.False(t, called)

	_, err = c.Call(sessionContext(), "custom_fn", nil)
	assert.NoError(t, err)
	assert.True(t, called)
}

func TestCallRequiresIdentity(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	_, err := c.Call(context.Background(), "departments_list", nil)
	assert.ErrorIs(t, err, utils.ErrMissingIdentity)
}

func TestCallParsesBackendError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"code":"23505","message":"duplicate equipment code","details":"Key (ma_thiet_bi)=(TB-01) already exists.","hint":null}`))
	})

	_, err := c.Call(sessionContext(), "equipment_create", map[string]any{"p_data": map[string]any{}})
	var rpcErr *Error
	require.True(t, errors.As(err, &rpcErr))
	assert.Equal(t, "equipment_create", rpcErr.Function)
	assert.Equal(t, http.StatusConflict, rpcErr.Status)
	assert.Equal(t, "23505", rpcErr.Code)
	assert.Equal(t, "duplicate equipment code", rpcErr.Error())
	assert.Contains(t, rpcErr.Details, "TB-01")
	assert.Empty(t, rpcErr.Hint)
}

func TestCallNonJSONError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream unavailable"))
	})
	_, err := c.Call(sessionContext(), "departments_list", nil)
	var rpcErr *Error
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, "upstream unavailable", rpcErr.Message)
}

func TestCallEmptyBodyIsNull(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	raw, err := c.Call(sessionContext(), "maintenance_tasks_delete", map[string]any{"p_ids": []int64{1}})
	require.NoError(t, err)
	assert.Equal(t, "null", string(raw))

	n, err := CallInto[int](sessionContext(), c, "maintenance_tasks_delete", nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCallTimeoutIsOrdinaryError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	})
	c.http.Timeout = 50 * time.Millisecond
	_, err := c.Call(sessionContext(), "departments_list", nil)
	assert.Error(t, err)
}

func TestNewClientNeedsSettings(t *testing.T) {
	_, err := NewClient(config.AppConfig{RpcJwtSecret: "x"}, nil)
	assert.Error(t, err)
	_, err = NewClient(config.AppConfig{RpcBaseURL: "http://localhost"}, nil)
	assert.Error(t, err)
}

func TestAllowListNames(t *testing.T) {
	a := NewAllowList(" extra_fn ", "")
	assert.True(t, a.Allowed("extra_fn"))
	assert.True(t, a.Allowed("maintenance_tasks_bulk_insert"))
	assert.False(t, a.Allowed(""))
	names := a.Names()
	assert.Contains(t, names, "extra_fn")
	assert.NotContains(t, names, "")

	var nilList *AllowList
	assert.False(t, nilList.Allowed("equipment_list"))
}
