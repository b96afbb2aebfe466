package yclients

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c := New(Config{
		BaseURL:      server.URL,
		CompanyID:    123,
		PartnerToken: "partner-token",
		UserToken:    "user-token",
	}, zap.NewNop())
	// Ретраи и лимитер без реальных пауз.
	c.sleep = func(context.Context, time.Duration) error { return nil }
	c.limiter.sleep = c.sleep
	return c, server
}

func TestClient_Headers(t *testing.T) {
	var gotAuth, gotAccept, gotContentType string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotAccept = r.Header.Get("Accept")
		gotContentType = r.Header.Get("Content-Type")
		w.Write([]byte(`{"data": []}`))
	})

	_, err := c.Records(context.Background(), time.Now(), time.Now().Add(time.Hour), 0)
	require.NoError(t, err)

	assert.Equal(t, "Bearer partner-token, User user-token", gotAuth)
	assert.Equal(t, "application/vnd.api.v2+json", gotAccept)
	assert.Equal(t, "application/json", gotContentType)
}

func TestClient_PartnerTokenOnlyAuth(t *testing.T) {
	var gotAuth string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"data": []}`))
	})
	c.cfg.UserToken = ""

	_, err := c.Services(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer partner-token", gotAuth)
}

func TestClient_MissingPartnerToken(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})
	c.cfg.PartnerToken = ""

	_, err := c.Records(context.Background(), time.Now(), time.Now(), 0)

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestClient_ServerErrorRetriedThreeTimes(t *testing.T) {
	attempts := 0
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"message": "internal failure"}`))
	})

	records, err := c.Records(context.Background(), time.Now(), time.Now().Add(time.Hour), 0)

	var serverErr *ServerError
	require.ErrorAs(t, err, &serverErr)
	assert.Equal(t, "internal failure", serverErr.Message)
	assert.Equal(t, retryAttempts, attempts)
	assert.Empty(t, records)
}

func TestClient_ServerErrorRecoversOnRetry(t *testing.T) {
	attempts := 0
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"data": [{"id": 7, "client": {"id": 42}, "datetime": "2025-03-01 14:00:00", "services": [{"title": "Стрижка"}], "staff": {"name": "Анна"}}]}`))
	})

	records, err := c.Records(context.Background(), time.Now(), time.Now().Add(time.Hour), 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(7), records[0].ID)
	assert.Equal(t, int64(42), records[0].ClientID)
	assert.Equal(t, "Стрижка", records[0].ServiceName)
	assert.Equal(t, "Анна", records[0].StaffName)
	assert.Equal(t, time.Date(2025, 3, 1, 14, 0, 0, 0, time.UTC), records[0].StartAt)
	assert.Equal(t, 3, attempts)
}

func TestClient_RateLimitNotRetried(t *testing.T) {
	attempts := 0
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.Staff(context.Background())

	var rateErr *RateLimitError
	require.ErrorAs(t, err, &rateErr)
	assert.Equal(t, 1, attempts)
}

func TestClient_ClientErrorNotRetried(t *testing.T) {
	attempts := 0
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message": "record not found"}`))
	})

	_, err := c.Record(context.Background(), 99)

	var clientErr *ClientError
	require.ErrorAs(t, err, &clientErr)
	assert.Equal(t, http.StatusNotFound, clientErr.Status)
	assert.Equal(t, "record not found", clientErr.Message)
	assert.Equal(t, 1, attempts)
}

func TestClient_RecordsQueryParams(t *testing.T) {
	var gotPath, gotQuery string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{"data": []}`))
	})

	from := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	to := time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC)
	_, err := c.Records(context.Background(), from, to, 42)
	require.NoError(t, err)

	assert.Equal(t, "/records/123", gotPath)
	assert.Contains(t, gotQuery, "start_date=2025-03-01")
	assert.Contains(t, gotQuery, "end_date=2025-03-02")
	assert.Contains(t, gotQuery, "client_id=42")
}

func TestClient_UpdateRecordStatus(t *testing.T) {
	tests := []struct {
		name       string
		status     string
		serverCode int
		want       bool
		attendance float64
	}{
		{name: "confirm ok", status: StatusConfirmed, serverCode: http.StatusOK, want: true, attendance: 1},
		{name: "cancel ok", status: StatusCancelled, serverCode: http.StatusOK, want: true, attendance: -1},
		{name: "server failure", status: StatusConfirmed, serverCode: http.StatusInternalServerError, want: false, attendance: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotBody map[string]interface{}
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPut, r.Method)
				require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
				w.WriteHeader(tt.serverCode)
				w.Write([]byte(`{"data": {}}`))
			})

			ok := c.UpdateRecordStatus(context.Background(), 55, tt.status, "комментарий")
			assert.Equal(t, tt.want, ok)
			assert.Equal(t, tt.attendance, gotBody["attendance"])
			assert.Equal(t, "комментарий", gotBody["comment"])
		})
	}
}

func TestClient_FindClientStripsPhone(t *testing.T) {
	var gotPhone string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPhone = r.URL.Query().Get("phone")
		w.Write([]byte(`{"data": [{"id": 10, "name": "Иван", "phone": "+7 (900) 123-45-67"}]}`))
	})

	client, err := c.FindClient(context.Background(), "+7 (900) 123-45-67", "")
	require.NoError(t, err)
	require.NotNil(t, client)
	assert.Equal(t, "79001234567", gotPhone)
	assert.Equal(t, int64(10), client.ID)
	assert.Equal(t, "Иван", client.Name)
}

func TestClient_FindClientNoMatch(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": []}`))
	})

	client, err := c.FindClient(context.Background(), "+79000000000", "")
	require.NoError(t, err)
	assert.Nil(t, client)
}

func TestClient_FindClientRequiresContact(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	_, err := c.FindClient(context.Background(), "", "")
	require.Error(t, err)
}

func TestClient_TransportErrorRetried(t *testing.T) {
	c, server := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	server.Close()

	_, err := c.Services(context.Background())

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
}

func TestAPITimeFormats(t *testing.T) {
	tests := []struct {
		raw  string
		want time.Time
	}{
		{`"2025-03-01T14:30:00+03:00"`, time.Date(2025, 3, 1, 11, 30, 0, 0, time.UTC)},
		{`"2025-03-01T14:30:00"`, time.Date(2025, 3, 1, 14, 30, 0, 0, time.UTC)},
		{`"2025-03-01 14:30:00"`, time.Date(2025, 3, 1, 14, 30, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		var at apiTime
		require.NoError(t, at.UnmarshalJSON([]byte(tt.raw)), tt.raw)
		assert.True(t, tt.want.Equal(time.Time(at)), tt.raw)
	}
}
