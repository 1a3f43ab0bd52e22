package serverapp

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"table-graphql/internal/config"
	"table-graphql/internal/sqlutil"
)

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name       string
		pingErr    error
		wantStatus int
		wantBody   string
	}{
		{name: "healthy", wantStatus: http.StatusOK, wantBody: `{"status":"healthy","database":"ok"}`},
		{name: "unhealthy", pingErr: errors.New("gone"), wantStatus: http.StatusServiceUnavailable, wantBody: `{"status":"unhealthy","database":"failed"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
			require.NoError(t, err)
			defer db.Close()

			expect := mock.ExpectPing()
			if tt.pingErr != nil {
				expect.WillReturnError(tt.pingErr)
			}

			rec := httptest.NewRecorder()
			healthHandler(db, time.Second)(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.JSONEq(t, tt.wantBody, rec.Body.String())
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestWaitForDatabase_RetriesUntilReady(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing().WillReturnError(errors.New("not yet"))
	mock.ExpectPing()

	cfg := &config.Config{Database: config.DatabaseConfig{
		ConnectionTimeout:       time.Second,
		ConnectionRetryInterval: time.Millisecond,
	}}
	require.NoError(t, waitForDatabase(t.Context(), cfg, testLogger(), db))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWaitForDatabase_SingleAttemptWithoutTimeout(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing().WillReturnError(errors.New("refused"))

	cfg := &config.Config{}
	require.Error(t, waitForDatabase(t.Context(), cfg, testLogger(), db))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDBSystemAttribute(t *testing.T) {
	assert.Equal(t, "mysql", dbSystemAttribute(sqlutil.DialectMySQL).Value.AsString())
	assert.Equal(t, "postgresql", dbSystemAttribute(sqlutil.DialectPostgres).Value.AsString())
	assert.Equal(t, "sqlite", dbSystemAttribute(sqlutil.DialectSQLite).Value.AsString())
}

func TestBuildRouter_MetricsEndpointOnlyWhenEnabled(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	graphqlHandler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	mux := buildRouter(&config.Config{}, testLogger(), db, graphqlHandler, nil, nil)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/graphql", rec.Header().Get("Location"))

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/graphql", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/admin/reload-schema", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
