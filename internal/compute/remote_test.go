package compute

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aevon-lab/salestrack/internal/core/aggregation"
	"github.com/stretchr/testify/require"
)

func TestRemote_Unconfigured(t *testing.T) {
	_, err := NewRemote("", time.Second).Compute(context.Background())
	require.ErrorIs(t, err, ErrUnavailable)
}

func TestRemote_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		_ = json.NewEncoder(w).Encode(Envelope{
			Success: true,
			Data: &aggregation.CachedResult{
				Performances: []aggregation.Performance{{Agreement: aggregation.Agreement{CustomerCode: "C1"}}},
				Summary:      aggregation.Summary{CustomerCount: 1},
				ComputedAt:   time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
			},
			Message: "Processed 1 customers",
		})
	}))
	defer srv.Close()

	result, err := NewRemote(srv.URL, time.Second).Compute(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, result.ID, "a result without id gets one")
	require.Len(t, result.Performances, 1)
	require.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), result.ComputedAt)
}

func TestRemote_Failures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"server error with body", http.StatusInternalServerError, `{"success":false,"error":"disk full"}`, "disk full"},
		{"server error without body", http.StatusBadGateway, `upstream`, "502"},
		{"success flag false", http.StatusOK, `{"success":false,"error":"no valid sales data"}`, "no valid sales data"},
		{"missing data", http.StatusOK, `{"success":true}`, "reported failure"},
		{"garbage", http.StatusOK, `<html>`, "decode compute response"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewRemote(srv.URL, time.Second).Compute(context.Background())
			require.ErrorContains(t, err, tt.wantErr)
			require.NotErrorIs(t, err, ErrUnavailable)
		})
	}
}

func TestRemote_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewRemote(url, 200*time.Millisecond).Compute(context.Background())
	require.ErrorContains(t, err, "call compute endpoint")
}
