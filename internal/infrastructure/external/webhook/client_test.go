package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/garyjia/case-workflow/internal/application/port"
	"github.com/garyjia/case-workflow/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testNotice() port.NewCaseNotice {
	return port.NewCaseNotice{
		Case: &entity.Case{
			ID:        42,
			ClientID:  3,
			ProductID: 7,
			Title:     "Sinistro 42",
			Status:    entity.CaseStatusActive,
			EntryDate: time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC),
		},
		ClientName:  "Acme Seguros",
		ProductName: "Trabalhista",
		Link:        "https://casos.example.com/casos/42",
	}
}

func TestClient_SendNewCase(t *testing.T) {
	var got Payload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second, zap.NewNop())
	require.NoError(t, client.SendNewCase(context.Background(), testNotice()))

	assert.Equal(t, "case.created", got.Event)
	assert.Equal(t, int64(42), got.CaseID)
	assert.Equal(t, "Acme Seguros", got.ClientName)
	assert.Equal(t, "Trabalhista", got.ProductName)
	assert.Equal(t, "https://casos.example.com/casos/42", got.Link)
}

func TestClient_SendNewCaseErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "workflow inactive", http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second, zap.NewNop())
	err := client.SendNewCase(context.Background(), testNotice())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "workflow inactive")
}

func TestClient_SendNewCaseWithoutCase(t *testing.T) {
	client := NewClient("http://127.0.0.1:0", 0, zap.NewNop())
	assert.Error(t, client.SendNewCase(context.Background(), port.NewCaseNotice{}))
}
