package apiclient

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilenameFromDisposition(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{`attachment; filename="assets.csv"`, "assets.csv"},
		{`attachment; filename=report.pdf`, "report.pdf"},
		{`attachment; filename='single.xlsx'`, "single.xlsx"},
		{`attachment; filename=data.csv; size=120`, "data.csv"},
		{`attachment; filename = "spaced.csv"`, "spaced.csv"},
		{`attachment; filename*=UTF-8''employees%20Q1.csv`, "employees Q1.csv"},
		{`inline`, ""},
		{``, ""},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			assert.Equal(t, tt.want, filenameFromDisposition(tt.header))
		})
	}
}

func TestFetchBlob(t *testing.T) {
	backend := newFakeBackend(t)
	backend.protect("/api/assets/export/", func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Content-Type"), "blob requests make no JSON assumptions")
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="assets.csv"`)
		_, _ = io.WriteString(w, "id,name\n1,Laptop\n")
	})
	tc := newTestClient(t, backend)
	tc.seed(t, "fresh-access", "refresh-1")

	blob, err := tc.client.Blobs().FetchBlob(context.Background(), "/api/assets/export/")
	require.NoError(t, err)
	assert.Equal(t, "assets.csv", blob.Filename)
	assert.Equal(t, "text/csv", blob.ContentType)
	assert.Equal(t, "id,name\n1,Laptop\n", string(blob.Data))
}

func TestFetchBlob_NoRefreshOn401(t *testing.T) {
	backend := newFakeBackend(t)
	backend.protect("/api/assets/export/", func(w http.ResponseWriter, r *http.Request) {})
	tc := newTestClient(t, backend)
	tc.seed(t, "stale-access", "refresh-1")

	_, err := tc.client.Blobs().FetchBlob(context.Background(), "/api/assets/export/")
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, StatusOf(err))
	assert.Equal(t, `{"detail":"Given token not valid for any token type"}`, err.Error(), "raw text, no JSON extraction")
	assert.EqualValues(t, 0, backend.refreshCalls.Load())
}

func TestFetchBlob_EmptyErrorBody(t *testing.T) {
	backend := newFakeBackend(t)
	backend.mux.HandleFunc("/missing.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	tc := newTestClient(t, backend)

	_, err := tc.client.Blobs().FetchBlob(context.Background(), "/missing.pdf")
	require.Error(t, err)
	assert.Equal(t, "HTTP error! status: 404", err.Error())
}

func TestSaveBlob(t *testing.T) {
	backend := newFakeBackend(t)
	backend.mux.HandleFunc("/files/named", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="../../escape.txt"`)
		_, _ = io.WriteString(w, "named")
	})
	backend.mux.HandleFunc("/files/plain.bin", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "plain")
	})
	tc := newTestClient(t, backend)
	dir := t.TempDir()

	target, err := tc.client.Blobs().SaveBlob(context.Background(), "/files/named", dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "escape.txt"), target, "server names cannot leave the directory")

	target, err = tc.client.Blobs().SaveBlob(context.Background(), "/files/plain.bin?v=2", dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "plain.bin"), target)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "plain", string(data))
}
