package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedCredential(token string) func() string {
	return func() string { return token }
}

func TestDo_AttachesBearerCredential(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := New(srv.URL, fixedCredential("tok123"), nil)
	require.NoError(t, client.Do(context.Background(), http.MethodGet, "/books", nil, nil, nil))
	assert.Equal(t, "Bearer tok123", got)
}

func TestDo_NoCredentialNoHeader(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := New(srv.URL, fixedCredential(""), nil)
	require.NoError(t, client.Do(context.Background(), http.MethodGet, "/books", nil, nil, nil))
	assert.Empty(t, got)
}

func TestDo_HeaderOverridesReplaceButNeverRemoveAuthorization(t *testing.T) {
	var auth, accept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		accept = r.Header.Get("Accept")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := New(srv.URL, fixedCredential("tok123"), nil)
	overrides := http.Header{"Accept": []string{"text/csv"}}
	require.NoError(t, client.Do(context.Background(), http.MethodGet, "/books/export", nil, nil, overrides))

	assert.Equal(t, "text/csv", accept)
	assert.Equal(t, "Bearer tok123", auth)
}

func TestDo_DecodesResponseBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"id": 7, "title": "Dune"})
	}))
	defer srv.Close()

	var out struct {
		ID    int    `json:"id"`
		Title string `json:"title"`
	}
	client := New(srv.URL, fixedCredential(""), nil)
	require.NoError(t, client.Do(context.Background(), http.MethodGet, "/books/7", nil, &out, nil))
	assert.Equal(t, 7, out.ID)
	assert.Equal(t, "Dune", out.Title)
}

func TestDo_CredentialRejectionTearsSessionDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "token expired", http.StatusUnauthorized)
	}))
	defer srv.Close()

	tornDown := 0
	client := New(srv.URL, fixedCredential("stale"), func() { tornDown++ })

	err := client.Do(context.Background(), http.MethodGet, "/books", nil, nil, nil)
	require.Error(t, err)
	assert.True(t, IsAuthRequired(err))
	assert.Equal(t, 1, tornDown)
}

func TestDoPublic_401IsApplicationFailureWithServerText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Invalid username or password", http.StatusUnauthorized)
	}))
	defer srv.Close()

	tornDown := false
	client := New(srv.URL, fixedCredential(""), func() { tornDown = true })

	err := client.DoPublic(context.Background(), http.MethodPost, "/auth/login",
		map[string]string{"username": "alice", "password": "wrong"}, nil)
	require.Error(t, err)
	assert.True(t, IsApplication(err))
	assert.False(t, IsAuthRequired(err))
	assert.False(t, tornDown)
	assert.Equal(t, "Invalid username or password", err.Error())
	assert.Equal(t, http.StatusUnauthorized, StatusOf(err))
}

func TestDoPublic_NeverSendsCredential(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := New(srv.URL, fixedCredential("tok123"), nil)
	require.NoError(t, client.DoPublic(context.Background(), http.MethodPost, "/auth/login", nil, nil))
	assert.Empty(t, got)
}

func TestDo_ApplicationFailureCarriesVerbatimBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Book has active borrows and cannot be deleted", http.StatusConflict)
	}))
	defer srv.Close()

	client := New(srv.URL, fixedCredential("tok"), nil)
	err := client.Do(context.Background(), http.MethodDelete, "/books/3", nil, nil, nil)
	require.Error(t, err)
	assert.True(t, IsApplication(err))
	assert.Equal(t, http.StatusConflict, StatusOf(err))
	assert.Equal(t, "Book has active borrows and cannot be deleted", err.Error())
}

func TestDo_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listens here anymore

	client := New(srv.URL, fixedCredential(""), nil)
	err := client.Do(context.Background(), http.MethodGet, "/books", nil, nil, nil)
	require.Error(t, err)
	assert.True(t, IsTransport(err))
	assert.Zero(t, StatusOf(err))
}

func TestUpload_SendsMultipartFileField(t *testing.T) {
	var contentType, field, filename, content string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		field = "file"
		filename = header.Filename
		payload, err := io.ReadAll(file)
		require.NoError(t, err)
		content = string(payload)
		json.NewEncoder(w).Encode(map[string]int{"importedCount": 2})
	}))
	defer srv.Close()

	var out struct {
		ImportedCount int `json:"importedCount"`
	}
	client := New(srv.URL, fixedCredential("tok"), nil)
	csv := "title,author\nDune,Herbert\nHyperion,Simmons\n"
	require.NoError(t, client.Upload(context.Background(), "/books/import", "books.csv", strings.NewReader(csv), &out))

	assert.Contains(t, contentType, "multipart/form-data")
	assert.Equal(t, "file", field)
	assert.Equal(t, "books.csv", filename)
	assert.Equal(t, csv, content)
	assert.Equal(t, 2, out.ImportedCount)
}

func TestDownload_ReturnsBlobAndContentType(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		w.Write([]byte("title,author\nDune,Herbert\n"))
	}))
	defer srv.Close()

	client := New(srv.URL, fixedCredential("tok"), nil)
	blob, contentType, err := client.Download(context.Background(), "/books/export")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", contentType)
	assert.Equal(t, "title,author\nDune,Herbert\n", string(blob))
}
