package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRewriteGitHubTreeURL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "tree url without path",
			in:   "https://github.com/kubernetes/kubernetes/tree/master",
			want: "https://raw.githubusercontent.com/kubernetes/kubernetes/master/README.md",
		},
		{
			name: "tree url with path",
			in:   "https://github.com/helm/helm/tree/main/cmd/helm",
			want: "https://raw.githubusercontent.com/helm/helm/main/cmd/helm/README.md",
		},
		{
			name: "trailing slash",
			in:   "https://github.com/helm/helm/tree/main/",
			want: "https://raw.githubusercontent.com/helm/helm/main/README.md",
		},
		{
			name: "blob url untouched",
			in:   "https://github.com/helm/helm/blob/main/README.md",
			want: "https://github.com/helm/helm/blob/main/README.md",
		},
		{
			name: "repo root untouched",
			in:   "https://github.com/helm/helm",
			want: "https://github.com/helm/helm",
		},
		{
			name: "non-github untouched",
			in:   "https://example.com/a/b/tree/main",
			want: "https://example.com/a/b/tree/main",
		},
		{
			name: "empty string untouched",
			in:   "",
			want: "",
		},
		{
			name: "tree without branch untouched",
			in:   "https://github.com/helm/helm/tree",
			want: "https://github.com/helm/helm/tree",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RewriteGitHubTreeURL(tt.in))
		})
	}
}

func TestTruncate(t *testing.T) {
	short := strings.Repeat("a", MaxContentLength)
	assert.Equal(t, short, Truncate(short), "content at the limit is unmodified")

	long := strings.Repeat("b", MaxContentLength+1)
	got := Truncate(long)
	assert.True(t, strings.HasSuffix(got, TruncationMarker))
	assert.Equal(t, MaxContentLength, len(got)-len(TruncationMarker))
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			w.Write([]byte("hello"))
		case "/big":
			w.Write([]byte(strings.Repeat("x", MaxContentLength+500)))
		case "/missing":
			http.Error(w, "nope", http.StatusNotFound)
		case "/redirect":
			http.Redirect(w, r, "/ok", http.StatusFound)
		}
	}))
	defer srv.Close()

	f := New(0)
	ctx := context.Background()

	got, err := f.Fetch(ctx, srv.URL+"/ok")
	require.NoError(t, err)
	assert.Equal(t, "hello", got)

	got, err = f.Fetch(ctx, srv.URL+"/big")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(got, TruncationMarker))

	got, err = f.Fetch(ctx, srv.URL+"/missing")
	require.NoError(t, err, "non-200 is content, not an error")
	assert.Contains(t, got, "HTTP 404")
	assert.Contains(t, got, "nope")

	got, err = f.Fetch(ctx, srv.URL+"/redirect")
	require.NoError(t, err)
	assert.Equal(t, "hello", got, "redirects are followed")

	_, err = f.Fetch(ctx, "http://127.0.0.1:1/unreachable")
	assert.Error(t, err, "transport failure surfaces as an error")
}
