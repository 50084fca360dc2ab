package gcs

import (
	"context"
	"io"
	"io/fs"
	"net/http"
	"strings"
	"testing"

	"cloud.google.com/go/storage"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

type roundTripperFunc func(req *http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// fakeBucket answers the JSON listing call and object reads over either the
// XML or the JSON media endpoint.
func fakeBucket(t *testing.T, bucket string, objects map[string]string) *storage.Client {
	t.Helper()

	respond := func(r *http.Request, status int, body string) *http.Response {
		h := make(http.Header)
		h.Set("Content-Type", "application/json")
		return &http.Response{
			StatusCode:    status,
			Body:          io.NopCloser(strings.NewReader(body)),
			ContentLength: int64(len(body)),
			Header:        h,
			Request:       r,
		}
	}

	client, err := storage.NewClient(context.Background(),
		option.WithoutAuthentication(),
		option.WithHTTPClient(&http.Client{
			Transport: roundTripperFunc(func(r *http.Request) (*http.Response, error) {
				path := r.URL.Path
				switch {
				case strings.HasSuffix(path, "/b/"+bucket+"/o"):
					return respond(r, http.StatusOK, `{"kind":"storage#objects","prefixes":["pubs/drafts/"],"items":[`+
						`{"name":"pubs/b.mdx","bucket":"`+bucket+`"},`+
						`{"name":"pubs/a.mdx","bucket":"`+bucket+`"},`+
						`{"name":"pubs/linkedin.json","bucket":"`+bucket+`"}]}`), nil
				case strings.Contains(path, "/b/"+bucket+"/o/"):
					name := path[strings.Index(path, "/o/")+3:]
					if body, ok := objects[name]; ok {
						return respond(r, http.StatusOK, body), nil
					}
					return respond(r, http.StatusNotFound, `{"error":{"code":404,"message":"No such object"}}`), nil
				case strings.HasPrefix(path, "/"+bucket+"/"):
					name := strings.TrimPrefix(path, "/"+bucket+"/")
					if body, ok := objects[name]; ok {
						return respond(r, http.StatusOK, body), nil
					}
					return respond(r, http.StatusNotFound, "NoSuchKey"), nil
				}
				return respond(r, http.StatusBadRequest, "unexpected "+path), nil
			}),
		}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestContentSourceList(t *testing.T) {
	t.Parallel()

	src, err := New(fakeBucket(t, "site-content", nil), Config{Bucket: "site-content", Prefix: "/pubs/"})
	require.NoError(t, err)

	names, err := src.List(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"a.mdx", "b.mdx", "linkedin.json"}, names)
}

func TestContentSourceRead(t *testing.T) {
	t.Parallel()

	client := fakeBucket(t, "site-content", map[string]string{"pubs/a.mdx": "---\ntitle: A\n---\nbody"})
	src, err := New(client, Config{Bucket: "site-content", Prefix: "pubs"})
	require.NoError(t, err)

	data, err := src.Read(context.Background(), "a.mdx")
	require.NoError(t, err)
	require.Equal(t, "---\ntitle: A\n---\nbody", string(data))

	_, err = src.Read(context.Background(), "missing.mdx")
	require.ErrorIs(t, err, fs.ErrNotExist)

	_, err = src.Read(context.Background(), "../secret")
	require.ErrorIs(t, err, fs.ErrNotExist)
}

func TestNewValidates(t *testing.T) {
	t.Parallel()

	_, err := New(nil, Config{Bucket: "b"})
	require.Error(t, err)

	client := fakeBucket(t, "b", nil)
	_, err = New(client, Config{})
	require.Error(t, err)
}
