package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/claimhub/search-service/pkg/build"
	"github.com/claimhub/search-service/pkg/search"
)

type fakeQueryer struct {
	name    string
	payload json.RawMessage
	out     *search.Outputs
	err     error
}

func (f *fakeQueryer) Query(_ context.Context, name string, payload json.RawMessage) (*search.Outputs, error) {
	f.name = name
	f.payload = payload
	if f.err != nil {
		return nil, f.err
	}
	return f.out, nil
}

func TestGetRootHandler(t *testing.T) {
	svr := httptest.NewServer(GetRootHandler())
	defer svr.Close()

	res, err := http.Get(svr.URL)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)

	bytes, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	require.Contains(t, string(bytes), build.Version)
}

func TestPostQueryHandler(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		queryer := &fakeQueryer{out: &search.Outputs{Total: 7, Txos: []search.Result{}}}
		svr := httptest.NewServer(NewServer(queryer))
		defer svr.Close()

		body := `{"method":"resolve","params":["@alice"]}`
		res, err := http.Post(svr.URL+"/query", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, res.StatusCode)
		require.Equal(t, "resolve", queryer.name)
		require.JSONEq(t, `["@alice"]`, string(queryer.payload))

		var out search.Outputs
		require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
		require.Equal(t, int64(7), out.Total)
	})

	t.Run("unknown query", func(t *testing.T) {
		queryer := &fakeQueryer{err: search.ErrUnknownQuery}
		svr := httptest.NewServer(NewServer(queryer))
		defer svr.Close()

		res, err := http.Post(svr.URL+"/query", "application/json", strings.NewReader(`{"method":"bogus"}`))
		require.NoError(t, err)
		require.Equal(t, http.StatusBadRequest, res.StatusCode)
	})

	t.Run("malformed body", func(t *testing.T) {
		svr := httptest.NewServer(NewServer(&fakeQueryer{}))
		defer svr.Close()

		res, err := http.Post(svr.URL+"/query", "application/json", strings.NewReader(`{`))
		require.NoError(t, err)
		require.Equal(t, http.StatusBadRequest, res.StatusCode)
	})
}
