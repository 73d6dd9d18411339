package client_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/claimhub/search-service/pkg/client"
	"github.com/claimhub/search-service/pkg/search"
	"github.com/claimhub/search-service/pkg/server"
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

func TestClientRoundTrip(t *testing.T) {
	queryer := &fakeQueryer{out: &search.Outputs{
		Total:    3,
		Offset:   1,
		Censored: 1,
		Txos:     []search.Result{{Error: &search.ResultError{Code: search.ErrCodeNotFound, Message: "nope"}}},
	}}
	svr := httptest.NewServer(server.NewServer(queryer))
	defer svr.Close()

	serviceURL, err := url.Parse(svr.URL)
	require.NoError(t, err)
	c := client.New(*serviceURL)

	out, err := c.Resolve(context.Background(), []string{"@alice/song"})
	require.NoError(t, err)
	require.Equal(t, "resolve", queryer.name)
	require.JSONEq(t, `["@alice/song"]`, string(queryer.payload))
	require.Equal(t, queryer.out, out)

	_, err = c.Search(context.Background(), map[string]any{"name": "song"})
	require.NoError(t, err)
	require.Equal(t, "search", queryer.name)
	require.JSONEq(t, `{"name":"song"}`, string(queryer.payload))
}

func TestClientFailedResponse(t *testing.T) {
	svr := httptest.NewServer(server.NewServer(&fakeQueryer{err: search.ErrUnknownQuery}))
	defer svr.Close()

	serviceURL, err := url.Parse(svr.URL)
	require.NoError(t, err)
	c := client.New(*serviceURL)

	_, err = c.Query(context.Background(), "bogus", nil)
	require.Error(t, err)
	var failed client.ErrFailedResponse
	require.ErrorAs(t, err, &failed)
}
