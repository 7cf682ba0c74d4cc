package extract

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/sirup-adspend/internal/procurement"
)

type stubFetcher struct {
	body    string
	err     error
	lastURL string
}

func (s *stubFetcher) Get(_ context.Context, rawURL string, _ url.Values) (procurement.FetchResponse, error) {
	s.lastURL = rawURL
	if s.err != nil {
		return procurement.FetchResponse{}, s.err
	}
	return procurement.FetchResponse{StatusCode: 200, Body: []byte(s.body)}, nil
}

type prefixLocator string

func (p prefixLocator) DetailURL(id string) string {
	return string(p) + id
}

func TestFetchDetail(t *testing.T) {
	t.Parallel()

	fetcher := &stubFetcher{body: `<td>Uraian Pekerjaan</td><td>Iklan Surat Kabar</td>`}
	d := NewDetailFetcher(fetcher, prefixLocator("https://portal.test/detail/"), nil, nil)

	require.Equal(t, "Iklan Surat Kabar", d.FetchDetail(context.Background(), "77"))
	require.Equal(t, "https://portal.test/detail/77", fetcher.lastURL)
}

func TestFetchDetailAbsorbsFailures(t *testing.T) {
	t.Parallel()

	failing := &stubFetcher{err: &procurement.FetchError{URL: "x", StatusCode: 500, Attempts: 6}}
	d := NewDetailFetcher(failing, prefixLocator("https://portal.test/"), nil, nil)
	require.Empty(t, d.FetchDetail(context.Background(), "1"))

	noLabel := &stubFetcher{body: "<html></html>"}
	d = NewDetailFetcher(noLabel, prefixLocator("https://portal.test/"), DOMExtractor{}, nil)
	require.Empty(t, d.FetchDetail(context.Background(), "2"))

	canceled := &stubFetcher{err: errors.New("context canceled")}
	d = NewDetailFetcher(canceled, prefixLocator("https://portal.test/"), nil, nil)
	require.Empty(t, d.FetchDetail(context.Background(), "3"))
}
