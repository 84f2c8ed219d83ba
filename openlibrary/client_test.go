package openlibrary_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ramonpiresone/biblioteca"
	"github.com/ramonpiresone/biblioteca/openlibrary"
	"github.com/ramonpiresone/biblioteca/testutil/testdoubles"
)

const (
	testTimeout = 5 * time.Second

	testISBN = "9780140328721"

	// fullEdition is the jscmd=data response shape the public API returns
	// for a known edition.
	fullEdition = `{
		"ISBN:9780140328721": {
			"url": "https://openlibrary.org/books/OL7353617M/Fantastic_Mr._Fox",
			"key": "/books/OL7353617M",
			"title": "Fantastic Mr. Fox",
			"authors": [
				{"url": "https://openlibrary.org/authors/OL34184A/Roald_Dahl", "name": "Roald Dahl"}
			],
			"identifiers": {
				"goodreads": ["1507552"],
				"isbn_10": ["0140328726"],
				"isbn_13": ["9780140328721"],
				"openlibrary": ["OL7353617M"]
			},
			"publishers": [{"name": "Puffin"}],
			"publish_date": "October 1, 1988",
			"notes": "Includes bibliographical references.",
			"cover": {
				"small": "https://covers.openlibrary.org/b/id/8739161-S.jpg",
				"medium": "https://covers.openlibrary.org/b/id/8739161-M.jpg",
				"large": "https://covers.openlibrary.org/b/id/8739161-L.jpg"
			}
		}
	}`
)

// newTestClient starts a fixture server and returns a client pointed at it.
func newTestClient(t *testing.T, handler http.Handler, options ...openlibrary.Option) *openlibrary.Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	options = append([]openlibrary.Option{
		openlibrary.WithBaseURL(server.URL),
		openlibrary.WithHTTPClient(server.Client()),
	}, options...)

	client, err := openlibrary.NewClient(options...)
	require.NoError(t, err, "error in test setup")

	return client
}

func serveJSON(payload string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(payload))
	})
}

func Test_ByISBN_ResolvesAFullyPopulatedRecord(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	client := newTestClient(t, serveJSON(fullEdition))

	// act
	record, err := client.ByISBN(ctx, testISBN)

	// assert
	require.NoError(t, err)
	assert.Equal(t, biblioteca.BookID("OL7353617M"), record.OLID)
	assert.Equal(t, "Fantastic Mr. Fox", record.Title)
	assert.Equal(t, []string{"Roald Dahl"}, record.Authors)
	assert.Equal(t, []string{"9780140328721", "0140328726"}, record.ISBNs, "isbn_13 entries come before isbn_10")
	assert.Equal(t, "https://covers.openlibrary.org/b/id/8739161-S.jpg", record.Covers.Small)
	assert.Equal(t, "https://covers.openlibrary.org/b/id/8739161-M.jpg", record.Covers.Medium)
	assert.Equal(t, "https://covers.openlibrary.org/b/id/8739161-L.jpg", record.Covers.Large)
	assert.Equal(t, "Includes bibliographical references.", record.Description)
	require.NotNil(t, record.FirstPublishYear)
	assert.Equal(t, 1988, *record.FirstPublishYear)
}

func Test_ByISBN_SendsTheExpectedQuery(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	var captured *url.URL
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = r.URL
		_, _ = w.Write([]byte(`{}`))
	}))

	// act
	_, err := client.ByISBN(ctx, testISBN)

	// assert, an empty payload is a miss but the request shape is what counts
	require.Error(t, err)
	require.NotNil(t, captured)
	assert.Equal(t, "/api/books", captured.Path)
	assert.Equal(t, "ISBN:"+testISBN, captured.Query().Get("bibkeys"))
	assert.Equal(t, "json", captured.Query().Get("format"))
	assert.Equal(t, "data", captured.Query().Get("jscmd"))
}

func Test_ByISBN_FallsBackToTheRecordPathForTheOLID(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	payload := fmt.Sprintf(`{"ISBN:%s": {"key": "/books/OL7353617M", "title": "Fantastic Mr. Fox"}}`, testISBN)
	client := newTestClient(t, serveJSON(payload))

	// act
	record, err := client.ByISBN(ctx, testISBN)

	// assert
	require.NoError(t, err)
	assert.Equal(t, biblioteca.BookID("OL7353617M"), record.OLID)
}

func Test_ByISBN_When_TheBibkeyIsMissing_ReturnsNotFound(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	client := newTestClient(t, serveJSON(`{}`))

	// act
	_, err := client.ByISBN(ctx, testISBN)

	// assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, biblioteca.ErrNotFound))

	var notFound *biblioteca.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "bibliographic record", notFound.Entity)
	assert.Equal(t, testISBN, notFound.ID)
}

func Test_ByISBN_When_TheServerFails_ReturnsUpstreamError(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream exploded", http.StatusInternalServerError)
	}))

	// act
	_, err := client.ByISBN(ctx, testISBN)

	// assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, biblioteca.ErrUpstream))
	assert.False(t, errors.Is(err, biblioteca.ErrNotFound))
}

func Test_ByISBN_When_TheResponseIsMalformed_ReturnsUpstreamError(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	client := newTestClient(t, serveJSON(`<html>definitely not json</html>`))

	// act
	_, err := client.ByISBN(ctx, testISBN)

	// assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, biblioteca.ErrUpstream))
}

func Test_ByISBN_When_TheRecordHasNoTitle_ReturnsUpstreamError(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	payload := fmt.Sprintf(`{"ISBN:%s": {"identifiers": {"openlibrary": ["OL7353617M"]}}}`, testISBN)
	client := newTestClient(t, serveJSON(payload))

	// act
	_, err := client.ByISBN(ctx, testISBN)

	// assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, biblioteca.ErrUpstream), "a partial record must not pass as a hit")
}

func Test_ByISBN_When_TheServerIsUnreachable_ReturnsUpstreamError(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	server := httptest.NewServer(http.NotFoundHandler())
	serverURL := server.URL
	server.Close()

	client, err := openlibrary.NewClient(openlibrary.WithBaseURL(serverURL))
	require.NoError(t, err, "error in test setup")

	// act
	_, err = client.ByISBN(ctx, testISBN)

	// assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, biblioteca.ErrUpstream))
}

func Test_ByISBN_WithABlankISBN_ReturnsValidationError(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	client := newTestClient(t, http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		t.Error("no request must be sent for invalid input")
	}))

	// act
	_, err := client.ByISBN(ctx, "   ")

	// assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, biblioteca.ErrValidation))
}

func Test_ByISBN_ParsesTheFirstPublishYearFromVerboseDates(t *testing.T) {
	testCases := []struct {
		name        string
		publishDate string
		wantYear    *int
	}{
		{name: "verbose date", publishDate: "October 1, 1988", wantYear: yearOf(1988)},
		{name: "iso date", publishDate: "2004-05-01", wantYear: yearOf(2004)},
		{name: "bare year", publishDate: "1968", wantYear: yearOf(1968)},
		{name: "no year at all", publishDate: "n.d.", wantYear: nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// setup
			ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
			defer cancel()

			payload := fmt.Sprintf(
				`{"ISBN:%s": {"key": "/books/OL1M", "title": "Some Title", "publish_date": %q}}`,
				testISBN, tc.publishDate,
			)
			client := newTestClient(t, serveJSON(payload))

			// act
			record, err := client.ByISBN(ctx, testISBN)

			// assert
			require.NoError(t, err)
			if tc.wantYear == nil {
				assert.Nil(t, record.FirstPublishYear)
			} else {
				require.NotNil(t, record.FirstPublishYear)
				assert.Equal(t, *tc.wantYear, *record.FirstPublishYear)
			}
		})
	}
}

func Test_ByISBN_WithLogger_LogsTheOutcome(t *testing.T) {
	// setup
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	spy := testdoubles.NewLoggerSpy()
	client := newTestClient(t, serveJSON(fullEdition), openlibrary.WithLogger(spy))

	// act
	_, err := client.ByISBN(ctx, testISBN)

	// assert
	require.NoError(t, err)
	assert.True(t, spy.HasRecord("debug", "called the open library books api"))
	assert.True(t, spy.HasRecord("info", "bibliographic record resolved"))
	assert.Equal(t, 0, spy.CountLevel("error"))
}

func Test_NewClient_ShouldFail_WithAnEmptyBaseURL(t *testing.T) {
	// act
	_, err := openlibrary.NewClient(openlibrary.WithBaseURL(" / "))

	// assert
	assert.ErrorContains(t, err, openlibrary.ErrInvalidBaseURL.Error())
}

func Test_NewClient_ShouldFail_WithANilHTTPClient(t *testing.T) {
	// act
	_, err := openlibrary.NewClient(openlibrary.WithHTTPClient(nil))

	// assert
	assert.ErrorContains(t, err, openlibrary.ErrNilHTTPClient.Error())
}

func yearOf(year int) *int {
	return &year
}
