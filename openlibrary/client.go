package openlibrary

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/ramonpiresone/biblioteca"
)

const (
	// DefaultBaseURL is the public Open Library endpoint.
	DefaultBaseURL = "https://openlibrary.org"

	booksPath      = "/api/books"
	defaultTimeout = 10 * time.Second

	operationByISBN = "openlibrary_by_isbn"

	logMsgAPICalled      = "called the open library books api"
	logMsgRecordResolved = "bibliographic record resolved"
	logMsgRecordMissing  = "bibliographic record not found"
	logMsgLookupFailed   = "bibliographic lookup failed"
	logMsgCloseFailed    = "failed to close the response body"

	logAttrISBN       = "isbn"
	logAttrOLID       = "olid"
	logAttrStatus     = "status"
	logAttrDurationMS = "duration_ms"
	logAttrError      = "error"
)

// Client resolves ISBNs against the Open Library Books API.
type Client struct {
	baseURL          string
	httpClient       *http.Client
	logger           Logger
	contextualLogger ContextualLogger
}

var _ biblioteca.BibliographicLookup = (*Client)(nil)

// NewClient creates a Client for the public Open Library endpoint with
// optional configuration.
func NewClient(options ...Option) (*Client, error) {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}

	for _, option := range options {
		if err := option(c); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// ByISBN fetches the bibliographic record for the ISBN.
func (c *Client) ByISBN(ctx context.Context, isbn string) (biblioteca.BibliographicRecord, error) {
	trimmed := strings.TrimSpace(isbn)
	if trimmed == "" {
		return biblioteca.BibliographicRecord{}, biblioteca.NewValidationError("isbn", "must not be empty")
	}

	start := time.Now()
	bibkey := "ISBN:" + trimmed

	request, requestErr := c.newLookupRequest(ctx, bibkey)
	if requestErr != nil {
		return biblioteca.BibliographicRecord{}, biblioteca.NewUpstreamError(operationByISBN, requestErr)
	}

	response, doErr := c.httpClient.Do(request)
	if doErr != nil {
		c.logError(ctx, logMsgLookupFailed, doErr, logAttrISBN, trimmed)

		return biblioteca.BibliographicRecord{}, biblioteca.NewUpstreamError(operationByISBN, doErr)
	}
	defer c.closeBody(ctx, response.Body)

	c.logDebug(ctx, logMsgAPICalled,
		logAttrISBN, trimmed,
		logAttrStatus, response.StatusCode,
		logAttrDurationMS, toMilliseconds(time.Since(start)),
	)

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		statusErr := fmt.Errorf("unexpected response status %q", response.Status)
		c.logError(ctx, logMsgLookupFailed, statusErr, logAttrISBN, trimmed)

		return biblioteca.BibliographicRecord{}, biblioteca.NewUpstreamError(operationByISBN, statusErr)
	}

	payload := make(map[string]editionData)
	if decodeErr := jsoniter.ConfigCompatibleWithStandardLibrary.NewDecoder(response.Body).Decode(&payload); decodeErr != nil {
		c.logError(ctx, logMsgLookupFailed, decodeErr, logAttrISBN, trimmed)

		return biblioteca.BibliographicRecord{}, biblioteca.NewUpstreamError(operationByISBN, decodeErr)
	}

	edition, found := payload[bibkey]
	if !found {
		c.logDebug(ctx, logMsgRecordMissing, logAttrISBN, trimmed)

		return biblioteca.BibliographicRecord{}, biblioteca.NewNotFoundError("bibliographic record", trimmed)
	}

	record, mapErr := mapEdition(edition)
	if mapErr != nil {
		c.logError(ctx, logMsgLookupFailed, mapErr, logAttrISBN, trimmed)

		return biblioteca.BibliographicRecord{}, biblioteca.NewUpstreamError(operationByISBN, mapErr)
	}

	c.logInfo(ctx, logMsgRecordResolved,
		logAttrISBN, trimmed,
		logAttrOLID, record.OLID.String(),
		logAttrDurationMS, toMilliseconds(time.Since(start)),
	)

	return record, nil
}

func (c *Client) newLookupRequest(ctx context.Context, bibkey string) (*http.Request, error) {
	query := url.Values{
		"bibkeys": []string{bibkey},
		"format":  []string{"json"},
		"jscmd":   []string{"data"},
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+booksPath+"?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}

	request.Header.Set("Accept", "application/json")

	return request, nil
}

func (c *Client) closeBody(ctx context.Context, body io.ReadCloser) {
	if closeErr := body.Close(); closeErr != nil {
		c.logWarn(ctx, logMsgCloseFailed, logAttrError, closeErr.Error())
	}
}

func (c *Client) logDebug(ctx context.Context, msg string, args ...any) {
	if c.contextualLogger != nil {
		c.contextualLogger.DebugContext(ctx, msg, args...)

		return
	}

	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

func (c *Client) logInfo(ctx context.Context, msg string, args ...any) {
	if c.contextualLogger != nil {
		c.contextualLogger.InfoContext(ctx, msg, args...)

		return
	}

	if c.logger != nil {
		c.logger.Info(msg, args...)
	}
}

func (c *Client) logWarn(ctx context.Context, msg string, args ...any) {
	if c.contextualLogger != nil {
		c.contextualLogger.WarnContext(ctx, msg, args...)

		return
	}

	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}

func (c *Client) logError(ctx context.Context, msg string, err error, args ...any) {
	allArgs := []any{logAttrError, err.Error()}
	allArgs = append(allArgs, args...)

	if c.contextualLogger != nil {
		c.contextualLogger.ErrorContext(ctx, msg, allArgs...)

		return
	}

	if c.logger != nil {
		c.logger.Error(msg, allArgs...)
	}
}

// toMilliseconds converts a time.Duration to float64 milliseconds with 3 decimal places.
func toMilliseconds(d time.Duration) float64 {
	return math.Round(float64(d.Nanoseconds())/1e6*1000) / 1000
}
