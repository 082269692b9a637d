package e2etest

import (
	"context"
	"fmt"
	"github.com/PuerkitoBio/goquery"
	"github.com/descope/virtualwebauthn"
	"github.com/myrjola/decisionverse/internal/errors"
	"io"
	"log/slog"
	"net/http"
	neturl "net/url"
	"strings"
	"time"
)

type Client struct {
	client        *http.Client
	url           string
	rp            virtualwebauthn.RelyingParty
	authenticator virtualwebauthn.Authenticator
}

// NewClient creates a cookie keeping HTTP client with a virtual passkey authenticator.
//
// rpID and rpOrigin should correspond to the WebAuthn setup on the server.
func NewClient(url, rpID, rpOrigin string) (*Client, error) {
	jar, err := newUnsafeCookieJar()
	if err != nil {
		return nil, errors.Wrap(err, "create unsafe cookie jar")
	}
	return &Client{
		client:        &http.Client{Jar: jar}, //nolint:exhaustruct // defaults
		url:           url,
		rp:            virtualwebauthn.RelyingParty{Name: "DecisionVerse", ID: rpID, Origin: rpOrigin},
		authenticator: virtualwebauthn.NewAuthenticator(),
	}, nil
}

// URL is the base URL of the server.
func (c *Client) URL() string {
	return c.url
}

// WaitForReady polls urlPath until it answers 200 OK, the context is cancelled or one second has passed.
func (c *Client) WaitForReady(ctx context.Context, urlPath string) error {
	timeout := 1 * time.Second
	startTime := time.Now()
	for {
		resp, err := c.Get(ctx, urlPath)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "context cancelled")
		default:
			if time.Since(startTime) >= timeout {
				return errors.New("timeout waiting for endpoint to be ready", slog.String("path", urlPath))
			}
			time.Sleep(50 * time.Millisecond) //nolint:mnd // 50ms
		}
	}
}

// Get fetches urlPath and returns the response. Redirects are followed.
func (c *Client) Get(ctx context.Context, urlPath string) (*http.Response, error) {
	req, err := c.newRequestWithContext(ctx, http.MethodGet, urlPath, nil)
	if err != nil {
		return nil, err
	}
	var resp *http.Response
	if resp, err = c.client.Do(req); err != nil {
		return nil, errors.Wrap(err, "do request", slog.String("path", urlPath))
	}
	return resp, nil
}

// GetDoc fetches urlPath and parses the 200 OK response as HTML.
func (c *Client) GetDoc(ctx context.Context, urlPath string) (*goquery.Document, error) {
	page, err := c.GetPage(ctx, urlPath)
	if err != nil {
		return nil, err
	}
	if page.StatusCode != http.StatusOK {
		return nil, errors.New("unexpected status code",
			slog.Int("status", page.StatusCode), slog.String("path", urlPath))
	}
	return page.Doc, nil
}

// Page is a parsed HTML response together with where it was served from.
type Page struct {
	StatusCode int
	// URL is the final URL after redirects.
	URL *neturl.URL
	Doc *goquery.Document
}

// GetPage fetches urlPath and parses the response as HTML regardless of the status code.
func (c *Client) GetPage(ctx context.Context, urlPath string) (*Page, error) {
	resp, err := c.Get(ctx, urlPath)
	if err != nil {
		return nil, err
	}
	return readPage(resp)
}

func readPage(resp *http.Response) (*Page, error) {
	defer func() {
		_ = resp.Body.Close()
	}()
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "create document from reader")
	}
	return &Page{StatusCode: resp.StatusCode, URL: resp.Request.URL, Doc: doc}, nil
}

func (c *Client) newRequestWithContext(
	ctx context.Context,
	method, urlPath string,
	body io.Reader,
) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.url+urlPath, body)
	if err != nil {
		return nil, errors.Wrap(err, "create request", slog.String("method", method), slog.String("path", urlPath))
	}
	return req, nil
}

func findForm(doc *goquery.Document, formActionURLPath string) (*goquery.Selection, error) {
	formSelector := fmt.Sprintf("form[action='%s']", formActionURLPath)
	form := doc.Find(formSelector)
	if form.Length() != 1 {
		return nil, errors.New("form not found",
			slog.String("selector", formSelector), slog.Int("matches", form.Length()))
	}
	return form, nil
}

func (c *Client) extractCSRFToken(doc *goquery.Document, formActionURLPath string) (string, error) {
	form, err := findForm(doc, formActionURLPath)
	if err != nil {
		return "", err
	}
	csrfToken, ok := form.Find("input[name=csrf_token]").Attr("value")
	if !ok {
		return "", errors.New("csrf_token not found in form", slog.String("action", formActionURLPath))
	}
	return csrfToken, nil
}

// SubmitForm loads formURLPath and submits its form with action formActionURLPath.
//
// The hidden inputs of the form, the CSRF token among them, are sent along with values. Values override hidden
// inputs of the same name.
func (c *Client) SubmitForm(
	ctx context.Context,
	formURLPath string,
	formActionURLPath string,
	values neturl.Values,
) (*Page, error) {
	doc, err := c.GetDoc(ctx, formURLPath)
	if err != nil {
		return nil, errors.Wrap(err, "get document")
	}
	return c.SubmitDocForm(ctx, doc, formActionURLPath, values)
}

// SubmitDocForm submits the form with action formActionURLPath found in an already loaded document.
func (c *Client) SubmitDocForm(
	ctx context.Context,
	doc *goquery.Document,
	formActionURLPath string,
	values neturl.Values,
) (*Page, error) {
	form, err := findForm(doc, formActionURLPath)
	if err != nil {
		return nil, err
	}

	formData := neturl.Values{}
	form.Find("input[type=hidden]").Each(func(_ int, s *goquery.Selection) {
		name, _ := s.Attr("name")
		value, _ := s.Attr("value")
		if name != "" {
			formData.Set(name, value)
		}
	})
	for name, vs := range values {
		formData[name] = vs
	}
	return c.PostForm(ctx, formActionURLPath, formData)
}

// PostForm posts url encoded formData to urlPath and parses the page it ends on.
func (c *Client) PostForm(ctx context.Context, urlPath string, formData neturl.Values) (*Page, error) {
	req, err := c.newRequestWithContext(ctx, http.MethodPost, urlPath, strings.NewReader(formData.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	var resp *http.Response
	if resp, err = c.client.Do(req); err != nil {
		return nil, errors.Wrap(err, "do request", slog.String("path", urlPath))
	}
	return readPage(resp)
}

// PostHx posts formData the way the play script does. The server answers with an HX-Redirect header instead of a
// redirect, so the response is returned as is.
func (c *Client) PostHx(ctx context.Context, urlPath string, formData neturl.Values) (*http.Response, error) {
	req, err := c.newRequestWithContext(ctx, http.MethodPost, urlPath, strings.NewReader(formData.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("HX-Request", "true")
	var resp *http.Response
	if resp, err = c.client.Do(req); err != nil {
		return nil, errors.Wrap(err, "do request", slog.String("path", urlPath))
	}
	return resp, nil
}
