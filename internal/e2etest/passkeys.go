package e2etest

import (
	"context"
	"github.com/PuerkitoBio/goquery"
	"github.com/descope/virtualwebauthn"
	"github.com/justinas/nosurf"
	"github.com/myrjola/decisionverse/internal/errors"
	"io"
	"log/slog"
	"net/http"
	neturl "net/url"
	"strings"
)

const (
	registrationStartURLPath = "/api/registration/start"
	loginStartURLPath        = "/api/login/start"
)

// Register enters inviteCode, registers a new admin passkey and returns the admin dashboard document.
func (c *Client) Register(ctx context.Context, inviteCode string) (*goquery.Document, error) {
	page, err := c.SubmitForm(ctx, "/admin/register", "/admin/register", neturl.Values{"invite_code": {inviteCode}})
	if err != nil {
		return nil, errors.Wrap(err, "submit invite code")
	}
	if page.StatusCode != http.StatusOK {
		return nil, errors.New("invite code rejected", slog.Int("status", page.StatusCode))
	}

	var csrfToken string
	if csrfToken, err = c.extractCSRFToken(page.Doc, registrationStartURLPath); err != nil {
		return nil, errors.Wrap(err, "extract CSRF token")
	}

	var body []byte
	if body, err = c.postJSON(ctx, registrationStartURLPath, csrfToken, ""); err != nil {
		return nil, errors.Wrap(err, "start registration")
	}
	var attOpts *virtualwebauthn.AttestationOptions
	if attOpts, err = virtualwebauthn.ParseAttestationOptions(string(body)); err != nil {
		return nil, errors.Wrap(err, "parse attestation options")
	}

	credential := virtualwebauthn.NewCredential(virtualwebauthn.KeyTypeEC2)
	attestationResponse := virtualwebauthn.CreateAttestationResponse(c.rp, c.authenticator, credential, *attOpts)
	if _, err = c.postJSON(ctx, "/api/registration/finish", csrfToken, attestationResponse); err != nil {
		return nil, errors.Wrap(err, "finish registration")
	}

	// The credential can now be used for logging in.
	c.authenticator.AddCredential(credential)
	// Passkey login identifies the admin by the user handle.
	c.authenticator.Options.UserHandle = []byte(attOpts.UserID)

	var doc *goquery.Document
	if doc, err = c.GetDoc(ctx, "/admin"); err != nil {
		return nil, errors.Wrap(err, "get dashboard after registration")
	}
	return doc, nil
}

// Login signs in with the passkey created by [Client.Register] and returns the admin dashboard document.
func (c *Client) Login(ctx context.Context) (*goquery.Document, error) {
	if len(c.authenticator.Credentials) == 0 {
		return nil, errors.New("no registered passkey")
	}
	doc, err := c.GetDoc(ctx, "/admin/login")
	if err != nil {
		return nil, errors.Wrap(err, "get login page")
	}

	var csrfToken string
	if csrfToken, err = c.extractCSRFToken(doc, loginStartURLPath); err != nil {
		return nil, errors.Wrap(err, "extract CSRF token")
	}

	var body []byte
	if body, err = c.postJSON(ctx, loginStartURLPath, csrfToken, ""); err != nil {
		return nil, errors.Wrap(err, "start login")
	}
	var asOpts *virtualwebauthn.AssertionOptions
	if asOpts, err = virtualwebauthn.ParseAssertionOptions(string(body)); err != nil {
		return nil, errors.Wrap(err, "parse assertion options")
	}

	credential := c.authenticator.Credentials[0]
	asResp := virtualwebauthn.CreateAssertionResponse(c.rp, c.authenticator, credential, *asOpts)
	if _, err = c.postJSON(ctx, "/api/login/finish", csrfToken, asResp); err != nil {
		return nil, errors.Wrap(err, "finish login")
	}

	if doc, err = c.GetDoc(ctx, "/admin"); err != nil {
		return nil, errors.Wrap(err, "get dashboard after login")
	}
	return doc, nil
}

// Logout submits the logout form of the admin dashboard and returns the page it redirects to.
func (c *Client) Logout(ctx context.Context) (*goquery.Document, error) {
	page, err := c.SubmitForm(ctx, "/admin", "/api/logout", nil)
	if err != nil {
		return nil, errors.Wrap(err, "submit logout form")
	}
	if page.StatusCode != http.StatusOK {
		return nil, errors.New("unexpected status code", slog.Int("status", page.StatusCode))
	}
	return page.Doc, nil
}

// postJSON posts body to urlPath with the CSRF header and returns the response body of a 200 OK response.
func (c *Client) postJSON(ctx context.Context, urlPath, csrfToken, body string) ([]byte, error) {
	var reqBody io.Reader
	if body != "" {
		reqBody = strings.NewReader(body)
	}
	req, err := c.newRequestWithContext(ctx, http.MethodPost, urlPath, reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(nosurf.HeaderName, csrfToken)
	var resp *http.Response
	if resp, err = c.client.Do(req); err != nil {
		return nil, errors.Wrap(err, "do request")
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	var respBody []byte
	if respBody, err = io.ReadAll(resp.Body); err != nil {
		return nil, errors.Wrap(err, "read body bytes")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.New("unexpected status code",
			slog.Int("status", resp.StatusCode), slog.String("path", urlPath))
	}
	return respBody, nil
}
