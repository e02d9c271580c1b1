package hostcert

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strings"
)

// SubmitFields carries the fixed metadata the CA's request form expects.
type SubmitFields struct {
	Salutation string
	Email      string
	Phone      string
	RAName     string
	RAID       string
	Comment    string
	SANList    []string
}

// CAClient talks to the CA's non-API web endpoints. Transport success on
// FetchCertificate does not imply a certificate was returned; the body is
// the only signal.
type CAClient interface {
	SubmitRequest(ctx context.Context, csrPEM []byte, fields SubmitFields) error
	FetchCertificate(ctx context.Context, hostname string) ([]byte, error)
}

// TrustStoreDownloader fetches the CA chain file into the cache.
type TrustStoreDownloader interface {
	Download(ctx context.Context, path string) error
}

// Form field names and constant tokens of the CA's request form. These are
// the CA's wire contract; do not change them.
const (
	formFieldSalutation = "anrede"
	formFieldEmail      = "mail"
	formFieldPhone      = "telefon"
	formFieldRAName     = "raname"
	formFieldRAID       = "ranummer"
	formFieldComment    = "bemerkung"
	formFieldPEM        = "pemdatei"
	formFieldType       = "antragstyp"
	formFieldSubmit     = "absenden"

	formValueType   = "Serverzertifikat"
	formValueSubmit = "Antrag absenden"

	fetchQueryParam = "hostname"
)

// ClientConfig configures the web client.
type ClientConfig struct {
	SubmitURL       string
	FetchURL        string
	TrustAnchorPath string
	ClientCertFile  string // optional user certificate for client auth
	ClientKeyFile   string
}

// ClientOption adjusts a WebClient during construction.
type ClientOption func(*WebClient)

// WithHTTPClient overrides the HTTP client, bypassing the trust anchor
// setup. Used by tests and by deployments with their own transport.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *WebClient) {
		c.httpClient = httpClient
	}
}

// WebClient submits requests and fetches certificates over the CA's fixed
// web forms. The trust anchor is downloaded once into the cache on first use
// and never refreshed; PURGE is the operator's refresh lever.
type WebClient struct {
	cfg        ClientConfig
	downloader TrustStoreDownloader
	httpClient *http.Client
	logger     *slog.Logger
}

func NewWebClient(cfg ClientConfig, downloader TrustStoreDownloader, logger *slog.Logger, opts ...ClientOption) *WebClient {
	if downloader == nil || logger == nil {
		panic("NewWebClient: received nil downloader or logger")
	}
	c := &WebClient{
		cfg:        cfg,
		downloader: downloader,
		logger:     logger.With("component", "ca_client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ensureClient builds the HTTP client on first use, downloading the trust
// anchor if the cache does not hold it yet.
func (c *WebClient) ensureClient(ctx context.Context) (*http.Client, error) {
	if c.httpClient != nil {
		return c.httpClient, nil
	}

	if _, err := os.Stat(c.cfg.TrustAnchorPath); os.IsNotExist(err) {
		c.logger.Info("downloading CA trust chain", "path", c.cfg.TrustAnchorPath)
		if err := c.downloader.Download(ctx, c.cfg.TrustAnchorPath); err != nil {
			return nil, fmt.Errorf("client: download trust anchor: %w", err)
		}
	}

	anchor, err := os.ReadFile(c.cfg.TrustAnchorPath)
	if err != nil {
		return nil, fmt.Errorf("client: read trust anchor: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(anchor) {
		return nil, fmt.Errorf("client: no certificates in trust anchor %q", c.cfg.TrustAnchorPath)
	}

	tlsCfg := &tls.Config{RootCAs: pool}
	if c.cfg.ClientCertFile != "" {
		pair, err := tls.LoadX509KeyPair(c.cfg.ClientCertFile, c.cfg.ClientKeyFile)
		if err != nil {
			return nil, fmt.Errorf("client: load user certificate: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{pair}
	}

	c.httpClient = &http.Client{
		Transport: &http.Transport{TLSClientConfig: tlsCfg},
	}
	return c.httpClient, nil
}

// SubmitRequest posts the signing request through the CA's multipart form.
func (c *WebClient) SubmitRequest(ctx context.Context, csrPEM []byte, fields SubmitFields) error {
	httpClient, err := c.ensureClient(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSubmission, err)
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	for _, field := range []struct{ name, value string }{
		{formFieldSalutation, fields.Salutation},
		{formFieldEmail, fields.Email},
		{formFieldPhone, fields.Phone},
		{formFieldRAName, fields.RAName},
		{formFieldRAID, fields.RAID},
		{formFieldComment, commentWithSANs(fields.Comment, fields.SANList)},
		{formFieldType, formValueType},
		{formFieldSubmit, formValueSubmit},
	} {
		if err := form.WriteField(field.name, field.value); err != nil {
			return fmt.Errorf("%w: write form field %q: %v", ErrSubmission, field.name, err)
		}
	}
	attachment, err := form.CreateFormFile(formFieldPEM, "request.pem")
	if err != nil {
		return fmt.Errorf("%w: attach request: %v", ErrSubmission, err)
	}
	if _, err := attachment.Write(csrPEM); err != nil {
		return fmt.Errorf("%w: attach request: %v", ErrSubmission, err)
	}
	if err := form.Close(); err != nil {
		return fmt.Errorf("%w: finish form: %v", ErrSubmission, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.SubmitURL, &body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSubmission, err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSubmission, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%w: CA answered %s", ErrSubmission, resp.Status)
	}
	return nil
}

// FetchCertificate retrieves the candidate body for hostname. The CA
// answers 200 whether or not the certificate exists, so the body is
// returned as-is for the verifier to judge.
func (c *WebClient) FetchCertificate(ctx context.Context, hostname string) ([]byte, error) {
	httpClient, err := c.ensureClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("client: fetch %q: %w", hostname, err)
	}

	fetchURL, err := url.Parse(c.cfg.FetchURL)
	if err != nil {
		return nil, fmt.Errorf("client: invalid fetch URL %q: %w", c.cfg.FetchURL, err)
	}
	query := fetchURL.Query()
	query.Set(fetchQueryParam, hostname)
	fetchURL.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("client: fetch %q: %w", hostname, err)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("client: fetch %q: %w", hostname, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("client: read response for %q: %w", hostname, err)
	}
	return data, nil
}

// commentWithSANs folds the SAN list into the comment field, the way the
// CA's form expects the alternative names to arrive.
func commentWithSANs(comment string, sans []string) string {
	sanText := "SAN: " + strings.Join(sans, ", ")
	if comment == "" {
		return sanText
	}
	return comment + "\n" + sanText
}

// ChainDownloader fetches the CA chain over plain HTTPS with system roots.
// The chain endpoint is public; the downloaded chain then anchors every
// later call.
type ChainDownloader struct {
	URL    string
	Client *http.Client // nil means http.DefaultClient
}

func (d *ChainDownloader) Download(ctx context.Context, path string) error {
	httpClient := d.Client
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.URL, nil)
	if err != nil {
		return fmt.Errorf("chain download: %w", err)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("chain download: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("chain download: unexpected status %s", resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("chain download: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("chain download: write %q: %w", path, err)
	}
	return nil
}
