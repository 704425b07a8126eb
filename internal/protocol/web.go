package protocol

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gswatch-io/gswatch/internal/probe"
)

// webClient is shared by every HTTP-backed strategy. No internal timeout:
// each probe carries its own context deadline.
var webClient = &http.Client{}

// insecureWebClient skips certificate verification. Satisfactory dedicated
// servers serve their HTTPS API with a self-signed certificate.
var insecureWebClient = &http.Client{
	Transport: &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
	},
}

// maxWebBody bounds directory listings; master server snapshots can run to
// a few megabytes.
const maxWebBody = 32 << 20

// openGSQMasterURL fronts the crawled master lists for games whose own
// directory needs credentials or has no lookup endpoint.
const openGSQMasterURL = "https://master-server.opengsq.com"

type webRequest struct {
	method  string
	url     string
	body    []byte
	headers map[string]string
	client  *http.Client
}

// do executes the request and returns the raw body. Non-2xx statuses are
// transport failures.
func (w webRequest) do(ctx context.Context) ([]byte, error) {
	method := w.method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if w.body != nil {
		body = bytes.NewReader(w.body)
	}

	req, err := http.NewRequestWithContext(ctx, method, w.url, body)
	if err != nil {
		return nil, probe.WrapTransport(err)
	}
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	client := w.client
	if client == nil {
		client = webClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, probe.WrapTransport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, probe.WrapTransport(fmt.Errorf("%s: unexpected status %d", w.url, resp.StatusCode))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxWebBody))
	if err != nil {
		return nil, probe.WrapTransport(err)
	}
	return data, nil
}

// doJSON executes the request and decodes the body as JSON regardless of the
// advertised content type; several game servers label JSON as text/*.
func (w webRequest) doJSON(ctx context.Context, out any) error {
	data, err := w.do(ctx)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return probe.WrapProtocol(err)
	}
	return nil
}

func getJSON(ctx context.Context, url string, out any) error {
	return webRequest{url: url}.doJSON(ctx, out)
}
