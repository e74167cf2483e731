package sarif

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Sink uploads SARIF reports to a security dashboard.
// The wire format follows the code scanning upload convention:
// the report travels gzipped and base64 encoded in a JSON envelope.
type Sink struct {
	baseURL string
	token   string
	client  *http.Client
}

type upload struct {
	CommitSHA string `json:"commitSha"`
	Ref       string `json:"ref"`
	Tool      string `json:"tool"`
	Sarif     string `json:"sarif"`
}

func NewSink(baseURL string, token string) *Sink {
	return &Sink{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Upload sends the raw SARIF document to the sink.
// Transport errors are retried with exponential backoff.
func (s *Sink) Upload(raw []byte, commitSHA string, ref string, tool string) error {
	var compressed bytes.Buffer
	gzipWriter := gzip.NewWriter(&compressed)
	_, err := gzipWriter.Write(raw)
	if err != nil {
		return fmt.Errorf("cannot compress sarif %s", err)
	}
	err = gzipWriter.Close()
	if err != nil {
		return fmt.Errorf("cannot compress sarif %s", err)
	}

	payload, err := json.Marshal(upload{
		CommitSHA: commitSHA,
		Ref:       ref,
		Tool:      tool,
		Sarif:     base64.StdEncoding.EncodeToString(compressed.Bytes()),
	})
	if err != nil {
		return fmt.Errorf("cannot serialize sarif upload %s", err)
	}

	operation := func() error {
		return s.post(payload)
	}
	backoffStrategy := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 4)
	return backoff.Retry(operation, backoffStrategy)
}

func (s *Sink) post(payload []byte) error {
	req, err := http.NewRequest("POST", fmt.Sprintf("%s/api/sarif", s.baseURL), bytes.NewBuffer(payload))
	if err != nil {
		return backoff.Permanent(fmt.Errorf("cannot create http request: %s", err))
	}
	req.Header.Set("Authorization", "BEARER "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		body, _ := io.ReadAll(resp.Body)
		return backoff.Permanent(fmt.Errorf("sink rejected the upload: %d - %s", resp.StatusCode, string(body)))
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("cannot upload sarif: %d - %s", resp.StatusCode, string(body))
	}

	return nil
}
