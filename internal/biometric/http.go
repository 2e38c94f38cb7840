package biometric

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"medauth-service/internal/logger"
)

// HTTPMatcher talks to the matcher service over JSON. Every call carries
// a hard timeout; on timeout or a malformed response the caller gets
// ErrUnavailable, never a fabricated decision.
type HTTPMatcher struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
}

func NewHTTPMatcher(baseURL string, timeout time.Duration) *HTTPMatcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPMatcher{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

type verifyRequest struct {
	SubjectID      string `json:"subject_id"`
	MediaRef       string `json:"media_ref"`
	ExpectedPhrase string `json:"expected_phrase"`
}

type verifyResponse struct {
	Matched    bool    `json:"matched"`
	Score      float64 `json:"score"`
	LivenessOk bool    `json:"liveness_ok"`
}

func (m *HTTPMatcher) Verify(ctx context.Context, subjectID, mediaRef, expectedPhrase string) (Result, error) {
	var resp verifyResponse
	err := m.post(ctx, "/verify", verifyRequest{
		SubjectID:      subjectID,
		MediaRef:       mediaRef,
		ExpectedPhrase: expectedPhrase,
	}, &resp)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Matched:     resp.Matched,
		Score:       resp.Score,
		LivenessOk:  resp.LivenessOk,
		EvaluatedAt: time.Now(),
	}, nil
}

type enrollRequest struct {
	SubjectID string `json:"subject_id"`
	MediaRef  string `json:"media_ref"`
}

type enrollResponse struct {
	TemplateRef string `json:"template_ref"`
}

func (m *HTTPMatcher) Enroll(ctx context.Context, subjectID, mediaRef string) (string, error) {
	var resp enrollResponse
	err := m.post(ctx, "/enroll", enrollRequest{
		SubjectID: subjectID,
		MediaRef:  mediaRef,
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.TemplateRef == "" {
		return "", fmt.Errorf("%w: enroll returned empty template_ref", ErrUnavailable)
	}
	return resp.TemplateRef, nil
}

func (m *HTTPMatcher) post(ctx context.Context, path string, in, out any) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := m.client.Do(req)
	if err != nil {
		logger.Warn("matcher call failed", map[string]any{
			"path":  path,
			"error": err.Error(),
		})
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: matcher returned %d", ErrUnavailable, res.StatusCode)
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return nil
}
