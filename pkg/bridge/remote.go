package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/boardkit/boardkit/pkg/errors"
	"github.com/boardkit/boardkit/pkg/httputil"
	"github.com/boardkit/boardkit/pkg/patch"
)

// HTTPRemote flushes patches to a board API over HTTP. Each flush issues
// PATCH {base}/boards/{id} with the expected version in If-Match; the server
// answers 200 with the new version, or 412 with the authoritative one.
// Transient failures (network, 5xx) retry with backoff; conflicts do not.
type HTTPRemote struct {
	base   string
	client *http.Client
}

// NewHTTPRemote returns a remote for the API at base, e.g.
// "https://boards.example.com/api". A nil client uses a default with a
// 10 second timeout.
func NewHTTPRemote(base string, client *http.Client) *HTTPRemote {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPRemote{base: base, client: client}
}

type versionBody struct {
	Version int64 `json:"version"`
}

// Patch implements Remote.
func (r *HTTPRemote) Patch(ctx context.Context, boardID string, version int64, ops []patch.Operation) (int64, error) {
	body, err := json.Marshal(ops)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeInvalidPatch, err, "encode operations")
	}

	var newVersion int64
	err = httputil.Retry(ctx, 3, 500*time.Millisecond, func() error {
		v, err := r.patchOnce(ctx, boardID, version, body)
		if err != nil {
			return err
		}
		newVersion = v
		return nil
	})
	if err != nil {
		return 0, err
	}
	return newVersion, nil
}

func (r *HTTPRemote) patchOnce(ctx context.Context, boardID string, version int64, body []byte) (int64, error) {
	url := fmt.Sprintf("%s/boards/%s", r.base, boardID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, bytes.NewReader(body))
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeInternal, err, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("If-Match", strconv.FormatInt(version, 10))

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, &httputil.RetryableError{Err: errors.Wrap(errors.ErrCodeNetwork, err, "patch %s", url)}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		var vb versionBody
		if err := json.NewDecoder(resp.Body).Decode(&vb); err != nil {
			return 0, errors.Wrap(errors.ErrCodeInternal, err, "decode response")
		}
		return vb.Version, nil
	case resp.StatusCode == http.StatusPreconditionFailed:
		var vb versionBody
		_ = json.NewDecoder(resp.Body).Decode(&vb)
		return 0, &errors.VersionConflictError{Expected: version, Actual: vb.Version}
	case resp.StatusCode == http.StatusNotFound:
		return 0, errors.New(errors.ErrCodeBoardNotFound, "board %s not found", boardID)
	case resp.StatusCode >= 500:
		io.Copy(io.Discard, resp.Body)
		return 0, &httputil.RetryableError{
			Err: errors.New(errors.ErrCodeNetwork, "patch %s: status %d", url, resp.StatusCode),
		}
	default:
		io.Copy(io.Discard, resp.Body)
		return 0, errors.New(errors.ErrCodeInvalidPatch, "patch %s: status %d", url, resp.StatusCode)
	}
}
