// Package httpadapter is the reference RequestAdapter implementation,
// mapping the four protocol calls onto an HTTP wire surface
// (POST /upload/create, /upload/verify, /upload/chunk multipart, /upload/
// merge). No third-party HTTP client library (resty, retryablehttp,
// go-resty, …) is warranted here, so stdlib net/http is the choice.
package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/rowantree/go-chunkvault/internal/adapter"
	"github.com/rowantree/go-chunkvault/internal/pkg/xerr"
	"github.com/rowantree/go-chunkvault/internal/protocol"
)

// Adapter is the net/http-backed RequestAdapter.
type Adapter struct {
	baseURL    string
	httpClient *http.Client
}

// New constructs an Adapter targeting baseURL (e.g. "http://localhost:8080").
// A nil client defaults to a 30s-timeout http.Client — timeouts/TLS/auth are
// this adapter's concern, not the engine's.
func New(baseURL string, client *http.Client) *Adapter {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Adapter{baseURL: baseURL, httpClient: client}
}

func (a *Adapter) CreateFile(ctx context.Context, req protocol.CreateFileRequest) (protocol.CreateFileResponse, error) {
	var resp protocol.CreateFileResponse
	err := a.postJSON(ctx, "/upload/create", req, &resp)
	return resp, err
}

func (a *Adapter) VerifyHash(ctx context.Context, req protocol.VerifyHashRequest) (protocol.VerifyHashResponse, error) {
	var resp protocol.VerifyHashResponse
	err := a.postJSON(ctx, "/upload/verify", req, &resp)
	return resp, err
}

func (a *Adapter) MergeFile(ctx context.Context, req protocol.MergeFileRequest) (protocol.MergeFileResponse, error) {
	var resp protocol.MergeFileResponse
	err := a.postJSON(ctx, "/upload/merge", req, &resp)
	return resp, err
}

func (a *Adapter) UploadChunk(ctx context.Context, uploadToken string, chunkIndex int, chunkHash string, chunk []byte) (protocol.UploadChunkResponse, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	fields := map[string]string{
		"uploadToken": uploadToken,
		"chunkIndex":  strconv.Itoa(chunkIndex),
		"chunkHash":   chunkHash,
	}
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			return protocol.UploadChunkResponse{}, networkErr(err)
		}
	}
	part, err := writer.CreateFormFile("chunk", "chunk.bin")
	if err != nil {
		return protocol.UploadChunkResponse{}, networkErr(err)
	}
	if _, err := part.Write(chunk); err != nil {
		return protocol.UploadChunkResponse{}, networkErr(err)
	}
	if err := writer.Close(); err != nil {
		return protocol.UploadChunkResponse{}, networkErr(err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/upload/chunk", body)
	if err != nil {
		return protocol.UploadChunkResponse{}, networkErr(err)
	}
	httpReq.Header.Set("Content-Type", writer.FormDataContentType())

	var resp protocol.UploadChunkResponse
	if err := a.do(httpReq, &resp); err != nil {
		return protocol.UploadChunkResponse{}, err
	}
	return resp, nil
}

func (a *Adapter) postJSON(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return networkErr(err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return networkErr(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	return a.do(httpReq, out)
}

func (a *Adapter) do(httpReq *http.Request, out any) error {
	resp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return networkErr(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return networkErr(err)
	}

	if resp.StatusCode >= 400 {
		var envelope xerr.Response
		if jsonErr := json.Unmarshal(data, &envelope); jsonErr == nil && envelope.Message != "" {
			return networkErr(fmt.Errorf("%s (code %d)", envelope.Message, envelope.Code))
		}
		return networkErr(fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return networkErr(err)
	}
	if len(envelope.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return networkErr(err)
	}
	return nil
}

func networkErr(cause error) error {
	return xerr.NewCodeError(xerr.NetworkErrorCode, fmt.Errorf("%w: %s", xerr.ErrNetworkError, cause))
}

var _ adapter.RequestAdapter = (*Adapter)(nil)
