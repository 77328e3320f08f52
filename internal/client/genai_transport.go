package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/genai"
)

type generateFunc func(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)

// GenaiTransport serves the Transport contract through the Gemini SDK.
// SDK API errors are turned back into replies carrying the status code
// and an error envelope, so classification matches the REST transport.
type GenaiTransport struct {
	model    string
	generate generateFunc
}

// NewGenaiTransport creates an SDK-backed transport.
func NewGenaiTransport(ctx context.Context, baseURL, model, apiKey string) (*GenaiTransport, error) {
	clientConfig := &genai.ClientConfig{
		Backend: genai.BackendGeminiAPI,
		APIKey:  apiKey,
	}
	if baseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}

	c, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GenaiTransport{
		model:    model,
		generate: c.Models.GenerateContent,
	}, nil
}

// Post decodes the request body, runs it through the SDK and re-encodes
// the outcome as a REST reply.
func (t *GenaiTransport) Post(ctx context.Context, body []byte) (*Reply, error) {
	var req generateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("invalid request body: %w", err)
	}

	var cfg *genai.GenerateContentConfig
	if req.GenerationConfig != nil {
		cfg = &genai.GenerateContentConfig{ResponseMIMEType: req.GenerationConfig.ResponseMIMEType}
	}

	resp, err := t.generate(ctx, t.model, req.Contents, cfg)
	if err != nil {
		if status, doc, ok := apiErrorDoc(err); ok {
			data, merr := json.Marshal(generateResponse{Error: doc})
			if merr != nil {
				return nil, merr
			}
			return &Reply{StatusCode: status, Body: data}, nil
		}
		return nil, err
	}

	out := generateResponse{}
	for _, c := range resp.Candidates {
		if c == nil {
			continue
		}
		out.Candidates = append(out.Candidates, candidate{Content: c.Content})
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, err
	}
	return &Reply{StatusCode: http.StatusOK, Body: data}, nil
}

// apiErrorDoc extracts an SDK API error.
func apiErrorDoc(err error) (int, *remoteErrorDoc, bool) {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code, &remoteErrorDoc{Code: apiErr.Code, Message: apiErr.Message, Status: apiErr.Status}, true
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Code, &remoteErrorDoc{Code: apiErrPtr.Code, Message: apiErrPtr.Message, Status: apiErrPtr.Status}, true
	}
	return 0, nil, false
}
