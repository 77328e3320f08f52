package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	"google.golang.org/genai"
)

const mimeJSON = "application/json"

// generateRequest is the generateContent request body.
type generateRequest struct {
	Contents         []*genai.Content  `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type generationConfig struct {
	ResponseMIMEType string `json:"responseMimeType"`
}

// generateResponse is the generateContent response envelope.
type generateResponse struct {
	Candidates []candidate     `json:"candidates,omitempty"`
	Error      *remoteErrorDoc `json:"error,omitempty"`
}

type candidate struct {
	Content *genai.Content `json:"content,omitempty"`
}

type remoteErrorDoc struct {
	Code    int    `json:"code,omitempty"`
	Message string `json:"message"`
	Status  string `json:"status,omitempty"`
}

// appSearchResult is the JSON document the search prompt asks the model
// to put in its reply text.
// Apps is required; a document without it is a shape mismatch.
type appSearchResult struct {
	Apps *[]string `json:"apps"`
}

func encodeRequest(prompt, responseMIMEType string) ([]byte, error) {
	req := generateRequest{
		Contents: []*genai.Content{{
			Parts: []*genai.Part{{Text: prompt}},
		}},
	}
	if responseMIMEType != "" {
		req.GenerationConfig = &generationConfig{ResponseMIMEType: responseMIMEType}
	}
	return json.Marshal(req)
}

// replyText decodes the envelope and returns the first candidate's first
// text part.
func replyText(body []byte) (string, error) {
	var resp generateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", &attemptError{kind: ErrDecode, diagnostic: rawDiagnostic(body), err: err}
	}
	if resp.Error != nil {
		return "", &attemptError{
			kind:       ErrRemote,
			diagnostic: resp.Error.Message,
			err:        &APIError{StatusCode: resp.Error.Code, Message: resp.Error.Message},
		}
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil ||
		len(resp.Candidates[0].Content.Parts) == 0 || resp.Candidates[0].Content.Parts[0] == nil ||
		resp.Candidates[0].Content.Parts[0].Text == "" {
		return "", &attemptError{kind: ErrDecode, diagnostic: rawDiagnostic(body), err: fmt.Errorf("response has no text")}
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}

// decodeSearchResult parses the JSON document embedded in a reply text.
// The text must hold exactly one object carrying an apps array.
func decodeSearchResult(text string, body []byte) ([]string, error) {
	var result appSearchResult
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return nil, &attemptError{kind: ErrDecode, diagnostic: rawDiagnostic(body), err: fmt.Errorf("inner document: %w", err)}
	}
	if result.Apps == nil {
		return nil, &attemptError{kind: ErrDecode, diagnostic: rawDiagnostic(body), err: errors.New("inner document: missing apps")}
	}
	return *result.Apps, nil
}

// rawDiagnostic returns body as text when it is valid UTF-8.
func rawDiagnostic(body []byte) string {
	if len(body) == 0 || !utf8.Valid(body) {
		return ""
	}
	const max = 2048
	s := string(body)
	if len(s) > max {
		s = s[:max] + "..."
	}
	return s
}
