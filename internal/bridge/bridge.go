// Package bridge converts between HTTP requests/responses and the event and
// result shapes function handlers work with.
package bridge

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/oriys/lambdadev/internal/domain"
)

// FailurePrefix starts the body of every failed invocation response.
const FailurePrefix = "Function invocation failed: "

// textualContentType matches content types whose bodies are passed through
// as text. Anything else with a body is base64 encoded.
var textualContentType = regexp.MustCompile(`text|application`)

// NewRequest builds the handler event for r. r.URL.Path is used as the
// event path, so callers mounting under a prefix should strip it first.
func NewRequest(r *http.Request) (*domain.InvokeRequest, error) {
	var body []byte
	if r.Body != nil {
		var err error
		body, err = io.ReadAll(r.Body)
		if err != nil {
			return nil, fmt.Errorf("read request body: %w", err)
		}
	}

	headers := make(map[string]string, len(r.Header)+1)
	multiHeaders := make(map[string][]string, len(r.Header)+1)
	for k, vs := range r.Header {
		key := strings.ToLower(k)
		headers[key] = strings.Join(vs, ", ")
		multiHeaders[key] = append([]string(nil), vs...)
	}
	if r.Host != "" {
		headers["host"] = r.Host
		multiHeaders["host"] = []string{r.Host}
	}

	query := make(map[string]string)
	multiQuery := make(map[string][]string)
	for k, vs := range r.URL.Query() {
		if len(vs) > 0 {
			query[k] = vs[0]
		}
		multiQuery[k] = vs
	}

	req := &domain.InvokeRequest{
		Path:                            r.URL.Path,
		HTTPMethod:                      r.Method,
		QueryStringParameters:           query,
		MultiValueQueryStringParameters: multiQuery,
		Headers:                         headers,
		MultiValueHeaders:               multiHeaders,
	}
	if len(body) > 0 && !textualContentType.MatchString(headers["content-type"]) {
		req.Body = base64.StdEncoding.EncodeToString(body)
		req.IsBase64Encoded = true
	} else {
		req.Body = string(body)
	}
	return req, nil
}

// WriteResponse writes resp to w. The response is validated and its body
// decoded before anything is written, so on error w is untouched and the
// caller can still report a failure.
func WriteResponse(w http.ResponseWriter, resp *domain.InvokeResponse) error {
	if resp == nil || resp.StatusCode == nil {
		return &domain.InvocationError{Message: "handler response missing statusCode"}
	}
	status := *resp.StatusCode
	if status < 100 || status > 999 {
		return &domain.InvocationError{Message: fmt.Sprintf("invalid statusCode %d", status)}
	}

	body := []byte(resp.Body)
	if resp.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(resp.Body)
		if err != nil {
			return &domain.InvocationError{Message: fmt.Sprintf("invalid base64 body: %v", err)}
		}
		body = decoded
	}

	h := w.Header()
	for k, v := range resp.Headers {
		if list, ok := v.([]any); ok {
			for _, item := range list {
				h.Add(k, headerValue(item))
			}
			continue
		}
		h.Set(k, headerValue(v))
	}
	for k, vs := range resp.MultiValueHeaders {
		for _, v := range vs {
			h.Add(k, headerValue(v))
		}
	}

	w.WriteHeader(status)
	_, err := w.Write(body)
	return err
}

// WriteFailure answers with a 500 describing err.
func WriteFailure(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusInternalServerError)
	io.WriteString(w, FailurePrefix+FailureMessage(err))
}

// FailureMessage renders err the way a thrown JS error prints. Handler
// errors already carry that form and are returned unchanged.
func FailureMessage(err error) string {
	var ie *domain.InvocationError
	if errors.As(err, &ie) {
		return ie.Message
	}
	return "Error: " + err.Error()
}

func headerValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}
