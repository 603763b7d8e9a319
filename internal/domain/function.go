package domain

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

var functionNamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

// DefaultExtensions lists the source extensions probed for a function, in order.
var DefaultExtensions = []string{".es6", ".es", ".js", ".mjs", ".ts"}

// OutputExtension is the extension of every compiled artifact.
const OutputExtension = ".js"

// ValidateFunctionName enforces the accepted logical name format.
// Names are flat: no separators and no parent references.
func ValidateFunctionName(name string) error {
	if name == "" {
		return fmt.Errorf("name is required")
	}
	if name == "." || strings.Contains(name, "..") {
		return fmt.Errorf("invalid name: %q", name)
	}
	if !functionNamePattern.MatchString(name) {
		return fmt.Errorf("invalid name: must match %s", functionNamePattern.String())
	}
	return nil
}

// FunctionModule is a function source file together with its compiled output.
type FunctionModule struct {
	Name       string `json:"name"`
	SourcePath string `json:"source_path"`
	OutputPath string `json:"output_path"`
}

// NameFromSource derives the logical name from a source file path
// ("src/hello.ts" -> "hello").
func NameFromSource(sourcePath string) string {
	base := filepath.Base(sourcePath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// InvokeRequest is the event handed to a function handler.
type InvokeRequest struct {
	Path                            string              `json:"path"`
	HTTPMethod                      string              `json:"httpMethod"`
	QueryStringParameters           map[string]string   `json:"queryStringParameters"`
	MultiValueQueryStringParameters map[string][]string `json:"multiValueQueryStringParameters"`
	Headers                         map[string]string   `json:"headers"`
	MultiValueHeaders               map[string][]string `json:"multiValueHeaders"`
	Body                            string              `json:"body"`
	IsBase64Encoded                 bool                `json:"isBase64Encoded"`
}

// InvokeResponse is the result a handler reports. StatusCode is a pointer
// so a missing status can be told apart from an explicit zero.
type InvokeResponse struct {
	StatusCode        *int             `json:"statusCode"`
	Headers           map[string]any   `json:"headers,omitempty"`
	MultiValueHeaders map[string][]any `json:"multiValueHeaders,omitempty"`
	Body              string           `json:"body"`
	IsBase64Encoded   bool             `json:"isBase64Encoded"`
}
