package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var ErrMalformedBody = errors.New("malformed request body")

const (
	allowOrigin  = "*"
	allowMethods = "GET, POST, PUT, OPTIONS"
	allowHeaders = "Content-Type, X-User-Id"
	preflightAge = "86400"

	HeaderUserID = "X-User-Id"
)

type RequestContext struct {
	RequestID string `json:"requestId"`
}

// Request is a gateway-style HTTP event. The logical route lives in the
// "path" query parameter.
type Request struct {
	Method         string            `json:"httpMethod"`
	QueryParams    map[string]string `json:"queryStringParameters"`
	Headers        map[string]string `json:"headers"`
	Body           string            `json:"body"`
	RequestContext RequestContext    `json:"requestContext"`
}

type Response struct {
	StatusCode      int               `json:"statusCode"`
	Headers         map[string]string `json:"headers"`
	Body            string            `json:"body"`
	IsBase64Encoded bool              `json:"isBase64Encoded"`
}

func (r Request) Query(key string) string {
	return r.QueryParams[key]
}

func (r Request) Path() string {
	return r.Query("path")
}

// Header looks a header up case-insensitively.
func (r Request) Header(name string) string {
	if v, ok := r.Headers[name]; ok {
		return v
	}
	for k, v := range r.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// DecodeBody unmarshals the JSON body into dst. An empty body decodes as {}.
func (r Request) DecodeBody(dst any) error {
	if strings.TrimSpace(r.Body) == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(r.Body), dst); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}
	return nil
}

func corsHeaders() map[string]string {
	return map[string]string{
		"Access-Control-Allow-Origin":  allowOrigin,
		"Access-Control-Allow-Methods": allowMethods,
		"Access-Control-Allow-Headers": allowHeaders,
	}
}

// Preflight answers OPTIONS requests.
func Preflight() Response {
	headers := corsHeaders()
	headers["Access-Control-Max-Age"] = preflightAge
	return Response{
		StatusCode: http.StatusOK,
		Headers:    headers,
	}
}

// JSON builds a response with payload encoded as the body.
func JSON(status int, payload any) (Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Response{}, fmt.Errorf("failed to marshal response: %w", err)
	}

	headers := corsHeaders()
	headers["Content-Type"] = "application/json"

	return Response{
		StatusCode: status,
		Headers:    headers,
		Body:       string(body),
	}, nil
}

func Error(status int, message string) Response {
	// a map[string]string always marshals
	resp, _ := JSON(status, map[string]string{"error": message})
	return resp
}

func Message(message string) (Response, error) {
	return JSON(http.StatusOK, map[string]string{"message": message})
}
