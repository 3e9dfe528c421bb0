// Package main provides a TCP server for SchemaVC.
package main

import (
	"encoding/json"
)

// Request represents one version control command from the client.
type Request struct {
	Command string `json:"command"`

	// Command arguments; each command reads the fields it needs.
	SQL        string `json:"sql,omitempty"`
	Branch     string `json:"branch,omitempty"`
	Source     string `json:"source,omitempty"`
	Strategy   string `json:"strategy,omitempty"`
	MergeId    string `json:"merge_id,omitempty"`
	ConflictId string `json:"conflict_id,omitempty"`
	Resolution string `json:"resolution,omitempty"`
	Definition string `json:"definition,omitempty"`
	Kind       string `json:"kind,omitempty"`
	Name       string `json:"name,omitempty"`
	Commit     string `json:"commit,omitempty"`
	Target     string `json:"target,omitempty"`
	Hard       bool   `json:"hard,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

// Response represents the server's response to a command.
type Response struct {
	Success bool            `json:"success"`
	Error   string          `json:"error,omitempty"`
	Type    string          `json:"type,omitempty"` // "commit", "merge", "branches", ...
	Result  json.RawMessage `json:"result,omitempty"`
}

// AuthResponse contains the outcome of a successful AUTH command.
type AuthResponse struct {
	Authenticated bool   `json:"authenticated"`
	Identity      string `json:"identity"`
	ExpiresIn     int    `json:"expires_in,omitempty"`
}

// EncodeResponse serializes a Response to JSON with a newline.
func EncodeResponse(resp Response) ([]byte, error) {
	data, err := json.Marshal(resp)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// DecodeRequest parses a JSON request from a byte slice.
func DecodeRequest(data []byte) (Request, error) {
	var req Request
	err := json.Unmarshal(data, &req)
	return req, err
}

func successResponse(responseType string, result any) Response {
	data, err := json.Marshal(result)
	if err != nil {
		return errorResponse(responseType, err)
	}
	return Response{
		Success: true,
		Type:    responseType,
		Result:  data,
	}
}

func errorResponse(responseType string, err error) Response {
	return Response{
		Success: false,
		Type:    responseType,
		Error:   err.Error(),
	}
}
