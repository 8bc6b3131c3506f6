package cf

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/renameio/v2"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"golang.org/x/oauth2"
)

const (
	keyUaaEndpoint  = "UaaEndpoint"
	keyAccessToken  = "AccessToken"
	keyRefreshToken = "RefreshToken"
)

// ErrNoEndpoint means `cf api` has not been run against the session file yet.
var ErrNoEndpoint = errors.New("no UaaEndpoint set; run `cf api` before authenticating")

// SessionError reports that the session file could not be read, parsed or
// written.
type SessionError struct {
	Op   string
	Path string
	Err  error
}

func (e *SessionError) Error() string {
	return fmt.Sprintf("failed to %s CF config %s: %v", e.Op, e.Path, e.Err)
}

func (e *SessionError) Unwrap() error { return e.Err }

// SessionFile edits the cf CLI session file in place. Only AccessToken and an
// already present RefreshToken are ever written; everything else keeps its
// bytes, including key order and indentation.
type SessionFile struct {
	Path string
}

func NewSessionFile(path string) *SessionFile {
	return &SessionFile{Path: path}
}

// Endpoint returns the UAA endpoint recorded by `cf api`.
func (s *SessionFile) Endpoint() (string, error) {
	content, _, err := s.load()
	if err != nil {
		return "", err
	}
	result := gjson.GetBytes(content, keyUaaEndpoint)
	if result.Exists() && result.Type != gjson.String && result.Type != gjson.Null {
		return "", &SessionError{Op: "parse", Path: s.Path, Err: fmt.Errorf("%s is not a string", keyUaaEndpoint)}
	}
	endpoint := strings.TrimSpace(result.String())
	if endpoint == "" {
		return "", &SessionError{Op: "read", Path: s.Path, Err: ErrNoEndpoint}
	}
	return endpoint, nil
}

// Update writes "bearer <access_token>" to AccessToken. RefreshToken is only
// replaced when the response carries one and the file already has the key;
// CLIs whose schema lacks the field never get it added. Values are replaced in
// place, so every other byte of the file is kept.
func (s *SessionFile) Update(token *oauth2.Token) error {
	if token == nil {
		return &SessionError{Op: "update", Path: s.Path, Err: errors.New("token is nil")}
	}
	content, mode, err := s.load()
	if err != nil {
		return err
	}
	content, err = sjson.SetBytes(content, keyAccessToken, "bearer "+token.AccessToken)
	if err != nil {
		return &SessionError{Op: "update", Path: s.Path, Err: err}
	}
	if hasRefreshToken(token) && gjson.GetBytes(content, keyRefreshToken).Exists() {
		content, err = sjson.SetBytes(content, keyRefreshToken, token.RefreshToken)
		if err != nil {
			return &SessionError{Op: "update", Path: s.Path, Err: err}
		}
	}
	if err := renameio.WriteFile(s.Path, content, mode); err != nil {
		return &SessionError{Op: "write", Path: s.Path, Err: err}
	}
	return nil
}

// load returns the file content once it is known to be a JSON object.
func (s *SessionFile) load() ([]byte, os.FileMode, error) {
	info, err := os.Stat(s.Path)
	if err != nil {
		return nil, 0, &SessionError{Op: "read", Path: s.Path, Err: err}
	}
	content, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, 0, &SessionError{Op: "read", Path: s.Path, Err: err}
	}
	if !gjson.ValidBytes(content) {
		return nil, 0, &SessionError{Op: "parse", Path: s.Path, Err: errors.New("invalid JSON")}
	}
	if !gjson.ParseBytes(content).IsObject() {
		return nil, 0, &SessionError{Op: "parse", Path: s.Path, Err: errors.New("config is not a JSON object")}
	}
	return content, info.Mode().Perm(), nil
}

func hasRefreshToken(token *oauth2.Token) bool {
	return token.RefreshToken != "" || token.Extra("refresh_token") != nil
}
