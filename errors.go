/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"html"
	"strings"
)

// NetworkError means the game server could not be reached or did not
// answer with a readable response.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ApplicationError carries the message of a response envelope with
// success set to false.
type ApplicationError struct {
	Op      string
	Status  int
	Message string
}

func (e *ApplicationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// MalformedResponseError means the server answered, but not with what
// we asked for.
type MalformedResponseError struct {
	Op     string
	Reason string
	Err    error
}

func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: malformed response: %s: %v", e.Op, e.Reason, e.Err)
	}

	return fmt.Sprintf("%s: malformed response: %s", e.Op, e.Reason)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

// userMessage turns an error from the game client into text fit for a
// player to read.
func userMessage(err error) string {
	var appErr *ApplicationError
	var netErr *NetworkError
	var badErr *MalformedResponseError

	switch {
	case errors.As(err, &appErr):
		if appErr.Message == "" {
			return "The game server rejected the request."
		}
		return appErr.Message
	case errors.As(err, &netErr):
		return "Could not reach the game server: " + netErr.Err.Error()
	case errors.As(err, &badErr):
		return "The game server sent an unexpected response."
	default:
		return err.Error()
	}
}

func newPage(title, body string) string {
	var htmlBody strings.Builder

	htmlBody.WriteString(`<!DOCTYPE html><html lang="en"><head>`)
	htmlBody.WriteString(`<style>`)
	htmlBody.WriteString(`html,body,a{display:block;height:100%;width:100%;text-decoration:none;color:inherit;cursor:auto;}</style>`)
	htmlBody.WriteString(fmt.Sprintf("<title>%s</title></head>", html.EscapeString(title)))
	htmlBody.WriteString(fmt.Sprintf("<body><a href=\"/\">%s</a></body></html>", html.EscapeString(body)))

	return htmlBody.String()
}
