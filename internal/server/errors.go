package server

import "errors"

var errEmptyModel = errors.New("server: model must not be empty")

func errNotWired(what string) error {
	return errors.New("server: " + what + " is not wired")
}
