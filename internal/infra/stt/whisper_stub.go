//go:build !whispercpp

package stt

import "fmt"

// NewLocal is only available when built with -tags whispercpp.
func NewLocal(string) (Transcriber, error) {
	return nil, fmt.Errorf("%w: built without whispercpp support", ErrUnavailable)
}
