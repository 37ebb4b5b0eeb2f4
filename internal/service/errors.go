package service

import "fmt"

type ErrInvalidCredentials struct {
	error
}

func NewErrInvalidCredentials(server string) *ErrInvalidCredentials {
	return &ErrInvalidCredentials{fmt.Errorf("invalid credentials for %s", server)}
}

type ErrConnectionFailed struct {
	error
}

func NewErrConnectionFailed(server string, err error) *ErrConnectionFailed {
	return &ErrConnectionFailed{fmt.Errorf("connecting to %s: %w", server, err)}
}

type ErrInventoryNotCached struct {
	error
}

func NewErrInventoryNotCached(server string) *ErrInventoryNotCached {
	return &ErrInventoryNotCached{fmt.Errorf("no cached inventory for %s, connect first", server)}
}

type ErrUnknownServer struct {
	error
}

func NewErrUnknownServer(server string) *ErrUnknownServer {
	return &ErrUnknownServer{fmt.Errorf("server %s is not configured", server)}
}
