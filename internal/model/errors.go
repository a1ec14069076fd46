package model

import "errors"

// Store and state-machine errors shared by repositories and services.
var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrEmailTaken          = errors.New("email already registered")
	ErrConcurrentUpdate    = errors.New("account modified concurrently")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrPrincipalProtected  = errors.New("principal accounts cannot be modified")
	ErrAccountAlreadyGone  = errors.New("account already deleted")
	ErrSessionIDGeneration = errors.New("generate session id")
)
