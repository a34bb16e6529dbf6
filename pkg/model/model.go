// Package model defines the core domain types for roomchat.
package model

import "errors"

// Lookup and uniqueness errors shared by every store implementation.
var (
	ErrUserExists   = errors.New("username already taken")
	ErrUserNotFound = errors.New("user not found")
	ErrRoomNotFound = errors.New("room not found")
)
