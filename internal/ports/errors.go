package ports

import "errors"

// ErrUserNotFound is returned by Identity implementations for unknown users.
var ErrUserNotFound = errors.New("user not found")

// ErrMatchNotFound is returned by Persistence implementations for unknown match rows.
var ErrMatchNotFound = errors.New("match record not found")
