package model

import "errors"

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrReminderNotFound = errors.New("reminder not found")
)
