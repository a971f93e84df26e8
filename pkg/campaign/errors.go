package campaign

import "errors"

var (
	ErrInvalidTransition = errors.New("campaign: invalid status transition")
	ErrNotFound          = errors.New("campaign: not found")
	ErrRecipientNotFound = errors.New("campaign: recipient not found")
	ErrEmptySource       = errors.New("campaign: recipient source is empty")
)
