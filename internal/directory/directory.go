// Package directory looks up public profile fields for a user id.
//
// Profile data is owned by the account service; the matchmaking core only
// reads it to enrich matched notifications and never caches it.
package directory

import (
	"context"
	"errors"
)

var ErrUnknownUser = errors.New("unknown user")

type Profile struct {
	Username string `json:"username"`
}

type Directory interface {
	LookupPublicProfile(ctx context.Context, userID string) (Profile, error)
}

// Static is an in-memory Directory for development and tests.
type Static map[string]Profile

func (s Static) LookupPublicProfile(_ context.Context, userID string) (Profile, error) {
	p, ok := s[userID]
	if !ok {
		return Profile{}, ErrUnknownUser
	}
	return p, nil
}
