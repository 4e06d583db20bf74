package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// LoginSessionKey returns the cache key holding the active token id of a user.
func (r *CacheKeyStruct) LoginSessionKey(userID string) string {
	return fmt.Sprintf("login:%s", userID)
}

// ActiveExamSessionKey returns the cache key for a user's current exam session.
func (r *CacheKeyStruct) ActiveExamSessionKey(userID string) string {
	return fmt.Sprintf("user:%s:exam_session", userID)
}

// ActiveExamSessionPattern matches every ActiveExamSessionKey.
func (r *CacheKeyStruct) ActiveExamSessionPattern() string {
	return "user:*:exam_session"
}

// SessionEventsChannel is the Pub/Sub channel carrying session lifecycle events.
func (r *CacheKeyStruct) SessionEventsChannel() string {
	return "exam_session_events"
}

var CacheKey = NewCacheKeyStruct()
