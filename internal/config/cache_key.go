package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// GeoLocationKey returns the cache key for a resolved IP location.
func (r *CacheKeyStruct) GeoLocationKey(ip string) string {
	return fmt.Sprintf("geo:%s", ip)
}

// SecurityEventsChannel returns the Redis PubSub channel carrying security events.
func (r *CacheKeyStruct) SecurityEventsChannel() string {
	return "security:events"
}

var CacheKey = NewCacheKeyStruct()
