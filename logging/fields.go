package logging

// Standard structured-log field names for the cache core, mirroring the
// teacher's logger.Field* constants so every component logs the same key
// for the same concept instead of inventing ad hoc strings.
const (
	FieldCacheName = "cache"
	FieldCacheKey  = "key"
	FieldCacheKeys = "keys"
	FieldTopic     = "topic"
	FieldPeerID    = "peer_id"
	FieldSenderID  = "sender_id"
	FieldIsLocal   = "is_local"

	FieldOperation = "operation"
	FieldDuration  = "duration_ms"
	FieldError     = "error"
	FieldCount     = "count"
)
