package redis

const (
	// DefaultServersKey is the set holding the hosts of the last good cycle.
	DefaultServersKey = "ollama:servers"
	// KeyPrefixRecord is the prefix for cached detection records.
	KeyPrefixRecord = "ollama:record:"
)

// RecordKey returns the cache key for a host's last detection record.
func RecordKey(member string) string {
	return KeyPrefixRecord + member
}
