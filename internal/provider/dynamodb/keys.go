package dynamodb

// PK prefix constants.
const (
	prefixCache = "CACHE#"
)

func cachePK(key string) string { return prefixCache + key }
