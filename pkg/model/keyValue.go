package model

// LastScannedSHA keys the rescan worker's cursor, one entry per repository
const LastScannedSHA = "lastScannedSha"

// KeyValue is a key-value pair for simple storage for things fit in the data model
type KeyValue struct {
	// ID for this pair
	// required: true
	ID int64 `json:"id" meddler:"id,pk"`

	// Key is the name of the setting
	// required: true
	Key string `json:"key" meddler:"key"`

	// Value is the setting itself
	Value string `json:"value" meddler:"value"`
}
