// internal/app/system/limits/limits.go
package limits

// Request and collection size limits.
const (
	// MaxJSONBody is the largest JSON request body accepted.
	MaxJSONBody = 1 << 20 // 1 MB

	// MaxChatParticipants caps the people added when a room is created.
	MaxChatParticipants = 500
)
