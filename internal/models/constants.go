package models

const (
	// StatusPending зарезервирован, в текущем потоке не используется
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

const (
	// PaymentMethodSimulated marks bookings paid with the format-checked card stub.
	PaymentMethodSimulated = "card_simulated"
)

const (
	OutboxStatusPending   = "pending"
	OutboxStatusRetry     = "retry"
	OutboxStatusCompleted = "completed"
	OutboxStatusFailed    = "failed"
)

const (
	// MinDurationMonths and MaxDurationMonths bound a rental term.
	MinDurationMonths = 1
	MaxDurationMonths = 12

	// MaxMessageLength ограничение длины сообщения в чате
	MaxMessageLength = 4000

	// CacheKeyAllGardens and CacheKeyAvailableGardens are listing cache keys.
	CacheKeyAllGardens       = "gardens:all"
	CacheKeyAvailableGardens = "gardens:available"
)
