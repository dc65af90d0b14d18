package models

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

const (
	ActionConfirm  = "confirm"
	ActionComplete = "complete"
	ActionCancel   = "cancel"
)

const (
	MailKindCustomer  = "customer"
	MailKindAdmin     = "admin"
	MailKindConfirmed = "confirmed"
)

const (
	MailStatusQueued     = "queued"
	MailStatusRetry      = "retry"
	MailStatusDispatched = "dispatched"
	MailStatusFailed     = "failed"
)

const (
	// DefaultOpenHour is the first hour offered for booking slots.
	DefaultOpenHour = 9

	// DefaultCloseHour is the closing hour; slots stop strictly before it.
	DefaultCloseHour = 18

	// DefaultSlotMinutes is the interval between offered slots.
	DefaultSlotMinutes = 60

	// DefaultActionLockTTL время жизни блокировки действия над заявкой
	DefaultActionLockTTL = 30 // seconds

	// LoginRateLimitAttempts количество попыток входа в окне
	LoginRateLimitAttempts = 10

	// LoginRateLimitWindow окно ограничения попыток входа
	LoginRateLimitWindow = 300 // 5 minutes in seconds

	// WorkerBatchSize размер пачки писем за один проход воркера
	WorkerBatchSize = 20

	// WorkerPollIntervalSeconds период опроса очереди писем
	WorkerPollIntervalSeconds = 5
)
