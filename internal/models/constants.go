package models

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	StatusRequested    BookingStatus = "REQUESTED"
	StatusAccepted     BookingStatus = "ACCEPTED"
	StatusRejected     BookingStatus = "REJECTED"
	StatusCounterOffer BookingStatus = "COUNTER_OFFER"
	StatusCancelled    BookingStatus = "CANCELLED"
)

// ActiveStatuses are the statuses that occupy an item's calendar.
var ActiveStatuses = []BookingStatus{StatusRequested, StatusAccepted}

// PaymentStatus tracks what the payment collaborator reported for a booking.
type PaymentStatus string

const (
	PaymentPending    PaymentStatus = "PENDING"
	PaymentProcessing PaymentStatus = "PROCESSING"
	PaymentPaid       PaymentStatus = "PAID"
	PaymentFailed     PaymentStatus = "FAILED"
)

// TransactionStatus is the state of an escrow hold.
type TransactionStatus string

const (
	TransactionPending  TransactionStatus = "PENDING"
	TransactionReleased TransactionStatus = "RELEASED"
	TransactionRefunded TransactionStatus = "REFUNDED"
)

const (
	// DateLayout is the calendar day format in storage and the API
	DateLayout = "2006-01-02"

	// DefaultMaxBookingDays is how far ahead a booking may start
	DefaultMaxBookingDays = 365

	// DefaultItemCacheTTL is in seconds
	DefaultItemCacheTTL = 30 * 60

	// DefaultReconcileInterval is in seconds
	DefaultReconcileInterval = 15 * 60
)
