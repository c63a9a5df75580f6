package domain

import (
	"time"
)

// CaptureStatus represents the lifecycle of a capture work item.
type CaptureStatus string

const (
	CapturePending    CaptureStatus = "PENDING"
	CaptureProcessing CaptureStatus = "PROCESSING"
	CaptureCompleted  CaptureStatus = "COMPLETED"
	CaptureFailed     CaptureStatus = "FAILED"
)

// CaptureQueueItem is a durable work item decoupling ride completion
// from the synchronous provider capture call. At most one non-terminal
// item may exist per payment intent; the worker claims items by
// compare-and-swap from PENDING to PROCESSING.
type CaptureQueueItem struct {
	ID              string
	PaymentIntentID string
	AmountCents     int64
	Attempts        int
	MaxAttempts     int
	Status          CaptureStatus
	NextAttemptAt   *time.Time
	LastAttemptAt   *time.Time
	ErrorMessage    *string
	CreatedAt       time.Time
}

func NewCaptureQueueItem(id, paymentIntentID string, amountCents int64, maxAttempts int) (*CaptureQueueItem, error) {
	if id == "" {
		return nil, NewMissingRequiredFieldError("queue item ID")
	}
	if paymentIntentID == "" {
		return nil, NewMissingRequiredFieldError("payment intent ID")
	}
	if amountCents <= 0 {
		return nil, NewInvalidAmountError(amountCents)
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}

	return &CaptureQueueItem{
		ID:              id,
		PaymentIntentID: paymentIntentID,
		AmountCents:     amountCents,
		MaxAttempts:     maxAttempts,
		Status:          CapturePending,
		CreatedAt:       time.Now(),
	}, nil
}

// Due reports whether a pending item is eligible for a claim at now.
func (i *CaptureQueueItem) Due(now time.Time) bool {
	if i.Status != CapturePending {
		return false
	}
	return i.NextAttemptAt == nil || !i.NextAttemptAt.After(now)
}

// ScheduleRetry returns a claimed item to PENDING with a backoff delay.
// Attempts only ever increase.
func (i *CaptureQueueItem) ScheduleRetry(backoff time.Duration, errMessage string) {
	now := time.Now()
	next := now.Add(backoff)
	i.Attempts++
	i.Status = CapturePending
	i.NextAttemptAt = &next
	i.LastAttemptAt = &now
	i.ErrorMessage = &errMessage
}

// Complete marks the item done after a successful capture.
func (i *CaptureQueueItem) Complete() {
	now := time.Now()
	i.Status = CaptureCompleted
	i.LastAttemptAt = &now
	i.NextAttemptAt = nil
	i.ErrorMessage = nil
}

// FailAttempt dead-letters the item, counting the provider attempt that
// produced the failure so the record shows the true attempt total.
func (i *CaptureQueueItem) FailAttempt(errMessage string) {
	i.Attempts++
	i.Fail(errMessage)
}

// Fail dead-letters the item for manual remediation. FAILED is terminal.
func (i *CaptureQueueItem) Fail(errMessage string) {
	now := time.Now()
	i.Status = CaptureFailed
	i.LastAttemptAt = &now
	i.NextAttemptAt = nil
	i.ErrorMessage = &errMessage
}

// ExhaustedAfterNextFailure reports whether one more failed attempt
// would hit the retry ceiling.
func (i *CaptureQueueItem) ExhaustedAfterNextFailure() bool {
	return i.Attempts+1 >= i.MaxAttempts
}

func (i *CaptureQueueItem) IsTerminal() bool {
	return i.Status == CaptureCompleted || i.Status == CaptureFailed
}
