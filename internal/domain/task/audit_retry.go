package task

import "storefront/catalog/internal/domain"

const AuditRetryTaskType = "AuditRetryTask"

type AuditRetryTask struct {
	CategoryID   domain.Identifier `json:"category_id"`
	CategorySlug string            `json:"category_slug"`
	RetryCount   int               `json:"retry_count"` // Attempts made so far
	Error        string            `json:"error"`       // Error from the last attempt
}

func (t *AuditRetryTask) TaskType() string {
	return AuditRetryTaskType
}

func (t *AuditRetryTask) TaskValue() ([]byte, error) {
	return DefaultTaskValue(t)
}
