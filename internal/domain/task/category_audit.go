package task

import "storefront/catalog/internal/domain"

const CategoryAuditTaskType = "CategoryAuditTask"

type CategoryAuditTask struct {
	CategoryID   domain.Identifier `json:"category_id"`
	CategorySlug string            `json:"category_slug"`
	CategoryName string            `json:"category_name,omitempty"`
}

func (t *CategoryAuditTask) TaskType() string {
	return CategoryAuditTaskType
}

func (t *CategoryAuditTask) TaskValue() ([]byte, error) {
	return DefaultTaskValue(t)
}
