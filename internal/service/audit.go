package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"storefront/catalog/internal/domain"
	"storefront/catalog/internal/domain/task"
	"storefront/catalog/internal/queue"
	"storefront/catalog/internal/repository"
	"storefront/catalog/internal/state"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Auditor reconciles every category of the storefront in the background and
// stores one scan report per category run. Categories are fanned out through
// Redis streams so several processes can share the work.
type Auditor struct {
	service          *Service
	reports          repository.ScanReportRepository
	queue            queue.Queue
	stateManager     state.StateManager
	categoryPageSize int
	maxRetries       int
	groupName        string
	minIdleTime      time.Duration
}

func NewAuditor(
	service *Service,
	reports repository.ScanReportRepository,
	queue queue.Queue,
	stateManager state.StateManager,
	categoryPageSize int,
	maxRetries int,
	groupName string,
	minIdleTime int,
) *Auditor {
	return &Auditor{
		service:          service,
		reports:          reports,
		queue:            queue,
		stateManager:     stateManager,
		categoryPageSize: categoryPageSize,
		maxRetries:       maxRetries,
		groupName:        groupName,
		minIdleTime:      time.Duration(minIdleTime) * time.Second,
	}
}

// EnqueueCategories walks the category listing and adds one audit task per
// category. Progress is saved after each listing page, so a restarted run
// continues after the last page it finished.
func (a *Auditor) EnqueueCategories(ctx context.Context) (int, error) {
	lastListedPage, err := a.stateManager.GetLastListedPage(ctx)
	if err != nil {
		log.Errorf("Failed to get last listed page: %v", err)
		return 0, err
	}

	if lastListedPage > 0 {
		log.Infof("🔄 Continue category listing after page %d", lastListedPage)
	}

	enqueued := 0
	for pageNumber := lastListedPage + 1; ; pageNumber++ {
		page, err := a.service.client.ListCategories(ctx, pageNumber, a.categoryPageSize)
		if err != nil {
			log.Errorf("❌ Failed to list categories page %d: %v", pageNumber, err)
			return enqueued, err
		}

		for _, category := range page.Items {
			if category.ID.IsZero() {
				log.Warnf("Skipping category %q without id", category.Slug)
				continue
			}

			_, err := a.queue.AddTask(ctx, &task.CategoryAuditTask{
				CategoryID:   category.ID,
				CategorySlug: category.Slug,
				CategoryName: category.Name,
			})
			if err != nil {
				log.Errorf("❌ Failed to add audit task for %s: %v", category.Slug, err)
				return enqueued, err
			}
			enqueued++
		}

		if err := a.stateManager.SetLastListedPage(ctx, pageNumber); err != nil {
			log.Warnf("Failed to save listing progress at page %d: %v", pageNumber, err)
		}

		if pageNumber >= page.ResolveTotalPages(a.categoryPageSize) {
			break
		}
	}

	// The listing is done; the next run starts from the first page again.
	if err := a.stateManager.Reset(ctx); err != nil {
		log.Warnf("Failed to reset listing progress: %v", err)
	}

	log.Infof("✅ Enqueued %d categories for audit", enqueued)
	return enqueued, nil
}

func (a *Auditor) RunWorkers(ctx context.Context, numWorkers int) error {
	var wg sync.WaitGroup

	// Run workers for both regular and retry tasks
	a.runWorkersForStream(ctx, &wg, numWorkers, queue.StreamName(task.CategoryAuditTaskType), "main")
	a.runWorkersForStream(ctx, &wg, max(1, numWorkers/2), queue.StreamName(task.AuditRetryTaskType), "retry")

	wg.Wait()
	return nil
}

func (a *Auditor) runWorkersForStream(ctx context.Context, wg *sync.WaitGroup, numWorkers int, streamName, workerType string) {
	// Auto-claimer picks up messages left pending by crashed consumers
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(a.minIdleTime)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				consumer := fmt.Sprintf("autoclaimer-%s-%d", workerType, time.Now().UnixNano())
				claimedMessages, err := a.queue.AutoClaim(ctx, a.groupName, consumer, streamName, a.minIdleTime)
				if err != nil {
					log.Errorf("❌ Failed to auto-claim messages for %s: %v", streamName, err)
					continue
				}
				if len(claimedMessages) > 0 {
					log.Infof("🔄 Auto-claimed %d messages from %s stream", len(claimedMessages), workerType)
					for _, msg := range claimedMessages {
						if err := a.processMessage(ctx, &msg); err != nil {
							log.Errorf("❌ Failed to process auto-claimed message %s: %v", msg.ID, err)
						}
					}
				}
			}
		}
	}()

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			consumer := fmt.Sprintf("%s-worker-%d", workerType, workerID)
			log.Infof("🚀 Starting %s worker %d as consumer %s", workerType, workerID, consumer)
			for {
				select {
				case <-ctx.Done():
					log.Infof("🛑 %s worker %d stopping", workerType, workerID)
					return
				default:
					msg, err := a.queue.GetTask(ctx, a.groupName, consumer, streamName)
					if err != nil {
						if ctx.Err() == nil {
							log.Errorf("❌ Failed to get task from %s: %v", streamName, err)
						}
						continue
					}

					if msg != nil {
						if err := a.processMessage(ctx, msg); err != nil {
							log.Errorf("❌ Failed to process message %s: %v", msg.ID, err)
						}
					}
				}
			}
		}(i + 1)
	}
}

func (a *Auditor) processMessage(ctx context.Context, msg *redis.XMessage) error {
	taskType, ok := msg.Values["task_type"].(string)
	if !ok {
		return fmt.Errorf("invalid task type in message %s", msg.ID)
	}

	taskData, ok := msg.Values["task_data"].(string)
	if !ok {
		return fmt.Errorf("invalid task data in message %s", msg.ID)
	}

	switch taskType {
	case task.CategoryAuditTaskType:
		auditTask, err := task.UnmarshalTask[*task.CategoryAuditTask]([]byte(taskData))
		if err != nil {
			return fmt.Errorf("failed to unmarshal category audit task data: %w", err)
		}

		if err := a.auditCategory(ctx, auditTask.CategoryID, auditTask.CategorySlug); err != nil {
			// Add to retry queue instead of failing completely
			retryTask := &task.AuditRetryTask{
				CategoryID:   auditTask.CategoryID,
				CategorySlug: auditTask.CategorySlug,
				RetryCount:   0,
				Error:        err.Error(),
			}

			if _, addErr := a.queue.AddTask(ctx, retryTask); addErr != nil {
				log.Errorf("❌ Failed to add retry task for category %s: %v", auditTask.CategorySlug, addErr)
			} else {
				log.Warnf("🔄 Added category %s to retry queue due to error: %v", auditTask.CategorySlug, err)
			}
		}

	case task.AuditRetryTaskType:
		retryTask, err := task.UnmarshalTask[*task.AuditRetryTask]([]byte(taskData))
		if err != nil {
			return fmt.Errorf("failed to unmarshal retry task data: %w", err)
		}

		if err := a.retryAudit(ctx, retryTask); err != nil {
			return fmt.Errorf("failed to retry audit: %w", err)
		}

	default:
		return fmt.Errorf("unknown task type: %s", taskType)
	}

	if err := a.queue.AckTask(ctx, queue.StreamName(taskType), a.groupName, msg.ID); err != nil {
		return fmt.Errorf("failed to ack message %s: %w", msg.ID, err)
	}

	return nil
}

// auditCategory reconciles one category and stores the report. The returned
// error is the scan error; a report is saved either way.
func (a *Auditor) auditCategory(ctx context.Context, categoryID domain.Identifier, slug string) error {
	category := domain.Category{ID: categoryID, Slug: slug}
	startedAt := time.Now()

	result, scanErr := a.service.reconcile(ctx, category, a.service.client.GetProductsPage)

	report := domain.NewScanReport(category, result, scanErr, startedAt)
	if err := a.reports.SaveScanReport(ctx, report); err != nil {
		log.Errorf("❌ Failed to save scan report for %s: %v", slug, err)
		if scanErr == nil {
			return err
		}
	}

	if report.Status == domain.ScanStatusIncomplete {
		log.Warnf("⚠️ Category %s: catalog ended with %d of %d members found", slug, report.Matched, report.MembershipSize)
	}

	return scanErr
}

func (a *Auditor) retryAudit(ctx context.Context, retryTask *task.AuditRetryTask) error {
	retryTask.RetryCount++

	log.Infof("🔄 Retrying audit of %s (attempt %d)", retryTask.CategorySlug, retryTask.RetryCount)

	err := a.auditCategory(ctx, retryTask.CategoryID, retryTask.CategorySlug)
	if err == nil {
		log.Infof("✅ Successfully audited %s after %d retries", retryTask.CategorySlug, retryTask.RetryCount)
		return nil
	}

	if retryTask.RetryCount >= a.maxRetries {
		log.Errorf("❌ Giving up on category %s after %d retries: %v", retryTask.CategorySlug, retryTask.RetryCount, err)
		return nil
	}

	newRetryTask := &task.AuditRetryTask{
		CategoryID:   retryTask.CategoryID,
		CategorySlug: retryTask.CategorySlug,
		RetryCount:   retryTask.RetryCount,
		Error:        err.Error(),
	}

	if _, addErr := a.queue.AddTask(ctx, newRetryTask); addErr != nil {
		log.Errorf("❌ Failed to re-add retry task for category %s: %v", retryTask.CategorySlug, addErr)
		return addErr
	}

	log.Warnf("🔄 Category %s failed again, will retry (attempt %d): %v", retryTask.CategorySlug, retryTask.RetryCount, err)
	return nil
}
