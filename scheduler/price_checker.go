package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pricewatch/models"
	"pricewatch/services"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const (
	StatusUpdated = "updated"
	StatusFailed  = "failed"
	StatusError   = "error"
)

// ProductStore is the persistence the monitor pass needs
type ProductStore interface {
	GetDueProducts(ctx context.Context, now time.Time) ([]models.Product, error)
	// RecordCheck stores the new price and its history point atomically
	RecordCheck(ctx context.Context, id int, result *models.ExtractionResult, checkedAt, nextCheckAt time.Time) (*models.PriceHistory, error)
	MarkCheckFailed(ctx context.Context, id int, failedAt, nextCheckAt time.Time) error
}

// NotificationLog records alerts that were sent
type NotificationLog interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
}

// PriceExtractor turns a product URL into an extraction result
type PriceExtractor interface {
	Extract(ctx context.Context, url string) (*models.ExtractionResult, error)
}

// PriceChecker runs monitor passes over due products, on a cron schedule or
// on demand
type PriceChecker struct {
	cron          *cron.Cron
	schedule      string
	products      ProductStore
	notifications NotificationLog
	extractor     PriceExtractor
	notifiers     []services.PriceDropNotifier
	logger        logrus.FieldLogger
	now           func() time.Time

	// one pass at a time, whether from cron or the HTTP trigger
	mu sync.Mutex
}

// NewPriceChecker creates a checker; schedule is a six-field cron spec
func NewPriceChecker(schedule string, products ProductStore, notifications NotificationLog,
	extractor PriceExtractor, notifiers []services.PriceDropNotifier, logger logrus.FieldLogger) *PriceChecker {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &PriceChecker{
		cron:          cron.New(cron.WithSeconds()),
		schedule:      schedule,
		products:      products,
		notifications: notifications,
		extractor:     extractor,
		notifiers:     notifiers,
		logger:        logger,
		now:           time.Now,
	}
}

// Start schedules the monitor pass
func (pc *PriceChecker) Start() error {
	_, err := pc.cron.AddFunc(pc.schedule, func() {
		if _, err := pc.CheckDuePrices(context.Background()); err != nil {
			pc.logger.WithError(err).Error("Scheduled price check failed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule price checker: %w", err)
	}

	pc.cron.Start()
	pc.logger.WithField("schedule", pc.schedule).Info("Price checker scheduled")
	return nil
}

// Stop stops the schedule and waits for a running pass to finish
func (pc *PriceChecker) Stop() {
	if pc.cron != nil {
		<-pc.cron.Stop().Done()
	}
}

// CheckDuePrices runs one monitor pass. Products are checked one after
// another; a failure on one product never stops the pass.
func (pc *PriceChecker) CheckDuePrices(ctx context.Context) (*models.CheckSummary, error) {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	products, err := pc.products.GetDueProducts(ctx, pc.now())
	if err != nil {
		return nil, err
	}

	pc.logger.WithField("due", len(products)).Info("Starting price check")

	results := make([]models.CheckOutcome, 0, len(products))
	for i := range products {
		if ctx.Err() != nil {
			break
		}
		results = append(results, pc.checkProduct(ctx, &products[i]))
	}

	return &models.CheckSummary{
		Message: fmt.Sprintf("Checked %d products", len(results)),
		Checked: len(results),
		Results: results,
	}, nil
}

func (pc *PriceChecker) checkProduct(ctx context.Context, p *models.Product) models.CheckOutcome {
	log := pc.logger.WithFields(logrus.Fields{"product_id": p.ID, "url": p.URL})
	oldPrice := p.GetCurrentPrice()

	result, err := pc.extractor.Extract(ctx, p.URL)
	if err != nil || !result.HasPrice() {
		log.WithError(err).Warn("❌ Price check failed")
		pc.markFailed(ctx, p, log)
		return models.CheckOutcome{ID: p.ID, Status: StatusFailed, OldPrice: oldPrice}
	}

	// nothing is stored on error, so the product stays due and a drop is
	// still detected on the next pass
	checkedAt := pc.now()
	if _, err := pc.products.RecordCheck(ctx, p.ID, result, checkedAt, checkedAt.Add(p.GetCheckInterval())); err != nil {
		log.WithError(err).Error("Failed to store price check")
		return models.CheckOutcome{ID: p.ID, Status: StatusError, OldPrice: oldPrice, NewPrice: result.Price}
	}

	outcome := models.CheckOutcome{ID: p.ID, Status: StatusUpdated, OldPrice: oldPrice, NewPrice: result.Price}
	if p.ShouldAlert(result.Price) {
		outcome.Alerted = pc.alert(ctx, p, result, checkedAt, log)
	}

	log.WithFields(logrus.Fields{"old_price": oldPrice, "new_price": result.Price}).Info("Price checked")
	return outcome
}

func (pc *PriceChecker) markFailed(ctx context.Context, p *models.Product, log logrus.FieldLogger) {
	failedAt := pc.now()
	if err := pc.products.MarkCheckFailed(ctx, p.ID, failedAt, failedAt.Add(p.GetRetryDelay())); err != nil {
		log.WithError(err).Error("Failed to record failed check")
	}
}

// alert fans the drop out to every notifier and writes the notification log
// entry. Channel errors are logged and do not fail the check.
func (pc *PriceChecker) alert(ctx context.Context, p *models.Product, result *models.ExtractionResult, at time.Time, log logrus.FieldLogger) bool {
	currency := result.Currency
	if currency == "" {
		currency = p.Currency
	}
	event := models.PriceDropEvent{
		Product:  *p,
		OldPrice: p.GetCurrentPrice(),
		NewPrice: result.Price,
		Currency: currency,
	}
	if event.Product.Title == "" {
		event.Product.Title = result.Title
	}

	log.WithFields(logrus.Fields{"old_price": event.OldPrice, "new_price": event.NewPrice}).Info("🚨 Price drop alert")

	for _, n := range pc.notifiers {
		if err := n.NotifyPriceDrop(ctx, event); err != nil {
			log.WithError(err).WithField("channel", n.Name()).Warn("Failed to send price drop notification")
		}
	}

	notification := &models.Notification{
		UserID:    p.UserID,
		ProductID: p.ID,
		Type:      models.NotificationTypePriceDrop,
		Message:   services.PriceDropMessage(event),
		SentAt:    at,
	}
	if err := pc.notifications.CreateNotification(ctx, notification); err != nil {
		log.WithError(err).Error("Failed to log notification")
	}
	return true
}
