package services

import (
	"context"
	"fmt"
	"strconv"

	"pricewatch/models"

	"github.com/sirupsen/logrus"
)

var currencySymbols = map[string]string{
	"INR": "₹",
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"AUD": "A$",
	"CAD": "C$",
	"JPY": "¥",
	"SGD": "S$",
	"MYR": "RM",
}

// PriceDropNotifier delivers a price-drop alert over one channel
// (email, bot message, business messaging)
type PriceDropNotifier interface {
	Name() string
	NotifyPriceDrop(ctx context.Context, event models.PriceDropEvent) error
}

// FormatPrice renders amount with the currency's symbol, falling back to the code
func FormatPrice(currency string, amount float64) string {
	value := strconv.FormatFloat(amount, 'f', 2, 64)
	if symbol, ok := currencySymbols[currency]; ok {
		return symbol + value
	}
	if currency == "" {
		return value
	}
	return currency + " " + value
}

// PriceDropMessage is the notification log text for an event
func PriceDropMessage(event models.PriceDropEvent) string {
	title := event.Product.Title
	if title == "" {
		title = "Product"
	}
	return fmt.Sprintf("Price dropped for %s from %s to %s", title,
		FormatPrice(event.Currency, event.OldPrice), FormatPrice(event.Currency, event.NewPrice))
}

// LogNotifier writes alerts to the service log. It stands in for channels
// that are not configured.
type LogNotifier struct {
	logger logrus.FieldLogger
}

// NewLogNotifier creates a notifier that logs through logger
func NewLogNotifier(logger logrus.FieldLogger) *LogNotifier {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &LogNotifier{logger: logger}
}

// Name identifies the channel in logs
func (n *LogNotifier) Name() string {
	return "log"
}

// NotifyPriceDrop logs the event
func (n *LogNotifier) NotifyPriceDrop(ctx context.Context, event models.PriceDropEvent) error {
	n.logger.WithFields(logrus.Fields{
		"product_id": event.Product.ID,
		"user_id":    event.Product.UserID,
		"url":        event.Product.URL,
		"old_price":  event.OldPrice,
		"new_price":  event.NewPrice,
		"currency":   event.Currency,
	}).Info("📉 " + PriceDropMessage(event))
	return nil
}
