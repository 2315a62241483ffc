package main

// EmailSender is the email-dispatch capability the worker invokes after a
// completed settlement. Delivery itself lives outside this service.
type EmailSender interface {
	SendOrderConfirmation(to, productName string, totalCents int64, orderID string) error
}
