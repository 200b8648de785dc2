package models

// NotificationService notifies the operator about settled challenges.
type NotificationService interface {
	NotifySettled(challenge *Challenge)
}
