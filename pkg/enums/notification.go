package enums

// NotificationType buckets in-app notifications for filtering.
type NotificationType string

const (
	NotificationTypeTrade   NotificationType = "trade"
	NotificationTypeProof   NotificationType = "proof"
	NotificationTypeDispute NotificationType = "dispute"
	NotificationTypeWallet  NotificationType = "wallet"
	NotificationTypeSystem  NotificationType = "system"
)

var validNotificationTypes = []NotificationType{
	NotificationTypeTrade,
	NotificationTypeProof,
	NotificationTypeDispute,
	NotificationTypeWallet,
	NotificationTypeSystem,
}

func (n NotificationType) String() string {
	return string(n)
}

// IsValid reports whether the value is a known NotificationType.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}
