package domain

// Notification is the body of an ERP system notification
type Notification struct {
	UserID           int64          `json:"user_id" validate:"required,gt=0"`
	NotificationType string         `json:"notification_type" validate:"required,max=64"`
	Title            string         `json:"title" validate:"required,max=255"`
	Message          string         `json:"message"`
	Data             map[string]any `json:"data"`
}

// NotificationFromPayload builds a notification from a validated notify_erp payload
func NotificationFromPayload(payload map[string]any) Notification {
	n := Notification{Data: map[string]any{}}
	n.UserID, _ = PayloadInt(payload, "user_id")
	n.NotificationType, _ = payload["notification_type"].(string)
	n.Title, _ = payload["title"].(string)
	n.Message, _ = payload["message"].(string)
	if data, ok := payload["data"].(map[string]any); ok {
		n.Data = data
	}
	return n
}
