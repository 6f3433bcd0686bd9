package models

// NotificationEvent — сообщение для доставки пользователю, публикуемое
// движком в очередь и доставляемое отдельным потребителем через шлюз доступа.
type NotificationEvent struct {
	SubjectID int64  `json:"subject_id"` // Получатель
	Text      string `json:"text"`       // Текст сообщения
	Kind      string `json:"kind"`       // Вид события: approved, expired
}

// Виды событий уведомлений.
const (
	NotificationApproved = "approved"
	NotificationExpired  = "expired"
)
