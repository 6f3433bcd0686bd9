package models

import "errors"

// ErrNoPriceForPlan возвращается, когда настройки не задают цену для плана.
var ErrNoPriceForPlan = errors.New("no price configured for plan")

// Settings — единственная на развёртывание запись с настройками продукта.
// Читается каждой операцией движка; счётчик выручки изменяется только
// при подтверждении платежа и ровно один раз на каждое подтверждение.
type Settings struct {
	GroupChatID     int64  `json:"group_chat_id"`    // Идентификатор закрытой группы
	RecurringPrice  int64  `json:"recurring_price"`  // Цена срочного плана в минорных единицах
	PerpetualPrice  int64  `json:"perpetual_price"`  // Цена бессрочного плана в минорных единицах
	RecurringDays   int    `json:"recurring_days"`   // Длительность срочного плана в днях
	ApprovedMessage string `json:"approved_message"` // Шаблон сообщения об успешной оплате
	ExpiredMessage  string `json:"expired_message"`  // Шаблон сообщения об истечении плана
	TotalRevenue    int64  `json:"total_revenue"`    // Накопленная выручка в минорных единицах
}

// PriceFor возвращает цену плана в минорных единицах.
func (s *Settings) PriceFor(plan PlanKind) (int64, error) {
	switch plan {
	case PlanRecurring:
		if s.RecurringPrice <= 0 {
			return 0, ErrNoPriceForPlan
		}
		return s.RecurringPrice, nil
	case PlanPerpetual:
		if s.PerpetualPrice <= 0 {
			return 0, ErrNoPriceForPlan
		}
		return s.PerpetualPrice, nil
	default:
		return 0, ErrNoPriceForPlan
	}
}
