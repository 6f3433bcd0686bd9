// Package models содержит доменные структуры сервиса: личность пользователя,
// платёжное намерение и настройки развёртывания, а также закрытые перечисления
// для статусов и типов плана.
package models

import "time"

// AccessState описывает состояние доступа пользователя к закрытой группе.
type AccessState string

const (
	// AccessInactive — доступ отсутствует (по умолчанию или после истечения плана).
	AccessInactive AccessState = "inactive"
	// AccessActive — доступ предоставлен.
	AccessActive AccessState = "active"
)

// PlanKind описывает тип оплаченного плана. Закрытое перечисление вместо
// свободной строки, чтобы недопустимые состояния были непредставимы.
type PlanKind string

const (
	// PlanRecurring — план с ограниченным сроком, требующий продления.
	PlanRecurring PlanKind = "recurring"
	// PlanPerpetual — бессрочный план, никогда не снимается по таймеру.
	PlanPerpetual PlanKind = "perpetual"
	// PlanUnset — план не назначен (пользователь ещё ничего не покупал).
	PlanUnset PlanKind = ""
)

// Valid сообщает, является ли значение допустимым типом плана для покупки.
func (p PlanKind) Valid() bool {
	return p == PlanRecurring || p == PlanPerpetual
}

// Identity представляет пользователя, которому предоставляется или
// отзывается членство в закрытой группе. Создаётся при первом контакте,
// никогда не удаляется. Поля доступа изменяются только движком подписок.
type Identity struct {
	SubjectID   int64       // Стабильный внешний идентификатор пользователя (telegram id)
	DisplayName string      // Отображаемое имя пользователя
	AccessState AccessState // Текущее состояние доступа
	PlanKind    PlanKind    // Тип последнего применённого плана
	ExpiresAt   *time.Time  // Срок действия доступа; nil для бессрочного плана и неактивных
	CreatedAt   time.Time   // Дата первого контакта
}

// Lapsed сообщает, истёк ли срочный план пользователя к моменту now.
// Бессрочные планы не истекают никогда.
func (i *Identity) Lapsed(now time.Time) bool {
	if i.AccessState != AccessActive || i.PlanKind != PlanRecurring {
		return false
	}
	return i.ExpiresAt != nil && !i.ExpiresAt.After(now)
}
