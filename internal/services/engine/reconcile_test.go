package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/vip-access/internal/models"
	"github.com/magabrotheeeer/vip-access/internal/paymentprovider"
	"github.com/magabrotheeeer/vip-access/internal/rabbitmq"
	"github.com/magabrotheeeer/vip-access/internal/storage/repository"
)

func pendingIntent(plan models.PlanKind, amount int64) *models.PaymentIntent {
	return &models.PaymentIntent{
		ID:          "intent-1",
		SubjectID:   42,
		PlanKind:    plan,
		Amount:      amount,
		ProviderRef: "pay-1",
		Status:      models.IntentPending,
		CreatedAt:   time.Now(),
		ExpiresAt:   time.Now().Add(30 * time.Minute),
	}
}

func succeededPayment(value string) *paymentprovider.Payment {
	return &paymentprovider.Payment{
		ID:     "pay-1",
		Status: paymentprovider.StatusSucceeded,
		Paid:   true,
		Amount: paymentprovider.Amount{Value: value, Currency: "RUB"},
	}
}

func inactiveIdentity() *models.Identity {
	return &models.Identity{SubjectID: 42, AccessState: models.AccessInactive, PlanKind: models.PlanUnset}
}

func TestReconcileNotification_Applied(t *testing.T) {
	repo := &RepoMock{}
	settings := &SettingsMock{}
	provider := &ProviderMock{}
	gate := &GateMock{}
	publisher := &PublisherMock{}

	provider.On("GetPayment", mock.Anything, "pay-1").Return(succeededPayment("30.00"), nil).Once()
	repo.On("FindIntentByProviderRef", mock.Anything, "pay-1").
		Return(pendingIntent(models.PlanRecurring, 3000), nil).Once()
	repo.On("ApproveIntent", mock.Anything, "pay-1").Return(true, nil).Once()
	repo.On("AddRevenue", mock.Anything, int64(3000)).Return(nil).Once()
	settings.On("GetSettings", mock.Anything).Return(testSettings(), nil).Once()
	repo.On("GetIdentity", mock.Anything, int64(42)).Return(inactiveIdentity(), nil).Once()
	repo.On("ActivateIdentity", mock.Anything, int64(42), models.PlanRecurring,
		mock.MatchedBy(func(expiresAt *time.Time) bool {
			return expiresAt != nil &&
				time.Until(*expiresAt) > 29*24*time.Hour &&
				time.Until(*expiresAt) < 31*24*time.Hour
		})).Return(nil).Once()
	gate.On("Admit", mock.Anything, int64(-100500), int64(42)).Return(nil).Once()
	publisher.On("Publish", rabbitmq.RoutingKeyPayment, mock.MatchedBy(func(event models.NotificationEvent) bool {
		return event.SubjectID == 42 && event.Kind == models.NotificationApproved
	})).Return(nil).Once()

	e := newTestEngine(repo, settings, provider, gate, publisher)
	result, err := e.ReconcileNotification(context.Background(), "pay-1")

	require.NoError(t, err)
	assert.Equal(t, ResultApplied, result)
	repo.AssertExpectations(t)
	gate.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestReconcileNotification_PerpetualGrant(t *testing.T) {
	repo := &RepoMock{}
	settings := &SettingsMock{}
	provider := &ProviderMock{}
	gate := &GateMock{}
	publisher := &PublisherMock{}

	provider.On("GetPayment", mock.Anything, "pay-1").Return(succeededPayment("100.00"), nil).Once()
	repo.On("FindIntentByProviderRef", mock.Anything, "pay-1").
		Return(pendingIntent(models.PlanPerpetual, 10000), nil).Once()
	repo.On("ApproveIntent", mock.Anything, "pay-1").Return(true, nil).Once()
	repo.On("AddRevenue", mock.Anything, int64(10000)).Return(nil).Once()
	settings.On("GetSettings", mock.Anything).Return(testSettings(), nil).Once()
	repo.On("GetIdentity", mock.Anything, int64(42)).Return(inactiveIdentity(), nil).Once()
	repo.On("ActivateIdentity", mock.Anything, int64(42), models.PlanPerpetual,
		(*time.Time)(nil)).Return(nil).Once()
	gate.On("Admit", mock.Anything, int64(-100500), int64(42)).Return(nil).Once()
	publisher.On("Publish", mock.Anything, mock.Anything).Return(nil).Once()

	e := newTestEngine(repo, settings, provider, gate, publisher)
	result, err := e.ReconcileNotification(context.Background(), "pay-1")

	require.NoError(t, err)
	assert.Equal(t, ResultApplied, result)
	repo.AssertExpectations(t)
}

func TestReconcileNotification_NotYetApproved(t *testing.T) {
	for _, status := range []string{
		paymentprovider.StatusPending,
		paymentprovider.StatusWaitingForCapture,
		paymentprovider.StatusCanceled,
	} {
		t.Run(status, func(t *testing.T) {
			repo := &RepoMock{}
			provider := &ProviderMock{}
			provider.On("GetPayment", mock.Anything, "pay-1").
				Return(&paymentprovider.Payment{ID: "pay-1", Status: status}, nil).Once()

			e := newTestEngine(repo, &SettingsMock{}, provider, &GateMock{}, &PublisherMock{})
			result, err := e.ReconcileNotification(context.Background(), "pay-1")

			require.NoError(t, err)
			assert.Equal(t, ResultNotYetApproved, result)
			// Локальное состояние не трогается вовсе.
			repo.AssertNotCalled(t, "FindIntentByProviderRef", mock.Anything, mock.Anything)
		})
	}
}

func TestReconcileNotification_NotFound(t *testing.T) {
	repo := &RepoMock{}
	provider := &ProviderMock{}
	provider.On("GetPayment", mock.Anything, "pay-1").Return(succeededPayment("30.00"), nil).Once()
	repo.On("FindIntentByProviderRef", mock.Anything, "pay-1").
		Return(nil, repository.ErrNotFound).Once()

	e := newTestEngine(repo, &SettingsMock{}, provider, &GateMock{}, &PublisherMock{})
	result, err := e.ReconcileNotification(context.Background(), "pay-1")

	require.NoError(t, err)
	assert.Equal(t, ResultNotFound, result)
}

func TestReconcileNotification_DuplicateDelivery(t *testing.T) {
	repo := &RepoMock{}
	provider := &ProviderMock{}
	gate := &GateMock{}
	approved := pendingIntent(models.PlanRecurring, 3000)
	approved.Status = models.IntentApproved

	provider.On("GetPayment", mock.Anything, "pay-1").Return(succeededPayment("30.00"), nil).Once()
	repo.On("FindIntentByProviderRef", mock.Anything, "pay-1").Return(approved, nil).Once()
	// Грант уже выдан: повтор ограничивается проверкой состояния личности.
	repo.On("GetIdentity", mock.Anything, int64(42)).Return(&models.Identity{
		SubjectID:   42,
		AccessState: models.AccessActive,
		PlanKind:    models.PlanRecurring,
	}, nil).Once()

	e := newTestEngine(repo, &SettingsMock{}, provider, gate, &PublisherMock{})
	result, err := e.ReconcileNotification(context.Background(), "pay-1")

	require.NoError(t, err)
	assert.Equal(t, ResultAlreadyApplied, result)
	// Ни одного повторного начисления выручки или выдачи доступа.
	repo.AssertNotCalled(t, "ApproveIntent", mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "AddRevenue", mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "ActivateIdentity", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	gate.AssertNotCalled(t, "Admit", mock.Anything, mock.Anything, mock.Anything)
}

func TestReconcileNotification_AmountMismatch(t *testing.T) {
	repo := &RepoMock{}
	provider := &ProviderMock{}
	gate := &GateMock{}

	provider.On("GetPayment", mock.Anything, "pay-1").Return(succeededPayment("25.00"), nil).Once()
	repo.On("FindIntentByProviderRef", mock.Anything, "pay-1").
		Return(pendingIntent(models.PlanRecurring, 3000), nil).Once()

	e := newTestEngine(repo, &SettingsMock{}, provider, gate, &PublisherMock{})
	result, err := e.ReconcileNotification(context.Background(), "pay-1")

	require.NoError(t, err)
	assert.Equal(t, ResultAmountMismatch, result)
	// Доступ не выдаётся, состояние не мутируется.
	repo.AssertNotCalled(t, "ApproveIntent", mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "ActivateIdentity", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	gate.AssertNotCalled(t, "Admit", mock.Anything, mock.Anything, mock.Anything)
}

func TestReconcileNotification_ConcurrentLoser(t *testing.T) {
	repo := &RepoMock{}
	settings := &SettingsMock{}
	provider := &ProviderMock{}

	provider.On("GetPayment", mock.Anything, "pay-1").Return(succeededPayment("30.00"), nil).Once()
	repo.On("FindIntentByProviderRef", mock.Anything, "pay-1").
		Return(pendingIntent(models.PlanRecurring, 3000), nil).Once()
	settings.On("GetSettings", mock.Anything).Return(testSettings(), nil).Once()
	// Конкурентная сверка успела одобрить намерение первой.
	repo.On("ApproveIntent", mock.Anything, "pay-1").Return(false, nil).Once()

	e := newTestEngine(repo, settings, provider, &GateMock{}, &PublisherMock{})
	result, err := e.ReconcileNotification(context.Background(), "pay-1")

	require.NoError(t, err)
	assert.Equal(t, ResultAlreadyApplied, result)
	repo.AssertNotCalled(t, "AddRevenue", mock.Anything, mock.Anything)
}

func TestReconcileNotification_PerpetualIsSticky(t *testing.T) {
	repo := &RepoMock{}
	settings := &SettingsMock{}
	provider := &ProviderMock{}
	gate := &GateMock{}
	publisher := &PublisherMock{}

	provider.On("GetPayment", mock.Anything, "pay-1").Return(succeededPayment("30.00"), nil).Once()
	repo.On("FindIntentByProviderRef", mock.Anything, "pay-1").
		Return(pendingIntent(models.PlanRecurring, 3000), nil).Once()
	repo.On("ApproveIntent", mock.Anything, "pay-1").Return(true, nil).Once()
	repo.On("AddRevenue", mock.Anything, int64(3000)).Return(nil).Once()
	settings.On("GetSettings", mock.Anything).Return(testSettings(), nil).Once()
	repo.On("GetIdentity", mock.Anything, int64(42)).Return(&models.Identity{
		SubjectID:   42,
		AccessState: models.AccessActive,
		PlanKind:    models.PlanPerpetual,
	}, nil).Once()
	gate.On("Admit", mock.Anything, int64(-100500), int64(42)).Return(nil).Once()
	publisher.On("Publish", mock.Anything, mock.Anything).Return(nil).Once()

	e := newTestEngine(repo, settings, provider, gate, publisher)
	result, err := e.ReconcileNotification(context.Background(), "pay-1")

	require.NoError(t, err)
	assert.Equal(t, ResultApplied, result)
	// Бессрочный доступ не понижается до срочного.
	repo.AssertNotCalled(t, "ActivateIdentity", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestReconcileNotification_AdmitRetries(t *testing.T) {
	repo := &RepoMock{}
	settings := &SettingsMock{}
	provider := &ProviderMock{}
	gate := &GateMock{}
	publisher := &PublisherMock{}

	provider.On("GetPayment", mock.Anything, "pay-1").Return(succeededPayment("30.00"), nil).Once()
	repo.On("FindIntentByProviderRef", mock.Anything, "pay-1").
		Return(pendingIntent(models.PlanRecurring, 3000), nil).Once()
	repo.On("ApproveIntent", mock.Anything, "pay-1").Return(true, nil).Once()
	repo.On("AddRevenue", mock.Anything, int64(3000)).Return(nil).Once()
	settings.On("GetSettings", mock.Anything).Return(testSettings(), nil).Once()
	repo.On("GetIdentity", mock.Anything, int64(42)).Return(inactiveIdentity(), nil).Once()
	repo.On("ActivateIdentity", mock.Anything, int64(42), models.PlanRecurring, mock.Anything).Return(nil).Once()
	// Первые две попытки падают, третья проходит.
	gate.On("Admit", mock.Anything, int64(-100500), int64(42)).
		Return(errors.New("telegram timeout")).Twice()
	gate.On("Admit", mock.Anything, int64(-100500), int64(42)).Return(nil).Once()
	publisher.On("Publish", mock.Anything, mock.Anything).Return(nil).Once()

	e := newTestEngine(repo, settings, provider, gate, publisher)
	result, err := e.ReconcileNotification(context.Background(), "pay-1")

	require.NoError(t, err)
	assert.Equal(t, ResultApplied, result)
	gate.AssertNumberOfCalls(t, "Admit", 3)
}

func TestReconcileNotification_SettingsFailureLeavesIntentPending(t *testing.T) {
	repo := &RepoMock{}
	settings := &SettingsMock{}
	provider := &ProviderMock{}

	provider.On("GetPayment", mock.Anything, "pay-1").Return(succeededPayment("30.00"), nil).Once()
	repo.On("FindIntentByProviderRef", mock.Anything, "pay-1").
		Return(pendingIntent(models.PlanRecurring, 3000), nil).Once()
	settings.On("GetSettings", mock.Anything).Return(nil, errors.New("settings store down")).Once()

	e := newTestEngine(repo, settings, provider, &GateMock{}, &PublisherMock{})
	_, err := e.ReconcileNotification(context.Background(), "pay-1")

	// Настройки недоступны — намерение остаётся pending, повтор уведомления
	// пройдёт полный цикл заново.
	require.Error(t, err)
	repo.AssertNotCalled(t, "ApproveIntent", mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "ActivateIdentity", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestReconcileNotification_RedeliveryRepairsGrant(t *testing.T) {
	repo := &RepoMock{}
	settings := &SettingsMock{}
	provider := &ProviderMock{}
	gate := &GateMock{}
	publisher := &PublisherMock{}

	pending := pendingIntent(models.PlanRecurring, 3000)
	approved := pendingIntent(models.PlanRecurring, 3000)
	approved.Status = models.IntentApproved

	provider.On("GetPayment", mock.Anything, "pay-1").Return(succeededPayment("30.00"), nil).Twice()
	repo.On("FindIntentByProviderRef", mock.Anything, "pay-1").Return(pending, nil).Once()
	repo.On("FindIntentByProviderRef", mock.Anything, "pay-1").Return(approved, nil).Once()
	settings.On("GetSettings", mock.Anything).Return(testSettings(), nil)
	repo.On("ApproveIntent", mock.Anything, "pay-1").Return(true, nil).Once()
	repo.On("AddRevenue", mock.Anything, int64(3000)).Return(nil).Once()
	repo.On("GetIdentity", mock.Anything, int64(42)).Return(inactiveIdentity(), nil)
	// Первая доставка: хранилище падает на выдаче гранта во всех попытках.
	repo.On("ActivateIdentity", mock.Anything, int64(42), models.PlanRecurring, mock.Anything).
		Return(errors.New("db down")).Times(3)
	repo.On("ActivateIdentity", mock.Anything, int64(42), models.PlanRecurring, mock.Anything).
		Return(nil).Once()
	gate.On("Admit", mock.Anything, int64(-100500), int64(42)).Return(nil).Once()
	publisher.On("Publish", rabbitmq.RoutingKeyPayment, mock.MatchedBy(func(event models.NotificationEvent) bool {
		return event.SubjectID == 42 && event.Kind == models.NotificationApproved
	})).Return(nil).Once()

	e := newTestEngine(repo, settings, provider, gate, publisher)

	_, err := e.ReconcileNotification(context.Background(), "pay-1")
	require.Error(t, err)

	// Повторная доставка находит одобренное намерение без выданного доступа
	// и достраивает грант: пользователь допущен и уведомлён.
	result, err := e.ReconcileNotification(context.Background(), "pay-1")
	require.NoError(t, err)
	assert.Equal(t, ResultAlreadyApplied, result)

	repo.AssertNumberOfCalls(t, "ApproveIntent", 1)
	repo.AssertNumberOfCalls(t, "AddRevenue", 1)
	gate.AssertNumberOfCalls(t, "Admit", 1)
	publisher.AssertExpectations(t)
}

func TestReconcileNotification_ProviderTimeoutLeavesIntentUntouched(t *testing.T) {
	repo := &RepoMock{}
	provider := &ProviderMock{}
	provider.On("GetPayment", mock.Anything, "pay-1").
		Return(nil, context.DeadlineExceeded).Once()

	e := newTestEngine(repo, &SettingsMock{}, provider, &GateMock{}, &PublisherMock{})
	_, err := e.ReconcileNotification(context.Background(), "pay-1")

	require.Error(t, err)
	repo.AssertNotCalled(t, "ApproveIntent", mock.Anything, mock.Anything)
}
