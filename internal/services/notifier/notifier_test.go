package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/vip-access/internal/models"
)

type MessengerMock struct{ mock.Mock }

func (m *MessengerMock) Notify(ctx context.Context, subjectID int64, text string) error {
	return m.Called(ctx, subjectID, text).Error(0)
}

func newTestNotifier(m *MessengerMock) *Notifier {
	log := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
	return New(m, log)
}

func TestHandle_DeliversEvent(t *testing.T) {
	messenger := &MessengerMock{}
	messenger.On("Notify", mock.Anything, int64(42), "Оплата получена").Return(nil).Once()

	body, err := json.Marshal(models.NotificationEvent{
		SubjectID: 42,
		Text:      "Оплата получена",
		Kind:      models.NotificationApproved,
	})
	require.NoError(t, err)

	n := newTestNotifier(messenger)
	require.NoError(t, n.Handle(context.Background(), body))
	messenger.AssertExpectations(t)
}

func TestHandle_DeliveryFailureRequeues(t *testing.T) {
	messenger := &MessengerMock{}
	messenger.On("Notify", mock.Anything, int64(42), "text").
		Return(errors.New("telegram unavailable")).Once()

	body, _ := json.Marshal(models.NotificationEvent{SubjectID: 42, Text: "text"})

	n := newTestNotifier(messenger)
	assert.Error(t, n.Handle(context.Background(), body))
}

func TestHandle_MalformedBodyDropped(t *testing.T) {
	messenger := &MessengerMock{}

	n := newTestNotifier(messenger)
	assert.NoError(t, n.Handle(context.Background(), []byte("not json")))
	messenger.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandle_IncompleteEventDropped(t *testing.T) {
	messenger := &MessengerMock{}
	body, _ := json.Marshal(models.NotificationEvent{SubjectID: 0, Text: ""})

	n := newTestNotifier(messenger)
	assert.NoError(t, n.Handle(context.Background(), body))
	messenger.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything, mock.Anything)
}
