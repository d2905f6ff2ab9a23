package smtp

import (
	"context"
	"errors"
	"testing"

	"github.com/credit-relay/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockTransport struct{ mock.Mock }

func (m *mockTransport) Verify(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockTransport) Send(ctx context.Context, msg domain.Message) (domain.Receipt, error) {
	args := m.Called(ctx, msg)
	return args.Get(0).(domain.Receipt), args.Error(1)
}

var testMsg = domain.Message{To: "a@b.com", Subject: "hi", Text: "hello"}

func TestDispatcher_PrimaryHealthySkipsPreview(t *testing.T) {
	primary, preview := &mockTransport{}, &mockTransport{}
	primary.On("Verify", mock.Anything).Return(nil)
	primary.On("Send", mock.Anything, mock.MatchedBy(func(m domain.Message) bool {
		return m.From == "relay@example.com"
	})).Return(domain.Receipt{}, nil)

	d := NewDispatcher(primary, nil, preview, true, "relay@example.com")
	rc, err := d.Send(context.Background(), testMsg)
	require.NoError(t, err)
	assert.Empty(t, rc.PreviewURL)
	preview.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
	primary.AssertExpectations(t)
}

func TestDispatcher_FallsBackWhenAllowed(t *testing.T) {
	primary, preview := &mockTransport{}, &mockTransport{}
	primary.On("Verify", mock.Anything).Return(errors.New("535 auth failed"))
	preview.On("Send", mock.Anything, mock.Anything).Return(domain.Receipt{PreviewURL: "http://x/preview/1"}, nil)

	d := NewDispatcher(primary, nil, preview, true, "")
	rc, err := d.Send(context.Background(), testMsg)
	require.NoError(t, err)
	assert.Equal(t, "http://x/preview/1", rc.PreviewURL)
	primary.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestDispatcher_NoFallbackWhenDisallowed(t *testing.T) {
	primary, preview := &mockTransport{}, &mockTransport{}
	primary.On("Verify", mock.Anything).Return(errors.New("535 auth failed"))

	d := NewDispatcher(primary, nil, preview, false, "")
	_, err := d.Send(context.Background(), testMsg)
	assert.ErrorIs(t, err, domain.ErrTransportUnavailable)
	assert.Contains(t, err.Error(), "535 auth failed")
	preview.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestDispatcher_UnconfiguredPrimaryUsesPreview(t *testing.T) {
	preview := &mockTransport{}
	preview.On("Send", mock.Anything, mock.Anything).Return(domain.Receipt{PreviewURL: "u"}, nil)
	_, cfgErr := NewRelay(testSMTPConfig(""))

	d := NewDispatcher(nil, cfgErr, preview, true, "")
	rc, err := d.Send(context.Background(), testMsg)
	require.NoError(t, err)
	assert.Equal(t, "u", rc.PreviewURL)
	assert.ErrorIs(t, d.VerifyPrimary(context.Background()), domain.ErrMissingCredential)
}

func TestDispatcher_SendFailureAfterVerifyIsNotRetried(t *testing.T) {
	primary, preview := &mockTransport{}, &mockTransport{}
	primary.On("Verify", mock.Anything).Return(nil)
	primary.On("Send", mock.Anything, mock.Anything).Return(domain.Receipt{}, errors.New("550 mailbox unavailable")).Once()

	d := NewDispatcher(primary, nil, preview, true, "")
	_, err := d.Send(context.Background(), testMsg)
	assert.ErrorIs(t, err, domain.ErrTransportUnavailable)
	primary.AssertNumberOfCalls(t, "Send", 1)
	preview.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestDispatcher_PreviewFailureJoinsCauses(t *testing.T) {
	primary, preview := &mockTransport{}, &mockTransport{}
	primary.On("Verify", mock.Anything).Return(errors.New("dial timeout"))
	preview.On("Send", mock.Anything, mock.Anything).Return(domain.Receipt{}, errors.New("bucket missing"))

	d := NewDispatcher(primary, nil, preview, true, "")
	_, err := d.Send(context.Background(), testMsg)
	assert.ErrorIs(t, err, domain.ErrTransportUnavailable)
	assert.Contains(t, err.Error(), "dial timeout")
	assert.Contains(t, err.Error(), "bucket missing")
}
