package credit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/credit-relay/internal/config"
	"github.com/credit-relay/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockProducer struct{ mock.Mock }

func (m *mockProducer) Produce(ctx context.Context) (*domain.Deliverable, error) {
	args := m.Called(ctx)
	d, _ := args.Get(0).(*domain.Deliverable)
	return d, args.Error(1)
}

var testAccount = Account{
	MemberID:         "member-1",
	MembershipTierID: "tier-1",
	BalanceProductID: "image-gen",
	SpendAmount:      5,
}

func newTestService(l *mockLedger, p *mockProducer) Service {
	return NewService(l, testAccount, map[string]Product{
		KindImage: {ProductID: "image-gen", Producer: p},
		KindMusic: {ProductID: "music-gen", Producer: p},
	}, newClock().Now)
}

func TestPurchase_ProducesThenSpendsThenRefreshes(t *testing.T) {
	l, p := &mockLedger{}, &mockProducer{}
	p.On("Produce", mock.Anything).Return(&domain.Deliverable{URL: "https://cdn/song.mp3"}, nil)
	l.On("Spend", mock.Anything, domain.SpendRequest{
		MemberID: "member-1", ProductID: "music-gen", MembershipTierID: "tier-1", Amount: 5,
	}).Return(json.RawMessage(`{"ok":true}`), nil)
	l.On("Balance", mock.Anything, domain.BalanceQuery{MemberID: "member-1", MembershipTierID: "tier-1", ProductID: "image-gen"}).
		Return(fptr(95), nil)
	l.On("History", mock.Anything, mock.MatchedBy(func(q domain.HistoryQuery) bool {
		return q.Page == 1 && q.Limit == 10
	})).Return(&domain.HistoryPage{Items: itemsN(1, "h"), Total: 1}, nil)

	res, err := newTestService(l, p).Purchase(context.Background(), KindMusic)
	require.NoError(t, err)
	assert.Equal(t, KindMusic, res.Deliverable.Kind)
	assert.Equal(t, 95.0, *res.Balance.Balance)
	require.NotNil(t, res.History)
	assert.False(t, res.History.HasMore)
	assert.JSONEq(t, `{"ok":true}`, string(res.Spend))
	l.AssertExpectations(t)
}

func TestPurchase_FailedDeliverableChargesNothing(t *testing.T) {
	l, p := &mockLedger{}, &mockProducer{}
	p.On("Produce", mock.Anything).Return(nil, errors.New("all audio sources unreachable"))

	_, err := newTestService(l, p).Purchase(context.Background(), KindMusic)
	assert.ErrorIs(t, err, domain.ErrDeliverable)
	l.AssertNotCalled(t, "Spend", mock.Anything, mock.Anything)
}

func TestPurchase_SpendFailureSkipsRefresh(t *testing.T) {
	l, p := &mockLedger{}, &mockProducer{}
	p.On("Produce", mock.Anything).Return(&domain.Deliverable{URL: "u"}, nil)
	l.On("Spend", mock.Anything, mock.Anything).Return(nil, domain.ErrUpstream)

	_, err := newTestService(l, p).Purchase(context.Background(), KindImage)
	assert.ErrorIs(t, err, domain.ErrUpstream)
	l.AssertNotCalled(t, "Balance", mock.Anything, mock.Anything)
	l.AssertNumberOfCalls(t, "Spend", 1)
}

func TestPurchase_RefreshFailuresAreNotFatal(t *testing.T) {
	l, p := &mockLedger{}, &mockProducer{}
	p.On("Produce", mock.Anything).Return(&domain.Deliverable{URL: "u"}, nil)
	l.On("Spend", mock.Anything, mock.Anything).Return(nil, nil)
	l.On("Balance", mock.Anything, mock.Anything).Return(nil, errors.New("timeout"))
	l.On("History", mock.Anything, mock.Anything).Return(nil, domain.ErrEndpointNotFound)

	res, err := newTestService(l, p).Purchase(context.Background(), KindImage)
	require.NoError(t, err)
	assert.Nil(t, res.Balance.Balance)
	assert.Nil(t, res.History)
}

func TestPurchase_UnknownKind(t *testing.T) {
	_, err := newTestService(&mockLedger{}, &mockProducer{}).Purchase(context.Background(), "video")
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestService_HistoryNextPage(t *testing.T) {
	l := &mockLedger{}
	l.On("History", mock.Anything, mock.MatchedBy(func(q domain.HistoryQuery) bool { return q.Page == 2 })).
		Return(&domain.HistoryPage{Items: itemsN(10, "x"), Page: intp(2), TotalPages: intp(4)}, nil)

	v, err := newTestService(l, &mockProducer{}).History(context.Background(), 2, 10)
	require.NoError(t, err)
	assert.True(t, v.HasMore)
	assert.Equal(t, 3, v.NextPage)
}

func TestService_SpendDefaults(t *testing.T) {
	l := &mockLedger{}
	l.On("Spend", mock.Anything, mock.MatchedBy(func(r domain.SpendRequest) bool {
		return r.ProductID == "image-gen" && r.Amount == 5
	})).Return(nil, nil)
	_, err := newTestService(l, &mockProducer{}).Spend(context.Background(), "", 0)
	require.NoError(t, err)
	l.AssertExpectations(t)
}

func TestAccountFromConfig(t *testing.T) {
	a := AccountFromConfig(config.LedgerConfig{
		MemberID: "m", MembershipTierID: "t", ProductBalance: "p", SpendAmount: 5, HistoryLimit: 10,
	})
	assert.Equal(t, Account{MemberID: "m", MembershipTierID: "t", BalanceProductID: "p", SpendAmount: 5, HistoryLimit: 10}, a)
}
