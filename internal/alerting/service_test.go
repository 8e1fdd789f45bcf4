package alerting

import (
	"testing"
	"time"

	"github.com/canslim/sentinel/internal/domain"
	"github.com/canslim/sentinel/internal/events"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	created     []*domain.Alert
	inCooldown  bool
	markedSent  []string
	acked       []string
	latestByPos map[string]*domain.Alert
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{latestByPos: make(map[string]*domain.Alert)}
}

func (f *fakeRepo) Create(a *domain.Alert) error {
	f.created = append(f.created, a)
	return nil
}

func (f *fakeRepo) CheckCooldown(symbol, alertType, alertSubtype string, window time.Duration) (bool, error) {
	return f.inCooldown, nil
}

func (f *fakeRepo) MarkSent(alertID, channel string, at time.Time) error {
	f.markedSent = append(f.markedSent, alertID+":"+channel)
	return nil
}

func (f *fakeRepo) GetLatestForPosition(positionID string) (*domain.Alert, error) {
	return f.latestByPos[positionID], nil
}

func (f *fakeRepo) GetLatestForSymbols(symbols []string) (map[string]*domain.Alert, error) {
	return nil, nil
}

func (f *fakeRepo) Acknowledge(alertID string) error {
	f.acked = append(f.acked, alertID)
	return nil
}

type fakeNotifier struct {
	calls int
	err   error
}

func (n *fakeNotifier) Notify(a *domain.Alert) (string, error) {
	n.calls++
	return "test", n.err
}

func TestServiceEmitPersistsAndNotifies(t *testing.T) {
	repo := newFakeRepo()
	notifier := &fakeNotifier{}
	svc := NewService(repo, events.NewBus(), nil, zerolog.Nop())
	svc.AddNotifier(notifier)

	alert, suppressed, err := svc.Emit(AlertData{
		Symbol: "NVDA", AlertType: "BREAKOUT", AlertSubtype: "CONFIRMED", Price: 142.5,
	})
	require.NoError(t, err)
	assert.False(t, suppressed)
	require.NotNil(t, alert)
	assert.Equal(t, domain.SeverityInfo, alert.Severity)
	assert.Len(t, repo.created, 1)
	assert.Equal(t, 1, notifier.calls)
	assert.Len(t, repo.markedSent, 1)
}

func TestServiceEmitSuppressedByCooldownSkipsNotification(t *testing.T) {
	repo := newFakeRepo()
	repo.inCooldown = true
	notifier := &fakeNotifier{}
	svc := NewService(repo, nil, nil, zerolog.Nop())
	svc.AddNotifier(notifier)

	alert, suppressed, err := svc.Emit(AlertData{Symbol: "AMD", AlertType: "STOP", AlertSubtype: "HARD_STOP"})
	require.NoError(t, err)
	assert.True(t, suppressed)
	assert.Nil(t, alert)
	assert.Empty(t, repo.created)
	assert.Equal(t, 0, notifier.calls)
}

func TestServiceEmitRequiresIdentity(t *testing.T) {
	svc := NewService(newFakeRepo(), nil, nil, zerolog.Nop())
	_, _, err := svc.Emit(AlertData{})
	assert.Error(t, err)
}

func TestServiceEmitUsesOverrideCooldownWindow(t *testing.T) {
	repo := newFakeRepo()
	windows := CooldownWindows{{"STOP", "WARNING"}: 5 * time.Minute}
	svc := NewService(repo, nil, windows, zerolog.Nop())
	assert.Equal(t, 5*time.Minute, svc.cooldownFor("STOP", "WARNING"))
	assert.Equal(t, DefaultCooldown, svc.cooldownFor("PROFIT", "TP1"))
}

func TestServiceNotifierFailureDoesNotBlockOthers(t *testing.T) {
	repo := newFakeRepo()
	failing := &fakeNotifier{err: assert.AnError}
	succeeding := &fakeNotifier{}
	svc := NewService(repo, nil, nil, zerolog.Nop())
	svc.AddNotifier(failing)
	svc.AddNotifier(succeeding)

	_, _, err := svc.Emit(AlertData{Symbol: "META", AlertType: "PROFIT", AlertSubtype: "TP1"})
	require.NoError(t, err)
	assert.Equal(t, 1, failing.calls)
	assert.Equal(t, 1, succeeding.calls)
	assert.Len(t, repo.markedSent, 1, "only the successful notifier should record a sent mark")
}

func TestServiceAcknowledgeAndLatestForPosition(t *testing.T) {
	repo := newFakeRepo()
	repo.latestByPos["pos-1"] = &domain.Alert{ID: "a1"}
	svc := NewService(repo, nil, nil, zerolog.Nop())

	require.NoError(t, svc.Acknowledge("a1"))
	assert.Equal(t, []string{"a1"}, repo.acked)

	got, err := svc.LatestForPosition("pos-1")
	require.NoError(t, err)
	assert.Equal(t, "a1", got.ID)
}
