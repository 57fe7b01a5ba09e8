package report

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/batchwatch/am"
	"github.com/teranos/batchwatch/errors"
	"github.com/teranos/batchwatch/notify"
)

type captureNotifier struct {
	sent []notify.Message
	err  error
}

func (c *captureNotifier) Send(_ context.Context, msg notify.Message) error {
	c.sent = append(c.sent, msg)
	return c.err
}

func TestPublish_AddressesFromEffectiveConfig(t *testing.T) {
	s, f := setup(t)
	f.Job(1, "nightly_load", "Nightly Load").
		Schedule(1, "Wednesday", 2000, "")
	f.Config(am.OverrideMailTo, "db-ops@example.com; night@example.com")

	cfg := testConfig()
	cfg.Mail.From = "batch@example.com"
	cfg.Mail.To = []string{"file-ops@example.com"}
	cfg.Report.LogoPath = "/does/not/exist.png"

	n := &captureNotifier{}
	res, err := NewPublisher(NewRunner(s, cfg, nil), n, nil).
		Publish(context.Background(), Options{Now: at(14, 9, 0)})
	require.NoError(t, err)
	require.Len(t, n.sent, 1)

	msg := n.sent[0]
	assert.Equal(t, "batch@example.com", msg.From)
	assert.Equal(t, []string{"db-ops@example.com", "night@example.com"}, msg.To)
	assert.Equal(t, res.Subject, msg.Subject)
	assert.Contains(t, string(msg.HTML), "Nightly Load")
	assert.NotContains(t, string(msg.HTML), "<img", "missing logo is skipped")
}

func TestPublish_DeliveryFailureKeepsResult(t *testing.T) {
	s, f := setup(t)
	f.Job(1, "nightly_load", "Nightly Load").
		Schedule(1, "Wednesday", 2000, "")

	n := &captureNotifier{err: errors.Mark(errors.New("relay down"), errors.ErrDelivery)}
	res, err := NewPublisher(NewRunner(s, testConfig(), nil), n, nil).
		Publish(context.Background(), Options{Now: at(14, 9, 0)})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrDelivery))
	require.NotNil(t, res)
	assert.Len(t, res.Rows, 1)
}
