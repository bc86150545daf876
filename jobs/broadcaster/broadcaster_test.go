package broadcaster

import (
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"apexlob/infra/outbox"
)

type fakeProducer struct {
	sent []*sarama.ProducerMessage
	fail bool
}

func (f *fakeProducer) SendMessage(m *sarama.ProducerMessage) (int32, int64, error) {
	if f.fail {
		return 0, 0, errors.New("broker down")
	}
	f.sent = append(f.sent, m)
	return 0, int64(len(f.sent)), nil
}

func (f *fakeProducer) Close() error { return nil }

func newTestBroadcaster(t *testing.T, fp *fakeProducer) (*Broadcaster, *outbox.Outbox) {
	t.Helper()
	ob, err := outbox.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = ob.Close() })

	return &Broadcaster{
		outbox:   ob,
		producer: fp,
		topic:    "fills",
		interval: time.Millisecond,
		logger:   zap.NewNop(),
	}, ob
}

func TestDrainPublishesAndCleansUp(t *testing.T) {
	fp := &fakeProducer{}
	b, ob := newTestBroadcaster(t, fp)

	require.NoError(t, ob.Put(1, []byte("fill-1")))
	require.NoError(t, ob.Put(2, []byte("fill-2")))

	b.drainOnce()

	require.Len(t, fp.sent, 2)
	assert.Equal(t, "fills", fp.sent[0].Topic)

	// Published records are acked and removed.
	for _, state := range []outbox.State{outbox.StateNew, outbox.StateSent, outbox.StateAcked} {
		count := 0
		_ = ob.ScanByState(state, func(uint64, outbox.Record) error { count++; return nil })
		assert.Zero(t, count, "state %v should be empty", state)
	}
}

func TestFailedPublishStaysForRetry(t *testing.T) {
	fp := &fakeProducer{fail: true}
	b, ob := newTestBroadcaster(t, fp)

	require.NoError(t, ob.Put(1, []byte("fill-1")))
	b.drainOnce()

	rec, err := ob.Get(1)
	require.NoError(t, err)
	assert.Equal(t, outbox.StateSent, rec.State)
	assert.Equal(t, uint32(1), rec.Retries)

	// Recovery pass picks SENT records up again.
	fp.fail = false
	b.drainOnce()
	require.Len(t, fp.sent, 1)
	assert.Equal(t, []byte("fill-1"), []byte(fp.sent[0].Value.(sarama.ByteEncoder)))

	_, err = ob.Get(1)
	assert.Error(t, err, "record should be deleted after ack")
}
