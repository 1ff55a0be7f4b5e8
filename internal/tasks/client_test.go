package tasks

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mikestefanello/backlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derkdev976-web/davel-library-sub002/internal/config"
	"github.com/derkdev976-web/davel-library-sub002/internal/mail"
)

func newTestClient(t *testing.T) (*Client, string) {
	t.Helper()
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Workers = 1
	client, err := NewClient(filepath.Join(dir, "library.db"), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client, dir
}

// run starts the workers and stops them when the test ends.
func run(t *testing.T, client *Client) context.Context {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go client.Start(ctx)
	t.Cleanup(func() {
		stopCtx, stop := context.WithTimeout(context.Background(), 2*time.Second)
		defer stop()
		client.Stop(stopCtx)
		cancel()
	})
	return ctx
}

func TestNewClient_CreatesQueueDatabase(t *testing.T) {
	client, dir := newTestClient(t)

	_, err := os.Stat(filepath.Join(dir, "library-tasks.db"))
	assert.NoError(t, err)
	assert.NoError(t, client.DB().Ping())
}

func TestClient_StopBeforeStart(t *testing.T) {
	client, _ := newTestClient(t)
	assert.True(t, client.Stop(context.Background()))
}

type echoTask struct {
	Value string `json:"value"`
}

func (echoTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{Name: "echo", MaxAttempts: 1, Timeout: 5 * time.Second}
}

func TestClient_EnqueueRunsTask(t *testing.T) {
	client, _ := newTestClient(t)
	got := make(chan string, 1)
	client.Register(backlite.NewQueue(func(_ context.Context, task echoTask) error {
		got <- task.Value
		return nil
	}))
	ctx := run(t, client)

	require.NoError(t, client.Enqueue(ctx, echoTask{Value: "Things Fall Apart"}))

	select {
	case v := <-got:
		assert.Equal(t, "Things Fall Apart", v)
	case <-time.After(5 * time.Second):
		t.Fatal("task was not executed within timeout")
	}
}

func TestTasksDBPath(t *testing.T) {
	assert.Equal(t, filepath.Join("data", "library-tasks.db"), TasksDBPath(filepath.Join("data", "library.db")))
	assert.Equal(t, "queue-tasks", TasksDBPath("queue"))
}

func TestConfigFrom(t *testing.T) {
	defaults := ConfigFrom(config.Tasks{})
	assert.Equal(t, DefaultConfig(), defaults)
	assert.Equal(t, 2, defaults.Workers)
	assert.Equal(t, time.Hour, defaults.CleanupInterval)

	cfg := ConfigFrom(config.Tasks{Workers: 4, RetryDelay: 30 * time.Second})
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 30*time.Second, cfg.RetryDelay)
	assert.Equal(t, 3, cfg.MaxRetries, "unset values keep defaults")
	assert.Equal(t, 15*time.Minute, cfg.ReleaseAfter)
}

func TestQueuedMailer(t *testing.T) {
	t.Run("delivers through the queue", func(t *testing.T) {
		client, _ := newTestClient(t)
		delivered := &recordingMailer{sent: make(chan mail.Message, 1)}
		client.Register(NewSendEmailQueue(delivered))
		ctx := run(t, client)

		msg := mail.Message{To: []string{"member@example.com"}, Subject: "Reservation approved", HTML: "<p>ok</p>"}
		require.NoError(t, NewQueuedMailer(client).Send(ctx, msg))

		select {
		case got := <-delivered.sent:
			assert.Equal(t, msg.To, got.To)
			assert.Equal(t, msg.Subject, got.Subject)
			assert.Equal(t, msg.HTML, got.HTML)
		case <-time.After(5 * time.Second):
			t.Fatal("email was not delivered within timeout")
		}
	})

	t.Run("rejects messages without recipients", func(t *testing.T) {
		err := NewQueuedMailer(nil).Send(context.Background(), mail.Message{Subject: "no recipients"})
		assert.ErrorIs(t, err, mail.ErrNoRecipients)
	})
}
