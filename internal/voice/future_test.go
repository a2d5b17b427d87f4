package voice

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/naveo-ai/naveo-voice/pkg/audio"
	livemock "github.com/naveo-ai/naveo-voice/pkg/provider/live/mock"
)

func chunkN(n int) audio.EncodedChunk {
	return audio.EncodedChunk{
		MIMEType: "audio/pcm;rate=16000",
		Data:     fmt.Sprintf("chunk-%d", n),
	}
}

func TestFutureQueuesSendsUntilResolved(t *testing.T) {
	t.Parallel()
	f := newSessionFuture()

	for i := 0; i < 3; i++ {
		if err := f.Send(chunkN(i)); err != nil {
			t.Fatalf("queued Send %d: %v", i, err)
		}
	}

	sess := livemock.NewSession()
	if got := len(sess.Sent()); got != 0 {
		t.Fatalf("session saw %d sends before resolve", got)
	}

	f.resolve(sess)

	sent := sess.Sent()
	if len(sent) != 3 {
		t.Fatalf("sent = %d chunks, want 3", len(sent))
	}
	for i, c := range sent {
		if want := fmt.Sprintf("chunk-%d", i); c.Data != want {
			t.Errorf("sent[%d] = %q, want %q", i, c.Data, want)
		}
	}
}

func TestFutureSendsDirectlyAfterResolve(t *testing.T) {
	t.Parallel()
	f := newSessionFuture()
	sess := livemock.NewSession()
	f.resolve(sess)

	if err := f.Send(chunkN(0)); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got := len(sess.Sent()); got != 1 {
		t.Fatalf("sent = %d, want 1", got)
	}
}

func TestFutureQueuedCloseRunsAfterQueuedSends(t *testing.T) {
	t.Parallel()
	f := newSessionFuture()

	f.Send(chunkN(0))
	f.Send(chunkN(1))
	f.Close()

	sess := livemock.NewSession()
	f.resolve(sess)

	if got := len(sess.Sent()); got != 2 {
		t.Errorf("sent = %d, want 2 (sends land before the close)", got)
	}
	if !sess.Closed() {
		t.Error("queued close was not replayed")
	}
}

func TestFutureFailDropsQueue(t *testing.T) {
	t.Parallel()
	f := newSessionFuture()

	f.Send(chunkN(0))
	f.fail(errors.New("dial failed"))

	if err := f.Send(chunkN(1)); !errors.Is(err, errSessionFailed) {
		t.Fatalf("Send after fail = %v, want errSessionFailed", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close after fail: %v", err)
	}
}

func TestFutureConcurrentSendsAllDelivered(t *testing.T) {
	t.Parallel()
	f := newSessionFuture()
	sess := livemock.NewSession()

	const n = 50
	var wg sync.WaitGroup
	wg.Add(n + 1)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			f.Send(chunkN(i))
		}(i)
	}
	go func() {
		defer wg.Done()
		f.resolve(sess)
	}()
	wg.Wait()

	if got := len(sess.Sent()); got != n {
		t.Errorf("sent = %d, want %d", got, n)
	}
}
