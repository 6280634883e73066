// Package mock is an offline stand-in for the prediction service. It scores
// requests in-process with the reference model after a simulated network
// delay, so the client can be demoed without a server.
package mock

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/Joserraldo/diabetes/internal/domain"
	"github.com/Joserraldo/diabetes/internal/predict"
	"github.com/Joserraldo/diabetes/internal/service"
)

const baseDelay = 1200 * time.Millisecond

// Failure modes, configured as mock.fail.
const (
	FailNone      = ""
	FailTransport = "transport"
	FailInvalid   = "invalid"
)

type Submitter struct {
	model *service.Model
	speed int
	fail  string

	mu  sync.Mutex
	rng *rand.Rand
}

type Options struct {
	// Speed divides the simulated delay; values below 1 mean 1.
	Speed int
	Fail  string
}

func New(model *service.Model, opts Options) *Submitter {
	if model == nil {
		model = service.DefaultModel()
	}
	return &Submitter{
		model: model,
		speed: max(1, opts.Speed),
		fail:  opts.Fail,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *Submitter) Submit(ctx context.Context, snap domain.Snapshot, target domain.Target) (domain.Outcome, error) {
	if !s.sleep(ctx) {
		e := &predict.Error{Kind: predict.KindTransport, Err: ctx.Err()}
		return domain.Failure(e.Error()), e
	}

	switch s.fail {
	case FailTransport:
		e := &predict.Error{Kind: predict.KindTransport, Err: fmt.Errorf("dial tcp %s: connect: connection refused", target)}
		return domain.Failure(e.Error()), e
	case FailInvalid:
		return s.parse([]byte(`{"detail":"mock rejected the request"}`))
	}

	raw, err := json.Marshal(s.model.Predict(predict.Translate(snap)))
	if err != nil {
		e := &predict.Error{Kind: predict.KindTransport, Err: err}
		return domain.Failure(e.Error()), e
	}
	return s.parse(raw)
}

func (s *Submitter) parse(raw []byte) (domain.Outcome, error) {
	resp, err := predict.ParseResponse(raw)
	if err != nil {
		e := &predict.Error{Kind: predict.KindInvalidResponse, Err: err}
		return domain.Failure(e.Error()), e
	}
	return resp.Outcome(), nil
}

// sleep waits baseDelay/speed with up to 25% jitter.
func (s *Submitter) sleep(ctx context.Context) bool {
	d := baseDelay / time.Duration(s.speed)
	s.mu.Lock()
	d += time.Duration(s.rng.Int63n(int64(d)/4 + 1))
	s.mu.Unlock()

	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
