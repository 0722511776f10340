package cmd

import (
	"expvar"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/statbio/prsinfer/sampler"
)

// monitor republishes engine progress over expvar + HTTP while a run is in
// flight.
type monitor struct {
	server  *http.Server
	stopped chan struct{}
	done    chan struct{}

	State      *expvar.String
	Iterations *expvar.Int
	Delta      *expvar.Float
	RunTime    *expvar.Float
	Sigma2     *expvar.Float
	PropCausal *expvar.Float
	MeanAbsEff *expvar.Float
}

// Start begins the monitor
func (m *monitor) Start(addr string, eng sampler.Engine) error {
	if m.server != nil {
		return errors.Errorf("BUG: You may only start the process monitor once")
	}

	m.stopped = make(chan struct{})
	m.done = make(chan struct{})
	m.server = &http.Server{
		Addr: addr,
	}

	// Help the user and redirect to the only thing currently available:
	// the handler from the expvar package
	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/debug/vars", http.StatusTemporaryRedirect)
	})

	m.State = expvar.NewString("State")
	m.Iterations = expvar.NewInt("Iterations")
	m.Delta = expvar.NewFloat("Last-Delta")
	m.RunTime = expvar.NewFloat("Run-Time")
	m.Sigma2 = expvar.NewFloat("Sigma2")
	m.PropCausal = expvar.NewFloat("Prop-Causal")
	m.MeanAbsEff = expvar.NewFloat("Mean-Abs-Effect")

	start := time.Now()
	go func() {
		tick := time.NewTicker(time.Second)
		defer tick.Stop()
		for {
			select {
			case <-m.done:
				return
			case <-tick.C:
				d := eng.Diag()
				m.State.Set(eng.State().String())
				m.Iterations.Set(int64(d.Iterations))
				m.Delta.Set(d.Delta)
				m.RunTime.Set(time.Since(start).Seconds())
				m.Sigma2.Set(d.ResidVar)
				m.PropCausal.Set(d.PropCausal)
				m.MeanAbsEff.Set(d.MeanAbsEffect)
			}
		}
	}()

	started := make(chan struct{})
	go func() {
		defer close(m.stopped)
		log.Noticef("HTTP now available at %v (see /debug/vars)", m.server.Addr)
		close(started)
		m.server.ListenAndServe()
	}()

	<-started
	return nil
}

func (m *monitor) Stop() {
	if m.server == nil {
		return
	}

	close(m.done)
	m.server.Close()

	select {
	case <-m.stopped:
		log.Notice("HTTP monitor stopped")
	case <-time.After(2 * time.Second):
		log.Warning("HTTP monitor would NOT stop: just continuing on")
	}
}
