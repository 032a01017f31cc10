// Package clock implementa ports.Clock sobre el reloj del sistema y un reloj
// manual para tests.
package clock

import (
	"time"

	"github.com/alejandrodnm/wagerbot/internal/ports"
)

// Real usa el paquete time.
type Real struct{}

// New devuelve el reloj del sistema.
func New() Real { return Real{} }

func (Real) Now() time.Time { return time.Now() }

func (Real) AfterFunc(d time.Duration, f func()) ports.Timer {
	return time.AfterFunc(d, f)
}

func (Real) NewTicker(d time.Duration) ports.Ticker {
	return realTicker{t: time.NewTicker(d)}
}

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }
