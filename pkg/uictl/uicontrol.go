// Package uictl describes read-only controls a UI can poll without knowing
// the hardware behind them.
package uictl

import "golang.org/x/exp/constraints"

type Number interface {
	constraints.Integer | constraints.Float
}

// Dial is a control that can read some value.
type Dial[N Number] interface {
	Read() N
}

// CappedDial is a Dial with a maximum cap value. A zero max means no cap.
type CappedDial[N Number] interface {
	Dial[N]
	Cap() (num, max N)
}
