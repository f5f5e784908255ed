package lifecycle

import "github.com/vitwit/usdcpay/types"

// Sink receives lifecycle notifications. Every field is optional.
//
// OnSubmitted, OnConfirmed and OnError fire at most once per attempt, in that
// order, and an attempt never reaches both OnConfirmed and OnError.
// OnStateChange fires for every transition, before the event specific
// callback of the same transition. Callbacks run outside the machine lock and
// may call back into the machine.
type Sink struct {
	OnSubmitted   func(txHash string)
	OnConfirmed   func(txHash string)
	OnError       func(err *types.PaymentError)
	OnStateChange func(state types.LifecycleState)
}

// Merge returns a sink that invokes s and then other for each notification.
func (s Sink) Merge(other Sink) Sink {
	return Sink{
		OnSubmitted:   chain1(s.OnSubmitted, other.OnSubmitted),
		OnConfirmed:   chain1(s.OnConfirmed, other.OnConfirmed),
		OnError:       chain1(s.OnError, other.OnError),
		OnStateChange: chain1(s.OnStateChange, other.OnStateChange),
	}
}

func chain1[T any](a, b func(T)) func(T) {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	}
	return func(v T) {
		a(v)
		b(v)
	}
}
