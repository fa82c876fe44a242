package services

import (
	"github.com/yashrajoria/beacon-market/services/checkout-service/repository"
	"go.uber.org/zap"
)

// CheckoutState is a step of one checkout attempt.
type CheckoutState int

const (
	StateIdle CheckoutState = iota
	StateValidating
	StateReserving
	StateDebiting
	StateCreatingOrders
	StateClearingCart
	StateDone
	StateRollingBack
	StateFailed
)

var stateNames = map[CheckoutState]string{
	StateIdle:           "idle",
	StateValidating:     "validating",
	StateReserving:      "reserving",
	StateDebiting:       "debiting",
	StateCreatingOrders: "creating_orders",
	StateClearingCart:   "clearing_cart",
	StateDone:           "done",
	StateRollingBack:    "rolling_back",
	StateFailed:         "failed",
}

func (s CheckoutState) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

var allowedTransitions = map[CheckoutState][]CheckoutState{
	StateIdle:           {StateValidating, StateFailed},
	StateValidating:     {StateReserving, StateFailed},
	StateReserving:      {StateDebiting, StateRollingBack},
	StateDebiting:       {StateCreatingOrders, StateRollingBack},
	StateCreatingOrders: {StateClearingCart, StateRollingBack},
	StateClearingCart:   {StateDone, StateRollingBack},
	StateRollingBack:    {StateFailed},
}

func canTransition(from, to CheckoutState) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// checkoutLedger is what the rollback handler needs to undo an attempt.
type checkoutLedger struct {
	reservations  []repository.Reservation
	debited       bool
	balanceBefore int64
	debitAmount   int64
}

// mutated reports whether anything was written that a rollback must undo.
func (l *checkoutLedger) mutated() bool {
	return len(l.reservations) > 0 || l.debited
}

type checkoutAttempt struct {
	buyerEmail     string
	idempotencyKey string
	state          CheckoutState
	history        []CheckoutState
	ledger         checkoutLedger
	logger         *zap.Logger
}

func newCheckoutAttempt(buyerEmail, idempotencyKey string, logger *zap.Logger) *checkoutAttempt {
	return &checkoutAttempt{
		buyerEmail:     buyerEmail,
		idempotencyKey: idempotencyKey,
		state:          StateIdle,
		history:        []CheckoutState{StateIdle},
		logger:         logger.With(zap.String("buyer", buyerEmail), zap.String("idempotency_key", idempotencyKey)),
	}
}

func (a *checkoutAttempt) transition(next CheckoutState) {
	if !canTransition(a.state, next) {
		a.logger.DPanic("invalid checkout transition",
			zap.Stringer("from", a.state),
			zap.Stringer("to", next),
		)
	}
	a.logger.Debug("checkout state", zap.Stringer("from", a.state), zap.Stringer("to", next))
	a.state = next
	a.history = append(a.history, next)
}

// fail moves the attempt to its terminal failure state, passing through
// RollingBack when anything past validation may have been written.
func (a *checkoutAttempt) fail() {
	switch a.state {
	case StateIdle, StateValidating:
		a.transition(StateFailed)
	case StateFailed, StateDone:
	default:
		a.transition(StateRollingBack)
	}
}
