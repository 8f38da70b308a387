package service

import (
	"github.com/BrandonDHaskell/parkgate/internal/parkgate/serialproto"
	"github.com/BrandonDHaskell/parkgate/internal/parkgate/store"
	"github.com/BrandonDHaskell/parkgate/internal/parkgate/types"
)

// SettlementHook returns a Settlement OnConfirmed callback that announces the
// payment and refreshes dashboard stats.
func SettlementHook(pub Publisher, notify Notifier) func(serialproto.Exchange, store.VehicleRecord) {
	if pub == nil {
		pub = nopPublisher{}
	}
	if notify == nil {
		notify = nopNotifier{}
	}
	return func(ex serialproto.Exchange, rec store.VehicleRecord) {
		pub.Publish(types.UpdatePayment, types.PaymentNotice{
			ExchangeID:  ex.ID,
			PlateNumber: rec.PlateNumber,
			Amount:      rec.PaymentAmount.ValueOrZero(),
			Timestamp:   stamp(rec.PaymentTime.ValueOrZero()),
		})
		notify.Changed()
	}
}
