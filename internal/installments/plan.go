package installments

import (
	"math"
	"time"

	"ms-booking/internal/models"
	"ms-booking/internal/utils"
)

// DefaultCount is the number of installments when the booking does not
// specify one.
const DefaultCount = 3

// interval between consecutive due dates.
const dueInterval = 30 * 24 * time.Hour

// Build lays out the payment schedule for an installment booking: one
// down payment due immediately, followed by count installments spaced
// thirty days apart. The down payment entry is staged for activation
// right away; installments carry no payment link until the scheduler
// activates them.
//
// requestedDown of zero picks the default split, total/(count+1),
// rounded and never below one. The remainder is divided into equal
// whole-AED installments; when it does not divide evenly, the earliest
// installments absorb one extra unit each so the sum always matches.
// Each entry's Balance is the amount still owed after that entry is
// settled.
func Build(total int64, count int, requestedDown int64, now time.Time) []models.Payment {
	if count < 0 {
		count = 0
	}

	down := requestedDown
	if down <= 0 {
		down = int64(math.Round(float64(total) / float64(count+1)))
		if down < 1 {
			down = 1
		}
	}
	if down > total {
		down = total
	}

	remaining := total - down
	if remaining < 0 {
		remaining = 0
	}

	payments := make([]models.Payment, 0, count+1)
	payments = append(payments, models.Payment{
		ID:               utils.GeneratePaymentID(),
		Kind:             models.KindDownPayment,
		Amount:           down,
		Date:             now,
		Status:           models.PaymentPending,
		InstallmentStage: models.StageInstalledReady,
		CreatedAt:        now,
		InstalledAt:      &now,
		Balance:          remaining,
		Notes:            "Down payment",
	})

	if count == 0 {
		return payments
	}

	base := remaining / int64(count)
	extra := remaining % int64(count)
	balance := remaining

	for i := 0; i < count; i++ {
		amount := base
		if int64(i) < extra {
			amount++
		}
		balance -= amount

		payments = append(payments, models.Payment{
			ID:               utils.GeneratePaymentID(),
			Kind:             models.KindInstallment,
			Amount:           amount,
			Date:             now.Add(time.Duration(i+1) * dueInterval),
			Status:           models.PaymentPending,
			InstallmentStage: models.StageReadyToInstall,
			CreatedAt:        now,
			Balance:          balance,
		})
	}

	return payments
}
