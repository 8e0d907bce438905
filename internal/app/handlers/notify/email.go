package notify

import (
	"fmt"
	"html"

	domainbilling "cspace/internal/domain/billing"
	"cspace/internal/domain/directory"
	"cspace/internal/domain/shared/money"
)

func paymentEmail(location *directory.Location, ev domainbilling.PaymentSettled, amount money.Money) string {
	return fmt.Sprintf(`<p>Hello,</p>
<p>An online payment of <strong>%s</strong> was received at <strong>%s</strong>.</p>
<ul>
<li>Room: %s</li>
<li>Payer: %s</li>
<li>Paid at: %s</li>
</ul>
<p>The funds have been transferred to the location's payout account.</p>`,
		html.EscapeString(amount.String()),
		html.EscapeString(location.Name),
		html.EscapeString(string(ev.RoomID)),
		html.EscapeString(string(ev.PayerID)),
		ev.At.Format("2006-01-02 15:04 MST"),
	)
}
