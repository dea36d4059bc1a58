package mailer

import (
	"fmt"
	"html"
	"time"
)

// OTPMessage письмо с кодом подтверждения email.
func OTPMessage(to, code string, ttl time.Duration) Message {
	minutes := int(ttl.Minutes())
	return Message{
		To:      to,
		Subject: "ChemSus: код подтверждения заказа",
		TextBody: fmt.Sprintf(
			"Ваш код подтверждения: %s\n\nКод действует %d мин. Если вы не оформляли заказ, просто проигнорируйте это письмо.",
			code, minutes),
		HTMLBody: fmt.Sprintf(
			"<p>Ваш код подтверждения:</p><p style=\"font-size:24px;letter-spacing:4px\"><b>%s</b></p><p>Код действует %d мин.</p>",
			html.EscapeString(code), minutes),
	}
}

// OrderConfirmationMessage письмо о принятом заказе.
func OrderConfirmationMessage(to string, orderID int64, customerName string, total float64) Message {
	return Message{
		To:      to,
		Subject: fmt.Sprintf("ChemSus: заказ #%d принят", orderID),
		TextBody: fmt.Sprintf(
			"%s, спасибо за заказ #%d на сумму %.2f INR.\nОплатите заказ по UPI и загрузите квитанцию на странице заказа.",
			customerName, orderID, total),
	}
}
