package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Константы валидации
const (
	MaxEmailLength        = 254
	MinCustomerNameLength = 2
	MaxCustomerNameLength = 120
	MaxCompanyNameLength  = 200
	MinAddressLength      = 5
	MaxAddressLength      = 500
	MaxCityLength         = 100
	MaxRegionLength       = 100
	MaxCountryLength      = 60
	MaxNotesLength        = 2000
	MinMessageLength      = 1
	MaxMessageLength      = 5000
	MaxFeedbackLength     = 2000
	MaxPaymentRefLength   = 120
	MaxExternalLinkLength = 500
	MinHexIDLength        = 20
	MaxHexIDLength        = 128
	MaxOrderItems         = 50
	MaxItemQuantity       = 10000
)

var (
	localPartRegex  = regexp.MustCompile(`^[a-z0-9._+-]+$`)
	domainPartRegex = regexp.MustCompile(`^[a-z0-9.-]+\.[a-z]{2,}$`)
	hexIDRegex      = regexp.MustCompile(`^[a-f0-9]+$`)
	otpCodeRegex    = regexp.MustCompile(`^[0-9]{6}$`)
	phoneRegex      = regexp.MustCompile(`^\+?[0-9][0-9 \-]{6,18}[0-9]$`)
	pincodeRegex    = regexp.MustCompile(`^[0-9]{6}$`)
)

// ValidateLength проверяет длину строки.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s должен быть не менее %d символов", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s должен быть не более %d символов", fieldName, max)
	}
	return nil
}

// NormalizeEmail приводит email к каноническому виду: без пробелов, в нижнем регистре.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail проверяет формат уже нормализованного email.
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email обязателен")
	}
	if len(email) > MaxEmailLength {
		return fmt.Errorf("email слишком длинный")
	}

	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return fmt.Errorf("некорректный формат email")
	}

	localPart := parts[0]
	domainPart := parts[1]

	if len(localPart) == 0 || len(localPart) > 64 {
		return fmt.Errorf("локальная часть email должна быть от 1 до 64 символов")
	}
	if len(domainPart) == 0 || len(domainPart) > 255 {
		return fmt.Errorf("доменная часть email должна быть от 1 до 255 символов")
	}
	if !localPartRegex.MatchString(localPart) {
		return fmt.Errorf("локальная часть email содержит недопустимые символы")
	}
	if !domainPartRegex.MatchString(domainPart) {
		return fmt.Errorf("доменная часть email имеет некорректный формат")
	}

	return nil
}

// NormalizeHexID приводит идентификатор запроса кода или токен к нижнему регистру без пробелов.
func NormalizeHexID(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

// IsHexID проверяет уже нормализованный идентификатор запроса кода или токен подтверждения.
func IsHexID(v string) bool {
	if len(v) < MinHexIDLength || len(v) > MaxHexIDLength {
		return false
	}
	return hexIDRegex.MatchString(v)
}

// IsOTPCode проверяет, что код состоит ровно из 6 ASCII цифр.
func IsOTPCode(v string) bool {
	return otpCodeRegex.MatchString(v)
}

// ValidateNonEmpty проверяет, что строка не пустая.
func ValidateNonEmpty(fieldName, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s не может быть пустым", fieldName)
	}
	return nil
}

// ValidateCustomerName проверяет имя покупателя.
func ValidateCustomerName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("имя покупателя обязательно")
	}
	return ValidateLength("имя покупателя", name, MinCustomerNameLength, MaxCustomerNameLength)
}

// ValidatePhone проверяет номер телефона.
func ValidatePhone(phone string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return fmt.Errorf("телефон обязателен")
	}
	if !phoneRegex.MatchString(phone) {
		return fmt.Errorf("некорректный номер телефона")
	}
	return nil
}

// ValidatePincode проверяет почтовый индекс (6 цифр).
func ValidatePincode(pincode string) error {
	pincode = strings.TrimSpace(pincode)
	if pincode == "" {
		return fmt.Errorf("индекс обязателен")
	}
	if !pincodeRegex.MatchString(pincode) {
		return fmt.Errorf("индекс должен состоять из 6 цифр")
	}
	return nil
}

// ValidateAddress проверяет адрес доставки.
func ValidateAddress(address string) error {
	address = strings.TrimSpace(address)
	if address == "" {
		return fmt.Errorf("адрес обязателен")
	}
	return ValidateLength("адрес", address, MinAddressLength, MaxAddressLength)
}

// ValidateOptional проверяет необязательное поле только по максимальной длине.
func ValidateOptional(fieldName, value string, max int) error {
	return ValidateLength(fieldName, strings.TrimSpace(value), 0, max)
}

// ValidateExternalLink проверяет внешнюю ссылку.
func ValidateExternalLink(link string) error {
	link = strings.TrimSpace(link)
	if link == "" {
		return nil
	}

	if err := ValidateLength("внешняя ссылка", link, 0, MaxExternalLinkLength); err != nil {
		return err
	}

	// Разрешаем относительные ссылки сайта.
	if strings.HasPrefix(link, "/") {
		return nil
	}

	parsedURL, err := url.Parse(link)
	if err != nil {
		return fmt.Errorf("некорректный формат URL")
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("ссылка должна начинаться с http:// или https://")
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("ссылка должна содержать доменное имя")
	}
	return nil
}

// ValidateMessageContent проверяет содержимое сообщения.
func ValidateMessageContent(content string) error {
	if content == "" {
		return fmt.Errorf("сообщение не может быть пустым")
	}

	content = strings.TrimSpace(content)

	if err := ValidateLength("сообщение", content, MinMessageLength, MaxMessageLength); err != nil {
		return err
	}

	return nil
}

// ValidateRating проверяет оценку (0 означает «без оценки»).
func ValidateRating(rating int) error {
	if rating < 0 || rating > 5 {
		return fmt.Errorf("оценка должна быть от 1 до 5")
	}
	return nil
}
