package validation

import (
	"fmt"
	"unicode"
	"unicode/utf8"
)

// MinAdminPasswordLength минимальная длина пароля администратора.
const MinAdminPasswordLength = 12

// ValidatePassword проверяет пароль администратора перед хешированием.
// Нужны строчные и заглавные буквы и хотя бы одна цифра.
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinAdminPasswordLength {
		return fmt.Errorf("пароль должен быть не менее %d символов", MinAdminPasswordLength)
	}

	var hasUpper, hasLower, hasNumber bool
	for _, char := range password {
		switch {
		case unicode.IsSpace(char):
			return fmt.Errorf("пароль не должен содержать пробелов")
		case unicode.IsUpper(char):
			hasUpper = true
		case unicode.IsLower(char):
			hasLower = true
		case unicode.IsNumber(char):
			hasNumber = true
		}
	}

	switch {
	case !hasUpper:
		return fmt.Errorf("пароль должен содержать хотя бы одну заглавную букву")
	case !hasLower:
		return fmt.Errorf("пароль должен содержать хотя бы одну строчную букву")
	case !hasNumber:
		return fmt.Errorf("пароль должен содержать хотя бы одну цифру")
	}
	return nil
}
