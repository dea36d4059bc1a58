// Команда adminhash печатает значение для ADMIN_PASSWORD_HASH.
//
//	echo 'Chemsus2026Admin' | go run ./cmd/adminhash
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/ignatzorin/chemsus-backend/internal/service"
)

func main() {
	fmt.Fprint(os.Stderr, "пароль администратора: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintf(os.Stderr, "adminhash: не удалось прочитать пароль: %v\n", err)
		os.Exit(1)
	}

	hash, err := service.HashAdminPassword(strings.TrimRight(line, "\r\n"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "adminhash: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(hash)
}
