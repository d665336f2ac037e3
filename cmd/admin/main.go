// Command admin prints the ADMIN_PASSWORD_HASH for a password.
//
//	go run ./cmd/admin <password>
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/achlys/whimsical-backend/pkg/util"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: go run ./cmd/admin <password>")
	}

	hash, err := util.HashPassword(os.Args[1])
	if err != nil {
		log.Fatal("Failed to hash password:", err)
	}

	fmt.Println("Set this in your environment:")
	fmt.Printf("ADMIN_PASSWORD_HASH='%s'\n", hash)
}
