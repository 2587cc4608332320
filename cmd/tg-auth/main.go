package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/celestix/gotgproto"
	"github.com/celestix/gotgproto/sessionMaker"
	"github.com/glebarez/sqlite"
	"github.com/joho/godotenv"
)

func main() {
	fmt.Println("=== telegram auth tool ===")
	fmt.Println("this tool creates a named session file for the counter")
	fmt.Println()

	_ = godotenv.Load()
	reader := bufio.NewReader(os.Stdin)

	apiID, apiHash := getAPICredentials(reader)

	fmt.Print("session name (e.g. main): ")
	name, _ := reader.ReadString('\n')
	name = strings.TrimSpace(name)
	if name == "" {
		fmt.Println("error: session name is required")
		os.Exit(1)
	}

	fmt.Print("phone number (with country code, e.g. +15551234567): ")
	phone, _ := reader.ReadString('\n')
	phone = strings.TrimSpace(phone)
	if phone == "" {
		fmt.Println("error: phone number is required")
		os.Exit(1)
	}

	sessionFile := filepath.Join("sessions", name+".db")
	if err := os.MkdirAll(filepath.Dir(sessionFile), 0755); err != nil {
		fmt.Printf("error: %v\n", err)
		os.Exit(1)
	}

	// gotgproto runs the code/password conversation on stdin
	client, err := gotgproto.NewClient(
		apiID,
		apiHash,
		gotgproto.ClientTypePhone(phone),
		&gotgproto.ClientOpts{
			Session:          sessionMaker.SqlSession(sqlite.Open(sessionFile)),
			DisableCopyright: true,
		},
	)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		os.Exit(1)
	}
	defer client.Stop()

	fmt.Println()
	fmt.Printf("session %q saved to %s\n", name, sessionFile)
	fmt.Println("add it to sessions.yaml:")
	fmt.Println()
	fmt.Println("sessions:")
	fmt.Printf("  - name: %s\n", name)
	fmt.Printf("    session_file: %s\n", sessionFile)
}

func getAPICredentials(reader *bufio.Reader) (int, string) {
	apiIDStr := os.Getenv("TG_API_ID")
	apiHash := os.Getenv("TG_API_HASH")

	if apiIDStr == "" {
		fmt.Print("api id (from my.telegram.org): ")
		apiIDStr, _ = reader.ReadString('\n')
		apiIDStr = strings.TrimSpace(apiIDStr)
	}
	if apiHash == "" {
		fmt.Print("api hash: ")
		apiHash, _ = reader.ReadString('\n')
		apiHash = strings.TrimSpace(apiHash)
	}

	apiID, err := strconv.Atoi(apiIDStr)
	if err != nil || apiID == 0 || apiHash == "" {
		fmt.Println("error: valid TG_API_ID and TG_API_HASH are required")
		os.Exit(1)
	}

	return apiID, apiHash
}
