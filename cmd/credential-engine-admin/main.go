// Command credential-engine-admin is a thin operator CLI for the admin
// routes: it prompts for the admin token without echoing it (the way
// an operator entering a database password expects) and calls
// POST /v1/admin/reset.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"

	"golang.org/x/term"
)

func main() {
	baseURL := flag.String("url", "http://localhost:4000", "base URL of the credential-engine service")
	flag.Parse()

	fmt.Fprint(os.Stderr, "Admin token: ")
	tokenBytes, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "reading admin token: %s\n", err)
		os.Exit(1)
	}
	token := string(tokenBytes)

	req, err := http.NewRequest(http.MethodPost, *baseURL+"/v1/admin/reset", bytes.NewReader(nil))
	if err != nil {
		fmt.Fprintf(os.Stderr, "building request: %s\n", err)
		os.Exit(1)
	}
	req.Header.Set("X-Admin-Token", token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "calling admin reset: %s\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	fmt.Printf("%d %s\n", resp.StatusCode, body)
	if resp.StatusCode != http.StatusOK {
		os.Exit(1)
	}
}
