// cmd/tools/webhook-signer/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	httpclient "agent-demo-webhooks/internal/common/http"
	"agent-demo-webhooks/internal/webhook"
)

func main() {
	payloadPath := flag.String("payload", "", "Path to the JSON payload to sign")
	secret := flag.String("secret", os.Getenv("TAVUS_WEBHOOK_SECRET"), "Webhook secret (defaults to TAVUS_WEBHOOK_SECRET)")
	target := flag.String("url", "", "POST the signed payload to this URL instead of printing the header")
	header := flag.String("header", "x-tavus-signature", "Signature header name")
	flag.Parse()

	if *payloadPath == "" || *secret == "" {
		fmt.Println("Error: -payload and -secret (or TAVUS_WEBHOOK_SECRET) are required.")
		flag.Usage()
		os.Exit(1)
	}

	body, err := os.ReadFile(*payloadPath)
	if err != nil {
		fmt.Printf("Error reading payload: %v\n", err)
		os.Exit(1)
	}

	signature := webhook.SignPayload(body, *secret)
	if *target == "" {
		fmt.Printf("%s: %s\n", *header, signature)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	resp, err := httpclient.NewClient(10*time.Second).PostJSON(ctx, *target, map[string]string{*header: signature}, body)
	if err != nil {
		fmt.Printf("Error sending webhook: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("HTTP %d\n%s\n", resp.StatusCode, resp.Body)
	if resp.StatusCode >= 300 {
		os.Exit(1)
	}
}
