// Shortify Slack Receiver Example
//
// A local stand-in for a Slack incoming webhook. Point SLACK_WEBHOOK_URL and
// SLACK_AI_WEBHOOK_URL at it to watch alert and alarm-summary messages
// without a Slack workspace.
//
// Usage:
//   go run main.go
//   export SLACK_WEBHOOK_URL=http://localhost:9000/alerts
//   export SLACK_AI_WEBHOOK_URL=http://localhost:9000/ai
//
// Set FAIL_FIRST=N to answer the first N posts with 500 and watch the
// notifier retry.

package main

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
)

// SlackMessage is the incoming-webhook payload Shortify sends.
type SlackMessage struct {
	Text string `json:"text"`
}

func main() {
	failFirst, _ := strconv.ParseInt(os.Getenv("FAIL_FIRST"), 10, 64)
	var received atomic.Int64

	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		n := received.Add(1)
		if n <= failFirst {
			log.Printf("#%d %s: failing on purpose (%d/%d)", n, r.URL.Path, n, failFirst)
			http.Error(w, "simulated failure", http.StatusInternalServerError)
			return
		}

		var msg SlackMessage
		if err := json.Unmarshal(body, &msg); err != nil || msg.Text == "" {
			log.Printf("#%d %s: invalid payload: %s", n, r.URL.Path, body)
			http.Error(w, "invalid_payload", http.StatusBadRequest)
			return
		}

		log.Printf("#%d %s:\n  %s", n, r.URL.Path, strings.ReplaceAll(msg.Text, "\n", "\n  "))
		_, _ = io.WriteString(w, "ok")
	})

	log.Println("Starting Slack receiver on :9000")
	log.Fatal(http.ListenAndServe(":9000", nil))
}
