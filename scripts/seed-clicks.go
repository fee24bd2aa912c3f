// Seed-clicks fills a development database with tracked URLs and synthetic
// click events spread over a trailing window, plus one bot-like burst so the
// suspicious-click alert path has something to find.
//
//	go run scripts/seed-clicks.go -urls 20 -clicks 200 -window 24h
package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/shortify/shortify/internal/model"
	"github.com/shortify/shortify/internal/repository"
)

var (
	seedTargets = []string{
		"https://www.youtube.com/watch?v=",
		"https://blog.naver.com/dev/",
		"https://news.ycombinator.com/item?id=",
		"https://www.coupang.com/vp/products/",
		"https://github.com/shortify/shortify/issues/",
		"https://www.notion.so/page-",
	}
	seedReferers = []string{
		"",
		"https://www.google.com/search?q=shortify",
		"https://m.search.naver.com/search.naver",
		"https://t.co/abc",
		"https://www.facebook.com/",
		"https://l.instagram.com/",
	}
	seedAgents = []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/120.0 Safari/537.36",
		"Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 Mobile/15E148",
		"Mozilla/5.0 (Linux; Android 14; SM-S918N) AppleWebKit/537.36 Chrome/120.0 Mobile Safari/537.36",
		"Mozilla/5.0 (iPad; CPU OS 17_0 like Mac OS X) AppleWebKit/605.1.15",
		"Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)",
	}
)

func main() {
	var (
		databaseURL = flag.String("database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
		urls        = flag.Int("urls", 10, "Number of tracked URLs to create")
		clicks      = flag.Int("clicks", 100, "Clicks per URL")
		window      = flag.Duration("window", 24*time.Hour, "Spread clicks over this trailing window")
		burst       = flag.Int("burst", 15, "Clicks in the bot-like burst on the first URL (0 disables)")
	)
	flag.Parse()

	if *databaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	ctx := context.Background()
	repo, err := repository.New(ctx, *databaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect: %v\n", err)
		os.Exit(1)
	}
	defer repo.Close()

	links := repository.NewLinkRepository(repo)
	events := repository.NewClickEventRepository(repo)
	now := time.Now().UTC()

	for i := 0; i < *urls; i++ {
		shortID := strings.ToLower(ulid.Make().String()[18:])
		target := seedTargets[i%len(seedTargets)] + shortID

		batch := make([]model.ClickEvent, 0, *clicks+*burst)
		for j := 0; j < *clicks; j++ {
			ts := now.Add(-time.Duration(rand.Int63n(int64(*window))))
			batch = append(batch, model.ClickEvent{
				ShortID:   shortID,
				Timestamp: model.FormatTimestamp(ts),
				IP:        fingerprint(fmt.Sprintf("10.0.%d.%d", rand.Intn(8), rand.Intn(255))),
				UserAgent: seedAgents[rand.Intn(len(seedAgents))],
				Referer:   seedReferers[rand.Intn(len(seedReferers))],
			})
		}
		if i == 0 {
			batch = append(batch, burstClicks(shortID, now.Add(-10*time.Minute), *burst)...)
		}

		if err := links.Upsert(ctx, model.TrackedURL{
			ShortID:     shortID,
			OriginalURL: target,
			Title:       fmt.Sprintf("Seed link %d", i+1),
			CreatedAt:   now.Add(-*window),
		}); err != nil {
			fmt.Fprintf(os.Stderr, "upsert %s: %v\n", shortID, err)
			os.Exit(1)
		}
		if err := events.BulkInsert(ctx, batch); err != nil {
			fmt.Fprintf(os.Stderr, "insert clicks for %s: %v\n", shortID, err)
			os.Exit(1)
		}
		if err := links.IncrementClickCount(ctx, shortID, int64(len(batch))); err != nil {
			fmt.Fprintf(os.Stderr, "count clicks for %s: %v\n", shortID, err)
			os.Exit(1)
		}
		fmt.Printf("%s\t%d clicks\t%s\n", shortID, len(batch), target)
	}
}

// burstClicks repeats one signature n times, two seconds apart.
func burstClicks(shortID string, start time.Time, n int) []model.ClickEvent {
	out := make([]model.ClickEvent, 0, n)
	ip := fingerprint("203.0.113.7")
	for k := 0; k < n; k++ {
		out = append(out, model.ClickEvent{
			ShortID:   shortID,
			Timestamp: model.FormatTimestamp(start.Add(time.Duration(k) * 2 * time.Second)),
			IP:        ip,
			UserAgent: "python-requests/2.31",
			Referer:   "",
		})
	}
	return out
}

func fingerprint(ip string) string {
	sum := sha256.Sum256([]byte("seed:" + ip))
	return hex.EncodeToString(sum[:16])
}
