// cmd/match-harness/main.go
//
// match-harness prints the digest selection for one contact or for every
// eligible contact against the current pending pool. It never sends a
// digest and never flags a posting.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"job-notifier/internal/batch"
	"job-notifier/internal/common/config"
	"job-notifier/internal/common/database"
	apperrors "job-notifier/internal/common/errors"
	"job-notifier/internal/common/logger"
	"job-notifier/internal/matching"
	"job-notifier/internal/store"
)

func main() {
	contactID := flag.String("contact-id", "", "preview the digest for a single contact")
	allContacts := flag.Bool("all-contacts", false, "preview the digest for every eligible contact")
	asJSON := flag.Bool("json", false, "print results as JSON")
	configPath := flag.String("config", "", "path to a config file (defaults to ./configs/config.yaml)")
	timeout := flag.Duration("timeout", time.Minute, "overall deadline")
	flag.Parse()

	if (*contactID == "") == !*allContacts {
		fmt.Fprintln(os.Stderr, "exactly one of --contact-id or --all-contacts is required")
		flag.Usage()
		os.Exit(2)
	}

	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.LoadFromFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, "console", "stderr")
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	pg, err := database.NewPostgres(ctx, cfg.Database.Postgres)
	if err != nil {
		zapLog.Fatal("postgres connection failed", zap.Error(err))
	}
	defer pg.Close()

	runner := batch.NewRunner(
		batch.Config{},
		store.NewContactRepository(pg.DB),
		store.NewJobRepository(pg.DB),
		matching.NewSelector(matching.Options{
			DigestLimit:          cfg.Matching.DigestLimit,
			MinBranchTokenLength: cfg.Matching.MinBranchTokenLength,
		}),
		nil, nil, nil, log,
	)

	var previews []batch.Preview
	if *allContacts {
		previews, err = runner.PreviewAll(ctx)
	} else {
		var p *batch.Preview
		p, err = runner.PreviewContact(ctx, *contactID)
		if p != nil {
			previews = []batch.Preview{*p}
		}
	}
	if err != nil {
		if apperrors.HasCode(err, apperrors.ErrCodeContactNotFound) {
			fmt.Fprintf(os.Stderr, "contact %q not found\n", *contactID)
			os.Exit(1)
		}
		zapLog.Fatal("selection failed", zap.Error(err))
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(previews); err != nil {
			zapLog.Fatal("failed to encode output", zap.Error(err))
		}
		return
	}
	printPreviews(os.Stdout, previews)
}

func printPreviews(w io.Writer, previews []batch.Preview) {
	counts := map[matching.StrategyTag]int{}
	for _, p := range previews {
		counts[p.Result.Strategy]++
		fmt.Fprintf(w, "contact %s (%s) branch=%q experience=%q\n",
			p.Contact.ID, p.Contact.FullName, p.Contact.BranchRaw, p.Contact.ExperienceRaw)
		fmt.Fprintf(w, "  strategy: %s (%d matched)\n", p.Result.Strategy, p.Result.Matched)
		for i, j := range p.Result.Jobs {
			fmt.Fprintf(w, "  %d. [%s] %s at %s - %s\n", i+1, j.Key(), j.Title, j.CompanyName, j.ExperienceRaw)
		}
	}

	if len(previews) > 1 {
		fmt.Fprintf(w, "\n%d contacts\n", len(previews))
		for _, tag := range matching.AllStrategyTags {
			if n := counts[tag]; n > 0 {
				fmt.Fprintf(w, "  %-28s %d\n", tag, n)
			}
		}
	}
}
