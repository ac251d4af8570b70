package nextdns_test

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/Travis-Britz/nextdns"
	"github.com/sirupsen/logrus"
)

func ExampleNew() {
	c, err := nextdns.New(
		nextdns.UsingAPIKey(os.Getenv("NEXTDNS_API_KEY")),
		nextdns.WithRateLimit(5, 1),
		nextdns.WithLogger(logrus.StandardLogger()),
	)
	if err != nil {
		log.Fatalf("error creating nextdns client: %s", err)
	}
	profiles, err := c.Profiles(context.Background())
	if err != nil {
		log.Fatalf("unable to list profiles: %s", err)
	}
	for _, p := range profiles {
		fmt.Printf("%s: %s\n", p.ID, p.Name)
	}
}

func ExampleSyncer_Import() {
	c, err := nextdns.New(nextdns.UsingAPIKey(os.Getenv("NEXTDNS_API_KEY")))
	if err != nil {
		log.Fatalf("error creating nextdns client: %s", err)
	}
	s, err := nextdns.NewSyncer(c,
		nextdns.SyncFormat(nextdns.FormatHosts),
		nextdns.SyncConcurrency(4),
	)
	if err != nil {
		log.Fatalf("error creating syncer: %s", err)
	}

	summary, err := s.Import(context.Background(), "abc123",
		nextdns.OpenSource("https://example.com/hosts.txt"), true)
	var psf *nextdns.PartialSyncFailure
	if errors.As(err, &psf) {
		for _, f := range psf.Summary.Failures {
			log.Printf("failed: %s", f)
		}
	} else if err != nil {
		log.Fatalf("import failed: %s", err)
	}
	fmt.Println(summary)
}

func ExampleDiff() {
	current := []nextdns.Entry{
		{Domain: "good.com", Active: true},
		{Domain: "old.com", Active: true},
	}
	plan := nextdns.Diff(current, []string{"good.com", "new.com"}, true)
	fmt.Println("remove:", plan.Remove)
	fmt.Println("add:", plan.Add)
	fmt.Println("unchanged:", plan.Unchanged)
	// Output:
	// remove: [old.com]
	// add: [new.com]
	// unchanged: [good.com]
}
