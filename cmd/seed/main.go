// Command seed installs the default routing rules: a catch-all fallback
// rule and, optionally, an example rule matching strategy push messages.
// Running it again updates the existing rules in place.
package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"signal-router/internal/config"
	"signal-router/internal/crypto"
	"signal-router/internal/rules"
	"signal-router/internal/storage"

	_ "signal-router/internal/storage/postgres"
	_ "signal-router/internal/storage/sqlite"
)

func main() {
	var (
		fallbackWebhook string
		includeETF      bool
		etfWebhook      string
	)
	flag.StringVar(&fallbackWebhook, "fallback-webhook", "", "Target URL for the catch-all fallback rule (required)")
	flag.BoolVar(&includeETF, "include-etf-example", false, "Also install the ETF momentum example rule")
	flag.StringVar(&etfWebhook, "etf-webhook", "", "Target URL for the ETF example rule (defaults to the fallback URL)")
	flag.Parse()

	if fallbackWebhook == "" {
		fmt.Fprintln(os.Stderr, "usage: seed --fallback-webhook <url> [--include-etf-example] [--etf-webhook <url>]")
		os.Exit(2)
	}
	if etfWebhook == "" {
		etfWebhook = fallbackWebhook
	}

	_ = godotenv.Load()

	cfg := config.Load()
	if cfg.EncryptionKey == "" {
		log.Fatal("ENCRYPTION_KEY must be set")
	}

	codec, err := crypto.NewTargetCodec(cfg.EncryptionKey)
	if err != nil {
		log.Fatalf("Invalid encryption key: %v", err)
	}

	store, err := storage.New(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer store.Close()

	fallback := rules.ConditionSet{
		Op:    rules.OpAnd,
		Items: []rules.Predicate{{Kind: rules.KindAlways}},
	}
	if err := upsertRule(store, codec, "fallback", 1000, fallback, fallbackWebhook); err != nil {
		log.Fatalf("Failed to install fallback rule: %v", err)
	}
	fmt.Println("Installed rule: fallback (priority 1000)")

	if includeETF {
		etf := rules.ConditionSet{
			Op:    rules.OpAnd,
			Items: []rules.Predicate{{Kind: rules.KindContainsText, Text: "ETF动量模型推送"}},
		}
		if err := upsertRule(store, codec, "etf_momentum", 900, etf, etfWebhook); err != nil {
			log.Fatalf("Failed to install ETF example rule: %v", err)
		}
		fmt.Println("Installed rule: etf_momentum (priority 900)")
	}
}

func upsertRule(store storage.Storage, codec *crypto.TargetCodec, name string, priority int, cs rules.ConditionSet, target string) error {
	conditions, err := cs.Encode()
	if err != nil {
		return err
	}

	encrypted, err := codec.Encrypt(target)
	if err != nil {
		return err
	}
	action, err := rules.Action{Type: rules.ActionForward, Targets: []string{encrypted}}.Encode()
	if err != nil {
		return err
	}

	existing, err := store.GetRuleByName(name)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		return store.CreateRule(&storage.Rule{
			Name:       name,
			Enabled:    true,
			Priority:   priority,
			Conditions: conditions,
			Action:     action,
		})
	}

	existing.Priority = priority
	existing.Conditions = conditions
	existing.Action = action
	return store.UpdateRule(existing)
}
