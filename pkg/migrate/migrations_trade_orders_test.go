package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestTradeOrdersMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_trade_orders.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no trade orders migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS trade_orders",
		"FOREIGN KEY (listing_id) REFERENCES listings(id) ON DELETE RESTRICT",
		"FOREIGN KEY (buyer_id) REFERENCES users(id) ON DELETE RESTRICT",
		"CHECK (total_cents > 0)",
		"CHECK (quantity > 0)",
		"CHECK (unit_price_cents > 0)",
		"CHECK (platform_fee_cents >= 0)",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_trade_orders_code",
		"DROP TABLE IF EXISTS trade_orders",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestTradeStatusEnumCoversLifecycle(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_trade_orders.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no trade orders migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	for _, status := range []string{
		"'requested'",
		"'accepted'",
		"'paid_escrow'",
		"'delivered'",
		"'completed'",
		"'cancelled'",
		"'declined'",
		"'dispute_open'",
		"'refunded'",
	} {
		if !strings.Contains(content, status) {
			t.Errorf("trade_status enum missing %s", status)
		}
	}
}
