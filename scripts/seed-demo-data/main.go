// seed-demo-data loads a YAML fixture of restaurants, menus, orders and
// guest sessions into the database so the recommendation engine has
// something to mine locally.
//
// Usage: go run ./scripts/seed-demo-data [-file fixtures.yaml]
//
// Database connection: Uses standard PG* environment variables
//
// Flags:
//
//	-file   Path to the YAML fixture (default: scripts/seed-demo-data/fixtures.yaml)
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"gopkg.in/yaml.v3"

	"github.com/dineflow/dineflow-engine/pkg/logging"
)

type fixture struct {
	Restaurants []restaurantFixture `yaml:"restaurants"`
}

type restaurantFixture struct {
	Name     string           `yaml:"name"`
	Menu     []menuFixture    `yaml:"menu"`
	Orders   []orderFixture   `yaml:"orders"`
	Sessions []sessionFixture `yaml:"sessions"`
}

type menuFixture struct {
	Name       string `yaml:"name"`
	Category   string `yaml:"category"`
	PriceCents int64  `yaml:"price_cents"`
	Available  *bool  `yaml:"available"`
}

type orderFixture struct {
	Status string   `yaml:"status"`
	Items  []string `yaml:"items"`
}

type sessionFixture struct {
	Token string `yaml:"token"`
	Table string `yaml:"table"`
}

func main() {
	file := flag.String("file", "scripts/seed-demo-data/fixtures.yaml", "Path to the YAML fixture")
	flag.Parse()

	raw, err := os.ReadFile(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read fixture: %v\n", err)
		os.Exit(1)
	}

	var fx fixture
	if err := yaml.Unmarshal(raw, &fx); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse fixture: %v\n", err)
		os.Exit(1)
	}
	if len(fx.Restaurants) == 0 {
		fmt.Fprintln(os.Stderr, "Fixture contains no restaurants")
		os.Exit(1)
	}

	ctx := context.Background()

	conn, err := pgx.Connect(ctx, buildConnString())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to database: %s\n", logging.SanitizeError(err))
		os.Exit(1)
	}
	defer conn.Close(ctx)

	for _, rest := range fx.Restaurants {
		if err := seedRestaurant(ctx, conn, rest); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to seed %q: %v\n", rest.Name, err)
			os.Exit(1)
		}
	}

	fmt.Printf("\nSeeded %d restaurant(s)\n", len(fx.Restaurants))
	fmt.Println("Run POST /api/admin/recommendations/rebuild to mine the seeded orders.")
}

// seedRestaurant inserts one restaurant with its menu, orders and guest
// sessions in a single transaction.
func seedRestaurant(ctx context.Context, conn *pgx.Conn, rest restaurantFixture) error {
	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin failed: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	restaurantID := uuid.New()
	if _, err := tx.Exec(ctx,
		`INSERT INTO restaurants (id, name) VALUES ($1, $2)`,
		restaurantID, rest.Name); err != nil {
		return fmt.Errorf("insert restaurant failed: %w", err)
	}

	categoryIDs := make(map[string]uuid.UUID)
	itemIDs := make(map[string]uuid.UUID)

	for _, item := range rest.Menu {
		var categoryID *uuid.UUID
		if item.Category != "" {
			id, ok := categoryIDs[item.Category]
			if !ok {
				id = uuid.New()
				if _, err := tx.Exec(ctx,
					`INSERT INTO menu_categories (id, restaurant_id, name) VALUES ($1, $2, $3)`,
					id, restaurantID, item.Category); err != nil {
					return fmt.Errorf("insert category %q failed: %w", item.Category, err)
				}
				categoryIDs[item.Category] = id
			}
			categoryID = &id
		}

		available := true
		if item.Available != nil {
			available = *item.Available
		}

		itemID := uuid.New()
		if _, err := tx.Exec(ctx, `
			INSERT INTO menu_items (id, restaurant_id, category_id, name, price_cents, is_available)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			itemID, restaurantID, categoryID, item.Name, item.PriceCents, available); err != nil {
			return fmt.Errorf("insert menu item %q failed: %w", item.Name, err)
		}
		itemIDs[item.Name] = itemID
	}

	for i, order := range rest.Orders {
		status := order.Status
		if status == "" {
			status = "COMPLETED"
		}
		orderID := uuid.New()
		if _, err := tx.Exec(ctx,
			`INSERT INTO orders (id, restaurant_id, status) VALUES ($1, $2, $3)`,
			orderID, restaurantID, status); err != nil {
			return fmt.Errorf("insert order %d failed: %w", i, err)
		}
		for _, itemName := range order.Items {
			itemID, ok := itemIDs[itemName]
			if !ok {
				return fmt.Errorf("order %d references unknown menu item %q", i, itemName)
			}
			if _, err := tx.Exec(ctx,
				`INSERT INTO order_items (order_id, menu_item_id, quantity) VALUES ($1, $2, 1)`,
				orderID, itemID); err != nil {
				return fmt.Errorf("insert order line %q failed: %w", itemName, err)
			}
		}
	}

	for _, session := range rest.Sessions {
		if _, err := tx.Exec(ctx, `
			INSERT INTO guest_sessions (restaurant_id, session_token, table_label)
			VALUES ($1, $2, $3)
			ON CONFLICT (session_token) DO NOTHING`,
			restaurantID, session.Token, session.Table); err != nil {
			return fmt.Errorf("insert session %q failed: %w", session.Token, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit failed: %w", err)
	}

	menuNames := make([]string, 0, len(rest.Menu))
	for _, item := range rest.Menu {
		menuNames = append(menuNames, item.Name)
	}
	fmt.Printf("  %s: %d items (%s), %d orders, %d sessions\n",
		rest.Name, len(rest.Menu),
		logging.TruncateString(strings.Join(menuNames, ", "), 60),
		len(rest.Orders), len(rest.Sessions))

	return nil
}

func buildConnString() string {
	host := getEnvOrDefault("PGHOST", "localhost")
	port := getEnvOrDefault("PGPORT", "5432")
	user := getEnvOrDefault("PGUSER", "dineflow")
	password := os.Getenv("PGPASSWORD")
	dbname := getEnvOrDefault("PGDATABASE", "dineflow_engine")

	connStr := fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=disable",
		host, port, user, dbname)
	if password != "" {
		connStr += fmt.Sprintf(" password=%s", password)
	}
	return connStr
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
