package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	journal "divergence_bot/internal/modules/journal/service"
	"divergence_bot/pkg/db"

	"github.com/spf13/viper"
)

// journal: печатает последние изменения живых параметров из config_changes.
//
//	go run ./cmd/journal [limit]
func main() {
	v := viper.New()
	v.SetConfigName("values_local")
	v.SetConfigType("yaml")
	v.AddConfigPath(getenvDefault("CONFIG_DIR", "configs"))
	v.AddConfigPath(".")
	v.SetDefault("limit", 20)
	_ = v.BindEnv("db_dsn", "DATABASE_DSN")
	_ = v.BindEnv("limit", "JOURNAL_LIMIT")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			fail(fmt.Errorf("read config: %w", err))
		}
	}
	if len(os.Args) > 1 {
		n, err := strconv.Atoi(os.Args[1])
		if err != nil || n <= 0 {
			fail(fmt.Errorf("limit must be a positive integer, got %q", os.Args[1]))
		}
		v.Set("limit", n)
	}

	dsn := v.GetString("db_dsn")
	if dsn == "" {
		fail(errors.New("db_dsn is not set (config file or DATABASE_DSN)"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	pool, err := db.NewPool(ctx, db.PoolConfig{DSN: dsn, MaxConns: 1})
	if err != nil {
		fail(err)
	}
	m := db.NewPgTxManager(pool)
	defer m.Close()

	changes, err := journal.NewPG(m).Recent(ctx, v.GetInt("limit"))
	if err != nil {
		fail(err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "CHANGED_AT\tFIELD\tOLD\tNEW\tSOURCE")
	for _, c := range changes {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%g\t%g\t%s\n",
			c.ChangedAt.UTC().Format(time.RFC3339), c.Field, c.OldValue, c.NewValue, c.Source)
	}
	_ = w.Flush()
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func fail(err error) {
	_, _ = fmt.Fprintln(os.Stderr, "journal:", err)
	os.Exit(1)
}
