package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"vidchat/backend/internal/api/handler"
	"vidchat/backend/internal/config"
	"vidchat/backend/internal/iceconfig"
	"vidchat/backend/internal/storage"
)

const usage = `Usage: admin <command> [flags]

Commands:
  token                  mint an admin bearer token
  ice list               show the ICE servers a server hands out
  ice add <url>...       append an ICE server
  ice update <index> <url>...
                         replace the ICE server at index
  ice remove <index>     delete the ICE server at index
  calls                  print recent call sessions from PostgreSQL
  events                 follow room lifecycle events on Redis
`

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Print(usage)
		os.Exit(1)
	}

	var err error
	switch command, args := os.Args[1], os.Args[2:]; command {
	case "token":
		err = runToken(args)
	case "ice":
		err = runICE(args)
	case "calls":
		err = runCalls(args)
	case "events":
		err = runEvents(args)
	default:
		fmt.Print(usage)
		os.Exit(1)
	}
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func runToken(args []string) error {
	fs := pflag.NewFlagSet("token", pflag.ContinueOnError)
	secret := fs.String("secret", os.Getenv("ADMIN_JWT_SECRET"), "signing secret (ADMIN_JWT_SECRET)")
	subject := fs.String("subject", "admin", "token subject")
	ttl := fs.Duration("ttl", config.AdminTokenTTL, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *secret == "" {
		return errors.New("no signing secret: set ADMIN_JWT_SECRET or --secret")
	}

	token, err := handler.MintAdminToken([]byte(*secret), *subject, *ttl)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

// iceClient talks to the ICE server admin API of a running server.
type iceClient struct {
	base  string
	token string
	http  *http.Client
}

func runICE(args []string) error {
	if len(args) == 0 {
		return errors.New("usage: admin ice <list|add|update|remove>")
	}
	sub, args := args[0], args[1:]

	fs := pflag.NewFlagSet("ice "+sub, pflag.ContinueOnError)
	server := fs.String("server", "http://localhost:5000", "server base URL")
	token := fs.String("token", os.Getenv("ADMIN_TOKEN"), "admin bearer token (ADMIN_TOKEN)")
	username := fs.String("username", "", "TURN username")
	credential := fs.String("credential", "", "TURN credential")
	if err := fs.Parse(args); err != nil {
		return err
	}
	c := &iceClient{
		base:  strings.TrimSuffix(*server, "/") + "/api/ice-servers",
		token: *token,
		http:  &http.Client{Timeout: 10 * time.Second},
	}
	rest := fs.Args()
	entry := func(urls []string) iceconfig.Server {
		return iceconfig.Server{URLs: urls, Username: *username, Credential: *credential}
	}

	var (
		servers []iceconfig.Server
		err     error
	)
	switch sub {
	case "list":
		servers, err = c.do(http.MethodGet, "", nil)
	case "add":
		if len(rest) == 0 {
			return errors.New("usage: admin ice add <url>... [--username u --credential p]")
		}
		servers, err = c.do(http.MethodPost, "", entry(rest))
	case "update":
		if len(rest) < 2 {
			return errors.New("usage: admin ice update <index> <url>...")
		}
		if _, err := strconv.Atoi(rest[0]); err != nil {
			return fmt.Errorf("invalid index %q", rest[0])
		}
		servers, err = c.do(http.MethodPut, "/"+rest[0], entry(rest[1:]))
	case "remove":
		if len(rest) != 1 {
			return errors.New("usage: admin ice remove <index>")
		}
		if _, err := strconv.Atoi(rest[0]); err != nil {
			return fmt.Errorf("invalid index %q", rest[0])
		}
		servers, err = c.do(http.MethodDelete, "/"+rest[0], nil)
	default:
		return fmt.Errorf("unknown ice command %q", sub)
	}
	if err != nil {
		return err
	}

	for i, s := range servers {
		line := fmt.Sprintf("%d\t%s", i, strings.Join(s.URLs, ","))
		if s.Username != "" {
			line += "\tuser=" + s.Username
		}
		fmt.Println(line)
	}
	return nil
}

func (c *iceClient) do(method, path string, body any) ([]iceconfig.Server, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, c.base+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return nil, fmt.Errorf("%s: %s", resp.Status, apiErr.Error)
	}
	var servers []iceconfig.Server
	if err := json.NewDecoder(resp.Body).Decode(&servers); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return servers, nil
}

func runCalls(args []string) error {
	fs := pflag.NewFlagSet("calls", pflag.ContinueOnError)
	dsn := fs.String("dsn", os.Getenv("DATABASE_DSN"), "PostgreSQL DSN (DATABASE_DSN)")
	limit := fs.Int("limit", 20, "number of sessions to show")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *dsn == "" {
		return errors.New("no database: set DATABASE_DSN or --dsn")
	}

	db, err := gorm.Open(postgres.Open(*dsn), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("failed to connect database: %w", err)
	}
	storageSvc := storage.NewStorageService(db, nil, nil) // No redis needed for admin CLI

	ctx, cancel := context.WithTimeout(context.Background(), config.StorageTimeout)
	defer cancel()
	calls, err := storageSvc.RecentCallSessions(ctx, *limit)
	if err != nil {
		return err
	}

	for _, call := range calls {
		ended := "live"
		if call.EndedAt != nil {
			ended = call.EndedAt.Sub(call.StartedAt).Round(time.Second).String()
		}
		fmt.Printf("%s\t%s\t%s\t%s\t%s\n",
			call.StartedAt.Format(time.RFC3339), call.RoomID, call.RoomType,
			strings.Join(call.Participants, ","), ended)
	}
	return nil
}

func runEvents(args []string) error {
	fs := pflag.NewFlagSet("events", pflag.ContinueOnError)
	addr := fs.String("redis-addr", os.Getenv("REDIS_ADDR"), "Redis address (REDIS_ADDR)")
	password := fs.String("redis-password", os.Getenv("REDIS_PASSWORD"), "Redis password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *addr == "" {
		return errors.New("no redis: set REDIS_ADDR or --redis-addr")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rdb := redis.NewClient(&redis.Options{Addr: *addr, Password: *password})
	defer rdb.Close()
	storageSvc := storage.NewStorageService(nil, rdb, nil)

	sub := storageSvc.SubscribeRoomEvents(ctx)
	defer sub.Close()
	events := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-events:
			if !ok {
				return nil
			}
			var ev storage.RoomEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				fmt.Fprintf(os.Stderr, "skipping malformed event: %v\n", err)
				continue
			}
			fmt.Printf("%s\t%s\t%s\t%s\t%s\n", ev.At.Format(time.RFC3339), ev.Kind,
				ev.RoomID, ev.RoomType, strings.Join(ev.Participants, ","))
		}
	}
}
