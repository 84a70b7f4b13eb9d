package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/term"

	apiclient "github.com/splax/todos/pkg/api/client"
)

type cliConfig struct {
	APIBaseURL string `json:"api_base_url"`
	Token      string `json:"token"`
}

var buildVersion = "dev"

const requestTimeout = 15 * time.Second

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "version", "--version", "-v":
		printVersion()
		return
	case "help", "-h", "--help":
		printUsage()
		return
	}
	run, ok := commands[cmd]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
	if err := run(args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

var commands = map[string]func([]string) error{
	"signup": func(args []string) error { return commandCredentials("signup", args) },
	"login":  func(args []string) error { return commandCredentials("login", args) },
	"list":   commandList,
	"ls":     commandList,
	"add":    commandAdd,
	"show":   commandShow,
	"edit":   commandEdit,
	"toggle": commandToggle,
	"rm":     commandRemove,
}

func commandCredentials(name string, args []string) error {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	username := fs.String("username", "", "Username")
	password := fs.String("password", "", "Password (supply to avoid prompt)")
	apiBase := fs.String("api", "", "API base URL (default "+apiclient.DefaultBaseURL+")")
	fs.Parse(args)

	if strings.TrimSpace(*username) == "" {
		return errors.New("--username is required")
	}
	secret := *password
	if secret == "" {
		fmt.Print("Password: ")
		bytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Print("\n")
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		secret = string(bytes)
	}

	cfg, _ := loadConfig()
	if strings.TrimSpace(*apiBase) != "" {
		cfg.APIBaseURL = *apiBase
	}
	client, err := apiclient.New(cfg.APIBaseURL)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	var token string
	if name == "signup" {
		token, err = client.Signup(ctx, *username, secret)
	} else {
		token, err = client.Login(ctx, *username, secret)
	}
	if err != nil {
		return err
	}
	cfg.Token = token
	if err := saveConfig(cfg); err != nil {
		return err
	}
	fmt.Printf("%s successful\n", name)
	return nil
}

func authedClient() (*apiclient.Client, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("please login first using 'todo login'")
	}
	return apiclient.New(cfg.APIBaseURL, apiclient.WithToken(cfg.Token))
}

func parseID(args []string, usage string) (int64, []string, error) {
	if len(args) == 0 {
		return 0, nil, errors.New(usage)
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, nil, fmt.Errorf("invalid todo id %q", args[0])
	}
	return id, args[1:], nil
}

func commandList(args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	pending := fs.Bool("pending", false, "Only show incomplete todos")
	fs.Parse(args)

	client, err := authedClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	todos, err := client.ListTodos(ctx)
	if err != nil {
		return err
	}
	for _, t := range todos {
		if *pending && t.Completed {
			continue
		}
		printTodoLine(t)
	}
	return nil
}

func commandAdd(args []string) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	memo := fs.String("memo", "", "Optional memo")
	fs.Parse(args)
	title := strings.Join(fs.Args(), " ")
	if strings.TrimSpace(title) == "" {
		return errors.New("usage: todo add [--memo text] <title>")
	}

	client, err := authedClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	todo, err := client.CreateTodo(ctx, title, *memo)
	if err != nil {
		return err
	}
	fmt.Printf("todo created: %d (%s)\n", todo.ID, todo.Title)
	return nil
}

func commandShow(args []string) error {
	id, _, err := parseID(args, "usage: todo show <id>")
	if err != nil {
		return err
	}
	client, err := authedClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	todo, err := client.GetTodo(ctx, id)
	if err != nil {
		return err
	}
	printTodoLine(todo)
	if todo.Memo != "" {
		fmt.Printf("\n%s\n", todo.Memo)
	}
	return nil
}

func commandEdit(args []string) error {
	id, rest, err := parseID(args, "usage: todo edit <id> [--title text] [--memo text]")
	if err != nil {
		return err
	}
	fs := flag.NewFlagSet("edit", flag.ExitOnError)
	title := fs.String("title", "", "New title")
	memo := fs.String("memo", "", "New memo")
	fs.Parse(rest)

	var update apiclient.TodoUpdate
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "title":
			update.Title = title
		case "memo":
			update.Memo = memo
		}
	})
	if update.Title == nil && update.Memo == nil {
		return errors.New("nothing to change: pass --title and/or --memo")
	}

	client, err := authedClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	todo, err := client.UpdateTodo(ctx, id, update)
	if err != nil {
		return err
	}
	printTodoLine(todo)
	return nil
}

// commandToggle flips the completed flag, so running it twice restores the todo.
func commandToggle(args []string) error {
	id, _, err := parseID(args, "usage: todo toggle <id>")
	if err != nil {
		return err
	}
	client, err := authedClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	todo, err := client.ToggleTodo(ctx, id)
	if err != nil {
		return err
	}
	printTodoLine(todo)
	return nil
}

func commandRemove(args []string) error {
	id, _, err := parseID(args, "usage: todo rm <id>")
	if err != nil {
		return err
	}
	client, err := authedClient()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	if err := client.DeleteTodo(ctx, id); err != nil {
		return err
	}
	fmt.Println("todo deleted")
	return nil
}

func printTodoLine(t apiclient.Todo) {
	mark := " "
	if t.Completed {
		mark = "x"
	}
	fmt.Printf("%d\t[%s]\t%s\t%s\n", t.ID, mark, t.Created.Local().Format(time.DateTime), t.Title)
}

func loadConfig() (cliConfig, error) {
	path, err := configPath()
	if err != nil {
		return cliConfig{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cliConfig{APIBaseURL: apiclient.DefaultBaseURL}, nil
		}
		return cliConfig{}, err
	}
	var cfg cliConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cliConfig{}, err
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = apiclient.DefaultBaseURL
	}
	return cfg, nil
}

func saveConfig(cfg cliConfig) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func configPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "todos", "config.json"), nil
}

func printUsage() {
	fmt.Printf("todo CLI %s\n\n", buildVersion)
	fmt.Print(`Usage:
	todo signup --username alice [--password secret] [--api http://localhost:8000]
	todo login --username alice [--password secret] [--api http://localhost:8000]
	todo list [--pending]
	todo add [--memo text] <title>
	todo show <id>
	todo edit <id> [--title text] [--memo text]
	todo toggle <id>      flip between done and not done
	todo rm <id>
	todo version
`)
}

func printVersion() {
	fmt.Println(strings.TrimSpace(buildVersion))
}
