package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/peterh/liner"

	"github.com/lizhaowen72/eventbridge/internal/deadletter"
	"github.com/lizhaowen72/eventbridge/pkg/models"
)

// ANSI
const (
	Reset  = "\033[0m"
	Bold   = "\033[1m"
	Dim    = "\033[2m"
	White  = "\033[97m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Red    = "\033[31m"
	Cyan   = "\033[36m"
)

type cliConfig struct {
	APIURL         string `env:"EVENTBRIDGE_API_URL" envDefault:"http://localhost:8080"`
	DeadLetterPath string `env:"DEAD_LETTER_PATH" envDefault:"deadletter.db"`
}

type shell struct {
	api            *apiClient
	deadLetterPath string
	out            io.Writer
}

func main() {
	var cfg cliConfig
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	sh := &shell{api: newAPIClient(cfg.APIURL), deadLetterPath: cfg.DeadLetterPath, out: os.Stdout}
	sh.printBanner()

	lin := liner.NewLiner()
	defer lin.Close()
	lin.SetCtrlCAborts(true)
	lin.SetCompleter(completeCommand)

	for {
		input, err := lin.Prompt("eventbridge> ")
		if err != nil {
			if err != io.EOF && err != liner.ErrPromptAborted {
				log.Printf("unexpected error reading prompt: %v", err)
				continue
			}
			fmt.Println()
			return
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		lin.AppendHistory(input)
		if sh.exec(input) {
			return
		}
	}
}

var commandNames = []string{
	"help", "health", "create-user", "update-email", "deactivate",
	"users", "active", "get-user", "by-username", "dead-letters", "clear", "exit",
}

func completeCommand(line string) []string {
	var out []string
	for _, name := range commandNames {
		if strings.HasPrefix(name, line) {
			out = append(out, name)
		}
	}
	return out
}

// exec runs one command line and reports whether the shell should exit.
func (s *shell) exec(input string) bool {
	args := strings.Fields(input)
	switch args[0] {
	case "exit", "quit", "q":
		fmt.Fprintf(s.out, "\n  %sBye%s\n\n", Cyan, Reset)
		return true
	case "help", "?":
		s.printHelp()
	case "clear", "cls":
		fmt.Fprint(s.out, "\033[H\033[2J")
		s.printBanner()
	case "health", "h":
		if err := s.api.Health(); err != nil {
			s.fail(err)
			return false
		}
		fmt.Fprintf(s.out, "  %s[+]%s api ok\n", Green, Reset)
	case "create-user":
		if !s.wantArgs(args, 2, "create-user <username> <email>") {
			return false
		}
		resp, err := s.api.CreateUser(args[1], args[2])
		if err != nil {
			s.fail(err)
			return false
		}
		fmt.Fprintf(s.out, "  %s[+]%s %s id=%s\n", Green, Reset, resp.Message, resp.UserID)
	case "update-email":
		if !s.wantArgs(args, 2, "update-email <id> <email>") {
			return false
		}
		if err := s.api.UpdateEmail(args[1], args[2]); err != nil {
			s.fail(err)
			return false
		}
		fmt.Fprintf(s.out, "  %s[+]%s email updated\n", Green, Reset)
	case "deactivate":
		if !s.wantArgs(args, 1, "deactivate <id>") {
			return false
		}
		if err := s.api.Deactivate(args[1]); err != nil {
			s.fail(err)
			return false
		}
		fmt.Fprintf(s.out, "  %s[+]%s user deactivated\n", Green, Reset)
	case "users", "active":
		views, err := s.api.ListUsers(args[0] == "active")
		if err != nil {
			s.fail(err)
			return false
		}
		s.printViews(views)
	case "get-user", "by-username":
		if !s.wantArgs(args, 1, args[0]+" <value>") {
			return false
		}
		var (
			v   models.UserView
			err error
		)
		if args[0] == "get-user" {
			v, err = s.api.GetUser(args[1])
		} else {
			v, err = s.api.GetUserByUsername(args[1])
		}
		if err != nil {
			s.fail(err)
			return false
		}
		s.printViews([]models.UserView{v})
	case "dead-letters", "dl":
		limit := 20
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				s.fail(fmt.Errorf("limit must be a number: %w", err))
				return false
			}
			limit = n
		}
		s.printDeadLetters(limit)
	default:
		fmt.Fprintf(s.out, "  %sunknown command %q, type 'help'%s\n", Dim, args[0], Reset)
	}
	return false
}

func (s *shell) wantArgs(args []string, n int, usage string) bool {
	if len(args)-1 < n {
		fmt.Fprintf(s.out, "  %susage: %s%s\n", Yellow, usage, Reset)
		return false
	}
	return true
}

func (s *shell) fail(err error) {
	fmt.Fprintf(s.out, "  %s[x] %v%s\n", Red, err, Reset)
}

func (s *shell) printViews(views []models.UserView) {
	if len(views) == 0 {
		fmt.Fprintf(s.out, "  %sno users%s\n", Dim, Reset)
		return
	}
	fmt.Fprintf(s.out, "  %s%-36s %-16s %-28s %-8s %s%s\n", Dim, "ID", "USERNAME", "EMAIL", "STATUS", "UPDATED", Reset)
	for _, v := range views {
		color := Green
		if v.Status == models.UserStatusInactive {
			color = Yellow
		}
		fmt.Fprintf(s.out, "  %-36s %-16s %-28s %s%-8s%s %s\n",
			v.UserID, v.Username, v.Email, color, v.Status, Reset, v.LastUpdated.Format("2006-01-02 15:04:05"))
	}
}

func (s *shell) printDeadLetters(limit int) {
	journal, err := deadletter.Open(s.deadLetterPath)
	if err != nil {
		s.fail(err)
		return
	}

	ctx := context.Background()
	total, err := journal.Count(ctx)
	if err != nil {
		s.fail(err)
		return
	}
	entries, err := journal.List(ctx, limit)
	if err != nil {
		s.fail(err)
		return
	}

	fmt.Fprintf(s.out, "  %s%sAbandoned events%s (%d total)\n", Bold, White, Reset, total)
	for _, e := range entries {
		fmt.Fprintf(s.out, "  %s#%-5d%s %-18s %-36s attempts=%d %s%s%s\n",
			Dim, e.Seq, Reset, e.EventType, e.AggregateID, e.Attempts, Red, e.Error, Reset)
	}
}

func (s *shell) printHelp() {
	fmt.Fprintln(s.out)
	fmt.Fprintf(s.out, "  %s%sCommands%s\n", Bold, White, Reset)
	fmt.Fprintf(s.out, "  %shealth%s       h   api health check\n", Green, Reset)
	fmt.Fprintln(s.out)
	fmt.Fprintf(s.out, "  %s--- Commands ---%s\n", Dim, Reset)
	fmt.Fprintf(s.out, "  %screate-user%s  <username> <email>\n", Green, Reset)
	fmt.Fprintf(s.out, "  %supdate-email%s <id> <email>\n", Green, Reset)
	fmt.Fprintf(s.out, "  %sdeactivate%s   <id>\n", Green, Reset)
	fmt.Fprintln(s.out)
	fmt.Fprintf(s.out, "  %s--- Projection ---%s\n", Dim, Reset)
	fmt.Fprintf(s.out, "  %susers%s        list users\n", Green, Reset)
	fmt.Fprintf(s.out, "  %sactive%s       list active users\n", Green, Reset)
	fmt.Fprintf(s.out, "  %sget-user%s     <id>\n", Green, Reset)
	fmt.Fprintf(s.out, "  %sby-username%s  <username>\n", Green, Reset)
	fmt.Fprintln(s.out)
	fmt.Fprintf(s.out, "  %s--- Dead letters ---%s\n", Dim, Reset)
	fmt.Fprintf(s.out, "  %sdead-letters%s dl [n]  abandoned events, newest first\n", Green, Reset)
	fmt.Fprintln(s.out)
	fmt.Fprintf(s.out, "  %sclear%s        clear screen\n", Green, Reset)
	fmt.Fprintf(s.out, "  %sexit%s         quit shell\n", Green, Reset)
}

func (s *shell) printBanner() {
	fmt.Fprintln(s.out)
	fmt.Fprintf(s.out, "  %s%s>> User Event Sync%s\n", Bold, Cyan, Reset)
	fmt.Fprintf(s.out, "  %sapi=%s  Type 'help' for commands%s\n", Dim, s.api.base, Reset)
	fmt.Fprintln(s.out)
}
