package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"golang.org/x/term"

	"github.com/molpadia/molpastudio/internal/dashboard"
	"github.com/molpadia/molpastudio/internal/logging"
	"github.com/molpadia/molpastudio/internal/mediaurl"
)

var (
	server   = flag.String("server", env("MOLPASTUDIO_URL", "http://localhost:4443"), "molpastudio API address")
	delivery = flag.String("media", env("MEDIA_DELIVERY_URL", ""), "media delivery base URL (default <server>/media)")
)

// Reported when a command is missing its arguments.
var errUsage = errors.New("usage")

func main() {
	os.Exit(run())
}

// Run the command and return the process exit code. Deferred cleanup runs
// before main exits.
func run() int {
	flag.Usage = printUsage
	flag.Parse()
	args := flag.Args()
	if len(args) < 1 {
		printUsage()
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := dashboard.NewClient(*server, nil)
	if args[0] != "sign-in" {
		token, err := loadToken()
		if err != nil {
			fmt.Fprintln(os.Stderr, "Not signed in. Run: dashboard sign-in")
			return 1
		}
		client.SetToken(token)
	}
	base := *delivery
	if base == "" {
		base = strings.TrimRight(*server, "/") + "/media"
	}
	c := dashboard.NewController(dashboard.NewStore(client), client, mediaurl.NewResolver(base))
	defer c.Close()

	var err error
	switch args[0] {
	case "sign-in":
		err = signIn(ctx, client, args[1:])
	case "list":
		err = list(ctx, c)
	case "download":
		err = withVideo(ctx, c, args[1:], func(id string) error {
			dir := "."
			if len(args) > 2 {
				dir = args[2]
			}
			video, _ := c.Store().Get(id)
			path, err := c.Download(ctx, video.PublicId, video.Title, dir)
			if err == nil {
				fmt.Println(path)
			}
			return err
		})
	case "delete":
		err = withVideo(ctx, c, args[1:], func(id string) error { return c.Delete(ctx, id) })
	case "preview":
		err = withVideo(ctx, c, args[1:], func(id string) error { return preview(ctx, c, id) })
	default:
		err = errUsage
	}
	if errors.Is(err, errUsage) {
		printUsage()
		return 1
	}
	printNotices(c)
	if err != nil {
		logging.Debug("%s: %v", args[0], err)
		if errors.Is(err, dashboard.ErrVideoNotFound) {
			fmt.Fprintln(os.Stderr, "Video not found")
		}
		return 1
	}
	return 0
}

func signIn(ctx context.Context, client *dashboard.Client, args []string) error {
	email := ""
	if len(args) > 0 {
		email = args[0]
	} else {
		fmt.Print("Email: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return fmt.Errorf("failed to read email: %w", err)
		}
		email = strings.TrimSpace(line)
	}
	fmt.Print("Password: ")
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	token, err := client.SignIn(ctx, email, string(password))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Sign-in failed: %v\n", err)
		return err
	}
	if err := saveToken(token); err != nil {
		return err
	}
	fmt.Println("Signed in.")
	return nil
}

func list(ctx context.Context, c *dashboard.Controller) error {
	if err := c.FetchAll(ctx); err != nil {
		return err
	}
	videos := c.Store().Videos()
	if len(videos) == 0 {
		fmt.Println("No videos available")
		return nil
	}
	now := time.Now()
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tDURATION\tORIGINAL\tCOMPRESSED\tSAVED\tUPLOADED")
	for _, v := range videos {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", v.Id, v.Title,
			dashboard.FormatDuration(v.Duration),
			dashboard.FormatSize(v.OriginalSize),
			dashboard.FormatSize(v.CompressedSize),
			dashboard.FormatCompression(v),
			strings.TrimPrefix(dashboard.FormatUploaded(v.CreatedAt, now), "Uploaded "))
	}
	return tw.Flush()
}

func preview(ctx context.Context, c *dashboard.Controller, id string) error {
	card, err := c.Preview(ctx, id)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %s\n", card.State, card.Visible())
	card, _ = dashboard.Reduce(card, dashboard.HoverExit)
	fmt.Printf("%s: %s\n", card.State, card.Visible())
	return nil
}

// Load the list and run fn for the video ID in args.
func withVideo(ctx context.Context, c *dashboard.Controller, args []string, fn func(id string) error) error {
	if len(args) < 1 {
		return errUsage
	}
	if err := c.FetchAll(ctx); err != nil {
		return err
	}
	if _, ok := c.Store().Get(args[0]); !ok {
		return dashboard.ErrVideoNotFound
	}
	return fn(args[0])
}

func printNotices(c *dashboard.Controller) {
	for _, n := range c.Notices() {
		if n.Level == dashboard.NoticeError {
			fmt.Fprintln(os.Stderr, n.Message)
		} else {
			fmt.Println(n.Message)
		}
	}
}

func tokenPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "molpastudio", "token"), nil
}

func loadToken() (string, error) {
	p, err := tokenPath()
	if err != nil {
		return "", err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

func saveToken(token string) error {
	p, err := tokenPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o700); err != nil {
		return err
	}
	return os.WriteFile(p, []byte(token+"\n"), 0o600)
}

// Get the value of environment variables.
func env(key string, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func printUsage() {
	fmt.Println("molpastudio dashboard")
	fmt.Println("")
	fmt.Println("Usage: dashboard [flags] <command>")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  sign-in [email]        - Sign in and store the session token")
	fmt.Println("  list                   - List videos")
	fmt.Println("  download <id> [dir]    - Download a video as <title>.mp4, resuming a partial download")
	fmt.Println("  delete <id>            - Delete a video")
	fmt.Println("  preview <id>           - Check whether the preview clip of a video plays")
	fmt.Println("")
	fmt.Println("Flags:")
	flag.PrintDefaults()
}
