package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"tutorlink/internal/backend"
	"tutorlink/internal/models"
	"tutorlink/internal/services"
	"tutorlink/internal/session"
	"tutorlink/internal/ws"
	"tutorlink/pkg/config"
)

const usage = `tutorlink - tutoring marketplace client

Usage:
  tutorlink login [-email addr] [-password pw]
  tutorlink logout
  tutorlink whoami
  tutorlink inbox
  tutorlink chat <thread-id>
  tutorlink search [-name n] [-location l] [-max-price p] [-q text]
  tutorlink subjects
`

// app bundles the wired-up client stack shared by every command.
type app struct {
	cfg     *config.Config
	session *session.Session
	client  *backend.Client
	auth    *services.AuthService
}

func main() {
	// Initialize logger
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	store := session.NewFileStore(cfg.Store.CredentialsPath)
	sess := session.New(store, func() {
		fmt.Fprintln(os.Stderr, "Your session has expired. Please log in again.")
	})
	client := backend.New(&cfg.Backend, sess)

	a := &app{
		cfg:     cfg,
		session: sess,
		client:  client,
		auth:    services.NewAuthService(client, sess),
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	command, args := os.Args[1], os.Args[2:]
	switch command {
	case "login":
		err = a.login(ctx, args)
	case "logout":
		a.auth.Logout()
		fmt.Println("Logged out.")
	case "whoami":
		err = a.whoami(ctx)
	case "inbox":
		err = a.inbox(ctx)
	case "chat":
		err = a.chat(ctx, args)
	case "search":
		err = a.search(ctx, args)
	case "subjects":
		err = a.subjects(ctx)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	if err != nil {
		log.Fatal().Err(err).Str("command", command).Msg("Command failed")
	}
}

func (a *app) login(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("login", flag.ExitOnError)
	email := flags.String("email", "", "account email")
	password := flags.String("password", "", "account password")
	if err := flags.Parse(args); err != nil {
		return err
	}

	reader := bufio.NewReader(os.Stdin)
	if *email == "" {
		fmt.Print("Email: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return err
		}
		*email = strings.TrimSpace(line)
	}
	if *password == "" {
		fmt.Print("Password: ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return err
		}
		*password = strings.TrimSpace(line)
	}

	result, err := a.auth.Login(ctx, *email, *password)
	if err != nil {
		if errors.Is(err, backend.ErrInvalidCredentials) {
			return errors.New("email or password incorrect")
		}
		return err
	}

	account := result.Profile.Account()
	fmt.Printf("Logged in as %s %s (%s)\n", account.FirstName, account.LastName, account.Email)

	switch result.Onboarding {
	case services.OnboardingNoProfile:
		fmt.Println("You have not created a tutoring profile yet.")
	case services.OnboardingPending:
		fmt.Println("Your tutoring profile is awaiting review.")
	case services.OnboardingRejected:
		fmt.Printf("Your tutoring profile was rejected: %s\n", result.Reason)
	}
	return nil
}

func (a *app) whoami(ctx context.Context) error {
	profile, err := a.client.Profile(ctx)
	if err != nil {
		return err
	}

	account := profile.Account()
	fmt.Printf("%s %s <%s>\n", account.FirstName, account.LastName, account.Email)
	switch p := profile.(type) {
	case *models.Student:
		fmt.Println("Role: student")
	case *models.Tutor:
		fmt.Println("Role: tutor")
		if p.Price != nil {
			fmt.Printf("Rate: %.2f/hr\n", *p.Price)
		}
		if p.Bio != nil {
			fmt.Printf("Bio: %s\n", *p.Bio)
		}
	case *models.Admin:
		fmt.Println("Role: admin")
	}
	return nil
}

func (a *app) inbox(ctx context.Context) error {
	threads, err := a.client.Inbox(ctx)
	if err != nil {
		return err
	}
	if len(threads) == 0 {
		fmt.Println("No conversations.")
		return nil
	}

	for _, thread := range threads {
		marker := ""
		switch thread.State {
		case models.ThreadRequested:
			marker = " [requested]"
		case models.ThreadBlocked:
			marker = " [blocked]"
		}
		fmt.Printf("%s  %s %s%s (%d messages)\n",
			thread.ID, thread.Recipient.FirstName, thread.Recipient.LastName, marker, thread.MessageCount)
	}
	return nil
}

// chatPrinter feeds live events into the synchronizer and echoes incoming
// messages to the terminal.
type chatPrinter struct {
	sync *services.Synchronizer
}

func (p *chatPrinter) OnMessage(event *ws.MessageEvent) {
	p.sync.OnMessage(event)
	if event.ThreadID == p.sync.ThreadID() && !p.sync.SentByMe(event.Message()) {
		fmt.Printf("\r%s: %s\n> ", p.sync.Recipient().FirstName, event.Body)
	}
}

func (p *chatPrinter) OnMessageSent() {
	p.sync.OnMessageSent()
}

func (a *app) chat(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: tutorlink chat <thread-id>")
	}
	threadID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid thread id: %w", err)
	}
	if !a.session.LoggedIn() {
		return errors.New("not logged in")
	}

	sync := services.NewSynchronizer(a.client, a.session)
	thread, err := sync.LoadInitial(ctx, threadID)
	if err != nil {
		return err
	}

	feed, err := ws.Dial(ctx, &a.cfg.Feed, a.session.Token(), &chatPrinter{sync: sync})
	if err != nil {
		log.Warn().Err(err).Msg("Live feed unavailable, messages will not update in real time")
	} else {
		defer feed.Close()
	}

	fmt.Printf("Chatting with %s %s. Ctrl-D to leave.\n",
		thread.Recipient.FirstName, thread.Recipient.LastName)
	for _, msg := range sync.Messages() {
		printMessage(sync, msg)
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		fmt.Print("> ")
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			body := strings.TrimSpace(line)
			if body == "" {
				continue
			}
			msg := sync.AppendOptimistic(body)
			if err := sync.ConfirmSend(ctx, msg); err != nil {
				fmt.Printf("(failed to send: %v)\n", err)
			}
		}
	}
}

func printMessage(sync *services.Synchronizer, msg *models.Message) {
	who := sync.Recipient().FirstName
	if sync.SentByMe(msg) {
		who = "me"
	}
	suffix := ""
	switch msg.State {
	case models.MessageSending:
		suffix = " (sending)"
	case models.MessageFailed:
		suffix = " (failed)"
	}
	fmt.Printf("[%s] %s: %s%s\n", msg.SentAt().Local().Format("15:04"), who, msg.Body, suffix)
}

func (a *app) search(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("search", flag.ExitOnError)
	name := flags.String("name", "", "tutor name")
	location := flags.String("location", "", "tutor location")
	maxPrice := flags.Float64("max-price", 0, "maximum hourly rate")
	query := flags.String("q", "", "free-text query")
	if err := flags.Parse(args); err != nil {
		return err
	}

	filter := backend.TutorSearch{Name: *name, Location: *location, Query: *query}
	if *maxPrice > 0 {
		filter.MaxPrice = maxPrice
	}

	tutors, err := a.client.SearchTutors(ctx, filter)
	if err != nil {
		return err
	}
	if len(tutors) == 0 {
		fmt.Println("No tutors found.")
		return nil
	}

	for _, tutor := range tutors {
		price := "-"
		if tutor.Price != nil {
			price = fmt.Sprintf("%.2f/hr", *tutor.Price)
		}
		fmt.Printf("%s  %s %s  %s  %s\n", tutor.ID, tutor.FirstName, tutor.LastName, tutor.Location, price)
	}
	return nil
}

func (a *app) subjects(ctx context.Context) error {
	subjects, err := a.client.Subjects(ctx)
	if err != nil {
		return err
	}
	for _, subject := range subjects {
		fmt.Printf("%s  %s\n", subject.ID, subject.Name)
	}
	return nil
}
