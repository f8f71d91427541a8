package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"github.com/zoro-md/zoro/internal/auth"
	"github.com/zoro-md/zoro/internal/cache"
	"github.com/zoro-md/zoro/internal/codeblock"
	"github.com/zoro-md/zoro/internal/config"
	"github.com/zoro-md/zoro/internal/domain"
	"github.com/zoro-md/zoro/internal/export"
	"github.com/zoro-md/zoro/internal/host"
	"github.com/zoro-md/zoro/internal/logging"
	"github.com/zoro-md/zoro/internal/media"
	"github.com/zoro-md/zoro/internal/provider"
	"github.com/zoro-md/zoro/internal/provider/anilist"
	"github.com/zoro-md/zoro/internal/provider/jikan"
	"github.com/zoro-md/zoro/internal/provider/mal"
	"github.com/zoro-md/zoro/internal/provider/simkl"
	"github.com/zoro-md/zoro/internal/provider/tmdb"
	"github.com/zoro-md/zoro/internal/queue"
	"github.com/zoro-md/zoro/internal/ratelimit"
	"github.com/zoro-md/zoro/internal/reconcile"
	"github.com/zoro-md/zoro/internal/trending"
)

// Version is set at build time via -ldflags
var Version = "dev"

const usage = `zoro - personal media list aggregator

Usage:
  zoro login <anilist|mal|simkl>     authenticate with a provider
  zoro logout <anilist|mal|simkl>    clear a provider session
  zoro setup                         store client credentials and defaults
  zoro list [flags]                  show a user's list
  zoro search <query> [flags]        search a provider catalog
  zoro trending [flags]              show trending media
  zoro stats [flags]                 show a user's list statistics
  zoro set [flags]                   update a list entry
  zoro remove [flags]                delete a list entry
  zoro favorite [flags]              toggle a favorite (AniList)
  zoro export <provider> [flags]     write export files into the vault
  zoro render <file|->               process a request block

Run "zoro <command> -h" for command flags.
`

func main() {
	var showVersion bool
	flag.BoolVar(&showVersion, "v", false, "print version")
	flag.BoolVar(&showVersion, "version", false, "print version")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if showVersion {
		fmt.Printf("zoro %s\n", Version)
		return
	}
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(flag.Args()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	// .env is optional; real settings live in the config file and the
	// ZORO_* environment
	_ = godotenv.Load()

	logger, err := logging.Setup(logging.Options{
		File:  config.DefaultLogPath(),
		Level: os.Getenv("ZORO_LOG_LEVEL"),
	})
	if err != nil {
		logger = logging.Null()
	}
	slog.SetDefault(logger)
	logger.Info("starting zoro", "version", Version, "command", args[0])

	app, err := newApp(logger)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cmd, rest := args[0], args[1:]; cmd {
	case "login":
		return app.cmdLogin(ctx, rest)
	case "logout":
		return app.cmdLogout(ctx, rest)
	case "setup":
		return app.cmdSetup(rest)
	case "list":
		return app.cmdList(ctx, rest)
	case "search":
		return app.cmdSearch(ctx, rest)
	case "trending":
		return app.cmdTrending(ctx, rest)
	case "stats":
		return app.cmdStats(ctx, rest)
	case "set":
		return app.cmdSet(ctx, rest)
	case "remove":
		return app.cmdRemove(ctx, rest)
	case "favorite":
		return app.cmdFavorite(ctx, rest)
	case "export":
		return app.cmdExport(ctx, rest)
	case "render":
		return app.cmdRender(ctx, rest)
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// app wires the full core once per invocation
type app struct {
	logger *slog.Logger
	store  *config.Store
	cache  *cache.Store
	queue  *queue.Queue
	router *auth.Router

	anilistAuth *anilist.Manager
	malAuth     *mal.Manager
	simklAuth   *simkl.Manager

	service   *media.Service
	editor    *media.Editor
	processor *codeblock.Processor
}

func newApp(logger *slog.Logger) (*app, error) {
	store, err := config.NewStore(config.DefaultPath(), logger)
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	cacheStore, err := cache.NewStore(config.DefaultCachePath(), logger)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}

	limiters := ratelimit.NewRegistry(logger)
	q := queue.New(limiters, queue.Options{}, logger)
	router := auth.NewRouter(logger)
	browser := host.NewBrowser(logger)

	anilistAuth := anilist.NewManager(store, cacheStore, router, browser, logger)
	malAuth := mal.NewManager(store, cacheStore, router, browser, logger)
	simklAuth := simkl.NewManager(store, cacheStore, browser, logger)

	anilistClient := anilist.NewClient("", anilist.AuthHeadersFrom(store), logger)
	malClient := mal.NewClient("", mal.AuthHeadersFrom(store), logger)
	simklClient := simkl.NewClient("", simkl.AuthHeadersFrom(store), logger)
	tmdbClient := tmdb.NewClient("", func() (string, error) { return store.Get().TMDBKey() }, logger)
	jikanClient := jikan.NewClient("", logger)

	registry := provider.NewRegistry()
	registry.Register(anilistClient)
	registry.Register(malClient)
	registry.Register(simklClient)
	registry.Register(provider.NewCatalog(domain.SourceTMDB, tmdbClient, nil))
	registry.Register(provider.NewCatalog(domain.SourceJikan, jikanClient, jikanClient))
	registry.RegisterTrending(domain.SourceTMDB, tmdbClient)
	registry.RegisterTrending(domain.SourceJikan, jikanClient)

	managers := map[domain.Source]domain.AuthManager{
		domain.SourceAniList: anilistAuth,
		domain.SourceMAL:     malAuth,
		domain.SourceSimkl:   simklAuth,
	}

	service := media.NewService(registry, managers, cacheStore, q, logger)
	editor := media.NewEditor(registry, managers, cacheStore, q, logger)

	notifier := host.NewTerminalNotifier(os.Stdout)
	editor.SubscribeFavorites(func(mediaID int, favorite bool) {
		if favorite {
			notifier.Notify(fmt.Sprintf("Added media %d to favorites", mediaID), 3*time.Second)
		} else {
			notifier.Notify(fmt.Sprintf("Removed media %d from favorites", mediaID), 3*time.Second)
		}
	})
	reconciler := reconcile.New(tmdbClient, simklClient, q, cacheStore, logger)
	aggregator := trending.New(registry, cacheStore, q, reconciler, logger)
	processor := codeblock.NewProcessor(service, aggregator, store.Get, logger)

	return &app{
		logger:      logger,
		store:       store,
		cache:       cacheStore,
		queue:       q,
		router:      router,
		anilistAuth: anilistAuth,
		malAuth:     malAuth,
		simklAuth:   simklAuth,
		service:     service,
		editor:      editor,
		processor:   processor,
	}, nil
}

func (a *app) Close() {
	a.queue.Close()
	if err := a.cache.Close(); err != nil {
		a.logger.Warn("cache close failed", "error", err)
	}
}

func (a *app) manager(name string) (domain.AuthManager, error) {
	src, err := domain.ParseSource(name)
	if err != nil {
		return nil, err
	}
	switch src {
	case domain.SourceAniList:
		return a.anilistAuth, nil
	case domain.SourceMAL:
		return a.malAuth, nil
	case domain.SourceSimkl:
		return a.simklAuth, nil
	default:
		return nil, &domain.CapabilityError{Source: src, Operation: "login"}
	}
}

func (a *app) cmdLogin(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: zoro login <anilist|mal|simkl>")
	}
	mgr, err := a.manager(args[0])
	if err != nil {
		return err
	}

	switch m := mgr.(type) {
	case *anilist.Manager:
		ticket, err := m.LoginStart(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Authorize zoro in your browser:\n  %s\n\n", ticket.URL)
		code, err := prompt("Paste the authorization code: ")
		if err != nil {
			return err
		}
		if err := m.CompleteWithCode(ctx, code); err != nil {
			return err
		}

	case *mal.Manager:
		ticket, err := m.LoginStart(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Authorize zoro in your browser:\n  %s\n\n", ticket.URL)
		redirect, err := prompt("Paste the full redirect URL: ")
		if err != nil {
			return err
		}
		if err := a.router.HandleRedirect(ctx, redirect); err != nil {
			return err
		}

	case *simkl.Manager:
		ticket, err := m.LoginStart(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("Enter code %s at:\n  %s\n\nWaiting for confirmation...\n", ticket.UserCode, ticket.URL)
		if err := m.WaitForAuthorization(ctx); err != nil {
			return err
		}
	}

	name, err := mgr.AuthenticatedUsername(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Logged in to %s as %s\n", mgr.Source(), name)
	return nil
}

func (a *app) cmdLogout(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: zoro logout <anilist|mal|simkl>")
	}
	mgr, err := a.manager(args[0])
	if err != nil {
		return err
	}
	if err := mgr.Logout(ctx); err != nil {
		return err
	}
	fmt.Printf("Logged out of %s\n", mgr.Source())
	return nil
}

// cmdSetup stores client credentials and defaults interactively.
// Secrets are read without echo.
func (a *app) cmdSetup(args []string) error {
	fs := flag.NewFlagSet("setup", flag.ContinueOnError)
	providerName := fs.String("provider", "", "only configure one provider (anilist, mal, simkl, tmdb)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	update := func(name string, apply func(*config.Settings, string, string)) error {
		id, err := prompt(name + " client id (empty to skip): ")
		if err != nil {
			return err
		}
		if id == "" {
			return nil
		}
		secret, err := promptSecret(name + " client secret: ")
		if err != nil {
			return err
		}
		return a.store.Update(func(s *config.Settings) { apply(s, id, secret) })
	}

	all := *providerName == ""
	if all || *providerName == "anilist" {
		if err := update("AniList", func(s *config.Settings, id, secret string) {
			s.ClientID, s.ClientSecret = id, secret
		}); err != nil {
			return err
		}
	}
	if all || *providerName == "mal" {
		if err := update("MyAnimeList", func(s *config.Settings, id, secret string) {
			s.MALClientID, s.MALClientSecret = id, secret
		}); err != nil {
			return err
		}
	}
	if all || *providerName == "simkl" {
		if err := update("Simkl", func(s *config.Settings, id, secret string) {
			s.SimklClientID, s.SimklClientSecret = id, secret
		}); err != nil {
			return err
		}
	}
	if all || *providerName == "tmdb" {
		key, err := promptSecret("TMDb API key (empty to skip): ")
		if err != nil {
			return err
		}
		if key != "" {
			if err := a.store.Update(func(s *config.Settings) { s.TMDBApiKey = key }); err != nil {
				return err
			}
		}
	}

	if all {
		username, err := prompt("Default username (empty to skip): ")
		if err != nil {
			return err
		}
		if username != "" {
			if err := a.store.Update(func(s *config.Settings) { s.DefaultUsername = username }); err != nil {
				return err
			}
		}
	}

	fmt.Println("Settings saved.")
	return nil
}

func (a *app) cmdList(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	source := fs.String("source", "", "provider (default from settings)")
	user := fs.String("user", "", "list owner (default from settings or login)")
	mediaType := fs.String("type", "ANIME", "media type: ANIME, MANGA, MOVIE, TV")
	status := fs.String("status", "", "filter to one list: watching, completed, ...")
	page := fs.Int("page", 1, "page number")
	perPage := fs.Int("perpage", 50, "entries per page")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var block strings.Builder
	fmt.Fprintf(&block, "mediaType: %s\npage: %d\nperPage: %d\n", *mediaType, *page, *perPage)
	if *source != "" {
		fmt.Fprintf(&block, "source: %s\n", *source)
	}
	if *user != "" {
		fmt.Fprintf(&block, "username: %s\n", *user)
	}
	if *status != "" {
		fmt.Fprintf(&block, "listType: %s\n", *status)
	}

	payload, err := a.processor.Process(ctx, block.String())
	if err != nil {
		return err
	}
	printEntries(payload.Entries)
	return nil
}

func (a *app) cmdSearch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	source := fs.String("source", "", "provider (default from settings)")
	mediaType := fs.String("type", "ANIME", "media type: ANIME, MANGA, MOVIE, TV")
	perPage := fs.Int("perpage", 20, "results to show")
	if err := fs.Parse(args); err != nil {
		return err
	}
	query := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if query == "" {
		return fmt.Errorf("usage: zoro search <query>")
	}

	var block strings.Builder
	fmt.Fprintf(&block, "query: %s\nmediaType: %s\nperPage: %d\n", query, *mediaType, *perPage)
	if *source != "" {
		fmt.Fprintf(&block, "source: %s\n", *source)
	}
	payload, err := a.processor.Process(ctx, block.String())
	if err != nil {
		return err
	}

	// The block pipeline answers search with a descriptor; the host
	// drives the actual query
	d := payload.Search
	entries, err := a.service.Search(ctx, d.Source, d.Query, d.MediaType, d.Page)
	if err != nil {
		return err
	}
	printEntries(entries)
	return nil
}

func (a *app) cmdTrending(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("trending", flag.ContinueOnError)
	source := fs.String("source", "", "provider (default from settings)")
	mediaType := fs.String("type", "ANIME", "media type: ANIME, MANGA, MOVIE, TV")
	limit := fs.Int("limit", trending.DefaultLimit, "items to fetch")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var block strings.Builder
	fmt.Fprintf(&block, "type: trending\nmediaType: %s\nlimit: %d\n", *mediaType, *limit)
	if *source != "" {
		fmt.Fprintf(&block, "source: %s\n", *source)
	}
	payload, err := a.processor.Process(ctx, block.String())
	if err != nil {
		return err
	}
	printEntries(payload.Entries)
	return nil
}

func (a *app) cmdStats(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	source := fs.String("source", "", "provider (default from settings)")
	user := fs.String("user", "", "list owner (default from settings or login)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var block strings.Builder
	block.WriteString("type: stats\n")
	if *source != "" {
		fmt.Fprintf(&block, "source: %s\n", *source)
	}
	if *user != "" {
		fmt.Fprintf(&block, "username: %s\n", *user)
	}
	payload, err := a.processor.Process(ctx, block.String())
	if err != nil {
		return err
	}

	st := payload.Stats
	fmt.Printf("%s / %s\n", st.Source, st.Username)
	fmt.Printf("  Anime: %d entries, mean score %.1f, %d episodes\n",
		st.Anime.Count, st.Anime.MeanScore, st.Anime.EpisodesWatched)
	fmt.Printf("  Manga: %d entries, mean score %.1f, %d chapters\n",
		st.Manga.Count, st.Manga.MeanScore, st.Manga.ChaptersRead)
	return nil
}

// editFlags are the knobs shared by the entry mutation commands
func editFlags(fs *flag.FlagSet) (source *string, id *int, mediaType *string) {
	source = fs.String("source", "", "provider holding the entry (default from settings)")
	id = fs.Int("id", 0, "media id on the provider")
	mediaType = fs.String("type", "ANIME", "media type: ANIME, MANGA, MOVIE, TV")
	return
}

// lookupEntry fetches the current entry so mutations patch real state
func (a *app) lookupEntry(ctx context.Context, sourceName string, mediaID int, typeName string) (*domain.Entry, error) {
	if mediaID <= 0 {
		return nil, fmt.Errorf("-id is required")
	}
	src := a.store.Get().DefaultSource()
	if sourceName != "" {
		var err error
		if src, err = domain.ParseSource(sourceName); err != nil {
			return nil, err
		}
	}
	mt, err := domain.ParseMediaType(typeName)
	if err != nil {
		return nil, err
	}
	return a.service.Item(ctx, src, mediaID, mt)
}

func (a *app) cmdSet(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("set", flag.ContinueOnError)
	source, id, mediaType := editFlags(fs)
	status := fs.String("status", "", "new list status")
	score := fs.Float64("score", -1, "new score on the 0-10 scale")
	progress := fs.Int("progress", -1, "new progress count")
	if err := fs.Parse(args); err != nil {
		return err
	}

	entry, err := a.lookupEntry(ctx, *source, *id, *mediaType)
	if err != nil {
		return err
	}

	var patch domain.EntryPatch
	if *status != "" {
		st, err := domain.ParseStatus(*status)
		if err != nil {
			return err
		}
		patch.Status = &st
	}
	if *score >= 0 {
		patch.Score = score
	}
	if *progress >= 0 {
		patch.Progress = progress
	}
	if patch.IsEmpty() {
		return fmt.Errorf("nothing to change; pass -status, -score, or -progress")
	}

	updated, err := a.editor.UpdateEntry(ctx, entry, patch)
	if err != nil {
		return err
	}
	printEntries([]domain.Entry{*updated})
	return nil
}

func (a *app) cmdRemove(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("remove", flag.ContinueOnError)
	source, id, mediaType := editFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	entry, err := a.lookupEntry(ctx, *source, *id, *mediaType)
	if err != nil {
		return err
	}
	if err := a.editor.RemoveEntry(ctx, entry); err != nil {
		return err
	}
	fmt.Printf("Removed %s from your list\n", entry.Media.DisplayTitle())
	return nil
}

func (a *app) cmdFavorite(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("favorite", flag.ContinueOnError)
	source, id, mediaType := editFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	src := domain.SourceAniList
	if *source != "" {
		var err error
		if src, err = domain.ParseSource(*source); err != nil {
			return err
		}
	}
	mt, err := domain.ParseMediaType(*mediaType)
	if err != nil {
		return err
	}
	if *id <= 0 {
		return fmt.Errorf("-id is required")
	}

	// the favorites subscription prints the outcome
	if _, err := a.editor.ToggleFavorite(ctx, src, *id, mt); err != nil {
		return err
	}
	return nil
}

func (a *app) cmdExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	user := fs.String("user", "", "list owner (default: logged-in account)")
	vaultRoot := fs.String("vault", ".", "directory the export tree is written under")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: zoro export <anilist|mal|simkl>")
	}
	src, err := domain.ParseSource(fs.Arg(0))
	if err != nil {
		return err
	}

	vault, err := host.NewVault(*vaultRoot)
	if err != nil {
		return err
	}
	exporter := export.NewExporter(a.service, vault, a.logger)

	if term.IsTerminal(int(os.Stderr.Fd())) {
		bar := progressbar.NewOptions(-1,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("fetching lists"),
			progressbar.OptionSpinnerType(14),
			progressbar.OptionClearOnFinish(),
		)
		exporter.Progress = func(mt domain.MediaType, fetched int) {
			bar.Describe(fmt.Sprintf("fetching %s (%d entries)", strings.ToLower(string(mt)), fetched))
			_ = bar.Add(1)
		}
		defer func() { _ = bar.Finish() }()
	}

	written, err := exporter.Export(ctx, src, *user)
	if err != nil {
		return err
	}
	for _, path := range written {
		fmt.Println(path)
	}
	return nil
}

func (a *app) cmdRender(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: zoro render <file|->")
	}

	var text []byte
	var err error
	if args[0] == "-" {
		text, err = io.ReadAll(os.Stdin)
	} else {
		text, err = os.ReadFile(args[0])
	}
	if err != nil {
		return err
	}

	payload, err := a.processor.Process(ctx, string(text))
	if err != nil {
		return err
	}

	switch payload.Kind {
	case codeblock.KindList, codeblock.KindTrending:
		printEntries(payload.Entries)
	case codeblock.KindSingle:
		printEntries([]domain.Entry{*payload.Entry})
	case codeblock.KindSearch:
		d := payload.Search
		entries, err := a.service.Search(ctx, d.Source, d.Query, d.MediaType, d.Page)
		if err != nil {
			return err
		}
		printEntries(entries)
	case codeblock.KindStats:
		st := payload.Stats
		fmt.Printf("%s / %s: %d anime, %d manga\n", st.Source, st.Username, st.Anime.Count, st.Manga.Count)
	}
	return nil
}

func printEntries(entries []domain.Entry) {
	if len(entries) == 0 {
		fmt.Println("No entries.")
		return
	}
	for _, e := range entries {
		status := "-"
		if e.Status != nil {
			status = string(*e.Status)
		}
		score := "-"
		if e.Score != nil && *e.Score > 0 {
			score = fmt.Sprintf("%.1f", *e.Score)
		}
		progress := fmt.Sprintf("%d", e.Progress)
		if max := e.Media.MaxProgress(); max > 0 {
			progress = fmt.Sprintf("%d/%d", e.Progress, max)
		}
		fmt.Printf("%-50.50s  %-10s %8s  %5s  [%s:%d]\n",
			e.Media.DisplayTitle(), status, progress, score, e.Media.Source, e.Media.ID)
	}
}

func prompt(label string) (string, error) {
	fmt.Print(label)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// promptSecret reads a line without echoing it when stdin is a
// terminal, falling back to a plain read when piped
func promptSecret(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return prompt(label)
	}
	fmt.Print(label)
	secret, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("read secret: %w", err)
	}
	return strings.TrimSpace(string(secret)), nil
}

