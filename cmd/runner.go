package main

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/discog/internal/models"
	"github.com/desertthunder/discog/internal/pager"
	"github.com/desertthunder/discog/internal/repositories"
	"github.com/desertthunder/discog/internal/services"
	"github.com/desertthunder/discog/internal/shared"
	"github.com/desertthunder/discog/internal/tasks"
	"github.com/desertthunder/discog/internal/ui"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

const lockFile = "discog.lock"

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// Dependencies left nil in [RunnerOpts] are opened on demand and released after each command.
type Runner struct {
	config     *shared.Config
	configPath string
	spotify    *services.SpotifyService
	library    services.Library
	engine     tasks.Reconciler
	store      models.MembershipStore
	runs       *repositories.RunRepository
	tokens     *services.TokenCache
	logger     *log.Logger
	output     io.Writer
	input      io.Reader
	opened     opened
}

// opened tracks what the runner built itself, so [Runner.after] can release it.
type opened struct {
	db      *sql.DB
	library bool
	engine  bool
	store   bool
	runs    bool
}

// RunnerOpts contains configuration options for creating a Runner.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Library    services.Library
	Reconciler tasks.Reconciler
	Store      models.MembershipStore
	Runs       *repositories.RunRepository
	Logger     *log.Logger
	Output     io.Writer
	Input      io.Reader
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Input == nil {
		opts.Input = os.Stdin
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		library:    opts.Library,
		engine:     opts.Reconciler,
		store:      opts.Store,
		runs:       opts.Runs,
		logger:     opts.Logger,
		output:     opts.Output,
		input:      opts.Input,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		playlistCommand, artistsCommand, statusCommand, authCommand, setupCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// before loads the configuration and applies global flags.
func (r *Runner) before(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.Bool("debug") || cmd.Bool("trace") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}

	r.configPath = cmd.String("config")
	if r.config == nil {
		config, err := shared.LoadOrDefault(r.configPath)
		if err != nil {
			return ctx, err
		}
		r.config = config
	}

	r.config.ApplySpotifyOverrides(cmd.String("client-id"), cmd.String("client-secret"), cmd.String("redirect-uri"))
	return ctx, nil
}

// after closes the database and forgets everything derived from it.
func (r *Runner) after(ctx context.Context, cmd *cli.Command) error {
	if r.opened.engine {
		r.engine = nil
	}
	if r.opened.library {
		r.library, r.spotify = nil, nil
	}
	if r.opened.store {
		r.store = nil
	}
	if r.opened.runs {
		r.runs = nil
	}

	db := r.opened.db
	r.opened = opened{}
	if db != nil {
		return db.Close()
	}
	return nil
}

// configDir holds the token cache, lock file and TUI log next to the config file.
func (r *Runner) configDir() string {
	return filepath.Dir(shared.ExpandPath(r.configPath))
}

func (r *Runner) lock() (*shared.RunLock, error) {
	return shared.AcquireRunLock(filepath.Join(r.configDir(), lockFile))
}

// openStores opens the database, the run history and the configured membership store.
func (r *Runner) openStores() error {
	if r.store != nil && r.runs != nil {
		return nil
	}

	db, err := shared.OpenDatabase(r.config.Database)
	if err != nil {
		return err
	}
	r.opened.db = db

	if r.runs == nil {
		r.runs = repositories.NewRunRepository(db)
		r.opened.runs = true
	}

	if r.store == nil {
		store, err := repositories.OpenMembershipStore(r.config.Store, db)
		if err != nil {
			return err
		}
		r.store = store
		r.opened.store = true
	}
	return nil
}

// connect prepares everything a sync needs: stores, an authenticated library and the engine.
func (r *Runner) connect(ctx context.Context, cmd *cli.Command) error {
	if err := r.openStores(); err != nil {
		return err
	}

	if r.library == nil {
		if err := r.login(ctx, cmd); err != nil {
			return err
		}
		r.opened.library = true
	}

	if r.engine != nil {
		return nil
	}

	names := cmd.StringSlice("album-type")
	if len(names) == 0 {
		names = r.config.Sync.AlbumTypes
	}
	albumTypes, err := models.ParseAlbumTypes(names)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err)
	}

	opts := tasks.EngineOpts{
		AlbumTypes: albumTypes,
		BatchSize:  r.config.Sync.BatchSize,
		Capacity:   r.config.Sync.Capacity,
		Pager: []pager.Option{
			pager.WithMaxPages(r.config.Sync.MaxPages),
			pager.WithRetry(r.config.Sync.RetryAttempts, pager.DefaultBaseDelay, pager.DefaultMaxDelay),
		},
		Logger: r.logger,
	}
	if r.runs != nil {
		opts.Recorder = r.runs
	}

	r.engine = tasks.NewEngine(r.library, r.store, opts)
	r.opened.engine = true
	return nil
}

func (r *Runner) newSpotifyService(cmd *cli.Command) (*services.SpotifyService, error) {
	if !r.config.HasSpotifyCredentials() {
		return nil, fmt.Errorf(
			"%w: set credentials.spotify in %s or SPOTIFY_ID and SPOTIFY_SECRET", shared.ErrMissingCredentials, r.configPath,
		)
	}

	opts := []services.Option{services.WithRateLimit(r.config.Sync.RateLimit)}
	if cmd.Bool("trace") {
		opts = append(opts, services.WithTrace(r.logger))
	}
	return services.NewSpotifyService(r.config.Credentials.Spotify.Map(), opts...)
}

// login authenticates with the cached token. Refreshed tokens are written back to the cache.
func (r *Runner) login(ctx context.Context, cmd *cli.Command) error {
	svc, err := r.newSpotifyService(cmd)
	if err != nil {
		return err
	}

	username, err := r.username()
	if err != nil {
		return err
	}

	r.tokens = services.NewTokenCache(r.configDir(), username)
	token, err := r.tokens.Load()
	if err != nil {
		return err
	}

	svc.SetTokenRefreshCallback(func(t *oauth2.Token) {
		if err := r.tokens.Save(t); err != nil {
			r.logger.Warn("failed to save refreshed token", "error", err)
		}
	})

	if err := svc.Authenticate(ctx, token); err != nil {
		return err
	}

	r.spotify, r.library = svc, svc
	return nil
}

// username returns the configured Spotify username, prompting for it and saving the config on first use.
func (r *Runner) username() (string, error) {
	if r.config.Username != "" {
		return r.config.Username, nil
	}

	r.writePlain("Type your Spotify username: ")
	scanner := bufio.NewScanner(r.input)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("failed to read username: %w", err)
		}
		return "", fmt.Errorf("%w: username", shared.ErrMissingArgument)
	}

	username := strings.TrimSpace(scanner.Text())
	if username == "" {
		return "", fmt.Errorf("%w: username", shared.ErrMissingArgument)
	}

	r.config.Username = username
	if err := shared.SaveConfig(shared.ExpandPath(r.configPath), r.config); err != nil {
		return "", err
	}
	r.logger.Info("saved username", "username", username, "config", r.configPath)
	return username, nil
}

// track runs job, reporting progress as plain lines or, with useTUI, through the progress view.
func (r *Runner) track(ctx context.Context, title string, useTUI bool, job ui.Job) ([]*tasks.Result, error) {
	if useTUI {
		restore, err := r.redirectLogs()
		if err != nil {
			return nil, err
		}
		defer restore()
		return ui.RunProgress(ctx, r.output, title, job)
	}

	progress := make(chan tasks.ProgressUpdate, 64)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progress {
			r.report(update)
		}
	}()

	results, err := job(ctx, progress)
	close(progress)
	<-done
	return results, err
}

// report logs progress. Lines meant for the output are printed from the results by [Runner.printResults].
func (r *Runner) report(update tasks.ProgressUpdate) {
	switch update.Phase {
	case tasks.FollowArtist, tasks.Rollover:
		r.logger.Info(update.Message)
	default:
		r.logger.Debug(update.Message, "phase", update.Phase)
	}
}

func (r *Runner) printResults(results []*tasks.Result) error {
	for _, result := range results {
		for _, line := range result.Details() {
			if err := r.writePlain("%s\n", line); err != nil {
				return err
			}
		}
		for _, line := range result.Summary() {
			if err := r.writePlain("%s\n", ui.SummaryLine(line)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) release(lock *shared.RunLock) {
	if err := lock.Release(); err != nil {
		r.logger.Warn("failed to release lock", "error", err)
	}
}
