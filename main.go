package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"invoicescan/pkg/config"
	"invoicescan/pkg/ocr/engines"
	"invoicescan/pkg/region"
	"invoicescan/pkg/store"
	"invoicescan/process/batch"
)

type runCmd struct {
	config.Batch
}

type watchCmd struct {
	config.Batch
	Debounce time.Duration `arg:"--debounce,env:WATCH_DEBOUNCE" default:"300ms" help:"quiet period before a re-run"`
}

type serveCmd struct {
	config.Serve
}

type migrateCmd struct {
	DBDSN string `arg:"--db-dsn,env:DB_DSN,required" help:"postgres DSN"`
}

type hashPasswordCmd struct {
	Password string `arg:"positional,required" help:"password to hash for SERVE_PASSWORD_HASH"`
}

type args struct {
	Run          *runCmd          `arg:"subcommand:run" help:"process every image in the input directory once"`
	Watch        *watchCmd        `arg:"subcommand:watch" help:"re-run whenever images in the input directory change"`
	Serve        *serveCmd        `arg:"subcommand:serve" help:"extract single uploaded images over HTTP"`
	Migrate      *migrateCmd      `arg:"subcommand:migrate" help:"create or update the run store tables"`
	HashPassword *hashPasswordCmd `arg:"subcommand:hash-password" help:"print a bcrypt hash for the serve password"`
	Verbose      bool             `arg:"-v,--verbose,env:VERBOSE" help:"debug logging"`
}

func (args) Description() string {
	return "invoicescan reads client name, address and tax id from invoice images into a spreadsheet"
}

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	// .env is loaded before parsing so its values act as env fallbacks
	if err := config.LoadDotEnv(".env"); err != nil {
		log.Fatalf("load .env: %v", err)
	}
	var a args
	p := arg.MustParse(&a)
	if a.Verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch {
	case a.Run != nil:
		err = runBatch(ctx, a.Run.Batch, log)
	case a.Watch != nil:
		err = watchBatch(ctx, a.Watch.Batch, a.Watch.Debounce, log)
	case a.Serve != nil:
		err = serve(ctx, a.Serve.Serve, log)
	case a.Migrate != nil:
		err = migrate(a.Migrate.DBDSN, log)
	case a.HashPassword != nil:
		var h string
		if h, err = hashPassword(a.HashPassword.Password); err == nil {
			fmt.Println(h)
		}
	default:
		p.WriteHelp(os.Stdout)
		os.Exit(2)
	}
	if err != nil {
		log.Errorf("%v", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps configuration errors to 2 and everything else to 1.
func exitCode(err error) int {
	var ce *config.Error
	if errors.As(err, &ce) {
		return 2
	}
	return 1
}

// newProcessor wires engine, options and, when a DSN is set, the run store.
// The returned close func releases the store.
func newProcessor(c config.Batch, log logrus.FieldLogger) (*batch.Processor, func(), error) {
	opts, err := batch.OptionsFromConfig(c)
	if err != nil {
		return nil, nil, err
	}
	engine, err := engines.New(c.OCR)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {}
	if c.DBDSN != "" {
		st, err := store.Open(c.DBDSN)
		if err != nil {
			return nil, nil, &config.Error{Field: "db-dsn", Reason: "cannot connect", Err: err}
		}
		if err := st.Migrate(); err != nil {
			log.Warnf("migration warning: %v", err)
		}
		opts.Sink = st
		closeFn = func() { _ = st.Close() }
	}
	proc, err := batch.New(engine, opts, log)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return proc, closeFn, nil
}

func runBatch(ctx context.Context, c config.Batch, log logrus.FieldLogger) error {
	proc, closeFn, err := newProcessor(c, log)
	if err != nil {
		return err
	}
	defer closeFn()
	res, err := proc.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("%d invoices, %d failed -> %s\n", len(res.Files), res.Failed(), c.OutputPath)
	return nil
}

func watchBatch(ctx context.Context, c config.Batch, debounce time.Duration, log logrus.FieldLogger) error {
	proc, closeFn, err := newProcessor(c, log)
	if err != nil {
		return err
	}
	defer closeFn()
	return proc.Watch(ctx, debounce)
}

func serve(ctx context.Context, c config.Serve, log *logrus.Logger) error {
	if err := c.Validate(); err != nil {
		return err
	}
	engine, err := engines.New(c.OCR)
	if err != nil {
		return err
	}
	r, err := region.Parse(c.Region)
	if err != nil {
		return &config.Error{Field: "region", Reason: "invalid region", Err: err}
	}
	ex, err := batch.NewExtractor(engine, r, c.PreprocessOptions())
	if err != nil {
		return err
	}
	s := &server{
		extractor: ex,
		auth:      newAuthenticator(c.PasswordHash, c.JWTSecret),
		maxUpload: c.MaxUpload,
		log:       log,
	}
	if c.DBDSN != "" {
		st, err := store.Open(c.DBDSN)
		if err != nil {
			return &config.Error{Field: "db-dsn", Reason: "cannot connect", Err: err}
		}
		defer st.Close()
		s.records = st
	}
	if !s.auth.enabled() {
		log.Warn("no SERVE_PASSWORD_HASH set; /extract and /records are unauthenticated")
	}

	if log.GetLevel() < logrus.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}
	engineHTTP := gin.New()
	engineHTTP.Use(gin.LoggerWithWriter(log.Writer()), gin.Recovery())
	engineHTTP.MaxMultipartMemory = c.MaxUpload
	setupRoutes(engineHTTP, s)

	srv := &http.Server{Addr: c.Addr, Handler: engineHTTP}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	log.Infof("Listening on %s (engine=%s region=%s)", c.Addr, engine.Name(), r)
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func migrate(dsn string, log logrus.FieldLogger) error {
	st, err := store.Open(dsn)
	if err != nil {
		return &config.Error{Field: "db-dsn", Reason: "cannot connect", Err: err}
	}
	defer st.Close()
	if err := st.Migrate(); err != nil {
		return err
	}
	log.Infof("migration completed")
	return nil
}
