package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/hostcert-tools/hostcert"
	hostcertdb "github.com/hostcert-tools/hostcert/zombiezen"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

const (
	exitOK        = 0
	exitUsage     = 1
	exitCacheInit = 2
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: %s [flags] MODE

Modes (case-sensitive):
  REQUEST   read "hostname [alias ...]" lines from stdin, generate key+CSR and submit
  GET       read hostnames from stdin, attempt certificate retrieval
  GETALL    attempt retrieval for every pending request
  DROP      read hostnames from stdin, discard their pending requests
  LIST      print pending hostnames
  PURGE     delete the whole request cache, trust anchor included

Flags:
`, os.Args[0])
	flag.PrintDefaults()
}

func main() {
	logLevel := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	var (
		configPath = flag.String("config", "", "path to config TOML file")
		email      = flag.String("email", "", "requester contact email (REQUEST)")
		raID       = flag.String("ra-id", "", "registration authority number (REQUEST)")
		raName     = flag.String("ra-name", "", "registration authority name (REQUEST)")
		org        = flag.String("org", "", "subject organization (REQUEST)")
		phone      = flag.String("phone", "", "requester phone number (REQUEST)")
		salutation = flag.String("salutation", "", "salutation variant for the request form")
		comment    = flag.String("comment", "", "free-text comment sent with every request")
		domain     = flag.String("domain", "", "domain suffix appended to every hostname and alias")
		aliases    = flag.String("aliases", "", "comma-separated aliases added to every host")
		cacheDir   = flag.String("cache", "", "request cache directory override")
		outDir     = flag.String("out", "", "output directory for finalized key+certificate pairs")
		userCert   = flag.String("user-cert", "", "user certificate for client auth")
		userKey    = flag.String("user-key", "", "key for -user-cert")
		journal    = flag.String("journal", "", "path to SQLite journal of lifecycle events")
	)
	flag.Usage = usage
	flag.Parse()

	mode := flag.Arg(0)
	if mode == "" || !hostcert.KnownMode(mode) {
		usage()
		os.Exit(exitUsage)
	}

	cfg := hostcert.DefaultConfig()
	if *configPath != "" {
		if err := hostcert.LoadConfig(*configPath, cfg); err != nil {
			logger.Error("Failed to load config file", "path", *configPath, "error", err)
			os.Exit(exitUsage)
		}
	}

	// Flags given on the command line win over config file and defaults.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "email":
			cfg.Email = *email
		case "ra-id":
			cfg.RAID = *raID
		case "ra-name":
			cfg.RAName = *raName
		case "org":
			cfg.Organization = *org
		case "phone":
			cfg.Phone = *phone
		case "salutation":
			cfg.Salutation = *salutation
		case "comment":
			cfg.Comment = *comment
		case "domain":
			cfg.DomainSuffix = *domain
		case "aliases":
			cfg.GlobalAliases = splitAliases(*aliases)
		case "cache":
			cfg.CacheDir = *cacheDir
		case "out":
			cfg.OutputDir = *outDir
		case "user-cert":
			cfg.ClientCertFile = *userCert
		case "user-key":
			cfg.ClientKeyFile = *userKey
		case "journal":
			cfg.JournalFile = *journal
		}
	})

	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", "error", err)
		os.Exit(exitUsage)
	}
	if hostcert.Mode(mode) == hostcert.ModeRequest {
		if err := cfg.ValidateRequestFields(); err != nil {
			logger.Error("Missing mandatory REQUEST fields", "error", err)
			usage()
			os.Exit(exitUsage)
		}
	}

	cache := hostcert.NewCache(cfg.CacheDir, logger)
	if err := cache.EnsureReady(); err != nil {
		logger.Error("Failed to prepare cache directory", "dir", cfg.CacheDir, "error", err)
		os.Exit(exitCacheInit)
	}

	var recorder hostcert.Recorder
	var pool *sqlitex.Pool
	if cfg.JournalFile != "" {
		var err error
		pool, err = sqlitex.NewPool(cfg.JournalFile, sqlitex.PoolOptions{
			Flags:    sqlite.OpenReadWrite | sqlite.OpenCreate,
			PoolSize: 1,
		})
		if err != nil {
			logger.Error("Failed to open journal", "path", cfg.JournalFile, "error", err)
			os.Exit(exitUsage)
		}
		if err := hostcertdb.EnsureSchema(pool); err != nil {
			logger.Error("Failed to prepare journal schema", "path", cfg.JournalFile, "error", err)
			_ = pool.Close()
			os.Exit(exitUsage)
		}
		recorder = hostcertdb.NewRecorder(pool)
	}

	downloader := &hostcert.ChainDownloader{URL: cfg.ChainURL}
	client := hostcert.NewWebClient(hostcert.ClientConfig{
		SubmitURL:       cfg.SubmitURL,
		FetchURL:        cfg.FetchURL,
		TrustAnchorPath: cache.TrustAnchorPath(),
		ClientCertFile:  cfg.ClientCertFile,
		ClientKeyFile:   cfg.ClientKeyFile,
	}, downloader, logger)
	generator := &hostcert.CSRGenerator{Organization: cfg.Organization}

	manager := hostcert.NewManager(cfg, cache, generator, client, hostcert.PEMCertVerifier{}, recorder, logger)

	ctx := context.Background()
	code := run(ctx, hostcert.Mode(mode), manager, logger)

	if pool != nil {
		if err := pool.Close(); err != nil {
			logger.Error("Failed to close journal", "error", err)
		}
	}
	os.Exit(code)
}

func run(ctx context.Context, mode hostcert.Mode, manager *hostcert.Manager, logger *slog.Logger) int {
	switch mode {
	case hostcert.ModeRequest:
		return forEachLine(logger, func(hostname string, aliases []string) int {
			if err := manager.RequestHost(ctx, hostname, aliases); err != nil {
				// A half-submitted request cannot be retried safely, abort
				// the whole run.
				return exitUsage
			}
			return exitOK
		})

	case hostcert.ModeGet:
		// Failures local to one host never abort the batch; the entry just
		// stays pending for a later attempt.
		return forEachLine(logger, func(hostname string, _ []string) int {
			_ = manager.FetchHost(ctx, hostname)
			return exitOK
		})

	case hostcert.ModeDrop:
		return forEachLine(logger, func(hostname string, _ []string) int {
			_ = manager.DropHost(hostname)
			return exitOK
		})

	case hostcert.ModeGetAll:
		if err := manager.FetchAll(ctx); err != nil {
			return exitUsage
		}
		return exitOK

	case hostcert.ModeList:
		hostnames, err := manager.ListPending()
		if err != nil {
			logger.Error("Failed to list pending requests", "error", err)
			return exitUsage
		}
		for _, hostname := range hostnames {
			fmt.Println(hostname)
		}
		return exitOK

	case hostcert.ModePurge:
		if err := manager.Purge(); err != nil {
			return exitUsage
		}
		return exitOK
	}

	usage()
	return exitUsage
}

// forEachLine feeds stdin lines ("hostname [alias ...]") one at a time into
// fn, stopping at the first nonzero result.
func forEachLine(logger *slog.Logger, fn func(hostname string, aliases []string) int) int {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if code := fn(fields[0], fields[1:]); code != exitOK {
			return code
		}
	}
	if err := scanner.Err(); err != nil {
		logger.Error("Failed reading hostnames from stdin", "error", err)
		return exitUsage
	}
	return exitOK
}

func splitAliases(raw string) []string {
	if raw == "" {
		return nil
	}
	var aliases []string
	for _, alias := range strings.Split(raw, ",") {
		if alias = strings.TrimSpace(alias); alias != "" {
			aliases = append(aliases, alias)
		}
	}
	return aliases
}
