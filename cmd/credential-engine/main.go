// Command credential-engine runs the HTTP service described in
// spec.md §6: bootstrap, issuance, status lists, the challenge/verify
// ceremony, and the holder wallet, all in one process the way
// boulder-wfe2 is one process wired directly to ra/sa instead of over
// gRPC (this repo has no multi-process boundary, see DESIGN.md).
package main

import (
	"context"
	"net/http"
	"os"

	"github.com/jmhodges/clock"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"github.com/88448844/self-sovereign-identity-SSI/archive"
	"github.com/88448844/self-sovereign-identity-SSI/audit"
	"github.com/88448844/self-sovereign-identity-SSI/cmd"
	"github.com/88448844/self-sovereign-identity-SSI/kvstore"
	"github.com/88448844/self-sovereign-identity-SSI/metrics/measured_http"
	"github.com/88448844/self-sovereign-identity-SSI/nonce"
	"github.com/88448844/self-sovereign-identity-SSI/presentation"
	"github.com/88448844/self-sovereign-identity-SSI/sa"
	"github.com/88448844/self-sovereign-identity-SSI/statuslist"
	"github.com/88448844/self-sovereign-identity-SSI/wfe"
)

func main() {
	conf := cmd.ConfigFromEnv()
	if f := os.Getenv("CONFIG_FILE"); f != "" {
		cmd.FailOnError(cmd.ReadConfigFile(f, &conf), "reading config file")
	}

	stats, logger := cmd.StatsAndLogging("credential-engine")
	logger.Info(cmd.VersionString())

	if conf.Env == "prod" && conf.IssuerAdminToken == "" {
		logger.Err("ISSUER_ADMIN_TOKEN is unset in a prod environment: admin routes are open to any caller")
	}

	clk := clock.New()

	dbMap, err := sa.NewDbMap("mysql", conf.DBDSN, logger)
	cmd.FailOnError(err, "connecting to database")
	store := sa.NewCachedStore(sa.New(dbMap, clk), "credential-engine")

	redisStore, err := kvstore.NewRedisStore(conf.RedisURL)
	cmd.FailOnError(err, "connecting to redis")

	keys, err := buildKeyProvider(conf)
	cmd.FailOnError(err, "setting up key provider")

	auditQueue, err := audit.Open(conf.AuditDir)
	cmd.FailOnError(err, "opening audit queue")
	defer auditQueue.Close()

	nonces := nonce.New(redisStore, clk)
	sl := statuslist.New(store)
	if conf.ArchiveBucket != "" {
		arch, err := archive.New(context.Background(), conf.ArchiveBucket)
		cmd.FailOnError(err, "setting up status list archiver")
		sl.Archiver = arch
		sl.OnArchiveError = func(listID string, err error) {
			logger.Err("archiving status list " + listID + ": " + err.Error())
		}
	}
	builder := presentation.NewBuilder(nonces, clk)

	impl := wfe.New(keys, store, redisStore, nonces, builder, sl, auditQueue, logger, clk, stats)
	if conf.IssuerAdminToken != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(conf.IssuerAdminToken), bcrypt.DefaultCost)
		cmd.FailOnError(err, "hashing admin token")
		impl.AdminTokenHash = hash
	}
	impl.ServicePrefix = conf.ServicePrefix
	impl.AllowOrigins = conf.CORSOrigins()

	mux := impl.Handler().(*http.ServeMux)
	handler := measured_http.New(mux, clk)

	srv := &http.Server{Addr: conf.ListenAddr, Handler: handler}

	g, _ := errgroup.WithContext(context.Background())
	g.Go(func() error {
		logger.Info("listening on " + conf.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	go cmd.CatchSignals(logger, func() {
		_ = srv.Shutdown(context.Background())
		_ = redisStore.Close()
	})

	cmd.FailOnError(g.Wait(), "serving HTTP")
}
