package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/rowantree/go-chunkvault/internal/config"
	"github.com/rowantree/go-chunkvault/internal/pkg/cache"
	"github.com/rowantree/go-chunkvault/internal/pkg/logger"
	"github.com/rowantree/go-chunkvault/internal/protocol"
	"github.com/rowantree/go-chunkvault/internal/server/router"
	"github.com/rowantree/go-chunkvault/internal/server/storage/blobstore"
	"github.com/rowantree/go-chunkvault/internal/server/storage/metastore"
	"github.com/rowantree/go-chunkvault/internal/server/storage/tokenstore"
	"github.com/rowantree/go-chunkvault/internal/server/uploadservice"
	"github.com/rowantree/go-chunkvault/internal/setup"
)

// sweepInterval is how often Server sweeps pending Manifests whose
// UploadToken expired without a merge completing.
const sweepInterval = 10 * time.Minute

// Server wraps the upload server's HTTP engine plus the infrastructure
// handles Run needs to release on shutdown: NewServer builds every
// dependency, Run owns the listen/shutdown loop.
type Server struct {
	router      *http.Server
	db          *gorm.DB
	redisClient *redis.Client
	sweepCancel context.CancelFunc
}

// NewServer builds every server-side dependency: MySQL-backed manifest
// metadata, a content-addressed BlobStore chosen by cfg.Storage.Type,
// a Redis-backed token store, and the upload service that ties them
// together behind the four-call wire contract plus ranged reads.
func NewServer(cfg *config.Config) (*Server, error) {
	mysqlDB, err := setup.InitMySQL(&cfg.MySQL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MySQL: %w", err)
	}

	redisClient, err := setup.InitRedis(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Redis: %w", err)
	}

	blobs, err := blobstore.New(context.Background(), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize blob store: %w", err)
	}

	meta := metastore.NewGormStore(mysqlDB)
	redisCache := cache.NewRedisCache(redisClient)
	tokens := tokenstore.NewRedisStore(redisCache)
	signer := protocol.NewTokenSigner(cfg.Token.SecretKey, cfg.Token.Issuer, cfg.Token.ExpiresIn)

	uploadSvc := uploadservice.New(blobs, meta, tokens, signer, cfg.Chunk)

	sweepCtx, sweepCancel := context.WithCancel(context.Background())
	go uploadSvc.StartExpirySweep(sweepCtx, sweepInterval)

	engine := router.InitRouter(uploadSvc)

	addr := ":" + cfg.Server.Port
	logger.Info(fmt.Sprintf("Server is running on %s", cfg.Server.Port))
	httpServer := &http.Server{
		Addr:    addr,
		Handler: engine,
	}

	return &Server{
		router:      httpServer,
		db:          mysqlDB,
		redisClient: redisClient,
		sweepCancel: sweepCancel,
	}, nil
}

// Run starts the HTTP server and blocks until stopChan receives a signal,
// then shuts down gracefully.
func (s *Server) Run(ctx context.Context, stopChan chan os.Signal) {
	defer s.sweepCancel()
	defer s.redisClient.Close()
	defer func() {
		if err := setup.CloseMySQLDB(s.db); err != nil {
			logger.Warn("Error closing MySQL connection", zap.Error(err))
		}
	}()

	go func() {
		if err := s.router.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	<-stopChan
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.router.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}
	logger.Info("Server exited gracefully")
}
