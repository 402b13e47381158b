package main

import (
	"chat-relay/codec"
	"chat-relay/contract"
	"chat-relay/infrastructure/server"
	"chat-relay/infrastructure/storage"
	"chat-relay/infrastructure/ws"
	"chat-relay/internal"
	"chat-relay/moderation"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/services"
	"context"
	goerrors "errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component and blocks until a signal or a server error.
func run() error {
	// 1. Configuration & Logger
	if err := godotenv.Load(); err != nil && !goerrors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Blob store
	store, closeStore, err := openBlobStore(context.Background(), config, log)
	if err != nil {
		return err
	}
	defer closeStore()

	// 3. Codec, moderation and the session runtime
	c, err := codec.New(config.Codec, config.CodecKey)
	if err != nil {
		return fmt.Errorf("codec error: %w", err)
	}
	opts := []runtime.RouterOption{runtime.WithPlaintextEcho(config.IncludePlaintext)}
	if words := config.Words(); len(words) > 0 {
		char, err := internal.CharacterRune(config.CharReplacement)
		if err != nil {
			return err
		}
		moderator, err := moderation.NewModerator(words, char)
		if err != nil {
			return fmt.Errorf("moderation error: %w", err)
		}
		opts = append(opts, runtime.WithInspector(moderator))
	}
	registry := runtime.NewRegistry()
	router := runtime.NewRouter(log, registry, c, opts...)

	// 4. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 5. Supervised background workers
	sup := workers.NewSupervisor(log, config.RestartInterval)
	sup.Add(workers.NewHeartbeatWorker(log, registry, config.HeartbeatInterval))
	go sup.Run(ctx)

	// 6. HTTP boundary
	events := ws.NewHandler(log, router, config.ConnectionBufferSize)
	srv := server.NewServer(log, config.Address(), server.Deps{
		Events:         events,
		Uploads:        services.NewUploadService(log, store, config.MaxUploadBytes),
		Blobs:          store,
		Participants:   registry,
		MaxUploadBytes: config.MaxUploadBytes,
		StaticDir:      config.StaticDir,
	})

	errChan := make(chan error, 1)
	go func() {
		log.Info("Chat relay ready",
			"codec", c.Name(),
			"blob_backend", config.BlobBackend,
			"moderation", len(config.Words()) > 0)
		if err := srv.Start(); err != nil {
			errChan <- err
		}
	}()

	// 7. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 8. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", "error", err)
	}
	events.CloseAll()
	sup.Stop()
	log.Info("Program stopped cleanly")

	return nil
}

// openBlobStore selects the upload backend. The returned func releases it.
func openBlobStore(ctx context.Context, config internal.Config, log *slog.Logger) (contract.BlobStore, func(), error) {
	switch config.BlobBackend {
	case storage.BackendDisk, "":
		store, err := storage.NewDiskStore(config.UploadDir, log)
		return store, func() {}, err
	case storage.BackendBadger:
		db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
			WithLoggingLevel(badger.WARNING))
		if err != nil {
			return nil, nil, fmt.Errorf("database opening failed: %w", err)
		}
		return storage.NewBadgerStore(db, log), func() {
			log.Info("Closing BadgerDB...")
			_ = db.Close()
		}, nil
	case storage.BackendS3:
		if config.S3Bucket == "" {
			return nil, nil, fmt.Errorf("S3_BUCKET is required for the s3 backend")
		}
		client, err := storage.NewS3Client(ctx, storage.S3Config{
			Bucket:    config.S3Bucket,
			Region:    config.S3Region,
			Endpoint:  config.S3Endpoint,
			AccessKey: config.S3AccessKey,
			SecretKey: config.S3SecretKey,
		})
		if err != nil {
			return nil, nil, err
		}
		return storage.NewS3Store(client, config.S3Bucket, log), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown BLOB_BACKEND %q", config.BlobBackend)
	}
}
