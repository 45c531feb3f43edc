// chimerad is the background daemon: it owns the job queue, the extraction
// pipeline, the correlation engine, and the IPC control socket.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"chimera/internal/catalog"
	"chimera/internal/config"
	"chimera/internal/convo"
	"chimera/internal/correlation"
	"chimera/internal/daemon"
	"chimera/internal/embedding"
	"chimera/internal/entities"
	"chimera/internal/extraction"
	"chimera/internal/ipc"
	"chimera/internal/logging"
	"chimera/internal/pipeline"
	"chimera/internal/queue"
	"chimera/internal/startup"
	"chimera/internal/vectorstore"
	"chimera/internal/watch"
)

func main() {
	configFlag := flag.String("config", "", "configuration file path")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, *configFlag); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("prepare directories: %w", err)
	}

	logger, err := logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stderr", cfg.LogPath()},
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	queueStore, err := queue.Open(cfg)
	if err != nil {
		return fmt.Errorf("open queue store: %w", err)
	}
	jobQueue := queue.New(queueStore, logger)

	catalogStore, err := catalog.Open(cfg)
	if err != nil {
		_ = queueStore.Close()
		return fmt.Errorf("open catalog store: %w", err)
	}

	vectors, err := vectorstore.Open(cfg.VectorDBPath())
	if err != nil {
		_ = queueStore.Close()
		_ = catalogStore.Close()
		return fmt.Errorf("open vector store: %w", err)
	}

	embedder, err := embedding.New(embedding.Config{
		Provider:   embedding.ProviderType(cfg.Embedding.Provider),
		Model:      cfg.Embedding.Model,
		Dimension:  cfg.Embedding.Dimension,
		OllamaHost: cfg.Embedding.OllamaHost,
	})
	if err != nil {
		return fmt.Errorf("init embedder: %w", err)
	}

	chunker := pipeline.NewChunker(cfg.Pipeline.ChunkTargetTokens, cfg.Pipeline.ChunkMaxTokens, cfg.Pipeline.CodeWindowLines)
	coordinator := pipeline.New(
		extraction.NewRegistry(),
		chunker,
		entities.NewHeuristic(),
		embedder,
		catalogStore,
		vectors,
		logger,
	)

	engine := correlation.New(catalogStore, correlation.Config{
		MaxEntities:         cfg.Correlation.MaxEntities,
		MaxPairsPerFile:     cfg.Correlation.MaxPairsPerFile,
		MaxTotalPairs:       cfg.Correlation.MaxTotalPairs,
		DiscoveryConfidence: cfg.Correlation.DiscoveryConfidence,
		DiscoveryMinSources: cfg.Correlation.DiscoveryMinSources,
	}, logger)

	var watcher *watch.Watcher
	if len(cfg.Paths.LibraryRoots) > 0 {
		watcher, err = watch.New(cfg.Daemon.WatchQueueSize, logger)
		if err != nil {
			return fmt.Errorf("init watcher: %w", err)
		}
		for _, root := range cfg.Paths.LibraryRoots {
			if err := watcher.AddRoot(root); err != nil {
				logger.Warn("cannot watch library root",
					logging.Args(logging.String("root", root), logging.Error(err))...)
			}
		}
	}

	d, err := daemon.New(cfg, daemon.Deps{
		Queue:       jobQueue,
		Catalog:     catalogStore,
		Vectors:     vectors,
		Pipeline:    coordinator,
		Correlation: engine,
		Exports:     convo.NewRegistry(),
		Watcher:     watcher,
	}, logger)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	ipcServer, err := ipc.NewServer(ctx, cfg.Paths.SocketPath, d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	progress := func(name string, state startup.State, detail string) {
		if detail != "" {
			fmt.Fprintf(os.Stderr, "startup: %-24s %s (%s)\n", name, state, detail)
			return
		}
		fmt.Fprintf(os.Stderr, "startup: %-24s %s\n", name, state)
	}
	if err := d.Start(ctx, progress); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	<-ctx.Done()
	logger.Info("chimerad shutting down")
	d.Stop()
	return nil
}
