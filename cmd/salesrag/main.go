package main

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/salesrag/salesrag/internal/types"
	"github.com/salesrag/salesrag/pkg/config"
	"github.com/salesrag/salesrag/pkg/ingest"
	"github.com/salesrag/salesrag/pkg/llm"
	"github.com/salesrag/salesrag/pkg/rag"
	"github.com/salesrag/salesrag/pkg/store"
	"github.com/salesrag/salesrag/server"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "salesrag",
		Short:         "Local RAG assistant over a folder of sales documentation",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")

	root.AddCommand(serveCmd(), ingestCmd(), inspectCmd(), clearCmd(), setupCmd())

	if err := root.Execute(); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

// app bundles the wired-up components the subcommands share.
type app struct {
	config   *config.Config
	store    types.VectorStore
	embedder *llm.Embedder
	chat     *llm.ChatEngine
}

func buildApp() (*app, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return nil, fmt.Errorf("invalid configuration:\n  %s", strings.Join(msgs, "\n  "))
	}

	vs, err := store.NewWithConfig(store.Config{
		Backend:    cfg.Store.Backend,
		Path:       cfg.Store.Path,
		Collection: cfg.Store.Collection,
		ConnString: cfg.Store.URL,
		TableName:  cfg.Store.TableName,
		VectorDim:  cfg.Store.VectorDim,
		BatchSize:  cfg.Store.BatchSize,
	})
	if err != nil {
		return nil, err
	}

	embedder, err := llm.NewEmbedder(llm.EmbedderConfig{
		Model:   cfg.LLM.EmbeddingModel,
		BaseURL: cfg.LLM.BaseURL,
	})
	if err != nil {
		vs.Close()
		return nil, err
	}

	chat, err := llm.NewWithConfig(llm.ChatConfig{
		Model:       cfg.LLM.ChatModel,
		Temperature: *cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		BaseURL:     cfg.LLM.BaseURL,
	})
	if err != nil {
		vs.Close()
		return nil, err
	}

	return &app{config: cfg, store: vs, embedder: embedder, chat: chat}, nil
}

func (a *app) ingestor(onProgress func(path string, chunks int, err error)) *ingest.Ingestor {
	return ingest.NewWithConfig(ingest.Config{
		ChunkSize:      a.config.Ingest.ChunkSize,
		ChunkOverlap:   *a.config.Ingest.ChunkOverlap,
		Extensions:     a.config.Ingest.Extensions,
		EmbedRateLimit: a.config.Ingest.EmbedRateLimit,
		OnProgress:     onProgress,
	}, a.embedder, a.store)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the local web UI",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.store.Close()

			engine := rag.NewEngine(rag.Config{
				TopK:           a.config.Retrieval.TopK,
				PromptTemplate: a.config.LLM.PromptTemplate,
			}, a.embedder, a.store, a.chat)

			baseURL := a.config.LLM.BaseURL
			models := []string{a.config.LLM.ChatModel, a.config.LLM.EmbeddingModel}
			if err := llm.CheckHealth(cmd.Context(), baseURL, models...); err != nil {
				color.Yellow("Warning: %v", err)
			}

			srv := server.New(server.Config{
				Host:       a.config.UI.Host,
				Port:       a.config.UI.Port,
				Streaming:  a.config.UI.Streaming,
				Collection: a.config.Store.Collection,
				DocsDir:    a.config.Ingest.DocsDir,
				HealthFn: func(ctx context.Context) error {
					return llm.CheckHealth(ctx, baseURL, models...)
				},
			}, engine, a.ingestor(nil), a.store)

			return srv.Run()
		},
	}
}

func ingestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ingest [folder]",
		Short: "Ingest a folder of HTML documents into the vector store",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.store.Close()

			dir := a.config.Ingest.DocsDir
			if len(args) > 0 {
				dir = args[0]
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			ing := a.ingestor(nil)
			total, err := ing.CountFiles(dir)
			if err != nil {
				return fmt.Errorf("invalid folder path: %s", dir)
			}
			if total == 0 {
				color.Yellow("No ingestible documents found in %s", dir)
				return nil
			}

			bar := progressbar.NewOptions(total,
				progressbar.OptionSetDescription("Ingesting"),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)
			ing = a.ingestor(func(path string, chunks int, err error) {
				bar.Add(1)
			})

			report, err := ing.IngestDirectory(ctx, dir)
			if report != nil {
				fmt.Println(report.Summary())
				if report.Failed() > 0 {
					color.Red("%d of %d files failed", report.Failed(), len(report.Files))
				}
				color.Green("Indexed %d chunks from %d files", report.TotalChunks, len(report.Files)-report.Failed())
			}
			return err
		},
	}
}

func inspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Show what is stored in the vector database",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.store.Close()

			report, err := store.Inspect(cmd.Context(), a.store)
			if err != nil {
				return err
			}
			fmt.Print(report.Render(a.config.Store.Collection))
			return nil
		},
	}
}

func clearCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all stored chunks",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				fmt.Print("Delete all stored chunks? [y/N] ")
				var answer string
				fmt.Scanln(&answer)
				if strings.ToLower(strings.TrimSpace(answer)) != "y" {
					fmt.Println("Aborted.")
					return nil
				}
			}

			a, err := buildApp()
			if err != nil {
				return err
			}
			defer a.store.Close()

			if err := a.store.Clear(cmd.Context()); err != nil {
				return err
			}
			color.Green("Database cleared.")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation")
	return cmd
}

func setupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Unpack the bundled sample docs and check the Ollama models",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}

			archive := filepath.Join("data", "local_docs.zip")
			if _, err := os.Stat(archive); err == nil {
				if err := unzip(archive, cfg.Ingest.DocsDir); err != nil {
					return fmt.Errorf("failed to unpack %s: %w", archive, err)
				}
				color.Green("Unpacked sample docs to %s", cfg.Ingest.DocsDir)
			} else {
				color.Yellow("No sample docs archive found at %s, skipping", archive)
			}

			models := []string{cfg.LLM.ChatModel, cfg.LLM.EmbeddingModel}
			if err := llm.CheckHealth(cmd.Context(), cfg.LLM.BaseURL, models...); err != nil {
				return err
			}
			color.Green("Ollama is reachable and models %s are available", strings.Join(models, ", "))
			return nil
		},
	}
}

func unzip(src, dest string) error {
	r, err := zip.OpenReader(src)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		target := filepath.Join(dest, f.Name)
		if !strings.HasPrefix(target, filepath.Clean(dest)+string(os.PathSeparator)) {
			return fmt.Errorf("illegal path in archive: %s", f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := extractFile(f, target); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.Create(target)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, rc)
	return err
}
