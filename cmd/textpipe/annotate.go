package main

import (
	"errors"
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/textpipe/internal/annotators"
	"github.com/jackzampolin/textpipe/internal/batch"
	"github.com/jackzampolin/textpipe/internal/config"
	"github.com/jackzampolin/textpipe/internal/home"
	"github.com/jackzampolin/textpipe/internal/index"
	"github.com/jackzampolin/textpipe/internal/outputs"
	"github.com/jackzampolin/textpipe/internal/pipeline"
	"github.com/jackzampolin/textpipe/internal/report"
)

var (
	annotateFile      string
	annotateFileList  string
	annotateSet       []string
	annotateNoEnforce bool
)

// annotateFlagKeys maps annotate flags onto config keys.
var annotateFlagKeys = map[string]string{
	"annotators":        "annotators",
	"output-dir":        "batch.output_directory",
	"input-dir":         "batch.input_directory",
	"format":            "batch.output_format",
	"output-extension":  "batch.output_extension",
	"replace-extension": "batch.replace_extension",
	"no-clobber":        "batch.no_clobber",
	"randomize":         "batch.randomize",
	"seed":              "batch.seed",
	"continue-on-error": "batch.continue_on_error",
	"threads":           "batch.threads",
	"exclude-files":     "batch.exclude_files",
	"extension":         "batch.extension",
	"serializer":        "batch.serializer",
	"input-serializer":  "batch.input_serializer",
	"output-serializer": "batch.output_serializer",
	"pdftotext":         "batch.pdftotext",
	"index-db":          "index.path",
}

var annotateCmd = &cobra.Command{
	Use:   "annotate",
	Short: "Annotate files in batch, or text typed at a prompt",
	Long: `Annotate text with the configured pipeline.

With --file or --filelist, every input is annotated and written to its own
output file. Without either, an interactive shell reads one document per line
from stdin and prints the result; type q to quit.

Examples:
  textpipe annotate --file corpus/ --extension .txt --threads 8
  textpipe annotate --filelist inputs.txt --format json --no-clobber
  textpipe annotate --annotators tokenize,ssplit,lemma --set ssplit.newline_is_sentence_break=always
  textpipe annotate --file doc.ser.gz --annotators ner --no-enforce`,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, h, err := loadConfig()
		if err != nil {
			return err
		}
		for flag, key := range annotateFlagKeys {
			if err := mgr.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
				return err
			}
		}
		cfg, err := mgr.Reload()
		if err != nil {
			return err
		}

		overrides, err := config.ParseOverrides(annotateSet)
		if err != nil {
			return err
		}

		reg, err := annotators.NewRegistry()
		if err != nil {
			return err
		}
		cache := pipeline.NewCache(reg, logger)
		defer cache.Reset()

		s := &session{
			builder:   pipeline.NewBuilder(cache, logger),
			cache:     cache,
			overrides: overrides,
			noEnforce: annotateNoEnforce,
		}

		// Validate the pipeline before touching any input.
		if _, err := s.build(cfg); err != nil {
			return err
		}

		if annotateFile == "" && annotateFileList == "" {
			return runShell(cmd, mgr, s)
		}
		return s.runBatch(cmd, cfg, h)
	},
}

// session holds what every pipeline of one command invocation is built from.
type session struct {
	builder   *pipeline.Builder
	cache     *pipeline.Cache
	overrides pipeline.Properties
	noEnforce bool
}

func (s *session) build(cfg *config.Config) (*pipeline.Pipeline, error) {
	props := config.Merge(cfg.Properties(), s.overrides)
	return s.builder.Build(cfg.Names(), props, cfg.EnforceRequirements && !s.noEnforce)
}

func (s *session) runBatch(cmd *cobra.Command, cfg *config.Config, h *home.Dir) error {
	ctx := cmd.Context()
	bc := cfg.Batch

	var (
		inputs []string
		err    error
	)
	if annotateFileList != "" {
		inputs, err = batch.ReadFileList(annotateFileList, bc.Extension)
	} else {
		inputs, err = batch.Discover(annotateFile, bc.Extension)
	}
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		return batch.ErrNoInputs
	}

	var exclude map[string]struct{}
	if bc.ExcludeFiles != "" {
		if exclude, err = batch.ReadExcludeList(bc.ExcludeFiles); err != nil {
			return err
		}
	}

	format, err := outputs.ParseFormat(bc.OutputFormat)
	if err != nil {
		return err
	}
	inSer, err := outputs.NewSerializer(bc.InputSerializerName())
	if err != nil {
		return err
	}
	outSer, err := outputs.NewSerializer(bc.OutputSerializerName())
	if err != nil {
		return err
	}
	writer, err := outputs.NewWriter(format, outSer)
	if err != nil {
		return err
	}

	planner := batch.NewPlanner(batch.Policy{
		Exclude:          exclude,
		InputDir:         bc.InputDirectory,
		OutputDir:        bc.OutputDirectory,
		OutputExtension:  bc.OutputExtension,
		ReplaceExtension: bc.ReplaceExtension,
		NoClobber:        bc.NoClobber,
		Randomize:        bc.Randomize,
		Seed:             bc.Seed,
		Format:           format,
	})
	jobs := planner.Plan(inputs)

	engineCfg := batch.EngineConfig{
		Workers:         bc.Threads,
		ContinueOnError: bc.ContinueOnError,
		NoClobber:       bc.NoClobber,
		Format:          format,
		Writer:          writer,
		Reader: batch.NewReader(batch.ReaderConfig{
			Serializer: inSer,
			PDFToText:  bc.PDFToText,
			Logger:     logger,
		}),
		Logger: logger,
	}
	indexPath, err := resolveIndexPath(cfg.Index.Path, h)
	if err != nil {
		return err
	}
	if indexPath != "" {
		store, err := index.Open(ctx, indexPath)
		if err != nil {
			return fmt.Errorf("open index: %w", err)
		}
		defer store.Close()
		engineCfg.Indexer = store
	}

	var (
		mu        sync.Mutex
		pipelines []*pipeline.Pipeline
	)
	newAnnotator := func() (batch.Annotator, error) {
		p, err := s.build(cfg)
		if err != nil {
			return nil, err
		}
		mu.Lock()
		pipelines = append(pipelines, p)
		mu.Unlock()
		return p, nil
	}

	res, runErr := batch.NewEngine(engineCfg).Execute(ctx, jobs, newAnnotator)

	stats := make([]pipeline.Throughput, 0, len(pipelines))
	for _, p := range pipelines {
		stats = append(stats, p.Stats())
	}
	if err := printer.Print(report.NewSummary(res, stats)); err != nil {
		return errors.Join(runErr, err)
	}
	return runErr
}

// defaultIndex selects the index database in the home directory.
const defaultIndex = "default"

// resolveIndexPath maps the configured index path to a database file.
// "default" resolves to the home directory's index, creating the home
// directory when needed.
func resolveIndexPath(path string, h *home.Dir) (string, error) {
	if path != defaultIndex {
		return path, nil
	}
	if err := h.EnsureExists(); err != nil {
		return "", err
	}
	return h.IndexPath(), nil
}

func init() {
	f := annotateCmd.Flags()
	f.StringVarP(&annotateFile, "file", "f", "", "input file or directory")
	f.StringVar(&annotateFileList, "filelist", "", "file listing one input path per line")
	f.StringArrayVar(&annotateSet, "set", nil, "stage option override, e.g. --set tokenize.lowercase=true (repeatable)")
	f.BoolVar(&annotateNoEnforce, "no-enforce", false, "skip the stage requirement check")

	f.String("annotators", "", "comma-separated stage list (overrides config)")
	f.String("output-dir", ".", "directory for output files")
	f.String("input-dir", "", "input root whose layout is mirrored under --output-dir")
	f.String("format", "xml", "output format: "+formatNames())
	f.String("output-extension", "", "output extension (default depends on --format)")
	f.Bool("replace-extension", false, "replace the input extension instead of appending")
	f.Bool("no-clobber", false, "skip inputs whose output already exists")
	f.Bool("randomize", false, "process inputs in random order")
	f.Int64("seed", 0, "random seed for --randomize (0 picks one)")
	f.Bool("continue-on-error", false, "keep going when a document fails to annotate")
	f.Int("threads", 1, "number of documents annotated concurrently")
	f.String("exclude-files", "", "file listing input base names to skip")
	f.String("extension", "", "only take files with this suffix from directories")
	f.String("serializer", "gob", "serializer for the serialized format: gob or json")
	f.String("input-serializer", "", "serializer for .ser.gz inputs (default: --serializer)")
	f.String("output-serializer", "", "serializer for serialized outputs (default: --serializer)")
	f.String("pdftotext", "pdftotext", "text extraction command for PDF inputs")
	f.String("index-db", "", "sqlite database indexing every written document; bare --index-db uses <home>/index.db")
	f.Lookup("index-db").NoOptDefVal = defaultIndex

	rootCmd.AddCommand(annotateCmd)
}

func formatNames() string {
	var s string
	for i, f := range outputs.Formats() {
		if i > 0 {
			s += ", "
		}
		s += string(f)
	}
	return s
}
