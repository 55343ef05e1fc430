package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/aleksaelezovic/graphstore/internal/config"
	"github.com/aleksaelezovic/graphstore/internal/encoding"
	"github.com/aleksaelezovic/graphstore/internal/metrics"
	"github.com/aleksaelezovic/graphstore/internal/storage"
	"github.com/aleksaelezovic/graphstore/pkg/rdf"
	"github.com/aleksaelezovic/graphstore/pkg/server"
	"github.com/aleksaelezovic/graphstore/pkg/store"
	"github.com/dustin/go-humanize"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: graphstore <command> [flags] [args]")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve                 - Start the Graph Store HTTP server")
	fmt.Fprintln(w, "  load <file>           - Load an RDF/POST, N-Triples or N-Quads file")
	fmt.Fprintln(w, "  dump                  - Write stored graphs to stdout")
	fmt.Fprintln(w, "  decode <file|->       - Decode RDF/POST and print N-Triples")
	fmt.Fprintln(w, "  stats                 - Show graph and storage statistics")
}

// run executes one command and returns the process exit code
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		usage(stderr)
		return 2
	}

	var err error
	switch args[0] {
	case "serve":
		err = runServe(args[1:], stderr)
	case "load":
		err = runLoad(args[1:], stdin, stdout, stderr)
	case "dump":
		err = runDump(args[1:], stdout, stderr)
	case "decode":
		err = runDecode(args[1:], stdin, stdout, stderr)
	case "stats":
		err = runStats(args[1:], stdout, stderr)
	case "help", "-h", "--help":
		usage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		usage(stderr)
		return 2
	}

	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(stderr, "graphstore %s: %v\n", args[0], err)
		return 1
	}
	return 0
}

// storeFlags are shared by every command that opens the database
type storeFlags struct {
	configPath string
	dataDir    string
}

func (f *storeFlags) register(flags *flag.FlagSet) {
	flags.StringVar(&f.configPath, "config", "", "path to a YAML config file")
	flags.StringVar(&f.dataDir, "data", "", "data directory (overrides config)")
}

func (f *storeFlags) load() (*config.Config, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	if f.dataDir != "" {
		cfg.Storage.DataDir = f.dataDir
		cfg.Storage.InMemory = false
	}
	return cfg, nil
}

func openStore(cfg *config.Config) (*store.GraphStore, error) {
	var (
		backend *storage.BadgerStorage
		err     error
	)
	if cfg.Storage.InMemory {
		backend, err = storage.NewInMemoryStorage()
	} else {
		backend, err = storage.NewBadgerStorage(cfg.Storage.DataDir)
	}
	if err != nil {
		return nil, err
	}
	return store.NewGraphStore(backend, encoding.NewTermEncoder(), encoding.NewTermDecoder()), nil
}

func runServe(args []string, stderr io.Writer) error {
	flags := flag.NewFlagSet("serve", flag.ContinueOnError)
	flags.SetOutput(stderr)
	var sf storeFlags
	sf.register(flags)
	addr := flags.String("addr", "", "listen address (overrides config)")
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := sf.load()
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	logger := cfg.Log.NewLogger()
	slog.SetDefault(logger)

	gs, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer gs.Close()

	m := metrics.New()
	if count, err := gs.Count(); err == nil {
		m.SetStoreQuads(count)
		logger.Info("store opened", "data_dir", cfg.Storage.DataDir, "quads", count)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return server.New(gs, cfg, logger, m).Start(ctx)
}

// formatFor guesses a media type from a file extension
func formatFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".nt":
		return rdf.ContentTypeNTriples
	case ".nq":
		return rdf.ContentTypeNQuads
	default:
		return rdf.ContentTypeRDFPost
	}
}

func openInput(path string, stdin io.Reader) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(stdin), nil
	}
	return os.Open(path) // #nosec G304 - path comes from the operator
}

func runLoad(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	flags := flag.NewFlagSet("load", flag.ContinueOnError)
	flags.SetOutput(stderr)
	var sf storeFlags
	sf.register(flags)
	graphIRI := flags.String("graph", "", "load into this named graph")
	toDefault := flags.Bool("default", false, "load into the default graph")
	format := flags.String("format", "", "media type of the input (guessed from the extension)")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if flags.NArg() != 1 {
		return errors.New("expected exactly one input file")
	}
	if *graphIRI != "" && *toDefault {
		return errors.New("-graph and -default are mutually exclusive")
	}
	path := flags.Arg(0)
	if *format == "" {
		*format = formatFor(path)
	}

	cfg, err := sf.load()
	if err != nil {
		return err
	}

	parser, err := rdf.NewParser(*format)
	if err != nil {
		return err
	}
	if p, ok := parser.(*rdf.RDFPostIOParser); ok {
		p.SkipEmptyLiterals = cfg.RDFPost.SkipEmptyLiterals
		p.ResolveRelativeIRIs = cfg.RDFPost.ResolveRelativeIRIs
	}

	in, err := openInput(path, stdin)
	if err != nil {
		return err
	}
	defer in.Close()
	counted := &countingReader{r: in}

	quads, err := parser.Parse(counted)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	var graph rdf.Term
	if *graphIRI != "" {
		graph = rdf.NewNamedNode(*graphIRI)
	}
	if graph != nil || *toDefault {
		for _, q := range quads {
			q.Graph = graph
		}
	}

	gs, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer gs.Close()

	added, err := gs.InsertQuads(quads)
	if err != nil {
		return err
	}
	if err := gs.Sync(); err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Loaded %s statements (%s new) from %s (%s)\n",
		humanize.Comma(int64(len(quads))), humanize.Comma(int64(added)), path, humanize.Bytes(uint64(counted.n)))
	return nil
}

func runDump(args []string, stdout, stderr io.Writer) error {
	flags := flag.NewFlagSet("dump", flag.ContinueOnError)
	flags.SetOutput(stderr)
	var sf storeFlags
	sf.register(flags)
	graphIRI := flags.String("graph", "", "dump only this named graph")
	onlyDefault := flags.Bool("default", false, "dump only the default graph")
	format := flags.String("format", rdf.ContentTypeNQuads, "output media type")
	if err := flags.Parse(args); err != nil {
		return err
	}

	writer, err := rdf.NewWriter(*format)
	if err != nil {
		return err
	}

	cfg, err := sf.load()
	if err != nil {
		return err
	}
	gs, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer gs.Close()

	var patterns []*store.Pattern
	all := store.Pattern{Subject: store.NewVariable("s"), Predicate: store.NewVariable("p"), Object: store.NewVariable("o")}
	switch {
	case *graphIRI != "":
		graph := rdf.NewNamedNode(*graphIRI)
		exists, err := gs.ContainsGraph(graph)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: %s", store.ErrGraphNotFound, *graphIRI)
		}
		p := all
		p.Graph = graph
		patterns = append(patterns, &p)
	case *onlyDefault:
		p := all
		patterns = append(patterns, &p)
	default:
		p, named := all, all
		named.Graph = store.NewVariable("g")
		patterns = append(patterns, &p, &named)
	}

	var quads []*rdf.Quad
	for _, pattern := range patterns {
		it, err := gs.Match(pattern)
		if err != nil {
			return err
		}
		for it.Next() {
			quad, err := it.Quad()
			if err != nil {
				_ = it.Close()
				return err
			}
			quads = append(quads, quad)
		}
		if err := it.Close(); err != nil {
			return err
		}
	}
	return writer.Write(stdout, quads)
}

func runDecode(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	flags := flag.NewFlagSet("decode", flag.ContinueOnError)
	flags.SetOutput(stderr)
	keepEmpty := flags.Bool("keep-empty", false, "emit triples for empty plain literals")
	resolve := flags.Bool("resolve", false, "resolve relative IRIs against the declared base")
	if err := flags.Parse(args); err != nil {
		return err
	}
	path := "-"
	if flags.NArg() > 0 {
		path = flags.Arg(0)
	}

	in, err := openInput(path, stdin)
	if err != nil {
		return err
	}
	defer in.Close()

	parser := rdf.NewRDFPostParser(in)
	parser.SetSkipEmptyLiterals(!*keepEmpty)
	parser.SetResolveRelativeIRIs(*resolve)

	out := rdf.NewNTriplesWriter(stdout)
	var writeErr error
	sink := rdf.SinkFuncs{
		OnTriple: func(t *rdf.Triple) {
			if writeErr == nil {
				writeErr = out.Write([]*rdf.Quad{rdf.NewQuad(t.Subject, t.Predicate, t.Object, nil)})
			}
		},
	}
	if err := parser.Parse(sink); err != nil {
		if kind := rdf.FaultOf(err); kind != rdf.NoFault {
			return fmt.Errorf("%s: %s fault: %w", path, kind, err)
		}
		return err
	}
	return writeErr
}

func runStats(args []string, stdout, stderr io.Writer) error {
	flags := flag.NewFlagSet("stats", flag.ContinueOnError)
	flags.SetOutput(stderr)
	var sf storeFlags
	sf.register(flags)
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := sf.load()
	if err != nil {
		return err
	}
	gs, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer gs.Close()

	total, err := gs.Count()
	if err != nil {
		return err
	}
	defaultSize, err := gs.GraphSize(nil)
	if err != nil {
		return err
	}
	named, err := gs.NamedGraphs()
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Quads:         %s\n", humanize.Comma(int64(total)))
	fmt.Fprintf(stdout, "Default graph: %s triples\n", humanize.Comma(int64(defaultSize)))
	fmt.Fprintf(stdout, "Named graphs:  %s\n", humanize.Comma(int64(len(named))))
	for _, g := range named {
		size, err := gs.GraphSize(g)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "  %s  %s triples\n", g, humanize.Comma(int64(size)))
	}

	if !cfg.Storage.InMemory {
		bytes, err := dirSize(cfg.Storage.DataDir)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "On disk:       %s\n", humanize.Bytes(uint64(bytes)))
	}
	return nil
}

func dirSize(root string) (int64, error) {
	var size int64
	err := filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		size += info.Size()
		return nil
	})
	return size, err
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
