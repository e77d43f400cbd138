package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/ironsheep/quadtree-image-tools/internal/imaging"
	"github.com/ironsheep/quadtree-image-tools/internal/pipeline"
	"github.com/ironsheep/quadtree-image-tools/internal/quadtree"
	"github.com/ironsheep/quadtree-image-tools/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

const name = "quadtree-tools"

var errUsage = errors.New("usage error")

// config holds the parsed command line.
type config struct {
	input    string
	output   string
	compress bool
	edge     bool
	showTree bool
	format   string
	outline  imaging.Color
	workers  int
}

func main() {
	// Handle --version, --help and the serve subcommand
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			printVersion(os.Stdout)
			return
		case "--help", "-h", "help":
			printHelp(os.Stdout)
			return
		case "serve":
			configureLogging()
			serve()
			return
		}
	}

	configureLogging()
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// configureLogging sends logs to stderr; stdout carries results and MCP traffic.
func configureLogging() {
	log.SetOutput(os.Stderr)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
}

func debugEnabled() bool {
	return os.Getenv("QUADTREE_LOG_LEVEL") == "debug"
}

func serve() {
	if debugEnabled() {
		log.Printf("Quadtree MCP Server v%s (built %s, commit %s)", Version, BuildTime, GitCommit)
	}

	srv := server.New()
	srv.SetVersion(Version)
	if err := srv.Run(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "%s %s\n", name, Version)
	fmt.Fprintf(w, "  Build time: %s\n", BuildTime)
	fmt.Fprintf(w, "  Git commit: %s\n", GitCommit)
}

func printHelp(w io.Writer) {
	fmt.Fprintf(w, "%s - quadtree image compression and edge detection\n", name)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Usage: %s -i <input> -o <output> (-c | -e) [options]\n", name)
	fmt.Fprintf(w, "       %s serve\n", name)
	fmt.Fprintln(w)
	newFlagSet(&config{}, w).PrintDefaults()
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve            Run the MCP server on stdin/stdout")
	fmt.Fprintln(w, "  --version, -v    Print version information")
	fmt.Fprintln(w, "  --help, -h       Print this help message")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Environment variables:")
	fmt.Fprintln(w, "  QUADTREE_LOG_LEVEL=debug    Log every calibration trial")
}

func newFlagSet(cfg *config, output io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&cfg.input, "i", "", "Input image (square). Supported types: ppm, png, jpg, gif, bmp, tiff, qoi, optionally .zst compressed")
	fs.StringVar(&cfg.output, "o", "", "Output base name (-c) or file name (-e); the -f extension is appended unless already present")
	fs.BoolVar(&cfg.compress, "c", false, "Run the compression sweep over 8 target ratios")
	fs.BoolVar(&cfg.edge, "e", false, "Run edge detection")
	fs.BoolVar(&cfg.showTree, "t", false, "Overlay quadtree leaf outlines on the output")
	fs.StringVar(&cfg.format, "f", "ppm", "Output format (ppm, png, jpg, gif, bmp, tiff, qoi, append .zst to compress)")
	fs.Func("outline", "Outline color as hex (default #ffffff)", func(s string) error {
		c, err := imaging.ParseHex(s)
		if err != nil {
			return err
		}
		cfg.outline = c
		return nil
	})
	fs.IntVar(&cfg.workers, "j", 1, "Compression levels calibrated concurrently")
	return fs
}

// parseArgs parses and validates the command line.
func parseArgs(args []string, stderr io.Writer) (*config, error) {
	cfg := &config{outline: imaging.White}
	fs := newFlagSet(cfg, stderr)
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %v", errUsage, err)
	}

	switch {
	case cfg.input == "":
		return nil, fmt.Errorf("%w: input file not specified", errUsage)
	case cfg.output == "":
		return nil, fmt.Errorf("%w: output file not specified", errUsage)
	case cfg.compress == cfg.edge:
		return nil, fmt.Errorf("%w: specify either compression (-c) or edge detection (-e)", errUsage)
	}

	cfg.format = "." + strings.TrimPrefix(strings.ToLower(cfg.format), ".")
	if !imaging.SupportedExtension(strings.TrimSuffix(cfg.format, ".zst")) {
		return nil, fmt.Errorf("%w: unsupported output format %q", errUsage, cfg.format)
	}
	if cfg.workers < 1 {
		cfg.workers = 1
	}
	return cfg, nil
}

func (c *config) options() pipeline.Options {
	opts := pipeline.DefaultOptions()
	opts.ShowTree = c.showTree
	opts.OutlineColor = c.outline
	opts.Ext = c.format
	opts.Workers = c.workers
	opts.Calibrator = quadtree.DefaultCalibrator()
	if debugEnabled() {
		opts.Calibrator.Observe = func(tr quadtree.Trial) {
			log.Printf("calibrate: target %d iteration %d threshold %.1f leaves %d",
				tr.Target, tr.Iteration, tr.Threshold, tr.Leaves)
		}
	}
	return opts
}

// run executes one CLI invocation and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	cfg, err := parseArgs(args, stderr)
	if err != nil {
		fmt.Fprintln(stderr, err)
		if errors.Is(err, errUsage) {
			fmt.Fprintf(stderr, "Run '%s --help' for usage.\n", name)
			return 2
		}
		return 1
	}

	buf, err := imaging.LoadSquare(cfg.input)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	rep := &pipeline.TextReporter{W: stdout}
	opts := cfg.options()

	if cfg.compress {
		failed := 0
		for _, res := range pipeline.Compress(buf, cfg.output, opts, rep) {
			if res.Err != nil {
				failed++
			}
		}
		if failed == len(pipeline.Levels) {
			fmt.Fprintln(stderr, "no compression level could be produced")
			return 1
		}
		return 0
	}

	if _, err := pipeline.EdgeDetect(buf, cfg.output, opts, rep); err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	return 0
}
