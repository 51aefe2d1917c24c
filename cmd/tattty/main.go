// Command tattty drives the generation pipeline from a terminal: build a draft from
// flags, validate it, prepare its images and submit it to the generation backend.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"tattty/internal/catalog"
	"tattty/internal/dispatch"
	"tattty/internal/domain"
	"tattty/internal/generation"
	"tattty/internal/imageprep"
	"tattty/internal/infra"
	"tattty/internal/payload"
	"tattty/internal/session"
	"tattty/pkg/zip"
)

const usage = `usage: tattty <command> [flags]

commands:
  catalogs   print the option catalogs as JSON
  validate   finalize a draft and print the request or its validation errors
  prepare    finalize a draft, prepare its images and write a zip bundle
  submit     finalize, prepare, serialize and post a draft to the generation backend
  sketch     fit an image into a 512x512 PNG canvas
`

func main() {
	// .env is optional
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}
	logger := infra.NewLogger(getenv("APP_ENV", "production")).Output(zerolog.ConsoleWriter{Out: stderr, TimeFormat: time.RFC3339})

	var err error
	switch args[0] {
	case "catalogs":
		err = writeJSON(stdout, catalog.All())
	case "validate":
		err = validateCmd(args[1:], stdout)
	case "prepare":
		err = prepareCmd(ctx, args[1:], stdout)
	case "submit":
		err = submitCmd(ctx, args[1:], stdout, logger)
	case "sketch":
		err = sketchCmd(args[1:], stdout)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usage)
		return 2
	}
	if err == nil {
		return 0
	}
	if errors.Is(err, flag.ErrHelp) {
		return 2
	}
	var validation domain.ValidationErrors
	if errors.As(err, &validation) {
		for _, v := range validation {
			fmt.Fprintf(stderr, "invalid: %s\n", v.Error())
		}
		return 1
	}
	fmt.Fprintf(stderr, "tattty %s: %v\n", args[0], err)
	return 1
}

// stringList collects a repeatable flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// draftFlags are the flags shared by every command that builds a draft.
type draftFlags struct {
	questionOne string
	questionTwo string
	mode        string
	minChars    int
	images      stringList
	options     map[catalog.Kind]*string
}

func newDraftFlags(fs *flag.FlagSet) *draftFlags {
	df := &draftFlags{options: make(map[catalog.Kind]*string)}
	fs.StringVar(&df.questionOne, "q1", "", "answer to the first question")
	fs.StringVar(&df.questionTwo, "q2", "", "answer to the second question")
	fs.StringVar(&df.mode, "mode", string(domain.GeneratorModeGuided), "generator mode: guided or freestyle")
	fs.IntVar(&df.minChars, "min-chars", getenvInt("MIN_QUESTION_CHARS", generation.MinQuestionChars), "minimum answer length")
	fs.Var(&df.images, "image", "reference image path (repeatable)")
	for _, c := range catalog.All() {
		df.options[c.Kind] = fs.String(string(c.Kind), "", fmt.Sprintf("%s (one of: %s)", c.Label, strings.Join(c.Values, ", ")))
	}
	return df
}

// store loads the flags into a fresh draft store. The session id is the one the request
// will carry.
func (df *draftFlags) store() (*session.Store, error) {
	s := session.NewStore(uuid.NewString(), session.StoreOptions{})
	s.SetQuestionOne(df.questionOne)
	s.SetQuestionTwo(df.questionTwo)
	for kind, v := range df.options {
		if *v == "" {
			continue
		}
		if err := s.SetOption(string(kind), *v); err != nil {
			return nil, err
		}
	}
	imgs, err := readImages(df.images)
	if err != nil {
		return nil, err
	}
	s.SetImages(imgs)
	return s, nil
}

func (df *draftFlags) finalize() (domain.FinalizedRequest, error) {
	s, err := df.store()
	if err != nil {
		return domain.FinalizedRequest{}, err
	}
	rules := generation.DefaultRules()
	rules.MinQuestionChars = df.minChars
	f := generation.NewFinalizer(generation.WithRules(rules), generation.WithIDGenerator(s.ID))
	return f.ValidateAndFinalize(s.Get(), domain.ParseGeneratorMode(df.mode))
}

func readImages(paths []string) ([]domain.Image, error) {
	out := make([]domain.Image, 0, len(paths))
	for _, p := range paths {
		img, err := readImage(p)
		if err != nil {
			return nil, err
		}
		out = append(out, img)
	}
	return out, nil
}

func readImage(path string) (domain.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Image{}, fmt.Errorf("read image: %w", err)
	}
	mime := http.DetectContentType(data)
	if !strings.HasPrefix(mime, "image/") {
		return domain.Image{}, fmt.Errorf("%s is not an image (%s)", path, mime)
	}
	return domain.Image{Filename: filepath.Base(path), MIME: mime, Data: data}, nil
}

func validateCmd(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	df := newDraftFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	req, err := df.finalize()
	if err != nil {
		return err
	}
	return writeJSON(stdout, req)
}

type bundleManifest struct {
	Request domain.FinalizedRequest `json:"request"`
	Images  []string                `json:"images"`
}

func prepareCmd(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("prepare", flag.ContinueOnError)
	df := newDraftFlags(fs)
	out := fs.String("out", "", "bundle path (default tattty-<session>.zip)")
	maxDim := fs.Int("max-dimension", getenvInt("MAX_IMAGE_DIMENSION", imageprep.DefaultMaxDimension), "bounding box side for prepared images")
	if err := fs.Parse(args); err != nil {
		return err
	}
	req, err := df.finalize()
	if err != nil {
		return err
	}
	prepared, err := imageprep.PrepareAll(ctx, req.SourceCard.Images, imageprep.Options{MaxWidth: *maxDim, MaxHeight: *maxDim})
	if err != nil {
		return err
	}
	req = req.WithImages(prepared)

	manifest := bundleManifest{Request: req, Images: make([]string, 0, len(prepared))}
	entries := make([]zip.Entry, 0, len(prepared)+1)
	for _, img := range prepared {
		manifest.Images = append(manifest.Images, img.Filename)
		entries = append(entries, zip.Entry{Name: img.Filename, Data: img.Data, Modified: req.Timestamp})
	}
	body, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return err
	}
	entries = append([]zip.Entry{{Name: "request.json", Data: body, Modified: req.Timestamp}}, entries...)

	path := *out
	if path == "" {
		path = "tattty-" + req.SessionID + ".zip"
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := zip.Archive(f, entries); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %s (%d images)\n", path, len(prepared))
	return nil
}

func submitCmd(ctx context.Context, args []string, stdout io.Writer, logger zerolog.Logger) error {
	fs := flag.NewFlagSet("submit", flag.ContinueOnError)
	df := newDraftFlags(fs)
	endpoint := fs.String("endpoint", os.Getenv("GENERATION_ENDPOINT"), "generation backend URL")
	timeout := fs.Duration("timeout", 120*time.Second, "submission timeout")
	out := fs.String("out", "", "write an image response to this path")
	sheetsURL := fs.String("sheets", os.Getenv("SHEETS_WEBHOOK_URL"), "spreadsheet webhook URL")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if strings.TrimSpace(*endpoint) == "" {
		return &domain.ConfigurationError{Feature: "generation backend", Key: "GENERATION_ENDPOINT"}
	}

	req, err := df.finalize()
	if err != nil {
		return err
	}
	prepared, err := imageprep.PrepareAll(ctx, req.SourceCard.Images, imageprep.DefaultOptions())
	if err != nil {
		return err
	}
	req = req.WithImages(prepared)
	body, err := payload.Serialize(req)
	if err != nil {
		return err
	}

	sheets := dispatch.NewSheetsLogger(dispatch.SheetsOptions{WebhookURL: *sheetsURL, Logger: logger})
	defer func() {
		waitCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = sheets.Wait(waitCtx)
	}()

	submitCtx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()
	started := time.Now()
	ack, err := dispatch.NewSubmitter(dispatch.SubmitterOptions{UserAgent: "tattty-cli"}).Submit(submitCtx, body, *endpoint)
	data := map[string]any{
		"mode":        string(req.Mode),
		"style":       req.Options.Style,
		"image_count": req.ImageCount(),
		"duration_ms": time.Since(started).Milliseconds(),
		"source":      "cli",
	}
	if err != nil {
		data["status"] = "error"
		data["error"] = err.Error()
		sheets.LogTattooGeneration(req.SessionID, "", data)
		return err
	}
	data["status"] = "success"
	sheets.LogTattooGeneration(req.SessionID, "", data)
	logger.Info().Str("session_id", req.SessionID).Int("status", ack.Status).Msg("submission accepted")

	if len(ack.Image) > 0 {
		path := *out
		if path == "" {
			path = "tattty-" + req.SessionID + extensionFor(ack.ContentType)
		}
		if err := os.WriteFile(path, ack.Image, 0o644); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "wrote %s\n", path)
		return nil
	}
	return writeJSON(stdout, ack)
}

func sketchCmd(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("sketch", flag.ContinueOnError)
	in := fs.String("in", "", "source image path")
	out := fs.String("out", "sketch.png", "output PNG path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" {
		return errors.New("-in is required")
	}
	img, err := readImage(*in)
	if err != nil {
		return err
	}
	sketch, err := imageprep.SketchSquare(img)
	if err != nil {
		return err
	}
	if err := os.WriteFile(*out, sketch.Data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "wrote %s (%dx%d)\n", *out, sketch.Width, sketch.Height)
	return nil
}

func extensionFor(contentType string) string {
	switch {
	case strings.Contains(contentType, "jpeg"):
		return ".jpg"
	case strings.Contains(contentType, "webp"):
		return ".webp"
	default:
		return ".png"
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	return n
}
