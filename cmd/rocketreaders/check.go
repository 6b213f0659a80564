package main

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrWong99/rocketreaders/internal/app"
	"github.com/MrWong99/rocketreaders/internal/config"
	"github.com/MrWong99/rocketreaders/internal/observe"
	"github.com/MrWong99/rocketreaders/pkg/provider/stt"
	"github.com/MrWong99/rocketreaders/pkg/reading"
)

type checkOptions struct {
	passageFile    string
	passageText    string
	transcript     string
	transcriptFile string
	audioFile      string
	configPath     string
	duration       time.Duration
	asJSON         bool
}

// checkReport is the --json output of the check command.
type checkReport struct {
	TotalWords      int                       `json:"total_words"`
	TranscriptWords int                       `json:"transcript_words"`
	Transcript      string                    `json:"transcript"`
	Errors          []reading.ReadingError    `json:"errors"`
	Insertions      []reading.Insertion       `json:"insertions"`
	ErrorTypes      map[reading.ErrorType]int `json:"error_types"`
	Accuracy        float64                   `json:"accuracy"`
	WCPM            *int                      `json:"wcpm,omitempty"`
}

func newCheckCmd() *cobra.Command {
	opts := &checkOptions{}
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Compare one reading attempt with its passage",
		Long: `Check aligns a transcript (or a recording transcribed with the configured
STT providers) against a passage and prints the reading errors found.

The passage comes from --passage (a text file, "-" for stdin) or --text.
The attempt comes from --transcript, --transcript-file or --audio.`,
		Example: `  rocketreaders check --text "The cat sat on the mat." --transcript "the cat sat on mat"
  rocketreaders check --passage frog.txt --audio attempt.wav --config config.yaml --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCheck(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.passageFile, "passage", "p", "", `passage text file ("-" for stdin)`)
	f.StringVar(&opts.passageText, "text", "", "passage text")
	f.StringVarP(&opts.transcript, "transcript", "t", "", "what the child read")
	f.StringVar(&opts.transcriptFile, "transcript-file", "", `file holding the transcript ("-" for stdin)`)
	f.StringVarP(&opts.audioFile, "audio", "a", "", "recording to transcribe with the configured STT providers")
	f.StringVarP(&opts.configPath, "config", "c", "config.yaml", "config file providing the STT providers for --audio")
	f.DurationVarP(&opts.duration, "duration", "d", 0, "reading time, for words correct per minute")
	f.BoolVar(&opts.asJSON, "json", false, "print the report as JSON")

	cmd.MarkFlagsMutuallyExclusive("passage", "text")
	cmd.MarkFlagsOneRequired("passage", "text")
	cmd.MarkFlagsMutuallyExclusive("transcript", "transcript-file", "audio")
	cmd.MarkFlagsOneRequired("transcript", "transcript-file", "audio")
	return cmd
}

func runCheck(ctx context.Context, stdin io.Reader, out io.Writer, opts *checkOptions) error {
	if opts.passageFile == "-" && opts.transcriptFile == "-" {
		return errors.New("check: only one of --passage and --transcript-file can read stdin")
	}
	if opts.duration < 0 {
		return fmt.Errorf("check: --duration %s must not be negative", opts.duration)
	}

	passageText := opts.passageText
	if opts.passageFile != "" {
		b, err := readInput(stdin, opts.passageFile)
		if err != nil {
			return fmt.Errorf("check: read passage: %w", err)
		}
		passageText = string(b)
	}
	if strings.TrimSpace(passageText) == "" {
		return errors.New("check: passage is empty")
	}

	transcript, elapsed, err := resolveTranscript(ctx, stdin, passageText, opts)
	if err != nil {
		return err
	}
	if strings.TrimSpace(transcript) == "" {
		return fmt.Errorf("check: %w", stt.ErrEmptyTranscript)
	}
	if opts.duration > 0 {
		elapsed = opts.duration
	}

	res := reading.Detect(passageText, transcript)
	report := checkReport{
		TotalWords:      res.TotalWords,
		TranscriptWords: res.TranscriptWords,
		Transcript:      transcript,
		Errors:          res.Errors,
		Insertions:      res.Insertions,
		ErrorTypes: map[reading.ErrorType]int{
			reading.Omission:         res.Count(reading.Omission),
			reading.Mispronunciation: res.Count(reading.Mispronunciation),
			reading.Hesitation:       res.Count(reading.Hesitation),
		},
		Accuracy: reading.Accuracy(res.TotalWords, len(res.Errors)),
	}
	if elapsed > 0 {
		wcpm := reading.WordsCorrectPerMinute(res.TotalWords, len(res.Errors), elapsed)
		report.WCPM = &wcpm
	}

	if opts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	return printReport(out, report)
}

// resolveTranscript returns the attempt text and, for recordings, the
// duration the STT backend reported.
func resolveTranscript(ctx context.Context, stdin io.Reader, passageText string, opts *checkOptions) (string, time.Duration, error) {
	switch {
	case opts.transcriptFile != "":
		b, err := readInput(stdin, opts.transcriptFile)
		if err != nil {
			return "", 0, fmt.Errorf("check: read transcript: %w", err)
		}
		return string(b), 0, nil
	case opts.audioFile != "":
		return transcribeFile(ctx, passageText, opts)
	default:
		return opts.transcript, 0, nil
	}
}

func transcribeFile(ctx context.Context, passageText string, opts *checkOptions) (string, time.Duration, error) {
	format := stt.ParseFormat(filepath.Ext(opts.audioFile))
	if format == "" {
		return "", 0, fmt.Errorf("check: cannot tell the audio format of %q", opts.audioFile)
	}
	audio, err := os.ReadFile(opts.audioFile)
	if err != nil {
		return "", 0, fmt.Errorf("check: read audio: %w", err)
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return "", 0, fmt.Errorf("check: %w", err)
	}
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)
	backends, err := app.BuildSTT(cfg.Providers, reg, observe.DefaultMetrics())
	if err != nil {
		return "", 0, fmt.Errorf("check: %w", err)
	}
	defer func() {
		for _, c := range backends.Closers {
			_ = c()
		}
	}()
	if backends.Fallback == nil {
		return "", 0, fmt.Errorf("check: %s configures no stt provider", opts.configPath)
	}

	tr, err := backends.Fallback.Transcribe(ctx, stt.Recording{
		Audio:    audio,
		Format:   format,
		Language: cfg.Transcription.Language,
		Prompt:   passageText,
	})
	if err != nil {
		return "", 0, fmt.Errorf("check: transcribe: %w", err)
	}
	return tr.Text, tr.Duration, nil
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

func printReport(out io.Writer, r checkReport) error {
	fmt.Fprintf(out, "Transcript: %s\n", strings.TrimSpace(r.Transcript))
	fmt.Fprintf(out, "Words: %d read, %d in passage\n", r.TranscriptWords, r.TotalWords)
	fmt.Fprintf(out, "Accuracy: %.1f%%\n", r.Accuracy)
	if r.WCPM != nil {
		fmt.Fprintf(out, "Words correct per minute: %d\n", *r.WCPM)
	}

	if len(r.Errors) == 0 {
		fmt.Fprintln(out, "No reading errors.")
	} else {
		fmt.Fprintf(out, "\n%d reading errors (%d omissions, %d mispronunciations, %d hesitations):\n",
			len(r.Errors), r.ErrorTypes[reading.Omission], r.ErrorTypes[reading.Mispronunciation], r.ErrorTypes[reading.Hesitation])
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "#\tWORD\tTYPE\tHEARD\tSIMILARITY\tPOSITION")
		for _, e := range r.Errors {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\n", e.ID, e.Word, e.ErrorType, cmp.Or(e.Actual, "-"), e.Similarity, e.PositionInText)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}

	if len(r.Insertions) > 0 {
		words := make([]string, len(r.Insertions))
		for i, ins := range r.Insertions {
			words[i] = ins.Word
		}
		fmt.Fprintf(out, "\nExtra words (not counted): %s\n", strings.Join(words, ", "))
	}
	return nil
}
