package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"wxprobe/internal/cities"
	"wxprobe/internal/models"
	"wxprobe/internal/output"
	"wxprobe/internal/parser"
	"wxprobe/internal/store"
	"wxprobe/internal/tester"
)

var (
	targetURL  string
	specFile   string
	numValid   int
	numInvalid int
	numEdge    int
	delay      float64
	dbPath     string
	verbose    bool

	outputFormat string
	outputFile   string
)

// testCmd represents the test command
var testCmd = &cobra.Command{
	Use:   "test",
	Short: "Run a weather API test suite against a target",
	Long: `Run a sampled suite of valid, invalid, and edge-case city tests
against the target base URL.

Examples:
  # Default suite against a local target
  wxprobe test --target http://localhost:5000

  # Larger suite, results exported to JSON
  wxprobe test --target https://api.example.com --valid 40 --invalid 15 -o json --output-file results.json

  # Use an OpenAPI document to discover the weather routes first
  wxprobe test --target https://api.example.com --spec openapi.json`,
	Run: runTests,
}

func runTests(cmd *cobra.Command, args []string) {
	target := resolveTarget()

	templates, err := discoverEndpoints(specFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading OpenAPI file: %v\n", err)
		os.Exit(1)
	}

	suite := cities.BuildSuite(numValid, numInvalid, numEdge)
	if len(suite) == 0 {
		fmt.Println("Nothing to test: all suite sizes are zero")
		os.Exit(0)
	}

	t := tester.NewTester(target, tester.WithEndpointTemplates(templates))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\n\nInterrupted, finishing the current test case...")
		cancel()
	}()

	fmt.Printf("\n%s\n", white("=== Test Suite ==="))
	fmt.Printf("Target:  %s\n", target)
	fmt.Printf("Cases:   %d valid, %d invalid, %d edge\n", numValid, numInvalid, numEdge)
	fmt.Printf("Delay:   %.2fs between cases\n", delay)
	fmt.Println()

	var s *spinner.Spinner

	onEvent := func(event tester.SuiteEvent) {
		switch event.Type {
		case tester.EventStarting:
			if isTTY {
				s = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
				s.Suffix = fmt.Sprintf(" [%d/%d] %s %q", event.Index+1, event.Total, event.Case.Type, event.Case.City)
				s.Start()
			}

		case tester.EventCompleted:
			if isTTY && s != nil {
				s.Stop()
			}

			result := event.Result
			status := green("✓")
			if !result.Passed {
				status = red("✗")
			}

			fmt.Printf("[%d/%d] %s %-9s %-30q %.2fms\n",
				event.Index+1, event.Total, status, result.TestType, result.City, result.ResponseTimeMs)

			if verbose && len(result.Errors) > 0 {
				for _, msg := range result.Errors {
					fmt.Printf("    %s %s\n", cyan("→"), msg)
				}
			}
		}
	}

	start := time.Now()
	summary := t.RunSuite(ctx, suite, time.Duration(delay*float64(time.Second)), onEvent)

	if dbPath != "" {
		persistSummary(target, summary)
	}

	if outputFormat != "" {
		format, err := output.ParseFormat(outputFormat)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := output.ExportTestSummary(summary, format, outputFile); err != nil {
			fmt.Fprintf(os.Stderr, "Error exporting results: %v\n", err)
			os.Exit(1)
		}
		if outputFile != "" {
			fmt.Printf("\nResults exported to: %s\n", outputFile)
		}
	}

	displaySummary(summary, time.Since(start))

	if summary.Failed > 0 {
		os.Exit(1)
	}
}

func resolveTarget() string {
	if targetURL != "" {
		return strings.TrimRight(targetURL, "/")
	}
	return strings.TrimRight(viper.GetString("target_url"), "/")
}

// discoverEndpoints pulls weather-looking GET routes out of an OpenAPI
// document so they are tried ahead of the built-in endpoint guesses.
func discoverEndpoints(specFile string) ([]string, error) {
	if specFile == "" {
		return nil, nil
	}

	p, err := parser.ParseFile(specFile)
	if err != nil {
		return nil, err
	}

	templates, err := p.WeatherEndpoints()
	if err != nil {
		return nil, err
	}

	if len(templates) > 0 {
		fmt.Printf("Discovered %d weather endpoint(s) from OpenAPI spec\n", len(templates))
	}

	return templates, nil
}

func persistSummary(target string, summary models.TestSummary) {
	st, err := store.Open(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: cannot open database, results not persisted: %v\n", err)
		return
	}
	defer st.Close()

	ctx := context.Background()
	sessionID := uuid.New().String()
	cfg := map[string]int{"num_valid": numValid, "num_invalid": numInvalid, "num_edge": numEdge}

	if err := st.CreateSession(ctx, sessionID, target, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: cannot create session: %v\n", err)
		return
	}

	for _, result := range summary.Results {
		if err := st.SaveResult(ctx, sessionID, result); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: cannot save result for %q: %v\n", result.City, err)
		}
	}

	endTime := time.Now().Format(time.RFC3339)
	status := "completed"
	err = st.UpdateSession(ctx, sessionID, store.SessionUpdate{
		EndTime:     &endTime,
		Status:      &status,
		TotalTests:  &summary.TotalTests,
		PassedTests: &summary.Passed,
		FailedTests: &summary.Failed,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: cannot finalize session: %v\n", err)
		return
	}

	fmt.Printf("Session %s saved to %s\n", sessionID, dbPath)
}

func displaySummary(summary models.TestSummary, elapsed time.Duration) {
	fmt.Println()
	fmt.Printf("%s\n", white("=== Test Results ==="))
	fmt.Printf("Total Tests: %d\n", summary.TotalTests)
	fmt.Printf("Passed:      %s\n", green(summary.Passed))
	if summary.Failed > 0 {
		fmt.Printf("Failed:      %s\n", red(summary.Failed))
	} else {
		fmt.Printf("Failed:      0\n")
	}
	fmt.Printf("Duration:    %v\n", elapsed.Round(time.Millisecond))
}

func init() {
	rootCmd.AddCommand(testCmd)

	testCmd.Flags().StringVar(&targetURL, "target", "", "Target base URL (default from config)")
	testCmd.Flags().StringVar(&specFile, "spec", "", "Optional OpenAPI document describing the target")
	testCmd.Flags().IntVar(&numValid, "valid", 20, "Number of valid city tests")
	testCmd.Flags().IntVar(&numInvalid, "invalid", 10, "Number of invalid input tests")
	testCmd.Flags().IntVar(&numEdge, "edge", 8, "Number of edge-case tests")
	testCmd.Flags().Float64Var(&delay, "delay", 0.1, "Pacing delay between test cases in seconds")
	testCmd.Flags().StringVar(&dbPath, "db", "", "Persist the run to this sqlite database")
	testCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed output")

	testCmd.Flags().StringVarP(&outputFormat, "output", "o", "", "Output format: json, csv")
	testCmd.Flags().StringVar(&outputFile, "output-file", "", "Write output to file (default: stdout)")
}
