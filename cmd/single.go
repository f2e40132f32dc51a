package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"wxprobe/internal/models"
	"wxprobe/internal/tester"
)

var singleType string

// singleCmd represents the single command
var singleCmd = &cobra.Command{
	Use:   "single [city]",
	Short: "Run a single test case and print the result",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		city := args[0]
		target := resolveTarget()

		testType := models.TestType(singleType)
		switch testType {
		case models.TestTypeValid, models.TestTypeInvalid, models.TestTypeEdge, models.TestTypeManual:
		default:
			fmt.Fprintf(os.Stderr, "Error: unknown test type %q\n", singleType)
			os.Exit(1)
		}

		templates, err := discoverEndpoints(specFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading OpenAPI file: %v\n", err)
			os.Exit(1)
		}

		t := tester.NewTester(target, tester.WithEndpointTemplates(templates))
		result := t.RunTest(context.Background(), city, testType)

		status := green("PASS")
		if !result.Passed {
			status = red("FAIL")
		}
		fmt.Printf("%s %q against %s (%.2fms)\n", status, city, target, result.ResponseTimeMs)

		if result.Validation != nil && len(result.Validation.Warnings) > 0 {
			for _, warning := range result.Validation.Warnings {
				fmt.Printf("  %s %s\n", yellow("●"), warning)
			}
		}

		encoded, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding result: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(encoded))

		if !result.Passed {
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(singleCmd)

	singleCmd.Flags().StringVar(&targetURL, "target", "", "Target base URL (default from config)")
	singleCmd.Flags().StringVar(&specFile, "spec", "", "Optional OpenAPI document describing the target")
	singleCmd.Flags().StringVar(&singleType, "type", string(models.TestTypeManual), "Test type: valid, invalid, edge_case, manual")
}
