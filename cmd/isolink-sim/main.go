package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/isolink-io/isolink/pkg/simulation"
)

func main() {
	var (
		scenarioFile string
		seed         int64
		jsonOutput   bool
		outputFile   string
	)

	flag.StringVar(&scenarioFile, "scenario", "", "Path to scenario JSON file")
	flag.Int64Var(&seed, "seed", 0, "Override the scenario seed (0 = keep)")
	flag.BoolVar(&jsonOutput, "json", false, "Output results as JSON")
	flag.StringVar(&outputFile, "out", "", "Write output to file instead of stdout")
	flag.Parse()

	var scenario simulation.Scenario

	if scenarioFile != "" {
		data, err := os.ReadFile(scenarioFile)
		if err != nil {
			log.Fatalf("Failed to read scenario file: %v", err)
		}
		if err := json.Unmarshal(data, &scenario); err != nil {
			log.Fatalf("Failed to parse scenario file: %v", err)
		}
	} else {
		// Default scenario
		fmt.Fprintln(os.Stderr, "No scenario file provided, running default demo scenario...")
		scenario = simulation.Scenario{
			Name:           "default-demo",
			Seed:           42,
			Components:     200,
			AnchorsPer:     2,
			EdgeFanout:     2,
			ActivationRate: 0.6,
			Resolves:       2000,
			Workers:        4,
			Canonicalize:   true,
			Invariants: []simulation.Invariant{
				{Metric: "error_rate", Condition: "==", Value: 0},
				{Metric: "link_rate", Condition: ">", Value: 0},
			},
		}
	}

	if seed != 0 {
		scenario.Seed = seed
	}

	result := simulation.RunScenario(scenario)

	writeReport(result, jsonOutput, outputFile)

	if !result.Success {
		os.Exit(1)
	}
}

func writeReport(res simulation.SimulationResult, jsonFmt bool, filePath string) {
	var output []byte
	var err error

	if jsonFmt {
		output, err = json.MarshalIndent(res, "", "  ")
	} else {
		var buf bytes.Buffer
		buf.WriteString(fmt.Sprintf("\n--- Simulation Report: %s ---\n", res.ScenarioName))
		buf.WriteString(fmt.Sprintf("Seed: %d | Duration: %s\n", res.Seed, res.Duration))
		buf.WriteString(fmt.Sprintf("Components: %d", res.Components))
		if res.Classes > 0 {
			buf.WriteString(fmt.Sprintf(" -> %d classes (reduction %.1f%%)", res.Classes, res.ReductionRatio*100))
		}
		buf.WriteString("\n")
		buf.WriteString(fmt.Sprintf("Resolves: %d | Linked: %d (%.1f%%) | Errors: %d\n",
			res.Resolves, res.Linked, res.LinkRate*100, res.Errors))
		buf.WriteString(fmt.Sprintf("Journal: %d events, %d dropped\n", res.JournalEvents, res.JournalDropped))
		buf.WriteString(fmt.Sprintf("Outcomes: TP=%d FP=%d TN=%d\n",
			res.TruePositiveLinks, res.FalsePositiveLinks, res.TrueNegativeSkips))

		if len(res.Invariants) > 0 {
			buf.WriteString("\nInvariants:\n")
			for _, inv := range res.Invariants {
				status := "FAIL"
				if inv.Passed {
					status = "PASS"
				}
				buf.WriteString(fmt.Sprintf("[%s] %s: Expected %s, Got %s\n", status, inv.Metric, inv.Expected, inv.Actual))
			}
		}
		output = buf.Bytes()
	}

	if err != nil {
		log.Fatalf("Failed to marshal report: %v", err)
	}

	if filePath != "" {
		if err := os.WriteFile(filePath, output, 0644); err != nil {
			log.Fatalf("Failed to write report to %s: %v", filePath, err)
		}
		fmt.Printf("Report written to %s\n", filePath)
	} else {
		fmt.Println(string(output))
	}
}
