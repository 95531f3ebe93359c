// Package main is a debugging CLI that evaluates gates, configs, and layers
// offline against a spec payload on disk.
//
// Example:
//
//	gatewise -specs specs.json -user '{"userID":"u-1"}' -gate new_checkout
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/gatewise/gatewise"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "gatewise:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		specsPath = flag.String("specs", "", "path to a download_config_specs JSON payload (required)")
		userJSON  = flag.String("user", `{"userID":"cli-user"}`, "user record as JSON")
		gateName  = flag.String("gate", "", "feature gate to check")
		cfgName   = flag.String("config", "", "dynamic config or experiment to fetch")
		layerName = flag.String("layer", "", "layer to fetch")
		logLevel  = flag.String("log-level", "warn", "SDK log level")
	)
	flag.Parse()

	if *specsPath == "" {
		return errors.New("-specs is required")
	}
	if *gateName == "" && *cfgName == "" && *layerName == "" {
		return errors.New("one of -gate, -config, or -layer is required")
	}

	payload, err := os.ReadFile(*specsPath)
	if err != nil {
		return fmt.Errorf("read specs: %w", err)
	}
	var user gatewise.User
	if err := json.Unmarshal([]byte(*userJSON), &user); err != nil {
		return fmt.Errorf("parse user: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := gatewise.NewClient(ctx, "", &gatewise.Options{
		LocalMode:       true,
		BootstrapValues: payload,
		LogLevel:        *logLevel,
	})
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer client.Shutdown(ctx)

	out := map[string]any{}
	switch {
	case *gateName != "":
		gate := client.GetFeatureGate(user, *gateName)
		out["gate"] = gate.Name
		out["value"] = gate.Value
		out["ruleID"] = gate.RuleID
		out["reason"] = gate.EvaluationDetails.Reason
	case *cfgName != "":
		cfg := client.GetConfigWithExposureLoggingDisabled(user, *cfgName)
		out["config"] = cfg.Name
		out["value"] = cfg.Value
		out["ruleID"] = cfg.RuleID
		out["groupName"] = cfg.GroupName
		out["reason"] = cfg.EvaluationDetails.Reason
	default:
		layer := client.GetLayerWithExposureLoggingDisabled(user, *layerName)
		out["layer"] = layer.Name
		out["value"] = layer.Value
		out["ruleID"] = layer.RuleID
		out["allocatedExperiment"] = layer.AllocatedExperiment
	}

	encoded, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	fmt.Println(string(encoded))
	return nil
}
