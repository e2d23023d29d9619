// SPDX-License-Identifier: MPL-2.0

package benchmark

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/invowk/scriptrun/internal/cache"
	"github.com/invowk/scriptrun/internal/config"
	"github.com/invowk/scriptrun/internal/runtime"
	"github.com/invowk/scriptrun/internal/scripts"
	"github.com/invowk/scriptrun/internal/testutil"
	"github.com/invowk/scriptrun/internal/validate"
)

const (
	addOne = "def run(input):\n    return {\"x\": input[\"x\"] + 1}\n"

	// largeScript is a realistic script with helpers, comments and string
	// literals that mention forbidden names without importing them.
	largeScript = `
"""Summarize a list of orders.

Nothing here touches os or sys; the words only appear in text.
"""
import json
import math
from collections import Counter, defaultdict


def _bucket(amount):
    if amount < 10:
        return "small"
    if amount < 100:
        return "medium"
    return "large"


def _stats(values):
    if not values:
        return {"count": 0, "mean": 0.0, "stdev": 0.0}
    mean = sum(values) / len(values)
    var = sum((v - mean) ** 2 for v in values) / len(values)
    return {"count": len(values), "mean": mean, "stdev": math.sqrt(var)}


def run(input):
    orders = input.get("orders", [])
    by_customer = defaultdict(list)
    buckets = Counter()
    for order in orders:
        by_customer[order["customer"]].append(order["amount"])
        buckets[_bucket(order["amount"])] += 1
    return {
        "customers": {c: _stats(v) for c, v in by_customer.items()},
        "buckets": dict(buckets),
        "note": "generated without subprocess or socket access",
        "raw": json.dumps(len(orders)),
    }
`

	sampleConfig = `
script_folder:   "/srv/scriptrun/python_scripts"
default_timeout: 45
install_timeout: 90

interpreter: path: ""
cache: registry_path: "/var/cache/scriptrun/vm_cache.json"

isolation: {
	mode:   "native"
	engine: "podman"
	image:  "docker.io/library/python:3.12-slim"
}

log: level: "warn"
`

	sampleMetadata = `
name:        "summarize_orders"
description: "Summarize a list of orders per customer"
output_type: "object"
parameters: [
	{name: "orders", type: "array", description: "orders with customer and amount"},
	{name: "currency", type: "string"},
	{name: "threshold", type: "number"},
]
`
)

type instantExecutor struct{}

func (instantExecutor) RunPrepared(context.Context, string, string, time.Duration) *runtime.Result {
	return &runtime.Result{Output: `{"ok":true}`}
}

// BenchmarkValidate benchmarks the safety screen on a small script.
func BenchmarkValidate(b *testing.B) {
	b.ReportAllocs()
	for b.Loop() {
		if err := validate.Validate(addOne); err != nil {
			b.Fatalf("Validate failed: %v", err)
		}
	}
}

// BenchmarkValidateLarge benchmarks the safety screen on a multi-function
// script whose text mentions forbidden names.
func BenchmarkValidateLarge(b *testing.B) {
	b.ReportAllocs()
	for b.Loop() {
		if err := validate.Validate(largeScript); err != nil {
			b.Fatalf("Validate failed: %v", err)
		}
	}
}

// BenchmarkValidateRejected benchmarks the rejection path.
func BenchmarkValidateRejected(b *testing.B) {
	src := strings.Replace(largeScript, "import json", "import subprocess", 1)
	for b.Loop() {
		if err := validate.Validate(src); err == nil {
			b.Fatal("expected rejection")
		}
	}
}

// BenchmarkConfigLoad benchmarks CUE schema validation and decoding of a
// config file.
func BenchmarkConfigLoad(b *testing.B) {
	path := testutil.MustWriteFile(b, filepath.Join(b.TempDir(), "config.cue"), sampleConfig)
	provider := config.NewProvider()
	ctx := b.Context()

	b.ResetTimer()
	for b.Loop() {
		cfg, err := provider.Load(ctx, config.LoadOptions{ConfigFilePath: path})
		if err != nil {
			b.Fatalf("Load failed: %v", err)
		}
		if cfg.DefaultTimeout != 45 {
			b.Fatalf("DefaultTimeout = %d", cfg.DefaultTimeout)
		}
	}
}

// BenchmarkMetadataParsing benchmarks sidecar parsing against the embedded
// schema.
func BenchmarkMetadataParsing(b *testing.B) {
	data := []byte(sampleMetadata)
	for b.Loop() {
		md, err := scripts.ParseMetadata(data, "summarize_orders.meta.cue")
		if err != nil {
			b.Fatalf("ParseMetadata failed: %v", err)
		}
		if len(md.Parameters) != 3 {
			b.Fatalf("parameters = %d", len(md.Parameters))
		}
	}
}

// BenchmarkListScripts benchmarks listing a folder of scripts with sidecars.
func BenchmarkListScripts(b *testing.B) {
	dir := b.TempDir()
	for _, name := range []string{"alpha", "beta", "gamma", "delta", "epsilon"} {
		testutil.WriteScript(b, dir, name, addOne)
		testutil.MustWriteFile(b, filepath.Join(dir, name+".meta.cue"), sampleMetadata)
	}
	testutil.WriteScript(b, dir, "__inline_scratch", addOne)
	runner := scripts.New(dir, instantExecutor{})

	b.ResetTimer()
	for b.Loop() {
		list, err := runner.ListScripts()
		if err != nil {
			b.Fatalf("ListScripts failed: %v", err)
		}
		if len(list) != 5 {
			b.Fatalf("listed %d scripts", len(list))
		}
	}
}

// BenchmarkRunScriptOverhead benchmarks everything around the interpreter:
// resolution, reading, validation and argument normalization.
func BenchmarkRunScriptOverhead(b *testing.B) {
	dir := b.TempDir()
	testutil.WriteScript(b, dir, "summarize", largeScript)
	runner := scripts.New(dir, instantExecutor{})
	ctx := b.Context()
	args := `{"orders": [{"customer": "a", "amount": 12.5}, {"customer": "b", "amount": 140}]}`

	b.ResetTimer()
	for b.Loop() {
		if res := runner.RunScript(ctx, "summarize", args, time.Second); res.Failed() {
			b.Fatalf("RunScript failed: %v", res.Err)
		}
	}
}

// BenchmarkRuntimeNative benchmarks one interpreter process through the
// launcher.
func BenchmarkRuntimeNative(b *testing.B) {
	interp := testutil.RequirePython(b)
	path := testutil.WriteScript(b, b.TempDir(), "add_one", addOne)
	exec := runtime.NewExecutor()
	ctx := b.Context()

	b.ResetTimer()
	for b.Loop() {
		res := exec.Run(ctx, interp, path, `{"x": 1}`, 10*time.Second)
		if res.Error != nil {
			b.Fatalf("Run failed: %v", res.Error)
		}
	}
}

// BenchmarkFullPipeline benchmarks RunScript with the cache and a real
// interpreter, without dependency resolution.
func BenchmarkFullPipeline(b *testing.B) {
	interp := testutil.RequirePython(b)
	dir := b.TempDir()
	testutil.WriteScript(b, dir, "summarize", largeScript)

	c := cache.New(filepath.Join(b.TempDir(), "vm_cache.json"), runtime.NewExecutor(),
		cache.WithInterpreter(func(context.Context) (string, error) { return interp, nil }))
	runner := scripts.New(dir, c)
	ctx := b.Context()
	args := `{"orders": [{"customer": "a", "amount": 3}, {"customer": "a", "amount": 250}]}`

	b.ResetTimer()
	for b.Loop() {
		if res := runner.RunScript(ctx, "summarize", args, 10*time.Second); res.Failed() {
			b.Fatalf("RunScript failed: %v", res.Err)
		}
	}
}
