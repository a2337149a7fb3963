package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"time"
	"volnet/internal/nn"
	"volnet/internal/parser"
	"volnet/internal/tensor"
)

func loadWeights(net *nn.CIFAR10, path string) error {
	if filepath.Ext(path) != ".safetensors" {
		return net.Load(path)
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return net.LoadSafeTensors(f)
}

func main() {
	weights := flag.String("weights", "./weights", "Directory of layer*_*.txt files or a .safetensors archive")
	input := flag.String("input", "test_batch.csv", "CSV of label,pixels... rows in 32x32x3 layout order")
	batchSize := flag.Int("batch", 256, "Samples per forward pass")
	workers := flag.Int("workers", nn.DefaultConfig().Workers, "Concurrent batch ranges")
	limit := flag.Int("limit", 0, "Max samples to classify (0 = all)")
	scale := flag.Float64("scale", 1.0/255, "Factor applied to every pixel value")
	verbose := flag.Bool("v", false, "Print the predicted class of every sample")
	flag.Parse()

	log.SetFlags(0)
	log.SetPrefix("classify: ")

	if *batchSize <= 0 {
		log.Fatalf("batch must be positive, got %d", *batchSize)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg := nn.DefaultConfig()
	cfg.Workers = *workers
	net, err := nn.NewCIFAR10(cfg)
	if err != nil {
		log.Fatalf("build network: %v", err)
	}
	if err := loadWeights(net, *weights); err != nil {
		log.Fatalf("load weights from %s: %v", *weights, err)
	}

	log.Printf("parsing %s", *input)
	lines, err := parser.ReadCSV(*input)
	if err != nil {
		log.Fatalf("read input: %v", err)
	}
	if *limit > 0 && len(lines) > *limit {
		lines = lines[:*limit]
	}
	samples, err := parser.ParseLines(lines, nn.CIFAR10Input, *scale)
	if err != nil {
		log.Fatalf("parse input: %v", err)
	}

	inputs := parser.Inputs(samples)
	labels := make([]int, len(samples))
	for i := range samples {
		labels[i] = samples[i].Answer
	}

	log.Printf("classifying %d samples, batch %d, %d workers", len(samples), *batchSize, cfg.Workers)
	outputs := make([]tensor.Tensor, 0, len(samples))
	started := time.Now()
	for lo := 0; lo < len(inputs); lo += *batchSize {
		hi := min(lo+*batchSize, len(inputs))
		out, err := net.Forward(ctx, inputs[lo:hi])
		if err != nil {
			log.Fatalf("forward samples %d..%d: %v", lo, hi-1, err)
		}
		outputs = append(outputs, out...)
	}
	elapsed := time.Since(started)

	if *verbose {
		for i := range outputs {
			fmt.Printf("%d %d\n", i, nn.ArgMax(&outputs[i]))
		}
	}

	acc, err := nn.Accuracy(outputs, labels)
	if err != nil {
		log.Fatal(err)
	}
	perSample := time.Duration(0)
	if len(outputs) > 0 {
		perSample = elapsed / time.Duration(len(outputs))
	}
	log.Printf("accuracy %.2f%%, %v total, %v per sample", acc*100, elapsed, perSample)
}
