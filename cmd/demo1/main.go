package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"
	"volnet/internal/nn"
	"volnet/internal/tensor"
)

// syntheticBatch fills n images with a class-dependent gradient plus noise.
func syntheticBatch(r *rand.Rand, n int) ([]tensor.Tensor, []int) {
	batch := tensor.NewBatch(n, nn.CIFAR10Input)
	labels := make([]int, n)
	for i := range batch {
		labels[i] = r.Intn(nn.CIFAR10Classes)
		phase := float64(labels[i]) / nn.CIFAR10Classes
		for y := 0; y < nn.CIFAR10Input.Height; y++ {
			for x := 0; x < nn.CIFAR10Input.Width; x++ {
				for d := 0; d < nn.CIFAR10Input.Depth; d++ {
					v := phase*float64(x+y)/64 + 0.1*r.Float64()
					batch[i].SetValue(x, y, d, v)
				}
			}
		}
	}
	return batch, labels
}

func run(ctx context.Context, net *nn.CIFAR10, batch []tensor.Tensor) ([]tensor.Tensor, time.Duration) {
	started := time.Now()
	out, err := net.Forward(ctx, batch)
	if err != nil {
		log.Fatalf("forward: %v", err)
	}
	return out, time.Since(started)
}

func main() {
	n := flag.Int("n", 128, "Number of synthetic images")
	seed := flag.Int64("seed", 1, "Random seed")
	workers := flag.Int("workers", nn.DefaultConfig().Workers, "Concurrent batch ranges")
	flag.Parse()

	log.SetFlags(0)
	log.SetPrefix("demo1: ")

	r := rand.New(rand.NewSource(*seed))
	ctx := context.Background()

	cfg := nn.DefaultConfig()
	cfg.Workers = *workers
	net, err := nn.NewCIFAR10(cfg)
	if err != nil {
		log.Fatal(err)
	}
	net.Randomize(r)
	batch, labels := syntheticBatch(r, *n)

	log.Println("Forward...")
	want, elapsed := run(ctx, net, batch)
	log.Printf("%d images in %v with %d workers", *n, elapsed, cfg.Workers)

	log.Println("Saving safetensors...")
	var buf bytes.Buffer
	if err := net.SaveSafeTensors(&buf); err != nil {
		log.Fatal(err)
	}
	log.Printf("archive is %d bytes", buf.Len())

	dir, err := os.MkdirTemp("", "volnet-demo")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)
	if err := net.SaveText(dir); err != nil {
		log.Fatal(err)
	}

	log.Println("Reloading...")
	fromArchive, err := nn.NewCIFAR10(nn.Config{Workers: 1})
	if err != nil {
		log.Fatal(err)
	}
	if err := fromArchive.LoadSafeTensors(&buf); err != nil {
		log.Fatal(err)
	}
	fromText, err := nn.NewCIFAR10(cfg)
	if err != nil {
		log.Fatal(err)
	}
	if err := fromText.Load(dir); err != nil {
		log.Fatal(err)
	}

	seq, seqElapsed := run(ctx, fromArchive, batch)
	txt, _ := run(ctx, fromText, batch)
	log.Printf("sequential forward took %v", seqElapsed)

	mismatches := 0
	for i := range want {
		if argMaxDiffers(&want[i], &seq[i]) || argMaxDiffers(&want[i], &txt[i]) {
			mismatches++
		}
	}
	acc, err := nn.Accuracy(want, labels)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("Mismatched predictions:", mismatches)
	fmt.Println("Accuracy of untrained weights:", acc*100, "%")
}

// argMaxDiffers reports whether a and b predict different classes.
func argMaxDiffers(a, b *tensor.Tensor) bool {
	return nn.ArgMax(a) != nn.ArgMax(b)
}
