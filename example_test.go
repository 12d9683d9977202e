package permuto_test

import (
	"context"
	"fmt"
	"log"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/permuto"
)

// ExampleFilter32 averages four samples that share one feature vector.
func ExampleFilter32() {
	data := []float32{1, 2, 3, 6}
	features := []float32{
		0.5, 0.5,
		0.5, 0.5,
		0.5, 0.5,
		0.5, 0.5,
	}

	if err := permuto.Filter32(context.Background(), data, features, 1, 2, 4); err != nil {
		log.Fatal(err)
	}

	fmt.Printf("%.2f\n", data)
	// Output: [3.00 3.00 3.00 3.00]
}

// ExampleFilterWithStats shows that distant feature clusters do not mix.
func ExampleFilterWithStats() {
	data := []float64{0, 0, 10, 10}
	features := []float64{0, 0.1, 50, 50.1}

	stats, err := permuto.FilterWithStats(context.Background(), data, features, 1, 1, 4)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("%.1f written=%d\n", data, stats.Written)
	// Output: [0.0 0.0 10.0 10.0] written=4
}

// ExampleWithMask filters everything but writes back only the masked elements.
func ExampleWithMask() {
	data := []float64{0, 4, 8}
	features := []float64{0, 0, 0}

	err := permuto.Filter64(context.Background(), data, features, 1, 1, 3,
		permuto.WithMask(roaring.BitmapOf(1)),
	)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("%.1f\n", data)
	// Output: [0.0 4.0 8.0]
}
