package benchmarks

import (
	"flag"
	"fmt"
	"runtime"
	"testing"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gomlx/pkg/core/dtypes"
	. "github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/graph/graphtest"
	"github.com/gomlx/gomlx/pkg/core/shapes"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/onnx-lower/internal/tracer"
	"github.com/gomlx/onnx-lower/onnx"
	"github.com/gomlx/onnx-lower/togomlx"
	"github.com/janpfeifer/go-benchmarks"
	"github.com/janpfeifer/must"

	_ "github.com/gomlx/onnx-lower/handlers"
)

var (
	flagBenchDuration = flag.Duration("bench_duration", 0, "Benchmark duration, typically use 10 seconds. If left as 0, benchmark tests are disabled")
	flagPrintGraph    = flag.Bool("print_graph", false, "Prints the ONNX graph benchmarked")

	// Benchmark hyperparameters.
	NumLayers = []int{1, 10, 100, 1000}
	Opsets    = []int{6, 13}
)

// layersGraph creates a graph with numLayers "layers", each y = Clip(x * w + b, 0, 6) followed by a Split
// and a Sum of the parts, at the given opset. Weights are initializers.
func layersGraph(numLayers, opset int) *onnx.Graph {
	g := onnx.NewGraph(fmt.Sprintf("layers_%d_opset%d", numLayers, opset), opset).WithInputs("x")
	last := "x"
	for layer := range numLayers {
		name := func(s string) string { return fmt.Sprintf("%s_%d", s, layer) }
		g.WithInitializer(name("w"), tensors.FromValue([]float32{0.5, 0.5, 0.5, 0.5}))
		g.WithInitializer(name("b"), tensors.FromValue([]float32{1, 1, 1, 1}))
		// Legacy broadcasting must be enabled explicitly.
		var broadcast []*onnx.Attribute
		if opset < 7 {
			broadcast = append(broadcast, onnx.IntAttr("broadcast", 1))
		}
		var clip *onnx.Node
		if opset < 11 {
			clip = onnx.NewNode("Clip", []string{name("biased")}, []string{name("clipped")},
				onnx.FloatAttr("min", 0), onnx.FloatAttr("max", 6))
		} else {
			g.WithInitializer(name("lo"), tensors.FromValue(float32(0)))
			g.WithInitializer(name("hi"), tensors.FromValue(float32(6)))
			clip = onnx.NewNode("Clip", []string{name("biased"), name("lo"), name("hi")}, []string{name("clipped")})
		}
		g.Nodes = append(g.Nodes,
			onnx.NewNode("Mul", []string{last, name("w")}, []string{name("scaled")}, broadcast...),
			onnx.NewNode("Add", []string{name("scaled"), name("b")}, []string{name("biased")}, broadcast...),
			clip,
			onnx.NewNode("Split", []string{name("clipped")}, []string{name("left"), name("right")}),
			onnx.NewNode("Sum", []string{name("left"), name("right")}, []string{name("half")}),
			onnx.NewNode("Cast", []string{name("half")}, []string{name("y")}, onnx.IntAttr("to", int64(onnx.DataTypeFloat))),
		)
		// Split halves the first axis, so every other layer starts again from x.
		if layer%2 == 1 {
			last = "x"
		} else {
			last = name("y")
		}
	}
	return g.WithOutputs(fmt.Sprintf("y_%d", numLayers-1))
}

func TestLayersGraph(t *testing.T) {
	for _, opset := range Opsets {
		model := layersGraph(3, opset)
		must.M(model.Validate())
		outputs := must.M1(onnx.Translate(tracer.New(), model, tracer.Inputs("x")))
		if len(outputs) != 1 {
			t.Fatalf("expected 1 output, got %d", len(outputs))
		}
	}
}

func TestBenchTranslation(t *testing.T) {
	if testing.Short() {
		fmt.Printf("Skipping translation benchmark test: --short is set\n")
		t.SkipNow()
	}
	if *flagBenchDuration == 0 {
		fmt.Printf("Skipping translation benchmark test: --bench_duration is not set\n")
		t.SkipNow()
	}
	t.Run("tracer", benchTracerTranslation)
	t.Run("GoMLX", benchGoMLXTranslation)
}

func benchTracerTranslation(t *testing.T) {
	for opsetIdx, opset := range Opsets {
		for layersIdx, numLayers := range NumLayers {
			model := layersGraph(numLayers, opset)
			if *flagPrintGraph && numLayers == 1 {
				fmt.Printf("Model:\n%s\n", model)
			}
			benchFn := benchmarks.NamedFunction{
				Name: fmt.Sprintf("%s/opset=%02d/layers=%04d", t.Name(), opset, numLayers),
				Func: func() {
					must.M1(onnx.Translate(tracer.New(), model, tracer.Inputs("x")))
				},
			}
			benchmarks.New(benchFn).
				WithWarmUps(16).
				WithDuration(*flagBenchDuration).
				WithHeader(opsetIdx == 0 && layersIdx == 0).
				Done()
		}
	}
}

// benchGoMLXTranslation measures the time to translate into a new GoMLX graph, not including the compilation.
func benchGoMLXTranslation(t *testing.T) {
	backend := graphtest.BuildTestBackend()
	for opsetIdx, opset := range Opsets {
		for layersIdx, numLayers := range NumLayers {
			model := layersGraph(numLayers, opset)
			benchFn := benchmarks.NamedFunction{
				Name: fmt.Sprintf("%s/opset=%02d/layers=%04d", t.Name(), opset, numLayers),
				Func: func() {
					g := NewGraph(backend, "bench")
					x := Parameter(g, "x", shapes.Make(dtypes.Float32, 16, 4))
					outputs := togomlx.Translate(g, model, map[string]*Node{"x": x})
					if len(outputs) != 1 {
						exceptions.Panicf("expected 1 output, got %d", len(outputs))
					}
					g.Finalize()
				},
			}
			runtime.LockOSThread()
			benchmarks.New(benchFn).
				WithWarmUps(16).
				WithDuration(*flagBenchDuration).
				WithHeader(opsetIdx == 0 && layersIdx == 0).
				Done()
			runtime.UnlockOSThread()
		}
	}
}

// BenchmarkTranslateTracer can be run with the standard `go test -bench=.`.
func BenchmarkTranslateTracer(b *testing.B) {
	for _, numLayers := range NumLayers {
		model := layersGraph(numLayers, 13)
		b.Run(fmt.Sprintf("layers=%04d", numLayers), func(b *testing.B) {
			for range b.N {
				must.M1(onnx.Translate(tracer.New(), model, tracer.Inputs("x")))
			}
		})
	}
}
