package onnx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContext(t *testing.T) {
	type seen struct {
		backend               string
		inputFound, tempFound bool
		outputFound           bool
		opset, version        int
		hasInput0, hasInput1  bool
	}
	var got []seen
	r := NewRegistry()
	require.NoError(t, r.Register(&Handler{Op: "Inspect", Versions: Versions(func(node *Node, ctx *Context) ([]Tensor, error) {
		s := seen{backend: ctx.Backend().Name(), opset: ctx.Opset, version: ctx.Version}
		_, s.inputFound = ctx.Lookup("X")
		_, s.tempFound = ctx.Lookup("T")
		_, s.outputFound = ctx.Lookup(node.Outputs[0])
		s.hasInput0, s.hasInput1 = ctx.HasInput(0), ctx.HasInput(1)
		got = append(got, s)
		return ctx.Construct(OpIdentity, ctx.Inputs()[:1], nil)
	}, 1, 7)}))

	b := &fakeBackend{}
	g := NewGraph("context", 9,
		NewNode("Inspect", []string{"X", ""}, []string{"T"}),
		NewNode("Inspect", []string{"T"}, []string{"Y"}),
	)
	_, err := NewTranslator(b).WithRegistry(r).Run(g, map[string]Tensor{"X": b.input("X")})
	require.NoError(t, err)
	assert.Equal(t, []seen{
		{backend: "fake", inputFound: true, opset: 9, version: 7, hasInput0: true},
		{backend: "fake", inputFound: true, tempFound: true, opset: 9, version: 7, hasInput0: true},
	}, got)
}
