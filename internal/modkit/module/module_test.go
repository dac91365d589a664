package module

import (
	"slices"
	"testing"

	phttp "arledger/internal/platform/net/http"
)

type pricer interface{ Price() int }

type fixed int

func (f fixed) Price() int { return int(f) }

type bundle struct {
	Pricer pricer
	Label  string
}

type fake struct{ ports any }

func (fake) MountRoutes(phttp.Router) {}
func (f fake) Ports() any             { return f.ports }
func (fake) Name() string             { return "fake" }

func TestPortsOf(t *testing.T) {
	b := bundle{Pricer: fixed(7), Label: "x"}

	if got, ok := PortsOf[bundle](fake{b}); !ok || got.Label != "x" {
		t.Fatal("bundle itself")
	}
	if got, ok := PortsOf[pricer](fake{b}); !ok || got.Price() != 7 {
		t.Fatal("field of struct")
	}
	if got, ok := PortsOf[pricer](fake{&b}); !ok || got.Price() != 7 {
		t.Fatal("field of pointer")
	}
	if _, ok := PortsOf[pricer](fake{nil}); ok {
		t.Fatal("nil ports")
	}
	if _, ok := PortsOf[pricer](fake{"text"}); ok {
		t.Fatal("non struct")
	}
	if _, ok := PortsOf[pricer](fake{(*bundle)(nil)}); ok {
		t.Fatal("nil pointer")
	}
}

func TestMustPortsOfPanicsWithType(t *testing.T) {
	defer func() {
		msg, _ := recover().(string)
		if msg != "module: fake has no port of type module.pricer" {
			t.Fatalf("panic %q", msg)
		}
	}()
	MustPortsOf[pricer](fake{"text"})
}

func TestRegistry(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	Register("ledger", nil)
	Register("dunning", nil)
	Register("ledger", 1)
	if got := Names(); !slices.Equal(got, []string{"dunning", "ledger"}) {
		t.Fatalf("names %v", got)
	}
	Reset()
	if len(Names()) != 0 {
		t.Fatal("reset")
	}
}
