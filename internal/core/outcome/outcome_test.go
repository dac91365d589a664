package outcome

import (
	"errors"
	"testing"
)

func TestErrAndCount(t *testing.T) {
	t.Parallel()

	list := []Outcome{
		Of("a", Ingested),
		Err("b", errors.New("bad amount")),
		Err("c", nil),
		Because("d", SkippedPaid, "already paid"),
	}
	if list[1].Reason != "bad amount" || list[1].Status != Failed {
		t.Fatalf("Err = %+v", list[1])
	}
	c := Count(list)
	if c[Failed] != 2 || c[Ingested] != 1 || c[SkippedPaid] != 1 {
		t.Fatalf("Count = %v", c)
	}
}
