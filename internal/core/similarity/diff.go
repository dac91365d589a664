package similarity

// OpKind labels one span of a character diff
type OpKind string

// Diff span kinds
const (
	OpEqual  OpKind = "equal"
	OpInsert OpKind = "insert"
	OpDelete OpKind = "delete"
)

// Op is one contiguous span of a character level diff from old to new
type Op struct {
	Kind OpKind `json:"kind"`
	Text string `json:"text"`
}

// Diff returns the character level edit script turning from into to
// substitutions are reported as a delete followed by an insert
func Diff(from, to string) []Op {
	a, b := []rune(from), []rune(to)
	n, m := len(a), len(b)

	// full matrix so the script can be walked back
	d := make([][]int, n+1)
	for i := range d {
		d[i] = make([]int, m+1)
		d[i][0] = i
	}
	for j := 0; j <= m; j++ {
		d[0][j] = j
	}
	for i := 1; i <= n; i++ {
		for j := 1; j <= m; j++ {
			if a[i-1] == b[j-1] {
				d[i][j] = d[i-1][j-1]
				continue
			}
			d[i][j] = 1 + min(d[i-1][j], d[i][j-1], d[i-1][j-1])
		}
	}

	var rev []Op
	push := func(k OpKind, r rune) {
		if l := len(rev); l > 0 && rev[l-1].Kind == k {
			rev[l-1].Text = string(r) + rev[l-1].Text
			return
		}
		rev = append(rev, Op{Kind: k, Text: string(r)})
	}

	i, j := n, m
	for i > 0 || j > 0 {
		switch {
		case i > 0 && j > 0 && a[i-1] == b[j-1] && d[i][j] == d[i-1][j-1]:
			push(OpEqual, a[i-1])
			i--
			j--
		case i > 0 && j > 0 && d[i][j] == d[i-1][j-1]+1:
			// walking backwards, so the insert lands after the delete once reversed
			push(OpInsert, b[j-1])
			push(OpDelete, a[i-1])
			i--
			j--
		case i > 0 && d[i][j] == d[i-1][j]+1:
			push(OpDelete, a[i-1])
			i--
		default:
			push(OpInsert, b[j-1])
			j--
		}
	}

	out := make([]Op, 0, len(rev))
	for k := len(rev) - 1; k >= 0; k-- {
		out = append(out, rev[k])
	}
	return out
}
