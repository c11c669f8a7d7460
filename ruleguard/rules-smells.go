package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

func smells(m dsl.Matcher) {
	// 1) Two guard ifs in a row with the same return can be merged with ||
	//      if a { return err }
	//      if b { return err }
	//    => if a || b { return err }
	m.Match(`if $c1 { return $ret }; if $c2 { return $ret }`).
		Report(`two consecutive guards return the same value; consider merging conditions with ||`).
		Suggest(`if $c1 || $c2 { return $ret }`)

	// Same thing with continue inside loops
	m.Match(`if $c1 { continue }; if $c2 { continue }`).
		Report(`two consecutive continues; consider merging conditions with ||`).
		Suggest(`if $c1 || $c2 { continue }`)

	// 2) Nested for loops. Not always wrong, but worth a look on hot paths
	//    like per-sample audio conversion.
	m.Match(`for $*_ { for $*_ { $*_ } }`).
		Report(`nested for-loop; consider extracting inner loop logic or reducing algorithmic complexity`)
}

// Error strings are lowercase and unpunctuated; user-facing sentences live in
// the HTTP handlers.
func errorStrings(m dsl.Matcher) {
	m.Match(`errors.New($s)`, `fmt.Errorf($s, $*_)`).
		Where(m["s"].Text.Matches(`^"[A-Z][a-z]`) || m["s"].Text.Matches(`[.!]"$`)).
		Report(`error strings should not be capitalized or end with punctuation`)
}
