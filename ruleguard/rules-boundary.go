package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// Every outbound request must go through netguard.LoopbackClient so nothing
// leaves the machine.
func loopbackOnly(m dsl.Matcher) {
	m.Match(`http.Get($*_)`, `http.Post($*_)`, `http.Head($*_)`, `http.PostForm($*_)`).
		Where(!m.File().Name.Matches(`_test\.go$`)).
		Report(`use netguard.LoopbackClient instead of the package-level http helpers`)

	m.Match(`http.DefaultClient`, `http.DefaultTransport`).
		Where(!m.File().Name.Matches(`_test\.go$`) && !m.File().PkgPath.Matches(`/internal/infra/netguard$`)).
		Report(`http.DefaultClient can reach remote hosts; use netguard.LoopbackClient`)
}

// Library code logs through slog; only cmd/ writes to stdout directly.
func noPrint(m dsl.Matcher) {
	m.Match(`fmt.Print($*_)`, `fmt.Println($*_)`, `fmt.Printf($*_)`, `log.Print($*_)`, `log.Println($*_)`, `log.Printf($*_)`).
		Where(m.File().PkgPath.Matches(`/internal/`)).
		Report(`use the injected *slog.Logger instead of printing`)
}
